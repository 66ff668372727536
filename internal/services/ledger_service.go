package services

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"time"

	"github.com/google/uuid"

	"mkoba/internal/core"
	"mkoba/internal/export"
	"mkoba/internal/ledger"
	"mkoba/internal/log"
	"mkoba/internal/store"
)

// LedgerView is the ledger screen of one period.
type LedgerView struct {
	Period      core.Period
	Months      []core.Month
	Rows        []ledger.Row
	Footer      ledger.Footer
	CanEdit     bool
	Initialized bool
}

// LedgerService orchestrates every ledger operation as
// gate, validate, write, re-read, aggregate.
type LedgerService struct {
	store store.Store
	audit AuditPublisher
	now   core.Clock
}

// NewLedgerService wires the service. A nil audit publisher records facts
// straight into the store.
func NewLedgerService(st store.Store, audit AuditPublisher) *LedgerService {
	if audit == nil {
		audit = NewStoreAuditPublisher(st)
	}
	return &LedgerService{store: st, audit: audit, now: core.SystemClock}
}

// SetClock replaces the wall clock used to derive months.
func (s *LedgerService) SetClock(c core.Clock) { s.now = c }

func (s *LedgerService) ListPeriods(ctx context.Context) ([]core.Period, error) {
	return s.store.ListPeriods(ctx)
}

// CreatePeriod opens a new fiscal-year container. It is not yet initialized.
func (s *LedgerService) CreatePeriod(ctx context.Context, sess core.Session, year int) (core.Period, error) {
	if err := sess.RequireRole(core.CapInitializeLedger); err != nil {
		return core.Period{}, err
	}
	p := core.Period{ID: uuid.NewString(), Year: year, CreatedAt: s.now()}
	if err := p.Validate(); err != nil {
		return core.Period{}, err
	}
	periods, err := s.store.ListPeriods(ctx)
	if err != nil {
		return core.Period{}, err
	}
	for _, existing := range periods {
		if existing.Year == year {
			return core.Period{}, core.Conflict("a period for %d already exists", year)
		}
	}
	if err := s.store.CreatePeriod(ctx, p); err != nil {
		return core.Period{}, err
	}
	s.publish(ctx, sess, core.ActionCreate, TablePeriods, p.ID, p.ID)
	return s.store.GetPeriod(ctx, p.ID)
}

// View returns the ledger of the session's period. query narrows the rows
// to members whose name contains it; totals follow the visible rows.
func (s *LedgerService) View(ctx context.Context, sess core.Session, query string) (LedgerView, error) {
	if !sess.HasActivePeriod() {
		return LedgerView{}, core.Conflict("no active contribution period selected")
	}
	snap, err := loadSnapshot(ctx, s.store, sess.PeriodID, s.now())
	if err != nil {
		return LedgerView{}, err
	}
	return s.view(sess, snap, query), nil
}

func (s *LedgerService) view(sess core.Session, snap Snapshot, query string) LedgerView {
	members := ledger.FilterMembers(snap.Members, query)
	m := ledger.New(snap.Period.ID, members, snap.Contributions, snap.Months)
	return LedgerView{
		Period:      snap.Period,
		Months:      snap.Months,
		Rows:        m.Rows(),
		Footer:      m.Footer(),
		CanEdit:     sess.CanEdit(),
		Initialized: snap.Period.Initialized(),
	}
}

// SetContribution records amount for (member, month) in the session's
// period and returns the ledger as re-read from the store. The last write
// for a key wins.
func (s *LedgerService) SetContribution(ctx context.Context, sess core.Session, memberID string, month core.Month, amount core.Money) (LedgerView, error) {
	if err := sess.Require(core.CapEditLedger); err != nil {
		return LedgerView{}, err
	}
	if err := amount.Validate(); err != nil {
		return LedgerView{}, core.Invalid("amount", err)
	}
	snap, err := loadSnapshot(ctx, s.store, sess.PeriodID, s.now())
	if err != nil {
		return LedgerView{}, err
	}
	if !snap.Period.Initialized() {
		return LedgerView{}, core.Conflict("ledger for %d is not initialized", snap.Period.Year)
	}
	if !slices.Contains(snap.Months, month) {
		return LedgerView{}, core.Invalid("month", fmt.Errorf("%w: %s is not an active month of the period", core.ErrInvalidMonth, month))
	}
	if _, ok := snap.member(memberID); !ok {
		return LedgerView{}, core.Invalid("member_id", fmt.Errorf("%w: %s", core.ErrUnknownMember, memberID))
	}

	c := core.Contribution{
		MemberID:  memberID,
		PeriodID:  sess.PeriodID,
		Month:     month,
		Amount:    amount,
		UpdatedBy: sess.ActorID,
		UpdatedAt: s.now(),
	}
	if err := s.store.UpsertContribution(ctx, c); err != nil {
		return LedgerView{}, err
	}

	action := core.ActionCreate
	if snap.hasContribution(memberID, month) {
		action = core.ActionUpdate
	}
	log.NewStructuredLogger(logger(ctx)).
		LogContributionSaved(ctx, sess.ActorID, sess.Role.String(), sess.PeriodID, memberID, month.String(), amount.Cents)
	s.publish(ctx, sess, action, TableContributions, contributionRecordID(memberID, sess.PeriodID, month), sess.PeriodID)

	return s.View(ctx, sess, "")
}

// InitializePeriod sets the start month of the session's period. It
// succeeds once; the start may not lie in the future.
func (s *LedgerService) InitializePeriod(ctx context.Context, sess core.Session, start core.Month) (LedgerView, error) {
	if err := sess.Require(core.CapInitializeLedger); err != nil {
		return LedgerView{}, err
	}
	if start.IsZero() {
		return LedgerView{}, core.Invalid("start_month", core.ErrInvalidMonth)
	}
	if current := core.MonthOf(s.now()); start.After(current) {
		return LedgerView{}, core.Invalid("start_month", fmt.Errorf("%w: %s is after the current month %s", core.ErrInvalidMonth, start, current))
	}
	p, err := s.store.GetPeriod(ctx, sess.PeriodID)
	if err != nil {
		return LedgerView{}, err
	}
	if p.Initialized() {
		return LedgerView{}, core.Conflict("ledger for %d already starts at %s", p.Year, p.StartMonth)
	}
	if err := s.store.SetPeriodStartMonth(ctx, p.ID, start); err != nil {
		return LedgerView{}, err
	}
	logger(ctx).InfoContext(ctx, "Ledger initialized",
		log.FieldPeriodID, p.ID,
		log.FieldMonth, start.String(),
		log.FieldActorID, sess.ActorID)
	s.publish(ctx, sess, core.ActionUpdate, TablePeriods, p.ID, p.ID)

	return s.View(ctx, sess, "")
}

// AppendMonth extends the session's period by the month after its last
// active month and persists the new horizon.
func (s *LedgerService) AppendMonth(ctx context.Context, sess core.Session) (LedgerView, error) {
	if err := sess.Require(core.CapEditLedger); err != nil {
		return LedgerView{}, err
	}
	p, err := s.store.GetPeriod(ctx, sess.PeriodID)
	if err != nil {
		return LedgerView{}, err
	}
	extended := core.AppendMonth(core.DeriveMonths(p, s.now()))
	if len(extended) == 0 {
		return LedgerView{}, core.Conflict("ledger for %d has no months to extend", p.Year)
	}
	next := extended[len(extended)-1]
	if err := s.store.SetPeriodHorizon(ctx, p.ID, next); err != nil {
		return LedgerView{}, err
	}
	s.publish(ctx, sess, core.ActionUpdate, TablePeriods, p.ID, p.ID)

	return s.View(ctx, sess, "")
}

// RecordPayout upserts the payout of a member in the session's period.
func (s *LedgerService) RecordPayout(ctx context.Context, sess core.Session, memberID string, amount core.Money) (ledger.Summary, error) {
	if err := sess.Require(core.CapRecordPayout); err != nil {
		return ledger.Summary{}, err
	}
	if err := amount.Validate(); err != nil {
		return ledger.Summary{}, core.Invalid("amount", err)
	}
	if _, err := s.store.GetPeriod(ctx, sess.PeriodID); err != nil {
		return ledger.Summary{}, err
	}
	if _, err := s.store.GetMember(ctx, memberID); err != nil {
		if core.IsNotFound(err) {
			return ledger.Summary{}, core.Invalid("member_id", fmt.Errorf("%w: %s", core.ErrUnknownMember, memberID))
		}
		return ledger.Summary{}, err
	}
	p := core.Payout{
		MemberID:  memberID,
		PeriodID:  sess.PeriodID,
		Amount:    amount,
		UpdatedBy: sess.ActorID,
		UpdatedAt: s.now(),
	}
	if err := s.store.UpsertPayout(ctx, p); err != nil {
		return ledger.Summary{}, err
	}
	s.publish(ctx, sess, core.ActionUpdate, TablePayouts, payoutRecordID(memberID, sess.PeriodID), sess.PeriodID)

	return s.Summary(ctx, sess)
}

// Summary computes the dashboard figures of the session's period.
func (s *LedgerService) Summary(ctx context.Context, sess core.Session) (ledger.Summary, error) {
	if !sess.HasActivePeriod() {
		return ledger.Summary{}, core.Conflict("no active contribution period selected")
	}
	snap, err := loadSnapshot(ctx, s.store, sess.PeriodID, s.now())
	if err != nil {
		return ledger.Summary{}, err
	}
	return ledger.Summarize(snap.Period.ID, snap.Contributions, snap.Payouts, snap.Members), nil
}

// Export renders [from, to] of the session's period. A zero bound defaults
// to the first or last active month.
func (s *LedgerService) Export(ctx context.Context, sess core.Session, from, to core.Month) (export.Artifacts, error) {
	if !sess.HasActivePeriod() {
		return export.Artifacts{}, core.Conflict("no active contribution period selected")
	}
	snap, err := loadSnapshot(ctx, s.store, sess.PeriodID, s.now())
	if err != nil {
		return export.Artifacts{}, err
	}
	if len(snap.Months) == 0 {
		return export.Artifacts{}, core.Conflict("ledger for %d is not initialized", snap.Period.Year)
	}
	if from.IsZero() {
		from = snap.Months[0]
	}
	if to.IsZero() {
		to = snap.Months[len(snap.Months)-1]
	}
	m := ledger.New(snap.Period.ID, snap.Members, snap.Contributions, snap.Months)
	artifacts, err := export.Build(snap.Members, snap.Months, from, to, m)
	if err != nil {
		return export.Artifacts{}, err
	}
	logger(ctx).InfoContext(ctx, "Ledger exported",
		log.FieldPeriodID, snap.Period.ID,
		log.FieldOperation, log.OpExport,
		"from", from.String(),
		"to", to.String())
	return artifacts, nil
}

// LedgerTable renders the full active range of a period as a header and
// rows for mirroring to an external sheet.
func (s *LedgerService) LedgerTable(ctx context.Context, periodID string) (title string, header []string, rows [][]any, err error) {
	snap, err := loadSnapshot(ctx, s.store, periodID, s.now())
	if err != nil {
		return "", nil, nil, err
	}
	m := ledger.New(snap.Period.ID, snap.Members, snap.Contributions, snap.Months)
	table := export.BuildTable(snap.Members, snap.Months, m)

	all := append(append([]export.TableRow(nil), table.Rows...), table.Totals)
	rows = make([][]any, 0, len(all))
	for _, r := range all {
		row := make([]any, 0, len(r.Amounts)+2)
		row = append(row, r.Name)
		for _, a := range r.Amounts {
			row = append(row, a.Major())
		}
		rows = append(rows, append(row, r.Total.Major()))
	}
	return strconv.Itoa(snap.Period.Year), table.Header(), rows, nil
}

// Audit returns the most recent recorded facts.
func (s *LedgerService) Audit(ctx context.Context, limit int) ([]core.AuditFact, error) {
	return s.store.ListAudit(ctx, limit)
}

// publish emits an audit fact. A failure is logged and never fails the
// write that produced it.
func (s *LedgerService) publish(ctx context.Context, sess core.Session, action core.AuditAction, table, recordID, periodID string) {
	publishFact(ctx, s.audit, s.now(), sess, action, table, recordID, periodID)
}

func publishFact(ctx context.Context, pub AuditPublisher, at time.Time, sess core.Session, action core.AuditAction, table, recordID, periodID string) {
	f := core.AuditFact{
		ID:       uuid.NewString(),
		ActorID:  sess.ActorID,
		Action:   action,
		Table:    table,
		RecordID: recordID,
		At:       at,
	}
	if err := pub.PublishAuditFact(ctx, f, periodID); err != nil {
		log.NewStructuredLogger(logger(ctx)).LogError(ctx, "Failed to publish audit fact", err,
			log.ComponentLedger, log.OpPublish,
			log.NewFields().WithActor(sess.ActorID, sess.Role.String()))
	}
}
