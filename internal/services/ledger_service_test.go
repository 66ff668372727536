package services

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mkoba/internal/core"
	"mkoba/internal/store/memory"
)

// April 2025 is "now" in every test.
func fixedClock() time.Time { return time.Date(2025, 4, 15, 12, 0, 0, 0, time.UTC) }

type recordingPublisher struct {
	facts   []core.AuditFact
	periods []string
	err     error
}

func (p *recordingPublisher) PublishAuditFact(_ context.Context, f core.AuditFact, periodID string) error {
	if p.err != nil {
		return p.err
	}
	p.facts = append(p.facts, f)
	p.periods = append(p.periods, periodID)
	return nil
}

type fixture struct {
	store  *memory.Store
	ledger *LedgerService
	pub    *recordingPublisher
	period core.Period
	amina  core.Member
	juma   core.Member
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	st := memory.New()
	st.SetClock(fixedClock)
	pub := &recordingPublisher{}

	f := &fixture{
		store:  st,
		ledger: NewLedgerService(st, pub),
		pub:    pub,
		period: core.Period{ID: "p2025", Year: 2025},
		amina:  core.Member{ID: "m1", Name: "Amina", Role: core.RoleMember, Active: true},
		juma:   core.Member{ID: "m2", Name: "Juma", Role: core.RoleMember, Active: true},
	}
	f.ledger.SetClock(fixedClock)
	require.NoError(t, st.CreatePeriod(ctx, f.period))
	require.NoError(t, st.CreateMember(ctx, f.amina))
	require.NoError(t, st.CreateMember(ctx, f.juma))
	return f
}

func (f *fixture) session(role core.Role) core.Session {
	return core.Session{ActorID: "actor-" + string(role), Role: role, PeriodID: f.period.ID}
}

func (f *fixture) initialize(t *testing.T, start string) {
	t.Helper()
	_, err := f.ledger.InitializePeriod(context.Background(), f.session(core.RoleChairperson), core.MustMonth(start))
	require.NoError(t, err)
}

func monthStrings(ms []core.Month) []string {
	out := make([]string, 0, len(ms))
	for _, m := range ms {
		out = append(out, m.String())
	}
	return out
}

func TestView_UninitializedPeriod(t *testing.T) {
	f := newFixture(t)

	view, err := f.ledger.View(context.Background(), f.session(core.RoleMember), "")
	require.NoError(t, err)
	assert.False(t, view.Initialized)
	assert.Empty(t, view.Months)
	assert.False(t, view.CanEdit)
	assert.Len(t, view.Rows, 2)
}

func TestView_RequiresPeriod(t *testing.T) {
	f := newFixture(t)
	_, err := f.ledger.View(context.Background(), core.Session{ActorID: "u"}, "")

	var pe *core.PreconditionError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, core.KindState, pe.Kind)
}

func TestInitializePeriod(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	view, err := f.ledger.InitializePeriod(ctx, f.session(core.RoleTreasurer), core.MustMonth("2025-01"))
	require.NoError(t, err)
	assert.True(t, view.Initialized)
	assert.Equal(t, []string{"2025-01", "2025-02", "2025-03", "2025-04"}, monthStrings(view.Months))
	assert.True(t, view.CanEdit)

	_, err = f.ledger.InitializePeriod(ctx, f.session(core.RoleTreasurer), core.MustMonth("2025-02"))
	var pe *core.PreconditionError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, core.KindState, pe.Kind)

	require.Len(t, f.pub.facts, 1)
	assert.Equal(t, TablePeriods, f.pub.facts[0].Table)
}

func TestInitializePeriod_Rejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.ledger.InitializePeriod(ctx, f.session(core.RoleMember), core.MustMonth("2025-01"))
	var pe *core.PreconditionError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, core.KindPermission, pe.Kind)

	_, err = f.ledger.InitializePeriod(ctx, f.session(core.RoleTreasurer), core.MustMonth("2025-05"))
	var ve *core.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "start_month", ve.Field)

	p, err := f.store.GetPeriod(ctx, f.period.ID)
	require.NoError(t, err)
	assert.False(t, p.Initialized(), "rejected initialization leaves the period untouched")
}

func TestSetContribution(t *testing.T) {
	f := newFixture(t)
	f.initialize(t, "2025-01")
	ctx := context.Background()
	sess := f.session(core.RoleTreasurer)

	view, err := f.ledger.SetContribution(ctx, sess, f.amina.ID, core.MustMonth("2025-01"), core.Money{Cents: 500000})
	require.NoError(t, err)
	assert.Equal(t, int64(500000), view.Footer.GrandTotal.Cents)
	assert.Equal(t, int64(500000), view.Rows[0].Total.Cents)
	assert.True(t, view.Rows[0].Cells[0].Recorded)
	assert.False(t, view.Rows[1].Cells[0].Recorded)

	// Same value again is idempotent
	_, err = f.ledger.SetContribution(ctx, sess, f.amina.ID, core.MustMonth("2025-01"), core.Money{Cents: 500000})
	require.NoError(t, err)
	cs, err := f.store.ListContributions(ctx, f.period.ID)
	require.NoError(t, err)
	require.Len(t, cs, 1)
	assert.Equal(t, "actor-treasurer", cs[0].UpdatedBy)

	// Audit facts: one create, then an update of the same key
	require.Len(t, f.pub.facts, 3)
	assert.Equal(t, core.ActionCreate, f.pub.facts[1].Action)
	assert.Equal(t, core.ActionUpdate, f.pub.facts[2].Action)
	assert.Equal(t, "m1/p2025/2025-01", f.pub.facts[2].RecordID)
	assert.Equal(t, f.period.ID, f.pub.periods[2])
}

func TestSetContribution_LastWriteWins(t *testing.T) {
	f := newFixture(t)
	f.initialize(t, "2025-01")
	ctx := context.Background()

	_, err := f.ledger.SetContribution(ctx, f.session(core.RoleTreasurer), f.juma.ID, core.MustMonth("2025-02"), core.Money{Cents: 100000})
	require.NoError(t, err)
	view, err := f.ledger.SetContribution(ctx, f.session(core.RoleChairperson), f.juma.ID, core.MustMonth("2025-02"), core.Money{Cents: 200000})
	require.NoError(t, err)

	assert.Equal(t, int64(200000), view.Rows[1].Total.Cents)
	assert.Equal(t, int64(200000), view.Footer.MonthTotals[1].Cents)
}

func TestSetContribution_Rejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	jan := core.MustMonth("2025-01")

	tests := []struct {
		name    string
		sess    core.Session
		member  string
		month   core.Month
		amount  int64
		init    bool
		wantErr func(t *testing.T, err error)
	}{
		{
			name: "uninitialized ledger", sess: f.session(core.RoleTreasurer), member: f.amina.ID, month: jan,
			wantErr: wantPrecondition(core.KindState),
		},
		{
			name: "member role denied", sess: f.session(core.RoleMember), member: f.amina.ID, month: jan, init: true,
			wantErr: wantPrecondition(core.KindPermission),
		},
		{
			name: "secretary denied", sess: f.session(core.RoleSecretary), member: f.amina.ID, month: jan, init: true,
			wantErr: wantPrecondition(core.KindPermission),
		},
		{
			name: "no period selected", sess: core.Session{ActorID: "u", Role: core.RoleTreasurer}, member: f.amina.ID, month: jan, init: true,
			wantErr: wantPrecondition(core.KindState),
		},
		{
			name: "negative amount", sess: f.session(core.RoleTreasurer), member: f.amina.ID, month: jan, amount: -1, init: true,
			wantErr: wantValidation("amount"),
		},
		{
			name: "month outside sequence", sess: f.session(core.RoleTreasurer), member: f.amina.ID, month: core.MustMonth("2025-05"), init: true,
			wantErr: wantValidation("month"),
		},
		{
			name: "unknown member", sess: f.session(core.RoleTreasurer), member: "ghost", month: jan, init: true,
			wantErr: wantValidation("member_id"),
		},
	}

	// Cases needing an uninitialized period come first.
	initialized := false
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.init && !initialized {
				f.initialize(t, "2025-01")
				initialized = true
			}
			_, err := f.ledger.SetContribution(ctx, tt.sess, tt.member, tt.month, core.Money{Cents: tt.amount})
			tt.wantErr(t, err)

			cs, listErr := f.store.ListContributions(ctx, f.period.ID)
			require.NoError(t, listErr)
			assert.Empty(t, cs, "rejected writes never reach the store")
		})
	}
}

func wantPrecondition(kind core.PreconditionKind) func(*testing.T, error) {
	return func(t *testing.T, err error) {
		t.Helper()
		var pe *core.PreconditionError
		require.ErrorAs(t, err, &pe)
		assert.Equal(t, kind, pe.Kind)
	}
}

func wantValidation(field string) func(*testing.T, error) {
	return func(t *testing.T, err error) {
		t.Helper()
		var ve *core.ValidationError
		require.ErrorAs(t, err, &ve)
		assert.Equal(t, field, ve.Field)
	}
}

// failingWrites fails every contribution upsert after the fact.
type failingWrites struct {
	*memory.Store
}

func (failingWrites) UpsertContribution(context.Context, core.Contribution) error {
	return &core.StoreError{Op: "upsert contribution", Err: context.DeadlineExceeded}
}

func TestSetContribution_StoreFailureNotApplied(t *testing.T) {
	f := newFixture(t)
	f.initialize(t, "2025-01")
	ctx := context.Background()
	svc := NewLedgerService(failingWrites{f.store}, f.pub)
	svc.SetClock(fixedClock)
	published := len(f.pub.facts)

	_, err := svc.SetContribution(ctx, f.session(core.RoleTreasurer), f.amina.ID, core.MustMonth("2025-01"), core.Money{Cents: 500000})
	var se *core.StoreError
	require.ErrorAs(t, err, &se)
	assert.True(t, se.Timeout())

	view, err := f.ledger.View(ctx, f.session(core.RoleTreasurer), "")
	require.NoError(t, err)
	assert.Zero(t, view.Footer.GrandTotal.Cents)
	assert.Len(t, f.pub.facts, published, "no audit fact for a failed write")
}

func TestSetContribution_PublishFailureDoesNotFailWrite(t *testing.T) {
	f := newFixture(t)
	f.initialize(t, "2025-01")
	f.pub.err = errors.New("broker down")

	view, err := f.ledger.SetContribution(context.Background(), f.session(core.RoleTreasurer), f.amina.ID, core.MustMonth("2025-01"), core.Money{Cents: 100})
	require.NoError(t, err)
	assert.Equal(t, int64(100), view.Footer.GrandTotal.Cents)
}

func TestAppendMonth(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.ledger.AppendMonth(ctx, f.session(core.RoleTreasurer))
	var pe *core.PreconditionError
	require.ErrorAs(t, err, &pe, "uninitialized ledger cannot be extended")

	f.initialize(t, "2025-01")
	_, err = f.ledger.AppendMonth(ctx, f.session(core.RoleTreasurer))
	require.NoError(t, err)
	view, err := f.ledger.AppendMonth(ctx, f.session(core.RoleTreasurer))
	require.NoError(t, err)
	assert.Equal(t, []string{"2025-01", "2025-02", "2025-03", "2025-04", "2025-05", "2025-06"}, monthStrings(view.Months))

	// The horizon survives a fresh read
	again, err := f.ledger.View(ctx, f.session(core.RoleMember), "")
	require.NoError(t, err)
	assert.Len(t, again.Months, 6)

	_, err = f.ledger.SetContribution(ctx, f.session(core.RoleTreasurer), f.amina.ID, core.MustMonth("2025-06"), core.Money{Cents: 100})
	assert.NoError(t, err, "appended months accept contributions")
}

func TestView_SearchNarrowsRowsAndTotals(t *testing.T) {
	f := newFixture(t)
	f.initialize(t, "2025-04")
	ctx := context.Background()
	sess := f.session(core.RoleTreasurer)
	apr := core.MustMonth("2025-04")

	_, err := f.ledger.SetContribution(ctx, sess, f.amina.ID, apr, core.Money{Cents: 100})
	require.NoError(t, err)
	_, err = f.ledger.SetContribution(ctx, sess, f.juma.ID, apr, core.Money{Cents: 200})
	require.NoError(t, err)

	view, err := f.ledger.View(ctx, sess, "JUM")
	require.NoError(t, err)
	require.Len(t, view.Rows, 1)
	assert.Equal(t, "Juma", view.Rows[0].Member.Name)
	assert.Equal(t, int64(200), view.Footer.GrandTotal.Cents)
}

func TestRecordPayoutAndSummary(t *testing.T) {
	f := newFixture(t)
	f.initialize(t, "2025-01")
	ctx := context.Background()
	sess := f.session(core.RoleTreasurer)

	for _, m := range []string{"2025-01", "2025-02"} {
		_, err := f.ledger.SetContribution(ctx, sess, f.amina.ID, core.MustMonth(m), core.Money{Cents: 500000})
		require.NoError(t, err)
	}
	summary, err := f.ledger.RecordPayout(ctx, sess, f.juma.ID, core.Money{Cents: 250000})
	require.NoError(t, err)

	assert.Equal(t, int64(1000000), summary.TotalCollected.Cents)
	assert.Equal(t, int64(250000), summary.TotalDisbursed.Cents)
	assert.Equal(t, int64(750000), summary.NetBalance.Cents)
	assert.Equal(t, 2, summary.MemberCount)
	assert.Equal(t, 1, summary.PayoutCount)
	assert.Equal(t, int64(75), summary.LiquidityPercent())

	_, err = f.ledger.RecordPayout(ctx, f.session(core.RoleSecretary), f.juma.ID, core.Money{Cents: 1})
	var pe *core.PreconditionError
	assert.ErrorAs(t, err, &pe)

	_, err = f.ledger.RecordPayout(ctx, sess, "ghost", core.Money{Cents: 1})
	var ve *core.ValidationError
	assert.ErrorAs(t, err, &ve)
}

func TestExport(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sess := f.session(core.RoleMember)

	_, err := f.ledger.Export(ctx, sess, core.Month{}, core.Month{})
	var pe *core.PreconditionError
	require.ErrorAs(t, err, &pe, "nothing to export before initialization")

	f.initialize(t, "2025-01")
	art, err := f.ledger.Export(ctx, sess, core.Month{}, core.Month{})
	require.NoError(t, err)
	assert.NotEmpty(t, art.Spreadsheet)
	assert.NotEmpty(t, art.Document)

	_, err = f.ledger.Export(ctx, sess, core.MustMonth("2025-03"), core.MustMonth("2025-02"))
	var ve *core.ValidationError
	assert.ErrorAs(t, err, &ve)
}

func TestLedgerTable(t *testing.T) {
	f := newFixture(t)
	f.initialize(t, "2025-03")
	ctx := context.Background()
	_, err := f.ledger.SetContribution(ctx, f.session(core.RoleTreasurer), f.amina.ID, core.MustMonth("2025-03"), core.Money{Cents: 150})
	require.NoError(t, err)

	title, header, rows, err := f.ledger.LedgerTable(ctx, f.period.ID)
	require.NoError(t, err)
	assert.Equal(t, "2025", title)
	assert.Equal(t, []string{"Name", "2025-03", "2025-04", "Total"}, header)
	require.Len(t, rows, 3)
	assert.Equal(t, []any{"Amina", 1.5, 0.0, 1.5}, rows[0])
	assert.Equal(t, "GRAND TOTAL", rows[2][0])
}

func TestCreatePeriod(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sess := core.Session{ActorID: "u", Role: core.RoleChairperson}

	p, err := f.ledger.CreatePeriod(ctx, sess, 2026)
	require.NoError(t, err)
	assert.Equal(t, 2026, p.Year)
	assert.False(t, p.Initialized())

	_, err = f.ledger.CreatePeriod(ctx, sess, 2026)
	var pe *core.PreconditionError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, core.KindState, pe.Kind)

	_, err = f.ledger.CreatePeriod(ctx, core.Session{ActorID: "u", Role: core.RoleMember}, 2027)
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, core.KindPermission, pe.Kind)

	periods, err := f.ledger.ListPeriods(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2026, periods[0].Year)
}

func TestStoreAuditPublisher(t *testing.T) {
	st := memory.New()
	svc := NewLedgerService(st, nil)
	svc.SetClock(fixedClock)
	ctx := context.Background()

	_, err := svc.CreatePeriod(ctx, core.Session{ActorID: "u", Role: core.RoleTreasurer}, 2025)
	require.NoError(t, err)

	facts, err := svc.Audit(ctx, 10)
	require.NoError(t, err)
	require.Len(t, facts, 1)
	assert.Equal(t, "u", facts[0].ActorID)
	assert.Equal(t, TablePeriods, facts[0].Table)
}

func TestServiceLogsCarryLedgerComponent(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })

	f := newFixture(t)
	f.initialize(t, "2025-01")
	assert.Contains(t, buf.String(), `msg="Ledger initialized" component=ledger`)
}
