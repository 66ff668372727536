package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"mkoba/internal/core"
	"mkoba/internal/store"

	_ "modernc.org/sqlite"
)

var _ store.Store = (*SQLiteRepository)(nil)

const timeLayout = time.RFC3339Nano

// SQLiteRepository persists the ledger in a single SQLite file.
type SQLiteRepository struct {
	db  *sql.DB
	now core.Clock
}

// DSN builds the connection string for path with foreign keys, WAL and a
// busy timeout enabled on every pooled connection.
func DSN(path string) string {
	return "file:" + path + "?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	dsn := DSN(dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dsn); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db, now: core.SystemClock}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// SetClock overrides the clock used to stamp records.
func (r *SQLiteRepository) SetClock(c core.Clock) { r.now = c }

func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Periods

func (r *SQLiteRepository) GetPeriod(ctx context.Context, id string) (core.Period, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, year, start_month, horizon_end, created_at FROM periods WHERE id = ?`, id)
	p, err := scanPeriod(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Period{}, fmt.Errorf("period %s: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.Period{}, fmt.Errorf("getting period %s: %w", id, err)
	}
	return p, nil
}

func (r *SQLiteRepository) ListPeriods(ctx context.Context) ([]core.Period, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, year, start_month, horizon_end, created_at FROM periods ORDER BY year DESC`)
	if err != nil {
		return nil, fmt.Errorf("listing periods: %w", err)
	}
	defer rows.Close()

	var out []core.Period
	for rows.Next() {
		p, err := scanPeriod(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning period: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) CreatePeriod(ctx context.Context, p core.Period) error {
	if err := p.Validate(); err != nil {
		return err
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = r.now()
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO periods (id, year, start_month, horizon_end, created_at) VALUES (?, ?, ?, ?, ?)`,
		p.ID, p.Year, nullableMonth(p.StartMonth), nullableMonth(p.HorizonEnd), p.CreatedAt.UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("inserting period: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) SetPeriodStartMonth(ctx context.Context, id string, m core.Month) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE periods SET start_month = ? WHERE id = ? AND start_month IS NULL`, m.String(), id)
	if err != nil {
		return fmt.Errorf("setting period start month: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("setting period start month: %w", err)
	}
	if n == 1 {
		return nil
	}
	// Nothing changed: either the period is missing or already initialized
	p, err := r.GetPeriod(ctx, id)
	if err != nil {
		return err
	}
	return core.Conflict("period %s start month already set to %s", id, p.StartMonth)
}

func (r *SQLiteRepository) SetPeriodHorizon(ctx context.Context, id string, m core.Month) error {
	res, err := r.db.ExecContext(ctx, `UPDATE periods SET horizon_end = ? WHERE id = ?`, m.String(), id)
	if err != nil {
		return fmt.Errorf("setting period horizon: %w", err)
	}
	return expectOne(res, "period", id)
}

// Contributions

func (r *SQLiteRepository) ListContributions(ctx context.Context, periodID string) ([]core.Contribution, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT member_id, period_id, month, amount_cents, updated_by, updated_at
		FROM contributions WHERE period_id = ?`, periodID)
	if err != nil {
		return nil, fmt.Errorf("listing contributions: %w", err)
	}
	defer rows.Close()

	var out []core.Contribution
	for rows.Next() {
		var (
			c                core.Contribution
			month, updatedAt string
		)
		if err := rows.Scan(&c.MemberID, &c.PeriodID, &month, &c.Amount.Cents, &c.UpdatedBy, &updatedAt); err != nil {
			return nil, fmt.Errorf("scanning contribution: %w", err)
		}
		if c.Month, err = core.ParseMonth(month); err != nil {
			return nil, fmt.Errorf("scanning contribution month: %w", err)
		}
		c.UpdatedAt = parseTime(updatedAt)
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) UpsertContribution(ctx context.Context, c core.Contribution) error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.UpdatedAt.IsZero() {
		c.UpdatedAt = r.now()
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO contributions (member_id, period_id, month, amount_cents, updated_by, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (member_id, period_id, month) DO UPDATE SET
			amount_cents = excluded.amount_cents,
			updated_by = excluded.updated_by,
			updated_at = excluded.updated_at`,
		c.MemberID, c.PeriodID, c.Month.String(), c.Amount.Cents, c.UpdatedBy, c.UpdatedAt.UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("upserting contribution: %w", err)
	}
	slog.DebugContext(ctx, "Contribution saved to SQLite",
		"member_id", c.MemberID,
		"period_id", c.PeriodID,
		"month", c.Month.String(),
		"amount_cents", c.Amount.Cents)
	return nil
}

// Members

const memberColumns = `id, name, phone, role, active, created_at`

func (r *SQLiteRepository) ListMembers(ctx context.Context) ([]core.Member, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+memberColumns+` FROM members ORDER BY created_at, rowid`)
	if err != nil {
		return nil, fmt.Errorf("listing members: %w", err)
	}
	defer rows.Close()

	var out []core.Member
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning member: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) GetMember(ctx context.Context, id string) (core.Member, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+memberColumns+` FROM members WHERE id = ?`, id)
	m, err := scanMember(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Member{}, fmt.Errorf("member %s: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.Member{}, fmt.Errorf("getting member %s: %w", id, err)
	}
	return m, nil
}

func (r *SQLiteRepository) CreateMember(ctx context.Context, m core.Member) error {
	if err := m.Validate(); err != nil {
		return err
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = r.now()
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO members (`+memberColumns+`) VALUES (?, ?, ?, ?, ?, ?)`,
		m.ID, m.Name, m.Phone, string(m.Role), boolToInt(m.Active), m.CreatedAt.UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("inserting member: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) UpdateMember(ctx context.Context, m core.Member) error {
	if err := m.Validate(); err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE members SET name = ?, phone = ?, role = ?, active = ? WHERE id = ?`,
		m.Name, m.Phone, string(m.Role), boolToInt(m.Active), m.ID)
	if err != nil {
		return fmt.Errorf("updating member: %w", err)
	}
	return expectOne(res, "member", m.ID)
}

func (r *SQLiteRepository) DeleteMember(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM members WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting member: %w", err)
	}
	return expectOne(res, "member", id)
}

func (r *SQLiteRepository) CountMemberContributions(ctx context.Context, memberID string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM contributions WHERE member_id = ?`, memberID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting member contributions: %w", err)
	}
	return n, nil
}

// Payouts

func (r *SQLiteRepository) CountMemberPayouts(ctx context.Context, memberID string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM payouts WHERE member_id = ?`, memberID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting member payouts: %w", err)
	}
	return n, nil
}

func (r *SQLiteRepository) ListPayouts(ctx context.Context, periodID string) ([]core.Payout, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT member_id, period_id, amount_cents, updated_by, updated_at
		FROM payouts WHERE period_id = ?`, periodID)
	if err != nil {
		return nil, fmt.Errorf("listing payouts: %w", err)
	}
	defer rows.Close()

	var out []core.Payout
	for rows.Next() {
		var (
			p         core.Payout
			updatedAt string
		)
		if err := rows.Scan(&p.MemberID, &p.PeriodID, &p.Amount.Cents, &p.UpdatedBy, &updatedAt); err != nil {
			return nil, fmt.Errorf("scanning payout: %w", err)
		}
		p.UpdatedAt = parseTime(updatedAt)
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) UpsertPayout(ctx context.Context, p core.Payout) error {
	if err := p.Validate(); err != nil {
		return err
	}
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = r.now()
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO payouts (member_id, period_id, amount_cents, updated_by, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (member_id, period_id) DO UPDATE SET
			amount_cents = excluded.amount_cents,
			updated_by = excluded.updated_by,
			updated_at = excluded.updated_at`,
		p.MemberID, p.PeriodID, p.Amount.Cents, p.UpdatedBy, p.UpdatedAt.UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("upserting payout: %w", err)
	}
	return nil
}

// Audit

func (r *SQLiteRepository) RecordAudit(ctx context.Context, f core.AuditFact) error {
	if f.At.IsZero() {
		f.At = r.now()
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO audit_log (id, actor_id, action, table_name, record_id, at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO NOTHING`,
		f.ID, f.ActorID, string(f.Action), f.Table, f.RecordID, f.At.UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("inserting audit fact: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) ListAudit(ctx context.Context, limit int) ([]core.AuditFact, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, actor_id, action, table_name, record_id, at
		FROM audit_log ORDER BY rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing audit facts: %w", err)
	}
	defer rows.Close()

	var out []core.AuditFact
	for rows.Next() {
		var (
			f          core.AuditFact
			action, at string
		)
		if err := rows.Scan(&f.ID, &f.ActorID, &action, &f.Table, &f.RecordID, &at); err != nil {
			return nil, fmt.Errorf("scanning audit fact: %w", err)
		}
		f.Action = core.AuditAction(action)
		f.At = parseTime(at)
		out = append(out, f)
	}
	return out, rows.Err()
}

// helpers

type scanner interface {
	Scan(dest ...any) error
}

func scanPeriod(s scanner) (core.Period, error) {
	var (
		p              core.Period
		start, horizon sql.NullString
		createdAt      string
	)
	if err := s.Scan(&p.ID, &p.Year, &start, &horizon, &createdAt); err != nil {
		return core.Period{}, err
	}
	var err error
	if p.StartMonth, err = parseNullableMonth(start); err != nil {
		return core.Period{}, err
	}
	if p.HorizonEnd, err = parseNullableMonth(horizon); err != nil {
		return core.Period{}, err
	}
	p.CreatedAt = parseTime(createdAt)
	return p, nil
}

func scanMember(s scanner) (core.Member, error) {
	var (
		m               core.Member
		role, createdAt string
		active          int
	)
	if err := s.Scan(&m.ID, &m.Name, &m.Phone, &role, &active, &createdAt); err != nil {
		return core.Member{}, err
	}
	m.Role = core.Role(role)
	m.Active = active != 0
	m.CreatedAt = parseTime(createdAt)
	return m, nil
}

func expectOne(res sql.Result, kind, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s %s: %w", kind, id, err)
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", kind, id, core.ErrNotFound)
	}
	return nil
}

func nullableMonth(m *core.Month) any {
	if m == nil {
		return nil
	}
	return m.String()
}

func parseNullableMonth(s sql.NullString) (*core.Month, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	m, err := core.ParseMonth(s.String)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
