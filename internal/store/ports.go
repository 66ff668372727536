package store

import (
	"context"

	"mkoba/internal/core"
)

// Ports for outbound persistence adapters. Implementations return
// core.ErrNotFound (wrapped) for missing rows.
type (
	PeriodStore interface {
		GetPeriod(ctx context.Context, id string) (core.Period, error)
		// ListPeriods returns periods ordered by year, newest first.
		ListPeriods(ctx context.Context) ([]core.Period, error)
		CreatePeriod(ctx context.Context, p core.Period) error
		// SetPeriodStartMonth succeeds only while the start month is unset.
		SetPeriodStartMonth(ctx context.Context, id string, m core.Month) error
		SetPeriodHorizon(ctx context.Context, id string, m core.Month) error
	}

	// ContributionStore persists the ledger matrix.
	ContributionStore interface {
		// ListContributions returns every record of the period in no
		// particular order.
		ListContributions(ctx context.Context, periodID string) ([]core.Contribution, error)
		// UpsertContribution writes or overwrites the record keyed by
		// (MemberID, PeriodID, Month). The last write wins.
		UpsertContribution(ctx context.Context, c core.Contribution) error
	}

	MemberStore interface {
		// ListMembers returns members in creation order.
		ListMembers(ctx context.Context) ([]core.Member, error)
		GetMember(ctx context.Context, id string) (core.Member, error)
		CreateMember(ctx context.Context, m core.Member) error
		UpdateMember(ctx context.Context, m core.Member) error
		DeleteMember(ctx context.Context, id string) error
		// CountMemberContributions counts contributions across all periods.
		CountMemberContributions(ctx context.Context, memberID string) (int, error)
	}

	PayoutStore interface {
		ListPayouts(ctx context.Context, periodID string) ([]core.Payout, error)
		// UpsertPayout writes or overwrites the record keyed by (MemberID, PeriodID).
		UpsertPayout(ctx context.Context, p core.Payout) error
		// CountMemberPayouts counts payouts across all periods.
		CountMemberPayouts(ctx context.Context, memberID string) (int, error)
	}

	AuditStore interface {
		RecordAudit(ctx context.Context, f core.AuditFact) error
		// ListAudit returns the newest facts first.
		ListAudit(ctx context.Context, limit int) ([]core.AuditFact, error)
	}

	// Store is the full persistence contract a backend provides.
	Store interface {
		PeriodStore
		ContributionStore
		MemberStore
		PayoutStore
		AuditStore
		Ping(ctx context.Context) error
	}

	// LedgerPublisher mirrors a rendered ledger table to an external sheet.
	LedgerPublisher interface {
		PublishLedger(ctx context.Context, title string, header []string, rows [][]any) error
	}
)
