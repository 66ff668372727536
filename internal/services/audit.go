package services

import (
	"context"
	"fmt"

	"mkoba/internal/core"
	"mkoba/internal/log"
	"mkoba/internal/store"
)

// Audit table names carried on facts.
const (
	TableContributions = "contributions"
	TablePayouts       = "payouts"
	TablePeriods       = "contribution_periods"
	TableMembers       = "members"
)

// AuditPublisher hands audit facts to whatever records them. periodID is
// empty for facts not tied to a period.
type AuditPublisher interface {
	PublishAuditFact(ctx context.Context, f core.AuditFact, periodID string) error
}

// StoreAuditPublisher records facts synchronously in the store. It is used
// when no message broker is configured.
type StoreAuditPublisher struct {
	store store.AuditStore
}

func NewStoreAuditPublisher(s store.AuditStore) *StoreAuditPublisher {
	return &StoreAuditPublisher{store: s}
}

func (p *StoreAuditPublisher) PublishAuditFact(ctx context.Context, f core.AuditFact, _ string) error {
	if err := p.store.RecordAudit(ctx, f); err != nil {
		return fmt.Errorf("record audit fact: %w", err)
	}
	return nil
}

func contributionRecordID(memberID, periodID string, month core.Month) string {
	return memberID + "/" + periodID + "/" + month.String()
}

func payoutRecordID(memberID, periodID string) string {
	return memberID + "/" + periodID
}

// logger returns the request logger, or a ledger-labelled default outside
// the HTTP stack.
func logger(ctx context.Context) *log.Logger {
	return log.FromContextOr(ctx, log.ComponentLedger)
}
