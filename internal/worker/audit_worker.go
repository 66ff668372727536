package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"mkoba/internal/amqp"
	"mkoba/internal/cache"
	"mkoba/internal/log"
	"mkoba/internal/services"
	"mkoba/internal/store"
)

// Tables whose facts change the rendered ledger of a period.
var ledgerTables = map[string]bool{
	services.TableContributions: true,
	services.TablePayouts:       true,
	services.TablePeriods:       true,
}

// Redelivered facts seen within this window skip the mirror republish.
const (
	seenCapacity = 4096
	seenTTL      = time.Hour
)

// LedgerTabler renders the full ledger of a period for mirroring.
type LedgerTabler interface {
	LedgerTable(ctx context.Context, periodID string) (title string, header []string, rows [][]any, err error)
}

// AuditWorker records audit facts consumed from the broker and, when a
// sheet mirror is configured, republishes the affected period's ledger.
type AuditWorker struct {
	audit   store.AuditStore
	periods store.PeriodStore
	tables  LedgerTabler
	mirror  store.LedgerPublisher
	seen    *cache.LRUCache[struct{}]
}

// NewAuditWorker wires the worker. mirror may be nil.
func NewAuditWorker(audit store.AuditStore, periods store.PeriodStore, tables LedgerTabler, mirror store.LedgerPublisher) *AuditWorker {
	return &AuditWorker{
		audit:   audit,
		periods: periods,
		tables:  tables,
		mirror:  mirror,
		seen:    cache.NewLRUCache[struct{}](seenCapacity, seenTTL),
	}
}

// HandleFact processes a single audit fact message from AMQP. Recording is
// idempotent on the fact ID so redelivered messages are harmless. A fact is
// remembered only once fully handled, so a failed mirror is retried on
// redelivery.
func (w *AuditWorker) HandleFact(ctx context.Context, msg *amqp.AuditFactMessage) error {
	if _, dup := w.seen.Get(msg.ID); dup {
		slog.DebugContext(ctx, "Skipping already handled audit fact", log.FieldAuditID, msg.ID)
		return nil
	}

	slog.InfoContext(ctx, "Processing audit fact",
		log.FieldAuditID, msg.ID,
		"table", msg.Table,
		"action", msg.Action)

	if err := w.audit.RecordAudit(ctx, msg.Fact()); err != nil {
		return fmt.Errorf("record audit fact: %w", err)
	}

	if w.mirror != nil && msg.PeriodID != "" && ledgerTables[msg.Table] {
		if err := w.mirrorPeriod(ctx, msg.PeriodID); err != nil {
			return fmt.Errorf("mirror period %s: %w", msg.PeriodID, err)
		}
	}
	w.seen.Set(msg.ID, struct{}{})
	return nil
}

// StartupSync mirrors every initialized period once. It recovers sheets
// that missed updates while the worker was down.
func (w *AuditWorker) StartupSync(ctx context.Context) error {
	if w.mirror == nil {
		return nil
	}
	periods, err := w.periods.ListPeriods(ctx)
	if err != nil {
		return fmt.Errorf("list periods for startup sync: %w", err)
	}

	synced, failed := 0, 0
	for _, p := range periods {
		if !p.Initialized() {
			continue
		}
		if err := w.mirrorPeriod(ctx, p.ID); err != nil {
			slog.ErrorContext(ctx, "Failed to mirror period during startup",
				log.FieldPeriodID, p.ID, "error", err)
			failed++
			continue
		}
		synced++
	}

	slog.InfoContext(ctx, "Startup sync completed",
		"total", len(periods),
		"synced", synced,
		"errors", failed)
	return nil
}

func (w *AuditWorker) mirrorPeriod(ctx context.Context, periodID string) error {
	title, header, rows, err := w.tables.LedgerTable(ctx, periodID)
	if err != nil {
		return fmt.Errorf("render ledger: %w", err)
	}
	if err := w.mirror.PublishLedger(ctx, title, header, rows); err != nil {
		return fmt.Errorf("publish ledger: %w", err)
	}
	slog.InfoContext(ctx, "Ledger mirrored",
		log.FieldPeriodID, periodID,
		"title", title,
		"rows", len(rows))
	return nil
}
