package adapters

import (
	"context"
	"errors"
	"time"

	"mkoba/internal/core"
	"mkoba/internal/store"
)

var _ store.Store = (*TimeoutStore)(nil)

// DefaultStoreTimeout bounds every persistence call when no timeout is configured.
const DefaultStoreTimeout = 5 * time.Second

// TimeoutStore adapts any store.Store so that each call runs under its own
// deadline and every infrastructure failure surfaces as *core.StoreError.
// Validation, precondition and not-found errors pass through unchanged.
// Calls are never retried.
type TimeoutStore struct {
	next    store.Store
	timeout time.Duration
}

func NewTimeoutStore(next store.Store, timeout time.Duration) *TimeoutStore {
	if timeout <= 0 {
		timeout = DefaultStoreTimeout
	}
	return &TimeoutStore{next: next, timeout: timeout}
}

// Unwrap returns the decorated store.
func (s *TimeoutStore) Unwrap() store.Store { return s.next }

// do runs fn under the store deadline. A backend that ignores ctx still
// yields a timeout error once the deadline passes; its late result is dropped.
func do[T any](s *TimeoutStore, ctx context.Context, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	type result struct {
		v   T
		err error
	}
	ch := make(chan result, 1)
	go func() {
		v, err := fn(ctx)
		ch <- result{v, err}
	}()

	select {
	case r := <-ch:
		return r.v, classify(op, r.err)
	case <-ctx.Done():
		var zero T
		return zero, &core.StoreError{Op: op, Err: ctx.Err()}
	}
}

func (s *TimeoutStore) exec(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	_, err := do(s, ctx, op, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	var (
		ve *core.ValidationError
		pe *core.PreconditionError
		se *core.StoreError
	)
	switch {
	case errors.As(err, &ve), errors.As(err, &pe), errors.As(err, &se), core.IsNotFound(err):
		return err
	}
	return &core.StoreError{Op: op, Err: err}
}

func (s *TimeoutStore) Ping(ctx context.Context) error {
	return s.exec(ctx, "ping", s.next.Ping)
}

func (s *TimeoutStore) GetPeriod(ctx context.Context, id string) (core.Period, error) {
	return do(s, ctx, "get period", func(ctx context.Context) (core.Period, error) {
		return s.next.GetPeriod(ctx, id)
	})
}

func (s *TimeoutStore) ListPeriods(ctx context.Context) ([]core.Period, error) {
	return do(s, ctx, "list periods", func(ctx context.Context) ([]core.Period, error) {
		return s.next.ListPeriods(ctx)
	})
}

func (s *TimeoutStore) CreatePeriod(ctx context.Context, p core.Period) error {
	return s.exec(ctx, "create period", func(ctx context.Context) error {
		return s.next.CreatePeriod(ctx, p)
	})
}

func (s *TimeoutStore) SetPeriodStartMonth(ctx context.Context, id string, m core.Month) error {
	return s.exec(ctx, "set period start month", func(ctx context.Context) error {
		return s.next.SetPeriodStartMonth(ctx, id, m)
	})
}

func (s *TimeoutStore) SetPeriodHorizon(ctx context.Context, id string, m core.Month) error {
	return s.exec(ctx, "set period horizon", func(ctx context.Context) error {
		return s.next.SetPeriodHorizon(ctx, id, m)
	})
}

func (s *TimeoutStore) ListContributions(ctx context.Context, periodID string) ([]core.Contribution, error) {
	return do(s, ctx, "list contributions", func(ctx context.Context) ([]core.Contribution, error) {
		return s.next.ListContributions(ctx, periodID)
	})
}

func (s *TimeoutStore) UpsertContribution(ctx context.Context, c core.Contribution) error {
	return s.exec(ctx, "upsert contribution", func(ctx context.Context) error {
		return s.next.UpsertContribution(ctx, c)
	})
}

func (s *TimeoutStore) ListMembers(ctx context.Context) ([]core.Member, error) {
	return do(s, ctx, "list members", func(ctx context.Context) ([]core.Member, error) {
		return s.next.ListMembers(ctx)
	})
}

func (s *TimeoutStore) GetMember(ctx context.Context, id string) (core.Member, error) {
	return do(s, ctx, "get member", func(ctx context.Context) (core.Member, error) {
		return s.next.GetMember(ctx, id)
	})
}

func (s *TimeoutStore) CreateMember(ctx context.Context, m core.Member) error {
	return s.exec(ctx, "create member", func(ctx context.Context) error {
		return s.next.CreateMember(ctx, m)
	})
}

func (s *TimeoutStore) UpdateMember(ctx context.Context, m core.Member) error {
	return s.exec(ctx, "update member", func(ctx context.Context) error {
		return s.next.UpdateMember(ctx, m)
	})
}

func (s *TimeoutStore) DeleteMember(ctx context.Context, id string) error {
	return s.exec(ctx, "delete member", func(ctx context.Context) error {
		return s.next.DeleteMember(ctx, id)
	})
}

func (s *TimeoutStore) CountMemberContributions(ctx context.Context, memberID string) (int, error) {
	return do(s, ctx, "count member contributions", func(ctx context.Context) (int, error) {
		return s.next.CountMemberContributions(ctx, memberID)
	})
}

func (s *TimeoutStore) CountMemberPayouts(ctx context.Context, memberID string) (int, error) {
	return do(s, ctx, "count member payouts", func(ctx context.Context) (int, error) {
		return s.next.CountMemberPayouts(ctx, memberID)
	})
}

func (s *TimeoutStore) ListPayouts(ctx context.Context, periodID string) ([]core.Payout, error) {
	return do(s, ctx, "list payouts", func(ctx context.Context) ([]core.Payout, error) {
		return s.next.ListPayouts(ctx, periodID)
	})
}

func (s *TimeoutStore) UpsertPayout(ctx context.Context, p core.Payout) error {
	return s.exec(ctx, "upsert payout", func(ctx context.Context) error {
		return s.next.UpsertPayout(ctx, p)
	})
}

func (s *TimeoutStore) RecordAudit(ctx context.Context, f core.AuditFact) error {
	return s.exec(ctx, "record audit", func(ctx context.Context) error {
		return s.next.RecordAudit(ctx, f)
	})
}

func (s *TimeoutStore) ListAudit(ctx context.Context, limit int) ([]core.AuditFact, error) {
	return do(s, ctx, "list audit", func(ctx context.Context) ([]core.AuditFact, error) {
		return s.next.ListAudit(ctx, limit)
	})
}
