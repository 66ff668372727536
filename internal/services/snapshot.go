package services

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"mkoba/internal/core"
	"mkoba/internal/store"
)

// Snapshot is one consistent read of everything a period view needs.
type Snapshot struct {
	Period        core.Period
	Members       []core.Member
	Contributions []core.Contribution
	Payouts       []core.Payout
	Months        []core.Month
}

// loadSnapshot reads the period and its records concurrently. Any failed
// read fails the whole snapshot.
func loadSnapshot(ctx context.Context, st store.Store, periodID string, now time.Time) (Snapshot, error) {
	var snap Snapshot
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() (err error) {
		snap.Period, err = st.GetPeriod(gctx, periodID)
		return err
	})
	g.Go(func() (err error) {
		snap.Members, err = st.ListMembers(gctx)
		return err
	})
	g.Go(func() (err error) {
		snap.Contributions, err = st.ListContributions(gctx, periodID)
		return err
	})
	g.Go(func() (err error) {
		snap.Payouts, err = st.ListPayouts(gctx, periodID)
		return err
	})

	if err := g.Wait(); err != nil {
		return Snapshot{}, err
	}
	snap.Months = core.DeriveMonths(snap.Period, now)
	return snap, nil
}

func (s Snapshot) member(id string) (core.Member, bool) {
	for _, m := range s.Members {
		if m.ID == id {
			return m, true
		}
	}
	return core.Member{}, false
}

func (s Snapshot) hasContribution(memberID string, month core.Month) bool {
	for _, c := range s.Contributions {
		if c.MemberID == memberID && c.Month == month {
			return true
		}
	}
	return false
}
