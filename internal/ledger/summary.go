package ledger

import (
	"github.com/shopspring/decimal"

	"mkoba/internal/core"
)

// Summary holds the dashboard figures of one period.
type Summary struct {
	PeriodID       string
	TotalCollected core.Money
	TotalDisbursed core.Money
	NetBalance     core.Money
	MemberCount    int
	PayoutCount    int
}

// Summarize totals every contribution and payout of periodID. Unlike the
// matrix it is not restricted to a month range.
func Summarize(periodID string, contributions []core.Contribution, payouts []core.Payout, members []core.Member) Summary {
	s := Summary{PeriodID: periodID, MemberCount: len(members)}
	for _, c := range dedupeContributions(periodID, contributions) {
		s.TotalCollected = s.TotalCollected.Add(c.Amount)
	}
	for _, p := range payouts {
		if p.PeriodID != periodID {
			continue
		}
		s.TotalDisbursed = s.TotalDisbursed.Add(p.Amount)
		if p.Amount.Cents > 0 {
			s.PayoutCount++
		}
	}
	s.NetBalance = core.Money{Cents: s.TotalCollected.Cents - s.TotalDisbursed.Cents}
	return s
}

// LiquidityRatio is NetBalance / TotalCollected, or zero when nothing has
// been collected.
func (s Summary) LiquidityRatio() decimal.Decimal {
	if s.TotalCollected.Cents == 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(s.NetBalance.Cents).Div(decimal.NewFromInt(s.TotalCollected.Cents))
}

// LiquidityPercent is the ratio as a whole percentage, rounded half away from zero.
func (s Summary) LiquidityPercent() int64 {
	return s.LiquidityRatio().Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

func dedupeContributions(periodID string, contributions []core.Contribution) []core.Contribution {
	type key struct {
		member string
		month  core.Month
	}
	latest := make(map[key]core.Contribution, len(contributions))
	var order []key
	for _, c := range contributions {
		if c.PeriodID != periodID {
			continue
		}
		k := key{c.MemberID, c.Month}
		prev, ok := latest[k]
		if !ok {
			order = append(order, k)
		} else if prev.UpdatedAt.After(c.UpdatedAt) {
			continue
		}
		latest[k] = c
	}
	out := make([]core.Contribution, 0, len(order))
	for _, k := range order {
		out = append(out, latest[k])
	}
	return out
}
