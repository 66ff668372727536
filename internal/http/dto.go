package http

import (
	"time"

	"github.com/shopspring/decimal"

	"mkoba/internal/core"
	"mkoba/internal/ledger"
	"mkoba/internal/services"
)

// Request bodies. Amounts are decimal strings in major units.
type (
	createPeriodRequest struct {
		Year int `json:"year"`
	}

	initializeRequest struct {
		Month string `json:"month"`
	}

	contributionRequest struct {
		MemberID string `json:"member_id"`
		Month    string `json:"month"`
		Amount   string `json:"amount"`
	}

	payoutRequest struct {
		MemberID string `json:"member_id"`
		Amount   string `json:"amount"`
	}

	memberRequest struct {
		Name   string `json:"name"`
		Phone  string `json:"phone"`
		Role   string `json:"role"`
		Active *bool  `json:"active"`
	}
)

type moneyDTO struct {
	Amount string `json:"amount"`
	Cents  int64  `json:"cents"`
}

func toMoney(m core.Money) moneyDTO {
	return moneyDTO{Amount: decimal.New(m.Cents, -2).StringFixed(2), Cents: m.Cents}
}

type periodDTO struct {
	ID          string    `json:"id"`
	Year        int       `json:"year"`
	StartMonth  *string   `json:"start_month"`
	HorizonEnd  *string   `json:"horizon_end,omitempty"`
	Initialized bool      `json:"initialized"`
	CreatedAt   time.Time `json:"created_at"`
}

func toPeriod(p core.Period) periodDTO {
	return periodDTO{
		ID:          p.ID,
		Year:        p.Year,
		StartMonth:  monthPtr(p.StartMonth),
		HorizonEnd:  monthPtr(p.HorizonEnd),
		Initialized: p.Initialized(),
		CreatedAt:   p.CreatedAt,
	}
}

func monthPtr(m *core.Month) *string {
	if m == nil {
		return nil
	}
	s := m.String()
	return &s
}

type memberDTO struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone,omitempty"`
	Role      string    `json:"role"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

func toMember(m core.Member) memberDTO {
	return memberDTO{
		ID:        m.ID,
		Name:      m.Name,
		Phone:     m.Phone,
		Role:      m.Role.String(),
		Active:    m.Active,
		CreatedAt: m.CreatedAt,
	}
}

type cellDTO struct {
	Month    string   `json:"month"`
	Value    moneyDTO `json:"value"`
	Recorded bool     `json:"recorded"`
}

type rowDTO struct {
	Member memberDTO `json:"member"`
	Cells  []cellDTO `json:"cells"`
	Total  moneyDTO  `json:"total"`
}

type footerDTO struct {
	MonthTotals []moneyDTO `json:"month_totals"`
	GrandTotal  moneyDTO   `json:"grand_total"`
}

type ledgerDTO struct {
	Period      periodDTO `json:"period"`
	Months      []string  `json:"months"`
	Rows        []rowDTO  `json:"rows"`
	Footer      footerDTO `json:"footer"`
	CanEdit     bool      `json:"can_edit"`
	Initialized bool      `json:"initialized"`
}

func toLedger(v services.LedgerView) ledgerDTO {
	out := ledgerDTO{
		Period:      toPeriod(v.Period),
		Months:      make([]string, 0, len(v.Months)),
		Rows:        make([]rowDTO, 0, len(v.Rows)),
		CanEdit:     v.CanEdit,
		Initialized: v.Initialized,
	}
	for _, m := range v.Months {
		out.Months = append(out.Months, m.String())
	}
	for _, r := range v.Rows {
		row := rowDTO{Member: toMember(r.Member), Total: toMoney(r.Total), Cells: make([]cellDTO, 0, len(r.Cells))}
		for _, c := range r.Cells {
			row.Cells = append(row.Cells, cellDTO{Month: c.Month.String(), Value: toMoney(c.Amount), Recorded: c.Recorded})
		}
		out.Rows = append(out.Rows, row)
	}
	out.Footer.MonthTotals = make([]moneyDTO, 0, len(v.Footer.MonthTotals))
	for _, t := range v.Footer.MonthTotals {
		out.Footer.MonthTotals = append(out.Footer.MonthTotals, toMoney(t))
	}
	out.Footer.GrandTotal = toMoney(v.Footer.GrandTotal)
	return out
}

type summaryDTO struct {
	PeriodID         string   `json:"period_id"`
	TotalCollected   moneyDTO `json:"total_collected"`
	TotalDisbursed   moneyDTO `json:"total_disbursed"`
	NetBalance       moneyDTO `json:"net_balance"`
	MemberCount      int      `json:"member_count"`
	PayoutCount      int      `json:"payout_count"`
	LiquidityRatio   string   `json:"liquidity_ratio"`
	LiquidityPercent int64    `json:"liquidity_percent"`
}

func toSummary(s ledger.Summary) summaryDTO {
	return summaryDTO{
		PeriodID:         s.PeriodID,
		TotalCollected:   toMoney(s.TotalCollected),
		TotalDisbursed:   toMoney(s.TotalDisbursed),
		NetBalance:       toMoney(s.NetBalance),
		MemberCount:      s.MemberCount,
		PayoutCount:      s.PayoutCount,
		LiquidityRatio:   s.LiquidityRatio().StringFixed(4),
		LiquidityPercent: s.LiquidityPercent(),
	}
}

type auditDTO struct {
	ID       string    `json:"id"`
	ActorID  string    `json:"actor_id"`
	Action   string    `json:"action"`
	Table    string    `json:"table"`
	RecordID string    `json:"record_id"`
	At       time.Time `json:"at"`
}

func toAudit(f core.AuditFact) auditDTO {
	return auditDTO{
		ID:       f.ID,
		ActorID:  f.ActorID,
		Action:   string(f.Action),
		Table:    f.Table,
		RecordID: f.RecordID,
		At:       f.At,
	}
}
