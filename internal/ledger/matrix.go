// Package ledger aggregates contribution records into the member by month
// matrix shown on the ledger screen and into the dashboard summary.
//
// Nothing here is cached. Every total is recomputed from the underlying
// records on each call, so a Matrix built from a fresh snapshot always
// agrees with the store.
package ledger

import (
	"mkoba/internal/core"
)

type (
	// Cell is one member/month intersection. Recorded is false when no
	// contribution exists, which is distinct from a recorded zero.
	Cell struct {
		Month    core.Month
		Amount   core.Money
		Recorded bool
	}

	Row struct {
		Member core.Member
		Cells  []Cell
		Total  core.Money
	}

	Footer struct {
		MonthTotals []core.Money
		GrandTotal  core.Money
	}

	// Matrix is a read-only view over one period's contributions restricted
	// to the given members and months.
	Matrix struct {
		periodID string
		members  []core.Member
		months   []core.Month
		cells    map[string]map[core.Month]core.Contribution
	}
)

// New builds the matrix for periodID. Contributions of other periods are
// ignored. If two records share a key the one updated last wins.
func New(periodID string, members []core.Member, contributions []core.Contribution, months []core.Month) *Matrix {
	m := &Matrix{
		periodID: periodID,
		members:  append([]core.Member(nil), members...),
		months:   append([]core.Month(nil), months...),
		cells:    make(map[string]map[core.Month]core.Contribution, len(members)),
	}
	for _, c := range contributions {
		if c.PeriodID != periodID {
			continue
		}
		byMonth, ok := m.cells[c.MemberID]
		if !ok {
			byMonth = map[core.Month]core.Contribution{}
			m.cells[c.MemberID] = byMonth
		}
		if prev, ok := byMonth[c.Month]; ok && prev.UpdatedAt.After(c.UpdatedAt) {
			continue
		}
		byMonth[c.Month] = c
	}
	return m
}

func (m *Matrix) PeriodID() string { return m.periodID }

func (m *Matrix) Members() []core.Member { return append([]core.Member(nil), m.members...) }

func (m *Matrix) Months() []core.Month { return append([]core.Month(nil), m.months...) }

// Amount returns the recorded amount; ok is false when nothing was recorded.
func (m *Matrix) Amount(memberID string, month core.Month) (core.Money, bool) {
	c, ok := m.cells[memberID][month]
	if !ok {
		return core.Money{}, false
	}
	return c.Amount, true
}

// MemberTotal sums a member's amounts over the matrix months.
func (m *Matrix) MemberTotal(memberID string) core.Money {
	var total core.Money
	for _, month := range m.months {
		if amt, ok := m.Amount(memberID, month); ok {
			total = total.Add(amt)
		}
	}
	return total
}

// MonthTotal sums every member's amount for month.
func (m *Matrix) MonthTotal(month core.Month) core.Money {
	var total core.Money
	for _, mem := range m.members {
		if amt, ok := m.Amount(mem.ID, month); ok {
			total = total.Add(amt)
		}
	}
	return total
}

func (m *Matrix) GrandTotal() core.Money {
	var total core.Money
	for _, month := range m.months {
		total = total.Add(m.MonthTotal(month))
	}
	return total
}

// Rows returns one display row per member, in member order.
func (m *Matrix) Rows() []Row {
	rows := make([]Row, 0, len(m.members))
	for _, mem := range m.members {
		row := Row{Member: mem, Cells: make([]Cell, 0, len(m.months))}
		for _, month := range m.months {
			amt, ok := m.Amount(mem.ID, month)
			row.Cells = append(row.Cells, Cell{Month: month, Amount: amt, Recorded: ok})
		}
		row.Total = m.MemberTotal(mem.ID)
		rows = append(rows, row)
	}
	return rows
}

func (m *Matrix) Footer() Footer {
	f := Footer{MonthTotals: make([]core.Money, 0, len(m.months))}
	for _, month := range m.months {
		f.MonthTotals = append(f.MonthTotals, m.MonthTotal(month))
	}
	f.GrandTotal = m.GrandTotal()
	return f
}
