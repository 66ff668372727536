// Package export renders a month range of the ledger as a spreadsheet and
// as a paginated document. Both artifacts carry the same numbers.
package export

import (
	"errors"
	"fmt"
	"slices"

	"mkoba/internal/core"
	"mkoba/internal/ledger"
)

const (
	SpreadsheetName = "MKoba_Payments.xlsx"
	DocumentName    = "MKoba_Payments.pdf"

	SheetName     = "Payments"
	GrandTotalRow = "GRAND TOTAL"
)

var ErrEmptyRange = errors.New("no months to export")

type (
	TableRow struct {
		Name    string
		Amounts []core.Money
		Total   core.Money
	}

	// Table is the export layout: Name, one column per month, Total, and a
	// trailing GRAND TOTAL row.
	Table struct {
		Months []core.Month
		Rows   []TableRow
		Totals TableRow
	}

	Artifacts struct {
		Spreadsheet []byte
		Document    []byte
	}
)

// Header returns the column titles.
func (t Table) Header() []string {
	h := make([]string, 0, len(t.Months)+2)
	h = append(h, "Name")
	for _, m := range t.Months {
		h = append(h, m.String())
	}
	return append(h, "Total")
}

// SelectRange returns the inclusive slice of months between from and to.
// Both bounds must be present in months and from must not come after to.
func SelectRange(months []core.Month, from, to core.Month) ([]core.Month, error) {
	if len(months) == 0 {
		return nil, core.Invalid("range", ErrEmptyRange)
	}
	start := slices.Index(months, from)
	if start < 0 {
		return nil, core.Invalid("from", fmt.Errorf("%w: %s is not an active month", core.ErrInvalidMonth, from))
	}
	end := slices.Index(months, to)
	if end < 0 {
		return nil, core.Invalid("to", fmt.Errorf("%w: %s is not an active month", core.ErrInvalidMonth, to))
	}
	if start > end {
		return nil, core.Invalid("range", fmt.Errorf("%w: %s is after %s", core.ErrInvalidMonth, from, to))
	}
	return slices.Clone(months[start : end+1]), nil
}

// BuildTable lays out members against months. Unrecorded cells export as
// zero. Totals cover only the given months.
func BuildTable(members []core.Member, months []core.Month, m *ledger.Matrix) Table {
	t := Table{
		Months: slices.Clone(months),
		Rows:   make([]TableRow, 0, len(members)),
		Totals: TableRow{Name: GrandTotalRow, Amounts: make([]core.Money, len(months))},
	}
	for _, mem := range members {
		row := TableRow{Name: mem.Name, Amounts: make([]core.Money, 0, len(months))}
		for i, month := range months {
			amt, _ := m.Amount(mem.ID, month)
			row.Amounts = append(row.Amounts, amt)
			row.Total = row.Total.Add(amt)
			t.Totals.Amounts[i] = t.Totals.Amounts[i].Add(amt)
		}
		t.Totals.Total = t.Totals.Total.Add(row.Total)
		t.Rows = append(t.Rows, row)
	}
	return t
}

// Build selects [from, to] from months and renders both artifacts.
func Build(members []core.Member, months []core.Month, from, to core.Month, m *ledger.Matrix) (Artifacts, error) {
	selected, err := SelectRange(months, from, to)
	if err != nil {
		return Artifacts{}, err
	}
	table := BuildTable(members, selected, m)

	xlsx, err := Spreadsheet(table)
	if err != nil {
		return Artifacts{}, fmt.Errorf("render spreadsheet: %w", err)
	}
	pdf, err := Document(table, fmt.Sprintf("M-Koba Payments %s to %s", from, to))
	if err != nil {
		return Artifacts{}, fmt.Errorf("render document: %w", err)
	}
	return Artifacts{Spreadsheet: xlsx, Document: pdf}, nil
}
