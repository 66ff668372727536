package export

import (
	"fmt"

	"github.com/xuri/excelize/v2"
)

// Built-in excelize number format "#,##0.00".
const moneyNumFmt = 4

// Spreadsheet renders t as an xlsx workbook with a single Payments sheet.
// Amounts are written as numbers in major units.
func Spreadsheet(t Table) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), SheetName); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}
	money, err := f.NewStyle(&excelize.Style{NumFmt: moneyNumFmt})
	if err != nil {
		return nil, fmt.Errorf("create money style: %w", err)
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, fmt.Errorf("create header style: %w", err)
	}

	header := t.Header()
	values := make([]any, len(header))
	for i, h := range header {
		values[i] = h
	}
	if err := writeRow(f, 1, values); err != nil {
		return nil, err
	}
	lastCol, _ := excelize.CoordinatesToCellName(len(header), 1)
	if err := f.SetCellStyle(SheetName, "A1", lastCol, bold); err != nil {
		return nil, fmt.Errorf("style header: %w", err)
	}

	rows := append(append([]TableRow(nil), t.Rows...), t.Totals)
	for i, r := range rows {
		line := i + 2
		values := make([]any, 0, len(r.Amounts)+2)
		values = append(values, r.Name)
		for _, a := range r.Amounts {
			values = append(values, a.Major())
		}
		values = append(values, r.Total.Major())
		if err := writeRow(f, line, values); err != nil {
			return nil, err
		}
		first, _ := excelize.CoordinatesToCellName(2, line)
		last, _ := excelize.CoordinatesToCellName(len(values), line)
		if err := f.SetCellStyle(SheetName, first, last, money); err != nil {
			return nil, fmt.Errorf("style row %d: %w", line, err)
		}
	}
	if err := f.SetColWidth(SheetName, "A", "A", 28); err != nil {
		return nil, fmt.Errorf("set column width: %w", err)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func writeRow(f *excelize.File, line int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, line)
	if err != nil {
		return fmt.Errorf("row %d: %w", line, err)
	}
	if err := f.SetSheetRow(SheetName, cell, &values); err != nil {
		return fmt.Errorf("write row %d: %w", line, err)
	}
	return nil
}
