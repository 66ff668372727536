package export

import (
	"bytes"
	"fmt"

	"github.com/go-pdf/fpdf"
)

const (
	pageMargin = 10.0
	nameWidth  = 45.0
	rowHeight  = 6.0
	fontSize   = 8.0
)

// Document renders t as a landscape A4 PDF. The header row is repeated at
// the top of every page.
func Document(t Table, title string) ([]byte, error) {
	pdf := layoutDocument(t, title)
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("write pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func layoutDocument(t Table, title string) *fpdf.Fpdf {
	pdf := fpdf.New("L", "mm", "A4", "")
	pdf.SetMargins(pageMargin, pageMargin, pageMargin)
	pdf.SetAutoPageBreak(true, pageMargin)
	pdf.SetTitle(title, true)
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pageWidth, _ := pdf.GetPageSize()
	header := t.Header()
	colWidth := (pageWidth - 2*pageMargin - nameWidth) / float64(len(header)-1)
	width := func(i int) float64 {
		if i == 0 {
			return nameWidth
		}
		return colWidth
	}

	pdf.SetHeaderFuncMode(func() {
		pdf.SetFont("Helvetica", "B", fontSize+4)
		pdf.SetTextColor(15, 23, 42)
		pdf.CellFormat(0, rowHeight+2, tr(title), "", 1, "L", false, 0, "")
		pdf.Ln(2)

		pdf.SetFont("Helvetica", "B", fontSize)
		pdf.SetFillColor(15, 23, 42)
		pdf.SetTextColor(255, 255, 255)
		for i, h := range header {
			pdf.CellFormat(width(i), rowHeight, h, "1", 0, "C", true, 0, "")
		}
		pdf.Ln(-1)
		pdf.SetTextColor(0, 0, 0)
		pdf.SetFont("Helvetica", "", fontSize)
	}, true)

	pdf.AddPage()
	row := func(r TableRow, style string) {
		pdf.SetFont("Helvetica", style, fontSize)
		pdf.CellFormat(width(0), rowHeight, tr(r.Name), "1", 0, "L", false, 0, "")
		for i, a := range r.Amounts {
			pdf.CellFormat(width(i+1), rowHeight, FormatMoney(a), "1", 0, "R", false, 0, "")
		}
		pdf.CellFormat(width(len(header)-1), rowHeight, FormatMoney(r.Total), "1", 1, "R", false, 0, "")
	}
	for _, r := range t.Rows {
		row(r, "")
	}
	row(t.Totals, "B")
	return pdf
}
