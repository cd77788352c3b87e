package export

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
)

const (
	pdfPageWidth  = 277.0
	pdfMinColumn  = 18.0
	pdfHeaderSize = 9
	pdfBodySize   = 8
)

// PDFExporter renders datasets as a landscape A4 table.
type PDFExporter struct {
	now func() time.Time
}

// NewPDFExporter constructs a PDF exporter.
func NewPDFExporter() *PDFExporter {
	return &PDFExporter{now: time.Now}
}

// Render lays out the title, a repeated header row and the body. Column
// widths follow the longest value in each column.
func (e *PDFExporter) Render(data Dataset) ([]byte, error) {
	if len(data.Headers) == 0 {
		return nil, fmt.Errorf("pdf requires at least one header")
	}
	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetMargins(10, 12, 10)
	pdf.SetAutoPageBreak(true, 12)
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	generated := e.now().UTC().Format("2006-01-02 15:04 MST")
	pdf.SetFooterFunc(func() {
		pdf.SetY(-10)
		pdf.SetFont("Arial", "I", 7)
		pdf.CellFormat(0, 5, fmt.Sprintf("Generated %s - page %d", generated, pdf.PageNo()), "", 0, "R", false, 0, "")
	})

	widths := columnWidths(pdf, data)
	header := func() {
		pdf.SetFont("Arial", "B", pdfHeaderSize)
		pdf.SetFillColor(229, 231, 235)
		for i, h := range data.Headers {
			pdf.CellFormat(widths[i], 7, tr(h), "1", 0, "C", true, 0, "")
		}
		pdf.Ln(-1)
		pdf.SetFont("Arial", "", pdfBodySize)
	}

	pdf.AddPage()
	if data.Title != "" {
		pdf.SetFont("Arial", "B", 13)
		pdf.CellFormat(0, 9, tr(data.Title), "", 1, "L", false, 0, "")
		pdf.Ln(2)
	}
	header()

	_, pageHeight := pdf.GetPageSize()
	_, _, _, bottom := pdf.GetMargins()
	for _, row := range data.Rows {
		if pdf.GetY()+6 > pageHeight-bottom {
			pdf.AddPage()
			header()
		}
		for i, value := range data.record(row) {
			pdf.CellFormat(widths[i], 6, tr(value), "1", 0, "", false, 0, "")
		}
		pdf.Ln(-1)
	}

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

// columnWidths sizes columns by content and scales them to the page.
func columnWidths(pdf *gofpdf.Fpdf, data Dataset) []float64 {
	widths := make([]float64, len(data.Headers))
	pdf.SetFont("Arial", "B", pdfHeaderSize)
	for i, h := range data.Headers {
		widths[i] = pdf.GetStringWidth(h) + 4
	}
	pdf.SetFont("Arial", "", pdfBodySize)
	for _, row := range data.Rows {
		for i, value := range data.record(row) {
			if w := pdf.GetStringWidth(value) + 4; w > widths[i] {
				widths[i] = w
			}
		}
	}
	total := 0.0
	for i := range widths {
		if widths[i] < pdfMinColumn {
			widths[i] = pdfMinColumn
		}
		total += widths[i]
	}
	scale := pdfPageWidth / total
	for i := range widths {
		widths[i] *= scale
	}
	return widths
}
