package render

import (
	"bytes"
	"fmt"

	"github.com/go-pdf/fpdf"

	"nullbytes.dev/wipecert/canon"
)

const defaultTitle = "CERTIFICATE OF SANITIZATION"

// Sheet is everything printed on a certificate.
type Sheet struct {
	Title    string
	Subtitle string
	Record   canon.Record
	QRPNG    []byte
	Locator  string
}

// DocumentRenderer produces the carrier document for a certificate.
type DocumentRenderer interface {
	Render(s Sheet) ([]byte, error)
}

// PDF lays out an A4 certificate with fpdf.
type PDF struct {
	// Uncompressed disables content stream compression.
	Uncompressed bool
}

var _ DocumentRenderer = PDF{}

const (
	margin   = 20.0
	rowH     = 14.0
	qrSide   = 110.0
	qrBlockW = 140.0
)

func (p PDF) Render(s Sheet) ([]byte, error) {
	if s.Record == nil {
		return nil, fmt.Errorf("render: nil record")
	}
	pdf := fpdf.New("P", "pt", "A4", "")
	pdf.SetCompression(!p.Uncompressed)
	pdf.SetMargins(margin, margin, margin)
	pdf.SetAutoPageBreak(true, margin)
	pdf.SetCreator("wipecert", true)
	pdf.SetTitle(defaultTitle, true)
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	title := s.Title
	if title == "" {
		title = defaultTitle
	}
	pageW, _ := pdf.GetPageSize()
	contentW := pageW - 2*margin

	pdf.SetFont("Helvetica", "B", 16)
	pdf.CellFormat(contentW, 24, tr(title), "", 1, "C", false, 0, "")
	if s.Subtitle != "" {
		pdf.SetFont("Helvetica", "", 10)
		pdf.CellFormat(contentW, 14, tr(s.Subtitle), "", 1, "C", false, 0, "")
	}
	pdf.Ln(12)

	for _, t := range layout(s.Record) {
		pdf.SetFont("Helvetica", "B", 11)
		pdf.CellFormat(contentW, 16, tr(t.Title), "", 1, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 9)
		pdf.SetDrawColor(0, 0, 0)
		pdf.SetLineWidth(0.5)
		for _, row := range t.Rows {
			for i, cell := range row {
				ln := 0
				if i == len(row)-1 {
					ln = 1
				}
				pdf.CellFormat(t.Widths[i], rowH, tr(fit(pdf, cell, t.Widths[i]-8)), "1", ln, "L", false, 0, "")
			}
		}
		pdf.Ln(6)
	}

	if len(s.QRPNG) > 0 {
		pdf.Ln(12)
		x := (pageW - qrBlockW) / 2
		y := pdf.GetY()
		opts := fpdf.ImageOptions{ImageType: "PNG", ReadDpi: false}
		pdf.RegisterImageOptionsReader("qr", opts, bytes.NewReader(s.QRPNG))
		pdf.Rect(x, y, qrBlockW, qrSide+44, "D")
		pdf.ImageOptions("qr", x+(qrBlockW-qrSide)/2, y+6, qrSide, qrSide, false, opts, 0, "")
		pdf.SetXY(x, y+qrSide+10)
		pdf.SetFont("Helvetica", "B", 9)
		pdf.CellFormat(qrBlockW, 12, "Scan here for verification", "", 2, "C", false, 0, "")
		pdf.SetFont("Helvetica", "", 8)
		pdf.CellFormat(qrBlockW, 12, "Opens verifier site and auto-verifies", "", 1, "C", false, 0, "")
	}

	if s.Locator != "" {
		// Invisible copy of the locator for text extraction.
		pdf.Ln(4)
		pdf.SetFont("Helvetica", "", 6)
		pdf.SetTextColor(255, 255, 255)
		pdf.MultiCell(contentW, 7, s.Locator, "", "L", false)
		pdf.SetTextColor(0, 0, 0)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render: pdf: %w", err)
	}
	return buf.Bytes(), nil
}

// fit truncates s with an ellipsis so it fits in w points at the current font.
func fit(pdf *fpdf.Fpdf, s string, w float64) string {
	if pdf.GetStringWidth(s) <= w {
		return s
	}
	r := []rune(s)
	for len(r) > 0 && pdf.GetStringWidth(string(r)+"...") > w {
		r = r[:len(r)-1]
	}
	return string(r) + "..."
}
