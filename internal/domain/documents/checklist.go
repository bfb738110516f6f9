package documents

import (
	"bytes"
	"context"
	"fmt"

	"github.com/jung-kurt/gofpdf"
)

// Checklist renders a one-page PDF showing which onboarding categories have
// at least one document on file for the employee.
func (s *Service) Checklist(ctx context.Context, employeeID string) ([]byte, error) {
	summary, err := s.UserCategories(ctx, employeeID)
	if err != nil {
		return nil, err
	}
	return renderChecklist(summary, s.now().UTC().Format("2006-01-02 15:04 MST"))
}

func renderChecklist(summary UserCategories, generatedAt string) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 16)
	pdf.Cell(40, 10, "Onboarding Document Checklist")
	pdf.Ln(12)
	pdf.SetFont("Helvetica", "", 12)
	pdf.Cell(0, 8, tr(fmt.Sprintf("Employee: %s", summary.UserName)))
	pdf.Ln(7)
	pdf.Cell(0, 8, fmt.Sprintf("Employee ID: %s", summary.UserID))
	pdf.Ln(7)
	pdf.Cell(0, 8, fmt.Sprintf("Generated: %s", generatedAt))
	pdf.Ln(12)

	complete := 0
	for _, cat := range summary.Categories {
		status := "MISSING"
		if cat.DocumentCount > 0 {
			status = "ON FILE"
			complete++
		}
		pdf.SetFont("Helvetica", "B", 12)
		pdf.CellFormat(70, 8, cat.DisplayName, "1", 0, "L", false, 0, "")
		pdf.CellFormat(30, 8, status, "1", 0, "C", false, 0, "")
		pdf.CellFormat(0, 8, fmt.Sprintf("%d file(s)", cat.DocumentCount), "1", 1, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 10)
		for _, doc := range cat.Documents {
			pdf.Cell(10, 6, "")
			pdf.Cell(0, 6, tr(fmt.Sprintf("%s (%d bytes, uploaded %s by %s)",
				doc.FileName, doc.FileSize, doc.UploadedAt.Format("2006-01-02"), doc.UploadedBy)))
			pdf.Ln(6)
		}
	}
	pdf.Ln(6)
	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 8, fmt.Sprintf("Completed %d of %d categories", complete, len(summary.Categories)))

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render checklist: %w", err)
	}
	return buf.Bytes(), nil
}
