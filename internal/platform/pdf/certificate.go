package pdf

import (
	"bytes"
	"fmt"
	"time"

	"github.com/go-pdf/fpdf"
)

type Theme struct {
	Primary [3]int
	Accent  [3]int
	Heading string
	Lead    string
}

var (
	ThemeCompletion = Theme{
		Primary: [3]int{30, 64, 175},
		Accent:  [3]int{219, 234, 254},
		Heading: "Certificate of Completion",
		Lead:    "has successfully completed the project",
	}
	ThemeWinner = Theme{
		Primary: [3]int{180, 130, 20},
		Accent:  [3]int{254, 243, 199},
		Heading: "Project of the Week: Winner",
		Lead:    "was selected as Project of the Week with",
	}
	ThemeParticipant = Theme{
		Primary: [3]int{21, 128, 61},
		Accent:  [3]int{220, 252, 231},
		Heading: "Project of the Week: Participant",
		Lead:    "took part in the Project of the Week contest with",
	}
)

type CertificateData struct {
	CertificateID string
	RecipientName string
	ProjectTitle  string
	WeekNumber    int
	Year          int
	IssuedAt      time.Time
	AppName       string
}

// RenderCertificate draws an A4 landscape certificate and returns the PDF bytes.
func RenderCertificate(theme Theme, data CertificateData) ([]byte, error) {
	doc := fpdf.New("L", "mm", "A4", "")
	tr := doc.UnicodeTranslatorFromDescriptor("")
	doc.SetMargins(20, 20, 20)
	doc.SetAutoPageBreak(false, 0)
	doc.AddPage()

	w, h := doc.GetPageSize()

	doc.SetFillColor(theme.Accent[0], theme.Accent[1], theme.Accent[2])
	doc.Rect(0, 0, w, h, "F")
	doc.SetDrawColor(theme.Primary[0], theme.Primary[1], theme.Primary[2])
	doc.SetLineWidth(2)
	doc.Rect(10, 10, w-20, h-20, "D")
	doc.SetLineWidth(0.5)
	doc.Rect(14, 14, w-28, h-28, "D")

	doc.SetTextColor(theme.Primary[0], theme.Primary[1], theme.Primary[2])
	doc.SetFont("Helvetica", "B", 30)
	doc.SetXY(20, 35)
	doc.CellFormat(w-40, 14, tr(theme.Heading), "", 1, "C", false, 0, "")

	doc.SetTextColor(60, 60, 60)
	doc.SetFont("Helvetica", "", 14)
	doc.SetXY(20, 62)
	doc.CellFormat(w-40, 8, "This certifies that", "", 1, "C", false, 0, "")

	doc.SetTextColor(20, 20, 20)
	doc.SetFont("Helvetica", "B", 26)
	doc.SetXY(20, 76)
	doc.CellFormat(w-40, 12, tr(data.RecipientName), "", 1, "C", false, 0, "")

	doc.SetTextColor(60, 60, 60)
	doc.SetFont("Helvetica", "", 14)
	lead := theme.Lead
	if data.WeekNumber > 0 {
		lead = fmt.Sprintf("%s (week %d, %d)", theme.Lead, data.WeekNumber, data.Year)
	}
	doc.SetXY(20, 96)
	doc.CellFormat(w-40, 8, tr(lead), "", 1, "C", false, 0, "")

	doc.SetTextColor(theme.Primary[0], theme.Primary[1], theme.Primary[2])
	doc.SetFont("Helvetica", "BI", 22)
	doc.SetXY(20, 110)
	doc.CellFormat(w-40, 12, tr(data.ProjectTitle), "", 1, "C", false, 0, "")

	doc.SetTextColor(90, 90, 90)
	doc.SetFont("Helvetica", "", 11)
	doc.SetXY(30, h-45)
	doc.CellFormat(100, 6, "Issued "+data.IssuedAt.Format("January 2, 2006"), "", 0, "L", false, 0, "")
	doc.SetXY(w-130, h-45)
	doc.CellFormat(100, 6, tr(data.AppName), "", 0, "R", false, 0, "")

	doc.SetFont("Courier", "", 9)
	doc.SetXY(20, h-30)
	doc.CellFormat(w-40, 5, "Certificate ID: "+data.CertificateID, "", 0, "C", false, 0, "")

	var buf bytes.Buffer
	if err := doc.Output(&buf); err != nil {
		return nil, fmt.Errorf("render certificate %s: %w", data.CertificateID, err)
	}
	return buf.Bytes(), nil
}
