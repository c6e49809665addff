package services

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
)

// GeneratePDFBytes renders the itinerary PDF in memory.
func GeneratePDFBytes(s PlanSummary, travelerName string, generatedAt time.Time) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(20, 20, 20)
	pdf.SetAutoPageBreak(true, 25)
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	// ── Header Bar ───────────────────────────────────────────
	pdf.SetFillColor(13, 24, 37)
	pdf.Rect(0, 0, 210, 28, "F")
	pdf.SetTextColor(255, 255, 255)
	pdf.SetFont("Helvetica", "B", 18)
	pdf.SetXY(20, 8)
	pdf.CellFormat(100, 10, "Trip Planner", "", 0, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	pdf.SetTextColor(212, 168, 67) // gold
	pdf.SetXY(20, 18)
	pdf.CellFormat(170, 6, "Travel Itinerary", "", 1, "L", false, 0, "")

	pdf.SetY(35)

	// ── Disclaimer ───────────────────────────────────────────
	pdf.SetFillColor(255, 248, 225)
	pdf.SetDrawColor(212, 168, 67)
	pdf.SetTextColor(130, 90, 20)
	pdf.SetFont("Helvetica", "I", 8)
	pdf.SetLineWidth(0.4)
	y := pdf.GetY()
	pdf.Rect(20, y, 170, 10, "FD")
	pdf.SetXY(23, y+2)
	pdf.MultiCell(164, 4, "This is NOT a booking confirmation. Suggested prices are estimates; verify with providers before booking.", "", "C", false)

	pdf.SetTextColor(0, 0, 0)
	pdf.SetDrawColor(0, 0, 0)
	pdf.SetLineWidth(0.2)
	pdf.Ln(6)

	// ── Section Helper ───────────────────────────────────────
	sectionHeader := func(title string) {
		pdf.SetFillColor(13, 24, 37)
		pdf.SetTextColor(255, 255, 255)
		pdf.SetFont("Helvetica", "B", 11)
		pdf.CellFormat(170, 8, "  "+title, "", 1, "L", true, 0, "")
		pdf.SetTextColor(0, 0, 0)
		pdf.Ln(2)
	}

	row := func(label, value string) {
		pdf.SetFont("Helvetica", "", 10)
		pdf.SetTextColor(100, 100, 100)
		pdf.CellFormat(55, 7, tr(label), "", 0, "L", false, 0, "")
		pdf.SetTextColor(20, 20, 20)
		pdf.SetFont("Helvetica", "B", 10)
		pdf.CellFormat(115, 7, tr(value), "", 1, "L", false, 0, "")
	}

	// ── Traveler Info ─────────────────────────────────────────
	sectionHeader("Traveler Information")
	name := travelerName
	if name == "" {
		name = "Guest Traveler"
	}
	row("Name", name)
	row("Generated", generatedAt.UTC().Format("02 Jan 2006, 15:04 UTC"))
	pdf.Ln(4)

	// ── Trip Overview ─────────────────────────────────────────
	sectionHeader("Trip Overview")
	row("Route", s.Route)
	row("Departure", fmtDateReadable(s.DepartureDate))
	row("Return", fmtDateReadable(s.ReturnDate))
	row("Duration", fmt.Sprintf("%d nights", s.Nights))
	row("Travelers", fmt.Sprintf("%d", s.Travelers))
	pdf.Ln(4)

	// ── Flight ────────────────────────────────────────────────
	sectionHeader("Flight")
	if s.Flight == nil {
		row("Status", "Not booked")
	} else {
		row("Option", fmt.Sprintf("#%d", s.Flight.OptionIndex))
		row("Price", "$"+s.Flight.Price.StringFixed(2))
		if s.Flight.RawDetails != "" {
			pdf.SetFont("Courier", "", 8)
			pdf.SetTextColor(40, 40, 40)
			pdf.MultiCell(170, 4, tr(s.Flight.RawDetails), "", "L", false)
		}
	}
	pdf.Ln(4)

	// ── Hotel ─────────────────────────────────────────────────
	sectionHeader("Hotel")
	if s.Hotel == nil {
		row("Status", "Not booked")
	} else {
		row("Hotel", s.Hotel.Name)
		row("Check-in", fmtDateReadable(s.DepartureDate))
		row("Nights", fmt.Sprintf("%d", s.Hotel.Nights))
		row("Price", "$"+s.Hotel.Price.StringFixed(2))
	}
	pdf.Ln(4)

	// ── Activities ────────────────────────────────────────────
	sectionHeader("Activities")
	if len(s.Activities) == 0 {
		row("Status", "None booked")
	}
	for i, a := range s.Activities {
		row(fmt.Sprintf("%d. %s", i+1, truncate(a.Name, 30)), "$"+a.Price.StringFixed(2)+activityDetails(a))
	}
	pdf.Ln(4)

	// ── Cost Summary ──────────────────────────────────────────
	sectionHeader("Budget")
	row("Total budget", "$"+s.TotalBudget.StringFixed(2))
	row("Spent", fmt.Sprintf("$%s (%s%%)", s.Spent.StringFixed(2), s.PercentSpent.StringFixed(1)))

	pdf.SetFillColor(212, 168, 67)
	pdf.SetTextColor(13, 24, 37)
	pdf.SetFont("Helvetica", "B", 12)
	pdf.CellFormat(55, 9, "REMAINING", "", 0, "L", true, 0, "")
	pdf.CellFormat(115, 9, "$"+s.Remaining.StringFixed(2), "", 1, "L", true, 0, "")
	pdf.SetTextColor(0, 0, 0)

	// ── Footer ────────────────────────────────────────────────
	pdf.SetY(-22)
	pdf.SetDrawColor(200, 200, 200)
	pdf.SetLineWidth(0.3)
	pdf.Line(20, pdf.GetY(), 190, pdf.GetY())
	pdf.SetFont("Helvetica", "I", 8)
	pdf.SetTextColor(150, 150, 150)
	pdf.CellFormat(0, 8, "Generated by Trip Planner - Not a booking confirmation", "", 0, "C", false, 0, "")

	// ── Write to buffer ───────────────────────────────────────
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("PDF output failed: %w", err)
	}
	return buf.Bytes(), nil
}

func fmtDateReadable(iso string) string {
	t, err := time.Parse("2006-01-02", iso)
	if err != nil {
		return iso
	}
	return t.Format("02 Jan 2006 (Mon)")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
