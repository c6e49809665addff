package services

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"tripplanner/models"
)

// PlanSummary is a read-only projection of a plan for display.
type PlanSummary struct {
	Route           string                   `json:"route"`
	DepartureDate   string                   `json:"departure_date,omitempty"`
	ReturnDate      string                   `json:"return_date,omitempty"`
	Nights          int                      `json:"nights"`
	Travelers       int                      `json:"travelers"`
	TotalBudget     decimal.Decimal          `json:"total_budget"`
	Spent           decimal.Decimal          `json:"spent"`
	Remaining       decimal.Decimal          `json:"remaining"`
	PercentSpent    decimal.Decimal          `json:"percent_spent"`
	Flight          *models.FlightBooking    `json:"flight,omitempty"`
	Hotel           *models.HotelBooking     `json:"hotel,omitempty"`
	Activities      []models.ActivityBooking `json:"activities"`
	ActivitiesTotal decimal.Decimal          `json:"activities_total"`
}

// Summarize builds the summary without touching the plan.
func Summarize(p *models.Plan) PlanSummary {
	s := PlanSummary{
		Route:           route(p),
		DepartureDate:   p.DepartureDate,
		ReturnDate:      p.ReturnDate,
		Nights:          p.Nights(),
		Travelers:       p.Travelers,
		TotalBudget:     p.TotalBudget,
		Spent:           p.Spent(),
		Remaining:       p.RemainingBudget,
		PercentSpent:    decimal.Zero,
		ActivitiesTotal: p.ActivitiesCost(),
		Activities:      append([]models.ActivityBooking{}, p.Activities...),
	}
	if p.TotalBudget.IsPositive() {
		s.PercentSpent = s.Spent.Div(p.TotalBudget).Mul(decimal.NewFromInt(100)).Round(1)
	}
	if p.Flight != nil {
		f := *p.Flight
		s.Flight = &f
	}
	if p.Hotel != nil {
		h := *p.Hotel
		s.Hotel = &h
	}
	return s
}

func route(p *models.Plan) string {
	from, to := "?", "?"
	if p.Departure != nil {
		from = p.Departure.String()
	}
	if p.Destination != nil {
		to = p.Destination.String()
	}
	return from + " -> " + to
}

// Text renders the summary as the plain-text itinerary shown in the CLI and
// saved next to the plan file.
func (s PlanSummary) Text() string {
	var b strings.Builder
	b.WriteString("TRIP ITINERARY\n==============\n")
	fmt.Fprintf(&b, "Route:      %s\n", s.Route)
	if s.DepartureDate != "" {
		fmt.Fprintf(&b, "Dates:      %s to %s (%d nights)\n", s.DepartureDate, s.ReturnDate, s.Nights)
	}
	fmt.Fprintf(&b, "Travelers:  %d\n", s.Travelers)

	b.WriteString("\nBUDGET\n")
	fmt.Fprintf(&b, "  Total:      $%s\n", s.TotalBudget.StringFixed(2))
	fmt.Fprintf(&b, "  Spent:      $%s (%s%%)\n", s.Spent.StringFixed(2), s.PercentSpent.StringFixed(1))
	fmt.Fprintf(&b, "  Remaining:  $%s\n", s.Remaining.StringFixed(2))

	b.WriteString("\nFLIGHT\n")
	if s.Flight == nil {
		b.WriteString("  Not booked\n")
	} else {
		fmt.Fprintf(&b, "  Option %d - $%s\n", s.Flight.OptionIndex, s.Flight.Price.StringFixed(2))
		for _, line := range strings.Split(s.Flight.RawDetails, "\n") {
			if strings.TrimSpace(line) != "" {
				fmt.Fprintf(&b, "    %s\n", line)
			}
		}
	}

	b.WriteString("\nHOTEL\n")
	if s.Hotel == nil {
		b.WriteString("  Not booked\n")
	} else {
		name := s.Hotel.Name
		if name == "" {
			name = fmt.Sprintf("Option %d", s.Hotel.OptionIndex)
		}
		fmt.Fprintf(&b, "  %s - %d nights - $%s\n", name, s.Hotel.Nights, s.Hotel.Price.StringFixed(2))
	}

	b.WriteString("\nACTIVITIES\n")
	if len(s.Activities) == 0 {
		b.WriteString("  None booked\n")
	} else {
		for i, a := range s.Activities {
			fmt.Fprintf(&b, "  %d. %s%s - $%s\n", i+1, a.Name, activityDetails(a), a.Price.StringFixed(2))
		}
		fmt.Fprintf(&b, "  Activities total: $%s\n", s.ActivitiesTotal.StringFixed(2))
	}
	return b.String()
}

func activityDetails(a models.ActivityBooking) string {
	var parts []string
	if a.Category != "" {
		parts = append(parts, a.Category)
	}
	if a.Duration != "" {
		parts = append(parts, a.Duration)
	}
	if len(parts) == 0 {
		return ""
	}
	return " (" + strings.Join(parts, ", ") + ")"
}
