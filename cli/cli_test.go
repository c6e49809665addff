package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tripplanner/booking"
	"tripplanner/database"
	"tripplanner/services"
)

func newSession() *booking.Session {
	suggestions := services.NewSuggestionService(nil)
	return booking.NewSession(booking.Deps{
		Flights:          services.FlightSimulator{},
		Hotels:           services.NewHotelSearch(nil, suggestions),
		Activities:       suggestions,
		Assistant:        suggestions,
		Locations:        services.NewLocationResolver(services.DefaultExceptions(), nil, nil, time.Minute),
		MinBudget:        decimal.NewFromInt(100),
		MaxFlightOptions: 3,
		Now:              func() time.Time { return time.Date(2026, 1, 15, 9, 0, 0, 0, time.UTC) },
	})
}

func script(lines ...string) *strings.Reader {
	return strings.NewReader(strings.Join(lines, "\n") + "\n")
}

func TestCLI_PlanAndSave(t *testing.T) {
	dir := t.TempDir()
	session := newSession()
	var out bytes.Buffer
	c := New(session, script(
		// details, with a few rejected answers
		"Atlantis", "Casablanca", "Abidjan",
		"2026-05-17", "2026-05-10",
		"2026-05-10", "2026-05-17",
		"two", "1",
		"50", "2000",
		// hotels before the flight decision, then book, skip and add
		"3",
		"2", "1",
		"3", "X",
		"4", "2", "R1", "1", "D",
		"5",
		"6", "my_trip",
		"7",
	), &out)
	c.SaveDir(dir)

	require.NoError(t, c.Run(context.Background()))
	text := out.String()
	assert.Contains(t, text, "couldn't find that place")
	assert.Contains(t, text, "Return date must be after departure date")
	assert.Contains(t, text, "Please enter a whole number.")
	assert.Contains(t, text, "at least $100.00")
	assert.Contains(t, text, "Book or skip a flight first")
	assert.Contains(t, text, "✅ Booked")
	assert.Contains(t, text, "Skipped.")
	assert.Contains(t, text, "Removed")
	assert.Contains(t, text, "Done with activities")
	assert.Contains(t, text, "TRIP ITINERARY")
	assert.Contains(t, text, "Goodbye!")

	assert.Equal(t, booking.StageActivities, session.Stage())
	p := session.Plan()
	require.NoError(t, p.CheckLedger())
	assert.NotNil(t, p.Flight)
	assert.Nil(t, p.Hotel)
	assert.Len(t, p.Activities, 1)

	saved, err := database.LoadFile(filepath.Join(dir, "my_trip.json"))
	require.NoError(t, err)
	assert.True(t, saved.RemainingBudget.Equal(p.RemainingBudget))
	summary, err := os.ReadFile(filepath.Join(dir, "my_trip.txt"))
	require.NoError(t, err)
	assert.Contains(t, string(summary), "Casablanca (CMN) -> Abidjan (ABJ)")
}

func TestCLI_ResumeSkipsDetails(t *testing.T) {
	first := newSession()
	var out bytes.Buffer
	require.NoError(t, New(first, script(
		"Nairobi", "Kigali", "2026-07-01", "2026-07-04", "2", "1500",
		"2", "1",
		"7",
	), &out).Run(context.Background()))
	require.NotNil(t, first.Plan().Flight)

	resumed := newSession()
	require.NoError(t, resumed.Restore(first.Plan()))
	out.Reset()
	require.NoError(t, New(resumed, script(
		"2", "3",
		"1", "5", "y", "3000",
		"5",
	), &out).Run(context.Background()))

	text := out.String()
	assert.NotContains(t, text, "Where are you departing from?")
	assert.Contains(t, text, "You already booked flight option 1")
	assert.Nil(t, resumed.Plan().Flight)
	assert.Contains(t, text, "Budget updated!")
	assert.True(t, resumed.Plan().TotalBudget.Equal(decimal.NewFromInt(3000)))
	assert.Contains(t, text, "Goodbye!", "input ran out")
}

func TestCLI_EditAfterActivitiesDone(t *testing.T) {
	session := newSession()
	var out bytes.Buffer
	require.NoError(t, New(session, script(
		"Casablanca", "Abidjan", "2026-05-10", "2026-05-17", "1", "2000",
		"2", "1",
		"3", "X",
		"4", "1", "D",
		// the plan stays editable once activities are done
		"1", "5", "y", "3000",
		"2", "1",
		"2", "1",
		"7",
	), &out).Run(context.Background()))

	text := out.String()
	assert.NotContains(t, text, "finished")
	assert.Contains(t, text, "Budget updated!")
	assert.Contains(t, text, "Cancelled.")
	assert.Equal(t, booking.StageHotels, session.Stage())

	p := session.Plan()
	require.NoError(t, p.CheckLedger())
	assert.True(t, p.TotalBudget.Equal(decimal.NewFromInt(3000)))
	assert.True(t, p.RemainingBudget.Equal(p.TotalBudget))
	assert.Nil(t, p.Flight)
	assert.Empty(t, p.Activities)
}
