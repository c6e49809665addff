package booking

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tripplanner/models"
)

type fakeFlights struct {
	options []models.Option
	err     error
	queries []models.FlightQuery
}

func (f *fakeFlights) SearchFlights(_ context.Context, q models.FlightQuery) ([]models.Option, error) {
	f.queries = append(f.queries, q)
	return append([]models.Option(nil), f.options...), f.err
}

type fakeStays struct {
	hotels     []models.Option
	activities []models.Option
	queries    []models.StayQuery
}

func (f *fakeStays) FindHotels(_ context.Context, q models.StayQuery) []models.Option {
	f.queries = append(f.queries, q)
	return append([]models.Option(nil), f.hotels...)
}

func (f *fakeStays) FindActivities(_ context.Context, q models.StayQuery) []models.Option {
	f.queries = append(f.queries, q)
	return append([]models.Option(nil), f.activities...)
}

type fakeLocations map[string]models.Location

func (f fakeLocations) Resolve(_ context.Context, text string) (models.Location, error) {
	if loc, ok := f[text]; ok {
		return loc, nil
	}
	return models.Location{}, models.ErrLocationNotFound
}

type fakeAssistant struct {
	topic   string
	options int
}

func (a *fakeAssistant) Ask(_ context.Context, topic string, options []models.Option, question string) (string, error) {
	a.topic, a.options = topic, len(options)
	return "Option 1 is closest to the beach.", nil
}

var today = time.Date(2026, 1, 15, 18, 30, 0, 0, time.UTC)

func usd(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func priced(names ...string) func(prices ...int64) []models.Option {
	return func(prices ...int64) []models.Option {
		out := make([]models.Option, len(prices))
		for i, p := range prices {
			out[i] = models.Option{Index: i + 1, Name: names[i%len(names)], Price: usd(p)}
		}
		return out
	}
}

type harness struct {
	session   *Session
	flights   *fakeFlights
	stays     *fakeStays
	assistant *fakeAssistant
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		flights: &fakeFlights{options: priced("AT 205", "AF 1096", "TK 618")(500, 650, 700)},
		stays: &fakeStays{
			hotels: priced("Abidjan Grand Hotel", "Sofitel Ivoire", "Boutique Inn")(1200, 900, 400),
			activities: []models.Option{
				{Index: 1, Name: "Banco Forest Hike", Price: usd(200), Suggestion: &models.Suggestion{Category: "Adventure", Duration: "Half-day"}},
				{Index: 2, Name: "Plateau Food Tour", Price: usd(500)},
				{Index: 3, Name: "Museum Visit", Price: usd(150)},
			},
		},
		assistant: &fakeAssistant{},
	}
	h.session = NewSession(Deps{
		Flights:    h.flights,
		Hotels:     h.stays,
		Activities: h.stays,
		Assistant:  h.assistant,
		Locations: fakeLocations{
			"Casablanca": {Name: "Casablanca", Code: "CMN"},
			"Abidjan":    {Name: "Abidjan", Code: "ABJ"},
			"Marrakech":  {Name: "Marrakech", Code: "RAK"},
		},
		MinBudget:        usd(100),
		MaxFlightOptions: 3,
		Now:              func() time.Time { return today },
	})
	return h
}

func (h *harness) fillDetails(t *testing.T, budget int64) {
	t.Helper()
	ctx := context.Background()
	_, err := h.session.SetDeparture(ctx, "Casablanca")
	require.NoError(t, err)
	_, err = h.session.SetDestination(ctx, "Abidjan")
	require.NoError(t, err)
	require.NoError(t, h.session.SetDates("2026-05-10", "2026-05-17"))
	require.NoError(t, h.session.SetTravelers(2))
	require.NoError(t, h.session.SetBudget(usd(budget)))
}

func TestSession_FullBooking(t *testing.T) {
	h := newHarness(t)
	s := h.session
	ctx := context.Background()

	assert.Equal(t, StageCollecting, s.Stage())
	h.fillDetails(t, 2000)
	assert.Equal(t, StageFlights, s.Stage())

	flights, err := s.Search(ctx, StageFlights)
	require.NoError(t, err)
	require.Len(t, flights, 3)
	require.Len(t, h.flights.queries, 1)
	q := h.flights.queries[0]
	assert.Equal(t, "CMN", q.Origin)
	assert.Equal(t, "ABJ", q.Destination)
	assert.Equal(t, 2, q.Travelers)
	assert.True(t, q.MaxPrice.Equal(usd(2000)))

	_, err = s.Confirm(StageFlights, 1)
	require.NoError(t, err)
	assert.Equal(t, StageHotels, s.Stage())
	assert.True(t, s.Plan().RemainingBudget.Equal(usd(1500)))
	assert.Equal(t, "AT 205\n", s.Plan().Flight.RawDetails)

	_, err = s.Search(ctx, StageHotels)
	require.NoError(t, err)
	stayQ := h.stays.queries[0]
	assert.Equal(t, 7, stayQ.Nights)
	assert.True(t, stayQ.Budget.Equal(usd(1500)))

	_, err = s.Confirm(StageHotels, 2)
	require.NoError(t, err)
	assert.Equal(t, StageActivities, s.Stage())
	assert.Equal(t, 7, s.Plan().Hotel.Nights)
	assert.True(t, s.Plan().RemainingBudget.Equal(usd(600)))

	_, err = s.Search(ctx, StageActivities)
	require.NoError(t, err)
	a, err := s.AddActivity(1)
	require.NoError(t, err)
	assert.Equal(t, "Adventure", a.Category)
	assert.True(t, s.Plan().RemainingBudget.Equal(usd(400)))

	_, err = s.AddActivity(2)
	assert.True(t, errors.Is(err, models.ErrBudgetExceeded))
	assert.True(t, s.Plan().RemainingBudget.Equal(usd(400)))

	opt, err := s.Confirm(StageActivities, 3)
	require.NoError(t, err)
	assert.Equal(t, "Museum Visit", opt.Name)
	assert.True(t, s.Plan().RemainingBudget.Equal(usd(250)))

	removed, err := s.RemoveActivity(2)
	require.NoError(t, err)
	assert.Equal(t, "Museum Visit", removed.Name)
	assert.True(t, s.Plan().RemainingBudget.Equal(usd(400)))

	require.NoError(t, s.Finish())
	assert.Equal(t, StageSummary, s.Stage())
	p := s.Plan()
	require.NoError(t, p.CheckLedger())
	assert.True(t, p.Spent().Equal(usd(1600)))
}

func TestSession_StagePrerequisites(t *testing.T) {
	h := newHarness(t)
	s := h.session
	ctx := context.Background()

	_, err := s.Search(ctx, StageFlights)
	assert.True(t, errors.Is(err, models.ErrInvalidTransition))
	assert.Empty(t, h.flights.queries)

	h.fillDetails(t, 2000)
	_, err = s.Search(ctx, StageHotels)
	assert.True(t, errors.Is(err, models.ErrInvalidTransition))
	_, err = s.Confirm(StageFlights, 1)
	assert.True(t, errors.Is(err, models.ErrInvalidTransition), "confirm before search")
	assert.True(t, errors.Is(s.Finish(), models.ErrInvalidTransition))

	require.NoError(t, s.Skip(StageFlights))
	assert.True(t, s.Skipped(StageFlights))
	_, err = s.Search(ctx, StageActivities)
	assert.True(t, errors.Is(err, models.ErrInvalidTransition))

	_, err = s.Search(ctx, StageHotels)
	require.NoError(t, err)
	_, err = s.Confirm(StageHotels, 4)
	assert.True(t, errors.Is(err, models.ErrInvalidInput))
	_, err = s.Confirm(StageHotels, 0)
	assert.True(t, errors.Is(err, models.ErrInvalidInput))

	require.NoError(t, s.Skip(StageHotels))
	assert.Equal(t, StageActivities, s.Stage())
	require.NoError(t, s.Skip(StageActivities))
	assert.Equal(t, StageSummary, s.Stage())
	assert.False(t, s.Plan().HasBookings())
}

func TestSession_BookingAtExactBudget(t *testing.T) {
	h := newHarness(t)
	h.flights.options = priced("AT 205")(2000)
	h.fillDetails(t, 2000)

	_, err := h.session.Search(context.Background(), StageFlights)
	require.NoError(t, err)
	_, err = h.session.Confirm(StageFlights, 1)
	require.NoError(t, err)
	assert.True(t, h.session.Plan().RemainingBudget.IsZero())

	h.stays.hotels = priced("Boutique Inn")(1)
	_, err = h.session.Search(context.Background(), StageHotels)
	require.NoError(t, err)
	_, err = h.session.Confirm(StageHotels, 1)
	assert.True(t, errors.Is(err, models.ErrBudgetExceeded))
	assert.Equal(t, StageHotels, h.session.Stage())
}

func TestSession_CancelAndRebook(t *testing.T) {
	h := newHarness(t)
	s := h.session
	h.fillDetails(t, 2000)

	_, err := s.Search(context.Background(), StageFlights)
	require.NoError(t, err)
	_, err = s.Confirm(StageFlights, 3)
	require.NoError(t, err)

	assert.True(t, errors.Is(s.Skip(StageFlights), models.ErrInvalidTransition))

	refund, err := s.Cancel(StageFlights)
	require.NoError(t, err)
	assert.True(t, refund.Equal(usd(700)))
	assert.True(t, s.Plan().RemainingBudget.Equal(usd(2000)))
	assert.Equal(t, StageHotels, s.Stage())

	_, err = s.Cancel(StageFlights)
	assert.True(t, errors.Is(err, models.ErrInvalidTransition))

	_, err = s.Search(context.Background(), StageHotels)
	assert.True(t, errors.Is(err, models.ErrInvalidTransition), "hotels need the flight resolved again")

	_, err = s.Confirm(StageFlights, 1)
	require.NoError(t, err)
	assert.True(t, s.Plan().RemainingBudget.Equal(usd(1500)))

	_, err = s.Cancel(StageActivities)
	assert.True(t, errors.Is(err, models.ErrInvalidTransition))
}

func TestSession_ModifyHotelNights(t *testing.T) {
	h := newHarness(t)
	s := h.session
	h.fillDetails(t, 2000)
	require.NoError(t, s.Skip(StageFlights))
	_, err := s.Search(context.Background(), StageHotels)
	require.NoError(t, err)
	_, err = s.Confirm(StageHotels, 2)
	require.NoError(t, err)

	hotel, err := s.ModifyHotelNights(5)
	require.NoError(t, err)
	assert.True(t, hotel.Price.Equal(usd(642).Add(decimal.RequireFromString("0.86"))))
	require.NoError(t, s.Plan().CheckLedger())

	_, err = s.ModifyHotelNights(20)
	assert.True(t, errors.Is(err, models.ErrBudgetExceeded))
}

func TestSession_DetailsLockedWhileBooked(t *testing.T) {
	h := newHarness(t)
	s := h.session
	ctx := context.Background()
	h.fillDetails(t, 2000)

	_, err := s.SetDestination(ctx, "Casablanca")
	assert.True(t, errors.Is(err, models.ErrInvalidInput))
	_, err = s.SetDestination(ctx, "Atlantis")
	assert.True(t, errors.Is(err, models.ErrLocationNotFound))
	assert.True(t, errors.Is(s.SetTravelers(0), models.ErrInvalidInput))
	assert.True(t, errors.Is(s.SetBudget(usd(50)), models.ErrInvalidInput))

	_, err = s.Search(ctx, StageFlights)
	require.NoError(t, err)
	_, err = s.SetDestination(ctx, "Marrakech")
	require.NoError(t, err)
	assert.Empty(t, s.Results(StageFlights), "changing details drops stale results")

	_, err = s.Search(ctx, StageFlights)
	require.NoError(t, err)
	_, err = s.Confirm(StageFlights, 1)
	require.NoError(t, err)

	_, err = s.SetDestination(ctx, "Abidjan")
	assert.True(t, errors.Is(err, models.ErrInvalidTransition))
	assert.True(t, errors.Is(s.SetDates("2026-06-01", "2026-06-03"), models.ErrInvalidTransition))
}

func TestSession_ChangeTotalBudget(t *testing.T) {
	h := newHarness(t)
	s := h.session
	h.fillDetails(t, 2000)
	_, err := s.Search(context.Background(), StageFlights)
	require.NoError(t, err)
	_, err = s.Confirm(StageFlights, 1)
	require.NoError(t, err)

	err = s.ChangeTotalBudget(usd(3000), false)
	assert.True(t, errors.Is(err, models.ErrInvalidTransition))
	assert.NotNil(t, s.Plan().Flight)

	require.NoError(t, s.ChangeTotalBudget(usd(3000), true))
	p := s.Plan()
	assert.False(t, p.HasBookings())
	assert.True(t, p.RemainingBudget.Equal(usd(3000)))
	assert.Equal(t, StageFlights, s.Stage())
	assert.Empty(t, s.Results(StageFlights))
}

func TestSession_SummaryIsTerminal(t *testing.T) {
	h := newHarness(t)
	s := h.session
	h.fillDetails(t, 2000)
	require.NoError(t, s.Skip(StageFlights))
	require.NoError(t, s.Skip(StageHotels))
	require.NoError(t, s.Finish())

	_, err := s.Search(context.Background(), StageActivities)
	assert.True(t, errors.Is(err, models.ErrInvalidTransition))
	assert.True(t, errors.Is(s.SetBudget(usd(500)), models.ErrInvalidTransition))
	assert.True(t, errors.Is(s.Finish(), models.ErrInvalidTransition))
	_, err = s.Cancel(StageFlights)
	assert.True(t, errors.Is(err, models.ErrInvalidTransition))

	s.Reset()
	assert.Equal(t, StageCollecting, s.Stage())
	assert.True(t, s.Plan().TotalBudget.IsZero())
}

func TestSession_Restore(t *testing.T) {
	h := newHarness(t)
	p := models.NewPlan()
	require.NoError(t, p.SetBudget(usd(2000)))
	p.Departure = &models.Location{Name: "Casablanca", Code: "CMN"}
	p.Destination = &models.Location{Name: "Abidjan", Code: "ABJ"}
	require.NoError(t, p.SetDates("2026-05-10", "2026-05-17"))
	p.Travelers = 1
	require.NoError(t, p.BookHotel(models.HotelBooking{OptionIndex: 1, Name: "Boutique Inn", Price: usd(400), Nights: 7}))
	p.RemainingBudget = usd(2000) // stale

	require.NoError(t, h.session.Restore(p))
	assert.Equal(t, StageActivities, h.session.Stage())
	assert.True(t, h.session.Skipped(StageFlights))
	assert.True(t, h.session.Plan().RemainingBudget.Equal(usd(1600)))
	assert.True(t, p.RemainingBudget.Equal(usd(2000)), "caller's plan is untouched")

	bad := models.NewPlan()
	require.NoError(t, bad.SetBudget(usd(100)))
	bad.Flight = &models.FlightBooking{Price: usd(500)}
	err := h.session.Restore(bad)
	assert.True(t, errors.Is(err, models.ErrLedgerCorrupted))
}

func TestSession_Ask(t *testing.T) {
	h := newHarness(t)
	s := h.session
	h.fillDetails(t, 2000)

	_, err := s.Ask(context.Background(), StageFlights, "which is fastest?")
	assert.True(t, errors.Is(err, models.ErrInvalidTransition))

	_, err = s.Search(context.Background(), StageFlights)
	require.NoError(t, err)
	answer, err := s.Ask(context.Background(), StageFlights, "which is fastest?")
	require.NoError(t, err)
	assert.NotEmpty(t, answer)
	assert.Equal(t, "flight", h.assistant.topic)
	assert.Equal(t, 3, h.assistant.options)
}

func TestSession_CorruptedLedgerIsFatal(t *testing.T) {
	h := newHarness(t)
	s := h.session
	h.fillDetails(t, 2000)
	s.plan.RemainingBudget = usd(1999)

	require.NoError(t, s.Skip(StageFlights))
	require.NoError(t, s.Skip(StageHotels))
	_, err := s.Search(context.Background(), StageActivities)
	require.NoError(t, err)

	_, err = s.AddActivity(3)
	assert.True(t, Fatal(err))
	_, err = s.RemoveActivity(1)
	assert.True(t, Fatal(err))
	assert.True(t, Fatal(s.Finish()))
	assert.True(t, Fatal(s.SetTravelers(3)))

	s.Reset()
	assert.NoError(t, s.SetTravelers(3))
}

func TestUserMessage(t *testing.T) {
	_, err := models.NewPlan().CancelFlight()
	assert.Equal(t, "That can't be done right now. No flight is booked.", UserMessage(err))
	assert.Equal(t, "The booking service is unavailable right now. Please try again in a few minutes.",
		UserMessage(models.ErrAuthUnavailable))
	assert.Contains(t, UserMessage(models.ErrLedgerCorrupted), "start a new plan")
	assert.Equal(t, "Unexpected error: boom", UserMessage(errors.New("boom")))
	assert.Empty(t, UserMessage(nil))
}

func TestParseStage(t *testing.T) {
	for in, want := range map[string]Stage{"flights": StageFlights, "Hotel": StageHotels, "activity": StageActivities, "summary": StageSummary} {
		got, err := ParseStage(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}
	_, err := ParseStage("cars")
	assert.True(t, errors.Is(err, models.ErrInvalidInput))
}

func TestSession_DetailValidation(t *testing.T) {
	type testCase struct {
		name    string
		apply   func(s *Session) error
		wantErr bool
	}
	cases := []testCase{
		{name: "departure in the past", apply: func(s *Session) error { return s.SetDates("2001-01-01", "2001-01-05") }, wantErr: true},
		{name: "departure yesterday", apply: func(s *Session) error { return s.SetDates("2026-01-14", "2026-01-20") }, wantErr: true},
		{name: "departure today", apply: func(s *Session) error { return s.SetDates("2026-01-15", "2026-01-20") }},
		{name: "departure later", apply: func(s *Session) error { return s.SetDates("2026-05-10", "2026-05-17") }},
		{name: "return before departure", apply: func(s *Session) error { return s.SetDates("2026-05-10", "2026-05-01") }, wantErr: true},
		{name: "no travelers", apply: func(s *Session) error { return s.SetTravelers(0) }, wantErr: true},
		{name: "one traveler", apply: func(s *Session) error { return s.SetTravelers(1) }},
		{name: "largest party", apply: func(s *Session) error { return s.SetTravelers(MaxTravelers) }},
		{name: "party too large", apply: func(s *Session) error { return s.SetTravelers(MaxTravelers + 1) }, wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := newHarness(t).session
			err := tc.apply(s)
			if !tc.wantErr {
				assert.NoError(t, err)
				return
			}
			assert.True(t, errors.Is(err, models.ErrInvalidInput), "got %v", err)
			p := s.Plan()
			assert.Empty(t, p.DepartureDate)
			assert.Zero(t, p.Travelers)
		})
	}
}
