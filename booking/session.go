package booking

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"tripplanner/models"
)

type FlightSearcher interface {
	SearchFlights(ctx context.Context, q models.FlightQuery) ([]models.Option, error)
}

// HotelFinder and ActivityFinder always return options; they fall back to
// estimates internally.
type HotelFinder interface {
	FindHotels(ctx context.Context, q models.StayQuery) []models.Option
}

type ActivityFinder interface {
	FindActivities(ctx context.Context, q models.StayQuery) []models.Option
}

type Assistant interface {
	Ask(ctx context.Context, topic string, options []models.Option, question string) (string, error)
}

type LocationResolver interface {
	Resolve(ctx context.Context, text string) (models.Location, error)
}

const (
	flightCap   = 3
	hotelCap    = 3
	activityCap = 5

	// MaxTravelers is the largest party a plan can book for.
	MaxTravelers = 10
)

// Deps are the collaborators of a session. Locations must be owned by the
// session; the others may be shared.
type Deps struct {
	Flights    FlightSearcher
	Hotels     HotelFinder
	Activities ActivityFinder
	Assistant  Assistant
	Locations  LocationResolver

	MinBudget        decimal.Decimal
	MaxFlightOptions int
	MaxHotelOptions  int

	// Now is the clock used to reject past departures; defaults to time.Now.
	Now func() time.Time
}

// Session drives one plan through the booking stages. It is not safe for
// concurrent use; callers serialize access per session.
type Session struct {
	deps    Deps
	plan    *models.Plan
	stage   Stage
	skipped map[Stage]bool
	results map[Stage][]models.Option
	broken  error
}

func NewSession(deps Deps) *Session {
	if deps.MaxFlightOptions <= 0 || deps.MaxFlightOptions > flightCap {
		deps.MaxFlightOptions = flightCap
	}
	if deps.MaxHotelOptions <= 0 || deps.MaxHotelOptions > hotelCap {
		deps.MaxHotelOptions = hotelCap
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	s := &Session{deps: deps}
	s.Reset()
	return s
}

func (s *Session) Stage() Stage { return s.stage }

// Plan returns a copy of the current plan.
func (s *Session) Plan() *models.Plan { return s.plan.Clone() }

// Results returns the options of the last search for stage.
func (s *Session) Results(stage Stage) []models.Option {
	return append([]models.Option(nil), s.results[stage]...)
}

func (s *Session) Skipped(stage Stage) bool { return s.skipped[stage] }

// Reset starts over with an empty plan.
func (s *Session) Reset() {
	s.plan = models.NewPlan()
	s.stage = StageCollecting
	s.skipped = map[Stage]bool{}
	s.results = map[Stage][]models.Option{}
	s.broken = nil
}

// Restore resumes from a saved plan. The stage is derived from what the plan
// holds; a missing flight or hotel before a later booking counts as skipped.
func (s *Session) Restore(p *models.Plan) error {
	p = p.Clone()
	if p.Reconcile() {
		log.Printf("⚠️  Saved plan had a stale remaining budget — recomputed to $%s", p.RemainingBudget.StringFixed(2))
	}
	if err := p.CheckLedger(); err != nil {
		return err
	}
	s.Reset()
	s.plan = p
	s.refreshStage()
	if s.stage == StageCollecting {
		return nil
	}
	if p.Flight != nil || p.Hotel != nil || len(p.Activities) > 0 {
		s.skipped[StageFlights] = p.Flight == nil
		s.advance(StageHotels)
	}
	if p.Hotel != nil || len(p.Activities) > 0 {
		s.skipped[StageHotels] = p.Hotel == nil
		s.advance(StageActivities)
	}
	return nil
}

// ─── Trip details ─────────────────────────────────────────────────────────────

func (s *Session) SetDeparture(ctx context.Context, text string) (models.Location, error) {
	return s.setLocation(ctx, text, &s.plan.Departure, s.plan.Destination)
}

func (s *Session) SetDestination(ctx context.Context, text string) (models.Location, error) {
	return s.setLocation(ctx, text, &s.plan.Destination, s.plan.Departure)
}

func (s *Session) setLocation(ctx context.Context, text string, field **models.Location, other *models.Location) (models.Location, error) {
	if err := s.detailsEditable(); err != nil {
		return models.Location{}, err
	}
	loc, err := s.deps.Locations.Resolve(ctx, text)
	if err != nil {
		return models.Location{}, err
	}
	if other != nil && other.Code == loc.Code {
		return models.Location{}, fmt.Errorf("%w: departure and destination are both %s", models.ErrInvalidInput, loc)
	}
	*field = &loc
	s.detailsChanged()
	return loc, nil
}

func (s *Session) SetDates(departure, ret string) error {
	if err := s.detailsEditable(); err != nil {
		return err
	}
	departure, ret = strings.TrimSpace(departure), strings.TrimSpace(ret)
	if dep, err := time.Parse(models.DateLayout, departure); err == nil {
		y, m, d := s.deps.Now().Date()
		if dep.Before(time.Date(y, m, d, 0, 0, 0, 0, time.UTC)) {
			return fmt.Errorf("%w: departure date %s is in the past", models.ErrInvalidInput, departure)
		}
	}
	if err := s.plan.SetDates(departure, ret); err != nil {
		return err
	}
	s.detailsChanged()
	return nil
}

func (s *Session) SetTravelers(n int) error {
	if err := s.detailsEditable(); err != nil {
		return err
	}
	if n < 1 || n > MaxTravelers {
		return fmt.Errorf("%w: travelers must be between 1 and %d", models.ErrInvalidInput, MaxTravelers)
	}
	s.plan.Travelers = n
	s.detailsChanged()
	return nil
}

// SetBudget sets the total budget of a plan without bookings.
func (s *Session) SetBudget(amount decimal.Decimal) error {
	if err := s.mutable(); err != nil {
		return err
	}
	if err := s.checkMinimum(amount); err != nil {
		return err
	}
	if err := s.plan.SetBudget(amount); err != nil {
		return err
	}
	s.detailsChanged()
	return s.verifyLedger()
}

// ChangeTotalBudget replaces the total budget. With bookings in place it
// drops all of them, which the user must confirm.
func (s *Session) ChangeTotalBudget(amount decimal.Decimal, confirm bool) error {
	if err := s.mutable(); err != nil {
		return err
	}
	if err := s.checkMinimum(amount); err != nil {
		return err
	}
	if !s.plan.HasBookings() {
		return s.SetBudget(amount)
	}
	if !confirm {
		return fmt.Errorf("%w: changing the budget cancels the flight, the hotel and all activities; confirm to continue", models.ErrInvalidTransition)
	}
	if err := s.plan.ResetBudget(amount); err != nil {
		return err
	}
	s.skipped = map[Stage]bool{}
	s.results = map[Stage][]models.Option{}
	s.stage = min(s.stage, StageFlights)
	s.refreshStage()
	return s.verifyLedger()
}

func (s *Session) checkMinimum(amount decimal.Decimal) error {
	if amount.LessThan(s.deps.MinBudget) {
		return fmt.Errorf("%w: the budget must be at least $%s", models.ErrInvalidInput, s.deps.MinBudget.StringFixed(2))
	}
	return nil
}

// detailsEditable rejects edits that would leave bookings priced for another
// trip.
func (s *Session) detailsEditable() error {
	if err := s.mutable(); err != nil {
		return err
	}
	if s.plan.HasBookings() {
		return fmt.Errorf("%w: cancel your bookings (or change the budget to reset them) before changing trip details", models.ErrInvalidTransition)
	}
	return nil
}

func (s *Session) detailsChanged() {
	s.results = map[Stage][]models.Option{}
	s.refreshStage()
}

// MissingDetails lists what is still needed before searching flights.
func (s *Session) MissingDetails() []string {
	var missing []string
	if s.plan.Departure == nil {
		missing = append(missing, "departure")
	}
	if s.plan.Destination == nil {
		missing = append(missing, "destination")
	}
	if s.plan.DepartureDate == "" || s.plan.ReturnDate == "" {
		missing = append(missing, "dates")
	}
	if s.plan.Travelers < 1 {
		missing = append(missing, "travelers")
	}
	if !s.plan.TotalBudget.IsPositive() {
		missing = append(missing, "budget")
	}
	return missing
}

func (s *Session) refreshStage() {
	if s.stage == StageCollecting && len(s.MissingDetails()) == 0 {
		s.stage = StageFlights
	}
}

func (s *Session) advance(to Stage) {
	if to > s.stage {
		s.stage = to
	}
}

// ─── Stage transitions ────────────────────────────────────────────────────────

// Search queries the provider for stage and keeps the results for Confirm.
func (s *Session) Search(ctx context.Context, stage Stage) ([]models.Option, error) {
	if err := s.requireStage(stage); err != nil {
		return nil, err
	}

	var (
		options []models.Option
		err     error
	)
	switch stage {
	case StageFlights:
		options, err = s.deps.Flights.SearchFlights(ctx, models.FlightQuery{
			Origin:        s.plan.Departure.Code,
			Destination:   s.plan.Destination.Code,
			DepartureDate: s.plan.DepartureDate,
			ReturnDate:    s.plan.ReturnDate,
			Travelers:     s.plan.Travelers,
			MaxPrice:      s.plan.RemainingBudget,
			Currency:      "USD",
			ResultCap:     s.deps.MaxFlightOptions,
		})
		if err != nil {
			return nil, err
		}
		options = capOptions(options, s.deps.MaxFlightOptions)
	case StageHotels:
		options = capOptions(s.deps.Hotels.FindHotels(ctx, s.stayQuery(s.deps.MaxHotelOptions)), s.deps.MaxHotelOptions)
	case StageActivities:
		options = capOptions(s.deps.Activities.FindActivities(ctx, s.stayQuery(activityCap)), activityCap)
	}

	s.results[stage] = options
	return append([]models.Option(nil), options...), nil
}

func (s *Session) stayQuery(resultCap int) models.StayQuery {
	return models.StayQuery{
		Destination: *s.plan.Destination,
		CheckIn:     s.plan.DepartureDate,
		CheckOut:    s.plan.ReturnDate,
		Nights:      s.plan.Nights(),
		Travelers:   s.plan.Travelers,
		Budget:      s.plan.RemainingBudget,
		ResultCap:   resultCap,
	}
}

// Confirm books option (1-based) from the last search of stage. For
// activities it adds one more activity.
func (s *Session) Confirm(stage Stage, option int) (models.Option, error) {
	if stage == StageActivities {
		a, err := s.AddActivity(option)
		if err != nil {
			return models.Option{}, err
		}
		return s.results[StageActivities][a.OptionIndex-1], nil
	}
	if err := s.requireStage(stage); err != nil {
		return models.Option{}, err
	}
	opt, err := s.pick(stage, option)
	if err != nil {
		return models.Option{}, err
	}

	switch stage {
	case StageFlights:
		err = s.plan.BookFlight(models.FlightBooking{
			OptionIndex: opt.Index,
			Price:       opt.Price,
			RawDetails:  opt.Name + "\n" + opt.Details,
		})
	case StageHotels:
		err = s.plan.BookHotel(models.HotelBooking{
			OptionIndex: opt.Index,
			Name:        opt.Name,
			Price:       opt.Price,
			Nights:      max(1, s.plan.Nights()),
		})
	}
	if err != nil {
		return models.Option{}, err
	}
	if err := s.verifyLedger(); err != nil {
		return models.Option{}, err
	}
	delete(s.skipped, stage)
	s.advance(stage + 1)
	return opt, nil
}

// Skip resolves flights or hotels without a booking. Skipping activities
// finishes the plan.
func (s *Session) Skip(stage Stage) error {
	if stage == StageActivities {
		return s.Finish()
	}
	if err := s.requireStage(stage); err != nil {
		return err
	}
	if (stage == StageFlights && s.plan.Flight != nil) || (stage == StageHotels && s.plan.Hotel != nil) {
		return fmt.Errorf("%w: %s is booked; cancel it before skipping", models.ErrInvalidTransition, stage.topic())
	}
	s.skipped[stage] = true
	s.advance(stage + 1)
	return nil
}

// Cancel refunds the flight or hotel booking. The stage pointer stays where
// it is.
func (s *Session) Cancel(stage Stage) (decimal.Decimal, error) {
	if err := s.mutable(); err != nil {
		return decimal.Zero, err
	}
	var refund decimal.Decimal
	switch stage {
	case StageFlights:
		b, err := s.plan.CancelFlight()
		if err != nil {
			return decimal.Zero, err
		}
		refund = b.Price
	case StageHotels:
		b, err := s.plan.CancelHotel()
		if err != nil {
			return decimal.Zero, err
		}
		refund = b.Price
	case StageActivities:
		return decimal.Zero, fmt.Errorf("%w: remove activities one at a time", models.ErrInvalidTransition)
	default:
		return decimal.Zero, fmt.Errorf("%w: nothing to cancel in %s", models.ErrInvalidTransition, stage)
	}
	return refund, s.verifyLedger()
}

// AddActivity books option (1-based) from the last activity search; only its
// own price is checked against the remaining budget.
func (s *Session) AddActivity(option int) (models.ActivityBooking, error) {
	if err := s.requireStage(StageActivities); err != nil {
		return models.ActivityBooking{}, err
	}
	opt, err := s.pick(StageActivities, option)
	if err != nil {
		return models.ActivityBooking{}, err
	}
	a := models.ActivityBooking{OptionIndex: opt.Index, Name: opt.Name, Price: opt.Price}
	if opt.Suggestion != nil {
		a.Category = opt.Suggestion.Category
		a.Duration = opt.Suggestion.Duration
	}
	if err := s.plan.AddActivity(a); err != nil {
		return models.ActivityBooking{}, err
	}
	return a, s.verifyLedger()
}

// RemoveActivity drops the booked activity at position (1-based).
func (s *Session) RemoveActivity(position int) (models.ActivityBooking, error) {
	if err := s.mutable(); err != nil {
		return models.ActivityBooking{}, err
	}
	a, err := s.plan.RemoveActivity(position - 1)
	if err != nil {
		return models.ActivityBooking{}, err
	}
	return a, s.verifyLedger()
}

// ModifyHotelNights changes the length of the hotel stay at the booked
// nightly rate.
func (s *Session) ModifyHotelNights(nights int) (models.HotelBooking, error) {
	if err := s.mutable(); err != nil {
		return models.HotelBooking{}, err
	}
	h, err := s.plan.ResizeHotel(nights)
	if err != nil {
		return models.HotelBooking{}, err
	}
	return h, s.verifyLedger()
}

// Finish closes the plan. Activities may be empty.
func (s *Session) Finish() error {
	if err := s.mutable(); err != nil {
		return err
	}
	if s.stage < StageActivities {
		return fmt.Errorf("%w: book or skip the %s first", models.ErrInvalidTransition, s.pendingTopic())
	}
	s.stage = StageSummary
	return nil
}

// Ask forwards a question about the last results of stage to the assistant.
func (s *Session) Ask(ctx context.Context, stage Stage, question string) (string, error) {
	if err := s.mutable(); err != nil {
		return "", err
	}
	options := s.results[stage]
	if len(options) == 0 {
		return "", fmt.Errorf("%w: search %s options before asking about them", models.ErrInvalidTransition, stage.topic())
	}
	if s.deps.Assistant == nil {
		return "", fmt.Errorf("%w: no assistant is configured", models.ErrProviderQueryFailed)
	}
	return s.deps.Assistant.Ask(ctx, stage.topic(), options, question)
}

// ─── Guards ───────────────────────────────────────────────────────────────────

// usable fails once the ledger has been found corrupted.
func (s *Session) usable() error {
	return s.broken
}

// mutable allows booking changes until the plan is finished.
func (s *Session) mutable() error {
	if err := s.usable(); err != nil {
		return err
	}
	if s.stage == StageSummary {
		return fmt.Errorf("%w: the plan is finished; reset to start a new one", models.ErrInvalidTransition)
	}
	return nil
}

// requireStage checks that stage can be worked on: trip details are complete
// and every earlier stage is booked or skipped.
func (s *Session) requireStage(stage Stage) error {
	if err := s.mutable(); err != nil {
		return err
	}
	if stage < StageFlights || stage > StageActivities {
		return fmt.Errorf("%w: %s has no options", models.ErrInvalidTransition, stage)
	}
	if missing := s.MissingDetails(); len(missing) > 0 {
		return fmt.Errorf("%w: missing trip details: %s", models.ErrInvalidTransition, strings.Join(missing, ", "))
	}
	if stage >= StageHotels && !s.resolved(StageFlights) {
		return fmt.Errorf("%w: book or skip a flight first", models.ErrInvalidTransition)
	}
	if stage >= StageActivities && !s.resolved(StageHotels) {
		return fmt.Errorf("%w: book or skip a hotel first", models.ErrInvalidTransition)
	}
	return nil
}

func (s *Session) resolved(stage Stage) bool {
	switch stage {
	case StageFlights:
		return s.plan.Flight != nil || s.skipped[StageFlights]
	case StageHotels:
		return s.plan.Hotel != nil || s.skipped[StageHotels]
	}
	return false
}

func (s *Session) pendingTopic() string {
	if !s.resolved(StageFlights) {
		return "flight"
	}
	return "hotel"
}

func (s *Session) pick(stage Stage, option int) (models.Option, error) {
	options := s.results[stage]
	if len(options) == 0 {
		return models.Option{}, fmt.Errorf("%w: search %s options first", models.ErrInvalidTransition, stage.topic())
	}
	if option < 1 || option > len(options) {
		return models.Option{}, fmt.Errorf("%w: choose a %s option between 1 and %d", models.ErrInvalidInput, stage.topic(), len(options))
	}
	return options[option-1], nil
}

// verifyLedger runs after every money operation. A failure poisons the
// session.
func (s *Session) verifyLedger() error {
	if err := s.plan.CheckLedger(); err != nil {
		s.broken = err
		return err
	}
	return nil
}

// Fatal reports whether err must end the session.
func Fatal(err error) bool {
	return errors.Is(err, models.ErrLedgerCorrupted)
}

func capOptions(options []models.Option, n int) []models.Option {
	if len(options) > n {
		options = options[:n]
	}
	for i := range options {
		options[i].Index = i + 1
	}
	return options
}
