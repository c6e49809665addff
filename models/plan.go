package models

import (
	"fmt"
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

const DateLayout = "2006-01-02"

type FlightBooking struct {
	OptionIndex int             `json:"option_index"`
	Price       decimal.Decimal `json:"price"`
	RawDetails  string          `json:"raw_details,omitempty"`
}

type HotelBooking struct {
	OptionIndex int             `json:"option_index"`
	Name        string          `json:"name,omitempty"`
	Price       decimal.Decimal `json:"price"`
	Nights      int             `json:"nights"`

	// NightlyRate is kept unrounded so resizing the stay never drifts.
	NightlyRate decimal.Decimal `json:"nightly_rate"`
}

// rate returns the nightly rate, deriving it from the total for bookings
// saved without one.
func (b HotelBooking) rate() decimal.Decimal {
	if b.NightlyRate.IsPositive() || b.Nights < 1 {
		return b.NightlyRate
	}
	return b.Price.Div(decimal.NewFromInt(int64(b.Nights)))
}

type ActivityBooking struct {
	OptionIndex int             `json:"option_index"`
	Name        string          `json:"name"`
	Category    string          `json:"category,omitempty"`
	Duration    string          `json:"duration,omitempty"`
	Price       decimal.Decimal `json:"price"`
}

// Plan is the trip being assembled. It is also the budget ledger: every
// booking debits RemainingBudget and every cancellation credits it back, so
// that RemainingBudget == TotalBudget - Spent() at all times.
type Plan struct {
	TotalBudget     decimal.Decimal   `json:"total_budget"`
	RemainingBudget decimal.Decimal   `json:"remaining_budget"`
	Departure       *Location         `json:"departure,omitempty"`
	Destination     *Location         `json:"destination,omitempty"`
	DepartureDate   string            `json:"departure_date,omitempty"`
	ReturnDate      string            `json:"return_date,omitempty"`
	Travelers       int               `json:"travelers,omitempty"`
	Flight          *FlightBooking    `json:"flight_booking,omitempty"`
	Hotel           *HotelBooking     `json:"hotel_booking,omitempty"`
	Activities      []ActivityBooking `json:"activity_bookings,omitempty"`
}

func NewPlan() *Plan {
	return &Plan{}
}

// SetDates validates both ISO dates and requires the return to be strictly
// after the departure.
func (p *Plan) SetDates(departure, ret string) error {
	dep, err := time.Parse(DateLayout, departure)
	if err != nil {
		return fmt.Errorf("%w: departure date %q is not YYYY-MM-DD", ErrInvalidInput, departure)
	}
	back, err := time.Parse(DateLayout, ret)
	if err != nil {
		return fmt.Errorf("%w: return date %q is not YYYY-MM-DD", ErrInvalidInput, ret)
	}
	if !back.After(dep) {
		return fmt.Errorf("%w: return date must be after departure date", ErrInvalidInput)
	}
	p.DepartureDate = departure
	p.ReturnDate = ret
	return nil
}

// Nights is the whole-day length of the trip, or 0 when dates are unset.
func (p *Plan) Nights() int {
	dep, err1 := time.Parse(DateLayout, p.DepartureDate)
	ret, err2 := time.Parse(DateLayout, p.ReturnDate)
	if err1 != nil || err2 != nil || !ret.After(dep) {
		return 0
	}
	return int(ret.Sub(dep).Hours() / 24)
}

func (p *Plan) HasBookings() bool {
	return p.Flight != nil || p.Hotel != nil || len(p.Activities) > 0
}

// ActivitiesCost is the sum of all booked activity prices.
func (p *Plan) ActivitiesCost() decimal.Decimal {
	return lo.Reduce(p.Activities, func(sum decimal.Decimal, a ActivityBooking, _ int) decimal.Decimal {
		return sum.Add(a.Price)
	}, decimal.Zero)
}

// Spent is the total price of all active bookings.
func (p *Plan) Spent() decimal.Decimal {
	spent := p.ActivitiesCost()
	if p.Flight != nil {
		spent = spent.Add(p.Flight.Price)
	}
	if p.Hotel != nil {
		spent = spent.Add(p.Hotel.Price)
	}
	return spent
}

// CheckLedger verifies the ledger invariant.
func (p *Plan) CheckLedger() error {
	expected := p.TotalBudget.Sub(p.Spent())
	if !p.RemainingBudget.Equal(expected) {
		return fmt.Errorf("%w: remaining %s, expected %s", ErrLedgerCorrupted,
			p.RemainingBudget.String(), expected.String())
	}
	if p.RemainingBudget.IsNegative() {
		return fmt.Errorf("%w: remaining %s is negative", ErrLedgerCorrupted, p.RemainingBudget.String())
	}
	return nil
}

// Reconcile recomputes RemainingBudget from the bookings. It reports whether
// the stored value had drifted.
func (p *Plan) Reconcile() bool {
	expected := p.TotalBudget.Sub(p.Spent())
	if p.RemainingBudget.Equal(expected) {
		return false
	}
	p.RemainingBudget = expected
	return true
}

// SetBudget sets the total budget of a plan with no bookings.
func (p *Plan) SetBudget(amount decimal.Decimal) error {
	if amount.IsNegative() {
		return fmt.Errorf("%w: budget cannot be negative", ErrInvalidInput)
	}
	if p.HasBookings() {
		return fmt.Errorf("%w: changing the budget resets all bookings and must be confirmed", ErrInvalidTransition)
	}
	p.TotalBudget = amount
	p.RemainingBudget = amount
	return nil
}

// ResetBudget drops every booking and restarts the ledger at amount.
func (p *Plan) ResetBudget(amount decimal.Decimal) error {
	if amount.IsNegative() {
		return fmt.Errorf("%w: budget cannot be negative", ErrInvalidInput)
	}
	p.Flight = nil
	p.Hotel = nil
	p.Activities = nil
	p.TotalBudget = amount
	p.RemainingBudget = amount
	return nil
}

func (p *Plan) debit(price decimal.Decimal) error {
	if price.IsNegative() {
		return fmt.Errorf("%w: price cannot be negative", ErrInvalidInput)
	}
	if price.GreaterThan(p.RemainingBudget) {
		return fmt.Errorf("%w: costs $%s but only $%s remains", ErrBudgetExceeded,
			price.StringFixed(2), p.RemainingBudget.StringFixed(2))
	}
	p.RemainingBudget = p.RemainingBudget.Sub(price)
	return nil
}

func (p *Plan) credit(price decimal.Decimal) {
	p.RemainingBudget = p.RemainingBudget.Add(price)
}

func (p *Plan) BookFlight(b FlightBooking) error {
	if p.Flight != nil {
		return fmt.Errorf("%w: a flight is already booked, cancel it first", ErrInvalidTransition)
	}
	if err := p.debit(b.Price); err != nil {
		return err
	}
	p.Flight = &b
	return nil
}

func (p *Plan) CancelFlight() (FlightBooking, error) {
	if p.Flight == nil {
		return FlightBooking{}, fmt.Errorf("%w: no flight is booked", ErrInvalidTransition)
	}
	b := *p.Flight
	p.credit(b.Price)
	p.Flight = nil
	return b, nil
}

func (p *Plan) BookHotel(b HotelBooking) error {
	if p.Hotel != nil {
		return fmt.Errorf("%w: a hotel is already booked, cancel it first", ErrInvalidTransition)
	}
	if err := p.debit(b.Price); err != nil {
		return err
	}
	b.NightlyRate = b.rate()
	p.Hotel = &b
	return nil
}

func (p *Plan) CancelHotel() (HotelBooking, error) {
	if p.Hotel == nil {
		return HotelBooking{}, fmt.Errorf("%w: no hotel is booked", ErrInvalidTransition)
	}
	b := *p.Hotel
	p.credit(b.Price)
	p.Hotel = nil
	return b, nil
}

// ResizeHotel changes the number of nights of the booked hotel at the same
// nightly rate. Only the price difference is charged or refunded.
func (p *Plan) ResizeHotel(nights int) (HotelBooking, error) {
	if p.Hotel == nil {
		return HotelBooking{}, fmt.Errorf("%w: no hotel is booked", ErrInvalidTransition)
	}
	if nights < 1 {
		return HotelBooking{}, fmt.Errorf("%w: nights must be at least 1", ErrInvalidInput)
	}
	current := *p.Hotel
	if current.Nights < 1 {
		return HotelBooking{}, fmt.Errorf("%w: booked hotel has no nightly rate", ErrInvalidTransition)
	}
	perNight := current.rate()
	newPrice := perNight.Mul(decimal.NewFromInt(int64(nights))).Round(2)
	delta := newPrice.Sub(current.Price)
	if delta.GreaterThan(p.RemainingBudget) {
		return HotelBooking{}, fmt.Errorf("%w: %d nights need $%s more but only $%s remains", ErrBudgetExceeded,
			nights, delta.StringFixed(2), p.RemainingBudget.StringFixed(2))
	}
	p.RemainingBudget = p.RemainingBudget.Sub(delta)
	p.Hotel.Nights = nights
	p.Hotel.Price = newPrice
	p.Hotel.NightlyRate = perNight
	return *p.Hotel, nil
}

// AddActivity books one more activity; only its own price is checked
// against what remains.
func (p *Plan) AddActivity(a ActivityBooking) error {
	if err := p.debit(a.Price); err != nil {
		return err
	}
	p.Activities = append(p.Activities, a)
	return nil
}

// RemoveActivity drops the activity at the 0-based position i and refunds it.
func (p *Plan) RemoveActivity(i int) (ActivityBooking, error) {
	if i < 0 || i >= len(p.Activities) {
		return ActivityBooking{}, fmt.Errorf("%w: no booked activity #%d", ErrInvalidInput, i+1)
	}
	removed := p.Activities[i]
	p.Activities = append(p.Activities[:i:i], p.Activities[i+1:]...)
	p.credit(removed.Price)
	return removed, nil
}

// Clone returns a deep copy.
func (p *Plan) Clone() *Plan {
	c := *p
	if p.Departure != nil {
		d := *p.Departure
		c.Departure = &d
	}
	if p.Destination != nil {
		d := *p.Destination
		c.Destination = &d
	}
	if p.Flight != nil {
		f := *p.Flight
		c.Flight = &f
	}
	if p.Hotel != nil {
		h := *p.Hotel
		c.Hotel = &h
	}
	if p.Activities != nil {
		c.Activities = append([]ActivityBooking(nil), p.Activities...)
	}
	return &c
}
