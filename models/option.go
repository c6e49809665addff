package models

import (
	"github.com/shopspring/decimal"
)

// Segment is one leg of an itinerary.
type Segment struct {
	From         string `json:"from"`
	To           string `json:"to"`
	DepartAt     string `json:"depart_at"`
	ArriveAt     string `json:"arrive_at"`
	CarrierCode  string `json:"carrier_code"`
	Carrier      string `json:"carrier"`
	FlightNumber string `json:"flight_number"`
}

type Itinerary struct {
	Duration string    `json:"duration,omitempty"`
	Segments []Segment `json:"segments"`
}

// Stops is the number of connections on the itinerary.
func (it Itinerary) Stops() int {
	if len(it.Segments) == 0 {
		return 0
	}
	return len(it.Segments) - 1
}

// FlightOffer is a priced round trip, normalized from the provider response.
type FlightOffer struct {
	Price    decimal.Decimal `json:"price"`
	Currency string          `json:"currency"`
	Outbound Itinerary       `json:"outbound"`
	Return   *Itinerary      `json:"return,omitempty"`
}

// Suggestion is a hotel or activity proposal, either parsed from generated
// text or synthesized from the estimator.
type Suggestion struct {
	Name       string `json:"name"`
	Stars      int    `json:"stars,omitempty"`
	Area       string `json:"area,omitempty"`
	Breakfast  string `json:"breakfast,omitempty"`
	Duration   string `json:"duration,omitempty"`
	Category   string `json:"category,omitempty"`
	Highlights string `json:"highlights,omitempty"`
}

// Option is a priced candidate the user can pick by its 1-based Index.
type Option struct {
	Index      int             `json:"index"`
	Name       string          `json:"name"`
	Price      decimal.Decimal `json:"price"`
	Estimated  bool            `json:"estimated,omitempty"`
	Details    string          `json:"details"`
	Flight     *FlightOffer    `json:"flight,omitempty"`
	Suggestion *Suggestion     `json:"suggestion,omitempty"`
}

// FlightQuery is the parameter set of a flight search.
type FlightQuery struct {
	Origin        string
	Destination   string
	DepartureDate string
	ReturnDate    string
	Travelers     int
	MaxPrice      decimal.Decimal
	Currency      string
	ResultCap     int
}

// StayQuery parameterizes hotel and activity searches at the destination.
type StayQuery struct {
	Destination Location
	CheckIn     string
	CheckOut    string
	Nights      int
	Travelers   int
	Budget      decimal.Decimal
	ResultCap   int
}
