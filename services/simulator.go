package services

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"tripplanner/models"
)

// FlightSimulator produces plausible, deterministic flight offers when the
// Amadeus credentials are not configured. Prices are marked as estimates.
type FlightSimulator struct{}

type routeInfo struct {
	basePrice int64
	duration  int // minutes
}

var simulatedRoutes = map[string]routeInfo{
	"CMN-ABJ": {420, 285}, "CMN-DKR": {310, 215}, "CMN-CDG": {180, 195},
	"NBO-KGL": {210, 90}, "NBO-ABJ": {560, 420}, "DKR-ABJ": {260, 150},
	"ABJ-KGL": {610, 390}, "CDG-LHR": {80, 75}, "LHR-JFK": {450, 480},
	"IST-DXB": {250, 240}, "FRA-IST": {150, 165}, "BER-LHR": {100, 100},
}

type simulatedCarrier struct {
	code     string
	number   string
	priceMod float64
	hub      string // empty for nonstop
}

var simulatedCarriers = []simulatedCarrier{
	{"AT", "205", 1.00, ""},
	{"AF", "1396", 1.20, "CDG"},
	{"TK", "618", 0.85, "IST"},
	{"ET", "901", 0.75, "ADD"},
	{"EK", "751", 1.35, "DXB"},
}

func (FlightSimulator) SearchFlights(_ context.Context, q models.FlightQuery) ([]models.Option, error) {
	info, ok := simulatedRoutes[q.Origin+"-"+q.Destination]
	if !ok {
		info, ok = simulatedRoutes[q.Destination+"-"+q.Origin]
	}
	if !ok {
		info = routeInfo{350, 240}
	}

	depDate, err := time.Parse(models.DateLayout, q.DepartureDate)
	if err != nil {
		return nil, fmt.Errorf("%w: departure date %q", models.ErrProviderQueryFailed, q.DepartureDate)
	}
	retDate, retErr := time.Parse(models.DateLayout, q.ReturnDate)
	travelers := decimal.NewFromInt(int64(max(1, q.Travelers)))

	var offers []models.FlightOffer
	for i, c := range simulatedCarriers {
		// per-traveler fare rounded down to 5, as the fallback always did
		fare := decimal.NewFromInt(info.basePrice).Mul(decimal.NewFromFloat(c.priceMod)).
			Div(decimal.NewFromInt(5)).Floor().Mul(decimal.NewFromInt(5))
		price := fare.Mul(travelers)
		if q.MaxPrice.IsPositive() && price.GreaterThan(q.MaxPrice) {
			continue
		}

		dur := info.duration
		if c.connects(q.Origin, q.Destination) {
			dur += 90
		}
		depTime := time.Date(depDate.Year(), depDate.Month(), depDate.Day(), 6+i*3, 0, 0, 0, time.UTC)
		offer := models.FlightOffer{
			Price:    price,
			Currency: currencyOrUSD(q.Currency),
			Outbound: simulatedItinerary(q.Origin, q.Destination, c, depTime, dur),
		}
		if retErr == nil {
			retTime := time.Date(retDate.Year(), retDate.Month(), retDate.Day(), 8+i*2, 0, 0, 0, time.UTC)
			ret := simulatedItinerary(q.Destination, q.Origin, c, retTime, dur)
			offer.Return = &ret
		}
		offers = append(offers, offer)
	}

	options := flightOptions(offers, q.ResultCap)
	for i := range options {
		options[i].Estimated = true
	}
	return options, nil
}

func (c simulatedCarrier) connects(from, to string) bool {
	return c.hub != "" && c.hub != from && c.hub != to
}

const simulatedTimeLayout = "2006-01-02T15:04:05"

// simulatedItinerary flies nonstop, or through the carrier's hub with the
// layover split evenly around a 90 minute connection.
func simulatedItinerary(from, to string, c simulatedCarrier, dep time.Time, minutes int) models.Itinerary {
	leg := func(from, to string, at time.Time, d time.Duration) models.Segment {
		return models.Segment{
			From:         from,
			To:           to,
			DepartAt:     at.Format(simulatedTimeLayout),
			ArriveAt:     at.Add(d).Format(simulatedTimeLayout),
			CarrierCode:  c.code,
			Carrier:      airlineName(c.code),
			FlightNumber: c.code + c.number,
		}
	}

	total := time.Duration(minutes) * time.Minute
	it := models.Itinerary{Duration: formatDurationMin(minutes)}
	if !c.connects(from, to) {
		it.Segments = []models.Segment{leg(from, to, dep, total)}
		return it
	}
	flying := (total - 90*time.Minute) / 2
	second := dep.Add(flying + 90*time.Minute)
	it.Segments = []models.Segment{
		leg(from, c.hub, dep, flying),
		leg(c.hub, to, second, flying),
	}
	return it
}
