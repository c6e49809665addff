package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"tripplanner/models"
)

// ─── Amadeus Client ───────────────────────────────────────────────────────────

type AmadeusClient struct {
	baseURL    string
	tokens     TokenSource
	httpClient *http.Client
}

func NewAmadeusClient(baseURL string, tokens TokenSource, httpClient *http.Client) *AmadeusClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 5 * time.Second}
	}
	return &AmadeusClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		tokens:     tokens,
		httpClient: httpClient,
	}
}

// doRequest issues an authenticated GET. A 401 means the cached token was
// revoked early: the token is refreshed and the request repeated once.
func (c *AmadeusClient) doRequest(ctx context.Context, path string, query url.Values) ([]byte, error) {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	for attempt := 0; attempt < 2; attempt++ {
		token, err := c.tokens.Token(ctx)
		if err != nil {
			return nil, err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", models.ErrProviderQueryFailed, err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", models.ErrProviderQueryFailed, err)
		}
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()

		if resp.StatusCode == http.StatusUnauthorized && attempt == 0 {
			log.Println("🔑 Amadeus rejected the access token — refreshing once")
			c.tokens.Invalidate()
			continue
		}
		if resp.StatusCode == http.StatusUnauthorized {
			return nil, fmt.Errorf("%w: token rejected after refresh", models.ErrAuthUnavailable)
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, fmt.Errorf("%w: amadeus error (%d): %s", models.ErrProviderQueryFailed, resp.StatusCode, string(body))
		}
		return body, nil
	}
	return nil, fmt.Errorf("%w: token rejected after refresh", models.ErrAuthUnavailable)
}

// ─── Flight Search ────────────────────────────────────────────────────────────

// SearchFlights queries Flight Offers Search and returns at most q.ResultCap
// normalized options.
func (c *AmadeusClient) SearchFlights(ctx context.Context, q models.FlightQuery) ([]models.Option, error) {
	params := url.Values{}
	params.Set("originLocationCode", q.Origin)
	params.Set("destinationLocationCode", q.Destination)
	params.Set("departureDate", q.DepartureDate)
	if q.ReturnDate != "" {
		params.Set("returnDate", q.ReturnDate)
	}
	params.Set("adults", strconv.Itoa(max(1, q.Travelers)))
	params.Set("currencyCode", currencyOrUSD(q.Currency))
	if q.ResultCap > 0 {
		params.Set("max", strconv.Itoa(q.ResultCap))
	}
	if q.MaxPrice.IsPositive() {
		params.Set("maxPrice", q.MaxPrice.Ceil().String())
	}

	body, err := c.doRequest(ctx, "/v2/shopping/flight-offers", params)
	if err != nil {
		return nil, fmt.Errorf("flight search failed: %w", err)
	}

	offers, err := parseFlightOffers(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrProviderQueryFailed, err)
	}
	return flightOptions(offers, q.ResultCap), nil
}

// Amadeus flight offers response structures
type amadeusFlightOffersResponse struct {
	Data []amadeusFlightOffer `json:"data"`
}

type amadeusSegment struct {
	Departure struct {
		IataCode string `json:"iataCode"`
		At       string `json:"at"`
	} `json:"departure"`
	Arrival struct {
		IataCode string `json:"iataCode"`
		At       string `json:"at"`
	} `json:"arrival"`
	CarrierCode string `json:"carrierCode"`
	Number      string `json:"number"`
}

type amadeusItinerary struct {
	Duration string           `json:"duration"`
	Segments []amadeusSegment `json:"segments"`
}

type amadeusFlightOffer struct {
	Price struct {
		GrandTotal string `json:"grandTotal"`
		Currency   string `json:"currency"`
	} `json:"price"`
	Itineraries []amadeusItinerary `json:"itineraries"`
}

func parseFlightOffers(data []byte) ([]models.FlightOffer, error) {
	var resp amadeusFlightOffersResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse flight offers: %w", err)
	}

	offers := make([]models.FlightOffer, 0, len(resp.Data))
	for _, raw := range resp.Data {
		if len(raw.Itineraries) < 1 {
			continue
		}
		price, err := decimal.NewFromString(raw.Price.GrandTotal)
		if err != nil || !price.IsPositive() {
			continue
		}

		offer := models.FlightOffer{
			Price:    price,
			Currency: currencyOrUSD(raw.Price.Currency),
			Outbound: normalizeItinerary(raw.Itineraries[0]),
		}
		if len(raw.Itineraries) >= 2 {
			ret := normalizeItinerary(raw.Itineraries[1])
			offer.Return = &ret
		}
		offers = append(offers, offer)
	}
	return offers, nil
}

func normalizeItinerary(it amadeusItinerary) models.Itinerary {
	out := models.Itinerary{
		Duration: parseDuration(it.Duration),
		Segments: make([]models.Segment, 0, len(it.Segments)),
	}
	for _, s := range it.Segments {
		out.Segments = append(out.Segments, models.Segment{
			From:         s.Departure.IataCode,
			To:           s.Arrival.IataCode,
			DepartAt:     s.Departure.At,
			ArriveAt:     s.Arrival.At,
			CarrierCode:  s.CarrierCode,
			Carrier:      airlineName(s.CarrierCode),
			FlightNumber: s.CarrierCode + s.Number,
		})
	}
	return out
}

// flightOptions numbers the offers from 1 and renders their details.
func flightOptions(offers []models.FlightOffer, limit int) []models.Option {
	if limit > 0 && len(offers) > limit {
		offers = offers[:limit]
	}
	options := make([]models.Option, 0, len(offers))
	for i := range offers {
		offer := offers[i]
		name := "Flight"
		if len(offer.Outbound.Segments) > 0 {
			first := offer.Outbound.Segments[0]
			name = first.Carrier + " " + first.FlightNumber
		}
		options = append(options, models.Option{
			Index:   i + 1,
			Name:    name,
			Price:   offer.Price,
			Details: describeFlight(offer),
			Flight:  &offer,
		})
	}
	return options
}

func describeFlight(offer models.FlightOffer) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s", offer.Price.StringFixed(2), offer.Currency)
	describeItinerary(&b, "Outbound", offer.Outbound)
	if offer.Return != nil {
		describeItinerary(&b, "Return", *offer.Return)
	}
	return b.String()
}

func describeItinerary(b *strings.Builder, label string, it models.Itinerary) {
	fmt.Fprintf(b, "\n%s (%s, %d stop(s)):", label, it.Duration, it.Stops())
	for _, s := range it.Segments {
		fmt.Fprintf(b, "\n  %s -> %s  %s  dep %s  arr %s", s.From, s.To, s.FlightNumber, s.DepartAt, s.ArriveAt)
	}
}

// ─── Location Search ──────────────────────────────────────────────────────────

type amadeusLocationsResponse struct {
	Data []struct {
		SubType  string `json:"subType"`
		Name     string `json:"name"`
		IataCode string `json:"iataCode"`
		Address  struct {
			CityName string `json:"cityName"`
		} `json:"address"`
	} `json:"data"`
}

// SearchLocations runs a keyword search over cities and airports and returns
// up to five candidates in provider order.
func (c *AmadeusClient) SearchLocations(ctx context.Context, keyword string) ([]models.Location, error) {
	params := url.Values{}
	params.Set("subType", "CITY,AIRPORT")
	params.Set("keyword", keyword)
	params.Set("page[limit]", "5")

	body, err := c.doRequest(ctx, "/v1/reference-data/locations", params)
	if err != nil {
		return nil, fmt.Errorf("location search failed: %w", err)
	}

	var resp amadeusLocationsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: failed to parse locations: %v", models.ErrProviderQueryFailed, err)
	}

	title := cases.Title(language.Und)
	out := make([]models.Location, 0, len(resp.Data))
	for _, d := range resp.Data {
		name := d.Name
		if d.SubType == "AIRPORT" && d.Address.CityName != "" {
			name = d.Address.CityName
		}
		loc, err := models.NewLocation(title.String(strings.ToLower(name)), d.IataCode)
		if err != nil {
			continue
		}
		out = append(out, loc)
		if len(out) == 5 {
			break
		}
	}
	return out, nil
}

// ─── Hotel Search ─────────────────────────────────────────────────────────────

// SearchHotels searches hotels via Amadeus Hotel List + Hotel Offers APIs and
// keeps the offers whose total stays within q.Budget.
func (c *AmadeusClient) SearchHotels(ctx context.Context, q models.StayQuery) ([]models.Option, error) {
	// Step 1: Get hotel IDs for the city
	hotelIDs, err := c.getHotelIDsByCity(ctx, q.Destination.Code)
	if err != nil {
		return nil, fmt.Errorf("hotel list failed: %w", err)
	}
	if len(hotelIDs) == 0 {
		return nil, nil
	}

	// Limit to first 20 IDs to avoid hitting rate limits
	if len(hotelIDs) > 20 {
		hotelIDs = hotelIDs[:20]
	}

	// Step 2: Get available offers for those hotels
	return c.getHotelOffers(ctx, hotelIDs, q)
}

type amadeusHotelListResponse struct {
	Data []struct {
		HotelID string `json:"hotelId"`
	} `json:"data"`
}

func (c *AmadeusClient) getHotelIDsByCity(ctx context.Context, cityCode string) ([]string, error) {
	params := url.Values{}
	params.Set("cityCode", airportToCity(cityCode))
	params.Set("radius", "5")
	params.Set("radiusUnit", "KM")
	params.Set("hotelSource", "ALL")

	body, err := c.doRequest(ctx, "/v1/reference-data/locations/hotels/by-city", params)
	if err != nil {
		return nil, err
	}

	var resp amadeusHotelListResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: failed to parse hotel list: %v", models.ErrProviderQueryFailed, err)
	}

	ids := make([]string, 0, len(resp.Data))
	for _, h := range resp.Data {
		ids = append(ids, h.HotelID)
	}
	return ids, nil
}

type amadeusHotelOffersResponse struct {
	Data []struct {
		Hotel struct {
			Name     string `json:"name"`
			CityCode string `json:"cityCode"`
			Address  struct {
				CityName string `json:"cityName"`
			} `json:"address"`
			Rating string `json:"rating"`
		} `json:"hotel"`
		Available bool `json:"available"`
		Offers    []struct {
			Price struct {
				Total    string `json:"total"`
				Currency string `json:"currency"`
			} `json:"price"`
			BoardType string `json:"boardType"`
		} `json:"offers"`
	} `json:"data"`
}

func (c *AmadeusClient) getHotelOffers(ctx context.Context, hotelIDs []string, q models.StayQuery) ([]models.Option, error) {
	params := url.Values{}
	params.Set("hotelIds", strings.Join(hotelIDs, ","))
	params.Set("checkInDate", q.CheckIn)
	params.Set("checkOutDate", q.CheckOut)
	params.Set("adults", strconv.Itoa(max(1, q.Travelers)))
	params.Set("roomQuantity", "1")
	params.Set("currency", "USD")
	params.Set("bestRateOnly", "true")

	body, err := c.doRequest(ctx, "/v3/shopping/hotel-offers", params)
	if err != nil {
		return nil, fmt.Errorf("hotel offers failed: %w", err)
	}

	var resp amadeusHotelOffersResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: failed to parse hotel offers: %v", models.ErrProviderQueryFailed, err)
	}

	var options []models.Option
	for _, item := range resp.Data {
		if !item.Available || len(item.Offers) == 0 {
			continue
		}
		price, err := decimal.NewFromString(item.Offers[0].Price.Total)
		if err != nil || !price.IsPositive() {
			continue
		}
		if q.Budget.IsPositive() && price.GreaterThan(q.Budget) {
			continue
		}

		area := item.Hotel.Address.CityName
		if area == "" {
			area = item.Hotel.CityCode
		}
		s := &models.Suggestion{
			Name:      item.Hotel.Name,
			Stars:     parseRating(item.Hotel.Rating),
			Area:      area,
			Breakfast: boardDescription(item.Offers[0].BoardType),
		}
		options = append(options, models.Option{
			Index:      len(options) + 1,
			Name:       s.Name,
			Price:      price.Round(2),
			Details:    describeSuggestion(s, price, q.Nights),
			Suggestion: s,
		})
		if q.ResultCap > 0 && len(options) == q.ResultCap {
			break
		}
	}
	return options, nil
}

// ─── Helpers ──────────────────────────────────────────────────────────────────

// parseDuration converts ISO 8601 duration (PT5H30M) to human readable (5h 30m)
func parseDuration(iso string) string {
	if iso == "" {
		return ""
	}
	iso = strings.TrimPrefix(iso, "PT")
	result := ""
	hIdx := strings.Index(iso, "H")
	mIdx := strings.Index(iso, "M")
	if hIdx >= 0 {
		result += iso[:hIdx] + "h"
		iso = iso[hIdx+1:]
		mIdx = strings.Index(iso, "M")
	}
	if mIdx >= 0 && mIdx < len(iso) {
		if result != "" {
			result += " "
		}
		result += iso[:mIdx] + "m"
	}
	return result
}

func formatDurationMin(minutes int) string {
	h := minutes / 60
	m := minutes % 60
	if m > 0 {
		return fmt.Sprintf("%dh %dm", h, m)
	}
	return fmt.Sprintf("%dh", h)
}

func parseRating(s string) int {
	r, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || r <= 0 {
		return 0
	}
	// Amadeus returns star ratings 1-5
	return min(r, 5)
}

func boardDescription(board string) string {
	switch board {
	case "BREAKFAST", "HALF_BOARD", "FULL_BOARD", "ALL_INCLUSIVE":
		return "Included"
	case "":
		return ""
	default:
		return "Not included"
	}
}

func currencyOrUSD(c string) string {
	if c == "" {
		return "USD"
	}
	return c
}

// airportToCity maps airport IATA codes to city codes for hotel search
func airportToCity(airport string) string {
	mapping := map[string]string{
		"LHR": "LON", "LGW": "LON", "STN": "LON", "LTN": "LON",
		"CDG": "PAR", "ORY": "PAR",
		"JFK": "NYC", "LGA": "NYC", "EWR": "NYC",
		"BER": "BER", "SXF": "BER",
		"FCO": "ROM", "CIA": "ROM",
		"NRT": "TYO", "HND": "TYO",
		"CMN": "CAS",
	}
	if city, ok := mapping[airport]; ok {
		return city
	}
	return airport // fallback: use as-is
}

// airlineName returns the airline for an IATA carrier code; unknown codes are
// shown as they are.
func airlineName(code string) string {
	names := map[string]string{
		"TK": "Turkish Airlines",
		"LH": "Lufthansa",
		"AF": "Air France",
		"BA": "British Airways",
		"EK": "Emirates",
		"QR": "Qatar Airways",
		"AT": "Royal Air Maroc",
		"HF": "Air Côte d'Ivoire",
		"WB": "RwandAir",
		"HC": "Air Senegal",
		"KL": "KLM",
		"IB": "Iberia",
		"UA": "United Airlines",
		"AA": "American Airlines",
		"DL": "Delta Air Lines",
		"EY": "Etihad Airways",
		"MS": "EgyptAir",
		"ET": "Ethiopian Airlines",
		"KQ": "Kenya Airways",
		"SA": "South African Airways",
		"W6": "Wizz Air",
		"FR": "Ryanair",
		"U2": "EasyJet",
	}
	if name, ok := names[code]; ok {
		return name
	}
	return code
}
