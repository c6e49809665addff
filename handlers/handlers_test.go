package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tripplanner/booking"
	"tripplanner/database"
	"tripplanner/models"
	"tripplanner/services"
)

func newTestServer(t *testing.T, withStore bool) (*Server, *gin.Engine) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	resolver := services.NewLocationResolver(services.DefaultExceptions(), nil, nil, time.Minute)
	suggestions := services.NewSuggestionService(nil)
	hotels := services.NewHotelSearch(nil, suggestions)
	newSession := func() *booking.Session {
		return booking.NewSession(booking.Deps{
			Flights:          services.FlightSimulator{},
			Hotels:           hotels,
			Activities:       suggestions,
			Assistant:        suggestions,
			Locations:        resolver.Fork(),
			MinBudget:        decimal.NewFromInt(100),
			MaxFlightOptions: 3,
			Now:              func() time.Time { return time.Date(2026, 1, 15, 9, 0, 0, 0, time.UTC) },
		})
	}

	var store Store
	if withStore {
		db, err := database.Open(context.Background(), "sqlite", ":memory:")
		require.NoError(t, err)
		t.Cleanup(func() { db.Close() })
		store = db
	}
	srv := NewServer(newSession, store, time.Hour)
	srv.now = func() time.Time { return time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC) }

	r := gin.New()
	srv.Register(r)
	return srv, r
}

func call(t *testing.T, r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

type searchResponse struct {
	Options []models.Option `json:"options"`
}

type errorResponse struct {
	Error  string `json:"error"`
	Detail string `json:"detail"`
}

func createSession(t *testing.T, r http.Handler) string {
	t.Helper()
	w := call(t, r, http.MethodPost, "/api/sessions", nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	v := decode[SessionView](t, w)
	require.NotEmpty(t, v.ID)
	assert.Equal(t, booking.StageCollecting, v.Stage)
	return v.ID
}

func fillDetails(t *testing.T, r http.Handler, id string) {
	t.Helper()
	w := call(t, r, http.MethodPut, "/api/sessions/"+id+"/details", DetailsRequest{
		Departure:     "Casablanca",
		Destination:   "Abidjan",
		DepartureDate: "2026-05-10",
		ReturnDate:    "2026-05-17",
		Travelers:     1,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, []string{"budget"}, decode[SessionView](t, w).Missing)

	w = call(t, r, http.MethodPut, "/api/sessions/"+id+"/budget", gin.H{"amount": "2000"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, booking.StageFlights, decode[SessionView](t, w).Stage)
}

func TestBookingFlow(t *testing.T) {
	_, r := newTestServer(t, true)
	id := createSession(t, r)
	base := "/api/sessions/" + id
	fillDetails(t, r, id)

	w := call(t, r, http.MethodPost, base+"/stages/flights/search", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	flights := decode[searchResponse](t, w).Options
	require.NotEmpty(t, flights)
	assert.LessOrEqual(t, len(flights), 3)

	w = call(t, r, http.MethodPost, base+"/stages/flights/confirm", ConfirmRequest{Option: 1})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	v := decode[SessionView](t, w)
	assert.Equal(t, booking.StageHotels, v.Stage)
	assert.True(t, v.Plan.RemainingBudget.Equal(decimal.NewFromInt(2000).Sub(flights[0].Price)))
	assert.Contains(t, v.Message, "Booked")

	w = call(t, r, http.MethodPost, base+"/stages/hotel/search", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Len(t, decode[searchResponse](t, w).Options, services.HotelCap)
	w = call(t, r, http.MethodPost, base+"/stages/hotels/confirm", ConfirmRequest{Option: 3})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = call(t, r, http.MethodPut, base+"/hotel/nights", NightsRequest{Nights: 5})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, 5, decode[SessionView](t, w).Plan.Hotel.Nights)

	w = call(t, r, http.MethodPost, base+"/stages/activities/search", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Len(t, decode[searchResponse](t, w).Options, services.ActivityCap)
	for _, n := range []int{2, 4} {
		w = call(t, r, http.MethodPost, base+"/stages/activities/confirm", ConfirmRequest{Option: n})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	}
	w = call(t, r, http.MethodDelete, base+"/activities/1", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	v = decode[SessionView](t, w)
	require.Len(t, v.Plan.Activities, 1)
	require.NoError(t, v.Plan.CheckLedger())

	w = call(t, r, http.MethodPost, base+"/itinerary", GenerateRequest{TravelerName: "Awa"})
	assert.Equal(t, http.StatusConflict, w.Code, "plan is not finished")

	w = call(t, r, http.MethodPost, base+"/finish", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, booking.StageSummary, decode[SessionView](t, w).Stage)

	w = call(t, r, http.MethodGet, base+"/summary", nil)
	require.Equal(t, http.StatusOK, w.Code)
	summary := decode[SummaryResponse](t, w)
	assert.Equal(t, "Casablanca (CMN) -> Abidjan (ABJ)", summary.Route)
	assert.Contains(t, summary.Text, "TRIP ITINERARY")

	w = call(t, r, http.MethodPost, base+"/itinerary", GenerateRequest{TravelerName: "Awa"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	gen := decode[GenerateResponse](t, w)

	w = call(t, r, http.MethodGet, gen.PDFURL, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("%PDF")))
}

func TestErrorMapping(t *testing.T) {
	_, r := newTestServer(t, false)
	id := createSession(t, r)
	base := "/api/sessions/" + id

	w := call(t, r, http.MethodPost, base+"/stages/flights/search", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, decode[errorResponse](t, w).Detail, "missing trip details")

	w = call(t, r, http.MethodPut, base+"/details", DetailsRequest{Destination: "Atlantis"})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, decode[errorResponse](t, w).Error, "couldn't find that place")

	w = call(t, r, http.MethodPut, base+"/details", DetailsRequest{DepartureDate: "2026-05-10", ReturnDate: "2026-05-01"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = call(t, r, http.MethodPut, base+"/details", DetailsRequest{DepartureDate: "2025-12-01", ReturnDate: "2025-12-05"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decode[errorResponse](t, w).Error, "in the past")

	w = call(t, r, http.MethodPost, base+"/stages/cars/search", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = call(t, r, http.MethodPost, base+"/save", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	w = call(t, r, http.MethodGet, "/api/sessions/nope", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestBudgetChangeNeedsConfirmation(t *testing.T) {
	_, r := newTestServer(t, false)
	id := createSession(t, r)
	base := "/api/sessions/" + id
	fillDetails(t, r, id)

	call(t, r, http.MethodPost, base+"/stages/flights/search", nil)
	w := call(t, r, http.MethodPost, base+"/stages/flights/confirm", ConfirmRequest{Option: 1})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = call(t, r, http.MethodPut, base+"/budget", gin.H{"amount": "3000"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = call(t, r, http.MethodPut, base+"/budget", gin.H{"amount": "3000", "confirm": true})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	v := decode[SessionView](t, w)
	assert.Nil(t, v.Plan.Flight)
	assert.True(t, v.Plan.RemainingBudget.Equal(decimal.NewFromInt(3000)))
}

func TestSaveAndResume(t *testing.T) {
	srv, r := newTestServer(t, true)
	id := createSession(t, r)
	base := "/api/sessions/" + id
	fillDetails(t, r, id)
	call(t, r, http.MethodPost, base+"/stages/flights/search", nil)
	require.Equal(t, http.StatusOK, call(t, r, http.MethodPost, base+"/stages/flights/skip", nil).Code)

	w := call(t, r, http.MethodPost, base+"/save", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	// resuming a live session keeps its state
	w = call(t, r, http.MethodPost, "/api/sessions", CreateSessionRequest{ResumeID: id})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	v := decode[SessionView](t, w)
	assert.Equal(t, booking.StageHotels, v.Stage)
	assert.Contains(t, v.Skipped, booking.StageFlights)
	assert.Equal(t, 1, srv.activeSessions())

	srv.drop(id)
	w = call(t, r, http.MethodPost, "/api/sessions", CreateSessionRequest{ResumeID: id})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	v = decode[SessionView](t, w)
	assert.Equal(t, id, v.ID)
	assert.Equal(t, booking.StageFlights, v.Stage, "a skip without later bookings is not stored")
	assert.True(t, v.Plan.RemainingBudget.Equal(decimal.NewFromInt(2000)))

	w = call(t, r, http.MethodPost, "/api/sessions", CreateSessionRequest{ResumeID: "missing"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestIdleSessionsAreEvicted(t *testing.T) {
	srv, r := newTestServer(t, false)
	srv.sessions = cache.New(30*time.Millisecond, time.Minute)
	id := createSession(t, r)
	require.Equal(t, http.StatusOK, call(t, r, http.MethodGet, "/api/sessions/"+id, nil).Code)

	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, http.StatusNotFound, call(t, r, http.MethodGet, "/api/sessions/"+id, nil).Code)
	assert.Equal(t, 0, srv.activeSessions())
}

func TestHealthHandler(t *testing.T) {
	_, r := newTestServer(t, true)
	w := call(t, r, http.MethodGet, "/api/health", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode[map[string]any](t, w)
	assert.Equal(t, "ok", body["database"])

	_, r = newTestServer(t, false)
	w = call(t, r, http.MethodGet, "/api/health", nil)
	assert.Equal(t, "not initialized", decode[map[string]any](t, w)["database"])
}

func TestStatusOf(t *testing.T) {
	cases := map[error]int{
		models.ErrLedgerCorrupted:     http.StatusInternalServerError,
		models.ErrAuthUnavailable:     http.StatusServiceUnavailable,
		models.ErrProviderQueryFailed: http.StatusBadGateway,
		models.ErrBudgetExceeded:      http.StatusConflict,
		models.ErrNotFound:            http.StatusNotFound,
	}
	for err, want := range cases {
		assert.Equal(t, want, statusOf(err), err.Error())
	}
}
