package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"tripplanner/booking"
	"tripplanner/database"
	"tripplanner/models"
)

// Store is the persistence used by the API. It may be nil, in which case
// save and itinerary routes answer 503.
type Store interface {
	Ping(ctx context.Context) error
	SavePlan(ctx context.Context, id string, p *models.Plan, at time.Time) error
	GetPlan(ctx context.Context, id string) (*database.SavedPlan, error)
	SaveItinerary(ctx context.Context, i *database.Itinerary) error
	GetItinerary(ctx context.Context, id string) (*database.Itinerary, error)
}

// DefaultSessionIdle is how long an untouched session stays live.
const DefaultSessionIdle = 2 * time.Hour

// Server holds the live sessions. Every session owns its plan and location
// cache; requests on one session are serialized. Sessions idle longer than
// the configured TTL are evicted.
type Server struct {
	newSession func() *booking.Session
	store      Store
	now        func() time.Time

	mu       sync.Mutex
	sessions *cache.Cache
}

type sessionEntry struct {
	mu      sync.Mutex
	session *booking.Session
}

func NewServer(newSession func() *booking.Session, store Store, idle time.Duration) *Server {
	if idle <= 0 {
		idle = DefaultSessionIdle
	}
	return &Server{
		newSession: newSession,
		store:      store,
		now:        time.Now,
		sessions:   cache.New(idle, idle/2),
	}
}

// Register mounts the API routes on r.
func (s *Server) Register(r gin.IRouter) {
	api := r.Group("/api")
	{
		api.GET("/health", s.HealthHandler)
		api.GET("/download/:id", s.DownloadHandler)

		api.POST("/sessions", s.CreateSessionHandler)
		sess := api.Group("/sessions/:id")
		{
			sess.GET("", s.GetSessionHandler)
			sess.PUT("/details", s.DetailsHandler)
			sess.PUT("/budget", s.BudgetHandler)

			sess.POST("/stages/:stage/search", s.SearchHandler)
			sess.POST("/stages/:stage/confirm", s.ConfirmHandler)
			sess.POST("/stages/:stage/skip", s.SkipHandler)
			sess.POST("/stages/:stage/cancel", s.CancelHandler)
			sess.POST("/stages/:stage/ask", s.AskHandler)

			sess.DELETE("/activities/:position", s.RemoveActivityHandler)
			sess.PUT("/hotel/nights", s.HotelNightsHandler)
			sess.POST("/finish", s.FinishHandler)
			sess.POST("/reset", s.ResetHandler)

			sess.GET("/summary", s.SummaryHandler)
			sess.POST("/save", s.SaveHandler)
			sess.POST("/itinerary", s.GenerateHandler)
		}
	}
}

// add registers session under id and returns its entry. When id is already
// live the existing entry wins and session is discarded.
func (s *Server) add(id string, session *booking.Session) (entry *sessionEntry, created bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v, ok := s.sessions.Get(id); ok {
		entry = v.(*sessionEntry)
		s.sessions.Set(id, entry, cache.DefaultExpiration)
		return entry, false
	}
	entry = &sessionEntry{session: session}
	s.sessions.Set(id, entry, cache.DefaultExpiration)
	return entry, true
}

// get returns the live entry for id and restarts its idle timer.
func (s *Server) get(id string) (*sessionEntry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.sessions.Get(id)
	if !ok {
		return nil, false
	}
	s.sessions.Set(id, v, cache.DefaultExpiration)
	return v.(*sessionEntry), true
}

func (s *Server) drop(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions.Delete(id)
}

func (s *Server) activeSessions() int {
	s.sessions.DeleteExpired()
	return s.sessions.ItemCount()
}

// withSession runs fn with the session named in the URL locked, then writes
// its result or error.
func (s *Server) withSession(c *gin.Context, fn func(*booking.Session) (any, error)) {
	id := c.Param("id")
	entry, ok := s.get(id)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Session not found"})
		return
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	result, err := fn(entry.session)
	if err != nil {
		s.fail(c, id, entry.session, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// fail writes err as JSON. A corrupted ledger ends the session after its
// state is logged.
func (s *Server) fail(c *gin.Context, id string, session *booking.Session, err error) {
	if booking.Fatal(err) {
		dump, _ := json.Marshal(session.Plan())
		log.Printf("❌ Session %s aborted: %v\nPlan: %s", id, err, dump)
		s.drop(id)
	}
	c.JSON(statusOf(err), gin.H{
		"error":  booking.UserMessage(err),
		"detail": err.Error(),
	})
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, models.ErrLedgerCorrupted):
		return http.StatusInternalServerError
	case errors.Is(err, models.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrLocationNotFound), errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrBudgetExceeded), errors.Is(err, models.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, models.ErrProviderQueryFailed):
		return http.StatusBadGateway
	case errors.Is(err, models.ErrAuthUnavailable):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func newID() string {
	return uuid.New().String()
}
