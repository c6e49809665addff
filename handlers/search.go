package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"tripplanner/booking"
	"tripplanner/models"
)

type CreateSessionRequest struct {
	ResumeID string `json:"resume_id"`
}

type SessionView struct {
	ID      string                            `json:"id"`
	Stage   booking.Stage                     `json:"stage"`
	Plan    *models.Plan                      `json:"plan"`
	Missing []string                          `json:"missing_details,omitempty"`
	Skipped []booking.Stage                   `json:"skipped,omitempty"`
	Results map[booking.Stage][]models.Option `json:"results,omitempty"`
	Spent   decimal.Decimal                   `json:"spent"`
	Message string                            `json:"message,omitempty"`
}

func view(id string, s *booking.Session) SessionView {
	v := SessionView{
		ID:      id,
		Stage:   s.Stage(),
		Plan:    s.Plan(),
		Missing: s.MissingDetails(),
		Results: map[booking.Stage][]models.Option{},
	}
	v.Spent = v.Plan.Spent()
	for _, st := range []booking.Stage{booking.StageFlights, booking.StageHotels, booking.StageActivities} {
		if s.Skipped(st) {
			v.Skipped = append(v.Skipped, st)
		}
		if r := s.Results(st); len(r) > 0 {
			v.Results[st] = r
		}
	}
	return v
}

// CreateSessionHandler starts a session, optionally resuming a saved plan.
func (s *Server) CreateSessionHandler(c *gin.Context) {
	var req CreateSessionRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
			return
		}
	}

	id := newID()
	session := s.newSession()
	if req.ResumeID != "" {
		// a plan that is still open keeps its live state
		if entry, ok := s.get(req.ResumeID); ok {
			s.respondEntry(c, http.StatusOK, req.ResumeID, entry)
			return
		}
		if s.store == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Saved plans are not available"})
			return
		}
		saved, err := s.store.GetPlan(c.Request.Context(), req.ResumeID)
		if err == nil {
			err = session.Restore(saved.Plan)
		}
		if err != nil {
			c.JSON(statusOf(err), gin.H{"error": booking.UserMessage(err), "detail": err.Error()})
			return
		}
		id = req.ResumeID
	}

	entry, created := s.add(id, session)
	s.respondEntry(c, lo.Ternary(created, http.StatusCreated, http.StatusOK), id, entry)
}

func (s *Server) respondEntry(c *gin.Context, status int, id string, entry *sessionEntry) {
	entry.mu.Lock()
	defer entry.mu.Unlock()
	c.JSON(status, view(id, entry.session))
}

func (s *Server) GetSessionHandler(c *gin.Context) {
	s.withSession(c, func(sess *booking.Session) (any, error) {
		return view(c.Param("id"), sess), nil
	})
}

type DetailsRequest struct {
	Departure     string `json:"departure"`
	Destination   string `json:"destination"`
	DepartureDate string `json:"departure_date"`
	ReturnDate    string `json:"return_date"`
	Travelers     int    `json:"travelers"`
}

// DetailsHandler applies the fields present in the request, in order, and
// stops at the first one that is rejected.
func (s *Server) DetailsHandler(c *gin.Context) {
	var req DetailsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}
	ctx := c.Request.Context()
	s.withSession(c, func(sess *booking.Session) (any, error) {
		if req.Departure != "" {
			if _, err := sess.SetDeparture(ctx, req.Departure); err != nil {
				return nil, err
			}
		}
		if req.Destination != "" {
			if _, err := sess.SetDestination(ctx, req.Destination); err != nil {
				return nil, err
			}
		}
		if req.DepartureDate != "" || req.ReturnDate != "" {
			if err := sess.SetDates(req.DepartureDate, req.ReturnDate); err != nil {
				return nil, err
			}
		}
		if req.Travelers != 0 {
			if err := sess.SetTravelers(req.Travelers); err != nil {
				return nil, err
			}
		}
		return view(c.Param("id"), sess), nil
	})
}

type BudgetRequest struct {
	Amount  decimal.Decimal `json:"amount"`
	Confirm bool            `json:"confirm"`
}

func (s *Server) BudgetHandler(c *gin.Context) {
	var req BudgetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}
	s.withSession(c, func(sess *booking.Session) (any, error) {
		if err := sess.ChangeTotalBudget(req.Amount, req.Confirm); err != nil {
			return nil, err
		}
		return view(c.Param("id"), sess), nil
	})
}

// ─── Stages ───────────────────────────────────────────────────────────────────

func stageParam(c *gin.Context) (booking.Stage, error) {
	return booking.ParseStage(c.Param("stage"))
}

func (s *Server) SearchHandler(c *gin.Context) {
	ctx := c.Request.Context()
	s.withSession(c, func(sess *booking.Session) (any, error) {
		stage, err := stageParam(c)
		if err != nil {
			return nil, err
		}
		options, err := sess.Search(ctx, stage)
		if err != nil {
			return nil, err
		}
		return gin.H{
			"stage":            stage,
			"options":          options,
			"remaining_budget": sess.Plan().RemainingBudget,
		}, nil
	})
}

type ConfirmRequest struct {
	Option int `json:"option" binding:"required"`
}

func (s *Server) ConfirmHandler(c *gin.Context) {
	var req ConfirmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}
	s.withSession(c, func(sess *booking.Session) (any, error) {
		stage, err := stageParam(c)
		if err != nil {
			return nil, err
		}
		opt, err := sess.Confirm(stage, req.Option)
		if err != nil {
			return nil, err
		}
		v := view(c.Param("id"), sess)
		v.Message = fmt.Sprintf("Booked %s for $%s. Remaining budget: $%s",
			opt.Name, opt.Price.StringFixed(2), v.Plan.RemainingBudget.StringFixed(2))
		return v, nil
	})
}

func (s *Server) SkipHandler(c *gin.Context) {
	s.withSession(c, func(sess *booking.Session) (any, error) {
		stage, err := stageParam(c)
		if err != nil {
			return nil, err
		}
		if err := sess.Skip(stage); err != nil {
			return nil, err
		}
		return view(c.Param("id"), sess), nil
	})
}

func (s *Server) CancelHandler(c *gin.Context) {
	s.withSession(c, func(sess *booking.Session) (any, error) {
		stage, err := stageParam(c)
		if err != nil {
			return nil, err
		}
		refund, err := sess.Cancel(stage)
		if err != nil {
			return nil, err
		}
		v := view(c.Param("id"), sess)
		v.Message = fmt.Sprintf("Refunded $%s. Remaining budget: $%s",
			refund.StringFixed(2), v.Plan.RemainingBudget.StringFixed(2))
		return v, nil
	})
}

type AskRequest struct {
	Question string `json:"question" binding:"required"`
}

func (s *Server) AskHandler(c *gin.Context) {
	var req AskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}
	ctx := c.Request.Context()
	s.withSession(c, func(sess *booking.Session) (any, error) {
		stage, err := stageParam(c)
		if err != nil {
			return nil, err
		}
		answer, err := sess.Ask(ctx, stage, req.Question)
		if err != nil {
			return nil, err
		}
		return gin.H{"answer": answer}, nil
	})
}

// ─── Bookings ─────────────────────────────────────────────────────────────────

func (s *Server) RemoveActivityHandler(c *gin.Context) {
	s.withSession(c, func(sess *booking.Session) (any, error) {
		position, err := strconv.Atoi(c.Param("position"))
		if err != nil {
			return nil, fmt.Errorf("%w: activity position %q", models.ErrInvalidInput, c.Param("position"))
		}
		removed, err := sess.RemoveActivity(position)
		if err != nil {
			return nil, err
		}
		v := view(c.Param("id"), sess)
		v.Message = fmt.Sprintf("Removed %s. Refunded $%s", removed.Name, removed.Price.StringFixed(2))
		return v, nil
	})
}

type NightsRequest struct {
	Nights int `json:"nights" binding:"required"`
}

func (s *Server) HotelNightsHandler(c *gin.Context) {
	var req NightsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}
	s.withSession(c, func(sess *booking.Session) (any, error) {
		if _, err := sess.ModifyHotelNights(req.Nights); err != nil {
			return nil, err
		}
		return view(c.Param("id"), sess), nil
	})
}

func (s *Server) FinishHandler(c *gin.Context) {
	s.withSession(c, func(sess *booking.Session) (any, error) {
		if err := sess.Finish(); err != nil {
			return nil, err
		}
		return view(c.Param("id"), sess), nil
	})
}

func (s *Server) ResetHandler(c *gin.Context) {
	s.withSession(c, func(sess *booking.Session) (any, error) {
		sess.Reset()
		return view(c.Param("id"), sess), nil
	})
}
