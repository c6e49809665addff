package handlers

import (
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"tripplanner/booking"
	"tripplanner/database"
	"tripplanner/models"
	"tripplanner/services"
)

type SummaryResponse struct {
	services.PlanSummary
	Stage booking.Stage `json:"stage"`
	Text  string        `json:"text"`
}

func (s *Server) SummaryHandler(c *gin.Context) {
	s.withSession(c, func(sess *booking.Session) (any, error) {
		summary := services.Summarize(sess.Plan())
		return SummaryResponse{PlanSummary: summary, Stage: sess.Stage(), Text: summary.Text()}, nil
	})
}

// SaveHandler stores the plan under the session id so it can be resumed
// with POST /sessions {"resume_id": ...}.
func (s *Server) SaveHandler(c *gin.Context) {
	if s.store == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Saved plans are not available"})
		return
	}
	ctx := c.Request.Context()
	s.withSession(c, func(sess *booking.Session) (any, error) {
		id := c.Param("id")
		if err := s.store.SavePlan(ctx, id, sess.Plan(), s.now()); err != nil {
			log.Printf("❌ Failed to save plan %s: %v", id, err)
			return nil, fmt.Errorf("save plan: %w", err)
		}
		return gin.H{"id": id, "message": "Plan saved"}, nil
	})
}

type GenerateRequest struct {
	TravelerName string `json:"traveler_name"`
}

type GenerateResponse struct {
	ItineraryID string `json:"itinerary_id"`
	PDFURL      string `json:"pdf_url"`
	Message     string `json:"message"`
}

// GenerateHandler renders the finished plan as a PDF and stores it for
// download.
func (s *Server) GenerateHandler(c *gin.Context) {
	if s.store == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Itinerary storage is not available"})
		return
	}
	var req GenerateRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
			return
		}
	}

	ctx := c.Request.Context()
	s.withSession(c, func(sess *booking.Session) (any, error) {
		if sess.Stage() != booking.StageSummary {
			return nil, fmt.Errorf("%w: finish the plan before generating the itinerary", models.ErrInvalidTransition)
		}
		planID := c.Param("id")
		plan := sess.Plan()

		now := s.now()
		pdfBytes, err := services.GeneratePDFBytes(services.Summarize(plan), req.TravelerName, now)
		if err != nil {
			log.Printf("❌ PDF generation failed: %v", err)
			return nil, fmt.Errorf("generate PDF: %w", err)
		}

		// the itinerary row references the stored plan
		if err := s.store.SavePlan(ctx, planID, plan, now); err != nil {
			log.Printf("❌ Failed to save plan %s: %v", planID, err)
			return nil, fmt.Errorf("save plan: %w", err)
		}
		itin := &database.Itinerary{
			ID:           newID(),
			PlanID:       planID,
			PDFData:      pdfBytes,
			TravelerName: req.TravelerName,
			CreatedAt:    now,
		}
		if err := s.store.SaveItinerary(ctx, itin); err != nil {
			log.Printf("❌ Failed to save itinerary with PDF: %v", err)
			return nil, fmt.Errorf("save itinerary: %w", err)
		}

		log.Printf("✅ PDF generated for itinerary %s (%d bytes)", itin.ID, len(pdfBytes))
		return GenerateResponse{
			ItineraryID: itin.ID,
			PDFURL:      "/api/download/" + itin.ID,
			Message:     "PDF generated successfully",
		}, nil
	})
}
