package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"tripplanner/models"
)

func (s *Server) DownloadHandler(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing itinerary ID"})
		return
	}
	if s.store == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Itinerary storage is not available"})
		return
	}

	itinerary, err := s.store.GetItinerary(c.Request.Context(), id)
	if errors.Is(err, models.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Itinerary not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load itinerary"})
		return
	}

	if len(itinerary.PDFData) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "PDF has not been generated for this itinerary"})
		return
	}

	c.Header("Content-Disposition", "attachment; filename=trip-itinerary.pdf")
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, "application/pdf", itinerary.PDFData)
}

func (s *Server) HealthHandler(c *gin.Context) {
	dbStatus := "ok"
	if s.store == nil {
		dbStatus = "not initialized"
	} else if err := s.store.Ping(c.Request.Context()); err != nil {
		dbStatus = "error: " + err.Error()
	}

	c.JSON(http.StatusOK, gin.H{
		"status":   "ok",
		"service":  "Trip Planner API",
		"database": dbStatus,
		"sessions": s.activeSessions(),
	})
}
