package services

import (
	"context"
	"log"

	"tripplanner/models"
)

// StaySearcher finds bookable hotel offers for a stay.
type StaySearcher interface {
	SearchHotels(ctx context.Context, q models.StayQuery) ([]models.Option, error)
}

// HotelSearch prefers live Amadeus hotel offers and falls back to generated
// suggestions when there is no live inventory or the provider fails.
type HotelSearch struct {
	live        StaySearcher
	suggestions *SuggestionService
}

func NewHotelSearch(live StaySearcher, suggestions *SuggestionService) *HotelSearch {
	return &HotelSearch{live: live, suggestions: suggestions}
}

func (h *HotelSearch) FindHotels(ctx context.Context, q models.StayQuery) []models.Option {
	if h.live != nil {
		options, err := h.live.SearchHotels(ctx, q)
		switch {
		case err != nil:
			log.Printf("⚠️  Amadeus hotel search failed: %v — using suggestions", err)
		case len(options) == 0:
			log.Printf("ℹ️  No Amadeus hotel offers in %s within budget — using suggestions", q.Destination.Code)
		default:
			return options
		}
	}
	return h.suggestions.FindHotels(ctx, q)
}
