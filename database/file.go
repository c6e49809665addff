package database

import (
	"encoding/json"
	"fmt"
	"log"
	"os"

	"tripplanner/models"
)

// SaveFile writes the plan as indented JSON.
func SaveFile(path string, p *models.Plan) error {
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("encode plan: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write plan file: %w", err)
	}
	return nil
}

// LoadFile reads a plan saved by SaveFile. Missing fields stay empty.
func LoadFile(path string) (*models.Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read plan file: %w", err)
	}
	return DecodePlan(data)
}

// DecodePlan parses a stored plan document and recomputes a stale remaining
// budget from its bookings.
func DecodePlan(data []byte) (*models.Plan, error) {
	p := models.NewPlan()
	if err := json.Unmarshal(data, p); err != nil {
		return nil, fmt.Errorf("%w: plan document: %v", models.ErrInvalidInput, err)
	}
	if p.Reconcile() {
		log.Printf("⚠️  Stored plan had a stale remaining budget — recomputed to $%s", p.RemainingBudget.StringFixed(2))
	}
	return p, nil
}
