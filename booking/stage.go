package booking

import (
	"fmt"
	"strings"

	"tripplanner/models"
)

// Stage is the position of a session in the booking flow. Stages only move
// forward, except through Reset.
type Stage int

const (
	StageCollecting Stage = iota
	StageFlights
	StageHotels
	StageActivities
	StageSummary
)

var stageNames = map[Stage]string{
	StageCollecting: "collecting_details",
	StageFlights:    "flights",
	StageHotels:     "hotels",
	StageActivities: "activities",
	StageSummary:    "summary",
}

func (s Stage) String() string {
	if name, ok := stageNames[s]; ok {
		return name
	}
	return fmt.Sprintf("stage(%d)", int(s))
}

func (s Stage) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Stage) UnmarshalText(text []byte) error {
	parsed, err := ParseStage(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// topic is how the stage's options are named in prompts and messages.
func (s Stage) topic() string {
	switch s {
	case StageFlights:
		return "flight"
	case StageHotels:
		return "hotel"
	case StageActivities:
		return "activity"
	}
	return s.String()
}

// ParseStage accepts the stage names used in URLs ("flights", "hotels", ...)
// and their singular forms.
func ParseStage(name string) (Stage, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for s, n := range stageNames {
		if name == n || name+"s" == n || (s == StageActivities && name == "activity") {
			return s, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown stage %q", models.ErrInvalidInput, name)
}
