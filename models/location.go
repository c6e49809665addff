package models

import (
	"fmt"
	"strings"
)

// Location is a resolved place: what we show to the user and the IATA code
// we send to providers.
type Location struct {
	Name string `json:"name"`
	Code string `json:"code"`
}

// NewLocation normalizes the code to upper case and checks it is three letters.
func NewLocation(name, code string) (Location, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if len(code) != 3 {
		return Location{}, fmt.Errorf("location code %q must be 3 letters", code)
	}
	for _, r := range code {
		if r < 'A' || r > 'Z' {
			return Location{}, fmt.Errorf("location code %q must be 3 letters", code)
		}
	}
	name = strings.TrimSpace(name)
	if name == "" {
		name = code
	}
	return Location{Name: name, Code: code}, nil
}

func (l Location) String() string {
	return fmt.Sprintf("%s (%s)", l.Name, l.Code)
}
