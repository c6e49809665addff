package services

import (
	"fmt"
	"os"
	"strings"

	"golang.org/x/text/cases"
	"gopkg.in/yaml.v3"

	"tripplanner/models"
)

// ExceptionTable maps place names the provider search resolves poorly to a
// fixed location. It is built once and only read afterwards, so sessions can
// share it.
type ExceptionTable struct {
	entries map[string]models.Location
	byCode  map[string]models.Location
}

var builtinExceptions = map[string]models.Location{
	"abidjan":    {Name: "Abidjan", Code: "ABJ"},
	"maroc":      {Name: "Casablanca", Code: "CMN"},
	"casablanca": {Name: "Casablanca", Code: "CMN"},
	"kigali":     {Name: "Kigali", Code: "KGL"},
	"nairobi":    {Name: "Nairobi", Code: "NBO"},
	"dakar":      {Name: "Dakar", Code: "DKR"},

	// main airports of the default city set, so common trips resolve
	// without provider credentials
	"new york":    {Name: "New York", Code: "JFK"},
	"los angeles": {Name: "Los Angeles", Code: "LAX"},
	"london":      {Name: "London", Code: "LHR"},
	"paris":       {Name: "Paris", Code: "CDG"},
	"tokyo":       {Name: "Tokyo", Code: "HND"},
	"sydney":      {Name: "Sydney", Code: "SYD"},
}

func DefaultExceptions() *ExceptionTable {
	t := &ExceptionTable{
		entries: make(map[string]models.Location, len(builtinExceptions)),
		byCode:  make(map[string]models.Location, len(builtinExceptions)),
	}
	for k, v := range builtinExceptions {
		t.add(k, v)
	}
	return t
}

func (t *ExceptionTable) add(key string, loc models.Location) {
	t.entries[normalizeKey(key)] = loc
	t.byCode[loc.Code] = loc
}

// exceptionFile is the YAML layout of LOCATION_EXCEPTIONS_FILE:
//
//	locations:
//	  morocco: {name: Casablanca, code: CMN}
type exceptionFile struct {
	Locations map[string]struct {
		Name string `yaml:"name"`
		Code string `yaml:"code"`
	} `yaml:"locations"`
}

// LoadExceptions returns the built-in table extended (and overridden) by the
// entries of a YAML file. An empty path yields the built-in table.
func LoadExceptions(path string) (*ExceptionTable, error) {
	t := DefaultExceptions()
	if path == "" {
		return t, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read exceptions file: %w", err)
	}
	var f exceptionFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse exceptions file %s: %w", path, err)
	}
	for key, e := range f.Locations {
		loc, err := models.NewLocation(e.Name, e.Code)
		if err != nil {
			return nil, fmt.Errorf("exceptions file %s, entry %q: %w", path, key, err)
		}
		t.add(key, loc)
	}
	return t, nil
}

func (t *ExceptionTable) Lookup(key string) (models.Location, bool) {
	loc, ok := t.entries[normalizeKey(key)]
	return loc, ok
}

// LookupCode finds the entry whose code is code, ignoring case.
func (t *ExceptionTable) LookupCode(code string) (models.Location, bool) {
	loc, ok := t.byCode[strings.ToUpper(strings.TrimSpace(code))]
	return loc, ok
}

func (t *ExceptionTable) Len() int {
	return len(t.entries)
}

// normalizeKey case-folds and collapses whitespace.
func normalizeKey(s string) string {
	return cases.Fold().String(strings.Join(strings.Fields(s), " "))
}
