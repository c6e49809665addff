package services

import (
	"context"
	"fmt"
	"log"
	"regexp"
	"time"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
	"github.com/patrickmn/go-cache"

	"tripplanner/models"
)

// exactMatchBonus is added to the similarity of a candidate whose name equals
// the input, ignoring case.
const exactMatchBonus = 0.5

// explicitCodeRe matches input that already names its code, e.g. "Lyon (LYS)".
var explicitCodeRe = regexp.MustCompile(`^\s*(.+?)\s*\(([A-Za-z]{3})\)\s*$`)

// bareCodeRe matches input that is only an airport or city code, e.g. "cmn".
var bareCodeRe = regexp.MustCompile(`^\s*[A-Za-z]{3}\s*$`)

// LocationSearcher is the provider keyword search used by the resolver.
type LocationSearcher interface {
	SearchLocations(ctx context.Context, keyword string) ([]models.Location, error)
}

// LocationResolver maps free text to a location: cache, exception table,
// provider search, then one geocoding retry. Only successes are cached.
type LocationResolver struct {
	exceptions *ExceptionTable
	search     LocationSearcher
	geocoder   Geocoder
	ttl        time.Duration
	cache      *cache.Cache
}

// NewLocationResolver builds a resolver. search and geocoder may be nil when
// the matching credentials are not configured.
func NewLocationResolver(exceptions *ExceptionTable, search LocationSearcher, geocoder Geocoder, ttl time.Duration) *LocationResolver {
	if exceptions == nil {
		exceptions = DefaultExceptions()
	}
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &LocationResolver{
		exceptions: exceptions,
		search:     search,
		geocoder:   geocoder,
		ttl:        ttl,
		cache:      cache.New(ttl, 2*ttl),
	}
}

// Fork returns a resolver sharing the collaborators but with its own empty
// cache, for a new session.
func (r *LocationResolver) Fork() *LocationResolver {
	return NewLocationResolver(r.exceptions, r.search, r.geocoder, r.ttl)
}

func (r *LocationResolver) Resolve(ctx context.Context, text string) (models.Location, error) {
	key := normalizeKey(text)
	if key == "" {
		return models.Location{}, fmt.Errorf("%w: empty location", models.ErrLocationNotFound)
	}
	if v, ok := r.cache.Get(key); ok {
		return v.(models.Location), nil
	}

	loc, ok := r.lookup(ctx, text)
	if !ok && r.geocoder != nil {
		locality, err := r.geocoder.Locality(ctx, text)
		switch {
		case err != nil:
			log.Printf("⚠️  Geocoding %q failed: %v", text, err)
		case normalizeKey(locality) != key:
			loc, ok = r.lookup(ctx, locality)
		}
	}
	if !ok {
		return models.Location{}, fmt.Errorf("%w: %q", models.ErrLocationNotFound, text)
	}

	r.cache.Set(key, loc, cache.DefaultExpiration)
	return loc, nil
}

// lookup tries an explicit code, the exception table and then the provider
// search. A bare three-letter code is taken as is when nothing else knows it.
func (r *LocationResolver) lookup(ctx context.Context, text string) (models.Location, bool) {
	if m := explicitCodeRe.FindStringSubmatch(text); m != nil {
		if loc, err := models.NewLocation(m[1], m[2]); err == nil {
			return loc, true
		}
	}
	if loc, ok := r.exceptions.Lookup(text); ok {
		return loc, true
	}
	bare := bareCodeRe.MatchString(text)
	if bare {
		if loc, ok := r.exceptions.LookupCode(text); ok {
			return loc, true
		}
	}
	if r.search != nil {
		candidates, err := r.search.SearchLocations(ctx, text)
		if err != nil {
			log.Printf("⚠️  Location search for %q failed: %v", text, err)
		} else if loc, ok := bestMatch(text, candidates); ok {
			return loc, true
		}
	}
	if bare {
		if loc, err := models.NewLocation("", text); err == nil {
			return loc, true
		}
	}
	return models.Location{}, false
}

// bestMatch scores each candidate by edit similarity to the input, with a
// bonus for an exact match. The first candidate wins ties.
func bestMatch(input string, candidates []models.Location) (models.Location, bool) {
	if len(candidates) == 0 {
		return models.Location{}, false
	}
	want := normalizeKey(input)
	best, bestScore := 0, -1.0
	for i, c := range candidates {
		name := normalizeKey(c.Name)
		score := similarity(want, name)
		if want == name {
			score += exactMatchBonus
		}
		if score > bestScore {
			best, bestScore = i, score
		}
	}
	return candidates[best], true
}

// similarity is 1 - distance/longest, in [0, 1].
func similarity(a, b string) float64 {
	longest := max(utf8.RuneCountInString(a), utf8.RuneCountInString(b))
	if longest == 0 {
		return 1
	}
	return 1 - float64(levenshtein.ComputeDistance(a, b))/float64(longest)
}
