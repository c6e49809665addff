package services

import (
	"context"
	"fmt"
	"log"
	"regexp"
	"strings"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"tripplanner/models"
)

const (
	HotelCap    = 3
	ActivityCap = 5
)

// SuggestionKind selects the prompt, the estimator and the synthesized
// options of a suggestion search.
type SuggestionKind int

const (
	HotelSuggestions SuggestionKind = iota
	ActivitySuggestions
)

func (k SuggestionKind) String() string {
	if k == HotelSuggestions {
		return "hotel"
	}
	return "activity"
}

func (k SuggestionKind) cap() int {
	if k == HotelSuggestions {
		return HotelCap
	}
	return ActivityCap
}

// SuggestionService asks the language model for hotel or activity ideas and
// turns its free text into priced options. It never fails: when the model is
// missing, errors, or answers with nothing usable, options are synthesized.
type SuggestionService struct {
	gen TextGenerator
}

func NewSuggestionService(gen TextGenerator) *SuggestionService {
	return &SuggestionService{gen: gen}
}

func (s *SuggestionService) FindHotels(ctx context.Context, q models.StayQuery) []models.Option {
	return s.find(ctx, HotelSuggestions, q)
}

func (s *SuggestionService) FindActivities(ctx context.Context, q models.StayQuery) []models.Option {
	return s.find(ctx, ActivitySuggestions, q)
}

func (s *SuggestionService) find(ctx context.Context, kind SuggestionKind, q models.StayQuery) []models.Option {
	if s.gen == nil {
		return synthesize(kind, q)
	}
	text, err := s.gen.Generate(ctx, suggestionPrompt(kind, q))
	if err != nil {
		log.Printf("⚠️  AI %s suggestions failed: %v — using estimated options", kind, err)
		return synthesize(kind, q)
	}
	options, err := ParseSuggestions(kind, text, q)
	if err != nil {
		log.Printf("⚠️  %v — using estimated options", err)
		return synthesize(kind, q)
	}
	return options
}

// Ask answers a free-form question about the options currently on screen.
func (s *SuggestionService) Ask(ctx context.Context, topic string, options []models.Option, question string) (string, error) {
	if s.gen == nil {
		return "", fmt.Errorf("%w: no assistant is configured", models.ErrProviderQueryFailed)
	}
	listing := strings.Join(lo.Map(options, func(o models.Option, _ int) string {
		return fmt.Sprintf("%d. %s ($%s)\n%s", o.Index, o.Name, o.Price.StringFixed(2), o.Details)
	}), "\n\n")
	prompt := fmt.Sprintf(`As a travel assistant, answer this question about %s options:

%s options:
%s

Question: %s

Provide a helpful, detailed response about the %s options.`, topic, topic, listing, question, topic)

	answer, err := s.gen.Generate(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("%w: %v", models.ErrProviderQueryFailed, err)
	}
	return strings.TrimSpace(answer), nil
}

func suggestionPrompt(kind SuggestionKind, q models.StayQuery) string {
	budget := q.Budget.StringFixed(2)
	if kind == HotelSuggestions {
		return fmt.Sprintf(`As a travel assistant, suggest %d hotel options in %s for a %d-night stay
for %d traveler(s) with a total budget of $%s. For each option include:
- Hotel name (make it realistic for the city)
- Star rating (3-5 stars)
- Location area
- Breakfast inclusion
- Approximate total price for the whole stay (should be under $%s)
- Brief selling point

Number the options 1 to %d and put each detail on its own line as "Label: value".`,
			HotelCap, q.Destination.Name, max(1, q.Nights), max(1, q.Travelers), budget, budget, HotelCap)
	}
	return fmt.Sprintf(`As a travel assistant, suggest %d activities in %s
for %d traveler(s) with a total budget of $%s. For each activity include:
- Activity name
- Approximate cost for the whole group
- Time required (half-day/full-day or hours)
- Why it's worth doing
- Category (cultural, adventure, relaxation, etc.)

Number the activities 1 to %d and put each detail on its own line as "Label: value".`,
		ActivityCap, q.Destination.Name, max(1, q.Travelers), budget, ActivityCap)
}

// ─── Parsing ──────────────────────────────────────────────────────────────────

var (
	markdownRe = regexp.MustCompile("[*_#`]+")
	headerRe   = regexp.MustCompile(`(?i)^(?:option|hotel|activity)?\s*#?\s*([1-5a-e])[.):](?:\s+|$)(.*)$`)
	dollarRe   = regexp.MustCompile(`\$\s*([0-9][0-9,]*(?:\.[0-9]+)?)`)
	usdRe      = regexp.MustCompile(`(?i)([0-9][0-9,]*(?:\.[0-9]+)?)\s*(?:usd|dollars)`)
	starsRe    = regexp.MustCompile(`(?i)([1-5])(?:\.[0-9])?\s*-?\s*stars?`)

	priceWordRe    = regexp.MustCompile(`(?i)\b(price|cost)\b|\$`)
	durationWordRe = regexp.MustCompile(`(?i)\b(duration|hours?|time|half-day|full-day)\b`)
	starWordRe     = regexp.MustCompile(`(?i)\bstars?\b|⭐`)
	areaWordRe     = regexp.MustCompile(`(?i)\b(location|area|neighbou?rhood|district)\b`)
	breakfastRe    = regexp.MustCompile(`(?i)\bbreakfast\b`)
	categoryWordRe = regexp.MustCompile(`(?i)\b(category|type)\b`)
	highlightRe    = regexp.MustCompile(`(?i)\b(worth|why|features?|selling|highlights?)\b`)
	nameLabelRe    = regexp.MustCompile(`(?i)^(?:hotel |activity )?name\s*:`)
	perNightRe     = regexp.MustCompile(`(?i)per night|/\s*night|a night|nightly`)
	perPersonRe    = regexp.MustCompile(`(?i)per person|/\s*person|each|pp\b`)
)

// draft is an option being assembled from the lines under one header.
type draft struct {
	rank      int
	name      string
	price     decimal.Decimal
	priceSet  bool
	estimated bool
	s         models.Suggestion
}

// lineRule pairs a predicate with the field it fills. Rules are tried in
// order and the first match wins.
type lineRule struct {
	match func(d *draft, line string) bool
	apply func(d *draft, line string, kind SuggestionKind, q models.StayQuery)
}

var lineRules = []lineRule{
	{
		match: func(d *draft, line string) bool { return nameLabelRe.MatchString(line) },
		apply: func(d *draft, line string, _ SuggestionKind, _ models.StayQuery) { d.name = valueOf(line) },
	},
	{
		match: func(d *draft, line string) bool {
			return d.name == "" && !strings.Contains(line, ":") && !strings.Contains(line, "$") && len(line) > 3
		},
		apply: func(d *draft, line string, _ SuggestionKind, _ models.StayQuery) { d.name = line },
	},
	{
		match: func(d *draft, line string) bool { return priceWordRe.MatchString(line) },
		apply: applyPrice,
	},
	{
		match: func(d *draft, line string) bool { return durationWordRe.MatchString(line) },
		apply: func(d *draft, line string, _ SuggestionKind, _ models.StayQuery) { d.s.Duration = valueOf(line) },
	},
	{
		match: func(d *draft, line string) bool { return starWordRe.MatchString(line) },
		apply: func(d *draft, line string, _ SuggestionKind, _ models.StayQuery) { d.s.Stars = parseStars(line) },
	},
	{
		match: func(d *draft, line string) bool { return areaWordRe.MatchString(line) },
		apply: func(d *draft, line string, _ SuggestionKind, _ models.StayQuery) { d.s.Area = valueOf(line) },
	},
	{
		match: func(d *draft, line string) bool { return breakfastRe.MatchString(line) },
		apply: func(d *draft, line string, _ SuggestionKind, _ models.StayQuery) { d.s.Breakfast = valueOf(line) },
	},
	{
		match: func(d *draft, line string) bool { return categoryWordRe.MatchString(line) },
		apply: func(d *draft, line string, _ SuggestionKind, _ models.StayQuery) { d.s.Category = valueOf(line) },
	},
	{
		match: func(d *draft, line string) bool { return highlightRe.MatchString(line) },
		apply: func(d *draft, line string, _ SuggestionKind, _ models.StayQuery) { d.s.Highlights = valueOf(line) },
	},
}

func applyPrice(d *draft, line string, kind SuggestionKind, q models.StayQuery) {
	amount, ok := parseAmount(line)
	if !ok {
		// keep a price read from an earlier line
		if !d.priceSet {
			d.price = estimatePrice(kind, d.rank, q)
			d.priceSet, d.estimated = true, true
		}
		return
	}
	switch {
	case kind == HotelSuggestions && perNightRe.MatchString(line):
		amount = amount.Mul(decimal.NewFromInt(int64(max(1, q.Nights))))
	case kind == ActivitySuggestions && perPersonRe.MatchString(line):
		amount = amount.Mul(decimal.NewFromInt(int64(max(1, q.Travelers))))
	}
	d.price = amount.Round(2)
	d.priceSet, d.estimated = true, false
}

// ParseSuggestions reads options out of generated text. Lines that start with
// an option header (1., 2), Option 3:, a., ...) open a new option; the lines
// below it are classified by lineRules. Text without any header yields
// ErrMalformedGeneratedContent.
func ParseSuggestions(kind SuggestionKind, text string, q models.StayQuery) ([]models.Option, error) {
	var drafts []*draft
	var current *draft

	for _, raw := range strings.Split(text, "\n") {
		line := cleanLine(raw)
		if line == "" {
			continue
		}
		if m := headerRe.FindStringSubmatch(line); m != nil {
			current = &draft{rank: len(drafts)}
			drafts = append(drafts, current)
			line = strings.TrimSpace(m[2])
			if line == "" {
				continue
			}
			if name, ok := headerName(line); ok {
				current.name = name
				applyPrice(current, line, kind, q)
				continue
			}
		}
		if current == nil {
			continue
		}
		for _, rule := range lineRules {
			if rule.match(current, line) {
				rule.apply(current, line, kind, q)
				break
			}
		}
	}

	if len(drafts) == 0 {
		return nil, fmt.Errorf("%w: no numbered %s options in the model's answer", models.ErrMalformedGeneratedContent, kind)
	}

	drafts = lo.Slice(drafts, 0, kind.cap())
	defaults := synthesize(kind, q)
	options := make([]models.Option, 0, len(drafts))
	for i, d := range drafts {
		if d.name == "" {
			d.name = defaults[i].Name
		}
		if !d.priceSet {
			d.price = estimatePrice(kind, i, q)
			d.estimated = true
		}
		d.s.Name = d.name
		s := d.s
		options = append(options, models.Option{
			Index:      i + 1,
			Name:       d.name,
			Price:      d.price,
			Estimated:  d.estimated,
			Details:    describeSuggestion(&s, d.price, q.Nights),
			Suggestion: &s,
		})
	}
	return options, nil
}

// headerName splits "Grand Hotel - $450 total" into its name when a header
// line carries the price as well.
func headerName(line string) (string, bool) {
	loc := dollarRe.FindStringIndex(line)
	if loc == nil {
		loc = usdRe.FindStringIndex(line)
	}
	if loc == nil {
		return "", false
	}
	name := strings.TrimRight(line[:loc[0]], " -–—:|,(")
	if len(name) <= 3 || priceWordRe.MatchString(name) {
		return "", false
	}
	return name, true
}

// cleanLine strips markdown emphasis and list bullets.
func cleanLine(s string) string {
	s = markdownRe.ReplaceAllString(s, "")
	s = strings.TrimSpace(s)
	s = strings.TrimLeft(s, "-•")
	return strings.TrimSpace(s)
}

// valueOf returns the text after the first colon, or the whole line.
func valueOf(line string) string {
	if i := strings.Index(line, ":"); i >= 0 {
		return strings.TrimSpace(line[i+1:])
	}
	return strings.TrimSpace(line)
}

func parseAmount(line string) (decimal.Decimal, bool) {
	m := dollarRe.FindStringSubmatch(line)
	if m == nil {
		m = usdRe.FindStringSubmatch(line)
	}
	if m == nil {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(strings.ReplaceAll(m[1], ",", ""))
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

func parseStars(line string) int {
	if n := strings.Count(line, "⭐"); n > 0 {
		return min(n, 5)
	}
	if m := starsRe.FindStringSubmatch(line); m != nil {
		return int(m[1][0] - '0')
	}
	return 0
}

// ─── Placeholder pricing ──────────────────────────────────────────────────────

// Hotel option i is estimated at hotelShare[i] of the budget, capped at
// hotelNightCap[i] per night. Activities use the same scheme per traveler.
var (
	hotelShare        = []string{"0.40", "0.30", "0.20"}
	hotelNightCap     = []int64{200, 150, 100}
	activityShare     = []string{"0.15", "0.10", "0.25", "0.15", "0.15"}
	activityPersonCap = []int64{50, 30, 80, 60, 45}
)

// estimatePrice is the single placeholder price used both when a generated
// price cannot be read and for synthesized options. rank is 0-based.
func estimatePrice(kind SuggestionKind, rank int, q models.StayQuery) decimal.Decimal {
	budget := decimal.Max(q.Budget, decimal.Zero)
	var share decimal.Decimal
	var limit decimal.Decimal
	if kind == HotelSuggestions {
		i := min(rank, len(hotelShare)-1)
		share = decimal.RequireFromString(hotelShare[i])
		limit = decimal.NewFromInt(hotelNightCap[i] * int64(max(1, q.Nights)))
	} else {
		i := min(rank, len(activityShare)-1)
		share = decimal.RequireFromString(activityShare[i])
		limit = decimal.NewFromInt(activityPersonCap[i] * int64(max(1, q.Travelers)))
	}
	return decimal.Min(budget.Mul(share), limit).Round(2)
}

type optionTemplate struct {
	name     string
	stars    int
	area     string
	extra    string
	category string
	duration string
}

var hotelTemplates = []optionTemplate{
	{name: "Luxury Suites", stars: 5, area: "City Centre", extra: "Included"},
	{name: "Grand Hotel", stars: 4, area: "Business District", extra: "Included"},
	{name: "Boutique Inn", stars: 3, area: "Old Town", extra: "Not included"},
}

var activityTemplates = []optionTemplate{
	{name: "City Tour", category: "Cultural", duration: "Half-day"},
	{name: "Museum Visit", category: "Cultural", duration: "2-3 hours"},
	{name: "Outdoor Adventure", category: "Adventure", duration: "Full-day"},
	{name: "Local Cuisine Experience", category: "Food", duration: "3 hours"},
	{name: "Evening Entertainment", category: "Nightlife", duration: "Evening"},
}

// synthesize builds the full list of estimated options for kind.
func synthesize(kind SuggestionKind, q models.StayQuery) []models.Option {
	city := q.Destination.Name
	options := make([]models.Option, 0, kind.cap())
	for i := 0; i < kind.cap(); i++ {
		var s models.Suggestion
		if kind == HotelSuggestions {
			t := hotelTemplates[i]
			s = models.Suggestion{
				Name:      strings.TrimSpace(city + " " + t.name),
				Stars:     t.stars,
				Area:      t.area,
				Breakfast: t.extra,
			}
		} else {
			t := activityTemplates[i]
			s = models.Suggestion{
				Name:     strings.TrimSpace(city + " " + t.name),
				Category: t.category,
				Duration: t.duration,
			}
		}
		price := estimatePrice(kind, i, q)
		options = append(options, models.Option{
			Index:      i + 1,
			Name:       s.Name,
			Price:      price,
			Estimated:  true,
			Details:    describeSuggestion(&s, price, q.Nights),
			Suggestion: &s,
		})
	}
	return options
}

func describeSuggestion(s *models.Suggestion, price decimal.Decimal, nights int) string {
	var lines []string
	if s.Stars > 0 {
		lines = append(lines, fmt.Sprintf("Rating: %s (%d stars)", strings.Repeat("★", s.Stars), s.Stars))
	}
	if s.Area != "" {
		lines = append(lines, "Area: "+s.Area)
	}
	if s.Breakfast != "" {
		lines = append(lines, "Breakfast: "+s.Breakfast)
	}
	if s.Category != "" {
		lines = append(lines, "Category: "+s.Category)
	}
	if s.Duration != "" {
		lines = append(lines, "Duration: "+s.Duration)
	}
	if s.Highlights != "" {
		lines = append(lines, "Highlights: "+s.Highlights)
	}
	if s.Stars > 0 && nights > 0 {
		perNight := price.Div(decimal.NewFromInt(int64(nights))).Round(2)
		lines = append(lines, fmt.Sprintf("Price: $%s total ($%s/night)", price.StringFixed(2), perNight.StringFixed(2)))
	} else {
		lines = append(lines, fmt.Sprintf("Price: $%s", price.StringFixed(2)))
	}
	return strings.Join(lines, "\n")
}
