package services

import (
	"context"
	"fmt"
	"net/http"

	"googlemaps.github.io/maps"

	"tripplanner/models"
)

// Geocoder turns free text into the name of the town or region it refers to.
type Geocoder interface {
	Locality(ctx context.Context, text string) (string, error)
}

type GoogleGeocoder struct {
	client *maps.Client
}

func NewGoogleGeocoder(apiKey string, httpClient *http.Client) (*GoogleGeocoder, error) {
	opts := []maps.ClientOption{maps.WithAPIKey(apiKey)}
	if httpClient != nil {
		opts = append(opts, maps.WithHTTPClient(httpClient))
	}
	c, err := maps.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("google maps client: %w", err)
	}
	return &GoogleGeocoder{client: c}, nil
}

// Locality returns the first locality or first-level administrative area of
// the best geocoding result.
func (g *GoogleGeocoder) Locality(ctx context.Context, text string) (string, error) {
	results, err := g.client.Geocode(ctx, &maps.GeocodingRequest{Address: text})
	if err != nil {
		return "", fmt.Errorf("%w: geocode %q: %v", models.ErrProviderQueryFailed, text, err)
	}
	if len(results) == 0 {
		return "", fmt.Errorf("%w: geocode %q", models.ErrLocationNotFound, text)
	}
	if name := localityOf(results[0].AddressComponents); name != "" {
		return name, nil
	}
	return "", fmt.Errorf("%w: no locality for %q", models.ErrLocationNotFound, text)
}

func localityOf(components []maps.AddressComponent) string {
	for _, c := range components {
		for _, t := range c.Types {
			if t == "locality" || t == "administrative_area_level_1" {
				return c.LongName
			}
		}
	}
	return ""
}
