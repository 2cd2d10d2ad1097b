package geocode

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/jonathan/bin-crew/internal/types"
)

// DefaultNominatimURL is the public OpenStreetMap Nominatim endpoint.
const DefaultNominatimURL = "https://nominatim.openstreetmap.org"

// NominatimProvider queries a Nominatim-compatible /search endpoint.
type NominatimProvider struct {
	client *resty.Client
}

// NewNominatimProvider creates a provider. Nominatim's usage policy requires an
// identifying User-Agent.
func NewNominatimProvider(baseURL, userAgent string) *NominatimProvider {
	if baseURL == "" {
		baseURL = DefaultNominatimURL
	}
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(10*time.Second).
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", userAgent)
	return &NominatimProvider{client: client}
}

// Lookup returns at most one candidate.
func (p *NominatimProvider) Lookup(ctx context.Context, address string) ([]Candidate, error) {
	var candidates []Candidate
	resp, err := p.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"format": "json",
			"limit":  "1",
			"q":      address,
		}).
		SetResult(&candidates).
		Get("/search")
	if err != nil {
		return nil, &types.UnavailableError{Service: "geocoder", Err: err}
	}
	if resp.IsError() {
		return nil, &types.UnavailableError{
			Service: "geocoder",
			Err:     fmt.Errorf("unexpected status %d", resp.StatusCode()),
		}
	}
	return candidates, nil
}
