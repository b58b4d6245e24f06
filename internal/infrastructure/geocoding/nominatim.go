// Package geocoding resolves addresses with a Nominatim compatible service.
package geocoding

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/delivery/backend/internal/domain/shared"
	"github.com/delivery/backend/internal/domain/shared/valueobject"
	"github.com/delivery/backend/internal/infrastructure/config"
)

// NominatimClient implements shared.Geocoder against the Nominatim search
// and reverse endpoints. Nominatim rejects requests without a User-Agent.
type NominatimClient struct {
	baseURL      string
	userAgent    string
	countryCodes string
	httpClient   *http.Client
}

// NewNominatimClient creates a geocoding client
func NewNominatimClient(cfg config.GeocodingConfig) *NominatimClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = "delivery-backend"
	}
	return &NominatimClient{
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		userAgent:    userAgent,
		countryCodes: cfg.CountryCodes,
		httpClient:   &http.Client{Timeout: timeout},
	}
}

type searchResult struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
}

type reverseResult struct {
	DisplayName string `json:"display_name"`
	Error       string `json:"error"`
}

// Geocode returns the coordinates of the best match for address
func (c *NominatimClient) Geocode(ctx context.Context, address string) (valueobject.GeoPoint, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return valueobject.GeoPoint{}, shared.ErrAddressNotFound
	}
	params := url.Values{
		"q":      {address},
		"format": {"json"},
		"limit":  {"1"},
	}
	if c.countryCodes != "" {
		params.Set("countrycodes", c.countryCodes)
	}

	var results []searchResult
	if err := c.get(ctx, "/search", params, &results); err != nil {
		return valueobject.GeoPoint{}, err
	}
	if len(results) == 0 {
		return valueobject.GeoPoint{}, shared.ErrAddressNotFound
	}

	lat, errLat := strconv.ParseFloat(results[0].Lat, 64)
	lon, errLon := strconv.ParseFloat(results[0].Lon, 64)
	if errLat != nil || errLon != nil {
		return valueobject.GeoPoint{}, fmt.Errorf("%w: malformed coordinates %q,%q",
			shared.ErrGeocoderUnavailable, results[0].Lat, results[0].Lon)
	}
	return valueobject.NewGeoPoint(lat, lon)
}

// Reverse returns a human readable address for point
func (c *NominatimClient) Reverse(ctx context.Context, point valueobject.GeoPoint) (string, error) {
	params := url.Values{
		"lat":    {strconv.FormatFloat(point.Latitude, 'f', 7, 64)},
		"lon":    {strconv.FormatFloat(point.Longitude, 'f', 7, 64)},
		"format": {"json"},
	}
	var result reverseResult
	if err := c.get(ctx, "/reverse", params, &result); err != nil {
		return "", err
	}
	if result.Error != "" || result.DisplayName == "" {
		return "", shared.ErrAddressNotFound
	}
	return result.DisplayName, nil
}

func (c *NominatimClient) get(ctx context.Context, path string, params url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("geocoding: build request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrGeocoderUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("%w: status %d: %s", shared.ErrGeocoderUnavailable, resp.StatusCode, raw)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode response: %v", shared.ErrGeocoderUnavailable, err)
	}
	return nil
}

var _ shared.Geocoder = (*NominatimClient)(nil)
