// Package geocode holds the two geocoding lookups the platform relies on: a
// free-text city lookup against an unauthenticated public service and a
// structured address lookup against a keyed service.
package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

const defaultTimeout = 10 * time.Second

// ErrNoResults means the service answered but found nothing for the query.
var ErrNoResults = errors.New("geocode: no results")

type Point struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type Client struct {
	cityURL    string
	addressURL string
	apiKey     string
	httpClient *http.Client
}

// NewClient builds a client. cityURL is the public city-center service,
// addressURL the keyed structured-address service.
func NewClient(cityURL, addressURL, apiKey string) *Client {
	return &Client{
		cityURL:    cityURL,
		addressURL: addressURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
}

// cityResult mirrors the public service's response: lat/lon come back as
// strings.
type cityResult struct {
	Lat string `json:"lat"`
	Lon string `json:"lon"`
}

// CityCenter resolves a municipality's center point.
func (c *Client) CityCenter(ctx context.Context, city, state string) (Point, error) {
	q := url.Values{}
	q.Set("q", fmt.Sprintf("%s, %s, Brasil", city, state))
	q.Set("format", "json")
	q.Set("limit", "1")

	var results []cityResult
	if err := c.getJSON(ctx, c.cityURL+"/search?"+q.Encode(), &results); err != nil {
		return Point{}, err
	}
	if len(results) == 0 {
		return Point{}, ErrNoResults
	}
	lat, err := strconv.ParseFloat(results[0].Lat, 64)
	if err != nil {
		return Point{}, fmt.Errorf("geocode: bad latitude %q", results[0].Lat)
	}
	lon, err := strconv.ParseFloat(results[0].Lon, 64)
	if err != nil {
		return Point{}, fmt.Errorf("geocode: bad longitude %q", results[0].Lon)
	}
	return Point{Latitude: lat, Longitude: lon}, nil
}

type addressResponse struct {
	Status  string `json:"status"`
	Results []struct {
		Geometry struct {
			Location struct {
				Lat float64 `json:"lat"`
				Lng float64 `json:"lng"`
			} `json:"location"`
		} `json:"geometry"`
	} `json:"results"`
}

// Address resolves a full postal address to a point.
func (c *Client) Address(ctx context.Context, street, number, zipCode, city string) (Point, error) {
	q := url.Values{}
	q.Set("address", fmt.Sprintf("%s, %s, %s, %s, Brasil", street, number, zipCode, city))
	q.Set("key", c.apiKey)

	var resp addressResponse
	if err := c.getJSON(ctx, c.addressURL+"/geocode/json?"+q.Encode(), &resp); err != nil {
		return Point{}, err
	}
	if resp.Status == "ZERO_RESULTS" {
		return Point{}, ErrNoResults
	}
	if resp.Status != "OK" {
		return Point{}, fmt.Errorf("geocode: status %s", resp.Status)
	}
	if len(resp.Results) == 0 {
		return Point{}, ErrNoResults
	}
	loc := resp.Results[0].Geometry.Location
	return Point{Latitude: loc.Lat, Longitude: loc.Lng}, nil
}

func (c *Client) getJSON(ctx context.Context, url string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("geocode request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("geocode service returned status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("geocode response decode: %w", err)
	}
	return nil
}
