// Package satapi is the client for the remote satellite data service.
package satapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	defaultBaseURL = "http://127.0.0.1:8000"

	// maxBodyBytes bounds every response body. Ground tracks are the largest
	// payload and stay well under this.
	maxBodyBytes = 4 << 20
)

// State is one position sample.
type State struct {
	Lat   float64 `json:"lat"`
	Lon   float64 `json:"lon"`
	AltKm float64 `json:"alt_km"`
}

// ErrMalformed marks a 2xx response whose body is not a usable sample.
var ErrMalformed = errors.New("malformed response")

// Validate checks that the sample is a finite position on the globe.
func (s State) Validate() error {
	switch {
	case math.IsNaN(s.Lat) || s.Lat < -90 || s.Lat > 90:
		return fmt.Errorf("%w: lat %v out of range", ErrMalformed, s.Lat)
	case math.IsNaN(s.Lon) || s.Lon < -180 || s.Lon > 180:
		return fmt.Errorf("%w: lon %v out of range", ErrMalformed, s.Lon)
	case math.IsNaN(s.AltKm) || math.IsInf(s.AltKm, 0):
		return fmt.Errorf("%w: alt_km %v not finite", ErrMalformed, s.AltKm)
	}
	return nil
}

// Summary is the detail card data for one satellite.
type Summary struct {
	Name          string  `json:"name"`
	NORADID       int     `json:"norad_id"`
	VelocityKms   float64 `json:"velocity_kms"`
	AltitudeKm    float64 `json:"altitude_km"`
	PeriodMinutes float64 `json:"period_minutes"`
	EpochUTC      string  `json:"epoch_utc"`
}

// StatusError is returned for a non-2xx response. Body holds the response text.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("unexpected status code %d", e.Code)
	}
	return fmt.Sprintf("unexpected status code %d: %s", e.Code, e.Body)
}

// IsStatus reports whether err carries a StatusError with the given code.
func IsStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code == code
}

// Client talks to the remote satellite service.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a Client for the given base URL. A nil logger uses
// slog.Default.
func NewClient(baseURL string, logger *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
		logger: logger,
	}
}

// BaseURL returns the configured base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// SatIDs fetches up to limit catalog numbers, in service order.
func (c *Client) SatIDs(ctx context.Context, limit int) ([]int, error) {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))

	var ids []int
	if err := c.getJSON(ctx, "/api/debug/sat-ids?"+q.Encode(), &ids); err != nil {
		return nil, fmt.Errorf("fetching satellite ids: %w", err)
	}
	return ids, nil
}

// State fetches the current position of one satellite.
func (c *Client) State(ctx context.Context, id int) (State, error) {
	var raw struct {
		Lat   *float64 `json:"lat"`
		Lon   *float64 `json:"lon"`
		AltKm *float64 `json:"alt_km"`
	}
	if err := c.getJSON(ctx, fmt.Sprintf("/api/satellites/%d/state", id), &raw); err != nil {
		return State{}, fmt.Errorf("fetching state for %d: %w", id, err)
	}
	if raw.Lat == nil || raw.Lon == nil || raw.AltKm == nil {
		return State{}, fmt.Errorf("state for %d: %w: lat, lon and alt_km are required", id, ErrMalformed)
	}
	s := State{Lat: *raw.Lat, Lon: *raw.Lon, AltKm: *raw.AltKm}
	if err := s.Validate(); err != nil {
		return State{}, fmt.Errorf("state for %d: %w", id, err)
	}
	return s, nil
}

// GroundTrack fetches the sub-satellite path sampled every step.
// Points are [lat, lon] pairs in degrees.
func (c *Client) GroundTrack(ctx context.Context, id int, step time.Duration) ([][2]float64, error) {
	q := url.Values{}
	q.Set("step_s", strconv.Itoa(int(step/time.Second)))

	var body struct {
		Points [][2]float64 `json:"points"`
	}
	path := fmt.Sprintf("/api/satellites/%d/groundtrack?%s", id, q.Encode())
	if err := c.getJSON(ctx, path, &body); err != nil {
		return nil, fmt.Errorf("fetching ground track for %d: %w", id, err)
	}
	return body.Points, nil
}

// Summary fetches the detail card data. Cancelling ctx aborts the request.
func (c *Client) Summary(ctx context.Context, id int) (Summary, error) {
	var s Summary
	if err := c.getJSON(ctx, fmt.Sprintf("/api/satellites/%d/summary", id), &s); err != nil {
		return Summary{}, fmt.Errorf("fetching summary for %d: %w", id, err)
	}
	if s.NORADID == 0 && s.Name == "" {
		return Summary{}, fmt.Errorf("summary for %d: %w: name and norad_id missing", id, ErrMalformed)
	}
	return s, nil
}

func (c *Client) getJSON(ctx context.Context, path string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes+1))
	if err != nil {
		return fmt.Errorf("reading response body: %w", err)
	}
	if len(body) > maxBodyBytes {
		return fmt.Errorf("response exceeds %d byte limit", maxBodyBytes)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	if err := json.Unmarshal(body, v); err != nil {
		c.logger.Debug("undecodable response", "path", path, "bytes", len(body))
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}
