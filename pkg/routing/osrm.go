package routing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// DefaultTimeout bounds a single provider call
const DefaultTimeout = 8 * time.Second

// Coordinate is a WGS84 position
type Coordinate struct {
	Lat float64
	Lng float64
}

// Estimate is the first route returned by the provider
type Estimate struct {
	DistanceMeters  float64
	DurationSeconds float64
	Status          string
}

// ProviderError describes a failed provider call. StatusCode is the upstream
// HTTP status, or 0 when no response was received.
type ProviderError struct {
	StatusCode int
	Message    string
	Payload    interface{}
	Err        error
}

func (e *ProviderError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("routing provider returned %d: %s", e.StatusCode, e.Message)
	}
	return "routing provider request failed: " + e.Message
}

func (e *ProviderError) Unwrap() error { return e.Err }

// Estimator computes driving estimates between two points
type Estimator interface {
	Route(ctx context.Context, from, to Coordinate) (*Estimate, error)
}

// Config holds configuration for the OSRM client
type Config struct {
	BaseURL string
	Profile string // driving, car, bike, foot
	Timeout time.Duration
}

// OSRMClient calls the OSRM route service
type OSRMClient struct {
	baseURL string
	profile string
	client  *http.Client
}

// NewOSRMClient creates a new OSRM client
func NewOSRMClient(config Config) *OSRMClient {
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	profile := config.Profile
	if profile == "" {
		profile = "driving"
	}
	return &OSRMClient{
		baseURL: strings.TrimRight(config.BaseURL, "/"),
		profile: profile,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

type routeResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Routes  []struct {
		Distance float64 `json:"distance"`
		Duration float64 `json:"duration"`
	} `json:"routes"`
}

// RouteURL builds the request URL. OSRM expects lon,lat order.
func (c *OSRMClient) RouteURL(from, to Coordinate) string {
	coords := fmt.Sprintf("%s,%s;%s,%s",
		formatCoord(from.Lng), formatCoord(from.Lat),
		formatCoord(to.Lng), formatCoord(to.Lat))
	return fmt.Sprintf("%s/route/v1/%s/%s?%s",
		c.baseURL, url.PathEscape(c.profile), coords, url.Values{"overview": {"false"}}.Encode())
}

func formatCoord(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// Route returns the distance and duration of the first route between two points
func (c *OSRMClient) Route(ctx context.Context, from, to Coordinate) (*Estimate, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.RouteURL(from, to), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create route request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &ProviderError{Message: err.Error(), Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, &ProviderError{StatusCode: resp.StatusCode, Message: err.Error(), Err: err}
	}

	var data routeResponse
	decodeErr := json.Unmarshal(body, &data)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &ProviderError{
			StatusCode: resp.StatusCode,
			Message:    firstNonEmpty(data.Message, http.StatusText(resp.StatusCode), "Request failed"),
			Payload:    payloadOf(body),
		}
	}
	if decodeErr != nil {
		return nil, &ProviderError{StatusCode: http.StatusBadGateway, Message: "invalid provider response", Err: decodeErr}
	}
	if len(data.Routes) == 0 {
		return nil, &ProviderError{
			StatusCode: http.StatusBadGateway,
			Message:    firstNonEmpty(data.Message, "Failed to compute ETA"),
			Payload:    payloadOf(body),
			Err:        errors.New("no routes returned"),
		}
	}

	return &Estimate{
		DistanceMeters:  data.Routes[0].Distance,
		DurationSeconds: data.Routes[0].Duration,
		Status:          firstNonEmpty(data.Code, "OK"),
	}, nil
}

// payloadOf keeps the upstream body as JSON when it parses, else as text
func payloadOf(body []byte) interface{} {
	if len(body) == 0 {
		return nil
	}
	var v interface{}
	if err := json.Unmarshal(body, &v); err == nil {
		return v
	}
	return string(body)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
