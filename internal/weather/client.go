package weather

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/chrisdamba/menustats/internal/models"
	"github.com/samber/mo"
	"github.com/tidwall/gjson"
)

const (
	DefaultGeocodeURL        = "https://api.openweathermap.org/geo/1.0/direct?q={query}&limit=1&appid={key}"
	DefaultConditionsURL     = "https://api.weatherapi.com/v1/history.json?key={key}&q={lat},{lon}&dt={date}"
	DefaultGeocodeLatPath    = "0.lat"
	DefaultGeocodeLonPath    = "0.lon"
	DefaultConditionCodePath = "forecast.forecastday.0.day.condition.code"

	maxBodyBytes = 1 << 20
)

var ErrNoConditionCode = errors.New("weather: response carries no condition code")

// StatusError is returned for non-2xx provider responses.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("weather: %s returned HTTP %d", e.URL, e.StatusCode)
}

// Geocoder resolves a free-text location. None means no match.
type Geocoder interface {
	Geocode(ctx context.Context, loc models.Location) (mo.Option[models.Coordinates], error)
}

type ConditionFetcher interface {
	FetchCondition(ctx context.Context, at models.Coordinates, day time.Time) (int, error)
}

type ClientConfig struct {
	APIKey            string
	GeocodeURL        string
	ConditionsURL     string
	GeocodeLatPath    string
	GeocodeLonPath    string
	ConditionCodePath string
	HTTPClient        *http.Client
}

// HTTPClient talks to a geocoding endpoint and a historical conditions
// endpoint. URLs are templates; {query}, {lat}, {lon}, {date} and {key} are
// substituted query-escaped.
type HTTPClient struct {
	cfg  ClientConfig
	http *http.Client
}

func NewHTTPClient(cfg ClientConfig) *HTTPClient {
	if cfg.GeocodeURL == "" {
		cfg.GeocodeURL = DefaultGeocodeURL
	}
	if cfg.ConditionsURL == "" {
		cfg.ConditionsURL = DefaultConditionsURL
	}
	if cfg.GeocodeLatPath == "" {
		cfg.GeocodeLatPath = DefaultGeocodeLatPath
	}
	if cfg.GeocodeLonPath == "" {
		cfg.GeocodeLonPath = DefaultGeocodeLonPath
	}
	if cfg.ConditionCodePath == "" {
		cfg.ConditionCodePath = DefaultConditionCodePath
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &HTTPClient{cfg: cfg, http: client}
}

func (c *HTTPClient) Geocode(ctx context.Context, loc models.Location) (mo.Option[models.Coordinates], error) {
	if coords, ok := loc.Coordinates().Get(); ok {
		return mo.Some(coords), nil
	}
	query := loc.Query()
	if query == "" {
		return mo.None[models.Coordinates](), nil
	}

	body, err := c.get(ctx, c.expand(c.cfg.GeocodeURL, map[string]string{"query": query}))
	if err != nil {
		return mo.None[models.Coordinates](), err
	}
	lat := gjson.GetBytes(body, c.cfg.GeocodeLatPath)
	lon := gjson.GetBytes(body, c.cfg.GeocodeLonPath)
	if lat.Type != gjson.Number || lon.Type != gjson.Number {
		return mo.None[models.Coordinates](), nil
	}
	return mo.Some(models.Coordinates{Lat: lat.Num, Lon: lon.Num}), nil
}

func (c *HTTPClient) FetchCondition(ctx context.Context, at models.Coordinates, day time.Time) (int, error) {
	body, err := c.get(ctx, c.expand(c.cfg.ConditionsURL, map[string]string{
		"lat":  strconv.FormatFloat(at.Lat, 'f', 4, 64),
		"lon":  strconv.FormatFloat(at.Lon, 'f', 4, 64),
		"date": day.Format("2006-01-02"),
	}))
	if err != nil {
		return 0, err
	}
	code := gjson.GetBytes(body, c.cfg.ConditionCodePath)
	if code.Type != gjson.Number {
		return 0, ErrNoConditionCode
	}
	return int(code.Int()), nil
}

func (c *HTTPClient) expand(template string, values map[string]string) string {
	pairs := []string{"{key}", url.QueryEscape(c.cfg.APIKey)}
	for k, v := range values {
		pairs = append(pairs, "{"+k+"}", url.QueryEscape(v))
	}
	return strings.NewReplacer(pairs...).Replace(template)
}

func (c *HTTPClient) get(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("weather: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("weather: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{URL: redact(rawURL), StatusCode: resp.StatusCode}
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("weather: read body: %w", err)
	}
	return body, nil
}

// redact drops the query string so API keys stay out of logs.
func redact(rawURL string) string {
	if i := strings.IndexByte(rawURL, '?'); i >= 0 {
		return rawURL[:i]
	}
	return rawURL
}
