package openweathermap

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/weather-station/internal/domain"
	"github.com/couchcryptid/weather-station/internal/observability"
)

// DefaultBaseURL is the public API host.
const DefaultBaseURL = "https://api.openweathermap.org"

// Options configures a Client.
type Options struct {
	APIKey      string
	BaseURL     string
	City        string
	CountryCode string
	Units       string // metric, imperial or standard
	Lang        string
	Timeout     time.Duration
	Clock       clockwork.Clock // times requests; nil uses the real clock
}

// Client fetches current conditions for one location from the
// OpenWeatherMap current weather endpoint.
type Client struct {
	apiKey     string
	baseURL    string
	location   string
	units      string
	lang       string
	httpClient *http.Client
	clock      clockwork.Clock
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates an OpenWeatherMap client.
func NewClient(opts Options, logger *slog.Logger, metrics *observability.Metrics) *Client {
	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	clock := opts.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Client{
		apiKey:   opts.APIKey,
		baseURL:  strings.TrimRight(baseURL, "/"),
		location: location(opts.City, opts.CountryCode),
		units:    opts.Units,
		lang:     opts.Lang,
		httpClient: &http.Client{
			Timeout: opts.Timeout,
		},
		clock:   clock,
		metrics: metrics,
		logger:  logger,
	}
}

// Location returns the "city,country" query this client asks for.
func (c *Client) Location() string { return c.location }

// Fetch performs one request. On any failure it returns the empty record
// together with a *domain.FetchError describing what went wrong.
func (c *Client) Fetch(ctx context.Context) (domain.WeatherRecord, error) {
	start := c.clock.Now()
	rec, err := c.fetch(ctx)
	c.metrics.WeatherFetchDuration.Observe(c.clock.Since(start).Seconds())
	if err != nil {
		c.logger.Warn("weather fetch failed", "location", c.location, "kind", domain.KindOf(err).String(), "error", err)
		return domain.EmptyRecord(), err
	}
	c.logger.Debug("weather fetched", "location", c.location, "complete", rec.IsComplete())
	return rec, nil
}

func (c *Client) fetch(ctx context.Context) (domain.WeatherRecord, error) {
	params := url.Values{
		"q":     {c.location},
		"appid": {c.apiKey},
	}
	if c.units != "" {
		params.Set("units", c.units)
	}
	if c.lang != "" {
		params.Set("lang", c.lang)
	}
	u := c.baseURL + "/data/2.5/weather?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return domain.WeatherRecord{}, domain.NewFetchError(domain.KindNetwork, fmt.Errorf("create request: %w", err))
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.WeatherRecord{}, domain.NewFetchError(domain.KindNetwork, redact(err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return domain.WeatherRecord{}, &domain.FetchError{
			Kind:       domain.KindStatus,
			StatusCode: resp.StatusCode,
			Err:        errors.New(strings.TrimSpace(string(body))),
		}
	}

	var owmResp response
	if err := json.NewDecoder(resp.Body).Decode(&owmResp); err != nil {
		return domain.WeatherRecord{}, domain.NewFetchError(domain.KindDecode, fmt.Errorf("decode response: %w", err))
	}

	return owmResp.record(), nil
}

// redact strips the request URL, which carries the API key, from transport errors.
func redact(err error) error {
	var uerr *url.Error
	if errors.As(err, &uerr) {
		return fmt.Errorf("%s: %w", uerr.Op, uerr.Err)
	}
	return err
}

func location(city, country string) string {
	if country == "" {
		return city
	}
	return city + "," + country
}

// OpenWeatherMap API response types. Every leaf is a pointer so a missing
// field stays distinguishable from a zero reading.

type response struct {
	Main    *mainBlock   `json:"main"`
	Wind    *windBlock   `json:"wind"`
	Weather []conditions `json:"weather"`
}

type mainBlock struct {
	Temp     *float64 `json:"temp"`
	Pressure *float64 `json:"pressure"`
	Humidity *float64 `json:"humidity"`
}

type windBlock struct {
	Speed *float64 `json:"speed"`
	Deg   *float64 `json:"deg"`
}

type conditions struct {
	Main        *string `json:"main"`
	Description *string `json:"description"`
	Icon        *string `json:"icon"`
}

func (r response) record() domain.WeatherRecord {
	var rec domain.WeatherRecord
	if r.Main != nil {
		rec.Temperature = r.Main.Temp
		rec.Pressure = r.Main.Pressure
		rec.Humidity = r.Main.Humidity
	}
	if r.Wind != nil {
		rec.WindSpeed = r.Wind.Speed
		rec.WindDirection = r.Wind.Deg
	}
	if len(r.Weather) > 0 {
		w := r.Weather[0]
		rec.Description = w.Description
		rec.Condition = w.Main
		rec.Icon = w.Icon
	}
	return rec
}
