// Package weather provides an almanac.Plugin that reports current
// conditions for one city via the OpenWeatherMap API.
package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/almanac-ai/almanac"
)

const defaultBaseURL = "https://api.openweathermap.org/data/2.5"

// Option configures the plugin.
type Option func(*Plugin)

// WithBaseURL overrides the API base URL (useful for tests).
func WithBaseURL(u string) Option {
	return func(p *Plugin) { p.baseURL = u }
}

// WithHTTPClient sets a custom HTTP client. Default: 15s timeout.
func WithHTTPClient(hc *http.Client) Option {
	return func(p *Plugin) { p.client = hc }
}

// Plugin fetches current weather for a fixed city.
type Plugin struct {
	apiKey  string
	city    string
	baseURL string
	client  *http.Client
}

var _ almanac.Plugin = (*Plugin)(nil)

// New creates the weather plugin. A missing API key is not an error here:
// it surfaces as a per-run plugin failure so the rest of the pipeline is
// unaffected.
func New(apiKey, city string, opts ...Option) *Plugin {
	p := &Plugin{
		apiKey:  apiKey,
		city:    city,
		baseURL: defaultBaseURL,
		client:  &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name implements almanac.Plugin.
func (p *Plugin) Name() string { return "weather" }

type apiResponse struct {
	Name string `json:"name"`
	Sys  struct {
		Country string `json:"country"`
	} `json:"sys"`
	Main struct {
		Temp      float64 `json:"temp"`
		FeelsLike float64 `json:"feels_like"`
		TempMin   float64 `json:"temp_min"`
		TempMax   float64 `json:"temp_max"`
		Humidity  int     `json:"humidity"`
		Pressure  int     `json:"pressure"`
	} `json:"main"`
	Weather []struct {
		Main        string `json:"main"`
		Description string `json:"description"`
	} `json:"weather"`
	Wind struct {
		Speed   float64 `json:"speed"`
		Degrees float64 `json:"deg"`
	} `json:"wind"`
}

// Run fetches and formats the current conditions.
func (p *Plugin) Run(ctx context.Context) (string, error) {
	if p.apiKey == "" {
		return "", fmt.Errorf("OPENWEATHER_API_KEY not configured")
	}

	q := url.Values{}
	q.Set("q", p.city)
	q.Set("appid", p.apiKey)
	q.Set("units", "metric")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/weather?"+q.Encode(), nil)
	if err != nil {
		return "", err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch weather: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read weather: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("weather API: http %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var data apiResponse
	if err := json.Unmarshal(body, &data); err != nil {
		return "", fmt.Errorf("parse weather: %w", err)
	}

	desc := "unknown conditions"
	if len(data.Weather) > 0 {
		desc = data.Weather[0].Description
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Current weather in %s, %s: %s.\n", data.Name, data.Sys.Country, desc)
	fmt.Fprintf(&b, "Temperature: %.1f°C (feels like %.1f°C, min %.1f°C, max %.1f°C).\n",
		data.Main.Temp, data.Main.FeelsLike, data.Main.TempMin, data.Main.TempMax)
	fmt.Fprintf(&b, "Humidity: %d%%. Pressure: %d hPa. Wind: %.1f m/s at %.0f°.\n",
		data.Main.Humidity, data.Main.Pressure, data.Wind.Speed, data.Wind.Degrees)
	return b.String(), nil
}
