package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
)

const defaultBaseURL = "https://api.openweathermap.org/data/2.5/weather"

// Config holds weather client configuration.
type Config struct {
	APIKey   string
	BaseURL  string
	Units    string // "metric" or "imperial"
	Lang     string
	CacheTTL time.Duration // zero disables the response cache
}

// Report is the current-conditions payload for one location.
type Report struct {
	Temperature float64
	Conditions  []Condition
}

type Condition struct {
	Main        string // e.g. "Clouds", "Clear", "Rain"
	Description string
	Icon        string // e.g. "01d", "10n"
}

// Client fetches current conditions from OpenWeatherMap and caches successful
// responses per location.
type Client struct {
	config  Config
	client  *http.Client
	baseURL string
	cache   *cache.Cache
}

// NewClient creates a weather client with the given configuration.
func NewClient(cfg Config) *Client {
	if cfg.Units == "" {
		cfg.Units = "metric"
	}
	if cfg.Lang == "" {
		cfg.Lang = "es"
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	c := &Client{
		config:  cfg,
		client:  &http.Client{Timeout: 10 * time.Second},
		baseURL: baseURL,
	}
	if cfg.CacheTTL > 0 {
		c.cache = cache.New(cfg.CacheTTL, 2*cfg.CacheTTL)
	}
	return c
}

// Current returns the conditions for location, from cache when fresh.
func (c *Client) Current(ctx context.Context, location string) (Report, error) {
	key := strings.ToLower(strings.TrimSpace(location))
	if c.cache != nil {
		if cached, ok := c.cache.Get(key); ok {
			return cached.(Report), nil
		}
	}

	report, err := c.fetch(ctx, location)
	if err != nil {
		return Report{}, err
	}

	if c.cache != nil {
		c.cache.SetDefault(key, report)
	}
	return report, nil
}

type apiResponse struct {
	Weather []struct {
		Main        string `json:"main"`
		Description string `json:"description"`
		Icon        string `json:"icon"`
	} `json:"weather"`
	Main *struct {
		Temp float64 `json:"temp"`
	} `json:"main"`
}

func (c *Client) fetch(ctx context.Context, location string) (Report, error) {
	q := url.Values{}
	q.Set("q", location)
	q.Set("appid", c.config.APIKey)
	q.Set("units", c.config.Units)
	q.Set("lang", c.config.Lang)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return Report{}, fmt.Errorf("build weather request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return Report{}, fmt.Errorf("weather API request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Report{}, fmt.Errorf("weather API returned status %d", resp.StatusCode)
	}

	var apiResp apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return Report{}, fmt.Errorf("decode weather response: %w", err)
	}
	if apiResp.Main == nil {
		return Report{}, fmt.Errorf("decode weather response: missing main block")
	}

	report := Report{Temperature: apiResp.Main.Temp}
	for _, w := range apiResp.Weather {
		report.Conditions = append(report.Conditions, Condition{
			Main:        w.Main,
			Description: w.Description,
			Icon:        w.Icon,
		})
	}
	return report, nil
}
