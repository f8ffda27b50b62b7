// Package news provides an almanac.Plugin that collects top headlines from
// NewsAPI and optionally expands the lead article into readable text.
package news

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	readability "github.com/go-shiori/go-readability"

	"github.com/almanac-ai/almanac"
)

const defaultBaseURL = "https://newsapi.org/v2"

// Option configures the plugin.
type Option func(*Plugin)

// WithBaseURL overrides the API base URL (useful for tests).
func WithBaseURL(u string) Option {
	return func(p *Plugin) { p.baseURL = u }
}

// WithCategory restricts headlines to one category (business, sports, ...).
func WithCategory(c string) Option {
	return func(p *Plugin) { p.category = c }
}

// WithHTTPClient sets a custom HTTP client. Default: 15s timeout.
func WithHTTPClient(hc *http.Client) Option {
	return func(p *Plugin) { p.client = hc }
}

// WithLeadArticle enables fetching the first headline's page and extracting
// its readable text, so the agent can answer questions beyond the headline.
func WithLeadArticle() Option {
	return func(p *Plugin) { p.expandLead = true }
}

// Plugin fetches top headlines for one country.
type Plugin struct {
	apiKey     string
	country    string
	category   string
	baseURL    string
	expandLead bool
	client     *http.Client
}

var _ almanac.Plugin = (*Plugin)(nil)

// New creates the news plugin for a two-letter country code (e.g. "us").
func New(apiKey, country string, opts ...Option) *Plugin {
	p := &Plugin{
		apiKey:  apiKey,
		country: country,
		baseURL: defaultBaseURL,
		client:  &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name implements almanac.Plugin.
func (p *Plugin) Name() string { return "news" }

type apiResponse struct {
	Status   string `json:"status"`
	Message  string `json:"message"`
	Articles []struct {
		Title       string `json:"title"`
		Description string `json:"description"`
		URL         string `json:"url"`
		Source      struct {
			Name string `json:"name"`
		} `json:"source"`
	} `json:"articles"`
}

// Run fetches headlines and formats them as a plain-text digest.
func (p *Plugin) Run(ctx context.Context) (string, error) {
	if p.apiKey == "" {
		return "", fmt.Errorf("NEWS_API_KEY not configured")
	}

	q := url.Values{}
	q.Set("apiKey", p.apiKey)
	q.Set("country", p.country)
	if p.category != "" {
		q.Set("category", p.category)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/top-headlines?"+q.Encode(), nil)
	if err != nil {
		return "", err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch news: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read news: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("news API: http %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var data apiResponse
	if err := json.Unmarshal(body, &data); err != nil {
		return "", fmt.Errorf("parse news: %w", err)
	}
	if data.Status != "ok" {
		msg := data.Message
		if msg == "" {
			msg = "unknown error from NewsAPI"
		}
		return "", fmt.Errorf("news API: %s", msg)
	}
	if len(data.Articles) == 0 {
		return fmt.Sprintf("No top headlines available for %s right now.\n", strings.ToUpper(p.country)), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Top headlines (%s):\n", strings.ToUpper(p.country))
	for i, a := range data.Articles {
		fmt.Fprintf(&b, "%d. %s — %s\n", i+1, a.Title, a.Source.Name)
		if a.Description != "" {
			fmt.Fprintf(&b, "   %s\n", a.Description)
		}
	}

	if p.expandLead && data.Articles[0].URL != "" {
		if text, err := p.fetchArticle(ctx, data.Articles[0].URL); err == nil && text != "" {
			b.WriteString("\nLead story:\n")
			b.WriteString(text)
			b.WriteString("\n")
		}
		// Extraction failures are tolerated: headlines alone are a valid
		// digest, and the lead page may be paywalled or unparseable.
	}
	return b.String(), nil
}

// fetchArticle downloads the lead article's page and extracts readable text.
func (p *Plugin) fetchArticle(ctx context.Context, rawURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; AlmanacBot/1.0)")

	resp, err := p.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("HTTP %d from %s", resp.StatusCode, rawURL)
	}

	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	article, err := readability.FromReader(io.LimitReader(resp.Body, 1<<20), parsedURL)
	if err != nil {
		return "", fmt.Errorf("extract article: %w", err)
	}

	text := strings.TrimSpace(article.TextContent)
	if len(text) > 4000 {
		text = text[:4000] + "\n... (truncated)"
	}
	return text, nil
}
