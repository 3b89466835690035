/**
 * @description
 * This package provides a client for the gift-code discovery feed: a small
 * authenticated API that publishes newly observed codes as "CODE DD.MM.YYYY"
 * lines. It also exposes the feed's existence check used to validate codes
 * submitted by operators.
 */
package codefeed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"
)

var codePattern = regexp.MustCompile(`^[A-Za-z0-9]+$`)

// Entry is one published gift code with its publication date.
type Entry struct {
	Code string
	Date string // YYYY-MM-DD
}

// Client is a client for the discovery feed.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates a new feed client.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

func (c *Client) get(ctx context.Context, rawURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("X-API-Key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("feed request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("feed returned status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode feed response: %w", err)
	}
	return nil
}

// FetchCodes returns the feed's current code list. Entries that fail the
// alphanumeric pattern or date parse are skipped silently; the feed carries
// operator-typed lines and some garbage is normal.
func (c *Client) FetchCodes(ctx context.Context) ([]Entry, error) {
	if c.baseURL == "" {
		return nil, fmt.Errorf("feed base url is empty")
	}

	var payload struct {
		Codes []string `json:"codes"`
	}
	if err := c.get(ctx, c.baseURL, &payload); err != nil {
		return nil, err
	}

	entries := make([]Entry, 0, len(payload.Codes))
	for _, line := range payload.Codes {
		parts := strings.Fields(strings.TrimSpace(line))
		if len(parts) != 2 {
			continue
		}
		code, rawDate := parts[0], parts[1]
		if !codePattern.MatchString(code) {
			continue
		}
		parsed, err := time.Parse("02.01.2006", rawDate)
		if err != nil {
			continue
		}
		entries = append(entries, Entry{Code: code, Date: parsed.Format("2006-01-02")})
	}
	return entries, nil
}

// CheckCode asks the feed whether a code is known to exist.
func (c *Client) CheckCode(ctx context.Context, code string) (bool, error) {
	if c.baseURL == "" {
		return false, fmt.Errorf("feed base url is empty")
	}

	var payload struct {
		Exists bool `json:"exists"`
	}
	checkURL := fmt.Sprintf("%s?action=check&giftcode=%s", c.baseURL, url.QueryEscape(code))
	if err := c.get(ctx, checkURL, &payload); err != nil {
		return false, err
	}
	return payload.Exists, nil
}
