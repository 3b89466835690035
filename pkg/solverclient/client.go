/**
 * @description
 * This package provides a client for the captcha solver service. The solver
 * is consumed as a black box: it takes image bytes and answers with the
 * recognized text, a confidence score, and a success flag. Failures are
 * expected and routine; the redemption driver simply fetches a fresh
 * challenge and tries again.
 */
package solverclient

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Client is a client for the captcha solver service.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates a new solver client.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 20 * time.Second},
	}
}

// SolveRequest is the payload sent to the solver. The account id and attempt
// index are passed through for the solver's own telemetry.
type SolveRequest struct {
	Image   string `json:"image"` // base64
	FID     string `json:"fid"`
	Attempt int    `json:"attempt"`
}

// SolveResult is the solver's answer for one challenge image.
type SolveResult struct {
	Text       string  `json:"text"`
	Success    bool    `json:"success"`
	Method     string  `json:"method"`
	Confidence float64 `json:"confidence"`
}

// Solve submits a challenge image and returns the solver's result. A network
// or protocol failure is an error; a clean "could not read it" answer is a
// result with Success=false.
func (c *Client) Solve(ctx context.Context, image []byte, fid string, attempt int) (SolveResult, error) {
	if c.baseURL == "" {
		return SolveResult{}, fmt.Errorf("solver base url is empty")
	}

	payload := SolveRequest{
		Image:   base64.StdEncoding.EncodeToString(image),
		FID:     fid,
		Attempt: attempt,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return SolveResult{}, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/solve", bytes.NewReader(body))
	if err != nil {
		return SolveResult{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if strings.TrimSpace(c.apiKey) != "" {
		req.Header.Set("X-Internal-API-Key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return SolveResult{}, fmt.Errorf("solver request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return SolveResult{}, fmt.Errorf("solver returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var result SolveResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return SolveResult{}, fmt.Errorf("failed to decode solver response: %w", err)
	}
	return result, nil
}
