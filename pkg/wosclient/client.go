/**
 * @description
 * This package provides a client for the external gift-code API. It
 * encapsulates the three signed form-encoded endpoints the redemption flow
 * needs: session login (player info), captcha-challenge fetch, and code
 * submission. Response bodies are sniffed for the HTML error pages the
 * upstream serves when throttling at the transport level.
 *
 * @dependencies
 * - internal/domain: outcome classification targets.
 */
package wosclient

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrRateLimited signals an HTTP 429 or an HTML throttle page. The caller
	// is expected to mark the session slot it used and back off.
	ErrRateLimited = errors.New("wos api: rate limited")
	// ErrCaptchaTooFrequent is the explicit upstream "CAPTCHA GET TOO
	// FREQUENT" refusal on a challenge fetch.
	ErrCaptchaTooFrequent = errors.New("wos api: captcha requested too frequently")
	// ErrLoginRejected means the login endpoint answered with a non-success
	// status marker rather than failing at the transport level.
	ErrLoginRejected = errors.New("wos api: login rejected")
	// ErrLoginExpired is the upstream's "not login" refusal on a challenge
	// fetch; the session must be re-established before continuing.
	ErrLoginExpired = errors.New("wos api: session expired")
)

// Client talks to the gift-code API. All three endpoints are POST with a
// signed form body.
type Client struct {
	PlayerURL  string
	CaptchaURL string
	RedeemURL  string
	Secret     string
	HTTPClient *http.Client

	// Per-endpoint timeouts. The challenge fetch is kept short; submission
	// gets longer because the upstream validates the captcha inline.
	LoginTimeout  time.Duration
	FetchTimeout  time.Duration
	SubmitTimeout time.Duration
}

// NewClient creates a gift-code API client with the given endpoints and
// signing secret.
func NewClient(playerURL, captchaURL, redeemURL, secret string) *Client {
	return &Client{
		PlayerURL:     strings.TrimSpace(playerURL),
		CaptchaURL:    strings.TrimSpace(captchaURL),
		RedeemURL:     strings.TrimSpace(redeemURL),
		Secret:        secret,
		HTTPClient:    &http.Client{Timeout: 30 * time.Second},
		LoginTimeout:  10 * time.Second,
		FetchTimeout:  10 * time.Second,
		SubmitTimeout: 15 * time.Second,
	}
}

type apiResponse struct {
	Msg     string          `json:"msg"`
	ErrCode int             `json:"err_code"`
	Data    json.RawMessage `json:"data"`
}

func (c *Client) postSigned(ctx context.Context, url string, fields map[string]string, timeout time.Duration) (*apiResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	body := SignPayload(fields, c.Secret)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, strings.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, ErrRateLimited
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if looksLikeHTML(raw) {
		return nil, ErrRateLimited
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var parsed apiResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &parsed, nil
}

func nowMillis() string {
	return strconv.FormatInt(time.Now().UnixMilli(), 10)
}

// Login establishes a redemption session for the player by requesting their
// profile. The endpoint answers msg "success" (lowercase, unlike the other
// two endpoints) when the session is live.
func (c *Client) Login(ctx context.Context, fid string) error {
	resp, err := c.postSigned(ctx, c.PlayerURL, map[string]string{
		"fid":  fid,
		"time": nowMillis(),
	}, c.LoginTimeout)
	if err != nil {
		return err
	}
	if resp.Msg != "success" {
		return fmt.Errorf("%w: %s", ErrLoginRejected, resp.Msg)
	}
	return nil
}

// FetchCaptcha requests a fresh challenge image for the player and returns
// the decoded image bytes. The upstream delivers the image either as a bare
// base64 string or wrapped in an object under "img", optionally with a
// data-URI prefix; both shapes are accepted.
func (c *Client) FetchCaptcha(ctx context.Context, fid string) ([]byte, error) {
	resp, err := c.postSigned(ctx, c.CaptchaURL, map[string]string{
		"fid":  fid,
		"time": nowMillis(),
	}, c.FetchTimeout)
	if err != nil {
		return nil, err
	}
	switch {
	case resp.Msg == "SUCCESS":
	case resp.Msg == "CAPTCHA GET TOO FREQUENT":
		return nil, ErrCaptchaTooFrequent
	case strings.EqualFold(strings.TrimSpace(resp.Msg), "not login"):
		return nil, ErrLoginExpired
	default:
		return nil, fmt.Errorf("captcha fetch refused: %s", resp.Msg)
	}
	return decodeCaptchaPayload(resp.Data)
}

func decodeCaptchaPayload(data json.RawMessage) ([]byte, error) {
	if len(data) == 0 {
		return nil, errors.New("captcha payload is empty")
	}

	var b64 string
	if err := json.Unmarshal(data, &b64); err != nil {
		var wrapped struct {
			Img string `json:"img"`
		}
		if err := json.Unmarshal(data, &wrapped); err != nil {
			return nil, fmt.Errorf("unrecognized captcha payload shape: %w", err)
		}
		b64 = wrapped.Img
	}

	if idx := strings.Index(b64, ","); idx >= 0 && strings.HasPrefix(b64, "data:image") {
		b64 = b64[idx+1:]
	}
	if b64 == "" {
		return nil, errors.New("captcha image data is empty")
	}

	img, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, fmt.Errorf("failed to decode captcha image: %w", err)
	}
	return img, nil
}

// Redeem submits the code with the solved captcha text and classifies the
// upstream's answer. Transport failures and throttling surface as errors;
// every decoded JSON response, including unknown ones, yields a
// Classification.
func (c *Client) Redeem(ctx context.Context, fid, code, captcha string) (Classification, error) {
	resp, err := c.postSigned(ctx, c.RedeemURL, map[string]string{
		"fid":          fid,
		"cdk":          code,
		"captcha_code": captcha,
		"time":         nowMillis(),
	}, c.SubmitTimeout)
	if err != nil {
		return Classification{}, err
	}
	return ClassifySubmission(resp.Msg, resp.ErrCode), nil
}
