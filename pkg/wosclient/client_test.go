package wosclient

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/storage3mohitraj444362-commits/wos-redemption-service/internal/domain"
)

func newTestClient(server *httptest.Server) *Client {
	c := NewClient(server.URL+"/player", server.URL+"/captcha", server.URL+"/gift_code", "test-secret")
	c.HTTPClient = server.Client()
	return c
}

func TestLoginSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/x-www-form-urlencoded" {
			t.Errorf("unexpected content type %q", ct)
		}
		body, _ := io.ReadAll(r.Body)
		if !strings.HasPrefix(string(body), "sign=") {
			t.Errorf("expected signed body, got %q", string(body))
		}
		fmt.Fprint(w, `{"msg":"success","err_code":0,"data":{"fid":12345}}`)
	}))
	defer server.Close()

	if err := newTestClient(server).Login(context.Background(), "12345"); err != nil {
		t.Fatalf("Login returned error: %v", err)
	}
}

func TestLoginRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"msg":"role not exist","err_code":40004}`)
	}))
	defer server.Close()

	err := newTestClient(server).Login(context.Background(), "12345")
	if !errors.Is(err, ErrLoginRejected) {
		t.Fatalf("expected ErrLoginRejected, got %v", err)
	}
}

func TestPostSignedRateLimitSignals(t *testing.T) {
	testCases := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "http 429",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusTooManyRequests)
			},
		},
		{
			name: "html throttle page",
			handler: func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, "<html><body>Too Many Requests</body></html>")
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			server := httptest.NewServer(tc.handler)
			defer server.Close()

			err := newTestClient(server).Login(context.Background(), "12345")
			if !errors.Is(err, ErrRateLimited) {
				t.Fatalf("expected ErrRateLimited, got %v", err)
			}
		})
	}
}

func TestFetchCaptchaPayloadShapes(t *testing.T) {
	image := []byte{0x89, 0x50, 0x4e, 0x47}
	b64 := base64.StdEncoding.EncodeToString(image)

	testCases := []struct {
		name string
		data string
	}{
		{"bare base64 string", fmt.Sprintf("%q", b64)},
		{"wrapped object", fmt.Sprintf(`{"img":%q}`, b64)},
		{"data uri prefix", fmt.Sprintf(`{"img":"data:image/png;base64,%s"}`, b64)},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprintf(w, `{"msg":"SUCCESS","err_code":0,"data":%s}`, tc.data)
			}))
			defer server.Close()

			got, err := newTestClient(server).FetchCaptcha(context.Background(), "12345")
			if err != nil {
				t.Fatalf("FetchCaptcha returned error: %v", err)
			}
			if string(got) != string(image) {
				t.Errorf("decoded image mismatch: got %v want %v", got, image)
			}
		})
	}
}

func TestFetchCaptchaRefusals(t *testing.T) {
	testCases := []struct {
		name    string
		msg     string
		wantErr error
	}{
		{"too frequent", "CAPTCHA GET TOO FREQUENT", ErrCaptchaTooFrequent},
		{"session expired", "not login", ErrLoginExpired},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprintf(w, `{"msg":%q,"err_code":40100}`, tc.msg)
			}))
			defer server.Close()

			_, err := newTestClient(server).FetchCaptcha(context.Background(), "12345")
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("expected %v, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestRedeemClassifiesResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		form := string(body)
		for _, field := range []string{"cdk=WINTER2026", "captcha_code=ab12", "fid=12345"} {
			if !strings.Contains(form, field) {
				t.Errorf("expected form to contain %q, got %q", field, form)
			}
		}
		fmt.Fprint(w, `{"msg":"RECEIVED.","err_code":40008}`)
	}))
	defer server.Close()

	cls, err := newTestClient(server).Redeem(context.Background(), "12345", "WINTER2026", "ab12")
	if err != nil {
		t.Fatalf("Redeem returned error: %v", err)
	}
	if cls.Outcome != domain.OutcomeAlreadyRedeemed {
		t.Errorf("expected already_redeemed outcome, got %s", cls.Outcome)
	}
}

func TestRedeemRateLimitedSurfacesError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	_, err := newTestClient(server).Redeem(context.Background(), "12345", "WINTER2026", "ab12")
	if !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
}
