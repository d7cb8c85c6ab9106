package wfm

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"wfm-pricer/internal/config"
)

// testClient builds a Client pointed at an httptest server with a
// generous rate limit so tests run fast.
func testClient(t *testing.T, srv *httptest.Server) *Client {
	t.Helper()
	cfg := config.Default()
	cfg.APIBaseURL = srv.URL
	cfg.RequestsPerSecond = 1000
	cfg.Burst = 1000
	return New(cfg)
}

func TestGetJSON_RetriesOnTransientStatus(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	c := testClient(t, srv)
	var dst struct {
		OK bool `json:"ok"`
	}
	if err := c.getJSON(t.Context(), "/ping", &dst); err != nil {
		t.Fatalf("getJSON: %v", err)
	}
	if !dst.OK {
		t.Error("expected ok=true after retries succeed")
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3 (2 failures + 1 success)", calls)
	}
}

func TestGetJSON_NonRetryableStatusFailsImmediately(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := testClient(t, srv)
	if err := c.getJSON(t.Context(), "/ping", nil); err == nil {
		t.Fatal("expected error on 401")
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1 (no retry on non-retryable status)", calls)
	}
}

func TestAuthorizationHeaderSentWhenTokenSet(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	cfg := config.Default()
	cfg.APIBaseURL = srv.URL
	cfg.APIToken = "secret-token"
	cfg.RequestsPerSecond = 1000
	cfg.Burst = 1000
	c := New(cfg)

	if err := c.getJSON(t.Context(), "/profile/orders", nil); err != nil {
		t.Fatalf("getJSON: %v", err)
	}
	if gotAuth != "JWT secret-token" {
		t.Errorf("Authorization = %q, want %q", gotAuth, "JWT secret-token")
	}
}
