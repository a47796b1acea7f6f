package daemon

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"dynwatch/internal/api"
	"dynwatch/internal/dynamic"
	"dynwatch/internal/logging"
	"dynwatch/internal/scheduler"
	"dynwatch/internal/subscription"
	"dynwatch/internal/testsupport"
)

type emptyFeeds struct{}

func (emptyFeeds) FetchFeed(context.Context, int64) ([]dynamic.RawItem, error) { return nil, nil }

func newTestAPIServer(t *testing.T) *apiServer {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	testsupport.AddSubscription(t, st, subscription.Subscription{Subscriber: "g1", Creator: 42, CreatorName: "Alice", Watermark: "9"})
	testsupport.AddSubscription(t, st, subscription.Subscription{Subscriber: "g2", Creator: 7})
	sched := scheduler.New(cfg, scheduler.Deps{Feeds: emptyFeeds{}, Store: st}, logging.NewNop())
	d, err := New(cfg, st, sched, logging.NewNop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return &apiServer{daemon: d}
}

func TestAPIServerHandleSubscriptions(t *testing.T) {
	srv := newTestAPIServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/subscriptions?subscriber=g1", nil)
	w := httptest.NewRecorder()
	srv.handleSubscriptions(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 OK, got %d", w.Code)
	}
	var resp api.SubscriptionListResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp.Items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(resp.Items))
	}
	if resp.Items[0].CreatorName != "Alice" || resp.Items[0].Watermark != "9" {
		t.Fatalf("unexpected item: %+v", resp.Items[0])
	}
}

func TestAPIServerHandleStatus(t *testing.T) {
	srv := newTestAPIServer(t)

	w := httptest.NewRecorder()
	srv.handleStatus(w, httptest.NewRequest(http.MethodGet, "/api/status", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 OK, got %d", w.Code)
	}
	var resp api.DaemonStatus
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Running {
		t.Fatal("daemon was never started")
	}
	if resp.Subscriptions != 2 || resp.PID == 0 || resp.DatabasePath == "" {
		t.Fatalf("unexpected status: %+v", resp)
	}

	w = httptest.NewRecorder()
	srv.handleStatus(w, httptest.NewRequest(http.MethodPost, "/api/status", nil))
	if w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", w.Code)
	}
}

func TestAuthMiddleware(t *testing.T) {
	handler := authMiddleware("secret", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	cases := []struct {
		header string
		want   int
	}{
		{"", http.StatusUnauthorized},
		{"Bearer wrong", http.StatusUnauthorized},
		{"Basic secret", http.StatusUnauthorized},
		{"Bearer secret", http.StatusNoContent},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
		if tc.header != "" {
			req.Header.Set("Authorization", tc.header)
		}
		w := httptest.NewRecorder()
		handler(w, req)
		if w.Code != tc.want {
			t.Errorf("header %q: got %d, want %d", tc.header, w.Code, tc.want)
		}
	}

	open := authMiddleware("", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	w := httptest.NewRecorder()
	open(w, httptest.NewRequest(http.MethodGet, "/api/status", nil))
	if w.Code != http.StatusNoContent {
		t.Fatalf("empty token should allow all requests, got %d", w.Code)
	}
}
