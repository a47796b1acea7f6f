package notifications_test

import (
	"context"
	"errors"
	"io"
	"mime"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"dynwatch/internal/config"
	"dynwatch/internal/notifications"
	"dynwatch/internal/services"
)

type recorded struct {
	method  string
	path    string
	body    string
	headers http.Header
}

type recorder struct {
	mu       sync.Mutex
	requests []recorded
	status   int
}

func (r *recorder) handler(w http.ResponseWriter, req *http.Request) {
	body, _ := io.ReadAll(req.Body)
	r.mu.Lock()
	r.requests = append(r.requests, recorded{method: req.Method, path: req.URL.Path, body: string(body), headers: req.Header.Clone()})
	status := r.status
	r.mu.Unlock()
	if status != 0 {
		w.WriteHeader(status)
		_, _ = w.Write([]byte("nope"))
	}
}

func (r *recorder) all() []recorded {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]recorded(nil), r.requests...)
}

func newService(t *testing.T, rec *recorder) notifications.Service {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(rec.handler))
	t.Cleanup(srv.Close)
	cfg := config.Default()
	cfg.Notifications.NtfyServer = srv.URL + "/"
	return notifications.NewService(&cfg)
}

func TestNewServiceReturnsNoopWhenServerMissing(t *testing.T) {
	cfg := config.Default()
	cfg.Notifications.NtfyServer = ""
	svc := notifications.NewService(&cfg)
	if err := svc.Deliver(context.Background(), "group", notifications.Message{Parts: []notifications.Part{notifications.Text("x")}}); err != nil {
		t.Fatalf("expected noop notifier to return nil, got %v", err)
	}
}

func TestDeliverTextWithImage(t *testing.T) {
	rec := &recorder{}
	svc := newService(t, rec)

	msg := notifications.Message{
		Title: "Alice posted a new image text",
		Tags:  []string{"dynwatch", "image_text"},
		Click: "https://t.bilibili.com/1",
		Parts: []notifications.Part{
			notifications.Text("first"),
			notifications.Image("https://i0.hdslb.com/1.jpg"),
			notifications.Text("second"),
			notifications.Image("https://i0.hdslb.com/2.jpg"),
		},
	}
	if err := svc.Deliver(context.Background(), "group-1", msg); err != nil {
		t.Fatalf("Deliver: %v", err)
	}

	reqs := rec.all()
	if len(reqs) != 2 {
		t.Fatalf("expected 2 requests, got %d", len(reqs))
	}
	first := reqs[0]
	if first.method != http.MethodPost || first.path != "/group-1" {
		t.Fatalf("unexpected request %s %s", first.method, first.path)
	}
	if first.body != "first\nsecond" {
		t.Fatalf("body = %q", first.body)
	}
	if got := first.headers.Get("Attach"); got != "https://i0.hdslb.com/1.jpg" {
		t.Fatalf("attach = %q", got)
	}
	if got := first.headers.Get("Click"); got != "https://t.bilibili.com/1" {
		t.Fatalf("click = %q", got)
	}
	if got := first.headers.Get("Tags"); got != "dynwatch,image_text" {
		t.Fatalf("tags = %q", got)
	}
	if got := reqs[1].headers.Get("Attach"); got != "https://i0.hdslb.com/2.jpg" {
		t.Fatalf("second attach = %q", got)
	}
	if reqs[1].body != "" {
		t.Fatalf("follow-up should carry no text, got %q", reqs[1].body)
	}
}

func TestDeliverFileUsesPut(t *testing.T) {
	rec := &recorder{}
	svc := newService(t, rec)
	card := filepath.Join(t.TempDir(), "42-901.html")
	if err := os.WriteFile(card, []byte("<html></html>"), 0o644); err != nil {
		t.Fatalf("write card: %v", err)
	}

	msg := notifications.Message{
		Title: "新动态",
		Parts: []notifications.Part{notifications.File(card), notifications.Text("line one\nline two")},
	}
	if err := svc.Deliver(context.Background(), "group", msg); err != nil {
		t.Fatalf("Deliver: %v", err)
	}
	reqs := rec.all()
	if len(reqs) != 1 {
		t.Fatalf("expected 1 request, got %d", len(reqs))
	}
	req := reqs[0]
	if req.method != http.MethodPut || req.body != "<html></html>" {
		t.Fatalf("unexpected request %s %q", req.method, req.body)
	}
	if got := req.headers.Get("Filename"); got != "42-901.html" {
		t.Fatalf("filename = %q", got)
	}
	if got := req.headers.Get("Message"); got != `line one\nline two` {
		t.Fatalf("message header = %q", got)
	}
	decoded, err := new(mime.WordDecoder).DecodeHeader(req.headers.Get("Title"))
	if err != nil || decoded != "新动态" {
		t.Fatalf("title = %q (%v)", decoded, err)
	}
}

func TestDeliverErrorStatus(t *testing.T) {
	rec := &recorder{status: http.StatusTooManyRequests}
	svc := newService(t, rec)

	err := svc.Deliver(context.Background(), "group", notifications.Message{Parts: []notifications.Part{notifications.Text("x")}})
	if !errors.Is(err, services.ErrDelivery) {
		t.Fatalf("expected ErrDelivery, got %v", err)
	}
}

func TestDeliverMissingFile(t *testing.T) {
	rec := &recorder{}
	svc := newService(t, rec)

	err := svc.Deliver(context.Background(), "group", notifications.Message{
		Parts: []notifications.Part{notifications.File(filepath.Join(t.TempDir(), "missing.html"))},
	})
	if !errors.Is(err, services.ErrDelivery) {
		t.Fatalf("expected ErrDelivery, got %v", err)
	}
	reqs := rec.all()
	if len(reqs) != 0 {
		t.Fatal("no request should be sent for a missing attachment")
	}
}

func TestTestNotification(t *testing.T) {
	rec := &recorder{}
	svc := newService(t, rec)

	if err := svc.TestNotification(context.Background(), "group"); err != nil {
		t.Fatalf("TestNotification: %v", err)
	}
	reqs := rec.all()
	if len(reqs) != 1 || reqs[0].headers.Get("Priority") != "low" {
		t.Fatalf("unexpected requests %+v", reqs)
	}
}

func TestMessageBodyAndAttachments(t *testing.T) {
	msg := notifications.Message{Parts: []notifications.Part{
		notifications.Text("a"), notifications.Text("  "), notifications.Image(""), notifications.File("/x"), notifications.Text("b"),
	}}
	if msg.Body() != "a\nb" {
		t.Fatalf("body = %q", msg.Body())
	}
	if atts := msg.Attachments(); len(atts) != 1 || atts[0].Kind != notifications.PartFile {
		t.Fatalf("attachments = %+v", atts)
	}
}
