package notifications

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"dynwatch/internal/config"
	"dynwatch/internal/services"
)

const userAgent = "dynwatch/0.1.0"

// Service is the delivery surface used by the dispatcher.
type Service interface {
	Deliver(ctx context.Context, subscriber string, msg Message) error
	TestNotification(ctx context.Context, subscriber string) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy server is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	server := strings.TrimRight(strings.TrimSpace(cfg.Notifications.NtfyServer), "/")
	if server == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		server: server,
		client: &http.Client{Timeout: timeout},
	}
}

type ntfyService struct {
	server string
	client *http.Client
}

// Deliver sends msg to the subscriber's topic. The first attachment travels
// with the text; remaining attachments are sent afterwards, one per request.
func (n *ntfyService) Deliver(ctx context.Context, subscriber string, msg Message) error {
	if n == nil || n.client == nil {
		return nil
	}
	topic := strings.TrimSpace(subscriber)
	if topic == "" {
		return services.Wrap(services.ErrDelivery, "notifications", "deliver", "empty subscriber", nil)
	}
	endpoint := n.server + "/" + url.PathEscape(topic)

	attachments := msg.Attachments()
	var first *Part
	if len(attachments) > 0 {
		first = &attachments[0]
		attachments = attachments[1:]
	}
	if err := n.send(ctx, endpoint, msg, msg.Body(), first); err != nil {
		return err
	}
	for i := range attachments {
		follow := Message{Click: msg.Click, Tags: msg.Tags}
		if err := n.send(ctx, endpoint, follow, "", &attachments[i]); err != nil {
			return err
		}
	}
	return nil
}

func (n *ntfyService) TestNotification(ctx context.Context, subscriber string) error {
	return n.Deliver(ctx, subscriber, Message{
		Title:    "dynwatch - Test",
		Tags:     []string{"dynwatch", "test"},
		Priority: "low",
		Parts:    []Part{Text("🧪 Notification system test")},
	})
}

func (n *ntfyService) send(ctx context.Context, endpoint string, msg Message, body string, attachment *Part) error {
	method := http.MethodPost
	var reader io.Reader = strings.NewReader(body)
	var filename string

	if attachment != nil && attachment.Kind == PartFile {
		f, err := os.Open(attachment.Value)
		if err != nil {
			return services.Wrap(services.ErrDelivery, "notifications", "deliver", "open attachment", err)
		}
		defer f.Close()
		method = http.MethodPut
		reader = f
		filename = filepath.Base(attachment.Value)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return services.Wrap(services.ErrDelivery, "notifications", "deliver", "build ntfy request", err)
	}
	req.Header.Set("User-Agent", userAgent)
	if filename != "" {
		req.Header.Set("Filename", filename)
		if body != "" {
			req.Header.Set("Message", encodeHeader(strings.ReplaceAll(body, "\n", `\n`)))
		}
	} else {
		req.Header.Set("Content-Type", "text/plain; charset=utf-8")
		if attachment != nil && attachment.Kind == PartImage {
			req.Header.Set("Attach", attachment.Value)
		}
	}
	if msg.Title != "" {
		req.Header.Set("Title", encodeHeader(msg.Title))
	}
	if len(msg.Tags) > 0 {
		req.Header.Set("Tags", strings.Join(msg.Tags, ","))
	}
	if msg.Priority != "" && msg.Priority != "default" {
		req.Header.Set("Priority", msg.Priority)
	}
	if msg.Click != "" {
		req.Header.Set("Click", msg.Click)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return services.Wrap(services.ErrDelivery, "notifications", "deliver", "send ntfy notification", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return services.Wrap(services.ErrDelivery, "notifications", "deliver",
			fmt.Sprintf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(detail))), nil)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// encodeHeader applies RFC 2047 encoding when the value is not plain ASCII.
func encodeHeader(value string) string {
	return mime.BEncoding.Encode("UTF-8", value)
}

type noopService struct{}

func (noopService) Deliver(context.Context, string, Message) error { return nil }
func (noopService) TestNotification(context.Context, string) error { return nil }
