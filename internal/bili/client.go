package bili

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"dynwatch/internal/config"
	"dynwatch/internal/dynamic"
	"dynwatch/internal/logging"
	"dynwatch/internal/services"
)

const (
	feedPath     = "/x/polymer/web-dynamic/v1/feed/space"
	liveBatch    = "/room/v1/Room/get_status_info_by_uids"
	userInfoPath = "/x/space/acc/info"

	referer = "https://www.bilibili.com/"
	origin  = "https://www.bilibili.com"

	maxBodyBytes = 8 << 20
)

// Platform response codes with special handling.
const (
	codeOK           = 0
	codeNotFound     = -404
	codeRisk         = -352
	codePrecondition = -412
)

// Client talks to the platform APIs.
type Client struct {
	feedBase   string
	liveBase   string
	sessData   string
	userAgent  string
	maxRetries int
	backoff    time.Duration
	http       *http.Client
	limiter    *rate.Limiter
	logger     *slog.Logger
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		if c != nil {
			cl.http = c
		}
	}
}

// WithBackoff sets the initial retry delay.
func WithBackoff(d time.Duration) Option {
	return func(cl *Client) {
		cl.backoff = d
	}
}

// New builds a client from platform configuration.
func New(cfg config.Platform, logger *slog.Logger, opts ...Option) *Client {
	timeout := time.Duration(cfg.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	c := &Client{
		feedBase:   cfg.FeedBaseURL,
		liveBase:   cfg.LiveBaseURL,
		sessData:   cfg.SessData,
		userAgent:  cfg.UserAgent,
		maxRetries: max(cfg.MaxRetries, 0),
		backoff:    time.Second,
		http:       &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(limit, 1),
		logger:     logging.NewComponentLogger(logger, "bili"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Msg     string          `json:"msg"`
	Data    json.RawMessage `json:"data"`
}

func (e envelope) text() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Msg
}

type feedData struct {
	Items   []json.RawMessage `json:"items"`
	HasMore bool              `json:"has_more"`
	Offset  string            `json:"offset"`
}

// itemIdentity is the part of a feed item needed to keep dedup working when
// the rest of the item does not decode.
type itemIdentity struct {
	ID      string                     `json:"id_str"`
	Type    string                     `json:"type"`
	Modules map[string]json.RawMessage `json:"modules"`
}

// FetchFeed returns a creator's feed, newest first. Items that fail to decode
// are kept with their id and type only so they still advance the watermark.
func (c *Client) FetchFeed(ctx context.Context, creator int64) ([]dynamic.RawItem, error) {
	q := url.Values{}
	q.Set("host_mid", strconv.FormatInt(creator, 10))
	var data feedData
	if err := c.getJSON(ctx, "fetch feed", c.feedBase+feedPath, q, &data); err != nil {
		return nil, err
	}
	items := make([]dynamic.RawItem, 0, len(data.Items))
	for i, raw := range data.Items {
		item, ok := c.decodeFeedItem(creator, i, raw)
		if ok {
			items = append(items, item)
		}
	}
	return items, nil
}

func (c *Client) decodeFeedItem(creator int64, index int, raw json.RawMessage) (dynamic.RawItem, bool) {
	var item dynamic.RawItem
	decodeErr := json.Unmarshal(raw, &item)
	if decodeErr == nil {
		return item, true
	}

	var ident itemIdentity
	if err := json.Unmarshal(raw, &ident); err != nil || ident.ID == "" {
		logging.WarnWithContext(c.logger, "dropping feed item without a readable id", "feed_item_dropped",
			logging.Int64(logging.FieldCreator, creator),
			logging.Int("index", index),
			logging.Error(decodeErr),
			logging.String(logging.FieldErrorHint, "the platform changed the feed item format"),
			logging.String(logging.FieldImpact, "item cannot be deduplicated or announced"),
		)
		return dynamic.RawItem{}, false
	}

	fallback := dynamic.RawItem{ID: ident.ID, Type: ident.Type, DecodeError: decodeErr.Error()}
	// A pinned item must stay recognisable or it would become the watermark.
	if rawTag, ok := ident.Modules["module_tag"]; ok {
		var tag dynamic.ModuleTag
		if json.Unmarshal(rawTag, &tag) == nil && tag.Text != "" {
			fallback.Modules = &dynamic.Modules{Tag: &tag}
		}
	}
	logging.WarnWithContext(c.logger, "feed item did not decode; treating as unknown", "feed_item_malformed",
		logging.Int64(logging.FieldCreator, creator),
		logging.String("item_id", ident.ID),
		logging.String("item_type", ident.Type),
		logging.Error(decodeErr),
		logging.String(logging.FieldErrorHint, "the platform changed the feed item format"),
		logging.String(logging.FieldImpact, "item is suppressed but still marked seen"),
	)
	return fallback, true
}

// FetchLiveStatus looks up live rooms for several creators in one request.
// Creators without a live room are absent from the result.
func (c *Client) FetchLiveStatus(ctx context.Context, creators []int64) (map[int64]dynamic.LiveRoom, error) {
	if len(creators) == 0 {
		return map[int64]dynamic.LiveRoom{}, nil
	}
	q := url.Values{}
	for _, id := range creators {
		q.Add("uids[]", strconv.FormatInt(id, 10))
	}
	// The endpoint returns an empty array instead of an object when no room matches.
	var raw json.RawMessage
	if err := c.getJSON(ctx, "fetch live status", c.liveBase+liveBatch, q, &raw); err != nil {
		return nil, err
	}
	out := make(map[int64]dynamic.LiveRoom, len(creators))
	if len(raw) == 0 || raw[0] != '{' {
		return out, nil
	}
	var byUID map[string]dynamic.LiveRoom
	if err := json.Unmarshal(raw, &byUID); err != nil {
		return nil, services.Wrap(services.ErrMalformed, "bili", "fetch live status", "decode rooms", err)
	}
	for key, room := range byUID {
		uid := room.UID
		if uid == 0 {
			parsed, err := strconv.ParseInt(key, 10, 64)
			if err != nil {
				continue
			}
			uid = parsed
		}
		out[uid] = room
	}
	return out, nil
}

// UserInfo is the public profile of a creator.
type UserInfo struct {
	Mid  int64  `json:"mid"`
	Name string `json:"name"`
	Face string `json:"face"`
	Sign string `json:"sign"`
}

// FetchUserInfo returns a creator's profile; unknown creators yield services.ErrNotFound.
func (c *Client) FetchUserInfo(ctx context.Context, creator int64) (*UserInfo, error) {
	q := url.Values{}
	q.Set("mid", strconv.FormatInt(creator, 10))
	var info UserInfo
	if err := c.getJSON(ctx, "fetch user info", c.feedBase+userInfoPath, q, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

func (c *Client) getJSON(ctx context.Context, operation, endpoint string, query url.Values, out any) error {
	target := endpoint
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	delay := c.backoff
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			c.logger.Debug("retrying platform request",
				logging.String("operation", operation),
				logging.Int("attempt", attempt),
				logging.Duration("delay", delay),
				logging.Error(lastErr),
			)
			select {
			case <-ctx.Done():
				return services.Wrap(services.ErrTransient, "bili", operation, "cancelled during retry", ctx.Err())
			case <-time.After(delay):
			}
			delay *= 2
		}

		env, err := c.do(ctx, operation, target)
		if err != nil {
			lastErr = err
			if retryable(err) && ctx.Err() == nil {
				continue
			}
			return err
		}
		if err := checkCode(operation, env); err != nil {
			lastErr = err
			if retryable(err) {
				continue
			}
			return err
		}
		if out == nil || len(env.Data) == 0 || string(env.Data) == "null" {
			return nil
		}
		if err := json.Unmarshal(env.Data, out); err != nil {
			return services.Wrap(services.ErrMalformed, "bili", operation, "decode data", err)
		}
		return nil
	}
	return lastErr
}

type retryableError struct{ err error }

func (r retryableError) Error() string { return r.err.Error() }
func (r retryableError) Unwrap() error { return r.err }

func retryable(err error) bool {
	var r retryableError
	return errors.As(err, &r)
}

func (c *Client) do(ctx context.Context, operation, target string) (envelope, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return envelope{}, services.Wrap(services.ErrTransient, "bili", operation, "rate limiter wait", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return envelope{}, services.Wrap(services.ErrConfiguration, "bili", operation, "build request", err)
	}
	req.Header.Set("Accept", "application/json, text/plain, */*")
	req.Header.Set("Referer", referer)
	req.Header.Set("Origin", origin)
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	if c.sessData != "" {
		req.AddCookie(&http.Cookie{Name: "SESSDATA", Value: c.sessData})
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return envelope{}, retryableError{services.Wrap(services.ErrTransient, "bili", operation, "request failed", err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return envelope{}, retryableError{services.Wrap(services.ErrTransient, "bili", operation, "read response", err)}
	}

	switch {
	case resp.StatusCode == http.StatusPreconditionFailed || resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return envelope{}, retryableError{services.Wrap(services.ErrTransient, "bili", operation,
			fmt.Sprintf("status %d", resp.StatusCode), nil)}
	case resp.StatusCode == http.StatusNotFound:
		return envelope{}, services.Wrap(services.ErrNotFound, "bili", operation, "status 404", nil)
	case resp.StatusCode != http.StatusOK:
		return envelope{}, services.Wrap(services.ErrTransient, "bili", operation,
			fmt.Sprintf("status %d", resp.StatusCode), nil)
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return envelope{}, services.Wrap(services.ErrMalformed, "bili", operation, "decode envelope", err)
	}
	return env, nil
}

func checkCode(operation string, env envelope) error {
	switch env.Code {
	case codeOK:
		return nil
	case codeNotFound:
		return services.Wrap(services.ErrNotFound, "bili", operation, env.text(), nil)
	case codeRisk, codePrecondition:
		return retryableError{services.Wrap(services.ErrTransient, "bili", operation,
			fmt.Sprintf("risk control (code %d): %s", env.Code, env.text()), nil)}
	default:
		return services.Wrap(services.ErrTransient, "bili", operation,
			fmt.Sprintf("code %d: %s", env.Code, env.text()), nil)
	}
}
