// Package render turns notifications into self-contained HTML cards written
// to the render directory. Delivery attaches the card file; when rendering
// fails the dispatcher falls back to the notification's plain text.
package render

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"dynwatch/internal/engine"
	"dynwatch/internal/services"
)

//go:embed templates/*.html.tmpl
var templateFS embed.FS

// CardPattern matches files produced by the renderer, for retention pruning.
const CardPattern = "*.html"

// Renderer writes card artifacts.
type Renderer struct {
	dir  string
	tmpl *template.Template
	loc  *time.Location
	now  func() time.Time
}

// Option customizes a Renderer.
type Option func(*Renderer)

// WithLocation sets the timezone used for timestamps on cards.
func WithLocation(loc *time.Location) Option {
	return func(r *Renderer) {
		if loc != nil {
			r.loc = loc
		}
	}
}

// WithClock overrides the clock used to name live cards.
func WithClock(now func() time.Time) Option {
	return func(r *Renderer) {
		if now != nil {
			r.now = now
		}
	}
}

// New parses the embedded templates and prepares dir for output.
func New(dir string, opts ...Option) (*Renderer, error) {
	tmpl, err := template.ParseFS(templateFS, "templates/*.html.tmpl")
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "render", "parse templates", "", err)
	}
	r := &Renderer{dir: dir, tmpl: tmpl, loc: time.Local, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

type dynamicView struct {
	Headline   string
	Kind       string
	KindLabel  string
	Author     string
	AvatarURL  string
	Published  string
	Title      string
	Paragraphs []string
	Images     []string
	Link       string
	Forwarded  *forwardView
}

type forwardView struct {
	Author     string
	Title      string
	Paragraphs []string
	Images     []string
}

type liveView struct {
	Headline   string
	State      string
	StateLabel string
	Author     string
	Title      string
	Cover      string
	Link       string
}

// DynamicCard renders the card markup for a dynamic.
func (r *Renderer) DynamicCard(n engine.Notification) ([]byte, error) {
	view := dynamicView{
		Headline:   n.Headline(),
		Kind:       n.Kind.String(),
		KindLabel:  engine.KindLabel(n.Kind),
		Author:     displayName(n.CreatorName, n.Creator),
		AvatarURL:  n.AvatarURL,
		Published:  r.formatTime(n.PublishedAt),
		Title:      n.Title,
		Paragraphs: paragraphs(n.Text),
		Images:     n.Images,
		Link:       n.Link,
	}
	if f := n.Forwarded; f != nil {
		view.Forwarded = &forwardView{
			Author:     displayName(f.CreatorName, f.Creator),
			Title:      f.Title,
			Paragraphs: paragraphs(f.Text),
			Images:     f.Images,
		}
	}
	return r.execute("dynamic.html.tmpl", view)
}

// LiveCard renders the card markup for a live event.
func (r *Renderer) LiveCard(ev engine.LiveEvent) ([]byte, error) {
	view := liveView{
		Headline: ev.Headline(),
		State:    ev.Type.String(),
		Author:   displayName(ev.UserName, ev.Creator),
		Link:     ev.Link,
	}
	if ev.Type == engine.LiveStarted {
		view.StateLabel = "Live now"
		view.Title = ev.Title
		view.Cover = ev.Cover
	} else {
		view.StateLabel = "Offline"
	}
	return r.execute("live.html.tmpl", view)
}

// RenderDynamic writes the card for n and returns its path.
func (r *Renderer) RenderDynamic(ctx context.Context, n engine.Notification) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", services.Wrap(services.ErrRender, "render", "dynamic", "cancelled", err)
	}
	body, err := r.DynamicCard(n)
	if err != nil {
		return "", err
	}
	name := fmt.Sprintf("%d-%s.html", n.Creator, sanitize(n.ItemID))
	return r.write(name, body)
}

// RenderLive writes the card for ev and returns its path.
func (r *Renderer) RenderLive(ctx context.Context, ev engine.LiveEvent) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", services.Wrap(services.ErrRender, "render", "live", "cancelled", err)
	}
	body, err := r.LiveCard(ev)
	if err != nil {
		return "", err
	}
	name := fmt.Sprintf("live-%d-%s-%d.html", ev.Creator, ev.Type, r.now().UnixNano())
	return r.write(name, body)
}

func (r *Renderer) execute(name string, view any) ([]byte, error) {
	var buf bytes.Buffer
	if err := r.tmpl.ExecuteTemplate(&buf, name, view); err != nil {
		return nil, services.Wrap(services.ErrRender, "render", "execute", name, err)
	}
	return buf.Bytes(), nil
}

func (r *Renderer) write(name string, body []byte) (string, error) {
	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return "", services.Wrap(services.ErrRender, "render", "write", "create render dir", err)
	}
	target := filepath.Join(r.dir, name)
	tmp, err := os.CreateTemp(r.dir, ".card-*")
	if err != nil {
		return "", services.Wrap(services.ErrRender, "render", "write", "create temp file", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(body); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return "", services.Wrap(services.ErrRender, "render", "write", "write card", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return "", services.Wrap(services.ErrRender, "render", "write", "close card", err)
	}
	if err := os.Rename(tmpName, target); err != nil {
		_ = os.Remove(tmpName)
		return "", services.Wrap(services.ErrRender, "render", "write", "rename card", err)
	}
	return target, nil
}

func (r *Renderer) formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.In(r.loc).Format("2006-01-02 15:04")
}

func displayName(name string, id int64) string {
	if strings.TrimSpace(name) != "" {
		return name
	}
	return "UID " + strconv.FormatInt(id, 10)
}

func paragraphs(text string) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return out
}

func sanitize(id string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= '0' && r <= '9', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, id)
}
