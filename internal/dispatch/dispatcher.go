// Package dispatch assembles notifications into delivery messages and sends
// them, falling back to plain text when a card cannot be rendered.
package dispatch

import (
	"context"
	"log/slog"

	"dynwatch/internal/dynamic"
	"dynwatch/internal/engine"
	"dynwatch/internal/logging"
	"dynwatch/internal/notifications"
)

// RenderFailedPrefix leads the plain-text fallback sent when card rendering fails.
const RenderFailedPrefix = "[card unavailable]"

// Renderer produces card artifacts.
type Renderer interface {
	RenderDynamic(ctx context.Context, n engine.Notification) (string, error)
	RenderLive(ctx context.Context, ev engine.LiveEvent) (string, error)
}

// Deliverer sends an assembled message to a subscriber.
type Deliverer interface {
	Deliver(ctx context.Context, subscriber string, msg notifications.Message) error
}

// Dispatcher delivers a cycle's notifications.
type Dispatcher struct {
	renderer  Renderer
	deliverer Deliverer
	rich      bool
	logger    *slog.Logger
}

// New builds a dispatcher. A nil renderer always sends plain text. When rich
// is false image-text dynamics skip rendering; other kinds still get a card.
func New(renderer Renderer, deliverer Deliverer, rich bool, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		renderer:  renderer,
		deliverer: deliverer,
		rich:      rich,
		logger:    logging.NewComponentLogger(logger, "dispatch"),
	}
}

// Report summarizes one DispatchDynamics call.
type Report struct {
	Delivered int
	Failed    int
	Fallbacks int
}

// DispatchDynamics delivers items in the given order. Failures are logged and
// do not stop later items.
func (d *Dispatcher) DispatchDynamics(ctx context.Context, subscriber string, items []engine.Notification) Report {
	logger := logging.WithContext(ctx, d.logger)
	var report Report
	for _, n := range items {
		msg, fellBack := d.AssembleDynamic(ctx, n)
		if fellBack {
			report.Fallbacks++
		}
		if err := d.deliverer.Deliver(ctx, subscriber, msg); err != nil {
			report.Failed++
			logging.WarnWithContext(logger, "dynamic delivery failed", "delivery_failed",
				logging.String(logging.FieldItemID, n.ItemID),
				logging.String("kind", n.Kind.String()),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check ntfy server reachability"),
				logging.String(logging.FieldImpact, "subscriber misses this notification"),
			)
			continue
		}
		report.Delivered++
		logger.Info("dynamic delivered",
			logging.String(logging.FieldEventType, "dynamic_delivered"),
			logging.String(logging.FieldItemID, n.ItemID),
			logging.String("kind", n.Kind.String()),
		)
	}
	return report
}

// DispatchLive delivers a live event.
func (d *Dispatcher) DispatchLive(ctx context.Context, subscriber string, ev engine.LiveEvent) error {
	logger := logging.WithContext(ctx, d.logger)
	msg := d.AssembleLive(ctx, ev)
	if err := d.deliverer.Deliver(ctx, subscriber, msg); err != nil {
		logging.WarnWithContext(logger, "live delivery failed", "delivery_failed",
			logging.String("event", ev.Type.String()),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check ntfy server reachability"),
			logging.String(logging.FieldImpact, "subscriber misses this live notification"),
		)
		return err
	}
	logger.Info("live event delivered",
		logging.String(logging.FieldEventType, "live_delivered"),
		logging.String("event", ev.Type.String()),
	)
	return nil
}

// AssembleDynamic builds the message for one dynamic and reports whether the
// plain-text fallback was used because rendering failed.
func (d *Dispatcher) AssembleDynamic(ctx context.Context, n engine.Notification) (notifications.Message, bool) {
	msg := notifications.Message{
		Title: n.Headline(),
		Tags:  []string{"dynwatch", n.Kind.String()},
		Click: n.Link,
	}
	if d.renderer == nil || (!d.rich && n.Kind == dynamic.KindImageText) {
		msg.Parts = plainParts(n.PlainText(), n.AllImages())
		return msg, false
	}
	path, err := d.renderer.RenderDynamic(ctx, n)
	if err != nil {
		logging.WarnWithContext(logging.WithContext(ctx, d.logger), "card render failed; sending plain text", "render_failed",
			logging.String(logging.FieldItemID, n.ItemID),
			logging.Error(err),
			logging.String(logging.FieldImpact, "subscriber receives a text-only notification"),
		)
		msg.Parts = plainParts(RenderFailedPrefix+" "+n.PlainText(), n.AllImages())
		return msg, true
	}
	msg.Parts = []notifications.Part{notifications.File(path), notifications.Text(n.Link)}
	return msg, false
}

// AssembleLive builds the message for a live event.
func (d *Dispatcher) AssembleLive(ctx context.Context, ev engine.LiveEvent) notifications.Message {
	msg := notifications.Message{
		Title: ev.Headline(),
		Tags:  []string{"dynwatch", ev.Type.String()},
		Click: ev.Link,
	}
	if ev.Type == engine.LiveStarted {
		msg.Priority = "high"
	}
	var images []string
	if ev.Cover != "" {
		images = []string{ev.Cover}
	}
	if d.renderer == nil {
		msg.Parts = plainParts(ev.PlainText(), images)
		return msg
	}
	path, err := d.renderer.RenderLive(ctx, ev)
	if err != nil {
		logging.WarnWithContext(logging.WithContext(ctx, d.logger), "live card render failed; sending plain text", "render_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "subscriber receives a text-only notification"),
		)
		msg.Parts = plainParts(RenderFailedPrefix+" "+ev.PlainText(), images)
		return msg
	}
	msg.Parts = []notifications.Part{notifications.File(path), notifications.Text(ev.Link)}
	return msg
}

func plainParts(text string, images []string) []notifications.Part {
	parts := []notifications.Part{notifications.Text(text)}
	for _, img := range images {
		parts = append(parts, notifications.Image(img))
	}
	return parts
}
