package engine

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"dynwatch/internal/dynamic"
)

// Notification is the kind-independent shape handed to the dispatcher.
type Notification struct {
	ItemID      string
	Kind        dynamic.Kind
	Creator     int64
	CreatorName string
	AvatarURL   string
	Title       string
	Text        string
	Images      []string
	Link        string
	Topic       string
	PublishedAt time.Time
	// Forwarded is the nested original of a forward, when still available.
	Forwarded *Notification
}

var labelCaser = cases.Title(language.English)

// KindLabel is the human-readable name of a kind ("Image Text").
func KindLabel(kind dynamic.Kind) string {
	return labelCaser.String(strings.ReplaceAll(kind.String(), "_", " "))
}

// Normalize converts a classified item into a Notification. The creator id
// is the subscription's and is used when the payload omits the author.
func Normalize(creator int64, item dynamic.Classified) Notification {
	n := Notification{
		ItemID:      item.ID,
		Kind:        item.Kind(),
		Creator:     creator,
		CreatorName: item.Author.Name,
		AvatarURL:   item.Author.AvatarURL,
		Link:        item.Link(),
		PublishedAt: item.PublishedAt,
	}
	switch c := item.Content.(type) {
	case dynamic.Video:
		n.Title = c.Title
		n.Text = c.Description
		if c.Cover != "" {
			n.Images = []string{c.Cover}
		}
	case dynamic.Article:
		n.Title = c.Title
		n.Text = c.Summary
		n.Images = c.Covers
	case dynamic.ImageText:
		n.Title = c.Title
		n.Text = c.Summary
		n.Images = c.Images
		n.Topic = c.Topic
	case dynamic.Forward:
		n.Text = c.Quote
		if c.Original != nil {
			orig := Normalize(c.Original.Author.ID, *c.Original)
			n.Forwarded = &orig
		}
	case dynamic.LiveRecommendation, dynamic.Unknown:
	}
	return n
}

// Headline is the one-line summary used as a notification title.
func (n Notification) Headline() string {
	name := n.CreatorName
	if name == "" {
		name = fmt.Sprintf("UID %d", n.Creator)
	}
	switch n.Kind {
	case dynamic.KindVideo:
		return name + " uploaded a new video"
	case dynamic.KindArticle:
		return name + " published a new article"
	case dynamic.KindForward:
		return name + " shared a post"
	default:
		return name + " posted a new " + strings.ToLower(KindLabel(n.Kind))
	}
}

// PlainText renders the notification without a card, as used when card
// rendering fails or rich rendering is disabled.
func (n Notification) PlainText() string {
	var b strings.Builder
	b.WriteString(n.Headline())
	if n.Title != "" {
		b.WriteString("\n")
		b.WriteString(n.Title)
	}
	if n.Text != "" {
		b.WriteString("\n")
		b.WriteString(n.Text)
	}
	if f := n.Forwarded; f != nil {
		b.WriteString("\n> ")
		if f.CreatorName != "" {
			b.WriteString("@" + f.CreatorName + ": ")
		}
		body := f.Title
		if body == "" {
			body = f.Text
		}
		b.WriteString(strings.ReplaceAll(body, "\n", "\n> "))
	}
	if n.Link != "" {
		b.WriteString("\n")
		b.WriteString(n.Link)
	}
	return b.String()
}

// AllImages returns the notification's images followed by the forwarded
// original's images.
func (n Notification) AllImages() []string {
	out := append([]string(nil), n.Images...)
	if n.Forwarded != nil {
		out = append(out, n.Forwarded.Images...)
	}
	return out
}
