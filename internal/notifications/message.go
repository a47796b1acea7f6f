package notifications

import "strings"

// PartKind identifies what a message part carries.
type PartKind int

const (
	PartText PartKind = iota + 1
	PartImage
	PartFile
)

func (k PartKind) String() string {
	switch k {
	case PartText:
		return "text"
	case PartImage:
		return "image"
	case PartFile:
		return "file"
	default:
		return "unknown"
	}
}

// Part is one ordered piece of a message.
type Part struct {
	Kind PartKind
	// Value is the text, the image URL, or the local file path.
	Value string
}

func Text(s string) Part    { return Part{Kind: PartText, Value: s} }
func Image(url string) Part { return Part{Kind: PartImage, Value: url} }
func File(path string) Part { return Part{Kind: PartFile, Value: path} }

func (p Part) isAttachment() bool {
	return p.Kind == PartImage || p.Kind == PartFile
}

// Message is what a subscriber receives for one event.
type Message struct {
	Title    string
	Tags     []string
	Priority string
	// Click is opened when the recipient taps the notification.
	Click string
	Parts []Part
}

// Body joins the text parts.
func (m Message) Body() string {
	var lines []string
	for _, p := range m.Parts {
		if p.Kind == PartText && strings.TrimSpace(p.Value) != "" {
			lines = append(lines, p.Value)
		}
	}
	return strings.Join(lines, "\n")
}

// Attachments returns image and file parts in order.
func (m Message) Attachments() []Part {
	var out []Part
	for _, p := range m.Parts {
		if p.isAttachment() && strings.TrimSpace(p.Value) != "" {
			out = append(out, p)
		}
	}
	return out
}
