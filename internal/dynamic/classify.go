package dynamic

import (
	"strings"
	"time"
)

const (
	dynamicURLPrefix = "https://t.bilibili.com/"
	videoURLPrefix   = "https://www.bilibili.com/video/"
	articleURLPrefix = "https://www.bilibili.com/read/cv"

	// nestedImageLimit caps images carried by a forwarded original.
	nestedImageLimit = 1
)

// Author identifies who published an item.
type Author struct {
	ID        int64
	Name      string
	AvatarURL string
}

// Classified is a raw item reduced to what filtering and notification need.
type Classified struct {
	ID              string
	RawType         string
	Author          Author
	PublishedAt     time.Time
	Content         Content
	Text            string
	ChargeExclusive bool
}

// Kind returns the content category.
func (c Classified) Kind() Kind {
	if c.Content == nil {
		return KindUnknown
	}
	return c.Content.Kind()
}

// IsLotteryLike reports whether the item is an interactive-lottery post.
func (c Classified) IsLotteryLike() bool {
	it, ok := c.Content.(ImageText)
	return ok && it.IsLotteryLike
}

// Link is the canonical URL a recipient should open for this item.
func (c Classified) Link() string {
	switch content := c.Content.(type) {
	case Video:
		if content.URL != "" {
			return content.URL
		}
		if content.BVID != "" {
			return videoURLPrefix + content.BVID
		}
	case Article:
		if content.URL != "" {
			return content.URL
		}
	}
	if c.ID == "" {
		return ""
	}
	return dynamicURLPrefix + c.ID
}

// Classify maps a raw item to its Content variant. It never fails.
func Classify(item RawItem) Classified {
	return classify(item, 0)
}

func classify(item RawItem, depth int) Classified {
	out := Classified{
		ID:      item.ID,
		RawType: item.Type,
	}
	if item.DecodeError != "" {
		out.Content = Unknown{Reason: "undecodable item: " + item.DecodeError}
		return out
	}
	if item.Modules == nil {
		out.Content = Unknown{Reason: "missing modules"}
		return out
	}
	if author := item.Modules.Author; author != nil {
		out.Author = Author{ID: author.Mid, Name: author.Name, AvatarURL: normalizeURL(author.Face)}
		if author.PubTS > 0 {
			out.PublishedAt = time.Unix(author.PubTS, 0).UTC()
		}
	}

	dyn := item.Modules.Dynamic
	var major *Major
	if dyn != nil {
		major = dyn.Major
	}
	kind := KindForType(item.Type)
	if major != nil && major.Type == MajorTypeBlocked {
		// Charge-exclusive payloads omit their body; only the category is kept.
		out.ChargeExclusive = true
		out.Content = blockedContent(kind)
		return out
	}

	switch kind {
	case KindVideo:
		out.Content = classifyVideo(major)
	case KindArticle:
		out.Content, out.Text = classifyArticle(major)
	case KindImageText:
		out.Content, out.Text = classifyImageText(dyn)
	case KindForward:
		out.Content, out.Text = classifyForward(item, dyn, depth)
	case KindLiveRecommendation:
		out.Content = LiveRecommendation{}
	default:
		out.Content = Unknown{Reason: "unrecognized type " + item.Type}
	}
	return out
}

func blockedContent(kind Kind) Content {
	switch kind {
	case KindVideo:
		return Video{}
	case KindArticle:
		return Article{}
	case KindImageText:
		return ImageText{}
	case KindForward:
		return Forward{}
	case KindLiveRecommendation:
		return LiveRecommendation{}
	default:
		return Unknown{Reason: "blocked payload"}
	}
}

func classifyVideo(major *Major) Content {
	if major == nil || major.Archive == nil {
		return Unknown{Reason: "video without archive"}
	}
	a := major.Archive
	return Video{
		BVID:        a.BVID,
		Title:       a.Title,
		Description: a.Desc,
		Cover:       normalizeURL(a.Cover),
		URL:         normalizeURL(a.JumpURL),
	}
}

func classifyArticle(major *Major) (Content, string) {
	if major == nil {
		return Unknown{Reason: "article without major"}, ""
	}
	switch {
	case major.Article != nil:
		a := major.Article
		url := normalizeURL(a.JumpURL)
		if url == "" && a.ID > 0 {
			url = articleURLPrefix + formatInt(a.ID)
		}
		return Article{
			Title:   a.Title,
			Summary: a.Desc,
			Covers:  normalizeURLs(a.Covers),
			URL:     url,
		}, a.Desc
	case major.Opus != nil:
		o := major.Opus
		summary := richTextBody(o.Summary)
		return Article{
			Title:   o.Title,
			Summary: summary,
			Covers:  pictureURLs(o.Pics),
			URL:     normalizeURL(o.JumpURL),
		}, summary
	default:
		return Unknown{Reason: "article without body"}, ""
	}
}

func classifyImageText(dyn *ModuleDynamic) (Content, string) {
	if dyn == nil {
		return Unknown{Reason: "image-text without dynamic module"}, ""
	}
	var topic string
	if dyn.Topic != nil {
		topic = dyn.Topic.Name
	}
	if dyn.Major != nil && dyn.Major.Opus != nil {
		o := dyn.Major.Opus
		summary := richTextBody(o.Summary)
		return ImageText{
			Title:         o.Title,
			Summary:       summary,
			Images:        pictureURLs(o.Pics),
			Topic:         topic,
			IsLotteryLike: startsWithLottery(o.Summary),
		}, summary
	}
	// Older payloads carry the text in desc and images in a draw major.
	if dyn.Desc != nil {
		var images []string
		if dyn.Major != nil && dyn.Major.Draw != nil {
			for _, it := range dyn.Major.Draw.Items {
				if src := normalizeURL(it.Src); src != "" {
					images = append(images, src)
				}
			}
		}
		return ImageText{
			Summary:       dyn.Desc.Text,
			Images:        images,
			Topic:         topic,
			IsLotteryLike: startsWithLottery(dyn.Desc),
		}, dyn.Desc.Text
	}
	return Unknown{Reason: "image-text without summary"}, ""
}

func classifyForward(item RawItem, dyn *ModuleDynamic, depth int) (Content, string) {
	var quote string
	if dyn != nil && dyn.Desc != nil {
		quote = dyn.Desc.Text
	}
	if item.Orig == nil {
		return Unknown{Reason: "forward without original"}, quote
	}
	fwd := Forward{Quote: quote}
	if depth == 0 {
		orig := classify(*item.Orig, depth+1)
		// A deleted original still arrives as a stub; keep the forward but drop the nested card.
		if orig.Kind() != KindUnknown {
			truncateImages(&orig, nestedImageLimit)
			fwd.Original = &orig
		}
	}
	return fwd, quote
}

func truncateImages(c *Classified, limit int) {
	switch content := c.Content.(type) {
	case ImageText:
		if len(content.Images) > limit {
			content.Images = content.Images[:limit]
		}
		c.Content = content
	case Article:
		if len(content.Covers) > limit {
			content.Covers = content.Covers[:limit]
		}
		c.Content = content
	}
}

func startsWithLottery(rt *RichText) bool {
	if rt == nil || len(rt.Nodes) == 0 {
		return false
	}
	return rt.Nodes[0].Text == LotteryMarker
}

func richTextBody(rt *RichText) string {
	if rt == nil {
		return ""
	}
	return rt.Text
}

func pictureURLs(pics []Picture) []string {
	if len(pics) == 0 {
		return nil
	}
	out := make([]string, 0, len(pics))
	for _, p := range pics {
		if u := normalizeURL(p.URL); u != "" {
			out = append(out, u)
		}
	}
	return out
}

func normalizeURLs(urls []string) []string {
	if len(urls) == 0 {
		return nil
	}
	out := make([]string, 0, len(urls))
	for _, u := range urls {
		if n := normalizeURL(u); n != "" {
			out = append(out, n)
		}
	}
	return out
}

// normalizeURL turns protocol-relative URLs into https ones.
func normalizeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "//") {
		return "https:" + raw
	}
	return raw
}
