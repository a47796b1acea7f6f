package testsupport

import "dynwatch/internal/dynamic"

// ItemOption customizes a fixture feed item.
type ItemOption func(*dynamic.RawItem)

// Item builds a feed entry of the given raw type with minimal valid modules.
func Item(id, rawType string, opts ...ItemOption) dynamic.RawItem {
	item := dynamic.RawItem{
		ID:   id,
		Type: rawType,
		Modules: &dynamic.Modules{
			Author:  &dynamic.ModuleAuthor{Mid: 1, Name: "Creator", PubTS: 1700000000},
			Dynamic: &dynamic.ModuleDynamic{},
		},
	}
	switch rawType {
	case dynamic.TypeVideo:
		item.Modules.Dynamic.Major = &dynamic.Major{
			Type: dynamic.MajorTypeArchive,
			Archive: &dynamic.MajorArchive{
				BVID:    "BV" + id,
				Title:   "video " + id,
				Cover:   "https://i0.hdslb.com/" + id + ".jpg",
				JumpURL: "//www.bilibili.com/video/BV" + id,
			},
		}
	case dynamic.TypeArticle:
		item.Modules.Dynamic.Major = &dynamic.Major{
			Type:    dynamic.MajorTypeArticle,
			Article: &dynamic.MajorArticle{Title: "article " + id, Desc: "summary " + id},
		}
	case dynamic.TypeDraw, dynamic.TypeWord:
		item.Modules.Dynamic.Major = &dynamic.Major{
			Type: dynamic.MajorTypeOpus,
			Opus: &dynamic.MajorOpus{Summary: &dynamic.RichText{Text: "post " + id}},
		}
	case dynamic.TypeForward:
		item.Modules.Dynamic.Desc = &dynamic.RichText{Text: "forward " + id}
		orig := Item("orig-"+id, dynamic.TypeDraw)
		item.Orig = &orig
	}
	for _, opt := range opts {
		opt(&item)
	}
	return item
}

// Post is shorthand for an image-text item.
func Post(id string, opts ...ItemOption) dynamic.RawItem {
	return Item(id, dynamic.TypeDraw, opts...)
}

// Feed builds a newest-first feed of image-text posts with the given ids.
func Feed(ids ...string) []dynamic.RawItem {
	out := make([]dynamic.RawItem, 0, len(ids))
	for _, id := range ids {
		out = append(out, Post(id))
	}
	return out
}

// Pinned marks the item as pinned to the top of the feed.
func Pinned() ItemOption {
	return func(item *dynamic.RawItem) {
		item.Modules.Tag = &dynamic.ModuleTag{Text: dynamic.PinnedMarker}
	}
}

// Lottery marks an image-text item as an interactive lottery.
func Lottery() ItemOption {
	return func(item *dynamic.RawItem) {
		opus := item.Modules.Dynamic.Major.Opus
		opus.Summary.Nodes = []dynamic.RichTextNode{{Type: "RICH_TEXT_NODE_TYPE_LOTTERY", Text: dynamic.LotteryMarker}}
		opus.Summary.Text = dynamic.LotteryMarker + " " + opus.Summary.Text
	}
}

// Blocked marks the item as charge-exclusive.
func Blocked() ItemOption {
	return func(item *dynamic.RawItem) {
		item.Modules.Dynamic.Major = &dynamic.Major{Type: dynamic.MajorTypeBlocked}
	}
}

// Summary replaces the opus summary text of an image-text item.
func Summary(text string) ItemOption {
	return func(item *dynamic.RawItem) {
		item.Modules.Dynamic.Major.Opus.Summary.Text = text
	}
}

// Author overrides the author module.
func Author(mid int64, name string) ItemOption {
	return func(item *dynamic.RawItem) {
		item.Modules.Author.Mid = mid
		item.Modules.Author.Name = name
	}
}
