package dynamic_test

import (
	"encoding/json"
	"testing"
	"time"

	"dynwatch/internal/dynamic"
)

func decode(t *testing.T, raw string) dynamic.RawItem {
	t.Helper()
	var item dynamic.RawItem
	if err := json.Unmarshal([]byte(raw), &item); err != nil {
		t.Fatalf("decode item: %v", err)
	}
	return item
}

func TestClassifyVideo(t *testing.T) {
	item := decode(t, `{
		"id_str": "900",
		"type": "DYNAMIC_TYPE_AV",
		"modules": {
			"module_author": {"mid": 42, "name": "Alice", "face": "//i0.hdslb.com/face.jpg", "pub_ts": 1700000000},
			"module_dynamic": {"major": {"type": "MAJOR_TYPE_ARCHIVE", "archive": {
				"bvid": "BV1xx", "title": "New video", "desc": "about", "cover": "//i0.hdslb.com/c.jpg",
				"jump_url": "//www.bilibili.com/video/BV1xx/"
			}}}
		}
	}`)
	c := dynamic.Classify(item)
	if c.Kind() != dynamic.KindVideo {
		t.Fatalf("kind = %v, want video", c.Kind())
	}
	v := c.Content.(dynamic.Video)
	if v.Cover != "https://i0.hdslb.com/c.jpg" {
		t.Fatalf("cover not normalized: %q", v.Cover)
	}
	if c.Link() != "https://www.bilibili.com/video/BV1xx/" {
		t.Fatalf("link = %q", c.Link())
	}
	if c.Text != "" {
		t.Fatalf("video should carry no filter text, got %q", c.Text)
	}
	if c.Author.Name != "Alice" || c.Author.ID != 42 {
		t.Fatalf("unexpected author %+v", c.Author)
	}
	if !c.PublishedAt.Equal(time.Unix(1700000000, 0)) {
		t.Fatalf("published = %v", c.PublishedAt)
	}
}

func TestClassifyImageTextLottery(t *testing.T) {
	item := decode(t, `{
		"id_str": "901",
		"type": "DYNAMIC_TYPE_DRAW",
		"modules": {"module_dynamic": {"major": {"type": "MAJOR_TYPE_OPUS", "opus": {
			"summary": {"text": "互动抽奖 win a prize", "rich_text_nodes": [{"type": "RICH_TEXT_NODE_TYPE_LOTTERY", "text": "互动抽奖"}]},
			"pics": [{"url": "https://i0.hdslb.com/1.jpg"}, {"url": "https://i0.hdslb.com/2.jpg"}]
		}}}}
	}`)
	c := dynamic.Classify(item)
	if c.Kind() != dynamic.KindImageText {
		t.Fatalf("kind = %v", c.Kind())
	}
	if !c.IsLotteryLike() {
		t.Fatal("expected lottery marker to be detected")
	}
	if c.Text != "互动抽奖 win a prize" {
		t.Fatalf("text = %q", c.Text)
	}
	if got := c.Link(); got != "https://t.bilibili.com/901" {
		t.Fatalf("link = %q", got)
	}
	if imgs := c.Content.(dynamic.ImageText).Images; len(imgs) != 2 {
		t.Fatalf("images = %v", imgs)
	}
}

func TestClassifyLotteryMarkerMustMatchExactly(t *testing.T) {
	item := decode(t, `{
		"id_str": "903",
		"type": "DYNAMIC_TYPE_DRAW",
		"modules": {"module_dynamic": {"desc": {"text": " 互动抽奖 ", "rich_text_nodes": [{"type": "RICH_TEXT_NODE_TYPE_TEXT", "text": " 互动抽奖 "}]}}}
	}`)
	c := dynamic.Classify(item)
	if c.Kind() != dynamic.KindImageText {
		t.Fatalf("kind = %v", c.Kind())
	}
	if c.IsLotteryLike() {
		t.Fatal("padded marker text must not count as a lottery")
	}
}

func TestClassifyUndecodableItem(t *testing.T) {
	c := dynamic.Classify(dynamic.RawItem{ID: "904", Type: dynamic.TypeDraw, DecodeError: "bad mid"})
	if c.Kind() != dynamic.KindUnknown {
		t.Fatalf("kind = %v", c.Kind())
	}
	if c.ID != "904" {
		t.Fatalf("id = %q", c.ID)
	}
}

func TestClassifyWordFallsBackToDesc(t *testing.T) {
	item := decode(t, `{"id_str": "902", "type": "DYNAMIC_TYPE_WORD",
		"modules": {"module_dynamic": {"desc": {"text": "plain words"}}}}`)
	c := dynamic.Classify(item)
	if c.Kind() != dynamic.KindImageText || c.Text != "plain words" {
		t.Fatalf("unexpected classification %+v", c)
	}
	if c.IsLotteryLike() {
		t.Fatal("plain post flagged as lottery")
	}
}

func TestClassifyChargeExclusive(t *testing.T) {
	item := decode(t, `{"id_str": "903", "type": "DYNAMIC_TYPE_DRAW",
		"modules": {"module_dynamic": {"major": {"type": "MAJOR_TYPE_BLOCKED"}}}}`)
	c := dynamic.Classify(item)
	if !c.ChargeExclusive {
		t.Fatal("expected charge-exclusive flag")
	}
	if c.Kind() != dynamic.KindImageText {
		t.Fatalf("kind = %v", c.Kind())
	}
}

func TestClassifyForwardNestsOneLevel(t *testing.T) {
	item := decode(t, `{
		"id_str": "904",
		"type": "DYNAMIC_TYPE_FORWARD",
		"modules": {"module_dynamic": {"desc": {"text": "look at this"}}},
		"orig": {
			"id_str": "800",
			"type": "DYNAMIC_TYPE_DRAW",
			"modules": {
				"module_author": {"mid": 7, "name": "Bob"},
				"module_dynamic": {"major": {"type": "MAJOR_TYPE_OPUS", "opus": {
					"summary": {"text": "orig"},
					"pics": [{"url": "https://a/1.jpg"}, {"url": "https://a/2.jpg"}, {"url": "https://a/3.jpg"}]
				}}}
			}
		}
	}`)
	c := dynamic.Classify(item)
	fwd, ok := c.Content.(dynamic.Forward)
	if !ok {
		t.Fatalf("content = %T, want Forward", c.Content)
	}
	if c.Text != "look at this" {
		t.Fatalf("text = %q", c.Text)
	}
	if fwd.Original == nil {
		t.Fatal("expected nested original")
	}
	nested := fwd.Original.Content.(dynamic.ImageText)
	if len(nested.Images) != 1 {
		t.Fatalf("nested images = %v, want 1", nested.Images)
	}
	if fwd.Original.Author.Name != "Bob" {
		t.Fatalf("nested author = %+v", fwd.Original.Author)
	}
}

func TestClassifyForwardOfDeletedOriginal(t *testing.T) {
	item := decode(t, `{"id_str": "905", "type": "DYNAMIC_TYPE_FORWARD",
		"modules": {"module_dynamic": {"desc": {"text": "rip"}}},
		"orig": {"id_str": "0", "type": "DYNAMIC_TYPE_NONE", "modules": {}}}`)
	c := dynamic.Classify(item)
	fwd, ok := c.Content.(dynamic.Forward)
	if !ok {
		t.Fatalf("content = %T, want Forward", c.Content)
	}
	if fwd.Original != nil {
		t.Fatalf("expected nil original, got %+v", fwd.Original)
	}
}

func TestClassifyMalformedBecomesUnknown(t *testing.T) {
	cases := map[string]string{
		"no modules":     `{"id_str": "1", "type": "DYNAMIC_TYPE_AV"}`,
		"video no major": `{"id_str": "2", "type": "DYNAMIC_TYPE_AV", "modules": {"module_dynamic": {}}}`,
		"forward no orig": `{"id_str": "3", "type": "DYNAMIC_TYPE_FORWARD",
			"modules": {"module_dynamic": {"desc": {"text": "x"}}}}`,
		"unrecognized": `{"id_str": "4", "type": "DYNAMIC_TYPE_COMMON_SQUARE", "modules": {}}`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			c := dynamic.Classify(decode(t, raw))
			if c.Kind() != dynamic.KindUnknown {
				t.Fatalf("kind = %v, want unknown", c.Kind())
			}
			if _, ok := c.Content.(dynamic.Unknown); !ok {
				t.Fatalf("content = %T", c.Content)
			}
		})
	}
}

func TestPinned(t *testing.T) {
	pinned := decode(t, `{"id_str": "1", "type": "DYNAMIC_TYPE_WORD", "modules": {"module_tag": {"text": "置顶"}}}`)
	if !pinned.Pinned() {
		t.Fatal("expected pinned")
	}
	if (dynamic.RawItem{ID: "2"}).Pinned() {
		t.Fatal("bare item reported pinned")
	}
}

func TestKindForType(t *testing.T) {
	cases := map[string]dynamic.Kind{
		dynamic.TypeVideo:    dynamic.KindVideo,
		dynamic.TypeArticle:  dynamic.KindArticle,
		dynamic.TypeDraw:     dynamic.KindImageText,
		dynamic.TypeWord:     dynamic.KindImageText,
		dynamic.TypeForward:  dynamic.KindForward,
		dynamic.TypeLiveRcmd: dynamic.KindLiveRecommendation,
		"SOMETHING_ELSE":     dynamic.KindUnknown,
	}
	for raw, want := range cases {
		if got := dynamic.KindForType(raw); got != want {
			t.Errorf("KindForType(%q) = %v, want %v", raw, got, want)
		}
	}
}

func TestLiveRoomURL(t *testing.T) {
	if got := dynamic.LiveRoomURL(12345); got != "https://live.bilibili.com/12345" {
		t.Fatalf("url = %q", got)
	}
	if dynamic.LiveRoomURL(0) != "" {
		t.Fatal("expected empty url for missing room")
	}
}
