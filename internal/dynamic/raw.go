package dynamic

import "strings"

// Raw platform type tags.
const (
	TypeForward  = "DYNAMIC_TYPE_FORWARD"
	TypeDraw     = "DYNAMIC_TYPE_DRAW"
	TypeWord     = "DYNAMIC_TYPE_WORD"
	TypeVideo    = "DYNAMIC_TYPE_AV"
	TypeArticle  = "DYNAMIC_TYPE_ARTICLE"
	TypeLiveRcmd = "DYNAMIC_TYPE_LIVE_RCMD"
	TypeNone     = "DYNAMIC_TYPE_NONE"

	MajorTypeBlocked = "MAJOR_TYPE_BLOCKED"
	MajorTypeOpus    = "MAJOR_TYPE_OPUS"
	MajorTypeArchive = "MAJOR_TYPE_ARCHIVE"
	MajorTypeArticle = "MAJOR_TYPE_ARTICLE"
	MajorTypeDraw    = "MAJOR_TYPE_DRAW"
)

// Marker strings the platform places in otherwise structured payloads.
const (
	PinnedMarker  = "置顶"
	LotteryMarker = "互动抽奖"
)

// RawItem is one entry of a creator's newest-first feed.
type RawItem struct {
	ID      string   `json:"id_str"`
	Type    string   `json:"type"`
	Visible *bool    `json:"visible,omitempty"`
	Modules *Modules `json:"modules,omitempty"`
	Orig    *RawItem `json:"orig,omitempty"`

	// DecodeError is set when only the item's identity could be read from the
	// payload. Such items classify as Unknown.
	DecodeError string `json:"-"`
}

// Pinned reports whether the platform keeps this item at the top of the feed
// regardless of recency.
func (r RawItem) Pinned() bool {
	if r.Modules == nil || r.Modules.Tag == nil {
		return false
	}
	return strings.TrimSpace(r.Modules.Tag.Text) == PinnedMarker
}

// Modules groups the per-item render modules.
type Modules struct {
	Tag     *ModuleTag     `json:"module_tag,omitempty"`
	Author  *ModuleAuthor  `json:"module_author,omitempty"`
	Dynamic *ModuleDynamic `json:"module_dynamic,omitempty"`
}

type ModuleTag struct {
	Text string `json:"text"`
}

type ModuleAuthor struct {
	Mid   int64  `json:"mid"`
	Name  string `json:"name"`
	Face  string `json:"face"`
	PubTS int64  `json:"pub_ts"`
}

type ModuleDynamic struct {
	Desc  *RichText `json:"desc,omitempty"`
	Major *Major    `json:"major,omitempty"`
	Topic *Topic    `json:"topic,omitempty"`
}

type Topic struct {
	Name    string `json:"name"`
	JumpURL string `json:"jump_url"`
}

// RichText is a text body plus the typed nodes (emoji, topics, lottery
// markers) the platform splits it into.
type RichText struct {
	Text  string         `json:"text"`
	Nodes []RichTextNode `json:"rich_text_nodes,omitempty"`
}

type RichTextNode struct {
	Type     string `json:"type"`
	Text     string `json:"text"`
	OrigText string `json:"orig_text,omitempty"`
	JumpURL  string `json:"jump_url,omitempty"`
}

// Major is the primary attachment of a dynamic; which pointer is set depends on Type.
type Major struct {
	Type    string        `json:"type"`
	Opus    *MajorOpus    `json:"opus,omitempty"`
	Archive *MajorArchive `json:"archive,omitempty"`
	Article *MajorArticle `json:"article,omitempty"`
	Draw    *MajorDraw    `json:"draw,omitempty"`
}

type MajorOpus struct {
	Title   string    `json:"title"`
	Summary *RichText `json:"summary,omitempty"`
	Pics    []Picture `json:"pics,omitempty"`
	JumpURL string    `json:"jump_url"`
}

type Picture struct {
	URL string `json:"url"`
}

type MajorArchive struct {
	BVID    string `json:"bvid"`
	Title   string `json:"title"`
	Desc    string `json:"desc"`
	Cover   string `json:"cover"`
	JumpURL string `json:"jump_url"`
}

type MajorArticle struct {
	ID      int64    `json:"id"`
	Title   string   `json:"title"`
	Desc    string   `json:"desc"`
	Covers  []string `json:"covers,omitempty"`
	JumpURL string   `json:"jump_url"`
}

type MajorDraw struct {
	Items []DrawItem `json:"items,omitempty"`
}

type DrawItem struct {
	Src string `json:"src"`
}

// LiveStatusCode is the platform's broadcast state for a live room.
type LiveStatusCode int

const (
	LiveIdle     LiveStatusCode = 0
	LiveOn       LiveStatusCode = 1
	LiveCarousel LiveStatusCode = 2
)

// LiveRoom is one entry of the batched live-status lookup.
type LiveRoom struct {
	UID        int64          `json:"uid"`
	Title      string         `json:"title"`
	UserName   string         `json:"uname"`
	Cover      string         `json:"cover_from_user"`
	RoomID     int64          `json:"room_id"`
	LiveStatus LiveStatusCode `json:"live_status"`
}
