package dynamic

// Kind is the closed set of content categories the pipeline understands.
type Kind int

const (
	KindUnknown Kind = iota
	KindVideo
	KindArticle
	KindImageText
	KindForward
	KindLiveRecommendation
)

func (k Kind) String() string {
	switch k {
	case KindVideo:
		return "video"
	case KindArticle:
		return "article"
	case KindImageText:
		return "image_text"
	case KindForward:
		return "forward"
	case KindLiveRecommendation:
		return "live_recommendation"
	default:
		return "unknown"
	}
}

// KindForType maps a raw platform type tag to its Kind.
func KindForType(rawType string) Kind {
	switch rawType {
	case TypeVideo:
		return KindVideo
	case TypeArticle:
		return KindArticle
	case TypeDraw, TypeWord:
		return KindImageText
	case TypeForward:
		return KindForward
	case TypeLiveRcmd:
		return KindLiveRecommendation
	default:
		return KindUnknown
	}
}

// Content is the kind-specific payload of a classified item. The set of
// implementations is sealed to this package.
type Content interface {
	Kind() Kind
	sealed()
}

type Video struct {
	BVID        string
	Title       string
	Description string
	Cover       string
	URL         string
}

type Article struct {
	Title   string
	Summary string
	Covers  []string
	URL     string
}

type ImageText struct {
	Title         string
	Summary       string
	Images        []string
	Topic         string
	IsLotteryLike bool
}

// Forward re-shares another item. Original is nil when the platform no longer
// exposes the original (deleted or hidden), or when nesting would exceed one level.
type Forward struct {
	Quote    string
	Original *Classified
}

type LiveRecommendation struct{}

type Unknown struct {
	Reason string
}

func (Video) Kind() Kind              { return KindVideo }
func (Article) Kind() Kind            { return KindArticle }
func (ImageText) Kind() Kind          { return KindImageText }
func (Forward) Kind() Kind            { return KindForward }
func (LiveRecommendation) Kind() Kind { return KindLiveRecommendation }
func (Unknown) Kind() Kind            { return KindUnknown }

func (Video) sealed()              {}
func (Article) sealed()            {}
func (ImageText) sealed()          {}
func (Forward) sealed()            {}
func (LiveRecommendation) sealed() {}
func (Unknown) sealed()            {}
