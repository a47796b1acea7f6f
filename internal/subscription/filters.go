package subscription

import (
	"slices"
	"strings"
)

// FilterType is a content category a subscriber can opt out of.
type FilterType string

const (
	TypeVideo   FilterType = "video"
	TypeDraw    FilterType = "draw"
	TypeArticle FilterType = "article"
	TypeForward FilterType = "forward"
	TypeLive    FilterType = "live"
	TypeLottery FilterType = "lottery"
)

// KnownFilterTypes lists every accepted token in display order.
var KnownFilterTypes = []FilterType{TypeVideo, TypeDraw, TypeArticle, TypeForward, TypeLive, TypeLottery}

// ParseFilterType recognizes a filter token, case-insensitively.
func ParseFilterType(token string) (FilterType, bool) {
	t := FilterType(strings.ToLower(strings.TrimSpace(token)))
	if slices.Contains(KnownFilterTypes, t) {
		return t, true
	}
	return "", false
}

// FilterTypes is a set of excluded categories.
type FilterTypes []FilterType

func (f FilterTypes) Has(t FilterType) bool {
	return slices.Contains(f, t)
}

// Strings returns the tokens in canonical order.
func (f FilterTypes) Strings() []string {
	out := make([]string, 0, len(f))
	for _, t := range KnownFilterTypes {
		if f.Has(t) {
			out = append(out, string(t))
		}
	}
	return out
}

// Filters are a subscriber's exclusion rules for one creator.
type Filters struct {
	Types FilterTypes
	// Regex patterns; an item whose text matches any of them is suppressed.
	Regex []string
}

func (f Filters) IsZero() bool {
	return len(f.Types) == 0 && len(f.Regex) == 0
}

// ParseFilterArgs splits command arguments into type tokens and regex
// patterns. Anything that is not a known token is treated as a pattern.
func ParseFilterArgs(args []string) Filters {
	var out Filters
	for _, arg := range args {
		arg = strings.TrimSpace(arg)
		if arg == "" {
			continue
		}
		if t, ok := ParseFilterType(arg); ok {
			if !out.Types.Has(t) {
				out.Types = append(out.Types, t)
			}
			continue
		}
		if !slices.Contains(out.Regex, arg) {
			out.Regex = append(out.Regex, arg)
		}
	}
	out.Types = normalizeTypes(out.Types)
	return out
}

// NormalizeTypes parses stored tokens and drops unknown ones.
func NormalizeTypes(tokens []string) FilterTypes {
	var out FilterTypes
	for _, tok := range tokens {
		if t, ok := ParseFilterType(tok); ok && !out.Has(t) {
			out = append(out, t)
		}
	}
	return normalizeTypes(out)
}

func normalizeTypes(types FilterTypes) FilterTypes {
	if len(types) == 0 {
		return nil
	}
	out := make(FilterTypes, 0, len(types))
	for _, t := range KnownFilterTypes {
		if types.Has(t) {
			out = append(out, t)
		}
	}
	return out
}
