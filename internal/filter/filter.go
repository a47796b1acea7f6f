// Package filter decides whether a classified item should be suppressed for
// a subscription.
package filter

import (
	"regexp"

	"golang.org/x/text/unicode/norm"

	"dynwatch/internal/dynamic"
	"dynwatch/internal/subscription"
)

// Reason names the rule that suppressed an item.
type Reason string

const (
	ReasonNone            Reason = ""
	ReasonTypeExcluded    Reason = "type_excluded"
	ReasonLottery         Reason = "lottery"
	ReasonChargeExclusive Reason = "charge_exclusive"
	ReasonDefaultPolicy   Reason = "default_policy"
	ReasonRegex           Reason = "regex"
)

// Decision is the outcome of evaluating one item.
type Decision struct {
	Suppressed bool
	Reason     Reason
	// Pattern is the regex that matched when Reason is ReasonRegex.
	Pattern string
}

func (d Decision) String() string {
	if !d.Suppressed {
		return "notify"
	}
	if d.Pattern != "" {
		return string(d.Reason) + ":" + d.Pattern
	}
	return string(d.Reason)
}

// InvalidPattern records a configured regex that failed to compile.
type InvalidPattern struct {
	Pattern string
	Err     error
}

// Gate is a compiled rule set for one subscription.
type Gate struct {
	types    subscription.FilterTypes
	patterns []compiled
	invalid  []InvalidPattern
}

type compiled struct {
	source string
	re     *regexp.Regexp
}

// Compile prepares rules for repeated evaluation. Patterns that fail to
// compile are skipped and reported by Invalid; they never block other rules.
func Compile(rules subscription.Filters) *Gate {
	g := &Gate{types: rules.Types}
	for _, p := range rules.Regex {
		re, err := regexp.Compile(norm.NFC.String(p))
		if err != nil {
			g.invalid = append(g.invalid, InvalidPattern{Pattern: p, Err: err})
			continue
		}
		g.patterns = append(g.patterns, compiled{source: p, re: re})
	}
	return g
}

// Invalid lists patterns that were dropped at compile time.
func (g *Gate) Invalid() []InvalidPattern {
	return g.invalid
}

// Evaluate applies, in order: type exclusion, the lottery marker, the
// charge-exclusive marker, the default policy for kinds that are never
// announced, and finally regex patterns against the item text.
func (g *Gate) Evaluate(item dynamic.Classified) Decision {
	kind := item.Kind()
	if t, ok := filterTypeFor(kind); ok && g.types.Has(t) {
		return Decision{Suppressed: true, Reason: ReasonTypeExcluded}
	}
	if item.IsLotteryLike() && g.types.Has(subscription.TypeLottery) {
		return Decision{Suppressed: true, Reason: ReasonLottery}
	}
	if item.ChargeExclusive {
		return Decision{Suppressed: true, Reason: ReasonChargeExclusive}
	}
	switch kind {
	case dynamic.KindLiveRecommendation, dynamic.KindUnknown:
		return Decision{Suppressed: true, Reason: ReasonDefaultPolicy}
	}
	if len(g.patterns) > 0 && item.Text != "" {
		text := norm.NFC.String(item.Text)
		for _, p := range g.patterns {
			if p.re.MatchString(text) {
				return Decision{Suppressed: true, Reason: ReasonRegex, Pattern: p.source}
			}
		}
	}
	return Decision{}
}

// Evaluate compiles rules and evaluates a single item.
func Evaluate(item dynamic.Classified, rules subscription.Filters) Decision {
	return Compile(rules).Evaluate(item)
}

func filterTypeFor(kind dynamic.Kind) (subscription.FilterType, bool) {
	switch kind {
	case dynamic.KindVideo:
		return subscription.TypeVideo, true
	case dynamic.KindImageText:
		return subscription.TypeDraw, true
	case dynamic.KindArticle:
		return subscription.TypeArticle, true
	case dynamic.KindForward:
		return subscription.TypeForward, true
	default:
		return "", false
	}
}
