package registry

import (
	"context"
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"dynwatch/internal/logging"
	"dynwatch/internal/subscription"
)

const exportVersion = 1

// Document is the YAML shape of an exported subscription list. Dedup state is
// not exported; imported subscriptions are reseeded from the live feed.
type Document struct {
	Version       int     `yaml:"version"`
	Subscriptions []Entry `yaml:"subscriptions"`
}

// Entry is one exported subscription.
type Entry struct {
	Subscriber string   `yaml:"subscriber"`
	Creator    int64    `yaml:"creator"`
	Name       string   `yaml:"name,omitempty"`
	Exclude    []string `yaml:"exclude,omitempty"`
	Regex      []string `yaml:"regex,omitempty"`
}

// Args returns the entry's filters in the form accepted by Add.
func (e Entry) Args() []string {
	return append(append([]string(nil), e.Exclude...), e.Regex...)
}

// Export writes subscriptions (all of them when subscriber is empty) as YAML.
func (r *Registry) Export(ctx context.Context, w io.Writer, subscriber string) (int, error) {
	subs, err := r.List(ctx, subscriber)
	if err != nil {
		return 0, err
	}
	doc := Document{Version: exportVersion, Subscriptions: make([]Entry, 0, len(subs))}
	for _, sub := range subs {
		doc.Subscriptions = append(doc.Subscriptions, entryFor(sub))
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return 0, fmt.Errorf("encode subscriptions: %w", err)
	}
	if err := enc.Close(); err != nil {
		return 0, fmt.Errorf("encode subscriptions: %w", err)
	}
	return len(doc.Subscriptions), nil
}

func entryFor(sub subscription.Subscription) Entry {
	return Entry{
		Subscriber: sub.Subscriber,
		Creator:    sub.Creator,
		Name:       sub.CreatorName,
		Exclude:    sub.Filters.Types.Strings(),
		Regex:      append([]string(nil), sub.Filters.Regex...),
	}
}

// ImportReport summarizes an Import call.
type ImportReport struct {
	Added   int
	Updated int
	Failed  []ImportFailure
}

// ImportFailure is an entry that could not be applied.
type ImportFailure struct {
	Entry Entry
	Err   error
}

// Import reads a Document and applies every entry through Add. A failing entry
// is recorded and does not stop the remaining ones.
func (r *Registry) Import(ctx context.Context, rd io.Reader) (ImportReport, error) {
	var doc Document
	dec := yaml.NewDecoder(rd)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return ImportReport{}, nil
		}
		return ImportReport{}, fmt.Errorf("decode subscriptions: %w", err)
	}
	if doc.Version != 0 && doc.Version != exportVersion {
		return ImportReport{}, fmt.Errorf("unsupported export version %d", doc.Version)
	}

	var report ImportReport
	for _, entry := range doc.Subscriptions {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}
		res, err := r.Add(ctx, entry.Subscriber, entry.Creator, entry.Args())
		if err != nil {
			report.Failed = append(report.Failed, ImportFailure{Entry: entry, Err: err})
			logging.WarnWithContext(r.logger, "import entry failed", "import_entry_failed",
				logging.String(logging.FieldSubscriber, entry.Subscriber),
				logging.Int64(logging.FieldCreator, entry.Creator),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "rerun import once the creator feed is reachable"),
			)
			continue
		}
		if res.Updated {
			report.Updated++
		} else {
			report.Added++
		}
	}
	return report, nil
}
