// Package dynamic models the platform's feed payloads and classifies them.
//
// RawItem mirrors the JSON the feed endpoint returns; only the fields the
// pipeline reads are decoded. Classify maps a raw item to one of a closed set
// of Content variants (Video, Article, ImageText, Forward, LiveRecommendation,
// Unknown) and extracts the flat text used by regex filters. Classification
// never fails: payloads missing the substructure their type promises become
// Unknown so a single malformed item cannot abort a polling cycle.
package dynamic
