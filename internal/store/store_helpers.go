package store

import (
	"database/sql"
	"encoding/json"
	"time"

	"dynwatch/internal/subscription"
)

type encodedRow struct {
	recent string
	types  string
	regex  string
}

func encodeRow(sub subscription.Subscription) (encodedRow, error) {
	recent, err := encodeList(sub.Recent)
	if err != nil {
		return encodedRow{}, err
	}
	types, regex, err := encodeFilters(sub.Filters)
	if err != nil {
		return encodedRow{}, err
	}
	return encodedRow{recent: recent, types: types, regex: regex}, nil
}

func encodeFilters(f subscription.Filters) (string, string, error) {
	types, err := encodeList(f.Types.Strings())
	if err != nil {
		return "", "", err
	}
	regex, err := encodeList(f.Regex)
	if err != nil {
		return "", "", err
	}
	return types, regex, nil
}

func encodeList(values []string) (string, error) {
	if values == nil {
		values = []string{}
	}
	data, err := json.Marshal(values)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func decodeList(raw sql.NullString) ([]string, error) {
	if !raw.Valid || raw.String == "" {
		return nil, nil
	}
	var out []string
	if err := json.Unmarshal([]byte(raw.String), &out); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out, nil
}

func scanSubscription(scanner interface{ Scan(dest ...any) error }) (*subscription.Subscription, error) {
	var (
		subscriber  string
		creator     int64
		creatorName sql.NullString
		watermark   sql.NullString
		recentRaw   sql.NullString
		isLive      sql.NullInt64
		typesRaw    sql.NullString
		regexRaw    sql.NullString
		createdRaw  sql.NullString
		updatedRaw  sql.NullString
	)
	if err := scanner.Scan(
		&subscriber,
		&creator,
		&creatorName,
		&watermark,
		&recentRaw,
		&isLive,
		&typesRaw,
		&regexRaw,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	recent, err := decodeList(recentRaw)
	if err != nil {
		return nil, err
	}
	types, err := decodeList(typesRaw)
	if err != nil {
		return nil, err
	}
	regex, err := decodeList(regexRaw)
	if err != nil {
		return nil, err
	}

	return &subscription.Subscription{
		Subscriber:  subscriber,
		Creator:     creator,
		CreatorName: creatorName.String,
		Watermark:   watermark.String,
		Recent:      recent,
		IsLive:      isLive.Valid && isLive.Int64 != 0,
		Filters: subscription.Filters{
			Types: subscription.NormalizeTypes(types),
			Regex: regex,
		},
		CreatedAt: parseTime(createdRaw),
		UpdatedAt: parseTime(updatedRaw),
	}, nil
}

func parseTime(raw sql.NullString) time.Time {
	if !raw.Valid || raw.String == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, raw.String)
	if err != nil {
		return time.Time{}
	}
	return t
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
