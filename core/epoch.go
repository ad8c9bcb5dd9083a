package core

import (
	"fmt"
	"strings"
	"time"
)

// EpochLayout is the canonical ordinal-day form used by NASA's OEM feed,
// e.g. "2024-067T08:28:00.000Z".
const EpochLayout = "2006-002T15:04:05.000Z"

// epochLayouts lists the accepted epoch text forms, tried in order. The feed
// publishes ordinal-day timestamps; the month-day and RFC 3339 forms are
// accepted for hand-typed queries.
var epochLayouts = []string{
	EpochLayout,
	"2006-002T15:04:05Z",
	"2006-01-02T15:04:05.000Z",
	"2006-01-02T15:04:05Z",
	time.RFC3339,
}

// ParseEpoch parses an epoch string in any accepted layout and normalises it
// to UTC.
func ParseEpoch(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range epochLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized epoch %q", s)
}

// FormatEpoch renders t in the canonical feed form.
func FormatEpoch(t time.Time) string {
	return t.UTC().Format(EpochLayout)
}
