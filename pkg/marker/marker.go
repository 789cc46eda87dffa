// Package marker embeds and extracts the high-water marker of a published
// report. The marker is a single "Stats Marker: <unix seconds>" line; the
// next run reads it back to continue where the previous report stopped.
package marker

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Label prefixes the marker line.
const Label = "Stats Marker"

// ErrNoMarker is returned when a body carries no marker line.
var ErrNoMarker = errors.New("no marker found")

// markerRegex matches the marker line, optionally wrapped in superscript or emphasis.
var markerRegex = regexp.MustCompile(`(?m)^[\^_* \t]*(?:` + Label + `|SRS Marker):[ \t]*(\d+)(?:\.\d*)?[_* \t]*$`)

// Format renders the marker line for t.
func Format(t time.Time) string {
	return fmt.Sprintf("%s: %d", Label, t.Unix())
}

// Extract returns the time recorded by the last marker line of content.
func Extract(content string) (time.Time, error) {
	matches := markerRegex.FindAllStringSubmatch(content, -1)
	if len(matches) == 0 {
		return time.Time{}, ErrNoMarker
	}

	secs, err := strconv.ParseInt(matches[len(matches)-1][1], 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid marker %q: %w", matches[len(matches)-1][1], err)
	}

	return time.Unix(secs, 0).UTC(), nil
}

// Strip removes every marker line from content.
func Strip(content string) string {
	clean := markerRegex.ReplaceAllString(content, "")

	return strings.TrimRight(clean, "\n")
}

// Append replaces any marker of content with a fresh one for t.
func Append(content string, t time.Time) string {
	clean := Strip(content)
	if clean == "" {
		return Format(t)
	}

	return clean + "\n\n" + Format(t)
}
