// Package lrc parses timestamped lyrics and tracks which line is active
// against a playback clock.
//
// LRC format: one entry per line, [mm:ss.xx]lyrics text
//
//	[00:12.00]Lyrics beginning ...
//	[00:15.3]Some more lyrics ...
//	[01:02]No fraction means zero milliseconds
package lrc

import (
	"regexp"
	"slices"
	"strconv"
	"strings"
)

// Line is a single lyric entry. Time is in seconds from the start of the track.
type Line struct {
	Time float64 `json:"time"`
	Text string  `json:"text"`
}

var (
	// Leading timestamp tag: [mm:ss] or [mm:ss.fff] with any digit widths
	timeTagRegex = regexp.MustCompile(`^\[(\d+):(\d+)(?:\.(\d*))?\](.*)$`)

	lineBreakRegex = regexp.MustCompile(`\r?\n`)
)

const bom = "\ufeff"

// Parse converts raw LRC text into lines sorted by time.
// Lines without a leading timestamp tag are skipped; empty input yields an empty slice.
func Parse(text string) []Line {
	lines := []Line{}

	for _, raw := range splitLines(text) {
		line, ok := parseLine(raw)
		if !ok {
			continue
		}
		lines = append(lines, line)
	}

	// Stable so that equal timestamps keep file order
	slices.SortStableFunc(lines, func(a, b Line) int {
		switch {
		case a.Time < b.Time:
			return -1
		case a.Time > b.Time:
			return 1
		default:
			return 0
		}
	})

	return lines
}

// parseLine matches a single physical line against the timestamp tag
func parseLine(raw string) (Line, bool) {
	match := timeTagRegex.FindStringSubmatch(raw)
	if match == nil {
		return Line{}, false
	}

	// Digit runs of any width; float64 keeps large minute values non-negative
	minutes, err := strconv.ParseFloat(match[1], 64)
	if err != nil {
		return Line{}, false
	}
	seconds, err := strconv.ParseFloat(match[2], 64)
	if err != nil {
		return Line{}, false
	}

	return Line{
		Time: minutes*60 + seconds + float64(fractionMillis(match[3]))/1000,
		Text: strings.TrimSpace(match[4]),
	}, true
}

// fractionMillis normalizes fractional digits to exactly three places:
// "5" -> 500, "25" -> 250, "1234" -> 123
func fractionMillis(digits string) int64 {
	if digits == "" {
		return 0
	}
	if len(digits) < 3 {
		digits += strings.Repeat("0", 3-len(digits))
	}
	ms, err := strconv.ParseInt(digits[:3], 10, 64)
	if err != nil {
		return 0
	}
	return ms
}

// FromPlainText adapts untimed lyrics: each non-blank line gets a synthetic
// time equal to its position. This is an approximation, one line per second
// of playback, and makes no attempt to infer real timing.
func FromPlainText(text string) []Line {
	lines := []Line{}
	for _, raw := range splitLines(text) {
		trimmed := strings.TrimSpace(raw)
		if trimmed == "" {
			continue
		}
		lines = append(lines, Line{Time: float64(len(lines)), Text: trimmed})
	}
	return lines
}

// FromText parses text as LRC when it carries at least one timestamp tag and
// falls back to FromPlainText otherwise. synced reports which path was taken.
func FromText(text string) (lines []Line, synced bool) {
	if parsed := Parse(text); len(parsed) > 0 {
		return parsed, true
	}
	return FromPlainText(text), false
}

func splitLines(text string) []string {
	text = strings.TrimPrefix(text, bom)
	if text == "" {
		return nil
	}
	return lineBreakRegex.Split(text, -1)
}
