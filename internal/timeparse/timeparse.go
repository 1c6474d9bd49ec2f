// Package timeparse converts free-text activity durations such as "1h 14m" or "50m 1s" into minutes.
package timeparse

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ErrUnparseable is returned when a fragment of the duration text is not a number.
var ErrUnparseable = errors.New("unparseable duration")

// Parse returns the duration in minutes rounded to two decimals.
//
// The text is consumed unit by unit: everything before the first "h" is hours, then everything
// before the first "m" is minutes and the remainder up to "s" is seconds. Units are optional.
// Text without any unit marker yields zero.
func Parse(text string) (float64, error) {
	var hours, minutes int64
	var seconds float64
	rest := text

	if before, after, ok := strings.Cut(rest, "h"); ok {
		n, err := parseInt(before)
		if err != nil {
			return 0, err
		}
		hours = n
		rest = strings.TrimSpace(after)
	}

	if before, after, ok := strings.Cut(rest, "m"); ok {
		n, err := parseInt(before)
		if err != nil {
			return 0, err
		}
		minutes = n
		if strings.Contains(after, "s") {
			s, err := parseSeconds(after)
			if err != nil {
				return 0, err
			}
			seconds = s
		}
	} else if strings.Contains(rest, "s") {
		s, err := parseSeconds(rest)
		if err != nil {
			return 0, err
		}
		seconds = s
	}

	total := float64(hours)*60 + float64(minutes) + seconds/60
	return math.Round(total*100) / 100, nil
}

// Minutes is the lenient form of Parse: malformed text counts as a zero-length activity so the
// row is kept rather than dropped.
func Minutes(text string) float64 {
	minutes, err := Parse(text)
	if errors.Is(err, ErrUnparseable) {
		return 0
	}
	return minutes
}

func parseInt(fragment string) (int64, error) {
	trimmed := strings.TrimSpace(fragment)
	n, err := strconv.ParseInt(trimmed, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrUnparseable, trimmed)
	}
	return n, nil
}

func parseSeconds(fragment string) (float64, error) {
	trimmed := strings.TrimSpace(strings.ReplaceAll(fragment, "s", ""))
	s, err := strconv.ParseFloat(trimmed, 64)
	if err != nil || math.IsNaN(s) || math.IsInf(s, 0) {
		return 0, fmt.Errorf("%w: %q", ErrUnparseable, trimmed)
	}
	return s, nil
}
