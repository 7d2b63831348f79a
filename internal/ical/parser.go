package ical

import (
	"strings"
	"time"

	pkgerrors "github.com/davidortega/channelsync-backend/pkg/errors"
)

const dateLayout = "20060102"

// BlockedRange is one VEVENT from a channel calendar feed. The range is
// half-open: [Start, End).
type BlockedRange struct {
	Start   time.Time
	End     time.Time
	Summary string
	UID     string
}

// Nights returns every date covered by the range.
func (r BlockedRange) Nights() []time.Time {
	if !r.End.After(r.Start) {
		return nil
	}
	var nights []time.Time
	for d := r.Start; d.Before(r.End); d = d.AddDate(0, 0, 1) {
		nights = append(nights, d)
	}
	return nights
}

// Parse extracts blocked date ranges from raw ICS content. Events missing
// DTSTART or DTEND are skipped; a malformed date fails the whole feed so a
// truncated download never half-applies.
func Parse(content string) ([]BlockedRange, error) {
	var (
		ranges  []BlockedRange
		current BlockedRange
		hasFrom bool
		hasTo   bool
		inEvent bool
	)

	for _, line := range strings.Split(strings.TrimSpace(content), "\n") {
		line = strings.TrimSpace(line)

		switch {
		case line == "BEGIN:VEVENT":
			inEvent = true
			current = BlockedRange{}
			hasFrom, hasTo = false, false

		case line == "END:VEVENT":
			inEvent = false
			if hasFrom && hasTo {
				ranges = append(ranges, current)
			}

		case inEvent && strings.Contains(line, ":"):
			key, value, _ := strings.Cut(line, ":")
			// Property parameters like DTSTART;VALUE=DATE share the base key.
			base, _, _ := strings.Cut(key, ";")

			switch base {
			case "DTSTART":
				d, err := parseDate(value)
				if err != nil {
					return nil, err
				}
				current.Start = d
				hasFrom = true
			case "DTEND":
				d, err := parseDate(value)
				if err != nil {
					return nil, err
				}
				current.End = d
				hasTo = true
			case "SUMMARY":
				current.Summary = value
			case "UID":
				current.UID = value
			}
		}
	}

	return ranges, nil
}

// parseDate accepts both date (20260115) and datetime (20260115T120000Z)
// forms, keeping only the calendar date.
func parseDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if len(value) < len(dateLayout) {
		return time.Time{}, pkgerrors.New(pkgerrors.CodeValidation, "invalid calendar date").
			WithDetails(map[string]any{"value": value})
	}
	d, err := time.Parse(dateLayout, value[:len(dateLayout)])
	if err != nil {
		return time.Time{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid calendar date").
			WithDetails(map[string]any{"value": value})
	}
	return d, nil
}
