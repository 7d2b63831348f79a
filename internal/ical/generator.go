package ical

import (
	"fmt"
	"strings"
)

// Generate renders blocked ranges as an ICS calendar. Used by feed fixtures
// and the outbound calendar export.
func Generate(prodID string, ranges []BlockedRange) string {
	if prodID == "" {
		prodID = "-//ChannelSync//Calendar//EN"
	}

	lines := []string{
		"BEGIN:VCALENDAR",
		"VERSION:2.0",
		"PRODID:" + prodID,
	}

	for i, r := range ranges {
		uid := r.UID
		if uid == "" {
			uid = fmt.Sprintf("block-%d@channelsync", i)
		}
		summary := r.Summary
		if summary == "" {
			summary = "Blocked"
		}
		lines = append(lines,
			"BEGIN:VEVENT",
			"UID:"+uid,
			"DTSTART;VALUE=DATE:"+r.Start.Format(dateLayout),
			"DTEND;VALUE=DATE:"+r.End.Format(dateLayout),
			"SUMMARY:"+summary,
			"END:VEVENT",
		)
	}

	lines = append(lines, "END:VCALENDAR")
	return strings.Join(lines, "\n")
}
