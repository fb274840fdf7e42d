package hls

import (
	"cmp"
	"dashregiond/internal/region"
	"fmt"
	"math"
	"slices"
	"strings"
	"time"
)

// dateTimeFormat is the ISO 8601 form HLS expects for START-DATE.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// GenerateDateRanges renders regions as EXT-X-DATERANGE tags.
// anchor is the wall-clock time of presentation time zero. Tags are ordered
// by start time so the output is stable between calls.
func GenerateDateRanges[T any](regions []region.Region[T], anchor time.Time) string {
	sorted := slices.Clone(regions)
	slices.SortFunc(sorted, func(a, b region.Region[T]) int {
		return cmp.Or(
			cmp.Compare(a.StartTime, b.StartTime),
			cmp.Compare(a.SchemeIDURI, b.SchemeIDURI),
			cmp.Compare(a.ID, b.ID),
		)
	})

	var sb strings.Builder
	sb.WriteString("#EXTM3U\n")
	sb.WriteString("#EXT-X-VERSION:7\n")

	for _, r := range sorted {
		if math.IsNaN(r.StartTime) || math.IsInf(r.StartTime, 0) {
			continue
		}
		start := anchor.Add(time.Duration(r.StartTime * float64(time.Second))).UTC()
		// ID must be unique in the playlist but region ids are only unique per scheme.
		sb.WriteString(fmt.Sprintf("#EXT-X-DATERANGE:ID=\"%s/%s\"", quoteSafe(r.SchemeIDURI), quoteSafe(r.ID)))
		sb.WriteString(fmt.Sprintf(",CLASS=\"%s\"", quoteSafe(r.SchemeIDURI)))
		sb.WriteString(fmt.Sprintf(",START-DATE=\"%s\"", start.Format(dateTimeFormat)))
		if d := r.EndTime - r.StartTime; d > 0 && !math.IsInf(d, 0) {
			sb.WriteString(fmt.Sprintf(",DURATION=%.3f", d))
		}
		sb.WriteString("\n")
	}

	return sb.String()
}

// quoteSafe strips characters a quoted-string attribute may not contain.
func quoteSafe(s string) string {
	return strings.Map(func(r rune) rune {
		if r == '"' || r == '\n' || r == '\r' {
			return -1
		}
		return r
	}, s)
}
