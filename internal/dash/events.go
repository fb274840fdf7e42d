package dash

import (
	"dashregiond/internal/region"
	"fmt"
	"strings"
)

// EventPayload is the per-event data carried by a region parsed from an MPD.
type EventPayload struct {
	PeriodID    string
	Value       string
	MessageData string
	Body        string
}

// ExtractRegions converts every EventStream/Event in the MPD into a region
// with times in seconds on the presentation timeline.
// Periods with an unparseable start are skipped and reported in the error;
// regions from the remaining periods are still returned.
func ExtractRegions(mpd *MPD) ([]region.Region[EventPayload], error) {
	var regions []region.Region[EventPayload]
	var badPeriods []string

	for i := range mpd.Periods {
		period := &mpd.Periods[i]
		periodStart, err := period.GetStart()
		if err != nil {
			badPeriods = append(badPeriods, fmt.Sprintf("%s (%v)", period.ID, err))
			continue
		}

		for _, stream := range period.EventStreams {
			timescale := float64(stream.Timescale)
			if timescale == 0 {
				timescale = 1
			}
			offset := float64(stream.PresentationTimeOffset) / timescale

			for _, ev := range stream.Events {
				start := periodStart.Seconds() + float64(ev.PresentationTime)/timescale - offset
				end := start + float64(ev.Duration)/timescale

				regions = append(regions, region.Region[EventPayload]{
					SchemeIDURI: stream.SchemeIDURI,
					ID:          ev.ID,
					StartTime:   start,
					EndTime:     end,
					Payload: EventPayload{
						PeriodID:    period.ID,
						Value:       stream.Value,
						MessageData: ev.MessageData,
						Body:        strings.TrimSpace(ev.Body),
					},
				})
			}
		}
	}

	if len(badPeriods) > 0 {
		return regions, fmt.Errorf("invalid period start for %s", strings.Join(badPeriods, ", "))
	}
	return regions, nil
}
