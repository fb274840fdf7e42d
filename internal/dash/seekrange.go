package dash

import (
	"dashregiond/internal/region"
	"errors"
	"fmt"
	"math"
	"time"
)

// SeekRange computes the seekable window of the presentation at now, in
// seconds on the presentation timeline.
//
// Static presentations span [0, mediaPresentationDuration]; a missing
// duration is treated as unbounded. Dynamic presentations end at the live
// edge (now - availabilityStartTime) and start timeShiftBufferDepth earlier,
// or at 0 when no depth is advertised. A dynamic presentation without
// availabilityStartTime has no live edge and yields an error.
func SeekRange(mpd *MPD, now time.Time) (region.Window, error) {
	if !mpd.IsDynamic() {
		if mpd.MediaPresentationDuration == "" {
			return region.Window{Start: 0, End: math.Inf(1)}, nil
		}
		d, err := parseDuration(mpd.MediaPresentationDuration)
		if err != nil {
			return region.Window{}, fmt.Errorf("invalid mediaPresentationDuration: %w", err)
		}
		return region.Window{Start: 0, End: d.Seconds()}, nil
	}

	if mpd.AvailabilityStartTime == "" {
		return region.Window{}, errors.New("dynamic MPD has no availabilityStartTime")
	}
	ast, err := mpd.GetAvailabilityStartTime()
	if err != nil {
		return region.Window{}, fmt.Errorf("invalid availabilityStartTime: %w", err)
	}
	end := math.Max(0, now.Sub(ast).Seconds())

	if mpd.TimeShiftBufferDepth == "" {
		return region.Window{Start: 0, End: end}, nil
	}
	depth, err := parseDuration(mpd.TimeShiftBufferDepth)
	if err != nil {
		return region.Window{}, fmt.Errorf("invalid timeShiftBufferDepth: %w", err)
	}
	return region.Window{Start: math.Max(0, end-depth.Seconds()), End: end}, nil
}
