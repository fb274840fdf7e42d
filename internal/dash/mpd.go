package dash

import (
	"encoding/xml"
	"errors"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// MPD is the root element of a Media Presentation Description.
// Only the parts needed to locate events and the seek range are modelled.
type MPD struct {
	XMLName                   xml.Name `xml:"MPD"`
	Type                      string   `xml:"type,attr"`
	Profiles                  string   `xml:"profiles,attr"`
	MinimumUpdatePeriod       string   `xml:"minimumUpdatePeriod,attr"`
	TimeShiftBufferDepth      string   `xml:"timeShiftBufferDepth,attr"`
	AvailabilityStartTime     string   `xml:"availabilityStartTime,attr"`
	PublishTime               string   `xml:"publishTime,attr"`
	MediaPresentationDuration string   `xml:"mediaPresentationDuration,attr"`
	Periods                   []Period `xml:"Period"`
}

// IsDynamic reports whether the presentation is live.
func (m *MPD) IsDynamic() bool {
	return m.Type == "dynamic"
}

// GetMinimumUpdatePeriod returns the MinimumUpdatePeriod as a time.Duration.
func (m *MPD) GetMinimumUpdatePeriod() (time.Duration, error) {
	return parseDuration(m.MinimumUpdatePeriod)
}

// GetAvailabilityStartTime parses availabilityStartTime. A missing value is the Unix epoch.
func (m *MPD) GetAvailabilityStartTime() (time.Time, error) {
	if m.AvailabilityStartTime == "" {
		return time.Unix(0, 0).UTC(), nil
	}
	return time.Parse(time.RFC3339, m.AvailabilityStartTime)
}

var durationPartRe = regexp.MustCompile(`(\d+\.?\d*)([DHMS])`)

// parseDuration parses an ISO 8601 duration string like "PT8S" or "P1DT2H".
func parseDuration(duration string) (time.Duration, error) {
	if !strings.HasPrefix(duration, "P") {
		// Fallback for simple duration strings like "5s"
		return time.ParseDuration(duration)
	}

	datePart, timePart, _ := strings.Cut(strings.TrimPrefix(duration, "P"), "T")
	if datePart == "" && timePart == "" {
		return 0, nil
	}

	var total time.Duration
	for _, part := range []struct {
		s      string
		isDate bool
	}{{datePart, true}, {timePart, false}} {
		if part.s == "" {
			continue
		}
		matches := durationPartRe.FindAllStringSubmatch(part.s, -1)
		consumed := 0
		for _, m := range matches {
			consumed += len(m[0])
		}
		if len(matches) == 0 || consumed != len(part.s) {
			return 0, errors.New("invalid ISO 8601 duration format: " + duration)
		}

		for _, match := range matches {
			value, err := strconv.ParseFloat(match[1], 64)
			if err != nil {
				return 0, err
			}

			unit := match[2]
			switch {
			case part.isDate && unit == "D":
				total += time.Duration(value * float64(24*time.Hour))
			case !part.isDate && unit == "H":
				total += time.Duration(value * float64(time.Hour))
			case !part.isDate && unit == "M":
				total += time.Duration(value * float64(time.Minute))
			case !part.isDate && unit == "S":
				total += time.Duration(value * float64(time.Second))
			default:
				return 0, errors.New("unsupported duration unit: " + unit)
			}
		}
	}

	return total, nil
}

// Period represents a media content period.
type Period struct {
	ID           string        `xml:"id,attr"`
	Start        string        `xml:"start,attr"`
	EventStreams []EventStream `xml:"EventStream"`
}

// GetStart returns the Period's start time as a time.Duration.
func (p *Period) GetStart() (time.Duration, error) {
	if p.Start == "" {
		return 0, nil
	}
	return parseDuration(p.Start)
}

// EventStream groups timed events of one scheme within a period.
type EventStream struct {
	SchemeIDURI            string  `xml:"schemeIdUri,attr"`
	Value                  string  `xml:"value,attr,omitempty"`
	Timescale              uint64  `xml:"timescale,attr,omitempty"`
	PresentationTimeOffset uint64  `xml:"presentationTimeOffset,attr,omitempty"`
	Events                 []Event `xml:"Event"`
}

// Event is a single timed event. Times are in the stream's timescale.
type Event struct {
	ID               string `xml:"id,attr"`
	PresentationTime uint64 `xml:"presentationTime,attr,omitempty"`
	Duration         uint64 `xml:"duration,attr,omitempty"`
	MessageData      string `xml:"messageData,attr,omitempty"`
	// Body is the raw element content, e.g. an embedded SCTE-35 signal.
	Body string `xml:",innerxml"`
}
