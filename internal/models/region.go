package models

import "time"

// RegionView is the JSON representation of a tracked region.
// This struct is shared between the session and the API layer.
type RegionView struct {
	// SchemeIDURI identifies the event stream the region came from.
	SchemeIDURI string `json:"schemeIdUri"`
	// ID is unique within the scheme.
	ID string `json:"id"`
	// StartTime and EndTime are seconds on the presentation timeline.
	StartTime   float64 `json:"startTime"`
	EndTime     float64 `json:"endTime"`
	PeriodID    string  `json:"periodId,omitempty"`
	Value       string  `json:"value,omitempty"`
	MessageData string  `json:"messageData,omitempty"`
}

// EventView records a region being added to or removed from a timeline.
type EventView struct {
	// Type is "regionadd" or "regionremove".
	Type   string     `json:"type"`
	At     time.Time  `json:"at"`
	Region RegionView `json:"region"`
}
