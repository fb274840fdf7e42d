// Package region tracks timed metadata regions (ad markers, DASH EventStream
// entries) that fall inside the portion of a stream that is still reachable
// by seeking.
package region

import (
	"math"
	"time"
)

const (
	// FilterInterval is how often a Timeline drops regions that fell behind
	// the start of the seek range.
	FilterInterval = 2 * time.Second

	// SimilarityTolerance is the largest start/end difference, in seconds,
	// at which two reports of the same scheme and id are the same region.
	SimilarityTolerance = 0.1
)

// Region is a timed metadata interval. Times are in seconds.
type Region[T any] struct {
	// SchemeIDURI identifies where the region comes from and what it means.
	SchemeIDURI string
	// ID is unique within a scheme, not globally.
	ID        string
	StartTime float64
	EndTime   float64
	// Payload is opaque to the timeline.
	Payload T
}

// Window is a playable range in seconds.
type Window struct {
	Start float64
	End   float64
}

// WindowFunc returns the current seek range.
type WindowFunc func() Window

// Similar reports whether a and b describe the same logical region.
// Repeated manifest fetches jitter the times slightly, so times are compared
// within SimilarityTolerance rather than exactly.
func Similar[T any](a, b Region[T]) bool {
	return a.SchemeIDURI == b.SchemeIDURI &&
		a.ID == b.ID &&
		negligible(a.StartTime, b.StartTime) &&
		negligible(a.EndTime, b.EndTime)
}

func negligible(a, b float64) bool {
	return math.Abs(a-b) < SimilarityTolerance
}
