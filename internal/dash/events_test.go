package dash

import (
	"encoding/xml"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractRegions(t *testing.T) {
	var mpd MPD
	require.NoError(t, xml.Unmarshal([]byte(liveMPD), &mpd))

	regions, err := ExtractRegions(&mpd)
	require.NoError(t, err)
	require.Len(t, regions, 3)

	ad := regions[0]
	assert.Equal(t, "urn:scte:scte35:2013:xml", ad.SchemeIDURI)
	assert.Equal(t, "101", ad.ID)
	assert.InDelta(t, 10.0, ad.StartTime, 1e-9)
	assert.InDelta(t, 40.0, ad.EndTime, 1e-9)
	assert.Equal(t, "p0", ad.Payload.PeriodID)
	assert.Equal(t, "ad", ad.Payload.Value)
	assert.Contains(t, ad.Payload.Body, "SpliceInfoSection")

	// No duration means a zero-length region.
	instant := regions[1]
	assert.InDelta(t, 40.0, instant.StartTime, 1e-9)
	assert.Equal(t, instant.StartTime, instant.EndTime)

	// Period start is added and presentationTimeOffset subtracted.
	chapter := regions[2]
	assert.Equal(t, "c1", chapter.ID)
	assert.InDelta(t, 60.0, chapter.StartTime, 1e-9)
	assert.InDelta(t, 80.0, chapter.EndTime, 1e-9)
	assert.Equal(t, "Intro", chapter.Payload.MessageData)
}

func TestExtractRegions_DefaultTimescale(t *testing.T) {
	mpd := &MPD{Periods: []Period{{
		ID: "p",
		EventStreams: []EventStream{{
			SchemeIDURI: "urn:x",
			Events:      []Event{{ID: "1", PresentationTime: 3, Duration: 2}},
		}},
	}}}

	regions, err := ExtractRegions(mpd)
	require.NoError(t, err)
	require.Len(t, regions, 1)
	assert.Equal(t, 3.0, regions[0].StartTime)
	assert.Equal(t, 5.0, regions[0].EndTime)
}

func TestExtractRegions_BadPeriodStart(t *testing.T) {
	mpd := &MPD{Periods: []Period{
		{ID: "bad", Start: "PTxS", EventStreams: []EventStream{{SchemeIDURI: "urn:x", Events: []Event{{ID: "1"}}}}},
		{ID: "good", EventStreams: []EventStream{{SchemeIDURI: "urn:x", Events: []Event{{ID: "2"}}}}},
	}}

	regions, err := ExtractRegions(mpd)
	assert.ErrorContains(t, err, "bad")
	require.Len(t, regions, 1)
	assert.Equal(t, "2", regions[0].ID)
}

func TestExtractRegions_Empty(t *testing.T) {
	regions, err := ExtractRegions(&MPD{})
	assert.NoError(t, err)
	assert.Empty(t, regions)
}
