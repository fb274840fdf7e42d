package api

import (
	"context"
	"dashregiond/internal/config"
	"dashregiond/internal/dash"
	"dashregiond/internal/logger"
	"dashregiond/internal/models"
	"dashregiond/internal/session"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const originMPD = `<MPD type="dynamic" availabilityStartTime="2025-07-09T15:00:00Z" timeShiftBufferDepth="PT1M">
  <Period id="p0">
    <EventStream schemeIdUri="urn:x" value="ad">
      <Event id="b" presentationTime="400" duration="10"/>
      <Event id="a" presentationTime="250" duration="10" messageData="hello"/>
    </EventStream>
  </Period>
</MPD>`

// newTestAPI wires the router to a real session manager backed by a fake origin.
func newTestAPI(t *testing.T) *httptest.Server {
	t.Helper()
	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/live.mpd" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(originMPD))
	}))
	t.Cleanup(origin.Close)

	cfg := &config.ChannelConfig{
		RefreshInterval: time.Hour,
		Channels: []config.Channel{
			{Id: "ch1", ManifestURL: origin.URL + "/live.mpd"},
			{Id: "broken", ManifestURL: origin.URL + "/missing"},
		},
	}
	now := time.Date(2025, 7, 9, 15, 5, 0, 0, time.UTC)
	mgr := session.NewManager(logger.Nop(), cfg, dash.NewClient(logger.Nop(), ""), session.Options{
		Now:            func() time.Time { return now },
		FilterInterval: time.Hour,
	})
	t.Cleanup(mgr.Stop)

	server := httptest.NewServer(New(mgr))
	t.Cleanup(server.Close)
	return server
}

func get(t *testing.T, url string) (*http.Response, string) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(body)
}

func TestAPI_HandleRegions(t *testing.T) {
	server := newTestAPI(t)

	resp, body := get(t, server.URL+"/regions/ch1")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var regions []models.RegionView
	require.NoError(t, json.Unmarshal([]byte(body), &regions))
	require.Len(t, regions, 2)
	assert.Equal(t, "a", regions[0].ID)
	assert.Equal(t, "hello", regions[0].MessageData)
	assert.Equal(t, "b", regions[1].ID)
}

func TestAPI_HandleDateRanges(t *testing.T) {
	server := newTestAPI(t)

	resp, body := get(t, server.URL+"/regions/ch1/daterange.m3u8")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/vnd.apple.mpegurl", resp.Header.Get("Content-Type"))
	assert.True(t, strings.HasPrefix(body, "#EXTM3U\n"))
	assert.Contains(t, body, `ID="urn:x/a",CLASS="urn:x",START-DATE="2025-07-09T15:04:10.000Z",DURATION=10.000`)
	assert.Less(t, strings.Index(body, `ID="urn:x/a"`), strings.Index(body, `ID="urn:x/b"`))
}

func TestAPI_HandleEvents(t *testing.T) {
	server := newTestAPI(t)

	resp, body := get(t, server.URL+"/events/ch1")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var events []models.EventView
	require.NoError(t, json.Unmarshal([]byte(body), &events))
	require.Len(t, events, 2)
	for _, e := range events {
		assert.Equal(t, "regionadd", e.Type)
	}
}

func TestAPI_Errors(t *testing.T) {
	server := newTestAPI(t)

	t.Run("unknown channel", func(t *testing.T) {
		resp, _ := get(t, server.URL+"/regions/nope")
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("origin failure", func(t *testing.T) {
		resp, body := get(t, server.URL+"/regions/broken")
		assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
		assert.Contains(t, body, "initial MPD fetch")
	})
}

func TestAPI_HandleHealth(t *testing.T) {
	server := newTestAPI(t)

	resp, body := get(t, server.URL+"/healthz")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body)
}

// failingProvider returns a fixed error for every lookup.
type failingProvider struct{ err error }

func (f failingProvider) GetOrCreateSession(context.Context, string) (*session.Session, error) {
	return nil, f.err
}

func TestAPI_WrappedNotFound(t *testing.T) {
	server := httptest.NewServer(New(failingProvider{err: fmt.Errorf("lookup: %w", session.ErrChannelNotFound)}))
	defer server.Close()

	resp, _ := get(t, server.URL+"/events/x")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	server2 := httptest.NewServer(New(failingProvider{err: errors.New("boom")}))
	defer server2.Close()
	resp, _ = get(t, server2.URL+"/events/x")
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}
