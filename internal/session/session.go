package session

import (
	"cmp"
	"context"
	"dashregiond/internal/config"
	"dashregiond/internal/dash"
	"dashregiond/internal/logger"
	"dashregiond/internal/models"
	"dashregiond/internal/region"
	"errors"
	"fmt"
	"math"
	"slices"
	"sync"
	"time"
)

const (
	recentEventsLimit      = 100 // Number of add/remove events kept per session
	defaultRefreshInterval = 5 * time.Second
	minRefreshInterval     = 2 * time.Second
	fetchTimeout           = 10 * time.Second
)

// ErrChannelNotFound is returned for channel ids missing from the configuration.
var ErrChannelNotFound = errors.New("channel not found")

// Session tracks the timed regions of a single channel.
type Session struct {
	ChannelID   string
	ManifestURL string
	Logger      logger.Logger

	channel    config.Channel
	dashClient *dash.Client
	timeline   *region.Timeline[dash.EventPayload]
	subs       []*region.Subscription
	now        func() time.Time

	// Thread-safe state
	mutex  sync.RWMutex
	mpd    *dash.MPD
	recent []models.EventView

	// Control
	ctx      context.Context
	cancel   context.CancelFunc
	stopOnce sync.Once
}

// Options tune how sessions are created. Zero values use the defaults.
type Options struct {
	// Now is the wall clock used for the live seek range.
	Now func() time.Time
	// FilterInterval is passed to each region timeline.
	FilterInterval time.Duration
}

// Manager manages all active channel sessions.
type Manager struct {
	mutex      sync.RWMutex
	sessions   map[string]*Session
	logger     logger.Logger
	cfg        *config.ChannelConfig
	dashClient *dash.Client
	opts       Options
}

// NewManager creates a new session manager.
func NewManager(log logger.Logger, cfg *config.ChannelConfig, dashClient *dash.Client, opts Options) *Manager {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Manager{
		sessions:   make(map[string]*Session),
		logger:     log,
		cfg:        cfg,
		dashClient: dashClient,
		opts:       opts,
	}
}

// Stop gracefully shuts down all sessions.
func (m *Manager) Stop() {
	m.logger.Infof("Stopping session manager and all active sessions...")
	m.mutex.Lock()
	defer m.mutex.Unlock()

	for id, s := range m.sessions {
		s.Stop()
		delete(m.sessions, id)
	}
	m.logger.Infof("Session manager stopped.")
}

// GetOrCreateSession retrieves an existing session or creates a new one.
func (m *Manager) GetOrCreateSession(ctx context.Context, channelId string) (*Session, error) {
	m.mutex.RLock()
	s, found := m.sessions[channelId]
	m.mutex.RUnlock()

	if found {
		return s, nil
	}

	m.mutex.Lock()
	defer m.mutex.Unlock()
	if s, found = m.sessions[channelId]; found {
		return s, nil
	}

	channelCfg, ok := m.cfg.Channel(channelId)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrChannelNotFound, channelId)
	}

	m.logger.Infof("No session found for channel ID: %s. Creating a new one.", channelId)

	fetchCtx, cancelFetch := context.WithTimeout(ctx, fetchTimeout)
	defer cancelFetch()
	mpd, _, err := m.dashClient.FetchAndParseMPD(fetchCtx, channelCfg.ManifestURL)
	if err != nil {
		return nil, fmt.Errorf("failed to perform initial MPD fetch for channel '%s': %w", channelId, err)
	}

	s = m.newSession(*channelCfg, mpd)
	m.sessions[channelId] = s
	s.start(m.refreshInterval(mpd))
	m.logger.Infof("Successfully created and started new session for channel: %s (%s)", channelCfg.Name, channelId)

	return s, nil
}

func (m *Manager) newSession(ch config.Channel, mpd *dash.MPD) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		ChannelID:   ch.Id,
		ManifestURL: ch.ManifestURL,
		Logger:      m.logger,
		channel:     ch,
		dashClient:  m.dashClient,
		now:         m.opts.Now,
		mpd:         mpd,
		ctx:         ctx,
		cancel:      cancel,
	}

	s.timeline = region.New[dash.EventPayload](s.seekRange,
		region.WithLogger(m.logger),
		region.WithFilterInterval(m.opts.FilterInterval),
	)
	s.subs = []*region.Subscription{
		s.timeline.Subscribe(region.EventRegionAdd, s.onRegionEvent),
		s.timeline.Subscribe(region.EventRegionRemove, s.onRegionEvent),
	}
	return s
}

// refreshInterval prefers the configured override, then the manifest's
// minimumUpdatePeriod. Zero means the manifest never needs refreshing.
func (m *Manager) refreshInterval(mpd *dash.MPD) time.Duration {
	if m.cfg.RefreshInterval > 0 {
		return m.cfg.RefreshInterval
	}
	if !mpd.IsDynamic() {
		return 0
	}
	if mpd.MinimumUpdatePeriod == "" {
		return defaultRefreshInterval
	}
	d, err := mpd.GetMinimumUpdatePeriod()
	if err != nil {
		m.logger.Warnf("Could not parse MinimumUpdatePeriod '%s', using default %v", mpd.MinimumUpdatePeriod, defaultRefreshInterval)
		return defaultRefreshInterval
	}
	// Don't refresh more than every 2 seconds to avoid hammering the server
	return max(d, minRefreshInterval)
}

// start feeds the initial manifest into the timeline and begins refreshing.
func (s *Session) start(refreshInterval time.Duration) {
	s.mutex.RLock()
	mpd := s.mpd
	s.mutex.RUnlock()
	s.ingest(mpd)

	if refreshInterval > 0 {
		go s.mpdRefreshLoop(refreshInterval)
	}
}

// Stop terminates the refresh loop and releases the region timeline.
// Released regions are dropped without regionremove events.
func (s *Session) Stop() {
	s.stopOnce.Do(func() {
		s.Logger.Infof("Stopping session %s", s.ChannelID)
		s.cancel()
		for _, sub := range s.subs {
			sub.Unsubscribe()
		}
		s.timeline.Release()
	})
}

// seekRange is the timeline's window accessor. It always reads the latest manifest.
func (s *Session) seekRange() region.Window {
	s.mutex.RLock()
	mpd := s.mpd
	s.mutex.RUnlock()

	w, err := dash.SeekRange(mpd, s.now())
	if err != nil {
		// Keep everything rather than evicting against a bogus window.
		s.Logger.Warnf("Cannot compute seek range for session %s: %v", s.ChannelID, err)
		return region.Window{Start: math.Inf(-1), End: math.Inf(1)}
	}
	return w
}

// ingest hands the manifest's events to the timeline, which drops repeats.
// Events already behind the seek range are skipped so they are not re-added
// after every eviction.
func (s *Session) ingest(mpd *dash.MPD) {
	regions, err := dash.ExtractRegions(mpd)
	if err != nil {
		s.Logger.Warnf("Some events of session %s were skipped: %v", s.ChannelID, err)
	}
	window := s.seekRange()
	for _, r := range regions {
		if !s.channel.TracksScheme(r.SchemeIDURI) {
			continue
		}
		if r.EndTime < window.Start {
			s.Logger.Debugf("Session %s: skipping expired region %s/%s", s.ChannelID, r.SchemeIDURI, r.ID)
			continue
		}
		s.timeline.AddRegion(r)
	}
}

func (s *Session) onRegionEvent(ev region.Event[dash.EventPayload]) {
	view := toView(ev.Region)
	s.Logger.Infof("Session %s: %s %s/%s [%.3f, %.3f]", s.ChannelID, ev.Kind, view.SchemeIDURI, view.ID, view.StartTime, view.EndTime)

	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.recent = append(s.recent, models.EventView{
		Type:   string(ev.Kind),
		At:     s.now(),
		Region: view,
	})
	if len(s.recent) > recentEventsLimit {
		s.recent = slices.Clone(s.recent[len(s.recent)-recentEventsLimit:])
	}
}

// Regions returns the tracked regions ordered by start time, then scheme and id.
func (s *Session) Regions() []models.RegionView {
	views := make([]models.RegionView, 0, s.timeline.Len())
	for r := range s.timeline.Regions() {
		views = append(views, toView(r))
	}
	slices.SortFunc(views, func(a, b models.RegionView) int {
		return cmp.Or(
			cmp.Compare(a.StartTime, b.StartTime),
			cmp.Compare(a.SchemeIDURI, b.SchemeIDURI),
			cmp.Compare(a.ID, b.ID),
		)
	})
	return views
}

// TimelineRegions returns the raw tracked regions in unspecified order.
func (s *Session) TimelineRegions() []region.Region[dash.EventPayload] {
	return slices.Collect(s.timeline.Regions())
}

// RecentEvents returns the latest add/remove events, oldest first.
func (s *Session) RecentEvents() []models.EventView {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return slices.Clone(s.recent)
}

// Anchor returns the wall-clock time of presentation time zero.
func (s *Session) Anchor() time.Time {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	t, err := s.mpd.GetAvailabilityStartTime()
	if err != nil {
		return time.Unix(0, 0).UTC()
	}
	return t
}

// mpdRefreshLoop is a background goroutine that periodically fetches a new MPD.
func (s *Session) mpdRefreshLoop(interval time.Duration) {
	s.Logger.Infof("Starting MPD refresh loop for session %s with interval %v", s.ChannelID, interval)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			s.Logger.Infof("MPD refresh loop for %s stopped.", s.ChannelID)
			return
		case <-ticker.C:
			s.refreshMPD()
		}
	}
}

func (s *Session) refreshMPD() {
	s.Logger.Debugf("Refreshing MPD for session %s from %s", s.ChannelID, s.ManifestURL)
	ctx, cancel := context.WithTimeout(s.ctx, fetchTimeout)
	defer cancel()

	newMpd, _, err := s.dashClient.FetchAndParseMPD(ctx, s.ManifestURL)
	if err != nil {
		s.Logger.Warnf("Failed to refresh MPD for session %s: %v", s.ChannelID, err)
		return
	}

	s.mutex.Lock()
	s.mpd = newMpd
	s.mutex.Unlock()

	s.ingest(newMpd)
	s.Logger.Debugf("Successfully refreshed MPD for session %s", s.ChannelID)
}

func toView(r region.Region[dash.EventPayload]) models.RegionView {
	return models.RegionView{
		SchemeIDURI: r.SchemeIDURI,
		ID:          r.ID,
		StartTime:   r.StartTime,
		EndTime:     r.EndTime,
		PeriodID:    r.Payload.PeriodID,
		Value:       r.Payload.Value,
		MessageData: r.Payload.MessageData,
	}
}
