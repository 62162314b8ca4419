package music

import (
	"context"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

type fakeStream struct {
	track Track

	mu     sync.Mutex
	volume float64
	closed bool
}

func (s *fakeStream) ProvideOpusFrame() ([]byte, error) { return nil, io.EOF }

func (s *fakeStream) SetVolume(v float64) {
	s.mu.Lock()
	s.volume = v
	s.mu.Unlock()
}

func (s *fakeStream) Volume() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.volume
}

func (s *fakeStream) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
}

type fakeOpener struct {
	mu     sync.Mutex
	opened []string
	fail   map[string]error
}

func (o *fakeOpener) Open(_ context.Context, t Track, volume float64) (AudioStream, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if err := o.fail[t.Title]; err != nil {
		return nil, &SourceOpenError{Track: t, Err: err}
	}
	o.opened = append(o.opened, t.Title)
	return &fakeStream{track: t, volume: volume}, nil
}

func (o *fakeOpener) Opened() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string(nil), o.opened...)
}

type fakeResolver struct {
	block chan struct{} // when set, ResolveStreamable waits for it
}

func (r *fakeResolver) Search(_ context.Context, query string) (Track, error) {
	if query == "missing" {
		return Track{}, ErrNotFound
	}
	return Track{Title: query, SourceURL: "https://example.com/" + query}, nil
}

func (r *fakeResolver) ResolveStreamable(ctx context.Context, t Track) (Track, error) {
	if r.block != nil {
		select {
		case <-r.block:
		case <-ctx.Done():
			return Track{}, ctx.Err()
		}
	}
	t.PlayableURL = t.SourceURL + "/stream"
	return t, nil
}

type fakeSink struct {
	mu          sync.Mutex
	channelID   string
	onEnded     func(error)
	paused      bool
	played      []string
	streams     []*fakeStream
	stops       int
	disconnects int
}

func (s *fakeSink) Play(src AudioStream, onEnded func(error)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onEnded = onEnded
	s.paused = true
	fs := src.(*fakeStream)
	s.played = append(s.played, fs.track.Title)
	s.streams = append(s.streams, fs)
}

func (s *fakeSink) Pause() {
	s.mu.Lock()
	s.paused = true
	s.mu.Unlock()
}

func (s *fakeSink) Resume() {
	s.mu.Lock()
	s.paused = false
	s.mu.Unlock()
}

func (s *fakeSink) Stop() {
	s.mu.Lock()
	fn := s.onEnded
	s.onEnded = nil
	s.stops++
	s.mu.Unlock()
	if fn != nil {
		fn(nil)
	}
}

func (s *fakeSink) Disconnect(context.Context) error {
	s.mu.Lock()
	s.disconnects++
	s.mu.Unlock()
	return nil
}

func (s *fakeSink) ChannelID() string { return s.channelID }

// finish simulates the end of the current stream.
func (s *fakeSink) finish(err error) {
	s.mu.Lock()
	fn := s.onEnded
	s.onEnded = nil
	s.mu.Unlock()
	if fn != nil {
		fn(err)
	}
}

func (s *fakeSink) Played() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.played...)
}

func (s *fakeSink) IsPaused() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.paused
}

func (s *fakeSink) Disconnects() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.disconnects
}

func (s *fakeSink) lastStream() *fakeStream {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.streams) == 0 {
		return nil
	}
	return s.streams[len(s.streams)-1]
}

type fakeConnector struct {
	mu       sync.Mutex
	sinks    []*fakeSink
	connects int
	err      error
}

func (c *fakeConnector) Connect(_ context.Context, _, channelID string) (Sink, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connects++
	if c.err != nil {
		return nil, c.err
	}
	s := &fakeSink{channelID: channelID}
	c.sinks = append(c.sinks, s)
	return s, nil
}

func (c *fakeConnector) Sink() *fakeSink {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.sinks) == 0 {
		return nil
	}
	return c.sinks[len(c.sinks)-1]
}

func (c *fakeConnector) Connects() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connects
}

type fakeSurface struct {
	mu        sync.Mutex
	sent      int
	edits     int
	live      string // id of the panel message that still exists
	editDelay time.Duration
	last      NowPlaying
	notices   []string
}

func (s *fakeSurface) SendPanel(_ string, np NowPlaying) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent++
	s.last = np
	s.live = fmt.Sprintf("panel-%d", s.sent)
	return s.live, nil
}

func (s *fakeSurface) EditPanel(_, messageID string, np NowPlaying) error {
	s.mu.Lock()
	delay := s.editDelay
	s.mu.Unlock()
	time.Sleep(delay)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.edits++
	if messageID != s.live {
		return ErrPanelGone
	}
	s.last = np
	return nil
}

// DeletePanel removes the posted panel message.
func (s *fakeSurface) DeletePanel() {
	s.mu.Lock()
	s.live = ""
	s.mu.Unlock()
}

func (s *fakeSurface) SetEditDelay(d time.Duration) {
	s.mu.Lock()
	s.editDelay = d
	s.mu.Unlock()
}

func (s *fakeSurface) Counts() (sent, edits int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sent, s.edits
}

func (s *fakeSurface) Notify(_ string, content string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notices = append(s.notices, content)
	return nil
}

func (s *fakeSurface) Last() NowPlaying {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

func (s *fakeSurface) Notices() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.notices...)
}

// fakeLocator maps user IDs to the voice channel they are in.
type fakeLocator map[string]string

func (l fakeLocator) UserVoiceChannel(_, userID string) string { return l[userID] }

const (
	testGuild   = "guild1"
	testVoice   = "voice1"
	waitFor     = 2 * time.Second
	pollEvery   = 5 * time.Millisecond
	testPreRoll = 10 * time.Millisecond
)

// rig is a connected player in a registry, wired to fakes.
type rig struct {
	resolver  *fakeResolver
	opener    *fakeOpener
	connector *fakeConnector
	surface   *fakeSurface
	registry  *Registry
	player    *Player
}

func testLogger() *log.Logger {
	return log.New(io.Discard)
}

func newRig(t *testing.T) *rig {
	t.Helper()
	r := &rig{
		resolver:  &fakeResolver{},
		opener:    &fakeOpener{fail: map[string]error{}},
		connector: &fakeConnector{},
		surface:   &fakeSurface{},
		registry:  NewRegistry(),
	}
	r.player, _ = r.registry.GetOrCreate(testGuild, func() *Player {
		p := NewPlayer(PlayerConfig{
			GuildID:             testGuild,
			TextChannelID:       "text1",
			Volume:              0.5,
			Resolver:            r.resolver,
			Opener:              r.opener,
			Connector:           r.connector,
			Surface:             r.surface,
			Logger:              testLogger(),
			PanelEditsPerSecond: rate.Inf,
		})
		p.preRoll = testPreRoll
		p.idleTimeout = time.Minute
		return p
	})
	require.NoError(t, r.player.Connect(context.Background(), testVoice))
	t.Cleanup(func() { r.player.Shutdown(context.Background()) })
	return r
}

func (r *rig) sink() *fakeSink { return r.connector.Sink() }

func (r *rig) enqueue(t *testing.T, titles ...string) {
	t.Helper()
	for _, title := range titles {
		_, err := r.player.Enqueue(Track{Title: title, SourceURL: "https://example.com/" + title})
		require.NoError(t, err)
	}
}

// waitPlayed waits until the sink has started exactly the given titles.
func (r *rig) waitPlayed(t *testing.T, titles ...string) {
	t.Helper()
	require.Eventually(t, func() bool {
		return equalStrings(r.sink().Played(), titles)
	}, waitFor, pollEvery, "expected played %v, got %v", titles, r.sink().Played())
}

// waitPanel waits until the last rendered panel satisfies ok.
func (r *rig) waitPanel(t *testing.T, ok func(NowPlaying) bool) {
	t.Helper()
	require.Eventually(t, func() bool {
		return ok(r.surface.Last())
	}, waitFor, pollEvery, "panel never reached the expected state, last %+v", r.surface.Last())
}

func (r *rig) waitState(t *testing.T, want State) {
	t.Helper()
	require.Eventually(t, func() bool {
		return r.player.NowPlaying().State == want
	}, waitFor, pollEvery, "expected state %s, got %s", want, r.player.NowPlaying().State)
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func titles(ts []Track) []string {
	out := make([]string, 0, len(ts))
	for _, t := range ts {
		out = append(out, t.Title)
	}
	return out
}
