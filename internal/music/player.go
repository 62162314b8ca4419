package music

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/time/rate"
)

// State is the playback state of a Player.
type State int

const (
	StateIdle State = iota
	StateBuffering
	StatePlaying
	StatePaused
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateBuffering:
		return "buffering"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	case StateTerminated:
		return "terminated"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// LoopMode decides what happens to a track once it ends.
type LoopMode int

const (
	LoopNone  LoopMode = iota // discard
	LoopSong                  // replay at the head of the queue
	LoopQueue                 // re-append at the tail
)

func (m LoopMode) String() string {
	switch m {
	case LoopSong:
		return "song"
	case LoopQueue:
		return "queue"
	default:
		return "off"
	}
}

// Next cycles off → song → queue → off.
func (m LoopMode) Next() LoopMode {
	return (m + 1) % 3
}

const (
	// IdleTimeout is how long an empty queue keeps the player connected.
	IdleTimeout = 5 * time.Minute
	// PreRoll is how long output stays gated after a stream starts.
	PreRoll = time.Second
	// MaxVolume caps the volume multiplier.
	MaxVolume = 2.0
	// DefaultVolume applies when none is configured.
	DefaultVolume = 0.5
)

const idleNotice = "👋 Leaving the voice channel, the queue has been empty for a while."

// NowPlaying is a read-only projection of a player's state for display.
type NowPlaying struct {
	Track  *Track
	State  State
	Loop   LoopMode
	Volume float64
	Queued int
}

// Paused reports whether output is held by the user.
func (np NowPlaying) Paused() bool {
	return np.State == StatePaused
}

// PlayerConfig holds a Player's collaborators.
type PlayerConfig struct {
	GuildID       string
	TextChannelID string
	Volume        float64
	Resolver      Resolver
	Opener        SourceOpener
	Connector     Connector
	Surface       Surface
	Logger        *log.Logger
	// PanelEditsPerSecond throttles control panel edits. Zero means 2.
	PanelEditsPerSecond rate.Limit
	// OnTrackStart runs on the consumer goroutine after a track's output starts.
	OnTrackStart func(Track)
}

// Player is the single playback pipeline of one guild. A consumer goroutine
// takes tracks from the queue and plays them one at a time; transport
// controls mutate state through the Player's methods.
type Player struct {
	guildID       string
	textChannelID string
	resolver      Resolver
	opener        SourceOpener
	connector     Connector
	surface       Surface
	logger        *log.Logger
	onTrackStart  func(Track)
	queue         *Queue

	mu             sync.Mutex
	sink           Sink
	current        *Track
	state          State
	loop           LoopMode
	volume         float64
	stream         AudioStream
	gated          bool // output not yet released for the current track
	skip           context.CancelFunc
	panelMessageID string
	running        bool

	connectMu  sync.Mutex
	limiter    *rate.Limiter
	panelDirty chan struct{}
	panelStop  chan struct{}
	panelDone  chan struct{}

	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{}
	closeOnce sync.Once
	release   func()

	idleTimeout time.Duration
	preRoll     time.Duration
}

// NewPlayer creates an idle, disconnected player.
func NewPlayer(cfg PlayerConfig) *Player {
	ctx, cancel := context.WithCancel(context.Background())

	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}
	limit := cfg.PanelEditsPerSecond
	if limit <= 0 {
		limit = 2
	}
	volume := cfg.Volume
	if volume < 0 {
		volume = DefaultVolume
	}

	p := &Player{
		guildID:       cfg.GuildID,
		textChannelID: cfg.TextChannelID,
		resolver:      cfg.Resolver,
		opener:        cfg.Opener,
		connector:     cfg.Connector,
		surface:       cfg.Surface,
		logger:        logger.With("guild", cfg.GuildID),
		onTrackStart:  cfg.OnTrackStart,
		queue:         NewQueue(),
		state:         StateIdle,
		volume:        ClampVolume(volume),
		limiter:       rate.NewLimiter(limit, 3),
		panelDirty:    make(chan struct{}, 1),
		panelStop:     make(chan struct{}),
		panelDone:     make(chan struct{}),
		ctx:           ctx,
		cancel:        cancel,
		done:          make(chan struct{}),
		idleTimeout:   IdleTimeout,
		preRoll:       PreRoll,
	}
	if p.surface != nil {
		go p.renderPanels()
	} else {
		close(p.panelDone)
	}
	return p
}

// ClampVolume limits v to [0, MaxVolume].
func ClampVolume(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > MaxVolume:
		return MaxVolume
	default:
		return v
	}
}

// GuildID returns the guild this player serves.
func (p *Player) GuildID() string { return p.guildID }

// ChannelID returns the connected voice channel, or "" when disconnected.
func (p *Player) ChannelID() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.sink == nil {
		return ""
	}
	return p.sink.ChannelID()
}

// Done is closed once the player has shut down and its consumer has exited.
func (p *Player) Done() <-chan struct{} { return p.done }

// Connect joins channelID if the player has no connection yet. Joining a
// different channel while connected returns ErrPermission.
func (p *Player) Connect(ctx context.Context, channelID string) error {
	p.connectMu.Lock()
	defer p.connectMu.Unlock()

	p.mu.Lock()
	if p.state == StateTerminated {
		p.mu.Unlock()
		return ErrTerminated
	}
	if p.sink != nil {
		same := p.sink.ChannelID() == channelID
		p.mu.Unlock()
		if same {
			return nil
		}
		return ErrPermission
	}
	p.mu.Unlock()

	sink, err := p.connector.Connect(ctx, p.guildID, channelID)
	if err != nil {
		return fmt.Errorf("joining voice channel: %w", err)
	}

	p.mu.Lock()
	if p.state == StateTerminated {
		p.mu.Unlock()
		_ = sink.Disconnect(context.Background())
		return ErrTerminated
	}
	p.sink = sink
	p.mu.Unlock()

	p.logger.Infof("Music: connected to voice channel %s", channelID)
	return nil
}

// Enqueue appends t to the queue and returns its position.
func (p *Player) Enqueue(t Track) (int, error) {
	p.mu.Lock()
	if p.state == StateTerminated {
		p.mu.Unlock()
		return 0, ErrTerminated
	}
	pos := p.queue.Enqueue(t)
	p.mu.Unlock()

	p.requestPanel()
	return pos, nil
}

// Start launches the consumer goroutine unless it is already running.
func (p *Player) Start() {
	p.mu.Lock()
	if p.running || p.state == StateTerminated {
		p.mu.Unlock()
		return
	}
	p.running = true
	p.mu.Unlock()

	go p.run()
}

// Queue returns a snapshot of the upcoming tracks.
func (p *Player) Queue() []Track {
	return p.queue.Snapshot()
}

// NowPlaying returns the current state for display.
func (p *Player) NowPlaying() NowPlaying {
	p.mu.Lock()
	defer p.mu.Unlock()
	np := NowPlaying{
		State:  p.state,
		Loop:   p.loop,
		Volume: p.volume,
		Queued: p.queue.Len(),
	}
	if p.current != nil {
		t := *p.current
		np.Track = &t
	}
	return np
}

// TogglePause flips between playing and paused. Pausing while buffering
// keeps output gated once the pre-roll ends.
func (p *Player) TogglePause() (State, error) {
	p.mu.Lock()
	switch p.state {
	case StatePlaying:
		p.state = StatePaused
		if p.sink != nil {
			p.sink.Pause()
		}
	case StatePaused:
		if p.gated {
			p.state = StateBuffering
		} else {
			p.state = StatePlaying
			if p.sink != nil {
				p.sink.Resume()
			}
		}
	case StateBuffering:
		p.state = StatePaused
	case StateTerminated:
		p.mu.Unlock()
		return StateTerminated, ErrTerminated
	default:
		s := p.state
		p.mu.Unlock()
		return s, ErrNothingPlaying
	}
	s := p.state
	p.mu.Unlock()

	p.requestPanel()
	return s, nil
}

// Skip ends the current track early. Loop policy applies as if it ended
// naturally.
func (p *Player) Skip() (Track, error) {
	p.mu.Lock()
	if p.current == nil || p.skip == nil {
		p.mu.Unlock()
		return Track{}, ErrNothingPlaying
	}
	t := *p.current
	cancel := p.skip
	p.mu.Unlock()

	cancel()
	return t, nil
}

// ToggleLoop advances the loop mode and returns the new one.
func (p *Player) ToggleLoop() (LoopMode, error) {
	p.mu.Lock()
	if p.state == StateTerminated {
		p.mu.Unlock()
		return LoopNone, ErrTerminated
	}
	p.loop = p.loop.Next()
	m := p.loop
	p.mu.Unlock()

	p.requestPanel()
	return m, nil
}

// SetVolume changes the volume of the live stream and of later tracks.
func (p *Player) SetVolume(v float64) float64 {
	v = ClampVolume(v)
	p.mu.Lock()
	p.volume = v
	if p.stream != nil {
		p.stream.SetVolume(v)
	}
	p.mu.Unlock()

	p.requestPanel()
	return v
}

// RepostPanel posts a fresh control panel below the conversation.
func (p *Player) RepostPanel() {
	p.mu.Lock()
	p.panelMessageID = ""
	p.mu.Unlock()
	p.requestPanel()
}

// Shutdown terminates the player: output stops, the queue is dropped, the
// voice connection is released, the player leaves the registry and the panel
// shows the final state. Only the first call has any effect.
func (p *Player) Shutdown(ctx context.Context) {
	p.closeOnce.Do(func() {
		p.mu.Lock()
		p.state = StateTerminated
		p.current = nil
		sink := p.sink
		p.sink = nil
		if !p.running {
			close(p.done)
		}
		p.mu.Unlock()

		if p.release != nil {
			p.release()
		}
		if sink != nil {
			sink.Stop()
		}
		p.cancel()
		p.queue.Clear()
		if sink != nil {
			if err := sink.Disconnect(ctx); err != nil {
				p.logger.Warnf("Music: error leaving voice: %v", err)
			}
		}

		close(p.panelStop)
		select {
		case <-p.panelDone:
		case <-ctx.Done():
		}
		p.logger.Info("Music: player shut down")
	})
}

func (p *Player) run() {
	defer close(p.done)

	for {
		t, err := p.queue.TakeOrTimeout(p.ctx, p.idleTimeout)
		if err != nil {
			if errors.Is(err, ErrTimedOut) && p.ctx.Err() == nil {
				p.logger.Infof("Music: queue idle for %s, leaving", p.idleTimeout)
				p.notify(idleNotice)
				p.Shutdown(context.Background())
			}
			return
		}
		p.playTrack(t)
	}
}

func (p *Player) playTrack(t Track) {
	trackCtx, cancel := context.WithCancel(p.ctx)
	defer cancel()

	p.mu.Lock()
	if p.state == StateTerminated {
		p.mu.Unlock()
		return
	}
	p.current = &t
	p.state = StateBuffering
	p.gated = true
	p.skip = cancel
	volume := p.volume
	p.mu.Unlock()
	p.requestPanel()

	ended := make(chan error, 1)
	if err := p.startOutput(trackCtx, t, volume, ended); err != nil {
		p.finishTrack(t, trackCtx, err)
		return
	}
	if p.onTrackStart != nil {
		p.onTrackStart(t)
	}
	p.requestPanel()

	var endErr error
	preRoll := time.NewTimer(p.preRoll)
	select {
	case <-preRoll.C:
		p.ungate()
		select {
		case endErr = <-ended:
		case <-trackCtx.Done():
		}
	case endErr = <-ended:
	case <-trackCtx.Done():
	}
	preRoll.Stop()

	p.stopOutput()
	p.finishTrack(t, trackCtx, endErr)
}

// startOutput resolves and opens t, then hands the stream to the sink gated.
func (p *Player) startOutput(ctx context.Context, t Track, volume float64, ended chan error) error {
	resolved, err := p.resolver.ResolveStreamable(ctx, t)
	if err != nil {
		return err
	}
	stream, err := p.opener.Open(ctx, resolved, volume)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if ctx.Err() != nil {
		stream.Close()
		return ctx.Err()
	}
	if p.sink == nil {
		stream.Close()
		return ErrNotConnected
	}
	stream.SetVolume(p.volume)
	p.stream = stream
	p.sink.Play(stream, func(err error) {
		select {
		case ended <- err:
		default:
		}
	})
	return nil
}

// ungate releases output after the pre-roll unless the user paused meanwhile.
func (p *Player) ungate() {
	p.mu.Lock()
	p.gated = false
	if p.state == StateBuffering {
		p.state = StatePlaying
		if p.sink != nil {
			p.sink.Resume()
		}
	}
	p.mu.Unlock()
	p.requestPanel()
}

func (p *Player) stopOutput() {
	p.mu.Lock()
	sink := p.sink
	stream := p.stream
	p.stream = nil
	p.mu.Unlock()

	if sink != nil {
		sink.Stop()
	}
	if stream != nil {
		stream.Close()
	}
}

// finishTrack clears the current track and applies the loop policy. Tracks
// that failed to play are not re-queued.
func (p *Player) finishTrack(t Track, trackCtx context.Context, err error) {
	skipped := trackCtx.Err() != nil
	failed := err != nil && !skipped

	p.mu.Lock()
	p.current = nil
	p.skip = nil
	p.stream = nil
	p.gated = false
	if p.state == StateTerminated {
		p.mu.Unlock()
		return
	}
	p.state = StateIdle
	if !failed {
		switch p.loop {
		case LoopSong:
			p.queue.PushFront(t)
		case LoopQueue:
			p.queue.PushBack(t)
		}
	}
	p.mu.Unlock()

	if failed {
		p.logger.Errorf("Music: failed to play %q: %v", t.Title, err)
		p.notify(failureNotice(t, err))
	}
	p.requestPanel()
}

func failureNotice(t Track, err error) string {
	var openErr *SourceOpenError
	var resErr *ResolutionError
	switch {
	case errors.As(err, &openErr):
		return fmt.Sprintf("⚠️ Couldn't open audio for **%s**, skipping.", t.Title)
	case errors.As(err, &resErr):
		return fmt.Sprintf("⚠️ Couldn't find a stream for **%s**, skipping.", t.Title)
	default:
		return fmt.Sprintf("⚠️ Playback of **%s** failed, skipping.", t.Title)
	}
}

func (p *Player) notify(content string) {
	if p.surface == nil {
		return
	}
	if err := p.surface.Notify(p.textChannelID, content); err != nil {
		p.logger.Warnf("Music: failed to send notice: %v", err)
	}
}

// requestPanel marks the panel stale. Requests made while an edit is in
// flight coalesce into one more edit.
func (p *Player) requestPanel() {
	select {
	case p.panelDirty <- struct{}{}:
	default:
	}
}

// renderPanels is the panel goroutine. Each edit reads state just before it
// is sent, so the last edit shows the latest state. The terminated panel is
// rendered once on shutdown.
func (p *Player) renderPanels() {
	defer close(p.panelDone)
	for {
		select {
		case <-p.panelDirty:
			if err := p.limiter.Wait(p.ctx); err != nil {
				continue
			}
			p.renderPanel()
		case <-p.panelStop:
			p.renderPanel()
			return
		}
	}
}

func (p *Player) renderPanel() {
	np := p.NowPlaying()
	p.mu.Lock()
	msgID := p.panelMessageID
	p.mu.Unlock()

	if msgID != "" {
		err := p.surface.EditPanel(p.textChannelID, msgID, np)
		if err == nil {
			return
		}
		if !errors.Is(err, ErrPanelGone) {
			p.logger.Warnf("Music: failed to update panel: %v", err)
			return
		}
		p.logger.Info("Music: panel message was deleted, reposting")
		p.mu.Lock()
		if p.panelMessageID == msgID {
			p.panelMessageID = ""
		}
		p.mu.Unlock()
	}

	if np.Track == nil || np.State == StateTerminated {
		return
	}
	id, err := p.surface.SendPanel(p.textChannelID, np)
	if err != nil {
		p.logger.Warnf("Music: failed to post panel: %v", err)
		return
	}
	p.mu.Lock()
	p.panelMessageID = id
	p.mu.Unlock()
}
