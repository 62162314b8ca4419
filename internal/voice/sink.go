package voice

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	disgovoice "github.com/disgoorg/disgo/voice"
)

// FrameSource yields opus frames. It returns io.EOF once exhausted.
type FrameSource interface {
	ProvideOpusFrame() ([]byte, error)
}

type transport interface {
	SetSpeaking(ctx context.Context, speaking bool) error
	Write(frame []byte) (int, error)
}

const frameInterval = 20 * time.Millisecond

// Sink paces opus frames from one FrameSource at a time onto a voice
// connection. Output starts paused; Resume opens it.
type Sink struct {
	mu        sync.Mutex
	tr        transport
	channelID string
	leave     func(ctx context.Context)
	logger    *log.Logger
	interval  time.Duration

	paused   bool
	resumeCh chan struct{}
	stopCh   chan struct{}
	done     chan struct{}
	running  bool
	left     bool
}

func newSink(tr transport, channelID string, leave func(ctx context.Context), logger *log.Logger) *Sink {
	if logger == nil {
		logger = log.Default()
	}
	return &Sink{
		tr:        tr,
		channelID: channelID,
		leave:     leave,
		logger:    logger,
		interval:  frameInterval,
	}
}

// ChannelID is the voice channel this sink is connected to.
func (s *Sink) ChannelID() string {
	return s.channelID
}

// Play starts streaming src in a background goroutine with output paused.
// Any previous stream is stopped first. onEnded is called exactly once: with
// nil when src is exhausted or Stop is called, or with the read/write error.
func (s *Sink) Play(src FrameSource, onEnded func(error)) {
	s.Stop()

	s.mu.Lock()
	if s.left {
		s.mu.Unlock()
		if onEnded != nil {
			onEnded(errors.New("voice connection closed"))
		}
		return
	}
	s.paused = true
	s.resumeCh = make(chan struct{}, 1)
	s.stopCh = make(chan struct{})
	s.done = make(chan struct{})
	s.running = true
	resumeCh, stopCh, done := s.resumeCh, s.stopCh, s.done
	s.mu.Unlock()

	go s.run(src, onEnded, resumeCh, stopCh, done)
}

// Pause holds output. The stream position is kept.
func (s *Sink) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paused = true
}

// Resume releases output after Pause, or opens it for the first time after Play.
func (s *Sink) Resume() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	s.paused = false
	select {
	case s.resumeCh <- struct{}{}:
	default:
	}
}

// Stop ends the current stream and waits for the goroutine to exit.
func (s *Sink) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stopCh)
	done := s.done
	s.mu.Unlock()

	<-done
}

// Disconnect stops output and leaves the voice channel.
func (s *Sink) Disconnect(ctx context.Context) error {
	s.Stop()

	s.mu.Lock()
	if s.left {
		s.mu.Unlock()
		return nil
	}
	s.left = true
	s.mu.Unlock()

	if s.leave != nil {
		s.leave(ctx)
	}
	return nil
}

func (s *Sink) isPaused() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.paused
}

func (s *Sink) run(src FrameSource, onEnded func(error), resumeCh, stopCh, done chan struct{}) {
	var endErr error
	speaking := false
	ticker := time.NewTicker(s.interval)

	defer func() {
		ticker.Stop()
		if speaking {
			_ = s.tr.SetSpeaking(context.Background(), false)
		}
		close(done)
		if onEnded != nil {
			onEnded(endErr)
		}
	}()

	ctx := context.Background()
	for {
		select {
		case <-stopCh:
			if speaking {
				s.sendSilence(ticker)
			}
			return
		case <-ticker.C:
		}

		if s.isPaused() {
			if speaking {
				s.sendSilence(ticker)
				_ = s.tr.SetSpeaking(ctx, false)
				speaking = false
			}
			select {
			case <-resumeCh:
			case <-stopCh:
				return
			}
			continue
		}

		if !speaking {
			if err := s.tr.SetSpeaking(ctx, true); err != nil {
				s.logger.Warnf("Voice: failed to set speaking in %s: %v", s.channelID, err)
			}
			speaking = true
		}

		frame, err := src.ProvideOpusFrame()
		if errors.Is(err, io.EOF) {
			s.sendSilence(ticker)
			return
		}
		if err != nil {
			endErr = err
			return
		}
		if _, err := s.tr.Write(frame); err != nil {
			endErr = err
			return
		}
	}
}

// sendSilence sends a few silence frames to cleanly signal end of audio.
func (s *Sink) sendSilence(ticker *time.Ticker) {
	for i := 0; i < 5; i++ {
		<-ticker.C
		_, _ = s.tr.Write(disgovoice.SilenceAudioFrame)
	}
}
