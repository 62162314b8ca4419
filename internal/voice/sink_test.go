package voice

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	disgovoice "github.com/disgoorg/disgo/voice"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTransport struct {
	mu       sync.Mutex
	frames   [][]byte
	speaking []bool
	writeErr error
}

func (f *fakeTransport) SetSpeaking(_ context.Context, speaking bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.speaking = append(f.speaking, speaking)
	return nil
}

func (f *fakeTransport) Write(frame []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writeErr != nil {
		return 0, f.writeErr
	}
	f.frames = append(f.frames, frame)
	return len(frame), nil
}

// audio returns the non-silence frames written so far.
func (f *fakeTransport) audio() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out [][]byte
	for _, fr := range f.frames {
		if !bytes.Equal(fr, disgovoice.SilenceAudioFrame) {
			out = append(out, fr)
		}
	}
	return out
}

type countingSource struct {
	mu    sync.Mutex
	n     int
	limit int
	err   error
}

func (c *countingSource) ProvideOpusFrame() ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.limit > 0 && c.n >= c.limit {
		if c.err != nil {
			return nil, c.err
		}
		return nil, io.EOF
	}
	c.n++
	return []byte{byte(c.n)}, nil
}

func (c *countingSource) read() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n
}

func newTestSink(tr transport, leave func(context.Context)) *Sink {
	s := newSink(tr, "voice1", leave, log.New(io.Discard))
	s.interval = time.Millisecond
	return s
}

func endedChan() (chan error, func(error)) {
	ch := make(chan error, 1)
	return ch, func(err error) { ch <- err }
}

func TestSinkStartsGated(t *testing.T) {
	tr := &fakeTransport{}
	s := newTestSink(tr, nil)
	src := &countingSource{}
	ended, onEnded := endedChan()

	s.Play(src, onEnded)
	time.Sleep(30 * time.Millisecond)
	assert.Empty(t, tr.audio(), "no audio before Resume")
	assert.LessOrEqual(t, src.read(), 0)

	s.Resume()
	require.Eventually(t, func() bool { return len(tr.audio()) >= 3 }, time.Second, time.Millisecond)

	s.Stop()
	select {
	case err := <-ended:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("onEnded not called after Stop")
	}
}

func TestSinkPauseHoldsPosition(t *testing.T) {
	tr := &fakeTransport{}
	s := newTestSink(tr, nil)
	src := &countingSource{}
	_, onEnded := endedChan()

	s.Play(src, onEnded)
	s.Resume()
	require.Eventually(t, func() bool { return src.read() >= 2 }, time.Second, time.Millisecond)

	s.Pause()
	time.Sleep(20 * time.Millisecond)
	held := src.read()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, held, src.read(), "paused sink does not read")

	s.Resume()
	require.Eventually(t, func() bool { return src.read() > held }, time.Second, time.Millisecond)
	s.Stop()
}

func TestSinkEndsOnEOF(t *testing.T) {
	tr := &fakeTransport{}
	s := newTestSink(tr, nil)
	ended, onEnded := endedChan()

	s.Play(&countingSource{limit: 3}, onEnded)
	s.Resume()

	select {
	case err := <-ended:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("onEnded not called at end of stream")
	}
	assert.Len(t, tr.audio(), 3)

	tr.mu.Lock()
	defer tr.mu.Unlock()
	require.NotEmpty(t, tr.speaking)
	assert.False(t, tr.speaking[len(tr.speaking)-1], "speaking cleared at end")
}

func TestSinkReportsSourceError(t *testing.T) {
	s := newTestSink(&fakeTransport{}, nil)
	ended, onEnded := endedChan()
	boom := errors.New("decoder died")

	s.Play(&countingSource{limit: 1, err: boom}, onEnded)
	s.Resume()

	select {
	case err := <-ended:
		assert.ErrorIs(t, err, boom)
	case <-time.After(time.Second):
		t.Fatal("onEnded not called on error")
	}
}

func TestSinkPlayReplacesStream(t *testing.T) {
	tr := &fakeTransport{}
	s := newTestSink(tr, nil)
	first, onFirst := endedChan()
	_, onSecond := endedChan()

	s.Play(&countingSource{}, onFirst)
	s.Resume()
	s.Play(&countingSource{}, onSecond)

	select {
	case err := <-first:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("first stream not ended")
	}
	s.Stop()
}

func TestSinkDisconnect(t *testing.T) {
	var leaves int
	s := newTestSink(&fakeTransport{}, func(context.Context) { leaves++ })
	ended, onEnded := endedChan()
	s.Play(&countingSource{}, onEnded)

	require.NoError(t, s.Disconnect(context.Background()))
	require.NoError(t, s.Disconnect(context.Background()))
	assert.Equal(t, 1, leaves)
	<-ended

	again, onAgain := endedChan()
	s.Play(&countingSource{}, onAgain)
	assert.Error(t, <-again, "a disconnected sink refuses new streams")
	assert.Equal(t, "voice1", s.ChannelID())
}
