package music

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os/exec"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/charmbracelet/log"
	"layeh.com/gopus"
)

const (
	sampleRate   = 48000
	channels     = 2
	frameSize    = 960 // samples per channel in a 20ms frame
	maxOpusBytes = frameSize * channels * 2
)

// AudioStream yields Opus frames for one track.
type AudioStream interface {
	// ProvideOpusFrame returns the next frame, or io.EOF at end of track.
	ProvideOpusFrame() ([]byte, error)
	SetVolume(v float64)
	Volume() float64
	Close()
}

// SourceOpener starts an AudioStream for a resolved track.
type SourceOpener interface {
	Open(ctx context.Context, t Track, volume float64) (AudioStream, error)
}

// FFmpegOpener decodes tracks with an ffmpeg subprocess and encodes Opus
// frames in-process.
type FFmpegOpener struct {
	Path   string
	Logger *log.Logger
}

func (o *FFmpegOpener) binary() string {
	if o.Path != "" {
		return o.Path
	}
	return "ffmpeg"
}

// Open starts ffmpeg on t.PlayableURL and reads the first frame before
// returning, so an unreachable link fails here with a *SourceOpenError
// rather than mid-playback.
func (o *FFmpegOpener) Open(ctx context.Context, t Track, volume float64) (AudioStream, error) {
	if t.PlayableURL == "" {
		return nil, &SourceOpenError{Track: t, Err: errors.New("track has no playable url")}
	}

	enc, err := gopus.NewEncoder(sampleRate, channels, gopus.Audio)
	if err != nil {
		return nil, &SourceOpenError{Track: t, Err: fmt.Errorf("opus encoder: %w", err)}
	}

	cmd := exec.Command(o.binary(), ffmpegArgs(t.PlayableURL)...)
	stderr := &tailBuffer{limit: 2048}
	cmd.Stderr = stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, &SourceOpenError{Track: t, Err: err}
	}
	if err := cmd.Start(); err != nil {
		return nil, &SourceOpenError{Track: t, Err: fmt.Errorf("starting ffmpeg: %w", err)}
	}

	la := &LiveAudio{
		cmd:    cmd,
		pcm:    bufio.NewReaderSize(stdout, 16384),
		enc:    enc,
		raw:    make([]byte, frameSize*channels*2),
		frame:  make([]int16, frameSize*channels),
		logger: o.Logger,
	}
	la.SetVolume(volume)

	stop := context.AfterFunc(ctx, la.kill)
	first, err := la.readFrame()
	stop()
	if err != nil {
		la.Close()
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if errors.Is(err, io.EOF) {
			err = errors.New("no audio data")
		}
		return nil, &SourceOpenError{Track: t, Err: err, Stderr: strings.TrimSpace(stderr.String())}
	}
	la.pending = first
	return la, nil
}

func ffmpegArgs(input string) []string {
	return []string{
		"-nostdin",
		"-reconnect", "1",
		"-reconnect_streamed", "1",
		"-reconnect_delay_max", "5",
		"-i", input,
		"-vn",
		"-loglevel", "error",
		"-f", "s16le",
		"-ar", "48000",
		"-ac", "2",
		"pipe:1",
	}
}

// LiveAudio is an AudioStream reading PCM from ffmpeg and encoding it to Opus.
// ProvideOpusFrame must only be called from one goroutine at a time.
type LiveAudio struct {
	cmd     *exec.Cmd
	pcm     *bufio.Reader
	enc     *gopus.Encoder
	raw     []byte
	frame   []int16
	pending []byte
	volume  atomic.Uint64
	once    sync.Once
	logger  *log.Logger
}

// ProvideOpusFrame returns the next encoded frame or io.EOF.
func (a *LiveAudio) ProvideOpusFrame() ([]byte, error) {
	if a.pending != nil {
		f := a.pending
		a.pending = nil
		return f, nil
	}
	return a.readFrame()
}

func (a *LiveAudio) readFrame() ([]byte, error) {
	if _, err := io.ReadFull(a.pcm, a.raw); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, err
	}
	for i := range a.frame {
		a.frame[i] = int16(binary.LittleEndian.Uint16(a.raw[i*2:]))
	}
	scaleSamples(a.frame, a.Volume())
	return a.enc.Encode(a.frame, frameSize, maxOpusBytes)
}

// SetVolume sets the gain applied to subsequent frames. 1.0 is unchanged.
func (a *LiveAudio) SetVolume(v float64) {
	a.volume.Store(math.Float64bits(v))
}

// Volume returns the current gain.
func (a *LiveAudio) Volume() float64 {
	return math.Float64frombits(a.volume.Load())
}

// Close stops ffmpeg and releases the stream. Safe to call more than once.
func (a *LiveAudio) Close() {
	a.once.Do(func() {
		a.kill()
		if err := a.cmd.Wait(); err != nil && a.logger != nil {
			a.logger.Debugf("ffmpeg exited: %v", err)
		}
	})
}

func (a *LiveAudio) kill() {
	if a.cmd.Process != nil {
		_ = a.cmd.Process.Kill()
	}
}

// scaleSamples multiplies each sample by gain, clamping to the int16 range.
func scaleSamples(samples []int16, gain float64) {
	if gain == 1 {
		return
	}
	for i, s := range samples {
		v := float64(s) * gain
		switch {
		case v > math.MaxInt16:
			v = math.MaxInt16
		case v < math.MinInt16:
			v = math.MinInt16
		}
		samples[i] = int16(v)
	}
}

// tailBuffer keeps the last limit bytes written to it.
type tailBuffer struct {
	mu    sync.Mutex
	buf   []byte
	limit int
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf = append(b.buf, p...)
	if len(b.buf) > b.limit {
		b.buf = b.buf[len(b.buf)-b.limit:]
	}
	return len(p), nil
}

func (b *tailBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return string(b.buf)
}
