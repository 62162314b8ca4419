package music

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScaleSamples(t *testing.T) {
	s := []int16{100, -100, 20000, -20000}
	scaleSamples(s, 0.5)
	assert.Equal(t, []int16{50, -50, 10000, -10000}, s)

	s = []int16{20000, -20000}
	scaleSamples(s, 2)
	assert.Equal(t, []int16{math.MaxInt16, math.MinInt16}, s, "samples clamp instead of wrapping")

	s = []int16{123}
	scaleSamples(s, 1)
	assert.Equal(t, []int16{123}, s)
}

func TestTailBufferKeepsEnd(t *testing.T) {
	b := &tailBuffer{limit: 5}
	_, _ = b.Write([]byte("hello "))
	_, _ = b.Write([]byte("world"))
	assert.Equal(t, "world", b.String())
}

func TestFFmpegArgsReconnectBeforeInput(t *testing.T) {
	args := ffmpegArgs("https://media.example/a")

	idx := func(v string) int {
		for i, a := range args {
			if a == v {
				return i
			}
		}
		return -1
	}
	require.NotEqual(t, -1, idx("-reconnect"))
	assert.Less(t, idx("-reconnect"), idx("-i"))
	assert.Equal(t, "https://media.example/a", args[idx("-i")+1])
	assert.Equal(t, "pipe:1", args[len(args)-1])
}

func TestOpenWithoutPlayableURL(t *testing.T) {
	o := &FFmpegOpener{Logger: testLogger()}
	_, err := o.Open(context.Background(), Track{Title: "A"}, 1)

	var openErr *SourceOpenError
	require.ErrorAs(t, err, &openErr)
	assert.Equal(t, "A", openErr.Track.Title)
}

func TestOpenMissingBinary(t *testing.T) {
	o := &FFmpegOpener{Path: "/nonexistent/ffmpeg", Logger: testLogger()}
	_, err := o.Open(context.Background(), Track{Title: "A", PlayableURL: "https://media.example/a"}, 1)

	var openErr *SourceOpenError
	require.ErrorAs(t, err, &openErr)
}
