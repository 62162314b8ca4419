package scheduler

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"botipy/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchedulerRunsJobs(t *testing.T) {
	cfg := config.NewMockConfig(map[string]interface{}{"bot_token": "test_token"})
	s := NewScheduler(cfg)

	var ok, failing atomic.Int32
	require.NoError(t, s.RegisterFunc("@every 1s", "ok", func() error {
		ok.Add(1)
		return nil
	}))
	require.NoError(t, s.RegisterFunc("@every 1s", "failing", func() error {
		failing.Add(1)
		return errors.New("boom")
	}))
	assert.Equal(t, 2, s.Len())

	s.Start()
	require.Eventually(t, func() bool {
		return ok.Load() > 0 && failing.Load() > 0
	}, 3*time.Second, 10*time.Millisecond)
	s.Stop()
}

func TestSchedulerRejectsBadSpec(t *testing.T) {
	cfg := config.NewMockConfig(map[string]interface{}{"bot_token": "test_token"})
	s := NewScheduler(cfg)

	err := s.RegisterFunc("every tuesday", "bad", func() error { return nil })
	require.Error(t, err)
	assert.Equal(t, 0, s.Len())
}
