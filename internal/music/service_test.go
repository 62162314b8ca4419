package music

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

type serviceRig struct {
	svc       *Service
	connector *fakeConnector
	opener    *fakeOpener
	surface   *fakeSurface

	mu      sync.Mutex
	started []string
}

func newServiceRig(t *testing.T, locator fakeLocator) *serviceRig {
	t.Helper()
	sr := &serviceRig{
		connector: &fakeConnector{},
		opener:    &fakeOpener{fail: map[string]error{}},
		surface:   &fakeSurface{},
	}
	sr.svc = NewService(ServiceConfig{
		Resolver:            &fakeResolver{},
		Opener:              sr.opener,
		Connector:           sr.connector,
		Surface:             sr.surface,
		Locator:             locator,
		Logger:              testLogger(),
		PanelEditsPerSecond: rate.Inf,
		Volume:              func(string) float64 { return 0.8 },
		OnTrackStart: func(guildID string, t Track) {
			sr.mu.Lock()
			sr.started = append(sr.started, guildID+":"+t.Title+":"+t.RequestedBy)
			sr.mu.Unlock()
		},
	})
	sr.svc.tune = func(p *Player) { p.preRoll = testPreRoll }
	t.Cleanup(func() { sr.svc.Shutdown(context.Background()) })
	return sr
}

func (sr *serviceRig) Started() []string {
	sr.mu.Lock()
	defer sr.mu.Unlock()
	return append([]string(nil), sr.started...)
}

func TestServicePlayNotFoundLeavesNoPlayer(t *testing.T) {
	sr := newServiceRig(t, fakeLocator{"user1": testVoice})

	_, err := sr.svc.Play(context.Background(), PlayRequest{GuildID: testGuild, UserID: "user1", Query: "missing"})
	require.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, 0, sr.svc.Registry().Len())
	assert.Equal(t, 0, sr.connector.Connects())
}

func TestServicePlayRequiresVoice(t *testing.T) {
	sr := newServiceRig(t, fakeLocator{})

	_, err := sr.svc.Play(context.Background(), PlayRequest{GuildID: testGuild, UserID: "user1", Query: "A"})
	require.ErrorIs(t, err, ErrNotInVoice)
	assert.Nil(t, sr.svc.Player(testGuild))
}

func TestServicePlayQueuesAndStarts(t *testing.T) {
	sr := newServiceRig(t, fakeLocator{"user1": testVoice, "user2": testVoice})

	res, err := sr.svc.Play(context.Background(), PlayRequest{GuildID: testGuild, TextChannelID: "text1", UserID: "user1", Query: "A"})
	require.NoError(t, err)
	assert.True(t, res.Joined)
	assert.Equal(t, "user1", res.Track.RequestedBy)

	res, err = sr.svc.Play(context.Background(), PlayRequest{GuildID: testGuild, TextChannelID: "text1", UserID: "user2", Query: "B"})
	require.NoError(t, err)
	assert.False(t, res.Joined, "second play reuses the guild's player")
	assert.Equal(t, 1, sr.svc.Registry().Len())
	assert.Equal(t, 1, sr.connector.Connects())

	require.Eventually(t, func() bool {
		return equalStrings(sr.connector.Sink().Played(), []string{"A"})
	}, waitFor, pollEvery)
	assert.Equal(t, 0.8, sr.svc.Player(testGuild).NowPlaying().Volume)
	require.Eventually(t, func() bool {
		return equalStrings(sr.Started(), []string{testGuild + ":A:user1"})
	}, waitFor, pollEvery)
}

func TestServicePlayFromOtherChannelIsRejected(t *testing.T) {
	sr := newServiceRig(t, fakeLocator{"user1": testVoice, "user2": "voice2"})

	_, err := sr.svc.Play(context.Background(), PlayRequest{GuildID: testGuild, UserID: "user1", Query: "A"})
	require.NoError(t, err)

	_, err = sr.svc.Play(context.Background(), PlayRequest{GuildID: testGuild, UserID: "user2", Query: "B"})
	require.ErrorIs(t, err, ErrPermission)
	assert.Equal(t, testVoice, sr.svc.Player(testGuild).ChannelID())
}

func TestServicePlayConnectFailureLeavesNoPlayer(t *testing.T) {
	sr := newServiceRig(t, fakeLocator{"user1": testVoice})
	sr.connector.err = errors.New("voice gateway timeout")

	_, err := sr.svc.Play(context.Background(), PlayRequest{GuildID: testGuild, UserID: "user1", Query: "A"})
	require.Error(t, err)
	assert.Equal(t, 0, sr.svc.Registry().Len())
}

func TestServicePlayReplacesTerminatedPlayer(t *testing.T) {
	sr := newServiceRig(t, fakeLocator{"user1": testVoice})

	_, err := sr.svc.Play(context.Background(), PlayRequest{GuildID: testGuild, UserID: "user1", Query: "A"})
	require.NoError(t, err)
	old := sr.svc.Player(testGuild)

	// Terminated but still registered, as in the window before release runs.
	old.mu.Lock()
	old.state = StateTerminated
	old.mu.Unlock()

	_, err = sr.svc.Play(context.Background(), PlayRequest{GuildID: testGuild, UserID: "user1", Query: "B"})
	require.NoError(t, err)
	assert.NotSame(t, old, sr.svc.Player(testGuild))
	assert.Equal(t, 2, sr.connector.Connects())

	old.Shutdown(context.Background())
	assert.NotNil(t, sr.svc.Player(testGuild))
}

func TestServiceDisconnectedTearsDown(t *testing.T) {
	sr := newServiceRig(t, fakeLocator{"user1": testVoice})
	_, err := sr.svc.Play(context.Background(), PlayRequest{GuildID: testGuild, UserID: "user1", Query: "A"})
	require.NoError(t, err)
	p := sr.svc.Player(testGuild)

	sr.svc.Disconnected(context.Background(), testGuild)

	assert.Nil(t, sr.svc.Player(testGuild))
	assert.Equal(t, StateTerminated, p.NowPlaying().State)
	<-p.Done()

	sr.svc.Disconnected(context.Background(), testGuild)
}
