package music

import (
	"context"
	"errors"

	"github.com/charmbracelet/log"
	"golang.org/x/time/rate"
)

// ErrNotInVoice is returned when a user asks to play without being in a voice channel.
var ErrNotInVoice = errors.New("join a voice channel first")

// ServiceConfig wires a Service to its collaborators.
type ServiceConfig struct {
	Registry            *Registry
	Resolver            Resolver
	Opener              SourceOpener
	Connector           Connector
	Surface             Surface
	Locator             VoiceLocator
	Logger              *log.Logger
	PanelEditsPerSecond rate.Limit
	// Volume returns the starting volume for a guild's new player.
	Volume func(guildID string) float64
	// OnTrackStart is called when a track's output starts in a guild.
	OnTrackStart func(guildID string, t Track)
}

// PlayRequest is a user's request to queue something.
type PlayRequest struct {
	GuildID       string
	TextChannelID string
	UserID        string
	Query         string
}

// PlayResult describes what was queued.
type PlayResult struct {
	Track    Track
	Position int
	// Joined is true when this request created the guild's player.
	Joined bool
}

// Service is the entry point for playback requests.
type Service struct {
	cfg      ServiceConfig
	logger   *log.Logger
	controls *Controls
	tune     func(*Player) // test hook applied to new players
}

// NewService creates a Service. A nil Registry gets a fresh one.
func NewService(cfg ServiceConfig) *Service {
	if cfg.Registry == nil {
		cfg.Registry = NewRegistry()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Service{
		cfg:      cfg,
		logger:   logger,
		controls: NewControls(cfg.Registry, cfg.Locator),
	}
}

// Controls returns the transport controls bound to this service's registry.
func (s *Service) Controls() *Controls { return s.controls }

// Registry returns the registry of live players.
func (s *Service) Registry() *Registry { return s.cfg.Registry }

// Player returns the guild's live player or nil.
func (s *Service) Player(guildID string) *Player { return s.cfg.Registry.Get(guildID) }

// Play resolves the query, joins the requester's voice channel if needed and
// queues the track. Lookup failures leave no player behind.
func (s *Service) Play(ctx context.Context, req PlayRequest) (PlayResult, error) {
	channelID := s.cfg.Locator.UserVoiceChannel(req.GuildID, req.UserID)
	if channelID == "" {
		return PlayResult{}, ErrNotInVoice
	}

	t, err := s.cfg.Resolver.Search(ctx, req.Query)
	if err != nil {
		return PlayResult{}, err
	}
	t.RequestedBy = req.UserID

	// A player torn down between lookup and use is replaced once.
	for attempt := 0; attempt < 2; attempt++ {
		p, created := s.cfg.Registry.GetOrCreate(req.GuildID, func() *Player {
			return s.newPlayer(req)
		})

		if err := p.Connect(ctx, channelID); err != nil {
			if errors.Is(err, ErrTerminated) {
				s.cfg.Registry.Remove(req.GuildID, p)
				continue
			}
			if created {
				s.cfg.Registry.Remove(req.GuildID, p)
				p.Shutdown(context.Background())
			}
			return PlayResult{}, err
		}

		pos, err := p.Enqueue(t)
		if errors.Is(err, ErrTerminated) {
			continue
		}
		if err != nil {
			return PlayResult{}, err
		}
		p.Start()
		return PlayResult{Track: t, Position: pos, Joined: created}, nil
	}
	return PlayResult{}, ErrTerminated
}

// Disconnected tears down the guild's player after the bot was removed from
// voice by someone else.
func (s *Service) Disconnected(ctx context.Context, guildID string) {
	p := s.cfg.Registry.Get(guildID)
	if p == nil {
		return
	}
	s.cfg.Registry.Remove(guildID, p)
	s.logger.Infof("Music: disconnected from voice in guild %s, shutting player down", guildID)
	p.Shutdown(ctx)
}

// Shutdown stops every player.
func (s *Service) Shutdown(ctx context.Context) {
	s.cfg.Registry.ShutdownAll(ctx)
}

func (s *Service) newPlayer(req PlayRequest) *Player {
	volume := DefaultVolume
	if s.cfg.Volume != nil {
		volume = s.cfg.Volume(req.GuildID)
	}
	var onStart func(Track)
	if s.cfg.OnTrackStart != nil {
		guildID := req.GuildID
		onStart = func(t Track) { s.cfg.OnTrackStart(guildID, t) }
	}
	p := NewPlayer(PlayerConfig{
		GuildID:             req.GuildID,
		TextChannelID:       req.TextChannelID,
		Volume:              volume,
		Resolver:            s.cfg.Resolver,
		Opener:              s.cfg.Opener,
		Connector:           s.cfg.Connector,
		Surface:             s.cfg.Surface,
		Logger:              s.logger,
		PanelEditsPerSecond: s.cfg.PanelEditsPerSecond,
		OnTrackStart:        onStart,
	})
	if s.tune != nil {
		s.tune(p)
	}
	return p
}
