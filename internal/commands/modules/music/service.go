package music

import (
	"fmt"
	"time"

	"botipy/internal/commands/types"
	"botipy/internal/config"
	"botipy/internal/database"
	internalMusic "botipy/internal/music"
)

// MusicService owns the session and the module's recurring jobs.
type MusicService struct {
	types.BaseService
	config *config.Config
	db     *database.DB
}

func newMusicService(cfg *config.Config, db *database.DB) *MusicService {
	return &MusicService{config: cfg, db: db}
}

// Jobs prunes play history past the configured retention once a day.
func (s *MusicService) Jobs() []types.ScheduledJob {
	if s.db == nil {
		return nil
	}
	return []types.ScheduledJob{
		{Spec: "@daily", Name: "music-history-prune", Fn: s.pruneHistory},
	}
}

func (s *MusicService) pruneHistory() error {
	cutoff := time.Now().Add(-s.config.GetHistoryRetention())
	n, err := s.db.PruneHistory(cutoff)
	if err != nil {
		return fmt.Errorf("pruning play history: %w", err)
	}
	if n > 0 {
		s.config.Logger.Infof("Music: pruned %d play history rows older than %s", n, cutoff.Format(time.RFC3339))
	}
	return nil
}

// guildVolume is the starting volume for a guild's new player.
func (s *MusicService) guildVolume(guildID string) float64 {
	if s.db != nil {
		v, ok, err := s.db.GetGuildVolume(guildID)
		if err != nil {
			s.config.Logger.Warnf("Music: failed to load volume for guild %s: %v", guildID, err)
		} else if ok {
			return internalMusic.ClampVolume(v)
		}
	}
	return s.config.GetDefaultVolume()
}

// saveVolume persists a guild's volume for future players.
func (s *MusicService) saveVolume(guildID string, v float64) {
	if s.db == nil {
		return
	}
	if err := s.db.SetGuildVolume(guildID, v); err != nil {
		s.config.Logger.Warnf("Music: failed to save volume for guild %s: %v", guildID, err)
	}
}

// recordPlay appends a started track to the guild's history.
func (s *MusicService) recordPlay(guildID string, t internalMusic.Track) {
	if s.db == nil {
		return
	}
	err := s.db.RecordPlay(database.PlayRecord{
		GuildID:     guildID,
		RequestedBy: t.RequestedBy,
		Title:       t.Title,
		SourceURL:   t.SourceURL,
		PlayedAt:    time.Now(),
	})
	if err != nil {
		s.config.Logger.Warnf("Music: failed to record play in guild %s: %v", guildID, err)
	}
}
