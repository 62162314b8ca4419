package utils

import (
	"errors"
	"time"

	"botipy/internal/config"

	"github.com/bwmarrin/discordgo"
)

// ErrNoLogChannel is returned when no log channel is configured.
var ErrNoLogChannel = errors.New("unable to log to channel: log_channel_id is not set")

// LogToChannel posts an error report to the configured log channel.
func LogToChannel(cfg *config.Config, s *discordgo.Session, title, m string) error {
	id := cfg.GetLogChannelID()
	if id == "" {
		return ErrNoLogChannel
	}
	if s == nil {
		return errors.New("unable to log to channel: no session")
	}

	logEmbed := NewErrorEmbed(title, m)
	logEmbed.Timestamp = time.Now().Format(time.RFC3339)

	_, err := s.ChannelMessageSendEmbed(id, logEmbed)
	return err
}
