package music

import (
	"context"
	"errors"
	"fmt"

	internalMusic "botipy/internal/music"
	internalVoice "botipy/internal/voice"

	"github.com/bwmarrin/discordgo"
)

var errNoSession = errors.New("discord session not ready")

// stateLocator finds users' voice channels in the session's state cache.
type stateLocator struct {
	session func() *discordgo.Session
}

func (l stateLocator) UserVoiceChannel(guildID, userID string) string {
	s := l.session()
	if s == nil || s.State == nil || guildID == "" || userID == "" {
		return ""
	}
	guild, err := s.State.Guild(guildID)
	if err != nil {
		return ""
	}
	for _, vs := range guild.VoiceStates {
		if vs.UserID == userID {
			return vs.ChannelID
		}
	}
	return ""
}

// voiceConnector joins channels through the shared voice manager.
type voiceConnector struct {
	mgr *internalVoice.Manager
}

func (c voiceConnector) Connect(ctx context.Context, guildID, channelID string) (internalMusic.Sink, error) {
	sink, err := c.mgr.Connect(ctx, guildID, channelID)
	if err != nil {
		return nil, err
	}
	return voiceSink{sink}, nil
}

// voiceSink narrows the player's AudioStream to the frames the voice sink reads.
type voiceSink struct {
	*internalVoice.Sink
}

func (v voiceSink) Play(src internalMusic.AudioStream, onEnded func(error)) {
	v.Sink.Play(src, onEnded)
}

// discordSurface posts control panels and notices to text channels.
type discordSurface struct {
	session func() *discordgo.Session
}

func (d discordSurface) SendPanel(channelID string, np internalMusic.NowPlaying) (string, error) {
	s := d.session()
	if s == nil {
		return "", errNoSession
	}
	msg, err := s.ChannelMessageSendComplex(channelID, &discordgo.MessageSend{
		Embeds:     []*discordgo.MessageEmbed{panelEmbed(np)},
		Components: panelButtons(np),
	})
	if err != nil {
		return "", err
	}
	return msg.ID, nil
}

func (d discordSurface) EditPanel(channelID, messageID string, np internalMusic.NowPlaying) error {
	s := d.session()
	if s == nil {
		return errNoSession
	}
	embeds := []*discordgo.MessageEmbed{panelEmbed(np)}
	components := panelButtons(np)
	_, err := s.ChannelMessageEditComplex(&discordgo.MessageEdit{
		ID:         messageID,
		Channel:    channelID,
		Embeds:     &embeds,
		Components: &components,
	})
	return panelEditError(err)
}

// panelEditError reports a deleted panel message as ErrPanelGone so the
// player posts a new one.
func panelEditError(err error) error {
	var restErr *discordgo.RESTError
	if errors.As(err, &restErr) && restErr.Message != nil && restErr.Message.Code == discordgo.ErrCodeUnknownMessage {
		return fmt.Errorf("%w: %v", internalMusic.ErrPanelGone, err)
	}
	return err
}

func (d discordSurface) Notify(channelID, content string) error {
	s := d.session()
	if s == nil {
		return errNoSession
	}
	_, err := s.ChannelMessageSend(channelID, content)
	return err
}
