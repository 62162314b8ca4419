package music

import "context"

// Sink is the guild's real-time audio output. A Player owns its Sink exclusively.
type Sink interface {
	// Play starts sending frames from src with output gated (paused).
	// onEnded fires once when src is exhausted, fails, or Stop is called.
	Play(src AudioStream, onEnded func(error))
	Pause()
	Resume()
	// Stop ends the current stream and waits for output to halt.
	Stop()
	Disconnect(ctx context.Context) error
	ChannelID() string
}

// Connector joins a voice channel and hands back its Sink.
type Connector interface {
	Connect(ctx context.Context, guildID, channelID string) (Sink, error)
}

// VoiceLocator reports which voice channel a user is in, or "".
type VoiceLocator interface {
	UserVoiceChannel(guildID, userID string) string
}

// Surface is where a player posts its control panel and notices.
type Surface interface {
	SendPanel(channelID string, np NowPlaying) (messageID string, err error)
	// EditPanel returns ErrPanelGone when messageID was deleted.
	EditPanel(channelID, messageID string, np NowPlaying) error
	Notify(channelID, content string) error
}
