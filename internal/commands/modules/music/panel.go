package music

import (
	"fmt"
	"strings"

	internalMusic "botipy/internal/music"
	"botipy/internal/utils"

	"github.com/bwmarrin/discordgo"
)

// Button customID constants
const (
	componentPrefix = "music::"
	buttonPause     = "music::pause"
	buttonSkip      = "music::skip"
	buttonLoop      = "music::loop"
	buttonStop      = "music::stop"
)

const queuePageSize = 10

// panelEmbed builds the control panel embed for the current player state
func panelEmbed(np internalMusic.NowPlaying) *discordgo.MessageEmbed {
	if np.State == internalMusic.StateTerminated {
		return &discordgo.MessageEmbed{
			Title:       "⏹️ Stopped",
			Description: "Playback has ended and the queue was cleared.",
			Color:       utils.Colors.Muted(),
		}
	}
	if np.Track == nil {
		return &discordgo.MessageEmbed{
			Title:       "🎶 Nothing playing",
			Description: "Use `/play` to queue something.",
			Color:       utils.Colors.Muted(),
			Footer:      panelFooter(np),
		}
	}

	t := np.Track
	status := "▶️ Playing"
	color := utils.Colors.Ok()
	switch np.State {
	case internalMusic.StatePaused:
		status = "⏸️ Paused"
		color = utils.Colors.Warning()
	case internalMusic.StateBuffering:
		status = "⏳ Buffering"
		color = utils.Colors.Info()
	}

	embed := &discordgo.MessageEmbed{
		Title:       "🎵 Now Playing",
		Description: fmt.Sprintf("**[%s](%s)**", escape(t.Title), t.SourceURL),
		Color:       color,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Status", Value: status, Inline: true},
			{Name: "Duration", Value: internalMusic.FormatDuration(t.Duration), Inline: true},
			{Name: "Requested by", Value: mention(t.RequestedBy), Inline: true},
			{Name: "Up next", Value: fmt.Sprintf("%d in queue", np.Queued), Inline: true},
			{Name: "Volume", Value: fmt.Sprintf("%d%%", percent(np.Volume)), Inline: true},
		},
		Footer: panelFooter(np),
	}
	if t.ThumbnailURL != "" {
		embed.Thumbnail = &discordgo.MessageEmbedThumbnail{URL: t.ThumbnailURL}
	}
	if t.Uploader != "" {
		embed.Author = &discordgo.MessageEmbedAuthor{Name: t.Uploader}
	}
	return embed
}

func panelFooter(np internalMusic.NowPlaying) *discordgo.MessageEmbedFooter {
	state := "Playing"
	if np.Paused() {
		state = "Paused"
	}
	return &discordgo.MessageEmbedFooter{Text: fmt.Sprintf("Loop: %s | %s", np.Loop, state)}
}

// panelButtons returns the transport buttons. They are disabled once there is
// nothing left to control.
func panelButtons(np internalMusic.NowPlaying) []discordgo.MessageComponent {
	disabled := np.Track == nil || np.State == internalMusic.StateTerminated

	pauseLabel, pauseEmoji, pauseStyle := "Pause", "⏸️", discordgo.PrimaryButton
	if np.Paused() {
		pauseLabel, pauseEmoji, pauseStyle = "Resume", "▶️", discordgo.SuccessButton
	}

	loopEmoji := "➡️"
	switch np.Loop {
	case internalMusic.LoopSong:
		loopEmoji = "🔂"
	case internalMusic.LoopQueue:
		loopEmoji = "🔁"
	}

	return []discordgo.MessageComponent{
		discordgo.ActionsRow{Components: []discordgo.MessageComponent{
			&discordgo.Button{Style: pauseStyle, Label: pauseLabel, CustomID: buttonPause, Disabled: disabled, Emoji: &discordgo.ComponentEmoji{Name: pauseEmoji}},
			&discordgo.Button{Style: discordgo.SecondaryButton, Label: "Skip", CustomID: buttonSkip, Disabled: disabled, Emoji: &discordgo.ComponentEmoji{Name: "⏭️"}},
			&discordgo.Button{Style: discordgo.SecondaryButton, Label: "Loop", CustomID: buttonLoop, Disabled: disabled, Emoji: &discordgo.ComponentEmoji{Name: loopEmoji}},
			&discordgo.Button{Style: discordgo.DangerButton, Label: "Stop", CustomID: buttonStop, Disabled: disabled, Emoji: &discordgo.ComponentEmoji{Name: "⏹️"}},
		}},
	}
}

// trackAddedEmbed confirms a queued track
func trackAddedEmbed(res internalMusic.PlayResult) *discordgo.MessageEmbed {
	t := res.Track
	embed := &discordgo.MessageEmbed{
		Title:       "➕ Added to queue",
		Description: fmt.Sprintf("**[%s](%s)**", escape(t.Title), t.SourceURL),
		Color:       utils.Colors.Ok(),
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Duration", Value: internalMusic.FormatDuration(t.Duration), Inline: true},
			{Name: "Position", Value: fmt.Sprintf("#%d", res.Position), Inline: true},
		},
	}
	if t.ThumbnailURL != "" {
		embed.Thumbnail = &discordgo.MessageEmbedThumbnail{URL: t.ThumbnailURL}
	}
	return embed
}

// queueEmbed lists the current track and the first queuePageSize queued ones
func queueEmbed(np internalMusic.NowPlaying, queued []internalMusic.Track) *discordgo.MessageEmbed {
	var b strings.Builder
	if np.Track != nil {
		fmt.Fprintf(&b, "**Now:** [%s](%s) `%s`\n\n", escape(np.Track.Title), np.Track.SourceURL, internalMusic.FormatDuration(np.Track.Duration))
	}
	if len(queued) == 0 {
		b.WriteString("The queue is empty.")
	}
	for idx, t := range queued {
		if idx == queuePageSize {
			fmt.Fprintf(&b, "\n...and %d more", len(queued)-queuePageSize)
			break
		}
		fmt.Fprintf(&b, "`%d.` %s `%s` • %s\n", idx+1, escape(t.Title), internalMusic.FormatDuration(t.Duration), mention(t.RequestedBy))
	}

	return &discordgo.MessageEmbed{
		Title:       "📜 Queue",
		Description: b.String(),
		Color:       utils.Colors.Info(),
		Footer:      panelFooter(np),
	}
}

func percent(v float64) int {
	return int(v*100 + 0.5)
}

func mention(userID string) string {
	if userID == "" {
		return "unknown"
	}
	return "<@" + userID + ">"
}

var markdownEscaper = strings.NewReplacer("*", "\\*", "_", "\\_", "`", "\\`", "~", "\\~", "|", "\\|", "[", "\\[", "]", "\\]")

func escape(s string) string {
	return markdownEscaper.Replace(s)
}
