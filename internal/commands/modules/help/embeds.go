package help

import (
	"botipy/internal/utils"

	"github.com/MakeNowJust/heredoc"
	"github.com/bwmarrin/discordgo"
)

// helpCommandsEmbed creates the main help embed showing all available commands
func helpCommandsEmbed() *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title: "🎶 Botipy - Help",
		Description: heredoc.Doc(`
			Queue music from YouTube and other sites into your voice channel.
			Join a voice channel, then use ` + "`/play`" + `. The player panel's buttons
			work for anyone in the same voice channel as the bot.
		`),
		Color: utils.Colors.Info(),
		Fields: []*discordgo.MessageEmbedField{
			{
				Name:   "🎵 Playback:",
				Inline: false,
			},
			{
				Name: "/play",
				Value: heredoc.Doc(`
					Search for a song or paste a link and add it to the queue
					• Use ` + "`/play query:never gonna give you up`" + ` to search
					• Use ` + "`/play query:https://youtu.be/...`" + ` for a link
				`),
				Inline: false,
			},
			{
				Name:   "/pause",
				Value:  "Pause or resume playback",
				Inline: false,
			},
			{
				Name:   "/skip",
				Value:  "Skip the current song",
				Inline: false,
			},
			{
				Name:   "/loop",
				Value:  "Cycle the loop mode: off → song → queue",
				Inline: false,
			},
			{
				Name:   "/stop",
				Value:  "Stop playback, clear the queue and leave",
				Inline: false,
			},
			{
				Name:   "/volume",
				Value:  "Set the volume from 0 to 200%\n• Remembered for the next session",
				Inline: false,
			},
			{
				Name:   "📜 Info:",
				Inline: false,
			},
			{
				Name:   "/queue",
				Value:  "Show the current song and what's up next",
				Inline: false,
			},
			{
				Name:   "/nowplaying",
				Value:  "Repost the player controls at the bottom of the channel",
				Inline: false,
			},
			{
				Name:   "/history",
				Value:  "Show recently played songs in this server",
				Inline: false,
			},
			{
				Name:   "/help",
				Value:  "Show this help message",
				Inline: false,
			},
		},
	}
}
