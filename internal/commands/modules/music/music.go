package music

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"botipy/internal/commands/types"
	"botipy/internal/config"
	internalMusic "botipy/internal/music"
	"botipy/internal/utils"

	"github.com/bwmarrin/discordgo"
)

const (
	playTimeout    = 45 * time.Second
	controlTimeout = 10 * time.Second
	historyLimit   = 10
	maxVolumeLevel = 200
)

type musicOpts struct {
	Respond      func(s *discordgo.Session, i *discordgo.Interaction, resp *discordgo.InteractionResponse) error
	EditResponse func(s *discordgo.Session, i *discordgo.Interaction, edit *discordgo.WebhookEdit) error
}

func defaultMusicOpts() musicOpts {
	return musicOpts{
		Respond:      respond,
		EditResponse: editResponse,
	}
}

func respond(s *discordgo.Session, i *discordgo.Interaction, resp *discordgo.InteractionResponse) error {
	return s.InteractionRespond(i, resp)
}

func editResponse(s *discordgo.Session, i *discordgo.Interaction, edit *discordgo.WebhookEdit) error {
	_, err := s.InteractionResponseEdit(i, edit)
	return err
}

// MusicModule implements the CommandModule interface for queued playback
type MusicModule struct {
	config  *config.Config
	service *MusicService
	player  *internalMusic.Service
	opts    musicOpts
}

// New creates a new music module
func New(deps *types.Dependencies) *MusicModule {
	cfg := deps.Config
	svc := newMusicService(cfg, deps.DB)
	session := func() *discordgo.Session { return svc.Session }

	player := internalMusic.NewService(internalMusic.ServiceConfig{
		Resolver: internalMusic.NewYouTubeResolver(internalMusic.YouTubeResolverOptions{
			CookiesFile: cfg.GetYtdlpCookiesFile(),
			Proxy:       cfg.GetYtdlpProxy(),
			Workers:     cfg.GetResolverWorkers(),
			Logger:      cfg.Logger,
		}),
		Opener:              &internalMusic.FFmpegOpener{Path: cfg.GetFFmpegPath(), Logger: cfg.Logger},
		Connector:           voiceConnector{mgr: deps.VoiceMgr},
		Surface:             discordSurface{session: session},
		Locator:             stateLocator{session: session},
		Logger:              cfg.Logger,
		PanelEditsPerSecond: cfg.GetPanelEditRate(),
		Volume:              svc.guildVolume,
		OnTrackStart:        svc.recordPlay,
	})

	return &MusicModule{
		config:  cfg,
		service: svc,
		player:  player,
		opts:    defaultMusicOpts(),
	}
}

// Register adds the music commands to the command map
func (m *MusicModule) Register(cmds map[string]*types.Command, deps *types.Dependencies) {
	guildOnly := &[]discordgo.InteractionContextType{discordgo.InteractionContextGuild}
	minVolume := float64(0)

	cmds["play"] = &types.Command{
		ApplicationCommand: &discordgo.ApplicationCommand{
			Name:        "play",
			Description: "Play a song or add it to the queue",
			Contexts:    guildOnly,
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "query",
					Description: "Search terms or a link",
					Required:    true,
				},
			},
		},
		HandlerFunc: m.handlePlay,
	}
	cmds["pause"] = &types.Command{
		ApplicationCommand: &discordgo.ApplicationCommand{
			Name:        "pause",
			Description: "Pause or resume playback",
			Contexts:    guildOnly,
		},
		HandlerFunc: m.handlePause,
	}
	cmds["skip"] = &types.Command{
		ApplicationCommand: &discordgo.ApplicationCommand{
			Name:        "skip",
			Description: "Skip the current song",
			Contexts:    guildOnly,
		},
		HandlerFunc: m.handleSkip,
	}
	cmds["loop"] = &types.Command{
		ApplicationCommand: &discordgo.ApplicationCommand{
			Name:        "loop",
			Description: "Cycle the loop mode: off, song, queue",
			Contexts:    guildOnly,
		},
		HandlerFunc: m.handleLoop,
	}
	cmds["stop"] = &types.Command{
		ApplicationCommand: &discordgo.ApplicationCommand{
			Name:        "stop",
			Description: "Stop playback, clear the queue and leave the voice channel",
			Contexts:    guildOnly,
		},
		HandlerFunc: m.handleStop,
	}
	cmds["queue"] = &types.Command{
		ApplicationCommand: &discordgo.ApplicationCommand{
			Name:        "queue",
			Description: "Show the upcoming songs",
			Contexts:    guildOnly,
		},
		HandlerFunc: m.handleQueue,
	}
	cmds["nowplaying"] = &types.Command{
		ApplicationCommand: &discordgo.ApplicationCommand{
			Name:        "nowplaying",
			Description: "Repost the player controls at the bottom of the channel",
			Contexts:    guildOnly,
		},
		HandlerFunc: m.handleNowPlaying,
	}
	cmds["volume"] = &types.Command{
		ApplicationCommand: &discordgo.ApplicationCommand{
			Name:        "volume",
			Description: "Set the playback volume",
			Contexts:    guildOnly,
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionInteger,
					Name:        "level",
					Description: "Volume in percent (0-200)",
					Required:    true,
					MinValue:    &minVolume,
					MaxValue:    maxVolumeLevel,
				},
			},
		},
		HandlerFunc: m.handleVolume,
	}
	cmds["history"] = &types.Command{
		ApplicationCommand: &discordgo.ApplicationCommand{
			Name:        "history",
			Description: "Show recently played songs in this server",
			Contexts:    guildOnly,
		},
		HandlerFunc: m.handleHistory,
	}
}

// Service returns the module's service
func (m *MusicModule) Service() types.ModuleService {
	return m.service
}

// ComponentPrefix is the CustomID prefix of the player panel buttons
func (m *MusicModule) ComponentPrefix() string {
	return componentPrefix
}

// ActivePlayers reports how many guilds have a live player
func (m *MusicModule) ActivePlayers() int {
	return m.player.Registry().Len()
}

// Shutdown stops every guild's player
func (m *MusicModule) Shutdown(ctx context.Context) {
	m.player.Shutdown(ctx)
}

// handlePlay handles the /play slash command
func (m *MusicModule) handlePlay(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.GuildID == "" {
		m.respondEphemeral(s, i, "❌ This command can only be used in a server.")
		return
	}
	query := strings.TrimSpace(optionString(i, "query"))
	if query == "" {
		m.respondEphemeral(s, i, "❌ Please provide something to search for.")
		return
	}

	// Searching can take a few seconds
	_ = m.opts.Respond(s, i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
	})

	ctx, cancel := context.WithTimeout(context.Background(), playTimeout)
	defer cancel()

	res, err := m.player.Play(ctx, internalMusic.PlayRequest{
		GuildID:       i.GuildID,
		TextChannelID: i.ChannelID,
		UserID:        invokerID(i),
		Query:         query,
	})
	if err != nil {
		m.logError("play", i.GuildID, err)
		m.editContent(s, i, errorMessage(err))
		return
	}

	embeds := []*discordgo.MessageEmbed{trackAddedEmbed(res)}
	_ = m.opts.EditResponse(s, i.Interaction, &discordgo.WebhookEdit{Embeds: &embeds})
}

// handlePause handles the /pause slash command
func (m *MusicModule) handlePause(s *discordgo.Session, i *discordgo.InteractionCreate) {
	state, err := m.player.Controls().TogglePause(i.GuildID, invokerID(i))
	if err != nil {
		m.respondEphemeral(s, i, errorMessage(err))
		return
	}
	if state == internalMusic.StatePaused {
		m.respondPublic(s, i, "⏸️ Paused.")
		return
	}
	m.respondPublic(s, i, "▶️ Resumed.")
}

// handleSkip handles the /skip slash command
func (m *MusicModule) handleSkip(s *discordgo.Session, i *discordgo.InteractionCreate) {
	t, err := m.player.Controls().Skip(i.GuildID, invokerID(i))
	if err != nil {
		m.respondEphemeral(s, i, errorMessage(err))
		return
	}
	m.respondPublic(s, i, fmt.Sprintf("⏭️ Skipped **%s**.", escape(t.Title)))
}

// handleLoop handles the /loop slash command
func (m *MusicModule) handleLoop(s *discordgo.Session, i *discordgo.InteractionCreate) {
	mode, err := m.player.Controls().ToggleLoop(i.GuildID, invokerID(i))
	if err != nil {
		m.respondEphemeral(s, i, errorMessage(err))
		return
	}
	m.respondPublic(s, i, fmt.Sprintf("🔁 Loop mode: **%s**", mode))
}

// handleStop handles the /stop slash command
func (m *MusicModule) handleStop(s *discordgo.Session, i *discordgo.InteractionCreate) {
	ctx, cancel := context.WithTimeout(context.Background(), controlTimeout)
	defer cancel()

	if err := m.player.Controls().Stop(ctx, i.GuildID, invokerID(i)); err != nil {
		m.respondEphemeral(s, i, errorMessage(err))
		return
	}
	m.respondPublic(s, i, "⏹️ Stopped and left the voice channel.")
}

// handleVolume handles the /volume slash command
func (m *MusicModule) handleVolume(s *discordgo.Session, i *discordgo.InteractionCreate) {
	level := optionInt(i, "level")
	if level < 0 || level > maxVolumeLevel {
		m.respondEphemeral(s, i, fmt.Sprintf("❌ Volume must be between 0 and %d.", maxVolumeLevel))
		return
	}

	v, err := m.player.Controls().SetVolume(i.GuildID, invokerID(i), float64(level)/100)
	if err != nil {
		m.respondEphemeral(s, i, errorMessage(err))
		return
	}
	m.service.saveVolume(i.GuildID, v)
	m.respondPublic(s, i, fmt.Sprintf("🔊 Volume set to **%d%%**.", percent(v)))
}

// handleQueue handles the /queue slash command
func (m *MusicModule) handleQueue(s *discordgo.Session, i *discordgo.InteractionCreate) {
	p := m.player.Player(i.GuildID)
	if p == nil {
		m.respondEphemeral(s, i, errorMessage(internalMusic.ErrNotConnected))
		return
	}
	_ = m.opts.Respond(s, i.Interaction, utils.EmbedResponse(false, queueEmbed(p.NowPlaying(), p.Queue())))
}

// handleNowPlaying handles the /nowplaying slash command
func (m *MusicModule) handleNowPlaying(s *discordgo.Session, i *discordgo.InteractionCreate) {
	p := m.player.Player(i.GuildID)
	if p == nil {
		m.respondEphemeral(s, i, errorMessage(internalMusic.ErrNotConnected))
		return
	}
	p.RepostPanel()
	m.respondEphemeral(s, i, "📌 Player controls reposted.")
}

// handleHistory handles the /history slash command
func (m *MusicModule) handleHistory(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if m.service.db == nil {
		m.respondEphemeral(s, i, "❌ Play history is unavailable.")
		return
	}
	records, err := m.service.db.RecentPlays(i.GuildID, historyLimit)
	if err != nil {
		m.config.Logger.Errorf("Music: failed to load history for guild %s: %v", i.GuildID, err)
		m.respondEphemeral(s, i, "❌ Couldn't load play history.")
		return
	}

	var b strings.Builder
	if len(records) == 0 {
		b.WriteString("Nothing has been played here yet.")
	}
	for idx, rec := range records {
		fmt.Fprintf(&b, "`%d.` [%s](%s) • %s <t:%d:R>\n", idx+1, escape(rec.Title), rec.SourceURL, mention(rec.RequestedBy), rec.PlayedAt.Unix())
	}

	embed := utils.NewEmbed()
	embed.Title = "🕘 Recently played"
	embed.Description = b.String()
	embed.Color = utils.Colors.Info()
	_ = m.opts.Respond(s, i.Interaction, utils.EmbedResponse(true, embed))
}

// HandleComponent handles the player panel buttons
func (m *MusicModule) HandleComponent(s *discordgo.Session, i *discordgo.InteractionCreate) {
	guildID, userID := i.GuildID, invokerID(i)
	controls := m.player.Controls()

	var err error
	switch i.MessageComponentData().CustomID {
	case buttonPause:
		_, err = controls.TogglePause(guildID, userID)
	case buttonSkip:
		_, err = controls.Skip(guildID, userID)
	case buttonLoop:
		_, err = controls.ToggleLoop(guildID, userID)
	case buttonStop:
		ctx, cancel := context.WithTimeout(context.Background(), controlTimeout)
		err = controls.Stop(ctx, guildID, userID)
		cancel()
	default:
		m.respondEphemeral(s, i, "❌ Unknown action.")
		return
	}

	if err != nil {
		m.respondEphemeral(s, i, errorMessage(err))
		return
	}
	// The player edits the panel itself
	_ = m.opts.Respond(s, i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredMessageUpdate,
	})
}

// HandleVoiceStateUpdate tears a guild's player down when the bot is removed
// from its voice channel by someone else.
func (m *MusicModule) HandleVoiceStateUpdate(s *discordgo.Session, vs *discordgo.VoiceStateUpdate) {
	if vs.VoiceState == nil || vs.ChannelID != "" {
		return
	}
	if s.State == nil || s.State.User == nil || vs.UserID != s.State.User.ID {
		return
	}

	p := m.player.Player(vs.GuildID)
	if p == nil {
		return
	}
	// A late event for a previous connection must not end the current one.
	// A player still joining has no channel yet, so the event is not about it.
	current := p.ChannelID()
	if current == "" {
		return
	}
	if vs.BeforeUpdate != nil && vs.BeforeUpdate.ChannelID != "" && vs.BeforeUpdate.ChannelID != current {
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), controlTimeout)
		defer cancel()
		m.player.Disconnected(ctx, vs.GuildID)
	}()
}

// errorMessage maps playback errors to what the user is told
func errorMessage(err error) string {
	var resErr *internalMusic.ResolutionError
	switch {
	case errors.Is(err, internalMusic.ErrNotInVoice):
		return "❌ Join a voice channel first."
	case errors.Is(err, internalMusic.ErrPermission):
		return "❌ You must be in the same voice channel as the bot."
	case errors.Is(err, internalMusic.ErrNotConnected):
		return "❌ I'm not playing anything in this server."
	case errors.Is(err, internalMusic.ErrNothingPlaying):
		return "❌ Nothing is playing right now."
	case errors.Is(err, internalMusic.ErrNotFound):
		return "🔍 No results for that search."
	case errors.Is(err, internalMusic.ErrTerminated):
		return "❌ The player just shut down, try again."
	case errors.As(err, &resErr):
		return "⚠️ The search service isn't responding, try again in a moment."
	case errors.Is(err, context.DeadlineExceeded):
		return "⌛ That took too long, try again."
	default:
		return "❌ Something went wrong."
	}
}

func (m *MusicModule) logError(action, guildID string, err error) {
	switch {
	case errors.Is(err, internalMusic.ErrNotInVoice),
		errors.Is(err, internalMusic.ErrPermission),
		errors.Is(err, internalMusic.ErrNotFound):
		return
	}
	m.config.Logger.Warnf("Music: %s failed in guild %s: %v", action, guildID, err)

	var resErr *internalMusic.ResolutionError
	if errors.As(err, &resErr) && m.config.GetLogChannelID() != "" {
		go func() {
			msg := fmt.Sprintf("`/%s` in guild %s failed: %v", action, guildID, err)
			if err := utils.LogToChannel(m.config, m.service.Session, "Lookup failed", msg); err != nil {
				m.config.Logger.Warnf("Music: failed to report to log channel: %v", err)
			}
		}()
	}
}

func (m *MusicModule) respondEphemeral(s *discordgo.Session, i *discordgo.InteractionCreate, msg string) {
	_ = m.opts.Respond(s, i.Interaction, utils.MessageResponse(msg, true))
}

func (m *MusicModule) respondPublic(s *discordgo.Session, i *discordgo.InteractionCreate, msg string) {
	_ = m.opts.Respond(s, i.Interaction, utils.MessageResponse(msg, false))
}

// editContent edits a deferred interaction response
func (m *MusicModule) editContent(s *discordgo.Session, i *discordgo.InteractionCreate, msg string) {
	_ = m.opts.EditResponse(s, i.Interaction, &discordgo.WebhookEdit{Content: &msg})
}

func invokerID(i *discordgo.InteractionCreate) string {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User.ID
	}
	if i.User != nil {
		return i.User.ID
	}
	return ""
}

func optionString(i *discordgo.InteractionCreate, name string) string {
	for _, opt := range i.ApplicationCommandData().Options {
		if opt.Name == name && opt.Type == discordgo.ApplicationCommandOptionString {
			return opt.StringValue()
		}
	}
	return ""
}

func optionInt(i *discordgo.InteractionCreate, name string) int {
	for _, opt := range i.ApplicationCommandData().Options {
		if opt.Name == name && opt.Type == discordgo.ApplicationCommandOptionInteger {
			return int(opt.IntValue())
		}
	}
	return -1
}
