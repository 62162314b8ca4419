package stats

import (
	"fmt"

	"botipy/internal/commands/types"
	"botipy/internal/config"
	"botipy/internal/database"
	"botipy/internal/utils"

	"github.com/bwmarrin/discordgo"
)

// StatsModule provides the /stats command with playback counters (intended for admins).
type StatsModule struct {
	config        *config.Config
	db            *database.DB
	activePlayers func() int
}

// New creates a new stats module. activePlayers reports how many guilds are
// currently connected to voice.
func New(deps *types.Dependencies, activePlayers func() int) *StatsModule {
	return &StatsModule{config: deps.Config, db: deps.DB, activePlayers: activePlayers}
}

// Register registers /stats.
func (m *StatsModule) Register(cmds map[string]*types.Command, deps *types.Dependencies) {
	var adminPerms int64 = discordgo.PermissionAdministrator

	cmds["stats"] = &types.Command{
		ApplicationCommand: &discordgo.ApplicationCommand{
			Name:                     "stats",
			Description:              "Show playback statistics (admin only)",
			DefaultMemberPermissions: &adminPerms,
		},
		HandlerFunc: m.handleStats,
	}
}

// handleStats responds with the current counters.
func (m *StatsModule) handleStats(s *discordgo.Session, i *discordgo.InteractionCreate) {
	_ = s.InteractionRespond(i.Interaction, utils.EmbedResponse(true, m.statsEmbed()))
}

func (m *StatsModule) statsEmbed() *discordgo.MessageEmbed {
	players := 0
	if m.activePlayers != nil {
		players = m.activePlayers()
	}

	fields := []*discordgo.MessageEmbedField{
		{Name: "Active players", Value: fmt.Sprintf("%d", players), Inline: true},
	}

	if m.db == nil {
		fields = append(fields, &discordgo.MessageEmbedField{Name: "History", Value: "Database unavailable", Inline: true})
	} else if dbStats, err := m.db.GetStats(); err != nil {
		m.config.Logger.Errorf("Stats: failed to read database stats: %v", err)
		fields = append(fields, &discordgo.MessageEmbedField{Name: "History", Value: "Failed to read database", Inline: true})
	} else {
		fields = append(fields,
			&discordgo.MessageEmbedField{Name: "Songs played", Value: fmt.Sprintf("%v", dbStats["total_plays"]), Inline: true},
			&discordgo.MessageEmbedField{Name: "Servers", Value: fmt.Sprintf("%v", dbStats["guilds"]), Inline: true},
			&discordgo.MessageEmbedField{Name: "Last played", Value: fmt.Sprintf("%v", dbStats["last_played"]), Inline: false},
		)
	}

	embed := utils.NewEmbed()
	embed.Title = "📊 Playback stats"
	embed.Fields = fields
	return embed
}

// Service returns nil; this module has no background services
func (m *StatsModule) Service() types.ModuleService { return nil }
