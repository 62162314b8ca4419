package commands

import (
	"context"
	"fmt"
	"strings"

	"botipy/internal/commands/modules/help"
	"botipy/internal/commands/modules/music"
	"botipy/internal/commands/modules/stats"
	"botipy/internal/commands/types"
	internalConfig "botipy/internal/config"
	"botipy/internal/database"
	internalVoice "botipy/internal/voice"

	"github.com/bwmarrin/discordgo"
)

// ModuleHandler manages command modules and routes interactions.
//
// The music module is also reached from outside the command system: the bot
// forwards voice state updates to it and shuts its players down on exit.
// It is accessed via GetModule for type-safe access.
type ModuleHandler struct {
	commands map[string]*types.Command
	modules  map[string]types.CommandModule
	order    []string
	config   *internalConfig.Config
	db       *database.DB
	deps     *types.Dependencies
	VoiceMgr *internalVoice.Manager
}

// NewModuleHandler creates a new module-based command handler
func NewModuleHandler(cfg *internalConfig.Config) *ModuleHandler {
	db, err := database.NewDB(cfg.GetDatabasePath())
	if err != nil {
		cfg.Logger.Warnf("Warning: Failed to initialize database: %v", err)
		db = nil
	}

	voiceMgr := internalVoice.NewManager(cfg.Logger)

	h := &ModuleHandler{
		commands: make(map[string]*types.Command),
		modules:  make(map[string]types.CommandModule),
		config:   cfg,
		db:       db,
		VoiceMgr: voiceMgr,
		deps: &types.Dependencies{
			Config:   cfg,
			DB:       db,
			Session:  nil, // Set later
			VoiceMgr: voiceMgr,
		},
	}

	h.registerModules()

	return h
}

// registerModules registers all command modules
func (h *ModuleHandler) registerModules() {
	musicMod := music.New(h.deps)

	modules := []struct {
		name   string
		module types.CommandModule
	}{
		{"help", help.New(h.deps)},
		{"music", musicMod},
		{"stats", stats.New(h.deps, musicMod.ActivePlayers)},
	}

	for _, m := range modules {
		m.module.Register(h.commands, h.deps)
		h.modules[m.name] = m.module
		h.order = append(h.order, m.name)
	}
}

// GetModule returns a module by name with type assertion.
// This is used for external access (bot event handlers).
//
// Example usage:
//
//	musicMod, ok := handler.GetModule("music").(*music.MusicModule)
func (h *ModuleHandler) GetModule(name string) types.CommandModule {
	return h.modules[name]
}

// GetDB returns the database instance
func (h *ModuleHandler) GetDB() *database.DB {
	return h.db
}

// RegisterCommands registers all slash commands with Discord
func (h *ModuleHandler) RegisterCommands(s *discordgo.Session) error {
	existingCommands, err := s.ApplicationCommands(s.State.User.ID, "")
	if err != nil {
		h.config.Logger.Warnf("Error fetching existing commands: %v", err)
		return err
	}

	existingByName := make(map[string]*discordgo.ApplicationCommand)
	for _, ec := range existingCommands {
		existingByName[ec.Name] = ec
	}

	for _, c := range h.commands {
		if c.Development {
			// Unregister development commands if they exist
			if existing := existingByName[c.ApplicationCommand.Name]; existing != nil {
				if err := s.ApplicationCommandDelete(s.State.User.ID, "", existing.ID); err != nil {
					h.config.Logger.Warnf("Error deleting command %s: %v", c.ApplicationCommand.Name, err)
				} else {
					h.config.Logger.Infof("Unregistered command: %s", c.ApplicationCommand.Name)
				}
			}
			continue
		}

		if existing := existingByName[c.ApplicationCommand.Name]; existing != nil {
			cmd, err := s.ApplicationCommandEdit(s.State.User.ID, "", existing.ID, c.ApplicationCommand)
			if err != nil {
				return err
			}
			c.ApplicationCommand.ID = cmd.ID
			h.config.Logger.Infof("Updated command: %s", cmd.Name)
		} else {
			cmd, err := s.ApplicationCommandCreate(s.State.User.ID, "", c.ApplicationCommand)
			if err != nil {
				return err
			}
			c.ApplicationCommand.ID = cmd.ID
			h.config.Logger.Infof("Registered command: %s", cmd.Name)
		}
	}

	return nil
}

// HandleInteraction routes slash command interactions to appropriate handlers
func (h *ModuleHandler) HandleInteraction(s *discordgo.Session, i *discordgo.InteractionCreate) {
	commandName := i.ApplicationCommandData().Name
	if commandName == "" {
		return
	}

	if cmd, exists := h.commands[commandName]; exists {
		cmd.HandlerFunc(s, i)
	}
}

// HandleComponentInteraction routes component interactions to the module
// owning the CustomID prefix
func (h *ModuleHandler) HandleComponentInteraction(s *discordgo.Session, i *discordgo.InteractionCreate) {
	cid := i.MessageComponentData().CustomID
	for _, name := range h.order {
		if ch, ok := h.modules[name].(types.ComponentHandler); ok && strings.HasPrefix(cid, ch.ComponentPrefix()) {
			ch.HandleComponent(s, i)
			return
		}
	}
	h.config.Logger.Warnf("Component interaction %q received but no module handles it", cid)
}

// HandleVoiceStateUpdate forwards voice state changes to the voice bridge and
// the music module.
func (h *ModuleHandler) HandleVoiceStateUpdate(s *discordgo.Session, vs *discordgo.VoiceStateUpdate) {
	h.VoiceMgr.OnVoiceStateUpdate(vs)
	if musicMod, ok := h.GetModule("music").(*music.MusicModule); ok {
		musicMod.HandleVoiceStateUpdate(s, vs)
	}
}

// UnregisterCommands removes all registered commands
func (h *ModuleHandler) UnregisterCommands(s *discordgo.Session) {
	existingCommands, err := s.ApplicationCommands(s.State.User.ID, "")
	if err != nil {
		h.config.Logger.Warnf("Error fetching existing commands: %v", err)
		return
	}

	for _, existingCmd := range existingCommands {
		if _, exists := h.commands[existingCmd.Name]; exists {
			err := s.ApplicationCommandDelete(s.State.User.ID, "", existingCmd.ID)
			if err != nil {
				h.config.Logger.Warnf("Error deleting command %s: %v", existingCmd.Name, err)
			} else {
				h.config.Logger.Infof("Unregistered command: %s", existingCmd.Name)
			}
		}
	}
}

// InitializeModuleServices hydrates services with the Discord session.
// Called after the Discord session is established.
func (h *ModuleHandler) InitializeModuleServices(s *discordgo.Session) error {
	// Update dependencies with session
	h.deps.Session = s
	h.VoiceMgr.SetSession(s)

	// Hydrate services for all modules with the Discord session
	for _, name := range h.order {
		if service := h.modules[name].Service(); service != nil {
			if err := service.HydrateServiceDiscordSession(s); err != nil {
				return fmt.Errorf("failed to hydrate %s service with Discord session: %w", name, err)
			}
		}
	}

	return nil
}

// RegisterModuleSchedulers registers recurring tasks from all modules with the scheduler.
// Called after services are initialized.
func (h *ModuleHandler) RegisterModuleSchedulers(scheduler interface {
	RegisterFunc(spec, name string, fn func() error) error
}) {
	for _, name := range h.order {
		service := h.modules[name].Service()
		if service == nil {
			continue
		}
		for _, job := range service.Jobs() {
			if err := scheduler.RegisterFunc(job.Spec, job.Name, job.Fn); err != nil {
				h.config.Logger.Errorf("Failed to register %s job %s: %v", name, job.Name, err)
			}
		}
	}
}

// Shutdown stops module background work and closes the database.
func (h *ModuleHandler) Shutdown(ctx context.Context) {
	if musicMod, ok := h.GetModule("music").(*music.MusicModule); ok {
		musicMod.Shutdown(ctx)
	}
	if h.db != nil {
		if err := h.db.Close(); err != nil {
			h.config.Logger.Warnf("Error closing database: %v", err)
		}
	}
}
