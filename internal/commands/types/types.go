package types

import (
	"botipy/internal/config"
	"botipy/internal/database"
	"botipy/internal/voice"

	"github.com/bwmarrin/discordgo"
)

// Command represents a Discord application command with its handler
type Command struct {
	ApplicationCommand *discordgo.ApplicationCommand
	HandlerFunc        func(s *discordgo.Session, i *discordgo.InteractionCreate)
	Development        bool
}

// BaseService provides common session hydration functionality for all services
type BaseService struct {
	Session *discordgo.Session // Exported for external hydration
}

// HydrateServiceDiscordSession hydrates the service with a Discord session
func (b *BaseService) HydrateServiceDiscordSession(s *discordgo.Session) error {
	b.Session = s
	return nil
}

// ScheduledJob is a recurring task a module wants run on a cron spec.
type ScheduledJob struct {
	Spec string // cron spec, e.g. "@daily" or "*/5 * * * *"
	Name string
	Fn   func() error
}

// ModuleService represents a service that requires session initialization
// and may have recurring scheduled tasks
type ModuleService interface {
	// HydrateServiceDiscordSession hydrates the service with a Discord session
	// This is called after the Discord session is established
	HydrateServiceDiscordSession(s *discordgo.Session) error

	// Jobs returns recurring tasks to register with the scheduler.
	// Returns nil if no scheduling is needed
	Jobs() []ScheduledJob
}

// CommandModule represents a module that can register commands
// Each module should contain:
// - Command definition(s)
// - Handler function(s)
// - Associated service if needed (max one service per module)
type CommandModule interface {
	// Register adds the module's commands to the provided map
	Register(commands map[string]*Command, deps *Dependencies)

	// Service returns the service that needs session initialization
	// Returns nil if the module has no service requiring initialization
	Service() ModuleService
}

// ComponentHandler is implemented by modules that own message components.
// Prefix is matched against the component's CustomID (e.g. "music::").
type ComponentHandler interface {
	ComponentPrefix() string
	HandleComponent(s *discordgo.Session, i *discordgo.InteractionCreate)
}

// Dependencies contains shared dependencies that command modules may need
type Dependencies struct {
	Config   *config.Config
	DB       *database.DB
	Session  *discordgo.Session // Set after bot initialization
	VoiceMgr *voice.Manager
}
