// Package voice provides a bridge between discordgo's gateway and disgo's voice
// implementation. discordgo owns the main gateway WebSocket, while disgo handles
// the voice-specific WebSocket, UDP, and opus framing.
package voice

import (
	"context"
	"fmt"
	"sync"

	"github.com/bwmarrin/discordgo"
	"github.com/charmbracelet/log"
	disgoDiscord "github.com/disgoorg/disgo/discord"
	disgoGateway "github.com/disgoorg/disgo/gateway"
	disgovoice "github.com/disgoorg/disgo/voice"
	"github.com/disgoorg/snowflake/v2"
)

// Manager bridges discordgo's gateway with disgo's voice system.
// It translates discordgo events into disgo voice events and sends
// OP4 voice state updates through discordgo's gateway.
type Manager struct {
	mu      sync.Mutex
	session *discordgo.Session
	userID  snowflake.ID
	inner   disgovoice.Manager
	logger  *log.Logger
}

// NewManager creates a voice Manager. Call SetSession before use.
func NewManager(logger *log.Logger) *Manager {
	if logger == nil {
		logger = log.Default()
	}
	return &Manager{logger: logger}
}

// SetSession initialises the manager with the discordgo session.
// Must be called once the session is available (e.g. after bot login).
func (m *Manager) SetSession(s *discordgo.Session) {
	m.mu.Lock()
	defer m.mu.Unlock()

	uid, err := snowflake.Parse(s.State.User.ID)
	if err != nil {
		m.logger.Errorf("Voice: failed to parse bot user ID: %v", err)
		return
	}
	m.session = s
	m.userID = uid

	// StateUpdateFunc sends OP4 via discordgo's gateway.
	stateUpdate := func(ctx context.Context, guildID snowflake.ID, channelID *snowflake.ID, selfMute bool, selfDeaf bool) error {
		cid := ""
		if channelID != nil {
			cid = channelID.String()
		}
		return s.ChannelVoiceJoinManual(guildID.String(), cid, selfMute, selfDeaf)
	}

	m.inner = disgovoice.NewManager(stateUpdate, uid)
}

// Ready reports whether SetSession has run.
func (m *Manager) Ready() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.inner != nil
}

// OnVoiceStateUpdate forwards a discordgo VoiceStateUpdate to the disgo voice conn.
func (m *Manager) OnVoiceStateUpdate(vs *discordgo.VoiceStateUpdate) {
	m.mu.Lock()
	inner := m.inner
	m.mu.Unlock()
	if inner == nil || vs.VoiceState == nil {
		return
	}

	guildID, err := snowflake.Parse(vs.GuildID)
	if err != nil {
		return
	}
	userID, err := snowflake.Parse(vs.UserID)
	if err != nil {
		return
	}

	var channelID *snowflake.ID
	if vs.ChannelID != "" {
		cid, err := snowflake.Parse(vs.ChannelID)
		if err != nil {
			return
		}
		channelID = &cid
	}

	inner.HandleVoiceStateUpdate(disgoGateway.EventVoiceStateUpdate{
		VoiceState: disgoVoiceState(guildID, userID, channelID, vs.SessionID),
	})
}

// OnVoiceServerUpdate forwards a discordgo VoiceServerUpdate to the disgo voice conn.
func (m *Manager) OnVoiceServerUpdate(vs *discordgo.VoiceServerUpdate) {
	m.mu.Lock()
	inner := m.inner
	m.mu.Unlock()
	if inner == nil {
		return
	}

	guildID, err := snowflake.Parse(vs.GuildID)
	if err != nil {
		return
	}

	var endpoint *string
	if vs.Endpoint != "" {
		endpoint = &vs.Endpoint
	}

	inner.HandleVoiceServerUpdate(disgoGateway.EventVoiceServerUpdate{
		Token:    vs.Token,
		GuildID:  guildID,
		Endpoint: endpoint,
	})
}

// Connect joins channelID and returns a Sink that streams into it. The
// returned Sink is idle until Play is called.
func (m *Manager) Connect(ctx context.Context, guildID, channelID string) (*Sink, error) {
	conn, err := m.join(ctx, guildID, channelID)
	if err != nil {
		return nil, err
	}
	m.logger.Infof("Voice: joined channel %s in guild %s", channelID, guildID)

	return newSink(&connTransport{conn: conn}, channelID, func(ctx context.Context) {
		m.Leave(ctx, guildID)
	}, m.logger), nil
}

// join connects to the given voice channel and blocks until ready.
func (m *Manager) join(ctx context.Context, guildID, channelID string) (disgovoice.Conn, error) {
	m.mu.Lock()
	inner := m.inner
	m.mu.Unlock()
	if inner == nil {
		return nil, fmt.Errorf("voice manager not initialised")
	}

	gid, err := snowflake.Parse(guildID)
	if err != nil {
		return nil, fmt.Errorf("invalid guild ID: %w", err)
	}
	cid, err := snowflake.Parse(channelID)
	if err != nil {
		return nil, fmt.Errorf("invalid channel ID: %w", err)
	}

	// Reuse existing connection if one exists for this guild
	conn := inner.GetConn(gid)
	if conn == nil {
		conn = inner.CreateConn(gid)
	}
	if err := conn.Open(ctx, cid, false, true); err != nil { // not muted, deafened
		conn.Close(context.Background())
		return nil, fmt.Errorf("opening voice connection: %w", err)
	}
	return conn, nil
}

// Leave disconnects from voice in the given guild.
func (m *Manager) Leave(ctx context.Context, guildID string) {
	m.mu.Lock()
	inner := m.inner
	m.mu.Unlock()
	if inner == nil {
		return
	}

	gid, err := snowflake.Parse(guildID)
	if err != nil {
		return
	}

	conn := inner.GetConn(gid)
	if conn == nil {
		return
	}
	conn.Close(ctx)
	m.logger.Infof("Voice: left voice in guild %s", guildID)
}

// disgoVoiceState builds a minimal discord.VoiceState for the disgo voice bridge.
func disgoVoiceState(guildID, userID snowflake.ID, channelID *snowflake.ID, sessionID string) disgoDiscord.VoiceState {
	return disgoDiscord.VoiceState{
		GuildID:   guildID,
		ChannelID: channelID,
		UserID:    userID,
		SessionID: sessionID,
	}
}

// connTransport writes frames over a live disgo voice connection.
type connTransport struct {
	conn disgovoice.Conn
}

func (t *connTransport) SetSpeaking(ctx context.Context, speaking bool) error {
	flags := disgovoice.SpeakingFlagNone
	if speaking {
		flags = disgovoice.SpeakingFlagMicrophone
	}
	return t.conn.SetSpeaking(ctx, flags)
}

func (t *connTransport) Write(frame []byte) (int, error) {
	udp := t.conn.UDP()
	if udp == nil {
		return 0, fmt.Errorf("voice UDP connection not ready")
	}
	return udp.Write(frame)
}
