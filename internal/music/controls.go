package music

import "context"

// Controls are the transport operations users invoke from commands and panel
// buttons. Every operation requires a live player in the guild and the
// invoker to be in the player's voice channel.
type Controls struct {
	registry *Registry
	locator  VoiceLocator
}

// NewControls creates Controls over registry, checking membership with locator.
func NewControls(registry *Registry, locator VoiceLocator) *Controls {
	return &Controls{registry: registry, locator: locator}
}

// authorize returns the guild's player if userID may control it.
func (c *Controls) authorize(guildID, userID string) (*Player, error) {
	p := c.registry.Get(guildID)
	if p == nil {
		return nil, ErrNotConnected
	}
	channelID := p.ChannelID()
	if channelID == "" {
		return nil, ErrNotConnected
	}
	if c.locator.UserVoiceChannel(guildID, userID) != channelID {
		return nil, ErrPermission
	}
	return p, nil
}

// TogglePause pauses or resumes the current track and returns the new state.
func (c *Controls) TogglePause(guildID, userID string) (State, error) {
	p, err := c.authorize(guildID, userID)
	if err != nil {
		return StateIdle, err
	}
	return p.TogglePause()
}

// Skip ends the current track and returns it.
func (c *Controls) Skip(guildID, userID string) (Track, error) {
	p, err := c.authorize(guildID, userID)
	if err != nil {
		return Track{}, err
	}
	return p.Skip()
}

// ToggleLoop advances the loop mode and returns the new one.
func (c *Controls) ToggleLoop(guildID, userID string) (LoopMode, error) {
	p, err := c.authorize(guildID, userID)
	if err != nil {
		return LoopNone, err
	}
	return p.ToggleLoop()
}

// SetVolume sets the playback volume and returns the applied value.
func (c *Controls) SetVolume(guildID, userID string, v float64) (float64, error) {
	p, err := c.authorize(guildID, userID)
	if err != nil {
		return 0, err
	}
	return p.SetVolume(v), nil
}

// Stop evicts the guild's player from the registry, then shuts it down and
// waits for its consumer to exit.
func (c *Controls) Stop(ctx context.Context, guildID, userID string) error {
	p, err := c.authorize(guildID, userID)
	if err != nil {
		return err
	}

	c.registry.Remove(guildID, p)
	p.Shutdown(ctx)

	select {
	case <-p.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
