package music

import (
	"context"
	"sync"
)

// Registry maps guild IDs to their live Player. There is at most one
// Player per guild.
type Registry struct {
	players sync.Map // guildID → *Player
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// GetOrCreate returns the guild's player, calling create only when none is
// registered. The bool reports whether a new player was stored.
func (r *Registry) GetOrCreate(guildID string, create func() *Player) (*Player, bool) {
	if v, ok := r.players.Load(guildID); ok {
		return v.(*Player), false
	}

	p := create()
	p.release = func() { r.players.CompareAndDelete(guildID, p) }

	actual, loaded := r.players.LoadOrStore(guildID, p)
	if loaded {
		p.cancel()
		return actual.(*Player), false
	}
	return p, true
}

// Get returns the guild's player or nil.
func (r *Registry) Get(guildID string) *Player {
	if v, ok := r.players.Load(guildID); ok {
		return v.(*Player)
	}
	return nil
}

// Remove evicts p if it is still the guild's registered player.
func (r *Registry) Remove(guildID string, p *Player) bool {
	return r.players.CompareAndDelete(guildID, p)
}

// Len returns the number of live players.
func (r *Registry) Len() int {
	n := 0
	r.players.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

// ShutdownAll stops every player, used when the bot exits.
func (r *Registry) ShutdownAll(ctx context.Context) {
	r.players.Range(func(k, v any) bool {
		p := v.(*Player)
		r.players.CompareAndDelete(k, p)
		p.Shutdown(ctx)
		return true
	})
}
