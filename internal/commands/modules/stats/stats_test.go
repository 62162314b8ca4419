package stats

import (
	"path/filepath"
	"testing"

	"botipy/internal/commands/types"
	"botipy/internal/config"
	"botipy/internal/database"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatsEmbed(t *testing.T) {
	db, err := database.NewDB(filepath.Join(t.TempDir(), "stats.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, db.RecordPlay(database.PlayRecord{GuildID: "g1", RequestedBy: "u1", Title: "A", SourceURL: "x"}))

	deps := &types.Dependencies{Config: config.NewMockConfig(nil), DB: db}
	m := New(deps, func() int { return 2 })

	cmds := map[string]*types.Command{}
	m.Register(cmds, deps)
	require.Contains(t, cmds, "stats")

	embed := m.statsEmbed()
	require.Len(t, embed.Fields, 4)
	assert.Equal(t, "2", embed.Fields[0].Value)
	assert.Equal(t, "1", embed.Fields[1].Value)
	assert.Equal(t, "1", embed.Fields[2].Value)
}

func TestStatsWithoutDatabase(t *testing.T) {
	m := New(&types.Dependencies{Config: config.NewMockConfig(nil)}, nil)

	embed := m.statsEmbed()
	require.Len(t, embed.Fields, 2)
	assert.Equal(t, "0", embed.Fields[0].Value)
	assert.Equal(t, "Database unavailable", embed.Fields[1].Value)
}
