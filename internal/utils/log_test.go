package utils

import (
	"testing"

	"botipy/internal/config"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogToChannelRequiresChannel(t *testing.T) {
	cfg := config.NewMockConfig(map[string]interface{}{"bot_token": "test_token"})
	err := LogToChannel(cfg, nil, "Lookup failed", "boom")
	require.ErrorIs(t, err, ErrNoLogChannel)

	cfg = config.NewMockConfig(map[string]interface{}{"bot_token": "test_token", "log_channel_id": "123"})
	err = LogToChannel(cfg, nil, "Lookup failed", "boom")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNoLogChannel)
}

func TestNewErrorEmbed(t *testing.T) {
	e := NewErrorEmbed("Oops", "details")
	assert.Equal(t, "❌ Oops", e.Title)
	assert.Equal(t, Colors.Error(), e.Color)
	assert.NotNil(t, e.Footer)
}

func TestResponses(t *testing.T) {
	r := MessageResponse("hi", true)
	assert.Equal(t, "hi", r.Data.Content)
	assert.Equal(t, discordgo.MessageFlagsEphemeral, r.Data.Flags)

	r = EmbedResponse(false, NewEmbed(), NewEmbed())
	assert.Len(t, r.Data.Embeds, 2)
	assert.Zero(t, r.Data.Flags)
}
