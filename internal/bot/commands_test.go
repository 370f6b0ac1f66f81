package bot

import (
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atlwiki/wikilink/internal/config"
)

func TestCommandTableAliases(t *testing.T) {
	commands := buildCommandTable()

	for _, alias := range []string{"verify", "link", "connect"} {
		cmd, ok := commands[alias]
		require.True(t, ok, "alias %q missing", alias)
		assert.Equal(t, "verify", cmd.name)
		assert.False(t, cmd.adminOnly)
	}

	for _, alias := range []string{"verified", "status", "list_verified"} {
		cmd, ok := commands[alias]
		require.True(t, ok, "alias %q missing", alias)
		assert.Equal(t, "verified", cmd.name)
		assert.True(t, cmd.adminOnly)
	}

	for _, alias := range []string{"unverify", "unlink", "disconnect"} {
		cmd, ok := commands[alias]
		require.True(t, ok, "alias %q missing", alias)
		assert.Equal(t, "unverify", cmd.name)
		// Self-unverify is open to everyone; targeting others is gated
		// inside the handler.
		assert.False(t, cmd.adminOnly)
	}

	cmd, ok := commands["lookup"]
	require.True(t, ok)
	assert.Equal(t, "lookup", cmd.name)

	_, ok = commands["help"]
	assert.False(t, ok)
}

func TestIsAdmin(t *testing.T) {
	b := &Bot{cfg: config.DiscordConfig{
		AllowedRoleIDs: []string{"admin-1", "admin-2"},
	}}

	assert.False(t, b.isAdmin(nil))
	assert.False(t, b.isAdmin(&discordgo.Member{}))
	assert.False(t, b.isAdmin(&discordgo.Member{Roles: []string{"member", "mod"}}))
	assert.True(t, b.isAdmin(&discordgo.Member{Roles: []string{"member", "admin-2"}}))
}

func TestIsAdminWithEmptyAllowList(t *testing.T) {
	b := &Bot{cfg: config.DiscordConfig{}}

	assert.False(t, b.isAdmin(&discordgo.Member{Roles: []string{"admin-1"}}))
}

func TestVerificationStartEmbedCarriesLink(t *testing.T) {
	user := &discordgo.User{ID: "42", Username: "alice"}
	embed := verificationStartEmbed(user, "https://link.example.org/verify?token=abc")

	require.NotEmpty(t, embed.Fields)
	assert.Contains(t, embed.Fields[0].Value, "https://link.example.org/verify?token=abc")
	assert.Contains(t, embed.Footer.Text, "alice")
}
