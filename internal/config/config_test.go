package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(Options{})
	require.NoError(t, err)

	assert.Equal(t, DefaultDomain, cfg.Domain)
	assert.Equal(t, "ws://localhost:8080/ws", cfg.WebSocketURL)
	assert.Equal(t, []string{DefaultSTUN1, DefaultSTUN2}, cfg.GetSTUNServers())
	assert.Nil(t, cfg.GetTURNServers())
	assert.True(t, cfg.AutoMedia)
}

func TestLoadFlagBeatsEnv(t *testing.T) {
	t.Setenv("HUDDLE_DOMAIN", "env.example.com")
	t.Setenv("STUN_SERVER", "stun:env.example.com:3478")

	cfg, err := Load(Options{Domain: "flag.example.com"})
	require.NoError(t, err)

	assert.Equal(t, "flag.example.com", cfg.Domain)
	assert.Equal(t, "wss://flag.example.com/ws", cfg.WebSocketURL)
	assert.Equal(t, []string{"stun:env.example.com:3478"}, cfg.GetSTUNServers())
}

func TestLoadServerURLOverride(t *testing.T) {
	cfg, err := Load(Options{ServerURL: "ws://10.0.0.5:9000/signal"})
	require.NoError(t, err)
	assert.Equal(t, "ws://10.0.0.5:9000/signal", cfg.WebSocketURL)
}

func TestTURNExpansion(t *testing.T) {
	cfg, err := Load(Options{TURNServer: "turn:turn.example.com", TURNUser: "u", TURNPass: "p"})
	require.NoError(t, err)

	servers := cfg.GetTURNServers()
	require.Len(t, servers, 3)
	assert.Equal(t, "turn:turn.example.com:3478?transport=udp", servers[0])
	assert.Equal(t, "turn:turn.example.com:3478?transport=tcp", servers[1])
	assert.Equal(t, "turns:turn.example.com:5349?transport=tcp", servers[2])

	user, pass := cfg.GetTURNCredentials()
	assert.Equal(t, "u", user)
	assert.Equal(t, "p", pass)
}

func TestNoMedia(t *testing.T) {
	cfg, err := Load(Options{NoMedia: true})
	require.NoError(t, err)
	assert.False(t, cfg.AutoMedia)
}
