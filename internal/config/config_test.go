package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "http://localhost:8000", cfg.ServerURL)
	assert.Equal(t, 3*time.Second, cfg.Grace)
	require.NoError(t, cfg.Validate())
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("INTERVO_SERVER", "https://interviews.example.com")
	t.Setenv("INTERVO_GRACE", "5s")
	t.Setenv("INTERVO_TIMEOUT", "30s")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, "https://interviews.example.com", cfg.ServerURL)
	assert.Equal(t, 5*time.Second, cfg.Grace)
	assert.Equal(t, 30*time.Second, cfg.CallTimeout)
}

func TestFromEnv_BadDuration(t *testing.T) {
	t.Setenv("INTERVO_GRACE", "soon")
	_, err := FromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "INTERVO_GRACE")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"ftp scheme", Config{ServerURL: "ftp://example.com", Grace: time.Second}},
		{"no host", Config{ServerURL: "http://", Grace: time.Second}},
		{"zero grace", Config{ServerURL: "http://localhost:8000", Grace: 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, tt.cfg.Validate())
		})
	}
}

func TestChannelURL(t *testing.T) {
	cfg := Config{ServerURL: "http://localhost:8000"}
	u, err := cfg.ChannelURL()
	require.NoError(t, err)
	assert.Equal(t, "ws://localhost:8000", u)

	cfg.ServerURL = "https://interviews.example.com/base"
	u, err = cfg.ChannelURL()
	require.NoError(t, err)
	assert.Equal(t, "wss://interviews.example.com/base", u)
}
