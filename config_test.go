package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("BOT_TOKEN", "123:abc")
	t.Setenv("ADMIN_ID", "42")
	t.Setenv("CHANNEL_IDS", "-1002593053252")
	t.Setenv("DATA_FILE", "")
	t.Setenv("HISTORY_FILE", "")
	t.Setenv("CHECK_INTERVAL", "")
	t.Setenv("WARN_WINDOW", "")
	t.Setenv("WARN_COOLDOWN", "")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "123:abc", cfg.Token)
	assert.Equal(t, int64(42), cfg.AdminID)
	assert.Equal(t, []int64{-1002593053252}, cfg.ChannelIDs)
	assert.Equal(t, "users.json", cfg.DataFile)
	assert.Equal(t, "history.json", cfg.HistoryFile)
	assert.Equal(t, 300*time.Second, cfg.CheckInterval)
	assert.Equal(t, 24*time.Hour, cfg.WarnWindow)
	assert.Equal(t, 12*time.Hour, cfg.WarnCooldown)
}

func TestLoadConfigMissingToken(t *testing.T) {
	t.Setenv("BOT_TOKEN", "")

	_, err := LoadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "BOT_TOKEN")
}

func TestLoadConfigChannelList(t *testing.T) {
	t.Setenv("BOT_TOKEN", "123:abc")
	t.Setenv("CHANNEL_IDS", "-100123, -100456 ,")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, []int64{-100123, -100456}, cfg.ChannelIDs)
}

func TestLoadConfigBadChannelID(t *testing.T) {
	t.Setenv("BOT_TOKEN", "123:abc")
	t.Setenv("CHANNEL_IDS", "не-число")

	_, err := LoadConfig()
	require.Error(t, err)
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("BOT_TOKEN", "123:abc")
	t.Setenv("CHANNEL_IDS", "")
	t.Setenv("CHECK_INTERVAL", "60")
	t.Setenv("WARN_WINDOW", "259200")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, 60*time.Second, cfg.CheckInterval)
	assert.Equal(t, 72*time.Hour, cfg.WarnWindow)
	assert.Empty(t, cfg.ChannelIDs)
}
