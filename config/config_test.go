package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-icewatch/types"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("WEBHOOK_URL", "https://discord.com/api/webhooks/x/y")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "minneapolis", cfg.Locale.Name)
	assert.Equal(t, 50.0, cfg.MaxDistanceKM)
	assert.Equal(t, 2, cfg.MinCorroborationSources)
	assert.Equal(t, 6*time.Hour, cfg.ClusterExpiry)
	assert.Equal(t, 3*time.Hour, cfg.FreshMax)
	assert.Equal(t, 2*time.Hour, cfg.TemporalWindow)
	assert.Equal(t, 3.0, cfg.GeoWindowKM)
	assert.Equal(t, 0.25, cfg.SimThreshold)
	assert.Equal(t, 1024, cfg.QueueCapacity)
	assert.Equal(t, 30*time.Second, cfg.PollDeadline)
	assert.False(t, cfg.DryRun)

	iceout := cfg.Sources["iceout"]
	assert.True(t, iceout.Enabled)
	assert.Equal(t, types.TrustHigh, iceout.Trust)
	assert.Equal(t, 90*time.Second, iceout.Interval)
	assert.Equal(t, types.TrustNormal, cfg.Sources["bluesky"].Trust)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("WEBHOOK_URL", "https://discord.com/api/webhooks/x/y")
	t.Setenv("CLUSTER_EXPIRY_HOURS", "2.5")
	t.Setenv("SIM_THRESHOLD", "0.4")
	t.Setenv("BLUESKY_ENABLED", "false")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 150*time.Minute, cfg.ClusterExpiry)
	assert.Equal(t, 0.4, cfg.SimThreshold)
	assert.False(t, cfg.Sources["bluesky"].Enabled)
}

func TestLoadRequiresWebhookUnlessDryRun(t *testing.T) {
	t.Setenv("WEBHOOK_URL", "")
	t.Setenv("DRY_RUN", "")

	_, err := Load()
	require.Error(t, err)
	var cfgErr *types.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "WEBHOOK_URL", cfgErr.Field)

	t.Setenv("DRY_RUN", "true")
	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.DryRun)
}

func TestLoadLocale(t *testing.T) {
	loc, err := LoadLocale("")
	require.NoError(t, err)
	assert.Equal(t, "minneapolis", loc.Name)
	assert.InDelta(t, 44.9778, loc.CenterLat, 0.001)
	assert.InDelta(t, -93.2650, loc.CenterLon, 0.001)
	assert.Equal(t, 50.0, loc.RadiusKM)
	assert.NotEmpty(t, loc.GeoKeywords)
	assert.NotEmpty(t, loc.RSSFeeds)
	assert.Contains(t, loc.GeoKeywords, "uptown")

	_, err = LoadLocale("gotham")
	assert.Error(t, err)
}
