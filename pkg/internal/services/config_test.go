package services

import (
	"testing"

	"git.solsynth.dev/hypernet/feedsync/pkg/internal/models"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadFeedConfig(t *testing.T) {
	t.Cleanup(viper.Reset)

	viper.Set("feed.scope", "following")
	viper.Set("feed.user_id", "u1")
	viper.Set("feed.resync", "@every 5m")

	config, err := ReadFeedConfig()
	require.NoError(t, err)
	assert.Equal(t, models.ScopeFollowing, config.Scope)
	assert.Equal(t, "u1", config.UserID)
	assert.Equal(t, "@every 5m", config.Resync)
	assert.Equal(t, 1024, config.QueueSize)
}

func TestReadFeedConfigRejectsUnknownScope(t *testing.T) {
	t.Cleanup(viper.Reset)

	viper.Set("feed.scope", "trending")

	_, err := ReadFeedConfig()
	assert.ErrorIs(t, err, ErrUnsupportedScope)
}
