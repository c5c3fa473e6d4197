package services

import (
	"fmt"

	"git.solsynth.dev/hypernet/feedsync/pkg/internal/models"
	"github.com/spf13/viper"
)

type FeedConfig struct {
	Scope     models.Scope `mapstructure:"scope"`
	UserID    string       `mapstructure:"user_id"`
	QueueSize int          `mapstructure:"queue_size"`
	// Resync is a cron expression, empty disables the periodic reload
	Resync string `mapstructure:"resync"`
}

// ReadFeedConfig loads the feed section of the settings.
func ReadFeedConfig() (FeedConfig, error) {
	config := FeedConfig{
		Scope:     models.ScopeAll,
		QueueSize: 1024,
	}
	if err := viper.UnmarshalKey("feed", &config); err != nil {
		return config, fmt.Errorf("failed to read feed settings: %v", err)
	}
	if config.Scope != models.ScopeAll && config.Scope != models.ScopeFollowing {
		return config, fmt.Errorf("%w: %q", ErrUnsupportedScope, config.Scope)
	}
	if config.QueueSize <= 0 {
		config.QueueSize = 1024
	}
	return config, nil
}
