// Package client implements the session side of the relay: a local
// replica of the room collection, live over WebSocket when possible,
// polled over REST when not. Rendering is someone else's job; the
// session only invokes a change hook.
package client

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	ServerAddr string `envconfig:"RELAY_SERVER_ADDR" default:"localhost:8080"`
	CachePath  string `envconfig:"RELAY_CACHE_PATH" default:"rooms-cache.json"`
	Username   string `envconfig:"RELAY_USERNAME"`
	LogLevel   string `envconfig:"RELAY_LOG_LEVEL" default:"info"`
	// Reconnect, poll and cache sync all share the same 5s cadence
	ReconnectDelay    time.Duration `envconfig:"RELAY_RECONNECT_DELAY" default:"5s"`
	PollInterval      time.Duration `envconfig:"RELAY_POLL_INTERVAL" default:"5s"`
	CacheSyncInterval time.Duration `envconfig:"RELAY_CACHE_SYNC_INTERVAL" default:"5s"`
}

func LoadConfig() (Config, error) {
	var cfg Config
	err := envconfig.Process("", &cfg)
	return cfg, err
}
