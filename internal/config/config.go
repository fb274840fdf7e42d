package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Channel defines the final, processed structure for a single channel.
type Channel struct {
	Name        string
	Id          string
	ManifestURL string
	// Schemes restricts tracking to these schemeIdUri values. Empty tracks every scheme.
	Schemes []string
}

// TracksScheme reports whether events of the given scheme should be tracked.
func (c *Channel) TracksScheme(scheme string) bool {
	if len(c.Schemes) == 0 {
		return true
	}
	for _, s := range c.Schemes {
		if s == scheme {
			return true
		}
	}
	return false
}

// ChannelConfig holds the fully processed application configuration.
type ChannelConfig struct {
	Name      string
	Id        string
	UserAgent string
	// RefreshInterval overrides the manifest's minimumUpdatePeriod when non-zero.
	RefreshInterval time.Duration
	Channels        []Channel
}

// rawChannel is used for intermediate unmarshaling from the config file.
type rawChannel struct {
	Name        string   `json:"Name" yaml:"name"`
	Id          string   `json:"Id" yaml:"id"`
	ManifestURL string   `json:"Manifest" yaml:"manifest"`
	Schemes     []string `json:"Schemes" yaml:"schemes"`
}

// rawConfig is the intermediate structure that maps directly to the config file.
type rawConfig struct {
	Name            string       `json:"Name" yaml:"name"`
	Id              string       `json:"Id" yaml:"id"`
	UserAgent       string       `json:"UserAgent" yaml:"userAgent"`
	RefreshInterval string       `json:"RefreshInterval" yaml:"refreshInterval"`
	Channels        []rawChannel `json:"Channels" yaml:"channels"`
}

// LoadConfig reads and parses the configuration file from the given path.
// Files ending in .yaml or .yml are parsed as YAML, anything else as JSON.
func LoadConfig(path string) (*ChannelConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file at %s: %w", path, err)
	}

	var rawCfg rawConfig
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &rawCfg); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config YAML: %w", err)
		}
	default:
		if err := json.Unmarshal(data, &rawCfg); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config JSON: %w", err)
		}
	}

	return rawCfg.process()
}

// process validates the raw config and turns it into a ChannelConfig.
func (rc *rawConfig) process() (*ChannelConfig, error) {
	var refresh time.Duration
	if rc.RefreshInterval != "" {
		d, err := time.ParseDuration(rc.RefreshInterval)
		if err != nil {
			return nil, fmt.Errorf("invalid RefreshInterval '%s': %w", rc.RefreshInterval, err)
		}
		if d < 0 {
			return nil, fmt.Errorf("invalid RefreshInterval '%s': must not be negative", rc.RefreshInterval)
		}
		refresh = d
	}

	if len(rc.Channels) == 0 {
		return nil, fmt.Errorf("config defines no channels")
	}

	seen := make(map[string]struct{}, len(rc.Channels))
	channels := make([]Channel, 0, len(rc.Channels))
	for i, ch := range rc.Channels {
		if ch.Id == "" {
			return nil, fmt.Errorf("channel #%d has no Id", i)
		}
		if ch.ManifestURL == "" {
			return nil, fmt.Errorf("channel '%s' has no Manifest", ch.Id)
		}
		if _, dup := seen[ch.Id]; dup {
			return nil, fmt.Errorf("duplicate channel ID found in config: %s", ch.Id)
		}
		seen[ch.Id] = struct{}{}

		channels = append(channels, Channel{
			Name:        ch.Name,
			Id:          ch.Id,
			ManifestURL: ch.ManifestURL,
			Schemes:     ch.Schemes,
		})
	}

	return &ChannelConfig{
		Name:            rc.Name,
		Id:              rc.Id,
		UserAgent:       rc.UserAgent,
		RefreshInterval: refresh,
		Channels:        channels,
	}, nil
}

// Channel returns the channel with the given id.
func (c *ChannelConfig) Channel(id string) (*Channel, bool) {
	for i := range c.Channels {
		if c.Channels[i].Id == id {
			return &c.Channels[i], true
		}
	}
	return nil, false
}
