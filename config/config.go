// Package config loads gateway connection configuration from standard locations.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/driftlock/gatewaykit/errors"
)

// Config holds everything needed to reach and identify against a gateway.
// The connection fields (URL and credentials) are immutable per client
// instance; a change forces client recreation via the registry.
type Config struct {
	// GatewayURL is the WebSocket endpoint, e.g. "ws://localhost:18789/gateway".
	GatewayURL string `toml:"gateway_url"`

	// AuthToken is the optional gateway auth token.
	AuthToken string `toml:"auth_token"`

	// AuthPassword is the optional gateway auth password.
	AuthPassword string `toml:"auth_password"`

	// ClientID identifies this client to the gateway.
	ClientID string `toml:"client_id"`

	// DisplayName is a human-readable name shown in gateway listings.
	DisplayName string `toml:"display_name"`

	// Role requested during the handshake.
	Role string `toml:"role"`

	// Scopes requested during the handshake.
	Scopes []string `toml:"scopes"`

	// RequestTimeout bounds every correlated request.
	RequestTimeout time.Duration `toml:"-"`

	// HandshakeTimeout bounds the dial plus connect handshake.
	HandshakeTimeout time.Duration `toml:"-"`

	// ReconnectInterval is the initial reconnect backoff.
	ReconnectInterval time.Duration `toml:"-"`

	// MaxReconnectInterval caps the exponential backoff.
	MaxReconnectInterval time.Duration `toml:"-"`

	// PingInterval for keepalive pings (0 = disabled).
	PingInterval time.Duration `toml:"-"`

	// WriteTimeout for socket writes.
	WriteTimeout time.Duration `toml:"-"`

	// MaxMessageSize limits incoming frame size.
	MaxMessageSize int64 `toml:"-"`
}

// Default returns configuration with sensible defaults.
func Default() Config {
	return Config{
		GatewayURL:           "ws://127.0.0.1:18789/gateway",
		ClientID:             "gatewaykit",
		DisplayName:          "gatewaykit client",
		Role:                 "operator",
		Scopes:               []string{"chat"},
		RequestTimeout:       30 * time.Second,
		HandshakeTimeout:     10 * time.Second,
		ReconnectInterval:    time.Second,
		MaxReconnectInterval: 30 * time.Second,
		PingInterval:         30 * time.Second,
		WriteTimeout:         10 * time.Second,
		MaxMessageSize:       1024 * 1024, // 1MB
	}
}

// Validate checks the configuration for obvious mistakes.
func (c Config) Validate() error {
	if c.GatewayURL == "" {
		return errors.InvalidConfig("gateway_url is required")
	}
	if c.ClientID == "" {
		return errors.InvalidConfig("client_id is required")
	}
	if c.RequestTimeout <= 0 {
		return errors.InvalidConfig("request timeout must be positive")
	}
	if c.ReconnectInterval <= 0 || c.MaxReconnectInterval < c.ReconnectInterval {
		return errors.InvalidConfig("reconnect intervals must be positive and ordered")
	}
	return nil
}

// fingerprintJSON is the identity-bearing subset of the configuration.
// Tunables are deliberately excluded: changing a timeout must not force
// client recreation.
type fingerprintJSON struct {
	GatewayURL   string `json:"gatewayUrl"`
	AuthToken    string `json:"authToken"`
	AuthPassword string `json:"authPassword"`
}

// Fingerprint returns a deterministic serialization of the connection
// identity, used by the registry to detect configuration changes.
func (c Config) Fingerprint() string {
	data, _ := json.Marshal(fingerprintJSON{
		GatewayURL:   c.GatewayURL,
		AuthToken:    c.AuthToken,
		AuthPassword: c.AuthPassword,
	})
	return string(data)
}

// StandardPaths returns the standard config file locations in order of priority.
func StandardPaths() []string {
	paths := []string{"gatewaykit.toml"}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "gatewaykit", "gatewaykit.toml"))
	}

	return paths
}

// Load loads configuration from the first available standard location.
// A missing file is not an error: defaults are returned with an empty path.
func Load() (Config, string, error) {
	for _, path := range StandardPaths() {
		if _, err := os.Stat(path); err == nil {
			cfg, err := LoadFile(path)
			if err != nil {
				return cfg, path, err
			}
			return cfg, path, nil
		}
	}
	return Default(), "", nil
}

// LoadFile loads configuration from a specific file, layered over defaults.
func LoadFile(path string) (Config, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, fmt.Errorf("decoding %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}
