package node

import (
	"bytes"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Default configuration constants
const (
	DefaultAddress = "127.0.0.1"
	DefaultPort    = "7000"
	DefaultName    = "node-1"

	// AutoAddress asks the node to discover its own LAN address.
	AutoAddress = "auto"
)

// Config holds the configuration for a node
type Config struct {
	// Node identification
	Name string `yaml:"name"`

	// Server configuration
	Address string `yaml:"address"`
	Port    string `yaml:"port"`

	// Rendezvous address of an existing member; empty starts a new network
	Join string `yaml:"join"`

	// Failure monitor
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval"`
	ProbeTimeout      time.Duration `yaml:"probe_timeout"`
	ProbeThreshold    int           `yaml:"probe_threshold"`   // below this many members every peer is probed
	MaxProbeTargets   int           `yaml:"max_probe_targets"` // successors probed per tick otherwise

	// Peer connections
	DialTimeout time.Duration `yaml:"dial_timeout"`
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// Unanswered existence queries are forgotten after RequestTTL
	RequestTTL time.Duration `yaml:"request_ttl"`
	// Time given to relocation orders before the farewell notice on leave
	LeaveGrace time.Duration `yaml:"leave_grace"`

	// Local collaborators
	DataDir       string `yaml:"data_dir"`     // bolt-backed store when set, memory otherwise
	DownloadDir   string `yaml:"download_dir"` // fetched items are written here
	PlayerCommand string `yaml:"player_command"`

	HealthPort string `yaml:"health_port"` // gRPC health endpoint, disabled when empty
	LogLevel   string `yaml:"log_level"`
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig(name string) *Config {
	return &Config{
		Name:              name,
		Address:           DefaultAddress,
		Port:              DefaultPort,
		HeartbeatInterval: 2 * time.Second,
		ProbeTimeout:      time.Second,
		ProbeThreshold:    4,
		MaxProbeTargets:   4,
		DialTimeout:       2 * time.Second,
		ReadTimeout:       30 * time.Second,
		RequestTTL:        time.Minute,
		LeaveGrace:        time.Second,
		DownloadDir:       "downloads",
		LogLevel:          "info",
	}
}

// LoadConfigFile reads a YAML file over the defaults. Durations are Go duration
// strings ("500ms", "2s"). Unknown keys are rejected.
func LoadConfigFile(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := DefaultConfig(DefaultName)
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks if the config is valid
func (c *Config) Validate() error {
	if c.Name == "" {
		return ErrNameRequired
	}
	if c.Address == "" {
		return ErrAddressRequired
	}
	if c.Port == "" {
		return ErrPortRequired
	}
	if p, err := strconv.Atoi(c.Port); err != nil || p <= 0 || p > 65535 {
		return fmt.Errorf("%w: %q", ErrInvalidPort, c.Port)
	}
	if c.HeartbeatInterval <= 0 {
		return ErrInvalidHeartbeatInterval
	}
	if c.ProbeTimeout <= 0 || c.DialTimeout <= 0 {
		return ErrInvalidTimeout
	}
	if c.RequestTTL <= 0 {
		return ErrInvalidRequestTTL
	}
	if c.LeaveGrace < 0 {
		return ErrInvalidLeaveGrace
	}
	if c.ProbeThreshold < 1 || c.MaxProbeTargets < 1 {
		return ErrInvalidProbeSettings
	}
	if c.Join != "" {
		if _, _, err := net.SplitHostPort(c.Join); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidJoinAddress, err)
		}
	}
	return nil
}

// GetAddress returns the full address (address:port)
func (c *Config) GetAddress() string {
	return net.JoinHostPort(c.Address, c.Port)
}

// HealthAddress is the gRPC health endpoint address, empty when disabled.
func (c *Config) HealthAddress() string {
	if c.HealthPort == "" {
		return ""
	}
	return net.JoinHostPort(c.Address, c.HealthPort)
}
