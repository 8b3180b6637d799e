package node

import (
	"errors"
	"fmt"
	"math/bits"
	"time"

	"github.com/spf13/viper"

	"espnow-bridge/pkg/addrtable"
	"espnow-bridge/pkg/appdir"
	"espnow-bridge/pkg/protocol"
	"espnow-bridge/pkg/relayq"
)

const (
	DefaultPollInterval = time.Millisecond
	DefaultResetGrace   = 100 * time.Millisecond
	DefaultChannel      = 1
	EnvPrefix           = "ESPNOW"
)

type Config struct {
	Channel       uint8         `mapstructure:"channel"`
	UpstreamAddr  string        `mapstructure:"upstream_addr"`
	Nodes         []string      `mapstructure:"nodes"`
	QueueCapacity int           `mapstructure:"queue_capacity"`
	PollInterval  time.Duration `mapstructure:"poll_interval"`
	ResetGrace    time.Duration `mapstructure:"reset_grace"`

	// host radio emulation
	ListenAddr    string `mapstructure:"listen_addr"`
	BroadcastAddr string `mapstructure:"broadcast_addr"`
	Interface     string `mapstructure:"interface"`
	SelfAddr      string `mapstructure:"self_addr"`

	APIListenAddr    string `mapstructure:"api_listen_address"`
	ManagementSocket string `mapstructure:"management_socket"`
	LogLevel         string `mapstructure:"log_level"`
	LogDBFile        string `mapstructure:"log_db_file"`

	upstream protocol.Addr
	self     protocol.Addr
	table    *addrtable.Table
}

func DefaultConfig() *Config {
	return &Config{
		Channel:          DefaultChannel,
		UpstreamAddr:     protocol.StationAddrString,
		QueueCapacity:    relayq.DefaultCapacity,
		PollInterval:     DefaultPollInterval,
		ResetGrace:       DefaultResetGrace,
		ListenAddr:       ":1955",
		BroadcastAddr:    "255.255.255.255:1955",
		APIListenAddr:    ":7778",
		ManagementSocket: appdir.Path("espnow-bridge.sock"),
		LogLevel:         "info",
		LogDBFile:        "espnow-bridge.db",
	}
}

func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("channel", cfg.Channel)
	v.SetDefault("upstream_addr", cfg.UpstreamAddr)
	v.SetDefault("nodes", []string{})
	v.SetDefault("queue_capacity", cfg.QueueCapacity)
	v.SetDefault("poll_interval", cfg.PollInterval)
	v.SetDefault("reset_grace", cfg.ResetGrace)
	v.SetDefault("listen_addr", cfg.ListenAddr)
	v.SetDefault("broadcast_addr", cfg.BroadcastAddr)
	v.SetDefault("interface", cfg.Interface)
	v.SetDefault("self_addr", cfg.SelfAddr)
	v.SetDefault("api_listen_address", cfg.APIListenAddr)
	v.SetDefault("management_socket", cfg.ManagementSocket)
	v.SetDefault("log_level", cfg.LogLevel)
	v.SetDefault("log_db_file", cfg.LogDBFile)
}

// LoadConfig reads configuration from, lowest precedence first: defaults,
// the YAML file, ESPNOW_* environment variables and overrides (usually CLI
// flags). When file is empty espnow-bridge.yaml is searched in the usual
// places and a missing file is not an error.
func LoadConfig(file string, overrides map[string]any) (*Config, error) {
	cfg := DefaultConfig()
	v := viper.New()
	setDefaults(v, cfg)

	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", file, err)
		}
	} else {
		v.SetConfigName("espnow-bridge")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/espnow-bridge/")
		v.AddConfigPath("$HOME/.espnow-bridge")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	for k, val := range overrides {
		v.Set(k, val)
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks every field and caches the parsed addresses and table.
func (c *Config) Validate() error {
	up, err := protocol.ParseAddr(c.UpstreamAddr)
	if err != nil {
		return fmt.Errorf("upstream_addr: %w", err)
	}
	if up.IsBroadcast() {
		return fmt.Errorf("upstream_addr: broadcast address is not a peer")
	}
	c.upstream = up

	c.table = addrtable.Default
	if len(c.Nodes) > 0 {
		t, err := addrtable.Parse(c.Nodes)
		if err != nil {
			return fmt.Errorf("nodes: %w", err)
		}
		c.table = t
	}

	c.self = protocol.Addr{}
	if c.SelfAddr != "" {
		if c.self, err = protocol.ParseAddr(c.SelfAddr); err != nil {
			return fmt.Errorf("self_addr: %w", err)
		}
	}

	if c.QueueCapacity <= 0 || bits.OnesCount(uint(c.QueueCapacity)) != 1 {
		return fmt.Errorf("queue_capacity: %w: %d", relayq.ErrCapacity, c.QueueCapacity)
	}
	if c.QueueCapacity < protocol.MaxFrameSize {
		return fmt.Errorf("queue_capacity: %d cannot hold a %d byte frame", c.QueueCapacity, protocol.MaxFrameSize)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll_interval must be positive")
	}
	if c.ResetGrace < 0 {
		return fmt.Errorf("reset_grace must not be negative")
	}
	return nil
}

// Upstream is the parsed upstream_addr. Valid after Validate.
func (c *Config) Upstream() protocol.Addr { return c.upstream }

// Self is the parsed self_addr, zero when unset.
func (c *Config) Self() protocol.Addr { return c.self }

// Table is the address table built from nodes, or the compiled-in default.
func (c *Config) Table() *addrtable.Table {
	if c.table == nil {
		return addrtable.Default
	}
	return c.table
}
