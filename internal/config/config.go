package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/viper"
)

const (
	TransportWebRTC    = "webrtc"
	TransportWebSocket = "websocket"

	DefaultSTUNServer = "stun:stun.l.google.com:19302"
)

type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Peer        PeerConfig        `mapstructure:"peer"`
	Game        GameConfig        `mapstructure:"game"`
	Development DevelopmentConfig `mapstructure:"development"`
}

type ServerConfig struct {
	Host      string `mapstructure:"host"`
	Port      int    `mapstructure:"port"`
	StaticDir string `mapstructure:"static_dir"`
}

type PeerConfig struct {
	Transport          string        `mapstructure:"transport"`
	ICEServers         []string      `mapstructure:"ice_servers"`
	NegotiationTimeout time.Duration `mapstructure:"negotiation_timeout"`
	ListenAddr         string        `mapstructure:"listen_addr"`
	AdvertiseHost      string        `mapstructure:"advertise_host"`
}

type GameConfig struct {
	// Seed for debuff offers; 0 seeds from the clock.
	Seed int64 `mapstructure:"seed"`
}

type DevelopmentConfig struct {
	Debug    bool   `mapstructure:"debug"`
	LogLevel string `mapstructure:"log_level"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.static_dir", "")
	v.SetDefault("peer.transport", TransportWebRTC)
	v.SetDefault("peer.ice_servers", []string{DefaultSTUNServer})
	v.SetDefault("peer.negotiation_timeout", 30*time.Second)
	v.SetDefault("peer.listen_addr", ":0")
	v.SetDefault("peer.advertise_host", "")
	v.SetDefault("game.seed", 0)
	v.SetDefault("development.debug", false)
	v.SetDefault("development.log_level", "info")
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")

	// Enable environment variables
	v.SetEnvPrefix("DEBUFFCHESS")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)
	return v
}

// Load reads config.yaml from ./ or ./config. A missing file is not an error:
// defaults and DEBUFFCHESS_* environment variables apply.
func Load() (*Config, error) {
	v := newViper()
	v.SetConfigName("config")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}
	return unmarshal(v)
}

// LoadFile reads an explicit config file.
func LoadFile(path string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	return unmarshal(v)
}

func unmarshal(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the configuration used when no file or environment is set.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "localhost",
			Port: 8080,
		},
		Peer: PeerConfig{
			Transport:          TransportWebRTC,
			ICEServers:         []string{DefaultSTUNServer},
			NegotiationTimeout: 30 * time.Second,
			ListenAddr:         ":0",
		},
		Development: DevelopmentConfig{
			LogLevel: "info",
		},
	}
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs error
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		errs = multierror.Append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}
	switch c.Peer.Transport {
	case TransportWebRTC, TransportWebSocket:
	default:
		errs = multierror.Append(errs, fmt.Errorf("peer.transport %q must be %q or %q", c.Peer.Transport, TransportWebRTC, TransportWebSocket))
	}
	if c.Peer.NegotiationTimeout <= 0 {
		errs = multierror.Append(errs, fmt.Errorf("peer.negotiation_timeout must be positive"))
	}
	if errs != nil {
		return fmt.Errorf("invalid config: %w", errs)
	}
	return nil
}

// Addr is the host:port the local API listens on.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
