package config

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/sigweihq/walletsession/pkg/chains/evm"
	"github.com/sigweihq/walletsession/pkg/constants"
	"github.com/sigweihq/walletsession/pkg/types"
	"github.com/sigweihq/walletsession/pkg/utils"
)

// Config contains all configuration parameters for the console host
type Config struct {
	ProviderURL   string        `envconfig:"WALLET_PROVIDER_URL" default:"ws://127.0.0.1:1248"`
	Origin        string        `envconfig:"WALLET_ORIGIN" default:"http://localhost"`
	Marker        string        `envconfig:"WALLET_MARKER"`
	ProbeTimeout  time.Duration `envconfig:"WALLET_PROBE_TIMEOUT" default:"3s"`
	LogLevel      string        `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat     string        `envconfig:"LOG_FORMAT" default:"text"`
	ExtraNetworks []string      `envconfig:"EXTRA_NETWORKS"`
}

// Load reads the configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{}
	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values envconfig cannot
func (c *Config) Validate() error {
	if strings.TrimSpace(c.ProviderURL) == "" {
		return fmt.Errorf("WALLET_PROVIDER_URL must not be empty")
	}
	if c.ProbeTimeout <= 0 {
		return fmt.Errorf("WALLET_PROBE_TIMEOUT must be positive, got %s", c.ProbeTimeout)
	}
	if _, ok := parseLogLevel(c.LogLevel); !ok {
		return fmt.Errorf("unknown LOG_LEVEL %q", c.LogLevel)
	}
	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		return fmt.Errorf("unknown LOG_FORMAT %q", c.LogFormat)
	}
	if _, err := c.Networks(); err != nil {
		return err
	}
	return nil
}

// ProviderConfig returns the settings used to dial the wallet
func (c *Config) ProviderConfig() evm.ProviderConfig {
	return evm.ProviderConfig{
		URL:          c.ProviderURL,
		Origin:       c.Origin,
		Marker:       c.Marker,
		ProbeTimeout: c.ProbeTimeout,
	}
}

// Networks parses EXTRA_NETWORKS entries of the form "<chainId>:<name>"
// The chain ID may be hex or decimal
func (c *Config) Networks() ([]types.Network, error) {
	networks := make([]types.Network, 0, len(c.ExtraNetworks))
	for _, entry := range c.ExtraNetworks {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}

		rawID, name, ok := strings.Cut(entry, ":")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid EXTRA_NETWORKS entry %q, expected <chainId>:<name>", entry)
		}
		chainID, err := utils.ParseChainID(rawID)
		if err != nil {
			return nil, fmt.Errorf("invalid EXTRA_NETWORKS entry %q: %w", entry, err)
		}

		networks = append(networks, types.Network{
			ChainID: chainID,
			Name:    name,
			Testnet: constants.TestNetworks[chainID],
		})
	}
	return networks, nil
}

func parseLogLevel(level string) (slog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug, true
	case "", "info":
		return slog.LevelInfo, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	default:
		return slog.LevelInfo, false
	}
}

// NewLogger builds the host logger writing to w
func (c *Config) NewLogger(w io.Writer) *slog.Logger {
	level, _ := parseLogLevel(c.LogLevel)
	opts := &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey && a.Value.Kind() == slog.KindTime {
				return slog.String(slog.TimeKey, a.Value.Time().Format(time.TimeOnly))
			}
			return a
		},
	}

	var handler slog.Handler
	if strings.EqualFold(c.LogFormat, "json") {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}
