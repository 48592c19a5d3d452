// Package config loads the daemon's static configuration from a YAML file
// with environment-variable overrides, the same koanf/v2 layering the rest
// of the pack uses for its own daemons.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/rigou/nRF24L01-FHSS/internal/fhss"
	"github.com/rigou/nRF24L01-FHSS/nrf24"
)

// Config holds everything a txd/rxd process needs beyond the link itself:
// which radio to drive, where to persist settings, and where to publish
// metrics and logs.
type Config struct {
	Link     LinkConfig     `koanf:"link"`
	Radio    RadioConfig    `koanf:"radio"`
	Settings SettingsConfig `koanf:"settings"`
	Metrics  MetricsConfig  `koanf:"metrics"`
	Log      LogConfig      `koanf:"log"`
	Button   ButtonConfig   `koanf:"button"`
}

// LinkConfig mirrors fhss.Config's fields one-to-one.
type LinkConfig struct {
	TXID                   uint16 `koanf:"txid"`
	RXID                   uint16 `koanf:"rxid"`
	MonoChan               uint8  `koanf:"monochan"`
	MaxChan                uint8  `koanf:"maxchan"`
	TransDgs               int    `koanf:"transdgs"`
	PALevel                uint8  `koanf:"palevel"`
	ARTDelayUs             uint16 `koanf:"art_delay_us"`
	ARTAttempts            uint8  `koanf:"art_attempts"`
	PairingConsecutiveAcks int    `koanf:"pairing_consecutive_acks"`
	PairingTimeoutMicros   int64  `koanf:"pairing_timeout_micros"`
	SyncLossWindowMicros   int64  `koanf:"sync_loss_window_micros"`
	MaxGapFrames           uint16 `koanf:"max_gap_frames"`
}

// ToFHSS converts the loaded LinkConfig into the fhss.Config Link/RXLink
// constructors expect.
func (lc LinkConfig) ToFHSS() fhss.Config {
	return fhss.Config{
		TXID:                   lc.TXID,
		RXID:                   lc.RXID,
		MonoChan:               lc.MonoChan,
		MaxChan:                lc.MaxChan,
		TransDgs:               lc.TransDgs,
		PALevel:                nrf24.PALevel(lc.PALevel),
		ARTDelayUs:             lc.ARTDelayUs,
		ARTAttempts:            lc.ARTAttempts,
		PairingConsecutiveAcks: lc.PairingConsecutiveAcks,
		PairingTimeoutMicros:   lc.PairingTimeoutMicros,
		SyncLossWindowMicros:   lc.SyncLossWindowMicros,
		MaxGapFrames:           lc.MaxGapFrames,
	}
}

// RadioConfig describes the physical SPI/GPIO wiring of the nRF24L01 module.
type RadioConfig struct {
	SPIBus    string `koanf:"spi_bus"`
	CEPin     string `koanf:"ce_pin"`
	IRQPin    string `koanf:"irq_pin"`
	ChannelID string `koanf:"channel_id"`
}

// SettingsConfig locates the on-disk record of the committed session.
type SettingsConfig struct {
	Path string `koanf:"path"`
}

// MetricsConfig configures the Prometheus metrics endpoint.
type MetricsConfig struct {
	Addr string `koanf:"addr"`
	Path string `koanf:"path"`
}

// LogConfig configures the charmbracelet/log-backed logger.
type LogConfig struct {
	Level string `koanf:"level"`
}

// ButtonConfig describes the pairing button and its paired status LED, if
// present. Both lines are optional: an empty Line/LEDLine leaves that
// peripheral unwired, for deployments with no physical button.
type ButtonConfig struct {
	Line    string `koanf:"line"`
	HoldSec int    `koanf:"hold_seconds"`
	LEDLine string `koanf:"led_line"`
}

// DefaultConfig returns the documented defaults, with the
// daemon ambient defaults (metrics/log/settings) layered on top.
func DefaultConfig() *Config {
	fc := fhss.DefaultConfig()
	return &Config{
		Link: LinkConfig{
			MaxChan:                fc.MaxChan,
			TransDgs:               fc.TransDgs,
			ARTDelayUs:             fc.ARTDelayUs,
			ARTAttempts:            fc.ARTAttempts,
			PairingConsecutiveAcks: fc.PairingConsecutiveAcks,
			PairingTimeoutMicros:   fc.PairingTimeoutMicros,
			SyncLossWindowMicros:   fc.SyncLossWindowMicros,
			MaxGapFrames:           fc.MaxGapFrames,
		},
		Settings: SettingsConfig{Path: "/var/lib/nrf24fhss/link.yaml"},
		Metrics:  MetricsConfig{Addr: ":9110", Path: "/metrics"},
		Log:      LogConfig{Level: "info"},
		Button:   ButtonConfig{HoldSec: 3},
	}
}

// envPrefix is the environment variable prefix: NRF24FHSS_LINK_TXID, etc.
const envPrefix = "NRF24FHSS_"

// Load reads path as YAML over DefaultConfig(), then overlays NRF24FHSS_
// environment variables, and validates the result.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := loadDefaults(k, DefaultConfig()); err != nil {
		return nil, fmt.Errorf("config: loading defaults: %w", err)
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("config: loading %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", envKeyMapper), nil); err != nil {
		return nil, fmt.Errorf("config: loading environment overrides: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshalling: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config: validating %s: %w", path, err)
	}

	return cfg, nil
}

func envKeyMapper(s string) string {
	s = strings.TrimPrefix(s, envPrefix)
	s = strings.ToLower(s)
	return strings.ReplaceAll(s, "_", ".")
}

// loadDefaults marshals the default config into koanf as the base layer.
func loadDefaults(k *koanf.Koanf, defaults *Config) error {
	defaultMap := map[string]any{
		"link.txid":                     defaults.Link.TXID,
		"link.rxid":                     defaults.Link.RXID,
		"link.monochan":                 defaults.Link.MonoChan,
		"link.maxchan":                  defaults.Link.MaxChan,
		"link.transdgs":                 defaults.Link.TransDgs,
		"link.palevel":                  defaults.Link.PALevel,
		"link.art_delay_us":             defaults.Link.ARTDelayUs,
		"link.art_attempts":             defaults.Link.ARTAttempts,
		"link.pairing_consecutive_acks": defaults.Link.PairingConsecutiveAcks,
		"link.pairing_timeout_micros":   defaults.Link.PairingTimeoutMicros,
		"link.sync_loss_window_micros":  defaults.Link.SyncLossWindowMicros,
		"link.max_gap_frames":           defaults.Link.MaxGapFrames,
		"settings.path":                 defaults.Settings.Path,
		"metrics.addr":                  defaults.Metrics.Addr,
		"metrics.path":                  defaults.Metrics.Path,
		"log.level":                     defaults.Log.Level,
		"button.hold_seconds":           defaults.Button.HoldSec,
	}

	for key, val := range defaultMap {
		if err := k.Set(key, val); err != nil {
			return fmt.Errorf("set default %s: %w", key, err)
		}
	}

	return nil
}

// Validation errors.
var (
	ErrMissingTXID   = errors.New("config: link.txid must be nonzero")
	ErrMissingRXID   = errors.New("config: link.rxid must be nonzero")
	ErrEmptySettings = errors.New("config: settings.path must not be empty")
)

// Validate checks the daemon-level fields of the loaded configuration and
// then runs fhss.Config.Validate on the link settings.
func Validate(cfg *Config) error {
	if cfg.Link.TXID == 0 {
		return ErrMissingTXID
	}
	if cfg.Link.RXID == 0 {
		return ErrMissingRXID
	}
	if cfg.Settings.Path == "" {
		return ErrEmptySettings
	}
	if err := cfg.Link.ToFHSS().Validate(); err != nil {
		return err
	}
	return nil
}
