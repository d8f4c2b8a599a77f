package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"

	"github.com/danmuck/fwupdctl/internal/update"
)

const DefaultStatusAddr = "127.0.0.1:9480"

// Campaign is a resolved campaign file: the package to deliver, engine
// timing and the devices to rehearse against.
type Campaign struct {
	// Package is the manifest path, resolved against the config directory.
	Package     string
	StatusAddr  string
	CorsOrigins []string
	Update      update.Config
	Devices     []Device
}

type fileConfig struct {
	Package       string         `toml:"package"`
	StatusAddr    string         `toml:"status_addr"`
	CorsOrigins   []string       `toml:"cors_origins"`
	CancelOnFatal bool           `toml:"cancel_on_fatal"`
	Timing        timingConfig   `toml:"timing"`
	Devices       []deviceConfig `toml:"device"`
}

type timingConfig struct {
	ResponseTimeout      string `toml:"response_timeout"`
	ActivateExtraTimeout string `toml:"activate_extra_timeout"`
	Retries              int    `toml:"retries"`
	FirmwareDataTimeout  string `toml:"firmware_data_timeout"`
	StateChangeTimeout   string `toml:"state_change_timeout"`
	PollInterval         string `toml:"poll_interval"`
	MaxTransferSize      uint32 `toml:"max_transfer_size"`
	RecvBufferSize       int    `toml:"recv_buffer_size"`
}

type envOverrides struct {
	Package         string         `env:"FWUPDCTL_PACKAGE"`
	StatusAddr      string         `env:"FWUPDCTL_STATUS_ADDR"`
	Retries         *int           `env:"FWUPDCTL_RETRIES"`
	ResponseTimeout *time.Duration `env:"FWUPDCTL_RESPONSE_TIMEOUT"`
	MaxTransferSize *uint32        `env:"FWUPDCTL_MAX_TRANSFER_SIZE"`
	CancelOnFatal   *bool          `env:"FWUPDCTL_CANCEL_ON_FATAL"`
}

// LoadCampaign decodes a campaign file. Keys left out keep the engine
// defaults; FWUPDCTL_* environment variables override the file.
func LoadCampaign(path string) (Campaign, error) {
	cfg := Campaign{
		StatusAddr: DefaultStatusAddr,
		Update:     update.DefaultConfig(),
	}

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Campaign{}, fmt.Errorf("load campaign config: %w", err)
	}

	if meta.IsDefined("package") {
		cfg.Package = strings.TrimSpace(raw.Package)
	}
	if meta.IsDefined("status_addr") {
		cfg.StatusAddr = strings.TrimSpace(raw.StatusAddr)
	}
	if meta.IsDefined("cors_origins") {
		cfg.CorsOrigins = raw.CorsOrigins
	}
	if meta.IsDefined("cancel_on_fatal") {
		cfg.Update.CancelOnFatal = raw.CancelOnFatal
	}
	if err := applyTiming(meta, raw.Timing, &cfg.Update); err != nil {
		return Campaign{}, err
	}

	for i, dc := range raw.Devices {
		dev, err := dc.device()
		if err != nil {
			return Campaign{}, fmt.Errorf("device[%d] invalid: %w", i, err)
		}
		cfg.Devices = append(cfg.Devices, dev)
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return Campaign{}, err
	}
	if cfg.Package != "" && !filepath.IsAbs(cfg.Package) {
		cfg.Package = filepath.Join(filepath.Dir(path), cfg.Package)
	}
	if err := ValidateCampaign(cfg); err != nil {
		return Campaign{}, err
	}
	return cfg, nil
}

func applyTiming(meta toml.MetaData, raw timingConfig, cfg *update.Config) error {
	durations := []struct {
		key string
		val string
		dst *time.Duration
	}{
		{"response_timeout", raw.ResponseTimeout, &cfg.ResponseTimeout},
		{"activate_extra_timeout", raw.ActivateExtraTimeout, &cfg.ActivateExtraTimeout},
		{"firmware_data_timeout", raw.FirmwareDataTimeout, &cfg.FirmwareDataTimeout},
		{"state_change_timeout", raw.StateChangeTimeout, &cfg.StateChangeTimeout},
		{"poll_interval", raw.PollInterval, &cfg.PollInterval},
	}
	for _, d := range durations {
		if !meta.IsDefined("timing", d.key) {
			continue
		}
		v, err := time.ParseDuration(strings.TrimSpace(d.val))
		if err != nil {
			return fmt.Errorf("parse timing.%s: %w", d.key, err)
		}
		*d.dst = v
	}

	if meta.IsDefined("timing", "retries") {
		cfg.Retries = raw.Retries
	}
	if meta.IsDefined("timing", "max_transfer_size") {
		cfg.MaxTransferSize = raw.MaxTransferSize
	}
	if meta.IsDefined("timing", "recv_buffer_size") {
		cfg.RecvBufferSize = raw.RecvBufferSize
	}
	return nil
}

func applyEnvOverrides(cfg *Campaign) error {
	var raw envOverrides
	if err := env.Parse(&raw); err != nil {
		return fmt.Errorf("parse environment: %w", err)
	}
	if v := strings.TrimSpace(raw.Package); v != "" {
		cfg.Package = v
	}
	if v := strings.TrimSpace(raw.StatusAddr); v != "" {
		cfg.StatusAddr = v
	}
	if raw.Retries != nil {
		cfg.Update.Retries = *raw.Retries
	}
	if raw.ResponseTimeout != nil {
		cfg.Update.ResponseTimeout = *raw.ResponseTimeout
	}
	if raw.MaxTransferSize != nil {
		cfg.Update.MaxTransferSize = *raw.MaxTransferSize
	}
	if raw.CancelOnFatal != nil {
		cfg.Update.CancelOnFatal = *raw.CancelOnFatal
	}
	return nil
}

func ValidateCampaign(cfg Campaign) error {
	if strings.TrimSpace(cfg.Package) == "" {
		return fmt.Errorf("campaign config missing package")
	}
	if cfg.Update.Retries < 0 {
		return fmt.Errorf("campaign config retries must not be negative")
	}
	if len(cfg.Devices) == 0 {
		return fmt.Errorf("campaign config has no devices")
	}
	seen := make(map[string]struct{}, len(cfg.Devices))
	for i, dev := range cfg.Devices {
		if _, dup := seen[dev.Name]; dup {
			return fmt.Errorf("device[%d] invalid: duplicate name %q", i, dev.Name)
		}
		seen[dev.Name] = struct{}{}
	}
	return nil
}
