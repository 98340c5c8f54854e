package config

import (
	"errors"
	"fmt"
	"time"
)

// Config represents an rtkrelay.yaml configuration file.
// All values are optional and act as defaults for command flags.
// CLI flags always override config values.
type Config struct {
	Listen        string        `yaml:"listen"`
	MaxConcurrent int           `yaml:"max_concurrent"`
	MaxUnits      int           `yaml:"max_units"`
	StagingDir    string        `yaml:"staging_dir"`
	LogLevel      string        `yaml:"log_level"`
	Timeouts      TimeoutConfig `yaml:"timeouts"`
	RTKLIB        RTKLIBConfig  `yaml:"rtklib"`
	Nav           NavConfig     `yaml:"nav"`
	Archive       ArchiveConfig `yaml:"archive"`
	Adapter       AdapterConfig `yaml:"adapter"`
}

// TimeoutConfig holds per-stage session deadlines.
type TimeoutConfig struct {
	Read    Duration `yaml:"read"`
	Fetch   Duration `yaml:"fetch"`
	Compute Duration `yaml:"compute"`
	Write   Duration `yaml:"write"`
}

// RTKLIBConfig locates the positioning binary.
type RTKLIBConfig struct {
	Path string   `yaml:"path"`
	Args []string `yaml:"args,omitempty"`
}

// NavConfig selects the navigation data sources. When both URL and S3 are
// set the S3 mirror is tried first.
type NavConfig struct {
	URL         string   `yaml:"url"`
	S3          string   `yaml:"s3"` // bucket/prefix
	Region      string   `yaml:"region"`
	Endpoint    string   `yaml:"endpoint"`
	S3PathStyle bool     `yaml:"s3_path_style"`
	Timeout     Duration `yaml:"timeout"`
}

// ArchiveConfig holds session archive defaults.
type ArchiveConfig struct {
	Dataset     string `yaml:"dataset"`
	Backend     string `yaml:"backend"`
	Path        string `yaml:"path"`
	Region      string `yaml:"region"`
	Endpoint    string `yaml:"endpoint"`
	S3PathStyle bool   `yaml:"s3_path_style"`
}

// AdapterConfig holds notification adapter defaults.
type AdapterConfig struct {
	Type    string            `yaml:"type"`
	URL     string            `yaml:"url"`
	Channel string            `yaml:"channel,omitempty"`
	Mode    string            `yaml:"mode,omitempty"`
	Secret  string            `yaml:"secret,omitempty"`
	Headers map[string]string `yaml:"headers,omitempty"`
	Timeout Duration          `yaml:"timeout,omitempty"`
	Retries *int              `yaml:"retries,omitempty"`
}

// Duration wraps time.Duration for YAML string parsing (e.g. "10s", "5m").
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses a duration string like "10s" or "5m30s".
func (d *Duration) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	if s == "" {
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	if parsed < 0 {
		return fmt.Errorf("negative duration %q", s)
	}
	d.Duration = parsed
	return nil
}

// Validate checks enumerated values and numeric bounds.
func (c *Config) Validate() error {
	var errs []error
	if c.MaxConcurrent < 0 {
		errs = append(errs, fmt.Errorf("max_concurrent must be >= 0, got %d", c.MaxConcurrent))
	}
	if c.MaxUnits < 0 {
		errs = append(errs, fmt.Errorf("max_units must be >= 0, got %d", c.MaxUnits))
	}
	switch c.Archive.Backend {
	case "", "fs", "s3":
	default:
		errs = append(errs, fmt.Errorf("archive.backend must be fs or s3, got %q", c.Archive.Backend))
	}
	switch c.Adapter.Type {
	case "", "webhook", "redis":
	default:
		errs = append(errs, fmt.Errorf("adapter.type must be webhook or redis, got %q", c.Adapter.Type))
	}
	if c.Adapter.Type != "" && c.Adapter.URL == "" {
		errs = append(errs, errors.New("adapter.url is required when adapter.type is set"))
	}
	if c.Adapter.Retries != nil && *c.Adapter.Retries < 0 {
		errs = append(errs, fmt.Errorf("adapter.retries must be >= 0, got %d", *c.Adapter.Retries))
	}
	return errors.Join(errs...)
}
