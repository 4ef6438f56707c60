package config

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/acoustad/voxcall/pkg/endpoint"
)

// Load reads the YAML configuration file at path and returns a validated
// [Config]. It is a convenience wrapper around [LoadFromReader] and
// [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	for _, reason := range cfg.EndpointSettings().Validate() {
		errs = append(errs, fmt.Errorf("realtime: %s", reason))
	}

	if cfg.Audio.FrameSize < 0 {
		errs = append(errs, fmt.Errorf("audio.frame_size %d must not be negative", cfg.Audio.FrameSize))
	}
	if cfg.Audio.SampleRate < 0 {
		errs = append(errs, fmt.Errorf("audio.sample_rate %d must not be negative", cfg.Audio.SampleRate))
	}
	if cfg.Audio.DeviceRate < 0 {
		errs = append(errs, fmt.Errorf("audio.device_rate %d must not be negative", cfg.Audio.DeviceRate))
	}
	if cfg.Audio.SampleRate > 0 && cfg.Audio.DeviceRate > 0 && cfg.Audio.SampleRate > cfg.Audio.DeviceRate {
		errs = append(errs, fmt.Errorf("audio.sample_rate %d exceeds audio.device_rate %d; upsampling is not supported", cfg.Audio.SampleRate, cfg.Audio.DeviceRate))
	}

	if t := cfg.Call.Temperature; t != nil && (*t < 0 || *t > 2) {
		errs = append(errs, fmt.Errorf("call.temperature %.2f is out of range [0, 2]", *t))
	}
	if cfg.Call.SilenceDurationMS < 0 {
		errs = append(errs, fmt.Errorf("call.silence_duration_ms %d must not be negative", cfg.Call.SilenceDurationMS))
	}

	return errors.Join(errs...)
}

// EndpointSettings resolves the realtime section into endpoint settings,
// applying the environment credential override.
func (c *Config) EndpointSettings() endpoint.Settings {
	key := c.Realtime.APIKey
	if c.Realtime.APIKeyEnv != "" {
		if v := os.Getenv(c.Realtime.APIKeyEnv); v != "" {
			key = v
		}
	}
	return endpoint.Settings{
		Endpoint:   c.Realtime.Endpoint,
		Deployment: c.Realtime.Deployment,
		APIVersion: c.Realtime.APIVersion,
		APIKey:     key,
	}
}
