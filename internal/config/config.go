// Package config provides the configuration schema and loader for the
// voxcall client.
package config

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Config is the root configuration structure for voxcall.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Realtime RealtimeConfig `yaml:"realtime"`
	Audio    AudioConfig    `yaml:"audio"`
	Call     CallConfig     `yaml:"call"`
}

// ServerConfig holds admin endpoint and logging settings.
type ServerConfig struct {
	// ListenAddr is the TCP address the admin server (health, metrics)
	// listens on (e.g., ":8080"). Empty disables the admin server.
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`
}

// RealtimeConfig holds the connection parameters for the realtime speech
// backend.
type RealtimeConfig struct {
	// Endpoint is the backend resource root
	// (e.g., "https://myres.openai.azure.com").
	Endpoint string `yaml:"endpoint"`

	// Deployment is the model deployment identifier.
	Deployment string `yaml:"deployment"`

	// APIVersion is the protocol version. Empty selects the package default.
	APIVersion string `yaml:"api_version"`

	// APIKey is the backend credential. Prefer APIKeyEnv in committed
	// configuration files.
	APIKey string `yaml:"api_key"`

	// APIKeyEnv names an environment variable to read the credential from.
	// When set and the variable is non-empty, it overrides APIKey.
	APIKeyEnv string `yaml:"api_key_env"`
}

// AudioConfig holds capture and encoding parameters.
type AudioConfig struct {
	// FrameSize is the number of samples per capture frame. Zero selects
	// the call core default.
	FrameSize int `yaml:"frame_size"`

	// SampleRate is the PCM16 rate sent to the backend in Hz. Zero selects
	// the call core default.
	SampleRate int `yaml:"sample_rate"`

	// DeviceRate is the rate requested from the capture device in Hz. Zero
	// selects the capture package default.
	DeviceRate int `yaml:"device_rate"`
}

// CallConfig holds the session parameters applied at call start.
type CallConfig struct {
	// Instructions is the system prompt for the backend model.
	Instructions string `yaml:"instructions"`

	// Temperature is the sampling temperature. Nil leaves the backend
	// default in place.
	Temperature *float64 `yaml:"temperature"`

	// SilenceDurationMS configures server-side end-of-speech detection.
	// Zero leaves the backend default in place.
	SilenceDurationMS int `yaml:"silence_duration_ms"`
}
