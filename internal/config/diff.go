package config

// ConfigDiff describes what changed between two configs and how the change
// takes effect. Call-section changes can be pushed to a live session;
// realtime and audio changes only apply to the next connection.
type ConfigDiff struct {
	// CallChanged is true if instructions, temperature or turn detection
	// changed. Safe to hot-apply via a session update.
	CallChanged bool

	// LogLevelChanged reports a verbosity change.
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// RealtimeChanged is true if the backend connection parameters changed.
	// Takes effect on the next connect.
	RealtimeChanged bool

	// AudioChanged is true if capture or encoding parameters changed.
	// Takes effect on the next call.
	AudioChanged bool
}

// Diff compares old and new configs and returns what changed.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	if callChanged(&old.Call, &new.Call) {
		d.CallChanged = true
	}
	if old.Realtime != new.Realtime {
		d.RealtimeChanged = true
	}
	if old.Audio != new.Audio {
		d.AudioChanged = true
	}

	return d
}

// callChanged compares the call sections, dereferencing the optional
// temperature.
func callChanged(old, new *CallConfig) bool {
	if old.Instructions != new.Instructions || old.SilenceDurationMS != new.SilenceDurationMS {
		return true
	}
	switch {
	case old.Temperature == nil && new.Temperature == nil:
		return false
	case old.Temperature == nil || new.Temperature == nil:
		return true
	default:
		return *old.Temperature != *new.Temperature
	}
}
