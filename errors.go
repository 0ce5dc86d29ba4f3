package bagv

import (
	"fmt"

	"github.com/pkg/errors"
)

// ConfigError reports a setup problem: a bad or missing profile, a
// misconfigured plugin or executable, an unsupported checksum algorithm.
// It surfaces before any validation runs; no report is produced.
type ConfigError struct {
	Reason string
	Cause  error
}

func (e *ConfigError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("configuration: %s: %s", e.Reason, e.Cause)
	}
	return "configuration: " + e.Reason
}

func (e *ConfigError) Unwrap() error { return e.Cause }

// Configf creates a ConfigError with a formatted reason
func Configf(format string, args ...interface{}) error {
	return &ConfigError{Reason: fmt.Sprintf(format, args...)}
}

// ConfigWrap creates a ConfigError wrapping an underlying cause
func ConfigWrap(cause error, format string, args ...interface{}) error {
	return &ConfigError{Reason: fmt.Sprintf(format, args...), Cause: cause}
}

// IOError reports that bag content could not be read: an unreadable bag
// root, tag file, or payload file.
type IOError struct {
	Path  string
	Cause error
}

func (e *IOError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("io: %s: %s", e.Path, e.Cause)
	}
	return "io: " + e.Path
}

func (e *IOError) Unwrap() error { return e.Cause }

// IOWrap creates an IOError for path wrapping an underlying cause
func IOWrap(cause error, path string) error {
	return &IOError{Path: path, Cause: cause}
}

// PluginErr reports that an external identification/validation backend
// crashed, timed out, or produced output that could not be understood.
type PluginErr struct {
	Plugin string
	Path   string
	Cause  error
}

func (e *PluginErr) Error() string {
	msg := fmt.Sprintf("plugin %s failed", e.Plugin)
	if e.Path != "" {
		msg += " on " + e.Path
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *PluginErr) Unwrap() error { return e.Cause }

// PluginWrap creates a PluginErr for the named plugin and file
func PluginWrap(cause error, plugin, path string) error {
	return &PluginErr{Plugin: plugin, Path: path, Cause: cause}
}

// IsConfig reports whether err is a ConfigError anywhere in its chain
func IsConfig(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}

// IsIO reports whether err is an IOError anywhere in its chain
func IsIO(err error) bool {
	var ioe *IOError
	return errors.As(err, &ioe)
}

// IsPlugin reports whether err is a PluginErr anywhere in its chain
func IsPlugin(err error) bool {
	var pe *PluginErr
	return errors.As(err, &pe)
}
