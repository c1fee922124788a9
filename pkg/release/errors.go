package release

import "errors"

// ConfigurationError reports an invalid release configuration. Every failure
// in this package is configuration-time; there are no runtime failures.
type ConfigurationError struct {
	Message string
}

func (e *ConfigurationError) Error() string {
	return e.Message
}

// NewConfigurationError creates a configuration error with the given message
func NewConfigurationError(message string) *ConfigurationError {
	return &ConfigurationError{Message: message}
}

// IsConfigurationError reports whether err is a configuration error
func IsConfigurationError(err error) bool {
	var ce *ConfigurationError
	return errors.As(err, &ce)
}
