package providers

import (
	"errors"
	"fmt"

	"github.com/mrlokans/lectern/internal/entities"
)

var (
	// ErrEmptyResponse is returned when a completion carries no content.
	ErrEmptyResponse = errors.New("model returned an empty response")

	// ErrDocumentsUnsupported is returned by families without a file API.
	ErrDocumentsUnsupported = errors.New("provider does not support documents")

	ErrInvalidRef = errors.New("invalid document reference")
)

// ConfigurationError reports a request that cannot be sent because the
// model family is unknown or its credential is missing. It is never retried.
type ConfigurationError struct {
	Model    string
	Provider entities.ProviderID
	Reason   string
}

func (e *ConfigurationError) Error() string {
	if e.Provider != "" {
		return fmt.Sprintf("provider %s for model %q is not configured: %s", e.Provider, e.Model, e.Reason)
	}
	return fmt.Sprintf("model %q cannot be used: %s", e.Model, e.Reason)
}

// TransportError reports a failed exchange with a provider: a network
// error, a timeout, a non-2xx status or an undecodable body.
type TransportError struct {
	Provider   entities.ProviderID
	StatusCode int
	Message    string
	Err        error
}

func (e *TransportError) Error() string {
	switch {
	case e.StatusCode != 0 && e.Message != "":
		return fmt.Sprintf("%s api error (%d): %s", e.Provider, e.StatusCode, e.Message)
	case e.StatusCode != 0:
		return fmt.Sprintf("%s api error: status %d", e.Provider, e.StatusCode)
	case e.Err != nil:
		return fmt.Sprintf("%s request: %v", e.Provider, e.Err)
	default:
		return fmt.Sprintf("%s request failed", e.Provider)
	}
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsConfigurationError reports whether err is or wraps a ConfigurationError.
func IsConfigurationError(err error) bool {
	var cfgErr *ConfigurationError
	return errors.As(err, &cfgErr)
}

// IsTransportError reports whether err is or wraps a TransportError.
func IsTransportError(err error) bool {
	var tErr *TransportError
	return errors.As(err, &tErr)
}
