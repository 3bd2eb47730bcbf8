package network

import (
	"errors"
	"fmt"
)

// ErrUploadCanceled is returned (wrapped) when the caller's context is
// canceled before or during a send. Use errors.Is to detect it.
var ErrUploadCanceled = errors.New("upload canceled")

// ConfigurationError signals invalid or missing client configuration, such as
// a shared key that is not valid base64. It is never worth retrying.
type ConfigurationError struct {
	Reason string
	Err    error
}

func (e *ConfigurationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("configuration error: %s: %s", e.Reason, e.Err)
	}
	return fmt.Sprintf("configuration error: %s", e.Reason)
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// TransportError signals that the request never produced an HTTP response,
// for example a DNS or connection failure. The workspace ID is part of the
// hostname, so a typo there surfaces here.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("unable to connect to workspace: %s", e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// IngestionError signals that the collector endpoint rejected the payload
// with a status code outside [200, 299].
type IngestionError struct {
	StatusCode int
}

func (e *IngestionError) Error() string {
	return fmt.Sprintf("data upload failed with code %d, check workspace ID and key", e.StatusCode)
}
