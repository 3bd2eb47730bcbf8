package uploader

import (
	"fmt"

	"github.com/bitrise-io/go-utils/v2/env"
)

const (
	workspaceIDEnvKey    = "LOG_INGEST_WORKSPACE_ID"
	sharedKeyEnvKey      = "LOG_INGEST_SHARED_KEY"
	endpointSuffixEnvKey = "LOG_INGEST_ENDPOINT_SUFFIX"
)

// Secret is a string whose value is redacted when printed, so credentials do
// not leak into logs.
type Secret string

// String implements fmt.Stringer.
func (s Secret) String() string {
	if s == "" {
		return ""
	}
	return "*****"
}

// Config is the caller-supplied uploader configuration.
type Config struct {
	// WorkspaceID identifies the target workspace.
	WorkspaceID string
	// SharedKey is the base64-encoded shared secret of the workspace.
	SharedKey Secret
	// EndpointSuffix overrides the collector domain for sovereign or regional
	// deployments. Empty means the public cloud default.
	EndpointSuffix string
	// MaxPayloadBytes is the per-request payload ceiling. Zero means the
	// collector's 25 MiB default.
	MaxPayloadBytes int64
}

// ConfigFromEnv is a convenience for callers that keep credentials in the
// environment. The library itself never reads the environment implicitly.
func ConfigFromEnv(envRepo env.Repository) (Config, error) {
	workspaceID := envRepo.Get(workspaceIDEnvKey)
	if workspaceID == "" {
		return Config{}, fmt.Errorf("the secret '%s' is not defined", workspaceIDEnvKey)
	}
	sharedKey := envRepo.Get(sharedKeyEnvKey)
	if sharedKey == "" {
		return Config{}, fmt.Errorf("the secret '%s' is not defined", sharedKeyEnvKey)
	}

	return Config{
		WorkspaceID:    workspaceID,
		SharedKey:      Secret(sharedKey),
		EndpointSuffix: envRepo.Get(endpointSuffixEnvKey),
	}, nil
}
