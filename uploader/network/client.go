package network

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"time"

	"github.com/bitrise-io/go-utils/v2/log"
	"github.com/bitrise-io/go-utils/v2/retryhttp"
	"github.com/hashicorp/go-retryablehttp"
)

const (
	apiResource = "/api/logs"
	apiVersion  = "2016-04-01"
	contentType = "application/json"

	// DefaultEndpointSuffix is the public cloud collector domain. Sovereign
	// and regional deployments override it via Config.EndpointSuffix.
	DefaultEndpointSuffix = ".ods.opinsights.azure.com"
)

var tableNameSanitizer = regexp.MustCompile(`[^A-Za-z0-9_]+`)

// Config holds the immutable per-workspace settings of a Client.
type Config struct {
	// WorkspaceID identifies the target workspace and is part of the endpoint hostname.
	WorkspaceID string
	// SharedKey is the base64-encoded symmetric signing secret of the workspace.
	SharedKey string
	// EndpointSuffix is appended to the workspace ID to form the hostname.
	// Empty means DefaultEndpointSuffix.
	EndpointSuffix string
}

// Sender performs one signed POST per payload. It exists so tests and callers
// can substitute a fake transport for the real collector endpoint.
type Sender interface {
	Send(ctx context.Context, tableName string, payload []byte) error
}

// Client sends serialized record batches to the collector endpoint. It does
// not retry: a failed send is reported to the caller, who decides what to do.
type Client struct {
	httpClient     *retryablehttp.Client
	workspaceID    string
	sharedKey      string
	endpointSuffix string
	logger         log.Logger
	now            func() time.Time
}

// NewClient validates the config and creates a Client. `httpClient` can be
// nil, unless you want to provide a custom client (e.g. a test transport);
// the default one never retries.
func NewClient(cfg Config, httpClient *retryablehttp.Client, logger log.Logger) (*Client, error) {
	if cfg.WorkspaceID == "" {
		return nil, &ConfigurationError{Reason: "workspace ID is empty"}
	}
	if cfg.SharedKey == "" {
		return nil, &ConfigurationError{Reason: "shared key is empty"}
	}
	if _, err := base64.StdEncoding.DecodeString(cfg.SharedKey); err != nil {
		return nil, &ConfigurationError{Reason: "shared key is not valid base64", Err: err}
	}

	suffix := cfg.EndpointSuffix
	if suffix == "" {
		suffix = DefaultEndpointSuffix
	}

	if httpClient == nil {
		httpClient = retryhttp.NewClient(logger)
		httpClient.RetryMax = 0
		// The stock retry policy treats 5xx as a failed attempt and discards
		// the response. Every received response must reach the status check.
		httpClient.CheckRetry = func(ctx context.Context, resp *http.Response, err error) (bool, error) {
			return false, err
		}
	}

	return &Client{
		httpClient:     httpClient,
		workspaceID:    cfg.WorkspaceID,
		sharedKey:      cfg.SharedKey,
		endpointSuffix: suffix,
		logger:         logger,
		now:            time.Now,
	}, nil
}

// Send posts one payload to the collector under the given table name. The
// payload must be the final JSON array body; its length is part of the
// signature. Failures map to TransportError (no response), IngestionError
// (non-2xx response) or ErrUploadCanceled (context canceled).
func (c *Client) Send(ctx context.Context, tableName string, payload []byte) error {
	table := SanitizeTableName(tableName)
	date := c.now().UTC().Format(http.TimeFormat)

	authorization, err := buildSignature(c.workspaceID, c.sharedKey, signatureParams{
		Date:          date,
		ContentLength: len(payload),
		Method:        http.MethodPost,
		ContentType:   contentType,
		Resource:      apiResource,
	})
	if err != nil {
		return err
	}

	uri := fmt.Sprintf("https://%s%s%s?api-version=%s", c.workspaceID, c.endpointSuffix, apiResource, apiVersion)

	req, err := retryablehttp.NewRequest(http.MethodPost, uri, payload)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req = req.WithContext(ctx)
	req.Header.Set("content-type", contentType)
	req.Header.Set("Authorization", authorization)
	req.Header.Set("Log-Type", table)
	req.Header.Set("x-ms-date", date)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("%w: %s", ErrUploadCanceled, err)
		}
		return &TransportError{Err: err}
	}
	defer func(body io.ReadCloser) {
		err := body.Close()
		if err != nil {
			c.logger.Printf(err.Error())
		}
	}(resp.Body)

	c.logger.Debugf("Upload response code: %d", resp.StatusCode)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &IngestionError{StatusCode: resp.StatusCode}
	}

	return nil
}

// SanitizeTableName strips every character that is not an ASCII letter, digit
// or underscore. The collector treats the Log-Type header as a schema
// identifier with a restricted character set, so this is mandatory.
func SanitizeTableName(name string) string {
	return tableNameSanitizer.ReplaceAllString(name, "")
}
