package source

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/melbahja/got"
)

const fileSchema = "file://"

// FileDownloader fetches a remote source file to a local destination path.
type FileDownloader interface {
	Get(ctx context.Context, destination, source string) error
}

type gotFileDownloader struct {
	client *http.Client
}

// NewFileDownloader creates the default got-backed FileDownloader. `client`
// can be nil, unless you want to provide a custom *http.Client.
func NewFileDownloader(client *http.Client) FileDownloader {
	return gotFileDownloader{client: client}
}

func (d gotFileDownloader) Get(ctx context.Context, destination, source string) error {
	downloader := got.New()
	if d.client != nil {
		downloader.Client = d.client
	}

	return downloader.Do(got.NewDownload(ctx, source, destination))
}

func isRemotePath(path string) bool {
	return strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://")
}

// localPath returns a local filesystem path for the given source path,
// downloading remote URLs to a temporary directory first.
func (r Resolver) localPath(ctx context.Context, path string) (string, error) {
	if strings.HasPrefix(path, fileSchema) {
		return strings.TrimPrefix(path, fileSchema), nil
	}
	if !isRemotePath(path) {
		return path, nil
	}

	tmpDir, err := r.pathProvider.CreateTempDir("ingest-source")
	if err != nil {
		return "", fmt.Errorf("create temp dir: %w", err)
	}

	parsed, err := url.Parse(path)
	if err != nil {
		return "", fmt.Errorf("parse source URL: %w", err)
	}

	// A host-only or trailing-slash URL has no usable base name.
	name := filepath.Base(parsed.Path)
	if name == "." || name == "/" || name == "" {
		name = "source"
	}

	destination := filepath.Join(tmpDir, name)
	r.logger.Debugf("Downloading %s to %s", path, destination)
	if err := r.downloader.Get(ctx, destination, path); err != nil {
		return "", fmt.Errorf("download source file: %w", err)
	}

	return destination, nil
}
