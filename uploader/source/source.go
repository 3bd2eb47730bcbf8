// Package source resolves upload requests (an in-memory table, a delimited
// file, a directory or an S3 prefix) into uniform (table name, records) work
// units for the uploader.
package source

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/bitrise-io/go-utils/v2/log"
	"github.com/bitrise-io/go-utils/v2/pathutil"

	"github.com/sentinelkit/go-ingestutils/uploader/batch"
)

const defaultDelimiter = ','

// Unit is one (table name, record sequence) pair. Records are loaded lazily
// so a directory resolve does not read every file up front.
type Unit interface {
	TableName() string
	Records(ctx context.Context) ([]batch.Record, error)
}

// Resolver turns upload inputs into Units.
type Resolver struct {
	logger       log.Logger
	pathProvider pathutil.PathProvider
	downloader   FileDownloader
}

// NewResolver creates a Resolver. `downloader` can be nil, unless you want to
// provide a custom FileDownloader implementation for remote sources.
func NewResolver(logger log.Logger, pathProvider pathutil.PathProvider, downloader FileDownloader) Resolver {
	var downloaderImpl FileDownloader = downloader
	if downloader == nil {
		downloaderImpl = NewFileDownloader(nil)
	}
	return Resolver{
		logger:       logger,
		pathProvider: pathProvider,
		downloader:   downloaderImpl,
	}
}

type tableUnit struct {
	name    string
	records []batch.Record
}

func (u tableUnit) TableName() string {
	return u.name
}

func (u tableUnit) Records(ctx context.Context) ([]batch.Record, error) {
	return u.records, nil
}

// FromTable wraps an in-memory row set into a single Unit. Row values are
// coerced to their textual form.
func (r Resolver) FromTable(tableName string, rows []map[string]interface{}) (Unit, error) {
	if strings.TrimSpace(tableName) == "" {
		return nil, fmt.Errorf("table name should not be empty")
	}

	records := make([]batch.Record, 0, len(rows))
	for _, row := range rows {
		records = append(records, batch.Stringify(row))
	}

	return tableUnit{name: tableName, records: records}, nil
}

// FileParams ...
type FileParams struct {
	// Path is a local path, a file:// path or an http(s):// URL.
	Path string
	// TableName is the target table. Empty means derived from the file name.
	TableName string
	// Delimiter is the value separator. Zero means comma.
	Delimiter rune
}

// FromFile resolves a single delimited file into a Unit. Remote paths are
// downloaded to a temporary location first. Files ending in .gz are
// decompressed while reading.
func (r Resolver) FromFile(ctx context.Context, params FileParams) (Unit, error) {
	if params.Path == "" {
		return nil, fmt.Errorf("file path should not be empty")
	}

	localPath, err := r.localPath(ctx, params.Path)
	if err != nil {
		return nil, fmt.Errorf("resolve file path: %w", err)
	}

	tableName := params.TableName
	if tableName == "" {
		tableName = TableNameFromPath(params.Path)
	}

	return fileUnit{
		path:      localPath,
		name:      tableName,
		delimiter: delimiterOrDefault(params.Delimiter),
		logger:    r.logger,
	}, nil
}

// TableNameFromPath derives a table name from a file path: the final path
// segment, cut at the first dot. Any remaining disallowed characters are
// stripped later by the protocol-level sanitization.
func TableNameFromPath(path string) string {
	base := filepath.Base(strings.ReplaceAll(path, `\`, "/"))
	if i := strings.IndexByte(base, '.'); i >= 0 {
		base = base[:i]
	}
	return base
}

func delimiterOrDefault(delimiter rune) rune {
	if delimiter == 0 {
		return defaultDelimiter
	}
	return delimiter
}
