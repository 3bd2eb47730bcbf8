// Package uploader drives bulk record ingestion: it resolves sources into
// work units, partitions each unit into size-bounded batches and sends every
// batch as one signed request. Processing is strictly sequential and
// fail-fast: the first transport or ingestion failure aborts the run.
package uploader

import (
	"context"
	"fmt"
	"time"

	"github.com/bitrise-io/go-utils/v2/log"
	"github.com/bitrise-io/go-utils/v2/pathutil"
	"github.com/docker/go-units"

	"github.com/sentinelkit/go-ingestutils/uploader/batch"
	"github.com/sentinelkit/go-ingestutils/uploader/network"
	"github.com/sentinelkit/go-ingestutils/uploader/source"
)

// ProgressFunc receives the monotonically increasing completed-unit count
// against the known total, once before the first unit and once after each
// unit. Implementations must not block; rendering is the caller's concern.
type ProgressFunc func(completed, total int)

// FileInput ...
type FileInput struct {
	// Path is a local path, a file:// path or an http(s):// URL.
	Path string
	// TableName is the target table. Empty means derived from the file name.
	TableName string
	// Delimiter is the value separator. Zero means comma.
	Delimiter rune
}

// DirInput ...
type DirInput struct {
	// Dir is the directory whose files are uploaded.
	Dir string
	// TableName, when set, sends every file to the same table; when empty
	// each file gets its own derived table name.
	TableName string
	// Delimiter is the value separator. Zero means comma (and a *.csv filter).
	Delimiter rune
}

// Uploader ...
type Uploader struct {
	config   Config
	logger   log.Logger
	sender   network.Sender
	resolver source.Resolver
	progress ProgressFunc
	tracker  usageTracker
}

// New validates the config and creates an Uploader. `sender` can be nil,
// unless you want to provide a custom network.Sender implementation (e.g. a
// fake transport in tests). `progress` can be nil.
func New(config Config, logger log.Logger, sender network.Sender, progress ProgressFunc) (*Uploader, error) {
	if sender == nil {
		client, err := network.NewClient(network.Config{
			WorkspaceID:    config.WorkspaceID,
			SharedKey:      string(config.SharedKey),
			EndpointSuffix: config.EndpointSuffix,
		}, nil, logger)
		if err != nil {
			return nil, err
		}
		sender = client
	}
	if progress == nil {
		progress = func(completed, total int) {}
	}

	return &Uploader{
		config:   config,
		logger:   logger,
		sender:   sender,
		resolver: source.NewResolver(logger, pathutil.NewPathProvider(), nil),
		progress: progress,
		tracker:  newUploadTracker(config.WorkspaceID, logger),
	}, nil
}

// UploadTable uploads an in-memory row set to the given table.
func (u *Uploader) UploadTable(ctx context.Context, tableName string, rows []map[string]interface{}) error {
	unit, err := u.resolver.FromTable(tableName, rows)
	if err != nil {
		return fmt.Errorf("failed to parse inputs: %w", err)
	}
	return u.uploadUnits(ctx, []source.Unit{unit})
}

// UploadFile uploads a single delimited file.
func (u *Uploader) UploadFile(ctx context.Context, input FileInput) error {
	unit, err := u.resolver.FromFile(ctx, source.FileParams{
		Path:      input.Path,
		TableName: input.TableName,
		Delimiter: input.Delimiter,
	})
	if err != nil {
		return fmt.Errorf("failed to parse inputs: %w", err)
	}
	return u.uploadUnits(ctx, []source.Unit{unit})
}

// UploadDir uploads every matching file in a directory, in enumeration order.
func (u *Uploader) UploadDir(ctx context.Context, input DirInput) error {
	uploadUnits, err := u.resolver.FromDir(source.DirParams{
		Dir:       input.Dir,
		TableName: input.TableName,
		Delimiter: input.Delimiter,
	})
	if err != nil {
		return fmt.Errorf("failed to parse inputs: %w", err)
	}
	return u.uploadUnits(ctx, uploadUnits)
}

// UploadS3Prefix uploads every matching object under an S3 bucket prefix.
func (u *Uploader) UploadS3Prefix(ctx context.Context, params source.S3Params) error {
	uploadUnits, err := u.resolver.FromS3(ctx, params)
	if err != nil {
		return fmt.Errorf("failed to parse inputs: %w", err)
	}
	return u.uploadUnits(ctx, uploadUnits)
}

func (u *Uploader) uploadUnits(ctx context.Context, uploadUnits []source.Unit) error {
	total := len(uploadUnits)

	defer u.tracker.wait()

	u.progress(0, total)
	for i, unit := range uploadUnits {
		if err := ctx.Err(); err != nil {
			u.tracker.logUploadFailed(unit.TableName(), i, total)
			return fmt.Errorf("%w: %s", network.ErrUploadCanceled, err)
		}

		if err := u.uploadUnit(ctx, unit); err != nil {
			u.tracker.logUploadFailed(unit.TableName(), i, total)
			return fmt.Errorf("upload to %s: %w", unit.TableName(), err)
		}
		u.progress(i+1, total)
	}

	return nil
}

func (u *Uploader) uploadUnit(ctx context.Context, unit source.Unit) error {
	startTime := time.Now()

	records, err := unit.Records(ctx)
	if err != nil {
		return fmt.Errorf("read source: %w", err)
	}

	accumulator := batch.NewAccumulator(u.config.MaxPayloadBytes)
	batchCount := 0
	var sentBytes int64

	for _, record := range records {
		completed, err := accumulator.Append(record)
		if err != nil {
			return err
		}
		if completed == nil {
			continue
		}

		u.logger.Debugf("Payload over the request limit, splitting into multiple requests")
		if err := u.sendBatch(ctx, unit.TableName(), completed); err != nil {
			return err
		}
		batchCount++
		sentBytes += completed.Size()
	}

	residual, err := accumulator.Flush()
	if err != nil {
		return err
	}
	if residual != nil {
		if err := u.sendBatch(ctx, unit.TableName(), residual); err != nil {
			return err
		}
		batchCount++
		sentBytes += residual.Size()
	}

	uploadTime := time.Since(startTime)
	u.logger.Donef("Uploaded %d records to %s in %d request(s), %s",
		len(records), unit.TableName(), batchCount, units.HumanSizeWithPrecision(float64(sentBytes), 3))
	u.tracker.logUnitUploaded(unit.TableName(), len(records), batchCount, sentBytes, uploadTime)

	return nil
}

func (u *Uploader) sendBatch(ctx context.Context, tableName string, completed *batch.Batch) error {
	ceiling := u.config.MaxPayloadBytes
	if ceiling <= 0 {
		ceiling = batch.DefaultMaxPayloadBytes
	}
	if len(completed.Records) == 1 && completed.Size() > ceiling {
		u.logger.Warnf("A single record serializes to %s, above the %s request limit; sending anyway",
			units.HumanSizeWithPrecision(float64(completed.Size()), 3),
			units.HumanSizeWithPrecision(float64(ceiling), 3))
	}

	u.logger.Debugf("Sending %d record(s) (%s) to %s",
		len(completed.Records), units.HumanSizeWithPrecision(float64(completed.Size()), 3), tableName)

	return u.sender.Send(ctx, tableName, completed.Payload)
}
