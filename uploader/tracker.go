package uploader

import (
	"time"

	"github.com/bitrise-io/go-utils/v2/analytics"
	"github.com/bitrise-io/go-utils/v2/log"
)

type usageTracker interface {
	logUnitUploaded(tableName string, recordCount int, batchCount int, sentBytes int64, uploadTime time.Duration)
	logUploadFailed(tableName string, unitsCompleted int, unitsTotal int)
	wait()
}

type uploadTracker struct {
	tracker analytics.Tracker
	logger  log.Logger
}

func newUploadTracker(workspaceID string, logger log.Logger) *uploadTracker {
	p := analytics.Properties{
		"workspace_id": workspaceID,
	}
	return &uploadTracker{
		tracker: analytics.NewDefaultTracker(logger, p),
		logger:  logger,
	}
}

func (t *uploadTracker) logUnitUploaded(tableName string, recordCount int, batchCount int, sentBytes int64, uploadTime time.Duration) {
	properties := analytics.Properties{
		"table_name":    tableName,
		"record_count":  recordCount,
		"batch_count":   batchCount,
		"sent_bytes":    sentBytes,
		"upload_time_s": uploadTime.Truncate(time.Second).Seconds(),
	}
	t.tracker.Enqueue("ingest_unit_uploaded", properties)
}

func (t *uploadTracker) logUploadFailed(tableName string, unitsCompleted int, unitsTotal int) {
	properties := analytics.Properties{
		"table_name":      tableName,
		"units_completed": unitsCompleted,
		"units_total":     unitsTotal,
	}
	t.tracker.Enqueue("ingest_upload_failed", properties)
}

func (t *uploadTracker) wait() {
	t.tracker.Wait()
}
