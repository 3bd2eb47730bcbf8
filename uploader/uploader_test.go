package uploader

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/bitrise-io/go-utils/v2/log"
	"github.com/bitrise-io/go-utils/v2/pathutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sentinelkit/go-ingestutils/uploader/network"
	"github.com/sentinelkit/go-ingestutils/uploader/source"
)

func newTestUploader(sender network.Sender, progress ProgressFunc, maxPayloadBytes int64) *Uploader {
	logger := log.NewLogger()
	if progress == nil {
		progress = func(completed, total int) {}
	}
	return &Uploader{
		config: Config{
			WorkspaceID:     "myworkspace",
			SharedKey:       "a2V5",
			MaxPayloadBytes: maxPayloadBytes,
		},
		logger:   logger,
		sender:   sender,
		resolver: source.NewResolver(logger, pathutil.NewPathProvider(), nil),
		progress: progress,
		tracker:  &fakeTracker{},
	}
}

func writeCSV(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0600))
}

func Test_New_invalidConfig(t *testing.T) {
	_, err := New(Config{WorkspaceID: "myworkspace", SharedKey: "%%%"}, log.NewLogger(), nil, nil)
	require.Error(t, err)

	var configErr *network.ConfigurationError
	assert.True(t, errors.As(err, &configErr))
}

func Test_UploadTable(t *testing.T) {
	sender := newFakeSender()
	progress := &progressRecorder{}
	uploader := newTestUploader(sender, progress.record, 0)

	err := uploader.UploadTable(context.Background(), "HostEvents", []map[string]interface{}{
		{"host": "web-1", "count": 3},
		{"host": "web-2", "count": 7},
	})
	require.NoError(t, err)

	require.Len(t, sender.calls, 1)
	assert.Equal(t, "HostEvents", sender.calls[0].TableName)

	var decoded []map[string]string
	require.NoError(t, json.Unmarshal(sender.calls[0].Payload, &decoded))
	assert.Equal(t, []map[string]string{
		{"host": "web-1", "count": "3"},
		{"host": "web-2", "count": "7"},
	}, decoded)

	assert.Equal(t, []progressCall{{0, 1}, {1, 1}}, progress.calls)
}

func Test_UploadTable_emptyTableSendsNothing(t *testing.T) {
	sender := newFakeSender()
	uploader := newTestUploader(sender, nil, 0)

	err := uploader.UploadTable(context.Background(), "HostEvents", nil)
	require.NoError(t, err)
	assert.Empty(t, sender.calls)
}

func Test_UploadTable_splitsOversizedPayloads(t *testing.T) {
	sender := newFakeSender()
	uploader := newTestUploader(sender, nil, 120)

	var rows []map[string]interface{}
	for i := 0; i < 9; i++ {
		rows = append(rows, map[string]interface{}{"seq": i, "data": "0123456789012345678901234567890123456789"})
	}
	err := uploader.UploadTable(context.Background(), "Big", rows)
	require.NoError(t, err)
	require.Greater(t, len(sender.calls), 1)

	// No record loss, no reordering, no duplication across the split payloads.
	var got []map[string]string
	for _, call := range sender.calls {
		assert.Equal(t, "Big", call.TableName)
		var decoded []map[string]string
		require.NoError(t, json.Unmarshal(call.Payload, &decoded))
		got = append(got, decoded...)
	}
	require.Len(t, got, len(rows))
	for i, record := range got {
		assert.Equal(t, strconv.Itoa(i), record["seq"])
	}
}

func Test_UploadFile_derivedTableName(t *testing.T) {
	dir := t.TempDir()
	writeCSV(t, dir, "hosts.csv", "host,ip\nweb-1,10.0.0.1\n")

	sender := newFakeSender()
	uploader := newTestUploader(sender, nil, 0)

	err := uploader.UploadFile(context.Background(), FileInput{Path: filepath.Join(dir, "hosts.csv")})
	require.NoError(t, err)

	require.Len(t, sender.calls, 1)
	assert.Equal(t, "hosts", sender.calls[0].TableName)
}

func Test_UploadDir_sharedTableName(t *testing.T) {
	dir := t.TempDir()
	writeCSV(t, dir, "hosts.csv", "host\nweb-1\n")
	writeCSV(t, dir, "users.csv", "user\nalice\n")
	writeCSV(t, dir, "events.csv", "event\nlogin\n")

	sender := newFakeSender()
	progress := &progressRecorder{}
	uploader := newTestUploader(sender, progress.record, 0)

	err := uploader.UploadDir(context.Background(), DirInput{Dir: dir, TableName: "AllLogs"})
	require.NoError(t, err)

	assert.Equal(t, []string{"AllLogs", "AllLogs", "AllLogs"}, sender.sentTables())
	assert.Equal(t, []progressCall{{0, 3}, {1, 3}, {2, 3}, {3, 3}}, progress.calls)
}

func Test_UploadDir_derivedTableNames(t *testing.T) {
	dir := t.TempDir()
	writeCSV(t, dir, "hosts.csv", "host\nweb-1\n")
	writeCSV(t, dir, "users.csv", "user\nalice\n")

	sender := newFakeSender()
	uploader := newTestUploader(sender, nil, 0)

	err := uploader.UploadDir(context.Background(), DirInput{Dir: dir})
	require.NoError(t, err)

	tables := sender.sentTables()
	assert.ElementsMatch(t, []string{"hosts", "users"}, tables)
}

func Test_UploadDir_failFastAbortsRemainingUnits(t *testing.T) {
	dir := t.TempDir()
	writeCSV(t, dir, "a.csv", "col\n1\n")
	writeCSV(t, dir, "b.csv", "col\n2\n")
	writeCSV(t, dir, "c.csv", "col\n3\n")

	sender := newFakeSender()
	sender.failOn = 0
	sender.failErr = &network.IngestionError{StatusCode: http.StatusForbidden}

	progress := &progressRecorder{}
	uploader := newTestUploader(sender, progress.record, 0)

	err := uploader.UploadDir(context.Background(), DirInput{Dir: dir})
	require.Error(t, err)

	var ingestionErr *network.IngestionError
	require.True(t, errors.As(err, &ingestionErr))
	assert.Equal(t, http.StatusForbidden, ingestionErr.StatusCode)

	// The first send failed, so nothing was delivered and no further batch
	// or unit was attempted.
	assert.Empty(t, sender.calls)
	assert.Equal(t, []progressCall{{0, 3}}, progress.calls)
}

func Test_Upload_canceledContext(t *testing.T) {
	dir := t.TempDir()
	writeCSV(t, dir, "hosts.csv", "host\nweb-1\n")

	sender := newFakeSender()
	uploader := newTestUploader(sender, nil, 0)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := uploader.UploadDir(ctx, DirInput{Dir: dir})
	require.Error(t, err)
	assert.True(t, errors.Is(err, network.ErrUploadCanceled))
	assert.Empty(t, sender.calls)
}

func Test_ConfigFromEnv(t *testing.T) {
	tests := []struct {
		name    string
		envVars map[string]string
		want    Config
		wantErr bool
	}{
		{
			name: "all set",
			envVars: map[string]string{
				"LOG_INGEST_WORKSPACE_ID":    "myworkspace",
				"LOG_INGEST_SHARED_KEY":      "a2V5",
				"LOG_INGEST_ENDPOINT_SUFFIX": ".ods.opinsights.azure.us",
			},
			want: Config{
				WorkspaceID:    "myworkspace",
				SharedKey:      "a2V5",
				EndpointSuffix: ".ods.opinsights.azure.us",
			},
		},
		{
			name:    "missing workspace ID",
			envVars: map[string]string{"LOG_INGEST_SHARED_KEY": "a2V5"},
			wantErr: true,
		},
		{
			name:    "missing shared key",
			envVars: map[string]string{"LOG_INGEST_WORKSPACE_ID": "myworkspace"},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ConfigFromEnv(fakeEnvRepo{envVars: tt.envVars})
			if (err != nil) != tt.wantErr {
				t.Errorf("ConfigFromEnv() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if !tt.wantErr {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func Test_Secret_redactsItself(t *testing.T) {
	assert.Equal(t, "*****", Secret("a2V5").String())
	assert.Equal(t, "", Secret("").String())
}
