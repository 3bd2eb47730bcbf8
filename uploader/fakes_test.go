package uploader

import (
	"context"
	"fmt"
	"sync"
	"time"
)

type fakeEnvRepo struct {
	envVars map[string]string
}

func (repo fakeEnvRepo) Get(key string) string {
	value, ok := repo.envVars[key]
	if ok {
		return value
	}
	return ""
}

func (repo fakeEnvRepo) Set(key, value string) error {
	repo.envVars[key] = value
	return nil
}

func (repo fakeEnvRepo) Unset(key string) error {
	delete(repo.envVars, key)
	return nil
}

func (repo fakeEnvRepo) List() []string {
	envs := []string{}
	for k, v := range repo.envVars {
		envs = append(envs, fmt.Sprintf("%s=%s", k, v))
	}
	return envs
}

type sentPayload struct {
	TableName string
	Payload   []byte
}

// fakeSender records every send and can fail a call by index.
type fakeSender struct {
	mu      sync.Mutex
	calls   []sentPayload
	failOn  int
	failErr error
}

func newFakeSender() *fakeSender {
	return &fakeSender{failOn: -1}
}

func (s *fakeSender) Send(ctx context.Context, tableName string, payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failErr != nil && len(s.calls) == s.failOn {
		return s.failErr
	}

	buf := make([]byte, len(payload))
	copy(buf, payload)
	s.calls = append(s.calls, sentPayload{TableName: tableName, Payload: buf})
	return nil
}

func (s *fakeSender) sentTables() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var tables []string
	for _, call := range s.calls {
		tables = append(tables, call.TableName)
	}
	return tables
}

type fakeTracker struct {
	unitsUploaded int
	failures      int
}

func (t *fakeTracker) logUnitUploaded(tableName string, recordCount int, batchCount int, sentBytes int64, uploadTime time.Duration) {
	t.unitsUploaded++
}

func (t *fakeTracker) logUploadFailed(tableName string, unitsCompleted int, unitsTotal int) {
	t.failures++
}

func (t *fakeTracker) wait() {}

type progressCall struct {
	Completed int
	Total     int
}

type progressRecorder struct {
	calls []progressCall
}

func (r *progressRecorder) record(completed, total int) {
	r.calls = append(r.calls, progressCall{Completed: completed, Total: total})
}
