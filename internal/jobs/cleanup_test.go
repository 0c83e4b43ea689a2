package jobs

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/showpls/showpls-server-go/internal/model"
)

type sweepRecordingRepo struct {
	mu         sync.Mutex
	calls      int
	retentions []time.Duration
}

func (r *sweepRecordingRepo) FindByKey(ctx context.Context, key uuid.UUID) (*model.IdempotentRequest, error) {
	return nil, nil
}

func (r *sweepRecordingRepo) Insert(ctx context.Context, key uuid.UUID, operation string, response json.RawMessage) error {
	return nil
}

func (r *sweepRecordingRepo) DeleteOlderThan(ctx context.Context, retention time.Duration) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	r.retentions = append(r.retentions, retention)
	return 3, nil
}

func (r *sweepRecordingRepo) snapshot() (int, []time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls, append([]time.Duration(nil), r.retentions...)
}

func TestCleanupJobSweepsOnStartAndInterval(t *testing.T) {
	repo := &sweepRecordingRepo{}
	job := NewCleanupJob(repo, 24*time.Hour, 10*time.Millisecond)

	job.Start()
	defer job.Stop()

	require.Eventually(t, func() bool {
		calls, _ := repo.snapshot()
		return calls >= 3
	}, time.Second, 5*time.Millisecond, "expected an immediate sweep plus ticks")

	_, retentions := repo.snapshot()
	for _, retention := range retentions {
		assert.Equal(t, 24*time.Hour, retention)
	}
}

func TestCleanupJobStopsSweeping(t *testing.T) {
	repo := &sweepRecordingRepo{}
	job := NewCleanupJob(repo, time.Hour, 10*time.Millisecond)

	job.Start()
	require.Eventually(t, func() bool {
		calls, _ := repo.snapshot()
		return calls >= 1
	}, time.Second, 5*time.Millisecond)

	job.Stop()
	callsAtStop, _ := repo.snapshot()

	time.Sleep(50 * time.Millisecond)
	callsAfter, _ := repo.snapshot()
	assert.LessOrEqual(t, callsAfter, callsAtStop+1, "sweeping must stop after Stop")
}
