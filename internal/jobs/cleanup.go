package jobs

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/showpls/showpls-server-go/internal/repository"
)

// CleanupJob periodically sweeps idempotent-request records past the
// retention window. Deletion is storage management, not correctness: a
// replay after expiry re-executes the operation, which callers of the
// guarded endpoints tolerate.
type CleanupJob struct {
	idempotencyRepo repository.IdempotencyRepository
	retention       time.Duration
	interval        time.Duration
	done            chan struct{}
}

func NewCleanupJob(
	idempotencyRepo repository.IdempotencyRepository,
	retention time.Duration,
	interval time.Duration,
) *CleanupJob {
	return &CleanupJob{
		idempotencyRepo: idempotencyRepo,
		retention:       retention,
		interval:        interval,
		done:            make(chan struct{}),
	}
}

func (j *CleanupJob) Start() {
	go j.run()
	log.Info().Dur("interval", j.interval).Dur("retention", j.retention).Msg("cleanup job started")
}

func (j *CleanupJob) Stop() {
	close(j.done)
	log.Info().Msg("cleanup job stopped")
}

func (j *CleanupJob) run() {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	j.cleanup()

	for {
		select {
		case <-j.done:
			return
		case <-ticker.C:
			j.cleanup()
		}
	}
}

func (j *CleanupJob) cleanup() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	count, err := j.idempotencyRepo.DeleteOlderThan(ctx, j.retention)
	if err != nil {
		log.Error().Err(err).Msg("failed to sweep idempotent requests")
	} else if count > 0 {
		log.Info().Int64("count", count).Msg("swept expired idempotent requests")
	}
}
