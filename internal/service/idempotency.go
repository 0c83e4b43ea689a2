package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	apperrors "github.com/showpls/showpls-server-go/internal/errors"
	"github.com/showpls/showpls-server-go/internal/repository"
)

// OperationFunc produces the side effect guarded by an idempotency key and
// returns the serialized response to cache.
type OperationFunc func(ctx context.Context) (json.RawMessage, error)

// IdempotencyService guarantees at-most-once execution of an operation per
// client-supplied key. Two layers cooperate: a per-key lock serializes
// concurrent callers inside this process, and the backing table's unique
// constraint on the key is the arbiter across processes — the writer losing
// an insert race reads back the winner's response instead of erroring.
type IdempotencyService struct {
	repo  repository.IdempotencyRepository
	locks keyLocks
}

func NewIdempotencyService(repo repository.IdempotencyRepository) *IdempotencyService {
	return &IdempotencyService{
		repo: repo,
		locks: keyLocks{
			held: make(map[uuid.UUID]*keyLock),
		},
	}
}

// Execute runs fn at most once for the given key and returns its response.
// replayed is true when the response came from the store rather than from
// invoking fn during this call.
//
// A nil key runs fn directly (soft mode). Routes that move money must not
// rely on soft mode; the idempotency middleware enforces key presence there.
func (s *IdempotencyService) Execute(
	ctx context.Context,
	key *uuid.UUID,
	operation string,
	fn OperationFunc,
) (response json.RawMessage, replayed bool, err error) {
	if key == nil {
		response, err = fn(ctx)
		return response, false, err
	}

	lock := s.locks.acquire(*key)
	defer s.locks.release(*key, lock)

	existing, err := s.repo.FindByKey(ctx, *key)
	if err != nil {
		return nil, false, apperrors.StoreUnavailable(fmt.Errorf("idempotency lookup: %w", err))
	}
	if existing != nil {
		if existing.Operation != operation {
			log.Warn().
				Str("key", key.String()).
				Str("storedOperation", existing.Operation).
				Str("operation", operation).
				Msg("idempotency key reused across operations")
		}
		return existing.Response, true, nil
	}

	response, err = fn(ctx)
	if err != nil {
		// Nothing persisted; a retry with the same key may re-attempt.
		return nil, false, err
	}

	if insertErr := s.repo.Insert(ctx, *key, operation, response); insertErr != nil {
		if errors.Is(insertErr, repository.ErrDuplicateKey) {
			// Lost the insert race. Return the winner's stored response so
			// every caller observes identical bytes.
			winner, findErr := s.repo.FindByKey(ctx, *key)
			if findErr == nil && winner != nil {
				return winner.Response, true, nil
			}
			log.Error().
				Err(findErr).
				Str("key", key.String()).
				Msg("idempotency conflict fallback read failed; returning local result")
			return response, false, nil
		}

		// The operation already succeeded; a caching failure must not mask
		// that from the caller. The next duplicate may re-execute, which is
		// the documented degraded mode.
		log.Error().
			Err(insertErr).
			Str("key", key.String()).
			Str("operation", operation).
			Msg("idempotency record write failed; duplicate requests may re-execute")
	}

	return response, false, nil
}

// keyLocks hands out one mutex per in-flight idempotency key. Entries are
// reference counted and removed once the last holder releases, so the map
// stays bounded by the number of concurrent guarded requests.
type keyLocks struct {
	mu   sync.Mutex
	held map[uuid.UUID]*keyLock
}

type keyLock struct {
	mu   sync.Mutex
	refs int
}

func (l *keyLocks) acquire(key uuid.UUID) *keyLock {
	l.mu.Lock()
	lock, ok := l.held[key]
	if !ok {
		lock = &keyLock{}
		l.held[key] = lock
	}
	lock.refs++
	l.mu.Unlock()

	lock.mu.Lock()
	return lock
}

func (l *keyLocks) release(key uuid.UUID, lock *keyLock) {
	lock.mu.Unlock()

	l.mu.Lock()
	lock.refs--
	if lock.refs == 0 {
		delete(l.held, key)
	}
	l.mu.Unlock()
}
