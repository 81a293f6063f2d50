package memory

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"evaluation-service/internal/domain"
	"golang.org/x/sync/singleflight"
)

// EvaluationLoader fetches evaluation content from a backing store (Postgres, Mongo, files).
type EvaluationLoader interface {
	LoadEvaluation(ctx context.Context, evaluationID string) (domain.Evaluation, error)
}

// EvaluationRepository caches validated evaluations with a TTL to avoid repeated store hits.
type EvaluationRepository struct {
	loader EvaluationLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group

	mu    sync.RWMutex
	rnd   *rand.Rand
	cache map[string]cachedEvaluation
}

type cachedEvaluation struct {
	evaluation domain.Evaluation
	expiresAt  time.Time
}

func NewEvaluationRepository(loader EvaluationLoader, ttl time.Duration) *EvaluationRepository {
	return &EvaluationRepository{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:  make(map[string]cachedEvaluation),
	}
}

func (r *EvaluationRepository) GetEvaluation(ctx context.Context, evaluationID string) (domain.Evaluation, error) {
	if evaluation, ok := r.cached(evaluationID); ok {
		return evaluation, nil
	}

	result, err, _ := r.sf.Do(evaluationID, func() (interface{}, error) {
		if evaluation, ok := r.cached(evaluationID); ok {
			return evaluation, nil
		}

		evaluation, err := r.loader.LoadEvaluation(ctx, evaluationID)
		if err != nil {
			return domain.Evaluation{}, err
		}
		if err := evaluation.Validate(); err != nil {
			return domain.Evaluation{}, fmt.Errorf("evaluation %s: %w", evaluationID, err)
		}
		if r.ttl <= 0 {
			return evaluation, nil
		}

		r.mu.Lock()
		r.cache[evaluationID] = cachedEvaluation{
			evaluation: evaluation,
			expiresAt:  r.clock().Add(r.ttlWithJitterLocked()),
		}
		r.mu.Unlock()
		return evaluation, nil
	})
	if err != nil {
		return domain.Evaluation{}, err
	}
	return result.(domain.Evaluation), nil
}

// Invalidate drops a cached evaluation, e.g. after a bank is re-imported.
func (r *EvaluationRepository) Invalidate(_ context.Context, evaluationID string) error {
	r.mu.Lock()
	delete(r.cache, evaluationID)
	r.mu.Unlock()
	return nil
}

func (r *EvaluationRepository) cached(evaluationID string) (domain.Evaluation, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.cache[evaluationID]
	if !ok || !entry.expiresAt.After(r.clock()) {
		return domain.Evaluation{}, false
	}
	return entry.evaluation, true
}

// ttlWithJitterLocked adds up to 10% to spread expirations.
func (r *EvaluationRepository) ttlWithJitterLocked() time.Duration {
	jitterMax := int64(r.ttl) / 10
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}

// StaticLoader serves evaluations from a map (tests, demos, and banks loaded up front).
type StaticLoader struct {
	evaluations map[string]domain.Evaluation
}

func NewStaticLoader(evaluations ...domain.Evaluation) *StaticLoader {
	byID := make(map[string]domain.Evaluation, len(evaluations))
	for _, e := range evaluations {
		byID[e.ID] = e
	}
	return &StaticLoader{evaluations: byID}
}

func (l *StaticLoader) LoadEvaluation(_ context.Context, evaluationID string) (domain.Evaluation, error) {
	if evaluation, ok := l.evaluations[evaluationID]; ok {
		return evaluation, nil
	}
	return domain.Evaluation{}, domain.ErrEvaluationNotFound
}
