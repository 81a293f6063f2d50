package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"sync"
	"time"

	"evaluation-service/internal/domain"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// EvaluationLoader fetches evaluation content from a backing store (Postgres, Mongo, files).
type EvaluationLoader interface {
	LoadEvaluation(ctx context.Context, evaluationID string) (domain.Evaluation, error)
}

// EvaluationRepository caches validated evaluations in Redis and falls back to a loader on miss.
// Each evaluation is stored as one JSON value: SET evaluation:{evaluationID} {json} EX ttl
type EvaluationRepository struct {
	client *redis.Client
	loader EvaluationLoader
	ttl    time.Duration
	sf     singleflight.Group

	mu  sync.Mutex
	rnd *rand.Rand
}

func NewEvaluationRepository(client *redis.Client, loader EvaluationLoader, ttl time.Duration) *EvaluationRepository {
	return &EvaluationRepository{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (r *EvaluationRepository) GetEvaluation(ctx context.Context, evaluationID string) (domain.Evaluation, error) {
	if evaluation, ok := r.cached(ctx, evaluationID); ok {
		return evaluation, nil
	}

	result, err, _ := r.sf.Do(evaluationID, func() (interface{}, error) {
		// Re-check cache in case another instance filled it.
		if evaluation, ok := r.cached(ctx, evaluationID); ok {
			return evaluation, nil
		}

		evaluation, err := r.loader.LoadEvaluation(ctx, evaluationID)
		if err != nil {
			return domain.Evaluation{}, err
		}
		if err := evaluation.Validate(); err != nil {
			return domain.Evaluation{}, fmt.Errorf("evaluation %s: %w", evaluationID, err)
		}

		payload, err := json.Marshal(evaluation)
		if err != nil {
			return domain.Evaluation{}, fmt.Errorf("encode evaluation %s: %w", evaluationID, err)
		}
		// best-effort: a failed cache write only costs another load
		if err := r.client.Set(ctx, Key(evaluationID), payload, r.ttlWithJitter()).Err(); err != nil {
			log.Printf("cache evaluation %s: %v", evaluationID, err)
		}
		return evaluation, nil
	})
	if err != nil {
		return domain.Evaluation{}, err
	}
	return result.(domain.Evaluation), nil
}

// Invalidate drops the cached copy so the next read reloads it.
func (r *EvaluationRepository) Invalidate(ctx context.Context, evaluationID string) error {
	return r.client.Del(ctx, Key(evaluationID)).Err()
}

// Key is the Redis key holding a cached evaluation.
func Key(evaluationID string) string {
	return "evaluation:" + evaluationID
}

func (r *EvaluationRepository) cached(ctx context.Context, evaluationID string) (domain.Evaluation, bool) {
	payload, err := r.client.Get(ctx, Key(evaluationID)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.Printf("read cached evaluation %s: %v", evaluationID, err)
		}
		return domain.Evaluation{}, false
	}
	var evaluation domain.Evaluation
	if err := json.Unmarshal(payload, &evaluation); err != nil {
		log.Printf("decode cached evaluation %s: %v", evaluationID, err)
		return domain.Evaluation{}, false
	}
	return evaluation, true
}

func (r *EvaluationRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	jitterMax := int64(r.ttl) / 10
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
