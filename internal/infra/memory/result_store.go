package memory

import (
	"context"
	"sync"

	"evaluation-service/internal/domain"
)

// ResultStore keeps recorded attempts in process. It backs local runs and tests.
type ResultStore struct {
	mu      sync.RWMutex
	records []domain.ResultRecord
}

func NewResultStore() *ResultStore {
	return &ResultStore{}
}

func (s *ResultStore) RecordResult(_ context.Context, record domain.ResultRecord) error {
	record.Result.Answers = record.Result.Answers.Clone()
	s.mu.Lock()
	s.records = append(s.records, record)
	s.mu.Unlock()
	return nil
}

// ListResults returns the newest records first; limit <= 0 means all.
func (s *ResultStore) ListResults(_ context.Context, evaluationID string, limit int) ([]domain.ResultRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.ResultRecord, 0)
	for i := len(s.records) - 1; i >= 0; i-- {
		if s.records[i].EvaluationID != evaluationID {
			continue
		}
		out = append(out, s.records[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}
