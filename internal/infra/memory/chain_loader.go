package memory

import (
	"context"
	"errors"

	"evaluation-service/internal/domain"
)

// ChainLoader asks each loader in turn and returns the first evaluation found.
// Only ErrEvaluationNotFound moves on to the next loader.
type ChainLoader []EvaluationLoader

func (c ChainLoader) LoadEvaluation(ctx context.Context, evaluationID string) (domain.Evaluation, error) {
	for _, loader := range c {
		evaluation, err := loader.LoadEvaluation(ctx, evaluationID)
		if errors.Is(err, domain.ErrEvaluationNotFound) {
			continue
		}
		return evaluation, err
	}
	return domain.Evaluation{}, domain.ErrEvaluationNotFound
}
