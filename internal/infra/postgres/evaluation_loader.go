package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"evaluation-service/internal/domain"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

// EvaluationLoader loads evaluation JSONB from Postgres.
type EvaluationLoader struct {
	pool *pgxpool.Pool
}

func NewEvaluationLoader(pool *pgxpool.Pool) *EvaluationLoader {
	return &EvaluationLoader{pool: pool}
}

func (l *EvaluationLoader) LoadEvaluation(ctx context.Context, evaluationID string) (domain.Evaluation, error) {
	var raw []byte
	err := l.pool.QueryRow(ctx, `SELECT data FROM evaluations WHERE id=$1`, evaluationID).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Evaluation{}, domain.ErrEvaluationNotFound
	}
	if err != nil {
		return domain.Evaluation{}, fmt.Errorf("load evaluation: %w", err)
	}
	var evaluation domain.Evaluation
	if err := json.Unmarshal(raw, &evaluation); err != nil {
		return domain.Evaluation{}, fmt.Errorf("unmarshal evaluation: %w", err)
	}
	if evaluation.ID == "" {
		evaluation.ID = evaluationID
	}
	return evaluation, nil
}
