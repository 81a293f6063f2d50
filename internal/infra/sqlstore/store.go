package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"evaluation-service/internal/domain"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type evaluationRow struct {
	bun.BaseModel `bun:"table:evaluations"`

	ID        string    `bun:"id,pk"`
	Title     string    `bun:"title"`
	Data      string    `bun:"data"`
	UpdatedAt time.Time `bun:"updated_at"`
}

type resultRow struct {
	bun.BaseModel `bun:"table:evaluation_results"`

	ID              string    `bun:"id,pk"`
	SessionID       string    `bun:"session_id"`
	EvaluationID    string    `bun:"evaluation_id"`
	ParticipantID   string    `bun:"participant_id"`
	ParticipantName string    `bun:"participant_name"`
	Attempt         int       `bun:"attempt"`
	Score           int       `bun:"score"`
	Passed          bool      `bun:"passed"`
	TimedOut        bool      `bun:"timed_out"`
	CorrectCount    int       `bun:"correct_count"`
	TotalQuestions  int       `bun:"total_questions"`
	Answers         string    `bun:"answers"`
	CompletedAt     time.Time `bun:"completed_at"`
}

// Store implements the evaluation loader, result sink and result reader over bun.
type Store struct {
	db    *bun.DB
	now   func() time.Time
	newID func() string
}

func NewStore(db *bun.DB) *Store {
	return &Store{db: db, now: time.Now, newID: uuid.NewString}
}

// ImportEvaluation validates e and inserts or replaces it.
func (s *Store) ImportEvaluation(ctx context.Context, e domain.Evaluation) error {
	if e.ID == "" {
		return fmt.Errorf("import evaluation: missing id")
	}
	if err := e.Validate(); err != nil {
		return fmt.Errorf("import evaluation %s: %w", e.ID, err)
	}
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode evaluation %s: %w", e.ID, err)
	}
	row := &evaluationRow{ID: e.ID, Title: e.Title, Data: string(data), UpdatedAt: s.now().UTC()}
	_, err = s.db.NewInsert().
		Model(row).
		On("CONFLICT (id) DO UPDATE").
		Set("title = EXCLUDED.title").
		Set("data = EXCLUDED.data").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("import evaluation %s: %w", e.ID, err)
	}
	return nil
}

func (s *Store) LoadEvaluation(ctx context.Context, evaluationID string) (domain.Evaluation, error) {
	row := new(evaluationRow)
	err := s.db.NewSelect().Model(row).Where("id = ?", evaluationID).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Evaluation{}, domain.ErrEvaluationNotFound
	}
	if err != nil {
		return domain.Evaluation{}, fmt.Errorf("load evaluation: %w", err)
	}
	return decodeEvaluation(row)
}

// ListEvaluations summarizes every stored evaluation, ordered by id.
func (s *Store) ListEvaluations(ctx context.Context) ([]domain.Summary, error) {
	var rows []evaluationRow
	if err := s.db.NewSelect().Model(&rows).Order("id ASC").Scan(ctx); err != nil {
		return nil, fmt.Errorf("list evaluations: %w", err)
	}
	out := make([]domain.Summary, 0, len(rows))
	for i := range rows {
		e, err := decodeEvaluation(&rows[i])
		if err != nil {
			return nil, err
		}
		out = append(out, e.Summary())
	}
	return out, nil
}

func (s *Store) RecordResult(ctx context.Context, record domain.ResultRecord) error {
	answers, err := json.Marshal(record.Result.Answers)
	if err != nil {
		return fmt.Errorf("encode answers: %w", err)
	}
	completed := record.CompletedAt
	if completed.IsZero() {
		completed = s.now()
	}
	row := &resultRow{
		ID:              s.newID(),
		SessionID:       record.SessionID,
		EvaluationID:    record.EvaluationID,
		ParticipantID:   record.Participant.ID,
		ParticipantName: record.Participant.Name,
		Attempt:         record.Result.Attempt,
		Score:           record.Result.Score,
		Passed:          record.Result.Passed,
		TimedOut:        record.Result.TimedOut,
		CorrectCount:    record.Result.CorrectCount,
		TotalQuestions:  record.Result.TotalQuestions,
		Answers:         string(answers),
		CompletedAt:     completed.UTC(),
	}
	if _, err := s.db.NewInsert().Model(row).Exec(ctx); err != nil {
		return fmt.Errorf("record result: %w", err)
	}
	return nil
}

// ListResults returns the newest records first; limit <= 0 means all.
func (s *Store) ListResults(ctx context.Context, evaluationID string, limit int) ([]domain.ResultRecord, error) {
	var rows []resultRow
	q := s.db.NewSelect().
		Model(&rows).
		Where("evaluation_id = ?", evaluationID).
		Order("completed_at DESC", "attempt DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("list results: %w", err)
	}

	out := make([]domain.ResultRecord, 0, len(rows))
	for _, row := range rows {
		var answers domain.AnswerMap
		if err := json.Unmarshal([]byte(row.Answers), &answers); err != nil {
			return nil, fmt.Errorf("decode answers of result %s: %w", row.ID, err)
		}
		out = append(out, domain.ResultRecord{
			SessionID:    row.SessionID,
			EvaluationID: row.EvaluationID,
			Participant:  domain.Participant{ID: row.ParticipantID, Name: row.ParticipantName},
			Result: domain.EvaluationResult{
				Attempt:        row.Attempt,
				Score:          row.Score,
				Passed:         row.Passed,
				TimedOut:       row.TimedOut,
				CorrectCount:   row.CorrectCount,
				TotalQuestions: row.TotalQuestions,
				Answers:        answers,
			},
			CompletedAt: row.CompletedAt.UTC(),
		})
	}
	return out, nil
}

func decodeEvaluation(row *evaluationRow) (domain.Evaluation, error) {
	var e domain.Evaluation
	if err := json.Unmarshal([]byte(row.Data), &e); err != nil {
		return domain.Evaluation{}, fmt.Errorf("unmarshal evaluation %s: %w", row.ID, err)
	}
	if e.ID == "" {
		e.ID = row.ID
	}
	return e, nil
}
