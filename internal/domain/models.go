package domain

import (
	"fmt"
	"time"
)

const (
	// MaxScore is the top of the evaluation scale.
	MaxScore = 20
	// PassingScore is the fixed pass threshold on the MaxScore scale.
	PassingScore = 14
	// DefaultMaxAttempts applies when an evaluation does not set its own limit.
	DefaultMaxAttempts = 2
)

// Option represents a possible answer for a question.
type Option struct {
	Text    string `json:"text" yaml:"text" bson:"text"`
	Correct bool   `json:"correct" yaml:"correct" bson:"correct"`
}

// Question models an MCQ question with exactly one correct option.
// Option order is meaningful and is never shuffled.
type Question struct {
	Prompt  string   `json:"prompt" yaml:"prompt" bson:"prompt"`
	Options []Option `json:"options" yaml:"options" bson:"options"`
}

// CorrectIndex returns the index of the first option flagged correct, or -1.
func (q Question) CorrectIndex() int {
	for i, opt := range q.Options {
		if opt.Correct {
			return i
		}
	}
	return -1
}

// Evaluation is an authored question bank with its timing policy.
type Evaluation struct {
	ID               string     `json:"id" yaml:"id" bson:"_id"`
	Title            string     `json:"title" yaml:"title" bson:"title"`
	TimeLimitSeconds int        `json:"timeLimitSeconds" yaml:"time_limit_seconds" bson:"time_limit_seconds"`
	MaxAttempts      int        `json:"maxAttempts,omitempty" yaml:"max_attempts,omitempty" bson:"max_attempts,omitempty"`
	Questions        []Question `json:"questions" yaml:"questions" bson:"questions"`
}

// Attempts returns the configured attempt limit, falling back to DefaultMaxAttempts.
func (e Evaluation) Attempts() int {
	if e.MaxAttempts > 0 {
		return e.MaxAttempts
	}
	return DefaultMaxAttempts
}

// Validate checks authored content before it is stored or served.
func (e Evaluation) Validate() error {
	if e.TimeLimitSeconds <= 0 {
		return ErrInvalidTimeLimit
	}
	if e.MaxAttempts < 0 {
		return ErrInvalidMaxAttempts
	}
	if len(e.Questions) == 0 {
		return ErrNoQuestions
	}
	for i, q := range e.Questions {
		if len(q.Options) < 2 {
			return fmt.Errorf("question %d: %w", i+1, ErrTooFewOptions)
		}
		correct := 0
		for _, opt := range q.Options {
			if opt.Correct {
				correct++
			}
		}
		if correct != 1 {
			return fmt.Errorf("question %d: %w", i+1, ErrCorrectOption)
		}
	}
	return nil
}

// Summary is the public view of an evaluation without its answer key.
type Summary struct {
	ID               string `json:"id"`
	Title            string `json:"title"`
	TimeLimitSeconds int    `json:"timeLimitSeconds"`
	MaxAttempts      int    `json:"maxAttempts"`
	QuestionCount    int    `json:"questionCount"`
}

func (e Evaluation) Summary() Summary {
	return Summary{
		ID:               e.ID,
		Title:            e.Title,
		TimeLimitSeconds: e.TimeLimitSeconds,
		MaxAttempts:      e.Attempts(),
		QuestionCount:    len(e.Questions),
	}
}

// AnswerMap maps a question index to the selected option index.
type AnswerMap map[int]int

// Clone returns an independent copy.
func (m AnswerMap) Clone() AnswerMap {
	out := make(AnswerMap, len(m))
	for q, o := range m {
		out[q] = o
	}
	return out
}

// EvaluationResult is the outcome of one finalized attempt.
type EvaluationResult struct {
	Attempt        int       `json:"attempt"`
	Score          int       `json:"score"`
	Passed         bool      `json:"passed"`
	TimedOut       bool      `json:"timedOut"`
	CorrectCount   int       `json:"correctCount"`
	TotalQuestions int       `json:"totalQuestions"`
	Answers        AnswerMap `json:"answers"`
}

// Participant identifies whoever takes the evaluation; strings are display-only.
type Participant struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ResultRecord is what result sinks persist or publish.
type ResultRecord struct {
	SessionID    string           `json:"sessionId"`
	EvaluationID string           `json:"evaluationId"`
	Participant  Participant      `json:"participant"`
	Result       EvaluationResult `json:"result"`
	CompletedAt  time.Time        `json:"completedAt"`
}
