package domain

import (
	"errors"
	"testing"
)

func TestEvaluationValidate(t *testing.T) {
	valid := Evaluation{
		ID:               "eval-1",
		TimeLimitSeconds: 600,
		Questions: []Question{{
			Prompt:  "Which extinguisher is used on electrical fires?",
			Options: []Option{{Text: "Water"}, {Text: "CO2", Correct: true}},
		}},
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("expected valid evaluation, got %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*Evaluation)
		want   error
	}{
		{"no time limit", func(e *Evaluation) { e.TimeLimitSeconds = 0 }, ErrInvalidTimeLimit},
		{"negative attempts", func(e *Evaluation) { e.MaxAttempts = -2 }, ErrInvalidMaxAttempts},
		{"no questions", func(e *Evaluation) { e.Questions = nil }, ErrNoQuestions},
		{"one option", func(e *Evaluation) {
			e.Questions = []Question{{Prompt: "p", Options: []Option{{Text: "a", Correct: true}}}}
		}, ErrTooFewOptions},
		{"two correct", func(e *Evaluation) {
			e.Questions = []Question{{Prompt: "p", Options: []Option{{Text: "a", Correct: true}, {Text: "b", Correct: true}}}}
		}, ErrCorrectOption},
		{"none correct", func(e *Evaluation) {
			e.Questions = []Question{{Prompt: "p", Options: []Option{{Text: "a"}, {Text: "b"}}}}
		}, ErrCorrectOption},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := valid
			tc.mutate(&e)
			if err := e.Validate(); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestEvaluationSummaryDefaultsAttempts(t *testing.T) {
	e := Evaluation{ID: "e", Title: "Forklift safety", TimeLimitSeconds: 60, Questions: make([]Question, 3)}
	s := e.Summary()
	if s.MaxAttempts != DefaultMaxAttempts || s.QuestionCount != 3 || s.Title != "Forklift safety" {
		t.Fatalf("unexpected summary %+v", s)
	}
}

func TestCorrectIndex(t *testing.T) {
	q := Question{Options: []Option{{Text: "a"}, {Text: "b", Correct: true}, {Text: "c", Correct: true}}}
	if q.CorrectIndex() != 1 {
		t.Fatalf("expected first correct option, got %d", q.CorrectIndex())
	}
	if (Question{Options: []Option{{Text: "a"}}}).CorrectIndex() != -1 {
		t.Fatalf("expected -1 without a correct option")
	}
}
