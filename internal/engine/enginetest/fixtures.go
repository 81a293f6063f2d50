package enginetest

import (
	"fmt"
	"testing"
	"time"

	"evaluation-service/internal/domain"
	"evaluation-service/internal/engine"
)

const waitTimeout = 2 * time.Second

// Questions builds n four-option questions; question i has its correct option at i%4.
func Questions(n int) []domain.Question {
	questions := make([]domain.Question, n)
	for i := range questions {
		options := make([]domain.Option, 4)
		for j := range options {
			options[j] = domain.Option{Text: fmt.Sprintf("option %d", j+1), Correct: j == i%4}
		}
		questions[i] = domain.Question{Prompt: fmt.Sprintf("question %d", i+1), Options: options}
	}
	return questions
}

// CorrectOption returns the correct option index of question i from Questions.
func CorrectOption(i int) int { return i % 4 }

// WrongOption returns an incorrect option index of question i from Questions.
func WrongOption(i int) int { return (i + 1) % 4 }

// WaitFor reads snapshots until match accepts one, failing the test on timeout
// or when the channel closes first.
func WaitFor(t testing.TB, ch <-chan engine.Snapshot, match func(engine.Snapshot) bool) engine.Snapshot {
	t.Helper()
	deadline := time.After(waitTimeout)
	for {
		select {
		case snap, ok := <-ch:
			if !ok {
				t.Fatalf("snapshot channel closed before expected state")
			}
			if match(snap) {
				return snap
			}
		case <-deadline:
			t.Fatalf("timed out waiting for snapshot")
		}
	}
}

// WaitStopped blocks until every ticker of clock has been stopped.
func WaitStopped(t testing.TB, clock *Clock) {
	t.Helper()
	deadline := time.Now().Add(waitTimeout)
	for clock.Tickers() > 0 {
		if time.Now().After(deadline) {
			t.Fatalf("countdown still running: %d live tickers", clock.Tickers())
		}
		time.Sleep(5 * time.Millisecond)
	}
}
