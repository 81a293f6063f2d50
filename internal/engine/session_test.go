package engine_test

import (
	"errors"
	"testing"
	"time"

	"evaluation-service/internal/domain"
	"evaluation-service/internal/engine"
	"evaluation-service/internal/engine/enginetest"
)

const twentyMinutes = 20 * 60

func newTestSession(t *testing.T, n int, onComplete func(domain.EvaluationResult)) (*engine.Session, *enginetest.Clock) {
	t.Helper()
	clock := enginetest.NewClock(time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC))
	session, err := engine.New(engine.Config{
		Questions:        enginetest.Questions(n),
		TimeLimitSeconds: twentyMinutes,
		OnComplete:       onComplete,
		Clock:            clock,
	})
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	t.Cleanup(session.Close)
	return session, clock
}

// answer picks the correct option for the first `correct` questions of
// `indices` and a wrong option for the rest.
func answer(t *testing.T, s *engine.Session, indices []int, correct int) {
	t.Helper()
	for n, i := range indices {
		option := enginetest.WrongOption(i)
		if n < correct {
			option = enginetest.CorrectOption(i)
		}
		if err := s.SelectAnswer(i, option); err != nil {
			t.Fatalf("select answer %d: %v", i, err)
		}
	}
}

func allIndices(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cases := []struct {
		name string
		cfg  engine.Config
		want error
	}{
		{"no questions", engine.Config{TimeLimitSeconds: 60}, domain.ErrNoQuestions},
		{"zero time limit", engine.Config{Questions: enginetest.Questions(1)}, domain.ErrInvalidTimeLimit},
		{"negative attempts", engine.Config{Questions: enginetest.Questions(1), TimeLimitSeconds: 60, MaxAttempts: -1}, domain.ErrInvalidMaxAttempts},
		{"single option", engine.Config{
			Questions:        []domain.Question{{Prompt: "p", Options: []domain.Option{{Text: "only", Correct: true}}}},
			TimeLimitSeconds: 60,
		}, domain.ErrTooFewOptions},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := engine.New(tc.cfg); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestInitialState(t *testing.T) {
	session, _ := newTestSession(t, 10, nil)

	snap := session.Snapshot()
	if snap.Mode != engine.ModeActive || snap.CurrentIndex != 0 || snap.Answered != 0 {
		t.Fatalf("unexpected initial snapshot %+v", snap)
	}
	if snap.RemainingSeconds != twentyMinutes || snap.AttemptsRemaining != domain.DefaultMaxAttempts {
		t.Fatalf("expected full time and default attempts, got %+v", snap)
	}
	if snap.Tier != engine.TierNominal {
		t.Fatalf("expected nominal tier, got %s", snap.Tier)
	}
}

func TestSelectAnswerOverwrites(t *testing.T) {
	session, _ := newTestSession(t, 3, nil)

	for _, option := range []int{1, 2, 2} {
		if err := session.SelectAnswer(0, option); err != nil {
			t.Fatalf("select: %v", err)
		}
	}
	snap := session.Snapshot()
	if snap.Answered != 1 || snap.Answers[0] != 2 {
		t.Fatalf("expected one answer with option 2, got %+v", snap.Answers)
	}
}

func TestSelectAnswerOutOfRange(t *testing.T) {
	session, _ := newTestSession(t, 3, nil)

	if err := session.SelectAnswer(3, 0); !errors.Is(err, domain.ErrQuestionOutOfRange) {
		t.Fatalf("expected question range error, got %v", err)
	}
	if err := session.SelectAnswer(-1, 0); !errors.Is(err, domain.ErrQuestionOutOfRange) {
		t.Fatalf("expected question range error, got %v", err)
	}
	if err := session.SelectAnswer(0, 4); !errors.Is(err, domain.ErrOptionOutOfRange) {
		t.Fatalf("expected option range error, got %v", err)
	}
	if session.Snapshot().Answered != 0 {
		t.Fatalf("rejected selections must not be recorded")
	}
}

func TestNavigationClampsAtBounds(t *testing.T) {
	session, _ := newTestSession(t, 3, nil)

	if err := session.Previous(); err != nil {
		t.Fatalf("previous: %v", err)
	}
	if got := session.Snapshot().CurrentIndex; got != 0 {
		t.Fatalf("previous at first question moved to %d", got)
	}
	for i := 0; i < 5; i++ {
		if err := session.Next(); err != nil {
			t.Fatalf("next: %v", err)
		}
	}
	if got := session.Snapshot().CurrentIndex; got != 2 {
		t.Fatalf("expected to stop at last question, got %d", got)
	}
	if err := session.GoTo(1); err != nil {
		t.Fatalf("goto: %v", err)
	}
	if err := session.GoTo(3); !errors.Is(err, domain.ErrQuestionOutOfRange) {
		t.Fatalf("expected range error, got %v", err)
	}

	view, err := session.Current()
	if err != nil {
		t.Fatalf("current: %v", err)
	}
	if view.Index != 1 || view.Prompt != "question 2" || view.Selected != -1 || len(view.Options) != 4 {
		t.Fatalf("unexpected view %+v", view)
	}
}

func TestAllCorrectlyAnsweredSubmitsWithoutConfirmation(t *testing.T) {
	var results []domain.EvaluationResult
	session, _ := newTestSession(t, 10, func(r domain.EvaluationResult) { results = append(results, r) })
	answer(t, session, allIndices(10), 8)

	sub, err := session.RequestSubmit()
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if sub.NeedsConfirmation || sub.Result == nil {
		t.Fatalf("expected direct finalize, got %+v", sub)
	}
	if sub.Result.Score != 16 || !sub.Result.Passed || sub.Result.TimedOut {
		t.Fatalf("expected 16/20 passed, got %+v", sub.Result)
	}
	if len(results) != 1 || results[0].Score != 16 {
		t.Fatalf("expected one completion event, got %+v", results)
	}
	snap := session.Snapshot()
	if snap.Mode != engine.ModeSubmitted || snap.CanRetry {
		t.Fatalf("passed attempt must not offer retry: %+v", snap)
	}
	if err := session.Retry(); !errors.Is(err, domain.ErrRetryNotAllowed) {
		t.Fatalf("expected retry refusal, got %v", err)
	}
}

func TestUnansweredSubmitNeedsConfirmation(t *testing.T) {
	session, _ := newTestSession(t, 10, nil)
	answer(t, session, []int{0, 1, 2}, 3)

	sub, err := session.RequestSubmit()
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if !sub.NeedsConfirmation || sub.Answered != 3 || sub.Total != 10 || sub.Result != nil {
		t.Fatalf("expected confirmation prompt, got %+v", sub)
	}
	if session.Snapshot().Mode != engine.ModeActive {
		t.Fatalf("attempt must stay active until confirmed")
	}

	result, err := session.ConfirmSubmit()
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if result.Score != 6 || result.Passed || result.TimedOut {
		t.Fatalf("expected 6/20 failed, got %+v", result)
	}
	if _, err := session.ConfirmSubmit(); !errors.Is(err, domain.ErrNotActive) {
		t.Fatalf("expected not active, got %v", err)
	}
	if err := session.SelectAnswer(4, 0); !errors.Is(err, domain.ErrNotActive) {
		t.Fatalf("answers after submit must be refused, got %v", err)
	}
}

func TestRetryPolicy(t *testing.T) {
	session, clock := newTestSession(t, 10, nil)
	answer(t, session, allIndices(10), 5)
	if _, err := session.RequestSubmit(); err != nil {
		t.Fatalf("submit: %v", err)
	}

	snap := session.Snapshot()
	if snap.Result.Score != 10 || snap.Result.Passed || !snap.CanRetry {
		t.Fatalf("expected failed attempt with retry, got %+v", snap)
	}
	if err := session.GoTo(4); err != nil {
		t.Fatalf("goto: %v", err)
	}

	clock.Advance(90 * time.Second)
	if err := session.Retry(); err != nil {
		t.Fatalf("retry: %v", err)
	}
	snap = session.Snapshot()
	if len(snap.Answers) != 0 || snap.CurrentIndex != 0 || snap.RemainingSeconds != twentyMinutes {
		t.Fatalf("retry must reset the attempt, got %+v", snap)
	}
	if snap.AttemptsRemaining != 1 || snap.Attempt != 2 || snap.Mode != engine.ModeActive || snap.Result != nil {
		t.Fatalf("unexpected attempt counters %+v", snap)
	}

	if _, err := session.ConfirmSubmit(); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	snap = session.Snapshot()
	if snap.CanRetry {
		t.Fatalf("last attempt must not offer retry: %+v", snap)
	}
	if err := session.Retry(); !errors.Is(err, domain.ErrRetryNotAllowed) {
		t.Fatalf("expected retry refusal, got %v", err)
	}
}

func TestRetryRequiresFinalizedAttempt(t *testing.T) {
	session, _ := newTestSession(t, 2, nil)
	if err := session.Retry(); !errors.Is(err, domain.ErrRetryNotAllowed) {
		t.Fatalf("expected retry refusal during active attempt, got %v", err)
	}
}

func TestCountdownTracksElapsedWholeSeconds(t *testing.T) {
	session, clock := newTestSession(t, 2, nil)
	updates, cancel := session.Subscribe()
	defer cancel()

	steps := []struct {
		advance time.Duration
		want    int
	}{
		{time.Second, twentyMinutes - 1},
		{5 * time.Second, twentyMinutes - 6},
		{500 * time.Millisecond, twentyMinutes - 6},
		{500 * time.Millisecond, twentyMinutes - 7},
	}
	for _, step := range steps {
		clock.Advance(step.advance)
		enginetest.WaitFor(t, updates, func(s engine.Snapshot) bool {
			return s.RemainingSeconds == step.want
		})
	}

	clock.Advance(11 * time.Minute)
	snap := enginetest.WaitFor(t, updates, func(s engine.Snapshot) bool {
		return s.RemainingSeconds < twentyMinutes-7
	})
	if snap.Tier != engine.TierWarning {
		t.Fatalf("expected warning tier at %ds, got %s", snap.RemainingSeconds, snap.Tier)
	}
}

func TestTimeoutFinalizesWithoutConfirmation(t *testing.T) {
	completed := make(chan domain.EvaluationResult, 2)
	session, clock := newTestSession(t, 10, func(r domain.EvaluationResult) { completed <- r })
	answer(t, session, []int{0, 1, 2}, 3)
	updates, cancel := session.Subscribe()
	defer cancel()

	clock.Advance(twentyMinutes * time.Second)

	snap := enginetest.WaitFor(t, updates, func(s engine.Snapshot) bool { return s.Mode == engine.ModeSubmitted })
	if snap.RemainingSeconds != 0 || snap.Result == nil || !snap.Result.TimedOut {
		t.Fatalf("expected timed out result, got %+v", snap)
	}
	select {
	case result := <-completed:
		if result.Score != 6 || !result.TimedOut || len(result.Answers) != 3 {
			t.Fatalf("unexpected result %+v", result)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("expected completion event")
	}

	enginetest.WaitStopped(t, clock)
	select {
	case extra := <-completed:
		t.Fatalf("completion must fire once, got extra %+v", extra)
	default:
	}
}

func TestCountdownFrozenAfterSubmit(t *testing.T) {
	session, clock := newTestSession(t, 2, nil)
	updates, cancel := session.Subscribe()
	defer cancel()

	clock.Advance(3 * time.Second)
	enginetest.WaitFor(t, updates, func(s engine.Snapshot) bool { return s.RemainingSeconds == twentyMinutes-3 })

	if _, err := session.ConfirmSubmit(); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	enginetest.WaitStopped(t, clock)

	clock.Advance(time.Hour)
	if got := session.Snapshot().RemainingSeconds; got != twentyMinutes-3 {
		t.Fatalf("remaining time changed after submit: %d", got)
	}
}

func TestRetryRestartsCountdown(t *testing.T) {
	session, clock := newTestSession(t, 2, nil)
	if _, err := session.ConfirmSubmit(); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	enginetest.WaitStopped(t, clock)
	clock.Advance(time.Minute)

	if err := session.Retry(); err != nil {
		t.Fatalf("retry: %v", err)
	}
	updates, cancel := session.Subscribe()
	defer cancel()

	clock.Advance(2 * time.Second)
	enginetest.WaitFor(t, updates, func(s engine.Snapshot) bool { return s.RemainingSeconds == twentyMinutes-2 })
}

func TestReviewAnnotations(t *testing.T) {
	session, _ := newTestSession(t, 3, nil)
	if err := session.SelectAnswer(0, enginetest.CorrectOption(0)); err != nil {
		t.Fatalf("select: %v", err)
	}
	if err := session.SelectAnswer(1, enginetest.WrongOption(1)); err != nil {
		t.Fatalf("select: %v", err)
	}

	if _, err := session.Review(); !errors.Is(err, domain.ErrNotReviewing) {
		t.Fatalf("expected review refusal while active, got %v", err)
	}
	if err := session.EnterReview(); !errors.Is(err, domain.ErrNotSubmitted) {
		t.Fatalf("expected not submitted, got %v", err)
	}
	if _, err := session.ConfirmSubmit(); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if err := session.EnterReview(); err != nil {
		t.Fatalf("enter review: %v", err)
	}
	if err := session.Next(); !errors.Is(err, domain.ErrReviewing) {
		t.Fatalf("expected navigation refusal in review, got %v", err)
	}

	items, err := session.Review()
	if err != nil {
		t.Fatalf("review: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("expected every question in review, got %d", len(items))
	}
	for i, item := range items {
		correct := enginetest.CorrectOption(i)
		if item.Options[correct].Mark != engine.MarkCorrect {
			t.Fatalf("question %d: correct option not flagged: %+v", i, item.Options)
		}
	}
	if !items[0].Correct || !items[0].Options[enginetest.CorrectOption(0)].Selected {
		t.Fatalf("expected question 1 answered correctly: %+v", items[0])
	}
	wrong := items[1].Options[enginetest.WrongOption(1)]
	if items[1].Correct || wrong.Mark != engine.MarkIncorrect || !wrong.Selected {
		t.Fatalf("expected question 2 wrong pick flagged: %+v", items[1])
	}
	if items[2].Answered || items[2].Selected != -1 {
		t.Fatalf("expected question 3 unanswered: %+v", items[2])
	}

	if err := session.ExitReview(); err != nil {
		t.Fatalf("exit review: %v", err)
	}
	if err := session.ExitReview(); !errors.Is(err, domain.ErrNotReviewing) {
		t.Fatalf("expected not reviewing, got %v", err)
	}
	if session.Snapshot().Mode != engine.ModeSubmitted {
		t.Fatalf("expected submitted after review")
	}
}

func TestRetryFromReview(t *testing.T) {
	session, _ := newTestSession(t, 2, nil)
	if _, err := session.ConfirmSubmit(); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if err := session.EnterReview(); err != nil {
		t.Fatalf("enter review: %v", err)
	}
	if err := session.Retry(); err != nil {
		t.Fatalf("retry from review: %v", err)
	}
	if session.Snapshot().Mode != engine.ModeActive {
		t.Fatalf("expected active attempt")
	}
}

func TestLocalSessionEmitsNothing(t *testing.T) {
	session, _ := newTestSession(t, 1, nil)
	if err := session.SelectAnswer(0, 0); err != nil {
		t.Fatalf("select: %v", err)
	}
	sub, err := session.RequestSubmit()
	if err != nil || sub.Result == nil {
		t.Fatalf("expected result without sink, got %+v, %v", sub, err)
	}
}

func TestCloseCancelsCountdown(t *testing.T) {
	closed := 0
	clock := enginetest.NewClock(time.Now())
	session, err := engine.New(engine.Config{
		Questions:        enginetest.Questions(2),
		TimeLimitSeconds: 60,
		OnClose:          func() { closed++ },
		Clock:            clock,
	})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	updates, _ := session.Subscribe()

	session.Close()
	if clock.Tickers() != 0 {
		t.Fatalf("countdown still running after close")
	}
	session.Close()
	if closed != 1 {
		t.Fatalf("expected OnClose once, got %d", closed)
	}

	for range updates {
	}
	if err := session.SelectAnswer(0, 0); !errors.Is(err, domain.ErrSessionClosed) {
		t.Fatalf("expected closed error, got %v", err)
	}
	if err := session.Next(); !errors.Is(err, domain.ErrSessionClosed) {
		t.Fatalf("expected closed error, got %v", err)
	}
	if err := session.Retry(); !errors.Is(err, domain.ErrSessionClosed) {
		t.Fatalf("expected closed error, got %v", err)
	}
}

func TestCloseFromTimeoutCallback(t *testing.T) {
	clock := enginetest.NewClock(time.Now())
	done := make(chan struct{})
	var session *engine.Session
	session, err := engine.New(engine.Config{
		Questions:        enginetest.Questions(2),
		TimeLimitSeconds: 5,
		OnComplete: func(domain.EvaluationResult) {
			session.Close()
			close(done)
		},
		Clock: clock,
	})
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	clock.Advance(10 * time.Second)
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("close from completion callback deadlocked")
	}
	if session.Snapshot().Mode != engine.ModeClosed {
		t.Fatalf("expected closed session")
	}
}
