package engine

import (
	"fmt"
	"sync"
	"time"

	"evaluation-service/internal/domain"
)

// Mode is the lifecycle state of a Session.
type Mode string

const (
	ModeActive    Mode = "active"
	ModeSubmitted Mode = "submitted"
	ModeReviewing Mode = "reviewing"
	ModeClosed    Mode = "closed"
)

const tickInterval = time.Second

// Config is everything a host supplies when it mounts an evaluation.
type Config struct {
	Questions        []domain.Question
	TimeLimitSeconds int
	// MaxAttempts defaults to domain.DefaultMaxAttempts when zero.
	MaxAttempts int
	// OnComplete receives every finalized result. Leave nil for sessions whose
	// result is only displayed locally.
	OnComplete func(domain.EvaluationResult)
	// OnClose runs after Close has cancelled the countdown.
	OnClose func()
	Clock   Clock
}

// Submission is the outcome of RequestSubmit.
type Submission struct {
	NeedsConfirmation bool                     `json:"needsConfirmation"`
	Answered          int                      `json:"answered"`
	Total             int                      `json:"total"`
	Result            *domain.EvaluationResult `json:"result,omitempty"`
}

// Snapshot is a read-only view of the session for hosts and observers.
type Snapshot struct {
	Mode              Mode                     `json:"mode"`
	Attempt           int                      `json:"attempt"`
	AttemptsRemaining int                      `json:"attemptsRemaining"`
	CurrentIndex      int                      `json:"currentIndex"`
	TotalQuestions    int                      `json:"totalQuestions"`
	Answered          int                      `json:"answered"`
	RemainingSeconds  int                      `json:"remainingSeconds"`
	TimeLimitSeconds  int                      `json:"timeLimitSeconds"`
	Tier              Tier                     `json:"tier"`
	Answers           domain.AnswerMap         `json:"answers"`
	Result            *domain.EvaluationResult `json:"result,omitempty"`
	CanRetry          bool                     `json:"canRetry"`
}

// QuestionView is the navigation-mode view of one question. It carries no answer key.
type QuestionView struct {
	Index    int      `json:"index"`
	Prompt   string   `json:"prompt"`
	Options  []string `json:"options"`
	Selected int      `json:"selected"`
}

// Session is one participant's timed evaluation: navigation, answers,
// countdown, scoring, retries and review.
type Session struct {
	questions  []domain.Question
	timeLimit  int
	clock      Clock
	onComplete func(domain.EvaluationResult)
	onClose    func()

	mu                sync.Mutex
	mode              Mode
	attempt           int
	attemptsRemaining int
	currentIndex      int
	answers           domain.AnswerMap
	remaining         int
	startedAt         time.Time
	result            *domain.EvaluationResult
	generation        int
	stop              chan struct{}
	done              chan struct{}
	subscribers       map[chan Snapshot]struct{}
}

// New validates cfg and starts the first attempt, countdown included.
// The host must call Close when it unmounts the session.
func New(cfg Config) (*Session, error) {
	if len(cfg.Questions) == 0 {
		return nil, domain.ErrNoQuestions
	}
	for i, q := range cfg.Questions {
		if len(q.Options) < 2 {
			return nil, fmt.Errorf("question %d: %w", i+1, domain.ErrTooFewOptions)
		}
	}
	if cfg.TimeLimitSeconds <= 0 {
		return nil, domain.ErrInvalidTimeLimit
	}
	if cfg.MaxAttempts < 0 {
		return nil, domain.ErrInvalidMaxAttempts
	}
	maxAttempts := cfg.MaxAttempts
	if maxAttempts == 0 {
		maxAttempts = domain.DefaultMaxAttempts
	}
	clock := cfg.Clock
	if clock == nil {
		clock = SystemClock{}
	}

	s := &Session{
		questions:         copyQuestions(cfg.Questions),
		timeLimit:         cfg.TimeLimitSeconds,
		clock:             clock,
		onComplete:        cfg.OnComplete,
		onClose:           cfg.OnClose,
		attemptsRemaining: maxAttempts,
		subscribers:       make(map[chan Snapshot]struct{}),
	}
	s.mu.Lock()
	s.startAttemptLocked()
	s.mu.Unlock()
	return s, nil
}

// SelectAnswer records optionIndex for questionIndex, overwriting any earlier pick.
func (s *Session) SelectAnswer(questionIndex, optionIndex int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireActiveLocked(); err != nil {
		return err
	}
	if questionIndex < 0 || questionIndex >= len(s.questions) {
		return domain.ErrQuestionOutOfRange
	}
	if optionIndex < 0 || optionIndex >= len(s.questions[questionIndex].Options) {
		return domain.ErrOptionOutOfRange
	}
	s.answers[questionIndex] = optionIndex
	s.broadcastLocked()
	return nil
}

// GoTo displays the question at index.
func (s *Session) GoTo(index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireNavigableLocked(); err != nil {
		return err
	}
	if index < 0 || index >= len(s.questions) {
		return domain.ErrQuestionOutOfRange
	}
	s.currentIndex = index
	s.broadcastLocked()
	return nil
}

// Next moves forward one question; it is a no-op on the last question.
func (s *Session) Next() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireNavigableLocked(); err != nil {
		return err
	}
	if s.currentIndex < len(s.questions)-1 {
		s.currentIndex++
		s.broadcastLocked()
	}
	return nil
}

// Previous moves back one question; it is a no-op on the first question.
func (s *Session) Previous() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireNavigableLocked(); err != nil {
		return err
	}
	if s.currentIndex > 0 {
		s.currentIndex--
		s.broadcastLocked()
	}
	return nil
}

// RequestSubmit finalizes the attempt when every question is answered.
// Otherwise it asks the host to confirm and leaves the attempt running.
func (s *Session) RequestSubmit() (Submission, error) {
	s.mu.Lock()
	if err := s.requireActiveLocked(); err != nil {
		s.mu.Unlock()
		return Submission{}, err
	}
	answered, total := len(s.answers), len(s.questions)
	if answered < total {
		s.mu.Unlock()
		return Submission{NeedsConfirmation: true, Answered: answered, Total: total}, nil
	}
	result := s.finalizeLocked(false)
	s.mu.Unlock()

	s.emit(result)
	return Submission{Answered: answered, Total: total, Result: &result}, nil
}

// ConfirmSubmit finalizes the attempt regardless of unanswered questions.
func (s *Session) ConfirmSubmit() (domain.EvaluationResult, error) {
	s.mu.Lock()
	if err := s.requireActiveLocked(); err != nil {
		s.mu.Unlock()
		return domain.EvaluationResult{}, err
	}
	result := s.finalizeLocked(false)
	s.mu.Unlock()

	s.emit(result)
	return result, nil
}

func (s *Session) EnterReview() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.mode == ModeClosed {
		return domain.ErrSessionClosed
	}
	if s.mode != ModeSubmitted {
		return domain.ErrNotSubmitted
	}
	s.mode = ModeReviewing
	s.broadcastLocked()
	return nil
}

func (s *Session) ExitReview() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.mode == ModeClosed {
		return domain.ErrSessionClosed
	}
	if s.mode != ModeReviewing {
		return domain.ErrNotReviewing
	}
	s.mode = ModeSubmitted
	s.broadcastLocked()
	return nil
}

// Review returns every question annotated against the submitted answers.
func (s *Session) Review() ([]ReviewItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.mode == ModeClosed {
		return nil, domain.ErrSessionClosed
	}
	if s.mode != ModeReviewing {
		return nil, domain.ErrNotReviewing
	}
	return buildReview(s.questions, s.result.Answers), nil
}

// Retry starts a fresh attempt after a failed one. Hosts should only offer it
// when Snapshot().CanRetry is true.
func (s *Session) Retry() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.mode == ModeClosed {
		return domain.ErrSessionClosed
	}
	if !s.canRetryLocked() {
		return domain.ErrRetryNotAllowed
	}
	s.attemptsRemaining--
	s.startAttemptLocked()
	s.broadcastLocked()
	return nil
}

// Close cancels the countdown, waits for it to stop and runs OnClose.
// Unfinished attempts are discarded. Calling Close again is a no-op.
func (s *Session) Close() {
	s.mu.Lock()
	if s.mode == ModeClosed {
		s.mu.Unlock()
		return
	}
	s.mode = ModeClosed
	s.stopCountdownLocked()
	done := s.done
	s.broadcastLocked()
	for ch := range s.subscribers {
		delete(s.subscribers, ch)
		close(ch)
	}
	s.mu.Unlock()

	if done != nil {
		<-done
	}
	if s.onClose != nil {
		s.onClose()
	}
}

// Snapshot returns the current state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Current returns the question shown in navigation mode.
func (s *Session) Current() (QuestionView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireNavigableLocked(); err != nil {
		return QuestionView{}, err
	}
	q := s.questions[s.currentIndex]
	options := make([]string, len(q.Options))
	for i, opt := range q.Options {
		options[i] = opt.Text
	}
	selected, ok := s.answers[s.currentIndex]
	if !ok {
		selected = -1
	}
	return QuestionView{
		Index:    s.currentIndex,
		Prompt:   q.Prompt,
		Options:  options,
		Selected: selected,
	}, nil
}

// Subscribe returns a channel of snapshots, starting with the current one.
// Slow readers only see the newest snapshot. The caller must invoke the
// returned cancel function; the channel is closed when the session closes.
func (s *Session) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 8)

	s.mu.Lock()
	if s.mode == ModeClosed {
		s.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	s.subscribers[ch] = struct{}{}
	ch <- s.snapshotLocked()
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		if _, ok := s.subscribers[ch]; ok {
			delete(s.subscribers, ch)
			close(ch)
		}
		s.mu.Unlock()
	}
	return ch, cancel
}

func (s *Session) startAttemptLocked() {
	s.attempt++
	s.mode = ModeActive
	s.currentIndex = 0
	s.answers = domain.AnswerMap{}
	s.remaining = s.timeLimit
	s.result = nil
	s.startedAt = s.clock.Now()
	s.generation++

	stop := make(chan struct{})
	done := make(chan struct{})
	s.stop, s.done = stop, done
	go s.runCountdown(s.generation, s.clock.NewTicker(tickInterval), stop, done)
}

// runCountdown owns one attempt's ticker. done is closed before a timeout
// result is emitted so OnComplete may call Close.
func (s *Session) runCountdown(gen int, ticker Ticker, stop <-chan struct{}, done chan<- struct{}) {
	var expired *domain.EvaluationResult
	defer func() {
		ticker.Stop()
		close(done)
		if expired != nil {
			s.emit(*expired)
		}
	}()

	for {
		select {
		case <-stop:
			return
		case now := <-ticker.C():
			result, finished := s.tick(gen, now)
			if finished {
				expired = result
				return
			}
		}
	}
}

// tick recomputes the remaining time from the wall clock so coalesced ticks
// catch up instead of stretching the countdown.
func (s *Session) tick(gen int, now time.Time) (*domain.EvaluationResult, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.generation || s.mode != ModeActive {
		return nil, true
	}
	remaining := s.timeLimit - int(now.Sub(s.startedAt)/time.Second)
	if remaining < 0 {
		remaining = 0
	}
	if remaining < s.remaining {
		s.remaining = remaining
	}
	if s.remaining > 0 {
		s.broadcastLocked()
		return nil, false
	}
	result := s.finalizeLocked(true)
	return &result, true
}

func (s *Session) finalizeLocked(timedOut bool) domain.EvaluationResult {
	result := Score(s.questions, s.answers)
	result.Attempt = s.attempt
	result.TimedOut = timedOut
	s.result = &result
	s.mode = ModeSubmitted
	s.stopCountdownLocked()
	s.broadcastLocked()
	return result
}

func (s *Session) stopCountdownLocked() {
	if s.stop != nil {
		close(s.stop)
		s.stop = nil
	}
}

func (s *Session) emit(result domain.EvaluationResult) {
	if s.onComplete != nil {
		s.onComplete(result)
	}
}

func (s *Session) requireActiveLocked() error {
	switch s.mode {
	case ModeActive:
		return nil
	case ModeClosed:
		return domain.ErrSessionClosed
	default:
		return domain.ErrNotActive
	}
}

func (s *Session) requireNavigableLocked() error {
	switch s.mode {
	case ModeClosed:
		return domain.ErrSessionClosed
	case ModeReviewing:
		return domain.ErrReviewing
	default:
		return nil
	}
}

func (s *Session) canRetryLocked() bool {
	if s.mode != ModeSubmitted && s.mode != ModeReviewing {
		return false
	}
	return s.result != nil && !s.result.Passed && s.attemptsRemaining > 1
}

func (s *Session) snapshotLocked() Snapshot {
	snap := Snapshot{
		Mode:              s.mode,
		Attempt:           s.attempt,
		AttemptsRemaining: s.attemptsRemaining,
		CurrentIndex:      s.currentIndex,
		TotalQuestions:    len(s.questions),
		Answered:          len(s.answers),
		RemainingSeconds:  s.remaining,
		TimeLimitSeconds:  s.timeLimit,
		Tier:              TierFor(s.remaining, s.timeLimit),
		Answers:           s.answers.Clone(),
		CanRetry:          s.canRetryLocked(),
	}
	if s.result != nil {
		result := *s.result
		result.Answers = s.result.Answers.Clone()
		snap.Result = &result
	}
	return snap
}

func (s *Session) broadcastLocked() {
	snap := s.snapshotLocked()
	for ch := range s.subscribers {
		select {
		case ch <- snap:
		default:
			// Drop the oldest pending snapshot so the newest always lands.
			select {
			case <-ch:
			default:
			}
			ch <- snap
		}
	}
}

func copyQuestions(in []domain.Question) []domain.Question {
	out := make([]domain.Question, len(in))
	for i, q := range in {
		out[i] = domain.Question{
			Prompt:  q.Prompt,
			Options: append([]domain.Option(nil), q.Options...),
		}
	}
	return out
}
