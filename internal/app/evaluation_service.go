package app

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"evaluation-service/internal/domain"
	"evaluation-service/internal/engine"

	"github.com/google/uuid"
)

const defaultSinkTimeout = 5 * time.Second

// SessionRepository abstracts where live sessions are kept (in-memory, Redis-marked, etc).
type SessionRepository interface {
	Save(session *Session)
	Get(sessionID string) (*Session, bool)
	Delete(sessionID string)
}

// sessionToucher is implemented by stores whose session entries expire without activity.
type sessionToucher interface {
	Touch(ctx context.Context, sessionID string) error
}

// evaluationInvalidator is implemented by caching evaluation repositories.
type evaluationInvalidator interface {
	Invalidate(ctx context.Context, evaluationID string) error
}

// EvaluationRepository loads evaluation content (from cache/backing store).
type EvaluationRepository interface {
	GetEvaluation(ctx context.Context, evaluationID string) (domain.Evaluation, error)
}

// ResultSink receives every finalized attempt of a reporting session.
type ResultSink interface {
	RecordResult(ctx context.Context, record domain.ResultRecord) error
}

// ResultReader lists recorded attempts, newest first.
type ResultReader interface {
	ListResults(ctx context.Context, evaluationID string, limit int) ([]domain.ResultRecord, error)
}

// SessionObserver is notified about session lifecycle, e.g. for metrics.
type SessionObserver interface {
	SessionStarted(evaluationID string, reporting bool)
	SessionClosed(evaluationID string)
}

// MultiSink fans a record out to every sink and joins their errors.
type MultiSink []ResultSink

func (m MultiSink) RecordResult(ctx context.Context, record domain.ResultRecord) error {
	var errs []error
	for _, sink := range m {
		if sink == nil {
			continue
		}
		if err := sink.RecordResult(ctx, record); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Session binds a running engine session to who is taking which evaluation.
type Session struct {
	ID           string
	EvaluationID string
	Title        string
	Participant  domain.Participant
	// Reporting sessions forward every finalized attempt to the result sink.
	Reporting bool
	StartedAt time.Time
	Engine    *engine.Session
}

// StartRequest describes a session a host wants to mount.
type StartRequest struct {
	EvaluationID string
	Participant  domain.Participant
	Reporting    bool
}

// EvaluationService contains the evaluation use cases.
type EvaluationService struct {
	sessions    SessionRepository
	evaluations EvaluationRepository
	sink        ResultSink
	results     ResultReader
	observer    SessionObserver
	clock       engine.Clock
	newID       func() string
	sinkTimeout time.Duration
	maxAttempts int
}

// Option customizes an EvaluationService.
type Option func(*EvaluationService)

func WithResultSink(sink ResultSink) Option {
	return func(s *EvaluationService) { s.sink = sink }
}

func WithResultReader(reader ResultReader) Option {
	return func(s *EvaluationService) { s.results = reader }
}

func WithObserver(observer SessionObserver) Option {
	return func(s *EvaluationService) { s.observer = observer }
}

// WithClock is used by tests to drive countdowns deterministically.
func WithClock(clock engine.Clock) Option {
	return func(s *EvaluationService) { s.clock = clock }
}

func WithIDGenerator(newID func() string) Option {
	return func(s *EvaluationService) { s.newID = newID }
}

func WithSinkTimeout(timeout time.Duration) Option {
	return func(s *EvaluationService) {
		if timeout > 0 {
			s.sinkTimeout = timeout
		}
	}
}

// WithDefaultMaxAttempts overrides domain.DefaultMaxAttempts for evaluations without a limit.
func WithDefaultMaxAttempts(n int) Option {
	return func(s *EvaluationService) {
		if n > 0 {
			s.maxAttempts = n
		}
	}
}

func NewEvaluationService(store SessionRepository, evaluations EvaluationRepository, opts ...Option) *EvaluationService {
	s := &EvaluationService{
		sessions:    store,
		evaluations: evaluations,
		clock:       engine.SystemClock{},
		newID:       uuid.NewString,
		sinkTimeout: defaultSinkTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start loads the evaluation and mounts a new session with its first attempt running.
func (s *EvaluationService) Start(ctx context.Context, req StartRequest) (*Session, error) {
	if strings.TrimSpace(req.Participant.ID) == "" {
		return nil, domain.ErrParticipantRequired
	}
	evaluation, err := s.evaluations.GetEvaluation(ctx, req.EvaluationID)
	if err != nil {
		return nil, err
	}

	session := &Session{
		ID:           s.newID(),
		EvaluationID: evaluation.ID,
		Title:        evaluation.Title,
		Participant:  req.Participant,
		Reporting:    req.Reporting,
		StartedAt:    s.clock.Now().UTC(),
	}
	cfg := engine.Config{
		Questions:        evaluation.Questions,
		TimeLimitSeconds: evaluation.TimeLimitSeconds,
		MaxAttempts:      s.attemptsFor(evaluation),
		Clock:            s.clock,
		OnClose:          func() { s.closed(session) },
	}
	if req.Reporting {
		cfg.OnComplete = func(result domain.EvaluationResult) { s.record(session, result) }
	}

	eng, err := engine.New(cfg)
	if err != nil {
		return nil, err
	}
	session.Engine = eng
	s.sessions.Save(session)
	if s.observer != nil {
		s.observer.SessionStarted(session.EvaluationID, session.Reporting)
	}
	return session, nil
}

// Get returns a live session.
func (s *EvaluationService) Get(sessionID string) (*Session, error) {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return session, nil
}

// Close unmounts a session: its countdown stops and it leaves the store.
func (s *EvaluationService) Close(sessionID string) error {
	session, err := s.Get(sessionID)
	if err != nil {
		return err
	}
	session.Engine.Close()
	return nil
}

// Touch records activity on a live session so stores with expiring entries keep it.
func (s *EvaluationService) Touch(ctx context.Context, sessionID string) {
	toucher, ok := s.sessions.(sessionToucher)
	if !ok {
		return
	}
	if err := toucher.Touch(ctx, sessionID); err != nil {
		log.Printf("touch session %s: %v", sessionID, err)
	}
}

// Summary describes an evaluation without exposing its answer key.
func (s *EvaluationService) Summary(ctx context.Context, evaluationID string) (domain.Summary, error) {
	evaluation, err := s.evaluations.GetEvaluation(ctx, evaluationID)
	if err != nil {
		return domain.Summary{}, err
	}
	return evaluation.Summary(), nil
}

// Refresh drops any cached copy of an evaluation so the next start reloads it.
// Running sessions keep the questions they started with.
func (s *EvaluationService) Refresh(ctx context.Context, evaluationID string) error {
	invalidator, ok := s.evaluations.(evaluationInvalidator)
	if !ok {
		return nil
	}
	return invalidator.Invalidate(ctx, evaluationID)
}

// Results lists recorded attempts for an evaluation. Without a reader nothing is listed.
func (s *EvaluationService) Results(ctx context.Context, evaluationID string, limit int) ([]domain.ResultRecord, error) {
	if s.results == nil {
		return nil, nil
	}
	return s.results.ListResults(ctx, evaluationID, limit)
}

func (s *EvaluationService) attemptsFor(evaluation domain.Evaluation) int {
	if evaluation.MaxAttempts <= 0 && s.maxAttempts > 0 {
		return s.maxAttempts
	}
	return evaluation.Attempts()
}

func (s *EvaluationService) record(session *Session, result domain.EvaluationResult) {
	if s.sink == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.sinkTimeout)
	defer cancel()

	record := domain.ResultRecord{
		SessionID:    session.ID,
		EvaluationID: session.EvaluationID,
		Participant:  session.Participant,
		Result:       result,
		CompletedAt:  s.clock.Now().UTC(),
	}
	if err := s.sink.RecordResult(ctx, record); err != nil {
		log.Printf("record result session=%s evaluation=%s attempt=%d: %v", session.ID, session.EvaluationID, result.Attempt, err)
	}
}

func (s *EvaluationService) closed(session *Session) {
	s.sessions.Delete(session.ID)
	if s.observer != nil {
		s.observer.SessionClosed(session.EvaluationID)
	}
}
