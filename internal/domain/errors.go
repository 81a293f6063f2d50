package domain

import "errors"

var (
	// ErrEvaluationNotFound indicates the question bank could not be loaded.
	ErrEvaluationNotFound = errors.New("evaluation not found")
	// ErrSessionNotFound is returned when an evaluation session has not been started or was closed.
	ErrSessionNotFound = errors.New("evaluation session not found")
	// ErrParticipantRequired rejects sessions started without a participant id.
	ErrParticipantRequired = errors.New("participant id is required")

	// ErrNoQuestions rejects sessions and banks without questions.
	ErrNoQuestions = errors.New("evaluation has no questions")
	// ErrTooFewOptions rejects questions with fewer than two options.
	ErrTooFewOptions = errors.New("question needs at least two options")
	// ErrCorrectOption rejects authored questions without exactly one correct option.
	ErrCorrectOption = errors.New("question needs exactly one correct option")
	// ErrInvalidTimeLimit rejects non-positive time limits.
	ErrInvalidTimeLimit = errors.New("time limit must be positive")
	// ErrInvalidMaxAttempts rejects negative attempt limits.
	ErrInvalidMaxAttempts = errors.New("max attempts must be at least one")

	ErrQuestionOutOfRange = errors.New("question index out of range")
	ErrOptionOutOfRange   = errors.New("option index out of range")

	// ErrNotActive is returned for answer and submit operations outside an active attempt.
	ErrNotActive = errors.New("attempt is not active")
	// ErrNotSubmitted is returned when review is requested before the attempt is finalized.
	ErrNotSubmitted = errors.New("attempt has not been submitted")
	ErrNotReviewing = errors.New("session is not in review mode")
	// ErrReviewing is returned for navigation while the review is displayed.
	ErrReviewing = errors.New("navigation is unavailable in review mode")
	// ErrRetryNotAllowed is returned when the attempt passed or no attempts remain.
	ErrRetryNotAllowed = errors.New("retry is not allowed")
	ErrSessionClosed   = errors.New("evaluation session is closed")
)
