package redis

import (
	"context"
	"log"
	"sync"
	"time"

	"evaluation-service/internal/app"
	"github.com/redis/go-redis/v9"
)

// SessionStore is a Redis-aware implementation of app.SessionRepository.
// Engine sessions own goroutines and channels, so they stay in a local map;
// Redis holds a liveness marker per session so other instances and operators
// can see who is mid-evaluation.
type SessionStore struct {
	client   *redis.Client
	ttl      time.Duration
	mu       sync.RWMutex
	sessions map[string]*app.Session
}

func NewSessionStore(client *redis.Client, ttl time.Duration) *SessionStore {
	return &SessionStore{
		client:   client,
		ttl:      ttl,
		sessions: make(map[string]*app.Session),
	}
}

func (s *SessionStore) Save(session *app.Session) {
	s.mu.Lock()
	s.sessions[session.ID] = session
	s.mu.Unlock()

	ctx := context.Background()
	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, SessionKey(session.ID),
		"evaluation", session.EvaluationID,
		"participant", session.Participant.ID,
		"started", session.StartedAt.Format(time.RFC3339),
	)
	if s.ttl > 0 {
		pipe.Expire(ctx, SessionKey(session.ID), s.ttl)
	}
	// best-effort liveness marker
	if _, err := pipe.Exec(ctx); err != nil {
		log.Printf("mark session %s live: %v", session.ID, err)
	}
}

func (s *SessionStore) Get(sessionID string) (*app.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[sessionID]
	return session, ok
}

func (s *SessionStore) Delete(sessionID string) {
	s.mu.Lock()
	delete(s.sessions, sessionID)
	s.mu.Unlock()
	if err := s.client.Del(context.Background(), SessionKey(sessionID)).Err(); err != nil {
		log.Printf("clear session %s: %v", sessionID, err)
	}
}

// Touch extends the liveness marker of an active session.
func (s *SessionStore) Touch(ctx context.Context, sessionID string) error {
	if s.ttl <= 0 {
		return nil
	}
	return s.client.Expire(ctx, SessionKey(sessionID), s.ttl).Err()
}

// SessionKey is the Redis key marking a live session.
func SessionKey(sessionID string) string {
	return "evaluation:session:" + sessionID
}
