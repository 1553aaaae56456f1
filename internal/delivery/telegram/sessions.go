package telegram

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/aliskhannn/quran-companion/internal/domain/entities"
	"github.com/aliskhannn/quran-companion/internal/service"
)

// SessionFactory creates the reader session of a chat.
type SessionFactory func(ctx context.Context, chatID int64) (*service.ReaderSession, error)

// Sessions keeps one reader session per chat, created on first use. A session
// holds a whole chapter in memory, so idle sessions are released by Evict; the
// next Get rebuilds them from the persisted progress and notes.
type Sessions struct {
	factory SessionFactory
	logger  *zap.Logger
	now     func() time.Time

	mu       sync.Mutex
	sessions map[int64]*service.ReaderSession
	used     map[int64]time.Time
}

// NewSessions creates an empty registry.
func NewSessions(factory SessionFactory, logger *zap.Logger) *Sessions {
	return &Sessions{
		factory:  factory,
		logger:   logger,
		now:      time.Now,
		sessions: make(map[int64]*service.ReaderSession),
		used:     make(map[int64]time.Time),
	}
}

// Get returns the session of chatID, creating it when needed. A failed
// creation is retried on the next call.
func (s *Sessions) Get(ctx context.Context, chatID int64) (*service.ReaderSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rs, ok := s.sessions[chatID]; ok {
		s.used[chatID] = s.now()
		return rs, nil
	}

	rs, err := s.factory(ctx, chatID)
	if err != nil {
		return nil, err
	}
	s.sessions[chatID] = rs
	s.used[chatID] = s.now()
	s.logger.Debug("reader session created", zap.Int64("chat_id", chatID), zap.String("session_id", rs.ID()))
	return rs, nil
}

// ReadingSummary returns the reading progress of chatID.
func (s *Sessions) ReadingSummary(ctx context.Context, chatID int64) (entities.ReadingSummary, error) {
	rs, err := s.Get(ctx, chatID)
	if err != nil {
		return entities.ReadingSummary{}, err
	}
	return rs.ReadingSummary(), nil
}

// Len returns the number of live sessions.
func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Evict closes the sessions not used for longer than idle and returns how
// many were closed.
func (s *Sessions) Evict(idle time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-idle)
	evicted := 0
	for id, rs := range s.sessions {
		if s.used[id].After(cutoff) {
			continue
		}
		if err := rs.Close(); err != nil {
			s.logger.Warn("failed to close reader session", zap.Int64("chat_id", id), zap.Error(err))
		}
		delete(s.sessions, id)
		delete(s.used, id)
		evicted++
	}
	return evicted
}

// RunEviction calls Evict every idle period until ctx is done.
func (s *Sessions) RunEviction(ctx context.Context, idle time.Duration) error {
	t := time.NewTicker(idle)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			if n := s.Evict(idle); n > 0 {
				s.logger.Info("idle reader sessions released", zap.Int("count", n), zap.Int("live", s.Len()))
			}
		}
	}
}

// Close closes every session.
func (s *Sessions) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, rs := range s.sessions {
		if err := rs.Close(); err != nil {
			s.logger.Warn("failed to close reader session", zap.Int64("chat_id", id), zap.Error(err))
		}
	}
	s.sessions = make(map[int64]*service.ReaderSession)
	s.used = make(map[int64]time.Time)
}
