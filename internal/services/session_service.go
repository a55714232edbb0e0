package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"sync"
	"time"

	"github.com/markdave123-py/Prism/internal/core"
	"github.com/markdave123-py/Prism/internal/core/logger"
	"github.com/markdave123-py/Prism/internal/models"
)

// StoreFactory opens the vector store backing one session.
type StoreFactory func(ctx context.Context, sessionID string) (core.VectorStore, error)

// LLMFactory builds a chat model for one session.
type LLMFactory func(ctx context.Context) (core.LLMProvider, error)

// ArchivePurger removes whatever was archived for a session.
type ArchivePurger interface {
	Purge(ctx context.Context, sessionID string) error
}

// Session is the per-visitor state. Its fields are only touched while mu is held,
// which SessionService.Do guarantees.
type Session struct {
	ID string

	mu         sync.Mutex
	store      core.VectorStore
	llm        core.LLMProvider
	transcript []models.ChatTurn
	ingested   []models.IngestionResult

	// guarded by the registry lock
	busy     int
	lastSeen time.Time

	newStore StoreFactory
	newLLM   LLMFactory
}

// Store returns the session's vector store, opening it on first use.
func (s *Session) Store(ctx context.Context) (core.VectorStore, error) {
	if s.store == nil {
		st, err := s.newStore(ctx, s.ID)
		if err != nil {
			return nil, fmt.Errorf("open vector store: %w", err)
		}
		s.store = st
	}
	return s.store, nil
}

// LLM returns the session's chat model, building it on first use.
func (s *Session) LLM(ctx context.Context) (core.LLMProvider, error) {
	if s.llm == nil {
		m, err := s.newLLM(ctx)
		if err != nil {
			return nil, fmt.Errorf("create llm: %w", err)
		}
		s.llm = m
	}
	return s.llm, nil
}

func (s *Session) AppendTurn(role, content string) {
	s.transcript = append(s.transcript, models.ChatTurn{Role: role, Content: content, CreatedAt: time.Now().UTC()})
}

func (s *Session) RecordIngestion(res models.IngestionResult) {
	s.ingested = append(s.ingested, res)
}

func (s *Session) Transcript() []models.ChatTurn { return slices.Clone(s.transcript) }

func (s *Session) IngestionLog() []models.IngestionResult { return slices.Clone(s.ingested) }

// teardown clears the store, drops the model and empties the history.
func (s *Session) teardown(ctx context.Context) error {
	var errs []error
	if s.store != nil {
		if err := s.store.Clear(ctx); err != nil {
			errs = append(errs, fmt.Errorf("clear store: %w", err))
		}
	}
	if c, ok := s.llm.(io.Closer); ok {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close llm: %w", err))
		}
	}
	s.llm = nil
	s.transcript = nil
	s.ingested = nil
	return errors.Join(errs...)
}

// SessionService is the registry of live sessions.
type SessionService struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	newStore StoreFactory
	newLLM   LLMFactory
	archive  ArchivePurger
	ttl      time.Duration
	now      func() time.Time
	log      *logger.Logger
}

// NewSessionService builds the registry. archive may be nil; ttl <= 0 disables eviction.
func NewSessionService(newStore StoreFactory, newLLM LLMFactory, archive ArchivePurger, ttl time.Duration, log *logger.Logger) *SessionService {
	return &SessionService{
		sessions: make(map[string]*Session),
		newStore: newStore,
		newLLM:   newLLM,
		archive:  archive,
		ttl:      ttl,
		now:      time.Now,
		log:      log.With("service", "SessionService"),
	}
}

// Do runs fn with exclusive access to the session, creating it if needed.
func (s *SessionService) Do(ctx context.Context, sessionID string, fn func(*Session) error) error {
	if sessionID == "" {
		return errors.New("session id is empty")
	}
	sess := s.acquire(sessionID)
	defer s.release(sess)

	sess.mu.Lock()
	defer sess.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(sess)
}

func (s *SessionService) acquire(id string) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		sess = &Session{ID: id, newStore: s.newStore, newLLM: s.newLLM}
		s.sessions[id] = sess
		s.log.Debug("session created", "session", id)
	}
	sess.busy++
	sess.lastSeen = s.now()
	return sess
}

func (s *SessionService) release(sess *Session) {
	s.mu.Lock()
	sess.busy--
	sess.lastSeen = s.now()
	s.mu.Unlock()
}

// Status reports chunk count, transcript and ingestion log.
func (s *SessionService) Status(ctx context.Context, sessionID string) (models.SessionStatus, error) {
	status := models.SessionStatus{SessionID: sessionID}
	err := s.Do(ctx, sessionID, func(sess *Session) error {
		store, err := sess.Store(ctx)
		if err != nil {
			return err
		}
		n, err := store.Count(ctx)
		if err != nil {
			return fmt.Errorf("count chunks: %w", err)
		}
		status.ChunkCount = n
		status.ChatHistory = sess.Transcript()
		status.ProcessedFiles = sess.IngestionLog()
		return nil
	})
	return status, err
}

// Clear tears the session down: every stored chunk, the chat model, the
// transcript, the ingestion log and any archived uploads. The session stays
// registered and starts empty.
func (s *SessionService) Clear(ctx context.Context, sessionID string) error {
	return s.Do(ctx, sessionID, func(sess *Session) error {
		if _, err := sess.Store(ctx); err != nil {
			return err
		}
		err := sess.teardown(ctx)
		if aerr := s.dropArchive(ctx, sessionID); aerr != nil {
			s.log.Warn("archive cleanup failed", "session", sessionID, "error", aerr)
		}
		if err != nil {
			return err
		}
		s.log.Info("session cleared", "session", sessionID)
		return nil
	})
}

func (s *SessionService) dropArchive(ctx context.Context, sessionID string) error {
	if s.archive == nil {
		return nil
	}
	return s.archive.Purge(ctx, sessionID)
}

// EvictIdle tears down sessions idle for longer than the TTL and returns how many went.
func (s *SessionService) EvictIdle(ctx context.Context) int {
	if s.ttl <= 0 {
		return 0
	}
	cutoff := s.now().Add(-s.ttl)

	s.mu.Lock()
	var idle []*Session
	for id, sess := range s.sessions {
		if sess.busy == 0 && sess.lastSeen.Before(cutoff) {
			idle = append(idle, sess)
			delete(s.sessions, id)
		}
	}
	s.mu.Unlock()

	for _, sess := range idle {
		sess.mu.Lock()
		if err := sess.teardown(ctx); err != nil {
			s.log.Warn("evicted session teardown failed", "session", sess.ID, "error", err)
		}
		sess.mu.Unlock()
		if err := s.dropArchive(ctx, sess.ID); err != nil {
			s.log.Warn("archive cleanup failed", "session", sess.ID, "error", err)
		}
	}
	if len(idle) > 0 {
		s.log.Info("idle sessions evicted", "count", len(idle))
	}
	return len(idle)
}

// RunJanitor evicts idle sessions until ctx is done.
func (s *SessionService) RunJanitor(ctx context.Context) {
	if s.ttl <= 0 {
		return
	}
	interval := max(s.ttl/4, time.Minute)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.EvictIdle(ctx)
		}
	}
}

// Len reports the number of registered sessions.
func (s *SessionService) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
