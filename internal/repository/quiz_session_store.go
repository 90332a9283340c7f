package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/noah-isme/crisiscoach-go-api/internal/quiz"
)

// ErrQuizSessionNotFound indicates the session expired, was abandoned or never existed.
var ErrQuizSessionNotFound = errors.New("quiz session not found")

// ErrQuizSessionContended indicates optimistic updates kept losing to concurrent writers.
var ErrQuizSessionContended = errors.New("quiz session update contended")

// ErrQuizSessionUnchanged is returned by a mutator that left the session as it
// was. Update then skips the write and returns the current session without error.
var ErrQuizSessionUnchanged = errors.New("quiz session unchanged")

// QuizSessionMutator mutates a session inside an atomic update. Returning an
// error discards every change made by the mutator.
type QuizSessionMutator func(session *quiz.Session) error

// QuizSessionStore keeps transient quiz sessions. Update is atomic per session:
// concurrent mutators observe each other's committed state, never a torn one.
// The TTL starts at Create; updates never extend it.
type QuizSessionStore interface {
	Create(ctx context.Context, session *quiz.Session) error
	Get(ctx context.Context, id string) (*quiz.Session, error)
	Update(ctx context.Context, id string, mutate QuizSessionMutator) (*quiz.Session, error)
	Delete(ctx context.Context, id string) error
	ActiveIDs(ctx context.Context) ([]string, error)
}

const maxSessionUpdateAttempts = 16

// NewRedisQuizSessionStore stores sessions as JSON documents guarded by WATCH/MULTI.
func NewRedisQuizSessionStore(client *redis.Client, prefix string, ttl time.Duration) QuizSessionStore {
	if prefix == "" {
		prefix = "crisiscoach"
	}
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &redisQuizSessionStore{client: client, prefix: prefix, ttl: ttl}
}

type redisQuizSessionStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func (s *redisQuizSessionStore) key(id string) string {
	return fmt.Sprintf("%s:quiz:session:%s", s.prefix, id)
}

func (s *redisQuizSessionStore) activeKey() string {
	return s.prefix + ":quiz:sessions:active"
}

func (s *redisQuizSessionStore) Create(ctx context.Context, session *quiz.Session) error {
	payload, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.key(session.ID), payload, s.ttl)
		pipe.SAdd(ctx, s.activeKey(), session.ID)
		return nil
	})
	return err
}

func (s *redisQuizSessionStore) Get(ctx context.Context, id string) (*quiz.Session, error) {
	raw, err := s.client.Get(ctx, s.key(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrQuizSessionNotFound
		}
		return nil, err
	}
	return decodeSession(raw)
}

func (s *redisQuizSessionStore) Update(ctx context.Context, id string, mutate QuizSessionMutator) (*quiz.Session, error) {
	key := s.key(id)

	for attempt := 0; attempt < maxSessionUpdateAttempts; attempt++ {
		var updated *quiz.Session
		err := s.client.Watch(ctx, func(tx *redis.Tx) error {
			raw, err := tx.Get(ctx, key).Bytes()
			if err != nil {
				if errors.Is(err, redis.Nil) {
					return ErrQuizSessionNotFound
				}
				return err
			}

			session, err := decodeSession(raw)
			if err != nil {
				return err
			}
			if err := mutate(session); err != nil {
				if errors.Is(err, ErrQuizSessionUnchanged) {
					updated = session
					return nil
				}
				return err
			}

			payload, err := json.Marshal(session)
			if err != nil {
				return fmt.Errorf("encode session: %w", err)
			}

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.SetArgs(ctx, key, payload, redis.SetArgs{KeepTTL: true})
				if session.Completed() {
					pipe.SRem(ctx, s.activeKey(), id)
				}
				return nil
			})
			if err == nil {
				updated = session
			}
			return err
		}, key)

		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return updated, nil
	}

	return nil, ErrQuizSessionContended
}

func (s *redisQuizSessionStore) Delete(ctx context.Context, id string) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.key(id))
		pipe.SRem(ctx, s.activeKey(), id)
		return nil
	})
	return err
}

func (s *redisQuizSessionStore) ActiveIDs(ctx context.Context) ([]string, error) {
	ids, err := s.client.SMembers(ctx, s.activeKey()).Result()
	if err != nil {
		return nil, err
	}
	sort.Strings(ids)
	return ids, nil
}

func decodeSession(raw []byte) (*quiz.Session, error) {
	var session quiz.Session
	if err := json.Unmarshal(raw, &session); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return &session, nil
}

// NewMemoryQuizSessionStore keeps sessions in process. Documents are stored
// encoded so callers never share state with the store.
func NewMemoryQuizSessionStore(ttl time.Duration) QuizSessionStore {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &memoryQuizSessionStore{
		ttl:      ttl,
		now:      time.Now,
		sessions: make(map[string]memorySessionEntry),
	}
}

type memorySessionEntry struct {
	payload   []byte
	completed bool
	expiresAt time.Time
}

type memoryQuizSessionStore struct {
	mu       sync.Mutex
	ttl      time.Duration
	now      func() time.Time
	sessions map[string]memorySessionEntry
}

func (s *memoryQuizSessionStore) put(session *quiz.Session, expiresAt time.Time) error {
	payload, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	s.sessions[session.ID] = memorySessionEntry{
		payload:   payload,
		completed: session.Completed(),
		expiresAt: expiresAt,
	}
	return nil
}

func (s *memoryQuizSessionStore) load(id string) (*quiz.Session, error) {
	entry, ok := s.sessions[id]
	if !ok {
		return nil, ErrQuizSessionNotFound
	}
	if s.now().After(entry.expiresAt) {
		delete(s.sessions, id)
		return nil, ErrQuizSessionNotFound
	}
	return decodeSession(entry.payload)
}

func (s *memoryQuizSessionStore) Create(_ context.Context, session *quiz.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.put(session, s.now().Add(s.ttl))
}

func (s *memoryQuizSessionStore) Get(_ context.Context, id string) (*quiz.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(id)
}

func (s *memoryQuizSessionStore) Update(_ context.Context, id string, mutate QuizSessionMutator) (*quiz.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, err := s.load(id)
	if err != nil {
		return nil, err
	}
	if err := mutate(session); err != nil {
		if errors.Is(err, ErrQuizSessionUnchanged) {
			return decodeSession(s.sessions[id].payload)
		}
		return nil, err
	}
	if err := s.put(session, s.sessions[id].expiresAt); err != nil {
		return nil, err
	}
	return session, nil
}

func (s *memoryQuizSessionStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
	return nil
}

func (s *memoryQuizSessionStore) ActiveIDs(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	ids := make([]string, 0, len(s.sessions))
	for id, entry := range s.sessions {
		if now.After(entry.expiresAt) {
			delete(s.sessions, id)
			continue
		}
		if entry.completed {
			continue
		}
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}
