package session

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/redis/go-redis/v9"

	"hacktickets/models"
)

const (
	fieldToken   = "token"
	fieldPhone   = "phone"
	fieldIsAdmin = "is_admin"
)

// Store owns the Session for the process lifetime. Durable state lives in a
// single redis hash so establish/clear are single atomic commands; the
// in-memory copy is what booking and listing consult.
type Store struct {
	redis *redis.Client
	key   string

	mu      sync.RWMutex
	current *models.Session
}

func NewStore(redisClient *redis.Client, key string) *Store {
	return &Store{
		redis: redisClient,
		key:   key,
	}
}

// Restore rehydrates the session from redis. A missing or partial record is
// a normal outcome and yields (nil, nil): partial state is no session.
func (s *Store) Restore(ctx context.Context) (*models.Session, error) {
	fields, err := s.redis.HGetAll(ctx, s.key).Result()
	if err != nil {
		return nil, fmt.Errorf("session restore: %w", err)
	}

	sess := &models.Session{
		Token: fields[fieldToken],
		Phone: fields[fieldPhone],
	}
	if !sess.Valid() {
		return nil, nil
	}
	sess.IsAdmin, _ = strconv.ParseBool(fields[fieldIsAdmin])

	s.mu.Lock()
	s.current = sess
	s.mu.Unlock()

	return sess, nil
}

// Establish persists all three fields in one HSET, then updates the
// in-memory state. A later Restore sees either the whole session or none.
func (s *Store) Establish(ctx context.Context, token, phone string, isAdmin bool) error {
	sess := &models.Session{Token: token, Phone: phone, IsAdmin: isAdmin}
	if !sess.Valid() {
		return fmt.Errorf("session establish: token and phone are required")
	}

	err := s.redis.HSet(ctx, s.key,
		fieldToken, token,
		fieldPhone, phone,
		fieldIsAdmin, strconv.FormatBool(isAdmin),
	).Err()
	if err != nil {
		return fmt.Errorf("session establish: %w", err)
	}

	s.mu.Lock()
	s.current = sess
	s.mu.Unlock()

	return nil
}

// Clear removes the durable record and drops in-memory state. Safe to call
// when no session exists.
func (s *Store) Clear(ctx context.Context) error {
	if err := s.redis.Del(ctx, s.key).Err(); err != nil {
		return fmt.Errorf("session clear: %w", err)
	}

	s.mu.Lock()
	s.current = nil
	s.mu.Unlock()

	return nil
}

// Current returns the in-memory session, or nil.
func (s *Store) Current() *models.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

func (s *Store) IsAuthenticated() bool {
	return s.Current().Valid()
}

// Token implements ticketing.TokenSource.
func (s *Store) Token() (string, bool) {
	sess := s.Current()
	if !sess.Valid() {
		return "", false
	}
	return sess.Token, true
}
