package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// DefaultTTL is the sliding expiry applied when the caller does not override it.
const DefaultTTL = 6 * time.Hour

// Store persists sessions in Redis with a sliding expiry. Read-modify-write
// operations are not serialized here; callers that need a whole turn to be
// atomic must hold the per-session lock (see Locks).
type Store struct {
	redis  *redis.Client
	ttl    time.Duration
	tracer trace.Tracer
}

// NewStore creates a Redis-backed session store.
func NewStore(client *redis.Client, ttl time.Duration) *Store {
	if client == nil {
		panic("session: redis client cannot be nil")
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{
		redis:  client,
		ttl:    ttl,
		tracer: otel.Tracer("agendabot.internal.session"),
	}
}

// Get loads a session. Returns (nil, nil) when none exists.
func (s *Store) Get(ctx context.Context, identity, instance string) (*Session, error) {
	ctx, span := s.tracer.Start(ctx, "session.get")
	defer span.End()

	data, err := s.redis.Get(ctx, Key(identity, instance)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("session: failed to load: %w", err)
	}

	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("session: failed to decode: %w", err)
	}
	if sess.Data == nil {
		sess.Data = map[string]any{}
	}
	return &sess, nil
}

// GetOrCreate loads the session or lazily creates one in the initial state.
// When a concurrent writer creates the session first, the stored copy wins.
func (s *Store) GetOrCreate(ctx context.Context, identity, instance string) (*Session, error) {
	sess, err := s.Get(ctx, identity, instance)
	if err != nil {
		return nil, err
	}
	if sess != nil {
		return sess, nil
	}

	fresh := New(identity, instance)
	data, err := json.Marshal(fresh)
	if err != nil {
		return nil, fmt.Errorf("session: failed to encode: %w", err)
	}

	created, err := s.redis.SetNX(ctx, Key(identity, instance), data, s.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("session: failed to create: %w", err)
	}
	if !created {
		// Lost the race; return whoever won.
		return s.Get(ctx, identity, instance)
	}
	return fresh, nil
}

// Save overwrites the stored session, touching UpdatedAt and resetting the TTL.
func (s *Store) Save(ctx context.Context, sess *Session) error {
	ctx, span := s.tracer.Start(ctx, "session.save")
	defer span.End()

	sess.UpdatedAt = time.Now().UTC()
	data, err := json.Marshal(sess)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("session: failed to encode: %w", err)
	}
	if err := s.redis.Set(ctx, Key(sess.Identity, sess.Instance), data, s.ttl).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("session: failed to persist: %w", err)
	}
	return nil
}

// SetState updates the dialogue state.
func (s *Store) SetState(ctx context.Context, identity, instance string, state State) error {
	sess, err := s.GetOrCreate(ctx, identity, instance)
	if err != nil {
		return err
	}
	sess.State = state
	return s.Save(ctx, sess)
}

// MergeData applies a read-modify-write merge into the session data map.
// New keys are added, existing keys overwritten; nothing else changes.
func (s *Store) MergeData(ctx context.Context, identity, instance string, patch map[string]any) error {
	if len(patch) == 0 {
		return nil
	}
	sess, err := s.GetOrCreate(ctx, identity, instance)
	if err != nil {
		return err
	}
	for k, v := range patch {
		sess.Data[k] = v
	}
	return s.Save(ctx, sess)
}

// AppendHistory appends a transcript turn, enforcing the 20-entry cap.
func (s *Store) AppendHistory(ctx context.Context, identity, instance, role, content string) error {
	sess, err := s.GetOrCreate(ctx, identity, instance)
	if err != nil {
		return err
	}
	sess.AppendTurn(role, content)
	return s.Save(ctx, sess)
}

// Delete removes a session wholesale.
func (s *Store) Delete(ctx context.Context, identity, instance string) error {
	if err := s.redis.Del(ctx, Key(identity, instance)).Err(); err != nil {
		return fmt.Errorf("session: failed to delete: %w", err)
	}
	return nil
}

// List returns all live sessions. Used by the monitoring dashboard only.
func (s *Store) List(ctx context.Context) ([]*Session, error) {
	ctx, span := s.tracer.Start(ctx, "session.list")
	defer span.End()

	var sessions []*Session
	iter := s.redis.Scan(ctx, 0, "session:*", 100).Iterator()
	for iter.Next(ctx) {
		data, err := s.redis.Get(ctx, iter.Val()).Bytes()
		if err != nil {
			continue
		}
		var sess Session
		if err := json.Unmarshal(data, &sess); err != nil {
			continue
		}
		sessions = append(sessions, &sess)
	}
	if err := iter.Err(); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("session: failed to scan: %w", err)
	}
	return sessions, nil
}

// ClearAll removes every live session. Administrative operation.
func (s *Store) ClearAll(ctx context.Context) (int, error) {
	var removed int
	iter := s.redis.Scan(ctx, 0, "session:*", 100).Iterator()
	for iter.Next(ctx) {
		if err := s.redis.Del(ctx, iter.Val()).Err(); err == nil {
			removed++
		}
	}
	if err := iter.Err(); err != nil {
		return removed, fmt.Errorf("session: failed to scan: %w", err)
	}
	return removed, nil
}
