package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// Store is the JSON layer over a Backend. It never returns errors to its
// callers: a corrupt entry reads as a miss and a failed write is logged
// and dropped, so caching stays best-effort.
type Store struct {
	backend Backend
	logger  zerolog.Logger
	now     func() time.Time
}

// StoreOption configures a Store
type StoreOption func(*Store)

// WithLogger sets the logger used for swallowed cache failures
func WithLogger(l zerolog.Logger) StoreOption {
	return func(s *Store) { s.logger = l.With().Str("component", "cache").Logger() }
}

// WithClock overrides the time source used for Entry.StoredAt
func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) { s.now = now }
}

// NewStore creates a Store over backend
func NewStore(backend Backend, opts ...StoreOption) *Store {
	s := &Store{
		backend: backend,
		logger:  zerolog.Nop(),
		now:     time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// ReadEntry returns the entry stored at key
func (s *Store) ReadEntry(ctx context.Context, key string) (*Entry, bool) {
	data, ok, err := s.backend.Get(ctx, key)
	if err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("cache read failed, treating as miss")
		return nil, false
	}
	if !ok {
		return nil, false
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil || len(entry.Payload) == 0 {
		s.logger.Warn().Err(err).Str("key", key).Msg("corrupt cache entry, treating as miss")
		return nil, false
	}
	return &entry, true
}

// Read returns the payload stored at key, or nil on a miss
func (s *Store) Read(ctx context.Context, key string) json.RawMessage {
	entry, ok := s.ReadEntry(ctx, key)
	if !ok {
		return nil
	}
	return entry.Payload
}

// Write stores payload at key. payload may be any JSON-serializable
// value; a json.RawMessage is stored as-is after validation.
func (s *Store) Write(ctx context.Context, key string, payload any) {
	raw, err := json.Marshal(payload)
	if err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("cache payload not serializable, skipping write")
		return
	}

	data, err := json.Marshal(&Entry{Key: key, Payload: raw, StoredAt: s.now().UTC()})
	if err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("cache entry encode failed, skipping write")
		return
	}

	if err := s.backend.Set(ctx, key, data); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("cache write failed")
	}
}

// Clear removes the payload stored at key
func (s *Store) Clear(ctx context.Context, key string) {
	if err := s.backend.Delete(ctx, key); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("cache clear failed")
	}
}

// Invalidate removes both the payload and the validator token for key
func (s *Store) Invalidate(ctx context.Context, key Key) {
	s.Clear(ctx, key.ETag())
	s.Clear(ctx, key.String())
}

// Purge drops every payload and token in the backend. Unlike the other
// Store methods it reports failure, since the caller asked for it
// explicitly.
func (s *Store) Purge(ctx context.Context) error {
	p, ok := s.backend.(Purger)
	if !ok {
		return ErrPurgeUnsupported
	}
	if err := p.Purge(ctx); err != nil {
		return fmt.Errorf("purge cache: %w", err)
	}
	return nil
}

// Token returns the validator token stored under etagKey, or ""
func (s *Store) Token(ctx context.Context, etagKey string) string {
	data, ok, err := s.backend.Get(ctx, etagKey)
	if err != nil {
		s.logger.Warn().Err(err).Str("key", etagKey).Msg("etag read failed")
		return ""
	}
	if !ok {
		return ""
	}
	return string(data)
}

// SetToken stores token under etagKey. An empty token removes any stored
// one, since it no longer matches the payload it was issued for.
func (s *Store) SetToken(ctx context.Context, etagKey, token string) {
	if token == "" {
		s.Clear(ctx, etagKey)
		return
	}
	if err := s.backend.Set(ctx, etagKey, []byte(token)); err != nil {
		s.logger.Warn().Err(err).Str("key", etagKey).Msg("etag write failed")
	}
}

// Reader returns an accessor that reads the payload at key
func (s *Store) Reader(key Key) func(context.Context) (json.RawMessage, bool) {
	return func(ctx context.Context) (json.RawMessage, bool) {
		payload := s.Read(ctx, key.String())
		return payload, payload != nil
	}
}

// Writer returns an accessor that writes a payload at key
func (s *Store) Writer(key Key) func(context.Context, json.RawMessage) {
	return func(ctx context.Context, payload json.RawMessage) {
		s.Write(ctx, key.String(), payload)
	}
}
