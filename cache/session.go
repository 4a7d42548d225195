package cache

import (
	"context"

	scs "github.com/alexedwards/scs/v2"
)

const sessionKeyPrefix = "cache:"

// SessionBackend stores values inside the caller's HTTP session, so each
// client session gets its own cache. The context passed to every method
// must come from a request wrapped by SessionManager.LoadAndSave.
type SessionBackend struct {
	sess *scs.SessionManager
}

// NewSessionBackend creates a backend over sess
func NewSessionBackend(sess *scs.SessionManager) *SessionBackend {
	return &SessionBackend{sess: sess}
}

func (s *SessionBackend) Get(ctx context.Context, key string) ([]byte, bool, error) {
	v, ok := s.sess.Get(ctx, sessionKeyPrefix+key).([]byte)
	if !ok {
		return nil, false, nil
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, true, nil
}

func (s *SessionBackend) Set(ctx context.Context, key string, value []byte) error {
	v := make([]byte, len(value))
	copy(v, value)
	s.sess.Put(ctx, sessionKeyPrefix+key, v)
	return nil
}

func (s *SessionBackend) Delete(ctx context.Context, key string) error {
	s.sess.Remove(ctx, sessionKeyPrefix+key)
	return nil
}
