package cache

import (
	"context"

	lru "github.com/hashicorp/golang-lru/v2"
)

// LRUBackend is a bounded in-memory backend. Once size keys are stored
// the least recently used key is evicted to make room.
//
// Payloads and their validator tokens are separate keys, so a token can
// outlive its payload here. The revalidation client only sends a token
// when the payload is still present, which keeps that harmless.
type LRUBackend struct {
	lru *lru.Cache[string, []byte]
}

// NewLRUBackend creates an LRU backend holding at most size keys
func NewLRUBackend(size int) (*LRUBackend, error) {
	if size <= 0 {
		size = 1000
	}
	c, err := lru.New[string, []byte](size)
	if err != nil {
		return nil, err
	}
	return &LRUBackend{lru: c}, nil
}

func (l *LRUBackend) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := l.lru.Get(key)
	return v, ok, nil
}

func (l *LRUBackend) Set(_ context.Context, key string, value []byte) error {
	v := make([]byte, len(value))
	copy(v, value)
	l.lru.Add(key, v)
	return nil
}

func (l *LRUBackend) Delete(_ context.Context, key string) error {
	l.lru.Remove(key)
	return nil
}

// Len returns the number of stored keys
func (l *LRUBackend) Purge(_ context.Context) error {
	l.lru.Purge()
	return nil
}

func (l *LRUBackend) Len() int {
	return l.lru.Len()
}
