// Package controller holds the load/refresh/invalidate state machine shared
// by every page resource.
package controller

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/otakulist/otakulist/cache"
	"github.com/otakulist/otakulist/revalidate"
)

// State of a Resource
type State int

const (
	Idle State = iota
	Loading
	Loaded
	LoadedFromCache
	Error
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Loading:
		return "loading"
	case Loaded:
		return "loaded"
	case LoadedFromCache:
		return "loaded_from_cache"
	case Error:
		return "error"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Snapshot is the view state of a Resource at one point in time. Data
// keeps the last payload that was shown, so a failed refresh does not
// blank the view.
type Snapshot[T any] struct {
	State      State
	Data       T
	HasData    bool
	Err        error
	Generation uint64
	UpdatedAt  time.Time
}

// MarshalJSON adds the error text and retry hint to the encoded snapshot
func (s Snapshot[T]) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		State      State     `json:"state"`
		Data       T         `json:"data"`
		HasData    bool      `json:"has_data"`
		Error      string    `json:"error,omitempty"`
		Retryable  bool      `json:"retryable"`
		Generation uint64    `json:"generation"`
		UpdatedAt  time.Time `json:"updated_at"`
	}{
		State:      s.State,
		Data:       s.Data,
		HasData:    s.HasData,
		Error:      s.ErrorMessage(),
		Retryable:  s.Retryable(),
		Generation: s.Generation,
		UpdatedAt:  s.UpdatedAt,
	})
}

// Retryable reports whether the view should offer a retry action
func (s Snapshot[T]) Retryable() bool {
	return s.Err != nil
}

// ErrorMessage returns the error text, or "" when there is none
func (s Snapshot[T]) ErrorMessage() string {
	if s.Err == nil {
		return ""
	}
	return s.Err.Error()
}

// Config describes one resource
type Config[T any] struct {
	Name   string
	URL    string
	Params url.Values
	Key    cache.Key
	Store  *cache.Store
	Client *revalidate.Client

	// Decode turns a payload into T. Defaults to json.Unmarshal.
	Decode func(json.RawMessage) (T, error)
	// OnChange is called with every published snapshot
	OnChange func(Snapshot[T])
	Logger   zerolog.Logger
}

// Resource drives one cached resource through
// Idle -> Loading -> {Loaded, LoadedFromCache, Error}.
//
// Every load is numbered. When loads overlap only the newest one may
// publish its result; older ones are dropped. After Close no result is
// published at all.
type Resource[T any] struct {
	cfg    Config[T]
	logger zerolog.Logger

	mu     sync.Mutex
	snap   Snapshot[T]
	gen    uint64
	closed bool
}

// New creates an idle resource
func New[T any](cfg Config[T]) *Resource[T] {
	if cfg.Decode == nil {
		cfg.Decode = func(raw json.RawMessage) (T, error) {
			var v T
			err := json.Unmarshal(raw, &v)
			return v, err
		}
	}
	return &Resource[T]{
		cfg:    cfg,
		logger: cfg.Logger.With().Str("resource", cfg.Name).Str("key", cfg.Key.String()).Logger(),
	}
}

// Key returns the cache key of the resource
func (r *Resource[T]) Key() cache.Key {
	return r.cfg.Key
}

// Snapshot returns the current state
func (r *Resource[T]) Snapshot() Snapshot[T] {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snap
}

// Load revalidates the resource against the server
func (r *Resource[T]) Load(ctx context.Context) Snapshot[T] {
	return r.run(ctx, false)
}

// Refresh fetches the resource ignoring the stored validator
func (r *Resource[T]) Refresh(ctx context.Context) Snapshot[T] {
	return r.run(ctx, true)
}

// Invalidate drops the cached payload and validator, then refetches. Use
// it after a mutation has made the cached copy stale.
func (r *Resource[T]) Invalidate(ctx context.Context) Snapshot[T] {
	r.cfg.Store.Invalidate(ctx, r.cfg.Key)
	return r.run(ctx, true)
}

// Close stops the resource from publishing results of loads still in
// flight
func (r *Resource[T]) Close() {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
}

func (r *Resource[T]) run(ctx context.Context, force bool) Snapshot[T] {
	r.mu.Lock()
	if r.closed {
		snap := r.snap
		r.mu.Unlock()
		return snap
	}
	r.gen++
	gen := r.gen
	r.snap.State = Loading
	r.snap.Err = nil // a retry in progress is not retryable
	r.snap.Generation = gen
	loading := r.snap
	r.mu.Unlock()
	r.notify(loading)

	res := r.cfg.Client.Fetch(ctx, r.cfg.URL, r.cfg.Key.ETag(),
		r.cfg.Store.Reader(r.cfg.Key), r.cfg.Store.Writer(r.cfg.Key),
		revalidate.Options{ForceRefresh: force, Params: r.cfg.Params})

	next := r.resolve(ctx, res)

	r.mu.Lock()
	if r.closed || gen != r.gen {
		current := r.snap
		r.mu.Unlock()
		r.logger.Debug().Uint64("generation", gen).Msg("dropping stale result")
		return current
	}
	if !next.HasData {
		// keep what was on screen
		next.Data, next.HasData = r.snap.Data, r.snap.HasData
	}
	next.Generation = gen
	next.UpdatedAt = time.Now()
	r.snap = next
	r.mu.Unlock()

	r.logger.Debug().Str("outcome", res.Outcome.String()).Stringer("state", next.State).Msg("resource updated")
	r.notify(next)
	return next
}

// resolve maps a fetch result to the next snapshot
func (r *Resource[T]) resolve(ctx context.Context, res revalidate.Result) Snapshot[T] {
	switch res.Outcome {
	case revalidate.Fresh:
		v, err := r.cfg.Decode(res.Data)
		if err != nil {
			return Snapshot[T]{State: Error, Err: fmt.Errorf("decode %s: %w", r.cfg.Name, err)}
		}
		return Snapshot[T]{State: Loaded, Data: v, HasData: true}

	case revalidate.NotModified:
		v, err := r.fromCache(ctx)
		if err != nil {
			return Snapshot[T]{State: Error, Err: err}
		}
		return Snapshot[T]{State: LoadedFromCache, Data: v, HasData: true}

	default:
		v, err := r.fromCache(ctx)
		if err != nil {
			return Snapshot[T]{State: Error, Err: res.Err}
		}
		r.logger.Info().Err(res.Err).Msg("fetch failed, showing cached copy")
		return Snapshot[T]{State: LoadedFromCache, Data: v, HasData: true, Err: res.Err}
	}
}

func (r *Resource[T]) fromCache(ctx context.Context) (T, error) {
	var zero T
	raw := r.cfg.Store.Read(ctx, r.cfg.Key.String())
	if raw == nil {
		return zero, fmt.Errorf("%s: %w", r.cfg.Name, cache.ErrNotFound)
	}
	v, err := r.cfg.Decode(raw)
	if err != nil {
		return zero, fmt.Errorf("decode cached %s: %w", r.cfg.Name, err)
	}
	return v, nil
}

func (r *Resource[T]) notify(s Snapshot[T]) {
	if r.cfg.OnChange != nil {
		r.cfg.OnChange(s)
	}
}
