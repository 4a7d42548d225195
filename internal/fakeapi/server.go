// Package fakeapi is an in-process OtakuList API for tests. It serves
// versioned payloads with ETags, answers conditional requests with 304 and
// records every request it sees.
package fakeapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"time"
)

// Request is what the server saw of one call
type Request struct {
	Method       string
	Path         string
	Query        string
	IfNoneMatch  string
	CacheControl string
	Pragma       string
	Auth         string
}

type resource struct {
	data    any
	version int
}

type Server struct {
	*httptest.Server

	mu        sync.Mutex
	resources map[string]*resource
	requests  []Request
	down      bool
	noETag    bool
}

// New starts a server seeded with anime 42, its characters and
// recommendations, one page of news and the dashboard of user "mika"
func New() *Server {
	s := &Server{resources: make(map[string]*resource)}
	s.seed()

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/anime/{id}", s.serve)
	mux.HandleFunc("GET /api/anime/{id}/characters", s.serve)
	mux.HandleFunc("GET /api/anime/{id}/recommendations", s.serve)
	mux.HandleFunc("GET /api/news", s.serve)
	mux.HandleFunc("GET /api/users/{user}/stats", s.serve)
	mux.HandleFunc("GET /api/users/{user}/achievements", s.serve)
	mux.HandleFunc("POST /api/anime/{id}/rating", s.rate)

	s.Server = httptest.NewServer(mux)
	return s
}

func (s *Server) seed() {
	s.Set("/api/anime/42", map[string]any{
		"id": 42, "title": "Frieren", "title_japanese": "葬送のフリーレン",
		"synopsis": "An elf mage outlives her party.", "episodes": 28, "status": "finished",
		"genres": []string{"Adventure", "Fantasy"}, "score": 9.1, "rating_count": 100,
		"user_rating": nil,
	})
	s.Set("/api/anime/42/characters", []map[string]any{
		{"id": 1, "name": "Frieren", "role": "Main"},
		{"id": 2, "name": "Fern", "role": "Main"},
	})
	s.Set("/api/anime/42/recommendations", []map[string]any{
		{"id": 7, "title": "Mushishi", "score": 8.7, "votes": 40},
	})
	s.Set("/api/news", map[string]any{
		"items": []map[string]any{
			{"id": "n1", "title": "Season 2 announced", "source": "ann", "category": "anime",
				"published_at": time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)},
		},
		"page": 1, "total_pages": 3,
	})
	s.Set("/api/users/mika/stats", map[string]any{
		"watching": 3, "completed": 120, "on_hold": 2, "dropped": 5, "plan_to_watch": 40,
		"episodes_watched": 2400, "minutes_watched": 57600, "mean_score": 7.8,
	})
	s.Set("/api/users/mika/achievements", []map[string]any{
		{"id": "a1", "name": "Centurion", "progress": 120, "goal": 100,
			"unlocked_at": time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)},
		{"id": "a2", "name": "Marathoner", "progress": 2400, "goal": 5000},
	})
}

// Set replaces the payload at path and bumps its ETag
func (s *Server) Set(path string, data any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.resources[path]
	if !ok {
		r = &resource{}
		s.resources[path] = r
	}
	r.data = data
	r.version++
}

// ETag returns the current validator of path
func (s *Server) ETag(path string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.resources[path]; ok {
		return etag(r.version)
	}
	return ""
}

// SetDown makes every request fail with 503 until called with false
func (s *Server) SetDown(down bool) {
	s.mu.Lock()
	s.down = down
	s.mu.Unlock()
}

// SetNoETag stops the server from sending ETag headers
func (s *Server) SetNoETag(v bool) {
	s.mu.Lock()
	s.noETag = v
	s.mu.Unlock()
}

// Requests returns a copy of the requests seen so far
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Request, len(s.requests))
	copy(out, s.requests)
	return out
}

// RequestsTo returns the requests made to path
func (s *Server) RequestsTo(path string) []Request {
	var out []Request
	for _, r := range s.Requests() {
		if r.Path == path {
			out = append(out, r)
		}
	}
	return out
}

func (s *Server) record(r *http.Request) {
	s.requests = append(s.requests, Request{
		Method:       r.Method,
		Path:         r.URL.Path,
		Query:        r.URL.RawQuery,
		IfNoneMatch:  r.Header.Get("If-None-Match"),
		CacheControl: r.Header.Get("Cache-Control"),
		Pragma:       r.Header.Get("Pragma"),
		Auth:         r.Header.Get("Authorization"),
	})
}

func (s *Server) serve(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.record(r)
	down, noETag := s.down, s.noETag
	res, ok := s.resources[r.URL.Path]
	var data any
	var tag string
	if ok {
		data, tag = res.data, etag(res.version)
	}
	s.mu.Unlock()

	if down {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"success": false, "message": "maintenance"})
		return
	}
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{"success": false, "message": "not found"})
		return
	}
	if !noETag {
		if r.Header.Get("If-None-Match") == tag {
			w.Header().Set("ETag", tag)
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", tag)
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": data})
}

func (s *Server) rate(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Score int `json:"score"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)

	s.mu.Lock()
	s.record(r)
	path := "/api/anime/" + r.PathValue("id")
	res, ok := s.resources[path]
	down := s.down
	var anime map[string]any
	if ok && !down {
		if prev, isMap := res.data.(map[string]any); isMap {
			anime = make(map[string]any, len(prev))
			for k, v := range prev {
				anime[k] = v
			}
			anime["user_rating"] = body.Score
			if n, isInt := anime["rating_count"].(int); isInt {
				anime["rating_count"] = n + 1
			}
			res.data = anime
			res.version++
		}
	}
	s.mu.Unlock()

	switch {
	case down:
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"success": false, "message": "maintenance"})
	case !ok:
		writeJSON(w, http.StatusNotFound, map[string]any{"success": false, "message": "anime not found"})
	default:
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": anime})
	}
}

func etag(version int) string {
	return strconv.Quote(fmt.Sprintf("v%d", version))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
