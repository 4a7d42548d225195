package routes

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	scs "github.com/alexedwards/scs/v2"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"

	"github.com/otakulist/otakulist/internal/config"
	appmw "github.com/otakulist/otakulist/internal/http/middleware"
	"github.com/otakulist/otakulist/internal/metrics"
	"github.com/otakulist/otakulist/otakulist"
	"github.com/otakulist/otakulist/pages"
	"github.com/otakulist/otakulist/revalidate"
)

type Server struct {
	Router  *chi.Mux
	Sess    *scs.SessionManager
	HTTP    *http.Client
	API     config.APIConfig
	Logger  zerolog.Logger
	Metrics *metrics.Collector
}

type ServerOptions struct {
	Sess    *scs.SessionManager
	HTTP    *http.Client
	Cfg     config.Config
	Logger  zerolog.Logger
	Metrics *metrics.Collector
}

func New(opts ServerOptions) *Server {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)

	if opts.HTTP == nil {
		opts.HTTP = &http.Client{Timeout: opts.Cfg.API.Timeout}
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.NewCollector()
	}
	s := &Server{Router: r, Sess: opts.Sess, HTTP: opts.HTTP, API: opts.Cfg.API, Logger: opts.Logger, Metrics: opts.Metrics}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if _, err := w.Write([]byte("ok")); err != nil {
			hlog.FromRequest(r).Error().Err(err).Msg("write health check response")
		}
	})
	r.Method(http.MethodGet, "/metrics", s.Metrics.Handler())

	r.Group(func(pr chi.Router) {
		pr.Use(appmw.SessionCache(s.Sess, s.Logger))
		pr.Use(appmw.RequireStore)
		pr.Get("/anime/{id}", s.handleAnime)
		pr.Post("/anime/{id}/refresh", s.handleAnimeRefresh)
		pr.Post("/anime/{id}/rating", s.handleAnimeRating)
		pr.Get("/news", s.handleNews)
		pr.Get("/stats", s.handleStats)
		pr.Post("/stats/refresh", s.handleStatsRefresh)
	})

	return s
}

// api binds an OtakuList client to the session cache of r
func (s *Server) api(r *http.Request) *otakulist.Client {
	store, _ := appmw.StoreFrom(r.Context())
	return otakulist.New(store,
		otakulist.WithHTTPClient(s.HTTP),
		otakulist.WithBaseURL(s.API.URL),
		otakulist.WithToken(s.API.Token),
		otakulist.WithLogger(*hlog.FromRequest(r)),
		otakulist.WithMetrics(s.Metrics),
		otakulist.WithCoalescing(s.API.Coalesce),
	)
}

func (s *Server) handleAnime(w http.ResponseWriter, r *http.Request) {
	page := pages.NewAnimePage(s.api(r))
	writeJSON(w, r, http.StatusOK, page.Load(r.Context(), chi.URLParam(r, "id")))
}

func (s *Server) handleAnimeRefresh(w http.ResponseWriter, r *http.Request) {
	page := pages.NewAnimePage(s.api(r))
	writeJSON(w, r, http.StatusOK, page.Refresh(r.Context(), chi.URLParam(r, "id")))
}

func (s *Server) handleAnimeRating(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Score int `json:"score"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid body")
		return
	}

	id := chi.URLParam(r, "id")
	view, err := pages.NewAnimePage(s.api(r)).Rate(r.Context(), id, body.Score)
	if err != nil {
		if errors.Is(err, otakulist.ErrInvalidScore) {
			writeError(w, r, http.StatusBadRequest, otakulist.ErrInvalidScore.Error())
			return
		}
		hlog.FromRequest(r).Warn().Err(err).Str("anime_id", id).Msg("rating failed")
		msg := err.Error()
		var se *revalidate.ServerError
		if errors.As(err, &se) {
			msg = se.Message
		}
		writeError(w, r, http.StatusBadGateway, msg)
		return
	}
	writeJSON(w, r, http.StatusOK, view)
}

func (s *Server) handleNews(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := otakulist.NewsQuery{
		Category: q.Get("category"),
		Source:   q.Get("source"),
		Query:    q.Get("q"),
	}
	if p := q.Get("page"); p != "" {
		n, err := strconv.Atoi(p)
		if err != nil || n < 1 {
			writeError(w, r, http.StatusBadRequest, "invalid page")
			return
		}
		query.Page = n
	}

	page := pages.NewNewsPage(s.api(r))
	writeJSON(w, r, http.StatusOK, page.Load(r.Context(), query, false))
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	s.stats(w, r, false)
}

func (s *Server) handleStatsRefresh(w http.ResponseWriter, r *http.Request) {
	s.stats(w, r, true)
}

func (s *Server) stats(w http.ResponseWriter, r *http.Request, refresh bool) {
	user := r.URL.Query().Get("user")
	if user == "" {
		user = s.API.User
	}
	if user == "" {
		writeError(w, r, http.StatusBadRequest, pages.ErrMissingUser.Error())
		return
	}

	page := pages.NewStatsPage(s.api(r), user)
	if refresh {
		writeJSON(w, r, http.StatusOK, page.Refresh(r.Context()))
		return
	}
	writeJSON(w, r, http.StatusOK, page.Load(r.Context()))
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("encode response")
	}
}

func writeError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	writeJSON(w, r, status, map[string]any{"success": false, "message": msg})
}
