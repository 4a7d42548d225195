// cmd/api/main.go
package main

import (
	"net/http"
	"time"

	scs "github.com/alexedwards/scs/v2"
	"github.com/rs/zerolog/hlog"

	"github.com/otakulist/otakulist/internal/config"
	"github.com/otakulist/otakulist/internal/http/routes"
	"github.com/otakulist/otakulist/internal/logging"
	"github.com/otakulist/otakulist/internal/metrics"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		l := logging.New("info")
		l.Fatal().Err(err).Msg("load config")
	}

	// Logger
	logger := logging.New(cfg.LogLevel)
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}
	logger.Info().Str("port", cfg.Port).Str("api", cfg.API.URL).Msg("starting api")

	// Sessions; each session carries its own cache
	sess := scs.New()
	sess.Lifetime = cfg.Cache.SessionTTL
	sess.Cookie.HttpOnly = true
	sess.Cookie.SameSite = http.SameSiteLaxMode
	sess.Cookie.Secure = cfg.CookieSecure

	// Router / server
	s := routes.New(routes.ServerOptions{
		Sess:    sess,
		HTTP:    &http.Client{Timeout: cfg.API.Timeout},
		Cfg:     *cfg,
		Logger:  logger,
		Metrics: metrics.NewCollector(),
	})

	h := hlog.NewHandler(logger)(
		hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
			hlog.FromRequest(r).Info().
				Str("method", r.Method).
				Stringer("url", r.URL).
				Int("status", status).
				Int("size", size).
				Dur("duration", duration).
				Msg("request")
		})(
			hlog.RequestIDHandler("request_id", "X-Request-ID")(s.Router),
		),
	)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           sess.LoadAndSave(h),
		ReadHeaderTimeout: 10 * time.Second,
	}
	if err := srv.ListenAndServe(); err != nil {
		logger.Fatal().Err(err).Msg("server stopped")
	}
}
