package api

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/handlers"
	"github.com/jmoiron/sqlx"
	"github.com/npezzotti/isupipe/internal/config"
	"github.com/npezzotti/isupipe/internal/enrich"
	"github.com/npezzotti/isupipe/internal/feed"
	"github.com/npezzotti/isupipe/internal/stats"
	"github.com/rs/zerolog"
)

// Store is the part of *database.Store the handlers use.
type Store interface {
	DB() *sqlx.DB
	Ping(ctx context.Context) error
	WithTx(ctx context.Context, opts *sql.TxOptions, fn func(tx *sqlx.Tx) error) error
}

type App struct {
	log            *zerolog.Logger
	store          Store
	mux            *http.Server
	hub            *feed.Hub
	broadcaster    feed.Broadcaster
	fallbackIcon   enrich.FallbackIconFunc
	signingKey     []byte
	sessionTTL     time.Duration
	allowedOrigins []string
}

func NewApp(logger *zerolog.Logger, store Store, hub *feed.Hub, fallbackIcon enrich.FallbackIconFunc, cfg *config.Config) *App {
	s := &App{
		log:            logger,
		store:          store,
		hub:            hub,
		fallbackIcon:   fallbackIcon,
		signingKey:     cfg.SigningKey,
		sessionTTL:     cfg.SessionTTL,
		allowedOrigins: cfg.AllowedOrigins,
	}
	if hub != nil {
		s.broadcaster = hub
	}

	mux := http.NewServeMux()
	s.routes(mux)

	h := handlers.CORS(
		handlers.MaxAge(3600),
		handlers.AllowedOrigins(cfg.AllowedOrigins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Origin", "Content-Type", "Accept"}),
		handlers.AllowCredentials(),
	)(mux)

	h = stats.InstrumentHandler(h)
	h = s.requestLogger(h)
	h = s.errorHandler(h)

	s.mux = &http.Server{
		Addr:    cfg.ServerAddr,
		Handler: h,
	}

	return s
}

func (s *App) routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", s.healthz)
	mux.Handle("GET /metrics", stats.Handler())

	// users
	mux.HandleFunc("POST /api/register", s.register)
	mux.HandleFunc("POST /api/login", s.login)
	mux.HandleFunc("GET /api/user/me", s.verifyUserSession(s.getMe))
	mux.HandleFunc("GET /api/user/{username}", s.verifyUserSession(s.getUser))
	mux.HandleFunc("GET /api/user/{username}/icon", s.getIcon)
	mux.HandleFunc("POST /api/icon", s.verifyUserSession(s.postIcon))
	mux.HandleFunc("GET /api/user/{username}/statistics", s.verifyUserSession(s.getUserStatistics))
	mux.HandleFunc("GET /api/user/{username}/livestream", s.verifyUserSession(s.getUserLivestreams))

	// livestreams
	mux.HandleFunc("GET /api/tag", s.getTags)
	mux.HandleFunc("POST /api/livestream/reservation", s.verifyUserSession(s.reserveLivestream))
	mux.HandleFunc("GET /api/livestream/search", s.searchLivestreams)
	mux.HandleFunc("GET /api/livestream", s.verifyUserSession(s.getMyLivestreams))
	mux.HandleFunc("GET /api/livestream/{livestream_id}", s.verifyUserSession(s.getLivestream))
	mux.HandleFunc("POST /api/livestream/{livestream_id}/enter", s.verifyUserSession(s.enterLivestream))
	mux.HandleFunc("DELETE /api/livestream/{livestream_id}/exit", s.verifyUserSession(s.exitLivestream))
	mux.HandleFunc("GET /api/livestream/{livestream_id}/report", s.verifyUserSession(s.getLivecommentReports))
	mux.HandleFunc("GET /api/livestream/{livestream_id}/statistics", s.verifyUserSession(s.getLivestreamStatistics))
	mux.HandleFunc("GET /api/livestream/{livestream_id}/feed", s.verifyUserSession(s.serveFeed))

	// livecomments and reactions
	mux.HandleFunc("GET /api/livestream/{livestream_id}/livecomment", s.verifyUserSession(s.getLivecomments))
	mux.HandleFunc("POST /api/livestream/{livestream_id}/livecomment", s.verifyUserSession(s.postLivecomment))
	mux.HandleFunc("POST /api/livestream/{livestream_id}/livecomment/{livecomment_id}/report", s.verifyUserSession(s.reportLivecomment))
	mux.HandleFunc("GET /api/livestream/{livestream_id}/reaction", s.verifyUserSession(s.getReactions))
	mux.HandleFunc("POST /api/livestream/{livestream_id}/reaction", s.verifyUserSession(s.postReaction))
}

func (s *App) Start() error {
	s.log.Info().Str("addr", s.mux.Addr).Msg("starting server")
	return s.mux.ListenAndServe()
}

func (s *App) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("shutting down HTTP server...")
	if err := s.mux.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	return nil
}
