package api

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/handlers"
	"github.com/npezzotti/isupipe/internal/session"
	"github.com/rs/zerolog"
	"github.com/teris-io/shortid"
)

const requestIdHeader = "X-Request-Id"

func (s *App) errorHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				var panicError error
				switch e := err.(type) {
				case error:
					panicError = e
				default:
					panicError = fmt.Errorf("%v", e)
				}
				s.log.Error().Err(panicError).Str("path", r.URL.Path).Msg("panic")
				errResp := NewInternalServerError(panicError)
				w.Header().Set("Connection", "close")
				s.writeJson(w, errResp.StatusCode, errResp)
				return
			}
		}()

		next.ServeHTTP(w, r)
	})
}

// requestLogger tags each request with a short id, puts a logger carrying it
// in the request context and writes one access log line per request.
func (s *App) requestLogger(next http.Handler) http.Handler {
	logged := handlers.CustomLoggingHandler(io.Discard, next, logRequest)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestId, err := shortid.Generate()
		if err != nil {
			s.log.Warn().Err(err).Msg("generate request id")
		}
		w.Header().Set(requestIdHeader, requestId)

		logger := s.log.With().Str("request_id", requestId).Logger()
		logged.ServeHTTP(w, r.WithContext(logger.WithContext(r.Context())))
	})
}

func logRequest(_ io.Writer, p handlers.LogFormatterParams) {
	logger := zerolog.Ctx(p.Request.Context())

	var ev *zerolog.Event
	switch {
	case p.StatusCode >= http.StatusInternalServerError:
		ev = logger.Error()
	case p.StatusCode >= http.StatusBadRequest:
		ev = logger.Warn()
	default:
		ev = logger.Info()
	}

	ev.Str("method", p.Request.Method).
		Str("path", p.URL.Path).
		Str("route", p.Request.Pattern).
		Int("status", p.StatusCode).
		Int("size", p.Size).
		Dur("duration", time.Since(p.TimeStamp)).
		Msg("request")
}

// verifyUserSession rejects the request unless its session cookie holds a
// live session, then passes the user id on through the request context.
func (s *App) verifyUserSession(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess := s.sessionFromRequest(r)

		if err := session.Verify(sess, time.Now()); err != nil {
			zerolog.Ctx(r.Context()).Debug().Err(err).Msg("session rejected")
			s.writeError(w, r, toApiError(err))
			return
		}

		userId, _ := sess.UserId()
		ctx := WithUserId(r.Context(), userId)
		w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate, private")

		next(w, r.WithContext(ctx))
	}
}
