package api

import (
	"net/http"
	"slices"

	"github.com/gorilla/websocket"
	"github.com/npezzotti/isupipe/internal/feed"
)

// serveFeed upgrades the connection and subscribes it to the livestream's
// comments and reactions.
func (s *App) serveFeed(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		s.writeError(w, r, NewUnauthorizedError())
		return
	}

	livestreamId, err := pathInt64(r, "livestream_id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	if s.hub == nil {
		s.writeError(w, r, NewServiceUnavailableError(nil))
		return
	}

	if _, err := getLivestreamRow(r.Context(), s.store.DB(), livestreamId); err != nil {
		s.writeError(w, r, err)
		return
	}

	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}

			return slices.Contains(s.allowedOrigins, origin)
		},
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn().Err(err).Msg("upgrade connection")
		return
	}

	client := feed.NewClient(livestreamId, userId, conn, s.hub, s.log)
	if !s.hub.Register(client) {
		conn.Close()
		return
	}

	go client.Write()
	go client.Read()
}
