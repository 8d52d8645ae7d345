package api

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/npezzotti/isupipe/internal/database"
	"github.com/npezzotti/isupipe/internal/enrich"
	"github.com/npezzotti/isupipe/internal/types"
)

type PostLivecommentRequest struct {
	Comment string `json:"comment"`
	Tip     int64  `json:"tip"`
}

type PostReactionRequest struct {
	EmojiName string `json:"emoji_name"`
}

func (s *App) getLivecomments(w http.ResponseWriter, r *http.Request) {
	livestreamId, err := pathInt64(r, "livestream_id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	limit, err := queryLimit(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	var livecomments []types.Livecomment
	err = s.store.WithTx(r.Context(), nil, func(tx *sqlx.Tx) error {
		rows, err := database.ListLivecomments(r.Context(), tx, livestreamId, limit)
		if err != nil {
			return fmt.Errorf("get livecomments: %w", err)
		}

		livecomments, err = enrich.FillLivecommentResponses(r.Context(), tx, rows, s.fallbackIcon)
		return err
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJson(w, http.StatusOK, livecomments)
}

// postLivecomment stores the comment and, once committed, pushes the enriched
// comment to the livestream's feed.
func (s *App) postLivecomment(w http.ResponseWriter, r *http.Request) {
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

	var req PostLivecommentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, r, NewBadRequestError().WithMessage("failed to decode the request body as json"))
		return
	}

	if req.Tip < 0 {
		s.writeError(w, r, NewBadRequestError().WithMessage("tip must not be negative"))
		return
	}

	var livecomment types.Livecomment
	err = s.store.WithTx(r.Context(), nil, func(tx *sqlx.Tx) error {
		if _, err := getLivestreamRow(r.Context(), tx, livestreamId); err != nil {
			return err
		}

		row := database.LivecommentRow{
			UserId:       userId,
			LivestreamId: livestreamId,
			Comment:      req.Comment,
			Tip:          req.Tip,
			CreatedAt:    time.Now().Unix(),
		}

		id, err := database.CreateLivecomment(r.Context(), tx, database.CreateLivecommentParams{
			UserId:       row.UserId,
			LivestreamId: row.LivestreamId,
			Comment:      row.Comment,
			Tip:          row.Tip,
			CreatedAt:    row.CreatedAt,
		})
		if err != nil {
			return fmt.Errorf("insert livecomment: %w", err)
		}
		row.Id = id

		livecomment, err = enrich.FillLivecommentResponse(r.Context(), tx, row, s.fallbackIcon)
		return err
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	if s.broadcaster != nil {
		s.broadcaster.PublishLivecomment(livecomment)
	}

	s.writeJson(w, http.StatusCreated, livecomment)
}

func (s *App) reportLivecomment(w http.ResponseWriter, r *http.Request) {
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

	livecommentId, err := pathInt64(r, "livecomment_id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	var report types.LivecommentReport
	err = s.store.WithTx(r.Context(), nil, func(tx *sqlx.Tx) error {
		if _, err := getLivestreamRow(r.Context(), tx, livestreamId); err != nil {
			return err
		}

		livecomment, err := database.GetLivecommentById(r.Context(), tx, livecommentId)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return NewNotFoundError().WithMessage("livecomment not found")
			}
			return fmt.Errorf("get livecomment: %w", err)
		}
		if livecomment.LivestreamId != livestreamId {
			return NewNotFoundError().WithMessage("livecomment not found")
		}

		row := database.LivecommentReportRow{
			UserId:        userId,
			LivestreamId:  livestreamId,
			LivecommentId: livecommentId,
			CreatedAt:     time.Now().Unix(),
		}

		id, err := database.CreateLivecommentReport(r.Context(), tx, database.CreateReportParams{
			UserId:        row.UserId,
			LivestreamId:  row.LivestreamId,
			LivecommentId: row.LivecommentId,
			CreatedAt:     row.CreatedAt,
		})
		if err != nil {
			return fmt.Errorf("insert livecomment report: %w", err)
		}
		row.Id = id

		report, err = enrich.FillLivecommentReportResponse(r.Context(), tx, row, s.fallbackIcon)
		return err
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJson(w, http.StatusCreated, report)
}

func (s *App) getReactions(w http.ResponseWriter, r *http.Request) {
	livestreamId, err := pathInt64(r, "livestream_id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	limit, err := queryLimit(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	var reactions []types.Reaction
	err = s.store.WithTx(r.Context(), nil, func(tx *sqlx.Tx) error {
		rows, err := database.ListReactions(r.Context(), tx, livestreamId, limit)
		if err != nil {
			return fmt.Errorf("get reactions: %w", err)
		}

		reactions, err = enrich.FillReactionResponses(r.Context(), tx, rows, s.fallbackIcon)
		return err
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJson(w, http.StatusOK, reactions)
}

func (s *App) postReaction(w http.ResponseWriter, r *http.Request) {
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

	var req PostReactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, r, NewBadRequestError().WithMessage("failed to decode the request body as json"))
		return
	}

	if req.EmojiName == "" {
		s.writeError(w, r, NewBadRequestError().WithMessage("emoji_name is required"))
		return
	}

	var reaction types.Reaction
	err = s.store.WithTx(r.Context(), nil, func(tx *sqlx.Tx) error {
		if _, err := getLivestreamRow(r.Context(), tx, livestreamId); err != nil {
			return err
		}

		row := database.ReactionRow{
			UserId:       userId,
			LivestreamId: livestreamId,
			EmojiName:    req.EmojiName,
			CreatedAt:    time.Now().Unix(),
		}

		id, err := database.CreateReaction(r.Context(), tx, database.CreateReactionParams{
			UserId:       row.UserId,
			LivestreamId: row.LivestreamId,
			EmojiName:    row.EmojiName,
			CreatedAt:    row.CreatedAt,
		})
		if err != nil {
			return fmt.Errorf("insert reaction: %w", err)
		}
		row.Id = id

		reaction, err = enrich.FillReactionResponse(r.Context(), tx, row, s.fallbackIcon)
		return err
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	if s.broadcaster != nil {
		s.broadcaster.PublishReaction(reaction)
	}

	s.writeJson(w, http.StatusCreated, reaction)
}
