package api

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/npezzotti/isupipe/internal/database"
	"github.com/npezzotti/isupipe/internal/enrich"
	"github.com/npezzotti/isupipe/internal/reservation"
	"github.com/npezzotti/isupipe/internal/types"
)

func (s *App) reserveLivestream(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		s.writeError(w, r, NewUnauthorizedError())
		return
	}

	var req reservation.ReserveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, r, NewBadRequestError().WithMessage("failed to decode the request body as json"))
		return
	}

	var livestream types.Livestream
	err := s.store.WithTx(r.Context(), nil, func(tx *sqlx.Tx) error {
		var err error
		livestream, err = reservation.Reserve(r.Context(), tx, req, userId, s.fallbackIcon)
		return err
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJson(w, http.StatusCreated, livestream)
}

// searchLivestreams lists livestreams carrying the tag query parameter, or
// the newest ones (optionally limited) when no tag is given.
func (s *App) searchLivestreams(w http.ResponseWriter, r *http.Request) {
	tag := r.URL.Query().Get("tag")
	limit, err := queryLimit(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.listLivestreams(w, r, func(ctx context.Context, tx *sqlx.Tx) ([]database.LivestreamRow, error) {
		if tag != "" {
			return database.SearchLivestreamsByTag(ctx, tx, tag)
		}
		return database.ListLivestreams(ctx, tx, limit)
	})
}

func (s *App) getMyLivestreams(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		s.writeError(w, r, NewUnauthorizedError())
		return
	}

	s.listLivestreams(w, r, func(ctx context.Context, tx *sqlx.Tx) ([]database.LivestreamRow, error) {
		return database.ListLivestreamsByUserId(ctx, tx, userId)
	})
}

func (s *App) getUserLivestreams(w http.ResponseWriter, r *http.Request) {
	username := r.PathValue("username")

	s.listLivestreams(w, r, func(ctx context.Context, tx *sqlx.Tx) ([]database.LivestreamRow, error) {
		user, err := database.GetUserByName(ctx, tx, username)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, NewNotFoundError().WithMessage("not found user that has the given username")
			}
			return nil, fmt.Errorf("get user: %w", err)
		}

		return database.ListLivestreamsByUserId(ctx, tx, user.Id)
	})
}

// listLivestreams loads rows with list and enriches them in the same
// transaction.
func (s *App) listLivestreams(w http.ResponseWriter, r *http.Request, list func(ctx context.Context, tx *sqlx.Tx) ([]database.LivestreamRow, error)) {
	var livestreams []types.Livestream
	err := s.store.WithTx(r.Context(), nil, func(tx *sqlx.Tx) error {
		rows, err := list(r.Context(), tx)
		if err != nil {
			var apiErr *ApiError
			if errors.As(err, &apiErr) {
				return err
			}
			return fmt.Errorf("get livestreams: %w", err)
		}

		livestreams, err = enrich.FillLivestreamResponses(r.Context(), tx, rows, s.fallbackIcon)
		return err
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJson(w, http.StatusOK, livestreams)
}

func (s *App) getLivestream(w http.ResponseWriter, r *http.Request) {
	livestreamId, err := pathInt64(r, "livestream_id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	var livestream types.Livestream
	err = s.store.WithTx(r.Context(), nil, func(tx *sqlx.Tx) error {
		row, err := getLivestreamRow(r.Context(), tx, livestreamId)
		if err != nil {
			return err
		}

		livestream, err = enrich.FillLivestreamResponse(r.Context(), tx, row, s.fallbackIcon)
		return err
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJson(w, http.StatusOK, livestream)
}

func (s *App) enterLivestream(w http.ResponseWriter, r *http.Request) {
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

	if _, err := getLivestreamRow(r.Context(), s.store.DB(), livestreamId); err != nil {
		s.writeError(w, r, err)
		return
	}

	err = database.CreateViewerHistory(r.Context(), s.store.DB(), userId, livestreamId, time.Now().Unix())
	if err != nil {
		s.writeError(w, r, fmt.Errorf("insert viewer history: %w", err))
		return
	}

	s.writeJson(w, http.StatusOK, nil)
}

func (s *App) exitLivestream(w http.ResponseWriter, r *http.Request) {
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

	if err := database.DeleteViewerHistory(r.Context(), s.store.DB(), userId, livestreamId); err != nil {
		s.writeError(w, r, fmt.Errorf("delete viewer history: %w", err))
		return
	}

	s.writeJson(w, http.StatusOK, nil)
}

// getLivecommentReports lists the reports filed against a livestream. Only
// its owner may read them.
func (s *App) getLivecommentReports(w http.ResponseWriter, r *http.Request) {
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

	var reports []types.LivecommentReport
	err = s.store.WithTx(r.Context(), nil, func(tx *sqlx.Tx) error {
		livestream, err := getLivestreamRow(r.Context(), tx, livestreamId)
		if err != nil {
			return err
		}

		if livestream.UserId != userId {
			return NewForbiddenError().WithMessage("can't get other streamer's livecomment reports")
		}

		rows, err := database.ListLivecommentReports(r.Context(), tx, livestreamId)
		if err != nil {
			return fmt.Errorf("get livecomment reports: %w", err)
		}

		reports, err = enrich.FillLivecommentReportResponses(r.Context(), tx, rows, s.fallbackIcon)
		return err
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJson(w, http.StatusOK, reports)
}

func getLivestreamRow(ctx context.Context, q database.Queryer, livestreamId int64) (database.LivestreamRow, error) {
	row, err := database.GetLivestreamById(ctx, q, livestreamId)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return row, NewNotFoundError().WithMessage("not found livestream that has the given id")
		}
		return row, fmt.Errorf("get livestream: %w", err)
	}

	return row, nil
}
