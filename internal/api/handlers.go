package api

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/jmoiron/sqlx"
	"github.com/npezzotti/isupipe/internal/database"
	"github.com/npezzotti/isupipe/internal/enrich"
	"github.com/npezzotti/isupipe/internal/types"
	"github.com/rs/zerolog"
)

type PostIconRequest struct {
	Image []byte `json:"image"`
}

type PostIconResponse struct {
	Id int64 `json:"id"`
}

type TagsResponse struct {
	Tags []types.Tag `json:"tags"`
}

func (s *App) writeJson(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if v == nil {
		return
	}

	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error().Err(err).Msg("json encode")
	}
}

// writeError writes err as an ApiError. Internal errors are logged with their
// cause, which never reaches the client.
func (s *App) writeError(w http.ResponseWriter, r *http.Request, err error) {
	errResp := toApiError(err)
	if errResp.StatusCode >= http.StatusInternalServerError {
		zerolog.Ctx(r.Context()).Error().Err(errResp.Err).Str("path", r.URL.Path).Msg(errResp.Message)
	}

	s.writeJson(w, errResp.StatusCode, errResp)
}

func pathInt64(r *http.Request, name string) (int64, error) {
	v, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil {
		return 0, NewBadRequestError().WithMessage(fmt.Sprintf("%s in path must be integer", name))
	}

	return v, nil
}

// queryLimit parses the optional limit query parameter. Zero means no limit.
func queryLimit(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0, nil
	}

	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		return 0, NewBadRequestError().WithMessage("limit query parameter must be integer")
	}

	return limit, nil
}

func (s *App) healthz(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		s.writeError(w, r, NewServiceUnavailableError(err))
		return
	}

	s.writeJson(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *App) getMe(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		s.writeError(w, r, NewUnauthorizedError())
		return
	}

	var user types.User
	err := s.store.WithTx(r.Context(), nil, func(tx *sqlx.Tx) error {
		row, err := database.GetUserById(r.Context(), tx, userId)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return NewNotFoundError().WithMessage("not found user that has the userid in session")
			}
			return fmt.Errorf("get user: %w", err)
		}

		user, err = enrich.FillUserResponse(r.Context(), tx, row, s.fallbackIcon)
		return err
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJson(w, http.StatusOK, user)
}

func (s *App) getUser(w http.ResponseWriter, r *http.Request) {
	username := r.PathValue("username")

	var user types.User
	err := s.store.WithTx(r.Context(), nil, func(tx *sqlx.Tx) error {
		row, err := database.GetUserByName(r.Context(), tx, username)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return NewNotFoundError().WithMessage("not found user that has the given username")
			}
			return fmt.Errorf("get user: %w", err)
		}

		user, err = enrich.FillUserResponse(r.Context(), tx, row, s.fallbackIcon)
		return err
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJson(w, http.StatusOK, user)
}

// getIcon serves the user's icon, or the fallback image when none is set.
// Clients holding the current hash in If-None-Match get a 304.
func (s *App) getIcon(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	db := s.store.DB()

	user, err := database.GetUserByName(ctx, db, r.PathValue("username"))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.writeError(w, r, NewNotFoundError().WithMessage("not found user that has the given username"))
			return
		}
		s.writeError(w, r, fmt.Errorf("get user: %w", err))
		return
	}

	image, err := database.GetIconImage(ctx, db, user.Id)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			s.writeError(w, r, fmt.Errorf("get icon: %w", err))
			return
		}

		image, err = s.fallbackIcon(ctx)
		if err != nil {
			s.writeError(w, r, fmt.Errorf("load fallback icon: %w", err))
			return
		}
	}

	etag := `"` + enrich.IconHash(image) + `"`
	w.Header().Set("ETag", etag)
	if r.Header.Get("If-None-Match") == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	w.Header().Set("Content-Type", "image/jpeg")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(image); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Msg("write icon")
	}
}

func (s *App) postIcon(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		s.writeError(w, r, NewUnauthorizedError())
		return
	}

	var req PostIconRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, r, NewBadRequestError().WithMessage("failed to decode the request body as json"))
		return
	}

	if len(req.Image) == 0 {
		s.writeError(w, r, NewBadRequestError().WithMessage("image is required"))
		return
	}

	var iconId int64
	err := s.store.WithTx(r.Context(), nil, func(tx *sqlx.Tx) error {
		var err error
		iconId, err = database.ReplaceIcon(r.Context(), tx, userId, req.Image)
		return err
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJson(w, http.StatusCreated, PostIconResponse{Id: iconId})
}

func (s *App) getTags(w http.ResponseWriter, r *http.Request) {
	rows, err := database.ListTags(r.Context(), s.store.DB())
	if err != nil {
		s.writeError(w, r, fmt.Errorf("get tags: %w", err))
		return
	}

	tags := make([]types.Tag, len(rows))
	for i, row := range rows {
		tags[i] = types.Tag{Id: row.Id, Name: row.Name}
	}

	s.writeJson(w, http.StatusOK, TagsResponse{Tags: tags})
}
