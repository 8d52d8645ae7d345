package api

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/npezzotti/isupipe/internal/database"
	"github.com/npezzotti/isupipe/internal/enrich"
	"github.com/npezzotti/isupipe/internal/session"
	"github.com/npezzotti/isupipe/internal/types"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
)

const (
	sessionCookieKey = "SESSIONID"
	reservedUsername = "pipe"
)

type contextKey string

const userIdKey contextKey = "user-id"

func WithUserId(ctx context.Context, userId int64) context.Context {
	return context.WithValue(ctx, userIdKey, userId)
}

func UserId(ctx context.Context) (int64, bool) {
	userId, ok := ctx.Value(userIdKey).(int64)

	return userId, ok
}

type RegisterRequest struct {
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
	Description string `json:"description"`
	Password    string `json:"password"`
	Theme       struct {
		DarkMode bool `json:"dark_mode"`
	} `json:"theme"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// sessionFromRequest decodes the session cookie. A missing or forged cookie
// yields an empty session, which Verify rejects.
func (s *App) sessionFromRequest(r *http.Request) session.Session {
	cookie, err := r.Cookie(sessionCookieKey)
	if err != nil {
		return session.Session{}
	}

	sess, err := session.Decode(cookie.Value, s.signingKey)
	if err != nil {
		zerolog.Ctx(r.Context()).Debug().Err(err).Msg("decode session cookie")
		return session.Session{}
	}

	return sess
}

func (s *App) register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, r, NewBadRequestError().WithMessage("failed to decode the request body as json"))
		return
	}

	if req.Name == "" || req.Password == "" {
		s.writeError(w, r, NewBadRequestError().WithMessage("name and password are required"))
		return
	}

	if req.Name == reservedUsername {
		s.writeError(w, r, NewBadRequestError().WithMessage("the username 'pipe' is reserved"))
		return
	}

	pwdHash, err := hashPassword(req.Password)
	if err != nil {
		s.writeError(w, r, NewInternalServerError(err))
		return
	}

	params := database.CreateUserParams{
		Name:           req.Name,
		DisplayName:    req.DisplayName,
		Description:    req.Description,
		HashedPassword: pwdHash,
		DarkMode:       req.Theme.DarkMode,
	}

	var user types.User
	err = s.store.WithTx(r.Context(), nil, func(tx *sqlx.Tx) error {
		row, err := database.CreateUser(r.Context(), tx, params)
		if err != nil {
			return err
		}

		user, err = enrich.FillUserResponse(r.Context(), tx, row, s.fallbackIcon)
		return err
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJson(w, http.StatusCreated, user)
}

func (s *App) login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, r, NewBadRequestError().WithMessage("failed to decode the request body as json"))
		return
	}

	user, err := database.GetUserByName(r.Context(), s.store.DB(), req.Username)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.writeError(w, r, NewUnauthorizedError().WithMessage("invalid username or password"))
			return
		}
		s.writeError(w, r, err)
		return
	}

	if !verifyPassword(user.HashedPassword, req.Password) {
		s.writeError(w, r, NewUnauthorizedError().WithMessage("invalid username or password"))
		return
	}

	expiresAt := time.Now().Add(s.sessionTTL)
	token, err := session.Encode(session.New(user.Id, user.Name, expiresAt), s.signingKey)
	if err != nil {
		s.writeError(w, r, NewInternalServerError(err))
		return
	}

	http.SetCookie(w, createSessionCookie(token, expiresAt))

	s.writeJson(w, http.StatusOK, nil)
}

func createSessionCookie(token string, expiresAt time.Time) *http.Cookie {
	return &http.Cookie{
		Name:     sessionCookieKey,
		Value:    token,
		Path:     "/",
		Expires:  expiresAt,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
}

func hashPassword(passwd string) (string, error) {
	passwdHash, err := bcrypt.GenerateFromPassword([]byte(passwd), bcrypt.DefaultCost)
	return string(passwdHash), err
}

func verifyPassword(passwdHash, passwd string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(passwdHash), []byte(passwd))
	return err == nil
}
