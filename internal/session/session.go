// Package session holds the values carried by a user's session cookie and the
// guard every authenticated route runs before its handler.
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt"
)

const (
	ExpiresKey  = "EXPIRES"
	UserIdKey   = "USERID"
	UsernameKey = "USERNAME"
)

var (
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrSessionExpired  = errors.New("session has expired")
)

// Session is the decoded set of session values. Expiry is stored in unix
// milliseconds under ExpiresKey.
type Session map[string]any

func New(userId int64, username string, expiresAt time.Time) Session {
	return Session{
		ExpiresKey:  expiresAt.UnixMilli(),
		UserIdKey:   userId,
		UsernameKey: username,
	}
}

// Verify checks that the session carries a numeric expiry and user id, and
// that it has not expired at now. It never modifies the session.
func Verify(sess Session, now time.Time) error {
	expires, ok := number(sess[ExpiresKey])
	if !ok {
		return fmt.Errorf("failed to get %s value from session: %w", ExpiresKey, ErrUnauthenticated)
	}

	if _, ok := number(sess[UserIdKey]); !ok {
		return fmt.Errorf("failed to get %s value from session: %w", UserIdKey, ErrUnauthenticated)
	}

	if now.UnixMilli() > expires {
		return ErrSessionExpired
	}

	return nil
}

func (s Session) UserId() (int64, bool) {
	return number(s[UserIdKey])
}

func (s Session) Username() (string, bool) {
	name, ok := s[UsernameKey].(string)
	return name, ok
}

// number accepts the numeric types a session value can hold after a JSON
// round trip. Strings are not numbers.
func number(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case float64:
		return int64(n), true
	case json.Number:
		i, err := n.Int64()
		return i, err == nil
	default:
		return 0, false
	}
}

// Encode signs the session as an HS256 token suitable for a cookie value.
func Encode(sess Session, key []byte) (string, error) {
	claims := jwt.MapClaims{}
	for k, v := range sess {
		claims[k] = v
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(key)
}

// Decode verifies the token signature and returns its values. Expiry is not
// checked here; that is Verify's job.
func Decode(tokenString string, key []byte) (Session, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return key, nil
	})
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}

	sess := make(Session, len(claims))
	for k, v := range claims {
		sess[k] = v
	}

	return sess, nil
}
