package auth

import (
	"errors"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"

	apperrors "github.com/showpls/showpls-server-go/internal/errors"
	"github.com/showpls/showpls-server-go/internal/model"
)

const issuer = "showpls"

// SessionClaims are the claims embedded in a session JWT.
type SessionClaims struct {
	Username string `json:"username,omitempty"`
	jwt.RegisteredClaims
}

// UserID returns the numeric Telegram user id from the subject claim.
func (c *SessionClaims) UserID() int64 {
	id, _ := strconv.ParseInt(c.Subject, 10, 64)
	return id
}

// TokenIssuer mints and verifies HS256 session tokens. Tokens expire after
// a fixed TTL and are never renewed implicitly.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration

	// now is overridable in tests
	now func() time.Time
}

func NewTokenIssuer(secret string, ttl time.Duration) *TokenIssuer {
	return &TokenIssuer{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

// Issue creates a signed session token for a verified Telegram identity.
func (t *TokenIssuer) Issue(user *model.TelegramUser) (string, error) {
	now := t.now()
	claims := SessionClaims{
		Username: user.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   strconv.FormatInt(user.ID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(t.secret)
}

// Verify parses a session token, distinguishing an expired token from a
// forged or malformed one.
func (t *TokenIssuer) Verify(tokenString string) (*SessionClaims, error) {
	claims := &SessionClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return t.secret, nil
	}, jwt.WithIssuer(issuer), jwt.WithTimeFunc(t.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, apperrors.TokenExpired()
		}
		return nil, apperrors.InvalidToken("Session token is invalid").WithCause(err)
	}

	if !token.Valid || claims.UserID() == 0 {
		return nil, apperrors.InvalidToken("Session token is invalid")
	}

	return claims, nil
}
