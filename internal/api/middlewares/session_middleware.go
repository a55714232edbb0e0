package middleware

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/markdave123-py/Prism/internal/core/logger"
)

const SessionCookieName = "prism_session"

type ctxKey struct{}

// SessionIDFromContext returns the session attached by SessionMiddleware.
func SessionIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(ctxKey{}).(string)
	return id, ok && id != ""
}

// WithSessionID attaches a session id to ctx.
func WithSessionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

type sessionClaims struct {
	SessionID string `json:"sid"`
	jwt.RegisteredClaims
}

// Sessions issues and verifies the signed session cookie.
type Sessions struct {
	secret []byte
	ttl    time.Duration
	secure bool
	log    *logger.Logger
}

func NewSessions(secret string, ttl time.Duration, secure bool, log *logger.Logger) *Sessions {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Sessions{secret: []byte(secret), ttl: ttl, secure: secure, log: log.With("service", "SessionMiddleware")}
}

// Middleware attaches the caller's session id to the request context. A
// missing, expired or tampered cookie starts a new session.
func (s *Sessions) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := s.fromRequest(r)
		if err != nil {
			id = uuid.NewString()
			if !errors.Is(err, http.ErrNoCookie) {
				s.log.Debug("session cookie rejected", "error", err)
			}
		}

		token, err := s.Sign(id)
		if err != nil {
			s.log.Error("sign session cookie", "error", err)
			http.Error(w, "session unavailable", http.StatusInternalServerError)
			return
		}
		http.SetCookie(w, s.cookie(token))

		next.ServeHTTP(w, r.WithContext(WithSessionID(r.Context(), id)))
	})
}

func (s *Sessions) fromRequest(r *http.Request) (string, error) {
	c, err := r.Cookie(SessionCookieName)
	if err != nil {
		return "", err
	}
	return s.Parse(c.Value)
}

// Sign issues a token for id, refreshing its expiry.
func (s *Sessions) Sign(id string) (string, error) {
	now := time.Now()
	claims := sessionClaims{
		SessionID: id,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// Parse verifies token and returns its session id.
func (s *Sessions) Parse(token string) (string, error) {
	var claims sessionClaims
	tok, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", err
	}
	if !tok.Valid {
		return "", errors.New("invalid session token")
	}
	if _, err := uuid.Parse(claims.SessionID); err != nil {
		return "", errors.New("invalid session id claim")
	}
	return claims.SessionID, nil
}

func (s *Sessions) cookie(token string) *http.Cookie {
	return &http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(s.ttl.Seconds()),
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	}
}
