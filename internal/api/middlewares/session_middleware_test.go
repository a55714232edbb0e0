package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/markdave123-py/Prism/internal/core/logger"
)

func serve(t *testing.T, s *Sessions, cookie *http.Cookie) (string, *http.Cookie) {
	t.Helper()
	var seen string
	h := s.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = SessionIDFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	for _, c := range rec.Result().Cookies() {
		if c.Name == SessionCookieName {
			return seen, c
		}
	}
	t.Fatal("no session cookie set")
	return "", nil
}

func TestSessionMiddlewareIssuesAndReusesSession(t *testing.T) {
	s := NewSessions("secret", time.Hour, false, logger.Nop())

	first, cookie := serve(t, s, nil)
	if _, err := uuid.Parse(first); err != nil {
		t.Fatalf("new session id %q is not a uuid", first)
	}
	if !cookie.HttpOnly {
		t.Fatal("cookie must be HttpOnly")
	}

	second, _ := serve(t, s, &http.Cookie{Name: SessionCookieName, Value: cookie.Value})
	if second != first {
		t.Fatalf("session not reused: %q vs %q", second, first)
	}
}

func TestSessionMiddlewareRejectsBadCookies(t *testing.T) {
	s := NewSessions("secret", time.Hour, false, logger.Nop())
	other := NewSessions("other-secret", time.Hour, false, logger.Nop())

	forged, err := other.Sign(uuid.NewString())
	if err != nil {
		t.Fatal(err)
	}
	notUUID, err := s.Sign("../../etc")
	if err != nil {
		t.Fatal(err)
	}
	expired := &Sessions{secret: []byte("secret"), ttl: -time.Minute, log: logger.Nop()}
	stale, err := expired.Sign(uuid.NewString())
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name  string
		value string
	}{
		{"garbage", "not-a-jwt"},
		{"wrong key", forged},
		{"non uuid claim", notUUID},
		{"expired", stale},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := s.Parse(tt.value); err == nil {
				t.Fatal("Parse accepted a bad token")
			}
			id, _ := serve(t, s, &http.Cookie{Name: SessionCookieName, Value: tt.value})
			if _, err := uuid.Parse(id); err != nil {
				t.Fatalf("fallback session id %q is not a uuid", id)
			}
		})
	}
}

func TestSessionIDFromContext(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if _, ok := SessionIDFromContext(req.Context()); ok {
		t.Fatal("empty context reported a session")
	}
	ctx := WithSessionID(req.Context(), "abc")
	if id, ok := SessionIDFromContext(ctx); !ok || id != "abc" {
		t.Fatalf("got %q %v", id, ok)
	}
}
