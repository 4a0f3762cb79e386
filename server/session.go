package server

import (
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

const sessionCookie = "mnemora_session"

// Session is one logged-in conversation. Sessions live in memory only; a
// restart logs everyone out.
type Session struct {
	Token     string
	Email     string
	Username  string
	SessionID string
	FactFile  string
}

// SessionStore holds active sessions keyed by cookie token.
type SessionStore struct {
	mu      sync.RWMutex
	byToken map[string]*Session
}

// NewSessionStore creates a new instance of SessionStore.
func NewSessionStore() *SessionStore {
	return &SessionStore{byToken: map[string]*Session{}}
}

// Create registers a session and returns it with a fresh token.
func (s *SessionStore) Create(email, username, sessionID, factFile string) *Session {
	session := &Session{
		Token:     uuid.NewString(),
		Email:     email,
		Username:  username,
		SessionID: sessionID,
		FactFile:  factFile,
	}
	s.mu.Lock()
	s.byToken[session.Token] = session
	s.mu.Unlock()
	return session
}

// Get returns the session for the token, nil when unknown.
func (s *SessionStore) Get(token string) *Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.byToken[token]
}

// Delete removes the session for the token.
func (s *SessionStore) Delete(token string) {
	s.mu.Lock()
	delete(s.byToken, token)
	s.mu.Unlock()
}

// currentSession resolves the request's session cookie, nil when absent or
// expired.
func (s *Server) currentSession(c echo.Context) *Session {
	cookie, err := c.Cookie(sessionCookie)
	if err != nil || cookie.Value == "" {
		return nil
	}
	return s.sessions.Get(cookie.Value)
}

func setSessionCookie(c echo.Context, token string) {
	c.SetCookie(&http.Cookie{
		Name:     sessionCookie,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func clearSessionCookie(c echo.Context) {
	c.SetCookie(&http.Cookie{
		Name:     sessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}
