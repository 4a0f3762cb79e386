package server

import (
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"golang.org/x/crypto/bcrypt"

	"github.com/mnemora/mnemora/dialogue"
	"github.com/mnemora/mnemora/memory"
	"github.com/mnemora/mnemora/store"
)

type signupRequest struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type chatRequest struct {
	Message string `json:"message"`
}

func (s *Server) handleSignup(c echo.Context) error {
	var req signupRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed request")
	}
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	req.Name = strings.TrimSpace(req.Name)
	if req.Email == "" || req.Name == "" || req.Password == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "email, name and password are required")
	}

	if _, err := s.Store.GetUser(c.Request().Context(), req.Email); err == nil {
		return echo.NewHTTPError(http.StatusConflict, "user already exists")
	} else if !errors.Is(err, store.ErrNotFound) {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to look up user")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to hash password")
	}
	user := &store.User{Email: req.Email, Name: req.Name, PasswordHash: string(hash)}
	if err := s.Store.UpsertUser(c.Request().Context(), user); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to create user")
	}

	if err := s.initFactFile(req.Email); err != nil {
		slog.Warn("failed to initialize fact file",
			slog.String("email", req.Email), slog.String("error", err.Error()))
	}
	return c.JSON(http.StatusCreated, echo.Map{"email": req.Email})
}

// initFactFile seeds the user's clause file with a comment header.
func (s *Server) initFactFile(email string) error {
	path := s.Profile.FactFile(email)
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	return os.WriteFile(path, []byte("% Facts for "+email+"\n"), 0o640)
}

func (s *Server) handleLogin(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed request")
	}
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))

	user, err := s.Store.GetUser(c.Request().Context(), req.Email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid credentials")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to look up user")
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid credentials")
	}

	sessionID, err := s.manager.StartEpisode(c.Request().Context(), user.Email)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to open episode")
	}

	session := s.sessions.Create(user.Email, user.Name, sessionID, s.Profile.FactFile(user.Email))
	setSessionCookie(c, session.Token)
	if s.sensor != nil {
		s.sensor.SetCurrentUser(user.Email)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"email":    user.Email,
		"username": user.Name,
	})
}

func (s *Server) handleLogout(c echo.Context) error {
	session := s.currentSession(c)
	if session == nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "not logged in")
	}

	if err := s.manager.EndEpisode(c.Request().Context(), session.SessionID); err != nil {
		slog.Warn("failed to end episode",
			slog.String("session_id", session.SessionID), slog.String("error", err.Error()))
	}
	if s.sensor != nil {
		s.sensor.SetCurrentUser("")
	}
	s.sessions.Delete(session.Token)
	clearSessionCookie(c)
	return c.JSON(http.StatusOK, echo.Map{"status": "logged out"})
}

// handleChat runs one turn: capture slots, dispatch, render, then log the
// interaction in the background.
func (s *Server) handleChat(c echo.Context) error {
	session := s.currentSession(c)
	if session == nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "please log in to chat")
	}

	var req chatRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed request")
	}
	message := strings.TrimSpace(req.Message)
	if message == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "no message provided")
	}

	snap := memory.SessionSnapshot{
		Email:     session.Email,
		Username:  session.Username,
		SessionID: session.SessionID,
		FactFile:  session.FactFile,
		IP:        c.RealIP(),
	}

	turn := dialogue.NewContext()
	s.engine.Respond(message, turn)
	s.dispatcher.Dispatch(c.Request().Context(), turn, snap)
	reply := s.engine.Respond(message, turn)
	turn.ResetInputs()

	if !s.manager.EnqueueInteraction(snap, message, reply) {
		slog.Warn("interaction dropped, write queue full",
			slog.String("email", session.Email))
	}
	return c.JSON(http.StatusOK, echo.Map{"response": reply})
}

func (s *Server) handleAnalytics(c echo.Context) error {
	session := s.currentSession(c)
	if session == nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "please log in to view analytics")
	}

	counts, err := s.Store.UserCounts(c.Request().Context(), session.Email)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to fetch user statistics")
	}
	histogram, err := s.Store.GraphHistogram(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to fetch graph statistics")
	}
	return c.JSON(http.StatusOK, echo.Map{
		"user_stats":  counts,
		"graph_stats": histogram,
	})
}

func (s *Server) handleHistory(c echo.Context) error {
	session := s.currentSession(c)
	if session == nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "please log in to view chat history")
	}

	entries, err := s.Store.ListHistory(c.Request().Context(), session.Email)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to retrieve chat history")
	}
	return c.JSON(http.StatusOK, echo.Map{"history": entries})
}

func (s *Server) handleDeleteMemory(c echo.Context) error {
	session := s.currentSession(c)
	if session == nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "please log in")
	}

	if err := s.Store.DeleteUserMemory(c.Request().Context(), session.Email); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "no memory recorded")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to delete memory")
	}
	return c.JSON(http.StatusOK, echo.Map{"status": "deleted"})
}
