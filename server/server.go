// Package server exposes the conversation engine over HTTP.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mnemora/mnemora/dialogue"
	"github.com/mnemora/mnemora/internal/profile"
	"github.com/mnemora/mnemora/memory"
	"github.com/mnemora/mnemora/sensor"
	"github.com/mnemora/mnemora/store"
)

// Server wires the HTTP surface to the memory engine.
type Server struct {
	e       *echo.Echo
	Profile *profile.Profile
	Store   *store.Store

	manager    *memory.Manager
	dispatcher *dialogue.Dispatcher
	engine     dialogue.Engine
	sensor     *sensor.Manager
	sessions   *SessionStore
}

// NewServer creates a new instance of Server. sensorManager may be nil.
func NewServer(p *profile.Profile, s *store.Store, manager *memory.Manager, dispatcher *dialogue.Dispatcher, engine dialogue.Engine, sensorManager *sensor.Manager) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	srv := &Server{
		e:          e,
		Profile:    p,
		Store:      s,
		manager:    manager,
		dispatcher: dispatcher,
		engine:     engine,
		sensor:     sensorManager,
		sessions:   NewSessionStore(),
	}
	srv.registerRoutes()
	return srv
}

func (s *Server) registerRoutes() {
	s.e.GET("/healthz", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})
	s.e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	api := s.e.Group("/api")
	api.POST("/signup", s.handleSignup)
	api.POST("/login", s.handleLogin)
	api.POST("/logout", s.handleLogout)
	api.POST("/chat", s.handleChat)
	api.GET("/analytics", s.handleAnalytics)
	api.GET("/history", s.handleHistory)
	api.POST("/memory/delete", s.handleDeleteMemory)
}

// Start begins serving in the background. Shutdown stops it.
func (s *Server) Start(_ context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.Profile.Addr, s.Profile.Port)
	go func() {
		if err := s.e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http server stopped", slog.String("error", err.Error()))
		}
	}()
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) {
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := s.e.Shutdown(shutdownCtx); err != nil {
		slog.Error("failed to shut down http server", slog.String("error", err.Error()))
	}
	slog.Info("http server stopped")
}
