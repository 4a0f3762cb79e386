package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mnemora/mnemora/dialogue"
	"github.com/mnemora/mnemora/internal/profile"
	"github.com/mnemora/mnemora/memory"
	"github.com/mnemora/mnemora/nlp"
	"github.com/mnemora/mnemora/store"
	"github.com/mnemora/mnemora/store/db/sqlite"
)

func newTestServer(t *testing.T) (*Server, *memory.Worker) {
	t.Helper()
	p := &profile.Profile{
		Mode:   "demo",
		Driver: "sqlite",
		Data:   t.TempDir(),
	}
	require.NoError(t, p.Validate())

	db, err := sqlite.NewDB(p)
	require.NoError(t, err)
	require.NoError(t, db.Migrate(context.Background()))
	t.Cleanup(func() { _ = db.Close() })
	s := store.New(db)

	pipeline := memory.NewPipeline(s, nlp.NewAnalyzer(), nlp.NewSentimentAnalyzer(), nil, nil)
	worker := memory.NewWorker(1, 16)
	manager := memory.NewManager(s, pipeline, worker, "Freya")
	dispatcher := dialogue.NewDispatcher(s, nlp.NewAnalyzer(), nlp.NewSentimentAnalyzer(), nil, nil)
	engine := dialogue.NewPatternEngine(dialogue.DefaultRules(), "")

	return NewServer(p, s, manager, dispatcher, engine, nil), worker
}

func doJSON(t *testing.T, srv *Server, method, path, body, cookie string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if cookie != "" {
		req.Header.Set("Cookie", sessionCookie+"="+cookie)
	}
	rec := httptest.NewRecorder()
	srv.e.ServeHTTP(rec, req)
	return rec
}

func loginCookie(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == sessionCookie {
			return c.Value
		}
	}
	t.Fatal("no session cookie set")
	return ""
}

func TestSignupAndLogin(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doJSON(t, srv, http.MethodPost, "/api/signup",
		`{"email":"ada@example.com","name":"Ada","password":"secret"}`, "")
	assert.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, srv, http.MethodPost, "/api/signup",
		`{"email":"ada@example.com","name":"Ada","password":"secret"}`, "")
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = doJSON(t, srv, http.MethodPost, "/api/login",
		`{"email":"ada@example.com","password":"wrong"}`, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doJSON(t, srv, http.MethodPost, "/api/login",
		`{"email":"ada@example.com","password":"secret"}`, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, loginCookie(t, rec))
}

func TestChatRequiresLogin(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := doJSON(t, srv, http.MethodPost, "/api/chat", `{"message":"Hello"}`, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestChatTurn(t *testing.T) {
	srv, worker := newTestServer(t)

	doJSON(t, srv, http.MethodPost, "/api/signup",
		`{"email":"ada@example.com","name":"Ada","password":"secret"}`, "")
	rec := doJSON(t, srv, http.MethodPost, "/api/login",
		`{"email":"ada@example.com","password":"secret"}`, "")
	cookie := loginCookie(t, rec)

	rec = doJSON(t, srv, http.MethodPost, "/api/chat",
		`{"message":"I was born on 15 March 2000"}`, cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	var reply map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &reply))
	assert.Equal(t, "I will remember your birthday.", reply["response"])

	rec = doJSON(t, srv, http.MethodPost, "/api/chat",
		`{"message":"When was I born?"}`, cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &reply))
	assert.Equal(t, "You were born on 15 March 2000.", reply["response"])

	// Drain the background writer, then the logged turns are visible.
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	require.NoError(t, worker.Shutdown(ctx))

	rec = doJSON(t, srv, http.MethodGet, "/api/history", "", cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	var hist struct {
		History []store.HistoryEntry `json:"history"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &hist))
	require.Len(t, hist.History, 2)
	assert.Equal(t, "I was born on 15 March 2000", hist.History[0].UserMessage)

	rec = doJSON(t, srv, http.MethodGet, "/api/analytics", "", cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "user_stats")
}

func TestLogoutEndsSession(t *testing.T) {
	srv, _ := newTestServer(t)

	doJSON(t, srv, http.MethodPost, "/api/signup",
		`{"email":"ada@example.com","name":"Ada","password":"secret"}`, "")
	rec := doJSON(t, srv, http.MethodPost, "/api/login",
		`{"email":"ada@example.com","password":"secret"}`, "")
	cookie := loginCookie(t, rec)

	rec = doJSON(t, srv, http.MethodPost, "/api/logout", "", cookie)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, srv, http.MethodPost, "/api/chat", `{"message":"Hello"}`, cookie)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
