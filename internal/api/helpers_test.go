package api

import (
	"bytes"
	"context"
	"encoding/json"
	"gift_registry/internal/config"
	"gift_registry/internal/db"
	"gift_registry/internal/notify"
	"gift_registry/internal/ratelimit"
	"gift_registry/internal/storage"
	"gift_registry/internal/upload"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// captureSender records outgoing emails
type captureSender struct {
	mu   sync.Mutex
	msgs []notify.Message
}

func (s *captureSender) Send(_ context.Context, m notify.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.msgs = append(s.msgs, m)
	return nil
}

func (s *captureSender) sent() []notify.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]notify.Message(nil), s.msgs...)
}

type testEnv struct {
	t        *testing.T
	db       *gorm.DB
	cfg      *config.Config
	router   *gin.Engine
	mail     *captureSender
	notifier *notify.Notifier
	store    *storage.Storage
}

type envOption func(*config.Config, *Deps)

func newEnv(t *testing.T, opts ...envOption) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)
	database, err := db.OpenMemory()
	require.NoError(t, err)

	cfg := &config.Config{
		JWTSecret:       "test-secret",
		JWTExpires:      time.Hour,
		AdminEmails:     []string{"admin@example.com"},
		RateLimitMax:    1000,
		RateLimitWindow: time.Minute,
		CORSOrigins:     []string{"*"},
		PublicBaseURL:   "http://app.test",
	}
	mail := &captureSender{}
	notifier := notify.New(mail, cfg.PublicBaseURL)
	store := storage.New(storage.NewLocal(t.TempDir()))
	deps := Deps{
		DB:       database,
		Config:   cfg,
		Storage:  store,
		Uploads:  upload.NewAssembler(database, store, t.TempDir()),
		Notifier: notifier,
	}
	for _, o := range opts {
		o(cfg, &deps)
	}
	if deps.Limiter == nil {
		deps.Limiter = ratelimit.NewMemory(ratelimit.Window{Max: cfg.RateLimitMax, Period: cfg.RateLimitWindow})
	}
	return &testEnv{t: t, db: database, cfg: cfg, router: SetupRouter(deps), mail: mail, notifier: notifier, store: store}
}

// do sends a JSON request and returns the recorder
func (e *testEnv) do(method, path string, body any, token string) *httptest.ResponseRecorder {
	e.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(e.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

// decode unmarshals a response body into a generic map
func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func decodeList(t *testing.T, w *httptest.ResponseRecorder) []map[string]any {
	t.Helper()
	var out []map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

// register creates a user and returns its token and id
func (e *testEnv) register(email string) (string, string) {
	e.t.Helper()
	w := e.do(http.MethodPost, "/api/auth/register", gin.H{"name": "Test", "email": email, "password": "password123"}, "")
	require.Equal(e.t, http.StatusCreated, w.Code, w.Body.String())
	body := decode(e.t, w)
	return body["access_token"].(string), body["user"].(map[string]any)["id"].(string)
}

// createRegistry creates a registry with slug and returns its id
func (e *testEnv) createRegistry(token, slug string) string {
	e.t.Helper()
	w := e.do(http.MethodPost, "/api/registries", gin.H{"couple_names": "Ann & Bob", "slug": slug}, token)
	require.Equal(e.t, http.StatusCreated, w.Code, w.Body.String())
	return decode(e.t, w)["id"].(string)
}

// createFund adds a fund to a registry and returns its id
func (e *testEnv) createFund(token, registryID string, body gin.H) string {
	e.t.Helper()
	w := e.do(http.MethodPost, "/api/registries/"+registryID+"/funds", body, token)
	require.Equal(e.t, http.StatusCreated, w.Code, w.Body.String())
	return decode(e.t, w)["id"].(string)
}

// contribute posts a public contribution and returns its id
func (e *testEnv) contribute(body gin.H) string {
	e.t.Helper()
	w := e.do(http.MethodPost, "/api/contributions", body, "")
	require.Equal(e.t, http.StatusCreated, w.Code, w.Body.String())
	return decode(e.t, w)["id"].(string)
}
