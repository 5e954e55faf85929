package httpapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bvisser/relogin/internal/artifacts"
	"github.com/bvisser/relogin/internal/browser"
	"github.com/bvisser/relogin/internal/browser/browsertest"
	"github.com/bvisser/relogin/internal/classify"
	"github.com/bvisser/relogin/internal/dialect"
	"github.com/bvisser/relogin/internal/service"
	"github.com/bvisser/relogin/internal/session"
)

func newTestServer(t *testing.T, launcher *browsertest.FakeLauncher) (*Server, *artifacts.Store) {
	t.Helper()

	tables, err := dialect.NewProvider("https://www.example-site.com", "")
	require.NoError(t, err)
	t.Cleanup(tables.Close)

	opts := session.Options{
		ProbeTimeout:        5 * time.Millisecond,
		SubmitWait:          50 * time.Millisecond,
		SettleDelay:         time.Millisecond,
		SecondFactorTimeout: time.Minute,
	}

	registry := session.NewRegistry()
	store := artifacts.NewStore(t.TempDir(), time.Hour)
	caches := browser.NewCacheManager(t.TempDir())
	classifier := classify.New(tables, opts.ProbeTimeout)
	machine := session.NewMachine(launcher, caches, store, classifier, tables, registry, opts)
	svc := service.New(machine, registry, store, caches)

	return NewServer("127.0.0.1:0", svc), store
}

func do(t *testing.T, srv *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	w := httptest.NewRecorder()
	srv.server.Handler.ServeHTTP(w, req)
	return w
}

func TestLoginEndpointValidation(t *testing.T) {
	srv, _ := newTestServer(t, &browsertest.FakeLauncher{})

	w := do(t, srv, http.MethodGet, "/api/login", "")
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)

	w = do(t, srv, http.MethodPost, "/api/login", "{not json")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, srv, http.MethodPost, "/api/login", `{"identity":"user1"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, srv, http.MethodPost, "/api/login", `{"identity":"u","secret":"p","dialect":"tablet"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLoginEndpointFailureResult(t *testing.T) {
	launcher := &browsertest.FakeLauncher{
		Next: func(bool, string, string) *browsertest.FakeBrowser {
			return browsertest.NewFakeBrowser(browsertest.NewFakePage())
		},
	}
	srv, _ := newTestServer(t, launcher)

	w := do(t, srv, http.MethodPost, "/api/login", `{"identity":"user1","secret":"pw","dialect":"mobile"}`)
	require.Equal(t, http.StatusOK, w.Code)

	var result service.LoginResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Equal(t, service.StatusFailed, result.Status)
	assert.NotEmpty(t, result.Detail)
}

func TestQuickLoginEndpointNoArtifacts(t *testing.T) {
	launcher := &browsertest.FakeLauncher{}
	srv, _ := newTestServer(t, launcher)

	w := do(t, srv, http.MethodPost, "/api/quick-login", `{"identity":"user1"}`)
	require.Equal(t, http.StatusOK, w.Code)

	var result service.LoginResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Equal(t, service.StatusFailed, result.Status)
	assert.Equal(t, 0, launcher.Launches)
}

func TestSecondFactorEndpointNotFound(t *testing.T) {
	srv, _ := newTestServer(t, &browsertest.FakeLauncher{})

	w := do(t, srv, http.MethodPost, "/api/second-factor/submit", `{"session_id":"ghost","code":"123456"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, srv, http.MethodPost, "/api/second-factor/cancel", `{"session_id":"ghost"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSessionsEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, &browsertest.FakeLauncher{})

	w := do(t, srv, http.MethodGet, "/api/sessions.json", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-Id"))

	var infos []session.Info
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &infos))
	assert.Empty(t, infos)
}

func TestAccountsEndpoints(t *testing.T) {
	srv, store := newTestServer(t, &browsertest.FakeLauncher{})

	require.NoError(t, store.Write(&artifacts.Bundle{
		Identity:   "user1",
		CapturedAt: time.Now(),
		Cookies:    []artifacts.Cookie{{Name: "sessionid", Value: "v"}},
	}))

	w := do(t, srv, http.MethodGet, "/api/accounts.json", "")
	require.Equal(t, http.StatusOK, w.Code)
	var identities []string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &identities))
	assert.Equal(t, []string{"user1"}, identities)

	w = do(t, srv, http.MethodPost, "/api/accounts/delete", `{"identity":"user1"}`)
	require.Equal(t, http.StatusOK, w.Code)
	var resp map[string]int
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp["removed"])
}

func TestPurgeEndpoint(t *testing.T) {
	srv, store := newTestServer(t, &browsertest.FakeLauncher{})

	require.NoError(t, store.Write(&artifacts.Bundle{
		Identity:   "stale",
		CapturedAt: time.Now().Add(-48 * time.Hour),
	}))

	w := do(t, srv, http.MethodGet, "/api/purge", "")
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)

	w = do(t, srv, http.MethodPost, "/api/purge", "")
	require.Equal(t, http.StatusOK, w.Code)
	var resp map[string]int
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp["purged"])
}

func TestScreenshotEndpointNotFound(t *testing.T) {
	srv, _ := newTestServer(t, &browsertest.FakeLauncher{})

	w := do(t, srv, http.MethodGet, "/api/sessions/screenshot", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, srv, http.MethodGet, "/api/sessions/screenshot?session_id=ghost", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}
