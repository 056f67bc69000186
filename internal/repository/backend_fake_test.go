package repository

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"storefront/internal/backend"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeBackend serves canned JSON per route and records request bodies
type fakeBackend struct {
	mu       sync.Mutex
	router   chi.Router
	requests []recordedRequest
}

type recordedRequest struct {
	Method  string
	Path    string
	Escaped string
	Query   string
	Body    map[string]interface{}
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{router: chi.NewRouter()}
}

// on registers a handler that replies with status and the raw JSON body
func (f *fakeBackend) on(method, pattern string, status int, body string) {
	f.router.MethodFunc(method, pattern, func(w http.ResponseWriter, r *http.Request) {
		rec := recordedRequest{
			Method:  r.Method,
			Path:    r.URL.Path,
			Escaped: r.URL.EscapedPath(),
			Query:   r.URL.RawQuery,
		}
		if r.Body != nil {
			_ = json.NewDecoder(r.Body).Decode(&rec.Body)
		}
		f.mu.Lock()
		f.requests = append(f.requests, rec)
		f.mu.Unlock()

		if body == "" {
			w.WriteHeader(status)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	})
}

func (f *fakeBackend) last() recordedRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.requests) == 0 {
		return recordedRequest{}
	}
	return f.requests[len(f.requests)-1]
}

// start serves the fake under an /api prefix so base path handling is
// exercised too
func (f *fakeBackend) start(t *testing.T) *backend.Client {
	t.Helper()
	root := chi.NewRouter()
	root.Mount("/api", f.router)
	srv := httptest.NewServer(root)
	t.Cleanup(srv.Close)

	client, err := backend.NewClient(srv.URL+"/api", 5*time.Second, zap.NewNop())
	require.NoError(t, err)
	return client
}
