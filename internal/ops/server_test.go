package ops

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeChecker is a toggleable readiness source.
type fakeChecker struct {
	ready bool
}

func (f *fakeChecker) IsReady() bool { return f.ready }

func startTestServer(t *testing.T, checker ReadinessChecker) *Server {
	t.Helper()

	server := New(checker)
	errCh, err := server.Start(context.Background(), "127.0.0.1:0")
	require.NoError(t, err)

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		require.NoError(t, server.Shutdown(ctx))
		assert.NoError(t, <-errCh)
	})
	return server
}

func TestOpsServerProbes(t *testing.T) {
	checker := &fakeChecker{}
	server := startTestServer(t, checker)
	base := "http://" + server.Addr()

	get := func(path string) *http.Response {
		t.Helper()
		resp, err := http.Get(base + path)
		require.NoError(t, err)
		_ = resp.Body.Close()
		return resp
	}

	assert.Equal(t, http.StatusOK, get("/livez").StatusCode)
	assert.Equal(t, http.StatusServiceUnavailable, get("/readyz").StatusCode)

	checker.ready = true
	assert.Equal(t, http.StatusOK, get("/readyz").StatusCode)
}

func TestRequestIDPropagation(t *testing.T) {
	server := startTestServer(t, &fakeChecker{ready: true})
	base := "http://" + server.Addr()

	t.Run("generates an id", func(t *testing.T) {
		resp, err := http.Get(base + "/livez")
		require.NoError(t, err)
		_ = resp.Body.Close()
		assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
	})

	t.Run("echoes the client id", func(t *testing.T) {
		req, err := http.NewRequest(http.MethodGet, base+"/livez", nil)
		require.NoError(t, err)
		req.Header.Set("X-Request-ID", "req-42")

		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		_ = resp.Body.Close()
		assert.Equal(t, "req-42", resp.Header.Get("X-Request-ID"))
	})
}

func TestRecovery(t *testing.T) {
	panicking := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	Recovery(panicking).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
