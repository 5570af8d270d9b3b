package authflow

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTokenEndpoint(t *testing.T, handler http.HandlerFunc) Endpoints {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return Endpoints{TokenURL: server.URL + "/token"}
}

func TestClientCredentialsAcquire_Success(t *testing.T) {
	endpoints := newTokenEndpoint(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "client_credentials", r.PostForm.Get("grant_type"))
		assert.Equal(t, "client-1", r.PostForm.Get("client_id"))
		assert.Equal(t, "s3cret", r.PostForm.Get("client_secret"))
		assert.Equal(t, "api://app/.default", r.PostForm.Get("scope"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"abc","token_type":"Bearer","expires_in":3600,"scope":"api://app/.default"}`))
	})

	acquirer := NewClientCredentialsAcquirer(endpoints, "client-1", "s3cret", "api://app/.default")
	tok, err := acquirer.Acquire(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "abc", tok.AccessToken)
	assert.WithinDuration(t, time.Now().Add(time.Hour), tok.ExpiresAt, 5*time.Second)
}

func TestClientCredentialsAcquire_ErrorClassification(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantKind Kind
	}{
		{
			name:     "invalid client on 401",
			status:   http.StatusUnauthorized,
			body:     `{"error":"invalid_client","error_description":"AADSTS7000215: Invalid client secret provided."}`,
			wantKind: KindInvalidCredentials,
		},
		{
			name:     "invalid client on 400",
			status:   http.StatusBadRequest,
			body:     `{"error":"invalid_client"}`,
			wantKind: KindInvalidCredentials,
		},
		{
			name:     "invalid scope",
			status:   http.StatusBadRequest,
			body:     `{"error":"invalid_scope","error_description":"scope is malformed"}`,
			wantKind: KindInvalidScope,
		},
		{
			name:     "unknown oauth error",
			status:   http.StatusBadRequest,
			body:     `{"error":"temporarily_unavailable"}`,
			wantKind: KindUnexpectedResponse,
		},
		{
			name:     "server error",
			status:   http.StatusInternalServerError,
			body:     `oops`,
			wantKind: KindUnexpectedResponse,
		},
		{
			name:     "malformed success body",
			status:   http.StatusOK,
			body:     `not json`,
			wantKind: KindUnexpectedResponse,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			endpoints := newTokenEndpoint(t, func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			acquirer := NewClientCredentialsAcquirer(endpoints, "client-1", "bad", "scope")
			_, err := acquirer.Acquire(context.Background())
			require.Error(t, err)
			assert.Equal(t, tt.wantKind, KindOf(err))

			var fe *Error
			require.ErrorAs(t, err, &fe)
			assert.Equal(t, tt.status, fe.Status)
		})
	}
}

func TestClientCredentialsAcquire_NetworkError(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	endpoints := Endpoints{TokenURL: server.URL + "/token"}
	server.Close() // connection refused from here on

	acquirer := NewClientCredentialsAcquirer(endpoints, "client-1", "s3cret", "scope")
	_, err := acquirer.Acquire(context.Background())
	require.Error(t, err)
	assert.Equal(t, KindNetworkError, KindOf(err))
}
