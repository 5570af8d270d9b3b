package authflow

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenValidAt(t *testing.T) {
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		token *Token
		at    time.Time
		want  bool
	}{
		{
			name:  "valid well before expiry",
			token: &Token{AccessToken: "tok", ExpiresAt: now.Add(time.Hour)},
			at:    now,
			want:  true,
		},
		{
			name:  "valid just inside the skew margin",
			token: &Token{AccessToken: "tok", ExpiresAt: now.Add(time.Hour)},
			at:    now.Add(3500 * time.Second),
			want:  true,
		},
		{
			name:  "invalid inside the skew margin",
			token: &Token{AccessToken: "tok", ExpiresAt: now.Add(time.Hour)},
			at:    now.Add(3541 * time.Second),
			want:  false,
		},
		{
			name:  "invalid after expiry",
			token: &Token{AccessToken: "tok", ExpiresAt: now.Add(time.Hour)},
			at:    now.Add(3601 * time.Second),
			want:  false,
		},
		{
			name:  "zero expiry never expires",
			token: &Token{AccessToken: "tok"},
			at:    now.Add(1000 * time.Hour),
			want:  true,
		},
		{
			name:  "empty access token is never valid",
			token: &Token{ExpiresAt: now.Add(time.Hour)},
			at:    now,
			want:  false,
		},
		{
			name: "nil token is never valid",
			at:   now,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.token.ValidAt(tt.at))
		})
	}
}

func TestParseTokenResponse(t *testing.T) {
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

	t.Run("complete response", func(t *testing.T) {
		body := []byte(`{"access_token":"abc","token_type":"Bearer","expires_in":3600,"scope":"api://app/.default"}`)

		tok, err := parseTokenResponse(body, now)
		require.NoError(t, err)
		assert.Equal(t, "abc", tok.AccessToken)
		assert.Equal(t, "Bearer", tok.TokenType)
		assert.Equal(t, "api://app/.default", tok.Scope)
		assert.Equal(t, now.Add(time.Hour), tok.ExpiresAt)
	})

	t.Run("token type defaults to Bearer", func(t *testing.T) {
		tok, err := parseTokenResponse([]byte(`{"access_token":"abc"}`), now)
		require.NoError(t, err)
		assert.Equal(t, "Bearer", tok.TokenType)
		assert.True(t, tok.ExpiresAt.IsZero())
	})

	t.Run("missing access token", func(t *testing.T) {
		_, err := parseTokenResponse([]byte(`{"token_type":"Bearer"}`), now)
		assert.Error(t, err)
	})

	t.Run("malformed body", func(t *testing.T) {
		_, err := parseTokenResponse([]byte(`not json`), now)
		assert.Error(t, err)
	})
}

func TestTokenToOAuth2(t *testing.T) {
	expiry := time.Now().Add(time.Hour)
	tok := &Token{AccessToken: "abc", TokenType: "Bearer", ExpiresAt: expiry}

	converted := tok.ToOAuth2()
	assert.Equal(t, "abc", converted.AccessToken)
	assert.Equal(t, "Bearer", converted.TokenType)
	assert.Equal(t, expiry, converted.Expiry)
	assert.True(t, converted.Valid())
}

func TestTokenExpiresIn(t *testing.T) {
	now := time.Now()

	assert.Equal(t, int64(3600), (&Token{ExpiresAt: now.Add(time.Hour)}).ExpiresIn(now))
	assert.Equal(t, int64(0), (&Token{ExpiresAt: now.Add(-time.Minute)}).ExpiresIn(now))
	assert.Equal(t, int64(0), (&Token{}).ExpiresIn(now))
}
