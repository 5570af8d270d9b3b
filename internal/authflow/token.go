package authflow

import (
	"encoding/json"
	"fmt"
	"time"

	"golang.org/x/oauth2"
)

// ExpirySkew is the safety margin applied when checking token validity.
// It accounts for clock skew, network latency and long-running operations,
// so a token is never handed out moments before it expires at the provider.
const ExpirySkew = 60 * time.Second

// Token is an issued OAuth 2.0 bearer token. Tokens are immutable once
// issued; a refresh replaces the whole value, it never mutates one in place.
type Token struct {
	AccessToken string
	TokenType   string
	Scope       string
	ExpiresAt   time.Time
}

// Valid reports whether the token can still be served to a caller.
func (t *Token) Valid() bool {
	return t.ValidAt(time.Now())
}

// ValidAt reports whether the token is valid at the given instant, applying
// the ExpirySkew margin. A zero ExpiresAt means the token does not expire.
func (t *Token) ValidAt(now time.Time) bool {
	if t == nil || t.AccessToken == "" {
		return false
	}
	if t.ExpiresAt.IsZero() {
		return true
	}
	return now.Add(ExpirySkew).Before(t.ExpiresAt)
}

// ExpiresIn returns the remaining lifetime in whole seconds, clamped at zero.
func (t *Token) ExpiresIn(now time.Time) int64 {
	if t.ExpiresAt.IsZero() {
		return 0
	}
	remaining := t.ExpiresAt.Sub(now)
	if remaining < 0 {
		return 0
	}
	return int64(remaining / time.Second)
}

// ToOAuth2 converts the token for use with golang.org/x/oauth2 consumers
// such as oauth2.Transport.
func (t *Token) ToOAuth2() *oauth2.Token {
	return &oauth2.Token{
		AccessToken: t.AccessToken,
		TokenType:   t.TokenType,
		Expiry:      t.ExpiresAt,
	}
}

// tokenResponse is the JSON body of a successful token-endpoint response
// (RFC 6749 section 5.1).
type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
	Scope       string `json:"scope"`
}

// parseTokenResponse decodes a 200 token-endpoint body into a Token,
// anchoring expires_in at the instant the request was issued.
func parseTokenResponse(body []byte, now time.Time) (*Token, error) {
	var resp tokenResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decoding token response: %w", err)
	}
	if resp.AccessToken == "" {
		return nil, fmt.Errorf("token response missing access_token")
	}

	tok := &Token{
		AccessToken: resp.AccessToken,
		TokenType:   resp.TokenType,
		Scope:       resp.Scope,
	}
	if tok.TokenType == "" {
		tok.TokenType = "Bearer"
	}
	if resp.ExpiresIn > 0 {
		tok.ExpiresAt = now.Add(time.Duration(resp.ExpiresIn) * time.Second)
	}
	return tok, nil
}
