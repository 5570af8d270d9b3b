package authflow

import (
	"context"
	"net/http"
	"net/url"
)

// ClientCredentialsAcquirer exchanges a client id/secret pair for an
// app-only bearer token (RFC 6749 section 4.4). It issues exactly one
// request per Acquire call; retry policy, if any, belongs to the caller.
type ClientCredentialsAcquirer struct {
	settings
	tokenURL     string
	clientID     string
	clientSecret string
	scope        string
}

// NewClientCredentialsAcquirer creates an acquirer bound to a token
// endpoint and a fixed credential set.
func NewClientCredentialsAcquirer(endpoints Endpoints, clientID, clientSecret, scope string, opts ...Option) *ClientCredentialsAcquirer {
	return &ClientCredentialsAcquirer{
		settings:     newSettings(opts...),
		tokenURL:     endpoints.TokenURL,
		clientID:     clientID,
		clientSecret: clientSecret,
		scope:        scope,
	}
}

// Acquire performs the token-endpoint exchange. Failures are classified as
// KindInvalidCredentials (400/401 with invalid_client), KindInvalidScope
// (400 with invalid_scope), KindNetworkError (no response) or
// KindUnexpectedResponse (anything else).
func (a *ClientCredentialsAcquirer) Acquire(ctx context.Context) (*Token, error) {
	data := url.Values{
		"grant_type":    {"client_credentials"},
		"client_id":     {a.clientID},
		"client_secret": {a.clientSecret},
		"scope":         {a.scope},
	}

	now := a.now()
	status, body, err := postForm(ctx, a.client, a.tokenURL, data)
	if err != nil {
		return nil, &Error{Kind: KindNetworkError, Err: err}
	}

	if status == http.StatusOK {
		tok, err := parseTokenResponse(body, now)
		if err != nil {
			return nil, &Error{Kind: KindUnexpectedResponse, Status: status, Err: err}
		}
		a.logger.DebugContext(ctx, "client credentials token acquired",
			"scope", tok.Scope,
			"expires_at", tok.ExpiresAt)
		return tok, nil
	}

	oe := parseOAuthError(body)
	kind := KindUnexpectedResponse
	switch {
	case oe.Code == "invalid_client" && (status == http.StatusBadRequest || status == http.StatusUnauthorized):
		kind = KindInvalidCredentials
	case oe.Code == "invalid_scope" && status == http.StatusBadRequest:
		kind = KindInvalidScope
	}

	a.logger.DebugContext(ctx, "client credentials exchange failed",
		"status", status,
		"error", oe.Code)
	return nil, &Error{Kind: kind, Status: status, Code: oe.Code, Description: oe.Description}
}
