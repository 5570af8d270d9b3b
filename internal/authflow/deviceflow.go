package authflow

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
)

const (
	// deviceGrantType is the grant type URN for device-code token requests
	// (RFC 8628 section 3.4).
	deviceGrantType = "urn:ietf:params:oauth:grant-type:device_code"

	// DefaultPollInterval applies when the server omits the interval field.
	DefaultPollInterval = 5 * time.Second

	// slowDownStep is the RFC-recommended interval increase applied on each
	// slow_down response.
	slowDownStep = 5 * time.Second

	// DefaultFlowTimeout is the wall-clock bound for the blocking one-call
	// device flow, distinct from the device code's own expiry.
	DefaultFlowTimeout = 5 * time.Minute
)

// SessionStatus is the polling state of a device authorization session.
type SessionStatus string

const (
	StatusPending  SessionStatus = "pending"
	StatusSlowDown SessionStatus = "slow_down"
	StatusComplete SessionStatus = "complete"
	StatusDenied   SessionStatus = "denied"
	StatusExpired  SessionStatus = "expired"
)

// DeviceSession is the state of one device authorization flow, created by
// Start and mutated only by the polling state machine. The device code
// itself stays unexported; callers only ever see the user-facing fields.
type DeviceSession struct {
	// ID correlates log lines for one flow. It has no protocol meaning.
	ID string

	UserCode        string
	VerificationURI string
	Interval        time.Duration
	ExpiresAt       time.Time
	Status          SessionStatus

	deviceCode string
}

// Terminal reports whether the session can no longer make progress. A new
// Start call is required once a session is terminal.
func (s *DeviceSession) Terminal() bool {
	switch s.Status {
	case StatusComplete, StatusDenied, StatusExpired:
		return true
	}
	return false
}

// deviceAuthResponse is the device-authorization endpoint body
// (RFC 8628 section 3.2).
type deviceAuthResponse struct {
	DeviceCode              string `json:"device_code"`
	UserCode                string `json:"user_code"`
	VerificationURI         string `json:"verification_uri"`
	VerificationURIComplete string `json:"verification_uri_complete,omitempty"`
	ExpiresIn               int64  `json:"expires_in"`
	Interval                int64  `json:"interval"`
}

// DeviceAuthorizer drives the RFC 8628 device authorization grant against a
// tenant's endpoints.
type DeviceAuthorizer struct {
	settings
	endpoints Endpoints
	clientID  string
	scope     string
}

// NewDeviceAuthorizer creates an authorizer for the given endpoints and
// client. No client secret is involved; the device flow authenticates the
// user, not the application.
func NewDeviceAuthorizer(endpoints Endpoints, clientID, scope string, opts ...Option) *DeviceAuthorizer {
	return &DeviceAuthorizer{
		settings:  newSettings(opts...),
		endpoints: endpoints,
		clientID:  clientID,
		scope:     scope,
	}
}

// Start requests a device code and user code, returning a session in
// StatusPending. The session's ExpiresAt is anchored at the instant the
// request was issued.
func (d *DeviceAuthorizer) Start(ctx context.Context) (*DeviceSession, error) {
	data := url.Values{
		"client_id": {d.clientID},
		"scope":     {d.scope},
	}

	now := d.now()
	status, body, err := postForm(ctx, d.client, d.endpoints.DeviceAuthorizationURL, data)
	if err != nil {
		return nil, &Error{Kind: KindNetworkError, Err: err}
	}
	if status != http.StatusOK {
		oe := parseOAuthError(body)
		return nil, &Error{Kind: KindUnexpectedResponse, Status: status, Code: oe.Code, Description: oe.Description}
	}

	var resp deviceAuthResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &Error{Kind: KindUnexpectedResponse, Status: status, Err: err}
	}
	if resp.DeviceCode == "" || resp.UserCode == "" {
		return nil, &Error{Kind: KindUnexpectedResponse, Status: status, Err: errors.New("incomplete device authorization response")}
	}

	interval := time.Duration(resp.Interval) * time.Second
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	session := &DeviceSession{
		ID:              uuid.New().String(),
		UserCode:        resp.UserCode,
		VerificationURI: resp.VerificationURI,
		Interval:        interval,
		ExpiresAt:       now.Add(time.Duration(resp.ExpiresIn) * time.Second),
		Status:          StatusPending,
		deviceCode:      resp.DeviceCode,
	}

	d.logger.InfoContext(ctx, "device flow started",
		"session_id", session.ID,
		"user_code", session.UserCode,
		"verification_uri", session.VerificationURI,
		"expires_at", session.ExpiresAt,
		"interval", session.Interval)
	return session, nil
}

// Poll repeatedly asks the token endpoint for the session's token, spacing
// requests by the session interval, until a terminal state, the device code
// expiry, or context cancellation. A slow_down response increases the
// interval by slowDownStep before the next request. An unexpected response
// leaves the session pending so the caller may retry the poll call itself.
//
// A context deadline is reported as KindTimeout to distinguish the caller's
// wall-clock bound from KindDeviceCodeExpired; plain cancellation surfaces
// the context error unchanged and the session is simply abandoned (the RFC
// defines no server-side cancellation).
func (d *DeviceAuthorizer) Poll(ctx context.Context, session *DeviceSession) (*Token, error) {
	if session == nil || session.deviceCode == "" {
		return nil, &Error{Kind: KindUnexpectedResponse, Err: errors.New("no device session: call Start first")}
	}

	switch session.Status {
	case StatusDenied:
		return nil, &Error{Kind: KindAuthorizationDenied, Err: errors.New("device session already denied")}
	case StatusExpired:
		return nil, &Error{Kind: KindDeviceCodeExpired, Err: errors.New("device session already expired")}
	case StatusComplete:
		return nil, &Error{Kind: KindUnexpectedResponse, Err: errors.New("device session already completed; start a new flow")}
	}

	for {
		if err := ctx.Err(); err != nil {
			return nil, wrapWaitError(err)
		}

		// The device code's own lifetime wins over the wall-clock bound
		// when it elapses first.
		if !d.now().Before(session.ExpiresAt) {
			session.Status = StatusExpired
			return nil, &Error{Kind: KindDeviceCodeExpired, Err: errors.New("device code expired before authentication completed")}
		}

		tok, err := d.pollOnce(ctx, session)
		if err != nil {
			return nil, err
		}
		if tok != nil {
			return tok, nil
		}

		if err := d.sleep(ctx, session.Interval); err != nil {
			return nil, wrapWaitError(err)
		}
	}
}

// pollOnce issues a single token request. A nil token with a nil error
// means the authorization is still pending and polling should continue.
func (d *DeviceAuthorizer) pollOnce(ctx context.Context, session *DeviceSession) (*Token, error) {
	data := url.Values{
		"grant_type":  {deviceGrantType},
		"client_id":   {d.clientID},
		"device_code": {session.deviceCode},
	}

	now := d.now()
	status, body, err := postForm(ctx, d.client, d.endpoints.TokenURL, data)
	if err != nil {
		// A request aborted by the poll deadline is a timeout, not a
		// transport failure.
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, wrapWaitError(ctxErr)
		}
		return nil, &Error{Kind: KindNetworkError, Err: err}
	}

	if status == http.StatusOK {
		tok, perr := parseTokenResponse(body, now)
		if perr != nil {
			return nil, &Error{Kind: KindUnexpectedResponse, Status: status, Err: perr}
		}
		session.Status = StatusComplete
		d.logger.InfoContext(ctx, "device flow completed",
			"session_id", session.ID,
			"expires_at", tok.ExpiresAt)
		return tok, nil
	}

	oe := parseOAuthError(body)
	switch oe.Code {
	case "authorization_pending":
		session.Status = StatusPending
		d.logger.DebugContext(ctx, "authorization pending", "session_id", session.ID)
		return nil, nil

	case "slow_down":
		session.Status = StatusSlowDown
		session.Interval += slowDownStep
		d.logger.WarnContext(ctx, "server requested slow down",
			"session_id", session.ID,
			"interval", session.Interval)
		return nil, nil

	// authorization_declined is the Microsoft identity platform spelling of
	// the RFC 8628 access_denied error.
	case "access_denied", "authorization_declined":
		session.Status = StatusDenied
		return nil, &Error{Kind: KindAuthorizationDenied, Status: status, Code: oe.Code, Description: oe.Description}

	case "expired_token":
		session.Status = StatusExpired
		return nil, &Error{Kind: KindDeviceCodeExpired, Status: status, Code: oe.Code, Description: oe.Description}

	default:
		// Session stays in its current state; the poll call is retryable.
		return nil, &Error{Kind: KindUnexpectedResponse, Status: status, Code: oe.Code, Description: oe.Description}
	}
}

// Authorize runs the complete device flow in one blocking call: Start, hand
// the session to display for presentation to the user, then Poll under the
// given wall-clock timeout. It is a composition of the two-call API and
// shares the identical state machine.
func (d *DeviceAuthorizer) Authorize(ctx context.Context, timeout time.Duration, display func(*DeviceSession)) (*Token, error) {
	if timeout <= 0 {
		timeout = DefaultFlowTimeout
	}

	session, err := d.Start(ctx)
	if err != nil {
		return nil, err
	}
	if display != nil {
		display(session)
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return d.Poll(ctx, session)
}

// wrapWaitError maps a context error from the poll loop onto the flow's
// error taxonomy. A deadline means a wall-clock bound elapsed before any
// terminal response.
func wrapWaitError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &Error{Kind: KindTimeout, Err: err}
	}
	return err
}
