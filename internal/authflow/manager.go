package authflow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// FlowType selects the configured grant.
type FlowType string

const (
	// FlowClientCredentials is the app-only grant (RFC 6749 section 4.4).
	FlowClientCredentials FlowType = "client_credentials"

	// FlowDeviceCode is the user-delegated grant (RFC 8628).
	FlowDeviceCode FlowType = "device_code"
)

// DefaultCompleteTimeout bounds a single CompleteDeviceAuth call. The
// session survives a timeout, so the call can be repeated until the device
// code itself expires.
const DefaultCompleteTimeout = 30 * time.Second

// Config carries the credential material and flow selection supplied by the
// process configuration. It is opaque to the acquirers beyond what each
// grant needs.
type Config struct {
	Flow         FlowType
	Authority    string
	Tenant       string
	ClientID     string
	ClientSecret string
	Scope        string

	// CompleteTimeout bounds one CompleteDeviceAuth poll. Zero means
	// DefaultCompleteTimeout.
	CompleteTimeout time.Duration

	// FlowTimeout is the wall-clock bound for the blocking one-call device
	// flow. Zero means DefaultFlowTimeout.
	FlowTimeout time.Duration
}

// Manager is the façade over the token cache and the two acquirers. All
// token requests from the tool layer go through it; it owns the single
// active device session the two-call API assumes.
type Manager struct {
	cfg    Config
	cache  *Cache
	creds  *ClientCredentialsAcquirer
	device *DeviceAuthorizer

	// mu guards the session pointer; pollMu serializes CompleteDeviceAuth
	// calls so only one poll loop mutates the session at a time.
	mu      sync.Mutex
	pollMu  sync.Mutex
	session *DeviceSession
}

// NewManager wires a Manager from configuration and a shared cache. The
// cache is injected so tests get isolation via fresh instances.
func NewManager(cfg Config, cache *Cache, opts ...Option) *Manager {
	endpoints := EndpointsForTenant(cfg.Authority, cfg.Tenant)
	return &Manager{
		cfg:    cfg,
		cache:  cache,
		creds:  NewClientCredentialsAcquirer(endpoints, cfg.ClientID, cfg.ClientSecret, cfg.Scope, opts...),
		device: NewDeviceAuthorizer(endpoints, cfg.ClientID, cfg.Scope, opts...),
	}
}

// key derives the cache slot for the given flow from the configured
// credential scope.
func (m *Manager) key(flow FlowType) Key {
	return Key{
		Flow:     flow,
		Tenant:   m.cfg.Tenant,
		ClientID: m.cfg.ClientID,
		Scope:    m.cfg.Scope,
	}
}

// Flow returns the configured flow.
func (m *Manager) Flow() FlowType {
	return m.cfg.Flow
}

// GetToken returns a valid token for the configured flow. Client
// credentials always route through the cache with the acquirer as the
// refresh function. Device-flow tokens are served from cache only; they
// carry no refresh token, so an expired or absent one yields
// KindReauthenticationRequired rather than a silent re-poll.
func (m *Manager) GetToken(ctx context.Context) (*Token, error) {
	switch m.cfg.Flow {
	case FlowClientCredentials:
		return m.GetClientCredentialsToken(ctx)
	case FlowDeviceCode:
		if tok, ok := m.cache.Get(m.key(FlowDeviceCode)); ok {
			return tok, nil
		}
		return nil, &Error{
			Kind: KindReauthenticationRequired,
			Err:  errors.New("no valid device flow token; run the device flow again"),
		}
	default:
		return nil, &Error{Kind: KindUnexpectedResponse, Err: fmt.Errorf("unknown flow %q", m.cfg.Flow)}
	}
}

// GetClientCredentialsToken returns a cached app-only token, refreshing it
// through the single-flight cache when missing or expired.
func (m *Manager) GetClientCredentialsToken(ctx context.Context) (*Token, error) {
	return m.cache.GetOrRefresh(ctx, m.key(FlowClientCredentials), m.creds.Acquire)
}

// DeviceGrant is the caller-visible slice of a started device session; the
// device code itself never leaves the engine.
type DeviceGrant struct {
	UserCode        string
	VerificationURI string
	ExpiresAt       time.Time
	Interval        time.Duration
}

func grantOf(session *DeviceSession) *DeviceGrant {
	return &DeviceGrant{
		UserCode:        session.UserCode,
		VerificationURI: session.VerificationURI,
		ExpiresAt:       session.ExpiresAt,
		Interval:        session.Interval,
	}
}

// StartDeviceAuth begins a device flow and retains the session as the one
// active flow for this process. Starting again replaces any previous
// session; the replaced one is simply discarded.
func (m *Manager) StartDeviceAuth(ctx context.Context) (*DeviceGrant, error) {
	session, err := m.device.Start(ctx)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.session = session
	m.mu.Unlock()

	return grantOf(session), nil
}

// CompleteDeviceAuth polls the active session until a terminal state or the
// complete timeout. On success the token is cached under the device-code
// key and the session is cleared. A timeout keeps the session so the call
// can be repeated; terminal failures clear it, requiring a fresh Start.
func (m *Manager) CompleteDeviceAuth(ctx context.Context) (*Token, error) {
	m.pollMu.Lock()
	defer m.pollMu.Unlock()

	m.mu.Lock()
	session := m.session
	m.mu.Unlock()

	if session == nil {
		return nil, &Error{
			Kind: KindReauthenticationRequired,
			Err:  errors.New("no device session in progress: start the device flow first"),
		}
	}

	timeout := m.cfg.CompleteTimeout
	if timeout <= 0 {
		timeout = DefaultCompleteTimeout
	}
	pollCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	tok, err := m.device.Poll(pollCtx, session)
	if err != nil {
		if session.Terminal() {
			m.clearSession(session)
		}
		return nil, err
	}

	m.cache.Put(m.key(FlowDeviceCode), tok)
	m.clearSession(session)
	return tok, nil
}

// AuthorizeDevice runs the blocking one-call device flow, invoking display
// with the user code once the flow has started. The resulting token is
// cached like any completed device flow.
func (m *Manager) AuthorizeDevice(ctx context.Context, display func(*DeviceGrant)) (*Token, error) {
	tok, err := m.device.Authorize(ctx, m.cfg.FlowTimeout, func(session *DeviceSession) {
		if display != nil {
			display(grantOf(session))
		}
	})
	if err != nil {
		return nil, err
	}

	m.cache.Put(m.key(FlowDeviceCode), tok)
	return tok, nil
}

// clearSession drops the active session if it is still the given one.
func (m *Manager) clearSession(session *DeviceSession) {
	m.mu.Lock()
	if m.session == session {
		m.session = nil
	}
	m.mu.Unlock()
}
