// Package authflow implements OAuth 2.0 bearer token acquisition for the
// Microsoft identity platform, covering the Client Credentials grant
// (RFC 6749 section 4.4) and the Device Authorization grant (RFC 8628).
//
// The token endpoints are driven with manual HTTP requests rather than the
// oauth2 helper flows because the error taxonomy requires classifying the
// raw status code together with the OAuth "error" body field
// (invalid_client vs invalid_scope vs authorization_pending and friends),
// which the helpers collapse into opaque retrieval errors.
//
// # Token acquisition
//
// Construct a Manager with the credential configuration and a shared Cache:
//
//	cache := authflow.NewCache()
//	mgr := authflow.NewManager(cfg, cache)
//	token, err := mgr.GetToken(ctx)
//
// Client-credentials tokens are refreshed on expiry through the cache, which
// guarantees a single in-flight refresh per (flow, tenant, client, scope)
// key no matter how many callers race. Device-flow tokens carry no refresh
// token in this design; once one expires, GetToken reports
// KindReauthenticationRequired and the device flow must be run again.
//
// # Device flow
//
// The two-call API (StartDeviceAuth + CompleteDeviceAuth) and the blocking
// one-call API (AuthorizeDevice) share the same polling state machine:
//
//	PENDING <-> SLOW_DOWN -> COMPLETE | DENIED | EXPIRED
//
// Terminal states never transition; a fresh Start is required to retry.
package authflow
