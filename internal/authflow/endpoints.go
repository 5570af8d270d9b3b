package authflow

import (
	"fmt"
	"strings"
)

// DefaultAuthority is the Microsoft identity platform login authority.
const DefaultAuthority = "https://login.microsoftonline.com"

// Endpoints holds the tenant-scoped OAuth 2.0 endpoints.
type Endpoints struct {
	// DeviceAuthorizationURL is where the device flow obtains its codes
	// (RFC 8628 section 3.1).
	DeviceAuthorizationURL string

	// TokenURL is the token endpoint shared by both grants.
	TokenURL string
}

// EndpointsForTenant builds the v2.0 endpoints for a tenant under the given
// authority. An empty authority falls back to DefaultAuthority; tests point
// it at local servers instead.
func EndpointsForTenant(authority, tenant string) Endpoints {
	if authority == "" {
		authority = DefaultAuthority
	}
	base := strings.TrimSuffix(authority, "/")
	return Endpoints{
		DeviceAuthorizationURL: fmt.Sprintf("%s/%s/oauth2/v2.0/devicecode", base, tenant),
		TokenURL:               fmt.Sprintf("%s/%s/oauth2/v2.0/token", base, tenant),
	}
}
