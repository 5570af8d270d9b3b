// Package config loads the process configuration from defaults, an
// optional TOML file and the environment, in that order of precedence
// (environment wins).
package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/toml/v2"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/walkerpauldavid/oauth-mcp-server/internal/authflow"
)

// Config is the full process configuration. The credential fields are
// opaque to the token engine beyond what each grant needs.
type Config struct {
	// Flow selects the grant used by get_token-style operations.
	Flow string `koanf:"flow" validate:"required,oneof=client_credentials device_code"`

	// Authority is the identity platform base URL; tests point it at a
	// local server.
	Authority string `koanf:"authority" validate:"required,url"`

	TenantID string `koanf:"tenant_id" validate:"required"`
	ClientID string `koanf:"client_id" validate:"required"`

	// ClientSecret is only needed for the client-credentials grant; the
	// device flow authenticates the user instead.
	ClientSecret string `koanf:"client_secret" validate:"required_if=Flow client_credentials"`

	Scope string `koanf:"scope" validate:"required"`

	// CompleteTimeout bounds one complete_device_auth poll; FlowTimeout is
	// the wall-clock bound of the blocking one-call device flow.
	CompleteTimeout time.Duration `koanf:"complete_timeout"`
	FlowTimeout     time.Duration `koanf:"flow_timeout"`

	Log LogConfig `koanf:"log"`
	Ops OpsConfig `koanf:"ops"`
}

// LogConfig controls the slog setup.
type LogConfig struct {
	Level  string `koanf:"level" validate:"oneof=debug info warn error"`
	Format string `koanf:"format" validate:"oneof=text json"`

	// File, when set, receives a copy of every log line in addition to
	// stdout. Relative paths are anchored at the working directory.
	File string `koanf:"file"`
}

// OpsConfig controls the health sidecar.
type OpsConfig struct {
	Addr string `koanf:"addr" validate:"required"`
}

// envKeys maps plain environment variable names onto config paths. The
// names predate this implementation and are kept for compatibility with
// existing deployments.
var envKeys = map[string]string{
	"AUTH_FLOW":        "flow",
	"AUTHORITY":        "authority",
	"TENANT_ID":        "tenant_id",
	"CLIENT_ID":        "client_id",
	"CLIENT_SECRET":    "client_secret",
	"OAUTH2_SCOPE":     "scope",
	"COMPLETE_TIMEOUT": "complete_timeout",
	"FLOW_TIMEOUT":     "flow_timeout",
	"LOG_LEVEL":        "log.level",
	"LOG_FORMAT":       "log.format",
	"LOG_FILE":         "log.file",
	"OPS_ADDR":         "ops.addr",
}

func defaults() map[string]any {
	return map[string]any{
		"flow":             string(authflow.FlowDeviceCode),
		"authority":        authflow.DefaultAuthority,
		"complete_timeout": "30s",
		"flow_timeout":     "5m",
		"log.level":        "info",
		"log.format":       "text",
		"ops.addr":         "127.0.0.1:8484",
	}
}

// Load builds the configuration from defaults, the optional TOML file at
// path, and the environment returned by environ (usually os.Environ).
func Load(path string, environ func() []string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("loading defaults: %w", err)
	}

	if path != "" {
		if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", path, err)
		}
	}

	err := k.Load(env.Provider(".", env.Opt{
		EnvironFunc: environ,
		TransformFunc: func(key, value string) (string, any) {
			mapped, ok := envKeys[key]
			if !ok {
				return "", nil // unrelated variable, drop it
			}
			return mapped, value
		},
	}), nil)
	if err != nil {
		return nil, fmt.Errorf("loading environment: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// AuthFlow converts the credential section into the token engine's
// configuration.
func (c *Config) AuthFlow() authflow.Config {
	return authflow.Config{
		Flow:            authflow.FlowType(c.Flow),
		Authority:       c.Authority,
		Tenant:          c.TenantID,
		ClientID:        c.ClientID,
		ClientSecret:    c.ClientSecret,
		Scope:           c.Scope,
		CompleteTimeout: c.CompleteTimeout,
		FlowTimeout:     c.FlowTimeout,
	}
}
