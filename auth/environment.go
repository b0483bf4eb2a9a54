package auth

import (
	"github.com/caarlos0/env/v11"
)

// environmentConfig is populated from the conventional AZURE_* variables.
type environmentConfig struct {
	TenantID     string `env:"AZURE_TENANT_ID"`
	ClientID     string `env:"AZURE_CLIENT_ID"`
	ClientSecret string `env:"AZURE_CLIENT_SECRET"`
	Username     string `env:"AZURE_USERNAME"`
	Password     string `env:"AZURE_PASSWORD"`
}

// NewEnvironmentCredential selects a credential from environment variables:
// username/password variables select ROPC, a client secret selects client
// credentials, anything less fails with KindMissingCredential.
func NewEnvironmentCredential(scopes []string, opts ...Option) (Credential, error) {
	var cfg environmentConfig
	if err := env.Parse(&cfg); err != nil {
		return nil, &Error{Kind: KindMissingCredential, Description: "parse environment: " + err.Error(), Err: err}
	}

	if cfg.ClientID == "" {
		return nil, &Error{Kind: KindMissingCredential, Description: "AZURE_CLIENT_ID is not set"}
	}

	switch {
	case cfg.Username != "" && cfg.Password != "":
		return NewUsernamePasswordCredential(cfg.TenantID, cfg.ClientID, cfg.Username, cfg.Password, scopes, opts...)
	case cfg.ClientSecret != "":
		return NewClientSecretCredential(cfg.TenantID, cfg.ClientID, cfg.ClientSecret, scopes, opts...)
	default:
		return nil, &Error{
			Kind:        KindMissingCredential,
			Description: "set AZURE_USERNAME/AZURE_PASSWORD or AZURE_CLIENT_SECRET alongside AZURE_CLIENT_ID",
		}
	}
}
