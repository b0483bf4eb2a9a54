// Package cli implements the graphctl commands.
package cli

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/graphkit/auth"
	"github.com/custodia-labs/graphkit/graph"
	"github.com/custodia-labs/graphkit/internal/logging"
)

var (
	// version is set by goreleaser ldflags.
	version = "dev"

	// verbose enables debug logging from the request pipeline.
	verbose bool

	// beta targets the beta endpoint version instead of v1.0.
	beta bool

	logger *slog.Logger
)

// rootCmd is the base command.
var rootCmd = &cobra.Command{
	Use:   "graphctl",
	Short: "Call the Microsoft Graph API from the command line",
	Long: `Graphctl signs in to Microsoft Entra ID and issues requests against the
Microsoft Graph API: single resources, paged collections, and chunked
file uploads.

Sign in once with "graphctl login"; tokens are stored in the system
keychain and refreshed automatically.`,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// SetVersion sets the version string for the CLI.
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose debug output")
	rootCmd.PersistentFlags().BoolVar(&beta, "beta", false, "use the beta endpoint version")

	rootCmd.PersistentPreRunE = func(_ *cobra.Command, _ []string) error {
		logger = logging.NewLogger(verbose)
		return nil
	}
}

// newCredential rebuilds the sign-in credential, seeding its cache from
// the keychain so a previous login survives process restarts.
func newCredential(cfg *Config) (*auth.DeviceCodeCredential, error) {
	cache := auth.NewTokenCache()
	key := auth.NewCacheKey(auth.NewAuthority(cfg.TenantID), cfg.ClientID, cfg.Scopes)
	if tok, err := loadToken(cfg.ClientID); err == nil && tok != nil {
		cache.Put(key, tok)
	}
	return auth.NewDeviceCodeCredential(cfg.TenantID, cfg.ClientID, cfg.Scopes, auth.WithCache(cache))
}

// newClient builds a Graph client from the stored configuration and
// credentials.
func newClient() (*graph.Client, *Config, error) {
	cfg, err := LoadConfig()
	if err != nil {
		return nil, nil, err
	}

	cred, err := newCredential(cfg)
	if err != nil {
		return nil, nil, err
	}

	opts := []graph.ClientOption{graph.WithLogger(logger)}
	if cfg.Endpoint != "" {
		opts = append(opts, graph.WithEndpoint(cfg.Endpoint))
	}
	if beta {
		opts = append(opts, graph.WithBeta())
	}

	client, err := graph.NewClient(&persistingCredential{cred: cred, clientID: cfg.ClientID}, opts...)
	if err != nil {
		return nil, nil, err
	}
	return client, cfg, nil
}
