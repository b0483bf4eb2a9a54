package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/custodia-labs/graphkit/auth"
)

var (
	loginTenant   string
	loginClientID string
	loginScopes   []string
	loginPassword bool
	loginUsername string
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in and store tokens in the system keychain",
	Long: `Login signs in with the device code flow: it prints a verification URL
and a one-time code, then waits for you to complete sign-in in a
browser.

With --password, login uses the resource owner password grant instead.
That grant only works for accounts without MFA and is intended for
test tenants.`,
	RunE: runLogin,
}

func init() {
	loginCmd.Flags().StringVar(&loginTenant, "tenant", "", "tenant id (default: common)")
	loginCmd.Flags().StringVar(&loginClientID, "client-id", "", "application (client) id")
	loginCmd.Flags().StringSliceVar(&loginScopes, "scopes", nil, "scopes to request")
	loginCmd.Flags().BoolVar(&loginPassword, "password", false, "use the password grant instead of device code")
	loginCmd.Flags().StringVar(&loginUsername, "username", "", "account to sign in with --password")
	rootCmd.AddCommand(loginCmd)
}

func runLogin(cmd *cobra.Command, _ []string) error {
	cfg, err := LoadConfig()
	if err != nil {
		return err
	}
	if loginTenant != "" {
		cfg.TenantID = loginTenant
	}
	if loginClientID != "" {
		cfg.ClientID = loginClientID
	}
	if len(loginScopes) > 0 {
		cfg.Scopes = loginScopes
	}
	if cfg.ClientID == "" {
		return fmt.Errorf("no client id configured; pass --client-id")
	}

	var tok *auth.Token
	if loginPassword {
		tok, err = passwordLogin(cmd, cfg)
	} else {
		tok, err = deviceCodeLogin(cmd, cfg)
	}
	if err != nil {
		return err
	}

	if err := saveToken(cfg.ClientID, tok); err != nil {
		return err
	}
	if err := SaveConfig(cfg); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Signed in.")
	return nil
}

func deviceCodeLogin(cmd *cobra.Command, cfg *Config) (*auth.Token, error) {
	cred, err := auth.NewDeviceCodeCredential(cfg.TenantID, cfg.ClientID, cfg.Scopes)
	if err != nil {
		return nil, err
	}

	da, err := cred.Start(cmd.Context())
	if err != nil {
		return nil, err
	}
	if da.Message != "" {
		fmt.Fprintln(cmd.OutOrStdout(), da.Message)
	} else {
		fmt.Fprintf(cmd.OutOrStdout(), "To sign in, open %s and enter the code %s\n", da.VerificationURI, da.UserCode)
	}

	return cred.Poll(cmd.Context(), da)
}

func passwordLogin(cmd *cobra.Command, cfg *Config) (*auth.Token, error) {
	if loginUsername == "" {
		return nil, fmt.Errorf("--password requires --username")
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Password for %s: ", loginUsername)
	raw, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(cmd.OutOrStdout())
	if err != nil {
		return nil, fmt.Errorf("read password: %w", err)
	}

	cred, err := auth.NewUsernamePasswordCredential(cfg.TenantID, cfg.ClientID, loginUsername, strings.TrimSpace(string(raw)), cfg.Scopes)
	if err != nil {
		return nil, err
	}
	return cred.GetToken(cmd.Context())
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Remove stored tokens from the system keychain",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := LoadConfig()
		if err != nil {
			return err
		}
		if cfg.ClientID == "" {
			return nil
		}
		if err := deleteToken(cfg.ClientID); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Signed out.")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(logoutCmd)
}
