package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/graphkit/auth"
	"github.com/custodia-labs/graphkit/graph"
)

func TestLoadConfig_MissingFileYieldsDefaults(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "common", cfg.TenantID)
	assert.Equal(t, defaultScopes, cfg.Scopes)
	assert.Empty(t, cfg.ClientID)
}

func TestConfig_RoundTrip(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	want := &Config{
		TenantID: "contoso.onmicrosoft.com",
		ClientID: "client-1",
		Scopes:   []string{"User.Read", "offline_access"},
		Endpoint: "https://graph.microsoft.us",
	}
	require.NoError(t, SaveConfig(want))

	got, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestResourceFromPath(t *testing.T) {
	cred, err := auth.NewStaticTokenCredential("tok")
	require.NoError(t, err)
	client, err := graph.NewClient(cred)
	require.NoError(t, err)

	for _, path := range []string{"me/drive/root", "/me/drive/root"} {
		u, err := client.ResolveURL(resourceFromPath(path), nil)
		require.NoError(t, err)
		assert.Equal(t, "https://graph.microsoft.com/v1.0/me/drive/root", u)
	}
}
