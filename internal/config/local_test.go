package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/donorbridge/donorbridge/internal/canonical"
	"github.com/donorbridge/donorbridge/internal/credentials"
)

func writeLocalConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), configFileName)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadLocalFile(t *testing.T) {
	t.Parallel()

	path := writeLocalConfig(t, `
user_id: alice
providers:
  neon:
    orgId: org-42
    apiKey: super-secret-key
  kindful:
    apiToken: another-secret
`)

	cfg, err := loadLocalFile(path)
	require.NoError(t, err)

	require.Equal(t, "alice", cfg.UserID)
	require.Len(t, cfg.Providers, 2)

	fields, err := cfg.ProviderFields(canonical.ProviderNeon)
	require.NoError(t, err)
	require.Equal(t, "org-42", fields["orgId"])
	require.Equal(t, "super-secret-key", fields["apiKey"])
}

func TestLoadLocalFileDefaultsUserID(t *testing.T) {
	t.Parallel()

	path := writeLocalConfig(t, `
providers:
  neon:
    orgId: org-42
    apiKey: super-secret-key
`)

	cfg, err := loadLocalFile(path)
	require.NoError(t, err)
	require.Equal(t, defaultUserID, cfg.UserID)
}

func TestLoadLocalFileErrors(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		content string
		errMsg  string
	}{
		"no providers": {
			content: "user_id: alice\n",
			errMsg:  "at least one provider is required",
		},
		"unknown provider": {
			content: `
providers:
  salesforce:
    apiKey: key
`,
			errMsg: `unknown provider "salesforce"`,
		},
		"empty credential value": {
			content: `
providers:
  neon:
    orgId: ""
    apiKey: key
`,
			errMsg: "providers.neon.orgId is empty",
		},
		"bad yaml": {
			content: "providers: [",
			errMsg:  "parsing config file",
		},
	}

	for name, tc := range tests {
		tc := tc
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			path := writeLocalConfig(t, tc.content)

			cfg, err := loadLocalFile(path)
			require.Error(t, err)
			require.Contains(t, err.Error(), tc.errMsg)
			require.Nil(t, cfg)
		})
	}
}

func TestLoadLocalFileNotFound(t *testing.T) {
	t.Parallel()

	_, err := loadLocalFile(filepath.Join(t.TempDir(), "nope.yaml"))
	require.ErrorContains(t, err, "config file not found")
}

func TestProviderFieldsUnconfigured(t *testing.T) {
	t.Parallel()

	cfg := &LocalConfig{Providers: map[canonical.Provider]credentials.Fields{}}

	_, err := cfg.ProviderFields(canonical.ProviderVirtuous)
	require.ErrorContains(t, err, "virtuous is not configured")
}
