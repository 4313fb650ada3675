package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/99designs/keyring"
	"github.com/roasbeef/clinbox/internal/credential"
	"github.com/stretchr/testify/require"
)

func newTestConfig(t *testing.T, secrets SecretStore) *Config {
	t.Helper()

	cfg, err := Load(filepath.Join(t.TempDir(), "config.json"), secrets)
	require.NoError(t, err)

	return cfg
}

func TestDefaults(t *testing.T) {
	cfg := newTestConfig(t, nil)

	require.Equal(t, MailSourceGmail, cfg.Mail().Source)
	require.Equal(t, ProviderOpenRouter, cfg.AI().Provider)
	require.Equal(t, 7*24*time.Hour, cfg.AI().CacheTTL)

	triage := cfg.Triage()
	require.Equal(t, 20, triage.MaxEmails)
	require.Equal(t, 3, triage.Window)
	require.Equal(t, 45*time.Second, triage.AnalyzeTimeout)
	require.True(t, triage.ArchiveAfterTask)
	require.True(t, triage.ArchiveAfterReply)

	home, err := os.UserHomeDir()
	require.NoError(t, err)
	require.Equal(t, filepath.Join(home, ".clinbox", "clinbox.db"),
		cfg.Storage().DBPath)
}

func TestSetSaveReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.json")
	cfg, err := Load(path, nil)
	require.NoError(t, err)

	require.NoError(t, cfg.Set("mail.source", "imap"))
	require.NoError(t, cfg.Set("imap.port", "1993"))
	require.NoError(t, cfg.Set("triage.archive_after_task", "false"))
	require.ErrorIs(t, cfg.Set("no.such_key", "x"), ErrUnknownKey)
	require.NoError(t, cfg.Save())

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	reloaded, err := Load(path, nil)
	require.NoError(t, err)
	require.Equal(t, "imap", reloaded.Mail().Source)
	require.Equal(t, 1993, reloaded.IMAP().Port)
	require.False(t, reloaded.Triage().ArchiveAfterTask)

	// Only explicitly set keys are written.
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NotContains(t, string(raw), "model_analysis")
}

func TestSecretsGoToKeyring(t *testing.T) {
	secrets := credential.New(keyring.NewArrayKeyring(nil))
	path := filepath.Join(t.TempDir(), "config.json")

	cfg, err := Load(path, secrets)
	require.NoError(t, err)
	require.NoError(t, cfg.Set("ai.api_key", "sk-or-v1-abcdefghijkl"))
	require.NoError(t, cfg.Save())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NotContains(t, string(raw), "sk-or-v1")

	stored, err := secrets.Get("ai.api_key")
	require.NoError(t, err)
	require.Equal(t, "sk-or-v1-abcdefghijkl", stored)

	reloaded, err := Load(path, secrets)
	require.NoError(t, err)
	require.Equal(t, "sk-or-v1-abcdefghijkl", reloaded.AI().APIKey)

	for _, entry := range reloaded.Show() {
		if entry.Key == "ai.api_key" {
			require.Equal(t, "sk-o...ijkl", entry.Value)
		}
	}
}

func TestEnvOverride(t *testing.T) {
	t.Setenv("CLINBOX_TRIAGE_WINDOW", "5")
	t.Setenv("CLINBOX_AI_PROVIDER", "none")

	cfg := newTestConfig(t, nil)
	require.Equal(t, 5, cfg.Triage().Window)
	require.Equal(t, ProviderNone, cfg.AI().Provider)
}

func TestMask(t *testing.T) {
	require.Equal(t, "", Mask(""))
	require.Equal(t, "****", Mask("short"))
	require.Equal(t, "abcd...wxyz", Mask("abcdefghijklmnopqrstuvwxyz"))
}

func TestValidate(t *testing.T) {
	cfg := newTestConfig(t, nil)

	err := cfg.Validate()
	require.Error(t, err)
	require.Contains(t, err.Error(), "gmail.client_id is not set")
	require.Contains(t, err.Error(), "ai.api_key is not set")

	require.NoError(t, cfg.Set("gmail.client_id", "id"))
	require.NoError(t, cfg.Set("gmail.client_secret", "secret"))
	require.NoError(t, cfg.Set("ai.provider", "none"))
	require.NoError(t, cfg.Validate())

	require.NoError(t, cfg.Set("mail.source", "pop3"))
	require.Error(t, cfg.Validate())
}
