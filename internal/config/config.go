// Package config loads the clinbox settings from ~/.clinbox/config.json,
// CLINBOX_* environment variables and the OS keyring.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	// EnvPrefix prefixes the environment overrides, e.g.
	// CLINBOX_AI_API_KEY for ai.api_key.
	EnvPrefix = "CLINBOX"

	// MailSourceGmail and MailSourceIMAP are the supported mailboxes.
	MailSourceGmail = "gmail"
	MailSourceIMAP  = "imap"

	// The analysis providers. ProviderNone disables analysis.
	ProviderOpenRouter = "openrouter"
	ProviderOpenAI     = "openai"
	ProviderGemini     = "gemini"
	ProviderBedrock    = "bedrock"
	ProviderNone       = "none"
)

// SecretStore holds the values of secret keys outside the config file.
type SecretStore interface {
	Get(key string) (string, error)
	Set(key, value string) error
}

// secretKeys are never written to the config file when a SecretStore
// accepts them, and are masked when displayed.
var secretKeys = map[string]bool{
	"gmail.client_secret": true,
	"imap.password":       true,
	"smtp.password":       true,
	"ai.api_key":          true,
}

// defaults lists every known key. Paths under ~ are expanded on read.
var defaults = map[string]any{
	"mail.source": MailSourceGmail,

	"gmail.client_id":     "",
	"gmail.client_secret": "",
	"gmail.token_path":    "~/.clinbox/token.json",

	"imap.host":            "",
	"imap.port":            993,
	"imap.username":        "",
	"imap.password":        "",
	"imap.tls":             true,
	"imap.archive_mailbox": "Archive",
	"imap.trash_mailbox":   "Trash",

	"smtp.host":     "",
	"smtp.port":     587,
	"smtp.username": "",
	"smtp.password": "",
	"smtp.tls":      false,
	"smtp.from":     "",

	"ai.provider":            ProviderOpenRouter,
	"ai.api_key":             "",
	"ai.model_analysis":      "google/gemini-2.0-flash-001",
	"ai.model_reply":         "anthropic/claude-sonnet-4",
	"ai.base_url":            "",
	"ai.region":              "us-east-1",
	"ai.summary_language":    "English",
	"ai.requests_per_second": 0,
	"ai.cache_path":          "~/.clinbox/analysis.db",
	"ai.cache_ttl":           "168h",

	"triage.max_emails":          20,
	"triage.window":              3,
	"triage.analyze_timeout":     "45s",
	"triage.fetch_timeout":       "30s",
	"triage.action_timeout":      "30s",
	"triage.archive_after_task":  true,
	"triage.archive_after_reply": true,

	"storage.db_path": "~/.clinbox/clinbox.db",

	"log.dir":         "~/.clinbox/logs",
	"log.level":       "info",
	"log.max_files":   10,
	"log.max_size_mb": 20,
}

// ErrUnknownKey is returned when setting a key clinbox does not use.
var ErrUnknownKey = errors.New("unknown config key")

// Config is the merged view of defaults, the config file, the
// environment and the keyring.
type Config struct {
	path string

	// v resolves values. file holds only what the config file stores so
	// that Save never persists defaults or environment values.
	v    *viper.Viper
	file *viper.Viper

	secrets SecretStore
}

// DefaultDir returns ~/.clinbox.
func DefaultDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("unable to find home directory: %w", err)
	}

	return filepath.Join(home, ".clinbox"), nil
}

// DefaultPath returns ~/.clinbox/config.json.
func DefaultPath() (string, error) {
	dir, err := DefaultDir()
	if err != nil {
		return "", err
	}

	return filepath.Join(dir, "config.json"), nil
}

// Load reads the config file at path. A missing file yields the defaults.
// secrets may be nil, in which case secret values live in the file.
func Load(path string, secrets SecretStore) (*Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	file := viper.New()
	file.SetConfigPermissions(0o600)

	for _, vp := range []*viper.Viper{v, file} {
		vp.SetConfigFile(path)
		vp.SetConfigType("json")

		if err := readIfExists(vp); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	return &Config{
		path:    path,
		v:       v,
		file:    file,
		secrets: secrets,
	}, nil
}

func readIfExists(v *viper.Viper) error {
	err := v.ReadInConfig()

	var notFound viper.ConfigFileNotFoundError
	switch {
	case err == nil:
		return nil

	case errors.As(err, &notFound), errors.Is(err, fs.ErrNotExist):
		return nil

	default:
		return err
	}
}

// Path returns the config file location.
func (c *Config) Path() string {
	return c.path
}

// IsKnown reports whether key is a clinbox setting.
func IsKnown(key string) bool {
	_, ok := defaults[key]
	return ok
}

// IsSecret reports whether key holds a secret.
func IsSecret(key string) bool {
	return secretKeys[key]
}

// Keys returns every known key in sorted order.
func Keys() []string {
	keys := make([]string, 0, len(defaults))
	for key := range defaults {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	return keys
}

// Get returns the value of key. A secret missing from the file and the
// environment is read from the keyring.
func (c *Config) Get(key string) string {
	value := c.v.GetString(key)
	if value != "" || !secretKeys[key] || c.secrets == nil {
		return value
	}

	secret, err := c.secrets.Get(key)
	if err != nil {
		return ""
	}

	return secret
}

// Set assigns key. Secrets go to the keyring when one is available and
// the file keeps an empty value. Call Save to persist the file.
func (c *Config) Set(key, value string) error {
	if !IsKnown(key) {
		return fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}

	if secretKeys[key] && c.secrets != nil {
		if err := c.secrets.Set(key, value); err == nil {
			c.file.Set(key, "")
			c.v.Set(key, "")

			return nil
		}
	}

	c.file.Set(key, value)
	c.v.Set(key, value)

	return nil
}

// Save writes the file values to Path with owner-only permissions.
func (c *Config) Save() error {
	if err := os.MkdirAll(filepath.Dir(c.path), 0o700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	if err := c.file.WriteConfigAs(c.path); err != nil {
		return fmt.Errorf("writing config to %s: %w", c.path, err)
	}

	return nil
}

// Entry is one key and its display value.
type Entry struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Show returns every setting with secrets masked.
func (c *Config) Show() []Entry {
	entries := make([]Entry, 0, len(defaults))
	for _, key := range Keys() {
		value := c.Get(key)
		if secretKeys[key] {
			value = Mask(value)
		}
		entries = append(entries, Entry{Key: key, Value: value})
	}

	return entries
}

// Mask hides all but the ends of a secret.
func Mask(secret string) string {
	switch {
	case secret == "":
		return ""

	case len(secret) <= 8:
		return "****"

	default:
		return secret[:4] + "..." + secret[len(secret)-4:]
	}
}

// expandHome replaces a leading ~ with the user's home directory.
func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}

	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}

func (c *Config) pathValue(key string) string {
	return expandHome(c.v.GetString(key))
}

func (c *Config) duration(key string) time.Duration {
	return c.v.GetDuration(key)
}
