package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/roasbeef/clinbox/internal/config"
	"github.com/roasbeef/clinbox/internal/di"
)

// secretStore replaces the OS keyring when set.
var secretStore config.SecretStore

// containerOptions maps the global flags onto the container options.
func containerOptions() *di.Options {
	return &di.Options{
		ConfigPath: configPath,
		DBPath:     dbPath,
		LogLevel:   debugLevel,
		Secrets:    secretStore,
	}
}

// invoke runs fn with its dependencies resolved from a fresh container.
func invoke(ctx context.Context, fn any) error {
	return di.Invoke(ctx, containerOptions(), fn)
}

// outputJSON writes v as indented JSON.
func outputJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(w, string(data))

	return nil
}

// checkFormat rejects output formats other than text and json.
func checkFormat() error {
	switch outputFormat {
	case "text", "json":
		return nil

	default:
		return fmt.Errorf("unknown output format %q (want text or json)",
			outputFormat)
	}
}
