// Package browser opens links in the user's default web browser.
package browser

import (
	"errors"
	"fmt"
	"io"

	"github.com/pkg/browser"
)

func init() {
	// The launcher's chatter would land on the triage screen.
	browser.Stdout = io.Discard
	browser.Stderr = io.Discard
}

// openURL is the platform launcher.
var openURL = browser.OpenURL

// Open launches the default browser on url.
func Open(url string) error {
	if url == "" {
		return errors.New("no url to open")
	}

	if err := openURL(url); err != nil {
		return fmt.Errorf("unable to launch browser: %w", err)
	}

	return nil
}
