package commands

import (
	"fmt"

	"github.com/roasbeef/clinbox/internal/build"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Display version information",
	Long:  `Display the version, commit hash, and build metadata for clinbox.`,
	Args:  cobra.NoArgs,
	Run:   runVersion,
}

// runVersion prints the version and build information.
func runVersion(cmd *cobra.Command, args []string) {
	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "clinbox version %s", build.Version())

	if build.Commit != "" {
		fmt.Fprintf(w, " commit=%s", build.Commit)
	} else if build.CommitHash != "" {
		fmt.Fprintf(w, " commit=%s", build.CommitHash)
	}

	if build.GoVersion != "" {
		fmt.Fprintf(w, " go=%s", build.GoVersion)
	}

	if tags := build.Tags(); len(tags) > 0 {
		fmt.Fprintf(w, " tags=%s", build.RawTags)
	}

	fmt.Fprintln(w)
}
