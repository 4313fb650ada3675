package build

import (
	"fmt"
	"runtime/debug"
	"strings"
)

const (
	// AppMajor defines the major version of this binary.
	AppMajor uint = 0

	// AppMinor defines the minor version of this binary.
	AppMinor uint = 3

	// AppPatch defines the application patch for this binary.
	AppPatch uint = 0

	// AppPreRelease is the pre-release suffix, empty for tagged releases.
	AppPreRelease = "beta"
)

var (
	// Commit is the git commit the binary was built from. It is set at
	// link time with -ldflags "-X .../internal/build.Commit=...".
	Commit string

	// CommitHash is the full commit hash, populated from the module build
	// info when Commit was not set at link time.
	CommitHash string

	// GoVersion is the toolchain used to build the binary.
	GoVersion string

	// RawTags is the comma separated list of build tags.
	RawTags string
)

func init() {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}

	GoVersion = info.GoVersion
	for _, setting := range info.Settings {
		switch setting.Key {
		case "vcs.revision":
			CommitHash = setting.Value

		case "-tags":
			RawTags = setting.Value
		}
	}
}

// Version returns the application version as a semver string.
func Version() string {
	version := fmt.Sprintf("%d.%d.%d", AppMajor, AppMinor, AppPatch)
	if AppPreRelease != "" {
		version += "-" + AppPreRelease
	}

	return version
}

// Tags returns the list of build tags the binary was compiled with.
func Tags() []string {
	if RawTags == "" {
		return nil
	}

	return strings.Split(RawTags, ",")
}
