// Package version holds build metadata injected with -ldflags.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// Build metadata. Overridden at link time:
//
//	go build -ldflags "-X github.com/rshade/kvcache/pkg/version.version=v1.2.3"
//
//nolint:gochecknoglobals // set by the linker
var (
	version   = "dev"
	gitCommit = ""
	buildDate = ""
)

// GetVersion returns the release version, falling back to the module version
// recorded by `go install`.
func GetVersion() string {
	if version != "dev" {
		return version
	}
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" && info.Main.Version != "(devel)" {
		return info.Main.Version
	}
	return version
}

// GetGitCommit returns the commit the binary was built from, if known.
func GetGitCommit() string {
	return gitCommit
}

// GetBuildDate returns the build timestamp, if known.
func GetBuildDate() string {
	return buildDate
}

// String returns a one-line description of the build.
func String() string {
	s := fmt.Sprintf("kvcache %s (%s/%s, %s)", GetVersion(), runtime.GOOS, runtime.GOARCH, runtime.Version())
	if gitCommit != "" {
		s += " commit " + gitCommit
	}
	if buildDate != "" {
		s += " built " + buildDate
	}
	return s
}
