// Package version holds build metadata injected with -ldflags, e.g.
// -X git.home.luguber.info/inful/sitesmith/internal/version.Version=v0.3.0.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// String renders the one-line version banner printed by `sitesmith version`.
func String() string {
	v := Version
	if v == "dev" {
		if bi, ok := debug.ReadBuildInfo(); ok && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
			v = bi.Main.Version
		}
	}
	return fmt.Sprintf("sitesmith %s (commit %s, built %s, %s/%s)", v, GitCommit, BuildTime, runtime.GOOS, runtime.GOARCH)
}
