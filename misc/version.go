// Package misc keeps build time information.
package misc

import (
	"runtime/debug"
	"sync"
)

// Set with -ldflags "-X docx2html/misc.version=... -X docx2html/misc.gitHash=..."
var (
	appName = "docx2html"
	version = "dev"
	gitHash = ""
)

var vcsOnce sync.Once

func GetAppName() string {
	return appName
}

func GetVersion() string {
	return version
}

// GetGitHash returns commit hash program was built from. When it was not
// provided at link time we try to get it from module build information.
func GetGitHash() string {
	vcsOnce.Do(func() {
		if len(gitHash) > 0 {
			return
		}
		gitHash = "unknown"
		info, ok := debug.ReadBuildInfo()
		if !ok {
			return
		}
		for _, s := range info.Settings {
			if s.Key == "vcs.revision" && len(s.Value) > 0 {
				gitHash = s.Value
				return
			}
		}
	})
	return gitHash
}
