// Package misc keeps build time information.
package misc

// Set by linker: -X twc/misc.version=... -X twc/misc.gitHash=...
var (
	version = "dev"
	gitHash = "unknown"
	appName = "twc"
)

func GetVersion() string {
	return version
}

func GetGitHash() string {
	return gitHash
}

func GetAppName() string {
	return appName
}
