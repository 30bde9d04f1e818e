// Package version holds build metadata injected with -ldflags.
package version

var (
	AppName   = "modbot"
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

// String returns a one-line build description.
func String() string {
	return AppName + " " + Version + " (" + Commit + ", " + BuildDate + ")"
}
