package version

// Set via -ldflags "-X github.com/monorkin/particle-monitor/internal/version.Version=..."
var (
	Version = "dev"
	Commit  = ""
)

// GetVersion returns the version shown by particle-monitor --version.
func GetVersion() string {
	if Commit == "" {
		return Version
	}
	return Version + " (" + Commit + ")"
}
