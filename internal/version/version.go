// Package version carries build identification injected at link time via
// -ldflags. The zero values identify a development build.
package version

var (
	// Version is the release tag of this build.
	Version = "dev"
	// GitSHA is the commit the binary was built from.
	GitSHA = "unknown"
	// BuildTime is the build timestamp.
	BuildTime = "unknown"
)

// String returns a single-line build identifier for startup logging.
func String() string {
	return Version + " (" + GitSHA + ", built " + BuildTime + ")"
}
