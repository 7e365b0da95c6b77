package version

// Version is the current version of the SilentByte CLI.
// Overridden at build time with:
//
//	go build -ldflags="-X 'github.com/Bhargav65/Silent-Byte/internal/version.Version=v1.0.0'"
var Version = "dev"
