package nl2sparql

// Version information, overridden at build time with -ldflags "-X".
var (
	// Version is the module version
	Version = "development"

	// BuildDate is set during build time
	BuildDate = "development"

	// GitCommit is set during build time
	GitCommit = "unknown"
)
