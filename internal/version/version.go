// Package version holds the build version of memguard
package version

// Version is overridden at build time with -ldflags "-X memguard/internal/version.Version=..."
var Version = "dev"
