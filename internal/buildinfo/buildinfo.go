package buildinfo

import "time"

// Set via -ldflags at build time
var (
	Version    = "dev"
	BuildTime  string // when the binary was compiled
	CommitHash string // short git commit hash
)

// StartTime is recorded when the process starts
var StartTime = time.Now().UTC()

// Info returns the build description reported by /api/status
func Info() map[string]string {
	return map[string]string{
		"version":   Version,
		"buildTime": BuildTime,
		"commit":    CommitHash,
		"startedAt": StartTime.Format(time.RFC3339),
		"uptime":    time.Since(StartTime).Round(time.Second).String(),
	}
}
