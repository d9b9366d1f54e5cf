// Package statuscheck runs a single health fetch from the command line and
// prints the cards the dashboard would show. It is meant for cron jobs and
// deploy checks.
package statuscheck

import "time"

// Config holds configuration for one check.
type Config struct {
	BackendURL string        // Origin serving GET /health
	APIKey     string        // Sent as x-api-key
	Timeout    time.Duration // Bound on the whole fetch
	JSON       bool          // Print cards as JSON instead of a table
	LogFile    string        // Optional rotated log file
	Verbose    bool          // Debug logging
}

// Exit codes.
const (
	ExitHealthy  = 0 // every service reported healthy
	ExitDegraded = 1 // at least one service unhealthy or unknown
	ExitFailed   = 2 // the fetch itself failed
	ExitUsage    = 3 // bad flags
)
