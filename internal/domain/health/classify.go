package health

import "strings"

// Class is the display bucket derived from a status string.
type Class string

// Status classes. Anything that is not explicitly healthy or unhealthy is
// Unknown, so a malformed status never shows as healthy.
const (
	Healthy   Class = "healthy"
	Unhealthy Class = "unhealthy"
	Unknown   Class = "unknown"
)

// Classify maps a status string onto a Class, ignoring case.
func Classify(status string) Class {
	switch strings.ToLower(status) {
	case "healthy":
		return Healthy
	case "unhealthy":
		return Unhealthy
	default:
		return Unknown
	}
}
