package httpapi

import "time"

// maxBodyBytes bounds JSON request bodies. Audio and images travel inline as
// base64, so the default is larger than a plain text API would need.
var maxBodyBytes int64 = 16 << 20

// SetMaxBodyBytes sets the request body limit; non-positive restores 16 MiB.
func SetMaxBodyBytes(n int64) {
	if n <= 0 {
		maxBodyBytes = 16 << 20
		return
	}
	maxBodyBytes = n
}

// sessionTimeout caps how long one session may run. Zero means no limit
// beyond server and connection timeouts.
var sessionTimeout time.Duration

// SetSessionTimeout sets the per-session limit (negative disables).
func SetSessionTimeout(d time.Duration) {
	if d < 0 {
		d = 0
	}
	sessionTimeout = d
}

// CORS configuration (opt-in). If disabled, no CORS middleware is added.
var (
	corsEnabled        bool
	corsAllowedOrigins []string
	corsAllowedMethods []string
	corsAllowedHeaders []string
)

// SetCORSOptions configures CORS behavior for the HTTP server.
func SetCORSOptions(enabled bool, origins, methods, headers []string) {
	corsEnabled = enabled
	corsAllowedOrigins = append([]string(nil), origins...)
	corsAllowedMethods = append([]string(nil), methods...)
	corsAllowedHeaders = append([]string(nil), headers...)
}
