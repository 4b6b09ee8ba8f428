package telemetry

import (
	"crypto/rand"
	"encoding/hex"
)

// generateHexString returns n random bytes hex-encoded, grounded on
// generate_hex_string.
func generateHexString(n int) string {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		panic(err)
	}
	return hex.EncodeToString(buf)
}

// GenerateTraceID returns a fresh 32-character OTLP trace id.
func GenerateTraceID() string {
	return generateHexString(16)
}

// GenerateSpanID returns a fresh 16-character OTLP span id.
func GenerateSpanID() string {
	return generateHexString(8)
}
