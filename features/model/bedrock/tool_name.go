package bedrock

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// SanitizeToolName maps a canonical tool identifier such as "docs.search" to
// a Bedrock-compatible tool name. The mapping is deterministic: dots and any
// rune outside [a-zA-Z0-9_-] become '_', and names longer than 64 bytes are
// truncated with a stable hash suffix so distinct inputs stay distinct.
func SanitizeToolName(in string) string {
	const (
		maxLen  = 64
		hashLen = 8
	)
	sanitized := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
			return r
		default:
			return '_'
		}
	}, in)
	if len(sanitized) <= maxLen {
		return sanitized
	}
	sum := sha256.Sum256([]byte(in))
	return sanitized[:maxLen-hashLen-1] + "_" + hex.EncodeToString(sum[:])[:hashLen]
}
