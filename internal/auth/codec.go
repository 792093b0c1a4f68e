package auth

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// segmentDecoder only decodes base64url segments; it never verifies anything.
var segmentDecoder = jwt.NewParser(jwt.WithPaddingAllowed())

// Decode extracts the claims from a bearer token's payload segment.
//
// No signature verification happens here. The result is only fit for routing
// and display decisions; enforcement belongs to Manager.Verify or the backend.
// Any malformed input (segment count, base64, JSON) yields ok=false.
func Decode(token string) (Claims, bool) {
	parts := strings.Split(strings.TrimSpace(token), ".")
	if len(parts) != 3 || parts[1] == "" {
		return Claims{}, false
	}

	payload, err := segmentDecoder.DecodeSegment(parts[1])
	if err != nil {
		return Claims{}, false
	}
	payload = bytes.TrimSpace(payload)
	if len(payload) == 0 || payload[0] != '{' {
		return Claims{}, false
	}

	var c Claims
	if err := json.Unmarshal(payload, &c); err != nil {
		return Claims{}, false
	}
	return c, true
}
