package sso

import (
	"bytes"
	"encoding/json"
	"math"
	"strings"

	jwt "github.com/golang-jwt/jwt/v5"
)

// expClaim names the payload claim carrying the token lifetime.
const expClaim = "exp"

// segmentParser only decodes segments; it never verifies signatures.
var segmentParser = jwt.NewParser(jwt.WithPaddingAllowed())

// DecodeExpirySeconds returns the exp claim of a compact header.payload.signature
// token, interpreted as seconds until expiry.
//
// The signature is not verified. Tokens are expected to come straight from the
// login response of a trusted provider; do not use this on tokens received from
// anyone else.
func DecodeExpirySeconds(token string) (int64, error) {
	parts := strings.Split(token, ".")
	if len(parts) < 2 {
		return 0, newMalformedTokenError("missing payload segment", nil)
	}

	raw, err := segmentParser.DecodeSegment(parts[1])
	if err != nil {
		return 0, newMalformedTokenError("payload is not base64url", err)
	}

	decoder := json.NewDecoder(bytes.NewReader(raw))
	decoder.UseNumber()
	var payload map[string]any
	if err := decoder.Decode(&payload); err != nil {
		return 0, newMalformedTokenError("payload is not a JSON object", err)
	}

	value, ok := payload[expClaim]
	if !ok || value == nil {
		return 0, newMalformedTokenError("exp claim missing", nil)
	}
	number, ok := value.(json.Number)
	if !ok {
		return 0, newMalformedTokenError("exp claim is not numeric", nil)
	}
	return numberToInt64(number)
}

// numberToInt64 truncates fractional values toward zero.
func numberToInt64(n json.Number) (int64, error) {
	if i, err := n.Int64(); err == nil {
		return i, nil
	}
	f, err := n.Float64()
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f > math.MaxInt64 || f < math.MinInt64 {
		return 0, newMalformedTokenError("exp claim is out of range", err)
	}
	return int64(f), nil
}
