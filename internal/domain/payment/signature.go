// internal/domain/payment/signature.go
package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
)

// VerifySignature checks a webhook signature header of the form
// "t=<unix>,v1=<hex hmac>" against the raw payload. The signed message is
// "<t>.<payload>" keyed with the shared webhook secret.
func VerifySignature(secret string, payload []byte, header string) error {
	if header == "" {
		return newError("missing signature header")
	}

	var timestamp string
	var signatures []string
	for _, part := range strings.Split(header, ",") {
		kv := strings.SplitN(strings.TrimSpace(part), "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch kv[0] {
		case "t":
			timestamp = kv[1]
		case "v1":
			signatures = append(signatures, kv[1])
		}
	}

	if timestamp == "" || len(signatures) == 0 {
		return newError("malformed signature header")
	}
	if _, err := strconv.ParseInt(timestamp, 10, 64); err != nil {
		return newError("malformed signature timestamp")
	}

	expected := signPayload(secret, timestamp, payload)
	for _, sig := range signatures {
		provided, err := hex.DecodeString(sig)
		if err != nil {
			continue
		}
		if hmac.Equal(provided, expected) {
			return nil
		}
	}
	return newError("signature mismatch")
}

// ComputeSignature builds a signature header for a payload, as the provider
// would. Exposed for webhook delivery tests.
func ComputeSignature(secret string, timestamp int64, payload []byte) string {
	ts := strconv.FormatInt(timestamp, 10)
	return fmt.Sprintf("t=%s,v1=%s", ts, hex.EncodeToString(signPayload(secret, ts, payload)))
}

func signPayload(secret, timestamp string, payload []byte) []byte {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write(payload)
	return mac.Sum(nil)
}
