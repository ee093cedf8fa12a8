// internal/domain/payment/signature_test.go
package payment

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerifySignatureRoundTrip(t *testing.T) {
	secret := "whsec_test_secret"
	payload := []byte(`{"type":"payment_intent.succeeded"}`)

	header := ComputeSignature(secret, time.Now().Unix(), payload)
	require.NoError(t, VerifySignature(secret, payload, header))
}

func TestVerifySignatureWrongSecret(t *testing.T) {
	payload := []byte(`{"type":"payment_intent.succeeded"}`)

	header := ComputeSignature("whsec_one", time.Now().Unix(), payload)
	err := VerifySignature("whsec_other", payload, header)
	require.Error(t, err)

	var perr *Error
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "payment_error", perr.Code)
}

func TestVerifySignatureTamperedPayload(t *testing.T) {
	secret := "whsec_test_secret"
	header := ComputeSignature(secret, time.Now().Unix(), []byte(`{"amount":100}`))

	err := VerifySignature(secret, []byte(`{"amount":99999}`), header)
	require.Error(t, err)
}

func TestVerifySignatureMalformedHeaders(t *testing.T) {
	secret := "whsec_test_secret"
	payload := []byte(`{}`)

	cases := map[string]string{
		"empty":            "",
		"missing v1":       "t=1700000000",
		"missing t":        "v1=deadbeef",
		"garbage":          "not-a-header",
		"bad timestamp":    "t=abc,v1=deadbeef",
		"non-hex sig only": "t=1700000000,v1=zzzz",
	}

	for name, header := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Error(t, VerifySignature(secret, payload, header))
		})
	}
}

func TestVerifySignatureAcceptsAnyValidV1(t *testing.T) {
	secret := "whsec_test_secret"
	payload := []byte(`{"ok":true}`)

	valid := ComputeSignature(secret, 1700000000, payload)
	// Providers may send several v1 entries during secret rotation.
	header := valid + ",v1=deadbeef"
	require.NoError(t, VerifySignature(secret, payload, header))
}
