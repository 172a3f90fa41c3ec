package x402_test

import (
	"encoding/base64"
	"encoding/json"
	"testing"

	"moveregistry-backend/internal/x402"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRequirement() *x402.PaymentRequirement {
	return &x402.PaymentRequirement{
		Destination:       "DEST",
		Amount:            "0.01",
		RawAmount:         "10000",
		Asset:             "USDC_MINT",
		TokenSymbol:       "USDC",
		Network:           "solana-devnet",
		Description:       "paid content",
		Scheme:            "exact",
		MaxTimeoutSeconds: 60,
		Extra:             map[string]interface{}{"feePayer": "FACILITATOR_KEY"},
	}
}

func TestEncodeProof_RoundTrip(t *testing.T) {
	header, err := x402.EncodeProof("c2lnbmVkdHg=", sampleRequirement(), "https://pay.example/api/paid")
	require.NoError(t, err)

	envelope, err := x402.DecodeProof(header)
	require.NoError(t, err)

	assert.Equal(t, 2, envelope.X402Version)
	assert.Equal(t, "c2lnbmVkdHg=", envelope.Payload.Transaction)
	assert.Equal(t, "https://pay.example/api/paid", envelope.Resource.URL)
	// Accepted amount is always the atomic value.
	assert.Equal(t, "10000", envelope.Accepted.Amount)
	assert.Equal(t, "DEST", envelope.Accepted.PayTo)
	assert.Equal(t, "USDC_MINT", envelope.Accepted.Asset)
}

// The extra map is opaque passthrough; the codec must echo it back unmodified.
func TestEncodeProof_ExtraPassthrough(t *testing.T) {
	header, err := x402.EncodeProof("dHg=", sampleRequirement(), "u")
	require.NoError(t, err)

	envelope, err := x402.DecodeProof(header)
	require.NoError(t, err)
	assert.Equal(t, "FACILITATOR_KEY", envelope.Accepted.Extra["feePayer"])
}

func TestEncodeProof_Deterministic(t *testing.T) {
	a, err := x402.EncodeProof("dHg=", sampleRequirement(), "u")
	require.NoError(t, err)
	b, err := x402.EncodeProof("dHg=", sampleRequirement(), "u")
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestEncodeProof_IsBase64JSON(t *testing.T) {
	header, err := x402.EncodeProof("dHg=", sampleRequirement(), "u")
	require.NoError(t, err)

	data, err := base64.StdEncoding.DecodeString(header)
	require.NoError(t, err)
	assert.True(t, json.Valid(data))
}

func TestEncodeProof_NilRequirement(t *testing.T) {
	_, err := x402.EncodeProof("dHg=", nil, "u")
	assert.Error(t, err)
}

func TestDecodeProof_Invalid(t *testing.T) {
	_, err := x402.DecodeProof("%%% not base64 %%%")
	assert.Error(t, err)

	_, err = x402.DecodeProof(base64.StdEncoding.EncodeToString([]byte("not json")))
	assert.Error(t, err)
}
