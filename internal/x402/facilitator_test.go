package x402_test

import (
	"context"
	"strings"
	"testing"

	"moveregistry-backend/internal/x402"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedFetcher returns responses in sequence and records every call.
type scriptedFetcher struct {
	responses []fetcherResponse
	calls     []fetcherCall
}

type fetcherResponse struct {
	status int
	body   string
	err    error
}

type fetcherCall struct {
	url     string
	headers map[string]string
}

func (s *scriptedFetcher) Get(_ context.Context, url string, headers map[string]string) (int, []byte, error) {
	s.calls = append(s.calls, fetcherCall{url: url, headers: headers})
	idx := len(s.calls) - 1
	if idx >= len(s.responses) {
		idx = len(s.responses) - 1
	}
	r := s.responses[idx]
	return r.status, []byte(r.body), r.err
}

func TestVerify_Success(t *testing.T) {
	fetcher := &scriptedFetcher{responses: []fetcherResponse{
		{status: 200, body: `{"message":"paid","tx_hash":"SIG123","solscan":"https://solscan.io/tx/SIG123","content":{"k":"v"}}`},
	}}

	client := x402.NewFacilitatorClient(fetcher)
	result, err := client.Verify(context.Background(), "c2ln", sampleRequirement(), "https://pay.example/api/paid")
	require.NoError(t, err)

	assert.Equal(t, "SIG123", result.TxHash)
	assert.Equal(t, "paid", result.Message)

	// Both header case variants must be sent.
	require.Len(t, fetcher.calls, 1)
	headers := fetcher.calls[0].headers
	assert.NotEmpty(t, headers["PAYMENT-SIGNATURE"])
	assert.NotEmpty(t, headers["Payment-Signature"])
	assert.Equal(t, headers["PAYMENT-SIGNATURE"], headers["Payment-Signature"])
}

// A relay always answers 200 and reports the real status in upstreamStatus;
// the verdict must come from upstreamStatus, not the transport status.
func TestVerify_RelayEnvelope(t *testing.T) {
	t.Run("upstream success", func(t *testing.T) {
		fetcher := &scriptedFetcher{responses: []fetcherResponse{
			{status: 200, body: `{"upstreamStatus":200,"message":"ok","tx_hash":"SIG"}`},
		}}
		result, err := x402.NewFacilitatorClient(fetcher).Verify(context.Background(), "c2ln", sampleRequirement(), "u")
		require.NoError(t, err)
		assert.Equal(t, "SIG", result.TxHash)
	})

	t.Run("upstream failure behind 200 relay", func(t *testing.T) {
		fetcher := &scriptedFetcher{responses: []fetcherResponse{
			{status: 200, body: `{"upstreamStatus":500,"error":"settlement failed"}`},
		}}
		_, err := x402.NewFacilitatorClient(fetcher).Verify(context.Background(), "c2ln", sampleRequirement(), "u")
		require.Error(t, err)

		var verr *x402.VerificationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, 500, verr.Status)
		assert.Equal(t, "settlement failed", verr.Reason)
	})
}

func TestVerify_Rejection(t *testing.T) {
	fetcher := &scriptedFetcher{responses: []fetcherResponse{
		{status: 402, body: `{"error":"invalid proof"}`},
	}}

	_, err := x402.NewFacilitatorClient(fetcher).Verify(context.Background(), "c2ln", sampleRequirement(), "u")
	require.Error(t, err)

	var verr *x402.VerificationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Error(), "invalid proof")
}

func TestVerify_TransportFailure(t *testing.T) {
	fetcher := &scriptedFetcher{responses: []fetcherResponse{
		{err: assert.AnError},
	}}

	_, err := x402.NewFacilitatorClient(fetcher).Verify(context.Background(), "c2ln", sampleRequirement(), "u")
	require.Error(t, err)

	var nerr *x402.NetworkError
	assert.ErrorAs(t, err, &nerr)
}

// When the relay strips the payment header, the facilitator complains about
// the missing PAYMENT-SIGNATURE; the client retries once with the proof as a
// query parameter.
func TestVerify_QueryParameterFallback(t *testing.T) {
	fetcher := &scriptedFetcher{responses: []fetcherResponse{
		{status: 400, body: `{"error":"missing PAYMENT-SIGNATURE header"}`},
		{status: 200, body: `{"message":"paid","tx_hash":"SIG_FALLBACK"}`},
	}}

	result, err := x402.NewFacilitatorClient(fetcher).Verify(context.Background(), "c2ln", sampleRequirement(), "https://pay.example/api/paid")
	require.NoError(t, err)
	assert.Equal(t, "SIG_FALLBACK", result.TxHash)

	require.Len(t, fetcher.calls, 2)
	assert.Contains(t, fetcher.calls[1].url, "payment_signature=")
	assert.True(t, strings.HasPrefix(fetcher.calls[1].url, "https://pay.example/api/paid?"))
}

// Verify with identical inputs must be safe to invoke repeatedly: same
// envelope every time, no local state carried between calls.
func TestVerify_Idempotent(t *testing.T) {
	fetcher := &scriptedFetcher{responses: []fetcherResponse{
		{status: 500, body: `{"error":"temporarily unavailable"}`},
		{status: 200, body: `{"message":"paid","tx_hash":"SIG"}`},
	}}

	client := x402.NewFacilitatorClient(fetcher)
	req := sampleRequirement()

	_, err := client.Verify(context.Background(), "c2ln", req, "u")
	require.Error(t, err)

	result, err := client.Verify(context.Background(), "c2ln", req, "u")
	require.NoError(t, err)
	assert.Equal(t, "SIG", result.TxHash)

	// Identical proof header on both attempts.
	require.Len(t, fetcher.calls, 2)
	assert.Equal(t, fetcher.calls[0].headers["PAYMENT-SIGNATURE"], fetcher.calls[1].headers["PAYMENT-SIGNATURE"])
}
