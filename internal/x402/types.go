package x402

import "context"

// ProtocolVersion is the x402 revision this client speaks.
const ProtocolVersion = 2

// PreferredTokenSymbol is the stable-value asset we select when a paywalled
// resource offers more than one payment option.
const PreferredTokenSymbol = "USDC"

// PaymentRequirement is the normalized internal shape of one accepted payment
// option, regardless of which wire schema version it came from.
type PaymentRequirement struct {
	// Destination is the address that must receive the payment (wire: payTo or to).
	Destination string `json:"destination"`
	// Amount is the human-readable display amount (e.g. "0.01").
	Amount string `json:"amount"`
	// RawAmount is the atomic-unit amount as an unsigned integer string
	// (e.g. "10000" for 0.01 with 6 decimals). Transfer instructions operate
	// on this value, never on Amount.
	RawAmount string `json:"raw_amount"`
	// Asset is the token mint address (wire: asset or token).
	Asset             string `json:"asset"`
	TokenSymbol       string `json:"token_symbol"`
	Network           string `json:"network"`
	Description       string `json:"description"`
	Scheme            string `json:"scheme"`
	MaxTimeoutSeconds int    `json:"max_timeout_seconds,omitempty"`
	// Extra is opaque passthrough data from the discovery response (e.g. a
	// facilitator fee-payer). It is echoed back in the proof envelope unmodified.
	Extra map[string]interface{} `json:"extra,omitempty"`
}

// VerificationResult is the facilitator's attestation of a settled payment.
type VerificationResult struct {
	Message      string                 `json:"message"`
	TxHash       string                 `json:"tx_hash"`
	ExplorerLink string                 `json:"solscan,omitempty"`
	Content      map[string]interface{} `json:"content,omitempty"`
}

// Fetcher performs a GET against a URL, optionally through a relay layer.
// Implementations must return the body even for non-2xx statuses so callers
// can inspect error payloads.
type Fetcher interface {
	Get(ctx context.Context, url string, headers map[string]string) (status int, body []byte, err error)
}
