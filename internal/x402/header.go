package x402

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// resourceMimeType is fixed: paid content endpoints serve JSON.
const resourceMimeType = "application/json"

// PaymentProofEnvelope is the proof-of-payment structure carried in the
// PAYMENT-SIGNATURE header, asserting "this signed transaction satisfies
// these payment terms".
type PaymentProofEnvelope struct {
	X402Version int                `json:"x402Version"`
	Payload     ProofPayload       `json:"payload"`
	Resource    ResourceDescriptor `json:"resource"`
	Accepted    AcceptedTerms      `json:"accepted"`
}

// ProofPayload carries the signed transaction as opaque base64 bytes.
type ProofPayload struct {
	Transaction string `json:"transaction"`
}

// ResourceDescriptor identifies the paywalled resource the payment unlocks.
type ResourceDescriptor struct {
	URL         string `json:"url"`
	Description string `json:"description"`
	MimeType    string `json:"mimeType"`
}

// AcceptedTerms must echo exactly the PaymentRequirement used to build the
// underlying transaction, or the facilitator will reject the proof. Amount
// is the atomic-unit value.
type AcceptedTerms struct {
	Scheme            string                 `json:"scheme"`
	Network           string                 `json:"network"`
	Amount            string                 `json:"amount"`
	Asset             string                 `json:"asset"`
	PayTo             string                 `json:"payTo"`
	TokenSymbol       string                 `json:"tokenSymbol"`
	MaxTimeoutSeconds int                    `json:"maxTimeoutSeconds,omitempty"`
	Extra             map[string]interface{} `json:"extra,omitempty"`
}

// EncodeProof builds the base64(JSON) proof envelope for a signed payment
// transaction and the requirement it satisfies. The requirement's Extra map
// is passed through unmodified.
func EncodeProof(signedTxBase64 string, req *PaymentRequirement, resourceURL string) (string, error) {
	if req == nil {
		return "", fmt.Errorf("payment requirement is required")
	}

	envelope := PaymentProofEnvelope{
		X402Version: ProtocolVersion,
		Payload: ProofPayload{
			Transaction: signedTxBase64,
		},
		Resource: ResourceDescriptor{
			URL:         resourceURL,
			Description: req.Description,
			MimeType:    resourceMimeType,
		},
		Accepted: AcceptedTerms{
			Scheme:            req.Scheme,
			Network:           req.Network,
			Amount:            req.RawAmount,
			Asset:             req.Asset,
			PayTo:             req.Destination,
			TokenSymbol:       req.TokenSymbol,
			MaxTimeoutSeconds: req.MaxTimeoutSeconds,
			Extra:             req.Extra,
		},
	}

	data, err := json.Marshal(envelope)
	if err != nil {
		return "", fmt.Errorf("failed to marshal proof envelope: %w", err)
	}

	return base64.StdEncoding.EncodeToString(data), nil
}

// DecodeProof is the inverse of EncodeProof. It exists for debugging and
// inspection; correctness of the flow never depends on it.
func DecodeProof(header string) (*PaymentProofEnvelope, error) {
	data, err := base64.StdEncoding.DecodeString(header)
	if err != nil {
		return nil, fmt.Errorf("proof header is not valid base64: %w", err)
	}

	var envelope PaymentProofEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("proof header is not valid JSON: %w", err)
	}

	return &envelope, nil
}
