package x402

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/sirupsen/logrus"
)

// paymentSignatureHeader is the header carrying the proof envelope. Early
// protocol revisions were inconsistent about casing and some intermediaries
// normalize header names unpredictably, so both variants are always sent.
const paymentSignatureHeader = "PAYMENT-SIGNATURE"

// FacilitatorClient submits payment proofs to the third-party facilitator
// and interprets its verdict.
//
// Retries are never automatic: a caller holding the identical encoded proof
// may re-invoke Verify at any time; the call is idempotent on the facilitator
// side because the signed transaction bytes inside the proof are unchanged.
type FacilitatorClient struct {
	fetcher Fetcher
	log     *logrus.Entry
}

// NewFacilitatorClient creates a client that reaches the facilitator through
// the given Fetcher (usually the same relay the resolver uses).
func NewFacilitatorClient(fetcher Fetcher) *FacilitatorClient {
	return &FacilitatorClient{
		fetcher: fetcher,
		log:     logrus.WithField("component", "x402_facilitator"),
	}
}

// facilitatorResponse is the facilitator's reply, possibly wrapped by a relay
// that always answers 200 and reports the real status in upstreamStatus.
type facilitatorResponse struct {
	UpstreamStatus *int                   `json:"upstreamStatus,omitempty"`
	Message        string                 `json:"message"`
	TxHash         string                 `json:"tx_hash"`
	Solscan        string                 `json:"solscan"`
	Content        map[string]interface{} `json:"content"`
	Error          string                 `json:"error"`
	Hint           string                 `json:"hint"`
}

// effectiveStatus judges success from the relay-reported upstream status when
// present, never from the relay's own transport status.
func (r *facilitatorResponse) effectiveStatus(transportStatus int) int {
	if r.UpstreamStatus != nil {
		return *r.UpstreamStatus
	}
	return transportStatus
}

func (r *facilitatorResponse) reason() string {
	if r.Error != "" {
		return r.Error
	}
	return r.Hint
}

// Verify submits an encoded proof envelope (see EncodeProof) to the
// facilitator behind resourceURL.
//
// Returns VerificationError on explicit rejection and NetworkError on
// transport failure. On VerificationError the payment transaction may
// already be irreversible; callers must surface "payment sent, verification
// pending/failed", never "nothing happened".
func (c *FacilitatorClient) Verify(ctx context.Context, proof string, req *PaymentRequirement, resourceURL string) (*VerificationResult, error) {
	c.log.WithFields(logrus.Fields{
		"amount": req.Amount,
		"symbol": req.TokenSymbol,
	}).Info("📡 Submitting payment proof to facilitator")

	headers := map[string]string{
		paymentSignatureHeader: proof,
		"Payment-Signature":    proof,
	}

	result, verr, err := c.call(ctx, resourceURL, headers)
	if err != nil {
		return nil, err
	}
	if verr == nil {
		return result, nil
	}

	// Some relays strip custom headers. When the facilitator complains about
	// the missing header, retry once with the proof appended as a query
	// parameter. This is best-effort compatibility with unreliable relays,
	// not part of the stable facilitator protocol.
	if strings.Contains(verr.Reason, paymentSignatureHeader) {
		c.log.Warn("⚠️ Relay stripped payment header, retrying with query parameter")
		separator := "?"
		if strings.Contains(resourceURL, "?") {
			separator = "&"
		}
		fallbackURL := resourceURL + separator + "payment_signature=" + url.QueryEscape(proof)
		result, retryVerr, err := c.call(ctx, fallbackURL, headers)
		if err != nil {
			return nil, err
		}
		if retryVerr != nil {
			return nil, retryVerr
		}
		return result, nil
	}

	return nil, verr
}

// call performs one verification request. It separates transport failures
// (returned as error) from facilitator rejections (returned as *VerificationError)
// so Verify can decide whether the query-parameter fallback applies.
func (c *FacilitatorClient) call(ctx context.Context, targetURL string, headers map[string]string) (*VerificationResult, *VerificationError, error) {
	status, body, err := c.fetcher.Get(ctx, targetURL, headers)
	if err != nil {
		return nil, nil, &NetworkError{Op: "verify payment", Err: err}
	}

	var resp facilitatorResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, nil, &NetworkError{Op: "verify payment", Err: fmt.Errorf("unparseable facilitator response: %w", err)}
	}

	effective := resp.effectiveStatus(status)
	if effective < 200 || effective >= 300 {
		reason := resp.reason()
		c.log.WithFields(logrus.Fields{
			"status": effective,
			"reason": reason,
		}).Warn("Facilitator rejected payment proof")
		return nil, &VerificationError{Status: effective, Reason: reason}, nil
	}

	c.log.WithFields(logrus.Fields{
		"tx_hash": resp.TxHash,
	}).Info("✅ Facilitator verified payment")

	return &VerificationResult{
		Message:      resp.Message,
		TxHash:       resp.TxHash,
		ExplorerLink: resp.Solscan,
		Content:      resp.Content,
	}, nil, nil
}
