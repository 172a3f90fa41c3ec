package x402

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"regexp"
	"strings"

	"github.com/sirupsen/logrus"
)

// assetDecimals is implied by the stable-value asset (USDC on the target
// ledger uses 6 decimal places). Pure-digit amounts from the server are
// already scaled to atomic units and are divided by 10^assetDecimals for
// display only.
const assetDecimals = 6

var digitsOnly = regexp.MustCompile(`^\d+$`)

// wireOption is one payment option as it appears on the wire. Both the legacy
// and current field names are present; normalization maps them onto the
// internal PaymentRequirement shape.
type wireOption struct {
	PayTo             string                 `json:"payTo"` // current
	To                string                 `json:"to"`    // legacy
	Asset             string                 `json:"asset"` // current
	Token             string                 `json:"token"` // legacy
	Amount            string                 `json:"amount"`
	TokenSymbol       string                 `json:"tokenSymbol"`
	Network           string                 `json:"network"`
	Description       string                 `json:"description"`
	Scheme            string                 `json:"scheme"`
	MaxTimeoutSeconds int                    `json:"maxTimeoutSeconds"`
	Extra             map[string]interface{} `json:"extra"`
}

// challengeSchema identifies which historical response shape the server sent.
type challengeSchema int

const (
	schemaUnknown challengeSchema = iota
	schemaV1                      // {"x402": {"accepts": [...], "network": ...}}
	schemaV2                      // {"accepts": [...]}
)

// wireChallenge is the union of both known payment-challenge shapes.
type wireChallenge struct {
	X402 *struct {
		Accepts []wireOption `json:"accepts"`
		Network string       `json:"network"`
	} `json:"x402"`
	Accepts []wireOption `json:"accepts"`
}

func (c *wireChallenge) schema() challengeSchema {
	switch {
	case c.X402 != nil:
		return schemaV1
	case c.Accepts != nil:
		return schemaV2
	default:
		return schemaUnknown
	}
}

func (c *wireChallenge) options() []wireOption {
	if c.schema() == schemaV1 {
		return c.X402.Accepts
	}
	return c.Accepts
}

// defaultNetwork is the fallback network label when neither the option nor
// the v1 wrapper carries one.
func (c *wireChallenge) defaultNetwork() string {
	if c.schema() == schemaV1 && c.X402.Network != "" {
		return c.X402.Network
	}
	return "solana-devnet"
}

// RequirementResolver discovers payment requirements from a paywalled resource.
type RequirementResolver struct {
	fetcher Fetcher
	log     *logrus.Entry
}

// NewRequirementResolver creates a resolver that fetches through the given
// Fetcher (usually a relay client, since the paywalled resource rarely
// allows direct browser-origin requests).
func NewRequirementResolver(fetcher Fetcher) *RequirementResolver {
	return &RequirementResolver{
		fetcher: fetcher,
		log:     logrus.WithField("component", "x402_resolver"),
	}
}

// FetchRequirements performs protocol discovery against resourceURL and
// returns the selected payment option normalized to the internal shape.
//
// The response signals "payment required" either via HTTP 402 or via the
// nested x402 marker (when a relay rewrites the status). Both historical
// schema shapes are accepted. Selection prefers the stable-value asset and
// otherwise falls back to the first offer in server order.
func (r *RequirementResolver) FetchRequirements(ctx context.Context, resourceURL string) (*PaymentRequirement, error) {
	status, body, err := r.fetcher.Get(ctx, resourceURL, nil)
	if err != nil {
		return nil, &NetworkError{Op: "fetch requirements", Err: err}
	}

	var challenge wireChallenge
	if err := json.Unmarshal(body, &challenge); err != nil {
		return nil, &ProtocolError{Message: fmt.Sprintf("unparseable payment challenge: %v", err)}
	}

	schema := challenge.schema()
	if schema == schemaUnknown && status != http.StatusPaymentRequired {
		preview := string(body)
		if len(preview) > 200 {
			preview = preview[:200]
		}
		return nil, &ProtocolError{Message: fmt.Sprintf("expected x402 payment data, got %d: %s", status, preview)}
	}

	opts := challenge.options()
	if len(opts) == 0 {
		return nil, &ProtocolError{Message: "no payment options returned from x402 endpoint"}
	}

	opt := selectOption(opts)
	req := normalizeOption(opt, challenge.defaultNetwork())

	r.log.WithFields(logrus.Fields{
		"schema":      schema,
		"destination": req.Destination,
		"raw_amount":  req.RawAmount,
		"asset":       req.Asset,
		"symbol":      req.TokenSymbol,
	}).Info("💳 Payment requirement discovered")

	return req, nil
}

// selectOption prefers the designated stable-value asset; otherwise the first
// offer in server order (deterministic, never re-sorted).
func selectOption(opts []wireOption) wireOption {
	for _, o := range opts {
		if o.TokenSymbol == PreferredTokenSymbol {
			return o
		}
	}
	return opts[0]
}

func normalizeOption(o wireOption, fallbackNetwork string) *PaymentRequirement {
	dest := o.PayTo
	if dest == "" {
		dest = o.To
	}
	asset := o.Asset
	if asset == "" {
		asset = o.Token
	}
	symbol := o.TokenSymbol
	if symbol == "" {
		symbol = PreferredTokenSymbol
	}
	network := o.Network
	if network == "" {
		network = fallbackNetwork
	}
	scheme := o.Scheme
	if scheme == "" {
		scheme = "exact"
	}
	description := o.Description
	if description == "" && o.Extra != nil {
		if d, ok := o.Extra["description"].(string); ok {
			description = d
		}
	}

	human, raw := NormalizeAmount(o.Amount)

	return &PaymentRequirement{
		Destination:       dest,
		Amount:            human,
		RawAmount:         raw,
		Asset:             asset,
		TokenSymbol:       symbol,
		Network:           network,
		Description:       description,
		Scheme:            scheme,
		MaxTimeoutSeconds: o.MaxTimeoutSeconds,
		Extra:             o.Extra,
	}
}

// NormalizeAmount splits a wire amount into a human display value and an
// atomic-unit value.
//
// A pure-digit string with no decimal point is already scaled to atomic
// units: it is kept as the raw value and divided by 10^6 for display. An
// already-decimal string is treated as the display value and scaled up to
// atomic units. Anything else passes through unchanged on both sides.
func NormalizeAmount(amount string) (human string, raw string) {
	if amount == "" {
		return "", ""
	}

	if digitsOnly.MatchString(amount) {
		n, ok := new(big.Int).SetString(amount, 10)
		if !ok {
			return amount, amount
		}
		r := new(big.Rat).SetFrac(n, big.NewInt(1_000_000))
		return trimDecimal(r.FloatString(assetDecimals)), amount
	}

	// Already-decimal display value: derive atomic units when parseable.
	if r, ok := new(big.Rat).SetString(amount); ok {
		scaled := new(big.Rat).Mul(r, new(big.Rat).SetInt64(1_000_000))
		if scaled.IsInt() {
			return amount, scaled.Num().String()
		}
	}

	return amount, amount
}

func trimDecimal(s string) string {
	if !strings.Contains(s, ".") {
		return s
	}
	s = strings.TrimRight(s, "0")
	return strings.TrimSuffix(s, ".")
}
