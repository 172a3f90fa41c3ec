package x402

import "fmt"

// ProtocolError means the resource did not return a recognizable payment
// challenge. The attempt is unrecoverable; the user must retry later.
type ProtocolError struct {
	Message string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("x402 protocol error: %s", e.Message)
}

// VerificationError carries a non-2xx verdict from the facilitator. A 5xx
// status is a facilitator-side outage and safe to retry with the same proof;
// a 4xx is an explicit rejection of the proof itself. The underlying payment
// transaction may already be irreversible on-chain, so callers must never
// present this as "nothing happened".
type VerificationError struct {
	Status int
	Reason string
}

func (e *VerificationError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("payment verification failed (%d): %s", e.Status, e.Reason)
	}
	return fmt.Sprintf("payment verification failed (%d)", e.Status)
}

// NetworkError is a transport-level failure talking to the requirement
// endpoint or facilitator. Safe to retry manually.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("x402 %s: network error: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }
