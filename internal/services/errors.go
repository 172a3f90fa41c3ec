package services

import "fmt"

// InsufficientBalanceError means the creator's wallet cannot cover the
// required payment. Carries both sides so the status message can show them.
type InsufficientBalanceError struct {
	TokenSymbol string
	Required    string
	Available   string
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient %s balance: need %s, have %s", e.TokenSymbol, e.Required, e.Available)
}

// AccountMissingError means a required on-chain account (typically the
// creator's token account) does not exist yet.
type AccountMissingError struct {
	Account string
	Purpose string
}

func (e *AccountMissingError) Error() string {
	return fmt.Sprintf("%s account %s does not exist", e.Purpose, e.Account)
}

// SignatureRejectedError means the creator declined to sign in their wallet.
// Terminal for the attempt; never retried automatically.
type SignatureRejectedError struct {
	Step string
}

func (e *SignatureRejectedError) Error() string {
	return fmt.Sprintf("wallet signature rejected during %s", e.Step)
}
