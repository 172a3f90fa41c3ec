package anchor

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// Defaults for the devnet deployment; overridable via configuration.
const (
	DefaultProgramID = "Dp2JcVDt4seef6LbPCtoHiD5nrHkRUFHJdBPdCUTVeDQ"
	DefaultUSDCMint  = "4zMMC9srt5Ri5X14GAgXhaHii3GnPAEERYPJgZJDncDU"
)

// PDA seeds defined by the on-chain program.
var (
	treasurySeed  = []byte("treasury")
	skillDataSeed = []byte("skilldata")
)

// InvalidAddressError means a supplied identity string is not a valid
// address for the target network. Surfaced immediately, no retry.
type InvalidAddressError struct {
	Field   string
	Address string
	Err     error
}

func (e *InvalidAddressError) Error() string {
	return fmt.Sprintf("invalid %s address %q: %v", e.Field, e.Address, e.Err)
}

func (e *InvalidAddressError) Unwrap() error { return e.Err }

// ParseAddress validates a base58 address, wrapping failures with the field
// name so the caller can surface a user-actionable message.
func ParseAddress(field, address string) (solana.PublicKey, error) {
	key, err := solana.PublicKeyFromBase58(address)
	if err != nil {
		return solana.PublicKey{}, &InvalidAddressError{Field: field, Address: address, Err: err}
	}
	return key, nil
}

// Program holds the deployed program identity and the payment asset mint.
type Program struct {
	ID       solana.PublicKey
	USDCMint solana.PublicKey
}

// NewProgram parses the configured identifiers. Empty strings fall back to
// the devnet defaults.
func NewProgram(programID, usdcMint string) (*Program, error) {
	if programID == "" {
		programID = DefaultProgramID
	}
	if usdcMint == "" {
		usdcMint = DefaultUSDCMint
	}

	id, err := ParseAddress("program", programID)
	if err != nil {
		return nil, err
	}
	mint, err := ParseAddress("usdc mint", usdcMint)
	if err != nil {
		return nil, err
	}

	return &Program{ID: id, USDCMint: mint}, nil
}

// TreasuryPDA derives the treasury account: seeds = ["treasury"].
func (p *Program) TreasuryPDA() (solana.PublicKey, error) {
	addr, _, err := solana.FindProgramAddress([][]byte{treasurySeed}, p.ID)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("failed to derive treasury PDA: %w", err)
	}
	return addr, nil
}

// SkillDataPDA derives the skill record account for a given mint:
// seeds = ["skilldata", mint].
func (p *Program) SkillDataPDA(mint solana.PublicKey) (solana.PublicKey, error) {
	addr, _, err := solana.FindProgramAddress([][]byte{skillDataSeed, mint.Bytes()}, p.ID)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("failed to derive skill data PDA: %w", err)
	}
	return addr, nil
}
