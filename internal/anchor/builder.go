package anchor

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// PendingSigner is one signature slot of a built transaction. Slots with a
// private key are applied locally by PartialSign; a nil key marks a
// signature that must come from the external wallet.
type PendingSigner struct {
	PublicKey  solana.PublicKey
	PrivateKey *solana.PrivateKey
}

// BuiltTransaction is an unsigned transaction plus its ordered signature
// plan. Local one-time keys come first and the external wallet last; the
// caller applies PartialSign before handing the transaction to the wallet,
// and the network rejects any other ordering.
type BuiltTransaction struct {
	Tx             *solana.Transaction
	PendingSigners []PendingSigner
}

// PartialSign applies every locally-held key in plan order. Slots without a
// private key are left for the external signer.
func (b *BuiltTransaction) PartialSign() error {
	_, err := b.Tx.PartialSign(func(key solana.PublicKey) *solana.PrivateKey {
		for _, s := range b.PendingSigners {
			if s.PublicKey.Equals(key) && s.PrivateKey != nil {
				return s.PrivateKey
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to partially sign transaction: %w", err)
	}
	return nil
}

// BuildTransaction assembles an unsigned transaction from instructions, a
// fee payer, and a recent blockhash bounding the validity window. Pure
// assembly; no network I/O. Local one-time wallets, when present, are
// queued ahead of the external fee payer in the signature plan.
func BuildTransaction(instructions []solana.Instruction, feePayer solana.PublicKey, recentBlockhash solana.Hash, localSigners ...*solana.Wallet) (*BuiltTransaction, error) {
	tx, err := solana.NewTransaction(instructions, recentBlockhash, solana.TransactionPayer(feePayer))
	if err != nil {
		return nil, fmt.Errorf("failed to assemble transaction: %w", err)
	}

	pending := make([]PendingSigner, 0, len(localSigners)+1)
	for _, w := range localSigners {
		key := w.PrivateKey
		pending = append(pending, PendingSigner{PublicKey: w.PublicKey(), PrivateKey: &key})
	}
	pending = append(pending, PendingSigner{PublicKey: feePayer})

	return &BuiltTransaction{Tx: tx, PendingSigners: pending}, nil
}

// MintSkillBuild is the result of building a mint transaction: the two-signer
// transaction, the one-time mint identity generated for this attempt, and
// the derived program accounts.
type MintSkillBuild struct {
	Built       *BuiltTransaction
	MintWallet  *solana.Wallet
	SkillPDA    solana.PublicKey
	TreasuryPDA solana.PublicKey
}

// BuildMintSkillTransaction builds a mintSkill transaction for the creator.
//
// A fresh mint keypair is generated per attempt and never reused: the skill
// record address is derived from it, so reuse would collide on-chain. The
// caller must apply the local mint signature (Built.PartialSign) before the
// creator signs through the external wallet.
func (p *Program) BuildMintSkillTransaction(creator solana.PublicKey, skillName, expression string, royaltyPercent uint8, recentBlockhash solana.Hash) (*MintSkillBuild, error) {
	mintWallet := solana.NewWallet()

	treasuryPDA, err := p.TreasuryPDA()
	if err != nil {
		return nil, err
	}
	skillPDA, err := p.SkillDataPDA(mintWallet.PublicKey())
	if err != nil {
		return nil, err
	}

	data, err := EncodeInstruction("mintSkill", MintSkillArgs, map[string]interface{}{
		"skillName":      skillName,
		"expression":     expression,
		"royaltyPercent": royaltyPercent,
	})
	if err != nil {
		return nil, err
	}

	accounts := solana.AccountMetaSlice{
		solana.NewAccountMeta(creator, true, true),
		solana.NewAccountMeta(mintWallet.PublicKey(), true, true),
		solana.NewAccountMeta(treasuryPDA, false, false),
		solana.NewAccountMeta(skillPDA, true, false),
		solana.NewAccountMeta(solana.SystemProgramID, false, false),
		solana.NewAccountMeta(solana.TokenProgramID, false, false),
		solana.NewAccountMeta(p.USDCMint, true, false),
	}

	instruction := solana.NewInstruction(p.ID, accounts, data)

	built, err := BuildTransaction([]solana.Instruction{instruction}, creator, recentBlockhash, mintWallet)
	if err != nil {
		return nil, err
	}

	return &MintSkillBuild{
		Built:       built,
		MintWallet:  mintWallet,
		SkillPDA:    skillPDA,
		TreasuryPDA: treasuryPDA,
	}, nil
}

// BuildVerifySkillTransaction builds a verifySkill transaction marking the
// skill record as verified. The optional settlement reference is attached as
// a memo so the facilitator's attestation is auditable on-chain.
func (p *Program) BuildVerifySkillTransaction(verifier, skillPDA solana.PublicKey, settlementRef string, recentBlockhash solana.Hash) (*BuiltTransaction, error) {
	data, err := EncodeInstruction("verifySkill", VerifySkillArgs, nil)
	if err != nil {
		return nil, err
	}

	accounts := solana.AccountMetaSlice{
		solana.NewAccountMeta(verifier, true, true),
		solana.NewAccountMeta(skillPDA, true, false),
	}

	instructions := []solana.Instruction{
		solana.NewInstruction(p.ID, accounts, data),
	}

	if settlementRef != "" {
		memo := solana.NewInstruction(
			solana.MemoProgramID,
			solana.AccountMetaSlice{solana.NewAccountMeta(verifier, false, true)},
			[]byte(settlementRef),
		)
		instructions = append(instructions, memo)
	}

	return BuildTransaction(instructions, verifier, recentBlockhash)
}
