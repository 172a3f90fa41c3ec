package models

import (
	"time"
)

// MintAttemptState is the orchestration state machine position of a mint
// attempt - strictly following the WebSocket status design
type MintAttemptState string

const (
	StateIdle                 MintAttemptState = "idle"
	StateBuildingMintTx       MintAttemptState = "building_mint_tx"
	StateAwaitingMintSig      MintAttemptState = "awaiting_mint_signature"
	StateBroadcastingMint     MintAttemptState = "broadcasting_mint"
	StateMintConfirmed        MintAttemptState = "mint_confirmed"
	StateAttachingMetadata    MintAttemptState = "attaching_metadata"
	StateChoosingPaymentPath  MintAttemptState = "choosing_payment_path"
	StateNativeTransferFlow   MintAttemptState = "native_transfer_flow"
	StateTokenPaymentFlow     MintAttemptState = "token_payment_flow"
	StatePaymentConfirmed     MintAttemptState = "payment_confirmed"
	StateVerificationPending  MintAttemptState = "verification_pending"
	StateOnChainVerifyAttempt MintAttemptState = "onchain_verify_attempt"
	StateDone                 MintAttemptState = "done"
	StateFailed               MintAttemptState = "failed"
)

// StatusKind classifies a status update for presentation.
type StatusKind string

const (
	StatusPending StatusKind = "pending"
	StatusSuccess StatusKind = "success"
	StatusError   StatusKind = "error"
	StatusWarning StatusKind = "warning"
)

// PaymentPath names which settlement flow an attempt took.
type PaymentPath string

const (
	PaymentPathNative PaymentPath = "native"
	PaymentPathToken  PaymentPath = "token"
	PaymentPathNone   PaymentPath = "none"
)

// MintedMove is a registered dance move NFT.
type MintedMove struct {
	ID             string    `json:"id" gorm:"primaryKey"` // UUID
	Mint           string    `json:"mint" gorm:"uniqueIndex;size:64;not null"`
	Creator        string    `json:"creator" gorm:"index;size:64;not null"`
	Name           string    `json:"name" gorm:"size:128;not null"`
	Expression     string    `json:"expression" gorm:"type:text;not null"`
	RoyaltyPercent uint8     `json:"royalty_percent" gorm:"not null"`
	MetadataURI    string    `json:"metadata_uri" gorm:"type:text"`
	MintSignature  string    `json:"mint_signature" gorm:"size:96;not null"`

	PaymentPath      PaymentPath `json:"payment_path" gorm:"size:16;default:'none'"`
	PaymentSignature string      `json:"payment_signature" gorm:"size:96"`
	SettlementRef    string      `json:"settlement_ref" gorm:"size:96"`

	Verified        bool   `json:"verified" gorm:"default:false"`
	VerifySignature string `json:"verify_signature" gorm:"size:96"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// MintAttempt is the persisted record of one orchestration run. An attempt
// outlives the in-memory state machine so manual retries can resume it.
type MintAttempt struct {
	ID        string           `json:"id" gorm:"primaryKey"` // UUID
	Creator   string           `json:"creator" gorm:"index;size:64;not null"`
	MoveName  string           `json:"move_name" gorm:"size:128;not null"`
	Mint      string           `json:"mint" gorm:"index;size:64"`
	State     MintAttemptState `json:"state" gorm:"size:32;not null"`
	Status    string           `json:"status" gorm:"type:text"`
	Kind      StatusKind       `json:"kind" gorm:"size:16"`
	ErrorMsg  string           `json:"error_message" gorm:"type:text"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// RoyaltyEvent is a licensing payment observed by the chain webhook.
type RoyaltyEvent struct {
	ID          string    `json:"id" gorm:"primaryKey"` // UUID
	Mint        string    `json:"mint" gorm:"index;size:64;not null"`
	Creator     string    `json:"creator" gorm:"index;size:64;not null"`
	Payer       string    `json:"payer" gorm:"size:64"`
	Amount      string    `json:"amount" gorm:"size:32;not null"` // raw atomic units
	TokenSymbol string    `json:"token_symbol" gorm:"size:16"`
	TxSignature string    `json:"tx_signature" gorm:"uniqueIndex;size:96;not null"`
	ReceivedAt  time.Time `json:"received_at"`
	CreatedAt   time.Time `json:"created_at"`
}

// AdminUser is a backoffice operator account.
type AdminUser struct {
	ID           string    `json:"id" gorm:"primaryKey"` // UUID
	Username     string    `json:"username" gorm:"uniqueIndex;size:64;not null"`
	PasswordHash string    `json:"-" gorm:"size:128;not null"`
	TOTPSecret   string    `json:"-" gorm:"size:64"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
