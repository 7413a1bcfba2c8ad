/*

This file contains the types for effects, the outbound instructions a vault operation produces,
and the receipts recorded once an effect list has been handed to the executor.

*/

package types

import (
	"time"

	sdkmath "cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"
)

// EffectType defines the specific outbound instruction.
type EffectType string

const (
	EffectTokenTransfer      EffectType = "TOKEN_TRANSFER"       // CW20 transfer out of the vault
	EffectDelegate           EffectType = "DELEGATE"             // Stake native funds with the validator
	EffectUndelegate         EffectType = "UNDELEGATE"           // Unbond native funds from the validator
	EffectSetWithdrawAddress EffectType = "SET_WITHDRAW_ADDRESS" // Redirect future staking rewards
	EffectWithdrawRewards    EffectType = "WITHDRAW_REWARDS"     // Claim accumulated rewards
	EffectSwap               EffectType = "SWAP"                 // Convert a reward coin to the native denom
	EffectPayout             EffectType = "PAYOUT"               // Native transfer to a recipient
)

// Effect is a single outbound instruction. All effects of one operation are applied atomically.
type Effect struct {
	Type EffectType `json:"type"`

	// Fields for TOKEN_TRANSFER
	TokenContract Identity    `json:"token_contract,omitempty"`
	TokenAmount   sdkmath.Int `json:"token_amount,omitempty"`

	// Fields for TOKEN_TRANSFER and PAYOUT
	Recipient Identity `json:"recipient,omitempty"`

	// Fields for DELEGATE, UNDELEGATE and WITHDRAW_REWARDS
	Validator Identity `json:"validator,omitempty"`

	// Fields for DELEGATE, UNDELEGATE and PAYOUT
	Amount sdk.Coin `json:"amount,omitempty"`

	// Fields for SET_WITHDRAW_ADDRESS
	WithdrawAddress Identity `json:"withdraw_address,omitempty"`

	// Fields for SWAP
	OfferCoin sdk.Coin `json:"offer_coin,omitempty"`
	AskDenom  string   `json:"ask_denom,omitempty"`
}

// TransactionResult contains the outcome of submitting one effect list
type TransactionResult struct {
	TxHash       string `json:"tx_hash"`
	GasUsed      int64  `json:"gas_used"`
	GasWanted    int64  `json:"gas_wanted"`
	Broadcast    bool   `json:"broadcast"` // false for dry runs
	Success      bool   `json:"success"`
	ErrorMessage string `json:"error_message,omitempty"`
}

// OperationReceipt is the audit record of one inbound operation.
type OperationReceipt struct {
	ReceiptID  int64      `json:"receipt_id,omitempty"` // Auto-incremented by DB
	RequestID  string     `json:"request_id"`
	Operation  Operation  `json:"operation"`
	Sender     Identity   `json:"sender"`
	Success    bool       `json:"success"`
	ErrorClass ErrorClass `json:"error_class,omitempty"`
	Message    string     `json:"message,omitempty"`
	Effects    []Effect   `json:"effects"`
	TxHash     string     `json:"tx_hash,omitempty"`
	Timestamp  time.Time  `json:"timestamp"`
}
