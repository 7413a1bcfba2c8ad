/*

This file contains the persisted vault configuration, the inbound operation messages and the
read-only views returned by the oracle and staking adapters.

*/

package types

import (
	"time"

	sdkmath "cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"
)

// VaultConfig is the singleton written once at instantiation.
type VaultConfig struct {
	Owner           Identity  `json:"owner"`
	OracleAddress   Identity  `json:"oracle_address"`
	TokenAddress    Identity  `json:"token_address"`
	Validator       Identity  `json:"validator"` // One validator per vault, for its whole lifetime
	ContractName    string    `json:"contract_name,omitempty"`
	ContractVersion string    `json:"contract_version,omitempty"`
	CreatedAt       time.Time `json:"created_at,omitempty"`
}

// Validate checks that every identity is set.
func (c VaultConfig) Validate() error {
	for _, id := range []Identity{c.Owner, c.OracleAddress, c.TokenAddress, c.Validator} {
		if id.IsEmpty() {
			return ErrInvalidConfig
		}
	}
	return nil
}

type InstantiateMsg struct {
	Owner         string `json:"owner"`
	OracleAddress string `json:"oracle_address"`
	TokenAddress  string `json:"token_address"`
	Validator     string `json:"validator"`
}

// ExecuteMsg carries exactly one operation.
type ExecuteMsg struct {
	Purchase          *Purchase          `json:"purchase,omitempty"`
	WithdrawRewards   *WithdrawRewards   `json:"withdraw_rewards,omitempty"`
	StartUndelegation *StartUndelegation `json:"start_undelegation,omitempty"`
}

type Purchase struct{}

type WithdrawRewards struct {
	Amount sdkmath.Int `json:"amount"`
}

type StartUndelegation struct {
	Amount sdkmath.Int `json:"amount"`
}

type Operation string

const (
	OperationInstantiate       Operation = "instantiate"
	OperationPurchase          Operation = "purchase"
	OperationWithdrawRewards   Operation = "withdraw_rewards"
	OperationStartUndelegation Operation = "start_undelegation"
	OperationUnknown           Operation = "unknown"
)

// Operation names the single variant that is set, or OperationUnknown when zero or several are.
func (m ExecuteMsg) Operation() Operation {
	set := 0
	op := OperationUnknown
	if m.Purchase != nil {
		set++
		op = OperationPurchase
	}
	if m.WithdrawRewards != nil {
		set++
		op = OperationWithdrawRewards
	}
	if m.StartUndelegation != nil {
		set++
		op = OperationStartUndelegation
	}
	if set != 1 {
		return OperationUnknown
	}
	return op
}

// MessageInfo is what the host knows about the caller of an operation. Sender is derived from
// the request signature. Funds are only ever filled from a verified deposit transaction.
type MessageInfo struct {
	Sender    Identity   `json:"sender"`
	Funds     []sdk.Coin `json:"funds"`
	DepositTx string     `json:"deposit_tx,omitempty"`
}

// DelegationSnapshot is the vault's stake with its validator. Rewards keep the order
// reported by the staking module.
type DelegationSnapshot struct {
	Validator Identity   `json:"validator"`
	Staked    sdk.Coin   `json:"staked"`
	Rewards   []sdk.Coin `json:"rewards"`
}
