package vault

import (
	"context"

	sdkmath "cosmossdk.io/math"

	"github.com/elys-network/stakevault/internal/types"
)

// ConfigStore persists the vault configuration singleton.
type ConfigStore interface {
	// LoadVaultConfig returns types.ErrConfigMissing when the vault was never instantiated.
	LoadVaultConfig(ctx context.Context) (*types.VaultConfig, error)

	// SaveVaultConfig returns types.ErrAlreadyInitialized on a second call.
	SaveVaultConfig(ctx context.Context, cfg types.VaultConfig) error
}

// PriceOracle abstracts the oracle contract and the token ledger's balance query.
// Implementations must not cache: every purchase needs a fresh quote.
type PriceOracle interface {
	// Price returns native units per token unit. Zero is returned as is.
	Price(ctx context.Context, oracle types.Identity) (sdkmath.Int, error)

	// TokenBalance returns holder's balance on the token ledger.
	TokenBalance(ctx context.Context, ledger, holder types.Identity) (sdkmath.Int, error)
}

// StakingQuerier reports delegation state for the vault.
type StakingQuerier interface {
	// Delegation returns nil, nil when no delegation exists.
	Delegation(ctx context.Context, delegator, validator types.Identity) (*types.DelegationSnapshot, error)

	// LiquidBalance returns holder's bank balance in denom.
	LiquidBalance(ctx context.Context, holder types.Identity, denom string) (sdkmath.Int, error)
}
