package vault

import (
	"context"
	"errors"
	"fmt"

	sdkmath "cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/elys-network/stakevault/internal/config"
	"github.com/elys-network/stakevault/internal/logger"
	"github.com/elys-network/stakevault/internal/types"
	"github.com/elys-network/stakevault/internal/utils"
)

var vaultLogger = logger.GetForComponent("vault_core")

// Options wires the core to its collaborators.
type Options struct {
	Store   ConfigStore
	Oracle  PriceOracle
	Staking StakingQuerier

	// Self is the vault's own account: token holder, delegator and reward withdraw address.
	Self        types.Identity
	NativeDenom string

	// StrictAmounts checks owner payouts and undelegations against what the chain reports.
	StrictAmounts bool
}

// Vault holds the business rules. Each operation either returns an ordered effect list or an
// error with no effects; applying the effects atomically is the host's job.
type Vault struct {
	store         ConfigStore
	oracle        PriceOracle
	staking       StakingQuerier
	self          types.Identity
	nativeDenom   string
	strictAmounts bool
}

func New(opts Options) (*Vault, error) {
	if opts.Store == nil || opts.Oracle == nil || opts.Staking == nil {
		return nil, fmt.Errorf("%w: store, oracle and staking querier are required", types.ErrInvalidConfig)
	}
	if opts.Self.IsEmpty() {
		return nil, fmt.Errorf("%w: vault address is required", types.ErrInvalidConfig)
	}
	denom := opts.NativeDenom
	if denom == "" {
		denom = config.DefaultNativeDenom
	}
	if err := sdk.ValidateDenom(denom); err != nil {
		return nil, errors.Join(types.ErrInvalidConfig, err)
	}
	return &Vault{
		store:         opts.Store,
		oracle:        opts.Oracle,
		staking:       opts.Staking,
		self:          opts.Self,
		nativeDenom:   denom,
		strictAmounts: opts.StrictAmounts,
	}, nil
}

func (v *Vault) Self() types.Identity { return v.self }

func (v *Vault) NativeDenom() string { return v.nativeDenom }

// Instantiate validates and persists the configuration singleton with the contract version.
func (v *Vault) Instantiate(ctx context.Context, msg types.InstantiateMsg) (*types.VaultConfig, error) {
	owner, err := types.NewIdentity(msg.Owner)
	if err != nil {
		return nil, fmt.Errorf("%w: owner: %w", types.ErrInvalidConfig, err)
	}
	oracle, err := types.NewIdentity(msg.OracleAddress)
	if err != nil {
		return nil, fmt.Errorf("%w: oracle_address: %w", types.ErrInvalidConfig, err)
	}
	token, err := types.NewIdentity(msg.TokenAddress)
	if err != nil {
		return nil, fmt.Errorf("%w: token_address: %w", types.ErrInvalidConfig, err)
	}
	validator, err := types.NewIdentity(msg.Validator)
	if err != nil {
		return nil, fmt.Errorf("%w: validator: %w", types.ErrInvalidConfig, err)
	}

	cfg := types.VaultConfig{
		Owner:           owner,
		OracleAddress:   oracle,
		TokenAddress:    token,
		Validator:       validator,
		ContractName:    config.ContractName,
		ContractVersion: config.ContractVersion,
	}
	if err := v.store.SaveVaultConfig(ctx, cfg); err != nil {
		return nil, err
	}

	vaultLogger.Info().
		Str("owner", owner.String()).
		Str("validator", validator.String()).
		Str("version", cfg.ContractVersion).
		Msg("Vault instantiated")
	return &cfg, nil
}

// Execute dispatches to the single operation named by msg.
func (v *Vault) Execute(ctx context.Context, info types.MessageInfo, msg types.ExecuteMsg) ([]types.Effect, error) {
	switch msg.Operation() {
	case types.OperationPurchase:
		return v.Purchase(ctx, info)
	case types.OperationWithdrawRewards:
		return v.WithdrawRewards(ctx, info.Sender, msg.WithdrawRewards.Amount)
	case types.OperationStartUndelegation:
		return v.StartUndelegation(ctx, info.Sender, msg.StartUndelegation.Amount)
	default:
		return nil, fmt.Errorf("%w: exactly one operation must be set", types.ErrInvalidRequest)
	}
}

// Purchase sells floor(deposit / price) tokens to the sender and stakes the deposit.
// Funds in other denoms are ignored; no native funds is a zero deposit.
func (v *Vault) Purchase(ctx context.Context, info types.MessageInfo) ([]types.Effect, error) {
	cfg, err := v.loadConfig(ctx)
	if err != nil {
		return nil, err
	}
	if info.Sender.IsEmpty() {
		return nil, types.ErrInvalidIdentity
	}

	deposit := utils.AmountOfDenom(info.Funds, v.nativeDenom)
	if err := validateAmount(deposit); err != nil {
		return nil, err
	}

	price, err := v.oracle.Price(ctx, cfg.OracleAddress)
	if err != nil {
		return nil, err
	}
	if !price.IsPositive() {
		return nil, types.ErrInvalidPrice
	}
	buyable := deposit.Quo(price)

	balance, err := v.oracle.TokenBalance(ctx, cfg.TokenAddress, v.self)
	if err != nil {
		return nil, err
	}
	if balance.LT(buyable) {
		vaultLogger.Warn().
			Str("buyer", info.Sender.String()).
			Str("buyable", buyable.String()).
			Str("inventory", balance.String()).
			Msg("Purchase rejected: not enough tokens in inventory")
		return nil, fmt.Errorf("%w: need %s, have %s", types.ErrInsufficientTokenInventory, buyable, balance)
	}

	vaultLogger.Info().
		Str("buyer", info.Sender.String()).
		Str("deposit", deposit.String()).
		Str("price", price.String()).
		Str("tokens", buyable.String()).
		Msg("Purchase accepted")
	return purchaseEffects(cfg, info.Sender, buyable, sdk.Coin{Denom: v.nativeDenom, Amount: deposit}), nil
}

// WithdrawRewards claims all rewards from the validator, swaps each reward denom into the
// native denom and pays amount to the owner. amount is not tied to the reward total unless
// strict amounts are enabled.
func (v *Vault) WithdrawRewards(ctx context.Context, caller types.Identity, amount sdkmath.Int) ([]types.Effect, error) {
	cfg, err := v.loadConfig(ctx)
	if err != nil {
		return nil, err
	}
	if err := authorize(cfg, caller); err != nil {
		return nil, err
	}
	if err := validateAmount(amount); err != nil {
		return nil, err
	}

	snapshot, err := v.snapshot(ctx, cfg)
	if err != nil {
		return nil, err
	}

	if v.strictAmounts {
		liquid, err := v.staking.LiquidBalance(ctx, v.self, v.nativeDenom)
		if err != nil {
			return nil, err
		}
		available := liquid.Add(utils.AmountOfDenom(snapshot.Rewards, v.nativeDenom))
		if amount.GT(available) {
			return nil, fmt.Errorf("%w: payout %s, available %s", types.ErrAmountExceedsAvailable, amount, available)
		}
	}

	vaultLogger.Info().
		Str("owner", caller.String()).
		Str("payout", amount.String()).
		Int("reward_denoms", len(snapshot.Rewards)).
		Msg("Reward withdrawal accepted")
	return withdrawRewardsEffects(cfg, v.self, snapshot.Rewards, v.nativeDenom, amount), nil
}

// StartUndelegation unbonds amount from the validator. Without strict amounts the stake is not queried.
func (v *Vault) StartUndelegation(ctx context.Context, caller types.Identity, amount sdkmath.Int) ([]types.Effect, error) {
	cfg, err := v.loadConfig(ctx)
	if err != nil {
		return nil, err
	}
	if err := authorize(cfg, caller); err != nil {
		return nil, err
	}
	if err := validateAmount(amount); err != nil {
		return nil, err
	}

	if v.strictAmounts {
		snapshot, err := v.snapshot(ctx, cfg)
		if err != nil {
			return nil, err
		}
		if amount.GT(snapshot.Staked.Amount) {
			return nil, fmt.Errorf("%w: undelegate %s, staked %s", types.ErrAmountExceedsAvailable, amount, snapshot.Staked.Amount)
		}
	}

	vaultLogger.Info().
		Str("owner", caller.String()).
		Str("amount", amount.String()).
		Str("validator", cfg.Validator.String()).
		Msg("Undelegation accepted")
	return undelegationEffects(cfg, v.nativeDenom, amount), nil
}

// Config returns the stored configuration.
func (v *Vault) Config(ctx context.Context) (*types.VaultConfig, error) {
	return v.loadConfig(ctx)
}

func (v *Vault) loadConfig(ctx context.Context) (*types.VaultConfig, error) {
	cfg, err := v.store.LoadVaultConfig(ctx)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		return nil, types.ErrConfigMissing
	}
	return cfg, nil
}

func (v *Vault) snapshot(ctx context.Context, cfg *types.VaultConfig) (*types.DelegationSnapshot, error) {
	snapshot, err := v.staking.Delegation(ctx, v.self, cfg.Validator)
	if err != nil {
		return nil, err
	}
	if snapshot == nil {
		return nil, fmt.Errorf("%w: validator %s", types.ErrNoActiveDelegation, cfg.Validator)
	}
	return snapshot, nil
}

func authorize(cfg *types.VaultConfig, caller types.Identity) error {
	if !caller.Equal(cfg.Owner) {
		vaultLogger.Warn().Str("caller", caller.String()).Msg("Rejected owner-only operation")
		return types.ErrUnauthorized
	}
	return nil
}

func validateAmount(amount sdkmath.Int) error {
	if err := utils.ValidateUint128(amount); err != nil {
		return errors.Join(types.ErrInvalidAmount, err)
	}
	return nil
}
