package vault

import (
	sdkmath "cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/elys-network/stakevault/internal/types"
)

// purchaseEffects hands the bought tokens to the buyer, then stakes the whole deposit.
func purchaseEffects(cfg *types.VaultConfig, buyer types.Identity, buyable sdkmath.Int, deposit sdk.Coin) []types.Effect {
	return []types.Effect{
		{
			Type:          types.EffectTokenTransfer,
			TokenContract: cfg.TokenAddress,
			TokenAmount:   buyable,
			Recipient:     buyer,
		},
		{
			Type:      types.EffectDelegate,
			Validator: cfg.Validator,
			Amount:    deposit,
		},
	}
}

// withdrawRewardsEffects orders redirect and withdrawal before the swaps, and the payout last.
// Swaps follow the snapshot's reward order.
func withdrawRewardsEffects(cfg *types.VaultConfig, self types.Identity, rewards []sdk.Coin, nativeDenom string, payout sdkmath.Int) []types.Effect {
	effects := make([]types.Effect, 0, len(rewards)+3)
	effects = append(effects,
		types.Effect{Type: types.EffectSetWithdrawAddress, WithdrawAddress: self},
		types.Effect{Type: types.EffectWithdrawRewards, Validator: cfg.Validator},
	)
	for _, reward := range rewards {
		effects = append(effects, types.Effect{
			Type:      types.EffectSwap,
			OfferCoin: reward,
			AskDenom:  nativeDenom,
		})
	}
	effects = append(effects, types.Effect{
		Type:      types.EffectPayout,
		Recipient: cfg.Owner,
		Amount:    sdk.Coin{Denom: nativeDenom, Amount: payout},
	})
	return effects
}

func undelegationEffects(cfg *types.VaultConfig, nativeDenom string, amount sdkmath.Int) []types.Effect {
	return []types.Effect{{
		Type:      types.EffectUndelegate,
		Validator: cfg.Validator,
		Amount:    sdk.Coin{Denom: nativeDenom, Amount: amount},
	}}
}
