package staking

import (
	"context"
	"errors"
	"time"

	sdkmath "cosmossdk.io/math"
	banktypes "github.com/cosmos/cosmos-sdk/x/bank/types"
	distrtypes "github.com/cosmos/cosmos-sdk/x/distribution/types"
	stakingtypes "github.com/cosmos/cosmos-sdk/x/staking/types"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/elys-network/stakevault/internal/logger"
	"github.com/elys-network/stakevault/internal/types"
	"github.com/elys-network/stakevault/internal/utils"
)

var stakingLogger = logger.GetForComponent("staking_client")

// Client reads the vault's delegation state from the staking, distribution and bank modules.
type Client struct {
	staking      stakingtypes.QueryClient
	distribution distrtypes.QueryClient
	bank         banktypes.QueryClient
	timeout      time.Duration
}

func NewClient(staking stakingtypes.QueryClient, distribution distrtypes.QueryClient, bank banktypes.QueryClient, timeout time.Duration) *Client {
	return &Client{staking: staking, distribution: distribution, bank: bank, timeout: timeout}
}

// Delegation returns the delegator's stake and pending rewards with validator.
// A nil snapshot with a nil error means there is no delegation.
func (c *Client) Delegation(ctx context.Context, delegator, validator types.Identity) (*types.DelegationSnapshot, error) {
	qctx, cancel := c.withTimeout(ctx)
	defer cancel()

	delResp, err := c.staking.Delegation(qctx, &stakingtypes.QueryDelegationRequest{
		DelegatorAddr: delegator.String(),
		ValidatorAddr: validator.String(),
	})
	if err != nil {
		if status.Code(err) == codes.NotFound {
			stakingLogger.Debug().Str("delegator", delegator.String()).Str("validator", validator.String()).Msg("No delegation found")
			return nil, nil
		}
		stakingLogger.Error().Err(err).Str("validator", validator.String()).Msg("Delegation query failed")
		return nil, errors.Join(types.ErrStakingQueryFailed, err)
	}
	if delResp == nil || delResp.DelegationResponse == nil {
		return nil, nil
	}

	rqctx, rcancel := c.withTimeout(ctx)
	defer rcancel()

	rewardsResp, err := c.distribution.DelegationRewards(rqctx, &distrtypes.QueryDelegationRewardsRequest{
		DelegatorAddress: delegator.String(),
		ValidatorAddress: validator.String(),
	})
	if err != nil {
		stakingLogger.Error().Err(err).Str("validator", validator.String()).Msg("Delegation rewards query failed")
		return nil, errors.Join(types.ErrStakingQueryFailed, err)
	}
	if rewardsResp == nil {
		return nil, errors.Join(types.ErrStakingQueryFailed, errors.New("empty rewards response"))
	}

	snapshot := &types.DelegationSnapshot{
		Validator: validator,
		Staked:    delResp.DelegationResponse.Balance,
		Rewards:   utils.TruncateDecCoins(rewardsResp.Rewards),
	}

	stakingLogger.Debug().
		Str("validator", validator.String()).
		Str("staked", snapshot.Staked.String()).
		Int("reward_denoms", len(snapshot.Rewards)).
		Msg("Fetched delegation snapshot")
	return snapshot, nil
}

// LiquidBalance returns holder's bank balance of denom.
func (c *Client) LiquidBalance(ctx context.Context, holder types.Identity, denom string) (sdkmath.Int, error) {
	qctx, cancel := c.withTimeout(ctx)
	defer cancel()

	resp, err := c.bank.Balance(qctx, &banktypes.QueryBalanceRequest{Address: holder.String(), Denom: denom})
	if err != nil {
		return sdkmath.ZeroInt(), errors.Join(types.ErrStakingQueryFailed, err)
	}
	if resp == nil || resp.Balance == nil {
		return sdkmath.ZeroInt(), nil
	}
	return resp.Balance.Amount, nil
}

func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.timeout)
}
