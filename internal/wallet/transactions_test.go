package wallet

import (
	"context"
	"errors"
	"testing"

	sdkmath "cosmossdk.io/math"
	wasmtypes "github.com/CosmWasm/wasmd/x/wasm/types"
	sdk "github.com/cosmos/cosmos-sdk/types"
	banktypes "github.com/cosmos/cosmos-sdk/x/bank/types"
	distrtypes "github.com/cosmos/cosmos-sdk/x/distribution/types"
	stakingtypes "github.com/cosmos/cosmos-sdk/x/staking/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elys-network/stakevault/internal/types"
)

const (
	vaultAddr  = "terra1vault"
	routerAddr = "terra1router"
)

func coin(denom string, amount int64) sdk.Coin {
	return sdk.NewCoin(denom, sdkmath.NewInt(amount))
}

func withdrawEffects() []types.Effect {
	return []types.Effect{
		{Type: types.EffectSetWithdrawAddress, WithdrawAddress: vaultAddr},
		{Type: types.EffectWithdrawRewards, Validator: "terravaloper1v"},
		{Type: types.EffectSwap, OfferCoin: coin("ukrw", 50), AskDenom: "uluna"},
		{Type: types.EffectPayout, Recipient: "terra1owner", Amount: coin("uluna", 100)},
	}
}

func TestBuildMsgs_Purchase(t *testing.T) {
	msgs, err := BuildMsgs([]types.Effect{
		{Type: types.EffectTokenTransfer, TokenContract: "terra1token", TokenAmount: sdkmath.NewInt(4), Recipient: "terra1buyer"},
		{Type: types.EffectDelegate, Validator: "terravaloper1v", Amount: coin("uluna", 23)},
	}, vaultAddr, routerAddr)
	require.NoError(t, err)
	require.Len(t, msgs, 2)

	transfer, ok := msgs[0].(*wasmtypes.MsgExecuteContract)
	require.True(t, ok)
	assert.Equal(t, vaultAddr, transfer.Sender)
	assert.Equal(t, "terra1token", transfer.Contract)
	assert.JSONEq(t, `{"transfer":{"recipient":"terra1buyer","amount":"4"}}`, string(transfer.Msg))
	assert.Empty(t, transfer.Funds)

	delegate, ok := msgs[1].(*stakingtypes.MsgDelegate)
	require.True(t, ok)
	assert.Equal(t, vaultAddr, delegate.DelegatorAddress)
	assert.Equal(t, "terravaloper1v", delegate.ValidatorAddress)
	assert.Equal(t, coin("uluna", 23), delegate.Amount)
}

func TestBuildMsgs_WithdrawRewardsKeepsOrder(t *testing.T) {
	msgs, err := BuildMsgs(withdrawEffects(), vaultAddr, routerAddr)
	require.NoError(t, err)
	require.Len(t, msgs, 4)

	redirect := msgs[0].(*distrtypes.MsgSetWithdrawAddress)
	assert.Equal(t, vaultAddr, redirect.WithdrawAddress)

	withdraw := msgs[1].(*distrtypes.MsgWithdrawDelegatorReward)
	assert.Equal(t, "terravaloper1v", withdraw.ValidatorAddress)

	swap := msgs[2].(*wasmtypes.MsgExecuteContract)
	assert.Equal(t, routerAddr, swap.Contract)
	assert.JSONEq(t, `{"swap":{"offer_coin":{"denom":"ukrw","amount":"50"},"ask_denom":"uluna"}}`, string(swap.Msg))
	assert.Equal(t, sdk.Coins{coin("ukrw", 50)}, swap.Funds)

	payout := msgs[3].(*banktypes.MsgSend)
	assert.Equal(t, "terra1owner", payout.ToAddress)
	assert.Equal(t, sdk.Coins{coin("uluna", 100)}, payout.Amount)
}

func TestBuildMsgs_Undelegate(t *testing.T) {
	msgs, err := BuildMsgs([]types.Effect{{Type: types.EffectUndelegate, Validator: "terravaloper1v", Amount: coin("uluna", 7)}}, vaultAddr, "")
	require.NoError(t, err)
	undelegate := msgs[0].(*stakingtypes.MsgUndelegate)
	assert.Equal(t, coin("uluna", 7), undelegate.Amount)
}

func TestBuildMsgs_Errors(t *testing.T) {
	_, err := BuildMsgs(withdrawEffects(), vaultAddr, "")
	assert.ErrorIs(t, err, ErrNoSwapRouter)

	_, err = BuildMsgs([]types.Effect{{Type: "MINT"}}, vaultAddr, routerAddr)
	assert.ErrorIs(t, err, ErrUnknownEffect)

	_, err = BuildMsgs([]types.Effect{{Type: types.EffectDelegate, Amount: coin("uluna", 1)}}, vaultAddr, routerAddr)
	assert.ErrorIs(t, err, ErrInvalidEffect)
}

type fakeSigner struct {
	resp *sdk.TxResponse
	err  error
	msgs []sdk.Msg
	txs  int
}

func (f *fakeSigner) SignAndBroadcastTx(_ context.Context, msgs ...sdk.Msg) (*sdk.TxResponse, error) {
	f.txs++
	f.msgs = msgs
	return f.resp, f.err
}

func TestExecutor_SubmitsOneTransaction(t *testing.T) {
	signer := &fakeSigner{resp: &sdk.TxResponse{TxHash: "ABC", GasUsed: 90, GasWanted: 100}}
	result, err := NewExecutor(signer, vaultAddr, routerAddr).Submit(context.Background(), withdrawEffects())
	require.NoError(t, err)

	assert.Equal(t, 1, signer.txs)
	assert.Len(t, signer.msgs, 4)
	assert.True(t, result.Broadcast)
	assert.True(t, result.Success)
	assert.Equal(t, "ABC", result.TxHash)
	assert.Equal(t, int64(90), result.GasUsed)
}

func TestExecutor_Rejected(t *testing.T) {
	signer := &fakeSigner{resp: &sdk.TxResponse{TxHash: "DEF", Code: 5, RawLog: "insufficient funds"}}
	result, err := NewExecutor(signer, vaultAddr, routerAddr).Submit(context.Background(), withdrawEffects())
	assert.ErrorIs(t, err, types.ErrTxRejected)
	require.NotNil(t, result)
	assert.False(t, result.Success)
	assert.Equal(t, "insufficient funds", result.ErrorMessage)
}

func TestExecutor_BroadcastFailure(t *testing.T) {
	signer := &fakeSigner{err: errors.Join(ErrTxBroadcastFailed, errors.New("connection reset"))}
	_, err := NewExecutor(signer, vaultAddr, routerAddr).Submit(context.Background(), withdrawEffects())
	assert.ErrorIs(t, err, types.ErrTxSubmitFailed)
	assert.ErrorIs(t, err, ErrTxBroadcastFailed)
}

func TestExecutor_InvalidEffectsNeverSigned(t *testing.T) {
	signer := &fakeSigner{}
	_, err := NewExecutor(signer, vaultAddr, "").Submit(context.Background(), withdrawEffects())
	assert.ErrorIs(t, err, ErrNoSwapRouter)
	assert.Zero(t, signer.txs)

	_, err = NewExecutor(signer, vaultAddr, routerAddr).Submit(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNoEffects)
}

func TestDryRunExecutor(t *testing.T) {
	result, err := NewDryRunExecutor(vaultAddr, routerAddr).Submit(context.Background(), withdrawEffects())
	require.NoError(t, err)
	assert.False(t, result.Broadcast)
	assert.True(t, result.Success)
	assert.Empty(t, result.TxHash)
}

func TestMakeEncodingConfigResolvesVaultMessages(t *testing.T) {
	enc := MakeEncodingConfig()
	for _, msg := range []sdk.Msg{
		&wasmtypes.MsgExecuteContract{}, &stakingtypes.MsgDelegate{}, &stakingtypes.MsgUndelegate{},
		&distrtypes.MsgSetWithdrawAddress{}, &distrtypes.MsgWithdrawDelegatorReward{}, &banktypes.MsgSend{},
	} {
		_, err := enc.InterfaceRegistry.Resolve(sdk.MsgTypeURL(msg))
		assert.NoError(t, err, sdk.MsgTypeURL(msg))
	}
}
