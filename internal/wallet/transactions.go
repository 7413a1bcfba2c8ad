package wallet

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	sdkmath "cosmossdk.io/math"
	wasmtypes "github.com/CosmWasm/wasmd/x/wasm/types"
	sdk "github.com/cosmos/cosmos-sdk/types"
	banktypes "github.com/cosmos/cosmos-sdk/x/bank/types"
	distrtypes "github.com/cosmos/cosmos-sdk/x/distribution/types"
	stakingtypes "github.com/cosmos/cosmos-sdk/x/staking/types"

	"github.com/elys-network/stakevault/internal/logger"
	"github.com/elys-network/stakevault/internal/types"
)

var (
	ErrInvalidEffect  = errors.New("effect contains invalid data")
	ErrNoSwapRouter   = errors.New("swap router address is not configured")
	ErrNoEffects      = errors.New("no effects to submit")
	ErrUnknownEffect  = errors.New("unknown effect type")
	ErrEncodingFailed = errors.New("contract message encoding failed")
)

var txLogger = logger.GetForComponent("transaction_builder")

// Cw20ExecuteMsg is the subset of the CW20 execute schema the vault sends.
type Cw20ExecuteMsg struct {
	Transfer *Cw20Transfer `json:"transfer,omitempty"`
}

type Cw20Transfer struct {
	Recipient string      `json:"recipient"`
	Amount    sdkmath.Int `json:"amount"`
}

// SwapRouterMsg asks the router to convert offer_coin (attached as funds) into ask_denom.
type SwapRouterMsg struct {
	Swap *Swap `json:"swap,omitempty"`
}

type Swap struct {
	OfferCoin sdk.Coin `json:"offer_coin"`
	AskDenom  string   `json:"ask_denom"`
}

// TxSigner is the part of SigningClient the executor needs.
type TxSigner interface {
	SignAndBroadcastTx(ctx context.Context, msgs ...sdk.Msg) (*sdk.TxResponse, error)
}

// BuildMsgs maps effects onto chain messages one to one, keeping their order.
// sender is the vault account that signs the transaction.
func BuildMsgs(effects []types.Effect, sender, swapRouter string) ([]sdk.Msg, error) {
	msgs := make([]sdk.Msg, 0, len(effects))
	for i, effect := range effects {
		msg, err := effectToMsg(effect, sender, swapRouter)
		if err != nil {
			return nil, fmt.Errorf("effect %d (%s): %w", i, effect.Type, err)
		}
		msgs = append(msgs, msg)
	}
	return msgs, nil
}

func effectToMsg(effect types.Effect, sender, swapRouter string) (sdk.Msg, error) {
	switch effect.Type {
	case types.EffectTokenTransfer:
		if effect.TokenContract.IsEmpty() || effect.Recipient.IsEmpty() || effect.TokenAmount.IsNil() {
			return nil, ErrInvalidEffect
		}
		payload, err := json.Marshal(Cw20ExecuteMsg{Transfer: &Cw20Transfer{
			Recipient: effect.Recipient.String(),
			Amount:    effect.TokenAmount,
		}})
		if err != nil {
			return nil, errors.Join(ErrEncodingFailed, err)
		}
		return &wasmtypes.MsgExecuteContract{
			Sender:   sender,
			Contract: effect.TokenContract.String(),
			Msg:      payload,
		}, nil

	case types.EffectDelegate:
		if effect.Validator.IsEmpty() || effect.Amount.Amount.IsNil() {
			return nil, ErrInvalidEffect
		}
		return stakingtypes.NewMsgDelegate(sender, effect.Validator.String(), effect.Amount), nil

	case types.EffectUndelegate:
		if effect.Validator.IsEmpty() || effect.Amount.Amount.IsNil() {
			return nil, ErrInvalidEffect
		}
		return stakingtypes.NewMsgUndelegate(sender, effect.Validator.String(), effect.Amount), nil

	case types.EffectSetWithdrawAddress:
		if effect.WithdrawAddress.IsEmpty() {
			return nil, ErrInvalidEffect
		}
		return &distrtypes.MsgSetWithdrawAddress{
			DelegatorAddress: sender,
			WithdrawAddress:  effect.WithdrawAddress.String(),
		}, nil

	case types.EffectWithdrawRewards:
		if effect.Validator.IsEmpty() {
			return nil, ErrInvalidEffect
		}
		return &distrtypes.MsgWithdrawDelegatorReward{
			DelegatorAddress: sender,
			ValidatorAddress: effect.Validator.String(),
		}, nil

	case types.EffectSwap:
		if swapRouter == "" {
			return nil, ErrNoSwapRouter
		}
		if effect.OfferCoin.Amount.IsNil() || effect.AskDenom == "" {
			return nil, ErrInvalidEffect
		}
		payload, err := json.Marshal(SwapRouterMsg{Swap: &Swap{OfferCoin: effect.OfferCoin, AskDenom: effect.AskDenom}})
		if err != nil {
			return nil, errors.Join(ErrEncodingFailed, err)
		}
		return &wasmtypes.MsgExecuteContract{
			Sender:   sender,
			Contract: swapRouter,
			Msg:      payload,
			Funds:    sdk.Coins{effect.OfferCoin},
		}, nil

	case types.EffectPayout:
		if effect.Recipient.IsEmpty() || effect.Amount.Amount.IsNil() {
			return nil, ErrInvalidEffect
		}
		return &banktypes.MsgSend{
			FromAddress: sender,
			ToAddress:   effect.Recipient.String(),
			Amount:      sdk.Coins{effect.Amount},
		}, nil
	}
	return nil, ErrUnknownEffect
}

// Executor submits every effect of one operation as a single signed transaction, so the chain
// applies all of them or none.
type Executor struct {
	signer     TxSigner
	sender     string
	swapRouter string
}

func NewExecutor(signer TxSigner, sender, swapRouter string) *Executor {
	return &Executor{signer: signer, sender: sender, swapRouter: swapRouter}
}

func (e *Executor) Submit(ctx context.Context, effects []types.Effect) (*types.TransactionResult, error) {
	if len(effects) == 0 {
		return nil, ErrNoEffects
	}
	msgs, err := BuildMsgs(effects, e.sender, e.swapRouter)
	if err != nil {
		return nil, errors.Join(types.ErrTxSubmitFailed, err)
	}

	res, err := e.signer.SignAndBroadcastTx(ctx, msgs...)
	if err != nil {
		txLogger.Error().Err(err).Int("messageCount", len(msgs)).Msg("Transaction submission failed")
		return nil, errors.Join(types.ErrTxSubmitFailed, err)
	}

	result := &types.TransactionResult{
		TxHash:    res.TxHash,
		GasUsed:   res.GasUsed,
		GasWanted: res.GasWanted,
		Broadcast: true,
		Success:   res.Code == 0,
	}
	if res.Code != 0 {
		result.ErrorMessage = res.RawLog
		txLogger.Warn().
			Str("txHash", res.TxHash).
			Uint32("code", res.Code).
			Str("rawLog", res.RawLog).
			Msg("Transaction rejected")
		return result, fmt.Errorf("%w: code %d: %s", types.ErrTxRejected, res.Code, res.RawLog)
	}

	txLogger.Info().Str("txHash", res.TxHash).Int("messageCount", len(msgs)).Msg("Effects submitted")
	return result, nil
}

// DryRunExecutor builds the messages but never broadcasts them.
type DryRunExecutor struct {
	sender     string
	swapRouter string
}

func NewDryRunExecutor(sender, swapRouter string) *DryRunExecutor {
	return &DryRunExecutor{sender: sender, swapRouter: swapRouter}
}

func (e *DryRunExecutor) Submit(_ context.Context, effects []types.Effect) (*types.TransactionResult, error) {
	if len(effects) == 0 {
		return nil, ErrNoEffects
	}
	msgs, err := BuildMsgs(effects, e.sender, e.swapRouter)
	if err != nil {
		return nil, errors.Join(types.ErrTxSubmitFailed, err)
	}

	for i, msg := range msgs {
		txLogger.Info().Int("index", i).Str("msg", sdk.MsgTypeURL(msg)).Msg("DRY RUN: would submit message")
	}
	return &types.TransactionResult{Broadcast: false, Success: true}, nil
}
