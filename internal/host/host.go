package host

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/elys-network/stakevault/internal/logger"
	"github.com/elys-network/stakevault/internal/metrics"
	"github.com/elys-network/stakevault/internal/types"
)

const (
	outcomeSuccess   = "success"
	claimKindDeposit = "deposit_tx"
)

// Core is the vault's business logic: it turns a request into effects without side effects.
type Core interface {
	Instantiate(ctx context.Context, msg types.InstantiateMsg) (*types.VaultConfig, error)
	Execute(ctx context.Context, info types.MessageInfo, msg types.ExecuteMsg) ([]types.Effect, error)
	Config(ctx context.Context) (*types.VaultConfig, error)
}

// Executor applies one effect list atomically.
type Executor interface {
	Submit(ctx context.Context, effects []types.Effect) (*types.TransactionResult, error)
}

// DepositVerifier reports what sender paid the vault in a committed transaction.
type DepositVerifier interface {
	VerifyDeposit(ctx context.Context, sender types.Identity, txHash string) ([]sdk.Coin, error)
}

// KeyClaimer records keys that may be used only once.
type KeyClaimer interface {
	Claim(ctx context.Context, kind, key string) error
	Release(ctx context.Context, kind, key string) error
}

type ReceiptStore interface {
	SaveOperationReceipt(ctx context.Context, receipt types.OperationReceipt) (int64, error)
	GetRecentReceipts(ctx context.Context, limit int) ([]types.OperationReceipt, error)
}

// Host is the transaction boundary around the vault core. Operations are serialized so the
// signing account's sequence is never used twice.
type Host struct {
	logger     zerolog.Logger
	core       Core
	executor   Executor
	deposits   DepositVerifier
	consumed   KeyClaimer
	deployer   types.Identity
	receipts   ReceiptStore
	indicators metrics.Indicators
	now        func() time.Time

	mu sync.Mutex
}

// Config holds the dependencies of a Host. Deployer is the only account allowed to instantiate the vault.
type Config struct {
	Core       Core
	Executor   Executor
	Deposits   DepositVerifier
	Consumed   KeyClaimer
	Deployer   types.Identity
	Receipts   ReceiptStore
	Indicators metrics.Indicators
	Now        func() time.Time
}

func NewHost(cfg Config) (*Host, error) {
	if err := validateHostConfig(cfg); err != nil {
		return nil, fmt.Errorf("host configuration validation failed: %w", err)
	}
	now := cfg.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Host{
		logger:     logger.GetForComponent("host"),
		core:       cfg.Core,
		executor:   cfg.Executor,
		deposits:   cfg.Deposits,
		consumed:   cfg.Consumed,
		deployer:   cfg.Deployer,
		receipts:   cfg.Receipts,
		indicators: cfg.Indicators,
		now:        now,
	}, nil
}

func validateHostConfig(cfg Config) error {
	if cfg.Core == nil {
		return errors.New("vault core cannot be nil")
	}
	if cfg.Executor == nil {
		return errors.New("executor cannot be nil")
	}
	if cfg.Deposits == nil {
		return errors.New("deposit verifier cannot be nil")
	}
	if cfg.Consumed == nil {
		return errors.New("consumed key store cannot be nil")
	}
	if cfg.Deployer.IsEmpty() {
		return errors.New("deployer cannot be empty")
	}
	if cfg.Receipts == nil {
		return errors.New("receipt store cannot be nil")
	}
	if cfg.Indicators == nil {
		return errors.New("indicators cannot be nil")
	}
	return nil
}

// Instantiate persists the vault configuration on behalf of the deployer. It emits no effects.
func (h *Host) Instantiate(ctx context.Context, sender types.Identity, msg types.InstantiateMsg) (*types.OperationReceipt, *types.VaultConfig, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	start := h.now()
	receipt, reqLogger := h.newReceipt(types.OperationInstantiate, sender, start)

	if sender != h.deployer {
		err := fmt.Errorf("%w: only the deployer may instantiate", types.ErrUnauthorized)
		h.finish(ctx, reqLogger, receipt, err, start)
		return receipt, nil, err
	}

	cfg, err := h.core.Instantiate(ctx, msg)
	h.finish(ctx, reqLogger, receipt, err, start)
	return receipt, cfg, err
}

// Execute runs one operation end to end: the core computes the effects, the executor submits
// them as a single transaction, and a receipt is recorded whatever the outcome.
func (h *Host) Execute(ctx context.Context, info types.MessageInfo, msg types.ExecuteMsg) (*types.OperationReceipt, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	start := h.now()
	op := msg.Operation()
	receipt, reqLogger := h.newReceipt(op, info.Sender, start)

	reqLogger.Info().Str("deposit_tx", info.DepositTx).Msg("--- Handling operation ---")

	// Funds only ever come from a verified deposit.
	info.Funds = nil
	depositKey := ""
	if op == types.OperationPurchase {
		funds, key, err := h.claimDeposit(ctx, info)
		if err != nil {
			h.finish(ctx, reqLogger, receipt, err, start)
			return receipt, err
		}
		info.Funds, depositKey = funds, key
	}

	effects, err := h.core.Execute(ctx, info, msg)
	if err != nil {
		h.releaseDeposit(ctx, reqLogger, depositKey)
		h.finish(ctx, reqLogger, receipt, err, start)
		return receipt, err
	}
	receipt.Effects = effects

	reqLogger.Info().Int("effects", len(effects)).Msg("Submitting effects as one transaction")
	result, err := h.executor.Submit(ctx, effects)
	if result != nil {
		receipt.TxHash = result.TxHash
		if result.Broadcast {
			h.indicators.ObserveGasUsed(result.GasUsed)
		}
	}
	if err == nil {
		h.indicators.IncrementEffects(effects)
	} else if errors.Is(err, types.ErrTxRejected) {
		// A rejected transaction applied nothing, so the deposit can pay for a retry.
		h.releaseDeposit(ctx, reqLogger, depositKey)
	}

	h.finish(ctx, reqLogger, receipt, err, start)
	return receipt, err
}

// claimDeposit verifies the purchase deposit on chain and marks its hash as used.
func (h *Host) claimDeposit(ctx context.Context, info types.MessageInfo) ([]sdk.Coin, string, error) {
	key := strings.ToUpper(strings.TrimSpace(info.DepositTx))
	if key == "" {
		return nil, "", types.ErrDepositRequired
	}

	funds, err := h.deposits.VerifyDeposit(ctx, info.Sender, key)
	if err != nil {
		return nil, "", err
	}

	if err := h.consumed.Claim(ctx, claimKindDeposit, key); err != nil {
		if errors.Is(err, types.ErrAlreadyClaimed) {
			return nil, "", fmt.Errorf("%w: %s", types.ErrDepositReplayed, key)
		}
		return nil, "", fmt.Errorf("claiming deposit %s: %w", key, err)
	}
	return funds, key, nil
}

func (h *Host) releaseDeposit(ctx context.Context, reqLogger zerolog.Logger, key string) {
	if key == "" {
		return
	}
	if err := h.consumed.Release(ctx, claimKindDeposit, key); err != nil {
		reqLogger.Error().Err(err).Str("deposit_tx", key).Msg("Failed to release deposit claim")
	}
}

// Config returns the stored vault configuration.
func (h *Host) Config(ctx context.Context) (*types.VaultConfig, error) {
	return h.core.Config(ctx)
}

func (h *Host) RecentReceipts(ctx context.Context, limit int) ([]types.OperationReceipt, error) {
	return h.receipts.GetRecentReceipts(ctx, limit)
}

func (h *Host) newReceipt(op types.Operation, sender types.Identity, start time.Time) (*types.OperationReceipt, zerolog.Logger) {
	requestID := uuid.New().String()
	reqLogger := logger.WithRequestID(h.logger, requestID).With().
		Str("operation", string(op)).
		Str("sender", sender.String()).
		Logger()

	return &types.OperationReceipt{
		RequestID: requestID,
		Operation: op,
		Sender:    sender,
		Effects:   []types.Effect{},
		Timestamp: start,
	}, reqLogger
}

// finish completes the receipt, persists it and updates metrics. A failure to persist is logged
// but does not change the operation's outcome, since effects may already be on chain.
func (h *Host) finish(ctx context.Context, reqLogger zerolog.Logger, receipt *types.OperationReceipt, opErr error, start time.Time) {
	outcome := outcomeSuccess
	if opErr != nil {
		receipt.Success = false
		receipt.ErrorClass = types.Classify(opErr)
		receipt.Message = opErr.Error()
		outcome = string(receipt.ErrorClass)
		reqLogger.Warn().Err(opErr).Str("error_class", outcome).Msg("Operation rejected")
	} else {
		receipt.Success = true
		reqLogger.Info().Str("tx_hash", receipt.TxHash).Msg("Operation completed")
	}

	id, err := h.receipts.SaveOperationReceipt(ctx, *receipt)
	if err != nil {
		reqLogger.Error().Err(err).Msg("Failed to save operation receipt")
	} else {
		receipt.ReceiptID = id
	}

	h.indicators.IncrementOperations(receipt.Operation, outcome)
	h.indicators.ObserveOperationDuration(receipt.Operation, h.now().Sub(start))
}
