package wallet

import (
	"context"
	"errors"
	"fmt"
	"time"

	sdk "github.com/cosmos/cosmos-sdk/types"
	txtypes "github.com/cosmos/cosmos-sdk/types/tx"
	banktypes "github.com/cosmos/cosmos-sdk/x/bank/types"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/elys-network/stakevault/internal/logger"
	"github.com/elys-network/stakevault/internal/types"
)

var depositLogger = logger.GetForComponent("deposit_verifier")

// DepositVerifier reads a committed transaction and reports what its sender paid the vault.
type DepositVerifier struct {
	txs     txtypes.ServiceClient
	vault   string
	timeout time.Duration
}

func NewDepositVerifier(txs txtypes.ServiceClient, vault string, timeout time.Duration) *DepositVerifier {
	return &DepositVerifier{txs: txs, vault: vault, timeout: timeout}
}

// VerifyDeposit returns the coins sent from sender to the vault by the bank sends in txHash.
// The transaction must have succeeded and contain at least one such send.
func (d *DepositVerifier) VerifyDeposit(ctx context.Context, sender types.Identity, txHash string) ([]sdk.Coin, error) {
	qctx := ctx
	if d.timeout > 0 {
		var cancel context.CancelFunc
		qctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	resp, err := d.txs.GetTx(qctx, &txtypes.GetTxRequest{Hash: txHash})
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, fmt.Errorf("%w: transaction %s not found", types.ErrDepositInvalid, txHash)
		}
		depositLogger.Error().Err(err).Str("tx_hash", txHash).Msg("Deposit lookup failed")
		return nil, errors.Join(types.ErrDepositLookupFailed, err)
	}
	if resp == nil || resp.TxResponse == nil || resp.Tx == nil || resp.Tx.Body == nil {
		return nil, fmt.Errorf("%w: transaction %s has no body", types.ErrDepositInvalid, txHash)
	}
	if resp.TxResponse.Code != 0 {
		return nil, fmt.Errorf("%w: transaction %s failed with code %d", types.ErrDepositInvalid, txHash, resp.TxResponse.Code)
	}

	sendURL := sdk.MsgTypeURL(&banktypes.MsgSend{})
	paid := sdk.NewCoins()
	for _, msg := range resp.Tx.Body.Messages {
		if msg == nil || msg.TypeUrl != sendURL {
			continue
		}
		var send banktypes.MsgSend
		if err := send.Unmarshal(msg.Value); err != nil {
			return nil, fmt.Errorf("%w: undecodable bank send: %v", types.ErrDepositInvalid, err)
		}
		if send.FromAddress != sender.String() || send.ToAddress != d.vault {
			continue
		}
		paid = paid.Add(send.Amount...)
	}
	if paid.IsZero() {
		return nil, fmt.Errorf("%w: no transfer from %s to the vault in %s", types.ErrDepositInvalid, sender, txHash)
	}

	depositLogger.Info().
		Str("tx_hash", txHash).
		Str("sender", sender.String()).
		Str("paid", paid.String()).
		Msg("Deposit verified")
	return paid, nil
}
