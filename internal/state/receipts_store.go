// ./internal/state/receipts_store.go
package state

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/elys-network/stakevault/internal/types"
	"github.com/rs/zerolog/log"
)

// ReceiptStore records one row per inbound operation in operation_receipts.
type ReceiptStore struct{}

// SaveOperationReceipt saves a receipt and returns its ID.
func (ReceiptStore) SaveOperationReceipt(ctx context.Context, receipt types.OperationReceipt) (int64, error) {
	if DB == nil {
		return 0, ErrDBNotInitialized
	}

	effects := receipt.Effects
	if effects == nil {
		effects = []types.Effect{}
	}
	effectsJSON, err := json.Marshal(effects)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal effects: %w", err)
	}

	query := `
		INSERT INTO operation_receipts (
			request_id, operation, sender, success, error_class, message, effects, tx_hash, receipt_timestamp
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING receipt_id;
	`

	var receiptID int64
	err = DB.QueryRowContext(ctx, query,
		receipt.RequestID, string(receipt.Operation), receipt.Sender.String(), receipt.Success,
		nullString(string(receipt.ErrorClass)), nullString(receipt.Message), effectsJSON, nullString(receipt.TxHash),
		receipt.Timestamp,
	).Scan(&receiptID)
	if err != nil {
		return 0, fmt.Errorf("failed to save operation receipt: %w", err)
	}

	log.Debug().
		Int64("receipt_id", receiptID).
		Str("request_id", receipt.RequestID).
		Str("operation", string(receipt.Operation)).
		Bool("success", receipt.Success).
		Msg("Operation receipt saved to database")

	return receiptID, nil
}

// GetRecentReceipts returns the newest receipts first.
func (ReceiptStore) GetRecentReceipts(ctx context.Context, limit int) ([]types.OperationReceipt, error) {
	if DB == nil {
		return nil, ErrDBNotInitialized
	}

	query := `
		SELECT receipt_id, request_id, operation, sender, success, error_class, message, effects, tx_hash, receipt_timestamp
		FROM operation_receipts
		ORDER BY receipt_timestamp DESC, receipt_id DESC
		LIMIT $1;
	`

	rows, err := DB.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query operation receipts: %w", err)
	}
	defer rows.Close()

	var receipts []types.OperationReceipt
	for rows.Next() {
		var r types.OperationReceipt
		var operation, sender string
		var errorClass, message, txHash sql.NullString
		var effectsJSON []byte

		if err := rows.Scan(&r.ReceiptID, &r.RequestID, &operation, &sender, &r.Success,
			&errorClass, &message, &effectsJSON, &txHash, &r.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan operation receipt: %w", err)
		}

		r.Operation = types.Operation(operation)
		r.Sender = types.Identity(sender)
		r.ErrorClass = types.ErrorClass(errorClass.String)
		r.Message = message.String
		r.TxHash = txHash.String

		if len(effectsJSON) > 0 {
			if err := json.Unmarshal(effectsJSON, &r.Effects); err != nil {
				log.Error().Err(err).Int64("receipt_id", r.ReceiptID).Msg("Failed to unmarshal receipt effects")
				continue // Skip this row and continue with others
			}
		}

		receipts = append(receipts, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}

	return receipts, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
