// ./internal/state/consumed_store.go
package state

import (
	"context"
	"fmt"

	"github.com/elys-network/stakevault/internal/types"
	"github.com/rs/zerolog/log"
)

// ConsumedStore remembers keys that may be used only once, such as deposit transaction
// hashes and signed request digests.
type ConsumedStore struct{}

// Claim records key under kind. It returns types.ErrAlreadyClaimed when the key was claimed before.
func (ConsumedStore) Claim(ctx context.Context, kind, key string) error {
	if DB == nil {
		return ErrDBNotInitialized
	}

	query := `
		INSERT INTO consumed_keys (kind, key)
		VALUES ($1, $2)
		ON CONFLICT (kind, key) DO NOTHING;
	`
	res, err := DB.ExecContext(ctx, query, kind, key)
	if err != nil {
		return fmt.Errorf("failed to claim %s key: %w", kind, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read claim result: %w", err)
	}
	if n == 0 {
		return types.ErrAlreadyClaimed
	}

	log.Debug().Str("kind", kind).Str("key", key).Msg("Key claimed")
	return nil
}

// Release forgets a claim so the key can be used again.
func (ConsumedStore) Release(ctx context.Context, kind, key string) error {
	if DB == nil {
		return ErrDBNotInitialized
	}

	if _, err := DB.ExecContext(ctx, `DELETE FROM consumed_keys WHERE kind = $1 AND key = $2;`, kind, key); err != nil {
		return fmt.Errorf("failed to release %s key: %w", kind, err)
	}
	return nil
}
