// ./internal/state/config_store.go
package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/elys-network/stakevault/internal/types"
	"github.com/rs/zerolog/log"
)

// ConfigStore persists the vault configuration singleton in the vault_config table.
type ConfigStore struct{}

// SaveVaultConfig writes the configuration once. A second call fails with ErrAlreadyInitialized.
func (ConfigStore) SaveVaultConfig(ctx context.Context, cfg types.VaultConfig) error {
	if DB == nil {
		return ErrDBNotInitialized
	}

	query := `
		INSERT INTO vault_config (id, owner, oracle_address, token_address, validator, contract_name, contract_version)
		VALUES (1, $1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO NOTHING;
	`
	res, err := DB.ExecContext(ctx, query,
		cfg.Owner.String(), cfg.OracleAddress.String(), cfg.TokenAddress.String(), cfg.Validator.String(),
		cfg.ContractName, cfg.ContractVersion,
	)
	if err != nil {
		return fmt.Errorf("failed to save vault config: %w", err)
	}

	inserted, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if inserted == 0 {
		return types.ErrAlreadyInitialized
	}

	log.Info().
		Str("owner", cfg.Owner.String()).
		Str("validator", cfg.Validator.String()).
		Str("contract_version", cfg.ContractVersion).
		Msg("Vault configuration saved")
	return nil
}

// LoadVaultConfig reads the singleton. ErrConfigMissing means the vault was never instantiated.
func (ConfigStore) LoadVaultConfig(ctx context.Context) (*types.VaultConfig, error) {
	if DB == nil {
		return nil, ErrDBNotInitialized
	}

	query := `
		SELECT owner, oracle_address, token_address, validator, contract_name, contract_version, created_at
		FROM vault_config
		WHERE id = 1;
	`

	var cfg types.VaultConfig
	var owner, oracle, token, validator string
	err := DB.QueryRowContext(ctx, query).Scan(
		&owner, &oracle, &token, &validator, &cfg.ContractName, &cfg.ContractVersion, &cfg.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, types.ErrConfigMissing
		}
		return nil, fmt.Errorf("failed to load vault config: %w", err)
	}

	cfg.Owner = types.Identity(owner)
	cfg.OracleAddress = types.Identity(oracle)
	cfg.TokenAddress = types.Identity(token)
	cfg.Validator = types.Identity(validator)
	return &cfg, nil
}
