package config

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// AppConfig holds all process configuration loaded from environment variables.
// These are populated at startup by the LoadConfig function.
// The vault's own configuration (owner, oracle, token, validator) is not here: it lives in the database.
var (
	// VaultMode selects between broadcasting effects ("live") and only reporting them ("dry-run").
	VaultMode string

	// KeyringBackend is the backend for the keyring (e.g., "os", "file", "test").
	KeyringBackend string
	// KeyringDir is the path to the keyring directory.
	KeyringDir string
	// KeyName is the name of the vault key within the keyring.
	KeyName string
	// VaultAddress is the vault account used in dry-run mode, where no key is loaded.
	VaultAddress string
	// DeployerAddress may instantiate the vault. Empty means the vault account itself.
	DeployerAddress string
	// AuthMaxSkew is how far a signed request's timestamp may be from the server clock.
	AuthMaxSkew time.Duration

	// ChainID is the chain ID of the target network.
	ChainID string
	// Bech32Prefix is the account address prefix of the target network.
	Bech32Prefix string
	// NativeDenom is the settlement denom for deposits, staking and payouts.
	NativeDenom string

	// StrictAmounts makes owner withdrawals and undelegations check the requested amount
	// against what the chain reports as available.
	StrictAmounts bool
	// QueryTimeout bounds every oracle and staking query.
	QueryTimeout time.Duration

	// DefaultGasLimit is the fallback gas limit if estimation fails.
	DefaultGasLimit uint64
	// GasAdjustment is the multiplier for simulated gas to ensure sufficient fees.
	GasAdjustment float64
	// GasPriceAmount is the amount of the gas fee denomination per unit of gas.
	GasPriceAmount string
	// GasPriceDenom is the denomination for gas fees.
	GasPriceDenom string
)

// LoadConfig loads configuration from environment variables and sets the global config vars.
// Keyring settings are only required in live mode.
func LoadConfig() error {
	log.Info().Msg("Loading application configuration from environment variables...")

	var err error

	VaultMode = getEnvOrDefault("VAULT_MODE", ModeDryRun)
	if VaultMode != ModeLive && VaultMode != ModeDryRun {
		return errors.New("environment variable VAULT_MODE must be '" + ModeLive + "' or '" + ModeDryRun + "', got: " + VaultMode)
	}

	ChainID, err = getEnv("CHAIN_ID")
	if err != nil {
		return err
	}

	Bech32Prefix = getEnvOrDefault("BECH32_PREFIX", DefaultBech32Prefix)
	NativeDenom = getEnvOrDefault("NATIVE_DENOM", DefaultNativeDenom)

	StrictAmounts, err = getEnvAsBoolOrDefault("VAULT_STRICT_AMOUNTS", false)
	if err != nil {
		return err
	}

	QueryTimeout, err = getEnvAsDurationOrDefault("QUERY_TIMEOUT", DefaultQueryTimeout)
	if err != nil {
		return err
	}

	AuthMaxSkew, err = getEnvAsDurationOrDefault("AUTH_MAX_SKEW", DefaultAuthMaxSkew)
	if err != nil {
		return err
	}
	DeployerAddress = os.Getenv("DEPLOYER_ADDRESS")

	if VaultMode == ModeLive {
		if err := loadKeyringConfig(); err != nil {
			return err
		}
	} else {
		VaultAddress, err = getEnv("VAULT_ADDRESS")
		if err != nil {
			return err
		}
	}

	DefaultGasLimit, err = getEnvAsUint64("GAS_DEFAULT_LIMIT")
	if err != nil {
		return err
	}

	GasAdjustment, err = getEnvAsFloat64("GAS_ADJUSTMENT")
	if err != nil {
		return err
	}

	GasPriceAmount, err = getEnv("GAS_PRICE_AMOUNT")
	if err != nil {
		return err
	}

	GasPriceDenom, err = getEnv("GAS_PRICE_DENOM")
	if err != nil {
		return err
	}

	// Load endpoint configuration
	if err := loadEndpointConfig(); err != nil {
		return err
	}

	log.Debug().
		Str("VaultMode", VaultMode).
		Str("ChainID", ChainID).
		Str("NativeDenom", NativeDenom).
		Bool("StrictAmounts", StrictAmounts).
		Dur("QueryTimeout", QueryTimeout).
		Dur("AuthMaxSkew", AuthMaxSkew).
		Str("DeployerAddress", DeployerAddress).
		Msg("Configuration loaded successfully.")

	return nil
}

func loadKeyringConfig() error {
	var err error

	KeyringBackend, err = getEnv("KEYRING_BACKEND")
	if err != nil {
		return err
	}

	KeyringDir, err = getEnv("KEYRING_DIR")
	if err != nil {
		return err
	}

	KeyName, err = getEnv("KEYRING_KEY_NAME")
	if err != nil {
		return err
	}

	// Expand the tilde (~) in the keyring directory path to the user's home directory.
	if strings.HasPrefix(KeyringDir, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return err
		}
		KeyringDir = filepath.Join(home, KeyringDir[2:])
	}

	VaultAddress = os.Getenv("VAULT_ADDRESS")
	return nil
}

// getEnv retrieves a string environment variable. Returns error if not set.
func getEnv(key string) (string, error) {
	if value, exists := os.LookupEnv(key); exists {
		return value, nil
	}
	return "", errors.New("environment variable " + key + " is required but not set")
}

func getEnvOrDefault(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return fallback
}

// getEnvAsUint64 retrieves an environment variable as a uint64. Returns error if not set or invalid.
func getEnvAsUint64(key string) (uint64, error) {
	valueStr, err := getEnv(key)
	if err != nil {
		return 0, err
	}
	value, err := strconv.ParseUint(valueStr, 10, 64)
	if err != nil {
		return 0, errors.New("environment variable " + key + " must be a valid uint64, got: " + valueStr)
	}
	return value, nil
}

// getEnvAsFloat64 retrieves an environment variable as a float64. Returns error if not set or invalid.
func getEnvAsFloat64(key string) (float64, error) {
	valueStr, err := getEnv(key)
	if err != nil {
		return 0, err
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return 0, errors.New("environment variable " + key + " must be a valid float64, got: " + valueStr)
	}
	return value, nil
}

func getEnvAsBoolOrDefault(key string, fallback bool) (bool, error) {
	valueStr, exists := os.LookupEnv(key)
	if !exists || valueStr == "" {
		return fallback, nil
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return false, errors.New("environment variable " + key + " must be a valid bool, got: " + valueStr)
	}
	return value, nil
}

func getEnvAsDurationOrDefault(key string, fallback time.Duration) (time.Duration, error) {
	valueStr, exists := os.LookupEnv(key)
	if !exists || valueStr == "" {
		return fallback, nil
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return 0, errors.New("environment variable " + key + " must be a valid duration, got: " + valueStr)
	}
	if value <= 0 {
		return 0, errors.New("environment variable " + key + " must be positive, got: " + valueStr)
	}
	return value, nil
}
