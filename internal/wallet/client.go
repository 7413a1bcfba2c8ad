package wallet

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"sync"

	wasmtypes "github.com/CosmWasm/wasmd/x/wasm/types"
	rpchttp "github.com/cometbft/cometbft/rpc/client/http"
	"github.com/cosmos/cosmos-sdk/client"
	"github.com/cosmos/cosmos-sdk/client/flags"
	"github.com/cosmos/cosmos-sdk/client/tx"
	"github.com/cosmos/cosmos-sdk/codec"
	codectypes "github.com/cosmos/cosmos-sdk/codec/types"
	cryptocodec "github.com/cosmos/cosmos-sdk/crypto/codec"
	"github.com/cosmos/cosmos-sdk/crypto/keyring"
	"github.com/cosmos/cosmos-sdk/std"
	sdk "github.com/cosmos/cosmos-sdk/types"
	txtypes "github.com/cosmos/cosmos-sdk/types/tx"
	"github.com/cosmos/cosmos-sdk/types/tx/signing"
	authtx "github.com/cosmos/cosmos-sdk/x/auth/tx"
	authtypes "github.com/cosmos/cosmos-sdk/x/auth/types"
	banktypes "github.com/cosmos/cosmos-sdk/x/bank/types"
	distrtypes "github.com/cosmos/cosmos-sdk/x/distribution/types"
	stakingtypes "github.com/cosmos/cosmos-sdk/x/staking/types"
	"google.golang.org/grpc"

	"github.com/elys-network/stakevault/internal/config"
	"github.com/elys-network/stakevault/internal/logger"
)

// Error definitions for zero-tolerance error handling
var (
	ErrInvalidConfig          = errors.New("invalid configuration")
	ErrKeyringInit            = errors.New("keyring initialization failed")
	ErrKeyNotFound            = errors.New("signing key not found")
	ErrRPCConnectionFailed    = errors.New("RPC connection failed")
	ErrGRPCConnectionInvalid  = errors.New("gRPC connection is invalid")
	ErrTxBuildFailed          = errors.New("transaction build failed")
	ErrTxSignFailed           = errors.New("transaction signing failed")
	ErrTxBroadcastFailed      = errors.New("transaction broadcast failed")
	ErrSDKConfigFailed        = errors.New("SDK configuration failed")
	ErrClientContextInvalid   = errors.New("client context is invalid")
	ErrAccountRetrievalFailed = errors.New("account retrieval failed")
)

var walletLogger = logger.GetForComponent("wallet_client")

var sdkConfigOnce sync.Once
var sdkConfigError error

// EncodingConfig bundles the codecs needed to sign vault transactions.
type EncodingConfig struct {
	InterfaceRegistry codectypes.InterfaceRegistry
	Marshaler         codec.Codec
	TxConfig          client.TxConfig
	Amino             *codec.LegacyAmino
}

// SigningClient signs and broadcasts vault transactions with the configured key.
type SigningClient struct {
	clientCtx   client.Context
	txFactory   tx.Factory
	keyring     keyring.Keyring
	grpcConn    *grpc.ClientConn
	chainID     string
	keyName     string
	fromAddress sdk.AccAddress
}

// NewSigningClient creates a signing client over an existing gRPC connection. The caller keeps
// ownership of grpcConn.
func NewSigningClient(grpcConn *grpc.ClientConn) (*SigningClient, error) {
	if grpcConn == nil {
		return nil, errors.Join(ErrGRPCConnectionInvalid, errors.New("gRPC connection cannot be nil"))
	}
	if err := validateWalletConfig(); err != nil {
		return nil, errors.Join(ErrInvalidConfig, err)
	}
	if err := ConfigureSDK(); err != nil {
		return nil, errors.Join(ErrSDKConfigFailed, err)
	}

	encodingConfig := MakeEncodingConfig()

	kr, err := initializeKeyring(encodingConfig)
	if err != nil {
		return nil, errors.Join(ErrKeyringInit, err)
	}

	fromAddress, err := getAndValidateKey(kr)
	if err != nil {
		return nil, errors.Join(ErrKeyNotFound, err)
	}

	rpcClient, err := rpchttp.New(config.NodeRPC, "/websocket")
	if err != nil {
		return nil, errors.Join(ErrRPCConnectionFailed, err)
	}

	clientCtx := client.Context{}.
		WithCodec(encodingConfig.Marshaler).
		WithInterfaceRegistry(encodingConfig.InterfaceRegistry).
		WithTxConfig(encodingConfig.TxConfig).
		WithLegacyAmino(encodingConfig.Amino).
		WithInput(os.Stdin).
		WithAccountRetriever(authtypes.AccountRetriever{}).
		WithBroadcastMode(flags.BroadcastSync).
		WithHomeDir(config.KeyringDir).
		WithKeyring(kr).
		WithChainID(config.ChainID).
		WithGRPCClient(grpcConn).
		WithClient(rpcClient).
		WithFromAddress(fromAddress).
		WithFromName(config.KeyName)
	if err := validateClientContext(clientCtx); err != nil {
		return nil, errors.Join(ErrClientContextInvalid, err)
	}

	txFactory := tx.Factory{}.
		WithChainID(config.ChainID).
		WithKeybase(kr).
		WithGas(config.DefaultGasLimit).
		WithGasAdjustment(config.GasAdjustment).
		WithSignMode(signing.SignMode_SIGN_MODE_DIRECT).
		WithAccountRetriever(clientCtx.AccountRetriever).
		WithTxConfig(clientCtx.TxConfig)

	walletLogger.Info().
		Str("address", fromAddress.String()).
		Str("keyName", config.KeyName).
		Str("chainID", config.ChainID).
		Str("rpcEndpoint", config.NodeRPC).
		Msg("Signing client initialized")

	return &SigningClient{
		clientCtx:   clientCtx,
		txFactory:   txFactory,
		keyring:     kr,
		grpcConn:    grpcConn,
		chainID:     config.ChainID,
		keyName:     config.KeyName,
		fromAddress: fromAddress,
	}, nil
}

// MakeEncodingConfig registers the bank, staking, distribution and wasm messages the vault emits.
func MakeEncodingConfig() EncodingConfig {
	interfaceRegistry := codectypes.NewInterfaceRegistry()
	std.RegisterInterfaces(interfaceRegistry)
	authtypes.RegisterInterfaces(interfaceRegistry)
	cryptocodec.RegisterInterfaces(interfaceRegistry)
	banktypes.RegisterInterfaces(interfaceRegistry)
	stakingtypes.RegisterInterfaces(interfaceRegistry)
	distrtypes.RegisterInterfaces(interfaceRegistry)
	wasmtypes.RegisterInterfaces(interfaceRegistry)

	marshaler := codec.NewProtoCodec(interfaceRegistry)
	amino := codec.NewLegacyAmino()
	std.RegisterLegacyAminoCodec(amino)

	return EncodingConfig{
		InterfaceRegistry: interfaceRegistry,
		Marshaler:         marshaler,
		TxConfig:          authtx.NewTxConfig(marshaler, authtx.DefaultSignModes),
		Amino:             amino,
	}
}

// ConfigureSDK sets the bech32 prefixes once per process.
func ConfigureSDK() error {
	sdkConfigOnce.Do(func() {
		prefix := config.Bech32Prefix
		if prefix == "" {
			sdkConfigError = errors.New("bech32 prefix cannot be empty")
			return
		}
		sdkConfig := sdk.GetConfig()
		sdkConfig.SetBech32PrefixForAccount(prefix, prefix+"pub")
		sdkConfig.SetBech32PrefixForValidator(prefix+"valoper", prefix+"valoperpub")
		sdkConfig.SetBech32PrefixForConsensusNode(prefix+"valcons", prefix+"valconspub")
		sdkConfig.Seal()

		walletLogger.Debug().Str("prefix", prefix).Msg("SDK configuration initialized")
	})
	return sdkConfigError
}

func validateWalletConfig() error {
	if config.ChainID == "" {
		return errors.New("chain ID cannot be empty")
	}
	if config.KeyName == "" {
		return errors.New("key name cannot be empty")
	}
	if config.KeyringDir == "" {
		return errors.New("keyring directory cannot be empty")
	}
	if config.KeyringBackend == "" {
		return errors.New("keyring backend cannot be empty")
	}
	if config.NodeRPC == "" {
		return errors.New("node RPC endpoint cannot be empty")
	}
	return validateGasConfiguration()
}

func validateGasConfiguration() error {
	if config.DefaultGasLimit == 0 {
		return errors.New("default gas limit cannot be zero")
	}
	if math.IsNaN(config.GasAdjustment) || math.IsInf(config.GasAdjustment, 0) {
		return errors.New("gas adjustment is not finite")
	}
	if config.GasAdjustment <= 0 || config.GasAdjustment > 10 {
		return errors.New("gas adjustment must be between 0 and 10")
	}
	if config.GasPriceAmount == "" {
		return errors.New("gas price amount cannot be empty")
	}
	if config.GasPriceDenom == "" {
		return errors.New("gas price denomination cannot be empty")
	}
	return nil
}

func initializeKeyring(encodingConfig EncodingConfig) (keyring.Keyring, error) {
	if err := os.MkdirAll(config.KeyringDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create keyring directory: %w", err)
	}

	kr, err := keyring.New(config.ContractName, config.KeyringBackend, config.KeyringDir, os.Stdin, encodingConfig.Marshaler)
	if err != nil {
		return nil, fmt.Errorf("failed to create keyring: %w", err)
	}
	return kr, nil
}

func getAndValidateKey(kr keyring.Keyring) (sdk.AccAddress, error) {
	keyInfo, err := kr.Key(config.KeyName)
	if err != nil {
		return nil, fmt.Errorf("key '%s' not found in keyring: %w", config.KeyName, err)
	}

	fromAddress, err := keyInfo.GetAddress()
	if err != nil {
		return nil, fmt.Errorf("failed to get address from key: %w", err)
	}
	if err := sdk.VerifyAddressFormat(fromAddress); err != nil {
		return nil, fmt.Errorf("invalid address format: %w", err)
	}
	return fromAddress, nil
}

func validateClientContext(clientCtx client.Context) error {
	if clientCtx.Codec == nil {
		return errors.New("codec is nil in client context")
	}
	if clientCtx.TxConfig == nil {
		return errors.New("tx config is nil in client context")
	}
	if clientCtx.Keyring == nil {
		return errors.New("keyring is nil in client context")
	}
	if clientCtx.ChainID == "" {
		return errors.New("chain ID is empty in client context")
	}
	if len(clientCtx.FromAddress) == 0 {
		return errors.New("from address is empty in client context")
	}
	return nil
}

// SignAndBroadcastTx puts every message into one transaction, signs it and broadcasts it in sync mode.
// A non-zero response code is returned to the caller, not treated as an error here.
func (s *SigningClient) SignAndBroadcastTx(ctx context.Context, msgs ...sdk.Msg) (*sdk.TxResponse, error) {
	if len(msgs) == 0 {
		return nil, errors.Join(ErrTxBuildFailed, errors.New("messages cannot be empty"))
	}
	if err := validateMessages(msgs); err != nil {
		return nil, errors.Join(ErrTxBuildFailed, err)
	}

	account, err := s.clientCtx.AccountRetriever.GetAccount(s.clientCtx, s.fromAddress)
	if err != nil {
		return nil, errors.Join(ErrAccountRetrievalFailed, err)
	}

	estimatedGas, err := s.CalculateGas(ctx, account.GetAccountNumber(), account.GetSequence(), msgs...)
	if err != nil {
		walletLogger.Warn().Err(err).Msg("Gas estimation failed, using default gas limit")
		estimatedGas = config.DefaultGasLimit
	}

	factory := s.txFactory.
		WithAccountNumber(account.GetAccountNumber()).
		WithSequence(account.GetSequence()).
		WithGas(estimatedGas).
		WithGasPrices(config.GasPriceAmount + config.GasPriceDenom)

	walletLogger.Debug().
		Uint64("estimatedGas", estimatedGas).
		Uint64("accountNumber", account.GetAccountNumber()).
		Uint64("sequence", account.GetSequence()).
		Int("messageCount", len(msgs)).
		Msg("Building transaction")

	txBuilder, err := factory.BuildUnsignedTx(msgs...)
	if err != nil {
		return nil, errors.Join(ErrTxBuildFailed, err)
	}
	if err := tx.Sign(ctx, factory, s.clientCtx.GetFromName(), txBuilder, true); err != nil {
		return nil, errors.Join(ErrTxSignFailed, err)
	}

	txBytes, err := s.clientCtx.TxConfig.TxEncoder()(txBuilder.GetTx())
	if err != nil {
		return nil, errors.Join(ErrTxBuildFailed, err)
	}

	res, err := s.clientCtx.BroadcastTx(txBytes)
	if err != nil {
		return nil, errors.Join(ErrTxBroadcastFailed, err)
	}
	if res == nil || res.TxHash == "" {
		return nil, errors.Join(ErrTxBroadcastFailed, errors.New("empty broadcast response"))
	}

	walletLogger.Info().
		Str("txHash", res.TxHash).
		Uint32("code", res.Code).
		Int("messageCount", len(msgs)).
		Msg("Transaction broadcast")
	return res, nil
}

// CalculateGas simulates the transaction and applies the configured adjustment plus a fixed buffer.
func (s *SigningClient) CalculateGas(ctx context.Context, accountNumber, sequence uint64, msgs ...sdk.Msg) (uint64, error) {
	simulationFactory := s.txFactory.
		WithAccountNumber(accountNumber).
		WithSequence(sequence).
		WithGas(0)

	txBytes, err := simulationFactory.BuildSimTx(msgs...)
	if err != nil {
		return 0, fmt.Errorf("failed to build simulation transaction: %w", err)
	}

	simRes, err := txtypes.NewServiceClient(s.grpcConn).Simulate(ctx, &txtypes.SimulateRequest{TxBytes: txBytes})
	if err != nil {
		return 0, fmt.Errorf("gas simulation failed: %w", err)
	}
	if simRes == nil || simRes.GasInfo == nil || simRes.GasInfo.GasUsed == 0 {
		return 0, errors.New("simulation returned no gas info")
	}

	adjustedGas := uint64(simulationFactory.GasAdjustment() * float64(simRes.GasInfo.GasUsed))
	return adjustedGas + 10000, nil
}

func validateMessages(msgs []sdk.Msg) error {
	for i, msg := range msgs {
		if msg == nil {
			return fmt.Errorf("message %d is nil", i)
		}
		if v, ok := msg.(sdk.HasValidateBasic); ok {
			if err := v.ValidateBasic(); err != nil {
				return fmt.Errorf("message %d validation failed: %w", i, err)
			}
		}
	}
	return nil
}

func (s *SigningClient) GetAddress() sdk.AccAddress {
	return s.fromAddress
}
