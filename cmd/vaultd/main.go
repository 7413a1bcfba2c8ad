package main

import (
	"context"
	"crypto/tls"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	wasmtypes "github.com/CosmWasm/wasmd/x/wasm/types"
	txtypes "github.com/cosmos/cosmos-sdk/types/tx"
	banktypes "github.com/cosmos/cosmos-sdk/x/bank/types"
	distrtypes "github.com/cosmos/cosmos-sdk/x/distribution/types"
	stakingtypes "github.com/cosmos/cosmos-sdk/x/staking/types"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/elys-network/stakevault/internal/auth"
	"github.com/elys-network/stakevault/internal/config"
	"github.com/elys-network/stakevault/internal/host"
	"github.com/elys-network/stakevault/internal/logger"
	"github.com/elys-network/stakevault/internal/metrics"
	"github.com/elys-network/stakevault/internal/oracle"
	"github.com/elys-network/stakevault/internal/staking"
	"github.com/elys-network/stakevault/internal/state"
	"github.com/elys-network/stakevault/internal/types"
	"github.com/elys-network/stakevault/internal/vault"
	"github.com/elys-network/stakevault/internal/wallet"
	"github.com/elys-network/stakevault/internal/web"
)

func main() {
	// --- 1. Initialization Phase ---
	if err := godotenv.Load(); err != nil {
		log.Warn().Msg("Warning: .env file not found. Relying on OS environment variables.")
	}

	logger.Initialize(os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FORMAT"))

	if err := config.LoadConfig(); err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	log.Info().Str("mode", config.VaultMode).Msg("Stake vault starting...")

	dbCfg := state.DBConfig{
		Host: os.Getenv("DB_HOST"), Port: mustAtoi(os.Getenv("DB_PORT"), 5432),
		User: os.Getenv("DB_USER"), Password: os.Getenv("DB_PASSWORD"),
		DBName: os.Getenv("DB_NAME"), SSLMode: os.Getenv("DB_SSLMODE"),
	}
	if err := state.InitDB(dbCfg); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer state.CloseDB()
	if err := state.EnsureSchema(); err != nil {
		log.Fatal().Err(err).Msg("Failed to ensure database schema")
	}

	// --- 2. Chain connections ---
	grpcEndpoint := config.NodeGRPC
	var creds grpc.DialOption
	if strings.Contains(grpcEndpoint, ":443") {
		creds = grpc.WithTransportCredentials(credentials.NewTLS(&tls.Config{}))
	} else {
		creds = grpc.WithTransportCredentials(insecure.NewCredentials())
	}
	grpcClient, err := grpc.NewClient(grpcEndpoint, creds)
	if err != nil {
		log.Fatal().Err(err).Msg("gRPC connection error")
	}
	defer grpcClient.Close()
	log.Info().Str("endpoint", grpcEndpoint).Msg("gRPC client created")

	if err := wallet.ConfigureSDK(); err != nil {
		log.Fatal().Err(err).Msg("Failed to configure SDK")
	}

	// --- 3. Executor (with Safety Switch) ---
	var executor host.Executor
	var vaultAddress string

	switch config.VaultMode {
	case config.ModeLive:
		log.Warn().Msg("Initializing vault in LIVE mode. Real transactions will be broadcast.")
		signer, err := wallet.NewSigningClient(grpcClient)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize signing client")
		}
		vaultAddress = signer.GetAddress().String()
		executor = wallet.NewExecutor(signer, vaultAddress, config.SwapRouter)
	case config.ModeDryRun:
		log.Warn().Msg("Initializing vault in DRY-RUN mode. Effects are logged, never broadcast.")
		vaultAddress = config.VaultAddress
		executor = wallet.NewDryRunExecutor(vaultAddress, config.SwapRouter)
	default:
		log.Fatal().Str("mode", config.VaultMode).Msg("Unknown VAULT_MODE. Halting to prevent accidental execution.")
	}

	// --- 4. Vault core and host ---
	core, err := vault.New(vault.Options{
		Store:         state.ConfigStore{},
		Oracle:        oracle.NewClient(wasmtypes.NewQueryClient(grpcClient), config.QueryTimeout),
		Staking:       staking.NewClient(stakingtypes.NewQueryClient(grpcClient), distrtypes.NewQueryClient(grpcClient), banktypes.NewQueryClient(grpcClient), config.QueryTimeout),
		Self:          types.Identity(vaultAddress),
		NativeDenom:   config.NativeDenom,
		StrictAmounts: config.StrictAmounts,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create vault core")
	}

	deployer := config.DeployerAddress
	if deployer == "" {
		deployer = vaultAddress
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	vaultHost, err := host.NewHost(host.Config{
		Core:       core,
		Executor:   executor,
		Deposits:   wallet.NewDepositVerifier(txtypes.NewServiceClient(grpcClient), vaultAddress, config.QueryTimeout),
		Consumed:   state.ConsumedStore{},
		Deployer:   types.Identity(deployer),
		Receipts:   state.ReceiptStore{},
		Indicators: metrics.NewPromIndicators(reg),
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create host")
	}
	log.Info().Str("vault", vaultAddress).Str("deployer", deployer).Bool("strict_amounts", config.StrictAmounts).Msg("Vault host ready")

	verifier, err := auth.NewVerifier(config.ChainID, config.Bech32Prefix, config.AuthMaxSkew, state.ConsumedStore{})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create request verifier")
	}

	// --- 5. Serve ---
	webPort := os.Getenv("WEB_PORT")
	if webPort == "" {
		webPort = "8080"
	}
	webServer := web.NewWebServer(webPort, vaultHost, verifier, state.TestDBConnection, reg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Info().Str("port", webPort).Str("url", "http://localhost:"+webPort).Msg("Starting vault API")
		if err := webServer.Start(); err != nil {
			log.Error().Err(err).Msg("Web server stopped")
			stop()
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")
}

// Helper to convert string to int with a default value
func mustAtoi(s string, defaultValue int) int {
	i, err := strconv.Atoi(s)
	if err != nil {
		return defaultValue
	}
	return i
}
