package oracle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sdkmath "cosmossdk.io/math"
	wasmtypes "github.com/CosmWasm/wasmd/x/wasm/types"

	"github.com/elys-network/stakevault/internal/logger"
	"github.com/elys-network/stakevault/internal/types"
	"github.com/elys-network/stakevault/internal/utils"
)

var oracleLogger = logger.GetForComponent("oracle_client")

// QueryMsg is the oracle contract's query schema.
type QueryMsg struct {
	GetPrice *GetPrice `json:"get_price,omitempty"`
}

type GetPrice struct{}

// Cw20QueryMsg is the subset of the CW20 query schema the vault uses.
type Cw20QueryMsg struct {
	Balance *Balance `json:"balance,omitempty"`
}

type Balance struct {
	Address string `json:"address"`
}

type BalanceResponse struct {
	Balance string `json:"balance"`
}

// Client answers price and token balance lookups through wasm smart queries.
// Nothing is cached: every call reaches the chain.
type Client struct {
	querier wasmtypes.QueryClient
	timeout time.Duration
}

func NewClient(querier wasmtypes.QueryClient, timeout time.Duration) *Client {
	return &Client{querier: querier, timeout: timeout}
}

// Price returns the oracle's unit price (native units per token unit). A zero price is
// returned as is; rejecting it is the caller's decision.
func (c *Client) Price(ctx context.Context, oracle types.Identity) (sdkmath.Int, error) {
	var raw string
	if err := c.smartQuery(ctx, oracle, QueryMsg{GetPrice: &GetPrice{}}, &raw); err != nil {
		return sdkmath.ZeroInt(), err
	}

	price, err := utils.ParseUint128(raw)
	if err != nil {
		return sdkmath.ZeroInt(), errors.Join(types.ErrOracleMalformed, err)
	}

	oracleLogger.Debug().Str("oracle", oracle.String()).Str("price", price.String()).Msg("Fetched unit price")
	return price, nil
}

// TokenBalance returns holder's CW20 balance on the token ledger.
func (c *Client) TokenBalance(ctx context.Context, ledger, holder types.Identity) (sdkmath.Int, error) {
	var resp BalanceResponse
	msg := Cw20QueryMsg{Balance: &Balance{Address: holder.String()}}
	if err := c.smartQuery(ctx, ledger, msg, &resp); err != nil {
		return sdkmath.ZeroInt(), err
	}

	balance, err := utils.ParseUint128(resp.Balance)
	if err != nil {
		return sdkmath.ZeroInt(), errors.Join(types.ErrOracleMalformed, err)
	}

	oracleLogger.Debug().Str("ledger", ledger.String()).Str("holder", holder.String()).Str("balance", balance.String()).Msg("Fetched token balance")
	return balance, nil
}

func (c *Client) smartQuery(ctx context.Context, contract types.Identity, msg interface{}, out interface{}) error {
	queryBytes, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to encode smart query: %w", err)
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	resp, err := c.querier.SmartContractState(ctx, &wasmtypes.QuerySmartContractStateRequest{
		Address:   contract.String(),
		QueryData: queryBytes,
	})
	if err != nil {
		oracleLogger.Error().Err(err).Str("contract", contract.String()).Msg("Smart query failed")
		return errors.Join(types.ErrOracleUnavailable, err)
	}
	if resp == nil {
		return errors.Join(types.ErrOracleMalformed, errors.New("empty smart query response"))
	}

	if err := json.Unmarshal(resp.Data, out); err != nil {
		return errors.Join(types.ErrOracleMalformed, err)
	}
	return nil
}
