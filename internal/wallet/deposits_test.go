package wallet

import (
	"context"
	"errors"
	"testing"

	codectypes "github.com/cosmos/cosmos-sdk/codec/types"
	sdk "github.com/cosmos/cosmos-sdk/types"
	txtypes "github.com/cosmos/cosmos-sdk/types/tx"
	banktypes "github.com/cosmos/cosmos-sdk/x/bank/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/elys-network/stakevault/internal/types"
)

type fakeTxService struct {
	txtypes.ServiceClient
	resp *txtypes.GetTxResponse
	err  error
}

func (f *fakeTxService) GetTx(_ context.Context, _ *txtypes.GetTxRequest, _ ...grpc.CallOption) (*txtypes.GetTxResponse, error) {
	return f.resp, f.err
}

func committedTx(t *testing.T, code uint32, msgs ...sdk.Msg) *txtypes.GetTxResponse {
	t.Helper()
	anys := make([]*codectypes.Any, 0, len(msgs))
	for _, m := range msgs {
		a, err := codectypes.NewAnyWithValue(m)
		require.NoError(t, err)
		anys = append(anys, a)
	}
	return &txtypes.GetTxResponse{
		Tx:         &txtypes.Tx{Body: &txtypes.TxBody{Messages: anys}},
		TxResponse: &sdk.TxResponse{TxHash: "ABC", Code: code},
	}
}

func send(from, to string, amount ...sdk.Coin) *banktypes.MsgSend {
	return &banktypes.MsgSend{FromAddress: from, ToAddress: to, Amount: sdk.NewCoins(amount...)}
}

func TestVerifyDeposit_SumsSendsToVault(t *testing.T) {
	svc := &fakeTxService{resp: committedTx(t, 0,
		send("terra1buyer", vaultAddr, coin("uluna", 20)),
		send("terra1buyer", "terra1elsewhere", coin("uluna", 1000)),
		send("terra1buyer", vaultAddr, coin("uluna", 3), coin("ukrw", 5)),
	)}
	paid, err := NewDepositVerifier(svc, vaultAddr, 0).VerifyDeposit(context.Background(), "terra1buyer", "ABC")
	require.NoError(t, err)
	assert.Equal(t, "5ukrw,23uluna", sdk.Coins(paid).String())
}

func TestVerifyDeposit_Rejections(t *testing.T) {
	tests := []struct {
		name string
		svc  *fakeTxService
		want error
	}{
		{"unknown tx", &fakeTxService{err: status.Error(codes.NotFound, "tx not found")}, types.ErrDepositInvalid},
		{"node down", &fakeTxService{err: status.Error(codes.Unavailable, "connection refused")}, types.ErrDepositLookupFailed},
		{"failed tx", &fakeTxService{resp: committedTx(t, 5, send("terra1buyer", vaultAddr, coin("uluna", 20)))}, types.ErrDepositInvalid},
		{"foreign recipient", &fakeTxService{resp: committedTx(t, 0, send("terra1buyer", "terra1elsewhere", coin("uluna", 20)))}, types.ErrDepositInvalid},
		{"someone else's send", &fakeTxService{resp: committedTx(t, 0, send("terra1other", vaultAddr, coin("uluna", 20)))}, types.ErrDepositInvalid},
		{"no bank send", &fakeTxService{resp: committedTx(t, 0, &banktypes.MsgMultiSend{})}, types.ErrDepositInvalid},
		{"empty response", &fakeTxService{resp: &txtypes.GetTxResponse{}}, types.ErrDepositInvalid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewDepositVerifier(tt.svc, vaultAddr, 0).VerifyDeposit(context.Background(), "terra1buyer", "ABC")
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}
}
