package vault

import (
	"context"
	"errors"
	"testing"

	sdkmath "cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/elys-network/stakevault/internal/types"
)

const (
	owner     = types.Identity("terra1owner")
	oracleID  = types.Identity("terra1oracle")
	tokenID   = types.Identity("terra1token")
	validator = types.Identity("terravaloper1v")
	self      = types.Identity("terra1vault")
	buyer     = types.Identity("terra1buyer")
)

type memoryStore struct {
	cfg *types.VaultConfig
}

func (m *memoryStore) LoadVaultConfig(context.Context) (*types.VaultConfig, error) {
	if m.cfg == nil {
		return nil, types.ErrConfigMissing
	}
	cfg := *m.cfg
	return &cfg, nil
}

func (m *memoryStore) SaveVaultConfig(_ context.Context, cfg types.VaultConfig) error {
	if m.cfg != nil {
		return types.ErrAlreadyInitialized
	}
	m.cfg = &cfg
	return nil
}

type fakeOracle struct {
	price       sdkmath.Int
	balance     sdkmath.Int
	priceErr    error
	balanceErr  error
	priceCalls  int
	balanceCall int
}

func (f *fakeOracle) Price(context.Context, types.Identity) (sdkmath.Int, error) {
	f.priceCalls++
	return f.price, f.priceErr
}

func (f *fakeOracle) TokenBalance(_ context.Context, ledger, holder types.Identity) (sdkmath.Int, error) {
	f.balanceCall++
	if ledger != tokenID || holder != self {
		return sdkmath.ZeroInt(), errors.New("unexpected balance query")
	}
	return f.balance, f.balanceErr
}

type fakeStaking struct {
	snapshot *types.DelegationSnapshot
	liquid   sdkmath.Int
	err      error
	calls    int
}

func (f *fakeStaking) Delegation(_ context.Context, delegator, val types.Identity) (*types.DelegationSnapshot, error) {
	f.calls++
	if delegator != self || val != validator {
		return nil, errors.New("unexpected delegation query")
	}
	return f.snapshot, f.err
}

func (f *fakeStaking) LiquidBalance(context.Context, types.Identity, string) (sdkmath.Int, error) {
	f.calls++
	return f.liquid, f.err
}

type VaultTestSuite struct {
	suite.Suite
	store   *memoryStore
	oracle  *fakeOracle
	staking *fakeStaking
	vault   *Vault
	ctx     context.Context
}

func (s *VaultTestSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = &memoryStore{cfg: &types.VaultConfig{
		Owner: owner, OracleAddress: oracleID, TokenAddress: tokenID, Validator: validator,
	}}
	s.oracle = &fakeOracle{price: sdkmath.NewInt(5), balance: sdkmath.NewInt(10)}
	s.staking = &fakeStaking{
		snapshot: &types.DelegationSnapshot{
			Validator: validator,
			Staked:    coin("uluna", 1000),
			Rewards:   []sdk.Coin{coin("ukrw", 50), coin("uusd", 20)},
		},
		liquid: sdkmath.NewInt(80),
	}
	s.vault = s.newVault(false)
}

func (s *VaultTestSuite) newVault(strict bool) *Vault {
	v, err := New(Options{
		Store: s.store, Oracle: s.oracle, Staking: s.staking,
		Self: self, NativeDenom: "uluna", StrictAmounts: strict,
	})
	s.Require().NoError(err)
	return v
}

func TestVault(t *testing.T) {
	suite.Run(t, new(VaultTestSuite))
}

func coin(denom string, amount int64) sdk.Coin {
	return sdk.NewCoin(denom, sdkmath.NewInt(amount))
}

func (s *VaultTestSuite) Test_Purchase_FloorDivision() {
	effects, err := s.vault.Purchase(s.ctx, types.MessageInfo{Sender: buyer, Funds: []sdk.Coin{coin("uluna", 23)}})
	s.Require().NoError(err)
	s.Require().Len(effects, 2)

	s.Equal(types.EffectTokenTransfer, effects[0].Type)
	s.Equal(tokenID, effects[0].TokenContract)
	s.Equal(buyer, effects[0].Recipient)
	s.Equal(int64(4), effects[0].TokenAmount.Int64())

	s.Equal(types.EffectDelegate, effects[1].Type)
	s.Equal(validator, effects[1].Validator)
	s.Equal(coin("uluna", 23), effects[1].Amount)
}

func (s *VaultTestSuite) Test_Purchase_Properties() {
	cases := []struct {
		deposit, price, balance int64
		want                    int64
		err                     error
	}{
		{deposit: 0, price: 7, balance: 0, want: 0},
		{deposit: 6, price: 7, balance: 0, want: 0},
		{deposit: 7, price: 7, balance: 1, want: 1},
		{deposit: 100, price: 3, balance: 33, want: 33},
		{deposit: 100, price: 3, balance: 32, err: types.ErrInsufficientTokenInventory},
		{deposit: 1, price: 1, balance: 0, err: types.ErrInsufficientTokenInventory},
	}
	for _, tc := range cases {
		s.oracle.price = sdkmath.NewInt(tc.price)
		s.oracle.balance = sdkmath.NewInt(tc.balance)

		effects, err := s.vault.Purchase(s.ctx, types.MessageInfo{Sender: buyer, Funds: []sdk.Coin{coin("uluna", tc.deposit)}})
		if tc.err != nil {
			s.ErrorIs(err, tc.err)
			s.Empty(effects)
			continue
		}
		s.Require().NoError(err)
		s.Require().Len(effects, 2)
		s.Equal(tc.want, effects[0].TokenAmount.Int64())
		s.Equal(tc.deposit, effects[1].Amount.Amount.Int64())
	}
}

func (s *VaultTestSuite) Test_Purchase_IgnoresOtherDenoms() {
	effects, err := s.vault.Purchase(s.ctx, types.MessageInfo{Sender: buyer, Funds: []sdk.Coin{coin("uusd", 500)}})
	s.Require().NoError(err)
	s.True(effects[0].TokenAmount.IsZero())
	s.True(effects[1].Amount.Amount.IsZero())
	s.Equal("uluna", effects[1].Amount.Denom)
}

func (s *VaultTestSuite) Test_Purchase_ZeroPriceRejectedBeforeBalance() {
	s.oracle.price = sdkmath.ZeroInt()

	effects, err := s.vault.Purchase(s.ctx, types.MessageInfo{Sender: buyer, Funds: []sdk.Coin{coin("uluna", 23)}})
	s.ErrorIs(err, types.ErrInvalidPrice)
	s.Nil(effects)
	s.Zero(s.oracle.balanceCall)
}

func (s *VaultTestSuite) Test_Purchase_OracleFailures() {
	s.oracle.priceErr = types.ErrOracleUnavailable
	_, err := s.vault.Purchase(s.ctx, types.MessageInfo{Sender: buyer})
	s.ErrorIs(err, types.ErrOracleUnavailable)

	s.oracle.priceErr = nil
	s.oracle.balanceErr = types.ErrOracleMalformed
	effects, err := s.vault.Purchase(s.ctx, types.MessageInfo{Sender: buyer})
	s.ErrorIs(err, types.ErrOracleMalformed)
	s.Nil(effects)
}

func (s *VaultTestSuite) Test_Purchase_ConfigMissing() {
	s.store.cfg = nil
	_, err := s.vault.Purchase(s.ctx, types.MessageInfo{Sender: buyer})
	s.ErrorIs(err, types.ErrConfigMissing)
	s.Zero(s.oracle.priceCalls)
}

func (s *VaultTestSuite) Test_WithdrawRewards_Sequence() {
	effects, err := s.vault.WithdrawRewards(s.ctx, owner, sdkmath.NewInt(100))
	s.Require().NoError(err)

	want := []types.Effect{
		{Type: types.EffectSetWithdrawAddress, WithdrawAddress: self},
		{Type: types.EffectWithdrawRewards, Validator: validator},
		{Type: types.EffectSwap, OfferCoin: coin("ukrw", 50), AskDenom: "uluna"},
		{Type: types.EffectSwap, OfferCoin: coin("uusd", 20), AskDenom: "uluna"},
		{Type: types.EffectPayout, Recipient: owner, Amount: coin("uluna", 100)},
	}
	s.Equal(want, effects)
}

func (s *VaultTestSuite) Test_WithdrawRewards_KeepsSnapshotOrder() {
	s.staking.snapshot.Rewards = []sdk.Coin{coin("uusd", 1), coin("uaud", 2), coin("ukrw", 3)}

	effects, err := s.vault.WithdrawRewards(s.ctx, owner, sdkmath.NewInt(1))
	s.Require().NoError(err)
	s.Require().Len(effects, 6)
	s.Equal("uusd", effects[2].OfferCoin.Denom)
	s.Equal("uaud", effects[3].OfferCoin.Denom)
	s.Equal("ukrw", effects[4].OfferCoin.Denom)
	s.Equal(types.EffectPayout, effects[5].Type)
}

func (s *VaultTestSuite) Test_WithdrawRewards_PayoutDecoupledFromRewards() {
	effects, err := s.vault.WithdrawRewards(s.ctx, owner, sdkmath.NewInt(1_000_000))
	s.Require().NoError(err)
	s.Equal(int64(1_000_000), effects[len(effects)-1].Amount.Amount.Int64())
}

func (s *VaultTestSuite) Test_WithdrawRewards_NoDelegation() {
	s.staking.snapshot = nil
	effects, err := s.vault.WithdrawRewards(s.ctx, owner, sdkmath.NewInt(1))
	s.ErrorIs(err, types.ErrNoActiveDelegation)
	s.Nil(effects)
}

func (s *VaultTestSuite) Test_WithdrawRewards_StakingFailure() {
	s.staking.err = types.ErrStakingQueryFailed
	_, err := s.vault.WithdrawRewards(s.ctx, owner, sdkmath.NewInt(1))
	s.ErrorIs(err, types.ErrStakingQueryFailed)
}

func (s *VaultTestSuite) Test_OwnerOnly_RejectsBeforeQueries() {
	for i := 0; i < 2; i++ {
		effects, err := s.vault.WithdrawRewards(s.ctx, "terra1thief", sdkmath.NewInt(100))
		s.ErrorIs(err, types.ErrUnauthorized)
		s.Nil(effects)

		effects, err = s.vault.StartUndelegation(s.ctx, "terra1thief", sdkmath.NewInt(100))
		s.ErrorIs(err, types.ErrUnauthorized)
		s.Nil(effects)
	}
	s.Zero(s.staking.calls)
}

func (s *VaultTestSuite) Test_StartUndelegation() {
	effects, err := s.vault.StartUndelegation(s.ctx, owner, sdkmath.NewInt(5000))
	s.Require().NoError(err)
	s.Equal([]types.Effect{{Type: types.EffectUndelegate, Validator: validator, Amount: coin("uluna", 5000)}}, effects)
	s.Zero(s.staking.calls)
}

func (s *VaultTestSuite) Test_InvalidAmounts() {
	_, err := s.vault.StartUndelegation(s.ctx, owner, sdkmath.Int{})
	s.ErrorIs(err, types.ErrInvalidAmount)

	_, err = s.vault.WithdrawRewards(s.ctx, owner, sdkmath.NewInt(-1))
	s.ErrorIs(err, types.ErrInvalidAmount)
}

func (s *VaultTestSuite) Test_Strict_Undelegation() {
	v := s.newVault(true)

	_, err := v.StartUndelegation(s.ctx, owner, sdkmath.NewInt(1000))
	s.NoError(err)

	effects, err := v.StartUndelegation(s.ctx, owner, sdkmath.NewInt(1001))
	s.ErrorIs(err, types.ErrAmountExceedsAvailable)
	s.Nil(effects)

	s.staking.snapshot = nil
	_, err = v.StartUndelegation(s.ctx, owner, sdkmath.NewInt(1))
	s.ErrorIs(err, types.ErrNoActiveDelegation)
}

func (s *VaultTestSuite) Test_Strict_WithdrawRewards() {
	v := s.newVault(true)
	s.staking.snapshot.Rewards = []sdk.Coin{coin("ukrw", 50), coin("uluna", 20)}

	_, err := v.WithdrawRewards(s.ctx, owner, sdkmath.NewInt(100))
	s.NoError(err)

	_, err = v.WithdrawRewards(s.ctx, owner, sdkmath.NewInt(101))
	s.ErrorIs(err, types.ErrAmountExceedsAvailable)
}

func (s *VaultTestSuite) Test_Execute_Dispatch() {
	effects, err := s.vault.Execute(s.ctx, types.MessageInfo{Sender: owner},
		types.ExecuteMsg{StartUndelegation: &types.StartUndelegation{Amount: sdkmath.NewInt(3)}})
	s.Require().NoError(err)
	s.Len(effects, 1)

	_, err = s.vault.Execute(s.ctx, types.MessageInfo{Sender: owner}, types.ExecuteMsg{})
	s.ErrorIs(err, types.ErrInvalidRequest)

	_, err = s.vault.Execute(s.ctx, types.MessageInfo{Sender: owner}, types.ExecuteMsg{
		Purchase:        &types.Purchase{},
		WithdrawRewards: &types.WithdrawRewards{Amount: sdkmath.NewInt(1)},
	})
	s.ErrorIs(err, types.ErrInvalidRequest)
}

func (s *VaultTestSuite) Test_Instantiate() {
	s.store.cfg = nil
	cfg, err := s.vault.Instantiate(s.ctx, types.InstantiateMsg{
		Owner: "terra1owner", OracleAddress: "terra1oracle", TokenAddress: "terra1token", Validator: "terravaloper1v",
	})
	s.Require().NoError(err)
	s.Equal(owner, cfg.Owner)
	s.Equal("stakevault", cfg.ContractName)
	s.Equal("1.0.0", cfg.ContractVersion)

	_, err = s.vault.Instantiate(s.ctx, types.InstantiateMsg{
		Owner: "terra1other", OracleAddress: "terra1oracle", TokenAddress: "terra1token", Validator: "terravaloper1v",
	})
	s.ErrorIs(err, types.ErrAlreadyInitialized)

	stored, err := s.vault.Config(s.ctx)
	s.Require().NoError(err)
	s.Equal(owner, stored.Owner)
}

func (s *VaultTestSuite) Test_Instantiate_EmptyIdentity() {
	s.store.cfg = nil
	_, err := s.vault.Instantiate(s.ctx, types.InstantiateMsg{Owner: "terra1owner", OracleAddress: " ", TokenAddress: "t", Validator: "v"})
	s.ErrorIs(err, types.ErrInvalidConfig)
	s.Nil(s.store.cfg)
}

func TestNewRequiresCollaborators(t *testing.T) {
	_, err := New(Options{Self: self})
	require.ErrorIs(t, err, types.ErrInvalidConfig)

	_, err = New(Options{Store: &memoryStore{}, Oracle: &fakeOracle{}, Staking: &fakeStaking{}})
	require.ErrorIs(t, err, types.ErrInvalidConfig)

	v, err := New(Options{Store: &memoryStore{}, Oracle: &fakeOracle{}, Staking: &fakeStaking{}, Self: self})
	require.NoError(t, err)
	require.Equal(t, "uluna", v.NativeDenom())
}
