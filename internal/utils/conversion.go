/*
This file contains common utility functions for converting chain amounts into SDK math types,
particularly for Uint128 strings returned by CosmWasm contracts and decimal reward coins.
*/

package utils

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	sdkmath "cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"
)

// Error definitions for zero-tolerance error handling
var (
	ErrAmountEmpty      = errors.New("amount is empty")
	ErrAmountNil        = errors.New("amount is nil")
	ErrAmountNegative   = errors.New("amount is negative")
	ErrAmountOverflow   = errors.New("amount exceeds uint128")
	ErrConversionFailed = errors.New("conversion failed")
)

// MaxUint128 is the largest amount a CosmWasm Uint128 can carry.
var MaxUint128 = sdkmath.NewIntFromBigInt(new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 128), big.NewInt(1)))

// ParseUint128 parses a decimal Uint128 string as produced by CosmWasm contracts.
func ParseUint128(raw string) (sdkmath.Int, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return sdkmath.ZeroInt(), ErrAmountEmpty
	}
	amount, ok := sdkmath.NewIntFromString(trimmed)
	if !ok {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: %q is not an integer", ErrConversionFailed, raw)
	}
	if err := ValidateUint128(amount); err != nil {
		return sdkmath.ZeroInt(), err
	}
	return amount, nil
}

// ValidateUint128 rejects nil, negative and oversized amounts.
func ValidateUint128(amount sdkmath.Int) error {
	if amount.IsNil() {
		return ErrAmountNil
	}
	if amount.IsNegative() {
		return ErrAmountNegative
	}
	if amount.GT(MaxUint128) {
		return ErrAmountOverflow
	}
	return nil
}

// AmountOfDenom returns the first amount attached for denom, zero when absent.
// Funds are not assumed to be sorted, so sdk.Coins.AmountOf is not used.
func AmountOfDenom(funds []sdk.Coin, denom string) sdkmath.Int {
	for _, c := range funds {
		if c.Denom == denom && !c.Amount.IsNil() {
			return c.Amount
		}
	}
	return sdkmath.ZeroInt()
}

// TruncateDecCoins drops the fractional part of each reward coin, keeping the input order
// and skipping entries that truncate to zero.
func TruncateDecCoins(coins sdk.DecCoins) []sdk.Coin {
	out := make([]sdk.Coin, 0, len(coins))
	for _, dc := range coins {
		if dc.Amount.IsNil() {
			continue
		}
		amount := dc.Amount.TruncateInt()
		if !amount.IsPositive() {
			continue
		}
		out = append(out, sdk.Coin{Denom: dc.Denom, Amount: amount})
	}
	return out
}
