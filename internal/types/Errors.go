/*

This file contains the error taxonomy shared by the vault core and its query adapters.
Every failure is reported before any effect is emitted, so the class only tells the caller
why an operation was rejected.

*/

package types

import "errors"

// Authorization errors
var (
	ErrUnauthorized    = errors.New("unauthorized")
	ErrUnauthenticated = errors.New("request signature could not be verified")
	ErrRequestReplayed = errors.New("signed request was already used")
)

// Precondition errors
var (
	ErrInsufficientTokenInventory = errors.New("not enough tokens in vault inventory")
	ErrInvalidPrice               = errors.New("oracle price is zero")
	ErrAmountExceedsAvailable     = errors.New("requested amount exceeds available funds")
	ErrInvalidRequest             = errors.New("invalid operation request")
	ErrInvalidAmount              = errors.New("amount is invalid")
	ErrInvalidIdentity            = errors.New("identity cannot be empty")
	ErrInvalidConfig              = errors.New("vault configuration is invalid")
	ErrAlreadyInitialized         = errors.New("vault is already initialized")
	ErrDepositRequired            = errors.New("purchase requires a deposit transaction")
	ErrDepositInvalid             = errors.New("deposit transaction does not pay the vault")
	ErrDepositReplayed            = errors.New("deposit transaction was already used")
)

// External dependency errors
var (
	ErrOracleUnavailable   = errors.New("oracle query failed")
	ErrOracleMalformed     = errors.New("oracle response could not be decoded")
	ErrStakingQueryFailed  = errors.New("staking query failed")
	ErrTxRejected          = errors.New("transaction rejected by chain")
	ErrTxSubmitFailed      = errors.New("transaction could not be submitted")
	ErrDepositLookupFailed = errors.New("deposit transaction lookup failed")
)

// ErrAlreadyClaimed is returned by one-time key stores. Callers translate it into the
// replay error of their own class.
var ErrAlreadyClaimed = errors.New("key already claimed")

// Invariant violations
var (
	ErrConfigMissing      = errors.New("vault configuration not found")
	ErrNoActiveDelegation = errors.New("no active delegation for configured validator")
)

type ErrorClass string

const (
	ErrorClassNone          ErrorClass = ""
	ErrorClassAuthorization ErrorClass = "authorization"
	ErrorClassPrecondition  ErrorClass = "precondition"
	ErrorClassExternal      ErrorClass = "external_dependency"
	ErrorClassInvariant     ErrorClass = "invariant"
	ErrorClassInternal      ErrorClass = "internal"
)

var errorClasses = []struct {
	class ErrorClass
	errs  []error
}{
	{ErrorClassAuthorization, []error{ErrUnauthorized, ErrUnauthenticated, ErrRequestReplayed}},
	{ErrorClassInvariant, []error{ErrConfigMissing, ErrNoActiveDelegation}},
	{ErrorClassExternal, []error{ErrOracleUnavailable, ErrOracleMalformed, ErrStakingQueryFailed, ErrTxRejected, ErrTxSubmitFailed, ErrDepositLookupFailed}},
	{ErrorClassPrecondition, []error{
		ErrInsufficientTokenInventory, ErrInvalidPrice, ErrAmountExceedsAvailable, ErrInvalidRequest,
		ErrInvalidAmount, ErrInvalidIdentity, ErrInvalidConfig, ErrAlreadyInitialized,
		ErrDepositRequired, ErrDepositInvalid, ErrDepositReplayed,
	}},
}

// Classify maps an error onto the taxonomy. Unknown errors are internal.
func Classify(err error) ErrorClass {
	if err == nil {
		return ErrorClassNone
	}
	for _, c := range errorClasses {
		for _, target := range c.errs {
			if errors.Is(err, target) {
				return c.class
			}
		}
	}
	return ErrorClassInternal
}
