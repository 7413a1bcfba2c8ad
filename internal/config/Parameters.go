/*

This file contains the defaults for the vault service.

*/

package config

import "time"

const (
	ModeLive   = "live"
	ModeDryRun = "dry-run"

	// ContractName and ContractVersion are recorded next to the vault configuration at instantiation.
	ContractName    = "stakevault"
	ContractVersion = "1.0.0"

	DefaultNativeDenom  = "uluna"
	DefaultBech32Prefix = "terra"
	DefaultQueryTimeout = 10 * time.Second
	DefaultAuthMaxSkew  = 5 * time.Minute
)
