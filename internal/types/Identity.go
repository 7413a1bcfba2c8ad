/*

Identity is the opaque account/contract/validator reference used across the vault.
The core only ever compares identities for equality, it never decodes them.

*/

package types

import "strings"

type Identity string

// NewIdentity trims surrounding whitespace and rejects empty values.
func NewIdentity(raw string) (Identity, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", ErrInvalidIdentity
	}
	return Identity(trimmed), nil
}

func (i Identity) String() string { return string(i) }

func (i Identity) IsEmpty() bool { return strings.TrimSpace(string(i)) == "" }

func (i Identity) Equal(other Identity) bool { return i == other }
