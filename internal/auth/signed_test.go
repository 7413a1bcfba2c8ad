package auth

import (
	"context"
	"encoding/base64"
	"testing"
	"time"

	"github.com/cosmos/cosmos-sdk/crypto/keys/secp256k1"
	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elys-network/stakevault/internal/types"
)

const testChainID = "columbus-5"

type memClaimer map[string]bool

func (m memClaimer) Claim(_ context.Context, kind, key string) error {
	if m[kind+"/"+key] {
		return types.ErrAlreadyClaimed
	}
	m[kind+"/"+key] = true
	return nil
}

var fixedNow = time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)

func newTestVerifier(t *testing.T) *Verifier {
	t.Helper()
	v, err := NewVerifier(testChainID, "terra", 5*time.Minute, memClaimer{})
	require.NoError(t, err)
	v.now = func() time.Time { return fixedNow }
	return v
}

func TestVerifyDerivesSignerAddress(t *testing.T) {
	v := newTestVerifier(t)
	priv := secp256k1.GenPrivKey()

	req, err := Sign(priv, testChainID, ActionExecute, fixedNow.Unix(), []byte(`{"msg":{"purchase":{}}}`))
	require.NoError(t, err)

	signer, err := v.Verify(context.Background(), ActionExecute, req)
	require.NoError(t, err)

	want, err := sdk.Bech32ifyAddressBytes("terra", priv.PubKey().Address())
	require.NoError(t, err)
	assert.Equal(t, types.Identity(want), signer)
}

func TestVerifyRejectsReplay(t *testing.T) {
	v := newTestVerifier(t)
	req, err := Sign(secp256k1.GenPrivKey(), testChainID, ActionExecute, fixedNow.Unix(), []byte(`{}`))
	require.NoError(t, err)

	_, err = v.Verify(context.Background(), ActionExecute, req)
	require.NoError(t, err)

	_, err = v.Verify(context.Background(), ActionExecute, req)
	assert.ErrorIs(t, err, types.ErrRequestReplayed)
}

func TestVerifySameBodyDifferentSigners(t *testing.T) {
	v := newTestVerifier(t)
	body := []byte(`{"msg":{"purchase":{}}}`)

	for i := 0; i < 2; i++ {
		req, err := Sign(secp256k1.GenPrivKey(), testChainID, ActionExecute, fixedNow.Unix(), body)
		require.NoError(t, err)
		_, err = v.Verify(context.Background(), ActionExecute, req)
		require.NoError(t, err)
	}
}

func TestVerifyRejectsTampering(t *testing.T) {
	priv := secp256k1.GenPrivKey()
	other := secp256k1.GenPrivKey()
	body := []byte(`{"msg":{"withdraw_rewards":{"amount":"10"}}}`)

	tests := []struct {
		name   string
		mutate func(*SignedRequest)
		action string
	}{
		{"body changed", func(r *SignedRequest) { r.Body = []byte(`{"msg":{"withdraw_rewards":{"amount":"99"}}}`) }, ActionExecute},
		{"key swapped", func(r *SignedRequest) {
			r.PubKey = base64.StdEncoding.EncodeToString(other.PubKey().Bytes())
		}, ActionExecute},
		{"other action", func(*SignedRequest) {}, ActionInstantiate},
		{"stale", func(r *SignedRequest) { r.Timestamp = fixedNow.Add(-time.Hour).Unix() }, ActionExecute},
		{"bad key", func(r *SignedRequest) { r.PubKey = "not-base64!" }, ActionExecute},
		{"empty body", func(r *SignedRequest) { r.Body = nil }, ActionExecute},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := newTestVerifier(t)
			req, err := Sign(priv, testChainID, ActionExecute, fixedNow.Unix(), body)
			require.NoError(t, err)
			tt.mutate(&req)

			_, err = v.Verify(context.Background(), tt.action, req)
			assert.ErrorIs(t, err, types.ErrUnauthenticated)
		})
	}
}

func TestVerifyRejectsOtherChain(t *testing.T) {
	v := newTestVerifier(t)
	req, err := Sign(secp256k1.GenPrivKey(), "phoenix-1", ActionExecute, fixedNow.Unix(), []byte(`{}`))
	require.NoError(t, err)

	_, err = v.Verify(context.Background(), ActionExecute, req)
	assert.ErrorIs(t, err, types.ErrUnauthenticated)
}

func TestNewVerifierValidation(t *testing.T) {
	_, err := NewVerifier("", "terra", time.Minute, memClaimer{})
	assert.Error(t, err)
	_, err = NewVerifier(testChainID, "terra", 0, memClaimer{})
	assert.Error(t, err)
	_, err = NewVerifier(testChainID, "terra", time.Minute, nil)
	assert.Error(t, err)
}
