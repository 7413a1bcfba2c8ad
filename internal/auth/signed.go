package auth

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/cosmos/cosmos-sdk/crypto/keys/secp256k1"
	cryptotypes "github.com/cosmos/cosmos-sdk/crypto/types"
	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/elys-network/stakevault/internal/logger"
	"github.com/elys-network/stakevault/internal/types"
)

var authLogger = logger.GetForComponent("auth")

const claimKindRequest = "signed_request"

// Actions bound into the signed bytes, so a signature for one endpoint is useless on another.
const (
	ActionInstantiate = "instantiate"
	ActionExecute     = "execute"
)

// SignedRequest wraps an API body with the caller's secp256k1 signature over it.
// PubKey and Signature are base64 encoded.
type SignedRequest struct {
	PubKey    string          `json:"pub_key"`
	Signature string          `json:"signature"`
	Timestamp int64           `json:"timestamp"`
	Body      json.RawMessage `json:"body"`
}

// KeyClaimer records keys that may be used only once.
type KeyClaimer interface {
	Claim(ctx context.Context, kind, key string) error
}

// Verifier authenticates signed requests and derives the caller's account address.
type Verifier struct {
	chainID string
	prefix  string
	maxSkew time.Duration
	replay  KeyClaimer
	now     func() time.Time
}

func NewVerifier(chainID, bech32Prefix string, maxSkew time.Duration, replay KeyClaimer) (*Verifier, error) {
	if chainID == "" || bech32Prefix == "" {
		return nil, errors.New("chain id and bech32 prefix are required")
	}
	if maxSkew <= 0 {
		return nil, errors.New("max skew must be positive")
	}
	if replay == nil {
		return nil, errors.New("replay store cannot be nil")
	}
	return &Verifier{chainID: chainID, prefix: bech32Prefix, maxSkew: maxSkew, replay: replay, now: time.Now}, nil
}

// SignBytes is what a caller signs: chain ID, action, unix timestamp and the exact body bytes.
func SignBytes(chainID, action string, timestamp int64, body []byte) []byte {
	out := make([]byte, 0, len(chainID)+len(action)+len(body)+24)
	out = append(out, chainID...)
	out = append(out, '\n')
	out = append(out, action...)
	out = append(out, '\n')
	out = strconv.AppendInt(out, timestamp, 10)
	out = append(out, '\n')
	return append(out, body...)
}

// Sign wraps body in a SignedRequest signed by priv. body should be compact JSON, since
// encoding/json compacts a RawMessage when the envelope is marshaled.
func Sign(priv cryptotypes.PrivKey, chainID, action string, timestamp int64, body []byte) (SignedRequest, error) {
	sig, err := priv.Sign(SignBytes(chainID, action, timestamp, body))
	if err != nil {
		return SignedRequest{}, fmt.Errorf("signing request: %w", err)
	}
	return SignedRequest{
		PubKey:    base64.StdEncoding.EncodeToString(priv.PubKey().Bytes()),
		Signature: base64.StdEncoding.EncodeToString(sig),
		Timestamp: timestamp,
		Body:      body,
	}, nil
}

// Verify checks the signature and timestamp of req for action and returns the signer's address.
// Each signed request is accepted once per key.
func (v *Verifier) Verify(ctx context.Context, action string, req SignedRequest) (types.Identity, error) {
	if len(req.Body) == 0 {
		return "", fmt.Errorf("%w: empty body", types.ErrUnauthenticated)
	}

	now := v.now()
	signedAt := time.Unix(req.Timestamp, 0)
	if signedAt.Before(now.Add(-v.maxSkew)) || signedAt.After(now.Add(v.maxSkew)) {
		return "", fmt.Errorf("%w: timestamp outside the accepted window", types.ErrUnauthenticated)
	}

	keyBytes, err := base64.StdEncoding.DecodeString(req.PubKey)
	if err != nil || len(keyBytes) != secp256k1.PubKeySize {
		return "", fmt.Errorf("%w: malformed public key", types.ErrUnauthenticated)
	}
	sig, err := base64.StdEncoding.DecodeString(req.Signature)
	if err != nil {
		return "", fmt.Errorf("%w: malformed signature", types.ErrUnauthenticated)
	}

	pubKey := &secp256k1.PubKey{Key: keyBytes}
	signBytes := SignBytes(v.chainID, action, req.Timestamp, req.Body)
	if !pubKey.VerifySignature(signBytes, sig) {
		return "", fmt.Errorf("%w: signature mismatch", types.ErrUnauthenticated)
	}

	address, err := sdk.Bech32ifyAddressBytes(v.prefix, pubKey.Address())
	if err != nil {
		return "", fmt.Errorf("%w: %v", types.ErrUnauthenticated, err)
	}

	digest := sha256.Sum256(append(keyBytes, signBytes...))
	if err := v.replay.Claim(ctx, claimKindRequest, hex.EncodeToString(digest[:])); err != nil {
		if errors.Is(err, types.ErrAlreadyClaimed) {
			authLogger.Warn().Str("signer", address).Str("action", action).Msg("Replayed signed request rejected")
			return "", types.ErrRequestReplayed
		}
		return "", err
	}

	return types.Identity(address), nil
}
