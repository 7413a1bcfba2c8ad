package config

import (
	"errors"
	"net"

	"github.com/rs/zerolog/log"
)

// Chain access. Queries, deposit lookups and simulation go over gRPC; signed transactions are
// broadcast through the CometBFT RPC. SwapRouter receives reward coins during a withdrawal.
var (
	NodeRPC    string
	NodeGRPC   string
	SwapRouter string
)

func loadEndpointConfig() error {
	required := []struct {
		key string
		dst *string
	}{
		{"NODE_RPC", &NodeRPC},
		{"NODE_GRPC", &NodeGRPC},
		{"SWAP_ROUTER", &SwapRouter},
	}
	for _, r := range required {
		value, err := getEnv(r.key)
		if err != nil {
			return err
		}
		*r.dst = value
	}

	// grpc.NewClient takes a bare host:port target.
	if _, _, err := net.SplitHostPort(NodeGRPC); err != nil {
		return errors.New("environment variable NODE_GRPC must be host:port, got: " + NodeGRPC)
	}

	log.Debug().
		Str("NodeRPC", NodeRPC).
		Str("NodeGRPC", NodeGRPC).
		Str("SwapRouter", SwapRouter).
		Msg("Chain endpoints loaded.")
	return nil
}
