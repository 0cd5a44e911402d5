package etlive

import (
	"errors"
)

// nodeConfig holds mutable state during node construction.
type nodeConfig struct {
	location string
	headers  map[string]string
}

// NodeOption is a function that configures a [Node] during construction.
//
// Built-in options: [WithLocation], [WithHeaders].
type NodeOption func(*nodeConfig) error

// WithLocation sets the human-readable location shown next to the node.
func WithLocation(location string) NodeOption {
	return func(cfg *nodeConfig) error {
		cfg.location = location
		return nil
	}
}

// WithHeaders adds HTTP headers to every poll request for this node.
//
// Use this for nodes behind authentication. Accepts variadic key-value
// pairs; the number of arguments must be even.
//
// Example:
//
//	node, err := etlive.NewNode("ET0001", url,
//	    etlive.WithHeaders("Authorization", "Bearer token123"),
//	)
func WithHeaders(keyValues ...string) NodeOption {
	return func(cfg *nodeConfig) error {
		if len(keyValues)%2 != 0 {
			return errors.New("WithHeaders requires an even number of arguments (key-value pairs)")
		}
		for i := 0; i < len(keyValues); i += 2 {
			cfg.headers[keyValues[i]] = keyValues[i+1]
		}
		return nil
	}
}
