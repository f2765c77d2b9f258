package stats

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	ErrInvalidProxyStats = errors.New("stats: invalid proxy stats")
	ErrMalformedStats    = errors.New("stats: malformed payload")
)

// DecodeNode decodes one node payload and validates its proxies.
func DecodeNode(raw json.RawMessage) (NodeStats, error) {
	var node NodeStats
	if err := json.Unmarshal(raw, &node); err != nil {
		return NodeStats{}, fmt.Errorf("%w: %v", ErrMalformedStats, err)
	}
	if err := node.Validate(); err != nil {
		return NodeStats{}, err
	}
	return node, nil
}

// DecodeCluster decodes the per-node list returned for the whole deployment.
func DecodeCluster(raw json.RawMessage) ([]NodeStats, error) {
	var nodes []NodeStats
	if err := json.Unmarshal(raw, &nodes); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedStats, err)
	}
	for i := range nodes {
		if err := nodes[i].Validate(); err != nil {
			return nil, fmt.Errorf("node %d (%s): %w", i, nodes[i].PublicIP, err)
		}
	}
	return nodes, nil
}

func (n NodeStats) Validate() error {
	for _, p := range n.Proxies {
		if p.Frontend == nil || p.Backend == nil {
			return fmt.Errorf("%w: proxy %q needs exactly one frontend and one backend", ErrInvalidProxyStats, p.Name)
		}
	}
	return nil
}

// Proxy returns the named proxy.
func (n NodeStats) Proxy(name string) (ProxyStats, bool) {
	for _, p := range n.Proxies {
		if p.Name == name {
			return p, true
		}
	}
	return ProxyStats{}, false
}
