package network

import (
	"errors"
	"fmt"

	"github.com/compose-network/crossdeploy/configs"
	"github.com/ethereum/go-ethereum/common"
)

var ErrUnsupportedChain = errors.New("chain is not a configured network")

// Resolver maps chain IDs to bridge gateway addresses.
type Resolver struct {
	gateways       map[uint64]common.Address
	supported      map[uint64]struct{}
	defaultGateway common.Address
}

// NewResolver builds a resolver from an explicit gateway table. Chains listed
// in supported but absent from gateways resolve to defaultGateway.
func NewResolver(gateways map[uint64]common.Address, supported []uint64, defaultGateway common.Address) *Resolver {
	r := &Resolver{
		gateways:       make(map[uint64]common.Address, len(gateways)),
		supported:      make(map[uint64]struct{}, len(supported)+len(gateways)),
		defaultGateway: defaultGateway,
	}

	for chainID, gateway := range gateways {
		r.gateways[chainID] = gateway
		r.supported[chainID] = struct{}{}
	}
	for _, chainID := range supported {
		r.supported[chainID] = struct{}{}
	}

	return r
}

// NewResolverFromConfig builds the table from the network profiles. Profiles
// without a gateway use deploy.default-gateway.
func NewResolverFromConfig(cfg configs.Deploy) (*Resolver, error) {
	if !common.IsHexAddress(cfg.DefaultGateway) {
		return nil, fmt.Errorf("invalid default gateway address %q", cfg.DefaultGateway)
	}

	gateways := make(map[uint64]common.Address)
	supported := make([]uint64, 0, len(cfg.Networks))
	for name, network := range cfg.Networks {
		supported = append(supported, network.ChainID)
		if network.Gateway == "" {
			continue
		}
		if !common.IsHexAddress(network.Gateway) {
			return nil, fmt.Errorf("invalid gateway address %q for network %s", network.Gateway, name)
		}
		gateways[network.ChainID] = common.HexToAddress(network.Gateway)
	}

	return NewResolver(gateways, supported, common.HexToAddress(cfg.DefaultGateway)), nil
}

func (r *Resolver) Resolve(chainID uint64) (common.Address, error) {
	if gateway, ok := r.gateways[chainID]; ok {
		return gateway, nil
	}
	if _, ok := r.supported[chainID]; ok {
		return r.defaultGateway, nil
	}
	return common.Address{}, fmt.Errorf("chain id %d: %w", chainID, ErrUnsupportedChain)
}
