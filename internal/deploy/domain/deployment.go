package domain

import (
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

type (
	// DeploymentTarget is the network the run deploys to and the gateway the
	// contract is wired to. Computed once at start.
	DeploymentTarget struct {
		Network string
		ChainID uint64
		Gateway common.Address
	}

	// ConstructorArgs are the ordered (gateway, limit) constructor arguments.
	// Fields are unexported so the values handed to deployment and
	// verification cannot drift apart.
	ConstructorArgs struct {
		gateway common.Address
		limit   *big.Int
	}

	// DeploymentResult describes a mined contract-creation transaction.
	DeploymentResult struct {
		ContractAddress common.Address
		TxHash          common.Hash
		BlockNumber     uint64
		Confirmed       bool
	}

	// VerificationRequest is what gets submitted to the block explorer.
	VerificationRequest struct {
		ContractAddress common.Address
		ConstructorArgs ConstructorArgs
	}

	VerificationOutcome int
)

const (
	OutcomeUnknown VerificationOutcome = iota
	OutcomeVerified
	OutcomeAlreadyVerified
	OutcomeSkipped
)

var ErrUnconfirmedDeployment = errors.New("deployment result is not confirmed")

func NewConstructorArgs(gateway common.Address, limit *big.Int) ConstructorArgs {
	if limit == nil {
		limit = new(big.Int)
	}
	return ConstructorArgs{
		gateway: gateway,
		limit:   new(big.Int).Set(limit),
	}
}

func (a ConstructorArgs) Gateway() common.Address {
	return a.gateway
}

// Limit returns a copy of the limit value.
func (a ConstructorArgs) Limit() *big.Int {
	if a.limit == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(a.limit)
}

// Values returns the arguments in ABI order, ready for abi packing.
func (a ConstructorArgs) Values() []any {
	return []any{a.Gateway(), a.Limit()}
}

func (a ConstructorArgs) Equal(other ConstructorArgs) bool {
	return a.gateway == other.gateway && a.Limit().Cmp(other.Limit()) == 0
}

// NewVerificationRequest derives a request from a confirmed deployment only.
func NewVerificationRequest(result DeploymentResult, args ConstructorArgs) (VerificationRequest, error) {
	if !result.Confirmed {
		return VerificationRequest{}, ErrUnconfirmedDeployment
	}
	return VerificationRequest{
		ContractAddress: result.ContractAddress,
		ConstructorArgs: args,
	}, nil
}

func (o VerificationOutcome) String() string {
	switch o {
	case OutcomeVerified:
		return "verified"
	case OutcomeAlreadyVerified:
		return "already_verified"
	case OutcomeSkipped:
		return "skipped"
	default:
		return "unknown"
	}
}
