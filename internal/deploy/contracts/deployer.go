package contracts

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"github.com/compose-network/crossdeploy/internal/deploy/domain"
	"github.com/compose-network/crossdeploy/internal/logger"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

const defaultConfirmationTimeout = 5 * time.Minute

type (
	// Backend is the subset of an RPC client needed to send a creation
	// transaction and wait for it. *ethclient.Client satisfies it.
	Backend interface {
		bind.ContractBackend
		bind.DeployBackend
		ChainID(ctx context.Context) (*big.Int, error)
	}

	// Deployer deploys a single compiled contract and waits for it to be mined
	Deployer struct {
		backend             Backend
		contract            CompiledContract
		privateKey          *ecdsa.PrivateKey
		gasLimit            uint64
		confirmationTimeout time.Duration
		logger              *slog.Logger
	}

	Option func(*Deployer)
)

// WithGasLimit fixes the creation gas limit. Zero lets the node estimate it.
func WithGasLimit(gasLimit uint64) Option {
	return func(d *Deployer) {
		d.gasLimit = gasLimit
	}
}

// WithConfirmationTimeout bounds how long Deploy waits for the receipt.
func WithConfirmationTimeout(timeout time.Duration) Option {
	return func(d *Deployer) {
		if timeout > 0 {
			d.confirmationTimeout = timeout
		}
	}
}

// NewDeployer creates a new contract deployer
func NewDeployer(backend Backend, contract CompiledContract, privateKey *ecdsa.PrivateKey, opts ...Option) *Deployer {
	d := &Deployer{
		backend:             backend,
		contract:            contract,
		privateKey:          privateKey,
		confirmationTimeout: defaultConfirmationTimeout,
		logger:              logger.Named("contracts_deployer"),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// ParsePrivateKey decodes a hex private key with or without the 0x prefix.
func ParsePrivateKey(hexKey string) (*ecdsa.PrivateKey, error) {
	privateKey, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(hexKey), "0x"))
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}
	return privateKey, nil
}

// Deploy sends the creation transaction and blocks until it is mined. Every
// failure is returned as a *domain.DeploymentError.
func (d *Deployer) Deploy(ctx context.Context, args domain.ConstructorArgs) (domain.DeploymentResult, error) {
	result, err := d.deploy(ctx, args)
	if err != nil {
		d.logger.With("err", err.Error()).Error("contract deployment failed or timed out")
		return domain.DeploymentResult{}, &domain.DeploymentError{Cause: err}
	}
	return result, nil
}

func (d *Deployer) deploy(ctx context.Context, args domain.ConstructorArgs) (domain.DeploymentResult, error) {
	d.logger.Info("fetching chain ID")
	chainID, err := d.backend.ChainID(ctx)
	if err != nil {
		return domain.DeploymentResult{}, fmt.Errorf("failed to get chain ID: %w", err)
	}
	d.logger.With("chain_id", chainID).Info("chain ID was fetched")

	auth, err := bind.NewKeyedTransactorWithChainID(d.privateKey, chainID)
	if err != nil {
		return domain.DeploymentResult{}, fmt.Errorf("failed to create transactor: %w", err)
	}

	gasPrice, err := d.backend.SuggestGasPrice(ctx)
	if err != nil {
		return domain.DeploymentResult{}, fmt.Errorf("failed to get gas price: %w", err)
	}

	auth.Context = ctx
	auth.GasLimit = d.gasLimit
	auth.GasPrice = gasPrice

	d.logger.
		With("contract", d.contract.Name).
		With("deployer", auth.From.Hex()).
		With("gateway", args.Gateway().Hex()).
		With("limit", args.Limit().String()).
		Info("sending contract creation transaction")

	address, tx, _, err := bind.DeployContract(auth, d.contract.ABI, d.contract.Bytecode, d.backend, args.Values()...)
	if err != nil {
		return domain.DeploymentResult{}, fmt.Errorf("failed to deploy contract: %w", err)
	}

	d.logger.
		With("address", address).
		With("tx_hash", tx.Hash().Hex()).
		Info("contract deployment transaction sent")

	waitCtx, cancel := context.WithTimeout(ctx, d.confirmationTimeout)
	defer cancel()

	receipt, err := bind.WaitMined(waitCtx, d.backend, tx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return domain.DeploymentResult{}, fmt.Errorf("transaction %s not mined within %s: %w", tx.Hash().Hex(), d.confirmationTimeout, err)
		}
		return domain.DeploymentResult{}, fmt.Errorf("failed to wait for transaction: %w", err)
	}

	if receipt.Status != types.ReceiptStatusSuccessful {
		return domain.DeploymentResult{}, fmt.Errorf("contract deployment failed with status %d (tx %s)", receipt.Status, tx.Hash().Hex())
	}

	if receipt.ContractAddress != (common.Address{}) && receipt.ContractAddress != address {
		return domain.DeploymentResult{}, fmt.Errorf("receipt contract address %s differs from expected %s", receipt.ContractAddress.Hex(), address.Hex())
	}

	var blockNumber uint64
	if receipt.BlockNumber != nil {
		blockNumber = receipt.BlockNumber.Uint64()
	}

	return domain.DeploymentResult{
		ContractAddress: address,
		TxHash:          tx.Hash(),
		BlockNumber:     blockNumber,
		Confirmed:       true,
	}, nil
}
