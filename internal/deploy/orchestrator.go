package deploy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/compose-network/crossdeploy/internal/deploy/domain"
	"github.com/compose-network/crossdeploy/internal/logger"
	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
)

type (
	chainIDReader interface {
		ChainID(ctx context.Context) (*big.Int, error)
	}
	gatewayResolver interface {
		Resolve(chainID uint64) (common.Address, error)
	}
	contractDeployer interface {
		Deploy(ctx context.Context, args domain.ConstructorArgs) (domain.DeploymentResult, error)
	}
	propagationWaiter interface {
		Wait(ctx context.Context, delay time.Duration) error
	}
	verificationSubmitter interface {
		Verify(ctx context.Context, req domain.VerificationRequest) (domain.VerificationOutcome, error)
	}

	// Settings are the per-run values taken from the network profile.
	Settings struct {
		Network          string
		ExpectedChainID  uint64
		Limit            *big.Int
		PropagationDelay time.Duration
	}

	// Report is the final outcome of a run.
	Report struct {
		RunID       string
		State       State
		Transitions []State
		Target      domain.DeploymentTarget
		Args        domain.ConstructorArgs
		Result      domain.DeploymentResult
		Outcome     domain.VerificationOutcome
		Err         error
	}

	/*
		Orchestrator runs one deployment:
		  - reads the chain ID from the RPC and resolves the gateway
		  - deploys the contract and waits for the receipt
		  - sleeps for the propagation delay
		  - submits source verification
		A nil verifier skips the last two steps.
	*/
	Orchestrator struct {
		settings Settings
		chain    chainIDReader
		resolver gatewayResolver
		deployer contractDeployer
		waiter   propagationWaiter
		verifier verificationSubmitter
		logger   *slog.Logger
	}

	run struct {
		report Report
		logger *slog.Logger
	}
)

var errIllegalTransition = errors.New("illegal state transition")

// NewOrchestrator creates a new deployment orchestrator
func NewOrchestrator(
	settings Settings,
	chain chainIDReader,
	resolver gatewayResolver,
	deployer contractDeployer,
	waiter propagationWaiter,
	verifier verificationSubmitter) *Orchestrator {
	return &Orchestrator{
		settings: settings,
		chain:    chain,
		resolver: resolver,
		deployer: deployer,
		waiter:   waiter,
		verifier: verifier,
		logger:   logger.Named("deploy_orchestrator"),
	}
}

// Run executes every step in order and stops at the first failure. The
// returned report is always terminal.
func (o *Orchestrator) Run(ctx context.Context) Report {
	runID := uuid.NewString()
	r := &run{
		report: Report{RunID: runID, State: StateIdle, Transitions: []State{StateIdle}},
		logger: o.logger.With("run_id", runID).With("network", o.settings.Network),
	}

	r.logger.Info("starting deployment run")

	if err := o.execute(ctx, r); err != nil {
		r.fail(err)
		return r.report
	}

	_ = r.to(StateDone)
	r.logger.
		With("address", r.report.Result.ContractAddress.Hex()).
		With("verification", r.report.Outcome.String()).
		Info("deployment run completed")

	return r.report
}

func (o *Orchestrator) execute(ctx context.Context, r *run) error {
	if err := r.to(StateResolving); err != nil {
		return err
	}
	target, err := o.resolve(ctx)
	if err != nil {
		return err
	}
	r.report.Target = target
	r.logger.
		With("chain_id", target.ChainID).
		With("gateway", target.Gateway.Hex()).
		Info("gateway resolved")

	args := domain.NewConstructorArgs(target.Gateway, o.settings.Limit)
	r.report.Args = args

	if err := r.to(StateDeploying); err != nil {
		return err
	}
	result, err := o.deployer.Deploy(ctx, args)
	if err != nil {
		return err
	}
	if !result.Confirmed {
		return &domain.DeploymentError{Cause: domain.ErrUnconfirmedDeployment}
	}
	r.report.Result = result

	// Reported before verification so the address is known even if it fails.
	r.logger.
		With("address", result.ContractAddress.Hex()).
		With("tx_hash", result.TxHash.Hex()).
		With("block", result.BlockNumber).
		Info("contract deployed")

	if o.verifier == nil {
		r.logger.Info("verification disabled, skipping propagation wait")
		r.report.Outcome = domain.OutcomeSkipped
		return nil
	}

	if err := r.to(StateAwaitingPropagation); err != nil {
		return err
	}
	if err := o.waiter.Wait(ctx, o.settings.PropagationDelay); err != nil {
		return fmt.Errorf("propagation wait interrupted: %w", err)
	}

	if err := r.to(StateVerifying); err != nil {
		return err
	}
	req, err := domain.NewVerificationRequest(result, args)
	if err != nil {
		return &domain.VerificationError{Cause: err}
	}
	outcome, err := o.verifier.Verify(ctx, req)
	if err != nil {
		return err
	}
	r.report.Outcome = outcome

	return nil
}

func (o *Orchestrator) resolve(ctx context.Context) (domain.DeploymentTarget, error) {
	chainID, err := o.chain.ChainID(ctx)
	if err != nil {
		return domain.DeploymentTarget{}, &domain.ResolutionError{Cause: fmt.Errorf("failed to get chain ID: %w", err)}
	}
	if !chainID.IsUint64() {
		return domain.DeploymentTarget{}, &domain.ResolutionError{Cause: fmt.Errorf("chain ID %s out of range", chainID)}
	}

	id := chainID.Uint64()
	if o.settings.ExpectedChainID != 0 && id != o.settings.ExpectedChainID {
		return domain.DeploymentTarget{}, &domain.ResolutionError{
			ChainID: id,
			Cause:   fmt.Errorf("rpc reports chain %d but network %s expects %d", id, o.settings.Network, o.settings.ExpectedChainID),
		}
	}

	gateway, err := o.resolver.Resolve(id)
	if err != nil {
		return domain.DeploymentTarget{}, &domain.ResolutionError{ChainID: id, Cause: err}
	}

	return domain.DeploymentTarget{
		Network: o.settings.Network,
		ChainID: id,
		Gateway: gateway,
	}, nil
}

func (r *run) to(next State) error {
	if !r.report.State.canTransition(next) {
		return fmt.Errorf("%w: %s -> %s", errIllegalTransition, r.report.State, next)
	}

	r.logger.With("from", r.report.State.String()).With("to", next.String()).Debug("state transition")
	r.report.State = next
	r.report.Transitions = append(r.report.Transitions, next)

	return nil
}

func (r *run) fail(err error) {
	failedIn := r.report.State
	_ = r.to(StateFailed)
	r.report.Err = err

	log := r.logger.With("err", err.Error()).With("failed_in", failedIn.String())
	if r.report.Result.Confirmed {
		log = log.With("address", r.report.Result.ContractAddress.Hex())
	}
	log.Error("deployment run failed")
}
