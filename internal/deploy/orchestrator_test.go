package deploy

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/compose-network/crossdeploy/internal/deploy/domain"
	"github.com/compose-network/crossdeploy/internal/deploy/network"
	"github.com/compose-network/crossdeploy/internal/deploy/verification"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	fujiChainID   uint64 = 43113
	mumbaiChainID uint64 = 80001
)

var (
	fujiGateway     = common.HexToAddress("0x517f256cc48145c25c27cf453f6f5006e5266543")
	defaultGateway  = common.HexToAddress("0x8EA05371Eb360Eb79c295375CB2cCE9191EFdaD0")
	deployedAddress = common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3")
)

type (
	// calls records the order in which steps were invoked.
	calls []string

	fakeChain struct {
		chainID *big.Int
		err     error
	}

	fakeDeployer struct {
		calls  *calls
		result domain.DeploymentResult
		err    error
		args   []domain.ConstructorArgs
	}

	fakeWaiter struct {
		calls  *calls
		waited []time.Duration
		err    error
	}

	fakeVerifier struct {
		calls    *calls
		outcome  domain.VerificationOutcome
		err      error
		requests []domain.VerificationRequest
	}
)

func (f fakeChain) ChainID(context.Context) (*big.Int, error) {
	return f.chainID, f.err
}

func (f *fakeDeployer) Deploy(_ context.Context, args domain.ConstructorArgs) (domain.DeploymentResult, error) {
	*f.calls = append(*f.calls, "deploy")
	f.args = append(f.args, args)
	return f.result, f.err
}

func (f *fakeWaiter) Wait(_ context.Context, delay time.Duration) error {
	*f.calls = append(*f.calls, "wait")
	f.waited = append(f.waited, delay)
	return f.err
}

func (f *fakeVerifier) Verify(_ context.Context, req domain.VerificationRequest) (domain.VerificationOutcome, error) {
	*f.calls = append(*f.calls, "verify")
	f.requests = append(f.requests, req)
	return f.outcome, f.err
}

type fixture struct {
	calls    calls
	settings Settings
	chain    fakeChain
	deployer *fakeDeployer
	waiter   *fakeWaiter
	verifier *fakeVerifier
}

func newFixture(chainID uint64) *fixture {
	f := &fixture{
		settings: Settings{
			Network:          "fuji",
			ExpectedChainID:  chainID,
			Limit:            big.NewInt(1_000_000),
			PropagationDelay: 40 * time.Second,
		},
		chain: fakeChain{chainID: new(big.Int).SetUint64(chainID)},
	}
	f.deployer = &fakeDeployer{
		calls:  &f.calls,
		result: domain.DeploymentResult{ContractAddress: deployedAddress, TxHash: common.HexToHash("0x01"), Confirmed: true},
	}
	f.waiter = &fakeWaiter{calls: &f.calls}
	f.verifier = &fakeVerifier{calls: &f.calls, outcome: domain.OutcomeVerified}
	return f
}

func (f *fixture) orchestrator() *Orchestrator {
	resolver := network.NewResolver(map[uint64]common.Address{fujiChainID: fujiGateway}, []uint64{mumbaiChainID}, defaultGateway)
	return NewOrchestrator(f.settings, f.chain, resolver, f.deployer, f.waiter, f.verifier)
}

func TestRun_ScenarioA_Fuji(t *testing.T) {
	f := newFixture(fujiChainID)

	report := f.orchestrator().Run(context.Background())

	require.NoError(t, report.Err)
	assert.Equal(t, StateDone, report.State)
	assert.Equal(t, []State{StateIdle, StateResolving, StateDeploying, StateAwaitingPropagation, StateVerifying, StateDone}, report.Transitions)
	assert.Equal(t, deployedAddress, report.Result.ContractAddress)
	assert.Equal(t, fujiGateway, report.Target.Gateway)
	assert.Equal(t, domain.OutcomeVerified, report.Outcome)
	assert.NotEmpty(t, report.RunID)

	assert.Equal(t, calls{"deploy", "wait", "verify"}, f.calls)
	assert.Equal(t, []time.Duration{40 * time.Second}, f.waiter.waited)

	require.Len(t, f.deployer.args, 1)
	assert.Equal(t, fujiGateway, f.deployer.args[0].Gateway())
	assert.Equal(t, int64(1_000_000), f.deployer.args[0].Limit().Int64())
}

func TestRun_VerificationUsesDeploymentArguments(t *testing.T) {
	f := newFixture(mumbaiChainID)
	f.settings.Network = "mumbai"

	report := f.orchestrator().Run(context.Background())
	require.NoError(t, report.Err)

	require.Len(t, f.deployer.args, 1)
	require.Len(t, f.verifier.requests, 1)
	assert.True(t, f.deployer.args[0].Equal(f.verifier.requests[0].ConstructorArgs))
	assert.Equal(t, defaultGateway, f.verifier.requests[0].ConstructorArgs.Gateway())
	assert.Equal(t, deployedAddress, f.verifier.requests[0].ContractAddress)
}

func TestRun_ScenarioB_DeploymentReverts(t *testing.T) {
	f := newFixture(fujiChainID)
	f.deployer.result = domain.DeploymentResult{}
	f.deployer.err = &domain.DeploymentError{Cause: errors.New("contract deployment failed with status 0")}

	report := f.orchestrator().Run(context.Background())

	assert.Equal(t, StateFailed, report.State)
	assert.Equal(t, []State{StateIdle, StateResolving, StateDeploying, StateFailed}, report.Transitions)

	var deployErr *domain.DeploymentError
	assert.True(t, errors.As(report.Err, &deployErr))
	assert.Equal(t, calls{"deploy"}, f.calls)
	assert.Empty(t, f.verifier.requests)
	assert.Empty(t, f.waiter.waited)
}

func TestRun_UnconfirmedResultIsFailure(t *testing.T) {
	f := newFixture(fujiChainID)
	f.deployer.result.Confirmed = false

	report := f.orchestrator().Run(context.Background())

	assert.Equal(t, StateFailed, report.State)
	assert.ErrorIs(t, report.Err, domain.ErrUnconfirmedDeployment)
	assert.Empty(t, f.verifier.requests)
}

func TestRun_ScenarioC_AlreadyVerified(t *testing.T) {
	f := newFixture(fujiChainID)
	f.verifier.outcome = domain.OutcomeAlreadyVerified

	report := f.orchestrator().Run(context.Background())

	require.NoError(t, report.Err)
	assert.Equal(t, StateDone, report.State)
	assert.Equal(t, domain.OutcomeAlreadyVerified, report.Outcome)
}

func TestRun_VerificationFailureKeepsDeployment(t *testing.T) {
	f := newFixture(fujiChainID)
	f.verifier.err = &domain.VerificationError{Cause: verification.ErrBytecodeMismatch}

	report := f.orchestrator().Run(context.Background())

	assert.Equal(t, StateFailed, report.State)
	assert.ErrorIs(t, report.Err, verification.ErrBytecodeMismatch)
	assert.Equal(t, deployedAddress, report.Result.ContractAddress)
	assert.True(t, report.Result.Confirmed)
	assert.Equal(t, []State{StateIdle, StateResolving, StateDeploying, StateAwaitingPropagation, StateVerifying, StateFailed}, report.Transitions)
}

func TestRun_UnknownChainFailsBeforeDeploying(t *testing.T) {
	f := newFixture(1)

	report := f.orchestrator().Run(context.Background())

	assert.Equal(t, StateFailed, report.State)
	var resolutionErr *domain.ResolutionError
	require.True(t, errors.As(report.Err, &resolutionErr))
	assert.ErrorIs(t, report.Err, network.ErrUnsupportedChain)
	assert.Empty(t, f.calls)
}

func TestRun_ChainIDMismatch(t *testing.T) {
	f := newFixture(fujiChainID)
	f.chain = fakeChain{chainID: new(big.Int).SetUint64(mumbaiChainID)}

	report := f.orchestrator().Run(context.Background())

	var resolutionErr *domain.ResolutionError
	require.True(t, errors.As(report.Err, &resolutionErr))
	assert.Equal(t, mumbaiChainID, resolutionErr.ChainID)
	assert.Empty(t, f.calls)
}

func TestRun_ChainIDUnavailable(t *testing.T) {
	f := newFixture(fujiChainID)
	f.chain = fakeChain{err: errors.New("connection refused")}

	report := f.orchestrator().Run(context.Background())

	assert.Equal(t, StateFailed, report.State)
	assert.Equal(t, []State{StateIdle, StateResolving, StateFailed}, report.Transitions)
}

func TestRun_WaitInterrupted(t *testing.T) {
	f := newFixture(fujiChainID)
	f.waiter.err = context.Canceled

	report := f.orchestrator().Run(context.Background())

	assert.Equal(t, StateFailed, report.State)
	assert.ErrorIs(t, report.Err, context.Canceled)
	assert.Empty(t, f.verifier.requests)
	assert.Equal(t, deployedAddress, report.Result.ContractAddress)
}

func TestRun_VerificationDisabled(t *testing.T) {
	f := newFixture(fujiChainID)
	resolver := network.NewResolver(map[uint64]common.Address{fujiChainID: fujiGateway}, nil, defaultGateway)

	report := NewOrchestrator(f.settings, f.chain, resolver, f.deployer, f.waiter, nil).Run(context.Background())

	require.NoError(t, report.Err)
	assert.Equal(t, StateDone, report.State)
	assert.Equal(t, domain.OutcomeSkipped, report.Outcome)
	assert.Equal(t, calls{"deploy"}, f.calls)
}
