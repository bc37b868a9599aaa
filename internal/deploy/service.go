package deploy

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/compose-network/crossdeploy/configs"
	"github.com/compose-network/crossdeploy/internal/deploy/contracts"
	"github.com/compose-network/crossdeploy/internal/deploy/network"
	"github.com/compose-network/crossdeploy/internal/deploy/propagation"
	"github.com/compose-network/crossdeploy/internal/deploy/verification"
	"github.com/compose-network/crossdeploy/internal/logger"
	"github.com/ethereum/go-ethereum/ethclient"
)

// Service dials the configured network and runs one deployment
type Service struct {
	cfg    configs.Deploy
	logger *slog.Logger
}

func NewService(cfg configs.Deploy) *Service {
	return &Service{
		cfg:    cfg,
		logger: logger.Named("deploy_service"),
	}
}

// Run returns an error only when the run could not be set up. Step failures
// are reported through Report.Err.
func (s *Service) Run(ctx context.Context) (Report, error) {
	profile, err := s.cfg.ActiveNetwork()
	if err != nil {
		return Report{}, err
	}

	registerSecrets(s.cfg)
	host := rpcHost(profile.RPCURL)

	s.logger.With("network", s.cfg.Network).With("chain_id", profile.ChainID).With("host", host).Info("dialing the network RPC")
	client, err := ethclient.DialContext(ctx, profile.RPCURL)
	if err != nil {
		return Report{}, fmt.Errorf("failed to connect to %s network at %s: %w", s.cfg.Network, host, err)
	}
	defer client.Close()

	orchestrator, err := Build(s.cfg, client, nil)
	if err != nil {
		return Report{}, err
	}

	return orchestrator.Run(ctx), nil
}

// registerSecrets masks the signer key, explorer keys and RPC URL
// credentials in log output. Hosted RPC providers embed the API key in the
// URL path or query.
func registerSecrets(cfg configs.Deploy) {
	logger.RegisterSecret(cfg.PrivateKey)
	logger.RegisterSecret(strings.TrimPrefix(cfg.PrivateKey, "0x"))

	for _, profile := range cfg.Networks {
		logger.RegisterSecret(profile.Explorer.APIKey)

		u, err := url.Parse(profile.RPCURL)
		if err != nil {
			logger.RegisterSecret(profile.RPCURL)
			continue
		}
		if u.User != nil {
			logger.RegisterSecret(u.User.String())
		}
		if len(u.Path) > 1 {
			logger.RegisterSecret(u.Path)
		}
		logger.RegisterSecret(u.RawQuery)
	}
}

// rpcHost returns scheme and host of an RPC URL without path or credentials.
func rpcHost(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "<invalid url>"
	}
	return u.Scheme + "://" + u.Host
}

// Build assembles an orchestrator for the active network on top of backend.
// sleep replaces the wall-clock timer for propagation and status polling
// when non-nil.
func Build(cfg configs.Deploy, backend contracts.Backend, sleep propagation.Sleeper) (*Orchestrator, error) {
	profile, err := cfg.ActiveNetwork()
	if err != nil {
		return nil, err
	}

	resolver, err := network.NewResolverFromConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to build gateway table: %w", err)
	}

	limit, err := cfg.Contract.Limit()
	if err != nil {
		return nil, err
	}

	contract, err := contracts.LoadCompiledContract(cfg.Contract.ArtifactPath, cfg.Contract.Name)
	if err != nil {
		return nil, fmt.Errorf("failed to load compiled contract: %w", err)
	}

	privateKey, err := contracts.ParsePrivateKey(cfg.PrivateKey)
	if err != nil {
		return nil, err
	}

	deployer := contracts.NewDeployer(backend, contract, privateKey,
		contracts.WithGasLimit(cfg.GasLimit),
		contracts.WithConfirmationTimeout(cfg.ConfirmationTimeout),
	)

	settings := Settings{
		Network:          string(cfg.Network),
		ExpectedChainID:  profile.ChainID,
		Limit:            limit,
		PropagationDelay: cfg.PropagationDelay,
	}
	waiter := propagation.NewWaiter(sleep)

	if !cfg.Verify.Enabled {
		return NewOrchestrator(settings, backend, resolver, deployer, waiter, nil), nil
	}

	source, err := verification.LoadSource(cfg.Contract.SourcePath, cfg.Contract.FullyQualifiedName, cfg.Contract.CompilerVersion)
	if err != nil {
		return nil, err
	}

	explorer := verification.NewClient(profile.Explorer.APIURL, profile.Explorer.APIKey, profile.ChainID)
	submitter := verification.NewSubmitter(explorer, contract, source,
		verification.WithRetryPolicy(verification.RetryPolicy{
			MaxAttempts:     cfg.Verify.MaxAttempts,
			InitialInterval: cfg.Verify.InitialInterval,
			MaxInterval:     cfg.Verify.MaxInterval,
		}),
		verification.WithPolling(cfg.Verify.PollInterval, cfg.Verify.PollTimeout),
		verification.WithSleeper(sleep),
	)

	return NewOrchestrator(settings, backend, resolver, deployer, waiter, submitter), nil
}
