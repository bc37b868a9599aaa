package verification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/compose-network/crossdeploy/internal/deploy/domain"
	"github.com/compose-network/crossdeploy/internal/deploy/propagation"
	"github.com/compose-network/crossdeploy/internal/logger"
	"github.com/ethereum/go-ethereum/common"
)

type (
	explorer interface {
		IsVerified(ctx context.Context, address common.Address) (bool, error)
		SubmitSource(ctx context.Context, submission SourceSubmission) (string, error)
		CheckStatus(ctx context.Context, guid string) (Status, error)
	}

	argsEncoder interface {
		EncodeConstructorArgs(args domain.ConstructorArgs) ([]byte, error)
	}

	// Source identifies the compiler input the explorer recompiles.
	Source struct {
		StandardJSONInput  string
		FullyQualifiedName string
		CompilerVersion    string
	}

	// RetryPolicy bounds attempts on rate-limit and not-indexed rejections.
	// MaxAttempts of 1 disables retries.
	RetryPolicy struct {
		MaxAttempts     int
		InitialInterval time.Duration
		MaxInterval     time.Duration
	}

	// Submitter registers a deployed contract's source with the explorer
	Submitter struct {
		explorer     explorer
		encoder      argsEncoder
		source       Source
		retry        RetryPolicy
		pollInterval time.Duration
		pollTimeout  time.Duration
		sleep        propagation.Sleeper
		logger       *slog.Logger
	}

	SubmitterOption func(*Submitter)
)

func WithRetryPolicy(policy RetryPolicy) SubmitterOption {
	return func(s *Submitter) {
		if policy.MaxAttempts < 1 {
			policy.MaxAttempts = 1
		}
		s.retry = policy
	}
}

func WithPolling(interval, timeout time.Duration) SubmitterOption {
	return func(s *Submitter) {
		if interval > 0 {
			s.pollInterval = interval
		}
		if timeout > 0 {
			s.pollTimeout = timeout
		}
	}
}

func WithSleeper(sleep propagation.Sleeper) SubmitterOption {
	return func(s *Submitter) {
		if sleep != nil {
			s.sleep = sleep
		}
	}
}

// LoadSource reads a solc standard-JSON input file.
func LoadSource(path, fullyQualifiedName, compilerVersion string) (Source, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Source{}, fmt.Errorf("failed to read verification source %s: %w", path, err)
	}
	if !json.Valid(data) {
		return Source{}, fmt.Errorf("verification source %s is not valid JSON", path)
	}

	return Source{
		StandardJSONInput:  string(data),
		FullyQualifiedName: fullyQualifiedName,
		CompilerVersion:    compilerVersion,
	}, nil
}

func NewSubmitter(client explorer, encoder argsEncoder, source Source, opts ...SubmitterOption) *Submitter {
	s := &Submitter{
		explorer:     client,
		encoder:      encoder,
		source:       source,
		retry:        RetryPolicy{MaxAttempts: 1},
		pollInterval: 3 * time.Second,
		pollTimeout:  2 * time.Minute,
		sleep:        propagation.TimerSleep,
		logger:       logger.Named("verification_submitter"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Verify submits req and waits for the explorer verdict. An already verified
// contract is a success. Failures are returned as *domain.VerificationError.
func (s *Submitter) Verify(ctx context.Context, req domain.VerificationRequest) (domain.VerificationOutcome, error) {
	encodedArgs, err := s.encoder.EncodeConstructorArgs(req.ConstructorArgs)
	if err != nil {
		return domain.OutcomeUnknown, &domain.VerificationError{Cause: err}
	}

	submission := SourceSubmission{
		ContractAddress:      req.ContractAddress,
		StandardJSONInput:    s.source.StandardJSONInput,
		ContractName:         s.source.FullyQualifiedName,
		CompilerVersion:      s.source.CompilerVersion,
		ConstructorArguments: encodedArgs,
	}

	log := s.logger.With("address", req.ContractAddress.Hex())
	attempt := 0
	operation := func() (domain.VerificationOutcome, error) {
		attempt++
		log.With("attempt", attempt).Info("submitting verification request")

		outcome, err := s.attempt(ctx, submission)
		if err != nil && !Retryable(err) {
			return outcome, backoff.Permanent(err)
		}
		return outcome, err
	}

	notify := func(err error, next time.Duration) {
		log.With("err", err.Error()).With("retry_in", next.String()).Warn("verification attempt failed, retrying")
	}

	outcome, err := backoff.RetryNotifyWithData(operation, s.backOff(ctx), notify)
	if err != nil {
		log.With("err", err.Error()).Error("verification failed")
		return domain.OutcomeUnknown, &domain.VerificationError{Cause: err}
	}

	log.With("outcome", outcome.String()).Info("verification finished")
	return outcome, nil
}

func (s *Submitter) backOff(ctx context.Context) backoff.BackOff {
	expo := backoff.NewExponentialBackOff()
	if s.retry.InitialInterval > 0 {
		expo.InitialInterval = s.retry.InitialInterval
	}
	if s.retry.MaxInterval > 0 {
		expo.MaxInterval = s.retry.MaxInterval
	}
	expo.MaxElapsedTime = 0
	expo.Reset()

	return backoff.WithContext(backoff.WithMaxRetries(expo, uint64(s.retry.MaxAttempts-1)), ctx)
}

func (s *Submitter) attempt(ctx context.Context, submission SourceSubmission) (domain.VerificationOutcome, error) {
	verified, err := s.explorer.IsVerified(ctx, submission.ContractAddress)
	switch {
	case errors.Is(err, ErrAlreadyVerified):
		return domain.OutcomeAlreadyVerified, nil
	case err != nil:
		return domain.OutcomeUnknown, fmt.Errorf("failed to check verification status: %w", err)
	case verified:
		s.logger.With("address", submission.ContractAddress.Hex()).Info("contract is already verified")
		return domain.OutcomeAlreadyVerified, nil
	}

	guid, err := s.explorer.SubmitSource(ctx, submission)
	if errors.Is(err, ErrAlreadyVerified) {
		return domain.OutcomeAlreadyVerified, nil
	}
	if err != nil {
		return domain.OutcomeUnknown, fmt.Errorf("failed to submit source: %w", err)
	}

	return s.poll(ctx, guid)
}

func (s *Submitter) poll(ctx context.Context, guid string) (domain.VerificationOutcome, error) {
	pollCtx, cancel := context.WithTimeout(ctx, s.pollTimeout)
	defer cancel()

	for {
		status, err := s.explorer.CheckStatus(pollCtx, guid)
		if errors.Is(err, ErrAlreadyVerified) {
			return domain.OutcomeAlreadyVerified, nil
		}
		if err != nil {
			return domain.OutcomeUnknown, fmt.Errorf("verification job %s: %w", guid, err)
		}

		switch status {
		case StatusVerified:
			return domain.OutcomeVerified, nil
		case StatusAlreadyVerified:
			return domain.OutcomeAlreadyVerified, nil
		}

		s.logger.With("guid", guid).Debug("verification pending")
		if err := s.sleep(pollCtx, s.pollInterval); err != nil {
			return domain.OutcomeUnknown, fmt.Errorf("verification job %s did not finish within %s: %w", guid, s.pollTimeout, err)
		}
	}
}
