package domain

import "fmt"

type (
	// ResolutionError is returned when no gateway can be chosen for the
	// connected chain.
	ResolutionError struct {
		ChainID uint64
		Cause   error
	}

	// DeploymentError wraps any failure between signing the creation
	// transaction and observing a successful receipt.
	DeploymentError struct {
		Cause error
	}

	// VerificationError wraps an explorer rejection. The deployment it refers
	// to stays on chain.
	VerificationError struct {
		Cause error
	}
)

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("failed to resolve gateway for chain %d: %v", e.ChainID, e.Cause)
}

func (e *ResolutionError) Unwrap() error {
	return e.Cause
}

func (e *DeploymentError) Error() string {
	return fmt.Sprintf("deployment failed: %v", e.Cause)
}

func (e *DeploymentError) Unwrap() error {
	return e.Cause
}

func (e *VerificationError) Error() string {
	return fmt.Sprintf("verification failed: %v", e.Cause)
}

func (e *VerificationError) Unwrap() error {
	return e.Cause
}
