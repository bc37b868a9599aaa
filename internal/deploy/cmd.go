package deploy

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/compose-network/crossdeploy/configs"
	"github.com/spf13/cobra"
)

var CMD = &cobra.Command{
	Use:   "deploy",
	Short: "Deploy the cross-chain NFT contract and verify it on the block explorer",
	RunE: func(cmd *cobra.Command, args []string) error {
		slog.Info("starting deploy command. Validating config", slog.String("network", string(configs.Values.Deploy.Network)))

		if err := configs.Values.Deploy.Validate(); err != nil {
			return err
		}

		slog.Info("config validation successful. Starting deployment...")

		return runDeploy(cmd.Context(), cmd.OutOrStdout(), configs.Values.Deploy, NewService(configs.Values.Deploy).Run)
	},
}

type runFunc func(ctx context.Context) (Report, error)

// runDeploy prints the contract address as soon as the deployment is
// confirmed and returns an error unless the run reached StateDone.
func runDeploy(ctx context.Context, w io.Writer, cfg configs.Deploy, run runFunc) error {
	report, err := run(ctx)
	if err != nil {
		return fmt.Errorf("error occurred preparing deployment: %w", err)
	}

	if report.Result.Confirmed {
		fmt.Fprintf(w, "%s deployed to: %s\n", cfg.Contract.Name, report.Result.ContractAddress.Hex())
	}

	if report.State != StateDone {
		return fmt.Errorf("deployment run %s ended in state %s: %w", report.RunID, report.State, report.Err)
	}

	slog.Info("deployment finished successfully", "verification", report.Outcome.String())

	return nil
}
