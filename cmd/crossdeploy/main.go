package main

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/compose-network/crossdeploy/configs"
	"github.com/compose-network/crossdeploy/internal/deploy"
	"github.com/compose-network/crossdeploy/internal/logger"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
)

const (
	appName   = "crossdeploy"
	envPrefix = "CROSSDEPLOY"
)

// envAliases keeps the variable names used by existing .env files working.
var envAliases = map[string][]string{
	"deploy.private-key":                      {"PRIVATE_KEY"},
	"deploy.networks.fuji.rpc-url":            {"AVALANCHE_URL"},
	"deploy.networks.fuji.explorer.api-key":   {"AVALANCHE_SNOWTRACE_KEY"},
	"deploy.networks.mumbai.rpc-url":          {"ALCHEMY_POLYGON_URL"},
	"deploy.networks.mumbai.explorer.api-key": {"POLYGON_SCAN_KEY"},
}

var rootCmd = &cobra.Command{
	Use:           appName,
	Short:         "Deploys the cross-chain NFT contract and verifies its source",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logger.Initialize(slog.LevelInfo, logger.FormatJSON)

		if err := gotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			const errMsg = "error reading .env file"
			slog.With("err", err.Error()).Error(errMsg)
			return errors.Join(err, errors.New(errMsg))
		}

		if err := configs.ApplyDefaults(viper.GetViper()); err != nil {
			return err
		}

		viper.SetConfigName("config")
		viper.SetConfigType("yaml")

		if execPath, err := os.Executable(); err == nil {
			execDir := filepath.Dir(execPath)
			viper.AddConfigPath(execDir)
		}
		viper.AddConfigPath(".")
		viper.AddConfigPath("./configs")

		viper.SetEnvPrefix(envPrefix)
		viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
		viper.AutomaticEnv()
		for key, aliases := range envAliases {
			envKey := envPrefix + "_" + strings.ToUpper(strings.NewReplacer(".", "_", "-", "_").Replace(key))
			if err := viper.BindEnv(append([]string{key, envKey}, aliases...)...); err != nil {
				return err
			}
		}

		// Try to read config file, but don't fail if it doesn't exist
		// Flags, env and embedded defaults can provide all necessary configuration
		if err := viper.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); ok {
				slog.Debug("no config file found, will rely on flags, env and defaults")
			} else {
				const errMsg = "error reading config file"
				slog.With("err", err.Error()).Error(errMsg)
				return errors.Join(err, errors.New(errMsg))
			}
		} else {
			slog.With("config_file", viper.ConfigFileUsed()).Debug("config file loaded")
		}

		if err := viper.Unmarshal(&configs.Values); err != nil {
			const errMsg = "unable to decode application config"
			slog.With("err", err.Error()).Error(errMsg)
			return errors.Join(err, errors.New(errMsg))
		}

		level, err := logger.ParseLevel(configs.Values.LogLevel)
		if err != nil {
			return err
		}
		logger.Initialize(level, configs.Values.LogFormat)

		slog.With("network", configs.Values.Deploy.Network).Debug("configuration loaded")

		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", logger.FormatJSON, "Log format (json or text)")
	if err := viper.BindPFlag("log-level", rootCmd.PersistentFlags().Lookup("log-level")); err != nil {
		panic(err)
	}
	if err := viper.BindPFlag("log-format", rootCmd.PersistentFlags().Lookup("log-format")); err != nil {
		panic(err)
	}
}

func main() {
	rootCmd.AddCommand(deploy.CMD)
	rootCmd.AddCommand(deploy.NetworksCMD)

	if err := rootCmd.Execute(); err != nil {
		slog.With("err", err.Error()).Error("failed to execute root command")
		os.Exit(1)
	}
}
