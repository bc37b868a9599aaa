package deploy

import (
	"github.com/spf13/viper"
)

// flagDef defines a command-line flag with its configuration.
type (
	flagType interface {
		string | int | bool
	}

	flagDef[T flagType] struct {
		name         string
		viperKey     string
		defaultValue T
		description  string
	}
)

// privateKeyFlag stays out of help output so keys are supplied through the
// environment or config file.
const privateKeyFlag = "private-key"

var (
	stringFlags = []flagDef[string]{
		// Network
		{"network", "deploy.network", "fuji", "Network profile to deploy to (fuji, mumbai, ...)"},
		{"default-gateway", "deploy.default-gateway", "", "Gateway address for networks without a dedicated one"},

		// Signer
		{privateKeyFlag, "deploy.private-key", "", "Deployer private key. Visible in shell history and process lists, set PRIVATE_KEY instead"},

		// Contract
		{"contract-name", "deploy.contract.name", "CrossERC721", "Contract name inside the artifact"},
		{"artifact-path", "deploy.contract.artifact-path", "", "Path to the compiled contract artifact"},
		{"source-path", "deploy.contract.source-path", "", "Path to the solc standard-JSON input used for verification"},
		{"fully-qualified-name", "deploy.contract.fully-qualified-name", "", "Contract name as path:Name for verification"},
		{"compiler-version", "deploy.contract.compiler-version", "", "Full solc version, e.g. v0.8.18+commit.87f61d96"},
		{"limit-value", "deploy.contract.limit-value", "1000000", "uint256 limit passed to the constructor"},

		// Timing
		{"confirmation-timeout", "deploy.confirmation-timeout", "5m", "Maximum time to wait for the deployment receipt"},
		{"propagation-delay", "deploy.propagation-delay", "40s", "Delay between confirmation and verification"},
		{"verify-poll-timeout", "deploy.verify.poll-timeout", "2m", "Maximum time to wait for the explorer verdict"},
	}

	intFlags = []flagDef[int]{
		{"gas-limit", "deploy.gas-limit", 0, "Creation gas limit (0 estimates)"},
		{"verify-max-attempts", "deploy.verify.max-attempts", 1, "Verification attempts on rate-limit or not-indexed errors"},
	}

	boolFlags = []flagDef[bool]{
		{"verify", "deploy.verify.enabled", true, "Submit source verification after deployment"},
	}
)

func init() {
	if err := declareFlags(stringFlags); err != nil {
		panic(err)
	}
	if err := declareFlags(intFlags); err != nil {
		panic(err)
	}
	if err := declareFlags(boolFlags); err != nil {
		panic(err)
	}
	if err := CMD.Flags().MarkHidden(privateKeyFlag); err != nil {
		panic(err)
	}
}

// declareFlags declares multiple flags and binds them to viper configuration keys.
func declareFlags[T flagType](flags []flagDef[T]) error {
	for _, flag := range flags {
		if err := declareFlag(flag.name, flag.viperKey, flag.defaultValue, flag.description); err != nil {
			return err
		}
	}
	return nil
}

// declareFlag declares a single flag and binds it to a viper configuration key.
// The type parameter T determines the flag type (string, int, or bool).
func declareFlag[T flagType](flagName, viperKey string, defaultValue T, description string) error {
	var zero T
	switch any(zero).(type) {
	case string:
		CMD.Flags().String(flagName, any(defaultValue).(string), description)
	case int:
		CMD.Flags().Int(flagName, any(defaultValue).(int), description)
	case bool:
		CMD.Flags().Bool(flagName, any(defaultValue).(bool), description)
	}
	return viper.BindPFlag(viperKey, CMD.Flags().Lookup(flagName))
}
