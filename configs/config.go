package configs

import (
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/go-playground/validator/v10"
)

var Values Config

type (
	NetworkName string

	Config struct {
		LogLevel  string `mapstructure:"log-level"`
		LogFormat string `mapstructure:"log-format"`
		Deploy    Deploy `mapstructure:"deploy"`
	}

	Deploy struct {
		Network             NetworkName             `mapstructure:"network" validate:"required"`
		Networks            map[NetworkName]Network `mapstructure:"networks" validate:"required,min=1,dive"`
		DefaultGateway      string                  `mapstructure:"default-gateway" validate:"required,eth_addr"`
		PrivateKey          string                  `mapstructure:"private-key" validate:"required"`
		Contract            Contract                `mapstructure:"contract"`
		GasLimit            uint64                  `mapstructure:"gas-limit"`
		ConfirmationTimeout time.Duration           `mapstructure:"confirmation-timeout" validate:"gt=0"`
		PropagationDelay    time.Duration           `mapstructure:"propagation-delay" validate:"gte=0"`
		Verify              Verify                  `mapstructure:"verify"`
	}

	Network struct {
		ChainID  uint64   `mapstructure:"chain-id" validate:"required"`
		RPCURL   string   `mapstructure:"rpc-url" validate:"required,url"`
		Gateway  string   `mapstructure:"gateway" validate:"omitempty,eth_addr"`
		Explorer Explorer `mapstructure:"explorer"`
	}

	Explorer struct {
		APIURL string `mapstructure:"api-url" validate:"required,url"`
		APIKey string `mapstructure:"api-key"`
	}

	Contract struct {
		Name               string `mapstructure:"name" validate:"required"`
		ArtifactPath       string `mapstructure:"artifact-path" validate:"required"`
		SourcePath         string `mapstructure:"source-path"`
		FullyQualifiedName string `mapstructure:"fully-qualified-name"`
		CompilerVersion    string `mapstructure:"compiler-version"`
		LimitValue         string `mapstructure:"limit-value" validate:"required,numeric"`
	}

	Verify struct {
		Enabled         bool          `mapstructure:"enabled"`
		MaxAttempts     int           `mapstructure:"max-attempts" validate:"gte=1"`
		InitialInterval time.Duration `mapstructure:"initial-interval"`
		MaxInterval     time.Duration `mapstructure:"max-interval"`
		PollInterval    time.Duration `mapstructure:"poll-interval" validate:"gt=0"`
		PollTimeout     time.Duration `mapstructure:"poll-timeout" validate:"gt=0"`
	}
)

const (
	NetworkNameFuji   NetworkName = "fuji"
	NetworkNameMumbai NetworkName = "mumbai"
)

var structValidator = validator.New(validator.WithRequiredStructEnabled())

// ActiveNetwork returns the profile selected by deploy.network.
func (c *Deploy) ActiveNetwork() (Network, error) {
	network, ok := c.Networks[c.Network]
	if !ok {
		return Network{}, fmt.Errorf("network profile %q is not configured", c.Network)
	}
	return network, nil
}

// Limit parses the constructor limit value as an unsigned 256-bit integer.
func (c *Contract) Limit() (*big.Int, error) {
	limit, ok := new(big.Int).SetString(c.LimitValue, 10)
	if !ok {
		return nil, fmt.Errorf("invalid limit value %q", c.LimitValue)
	}
	if limit.Sign() < 0 || limit.BitLen() > 256 {
		return nil, fmt.Errorf("limit value %q does not fit in uint256", c.LimitValue)
	}
	return limit, nil
}

func (c *Deploy) Validate() error {
	var errs []error

	if err := structValidator.Struct(c); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			for _, fieldErr := range validationErrs {
				errs = append(errs, fmt.Errorf("deploy config field %s failed on %q", fieldErr.Namespace(), fieldErr.Tag()))
			}
		} else {
			errs = append(errs, err)
		}
	}

	if c.Network != "" {
		if _, err := c.ActiveNetwork(); err != nil {
			errs = append(errs, err)
		}
	}

	seen := make(map[uint64]NetworkName, len(c.Networks))
	for name, network := range c.Networks {
		if other, ok := seen[network.ChainID]; ok && network.ChainID != 0 {
			errs = append(errs, fmt.Errorf("deploy.networks.%s and deploy.networks.%s share chain-id %d", name, other, network.ChainID))
		}
		seen[network.ChainID] = name
	}

	if c.Contract.LimitValue != "" {
		if _, err := c.Contract.Limit(); err != nil {
			errs = append(errs, fmt.Errorf("deploy.contract.limit-value: %w", err))
		}
	}

	if c.Verify.Enabled {
		if c.Contract.SourcePath == "" {
			errs = append(errs, errors.New("deploy.contract.source-path is required when verification is enabled"))
		}
		if c.Contract.FullyQualifiedName == "" {
			errs = append(errs, errors.New("deploy.contract.fully-qualified-name is required when verification is enabled"))
		}
		if _, err := semver.NewVersion(strings.TrimPrefix(c.Contract.CompilerVersion, "v")); err != nil {
			errs = append(errs, fmt.Errorf("deploy.contract.compiler-version %q is not a valid solc version: %w", c.Contract.CompilerVersion, err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("deploy configuration validation failed: %w", errors.Join(errs...))
	}

	return nil
}
