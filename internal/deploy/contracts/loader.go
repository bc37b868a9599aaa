package contracts

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/compose-network/crossdeploy/internal/deploy/domain"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// CompiledContract is the ABI and creation bytecode of one contract.
type CompiledContract struct {
	Name     string
	ABI      abi.ABI
	RawABI   string
	Bytecode []byte
}

type artifact struct {
	ContractName string          `json:"contractName"`
	ABI          json.RawMessage `json:"abi"`
	Bytecode     json.RawMessage `json:"bytecode"`
}

// LoadCompiledContract reads an artifact file. Both a single hardhat/forge
// artifact and a name-keyed map of {abi, bytecode} entries are accepted.
func LoadCompiledContract(path, name string) (CompiledContract, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return CompiledContract{}, fmt.Errorf("failed to read artifact %s: %w", path, err)
	}

	return parseContract(data, name)
}

func parseContract(data []byte, name string) (CompiledContract, error) {
	var single artifact
	if err := json.Unmarshal(data, &single); err != nil {
		return CompiledContract{}, fmt.Errorf("failed to parse compiled contract: %w", err)
	}

	if len(single.ABI) == 0 {
		var keyed map[string]artifact
		if err := json.Unmarshal(data, &keyed); err != nil {
			return CompiledContract{}, fmt.Errorf("failed to parse compiled contracts: %w", err)
		}
		entry, ok := keyed[name]
		if !ok {
			return CompiledContract{}, fmt.Errorf("contract %s not found in artifact", name)
		}
		single = entry
	} else if single.ContractName != "" && single.ContractName != name {
		return CompiledContract{}, fmt.Errorf("artifact holds contract %s, expected %s", single.ContractName, name)
	}

	parsedABI, err := abi.JSON(strings.NewReader(string(single.ABI)))
	if err != nil {
		return CompiledContract{}, fmt.Errorf("failed to parse ABI for %s: %w", name, err)
	}

	bytecodeHex, err := decodeBytecodeField(single.Bytecode)
	if err != nil {
		return CompiledContract{}, fmt.Errorf("failed to read bytecode for %s: %w", name, err)
	}

	bytecode := common.FromHex(bytecodeHex)
	if len(bytecode) == 0 {
		return CompiledContract{}, fmt.Errorf("contract %s has empty bytecode", name)
	}

	return CompiledContract{
		Name:     name,
		ABI:      parsedABI,
		RawABI:   string(single.ABI),
		Bytecode: bytecode,
	}, nil
}

// decodeBytecodeField accepts "0x..." (hardhat) and {"object": "0x..."} (forge).
func decodeBytecodeField(raw json.RawMessage) (string, error) {
	if len(raw) == 0 {
		return "", errors.New("bytecode field is missing")
	}

	var hex string
	if err := json.Unmarshal(raw, &hex); err == nil {
		return hex, nil
	}

	var object struct {
		Object string `json:"object"`
	}
	if err := json.Unmarshal(raw, &object); err != nil {
		return "", fmt.Errorf("unsupported bytecode encoding: %w", err)
	}

	return object.Object, nil
}

// EncodeConstructorArgs ABI-encodes args exactly as they are appended to the
// creation bytecode.
func (c CompiledContract) EncodeConstructorArgs(args domain.ConstructorArgs) ([]byte, error) {
	packed, err := c.ABI.Pack("", args.Values()...)
	if err != nil {
		return nil, fmt.Errorf("failed to encode constructor arguments for %s: %w", c.Name, err)
	}
	return packed, nil
}
