package contracts

import (
	"crypto/ecdsa"
	"math/big"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient/simulated"
	"github.com/stretchr/testify/require"
)

const (
	testConstructorABI = `[{"type":"constructor","stateMutability":"nonpayable","inputs":[{"name":"gateway","type":"address"},{"name":"limit","type":"uint256"}]}]`

	// Copies a one byte runtime (STOP) into memory and returns it.
	testStopInitCode = "0x6001600c60003960016000f300"
	// Reverts unconditionally from the constructor.
	testRevertInitCode = "0x60006000fd"
)

func testContract(t *testing.T, initCode string) CompiledContract {
	t.Helper()

	parsed, err := abi.JSON(strings.NewReader(testConstructorABI))
	require.NoError(t, err)

	return CompiledContract{
		Name:     "CrossERC721",
		ABI:      parsed,
		RawABI:   testConstructorABI,
		Bytecode: common.FromHex(initCode),
	}
}

// newSimulatedChain funds a fresh key on an in-memory chain. With autoMine a
// block is sealed every 50ms until the test ends.
func newSimulatedChain(t *testing.T, autoMine bool) (Backend, *ecdsa.PrivateKey) {
	t.Helper()

	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	funds := new(big.Int).Mul(big.NewInt(100), big.NewInt(1e18))
	sim := simulated.NewBackend(types.GenesisAlloc{
		crypto.PubkeyToAddress(key.PublicKey): {Balance: funds},
	})

	done := make(chan struct{})
	var wg sync.WaitGroup
	t.Cleanup(func() {
		close(done)
		wg.Wait()
		_ = sim.Close()
	})

	if autoMine {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ticker := time.NewTicker(50 * time.Millisecond)
			defer ticker.Stop()
			for {
				select {
				case <-done:
					return
				case <-ticker.C:
					sim.Commit()
				}
			}
		}()
	}

	return sim.Client(), key
}
