package genesis

import (
	"encoding/json"
	"fmt"
	"math/big"
	"os"

	"fareledger/core/state"
	"fareledger/crypto"
)

// Genesis describes the initial account allocations applied when the ledger
// starts on an empty store. Addresses are bech32 strings, amounts decimal.
type Genesis struct {
	NetworkName string            `json:"networkName"`
	Alloc       map[string]string `json:"alloc"`
}

// Load reads and validates a genesis file.
func Load(path string) (*Genesis, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("genesis: read %s: %w", path, err)
	}
	gen := &Genesis{}
	if err := json.Unmarshal(raw, gen); err != nil {
		return nil, fmt.Errorf("genesis: decode %s: %w", path, err)
	}
	if err := gen.Validate(); err != nil {
		return nil, err
	}
	return gen, nil
}

// Validate checks every allocation parses before any state is touched.
func (g *Genesis) Validate() error {
	for addr, amount := range g.Alloc {
		if _, err := crypto.DecodeAddress(addr); err != nil {
			return fmt.Errorf("genesis: alloc address %s: %w", addr, err)
		}
		value, ok := new(big.Int).SetString(amount, 10)
		if !ok || value.Sign() < 0 {
			return fmt.Errorf("genesis: alloc amount %q for %s is not a non-negative integer", amount, addr)
		}
	}
	return nil
}

// Apply writes the allocations into the state manager. The caller decides
// whether genesis has already been applied; Apply itself is not idempotent.
func (g *Genesis) Apply(manager *state.Manager) error {
	for addr, amount := range g.Alloc {
		decoded, err := crypto.DecodeAddress(addr)
		if err != nil {
			return err
		}
		value, _ := new(big.Int).SetString(amount, 10)
		if err := manager.SetBalance(decoded.Bytes(), value); err != nil {
			return fmt.Errorf("genesis: allocate %s: %w", addr, err)
		}
	}
	return nil
}
