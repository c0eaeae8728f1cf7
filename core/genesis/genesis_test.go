package genesis

import (
	"os"
	"path/filepath"
	"testing"

	"fareledger/core/state"
	"fareledger/crypto"
	"fareledger/storage"
)

func testAllocAddress(t *testing.T) string {
	t.Helper()
	raw := make([]byte, crypto.AddressLength)
	raw[0] = 0x42
	return crypto.NewAddress(raw).String()
}

func TestLoadAndApply(t *testing.T) {
	addr := testAllocAddress(t)
	path := filepath.Join(t.TempDir(), "genesis.json")
	body := `{"networkName":"fare-test","alloc":{"` + addr + `":"123456"}}`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	gen, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if gen.NetworkName != "fare-test" {
		t.Fatalf("unexpected network name: %s", gen.NetworkName)
	}

	manager := state.NewManager(storage.NewMemDB())
	if err := gen.Apply(manager); err != nil {
		t.Fatalf("apply: %v", err)
	}
	decoded, err := crypto.DecodeAddress(addr)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	account, err := manager.GetAccount(decoded.Bytes())
	if err != nil {
		t.Fatalf("get account: %v", err)
	}
	if account.Balance.Int64() != 123456 {
		t.Fatalf("allocation not applied, got %s", account.Balance)
	}
}

func TestValidateRejectsBadAllocations(t *testing.T) {
	addr := testAllocAddress(t)
	cases := []struct {
		name string
		gen  Genesis
	}{
		{"bad address", Genesis{Alloc: map[string]string{"not-an-address": "1"}}},
		{"bad amount", Genesis{Alloc: map[string]string{addr: "1.5"}}},
		{"negative amount", Genesis{Alloc: map[string]string{addr: "-1"}}},
	}
	for _, tc := range cases {
		if err := tc.gen.Validate(); err == nil {
			t.Fatalf("%s: expected validation error", tc.name)
		}
	}
}

func TestLoadRejectsMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Fatalf("missing file must error")
	}
}
