package crypto

import (
	"bytes"
	"strings"
	"testing"
)

func TestAddressRoundTrip(t *testing.T) {
	raw := make([]byte, AddressLength)
	for i := range raw {
		raw[i] = byte(i + 1)
	}
	addr := NewAddress(raw)
	encoded := addr.String()
	if !strings.HasPrefix(encoded, AddressPrefix+"1") {
		t.Fatalf("unexpected encoding: %s", encoded)
	}
	decoded, err := DecodeAddress(encoded)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !bytes.Equal(decoded.Bytes(), raw) {
		t.Fatalf("round trip mismatch: %x vs %x", decoded.Bytes(), raw)
	}
	if decoded.Raw() != addr.Raw() {
		t.Fatalf("raw form mismatch")
	}
}

func TestDecodeAddressRejectsForeignPrefix(t *testing.T) {
	if _, err := DecodeAddress("bc1qw508d6qejxtdg4y5r3zarvary0c5xw7kv8f3t4"); err == nil {
		t.Fatalf("foreign prefix should be rejected")
	}
	if _, err := DecodeAddress("garbage"); err == nil {
		t.Fatalf("non-bech32 input should be rejected")
	}
}

func TestKeyGeneration(t *testing.T) {
	key, err := GeneratePrivateKey()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	restored, err := PrivateKeyFromBytes(key.Bytes())
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	if restored.PubKey().Address().String() != key.PubKey().Address().String() {
		t.Fatalf("restored key derives a different address")
	}
}

func TestHashRideIDIsDeterministic(t *testing.T) {
	a := HashRideID("ride-001")
	b := HashRideID("ride-001")
	c := HashRideID("ride-002")
	if !bytes.Equal(a, b) {
		t.Fatalf("same input must hash identically")
	}
	if bytes.Equal(a, c) {
		t.Fatalf("distinct rides must hash differently")
	}
	if len(a) != 32 {
		t.Fatalf("hash must be 32 bytes, got %d", len(a))
	}
}
