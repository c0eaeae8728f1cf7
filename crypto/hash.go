package crypto

import "github.com/ethereum/go-ethereum/crypto"

// HashRideID maps a free-form ride identifier (e.g. a UUID) onto the 32-byte
// value bound into the escrow entry identifier.
func HashRideID(rideID string) []byte {
	return crypto.Keccak256([]byte(rideID))
}
