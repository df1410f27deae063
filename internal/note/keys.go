// keys.go - Spend and viewing key material.
//
// The spend secret authorizes nullifier derivation; the viewing secret yields
// the recipient tag that lets a wallet recognize incoming notes. Neither
// secret ever appears in public transaction data.

package note

import (
	"crypto/rand"

	"github.com/consensys/gnark-crypto/field/goldilocks"
	"lukechampine.com/blake3"

	"github.com/Pauli-Group/Hegemon-sub003/internal/sponge"
)

const recipientTagContext = "hegemon-pool recipient tag v1"

// Keypair bundles a wallet's secret material.
type Keypair struct {
	SpendSecret   [32]byte
	ViewingSecret [32]byte
}

// NewKeypair samples fresh secrets from crypto/rand.
func NewKeypair() (*Keypair, error) {
	var kp Keypair
	if _, err := rand.Read(kp.SpendSecret[:]); err != nil {
		return nil, err
	}
	if _, err := rand.Read(kp.ViewingSecret[:]); err != nil {
		return nil, err
	}
	return &kp, nil
}

// NullifierKey derives the PRF key for nullifier computation from the spend
// secret: a single field element under its own domain tag.
func NullifierKey(spendSecret [32]byte) goldilocks.Element {
	return sponge.Single(sponge.DomainNullifierKey, sponge.BytesToFelts(spendSecret[:]))
}

// RecipientTag derives the opaque address tag from viewing material.
func RecipientTag(viewingSecret [32]byte) [32]byte {
	h := blake3.New(32, nil)
	h.Write([]byte(recipientTagContext))
	h.Write(viewingSecret[:])
	var tag [32]byte
	copy(tag[:], h.Sum(nil))
	return tag
}

// RandomBytes32 samples 32 bytes of protocol randomness (rho, blinding).
func RandomBytes32() ([32]byte, error) {
	var out [32]byte
	_, err := rand.Read(out[:])
	return out, err
}
