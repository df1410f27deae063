// Package pqc declares the post-quantum primitive surface the pool consumes.
//
// The pool treats signing and key encapsulation as opaque fixed-length
// functions supplied by the embedding node. Nothing in this package implements
// post-quantum cryptography; the concrete schemes live outside the core.
package pqc

// Signer produces signatures over block header material.
type Signer interface {
	Sign(message []byte) ([]byte, error)
	PublicKey() []byte
	SignatureLen() int
}

// Verifier checks signatures produced by a Signer.
type Verifier interface {
	Verify(publicKey, message, signature []byte) error
}

// KEM encapsulates shared secrets for note payload encryption.
type KEM interface {
	Encapsulate(recipientPublic []byte) (ciphertext, shared []byte, err error)
	Decapsulate(recipientSecret, ciphertext []byte) (shared []byte, err error)
	CiphertextLen() int
	SharedSecretLen() int
}
