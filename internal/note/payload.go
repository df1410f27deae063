// payload.go - Encrypted note payloads for recipients.
//
// Each output commitment ships with a ciphertext the recipient can open with a
// KEM shared secret. The core only fixes the byte format and the keystream
// derivation; the KEM itself is an external primitive (internal/pqc).

package note

import (
	"encoding/binary"
	"errors"
	"fmt"

	"lukechampine.com/blake3"

	"github.com/Pauli-Group/Hegemon-sub003/internal/pqc"
)

// PayloadSize is the fixed plaintext length: value, asset, tag, rho, blinding,
// spend-after.
const PayloadSize = 8 + 8 + 32 + 32 + 32 + 8

const payloadKeystreamContext = "hegemon-pool note payload v1"

// ErrPayloadLength reports a ciphertext of the wrong length.
var ErrPayloadLength = errors.New("note: payload must be 120 bytes")

func keystream(shared []byte, n int) []byte {
	h := blake3.New(n, nil)
	h.Write([]byte(payloadKeystreamContext))
	h.Write(shared)
	return h.Sum(nil)[:n]
}

func (n *Note) encode() [PayloadSize]byte {
	var out [PayloadSize]byte
	binary.BigEndian.PutUint64(out[0:8], n.Value)
	binary.BigEndian.PutUint64(out[8:16], n.AssetID)
	copy(out[16:48], n.RecipientTag[:])
	copy(out[48:80], n.Rho[:])
	copy(out[80:112], n.Blinding[:])
	binary.BigEndian.PutUint64(out[112:120], n.SpendAfter)
	return out
}

func decode(data [PayloadSize]byte) Note {
	var n Note
	n.Value = binary.BigEndian.Uint64(data[0:8])
	n.AssetID = binary.BigEndian.Uint64(data[8:16])
	copy(n.RecipientTag[:], data[16:48])
	copy(n.Rho[:], data[48:80])
	copy(n.Blinding[:], data[80:112])
	n.SpendAfter = binary.BigEndian.Uint64(data[112:120])
	return n
}

// Encrypt XORs the encoded note with a keystream bound to the shared secret.
func (n *Note) Encrypt(shared []byte) [PayloadSize]byte {
	plain := n.encode()
	stream := keystream(shared, PayloadSize)
	var out [PayloadSize]byte
	for i := range plain {
		out[i] = plain[i] ^ stream[i]
	}
	return out
}

// Decrypt reverses Encrypt under the same shared secret.
func Decrypt(ciphertext []byte, shared []byte) (Note, error) {
	if len(ciphertext) != PayloadSize {
		return Note{}, ErrPayloadLength
	}
	stream := keystream(shared, PayloadSize)
	var plain [PayloadSize]byte
	for i := range plain {
		plain[i] = ciphertext[i] ^ stream[i]
	}
	return decode(plain), nil
}

// Seal encapsulates to the recipient and encrypts the note under the shared
// secret. The envelope is the KEM ciphertext followed by the payload.
func (n *Note) Seal(kem pqc.KEM, recipientPublic []byte) ([]byte, error) {
	kemCt, shared, err := kem.Encapsulate(recipientPublic)
	if err != nil {
		return nil, fmt.Errorf("note: encapsulate: %w", err)
	}
	payload := n.Encrypt(shared)
	out := make([]byte, 0, len(kemCt)+PayloadSize)
	out = append(out, kemCt...)
	out = append(out, payload[:]...)
	return out, nil
}

// Open reverses Seal with the recipient's decapsulation secret.
func Open(kem pqc.KEM, recipientSecret, envelope []byte) (Note, error) {
	ctLen := kem.CiphertextLen()
	if len(envelope) != ctLen+PayloadSize {
		return Note{}, ErrPayloadLength
	}
	shared, err := kem.Decapsulate(recipientSecret, envelope[:ctLen])
	if err != nil {
		return Note{}, fmt.Errorf("note: decapsulate: %w", err)
	}
	return Decrypt(envelope[ctLen:], shared)
}

// Recognize decrypts a payload and reports whether it belongs to the holder of
// the given recipient tag. Used by wallets scanning block ciphertexts.
func Recognize(ciphertext []byte, shared []byte, myTag [32]byte) (bool, Note, error) {
	n, err := Decrypt(ciphertext, shared)
	if err != nil {
		return false, Note{}, err
	}
	if n.RecipientTag != myTag {
		return false, Note{}, nil
	}
	return true, n, nil
}
