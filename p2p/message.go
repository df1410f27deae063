// message.go - Gossip message envelope and payloads.
//
// Every network message travels in one envelope: a type tag, the sender, and
// an opaque payload decoded according to the tag. New message types extend
// the switch in the node handler without touching the wire format.

package p2p

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/Pauli-Group/Hegemon-sub003/internal/block"
)

// Message types.
const (
	TypeTransaction = "tx"
	TypeBlock       = "block"
	TypePing        = "ping"
)

// Message is the generic envelope for any gossip payload.
type Message struct {
	Type     string `json:"type"`
	SenderID string `json:"sender_id"`
	Payload  []byte `json:"payload"`
}

// EncodeTransaction wraps a transaction for gossip.
func EncodeTransaction(senderID string, tx *block.Transaction) (*Message, error) {
	payload, err := cbor.Marshal(tx)
	if err != nil {
		return nil, fmt.Errorf("p2p: encode transaction: %w", err)
	}
	return &Message{Type: TypeTransaction, SenderID: senderID, Payload: payload}, nil
}

// DecodeTransaction unwraps a transaction payload.
func DecodeTransaction(msg *Message) (*block.Transaction, error) {
	var tx block.Transaction
	if err := cbor.Unmarshal(msg.Payload, &tx); err != nil {
		return nil, fmt.Errorf("p2p: decode transaction: %w", err)
	}
	return &tx, nil
}

// EncodeBlock wraps a block for gossip.
func EncodeBlock(senderID string, b *block.Block) (*Message, error) {
	payload, err := cbor.Marshal(b)
	if err != nil {
		return nil, fmt.Errorf("p2p: encode block: %w", err)
	}
	return &Message{Type: TypeBlock, SenderID: senderID, Payload: payload}, nil
}

// DecodeBlock unwraps a block payload.
func DecodeBlock(msg *Message) (*block.Block, error) {
	var b block.Block
	if err := cbor.Unmarshal(msg.Payload, &b); err != nil {
		return nil, fmt.Errorf("p2p: decode block: %w", err)
	}
	return &b, nil
}
