// node.go - Gossip node: receives and relays transactions and blocks.
//
// Nodes speak HTTP: one POST endpoint accepts message envelopes, a handler
// dispatches on type, and anything new is handed to the ledger and relayed to
// peers. A bounded seen-set stops relay loops.

package p2p

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"lukechampine.com/blake3"

	"github.com/Pauli-Group/Hegemon-sub003/internal/block"
)

const seenLimit = 4096

// Ledger is the node's view of consensus: transaction admission and block
// import. *block.Gate satisfies it.
type Ledger interface {
	CheckTransaction(tx *block.Transaction, height, timestamp uint64) error
	Import(ctx context.Context, b *block.Block) error
}

// HeightSource reports the current tip height. *block.State satisfies it.
type HeightSource interface {
	Height() uint64
}

// Node is one gossip participant.
type Node struct {
	ID      string
	Address string
	Peers   map[string]string

	ledger Ledger
	height HeightSource
	server *http.Server
	client *http.Client
	log    zerolog.Logger

	mu    sync.Mutex
	seen  map[[32]byte]struct{}
	order [][32]byte
}

// NewNode wires a node to its ledger. Peers maps peer IDs to base addresses.
func NewNode(id, address string, peers map[string]string, ledger Ledger, height HeightSource, log zerolog.Logger) *Node {
	return &Node{
		ID:      id,
		Address: address,
		Peers:   peers,
		ledger:  ledger,
		height:  height,
		client:  &http.Client{Timeout: 10 * time.Second},
		log:     log.With().Str("component", "p2p").Str("node", id).Logger(),
		seen:    make(map[[32]byte]struct{}),
	}
}

// Start begins serving gossip on the node's address.
func (n *Node) Start() {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /message", n.messageHandler)
	n.server = &http.Server{Addr: n.Address, Handler: mux}
	go func() {
		if err := n.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			n.log.Error().Err(err).Msg("gossip server failed")
		}
	}()
	n.log.Info().Str("addr", n.Address).Msg("gossip listening")
}

// Stop shuts the gossip server down.
func (n *Node) Stop(ctx context.Context) error {
	if n.server == nil {
		return nil
	}
	return n.server.Shutdown(ctx)
}

// messageHandler decodes the envelope and processes the payload by type.
func (n *Node) messageHandler(w http.ResponseWriter, r *http.Request) {
	var msg Message
	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if !n.markSeen(&msg) {
		w.WriteHeader(http.StatusOK)
		return
	}
	switch msg.Type {
	case TypeTransaction:
		n.handleTransaction(r.Context(), &msg)
	case TypeBlock:
		n.handleBlock(r.Context(), &msg)
	case TypePing:
		n.log.Debug().Str("from", msg.SenderID).Msg("ping")
	default:
		n.log.Warn().Str("type", msg.Type).Msg("unknown message type")
	}
	w.WriteHeader(http.StatusOK)
}

func (n *Node) handleTransaction(ctx context.Context, msg *Message) {
	tx, err := DecodeTransaction(msg)
	if err != nil {
		n.log.Warn().Err(err).Str("from", msg.SenderID).Msg("bad transaction payload")
		return
	}
	if tx.Public == nil {
		n.log.Warn().Str("from", msg.SenderID).Msg("transaction without statement")
		return
	}
	height := n.height.Height() + 1
	if err := n.ledger.CheckTransaction(tx, height, tx.Public.BlockTime); err != nil {
		n.log.Debug().Err(err).Str("from", msg.SenderID).Msg("transaction not admitted")
		return
	}
	n.log.Info().Str("from", msg.SenderID).Msg("transaction admitted, relaying")
	n.relay(ctx, msg)
}

func (n *Node) handleBlock(ctx context.Context, msg *Message) {
	b, err := DecodeBlock(msg)
	if err != nil {
		n.log.Warn().Err(err).Str("from", msg.SenderID).Msg("bad block payload")
		return
	}
	if err := n.ledger.Import(ctx, b); err != nil {
		n.log.Debug().Err(err).Uint64("height", b.Header.Height).Msg("block not imported")
		return
	}
	n.log.Info().Uint64("height", b.Header.Height).Msg("block imported, relaying")
	n.relay(ctx, msg)
}

// BroadcastTransaction gossips a local transaction to all peers.
func (n *Node) BroadcastTransaction(ctx context.Context, tx *block.Transaction) error {
	msg, err := EncodeTransaction(n.ID, tx)
	if err != nil {
		return err
	}
	n.markSeen(msg)
	n.relay(ctx, msg)
	return nil
}

// BroadcastBlock gossips a locally produced block to all peers.
func (n *Node) BroadcastBlock(ctx context.Context, b *block.Block) error {
	msg, err := EncodeBlock(n.ID, b)
	if err != nil {
		return err
	}
	n.markSeen(msg)
	n.relay(ctx, msg)
	return nil
}

// relay forwards an envelope to every peer, rewriting the sender.
func (n *Node) relay(ctx context.Context, msg *Message) {
	out := Message{Type: msg.Type, SenderID: n.ID, Payload: msg.Payload}
	body, err := json.Marshal(&out)
	if err != nil {
		n.log.Error().Err(err).Msg("envelope encoding")
		return
	}
	for peerID, addr := range n.Peers {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, addr+"/message", bytes.NewReader(body))
		if err != nil {
			n.log.Warn().Err(err).Str("peer", peerID).Msg("relay request")
			continue
		}
		req.Header.Set("Content-Type", "application/json")
		resp, err := n.client.Do(req)
		if err != nil {
			n.log.Warn().Err(err).Str("peer", peerID).Msg("relay failed")
			continue
		}
		resp.Body.Close()
	}
}

// markSeen records a payload hash and reports whether it was new. The seen
// set is bounded; the oldest entries age out first.
func (n *Node) markSeen(msg *Message) bool {
	key := payloadKey(msg)
	n.mu.Lock()
	defer n.mu.Unlock()
	if _, ok := n.seen[key]; ok {
		return false
	}
	n.seen[key] = struct{}{}
	n.order = append(n.order, key)
	if len(n.order) > seenLimit {
		oldest := n.order[0]
		n.order = n.order[1:]
		delete(n.seen, oldest)
	}
	return true
}

func payloadKey(msg *Message) [32]byte {
	h := blake3.New(32, nil)
	h.Write([]byte(msg.Type))
	h.Write(msg.Payload)
	var key [32]byte
	h.Sum(key[:0])
	return key
}

// Ping checks liveness of one peer.
func (n *Node) Ping(ctx context.Context, peerID string) error {
	addr, ok := n.Peers[peerID]
	if !ok {
		return fmt.Errorf("p2p: unknown peer %q", peerID)
	}
	msg := Message{Type: TypePing, SenderID: n.ID}
	body, err := json.Marshal(&msg)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, addr+"/message", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := n.client.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("p2p: peer %q returned %d", peerID, resp.StatusCode)
	}
	return nil
}
