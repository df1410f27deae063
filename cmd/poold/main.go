// main.go - Shielded pool daemon.
//
// Boots the ledger state, compiles the transaction circuit, loads or
// generates proving keys, and serves a small HTTP API for status queries,
// transaction admission and block import.
package main

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/rs/zerolog"

	"github.com/Pauli-Group/Hegemon-sub003/internal/aggregate"
	"github.com/Pauli-Group/Hegemon-sub003/internal/block"
	"github.com/Pauli-Group/Hegemon-sub003/internal/txproof"
	"github.com/Pauli-Group/Hegemon-sub003/internal/version"
)

func main() {
	configPath := flag.String("config", "poold.json", "path to configuration file")
	flag.Parse()

	stderrLog := zerolog.New(os.Stderr)

	cfg, err := LoadConfig(*configPath)
	if err != nil {
		stderrLog.Fatal().Err(err).Msg("configuration load failed")
	}
	if err := cfg.Validate(); err != nil {
		stderrLog.Fatal().Err(err).Msg("configuration invalid")
	}
	log, cleanup, err := newLogger(cfg)
	if err != nil {
		stderrLog.Fatal().Err(err).Msg("logger setup failed")
	}
	defer cleanup()

	log.Info().Str("config", *configPath).Msg("pool daemon starting")

	if err := os.MkdirAll(cfg.KeyDir, 0o755); err != nil {
		log.Fatal().Err(err).Msg("key directory")
	}

	// Circuit compilation and key setup dominate startup; keys persist under
	// key_dir so restarts are fast.
	start := time.Now()
	suite, err := txproof.NewSuite(version.DefaultBinding, cfg.KeyDir)
	if err != nil {
		log.Fatal().Err(err).Msg("proving suite setup failed")
	}
	log.Info().
		Dur("elapsed", time.Since(start)).
		Str("binding", version.DefaultBinding.String()).
		Msg("proving suite ready")

	registry := txproof.NewRegistry()
	registry.Register(suite)

	state, err := block.NewState(cfg.TreeDepth, cfg.RootHistory, log)
	if err != nil {
		log.Fatal().Err(err).Msg("state initialization failed")
	}
	schedule := version.DefaultSchedule()
	var agg block.AggregateVerifier
	if cfg.EnableAggregate {
		start = time.Now()
		aggregator, err := aggregate.New(suite)
		if err != nil {
			log.Fatal().Err(err).Msg("aggregator setup failed")
		}
		log.Info().Dur("elapsed", time.Since(start)).Msg("aggregator ready")
		agg = aggregator
	}
	gate := block.NewGate(state, block.RegistryChecker{Registry: registry}, agg, schedule, log)
	gate.SetMaxConcurrency(cfg.MaxConcurrency)

	srv := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      newAPI(state, gate, schedule, log),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		log.Info().Str("addr", cfg.ListenAddr).Msg("http api listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("http server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	log.Info().Msg("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("http shutdown")
	}
	log.Info().Uint64("height", state.Height()).Msg("pool daemon stopped")
}

// api serves status, transaction admission and block import.
type api struct {
	state    *block.State
	gate     *block.Gate
	schedule *version.Schedule
	metrics  *Metrics
	limiter  *RateLimiter
	log      zerolog.Logger
}

func newAPI(state *block.State, gate *block.Gate, schedule *version.Schedule, log zerolog.Logger) http.Handler {
	a := &api{
		state:    state,
		gate:     gate,
		schedule: schedule,
		metrics:  NewMetrics(),
		limiter:  NewRateLimiter(100, 10, time.Second),
		log:      log.With().Str("component", "api").Logger(),
	}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", a.handleHealth)
	mux.HandleFunc("GET /status", a.handleStatus)
	mux.HandleFunc("GET /metrics", a.handleMetrics)
	mux.HandleFunc("POST /tx", a.handleSubmitTx)
	mux.HandleFunc("POST /block", a.handleImportBlock)
	return mux
}

func (a *api) handleMetrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.metrics.Snapshot())
}

func (a *api) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (a *api) handleStatus(w http.ResponseWriter, r *http.Request) {
	root := a.state.Root().Bytes()
	last := a.state.LastHash()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"height":     a.state.Height(),
		"tree_root":  hex.EncodeToString(root[:]),
		"last_block": hex.EncodeToString(last[:]),
		"notes":      a.state.NoteCount(),
		"spent":      a.state.SpentCount(),
		"versions":   a.schedule.ActiveAt(a.state.Height() + 1),
	})
}

func (a *api) handleSubmitTx(w http.ResponseWriter, r *http.Request) {
	if !a.limiter.Allow() {
		writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": "rate limited"})
		return
	}
	var tx block.Transaction
	if err := cbor.NewDecoder(r.Body).Decode(&tx); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if tx.Public == nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing public statement"})
		return
	}
	// Admission trusts the wallet's declared block time; import enforces the
	// real one.
	height := a.state.Height() + 1
	if err := a.gate.CheckTransaction(&tx, height, tx.Public.BlockTime); err != nil {
		a.metrics.TxRejected()
		a.log.Warn().Err(err).Msg("transaction rejected")
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": err.Error()})
		return
	}
	a.metrics.TxAccepted()
	writeJSON(w, http.StatusOK, map[string]string{"status": "accepted"})
}

func (a *api) handleImportBlock(w http.ResponseWriter, r *http.Request) {
	var b block.Block
	if err := cbor.NewDecoder(r.Body).Decode(&b); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	start := time.Now()
	if err := a.gate.Import(r.Context(), &b); err != nil {
		a.metrics.BlockRejected()
		a.log.Warn().Err(err).Uint64("height", b.Header.Height).Msg("block rejected")
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": err.Error()})
		return
	}
	a.metrics.BlockImported(time.Since(start))
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "imported",
		"height": b.Header.Height,
	})
}

func writeJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(payload)
}
