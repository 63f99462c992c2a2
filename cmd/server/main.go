// page-notes server: the note overlay backend. Notes live as a single JSON
// collection in an encrypted SQLite database; the HTTP API mirrors the panel
// operations (CRUD, lock lifecycle, import/export, quota, preview render).
package main

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kuitang/page-notes/internal/api"
	"github.com/kuitang/page-notes/internal/config"
	"github.com/kuitang/page-notes/internal/crypto"
	"github.com/kuitang/page-notes/internal/note"
	"github.com/kuitang/page-notes/internal/obs"
	"github.com/kuitang/page-notes/internal/ratelimit"
	"github.com/kuitang/page-notes/internal/storage"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "page-notes: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ephemeral, plaintext, addr := config.ParseFlags()
	cfg := config.MustLoadConfig(ephemeral, plaintext, addr)

	obs.Init()
	log := obs.Pkg("main")
	cfg.PrintStartupSummary()

	kv, closeKV, err := openStorage(cfg)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer closeKV()

	locks := note.NewLockManager()
	store, err := note.NewStore(kv, locks)
	if err != nil {
		return fmt.Errorf("load notes: %w", err)
	}

	saver := note.NewScheduler(cfg.AutosaveDelay)
	defer saver.Flush()

	session := note.NewSession(store, note.NopDialogs{}, saver, nil)

	limiter := ratelimit.NewRateLimiter(cfg.RateLimitConfig)
	defer limiter.Stop()

	mux := http.NewServeMux()
	api.NewHandler(store, session).RegisterRoutes(mux)

	var handler http.Handler = mux
	handler = ratelimit.Middleware(limiter, nil)(handler)
	handler = obs.AccessLogMiddleware("api", handler)
	handler = obs.RequestContextMiddleware(handler)

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", "addr", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	// Land any edit still inside its debounce window before exiting.
	saver.Flush()
	return nil
}

// openStorage picks the key/value backend for the note collection:
// in-memory, plaintext SQLite, or SQLCipher keyed from the master key.
func openStorage(cfg *config.Config) (storage.KV, func(), error) {
	if cfg.Ephemeral {
		return storage.NewMemory(), func() {}, nil
	}

	var key []byte
	if !cfg.Plaintext {
		masterKey, err := hex.DecodeString(cfg.MasterKey)
		if err != nil {
			return nil, nil, fmt.Errorf("decode MASTER_KEY: %w", err)
		}
		key = crypto.DeriveStorageKey(masterKey, 1)
	}

	db, err := storage.OpenSQLite(cfg.DatabasePath, key)
	if err != nil {
		return nil, nil, err
	}
	return db, func() { db.Close() }, nil
}
