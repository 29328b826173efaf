// Command minter runs the mint/burn pipeline against a shared chain index
// and ledger, and serves its query/admin surface over HTTP.
package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dogebridge/dogebridge/internal/account"
	"github.com/dogebridge/dogebridge/internal/api"
	"github.com/dogebridge/dogebridge/internal/config"
	"github.com/dogebridge/dogebridge/internal/db"
	"github.com/dogebridge/dogebridge/internal/kms"
	"github.com/dogebridge/dogebridge/internal/ledger"
	"github.com/dogebridge/dogebridge/internal/logging"
	"github.com/dogebridge/dogebridge/internal/minter"
	"github.com/dogebridge/dogebridge/internal/query"
	"github.com/dogebridge/dogebridge/internal/rpcclient"
	"github.com/dogebridge/dogebridge/internal/scheduler"
	"github.com/dogebridge/dogebridge/internal/store"
	"github.com/dogebridge/dogebridge/internal/txbuilder"
	"github.com/dogebridge/dogebridge/internal/utxoindex"
)

const shutdownTimeout = 15 * time.Second

// servicePrincipal identifies the minter's own deposit/change address
// derivation; distinct from any depositor's principal.
var servicePrincipal = []byte("dogebridge-minter")

func main() {
	if err := run(); err != nil {
		slog.Error("minter error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logCloser, err := logging.SetupWithPrefix(cfg.LogLevel, cfg.LogDir, config.MinterLogFilePattern, "mi")
	if err != nil {
		return fmt.Errorf("setup logging: %w", err)
	}
	defer logCloser.Close()

	slog.Info("minter starting",
		"network", cfg.Network,
		"port", cfg.Port,
		"storePath", cfg.StorePath,
		"dbPath", cfg.DBPath,
	)

	params := config.NetworkParamsFor(cfg.Network)

	st, err := store.Open(cfg.StorePath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	adminDB, err := db.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open admin db: %w", err)
	}
	defer adminDB.Close()

	idx, err := utxoindex.New(st, params, int64(cfg.MinConfirmations))
	if err != nil {
		return fmt.Errorf("open chain index: %w", err)
	}

	kmsClient, err := newKMSClient(cfg)
	if err != nil {
		return fmt.Errorf("init kms client: %w", err)
	}

	tokenSource := rpcclient.NewProxyTokenSource(kmsClient, cfg.KMSKeyName)
	rpc := rpcclient.New(cfg.RPCURL, cfg.RPCAuth, 10, tokenSource)

	deriver, err := account.NewDeriver(context.Background(), kmsClient, params)
	if err != nil {
		return fmt.Errorf("init address deriver: %w", err)
	}

	builder := txbuilder.New(idx, kmsClient, deriver)
	keyCache := minter.NewKeyCache(kmsClient, servicePrincipal, params)

	// The production ledger backend (an ICRC-shaped remote canister) is
	// not wired yet; MemoryLedger is the in-process reference
	// implementation the mint/burn pipeline runs against until then.
	ldg := ledger.NewMemoryLedger()

	m, err := minter.New(st, idx, ldg, builder, rpc, deriver, keyCache, params, servicePrincipal)
	if err != nil {
		return fmt.Errorf("init minter: %w", err)
	}

	querySvc := query.New(idx, noRestartScheduler{}, adminDB, deriver, cfg.KMSKeyName)
	router := api.NewRouter(querySvc, m, adminDB, noRestartScheduler{}, adminDB)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port+1),
		Handler:      router,
		ReadTimeout:  config.ServerReadTimeout,
		WriteTimeout: config.ServerWriteTimeout,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go runFinalizeLoop(ctx, m)
	go runCollectLoop(ctx, m)

	go func() {
		slog.Info("minter HTTP server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("http server error", "error", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	sig := <-stop
	slog.Info("shutdown signal received", "signal", sig)

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("http server shutdown error", "error", err)
	}

	slog.Info("minter stopped")
	return nil
}

func runFinalizeLoop(ctx context.Context, m *minter.Minter) {
	ticker := time.NewTicker(config.FinalityPollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for {
				hasMore, err := m.FinalizeBurning(ctx)
				if err != nil {
					slog.Error("finalize burning failed", "error", err)
					break
				}
				if !hasMore {
					break
				}
			}
		}
	}
}

func runCollectLoop(ctx context.Context, m *minter.Minter) {
	ticker := time.NewTicker(config.CollectAndClearInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := m.CollectAndClearUtxos(ctx); err != nil {
				slog.Error("collect and clear utxos failed", "error", err)
			}
		}
	}
}

func newKMSClient(cfg *config.Config) (kms.Client, error) {
	if cfg.LocalKMSHex != "" {
		seed, err := hex.DecodeString(cfg.LocalKMSHex)
		if err != nil {
			return nil, fmt.Errorf("%w: DOGEBRIDGE_LOCAL_KMS_SEED_HEX: %v", config.ErrInvalidConfig, err)
		}
		slog.Warn("using local dev KMS, not for production use")
		return kms.NewLocalKMS(seed)
	}
	return nil, fmt.Errorf("%w: no production KMS client wired yet, set DOGEBRIDGE_LOCAL_KMS_SEED_HEX for local development", config.ErrInvalidConfig)
}

// noRestartScheduler stands in for the chain-indexer's scheduler on the
// minter binary, which has no syncing cycle of its own to restart or
// report on.
type noRestartScheduler struct{}

func (noRestartScheduler) Status() scheduler.Status { return scheduler.StatusIdle }

func (noRestartScheduler) LastErrors() []string { return nil }

func (noRestartScheduler) AdminRestart(target scheduler.Status) error {
	return fmt.Errorf("%w: restart_syncing has no effect on the minter binary", config.ErrInvalidConfig)
}
