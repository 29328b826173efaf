// Command chainindexer runs the fetch/process/confirm cycle that keeps a
// utxoindex.Index caught up with a full node, and serves its state and
// admin surface over HTTP.
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
	"github.com/dogebridge/dogebridge/internal/logging"
	"github.com/dogebridge/dogebridge/internal/query"
	"github.com/dogebridge/dogebridge/internal/rpcclient"
	"github.com/dogebridge/dogebridge/internal/scheduler"
	"github.com/dogebridge/dogebridge/internal/script"
	"github.com/dogebridge/dogebridge/internal/store"
	"github.com/dogebridge/dogebridge/internal/utxoindex"
)

const shutdownTimeout = 15 * time.Second

func main() {
	if err := run(); err != nil {
		slog.Error("chainindexer error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logCloser, err := logging.SetupWithPrefix(cfg.LogLevel, cfg.LogDir, config.CILogFilePattern, "ci")
	if err != nil {
		return fmt.Errorf("setup logging: %w", err)
	}
	defer logCloser.Close()

	slog.Info("chainindexer starting",
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
	primary := rpcclient.New(cfg.RPCURL, cfg.RPCAuth, 10, tokenSource)

	attesters, err := attesterClients(adminDB, tokenSource)
	if err != nil {
		return fmt.Errorf("build attester clients: %w", err)
	}

	sched := scheduler.New(idx, primary, attesters...)

	deriver, err := account.NewDeriver(context.Background(), kmsClient, params)
	if err != nil {
		return fmt.Errorf("init address deriver: %w", err)
	}

	querySvc := query.New(idx, sched, adminDB, deriver, cfg.KMSKeyName)

	router := api.NewRouter(querySvc, noopMinter{}, adminDB, sched, adminDB)
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  config.ServerReadTimeout,
		WriteTimeout: config.ServerWriteTimeout,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sched.Run(ctx)

	go func() {
		slog.Info("chainindexer HTTP server listening", "addr", srv.Addr)
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

	slog.Info("chainindexer stopped")
	return nil
}

// newKMSClient picks a local dev signer when DOGEBRIDGE_LOCAL_KMS_SEED_HEX
// is set, otherwise the real threshold KMS client.
func newKMSClient(cfg *config.Config) (kms.Client, error) {
	if cfg.LocalKMSHex != "" {
		seed, err := decodeHexSeed(cfg.LocalKMSHex)
		if err != nil {
			return nil, err
		}
		slog.Warn("using local dev KMS, not for production use")
		return kms.NewLocalKMS(seed)
	}
	return nil, fmt.Errorf("%w: no production KMS client wired yet, set DOGEBRIDGE_LOCAL_KMS_SEED_HEX for local development", config.ErrInvalidConfig)
}

func decodeHexSeed(s string) ([]byte, error) {
	seed, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: DOGEBRIDGE_LOCAL_KMS_SEED_HEX: %v", config.ErrInvalidConfig, err)
	}
	return seed, nil
}

// attesterClients builds one rpcclient.Client per non-primary agent
// recorded in adminDB, each sharing the primary's proxy token source.
func attesterClients(adminDB *db.DB, tokenSource *rpcclient.ProxyTokenSource) ([]scheduler.ChainClient, error) {
	agents, err := adminDB.ListAgents()
	if err != nil {
		return nil, err
	}
	clients := make([]scheduler.ChainClient, 0, len(agents))
	for _, a := range agents {
		if a.IsPrimary {
			continue
		}
		clients = append(clients, rpcclient.New(a.URL, a.Auth, 10, tokenSource))
	}
	return clients, nil
}

// noopMinter rejects mint/burn on the chain-indexer binary: those live on
// the minter service, which shares no memory with this one.
type noopMinter struct{}

func (noopMinter) Mint(ctx context.Context, callerPrincipal []byte) (int64, error) {
	return 0, fmt.Errorf("%w: mint is served by the minter binary, not chainindexer", config.ErrInvalidConfig)
}

func (noopMinter) Burn(ctx context.Context, callerPrincipal []byte, receiver script.Address, amount, feeRatePerKvB int64) (uint64, error) {
	return 0, fmt.Errorf("%w: burn is served by the minter binary, not chainindexer", config.ErrInvalidConfig)
}

func (noopMinter) RetryBurn(ctx context.Context, ledgerBlock uint64) error {
	return fmt.Errorf("%w: retry_burn is served by the minter binary, not chainindexer", config.ErrInvalidConfig)
}
