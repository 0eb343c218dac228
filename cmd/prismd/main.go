package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"shadowprism/go-core/internal/api"
	"shadowprism/go-core/internal/compliance"
	"shadowprism/go-core/internal/config"
	"shadowprism/go-core/internal/dispatch"
	"shadowprism/go-core/internal/gateway"
	"shadowprism/go-core/internal/keystore"
	"shadowprism/go-core/internal/ledger"
	"shadowprism/go-core/internal/market"
	"shadowprism/go-core/internal/platform/privacylog"
	"shadowprism/go-core/internal/providers"
	"shadowprism/go-core/internal/watchdog"
)

var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	configPath := flag.String("config", "", "Path to prism.yaml (optional)")
	flag.Parse()
	if *showVersion {
		fmt.Printf("prismd version=%s commit=%s build_date=%s\n", version, commit, buildDate)
		return
	}

	log := slog.New(privacylog.WrapHandler(slog.NewJSONHandler(os.Stdout, nil)))
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *configPath, log); err != nil {
		log.Error("prismd failed", "err", err)
		os.Exit(1)
	}
	log.Info("prismd stopped")
}

func run(ctx context.Context, configPath string, log *slog.Logger) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := os.MkdirAll(cfg.DataDir, 0o700); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	signer, mnemonic, err := keystore.LoadOrCreate(cfg.Keystore.Path, cfg.Keystore.Passphrase)
	if err != nil {
		return fmt.Errorf("open keystore: %w", err)
	}
	if mnemonic != "" {
		// Shown once on stderr, never logged: the mnemonic is the only way
		// to recover the signing identity.
		fmt.Fprintf(os.Stderr, "new signing identity %s\nrecovery mnemonic (write it down, it is not stored):\n%s\n",
			signer.Address(), mnemonic)
	}
	log.Info("signing identity ready", "identity", signer.Address())

	store, err := ledger.Open(filepath.Join(cfg.DataDir, "ledger.db"))
	if err != nil {
		return fmt.Errorf("open ledger: %w", err)
	}
	defer store.Close()

	gw := gateway.New(cfg.Network, log)
	risk := compliance.New(cfg.Compliance, log)
	defer risk.Stop()
	oracle := market.New(cfg.Market, log)
	defer oracle.Stop()

	solPrice := func(ctx context.Context) float64 { return oracle.Price(ctx, "SOL-USD") }
	registry, err := providers.NewRegistry(
		providers.NewPrivacyCash(log),
		providers.NewRadr(log),
	)
	if err != nil {
		return fmt.Errorf("build provider registry: %w", err)
	}
	engine := dispatch.New(registry,
		providers.NewSilentSwap(solPrice, log),
		providers.NewStarpay(log),
		store, risk, signer, gw, cfg.Compliance.Threshold, log)

	dog := watchdog.New(store, gw, cfg.Watchdog.Interval, log)
	go dog.Run(ctx)

	srv := api.NewServer(cfg, engine, store, log)
	log.Info("prismd online", "version", version, "addr", cfg.ListenAddr)
	return srv.Run(ctx)
}
