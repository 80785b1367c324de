package cli

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/sharpshop/sharpshop/internal/config"
	"github.com/sharpshop/sharpshop/internal/logger"
	"github.com/sharpshop/sharpshop/internal/metrics"
	"github.com/sharpshop/sharpshop/pkg/commerce"
	"github.com/sharpshop/sharpshop/pkg/commerce/flutterwave"
	"github.com/sharpshop/sharpshop/pkg/commerce/sqlitestore"
	"github.com/sharpshop/sharpshop/pkg/completion"
	"github.com/sharpshop/sharpshop/pkg/decision"
	"github.com/sharpshop/sharpshop/pkg/dispatch"
	"github.com/sharpshop/sharpshop/pkg/orchestrator"
	"github.com/sharpshop/sharpshop/pkg/session"
	"github.com/sharpshop/sharpshop/pkg/synthesis"
	"github.com/sharpshop/sharpshop/pkg/webhook"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the SharpShop service",
	Long: `Run the SharpShop service in the foreground: the HTTP API, the
session sweeper and the catalog store. Stops cleanly on SIGINT/SIGTERM.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	// Local development convenience; missing .env is fine.
	_ = godotenv.Load()

	cfg, err := config.NewLoader(cfgFile).Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	lg, err := logger.New(logger.Config{
		Level:   cfg.Logging.Level,
		File:    cfg.Logging.File,
		Console: true,
		Pretty:  cfg.Logging.Pretty,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer lg.Close()
	log := lg.Get()

	metrics.EnsureRegistered()

	dbPath := cfg.Catalog.DBPath
	if dbPath == "" {
		dbPath = filepath.Join(dataDir(cfg), "catalog.db")
	}
	store, err := sqlitestore.Open(dbPath, log)
	if err != nil {
		return err
	}
	defer store.Close()

	var payments commerce.Payments
	if cfg.Payment.SecretKey != "" {
		payments, err = flutterwave.New(flutterwave.Options{
			BaseURL:     cfg.Payment.BaseURL,
			SecretKey:   cfg.Payment.SecretKey,
			RedirectURL: cfg.Payment.RedirectURL,
			Currency:    cfg.Payment.Currency,
			Amounts:     store,
			Logger:      log,
		})
		if err != nil {
			return err
		}
	} else {
		log.Warn().Msg("No payment secret key configured, payment links disabled")
		payments = disabledPayments{}
	}

	provider, err := completion.NewProvider(completion.Options{
		Provider: cfg.Model.Provider,
		APIKey:   cfg.Model.APIKey,
		BaseURL:  cfg.Model.BaseURL,
		Model:    cfg.Model.Model,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize completion provider: %w", err)
	}

	notifier := commerce.NewLogNotifier(log)

	sessions := session.NewStore(cfg.Session.TTL, cfg.Session.MaxDuration)
	sweeper := session.NewSweeper(sessions, cfg.Session.SweepInterval)

	engine := decision.NewEngine(provider, cfg.Session.HistoryWindow, log)
	dispatcher := dispatch.New(dispatch.Collaborators{
		Catalog:  store,
		Orders:   store,
		Payments: payments,
		Notifier: notifier,
		Shop:     store,
	}, log)
	synthesizer := synthesis.New(provider, cfg.Model.MaxTokens, log)

	orch, err := orchestrator.New(orchestrator.Options{
		Store:       sessions,
		Engine:      engine,
		Dispatcher:  dispatcher,
		Synthesizer: synthesizer,
		Shop:        store,
		Notifier:    notifier,
		CallTimeout: cfg.Model.CallTimeout,
		Logger:      log,
	})
	if err != nil {
		return err
	}

	server, err := webhook.NewServer(webhook.ServerOptions{
		Host: cfg.Server.Host,
		Port: cfg.Server.Port,
	}, orch, log)
	if err != nil {
		return err
	}

	if err := sweeper.Start(); err != nil {
		return fmt.Errorf("failed to start session sweeper: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	log.Info().
		Str("provider", cfg.Model.Provider).
		Str("model", cfg.Model.Model).
		Msg("SharpShop service started")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
	case err := <-errCh:
		if err != nil {
			sweeper.Stop()
			return err
		}
	}

	sweeper.Stop()
	if err := server.Stop(); err != nil {
		return err
	}

	log.Info().Msg("SharpShop service stopped")
	return nil
}

func dataDir(cfg *config.Config) string {
	if cfg.DataDir != "" {
		return cfg.DataDir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".sharpshop")
}
