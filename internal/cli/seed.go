package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/sharpshop/sharpshop/internal/config"
	"github.com/sharpshop/sharpshop/internal/logger"
	"github.com/sharpshop/sharpshop/pkg/commerce"
	"github.com/sharpshop/sharpshop/pkg/commerce/sqlitestore"
)

var seedFile string

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load traders and products into the catalog store",
	Long: `Load a JSON fixture of traders and their products into the catalog
store. Existing records with the same ids are updated.`,
	RunE: runSeed,
}

func init() {
	seedCmd.Flags().StringVar(&seedFile, "file", "", "JSON fixture file (required)")
	_ = seedCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(seedCmd)
}

type seedTrader struct {
	ID             string             `json:"id"`
	BusinessName   string             `json:"business_name"`
	WhatsAppNumber string             `json:"whatsapp_number"`
	Products       []commerce.Product `json:"products"`
}

func runSeed(cmd *cobra.Command, args []string) error {
	cfg, err := config.NewLoader(cfgFile).Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	lg, err := logger.New(logger.Config{Level: "info", Console: true, Pretty: true})
	if err != nil {
		return err
	}
	defer lg.Close()
	log := lg.Get()

	data, err := os.ReadFile(seedFile)
	if err != nil {
		return fmt.Errorf("failed to read fixture: %w", err)
	}

	var traders []seedTrader
	if err := json.Unmarshal(data, &traders); err != nil {
		return fmt.Errorf("failed to parse fixture: %w", err)
	}

	dbPath := cfg.Catalog.DBPath
	if dbPath == "" {
		dbPath = filepath.Join(dataDir(cfg), "catalog.db")
	}
	store, err := sqlitestore.Open(dbPath, log)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := context.Background()
	productCount := 0
	for _, t := range traders {
		if t.ID == "" || t.BusinessName == "" {
			return fmt.Errorf("fixture trader missing id or business_name")
		}
		if err := store.UpsertTrader(ctx, t.ID, t.BusinessName, t.WhatsAppNumber); err != nil {
			return err
		}
		for _, p := range t.Products {
			if err := store.UpsertProduct(ctx, t.ID, p); err != nil {
				return err
			}
			productCount++
		}
	}

	log.Info().
		Int("traders", len(traders)).
		Int("products", productCount).
		Msg("Catalog seeded")

	return nil
}
