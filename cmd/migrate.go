package main

import (
	"context"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/flourish-retail/gapcore/internal/store"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the location, tenant and category tables",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate("migrate"); err != nil {
			return err
		}
		st, seeder, err := store.OpenSeeder(ctx, cfg.Store)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		if err := seeder.Migrate(ctx); err != nil {
			return err
		}
		zap.L().Info("migrations applied", zap.String("driver", cfg.Store.Driver))
		return nil
	},
}

var seedFile string

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load a fixture file into the database",
	Long: `Load a fixture file into the database. Tables are migrated first and
rows are upserted by id, so seeding the same file twice is harmless.

Example:
  gapcore seed --driver sqlite --file testdata/fixtures/manchester.yaml`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSeed(cmd.Context(), seedFile)
	},
}

func runSeed(ctx context.Context, path string) error {
	if path == "" {
		path = cfg.Store.FixturePath
	}
	if path == "" {
		return eris.New("seed: --file or store.fixture_path is required")
	}
	if err := cfg.Validate("migrate"); err != nil {
		return err
	}

	f, err := store.LoadFixture(path)
	if err != nil {
		return err
	}

	st, seeder, err := store.OpenSeeder(ctx, cfg.Store)
	if err != nil {
		return err
	}
	defer st.Close() //nolint:errcheck

	if err := seeder.Migrate(ctx); err != nil {
		return err
	}
	if err := seeder.Seed(ctx, f); err != nil {
		return err
	}
	zap.L().Info("fixture seeded",
		zap.String("file", path),
		zap.Int("locations", len(f.Locations)),
		zap.Int("tenants", len(f.Tenants)),
	)
	return nil
}

func init() {
	seedCmd.Flags().StringVar(&seedFile, "file", "", "fixture YAML file (default store.fixture_path)")
	rootCmd.AddCommand(migrateCmd, seedCmd)
}
