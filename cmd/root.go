package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/flourish-retail/gapcore/internal/config"
	"github.com/flourish-retail/gapcore/internal/insight"
	"github.com/flourish-retail/gapcore/internal/resilience"
	"github.com/flourish-retail/gapcore/internal/store"
)

var cfg *config.Config

var (
	driverFlag   string
	fixturesFlag string
)

var rootCmd = &cobra.Command{
	Use:   "gapcore",
	Short: "Tenant mix gap analysis for retail destinations",
	Long:  "Resolves spoken location names, compares tenant mixes against competitors, scores data completeness and serves the results to the voice assistant.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		applyStoreFlags(c)
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&driverFlag, "driver", "", "store driver: postgres, sqlite or memory (default from config)")
	pf.StringVar(&fixturesFlag, "fixtures", "", "fixture YAML file; implies the memory driver unless --driver is set")
}

// applyStoreFlags lets the command line override the store section.
func applyStoreFlags(c *config.Config) {
	if fixturesFlag != "" {
		c.Store.FixturePath = fixturesFlag
		c.Store.Driver = "memory"
	}
	if driverFlag != "" {
		c.Store.Driver = driverFlag
	}
}

// appEnv bundles the opened store with the service built on top of it.
type appEnv struct {
	Store   store.Store
	Service *insight.Service
}

// initEnv validates the config for mode, opens the store and wires the
// insight service through the retrying reader.
func initEnv(ctx context.Context, mode string) (*appEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	st, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return nil, err
	}

	reader := store.NewRetryingReader(st, resilience.FromConfig(cfg.Retry))
	svc, err := insight.New(reader, cfg)
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	return &appEnv{Store: st, Service: svc}, nil
}

// Close releases the store.
func (e *appEnv) Close() {
	if err := e.Store.Close(); err != nil {
		zap.L().Warn("close store", zap.Error(err))
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
