package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/pthm-cable/foundation/config"
	"github.com/pthm-cable/foundation/pipeline"
	"github.com/pthm-cable/foundation/store"
	"github.com/pthm-cable/foundation/telemetry"
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the pipeline once",
		Long: `Run the full pipeline for one seed and grid size.

Flags override the loaded config. With --out the run writes CSV diagnostics,
a config snapshot and (when telemetry.write_dump is set) a raw buffer dump.
With --catalog the run is recorded in a SQLite catalog.

Examples:
  foundation run --seed 7
  foundation run --config world.yaml --width 128 --height 80 --out out/
  foundation run --out out/ --catalog runs.db`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath, _ := cmd.Flags().GetString("config")
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return err
			}
			if err := applyRunFlags(cmd, cfg); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			slog.Info("starting run",
				"seed", cfg.World.Seed,
				"width", cfg.World.Width,
				"height", cfg.World.Height,
				"eras", cfg.Derived.EraCount,
			)
			r, err := pipeline.Run(ctx, cfg)
			if err != nil {
				return err
			}
			return writeOutputs(cfg, r)
		},
	}

	cmd.Flags().String("config", "", "Path to config.yaml (empty = use defaults)")
	cmd.Flags().Int64("seed", 0, "World seed (0 = keep config value)")
	cmd.Flags().Int("width", 0, "Tile columns (0 = keep config value)")
	cmd.Flags().Int("height", 0, "Tile rows (0 = keep config value)")
	cmd.Flags().String("out", "", "Output directory for CSV diagnostics and dumps")
	cmd.Flags().String("catalog", "", "SQLite catalog path")
	cmd.Flags().Bool("dump", false, "Write the raw buffer dump (implies telemetry.write_dump)")

	return cmd
}

// applyRunFlags folds CLI overrides into cfg and re-validates.
func applyRunFlags(cmd *cobra.Command, cfg *config.Config) error {
	if v, _ := cmd.Flags().GetInt64("seed"); v != 0 {
		cfg.World.Seed = v
	}
	if v, _ := cmd.Flags().GetInt("width"); v != 0 {
		cfg.World.Width = v
	}
	if v, _ := cmd.Flags().GetInt("height"); v != 0 {
		cfg.World.Height = v
	}
	if v, _ := cmd.Flags().GetString("out"); v != "" {
		cfg.Telemetry.OutputDir = v
	}
	if v, _ := cmd.Flags().GetString("catalog"); v != "" {
		cfg.Telemetry.Catalog = v
	}
	if v, _ := cmd.Flags().GetBool("dump"); v {
		cfg.Telemetry.WriteDump = true
	}
	return cfg.Refresh()
}

func writeOutputs(cfg *config.Config, r *pipeline.Result) (err error) {
	om, err := telemetry.NewOutputManager(cfg.Telemetry.OutputDir)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := om.Close(); err == nil {
			err = cerr
		}
	}()

	if err := om.WriteConfig(cfg); err != nil {
		return err
	}
	if err := om.WritePlates(telemetry.PlateRecords(r.Graph, r.Motion)); err != nil {
		return err
	}
	if err := om.WriteEras(telemetry.EraRecords(r.History)); err != nil {
		return err
	}
	if err := om.WriteStages(r.Perf); err != nil {
		return err
	}
	if err := om.WriteRun(r.Stats); err != nil {
		return err
	}

	dumpDir := ""
	if cfg.Telemetry.WriteDump {
		if om == nil {
			return fmt.Errorf("write_dump needs an output directory")
		}
		dumpDir = filepath.Join(om.Dir(), "dump")
		m, err := store.DumpResult(dumpDir, r)
		if err != nil {
			return err
		}
		slog.Info("dump written", "dir", dumpDir, "buffers", len(m.Buffers))
	}

	if cfg.Telemetry.Catalog != "" {
		c, err := store.OpenCatalog(cfg.Telemetry.Catalog)
		if err != nil {
			return err
		}
		defer c.Close()
		if _, err := c.RecordRun(r, dumpDir); err != nil {
			return fmt.Errorf("cataloging run: %w", err)
		}
	}
	if om != nil {
		slog.Info("outputs written", "dir", om.Dir())
	}
	return nil
}
