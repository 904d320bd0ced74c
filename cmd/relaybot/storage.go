package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/m3rciful/relaybot/bot/config"
	"github.com/m3rciful/relaybot/bot/report"
	"github.com/m3rciful/relaybot/bot/store"
	"github.com/m3rciful/relaybot/core/bootstrap"
	coredatabase "github.com/m3rciful/relaybot/core/database"
	"github.com/m3rciful/relaybot/core/logger"
	"github.com/m3rciful/relaybot/migrations"
)

func newMigrateCmd(path func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadStorage(path())
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if err := logger.InitLogger(cfg.CoreConfig()); err != nil {
				return err
			}
			defer logger.Shutdown()

			if cfg.Database.Driver == coredatabase.DriverSQLite {
				if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
					return fmt.Errorf("create data dir: %w", err)
				}
			}
			if err := coredatabase.RunMigrations(cfg.Database, migrations.FS); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "migrations applied (%s)\n", cfg.Database.Driver)
			return nil
		},
	}
}

func newReportCmd(path func() string) *cobra.Command {
	var outDir string

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Write the feedback report as XLSX and CSV files",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReport(cmd, path(), outDir)
		},
	}
	cmd.Flags().StringVarP(&outDir, "out", "o", ".", "directory the report files are written to")
	return cmd
}

func runReport(cmd *cobra.Command, configPath, outDir string) error {
	cfg, err := config.LoadStorage(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	res, err := bootstrap.Run(bootstrap.Options{
		Config:     cfg.CoreConfig(),
		Database:   cfg.Database,
		Migrations: migrations.FS,
	})
	if err != nil {
		return err
	}
	defer res.DB.Close()
	defer logger.Shutdown()

	rep, err := report.New(store.New(res.DB)).Generate(cmd.Context())
	if err != nil {
		return err
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", outDir, err)
	}
	out := cmd.OutOrStdout()
	for _, doc := range rep.Documents("", "") {
		p := filepath.Join(outDir, doc.Name)
		if err := os.WriteFile(p, doc.Content, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", p, err)
		}
		fmt.Fprintln(out, p)
	}
	fmt.Fprintf(out, "%d feedback rows\n", rep.Rows)
	return nil
}
