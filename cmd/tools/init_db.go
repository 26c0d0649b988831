package main

import (
	"context"
	"fmt"
	"io"

	"github.com/lychee-technology/dataeditor"
	"github.com/lychee-technology/dataeditor/factory"
	"github.com/lychee-technology/dataeditor/internal"
	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "init-db",
		Short: "Create the records table of the postgres or sql backend",
		RunE: func(cmd *cobra.Command, args []string) error {
			config, err := loadConfig()
			if err != nil {
				return err
			}
			backend, _ := cmd.Flags().GetString("backend")
			return runInitDB(cmd.Context(), cmd.OutOrStdout(), config, dataeditor.AdapterKind(backend))
		},
	}
	cmd.Flags().StringP("backend", "b", "postgres", "Backend to initialise: postgres or sql")
	RootCmd.AddCommand(cmd)
}

func runInitDB(ctx context.Context, out io.Writer, config *dataeditor.Config, backend dataeditor.AdapterKind) error {
	switch backend {
	case dataeditor.AdapterPostgres:
		cfg := config.Storage.Postgres
		pool, err := factory.NewPostgresPool(ctx, cfg, cfg.Password)
		if err != nil {
			return err
		}
		defer pool.Close()
		if err := internal.EnsurePostgresTable(ctx, pool, cfg.Table); err != nil {
			return err
		}
		fmt.Fprintf(out, "table %s ready on %s:%d/%s\n", cfg.Table, cfg.Host, cfg.Port, cfg.Database)

	case dataeditor.AdapterSQL:
		cfg := config.Storage.SQL
		db, _, err := factory.OpenSQL(ctx, cfg)
		if err != nil {
			return err
		}
		defer db.Close()
		fmt.Fprintf(out, "table %s ready on %s\n", cfg.Table, cfg.Driver)

	default:
		return fmt.Errorf("init-db supports postgres and sql, got %q", backend)
	}
	return nil
}
