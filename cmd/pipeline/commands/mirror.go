package commands

import (
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"example.com/endurance/internal/mirror"
	"example.com/endurance/internal/persistence/postgres"
)

var mirrorCmd = &cobra.Command{
	Use:   "mirror",
	Short: "Re-publishes the activity, metadata and master tables to the Postgres document mirror.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		pool, err := pgxpool.New(ctx, cfg.PostgresURL)
		if err != nil {
			return fmt.Errorf("connect to postgres: %w", err)
		}
		defer pool.Close()

		repo := postgres.NewRepository(pool)
		if err := repo.EnsureSchema(ctx); err != nil {
			return err
		}

		counts, err := mirror.New(newStore(), repo, mirror.WithLogger(logger.With("component", "mirror"))).Refresh(ctx)
		t := newTable(cmd.OutOrStdout())
		t.AppendHeader(table.Row{"Collection", "Documents"})
		for _, name := range []string{postgres.CollectionMetadata, postgres.CollectionMaster, postgres.CollectionActivities} {
			if n, ok := counts[name]; ok {
				t.AppendRow(table.Row{name, n})
			}
		}
		t.Render()
		pushMetrics(ctx, "endurance_mirror")
		return err
	},
}

func init() {
	rootCmd.AddCommand(mirrorCmd)
}
