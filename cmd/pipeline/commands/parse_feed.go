package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"example.com/endurance/internal/feed"
	"example.com/endurance/internal/persistence/csvstore"
)

var parseFeedOpts struct {
	feed string
	out  string
}

var parseFeedCmd = &cobra.Command{
	Use:   "parse-feed --feed <snapshots.csv> [--out <batch.csv>]",
	Short: "Decodes saved profile-feed snapshots into a raw activity batch without touching the store.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		table, err := csvstore.ReadTable(parseFeedOpts.feed)
		if err != nil {
			return fmt.Errorf("read feed snapshots: %w", err)
		}
		batch, stats, err := feed.New(feed.WithLogger(logger.With("component", "feed"))).DecodeTable(table)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if parseFeedOpts.out != "" {
			f, err := os.Create(parseFeedOpts.out)
			if err != nil {
				return err
			}
			defer f.Close()
			out = f
		}
		if err := csvstore.WriteTable(out, csvstore.TableFromRawBatch(batch)); err != nil {
			return fmt.Errorf("write batch: %w", err)
		}
		logger.Info("feed parsed", "snapshots", stats.Snapshots, "skipped", stats.Skipped, "activities", stats.Rows)
		return nil
	},
}

func init() {
	parseFeedCmd.Flags().StringVar(&parseFeedOpts.feed, "feed", "", "Saved profile-feed snapshot table as CSV.")
	parseFeedCmd.Flags().StringVar(&parseFeedOpts.out, "out", "", "Output CSV path; stdout when empty.")
	_ = parseFeedCmd.MarkFlagRequired("feed")
	rootCmd.AddCommand(parseFeedCmd)
}
