package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"example.com/endurance/internal/domain"
	"example.com/endurance/internal/feed"
	"example.com/endurance/internal/persistence/csvstore"
	"example.com/endurance/internal/pipeline"
)

var ingestOpts struct {
	raw       string
	feed      string
	startWeek int
	endWeek   int
	athletes  []int64
}

var ingestCmd = &cobra.Command{
	Use:   "ingest (--raw <batch.csv> | --feed <snapshots.csv>) --start-week N --end-week M",
	Short: "Cleans a scraped batch, appends new activities and refreshes athlete metrics and counters.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		batch, err := loadBatch(ingestOpts.raw, ingestOpts.feed)
		if err != nil {
			return err
		}

		return withRunLock(func() error {
			p, closePublisher := newPipeline()
			defer closePublisher()

			req := pipeline.Request{
				StartWeek:  ingestOpts.startWeek,
				EndWeek:    ingestOpts.endWeek,
				AthleteIDs: ingestOpts.athletes,
			}
			report, runErr := p.Ingest(cmd.Context(), req, batch)
			renderReport(cmd.OutOrStdout(), report)
			pushMetrics(cmd.Context(), "endurance_ingest")
			return runErr
		})
	},
}

func init() {
	f := ingestCmd.Flags()
	f.StringVar(&ingestOpts.raw, "raw", "", "Scraped activity batch as CSV.")
	f.StringVar(&ingestOpts.feed, "feed", "", "Saved profile-feed snapshot table as CSV.")
	f.IntVar(&ingestOpts.startWeek, "start-week", 0, "First week covered by the scrape.")
	f.IntVar(&ingestOpts.endWeek, "end-week", 0, "Last week covered by the scrape; also the weekly-average divisor.")
	f.Int64SliceVar(&ingestOpts.athletes, "athlete", nil, "Restrict aggregation to these athlete IDs (repeatable).")
	_ = ingestCmd.MarkFlagRequired("start-week")
	_ = ingestCmd.MarkFlagRequired("end-week")
	ingestCmd.MarkFlagsMutuallyExclusive("raw", "feed")
	ingestCmd.MarkFlagsOneRequired("raw", "feed")
	rootCmd.AddCommand(ingestCmd)
}

func loadBatch(rawPath, feedPath string) (domain.RawBatch, error) {
	switch {
	case rawPath != "" && feedPath != "":
		return domain.RawBatch{}, errors.New("--raw and --feed are mutually exclusive")
	case rawPath != "":
		batch, err := csvstore.ReadRawBatch(rawPath)
		if err != nil {
			return domain.RawBatch{}, fmt.Errorf("read raw batch: %w", err)
		}
		return batch, nil
	case feedPath != "":
		table, err := csvstore.ReadTable(feedPath)
		if err != nil {
			return domain.RawBatch{}, fmt.Errorf("read feed snapshots: %w", err)
		}
		batch, _, err := feed.New(feed.WithLogger(logger.With("component", "feed"))).DecodeTable(table)
		return batch, err
	default:
		return domain.RawBatch{}, errors.New("one of --raw or --feed is required")
	}
}
