package commands

import (
	"github.com/spf13/cobra"
)

var recalcOpts struct {
	startWeek int
	endWeek   int
	athletes  []int64
}

var recalculateCmd = &cobra.Command{
	Use:   "recalculate --athlete ID [--athlete ID...] --start-week N --end-week M",
	Short: "Recomputes metrics from the stored activities and advances the athletes' counters.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRunLock(func() error {
			p, closePublisher := newPipeline()
			defer closePublisher()

			report, runErr := p.Recalculate(cmd.Context(), recalcOpts.athletes, recalcOpts.startWeek, recalcOpts.endWeek)
			renderReport(cmd.OutOrStdout(), report)
			pushMetrics(cmd.Context(), "endurance_recalculate")
			return runErr
		})
	},
}

func init() {
	f := recalculateCmd.Flags()
	f.Int64SliceVar(&recalcOpts.athletes, "athlete", nil, "Athlete IDs to recalculate (repeatable).")
	f.IntVar(&recalcOpts.startWeek, "start-week", 0, "First week of the range.")
	f.IntVar(&recalcOpts.endWeek, "end-week", 0, "Last week of the range; also the weekly-average divisor.")
	_ = recalculateCmd.MarkFlagRequired("athlete")
	_ = recalculateCmd.MarkFlagRequired("start-week")
	_ = recalculateCmd.MarkFlagRequired("end-week")
	rootCmd.AddCommand(recalculateCmd)
}
