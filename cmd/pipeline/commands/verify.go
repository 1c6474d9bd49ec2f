package commands

import (
	"github.com/spf13/cobra"
)

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Checks that every athlete's weeks-scraped counters agree across both metadata tables.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		p, closePublisher := newPipeline()
		defer closePublisher()

		report, err := p.Verify(cmd.Context())
		renderDivergences(cmd.OutOrStdout(), report.Divergences)
		pushMetrics(cmd.Context(), "endurance_verify")
		return err
	},
}

func init() {
	rootCmd.AddCommand(verifyCmd)
}
