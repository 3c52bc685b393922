package commands

import (
	"fmt"
	"os"
	"strconv"

	"fontguard/pkg/meta"
	"fontguard/pkg/report"

	"github.com/spf13/cobra"
)

var (
	historyLimit   int
	historyVerbose bool
)

var historyCmd = &cobra.Command{
	Use:   "history [run-id]",
	Short: "Show recent refresh, verify and restore runs",
	Args:  cobra.MaximumNArgs(1), // 0 或 1 个参数
	RunE: func(cmd *cobra.Command, args []string) error {
		if FG.History == nil {
			return fmt.Errorf("run history is disabled (meta.driver = %s)", meta.DriverNone)
		}
		ctx := cmd.Context()

		// 指定了 run-id：只显示这一次，并带上每个文件的结局
		if len(args) == 1 {
			id, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid run id %q", args[0])
			}
			run, err := FG.History.GetRun(ctx, uint(id))
			if err != nil {
				return err
			}
			report.PrintRuns(os.Stdout, []meta.Run{*run}, true)
			return nil
		}

		runs, err := FG.History.RecentRuns(ctx, historyLimit)
		if err != nil {
			return fmt.Errorf("failed to read history: %w", err)
		}
		report.PrintRuns(os.Stdout, runs, historyVerbose)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(historyCmd)

	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 10, "number of runs to show")
	historyCmd.Flags().BoolVarP(&historyVerbose, "verbose", "v", false, "show per-file outcomes")
}
