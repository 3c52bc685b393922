package commands

import (
	"fmt"
	"os"

	"fontguard/pkg/catalog"
	"fontguard/pkg/meta"
	"fontguard/pkg/pipeline"
	"fontguard/pkg/report"

	"github.com/spf13/cobra"
)

var refreshCmd = &cobra.Command{
	Use:   "refresh [font...]",
	Short: "Download, validate and commit fonts",
	Long: `Back up the current store, then download every font in the catalog (or only the
selected ones), validate each file and commit the valid ones atomically.

Fonts can be selected by family ("Roboto Slab"), family and weight ("Roboto:400")
or file name ("roboto.woff2").

Exit code is 0 only if every requested font was validated and committed.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		ids, err := catalog.Select(FG.Catalog, args)
		if err != nil {
			return err
		}

		fmt.Printf("🔤 Refreshing %d font(s) into %s\n\n", len(ids), FG.Store.Location())
		sum, err := FG.Refresher(func(res pipeline.Result) {
			report.PrintResult(os.Stdout, res)
		}).Run(ctx, ids)
		if err != nil {
			// 准备或备份失败：没有任何写入发生
			return err
		}

		report.PrintSummary(os.Stdout, sum)
		FG.Record(ctx, meta.RunFromSummary(sum))

		if !sum.OK() {
			return fmt.Errorf("%d of %d font(s) not committed", sum.Failed, len(ids))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(refreshCmd)

	refreshCmd.Flags().Int("workers", 0, "parallel downloads (default from fetch.workers)")
	refreshCmd.Flags().Duration("timeout", 0, "per-font download timeout (default from fetch.timeout)")
	refreshCmd.Flags().Int("retries", 0, "retries per font on transient errors (default from fetch.retries)")
	mustBind("fetch.workers", refreshCmd.Flags().Lookup("workers"))
	mustBind("fetch.timeout", refreshCmd.Flags().Lookup("timeout"))
	mustBind("fetch.retries", refreshCmd.Flags().Lookup("retries"))
}
