package commands

import (
	"fmt"
	"os"
	"time"

	"fontguard/pkg/meta"
	"fontguard/pkg/pipeline"
	"fontguard/pkg/report"

	"github.com/spf13/cobra"
)

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Validate every font currently in the store",
	Long: `Check the header of every committed font file without downloading anything.
Exit code is non-zero if any file is invalid or the store is empty.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		started := time.Now()

		fmt.Printf("🔍 Verifying fonts in %s\n\n", FG.Store.Location())
		rep, err := pipeline.Verify(ctx, FG.Store)
		if err != nil {
			return err
		}
		report.PrintVerify(os.Stdout, rep)
		FG.Record(ctx, meta.RunFromVerify(rep, started, time.Now()))

		switch {
		case rep.Empty():
			return fmt.Errorf("store %s is empty", FG.Store.Location())
		case !rep.OK():
			return fmt.Errorf("%d invalid font file(s)", rep.Invalid)
		}
		fmt.Println("\n✅ All font files are valid")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(verifyCmd)
}
