package commands

import (
	"errors"
	"fmt"
	"os"
	"time"

	"fontguard/pkg/meta"
	"fontguard/pkg/pipeline"
	"fontguard/pkg/report"
	"fontguard/pkg/storage"

	"github.com/spf13/cobra"
)

var restoreCmd = &cobra.Command{
	Use:   "restore",
	Short: "Roll the store back to the last backup",
	Long: `Write every file of the last backup back into the store. Each file is checked
against the backup manifest and validated before it is committed.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		started := time.Now()

		rep, err := pipeline.Restore(ctx, FG.Store)
		if errors.Is(err, storage.ErrNoBackup) {
			return fmt.Errorf("nothing to restore: no backup for %s", FG.Store.Location())
		}
		if err != nil {
			return err
		}

		report.PrintRestore(os.Stdout, rep)
		FG.Record(ctx, meta.RunFromRestore(rep, started, time.Now()))

		if !rep.OK() {
			return fmt.Errorf("%d backup file(s) not restored", len(rep.Skipped))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(restoreCmd)
}
