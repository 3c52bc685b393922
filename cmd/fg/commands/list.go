package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"fontguard/pkg/meta"
	"fontguard/pkg/report"

	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List the fonts committed in the store",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		var names []string
		for name, err := range FG.Store.List(ctx) {
			if err != nil {
				return fmt.Errorf("failed to list store: %w", err)
			}
			names = append(names, name)
		}
		if len(names) == 0 {
			fmt.Printf("No fonts in %s yet. Run 'fg refresh'.\n", FG.Store.Location())
			return nil
		}
		slices.SortFunc(names, strings.Compare)

		entries := make([]report.Entry, 0, len(names))
		for _, name := range names {
			e, err := describe(ctx, name)
			if err != nil {
				return err
			}
			entries = append(entries, e)
		}
		report.PrintList(os.Stdout, entries)
		return nil
	},
}

// describe 统计文件大小，并从历史中查最近一次提交时间
func describe(ctx context.Context, name string) (report.Entry, error) {
	e := report.Entry{Name: name}

	rc, err := FG.Store.Get(ctx, name)
	if err != nil {
		return e, fmt.Errorf("failed to read %s: %w", name, err)
	}
	e.Size, err = io.Copy(io.Discard, rc)
	rc.Close()
	if err != nil {
		return e, fmt.Errorf("failed to read %s: %w", name, err)
	}

	if FG.History != nil {
		out, err := FG.History.LastCommitted(ctx, name)
		switch {
		case err == nil:
			run, err := FG.History.GetRun(ctx, out.RunID)
			if err != nil {
				return e, err
			}
			e.LastCommitted = run.StartedAt
		case !errors.Is(err, meta.ErrNoHistory):
			return e, err
		}
	}
	return e, nil
}

func init() {
	rootCmd.AddCommand(listCmd)
}
