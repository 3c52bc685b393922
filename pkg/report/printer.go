package report

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"fontguard/pkg/meta"
	"fontguard/pkg/pipeline"
	"fontguard/pkg/woff2"

	"github.com/dustin/go-humanize"
)

// PrintResult 打印单个资产的结局 (一行)
func PrintResult(w io.Writer, res pipeline.Result) {
	if res.OK() {
		fmt.Fprintf(w, "✅ %-28s %-22s %s, %s\n", res.File, res.ID, verdictLabel(res.Verdict), fmtSize(res.Size))
		return
	}
	switch res.Stage {
	case pipeline.StageFetch:
		fmt.Fprintf(w, "❌ %-28s %-22s fetch failed: %v\n", res.File, res.ID, res.Err)
	case pipeline.StageValidate:
		fmt.Fprintf(w, "❌ %-28s %-22s %s (%s received)\n", res.File, res.ID, res.Verdict.Diagnostic(), fmtSize(res.Size))
	default:
		fmt.Fprintf(w, "❌ %-28s %-22s %s failed: %v\n", res.File, res.ID, res.Stage, res.Err)
	}
}

// PrintSummary 打印最终统计，总是输出
func PrintSummary(w io.Writer, sum *pipeline.Summary) {
	fmt.Fprintln(w)
	if sum.Backup != nil {
		fmt.Fprintf(w, "📦 Backup: %d file(s) in %s\n", sum.Backup.Len(), sum.Backup.Location())
		for _, name := range sum.Backup.Skipped() {
			fmt.Fprintf(w, "⚠️  %s vanished during backup\n", name)
		}
	}
	fmt.Fprintf(w, "Summary: %d succeeded, %d failed (%s)\n",
		sum.Succeeded, sum.Failed, sum.FinishedAt.Sub(sum.StartedAt).Round(time.Millisecond))
}

// PrintVerify 以表格形式打印每个文件的校验结论
func PrintVerify(w io.Writer, r *pipeline.VerifyReport) {
	if r.Empty() {
		fmt.Fprintln(w, "❌ No font files found in store")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 3, ' ', 0)
	fmt.Fprintf(tw, "\tFILE\tSIZE\tVERDICT\n")
	for _, f := range r.Files {
		mark := "✅"
		if !f.Verdict.OK() {
			mark = "❌"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", mark, f.Name, fmtSize(int64(f.Verdict.Size)), f.Verdict.Diagnostic())
	}
	tw.Flush()
	fmt.Fprintf(w, "\nSummary: %d valid, %d invalid\n", r.Valid, r.Invalid)
}

// PrintRestore 打印回滚结果
func PrintRestore(w io.Writer, r *pipeline.RestoreReport) {
	fmt.Fprintf(w, "📦 Backup from %s (%s)\n",
		r.Backup.CreatedAt().Local().Format(time.RFC3339), humanize.Time(r.Backup.CreatedAt()))
	for _, name := range r.Restored {
		fmt.Fprintf(w, "✅ restored %s\n", name)
	}
	for _, s := range r.Skipped {
		fmt.Fprintf(w, "❌ skipped  %s: %v\n", s.Name, s.Err)
	}
	fmt.Fprintf(w, "\nSummary: %d restored, %d skipped\n", len(r.Restored), len(r.Skipped))
}

// Entry 是 list 命令的一行
type Entry struct {
	Name          string
	Size          int64
	LastCommitted time.Time // 零值表示没有历史
}

// PrintList 打印已提交的文件
func PrintList(w io.Writer, entries []Entry) {
	tw := tabwriter.NewWriter(w, 0, 0, 3, ' ', 0)
	fmt.Fprintf(tw, "FILE\tSIZE\tLAST COMMITTED\n")
	var total int64
	for _, e := range entries {
		when := "-"
		if !e.LastCommitted.IsZero() {
			when = humanize.Time(e.LastCommitted)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", e.Name, fmtSize(e.Size), when)
		total += e.Size
	}
	tw.Flush()
	fmt.Fprintf(w, "\n%d file(s), %s\n", len(entries), fmtSize(total))
}

// PrintRuns 打印运行历史；verbose 时附带每个文件的结局
func PrintRuns(w io.Writer, runs []meta.Run, verbose bool) {
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs recorded yet.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 3, ' ', 0)
	fmt.Fprintf(tw, "ID\tCOMMAND\tSTARTED\tOK\tFAILED\tBACKUP\n")
	for _, r := range runs {
		backup := "-"
		if r.BackupLocation != "" {
			backup = fmt.Sprintf("%d file(s)", r.BackupCount)
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%d\t%s\n",
			r.ID, r.Command, humanize.Time(r.StartedAt), r.Succeeded, r.Failed, backup)
		if verbose {
			for _, o := range r.Outcomes {
				mark := "✅"
				if !o.Committed && o.Verdict != woff2.Valid.String() {
					mark = "❌"
				}
				fmt.Fprintf(tw, "\t  %s %s\t%s\t%s\t%s\t\n", mark, o.File, o.Stage, o.Verdict, o.Diagnostic)
			}
		}
	}
	tw.Flush()
}

func verdictLabel(v woff2.Verdict) string {
	if v.Flavor != "" {
		return fmt.Sprintf("%s (%s)", v.Kind, v.Flavor)
	}
	return v.Kind.String()
}

// fmtSize 格式化文件大小 (201 kB)
func fmtSize(size int64) string {
	if size < 0 {
		size = 0
	}
	return humanize.Bytes(uint64(size))
}
