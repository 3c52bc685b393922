package meta

import (
	"encoding/json"
	"time"

	"fontguard/pkg/pipeline"
	"fontguard/pkg/woff2"

	"gorm.io/datatypes"
)

// 将流水线的结果"投影"到数据库模型

type detail struct {
	Flavor     string `json:"flavor,omitempty"`
	Got        string `json:"got,omitempty"`
	DurationMS int64  `json:"duration_ms,omitempty"`
	Error      string `json:"error,omitempty"`
}

func (d detail) encode() datatypes.JSON {
	data, err := json.Marshal(d)
	if err != nil {
		return nil
	}
	return datatypes.JSON(data)
}

func verdictDetail(v woff2.Verdict) detail {
	return detail{Flavor: string(v.Flavor), Got: v.GotHex()}
}

// RunFromSummary 转换一次 refresh 运行
func RunFromSummary(sum *pipeline.Summary) *Run {
	run := &Run{
		Command:    "refresh",
		StartedAt:  sum.StartedAt,
		FinishedAt: sum.FinishedAt,
		Succeeded:  sum.Succeeded,
		Failed:     sum.Failed,
	}
	if sum.Backup != nil {
		run.BackupLocation = sum.Backup.Location()
		run.BackupCount = sum.Backup.Len()
	}

	for _, res := range sum.Results {
		out := Outcome{
			File:      res.File,
			Family:    res.ID.Family,
			Weight:    res.ID.Weight,
			Stage:     string(res.Stage),
			Committed: res.OK(),
			Size:      res.Size,
		}
		d := detail{DurationMS: res.Duration.Milliseconds()}
		if res.Stage != pipeline.StageFetch {
			out.Verdict = res.Verdict.Kind.String()
			vd := verdictDetail(res.Verdict)
			d.Flavor, d.Got = vd.Flavor, vd.Got
		}
		if res.Err != nil {
			out.Diagnostic = res.Err.Error()
			d.Error = res.Err.Error()
		}
		out.Detail = d.encode()
		run.Outcomes = append(run.Outcomes, out)
	}
	return run
}

// RunFromVerify 转换一次 verify 运行
func RunFromVerify(report *pipeline.VerifyReport, started, finished time.Time) *Run {
	run := &Run{
		Command:    "verify",
		StartedAt:  started,
		FinishedAt: finished,
		Succeeded:  report.Valid,
		Failed:     report.Invalid,
	}
	for _, f := range report.Files {
		run.Outcomes = append(run.Outcomes, Outcome{
			File:       f.Name,
			Stage:      string(pipeline.StageValidate),
			Verdict:    f.Verdict.Kind.String(),
			Size:       int64(f.Verdict.Size),
			Diagnostic: f.Verdict.Diagnostic(),
			Detail:     verdictDetail(f.Verdict).encode(),
		})
	}
	return run
}

// RunFromRestore 转换一次 restore 运行
func RunFromRestore(report *pipeline.RestoreReport, started, finished time.Time) *Run {
	run := &Run{
		Command:    "restore",
		StartedAt:  started,
		FinishedAt: finished,
		Succeeded:  len(report.Restored),
		Failed:     len(report.Skipped),
	}
	if report.Backup != nil {
		run.BackupLocation = report.Backup.Location()
		run.BackupCount = report.Backup.Len()
	}
	for _, name := range report.Restored {
		out := Outcome{File: name, Stage: string(pipeline.StageCommitted), Verdict: woff2.Valid.String(), Committed: true}
		if e, ok := report.Backup.Entry(name); ok {
			out.Size = e.Size
		}
		run.Outcomes = append(run.Outcomes, out)
	}
	for _, skip := range report.Skipped {
		run.Outcomes = append(run.Outcomes, Outcome{
			File:       skip.Name,
			Stage:      string(pipeline.StageValidate),
			Diagnostic: skip.Err.Error(),
			Detail:     detail{Error: skip.Err.Error()}.encode(),
		})
	}
	return run
}
