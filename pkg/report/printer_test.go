package report

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"fontguard/pkg/meta"
	"fontguard/pkg/pipeline"
	"fontguard/pkg/storage"
	"fontguard/pkg/types"
	"fontguard/pkg/woff2"

	"github.com/stretchr/testify/assert"
)

var roboto = types.AssetID{Family: "Roboto", Weight: "400", File: "roboto.woff2"}

func validFont(size int) []byte {
	data := make([]byte, size)
	copy(data, "wOF2OTTO")
	return data
}

func TestPrintResult(t *testing.T) {
	tests := []struct {
		name string
		res  pipeline.Result
		want []string
	}{
		{
			name: "committed",
			res: pipeline.Result{ID: roboto, File: "roboto.woff2", Stage: pipeline.StageCommitted,
				Verdict: woff2.Validate(validFont(2000)), Size: 2000},
			want: []string{"✅", "roboto.woff2", "Valid (CFF)", "2.0 kB"},
		},
		{
			name: "fetch failure",
			res: pipeline.Result{ID: roboto, File: "roboto.woff2", Stage: pipeline.StageFetch,
				Err: errors.New("HTTP 404")},
			want: []string{"❌", "fetch failed: HTTP 404"},
		},
		{
			name: "bad magic",
			res: pipeline.Result{ID: roboto, File: "roboto.woff2", Stage: pipeline.StageValidate,
				Verdict: woff2.Validate(make([]byte, 100)), Size: 100},
			want: []string{"❌", "Invalid magic number: 00 00 00 00", "100 B"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			PrintResult(&buf, tt.res)
			for _, w := range tt.want {
				assert.Contains(t, buf.String(), w)
			}
		})
	}
}

func TestPrintSummary(t *testing.T) {
	var buf bytes.Buffer
	start := time.Now()
	PrintSummary(&buf, &pipeline.Summary{
		Succeeded:  1,
		Backup:     storage.NewBackupSet("public/fonts-backup", start, nil, []string{"gone.woff2"}),
		StartedAt:  start,
		FinishedAt: start.Add(time.Second),
	})
	out := buf.String()
	assert.Contains(t, out, "1 succeeded, 0 failed")
	assert.Contains(t, out, "public/fonts-backup")
	assert.Contains(t, out, "gone.woff2 vanished")
}

func TestPrintVerify(t *testing.T) {
	var buf bytes.Buffer
	PrintVerify(&buf, &pipeline.VerifyReport{
		Files: []pipeline.FileVerdict{
			{Name: "a.woff2", Verdict: woff2.Validate(validFont(64))},
			{Name: "b.woff2", Verdict: woff2.Validate([]byte("tiny"))},
		},
		Valid: 1, Invalid: 1,
	})
	out := buf.String()
	assert.Contains(t, out, "a.woff2")
	assert.Contains(t, out, "File too small: 4 bytes")
	assert.Contains(t, out, "1 valid, 1 invalid")

	buf.Reset()
	PrintVerify(&buf, &pipeline.VerifyReport{})
	assert.Contains(t, buf.String(), "No font files found")
}

func TestPrintList(t *testing.T) {
	var buf bytes.Buffer
	PrintList(&buf, []Entry{
		{Name: "roboto.woff2", Size: 1500, LastCommitted: time.Now().Add(-2 * time.Hour)},
		{Name: "inter.woff2", Size: 500},
	})
	out := buf.String()
	assert.Contains(t, out, "2 hours ago")
	assert.Contains(t, out, "2 file(s), 2.0 kB")
}

func TestPrintRuns(t *testing.T) {
	var buf bytes.Buffer
	PrintRuns(&buf, nil, false)
	assert.Contains(t, buf.String(), "No runs recorded")

	buf.Reset()
	PrintRuns(&buf, []meta.Run{{
		ID: 7, Command: "refresh", StartedAt: time.Now(), Succeeded: 1, Failed: 1,
		BackupLocation: "x", BackupCount: 3,
		Outcomes: []meta.Outcome{
			{File: "roboto.woff2", Stage: "committed", Verdict: "Valid", Committed: true},
			{File: "bad.woff2", Stage: "validate", Verdict: "BadMagic", Diagnostic: "Invalid magic number"},
		},
	}}, true)
	out := buf.String()
	assert.Contains(t, out, "refresh")
	assert.Contains(t, out, "3 file(s)")
	assert.Contains(t, out, "❌ bad.woff2")
	assert.Contains(t, out, "✅ roboto.woff2")
}
