package meta

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"fontguard/pkg/pipeline"
	"fontguard/pkg/storage"
	"fontguard/pkg/types"
	"fontguard/pkg/woff2"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// -----------------------------------------------------------------------------
// 测试用例
// -----------------------------------------------------------------------------

func TestRepository_RecordAndList(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	mustRecordRun(t, repo, &Run{Command: "refresh", StartedAt: at(1), Succeeded: 1,
		Outcomes: []Outcome{{File: "roboto.woff2", Committed: true, Size: 100}}})
	mustRecordRun(t, repo, &Run{Command: "verify", StartedAt: at(3), Failed: 1,
		Outcomes: []Outcome{{File: "roboto.woff2", Verdict: "BadMagic"}}})
	mustRecordRun(t, repo, &Run{Command: "refresh", StartedAt: at(2)})

	runs, err := repo.RecentRuns(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)

	// 最新的在前 (ORDER BY started_at DESC)
	assert.Equal(t, "verify", runs[0].Command)
	assert.Equal(t, at(2).Unix(), runs[1].StartedAt.Unix())

	// Outcome 被预加载
	require.Len(t, runs[0].Outcomes, 1)
	assert.Equal(t, "BadMagic", runs[0].Outcomes[0].Verdict)
	assert.Empty(t, runs[1].Outcomes)
}

func TestRepository_LastCommitted(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	// 1. 没有历史
	_, err := repo.LastCommitted(ctx, "roboto.woff2")
	assert.ErrorIs(t, err, ErrNoHistory)

	// 2. 两次提交 + 一次失败，失败的那次更新
	mustRecordRun(t, repo, &Run{Command: "refresh", StartedAt: at(1),
		Outcomes: []Outcome{{File: "roboto.woff2", Committed: true, Size: 100}}})
	mustRecordRun(t, repo, &Run{Command: "refresh", StartedAt: at(2),
		Outcomes: []Outcome{{File: "roboto.woff2", Committed: true, Size: 200}}})
	mustRecordRun(t, repo, &Run{Command: "refresh", StartedAt: at(3),
		Outcomes: []Outcome{{File: "roboto.woff2", Committed: false, Verdict: "TooSmall"}}})

	got, err := repo.LastCommitted(ctx, "roboto.woff2")
	require.NoError(t, err)
	assert.Equal(t, int64(200), got.Size, "failed attempts are not commits")

	run, err := repo.GetRun(ctx, got.RunID)
	require.NoError(t, err)
	assert.Equal(t, at(2).Unix(), run.StartedAt.Unix())
	require.Len(t, run.Outcomes, 1)

	_, err = repo.GetRun(ctx, 999)
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestRunFromSummary(t *testing.T) {
	roboto := types.AssetID{Family: "Roboto", Weight: "400", File: "roboto.woff2"}
	slab := types.AssetID{Family: "Roboto Slab", Weight: "700"}
	font := append([]byte("wOF2OTTO"), bytes.Repeat([]byte{1}, 56)...)

	sum := &pipeline.Summary{
		Results: []pipeline.Result{
			{ID: roboto, File: roboto.FileName(), Stage: pipeline.StageCommitted, Verdict: woff2.Validate(font),
				Size: 64, Duration: 1500 * time.Millisecond},
			{ID: slab, File: slab.FileName(), Stage: pipeline.StageValidate, Verdict: woff2.Validate(make([]byte, 64)),
				Size: 64, Err: errors.New("bad magic")},
		},
		Succeeded:  1,
		Failed:     1,
		Backup:     storage.NewBackupSet(filepath.Join("public", "fonts-backup"), at(0), nil, nil),
		StartedAt:  at(0),
		FinishedAt: at(5),
	}

	run := RunFromSummary(sum)
	assert.Equal(t, "refresh", run.Command)
	assert.Equal(t, 1, run.Succeeded)
	assert.Equal(t, filepath.Join("public", "fonts-backup"), run.BackupLocation)
	require.Len(t, run.Outcomes, 2)

	ok := run.Outcomes[0]
	assert.True(t, ok.Committed)
	assert.Equal(t, "Valid", ok.Verdict)
	assert.JSONEq(t, `{"flavor":"CFF","duration_ms":1500}`, string(ok.Detail))

	bad := run.Outcomes[1]
	assert.False(t, bad.Committed)
	assert.Equal(t, "BadMagic", bad.Verdict)
	assert.Equal(t, "roboto-slab-700.woff2", bad.File)
	assert.JSONEq(t, `{"got":"00 00 00 00","error":"bad magic"}`, string(bad.Detail))

	// 写入并读回
	repo := setupTestRepo(t)
	mustRecordRun(t, repo, run)
	runs, err := repo.RecentRuns(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Len(t, runs[0].Outcomes, 2)
}

func TestRunFromVerify(t *testing.T) {
	report := &pipeline.VerifyReport{
		Files: []pipeline.FileVerdict{
			{Name: "a.woff2", Verdict: woff2.Validate(make([]byte, 10))},
		},
		Invalid: 1,
	}
	run := RunFromVerify(report, at(0), at(1))
	assert.Equal(t, "verify", run.Command)
	assert.Equal(t, 1, run.Failed)
	require.Len(t, run.Outcomes, 1)
	assert.Equal(t, "TooSmall", run.Outcomes[0].Verdict)
	assert.Equal(t, int64(10), run.Outcomes[0].Size)
}

func TestNewDB_SQLiteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "history.db")
	db, err := NewDB(context.Background(), Config{Driver: DriverSQLite, DSN: path})
	require.NoError(t, err)
	defer db.Close()

	repo := NewRepository(db)
	mustRecordRun(t, repo, &Run{Command: "refresh", StartedAt: at(0)})
	runs, err := repo.RecentRuns(context.Background(), 1)
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

func TestNewDB_UnsupportedDriver(t *testing.T) {
	_, err := NewDB(context.Background(), Config{Driver: "mysql", DSN: "x"})
	assert.ErrorContains(t, err, "unsupported meta driver")
}
