package ledger

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jgueth/campaign-automation/internal/report"
)

func openTemp(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "log", "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRecordStartAndFinish(t *testing.T) {
	s := openTemp(t)
	start := time.Date(2025, 11, 3, 10, 0, 0, 0, time.UTC)

	run := &Run{ID: "r1", Trigger: "cli", CampaignFile: "holiday_campaign.yaml", ContentHash: "abc", StartedAt: start}
	require.NoError(t, s.RecordStart(run))

	got, err := s.Get("r1")
	require.NoError(t, err)
	assert.Equal(t, StatusRunning, got.Status)
	assert.True(t, got.FinishedAt.IsZero())
	assert.True(t, start.Equal(got.StartedAt))

	run.CampaignID = "holiday_2025"
	run.Status = string(report.StatusPassedWithWarnings)
	run.ReportPath = "output/holiday_2025/campaign_report.json"
	run.Stages = []report.StageOutcome{{Stage: "upload", Status: report.StageWarning, Detail: "SlowDown"}}
	require.NoError(t, s.RecordFinish(run))

	got, err = s.Get("r1")
	require.NoError(t, err)
	assert.Equal(t, "holiday_2025", got.CampaignID)
	assert.Equal(t, "passed_with_warnings", got.Status)
	assert.Equal(t, run.Stages, got.Stages)
	assert.False(t, got.FinishedAt.IsZero())
}

func TestRecordFinishUnknownRun(t *testing.T) {
	err := openTemp(t).RecordFinish(&Run{ID: "missing", Status: "passed"})
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestGetUnknown(t *testing.T) {
	_, err := openTemp(t).Get("nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRecentNewestFirst(t *testing.T) {
	s := openTemp(t)
	base := time.Date(2025, 11, 3, 10, 0, 0, 0, time.UTC)
	for i, id := range []string{"a", "b", "c"} {
		require.NoError(t, s.RecordStart(&Run{ID: id, Trigger: "watcher", CampaignFile: id + ".yaml", StartedAt: base.Add(time.Duration(i) * time.Minute)}))
	}

	runs, err := s.Recent(2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "c", runs[0].ID)
	assert.Equal(t, "b", runs[1].ID)

	empty, err := openTemp(t).Recent(10)
	require.NoError(t, err)
	assert.Empty(t, empty)
	assert.NotNil(t, empty)
}

func TestHasProcessed(t *testing.T) {
	s := openTemp(t)
	ok, err := s.HasProcessed("/in/a.yaml")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.RecordStart(&Run{ID: "r1", Trigger: "watcher", CampaignFile: "/in/a.yaml", ContentHash: "h1"}))
	ok, err = s.HasProcessed("/in/a.yaml")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.HasProcessed("/in/b.yaml")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMarkInterrupted(t *testing.T) {
	s := openTemp(t)
	require.NoError(t, s.RecordStart(&Run{ID: "r1", Trigger: "cli", CampaignFile: "a.yaml"}))

	n, err := s.MarkInterrupted()
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := s.Get("r1")
	require.NoError(t, err)
	assert.Equal(t, "failed", got.Status)
	assert.Equal(t, "interrupted", got.Error)
}

func TestReopenKeepsHistory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs.db")
	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.RecordStart(&Run{ID: "r1", Trigger: "cli", CampaignFile: "a.yaml"}))
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()
	_, err = s.Get("r1")
	assert.NoError(t, err)
}
