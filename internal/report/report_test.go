package report

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jgueth/campaign-automation/internal/campaign"
	"github.com/jgueth/campaign-automation/internal/campaign/campaigntest"
	"github.com/jgueth/campaign-automation/internal/compliance"
	"github.com/jgueth/campaign-automation/internal/layout"
)

func allPaths(p *layout.Plan) []string {
	out := make([]string, 0, len(p.Paths))
	for _, o := range p.Paths {
		out = append(out, o.Path)
	}
	return out
}

func completeInput(t *testing.T) Input {
	c := campaigntest.Sample(t)
	plan := layout.Build(c, "output")
	return Input{
		RunID:        "run-1",
		CampaignFile: "input/campaigns/holiday_campaign.yaml",
		Campaign:     c,
		Validation:   campaign.Result{Valid: true, Errors: []string{}},
		Plan:         plan,
		Produced:     allPaths(plan),
		Stages:       []StageOutcome{{Stage: "generate_base_images", Status: StageOK}},
		StartedAt:    time.Date(2025, 11, 3, 10, 0, 0, 0, time.UTC),
		FinishedAt:   time.Date(2025, 11, 3, 10, 4, 0, 0, time.UTC),
	}
}

func TestBuild_Passed(t *testing.T) {
	in := completeInput(t)
	in.Compliance = []compliance.Verdict{{ProductID: "serum", Ratio: "1x1", MarketID: "de", Status: compliance.StatusPassed, Confidence: 0.9}}

	r := Build(in)
	assert.Equal(t, StatusPassed, r.Status)
	assert.Equal(t, Counts{
		Products: 2, Markets: 3, AspectRatios: 2,
		BasePlanned: 4, BaseProduced: 4, LocalizedPlanned: 12, LocalizedProduced: 12,
		BaseSuccessRate: 100, LocalizedSuccessRate: 100,
	}, r.Counts)
	assert.Equal(t, "holiday_2025", r.Campaign.ID)
	assert.Equal(t, []string{"logo_presence"}, r.Compliance.Automated)
	assert.Equal(t, []string{"legal_disclaimer"}, r.Compliance.Manual)
	assert.Equal(t, 1, r.Compliance.Summary.Passed)
	assert.Empty(t, r.Missing.Base)
}

func TestBuild_MissingOutputsCapped(t *testing.T) {
	in := completeInput(t)
	in.Produced = allPaths(in.Plan)[:2] // first base and its first localized

	r := Build(in)
	assert.Equal(t, StatusPassedWithWarnings, r.Status)
	assert.Equal(t, 1, r.Counts.BaseProduced)
	assert.Equal(t, 1, r.Counts.LocalizedProduced)
	assert.InDelta(t, 25.0, r.Counts.BaseSuccessRate, 0.001)

	assert.Len(t, r.Missing.Base, 3)
	assert.Zero(t, r.Missing.BaseOmitted)
	assert.Len(t, r.Missing.Localized, MaxMissingListed)
	assert.Equal(t, 1, r.Missing.LocalizedOmitted)
	assert.Equal(t, "holiday_2025/serum/1x1/fr/holiday_2025_serum_fr_1x1.png", r.Missing.Localized[0])
}

func TestBuild_SyncNoteIsWarning(t *testing.T) {
	in := completeInput(t)
	in.SyncNotes = []string{"upload failed: SlowDown"}
	assert.Equal(t, StatusPassedWithWarnings, Build(in).Status)
}

func TestBuild_ComplianceFailureIsWarning(t *testing.T) {
	in := completeInput(t)
	in.Compliance = []compliance.Verdict{{Status: compliance.StatusFailed}}
	assert.Equal(t, StatusPassedWithWarnings, Build(in).Status)
}

func TestBuild_PartialReport(t *testing.T) {
	r := Build(Input{
		RunID:       "run-2",
		Validation:  campaign.Result{Valid: false, Errors: []string{"Missing required field: campaign.message.cta"}},
		FailedStage: "validate_structure",
		Err:         errors.New("campaign is invalid"),
	})

	assert.Equal(t, StatusFailed, r.Status)
	assert.Nil(t, r.Campaign)
	assert.Equal(t, "campaign is invalid", r.Error)
	assert.NotNil(t, r.Stages)
	assert.Zero(t, r.Counts.TotalPlanned())

	md := Render(r)
	assert.Contains(t, md, "Run halted at stage `validate_structure`")
	assert.Contains(t, md, "- Missing required field: campaign.message.cta")
	assert.NotContains(t, md, "## Campaign Overview")
}

func TestRender(t *testing.T) {
	in := completeInput(t)
	in.SyncNotes = []string{"download skipped"}
	md := Render(Build(in))

	for _, want := range []string{
		"# Campaign Creative Generation Report",
		"- **Markets:** 3 (de, fr, uk)",
		"| Localized | 12 | 12 | 100.0% |",
		"- [OK] **generate_base_images**",
		"- [ ] legal_disclaimer",
		"## Cloud Sync",
	} {
		assert.Contains(t, md, want)
	}
}

func TestWriteLoadLatest(t *testing.T) {
	out := t.TempDir()
	_, err := Latest(out)
	assert.ErrorIs(t, err, ErrNoReport)

	r := Build(completeInput(t))
	older, err := Write(r, filepath.Join(out, "older"))
	require.NoError(t, err)
	newer, err := Write(r, filepath.Join(out, "holiday_2025"))
	require.NoError(t, err)

	past := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(older, past, past))

	assert.FileExists(t, filepath.Join(out, "holiday_2025", MarkdownFile))

	latest, err := Latest(out)
	require.NoError(t, err)
	assert.Equal(t, newer, latest)

	loaded, err := Load(latest)
	require.NoError(t, err)
	if diff := cmp.Diff(r.Counts, loaded.Counts); diff != "" {
		t.Errorf("counts (-want +got):\n%s", diff)
	}
	assert.Equal(t, r.Status, loaded.Status)
}

func TestRenderTerminal(t *testing.T) {
	out := RenderTerminal("# Title\n\nbody text", 60)
	assert.True(t, strings.Contains(out, "Title"))
}
