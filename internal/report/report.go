// Package report aggregates the artifacts of one pipeline run into a
// structured document. It never re-validates input or re-scans the disk.
package report

import (
	"path/filepath"
	"time"

	"github.com/jgueth/campaign-automation/internal/assets"
	"github.com/jgueth/campaign-automation/internal/campaign"
	"github.com/jgueth/campaign-automation/internal/compliance"
	"github.com/jgueth/campaign-automation/internal/layout"
)

// MaxMissingListed caps how many missing outputs are listed per kind.
const MaxMissingListed = 10

// Status is the overall outcome of a run.
type Status string

const (
	StatusPassed             Status = "passed"
	StatusPassedWithWarnings Status = "passed_with_warnings"
	StatusFailed             Status = "failed"
)

// StageStatus is the outcome of one stage.
type StageStatus string

const (
	StageOK      StageStatus = "ok"
	StageFailed  StageStatus = "failed"
	StageWarning StageStatus = "warning"
	StageSkipped StageStatus = "skipped"
)

// StageOutcome records how one stage ended.
type StageOutcome struct {
	Stage      string      `json:"stage"`
	Status     StageStatus `json:"status"`
	DurationMS int64       `json:"duration_ms"`
	Detail     string      `json:"detail,omitempty"`
}

// Input is everything earlier stages produced. Any pointer may be nil when
// the run halted before the stage that fills it.
type Input struct {
	RunID        string
	CampaignFile string
	Campaign     *campaign.Campaign
	Validation   campaign.Result
	Assets       *assets.Summary
	Plan         *layout.Plan
	// Produced holds the paths of images that were actually written.
	Produced   []string
	Compliance []compliance.Verdict
	Stages     []StageOutcome
	SyncNotes  []string

	FailedStage string
	Err         error

	StartedAt  time.Time
	FinishedAt time.Time
}

// Report is the structured run summary written as campaign_report.json.
type Report struct {
	RunID        string    `json:"run_id"`
	CampaignFile string    `json:"campaign_file"`
	StartedAt    time.Time `json:"started_at"`
	FinishedAt   time.Time `json:"finished_at"`
	Status       Status    `json:"status"`
	FailedStage  string    `json:"failed_stage,omitempty"`
	Error        string    `json:"error,omitempty"`

	Campaign   *CampaignInfo    `json:"campaign,omitempty"`
	Counts     Counts           `json:"counts"`
	Validation campaign.Result  `json:"validation"`
	Assets     *assets.Summary  `json:"assets,omitempty"`
	Stages     []StageOutcome   `json:"stages"`
	Missing    MissingOutputs   `json:"missing_outputs"`
	Compliance ComplianceReport `json:"compliance"`
	SyncNotes  []string         `json:"sync_notes,omitempty"`
}

// CampaignInfo is the identity block of the report.
type CampaignInfo struct {
	ID           string            `json:"id"`
	Name         string            `json:"name"`
	Region       string            `json:"region"`
	StartDate    string            `json:"start_date"`
	EndDate      string            `json:"end_date"`
	Markets      []campaign.Market `json:"markets"`
	Products     []ProductInfo     `json:"products"`
	AspectRatios []string          `json:"aspect_ratios"`
}

type ProductInfo struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Category string `json:"category"`
}

// Counts compares planned and produced images.
type Counts struct {
	Products             int     `json:"products"`
	Markets              int     `json:"markets"`
	AspectRatios         int     `json:"aspect_ratios"`
	BasePlanned          int     `json:"base_planned"`
	BaseProduced         int     `json:"base_produced"`
	LocalizedPlanned     int     `json:"localized_planned"`
	LocalizedProduced    int     `json:"localized_produced"`
	BaseSuccessRate      float64 `json:"base_success_rate"`
	LocalizedSuccessRate float64 `json:"localized_success_rate"`
}

// TotalPlanned returns base plus localized planned images.
func (c Counts) TotalPlanned() int { return c.BasePlanned + c.LocalizedPlanned }

// TotalProduced returns base plus localized produced images.
func (c Counts) TotalProduced() int { return c.BaseProduced + c.LocalizedProduced }

// MissingOutputs lists planned images that were not produced, relative to
// the output directory. Each list holds at most MaxMissingListed entries.
type MissingOutputs struct {
	Base             []string `json:"base,omitempty"`
	BaseOmitted      int      `json:"base_omitted,omitempty"`
	Localized        []string `json:"localized,omitempty"`
	LocalizedOmitted int      `json:"localized_omitted,omitempty"`
}

// ComplianceReport holds per-image verdicts and the campaign's declared checks.
type ComplianceReport struct {
	Summary   compliance.Summary   `json:"summary"`
	Verdicts  []compliance.Verdict `json:"verdicts,omitempty"`
	Automated []string             `json:"automated_checks,omitempty"`
	Manual    []string             `json:"manual_checks,omitempty"`
}

// Build aggregates in into a Report.
func Build(in Input) *Report {
	r := &Report{
		RunID:        in.RunID,
		CampaignFile: in.CampaignFile,
		StartedAt:    in.StartedAt,
		FinishedAt:   in.FinishedAt,
		FailedStage:  in.FailedStage,
		Validation:   in.Validation,
		Assets:       in.Assets,
		Stages:       in.Stages,
		SyncNotes:    in.SyncNotes,
	}
	if r.Stages == nil {
		r.Stages = []StageOutcome{}
	}
	if in.Err != nil {
		r.Error = in.Err.Error()
	}

	if c := in.Campaign; c != nil {
		r.Campaign = campaignInfo(c)
		r.Counts.Products = len(c.Products)
		r.Counts.Markets = len(c.Markets())
		r.Counts.AspectRatios = len(c.Creative.AspectRatios)
		r.Compliance.Automated, r.Compliance.Manual = compliance.Classify(c.ComplianceChecks)
	}

	if in.Plan != nil {
		countOutputs(r, in.Plan, in.Produced)
	}

	r.Compliance.Verdicts = in.Compliance
	r.Compliance.Summary = compliance.Summarize(in.Compliance)

	r.Status = status(r)
	return r
}

func campaignInfo(c *campaign.Campaign) *CampaignInfo {
	info := &CampaignInfo{
		ID:           c.ID(),
		Name:         c.Info.Name,
		Region:       c.Info.Region,
		StartDate:    c.Info.Schedule.StartDate,
		EndDate:      c.Info.Schedule.EndDate,
		Markets:      c.Markets(),
		AspectRatios: c.Creative.AspectRatios,
	}
	for _, p := range c.Products {
		info.Products = append(info.Products, ProductInfo{ID: p.ID, Name: p.Name, Category: p.Category})
	}
	return info
}

func countOutputs(r *Report, plan *layout.Plan, produced []string) {
	done := make(map[string]bool, len(produced))
	for _, p := range produced {
		done[p] = true
	}
	outputDir := filepath.Dir(plan.Root)

	var missingBase, missingLocalized []string
	for _, op := range plan.Paths {
		rel, err := filepath.Rel(outputDir, op.Path)
		if err != nil {
			rel = op.Path
		}
		rel = filepath.ToSlash(rel)

		switch op.Kind {
		case layout.KindBase:
			r.Counts.BasePlanned++
			if done[op.Path] {
				r.Counts.BaseProduced++
			} else {
				missingBase = append(missingBase, rel)
			}
		case layout.KindLocalized:
			r.Counts.LocalizedPlanned++
			if done[op.Path] {
				r.Counts.LocalizedProduced++
			} else {
				missingLocalized = append(missingLocalized, rel)
			}
		}
	}

	r.Counts.BaseSuccessRate = rate(r.Counts.BaseProduced, r.Counts.BasePlanned)
	r.Counts.LocalizedSuccessRate = rate(r.Counts.LocalizedProduced, r.Counts.LocalizedPlanned)
	r.Missing.Base, r.Missing.BaseOmitted = capList(missingBase)
	r.Missing.Localized, r.Missing.LocalizedOmitted = capList(missingLocalized)
}

func rate(done, planned int) float64 {
	if planned == 0 {
		return 0
	}
	return float64(done) / float64(planned) * 100
}

func capList(items []string) ([]string, int) {
	if len(items) <= MaxMissingListed {
		return items, 0
	}
	return items[:MaxMissingListed], len(items) - MaxMissingListed
}

func status(r *Report) Status {
	if r.FailedStage != "" || r.Error != "" {
		return StatusFailed
	}
	if len(r.SyncNotes) > 0 || r.Compliance.Summary.Failed > 0 ||
		r.Counts.TotalProduced() < r.Counts.TotalPlanned() {
		return StatusPassedWithWarnings
	}
	for _, s := range r.Stages {
		if s.Status == StageWarning {
			return StatusPassedWithWarnings
		}
	}
	return StatusPassed
}
