// Package workflow drives one campaign run through its ordered stages and
// records the outcome as a campaign report.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/jgueth/campaign-automation/internal/assets"
	"github.com/jgueth/campaign-automation/internal/campaign"
	"github.com/jgueth/campaign-automation/internal/compliance"
	"github.com/jgueth/campaign-automation/internal/config"
	"github.com/jgueth/campaign-automation/internal/gemini"
	"github.com/jgueth/campaign-automation/internal/layout"
	"github.com/jgueth/campaign-automation/internal/logging"
	"github.com/jgueth/campaign-automation/internal/prompt"
	"github.com/jgueth/campaign-automation/internal/report"
)

// Stage names one step of a run.
type Stage string

const (
	StageStart             Stage = "start"
	StageDownload          Stage = "download"
	StageValidateStructure Stage = "validate_structure"
	StageValidateAssets    Stage = "validate_assets"
	StagePlanOutputs       Stage = "plan_outputs"
	StageBuildPrompts      Stage = "build_prompts"
	StageGenerateBase      Stage = "generate_base_images"
	StageLocalize          Stage = "localize_images"
	StageCompliance        Stage = "check_logo_compliance"
	StageReport            Stage = "generate_report"
	StageUpload            Stage = "upload"
	StageDone              Stage = "done"
)

// StageRunning is reported to listeners when a stage begins.
const StageRunning report.StageStatus = "running"

// StageError is returned when a required stage fails and the run halts.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// Collaborators. The gemini and cloudsync packages provide the production
// implementations.
type (
	ImageGenerator interface {
		GenerateBase(ctx context.Context, req gemini.BaseImageRequest) ([]byte, error)
	}
	Localizer interface {
		Localize(ctx context.Context, req gemini.LocalizeRequest) ([]byte, error)
	}
	Translator interface {
		Translate(ctx context.Context, msg prompt.Bundle, m campaign.Market) (prompt.Bundle, error)
	}
	LogoChecker interface {
		Check(ctx context.Context, t compliance.Target) (compliance.Verdict, error)
	}
	Syncer interface {
		Download(ctx context.Context, localDir string) (int, error)
		Upload(ctx context.Context, localDir string) (string, int, error)
	}
)

// StageEvent is delivered to a StageListener when a stage starts or ends.
type StageEvent struct {
	RunID    string
	Stage    Stage
	Status   report.StageStatus
	Detail   string
	Duration time.Duration
}

// StageListener observes stage progress. It is called from the run goroutine.
type StageListener func(StageEvent)

// Deps are the collaborators injected into an Orchestrator. Checker and
// Syncer may be nil.
type Deps struct {
	Images     ImageGenerator
	Localizer  Localizer
	Translator Translator
	Checker    LogoChecker
	Syncer     Syncer
	Listener   StageListener
}

// Options select what one run does.
type Options struct {
	// RunID is generated when empty.
	RunID        string
	CampaignFile string
	Sync         bool
}

// Result summarizes a finished run.
type Result struct {
	RunID        string
	CampaignID   string
	CampaignPath string
	Status       report.Status
	ReportPath   string
	Report       *report.Report
}

// Orchestrator runs campaigns. It holds no per-run state and may be reused.
type Orchestrator struct {
	cfg  *config.Config
	deps Deps

	newID func() string
	now   func() time.Time
}

// New creates an orchestrator for cfg.
func New(cfg *config.Config, deps Deps) *Orchestrator {
	return &Orchestrator{
		cfg:   cfg,
		deps:  deps,
		newID: uuid.NewString,
		now:   time.Now,
	}
}

// run carries the artifacts of one run between stages.
type run struct {
	id       string
	opts     Options
	campaign *campaign.Campaign
	path     string
	valid    campaign.Result
	assets   *assets.Summary
	plan     *layout.Plan
	prompts  map[string]string
	produced []string
	verdicts []compliance.Verdict
	stages   []report.StageOutcome
	notes    []string
	started  time.Time
}

// Run executes every stage in order. A fatal stage failure returns a
// *StageError together with a Result whose status is failed; a partial
// report is still written.
func (o *Orchestrator) Run(ctx context.Context, opts Options) (*Result, error) {
	if opts.CampaignFile == "" {
		opts.CampaignFile = o.cfg.Paths.DefaultCampaign
	}
	if opts.RunID == "" {
		opts.RunID = o.newID()
	}
	r := &run{id: opts.RunID, opts: opts, started: o.now()}
	log := logging.Get(logging.CategoryWorkflow).With("run_id", r.id)
	log.Info("Starting run for %s (sync=%t)", opts.CampaignFile, opts.Sync)
	o.emit(StageEvent{RunID: r.id, Stage: StageStart, Status: report.StageOK})

	if opts.Sync {
		o.download(ctx, r)
	}

	steps := []struct {
		stage Stage
		fn    func(context.Context, *run) (string, error)
	}{
		{StageValidateStructure, o.validateStructure},
		{StageValidateAssets, o.validateAssets},
		{StagePlanOutputs, o.planOutputs},
		{StageBuildPrompts, o.buildPrompts},
		{StageGenerateBase, o.generateBase},
		{StageLocalize, o.localize},
		{StageCompliance, o.checkCompliance},
	}
	for _, s := range steps {
		if err := o.stage(ctx, r, s.stage, s.fn); err != nil {
			log.Error("Run halted: %v", err)
			return o.finish(r, err)
		}
	}

	res, err := o.finish(r, nil)
	if err != nil {
		return res, err
	}

	if opts.Sync && o.upload(ctx, r) {
		// Rewrite the local report so it carries the sync note.
		res, err = o.finish(r, nil)
	}
	o.emit(StageEvent{RunID: r.id, Stage: StageDone, Status: report.StageOK})
	log.Info("Run finished with status %s", res.Status)
	return res, err
}

func (o *Orchestrator) emit(ev StageEvent) {
	if o.deps.Listener != nil {
		o.deps.Listener(ev)
	}
}

// stage runs one required stage, records its outcome and wraps failures.
func (o *Orchestrator) stage(ctx context.Context, r *run, s Stage, fn func(context.Context, *run) (string, error)) error {
	o.emit(StageEvent{RunID: r.id, Stage: s, Status: StageRunning})
	timer := logging.StartTimer(logging.CategoryWorkflow, string(s))

	if err := ctx.Err(); err != nil {
		return o.record(r, s, timer.Stop(), report.StageFailed, err.Error(), &StageError{Stage: s, Err: err})
	}
	detail, err := fn(ctx, r)
	elapsed := timer.Stop()
	if err != nil {
		return o.record(r, s, elapsed, report.StageFailed, err.Error(), &StageError{Stage: s, Err: err})
	}
	return o.record(r, s, elapsed, report.StageOK, detail, nil)
}

func (o *Orchestrator) record(r *run, s Stage, d time.Duration, status report.StageStatus, detail string, err error) error {
	r.stages = append(r.stages, report.StageOutcome{
		Stage:      string(s),
		Status:     status,
		DurationMS: d.Milliseconds(),
		Detail:     detail,
	})
	o.emit(StageEvent{RunID: r.id, Stage: s, Status: status, Detail: detail, Duration: d})
	return err
}

// finish builds and writes the report. cause is the fatal error, if any.
func (o *Orchestrator) finish(r *run, cause error) (*Result, error) {
	in := report.Input{
		RunID:        r.id,
		CampaignFile: r.opts.CampaignFile,
		Campaign:     r.campaign,
		Validation:   r.valid,
		Assets:       r.assets,
		Plan:         r.plan,
		Produced:     r.produced,
		Compliance:   r.verdicts,
		SyncNotes:    r.notes,
		Err:          cause,
		StartedAt:    r.started,
		FinishedAt:   o.now(),
	}
	var se *StageError
	if errors.As(cause, &se) {
		in.FailedStage = string(se.Stage)
	}

	dir := o.cfg.Paths.OutputDir
	res := &Result{RunID: r.id, CampaignPath: r.path}
	if r.campaign != nil {
		res.CampaignID = r.campaign.ID()
		dir = layout.CampaignDir(o.cfg.Paths.OutputDir, r.campaign.ID())
	}

	start := o.now()
	stages := withoutStage(r.stages, StageReport)
	outcome := report.StageOutcome{
		Stage:  string(StageReport),
		Status: report.StageOK,
		Detail: filepath.Join(dir, report.JSONFile),
	}
	in.Stages = append(stages, outcome)
	rep := report.Build(in)
	outcome.DurationMS = o.now().Sub(start).Milliseconds()
	rep.Stages[len(rep.Stages)-1] = outcome

	path, err := report.Write(rep, dir)
	elapsed := o.now().Sub(start)
	res.Report, res.Status, res.ReportPath = rep, rep.Status, path

	if err != nil {
		logging.Get(logging.CategoryReport).Error("Could not write report: %v", err)
		outcome.Status, outcome.Detail = report.StageFailed, err.Error()
		outcome.DurationMS = elapsed.Milliseconds()
		rep.Stages[len(rep.Stages)-1] = outcome
		r.stages = append(stages, outcome)
		o.emit(StageEvent{RunID: r.id, Stage: StageReport, Status: report.StageFailed, Detail: err.Error(), Duration: elapsed})
		res.Status = report.StatusFailed
		if cause == nil {
			return res, &StageError{Stage: StageReport, Err: err}
		}
		return res, cause
	}
	r.stages = append(stages, outcome)
	o.emit(StageEvent{RunID: r.id, Stage: StageReport, Status: report.StageOK, Detail: path, Duration: elapsed})
	return res, cause
}

// withoutStage returns a copy of stages minus every outcome for s. A report
// rewritten after upload replaces its earlier entry.
func withoutStage(stages []report.StageOutcome, s Stage) []report.StageOutcome {
	out := make([]report.StageOutcome, 0, len(stages)+1)
	for _, st := range stages {
		if st.Stage != string(s) {
			out = append(out, st)
		}
	}
	return out
}

// download mirrors the remote input tree. Failures become report notes.
func (o *Orchestrator) download(ctx context.Context, r *run) {
	o.emit(StageEvent{RunID: r.id, Stage: StageDownload, Status: StageRunning})
	start := o.now()
	inputDir := filepath.Dir(filepath.Clean(o.cfg.Paths.CampaignsDir))

	if o.deps.Syncer == nil {
		r.notes = append(r.notes, "download skipped: cloud sync is not configured")
		o.record(r, StageDownload, o.now().Sub(start), report.StageSkipped, "cloud sync is not configured", nil)
		return
	}
	n, err := o.deps.Syncer.Download(ctx, inputDir)
	if err != nil {
		logging.Get(logging.CategorySync).Warn("Could not download input, continuing with local files: %v", err)
		r.notes = append(r.notes, "download failed, continued with local files: "+err.Error())
		o.record(r, StageDownload, o.now().Sub(start), report.StageWarning, err.Error(), nil)
		return
	}
	o.record(r, StageDownload, o.now().Sub(start), report.StageOK, fmt.Sprintf("%d file(s) downloaded", n), nil)
}

// upload pushes the output tree. It reports whether a note was added.
func (o *Orchestrator) upload(ctx context.Context, r *run) bool {
	o.emit(StageEvent{RunID: r.id, Stage: StageUpload, Status: StageRunning})
	start := o.now()

	if o.deps.Syncer == nil {
		r.notes = append(r.notes, "upload skipped: cloud sync is not configured")
		o.record(r, StageUpload, o.now().Sub(start), report.StageSkipped, "cloud sync is not configured", nil)
		return true
	}
	remote, n, err := o.deps.Syncer.Upload(ctx, o.cfg.Paths.OutputDir)
	if err != nil {
		logging.Get(logging.CategorySync).Warn("Could not upload output, files remain available locally: %v", err)
		r.notes = append(r.notes, "upload failed, output is available locally: "+err.Error())
		o.record(r, StageUpload, o.now().Sub(start), report.StageWarning, err.Error(), nil)
		return true
	}
	o.record(r, StageUpload, o.now().Sub(start), report.StageOK, fmt.Sprintf("%d file(s) uploaded to %s", n, remote), nil)
	return false
}

func (o *Orchestrator) validateStructure(_ context.Context, r *run) (string, error) {
	c, path, err := campaign.Load(r.opts.CampaignFile, o.cfg.Paths.CampaignsDir)
	r.path = path
	if err != nil {
		var serr *campaign.SchemaError
		if errors.As(err, &serr) {
			r.valid = campaign.Result{Valid: false, Errors: serr.Errors}
		} else {
			r.valid = campaign.Result{Valid: false, Errors: []string{err.Error()}}
		}
		return "", err
	}
	r.valid = campaign.Result{Valid: true, Errors: []string{}}
	r.campaign = c
	return fmt.Sprintf("campaign %s is valid", c.ID()), nil
}

func (o *Orchestrator) validateAssets(_ context.Context, r *run) (string, error) {
	res := assets.NewResolver(o.cfg.Paths.AssetsDir, o.cfg.Paths.CampaignsDir)
	s, err := res.Check(r.campaign)
	var missing *assets.AssetMissingError
	if err == nil || errors.As(err, &missing) {
		r.assets = &s
	}
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%d/%d required assets found", s.FoundCount, s.TotalRequired), nil
}

// planOutputs clears the previous output of the campaign when output.clean is
// set, so earlier creatives survive a run that halts on validation.
func (o *Orchestrator) planOutputs(_ context.Context, r *run) (string, error) {
	if o.cfg.Output.Clean {
		dir := layout.CampaignDir(o.cfg.Paths.OutputDir, r.campaign.ID())
		if err := os.RemoveAll(dir); err != nil {
			logging.Get(logging.CategoryWorkflow).Warn("Could not remove old output %s: %v", dir, err)
		}
	}
	plan := layout.Build(r.campaign, o.cfg.Paths.OutputDir)
	dirs, err := layout.Materialize(plan, false)
	if err != nil {
		return "", err
	}
	r.plan = plan
	st := plan.Stats()
	return fmt.Sprintf("%d base and %d localized outputs planned in %d folders", st.Base, st.Localized, len(dirs)), nil
}

func (o *Orchestrator) buildPrompts(_ context.Context, r *run) (string, error) {
	r.prompts = make(map[string]string, len(r.campaign.Products))
	for _, p := range r.campaign.Products {
		if p.Assets.HeroImage.IsProvided() {
			r.prompts[p.ID] = prompt.BuildProvidedHeroPrompt(r.campaign, p)
		} else {
			r.prompts[p.ID] = prompt.BuildImagePrompt(r.campaign, p)
		}
		logging.WorkflowDebug("prompt for %s: %s", p.ID, r.prompts[p.ID])
	}
	return fmt.Sprintf("%d prompt(s) built", len(r.prompts)), nil
}
