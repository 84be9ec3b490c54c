package main

import (
	"context"

	"github.com/jgueth/campaign-automation/internal/cloudsync"
	"github.com/jgueth/campaign-automation/internal/compliance"
	"github.com/jgueth/campaign-automation/internal/gemini"
	"github.com/jgueth/campaign-automation/internal/ledger"
	"github.com/jgueth/campaign-automation/internal/logging"
	"github.com/jgueth/campaign-automation/internal/runner"
	"github.com/jgueth/campaign-automation/internal/workflow"
)

// services bundles what every run-executing command needs.
type services struct {
	client *gemini.Client
	store  *ledger.Store
	runner *runner.Runner
}

func (s *services) Close() {
	s.runner.Stop()
	if s.store != nil {
		s.store.Close()
	}
}

// buildDeps wires the production collaborators. A sync setup problem is
// logged and leaves Syncer nil, so sync-requested runs record skip notes.
func (a *app) buildDeps(ctx context.Context, client *gemini.Client, wantSync bool, listener workflow.StageListener) workflow.Deps {
	images := gemini.NewImages(client)
	deps := workflow.Deps{
		Images:     images,
		Localizer:  images,
		Translator: gemini.NewTranslator(client),
		Listener:   listener,
	}
	if a.cfg.Compliance.Enabled {
		deps.Checker = &compliance.Checker{
			Detector:      gemini.NewVision(client),
			MinConfidence: a.cfg.Compliance.MinConfidence,
			MaxImagePx:    a.cfg.Generation.MaxProductPixels,
			MaxLogoPx:     a.cfg.Generation.MaxLogoPixels,
		}
	}

	if wantSync || a.cfg.Sync.Bucket != "" {
		log := logging.Get(logging.CategorySync)
		if err := a.cfg.ValidateSync(); err != nil {
			log.Warn("Cloud sync unavailable: %v", err)
		} else if syncer, err := cloudsync.New(ctx, a.cfg.Sync, a.creds); err != nil {
			log.Warn("Cloud sync unavailable: %v", err)
		} else {
			deps.Syncer = syncer
		}
	}
	return deps
}

// openLedger opens the run history. A failure is logged and the pipeline
// runs without history.
func (a *app) openLedger() *ledger.Store {
	store, err := ledger.Open(a.cfg.Ledger.Path)
	if err != nil {
		logging.Get(logging.CategoryLedger).Warn("Run history disabled: %v", err)
		return nil
	}
	if n, err := store.MarkInterrupted(); err == nil && n > 0 {
		logging.Get(logging.CategoryLedger).Warn("Marked %d interrupted run(s) from a previous process", n)
	}
	return store
}

// startServices builds the orchestrator, ledger and runner and starts the
// runner on ctx.
func (a *app) startServices(ctx context.Context, wantSync bool, listener workflow.StageListener) (*services, error) {
	client := gemini.NewClient(a.cfg.Gemini, a.creds, a.cfg.GetGeminiTimeout())
	orch := workflow.New(a.cfg, a.buildDeps(ctx, client, wantSync, listener))

	s := &services{client: client, store: a.openLedger()}
	var led runner.Ledger
	if s.store != nil {
		led = s.store
	}
	s.runner = runner.New(orch, led, runner.Config{
		RunTimeout:   a.runTimeout(),
		CampaignsDir: a.cfg.Paths.CampaignsDir,
	})
	if err := s.runner.Start(ctx); err != nil {
		if s.store != nil {
			s.store.Close()
		}
		return nil, err
	}
	return s, nil
}
