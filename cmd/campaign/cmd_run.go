package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jgueth/campaign-automation/internal/api"
	"github.com/jgueth/campaign-automation/internal/config"
	"github.com/jgueth/campaign-automation/internal/gemini"
	"github.com/jgueth/campaign-automation/internal/report"
	"github.com/jgueth/campaign-automation/internal/runner"
	"github.com/jgueth/campaign-automation/internal/watcher"
	"github.com/jgueth/campaign-automation/internal/workflow"
)

func newRunCmd(a *app) *cobra.Command {
	var (
		sync       bool
		showReport bool
	)
	cmd := &cobra.Command{
		Use:   "run [file]",
		Short: "Run the full pipeline for one campaign",
		Long: `Runs every stage for a campaign file: validation, asset checks, folder
planning, base image generation, localization, logo compliance and the
report. With --sync the input is downloaded from and the output uploaded to
the configured S3 bucket; sync problems are reported but never fatal.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			file := a.cfg.Paths.DefaultCampaign
			if len(args) == 1 {
				file = args[0]
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			out := cmd.OutOrStdout()
			svc, err := a.startServices(ctx, sync, stageLinePrinter(out))
			if err != nil {
				return err
			}
			defer svc.Close()

			return runOnce(ctx, out, svc.runner, runner.Job{
				CampaignFile: file,
				Sync:         sync,
				Trigger:      runner.TriggerCLI,
				Force:        true,
			}, showReport)
		},
	}
	cmd.Flags().BoolVar(&sync, "sync", false, "Download input from and upload output to S3")
	cmd.Flags().BoolVar(&showReport, "show-report", true, "Render the campaign report when the run ends")
	return cmd
}

// runOnce submits job, waits for it and prints the outcome.
func runOnce(ctx context.Context, out io.Writer, r *runner.Runner, job runner.Job, showReport bool) error {
	t, err := r.Submit(job)
	if err != nil {
		return err
	}
	printf(out, "Run %s started for %s\n\n", t.ID, t.Path)

	res, err := t.Wait(ctx)
	if res != nil {
		printf(out, "\n%s Run %s finished\n", runStatusTag(res.Status), res.RunID)
		if res.ReportPath != "" {
			printf(out, "Report: %s\n", res.ReportPath)
		}
		if showReport && res.Report != nil {
			printf(out, "\n%s", report.RenderTerminal(report.Render(res.Report), 100))
		}
	}
	return err
}

// stageLinePrinter prints one line per finished stage.
func stageLinePrinter(out io.Writer) workflow.StageListener {
	return func(ev workflow.StageEvent) {
		if ev.Status == workflow.StageRunning || ev.Stage == workflow.StageStart || ev.Stage == workflow.StageDone {
			return
		}
		line := fmt.Sprintf("%s %s (%dms)", statusTag(ev.Status), ev.Stage, ev.Duration.Milliseconds())
		if ev.Detail != "" {
			line += " " + mutedStyle.Render(ev.Detail)
		}
		printf(out, "%s\n", line)
	}
}

func newWatchCmd(a *app) *cobra.Command {
	var sync, analyze bool
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Watch the campaigns folder and run each new campaign file",
		Long: `Watches the campaigns directory (recursively) for new or modified .yaml/.yml
files. Each file is processed once, runs execute one at a time and a
log is written to the log directory for every run. With --analyze the run is
also reviewed by Gemini and the analysis saved as markdown.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := a.creds.Require(config.KeyGeminiAPIKey); err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			out := cmd.OutOrStdout()
			svc, err := a.startServices(ctx, sync, stageLinePrinter(out))
			if err != nil {
				return err
			}
			defer svc.Close()

			var analyzer watcher.Analyzer
			if analyze || a.cfg.Watcher.Analyze {
				analyzer = gemini.NewAnalyst(svc.client)
			}
			agent := watcher.NewAgent(a.cfg.Paths.LogDir, analyzer)
			svc.runner.OnFinish(agent.OnFinish(ctx))

			w, err := watcher.New(svc.runner, watcher.Options{
				Dir:      a.cfg.Paths.CampaignsDir,
				Debounce: a.cfg.GetWatcherDebounce(),
				Sync:     sync,
			})
			if err != nil {
				return err
			}
			if err := w.Start(ctx); err != nil {
				return err
			}
			defer w.Stop()

			printf(out, "%s\n", titleStyle.Render("Campaign watcher"))
			printf(out, "  Watching:  %s (recursive, .yaml/.yml)\n", a.cfg.Paths.CampaignsDir)
			printf(out, "  Logs:      %s\n", a.cfg.Paths.LogDir)
			printf(out, "  Sync:      %t\n", sync)
			printf(out, "  Analysis:  %t\n", analyzer != nil)
			printf(out, "  Run limit: %v\n\n", a.runTimeout())
			printf(out, "Waiting for campaign files. Press Ctrl+C to stop.\n")

			<-ctx.Done()
			printf(out, "\nStopping watcher...\n")
			return nil
		},
	}
	cmd.Flags().BoolVar(&sync, "sync", false, "Sync each run with S3")
	cmd.Flags().BoolVar(&analyze, "analyze", false, "Ask Gemini to analyze each run")
	return cmd
}

func newServeCmd(a *app) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP control API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr == "" {
				addr = a.cfg.API.Addr
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			svc, err := a.startServices(ctx, false, nil)
			if err != nil {
				return err
			}
			defer svc.Close()

			var history api.History
			if svc.store != nil {
				history = svc.store
			}
			printf(cmd.OutOrStdout(), "Serving campaign API on %s\n", addr)
			return api.New(a.cfg, svc.runner, history).ListenAndServe(ctx, addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default: api.addr)")
	return cmd
}
