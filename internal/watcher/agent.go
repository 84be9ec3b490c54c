package watcher

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jgueth/campaign-automation/internal/logging"
	"github.com/jgueth/campaign-automation/internal/runner"
	"github.com/jgueth/campaign-automation/internal/workflow"
)

const timestampLayout = "20060102_150405"

// Analyzer reviews a finished run. *gemini.Analyst satisfies it.
type Analyzer interface {
	Analyze(ctx context.Context, campaignYAML, reportJSON []byte, runLog string) (string, error)
}

// Agent writes a log file for every run the watcher triggered and, when an
// Analyzer is set, a markdown analysis next to it.
type Agent struct {
	logDir   string
	analyzer Analyzer
	now      func() time.Time
}

// NewAgent creates an agent writing into logDir. analyzer may be nil.
func NewAgent(logDir string, analyzer Analyzer) *Agent {
	return &Agent{logDir: logDir, analyzer: analyzer, now: time.Now}
}

// Artifacts are the files written for one run.
type Artifacts struct {
	LogPath      string
	AnalysisPath string
}

// OnFinish returns a runner callback recording watcher-triggered runs.
func (a *Agent) OnFinish(ctx context.Context) runner.FinishFunc {
	return func(t *runner.Ticket, res *workflow.Result, err error) {
		if t.Job.Trigger != runner.TriggerWatcher {
			return
		}
		if _, werr := a.Record(ctx, t, res, err); werr != nil {
			logging.Get(logging.CategoryWatcher).Error("Could not write agent log: %v", werr)
		}
	}
}

// Record writes log/agent_{ts}_{run}.log and, with an analyzer,
// log/analysis_{ts}_{run}.md.
// An analysis failure is noted in the log rather than returned.
func (a *Agent) Record(ctx context.Context, t *runner.Ticket, res *workflow.Result, runErr error) (Artifacts, error) {
	if err := os.MkdirAll(a.logDir, 0755); err != nil {
		return Artifacts{}, fmt.Errorf("failed to create log directory: %w", err)
	}
	ts := a.now().Format(timestampLayout)
	name := ts + "_" + t.ID
	out := Artifacts{LogPath: filepath.Join(a.logDir, "agent_"+name+".log")}

	campaignYAML, _ := os.ReadFile(t.Path)
	var reportJSON []byte
	if res != nil && res.Report != nil {
		reportJSON, _ = json.MarshalIndent(res.Report, "", "  ")
	}
	runLog := StageLog(res, runErr)

	var analysis string
	if a.analyzer != nil {
		text, err := a.analyzer.Analyze(ctx, campaignYAML, reportJSON, runLog)
		if err != nil {
			logging.Get(logging.CategoryWatcher).Warn("Run analysis failed: %v", err)
			analysis = "Analysis unavailable: " + err.Error()
		} else {
			analysis = text
			out.AnalysisPath = filepath.Join(a.logDir, "analysis_"+name+".md")
		}
	}

	succeeded := runErr == nil
	var b strings.Builder
	rule := strings.Repeat("=", 70)
	section := func(title string) {
		fmt.Fprintf(&b, "%s\n%s\n%s\n\n", rule, title, rule)
	}

	section("CAMPAIGN AGENT LOG")
	fmt.Fprintf(&b, "Timestamp: %s\n", ts)
	fmt.Fprintf(&b, "Run ID: %s\n", t.ID)
	fmt.Fprintf(&b, "Campaign File: %s\n", t.Path)
	fmt.Fprintf(&b, "Run Succeeded: %t\n", succeeded)
	if res != nil {
		fmt.Fprintf(&b, "Status: %s\n", res.Status)
		fmt.Fprintf(&b, "Report File: %s\n", orNA(res.ReportPath))
	}
	b.WriteString("\n")

	section("1. CAMPAIGN FILE")
	if len(campaignYAML) > 0 {
		b.Write(campaignYAML)
	} else {
		b.WriteString("Campaign file could not be read")
	}
	b.WriteString("\n\n")

	section("2. RUN LOG")
	b.WriteString(runLog)
	b.WriteString("\n")

	section("3. CAMPAIGN REPORT")
	if len(reportJSON) > 0 {
		b.Write(reportJSON)
	} else {
		b.WriteString("No report generated")
	}
	b.WriteString("\n\n")

	if a.analyzer != nil {
		section("4. ANALYSIS")
		b.WriteString(analysis)
		b.WriteString("\n\n")
	}

	if err := os.WriteFile(out.LogPath, []byte(b.String()), 0644); err != nil {
		return out, fmt.Errorf("failed to write agent log: %w", err)
	}

	if out.AnalysisPath != "" {
		status := "[SUCCESS]"
		if !succeeded {
			status = "[FAILED]"
		}
		var md strings.Builder
		md.WriteString("# Campaign Run Analysis\n\n")
		fmt.Fprintf(&md, "**Generated:** %s\n\n", ts)
		fmt.Fprintf(&md, "**Campaign File:** %s\n\n", filepath.Base(t.Path))
		fmt.Fprintf(&md, "**Run Status:** %s\n\n---\n\n", status)
		md.WriteString(analysis)
		md.WriteString("\n\n---\n\n**Related Files:**\n")
		fmt.Fprintf(&md, "- Agent Log: `%s`\n", out.LogPath)
		if res != nil && res.ReportPath != "" {
			fmt.Fprintf(&md, "- Campaign Report: `%s`\n", res.ReportPath)
		}
		if err := os.WriteFile(out.AnalysisPath, []byte(md.String()), 0644); err != nil {
			return out, fmt.Errorf("failed to write analysis: %w", err)
		}
	}

	logging.Get(logging.CategoryWatcher).Info("Agent log saved: %s", out.LogPath)
	return out, nil
}

// StageLog renders the stage outcomes of a run, one line each.
func StageLog(res *workflow.Result, runErr error) string {
	var b strings.Builder
	if res != nil && res.Report != nil {
		for _, s := range res.Report.Stages {
			fmt.Fprintf(&b, "[%s] %s (%dms)", strings.ToUpper(string(s.Status)), s.Stage, s.DurationMS)
			if s.Detail != "" {
				fmt.Fprintf(&b, ": %s", s.Detail)
			}
			b.WriteString("\n")
		}
		for _, n := range res.Report.SyncNotes {
			fmt.Fprintf(&b, "[NOTE] %s\n", n)
		}
	}
	if runErr != nil {
		fmt.Fprintf(&b, "[ERROR] %v\n", runErr)
	}
	if b.Len() == 0 {
		return "No stages recorded\n"
	}
	return b.String()
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}
