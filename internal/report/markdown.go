package report

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
)

// Render returns the report as markdown.
func Render(r *Report) string {
	var b strings.Builder
	line := func(format string, args ...interface{}) {
		fmt.Fprintf(&b, format, args...)
		b.WriteByte('\n')
	}

	line("# Campaign Creative Generation Report")
	line("")
	line("**Run:** `%s`  ", r.RunID)
	line("**Campaign File:** %s  ", r.CampaignFile)
	if !r.FinishedAt.IsZero() {
		line("**Finished:** %s  ", r.FinishedAt.Format("2006-01-02 15:04:05"))
	}
	line("**Status:** %s", strings.ToUpper(string(r.Status)))
	if r.FailedStage != "" {
		line("")
		line("> Run halted at stage `%s`: %s", r.FailedStage, r.Error)
	}

	if c := r.Campaign; c != nil {
		line("")
		line("## Campaign Overview")
		line("")
		line("- **Campaign ID:** %s", c.ID)
		line("- **Campaign Name:** %s", c.Name)
		line("- **Region:** %s", c.Region)
		line("- **Schedule:** %s to %s", c.StartDate, c.EndDate)
		ids := make([]string, 0, len(c.Markets))
		for _, m := range c.Markets {
			ids = append(ids, m.MarketID)
		}
		line("- **Markets:** %d (%s)", len(c.Markets), strings.Join(ids, ", "))
		line("- **Products:** %d", len(c.Products))
		line("- **Aspect Ratios:** %d (%s)", len(c.AspectRatios), strings.Join(c.AspectRatios, ", "))
		line("")
		line("### Products")
		line("")
		for i, p := range c.Products {
			line("%d. **%s** (`%s`) - %s", i+1, p.Name, p.ID, p.Category)
		}
		line("")
		line("### Markets")
		line("")
		for i, m := range c.Markets {
			line("%d. **%s** (`%s`) - Language: %s", i+1, m.Country, m.MarketID, m.Language)
		}
	}

	if !r.Validation.Valid && len(r.Validation.Errors) > 0 {
		line("")
		line("## Validation Errors")
		line("")
		for _, e := range r.Validation.Errors {
			line("- %s", e)
		}
	}

	if a := r.Assets; a != nil {
		line("")
		line("## Assets")
		line("")
		line("- **Required:** %d", a.TotalRequired)
		line("- **Found:** %d", a.FoundCount)
		line("- **Missing:** %d", a.MissingCount)
		for _, m := range a.Missing {
			line("  - `%s`", m)
		}
	}

	line("")
	line("## Generation Statistics")
	line("")
	line("| Kind | Planned | Produced | Success Rate |")
	line("|---|---|---|---|")
	line("| Base | %d | %d | %.1f%% |", r.Counts.BasePlanned, r.Counts.BaseProduced, r.Counts.BaseSuccessRate)
	line("| Localized | %d | %d | %.1f%% |", r.Counts.LocalizedPlanned, r.Counts.LocalizedProduced, r.Counts.LocalizedSuccessRate)
	renderMissing(line, "Missing Base Images", r.Missing.Base, r.Missing.BaseOmitted)
	renderMissing(line, "Missing Localized Images", r.Missing.Localized, r.Missing.LocalizedOmitted)

	line("")
	line("## Stages")
	line("")
	for _, s := range r.Stages {
		detail := ""
		if s.Detail != "" {
			detail = " - " + s.Detail
		}
		line("- [%s] **%s** (%dms)%s", strings.ToUpper(string(s.Status)), s.Stage, s.DurationMS, detail)
	}

	line("")
	line("## Compliance")
	line("")
	cs := r.Compliance.Summary
	line("- **Logo checks:** %d passed, %d failed, %d skipped", cs.Passed, cs.Failed, cs.Skipped)
	for _, v := range r.Compliance.Verdicts {
		detail := ""
		if v.Detail != "" {
			detail = " - " + v.Detail
		}
		line("  - `%s/%s/%s` %s (%.2f)%s", v.ProductID, v.Ratio, v.MarketID, v.Status, v.Confidence, detail)
	}
	if len(r.Compliance.Manual) > 0 {
		line("")
		line("### Manual Review")
		line("")
		for _, id := range r.Compliance.Manual {
			line("- [ ] %s", id)
		}
	}

	if len(r.SyncNotes) > 0 {
		line("")
		line("## Cloud Sync")
		line("")
		for _, n := range r.SyncNotes {
			line("- %s", n)
		}
	}

	return b.String()
}

func renderMissing(line func(string, ...interface{}), title string, items []string, omitted int) {
	if len(items) == 0 {
		return
	}
	line("")
	line("**%s:**", title)
	for _, m := range items {
		line("- `%s`", m)
	}
	if omitted > 0 {
		line("- ... and %d more", omitted)
	}
}

// RenderTerminal formats markdown for a terminal. It falls back to the raw
// markdown if the renderer cannot be built.
func RenderTerminal(md string, width int) string {
	if width <= 0 {
		width = 80
	}
	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return md
	}
	out, err := renderer.Render(md)
	if err != nil {
		return md
	}
	return out
}
