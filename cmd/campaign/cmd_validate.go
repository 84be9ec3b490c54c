package main

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/jgueth/campaign-automation/internal/assets"
	"github.com/jgueth/campaign-automation/internal/campaign"
	"github.com/jgueth/campaign-automation/internal/layout"
)

func newValidateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "validate [file]",
		Short: "Validate campaign files",
		Long: `Validates one campaign file, or every .yaml/.yml file in the campaigns
directory when no file is given. Exits non-zero if any file is invalid.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if len(args) == 1 {
				return validateOne(out, args[0], a.cfg.Paths.CampaignsDir)
			}
			return validateAll(out, a.cfg.Paths.CampaignsDir)
		},
	}
}

func validateOne(out io.Writer, file, campaignsDir string) error {
	res := campaign.ValidateFile(file, campaignsDir)
	if res.Valid {
		printf(out, "%s Campaign file is valid: %s\n", tag(okStyle, "VALID"), file)
		return nil
	}
	printf(out, "%s Campaign file validation failed: %s\n", tag(errStyle, "INVALID"), file)
	printf(out, "\nFound %d error(s):\n", len(res.Errors))
	for _, e := range res.Errors {
		printf(out, "  - %s\n", e)
	}
	return &campaign.SchemaError{Path: file, Errors: res.Errors}
}

func validateAll(out io.Writer, dir string) error {
	printf(out, "Validating all campaigns in '%s'...\n\n", dir)
	results, err := campaign.ValidateAll(dir)
	if err != nil {
		printf(out, "%s %v\n", tag(errStyle, "ERROR"), err)
		return err
	}
	if len(results) == 0 {
		printf(out, "%s No campaign files found in '%s'\n", tag(warnStyle, "WARNING"), dir)
		return nil
	}

	valid := 0
	for _, path := range campaign.SortedPaths(results) {
		res := results[path]
		if res.Valid {
			valid++
			printf(out, "%s %s\n", tag(okStyle, "VALID"), filepath.Base(path))
			continue
		}
		printf(out, "%s %s\n", tag(errStyle, "INVALID"), filepath.Base(path))
		for _, e := range res.Errors {
			printf(out, "    - %s\n", e)
		}
		printf(out, "\n")
	}
	printf(out, "\nSummary: %d/%d files valid\n", valid, len(results))
	if valid != len(results) {
		return fmt.Errorf("%d of %d campaign files are invalid", len(results)-valid, len(results))
	}
	return nil
}

func newAssetsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "assets [file]",
		Short: "Check that every asset a campaign references exists",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			file := a.cfg.Paths.DefaultCampaign
			if len(args) == 1 {
				file = args[0]
			}
			return checkAssets(cmd.OutOrStdout(), assets.NewResolver(a.cfg.Paths.AssetsDir, a.cfg.Paths.CampaignsDir), file)
		},
	}
}

func checkAssets(out io.Writer, r *assets.Resolver, file string) error {
	printf(out, "Validating assets for campaign: %s\n\n", file)
	rep, err := r.Validate(file)

	var serr *campaign.SchemaError
	if errors.As(err, &serr) || rep == nil || rep.Summary == nil {
		printf(out, "%s Campaign file is invalid, assets were not checked\n", tag(errStyle, "ERROR"))
		if rep != nil {
			for _, e := range rep.Schema.Errors {
				printf(out, "  - %s\n", e)
			}
		}
		return err
	}

	s := rep.Summary
	printf(out, "Campaign: %s\n", rep.CampaignPath)
	printf(out, "Assets directory: %s/\n", r.AssetsDir)
	printf(out, "\nAssets summary:\n")
	printf(out, "  - Products: %d\n", s.TotalProducts)
	printf(out, "  - Total assets required: %d\n", s.TotalRequired)
	printf(out, "  - Found: %d\n", s.FoundCount)
	printf(out, "  - Missing: %d\n\n", s.MissingCount)

	if err == nil {
		printf(out, "%s All required assets found!\n", tag(okStyle, "VALID"))
	} else {
		printf(out, "%s Asset validation failed\n\n", tag(errStyle, "INVALID"))
		var missing *assets.AssetMissingError
		if errors.As(err, &missing) {
			printf(out, "%s", missing.Details())
		}
	}
	if len(s.Found) > 0 {
		printf(out, "\nFound assets (%d):\n", len(s.Found))
		for _, f := range s.Found {
			printf(out, "  %s %s\n", tag(okStyle, "OK"), f)
		}
	}
	return err
}

func newFoldersCmd(a *app) *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "folders [file]",
		Short: "Create the output folder tree for a campaign",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			file := a.cfg.Paths.DefaultCampaign
			if len(args) == 1 {
				file = args[0]
			}
			return generateFolders(cmd.OutOrStdout(), file, a.cfg.Paths.CampaignsDir, a.cfg.Paths.OutputDir, dryRun)
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "List the folders without creating them")
	return cmd
}

func generateFolders(out io.Writer, file, campaignsDir, outputDir string, dryRun bool) error {
	c, _, err := campaign.Load(file, campaignsDir)
	if err != nil {
		printf(out, "%s %v\n", tag(errStyle, "ERROR"), err)
		return err
	}

	plan := layout.Build(c, outputDir)
	stats := plan.Stats()
	dirs, err := layout.Materialize(plan, dryRun)
	if err != nil {
		printf(out, "%s %v\n", tag(errStyle, "ERROR"), err)
		return err
	}

	printf(out, "Campaign: %s\n", c.ID())
	printf(out, "Output directory: %s/\n", outputDir)
	printf(out, "\nFolder structure:\n")
	printf(out, "  - %d products\n", stats.Products)
	printf(out, "  - %d markets\n", stats.Markets)
	printf(out, "  - %d aspect ratios\n", stats.Ratios)
	printf(out, "  = %d total folders\n\n", len(dirs))

	if dryRun {
		printf(out, "DRY RUN - No folders will be created\n\nFolders that would be created:\n")
	} else {
		printf(out, "Created folders:\n")
	}
	for _, d := range dirs {
		printf(out, "  %s\n", d)
	}
	if dryRun {
		printf(out, "\n%s Would create %d folders\n", tag(warnStyle, "DRY-RUN"), len(dirs))
	} else {
		printf(out, "\n%s Successfully created %d folders\n", tag(okStyle, "SUCCESS"), len(dirs))
	}
	return nil
}
