package workflow

import (
	"context"
	"fmt"
	"os"

	"golang.org/x/sync/errgroup"

	"github.com/jgueth/campaign-automation/internal/campaign"
	"github.com/jgueth/campaign-automation/internal/compliance"
	"github.com/jgueth/campaign-automation/internal/gemini"
	"github.com/jgueth/campaign-automation/internal/imaging"
	"github.com/jgueth/campaign-automation/internal/layout"
	"github.com/jgueth/campaign-automation/internal/logging"
	"github.com/jgueth/campaign-automation/internal/prompt"
)

// forEach calls fn for indexes 0..n-1. With one worker the calls are strictly
// sequential; otherwise at most workers calls run at once. The first error
// cancels the remaining units.
func forEach(ctx context.Context, workers, n int, fn func(ctx context.Context, i int) error) error {
	if workers <= 1 {
		for i := 0; i < n; i++ {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := fn(ctx, i); err != nil {
				return err
			}
		}
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := 0; i < n; i++ {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			return fn(gctx, i)
		})
	}
	return g.Wait()
}

// collect appends the paths whose unit succeeded, in plan order.
func collect(r *run, units []layout.OutputPath, done []bool) int {
	n := 0
	for i, ok := range done {
		if ok {
			r.produced = append(r.produced, units[i].Path)
			n++
		}
	}
	return n
}

func productByID(c *campaign.Campaign) map[string]campaign.Product {
	m := make(map[string]campaign.Product, len(c.Products))
	for _, p := range c.Products {
		m[p.ID] = p
	}
	return m
}

func marketByID(c *campaign.Campaign) map[string]campaign.Market {
	m := make(map[string]campaign.Market, len(c.Markets()))
	for _, mk := range c.Markets() {
		m[mk.MarketID] = mk
	}
	return m
}

// references loads the images attached to a base generation request.
func (o *Orchestrator) references(r *run, p campaign.Product) ([]imaging.Image, error) {
	var files []string
	if p.Assets.HeroImage.IsProvided() {
		files = append(files, p.Assets.HeroImage.Filename())
	}
	files = append(files, p.Assets.ProductImage, p.Assets.Logo)

	refs := make([]imaging.Image, 0, len(files))
	for i, f := range files {
		path, ok := r.assets.Path(f)
		if !ok {
			return nil, fmt.Errorf("asset %s was not resolved", f)
		}
		limit := o.cfg.Generation.MaxProductPixels
		if i == len(files)-1 {
			limit = o.cfg.Generation.MaxLogoPixels
		}
		img, err := imaging.Load(path, limit)
		if err != nil {
			return nil, err
		}
		refs = append(refs, img)
	}
	return refs, nil
}

func (o *Orchestrator) generateBase(ctx context.Context, r *run) (string, error) {
	products := productByID(r.campaign)
	units := r.plan.Base()

	refs := make(map[string][]imaging.Image, len(products))
	for _, p := range r.campaign.Products {
		imgs, err := o.references(r, p)
		if err != nil {
			return "", fmt.Errorf("failed to load reference images for %s: %w", p.ID, err)
		}
		refs[p.ID] = imgs
	}

	done := make([]bool, len(units))
	err := forEach(ctx, o.cfg.Generation.Workers, len(units), func(ctx context.Context, i int) error {
		u := units[i]
		logging.Workflow("Generating base image: %s | %s", u.ProductID, u.Ratio)
		data, err := o.deps.Images.GenerateBase(ctx, gemini.BaseImageRequest{
			Prompt:      r.prompts[u.ProductID],
			AspectRatio: u.Ratio,
			References:  refs[u.ProductID],
		})
		if err != nil {
			return fmt.Errorf("%s %s: %w", u.ProductID, u.Ratio, err)
		}
		if err := os.WriteFile(u.Path, data, 0644); err != nil {
			return fmt.Errorf("failed to write %s: %w", u.Path, err)
		}
		done[i] = true
		return nil
	})
	n := collect(r, units, done)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%d/%d base images generated", n, len(units)), nil
}

// translations returns the translated bundle for every (market, message)
// pair the plan needs, calling the translator once per pair.
func (o *Orchestrator) translations(ctx context.Context, r *run) (map[string]prompt.Bundle, error) {
	out := make(map[string]prompt.Bundle)
	for _, m := range r.campaign.Markets() {
		for _, p := range r.campaign.Products {
			msg := prompt.EffectiveMessage(r.campaign, p)
			key := m.MarketID + "\x00" + msg.Key()
			if _, ok := out[key]; ok {
				continue
			}
			t, err := o.deps.Translator.Translate(ctx, msg, m)
			if err != nil {
				return nil, fmt.Errorf("translation for %s: %w", m.MarketID, err)
			}
			logging.WorkflowDebug("translated %q for %s: %q", msg.Primary, m.MarketID, t.Primary)
			out[key] = t
		}
	}
	return out, nil
}

func (o *Orchestrator) localize(ctx context.Context, r *run) (string, error) {
	texts, err := o.translations(ctx, r)
	if err != nil {
		return "", err
	}

	products := productByID(r.campaign)
	markets := marketByID(r.campaign)
	overlay := r.campaign.Creative.TextOverlay
	units := r.plan.Localized()

	done := make([]bool, len(units))
	err = forEach(ctx, o.cfg.Generation.Workers, len(units), func(ctx context.Context, i int) error {
		u := units[i]
		p, m := products[u.ProductID], markets[u.MarketID]
		basePath := layout.BasePath(o.cfg.Paths.OutputDir, u.CampaignID, u.ProductID, u.Ratio)
		base, err := imaging.Load(basePath, 0)
		if err != nil {
			return err
		}

		text := texts[m.MarketID+"\x00"+prompt.EffectiveMessage(r.campaign, p).Key()]
		logging.Workflow("Localizing: %s | %s | %s", u.ProductID, u.Ratio, u.MarketID)
		data, err := o.deps.Localizer.Localize(ctx, gemini.LocalizeRequest{
			Prompt:      prompt.BuildOverlayPrompt(p, text, m, u.Ratio, overlay),
			AspectRatio: u.Ratio,
			Base:        base,
		})
		if err != nil {
			return fmt.Errorf("%s %s %s: %w", u.ProductID, u.Ratio, u.MarketID, err)
		}
		if err := os.WriteFile(u.Path, data, 0644); err != nil {
			return fmt.Errorf("failed to write %s: %w", u.Path, err)
		}
		done[i] = true
		return nil
	})
	n := collect(r, units, done)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%d/%d localized images generated", n, len(units)), nil
}

func (o *Orchestrator) checkCompliance(ctx context.Context, r *run) (string, error) {
	if !o.cfg.Compliance.Enabled || o.deps.Checker == nil {
		return "logo compliance check disabled", nil
	}

	products := productByID(r.campaign)
	units := r.plan.Localized()
	verdicts := make([]compliance.Verdict, len(units))

	err := forEach(ctx, o.cfg.Generation.Workers, len(units), func(ctx context.Context, i int) error {
		u := units[i]
		logoPath, _ := r.assets.Path(products[u.ProductID].Assets.Logo)
		t := compliance.Target{ProductID: u.ProductID, Ratio: u.Ratio, MarketID: u.MarketID, Path: u.Path, LogoPath: logoPath}

		if !r.campaign.Creative.TextOverlay.IncludeLogo {
			verdicts[i] = compliance.Skipped(t, "include_logo is false")
			return nil
		}
		v, err := o.deps.Checker.Check(ctx, t)
		if err != nil {
			return fmt.Errorf("logo check for %s: %w", u.Path, err)
		}
		verdicts[i] = v
		return nil
	})
	if err != nil {
		return "", err
	}
	r.verdicts = verdicts

	s := compliance.Summarize(verdicts)
	if s.Failed > 0 {
		logging.Get(logging.CategoryWorkflow).Warn("%d image(s) missing logo, manual review recommended", s.Failed)
	}
	return fmt.Sprintf("%d passed, %d failed, %d skipped", s.Passed, s.Failed, s.Skipped), nil
}
