// Package layout computes the deterministic output tree for a campaign.
//
// Base images live at
//
//	{output}/{campaign}/{product}/{ratio}/{campaign}_{product}_{ratio}.png
//
// and localized images one level deeper under a market directory:
//
//	{output}/{campaign}/{product}/{ratio}/{market}/{campaign}_{product}_{market}_{ratio}.png
package layout

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jgueth/campaign-automation/internal/campaign"
	"github.com/jgueth/campaign-automation/internal/logging"
)

// Kind distinguishes base images from localized ones.
type Kind string

const (
	KindBase      Kind = "base"
	KindLocalized Kind = "localized"
)

// OutputPath is one planned image.
type OutputPath struct {
	Kind       Kind   `json:"kind"`
	CampaignID string `json:"campaign_id"`
	ProductID  string `json:"product_id"`
	Ratio      string `json:"aspect_ratio"`
	MarketID   string `json:"market_id,omitempty"`
	Path       string `json:"path"`
}

// Dir is the directory that must exist before Path can be written.
func (o OutputPath) Dir() string { return filepath.Dir(o.Path) }

// Plan is the ordered list of every image a campaign run produces.
type Plan struct {
	CampaignID string
	Root       string
	Paths      []OutputPath

	products, ratios, markets int
}

// Stats summarizes a plan's fan-out.
type Stats struct {
	Products  int `json:"products"`
	Ratios    int `json:"aspect_ratios"`
	Markets   int `json:"markets"`
	Base      int `json:"base_images"`
	Localized int `json:"localized_images"`
}

// CampaignDir is the per-campaign subtree of the output directory.
func CampaignDir(outputDir, campaignID string) string {
	return filepath.Join(outputDir, campaignID)
}

// BasePath returns the base image path for a product and ratio.
func BasePath(outputDir, cid, pid, ratio string) string {
	name := fmt.Sprintf("%s_%s_%s.png", cid, pid, ratio)
	return filepath.Join(outputDir, cid, pid, ratio, name)
}

// LocalizedPath returns the localized image path for a product, ratio and market.
func LocalizedPath(outputDir, cid, pid, ratio, mid string) string {
	name := fmt.Sprintf("%s_%s_%s_%s.png", cid, pid, mid, ratio)
	return filepath.Join(outputDir, cid, pid, ratio, mid, name)
}

// Build plans every output path for c. Products are enumerated in campaign
// order, then aspect ratios in declared order; each base path is followed by
// its localized paths in market order. Build has no side effects.
func Build(c *campaign.Campaign, outputDir string) *Plan {
	cid := c.ID()
	markets := c.Markets()
	ratios := c.Creative.AspectRatios

	p := &Plan{
		CampaignID: cid,
		Root:       CampaignDir(outputDir, cid),
		Paths:      make([]OutputPath, 0, len(c.Products)*len(ratios)*(len(markets)+1)),
		products:   len(c.Products),
		ratios:     len(ratios),
		markets:    len(markets),
	}

	for _, prod := range c.Products {
		for _, ratio := range ratios {
			p.Paths = append(p.Paths, OutputPath{
				Kind:       KindBase,
				CampaignID: cid,
				ProductID:  prod.ID,
				Ratio:      ratio,
				Path:       BasePath(outputDir, cid, prod.ID, ratio),
			})
			for _, m := range markets {
				p.Paths = append(p.Paths, OutputPath{
					Kind:       KindLocalized,
					CampaignID: cid,
					ProductID:  prod.ID,
					Ratio:      ratio,
					MarketID:   m.MarketID,
					Path:       LocalizedPath(outputDir, cid, prod.ID, ratio, m.MarketID),
				})
			}
		}
	}
	return p
}

func (p *Plan) filter(k Kind) []OutputPath {
	out := make([]OutputPath, 0, len(p.Paths))
	for _, o := range p.Paths {
		if o.Kind == k {
			out = append(out, o)
		}
	}
	return out
}

// Base returns the base image paths in plan order.
func (p *Plan) Base() []OutputPath { return p.filter(KindBase) }

// Localized returns the localized image paths in plan order.
func (p *Plan) Localized() []OutputPath { return p.filter(KindLocalized) }

// Stats returns the plan's fan-out counts.
func (p *Plan) Stats() Stats {
	return Stats{
		Products:  p.products,
		Ratios:    p.ratios,
		Markets:   p.markets,
		Base:      p.products * p.ratios,
		Localized: p.products * p.ratios * p.markets,
	}
}

// Directories lists every directory the plan needs, parents first, without
// duplicates.
func (p *Plan) Directories() []string {
	seen := make(map[string]bool)
	var dirs []string
	add := func(d string) {
		if !seen[d] {
			seen[d] = true
			dirs = append(dirs, d)
		}
	}
	add(p.Root)
	for _, o := range p.Paths {
		rel, err := filepath.Rel(p.Root, o.Dir())
		if err != nil {
			add(o.Dir())
			continue
		}
		cur := p.Root
		for _, seg := range strings.Split(rel, string(filepath.Separator)) {
			cur = filepath.Join(cur, seg)
			add(cur)
		}
	}
	return dirs
}

// Materialize creates the plan's directories. With dryRun it only reports
// what would be created.
func Materialize(p *Plan, dryRun bool) ([]string, error) {
	dirs := p.Directories()
	if dryRun {
		return dirs, nil
	}

	for _, d := range dirs {
		if err := os.MkdirAll(d, 0755); err != nil {
			return nil, fmt.Errorf("failed to create output directory %s: %w", d, err)
		}
	}
	logging.Get(logging.CategoryLayout).Info("created %d directories under %s", len(dirs), p.Root)
	return dirs, nil
}
