// Package assets cross-references the files a campaign declares against the
// assets directory.
package assets

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/jgueth/campaign-automation/internal/campaign"
	"github.com/jgueth/campaign-automation/internal/logging"
	"github.com/jgueth/campaign-automation/internal/pathutil"
)

// ProductAssets is the per-product breakdown of a Summary.
type ProductAssets struct {
	ProductID string   `json:"product_id"`
	Required  []string `json:"required"`
	Found     []string `json:"found"`
	Missing   []string `json:"missing"`
}

// Summary reports which required asset files exist. Found and Missing are
// sorted sets whose union is exactly the required filenames.
type Summary struct {
	TotalProducts int             `json:"total_products"`
	TotalRequired int             `json:"total_assets_required"`
	FoundCount    int             `json:"assets_found"`
	MissingCount  int             `json:"assets_missing"`
	Found         []string        `json:"found_files"`
	Missing       []string        `json:"missing_files"`
	PerProduct    []ProductAssets `json:"per_product"`

	paths map[string]string
}

// Path returns where a found asset lives on disk.
func (s *Summary) Path(filename string) (string, bool) {
	p, ok := s.paths[filename]
	return p, ok
}

// Complete reports whether every required asset was found.
func (s *Summary) Complete() bool { return s.MissingCount == 0 }

// MissingAsset names one absent file and the product that needs it.
type MissingAsset struct {
	ProductID string `json:"product_id"`
	Filename  string `json:"filename"`
}

// AssetMissingError is returned when required files are absent.
type AssetMissingError struct {
	Dir     string
	Missing []MissingAsset
}

func (e *AssetMissingError) Error() string {
	parts := make([]string, 0, len(e.Missing))
	for _, m := range e.Missing {
		parts = append(parts, fmt.Sprintf("%s (product %s)", m.Filename, m.ProductID))
	}
	return fmt.Sprintf("missing %d required asset(s) in '%s': %s", len(e.Missing), e.Dir, strings.Join(parts, ", "))
}

// Details renders the grouped, operator-facing listing.
func (e *AssetMissingError) Details() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Missing %d required asset(s) in '%s':\n", len(e.Missing), e.Dir)
	last := ""
	for _, m := range e.Missing {
		if m.ProductID != last {
			fmt.Fprintf(&b, "  Product '%s':\n", m.ProductID)
			last = m.ProductID
		}
		fmt.Fprintf(&b, "    - %s\n", m.Filename)
	}
	return b.String()
}

// Resolver looks up asset filenames under AssetsDir using the three-tier
// path policy.
type Resolver struct {
	AssetsDir    string
	CampaignsDir string
}

// NewResolver creates a resolver rooted at the given directories.
func NewResolver(assetsDir, campaignsDir string) *Resolver {
	return &Resolver{AssetsDir: assetsDir, CampaignsDir: campaignsDir}
}

// ResolveAssets checks every required asset of c against the filesystem.
func (r *Resolver) ResolveAssets(c *campaign.Campaign) Summary {
	s := Summary{
		TotalProducts: len(c.Products),
		Found:         []string{},
		Missing:       []string{},
		PerProduct:    make([]ProductAssets, 0, len(c.Products)),
		paths:         make(map[string]string),
	}

	required := make(map[string]bool)
	missing := make(map[string]bool)
	for _, p := range c.Products {
		pa := ProductAssets{ProductID: p.ID, Required: p.RequiredAssets(), Found: []string{}, Missing: []string{}}
		for _, f := range pa.Required {
			required[f] = true
			path, err := pathutil.Resolve(f, r.AssetsDir)
			if err != nil {
				missing[f] = true
				pa.Missing = append(pa.Missing, f)
				continue
			}
			s.paths[f] = path
			pa.Found = append(pa.Found, f)
		}
		s.PerProduct = append(s.PerProduct, pa)
	}

	for f := range required {
		if missing[f] {
			s.Missing = append(s.Missing, f)
		} else {
			s.Found = append(s.Found, f)
		}
	}
	sort.Strings(s.Found)
	sort.Strings(s.Missing)

	s.TotalRequired = len(required)
	s.FoundCount = len(s.Found)
	s.MissingCount = len(s.Missing)
	return s
}

// Check resolves the assets of an already-decoded campaign and returns an
// *AssetMissingError when anything is absent.
func (r *Resolver) Check(c *campaign.Campaign) (Summary, error) {
	if info, err := os.Stat(r.AssetsDir); err != nil || !info.IsDir() {
		return Summary{}, &pathutil.PathResolutionError{Input: r.AssetsDir, Tried: []string{r.AssetsDir}}
	}

	s := r.ResolveAssets(c)
	logging.Get(logging.CategoryAssets).Info("assets for %s: %d/%d found", c.ID(), s.FoundCount, s.TotalRequired)
	if s.Complete() {
		return s, nil
	}

	err := &AssetMissingError{Dir: r.AssetsDir}
	for _, pa := range s.PerProduct {
		for _, f := range pa.Missing {
			err.Missing = append(err.Missing, MissingAsset{ProductID: pa.ProductID, Filename: f})
		}
	}
	return s, err
}

// Report is the outcome of validating a campaign file's assets.
type Report struct {
	CampaignPath string          `json:"campaign_path"`
	Schema       campaign.Result `json:"schema"`
	Summary      *Summary        `json:"summary,omitempty"`
}

// Validate runs schema validation first and only checks assets when the
// document is structurally valid. Schema failures are returned as
// *campaign.SchemaError with Report.Summary left nil.
func (r *Resolver) Validate(input string) (*Report, error) {
	c, path, err := campaign.Load(input, r.CampaignsDir)
	rep := &Report{CampaignPath: path}
	if err != nil {
		var serr *campaign.SchemaError
		if errors.As(err, &serr) {
			rep.Schema = campaign.Result{Valid: false, Errors: serr.Errors}
		} else {
			rep.Schema = campaign.Result{Valid: false, Errors: []string{err.Error()}}
		}
		return rep, err
	}
	rep.Schema = campaign.Result{Valid: true, Errors: []string{}}

	s, err := r.Check(c)
	if err != nil {
		var missing *AssetMissingError
		if errors.As(err, &missing) {
			rep.Summary = &s
		}
		return rep, err
	}
	rep.Summary = &s
	return rep, nil
}
