// Package compliance applies brand checks to generated creatives.
package compliance

import (
	"context"
	"fmt"
	"sort"

	"github.com/jgueth/campaign-automation/internal/imaging"
)

// CheckLogoPresence is the only check identifier verified automatically.
// Any other identifier a campaign lists is reported for manual review.
const CheckLogoPresence = "logo_presence"

// Detection is what a logo detector reports for one image.
type Detection struct {
	Found      bool    `json:"found"`
	Confidence float64 `json:"confidence"`
	Location   string  `json:"location,omitempty"`
}

// Detector finds a reference logo inside a rendered creative.
type Detector interface {
	DetectLogo(ctx context.Context, creative, logo imaging.Image) (Detection, error)
}

type Status string

const (
	StatusPassed  Status = "passed"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
)

// Verdict is the compliance outcome for one localized image.
type Verdict struct {
	ProductID  string  `json:"product_id"`
	Ratio      string  `json:"aspect_ratio"`
	MarketID   string  `json:"market_id"`
	Path       string  `json:"path"`
	Status     Status  `json:"status"`
	Confidence float64 `json:"confidence"`
	Location   string  `json:"location,omitempty"`
	Detail     string  `json:"detail,omitempty"`
}

// Target identifies the image to check and the logo it must contain.
type Target struct {
	ProductID string
	Ratio     string
	MarketID  string
	Path      string
	LogoPath  string
}

// Checker turns detector output into verdicts.
type Checker struct {
	Detector      Detector
	MinConfidence float64
	MaxImagePx    int
	MaxLogoPx     int
}

// Check runs the detector against one target. A detector error is returned
// as-is; the caller decides whether it is fatal.
func (c *Checker) Check(ctx context.Context, t Target) (Verdict, error) {
	v := Verdict{ProductID: t.ProductID, Ratio: t.Ratio, MarketID: t.MarketID, Path: t.Path}

	creative, err := imaging.Load(t.Path, c.MaxImagePx)
	if err != nil {
		return v, err
	}
	logo, err := imaging.Load(t.LogoPath, c.MaxLogoPx)
	if err != nil {
		return v, err
	}

	d, err := c.Detector.DetectLogo(ctx, creative, logo)
	if err != nil {
		return v, err
	}
	return Evaluate(v, d, c.MinConfidence), nil
}

// Evaluate applies the confidence threshold to a detection.
func Evaluate(v Verdict, d Detection, minConfidence float64) Verdict {
	v.Confidence = d.Confidence
	v.Location = d.Location
	switch {
	case !d.Found:
		v.Status = StatusFailed
		v.Detail = "logo not detected"
	case d.Confidence < minConfidence:
		v.Status = StatusFailed
		v.Detail = fmt.Sprintf("logo confidence %.2f below threshold %.2f", d.Confidence, minConfidence)
	default:
		v.Status = StatusPassed
	}
	return v
}

// Skipped builds a verdict for an image that was deliberately not checked.
func Skipped(t Target, reason string) Verdict {
	return Verdict{
		ProductID: t.ProductID,
		Ratio:     t.Ratio,
		MarketID:  t.MarketID,
		Path:      t.Path,
		Status:    StatusSkipped,
		Detail:    reason,
	}
}

// Summary counts verdicts by status.
type Summary struct {
	Total   int `json:"total_checked"`
	Passed  int `json:"passed"`
	Failed  int `json:"failed"`
	Skipped int `json:"skipped"`
}

func Summarize(verdicts []Verdict) Summary {
	var s Summary
	for _, v := range verdicts {
		switch v.Status {
		case StatusPassed:
			s.Passed++
		case StatusFailed:
			s.Failed++
		case StatusSkipped:
			s.Skipped++
		}
	}
	s.Total = s.Passed + s.Failed
	return s
}

// Classify splits campaign check identifiers into automated and manual ones,
// each sorted and without duplicates.
func Classify(ids []string) (automated, manual []string) {
	seen := make(map[string]bool)
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		if id == CheckLogoPresence {
			automated = append(automated, id)
		} else {
			manual = append(manual, id)
		}
	}
	sort.Strings(automated)
	sort.Strings(manual)
	return automated, manual
}
