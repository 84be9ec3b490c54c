// Package campaign defines the campaign document model and its schema validator.
package campaign

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DateLayout is the calendar date format used by campaign schedules.
const DateLayout = "2006-01-02"

// Campaign is one parsed campaign document. Values are never mutated after
// Decode returns them.
type Campaign struct {
	Info             Info      `yaml:"campaign" json:"campaign"`
	Products         []Product `yaml:"products" json:"products"`
	Creative         Creative  `yaml:"creative" json:"creative"`
	ComplianceChecks []string  `yaml:"compliance_checks,omitempty" json:"compliance_checks,omitempty"`
}

// Info is the campaign identity block.
type Info struct {
	ID          string   `yaml:"id" json:"id"`
	Name        string   `yaml:"name" json:"name"`
	Description string   `yaml:"description" json:"description"`
	Region      string   `yaml:"region" json:"region"`
	Markets     []Market `yaml:"markets" json:"markets"`
	Target      Target   `yaml:"target" json:"target"`
	Schedule    Schedule `yaml:"schedule" json:"schedule"`
	Message     Message  `yaml:"message" json:"message"`
}

// Market is a country/language pair that localized creatives are produced for.
type Market struct {
	MarketID string `yaml:"market_id" json:"market_id"`
	Country  string `yaml:"country" json:"country"`
	Language string `yaml:"language" json:"language"`
}

type Target struct {
	Audience string `yaml:"audience" json:"audience"`
}

// Schedule holds ISO calendar dates. Validation guarantees both parse and
// StartDate <= EndDate.
type Schedule struct {
	StartDate string `yaml:"start_date" json:"start_date"`
	EndDate   string `yaml:"end_date" json:"end_date"`
}

// Start returns the parsed start date.
func (s Schedule) Start() time.Time {
	t, _ := time.Parse(DateLayout, s.StartDate)
	return t
}

// End returns the parsed end date.
func (s Schedule) End() time.Time {
	t, _ := time.Parse(DateLayout, s.EndDate)
	return t
}

// Message is the source-language copy shared by every creative.
type Message struct {
	Primary   string `yaml:"primary" json:"primary"`
	Secondary string `yaml:"secondary,omitempty" json:"secondary,omitempty"`
	CTA       string `yaml:"cta" json:"cta"`
}

type Product struct {
	ID          string `yaml:"id" json:"id"`
	Name        string `yaml:"name" json:"name"`
	Category    string `yaml:"category" json:"category"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
	// Message overrides the campaign primary message for this product.
	Message string `yaml:"message,omitempty" json:"message,omitempty"`
	Assets  Assets `yaml:"assets" json:"assets"`
}

type Assets struct {
	ProductImage string    `yaml:"product_image" json:"product_image"`
	Logo         string    `yaml:"logo" json:"logo"`
	HeroImage    HeroImage `yaml:"hero_image" json:"hero_image"`
}

type Creative struct {
	AspectRatios []string    `yaml:"aspect_ratios" json:"aspect_ratios"`
	Style        Style       `yaml:"style" json:"style"`
	TextOverlay  TextOverlay `yaml:"text_overlay" json:"text_overlay"`
}

type Style struct {
	Mood    string   `yaml:"mood" json:"mood"`
	Colors  []string `yaml:"colors" json:"colors"`
	Setting string   `yaml:"setting,omitempty" json:"setting,omitempty"`
}

type TextOverlay struct {
	IncludeMessage bool `yaml:"include_message" json:"include_message"`
	IncludeCTA     bool `yaml:"include_cta" json:"include_cta"`
	IncludeLogo    bool `yaml:"include_logo" json:"include_logo"`
}

// HeroKind distinguishes a supplied hero image from one the pipeline must
// synthesize.
type HeroKind int

const (
	HeroGenerate HeroKind = iota
	HeroProvided
)

func (k HeroKind) String() string {
	if k == HeroProvided {
		return "provided"
	}
	return "generate"
}

// HeroImage is either Provided(filename) or Generate. A null or absent
// hero_image decodes to Generate.
type HeroImage struct {
	kind     HeroKind
	filename string
}

// GenerateHero returns the Generate state.
func GenerateHero() HeroImage { return HeroImage{} }

// ProvidedHero returns the Provided state for filename.
func ProvidedHero(filename string) HeroImage {
	return HeroImage{kind: HeroProvided, filename: filename}
}

func (h HeroImage) Kind() HeroKind   { return h.kind }
func (h HeroImage) IsProvided() bool { return h.kind == HeroProvided }
func (h HeroImage) Filename() string { return h.filename }

// UnmarshalYAML is only called for non-null nodes.
func (h *HeroImage) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode || node.ShortTag() != "!!str" {
		return fmt.Errorf("hero_image must be a string or null")
	}
	if strings.TrimSpace(node.Value) == "" {
		*h = GenerateHero()
		return nil
	}
	*h = ProvidedHero(node.Value)
	return nil
}

func (h HeroImage) MarshalYAML() (interface{}, error) {
	if h.kind == HeroProvided {
		return h.filename, nil
	}
	return nil, nil
}

func (h HeroImage) MarshalJSON() ([]byte, error) {
	if h.kind == HeroProvided {
		return json.Marshal(h.filename)
	}
	return []byte("null"), nil
}

// ID returns the campaign identifier.
func (c *Campaign) ID() string { return c.Info.ID }

// Markets returns the declared markets in order.
func (c *Campaign) Markets() []Market { return c.Info.Markets }

// RequiredAssets lists the asset filenames a product needs on disk, in
// declaration order: product image, logo, then a provided hero image.
func (p Product) RequiredAssets() []string {
	files := []string{p.Assets.ProductImage, p.Assets.Logo}
	if p.Assets.HeroImage.IsProvided() {
		files = append(files, p.Assets.HeroImage.Filename())
	}
	return files
}
