// Package campaigntest provides campaign fixtures for tests in other packages.
package campaigntest

import (
	"bytes"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/jgueth/campaign-automation/internal/campaign"
)

// YAML is a valid campaign document with two products, three markets and two
// aspect ratios.
const YAML = `campaign:
  id: holiday_2025
  name: Holiday Glow
  description: Seasonal skincare push
  region: EMEA
  markets:
    - market_id: de
      country: Germany
      language: de-DE
    - market_id: fr
      country: France
      language: fr-FR
    - market_id: uk
      country: United Kingdom
      language: en-GB
  target:
    audience: Adults 25-45 who care about skincare
  schedule:
    start_date: 2025-11-01
    end_date: 2025-12-31
  message:
    primary: Glow through the holidays
    secondary: Limited edition gift sets
    cta: Shop now
products:
  - id: serum
    name: Radiance Serum
    category: skincare
    description: Vitamin C serum
    assets:
      product_image: serum.png
      logo: brand_logo.png
      hero_image: null
  - id: cream
    name: Night Cream
    category: skincare
    message: Wake up radiant
    assets:
      product_image: cream.jpg
      logo: brand_logo.png
creative:
  aspect_ratios: ["1x1", "9x16"]
  style:
    mood: warm and festive
    colors: [gold, deep red]
    setting: cozy living room
  text_overlay:
    include_message: true
    include_cta: true
    include_logo: true
compliance_checks:
  - logo_presence
  - legal_disclaimer
`

// Sample decodes YAML and fails the test if it is not valid.
func Sample(t testing.TB) *campaign.Campaign {
	t.Helper()
	c, res := campaign.Decode([]byte(YAML))
	if !res.Valid {
		t.Fatalf("fixture campaign invalid: %v", res.Errors)
	}
	return c
}

// AssetFiles lists the distinct asset filenames Sample requires.
func AssetFiles() []string {
	return []string{"brand_logo.png", "cream.jpg", "serum.png"}
}

// PNG encodes a solid w×h image.
func PNG(w, h int) []byte {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: color.RGBA{R: 200, G: 30, B: 30, A: 255}}, image.Point{}, draw.Src)
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

// Workspace lays out input/campaigns, input/assets and output under a temp
// dir, writes the campaign and every asset except those named in skip, and
// returns the root.
func Workspace(t testing.TB, skip ...string) string {
	t.Helper()
	root := t.TempDir()
	skipped := make(map[string]bool, len(skip))
	for _, s := range skip {
		skipped[s] = true
	}

	write := func(path string, data []byte) {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, data, 0644); err != nil {
			t.Fatal(err)
		}
	}

	write(filepath.Join(root, "input", "campaigns", "holiday_campaign.yaml"), []byte(YAML))
	for _, f := range AssetFiles() {
		if !skipped[f] {
			write(filepath.Join(root, "input", "assets", f), PNG(4, 4))
		}
	}
	if err := os.MkdirAll(filepath.Join(root, "output"), 0755); err != nil {
		t.Fatal(err)
	}
	return root
}
