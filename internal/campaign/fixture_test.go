package campaign

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

const validDoc = `
campaign:
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
    start_date: "2025-11-01"
    end_date: "2025-12-31"
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
      hero_image: cream_hero.png
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

// docWith parses validDoc, applies mutate to the generic tree and re-encodes it.
func docWith(t *testing.T, mutate func(doc map[string]interface{})) []byte {
	t.Helper()
	var doc map[string]interface{}
	require.NoError(t, yaml.Unmarshal([]byte(validDoc), &doc))
	mutate(doc)
	out, err := yaml.Marshal(doc)
	require.NoError(t, err)
	return out
}

func section(doc map[string]interface{}, keys ...string) map[string]interface{} {
	cur := doc
	for _, k := range keys {
		cur = cur[k].(map[string]interface{})
	}
	return cur
}

func product(doc map[string]interface{}, i int) map[string]interface{} {
	return doc["products"].([]interface{})[i].(map[string]interface{})
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}
