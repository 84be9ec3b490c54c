package prompt

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jgueth/campaign-automation/internal/campaign"
	"github.com/jgueth/campaign-automation/internal/campaign/campaigntest"
)

func TestBuildImagePrompt(t *testing.T) {
	c := campaigntest.Sample(t)
	got := BuildImagePrompt(c, c.Products[0])

	for _, want := range []string{
		"Create a warm and festive lifestyle scene in a cozy living room.",
		"Use color palette: gold, deep red.",
		"Feature Radiance Serum (skincare), described as: Vitamin C serum.",
		"appeal to Adults 25-45 who care about skincare in the EMEA region",
		"No text in the image.",
	} {
		assert.Contains(t, got, want)
	}
	assert.Equal(t, got, BuildImagePrompt(c, c.Products[0]), "prompt must be deterministic")
}

func TestBuildImagePrompt_DefaultSetting(t *testing.T) {
	c := campaigntest.Sample(t)
	c.Creative.Style.Setting = ""
	got := BuildImagePrompt(c, c.Products[1])
	assert.Contains(t, got, "in a product showcase.")
	assert.NotContains(t, got, "described as")
}

func TestEffectiveMessage(t *testing.T) {
	c := campaigntest.Sample(t)

	assert.Equal(t, Bundle{Primary: "Glow through the holidays", Secondary: "Limited edition gift sets", CTA: "Shop now"},
		EffectiveMessage(c, c.Products[0]))
	assert.Equal(t, "Wake up radiant", EffectiveMessage(c, c.Products[1]).Primary)
}

func TestBundleCheck(t *testing.T) {
	src := Bundle{Primary: "Hello", Secondary: "More", CTA: "Buy"}

	assert.NoError(t, Bundle{Primary: "Hallo", Secondary: "Mehr", CTA: "Kaufen"}.Check(src))

	err := Bundle{Primary: "Hallo", CTA: " "}.Check(src)
	require.Error(t, err)
	assert.Equal(t, "translation omitted required field(s): secondary, cta", err.Error())

	assert.NoError(t, Bundle{Primary: "Hallo", CTA: "Kaufen"}.Check(Bundle{Primary: "Hello", CTA: "Buy"}))
}

func TestBuildLocalizationPrompt(t *testing.T) {
	m := campaign.Market{MarketID: "de", Country: "Germany", Language: "de-DE"}

	got := BuildLocalizationPrompt(Bundle{Primary: "Hello", Secondary: "More", CTA: "Buy"}, m)
	assert.True(t, strings.HasPrefix(got, "Translate the following marketing copy into de-DE for the Germany market."))
	assert.Contains(t, got, "secondary: More")
	assert.Contains(t, got, `"secondary": "..."`)

	got = BuildLocalizationPrompt(Bundle{Primary: "Hello", CTA: "Buy"}, m)
	assert.NotContains(t, got, "secondary")
}

func TestBuildOverlayPrompt_FollowsFlags(t *testing.T) {
	c := campaigntest.Sample(t)
	m := c.Markets()[1]
	text := Bundle{Primary: "Brillez", Secondary: "Coffrets", CTA: "Acheter"}

	got := BuildOverlayPrompt(c.Products[0], text, m, "9x16", c.Creative.TextOverlay)
	assert.Contains(t, got, "TARGET LANGUAGE: fr-FR (France)")
	assert.Contains(t, got, "- Headline: Brillez")
	assert.Contains(t, got, "- Call to action button: Acheter")
	assert.Contains(t, got, "Vertical story format")
	assert.Contains(t, got, "logo must remain clearly visible")

	overlay := campaign.TextOverlay{IncludeMessage: false, IncludeCTA: false, IncludeLogo: false}
	got = BuildOverlayPrompt(c.Products[0], text, m, "4x5", overlay)
	assert.NotContains(t, got, "Headline")
	assert.Contains(t, got, "NO CTA button required")
	assert.Contains(t, got, "stays legible")
	assert.NotContains(t, got, "logo must remain")
}

func TestLayoutGuidance(t *testing.T) {
	assert.Contains(t, LayoutGuidance("1x1"), "Square")
	assert.Contains(t, LayoutGuidance("16x9"), "Landscape")
}

func TestAPIAspectRatio(t *testing.T) {
	assert.Equal(t, "1:1", APIAspectRatio("1x1"))
	assert.Equal(t, "9:16", APIAspectRatio("9x16"))
}
