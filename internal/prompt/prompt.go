// Package prompt turns campaign fields into instructions for the generative
// collaborators. Every function here is pure and deterministic.
package prompt

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jgueth/campaign-automation/internal/campaign"
)

const defaultSetting = "product showcase"

// Bundle is the message triple exchanged with the translation collaborator.
type Bundle struct {
	Primary   string `json:"primary"`
	Secondary string `json:"secondary,omitempty"`
	CTA       string `json:"cta"`
}

// EffectiveMessage returns the campaign message with the product override
// applied to the primary line.
func EffectiveMessage(c *campaign.Campaign, p campaign.Product) Bundle {
	msg := c.Info.Message
	b := Bundle{Primary: msg.Primary, Secondary: msg.Secondary, CTA: msg.CTA}
	if strings.TrimSpace(p.Message) != "" {
		b.Primary = p.Message
	}
	return b
}

// Key identifies a bundle for caching translations.
func (b Bundle) Key() string {
	return b.Primary + "\x00" + b.Secondary + "\x00" + b.CTA
}

// Check rejects a translated bundle that dropped a field the source had.
func (b Bundle) Check(source Bundle) error {
	var missing []string
	if strings.TrimSpace(b.Primary) == "" {
		missing = append(missing, "primary")
	}
	if strings.TrimSpace(source.Secondary) != "" && strings.TrimSpace(b.Secondary) == "" {
		missing = append(missing, "secondary")
	}
	if strings.TrimSpace(b.CTA) == "" {
		missing = append(missing, "cta")
	}
	if len(missing) > 0 {
		return errors.New("translation omitted required field(s): " + strings.Join(missing, ", "))
	}
	return nil
}

// BuildImagePrompt describes the hero scene for one product.
func BuildImagePrompt(c *campaign.Campaign, p campaign.Product) string {
	style := c.Creative.Style
	setting := strings.TrimSpace(style.Setting)
	if setting == "" {
		setting = defaultSetting
	}

	subject := p.Name
	if p.Category != "" {
		subject = fmt.Sprintf("%s (%s)", p.Name, p.Category)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Create a %s lifestyle scene in a %s. ", style.Mood, setting)
	fmt.Fprintf(&b, "Use color palette: %s. ", strings.Join(style.Colors, ", "))
	fmt.Fprintf(&b, "Feature %s", subject)
	if d := strings.TrimSpace(p.Description); d != "" {
		fmt.Fprintf(&b, ", described as: %s", d)
	}
	b.WriteString(". ")
	fmt.Fprintf(&b, "The scene should appeal to %s in the %s region. ", c.Info.Target.Audience, c.Info.Region)
	b.WriteString("Composite the provided product image and brand logo naturally into the scene. ")
	b.WriteString("Place the product prominently as the hero focal point and the logo subtly but visibly. ")
	b.WriteString("No text in the image.")
	return b.String()
}

// BuildProvidedHeroPrompt is used when the campaign supplies its own hero
// scene: the product and logo are composited into that image instead of a
// generated one.
func BuildProvidedHeroPrompt(c *campaign.Campaign, p campaign.Product) string {
	return fmt.Sprintf("Use the first reference image as the background scene without changing its composition. "+
		"Composite %s and the brand logo into it, keeping a %s mood. No text in the image.",
		p.Name, c.Creative.Style.Mood)
}

// BuildLocalizationPrompt asks for a faithful, tone-preserving translation of
// msg into the market language, returned as JSON with the same fields.
func BuildLocalizationPrompt(msg Bundle, m campaign.Market) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Translate the following marketing copy into %s for the %s market.\n", m.Language, m.Country)
	b.WriteString("Preserve tone, intent and brevity; adapt idioms rather than translating word for word. ")
	b.WriteString("Do not add or remove information.\n\n")
	fmt.Fprintf(&b, "primary: %s\n", msg.Primary)
	if msg.Secondary != "" {
		fmt.Fprintf(&b, "secondary: %s\n", msg.Secondary)
	}
	fmt.Fprintf(&b, "cta: %s\n\n", msg.CTA)
	if msg.Secondary != "" {
		b.WriteString(`Respond with JSON only: {"primary": "...", "secondary": "...", "cta": "..."}`)
	} else {
		b.WriteString(`Respond with JSON only: {"primary": "...", "cta": "..."}`)
	}
	return b.String()
}

// LayoutGuidance returns placement advice for an aspect ratio token.
func LayoutGuidance(ratio string) string {
	switch ratio {
	case "9x16":
		return "Vertical story format: put the headline in the upper third, keep the product centered, and place the call to action near the bottom above the safe area."
	case "1x1":
		return "Square feed format: place the headline at the top, the product in the center, and the call to action at the bottom."
	case "16x9":
		return "Landscape banner format: keep the text on the left third and the product on the right."
	default:
		return "Place the text where it does not cover the product and stays legible."
	}
}

// BuildOverlayPrompt instructs the image model to add already-translated copy
// to a base image. Which lines appear follows the campaign's text overlay
// flags.
func BuildOverlayPrompt(p campaign.Product, text Bundle, m campaign.Market, ratio string, overlay campaign.TextOverlay) string {
	var b strings.Builder
	b.WriteString("Add marketing text to this image. Keep the scene, product and logo exactly as they are.\n\n")
	fmt.Fprintf(&b, "TARGET LANGUAGE: %s (%s)\n", m.Language, m.Country)
	b.WriteString("TEXT TO ADD (use exactly as written, do not translate again):\n")
	if overlay.IncludeMessage {
		fmt.Fprintf(&b, "- Headline: %s\n", text.Primary)
		if text.Secondary != "" {
			fmt.Fprintf(&b, "- Subheadline: %s\n", text.Secondary)
		}
	}
	if overlay.IncludeCTA {
		fmt.Fprintf(&b, "- Call to action button: %s\n", text.CTA)
	} else {
		b.WriteString("- NO CTA button required\n")
	}
	fmt.Fprintf(&b, "\nLAYOUT (%s): %s\n", ratio, LayoutGuidance(ratio))
	if overlay.IncludeLogo {
		b.WriteString("The brand logo must remain clearly visible.\n")
	}
	fmt.Fprintf(&b, "The product is %s; never cover it with text.", p.Name)
	return b.String()
}

// APIAspectRatio converts a WxH token to the W:H form image APIs expect.
func APIAspectRatio(ratio string) string {
	return strings.Replace(ratio, "x", ":", 1)
}
