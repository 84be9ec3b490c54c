package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/jgueth/campaign-automation/internal/campaign"
	"github.com/jgueth/campaign-automation/internal/compliance"
	"github.com/jgueth/campaign-automation/internal/imaging"
	"github.com/jgueth/campaign-automation/internal/prompt"
)

// Translator localizes message bundles with a text model.
type Translator struct {
	client *Client
	model  string
}

func NewTranslator(c *Client) *Translator {
	return &Translator{client: c, model: c.cfg.TextModel}
}

func bundleSchema(withSecondary bool) *genai.Schema {
	s := &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"primary": {Type: genai.TypeString, Description: "Translated headline"},
			"cta":     {Type: genai.TypeString, Description: "Translated call to action"},
		},
		Required:         []string{"primary", "cta"},
		PropertyOrdering: []string{"primary", "cta"},
	}
	if withSecondary {
		s.Properties["secondary"] = &genai.Schema{Type: genai.TypeString, Description: "Translated subheadline"}
		s.Required = []string{"primary", "secondary", "cta"}
		s.PropertyOrdering = []string{"primary", "secondary", "cta"}
	}
	return s
}

// Translate returns msg translated into the market language. A response that
// drops a required field is rejected as an ExternalServiceError.
func (t *Translator) Translate(ctx context.Context, msg prompt.Bundle, m campaign.Market) (prompt.Bundle, error) {
	gc := &genai.GenerateContentConfig{
		Temperature:      genai.Ptr[float32](0.2),
		ResponseMIMEType: "application/json",
		ResponseSchema:   bundleSchema(msg.Secondary != ""),
	}
	parts := []*genai.Part{genai.NewPartFromText(prompt.BuildLocalizationPrompt(msg, m))}

	resp, err := t.client.generate(ctx, "translate", t.model, parts, gc)
	if err != nil {
		return prompt.Bundle{}, err
	}

	var out prompt.Bundle
	if err := decodeJSON(resp.Text(), &out); err != nil {
		return prompt.Bundle{}, &ExternalServiceError{Service: "gemini", Op: "translate", Model: t.model, Err: err}
	}
	if err := out.Check(msg); err != nil {
		return prompt.Bundle{}, &ExternalServiceError{Service: "gemini", Op: "translate", Model: t.model, Err: err}
	}
	return out, nil
}

// Vision checks creatives for the brand logo.
type Vision struct {
	client *Client
	model  string
}

func NewVision(c *Client) *Vision {
	return &Vision{client: c, model: c.cfg.VisionModel}
}

const logoPrompt = "The first image is a marketing creative. The second image is a brand logo. " +
	"Decide whether the logo appears in the creative, even if scaled, recolored or partially overlapped. " +
	"Respond with JSON: found (boolean), confidence (number from 0 to 1), location (short description such as 'bottom-right', empty if not found)."

// DetectLogo implements compliance.Detector.
func (v *Vision) DetectLogo(ctx context.Context, creative, logo imaging.Image) (compliance.Detection, error) {
	gc := &genai.GenerateContentConfig{
		Temperature:      genai.Ptr[float32](0),
		ResponseMIMEType: "application/json",
		ResponseSchema: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"found":      {Type: genai.TypeBoolean},
				"confidence": {Type: genai.TypeNumber},
				"location":   {Type: genai.TypeString},
			},
			Required: []string{"found", "confidence"},
		},
	}
	parts := []*genai.Part{
		genai.NewPartFromBytes(creative.Data, creative.MIMEType),
		genai.NewPartFromBytes(logo.Data, logo.MIMEType),
		genai.NewPartFromText(logoPrompt),
	}

	resp, err := v.client.generate(ctx, "detect_logo", v.model, parts, gc)
	if err != nil {
		return compliance.Detection{}, err
	}

	var d compliance.Detection
	if err := decodeJSON(resp.Text(), &d); err != nil {
		return compliance.Detection{}, &ExternalServiceError{Service: "gemini", Op: "detect_logo", Model: v.model, Err: err}
	}
	if d.Confidence < 0 || d.Confidence > 1 {
		return compliance.Detection{}, &ExternalServiceError{Service: "gemini", Op: "detect_logo", Model: v.model,
			Err: fmt.Errorf("confidence %v out of range", d.Confidence)}
	}
	return d, nil
}

// Analyst writes a markdown review of a finished run.
type Analyst struct {
	client *Client
	model  string
}

func NewAnalyst(c *Client) *Analyst {
	return &Analyst{client: c, model: c.cfg.TextModel}
}

const analysisInstruction = `You review automated creative-generation runs for a marketing team.
Given the campaign file, the run report and the run log, write a short markdown analysis with sections:
## Status, ## Issues, ## Compliance, ## Recommendations.
If the run failed before compliance checks, state "Not reached" under Compliance. Be specific and brief.`

// Analyze returns the markdown analysis for one run.
func (a *Analyst) Analyze(ctx context.Context, campaignYAML, reportJSON []byte, runLog string) (string, error) {
	gc := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(analysisInstruction, genai.RoleUser),
		Temperature:       genai.Ptr[float32](0.3),
	}
	var b strings.Builder
	b.WriteString("CAMPAIGN FILE:\n```yaml\n")
	b.Write(campaignYAML)
	b.WriteString("\n```\n\nRUN REPORT:\n```json\n")
	b.Write(reportJSON)
	b.WriteString("\n```\n\nRUN LOG:\n```\n")
	b.WriteString(runLog)
	b.WriteString("\n```\n")

	resp, err := a.client.generate(ctx, "analyze_run", a.model, []*genai.Part{genai.NewPartFromText(b.String())}, gc)
	if err != nil {
		return "", err
	}
	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", &ExternalServiceError{Service: "gemini", Op: "analyze_run", Model: a.model, Err: fmt.Errorf("empty analysis")}
	}
	return text, nil
}

// decodeJSON tolerates responses wrapped in a markdown code fence.
func decodeJSON(text string, v interface{}) error {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("empty JSON response")
	}
	if err := json.Unmarshal([]byte(text), v); err != nil {
		return fmt.Errorf("malformed JSON response: %w", err)
	}
	return nil
}
