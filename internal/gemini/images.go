package gemini

import (
	"context"
	"errors"
	"strings"

	"google.golang.org/genai"

	"github.com/jgueth/campaign-automation/internal/imaging"
	"github.com/jgueth/campaign-automation/internal/logging"
	"github.com/jgueth/campaign-automation/internal/prompt"
)

const compositeInstruction = "Use the attached images as references: keep the product's shape, label and colors " +
	"and the logo's exact design. Do not invent a different product or logo."

// BaseImageRequest asks for one hero creative at a given aspect ratio.
type BaseImageRequest struct {
	Prompt      string
	AspectRatio string // WxH token, e.g. "9x16"
	// References are attached in order: optional provided hero scene,
	// product image, logo.
	References []imaging.Image
}

// LocalizeRequest asks for copy to be added to an existing base image.
type LocalizeRequest struct {
	Prompt      string
	AspectRatio string
	Base        imaging.Image
}

// Images renders creatives with an image-capable Gemini model.
type Images struct {
	client *Client
	model  string
}

func NewImages(c *Client) *Images {
	return &Images{client: c, model: c.cfg.ImageModel}
}

// GenerateBase renders a base creative from the prompt and reference images.
func (g *Images) GenerateBase(ctx context.Context, req BaseImageRequest) ([]byte, error) {
	parts := []*genai.Part{genai.NewPartFromText(req.Prompt + "\n\n" + compositeInstruction)}
	for _, ref := range req.References {
		parts = append(parts, genai.NewPartFromBytes(ref.Data, ref.MIMEType))
	}
	return g.render(ctx, "generate_base_image", req.AspectRatio, parts)
}

// Localize adds translated copy to a base creative.
func (g *Images) Localize(ctx context.Context, req LocalizeRequest) ([]byte, error) {
	parts := []*genai.Part{
		genai.NewPartFromBytes(req.Base.Data, req.Base.MIMEType),
		genai.NewPartFromText(req.Prompt),
	}
	return g.render(ctx, "localize_image", req.AspectRatio, parts)
}

func (g *Images) render(ctx context.Context, op, ratio string, parts []*genai.Part) ([]byte, error) {
	gc := &genai.GenerateContentConfig{
		ResponseModalities: []string{string(genai.ModalityImage)},
		ImageConfig:        &genai.ImageConfig{AspectRatio: prompt.APIAspectRatio(ratio)},
	}
	resp, err := g.client.generate(ctx, op, g.model, parts, gc)
	if err != nil {
		return nil, err
	}

	data, err := firstImage(resp)
	if err != nil {
		return nil, &ExternalServiceError{Service: "gemini", Op: op, Model: g.model, Err: err}
	}
	logging.GeminiDebug("%s returned %d bytes (%s)", op, len(data), ratio)
	return data, nil
}

// firstImage pulls the first inline image out of a response.
func firstImage(resp *genai.GenerateContentResponse) ([]byte, error) {
	var text []string
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if part.InlineData != nil && len(part.InlineData.Data) > 0 &&
				strings.HasPrefix(part.InlineData.MIMEType, "image/") {
				return part.InlineData.Data, nil
			}
			if part.Text != "" && !part.Thought {
				text = append(text, part.Text)
			}
		}
	}
	if len(text) > 0 {
		return nil, errors.New("response contained no image, model said: " + strings.Join(text, " "))
	}
	if reason := resp.Candidates[0].FinishReason; reason != "" {
		return nil, errors.New("response contained no image (finish reason " + string(reason) + ")")
	}
	return nil, errors.New("response contained no image")
}
