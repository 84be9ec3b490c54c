package gemini

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/jgueth/campaign-automation/internal/campaign"
	"github.com/jgueth/campaign-automation/internal/compliance"
	"github.com/jgueth/campaign-automation/internal/config"
	"github.com/jgueth/campaign-automation/internal/imaging"
	"github.com/jgueth/campaign-automation/internal/prompt"
)

type call struct {
	model    string
	contents []*genai.Content
	config   *genai.GenerateContentConfig
}

type fakeModels struct {
	calls []call
	resp  *genai.GenerateContentResponse
	err   error
	block bool
}

func (f *fakeModels) GenerateContent(ctx context.Context, model string, contents []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.calls = append(f.calls, call{model: model, contents: contents, config: cfg})
	if f.block {
		<-ctx.Done()
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return f.resp, f.err
}

func textResponse(text string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{
		Content: genai.NewContentFromText(text, genai.RoleModel),
	}}}
}

func imageResponse(data []byte) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{
		Content: genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromText("here you go"),
			genai.NewPartFromBytes(data, "image/png"),
		}, genai.RoleModel),
	}}}
}

func testClient(f *fakeModels) *Client {
	return NewClientWithModels(config.DefaultConfig().Gemini, f)
}

var market = campaign.Market{MarketID: "de", Country: "Germany", Language: "German"}

func TestMissingAPIKey(t *testing.T) {
	c := NewClient(config.DefaultConfig().Gemini, config.StaticCredentials(nil), time.Second)

	_, err := NewTranslator(c).Translate(context.Background(), prompt.Bundle{Primary: "Hi", CTA: "Buy"}, market)
	require.Error(t, err)

	var missing *config.MissingCredentialError
	require.True(t, errors.As(err, &missing))
	assert.Equal(t, config.KeyGeminiAPIKey, missing.Name)
}

func TestGenerateBase(t *testing.T) {
	f := &fakeModels{resp: imageResponse([]byte("png-bytes"))}
	g := NewImages(testClient(f))

	out, err := g.GenerateBase(context.Background(), BaseImageRequest{
		Prompt:      "a serum bottle",
		AspectRatio: "9x16",
		References: []imaging.Image{
			{Data: []byte("product"), MIMEType: "image/png"},
			{Data: []byte("logo"), MIMEType: "image/png"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, []byte("png-bytes"), out)

	require.Len(t, f.calls, 1)
	got := f.calls[0]
	assert.Equal(t, "gemini-2.5-flash-image", got.model)
	assert.Equal(t, "9:16", got.config.ImageConfig.AspectRatio)
	assert.Equal(t, []string{"IMAGE"}, got.config.ResponseModalities)
	parts := got.contents[0].Parts
	require.Len(t, parts, 3)
	assert.Contains(t, parts[0].Text, "a serum bottle")
	assert.Equal(t, []byte("logo"), parts[2].InlineData.Data)
}

func TestLocalizeNoImage(t *testing.T) {
	f := &fakeModels{resp: textResponse("I cannot do that")}
	g := NewImages(testClient(f))

	_, err := g.Localize(context.Background(), LocalizeRequest{
		Prompt:      "add headline",
		AspectRatio: "1x1",
		Base:        imaging.Image{Data: []byte("base"), MIMEType: "image/png"},
	})
	var ext *ExternalServiceError
	require.True(t, errors.As(err, &ext))
	assert.Equal(t, "localize_image", ext.Op)
	assert.Contains(t, err.Error(), "I cannot do that")
}

func TestAPIErrorIsWrapped(t *testing.T) {
	f := &fakeModels{err: errors.New("quota exceeded")}
	_, err := NewImages(testClient(f)).GenerateBase(context.Background(), BaseImageRequest{AspectRatio: "1x1"})

	var ext *ExternalServiceError
	require.True(t, errors.As(err, &ext))
	assert.Equal(t, "generate_base_image", ext.Op)
	assert.EqualError(t, errors.Unwrap(err), "quota exceeded")
}

func TestBlockedPrompt(t *testing.T) {
	f := &fakeModels{resp: &genai.GenerateContentResponse{
		PromptFeedback: &genai.GenerateContentResponsePromptFeedback{BlockReason: genai.BlockedReasonSafety},
	}}
	_, err := NewImages(testClient(f)).GenerateBase(context.Background(), BaseImageRequest{AspectRatio: "1x1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "prompt blocked: SAFETY")
}

func TestTranslate(t *testing.T) {
	tests := []struct {
		name    string
		source  prompt.Bundle
		reply   string
		want    prompt.Bundle
		wantErr string
	}{
		{
			name:   "full bundle",
			source: prompt.Bundle{Primary: "Glow", Secondary: "All season", CTA: "Shop now"},
			reply:  `{"primary":"Strahlen","secondary":"Die ganze Saison","cta":"Jetzt kaufen"}`,
			want:   prompt.Bundle{Primary: "Strahlen", Secondary: "Die ganze Saison", CTA: "Jetzt kaufen"},
		},
		{
			name:   "fenced reply",
			source: prompt.Bundle{Primary: "Glow", CTA: "Shop now"},
			reply:  "```json\n{\"primary\":\"Strahlen\",\"cta\":\"Jetzt kaufen\"}\n```",
			want:   prompt.Bundle{Primary: "Strahlen", CTA: "Jetzt kaufen"},
		},
		{
			name:    "dropped field",
			source:  prompt.Bundle{Primary: "Glow", Secondary: "All season", CTA: "Shop now"},
			reply:   `{"primary":"Strahlen","cta":"Jetzt kaufen"}`,
			wantErr: "secondary",
		},
		{
			name:    "not json",
			source:  prompt.Bundle{Primary: "Glow", CTA: "Shop now"},
			reply:   "Strahlen",
			wantErr: "malformed JSON",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &fakeModels{resp: textResponse(tt.reply)}
			got, err := NewTranslator(testClient(f)).Translate(context.Background(), tt.source, market)
			if tt.wantErr != "" {
				var ext *ExternalServiceError
				require.True(t, errors.As(err, &ext))
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, "application/json", f.calls[0].config.ResponseMIMEType)
		})
	}
}

func TestTranslateSchemaFollowsSource(t *testing.T) {
	f := &fakeModels{resp: textResponse(`{"primary":"a","cta":"b"}`)}
	_, err := NewTranslator(testClient(f)).Translate(context.Background(), prompt.Bundle{Primary: "x", CTA: "y"}, market)
	require.NoError(t, err)

	schema := f.calls[0].config.ResponseSchema
	assert.NotContains(t, schema.Properties, "secondary")
	assert.Equal(t, []string{"primary", "cta"}, schema.Required)
}

func TestDetectLogo(t *testing.T) {
	img := imaging.Image{Data: []byte("x"), MIMEType: "image/png"}

	f := &fakeModels{resp: textResponse(`{"found":true,"confidence":0.92,"location":"bottom-right"}`)}
	var det compliance.Detector = NewVision(testClient(f))
	d, err := det.DetectLogo(context.Background(), img, img)
	require.NoError(t, err)
	assert.Equal(t, compliance.Detection{Found: true, Confidence: 0.92, Location: "bottom-right"}, d)

	f.resp = textResponse(`{"found":true,"confidence":7}`)
	_, err = det.DetectLogo(context.Background(), img, img)
	assert.ErrorContains(t, err, "out of range")
}

func TestAnalyze(t *testing.T) {
	f := &fakeModels{resp: textResponse("## Status\nAll good.\n")}
	out, err := NewAnalyst(testClient(f)).Analyze(context.Background(), []byte("campaign: {}"), []byte(`{"status":"passed"}`), "run log")
	require.NoError(t, err)
	assert.Equal(t, "## Status\nAll good.", out)

	text := f.calls[0].contents[0].Parts[0].Text
	assert.Contains(t, text, "campaign: {}")
	assert.Contains(t, text, `"status":"passed"`)
	assert.NotNil(t, f.calls[0].config.SystemInstruction)
}

func TestTimeoutApplies(t *testing.T) {
	f := &fakeModels{resp: textResponse("{}"), block: true}
	c := testClient(f)
	c.timeout = 10 * time.Millisecond

	_, err := NewAnalyst(c).Analyze(context.Background(), nil, nil, "")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
