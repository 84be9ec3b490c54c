// Package gemini implements the generative collaborators on top of the Google
// GenAI SDK: base image generation, localized overlays, message translation,
// logo detection and post-run analysis.
package gemini

import (
	"context"
	"fmt"
	"sync"
	"time"

	"google.golang.org/genai"

	"github.com/jgueth/campaign-automation/internal/config"
	"github.com/jgueth/campaign-automation/internal/logging"
)

// ExternalServiceError reports a failed call to a generative collaborator.
type ExternalServiceError struct {
	Service string
	Op      string
	Model   string
	Err     error
}

func (e *ExternalServiceError) Error() string {
	return fmt.Sprintf("%s %s (model %s) failed: %v", e.Service, e.Op, e.Model, e.Err)
}

func (e *ExternalServiceError) Unwrap() error { return e.Err }

// ModelAPI is the subset of the GenAI models service the collaborators use.
type ModelAPI interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Client creates the GenAI client on first use so runs that never reach a
// generative stage never need an API key.
type Client struct {
	cfg     config.GeminiConfig
	creds   *config.Credentials
	timeout time.Duration

	mu     sync.Mutex
	models ModelAPI
}

// NewClient returns a lazily connected client.
func NewClient(cfg config.GeminiConfig, creds *config.Credentials, timeout time.Duration) *Client {
	return &Client{cfg: cfg, creds: creds, timeout: timeout}
}

// NewClientWithModels wraps an existing ModelAPI, mainly for tests.
func NewClientWithModels(cfg config.GeminiConfig, models ModelAPI) *Client {
	return &Client{cfg: cfg, models: models}
}

func (c *Client) api(ctx context.Context) (ModelAPI, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.models != nil {
		return c.models, nil
	}

	apiKey, err := c.creds.Require(config.KeyGeminiAPIKey)
	if err != nil {
		return nil, err
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      apiKey,
		Backend:     genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{BaseURL: c.cfg.BaseURL},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	logging.Get(logging.CategoryGemini).Debug("GenAI client created")
	c.models = client.Models
	return c.models, nil
}

// generate performs one GenerateContent call under the per-call timeout and
// wraps every failure in an ExternalServiceError.
func (c *Client) generate(ctx context.Context, op, model string, parts []*genai.Part, gc *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	api, err := c.api(ctx)
	if err != nil {
		return nil, err
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	timer := logging.StartTimer(logging.CategoryGemini, op)
	resp, err := api.GenerateContent(ctx, model, []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}, gc)
	timer.StopWithThreshold(30 * time.Second)
	if err != nil {
		return nil, &ExternalServiceError{Service: "gemini", Op: op, Model: model, Err: err}
	}
	if resp == nil || len(resp.Candidates) == 0 {
		reason := "no candidates"
		if resp != nil && resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
			reason = "prompt blocked: " + string(resp.PromptFeedback.BlockReason)
		}
		return nil, &ExternalServiceError{Service: "gemini", Op: op, Model: model, Err: fmt.Errorf("empty response (%s)", reason)}
	}
	return resp, nil
}
