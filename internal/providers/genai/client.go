// Package genai adapts the Google Gen AI SDK to the generation and embedding
// contracts used by the pipeline.
package genai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/rs/zerolog"
	"google.golang.org/genai"

	"postgen/internal/domain"
)

const (
	DefaultModel          = "gemini-1.5-flash"
	DefaultEmbeddingModel = "gemini-embedding-001"
	DefaultTemperature    = 0.7

	taskRetrievalQuery    = "RETRIEVAL_QUERY"
	taskRetrievalDocument = "RETRIEVAL_DOCUMENT"
)

// ErrMissingAPIKey is returned by New when no key is configured.
var ErrMissingAPIKey = errors.New("genai: api key is required")

// Options controls how the Gemini client is configured.
type Options struct {
	APIKey         string
	BaseURL        string
	Model          string
	EmbeddingModel string
	Temperature    float64
	HTTPClient     *http.Client
	Logger         zerolog.Logger
}

// Client implements domain.TextGenerator, domain.Embedder and
// domain.HealthChecker on top of one SDK client.
type Client struct {
	client         *genai.Client
	model          string
	embeddingModel string
	temperature    float32
	logger         zerolog.Logger
}

func New(ctx context.Context, opts Options) (*Client, error) {
	apiKey := strings.TrimSpace(opts.APIKey)
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = DefaultModel
	}
	embeddingModel := strings.TrimSpace(opts.EmbeddingModel)
	if embeddingModel == "" {
		embeddingModel = DefaultEmbeddingModel
	}
	temperature := opts.Temperature
	if temperature <= 0 {
		temperature = DefaultTemperature
	}

	cfg := &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: opts.HTTPClient,
	}
	if base := strings.TrimSpace(opts.BaseURL); base != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: strings.TrimRight(base, "/") + "/"}
	}
	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("genai: create client: %w", err)
	}

	return &Client{
		client:         client,
		model:          model,
		embeddingModel: embeddingModel,
		temperature:    float32(temperature),
		logger:         opts.Logger.With().Str("provider", "gemini").Logger(),
	}, nil
}

// Generate sends the system directive as the system instruction and the
// user directive as the only turn.
func (c *Client) Generate(ctx context.Context, prompt domain.Prompt) (string, error) {
	cfg := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(c.temperature),
	}
	if strings.TrimSpace(prompt.System) != "" {
		cfg.SystemInstruction = genai.NewContentFromText(prompt.System, genai.RoleUser)
	}

	resp, err := c.client.Models.GenerateContent(ctx, c.model, genai.Text(prompt.User), cfg)
	if err != nil {
		return "", fmt.Errorf("genai: generate content: %w", err)
	}
	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		reason := "no candidates"
		if len(resp.Candidates) > 0 {
			reason = string(resp.Candidates[0].FinishReason)
		}
		return "", fmt.Errorf("genai: empty response (%s)", reason)
	}
	c.logger.Debug().Str("model", c.model).Int("chars", len(text)).Msg("generated")
	return text, nil
}

// Embed produces a query embedding.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	return c.embed(ctx, text, taskRetrievalQuery)
}

// EmbedDocument produces an embedding suitable for indexing.
func (c *Client) EmbedDocument(ctx context.Context, text string) ([]float32, error) {
	return c.embed(ctx, text, taskRetrievalDocument)
}

// Documents returns an Embedder that indexes rather than queries.
func (c *Client) Documents() domain.Embedder {
	return documentEmbedder{c: c}
}

func (c *Client) embed(ctx context.Context, text, task string) ([]float32, error) {
	contents := []*genai.Content{genai.NewContentFromText(text, genai.RoleUser)}
	resp, err := c.client.Models.EmbedContent(ctx, c.embeddingModel, contents, &genai.EmbedContentConfig{TaskType: task})
	if err != nil {
		return nil, fmt.Errorf("genai: embed content: %w", err)
	}
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Values) == 0 {
		return nil, errors.New("genai: no embeddings returned")
	}
	return resp.Embeddings[0].Values, nil
}

// HealthCheck verifies the key and the model by fetching the model metadata.
func (c *Client) HealthCheck(ctx context.Context) error {
	if _, err := c.client.Models.Get(ctx, c.model, nil); err != nil {
		return fmt.Errorf("genai: get model %s: %w", c.model, err)
	}
	return nil
}

type documentEmbedder struct {
	c *Client
}

func (d documentEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return d.c.EmbedDocument(ctx, text)
}

// Unavailable stands in for a client that could not be created. Every call
// fails with Err.
type Unavailable struct {
	Err error
}

func (u Unavailable) Generate(context.Context, domain.Prompt) (string, error) { return "", u.Err }
func (u Unavailable) Embed(context.Context, string) ([]float32, error)        { return nil, u.Err }

var (
	_ domain.TextGenerator = (*Client)(nil)
	_ domain.Embedder      = (*Client)(nil)
	_ domain.HealthChecker = (*Client)(nil)
)
