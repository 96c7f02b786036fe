package llm

import (
	"context"
	"fmt"

	"github.com/openclaw/hybridmem/internal/logging"

	"google.golang.org/genai"
)

// maxBatchSize is the largest batch the GenAI embed API accepts in one call.
const maxBatchSize = 100

func int32Ptr(i int32) *int32 { return &i }

// GenAIEmbedder generates embeddings via Google's Gemini API.
type GenAIEmbedder struct {
	client   *genai.Client
	model    string
	taskType string
}

// NewGenAIEmbedder creates an Embedder backed by google.golang.org/genai.
func NewGenAIEmbedder(apiKey, model, taskType string) (*GenAIEmbedder, error) {
	timer := logging.StartTimer(logging.CategoryLLM, "NewGenAIEmbedder")
	defer timer.Stop()

	if apiKey == "" {
		return nil, fmt.Errorf("genai API key is required")
	}
	if model == "" {
		model = "gemini-embedding-001"
	}
	if taskType == "" {
		taskType = "SEMANTIC_SIMILARITY"
	}

	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	logging.LLM("genai embedder ready: model=%s task_type=%s", model, taskType)
	return &GenAIEmbedder{client: client, model: model, taskType: taskType}, nil
}

func (e *GenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	timer := logging.StartTimer(logging.CategoryLLM, "GenAI.Embed")
	defer timer.Stop()

	contents := []*genai.Content{genai.NewContentFromText(text, genai.RoleUser)}

	result, err := e.client.Models.EmbedContent(ctx, e.model, contents, &genai.EmbedContentConfig{
		OutputDimensionality: int32Ptr(3072),
	})
	if err != nil {
		return nil, fmt.Errorf("genai embed failed: %w", err)
	}
	if len(result.Embeddings) == 0 {
		return nil, fmt.Errorf("genai returned no embeddings")
	}

	return result.Embeddings[0].Values, nil
}

func (e *GenAIEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	timer := logging.StartTimer(logging.CategoryLLM, "GenAI.EmbedBatch")
	defer timer.Stop()

	if len(texts) == 0 {
		return nil, nil
	}

	if len(texts) <= maxBatchSize {
		return e.embedChunk(ctx, texts)
	}

	numBatches := (len(texts) + maxBatchSize - 1) / maxBatchSize
	all := make([][]float32, 0, len(texts))

	for b := 0; b < numBatches; b++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		start := b * maxBatchSize
		end := start + maxBatchSize
		if end > len(texts) {
			end = len(texts)
		}

		chunk, err := e.embedChunk(ctx, texts[start:end])
		if err != nil {
			return nil, fmt.Errorf("batch %d/%d: %w", b+1, numBatches, err)
		}
		all = append(all, chunk...)
	}

	return all, nil
}

func (e *GenAIEmbedder) embedChunk(ctx context.Context, texts []string) ([][]float32, error) {
	contents := make([]*genai.Content, len(texts))
	for i, t := range texts {
		contents[i] = genai.NewContentFromText(t, genai.RoleUser)
	}

	result, err := e.client.Models.EmbedContent(ctx, e.model, contents, &genai.EmbedContentConfig{
		OutputDimensionality: int32Ptr(3072),
	})
	if err != nil {
		return nil, fmt.Errorf("genai batch embed failed: %w", err)
	}

	out := make([][]float32, len(result.Embeddings))
	for i, emb := range result.Embeddings {
		out[i] = emb.Values
	}
	return out, nil
}

func (e *GenAIEmbedder) Dimensions() int { return 3072 }
func (e *GenAIEmbedder) Name() string    { return fmt.Sprintf("genai:%s", e.model) }

// GenAIChat completes prompts via Gemini's generateContent API.
type GenAIChat struct {
	client *genai.Client
	model  string
}

// NewGenAIChat creates a Chat backed by google.golang.org/genai.
func NewGenAIChat(apiKey, model string) (*GenAIChat, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("genai API key is required")
	}
	if model == "" {
		model = "gemini-2.0-flash"
	}

	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	return &GenAIChat{client: client, model: model}, nil
}

func (c *GenAIChat) Complete(ctx context.Context, model, prompt string, temperature float64, maxTokens int) (string, error) {
	timer := logging.StartTimer(logging.CategoryLLM, "GenAI.Complete")
	defer timer.Stop()

	if model == "" {
		model = c.model
	}

	temp := float32(temperature)
	maxOut := int32(maxTokens)

	result, err := c.client.Models.GenerateContent(ctx, model,
		[]*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)},
		&genai.GenerateContentConfig{
			Temperature:     &temp,
			MaxOutputTokens: maxOut,
		},
	)
	if err != nil {
		return "", fmt.Errorf("genai generate failed: %w", err)
	}

	return result.Text(), nil
}
