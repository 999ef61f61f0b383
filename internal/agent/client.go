// Package agent talks to external reasoning services for a second opinion on
// a chart, and owns the embedding client the semantic backend uses. Every
// response is treated as untrusted until it survives verdict validation.
package agent

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/lynkerai/truechart/internal/storage/models"
	"github.com/lynkerai/truechart/pkg/circuitbreaker"
	"github.com/lynkerai/truechart/pkg/logger"
	"github.com/lynkerai/truechart/pkg/retry"
)

// Provider is one reasoning service. Judge returns the raw response text;
// parsing and validation happen in the caller so every provider is held to
// the same schema.
type Provider interface {
	Name() string
	Judge(ctx context.Context, prompt string) (string, error)
}

const judgeSystemPrompt = `You are a destiny-chart analyst. Given a birth chart and a narrated life history,
judge how well the chart explains the life.

Return JSON only:
{"confidence": "high|mid|low", "supporting_points": ["..."], "conflicting_points": ["..."], "summary": "one short paragraph"}`

// OpenAIProvider wraps the OpenAI chat API behind a circuit breaker and
// retry. It also serves as the embedding client.
type OpenAIProvider struct {
	client      *openai.Client
	model       string
	embedModel  string
	temperature float32
	maxTokens   int
	timeout     time.Duration
	cb          *circuitbreaker.CircuitBreaker
	retryConfig retry.Config
}

func NewOpenAIProvider(apiKey, model, embedModel string, temperature float32, maxTokens, timeoutSec int) *OpenAIProvider {
	cb := circuitbreaker.New("reasoning-agent", circuitbreaker.Config{
		MaxRequests:      5,
		Interval:         time.Minute,
		Timeout:          30 * time.Second,
		FailureThreshold: 5,
		SuccessThreshold: 2,
		Logger:           logger.GetLogger(),
	})

	retryConfig := retry.Config{
		MaxAttempts:    3,
		InitialDelay:   500 * time.Millisecond,
		MaxDelay:       5 * time.Second,
		Multiplier:     2.0,
		JitterFraction: 0.1,
		Logger:         logger.GetLogger(),
	}

	if timeoutSec <= 0 {
		timeoutSec = 30
	}

	logger.Info("Reasoning agent client initialized",
		zap.String("model", model),
		zap.String("embedding_model", embedModel),
	)

	return &OpenAIProvider{
		client:      openai.NewClient(apiKey),
		model:       model,
		embedModel:  embedModel,
		temperature: temperature,
		maxTokens:   maxTokens,
		timeout:     time.Duration(timeoutSec) * time.Second,
		cb:          cb,
		retryConfig: retryConfig,
	}
}

func (p *OpenAIProvider) Name() string { return "openai" }

func (p *OpenAIProvider) Judge(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	var content string

	err := p.cb.Execute(ctx, func() error {
		var err error
		content, err = retry.DoWithResult(ctx, p.retryConfig, func() (string, error) {
			resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
				Model: p.model,
				Messages: []openai.ChatCompletionMessage{
					{Role: openai.ChatMessageRoleSystem, Content: judgeSystemPrompt},
					{Role: openai.ChatMessageRoleUser, Content: prompt},
				},
				Temperature: p.temperature,
				MaxTokens:   p.maxTokens,
			})
			if err != nil {
				return "", fmt.Errorf("failed to create completion: %w", err)
			}
			if len(resp.Choices) == 0 {
				return "", fmt.Errorf("completion returned no choices")
			}

			return resp.Choices[0].Message.Content, nil
		})
		return err
	})
	if err != nil {
		return "", err
	}

	return content, nil
}

func (p *OpenAIProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := p.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (p *OpenAIProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	var embeddings [][]float32

	err := p.cb.Execute(ctx, func() error {
		var err error
		embeddings, err = retry.DoWithResult(ctx, p.retryConfig, func() ([][]float32, error) {
			resp, err := p.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
				Input: texts,
				Model: openai.EmbeddingModel(p.embedModel),
			})
			if err != nil {
				return nil, fmt.Errorf("failed to generate embeddings: %w", err)
			}

			vectors := make([][]float32, 0, len(resp.Data))
			for _, data := range resp.Data {
				vector := make([]float32, len(data.Embedding))
				copy(vector, data.Embedding)
				vectors = append(vectors, vector)
			}
			return vectors, nil
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	if len(embeddings) != len(texts) {
		return nil, fmt.Errorf("embedding count mismatch: got %d, expected %d", len(embeddings), len(texts))
	}

	return embeddings, nil
}

// JudgePrompt renders the chart and profile into the user prompt shared by
// every provider in the chain.
func JudgePrompt(chart *models.Chart, profile *models.LifeProfile) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Chart %s (born %s, source %s)\n", chart.ID, chart.BirthDatetime, chart.SourceTag)
	names := make([]string, 0, len(chart.Fields))
	for name := range chart.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(&b, "- %s: %s\n", name, chart.Fields[name])
	}
	if chart.Notes != "" {
		fmt.Fprintf(&b, "Notes: %s\n", chart.Notes)
	}

	fmt.Fprintf(&b, "\nLife history of subject %s:\n", profile.SubjectID)
	for _, ev := range profile.Events {
		fmt.Fprintf(&b, "- %s\n", ev.Description)
	}

	return b.String()
}
