package ai

import (
	"context"
	"fmt"
	"log"
	"time"

	"document-rag-platform/internal/config"
	"document-rag-platform/internal/telemetry"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/time/rate"
	"google.golang.org/api/option"

	genai "github.com/google/generative-ai-go/genai"
)

// Client wraps the Gemini SDK with a circuit breaker and a request rate
// limiter sized to the account tier. One Client serves both embeddings and
// completions; it is safe for concurrent use.
type Client struct {
	cfg         *config.Config
	client      *genai.Client
	breaker     *gobreaker.CircuitBreaker
	rateLimiter *rate.Limiter
	metrics     *telemetry.Metrics
}

type RateLimits struct {
	RPM int // Requests per minute
	TPM int // Tokens per minute
	RPD int // Requests per day
}

func NewClient(ctx context.Context, cfg *config.Config, metrics *telemetry.Metrics) (*Client, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.GeminiAPIKey))
	if err != nil {
		return nil, err
	}

	limits := getRateLimits(cfg.GeminiTier)

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "GeminiAPI",
		MaxRequests: 5,
		Interval:    10 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log.Printf("Circuit breaker %s: %s -> %s", name, from, to)
			if metrics != nil {
				metrics.RecordCircuitBreakerState("gemini", to.String())
			}
		},
	})

	// RPM limit with some buffer
	rateLimiter := rate.NewLimiter(rate.Limit(float64(limits.RPM)*0.9/60.0), limits.RPM/10)

	return &Client{
		cfg:         cfg,
		client:      client,
		breaker:     breaker,
		rateLimiter: rateLimiter,
		metrics:     metrics,
	}, nil
}

func getRateLimits(tier string) RateLimits {
	switch tier {
	case "free":
		return RateLimits{RPM: 10, TPM: 250000, RPD: 250}
	case "tier1":
		return RateLimits{RPM: 1000, TPM: 1000000, RPD: 10000}
	case "tier2":
		return RateLimits{RPM: 2000, TPM: 4000000, RPD: 50000}
	default:
		return RateLimits{RPM: 10, TPM: 250000, RPD: 250}
	}
}

// Embed returns an embedding vector for the given text. The dimensionality
// is constant for a given embeddings model configuration.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	tracer := otel.Tracer("gemini-client")
	ctx, span := tracer.Start(ctx, "gemini.embed")
	defer span.End()
	span.SetAttributes(
		attribute.String("gemini.model", c.cfg.EmbeddingsModel),
		attribute.Int("gemini.text_chars", len(text)),
	)

	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, &ProviderError{Op: "embed", Err: err}
	}

	result, err := c.breaker.Execute(func() (interface{}, error) {
		model := c.client.EmbeddingModel(c.cfg.EmbeddingsModel)
		resp, err := model.EmbedContent(ctx, genai.Text(text))
		if err != nil {
			return nil, err
		}
		if resp.Embedding == nil || len(resp.Embedding.Values) == 0 {
			return nil, fmt.Errorf("no embedding returned")
		}
		return resp.Embedding.Values, nil
	})
	if err != nil {
		span.SetAttributes(attribute.Bool("gemini.error", true))
		return nil, &ProviderError{Op: "embed", Err: err}
	}

	return result.([]float32), nil
}

// Complete sends system instructions and user text to the named generative
// model and returns the normalized completion.
func (c *Client) Complete(ctx context.Context, modelName, system, user string) (*Completion, error) {
	tracer := otel.Tracer("gemini-client")
	ctx, span := tracer.Start(ctx, "gemini.generate_content")
	defer span.End()
	span.SetAttributes(
		attribute.String("gemini.model", modelName),
		attribute.Int("gemini.prompt_chars", len(system)+len(user)),
	)

	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, &ProviderError{Op: "complete", Err: err}
	}

	result, err := c.breaker.Execute(func() (interface{}, error) {
		model := c.client.GenerativeModel(modelName)
		model.SetTemperature(0.0)
		model.SetMaxOutputTokens(500)
		if system != "" {
			model.SystemInstruction = &genai.Content{
				Parts: []genai.Part{genai.Text(system)},
			}
		}

		resp, err := model.GenerateContent(ctx, genai.Text(user))
		if err != nil {
			return nil, err
		}
		return resp, nil
	})
	if err != nil {
		span.SetAttributes(attribute.Bool("gemini.error", true))
		return nil, &ProviderError{Op: "complete", Err: err}
	}

	resp := result.(*genai.GenerateContentResponse)
	if c.metrics != nil && resp.UsageMetadata != nil {
		c.metrics.RecordTokensUsed(int64(resp.UsageMetadata.TotalTokenCount), modelName)
	}

	completion := completionFromResponse(resp)
	if len(completion.Candidates) > 0 {
		span.SetAttributes(attribute.String("gemini.finish_reason", completion.Candidates[0].Reason.String()))
	}
	return completion, nil
}

// Close the underlying SDK client.
func (c *Client) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}
