package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var (
	aiDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "veriq",
		Subsystem: "ai",
		Name:      "request_duration_seconds",
		Help:      "Duration of reasoning-service requests",
	}, []string{"model", "operation"})

	aiFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "veriq",
		Subsystem: "ai",
		Name:      "request_failures_total",
		Help:      "Number of reasoning-service failures",
	}, []string{"model", "operation"})
)

// OpenAIConfig defines configuration options for the OpenAI-backed collaborators.
type OpenAIConfig struct {
	APIKey      string
	Model       string
	MaxTokens   int
	Temperature float32
	Logger      zerolog.Logger
}

// OpenAIClient implements Assessor and Extractor against the OpenAI chat completion API.
type OpenAIClient struct {
	client *openai.Client
	cfg    OpenAIConfig
	tracer trace.Tracer
	logger zerolog.Logger
}

// NewOpenAIClient builds a new client using the provided configuration.
func NewOpenAIClient(cfg OpenAIConfig) (*OpenAIClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai api key is required")
	}

	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}

	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 1024
	}

	tracer := otel.Tracer("github.com/veriq-app/veriq-go-api/pkg/ai/openai")
	logger := cfg.Logger
	if logger.GetLevel() == zerolog.Disabled {
		logger = zerolog.Nop()
	}

	config := openai.DefaultConfig(cfg.APIKey)
	client := openai.NewClientWithConfig(config)

	return &OpenAIClient{
		client: client,
		cfg:    cfg,
		tracer: tracer,
		logger: logger,
	}, nil
}

// Assess asks the model to judge an answer across the six veracity dimensions.
func (c *OpenAIClient) Assess(parent context.Context, input AssessmentInput) (AssessmentResult, error) {
	ctx, span := c.tracer.Start(parent, "openai.assess", trace.WithAttributes(
		attribute.String("model", c.cfg.Model),
	))
	defer span.End()

	content, err := c.complete(ctx, "assess", assessorSystemPrompt(), buildAssessmentPrompt(input))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return AssessmentResult{}, fmt.Errorf("openai assess: %w", err)
	}

	var result AssessmentResult
	if err := json.Unmarshal([]byte(content), &result); err != nil {
		aiFailures.WithLabelValues(c.cfg.Model, "assess").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "parse_failed")
		return AssessmentResult{}, fmt.Errorf("parse assessment json: %w", err)
	}

	clampDimension(&result.Identity)
	clampDimension(&result.ProfileMatch)
	clampDimension(&result.AnswerQuality)
	clampDimension(&result.Documents)
	clampDimension(&result.Contradiction)
	clampDimension(&result.Corroboration)

	return result, nil
}

// Extract pulls companies, industries, topics and requirements out of question text.
func (c *OpenAIClient) Extract(parent context.Context, questionText string) (Extraction, error) {
	ctx, span := c.tracer.Start(parent, "openai.extract", trace.WithAttributes(
		attribute.String("model", c.cfg.Model),
	))
	defer span.End()

	content, err := c.complete(ctx, "extract", extractorSystemPrompt(), questionText)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Extraction{}, fmt.Errorf("openai extract: %w", err)
	}

	var result Extraction
	if err := json.Unmarshal([]byte(content), &result); err != nil {
		aiFailures.WithLabelValues(c.cfg.Model, "extract").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "parse_failed")
		return Extraction{}, fmt.Errorf("parse extraction json: %w", err)
	}

	return result, nil
}

func (c *OpenAIClient) complete(ctx context.Context, operation, system, user string) (string, error) {
	start := time.Now()
	request := openai.ChatCompletionRequest{
		Model:       c.cfg.Model,
		MaxTokens:   c.cfg.MaxTokens,
		Temperature: c.cfg.Temperature,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: system,
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: user,
			},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject},
	}

	resp, err := c.client.CreateChatCompletion(ctx, request)
	aiDuration.WithLabelValues(c.cfg.Model, operation).Observe(time.Since(start).Seconds())
	if err != nil {
		aiFailures.WithLabelValues(c.cfg.Model, operation).Inc()
		return "", err
	}

	if len(resp.Choices) == 0 {
		aiFailures.WithLabelValues(c.cfg.Model, operation).Inc()
		return "", fmt.Errorf("no choices returned from openai")
	}

	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func clampDimension(d *Dimension) {
	if d.Score < 0 {
		d.Score = 0
	}
	if d.Score > 100 {
		d.Score = 100
	}
}

func assessorSystemPrompt() string {
	return "You are a research-answer verification engine. Judge the submitted answer on six dimensions: identity, profile_ma" +
		"tch, answer_quality, documents, contradiction, corroboration. Respond with a JSON object keyed by those names, each hol" +
		"ding score (0-100), evidence (what you actually found), and optional flags. For contradiction, a high score means NO co" +
		"ntradicting evidence was found. For corroboration, a high score means independent corroborating evidence exists."
}

func extractorSystemPrompt() string {
	return "You extract structured requirements from research questions. Respond with a JSON object containing companies, indu" +
		"stries, topics (string arrays), geography, seniority_required and functional_expertise (strings). Use empty values when" +
		" the question carries no signal for a field."
}

func buildAssessmentPrompt(input AssessmentInput) string {
	builder := strings.Builder{}
	builder.WriteString("# Question\n")
	builder.WriteString(input.QuestionText)
	builder.WriteString("\n\n## Answer\n")
	builder.WriteString(input.AnswerContent)
	if len(input.Sources) > 0 {
		builder.WriteString("\n\n## Cited Sources\n")
		builder.WriteString(strings.Join(input.Sources, "\n"))
	}
	if len(input.DocumentURLs) > 0 {
		builder.WriteString("\n\n## Supporting Documents\n")
		builder.WriteString(strings.Join(input.DocumentURLs, "\n"))
	}
	builder.WriteString("\n\n## Author Profile\n")
	builder.WriteString(fmt.Sprintf("Name: %s\nEmployer: %s\nIndustry: %s\nExpertise: %s\n",
		input.ExpertName, input.ExpertEmployer, input.ExpertIndustry, strings.Join(input.ExpertTags, ", ")))
	builder.WriteString("\nReturn JSON.")
	return builder.String()
}
