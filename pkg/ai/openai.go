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
		Namespace: "ora",
		Subsystem: "ai",
		Name:      "grading_duration_seconds",
		Help:      "Duration of AI grading requests",
	}, []string{"model"})

	aiFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ora",
		Subsystem: "ai",
		Name:      "grading_failures_total",
		Help:      "Number of AI grading failures",
	}, []string{"model"})
)

// OpenAIConfig defines configuration options for the OpenAI grader.
type OpenAIConfig struct {
	APIKey      string
	Model       string
	MaxTokens   int
	Temperature float32
	Logger      zerolog.Logger
}

// OpenAIGrader implements Grader against the OpenAI chat completion API.
type OpenAIGrader struct {
	client *openai.Client
	cfg    OpenAIConfig
	tracer trace.Tracer
	logger zerolog.Logger
}

// NewOpenAIGrader builds a grader using the provided configuration.
func NewOpenAIGrader(cfg OpenAIConfig) (*OpenAIGrader, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai api key is required")
	}

	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}

	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 512
	}

	tracer := otel.Tracer("github.com/noah-isme/ora-go-api/pkg/ai/openai")
	logger := cfg.Logger
	if logger.GetLevel() == zerolog.Disabled {
		logger = zerolog.Nop()
	}

	config := openai.DefaultConfig(cfg.APIKey)
	client := openai.NewClientWithConfig(config)

	return &OpenAIGrader{
		client: client,
		cfg:    cfg,
		tracer: tracer,
		logger: logger,
	}, nil
}

// Grade sends the grading request to OpenAI and parses the structured response.
func (g *OpenAIGrader) Grade(parent context.Context, input GradingInput) (GradingResult, error) {
	ctx, span := g.tracer.Start(parent, "openai.grade", trace.WithAttributes(
		attribute.String("model", g.cfg.Model),
	))
	defer span.End()

	start := time.Now()
	request := openai.ChatCompletionRequest{
		Model:       g.cfg.Model,
		MaxTokens:   g.cfg.MaxTokens,
		Temperature: g.cfg.Temperature,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: graderSystemPrompt(),
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: buildGraderPrompt(input),
			},
		},
	}

	response, err := g.client.CreateChatCompletion(ctx, request)
	aiDuration.WithLabelValues(g.cfg.Model).Observe(time.Since(start).Seconds())
	if err != nil {
		aiFailures.WithLabelValues(g.cfg.Model).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "chat completion failed")
		return GradingResult{}, fmt.Errorf("openai grading failed: %w", err)
	}

	if len(response.Choices) == 0 {
		aiFailures.WithLabelValues(g.cfg.Model).Inc()
		return GradingResult{}, fmt.Errorf("openai returned no choices")
	}

	result, err := parseGradingResult(response.Choices[0].Message.Content)
	if err != nil {
		aiFailures.WithLabelValues(g.cfg.Model).Inc()
		span.RecordError(err)
		return GradingResult{}, err
	}

	g.logger.Debug().
		Str("model", g.cfg.Model).
		Int("criteria", len(input.Criteria)).
		Msg("ai grading completed")

	return result, nil
}

func graderSystemPrompt() string {
	return strings.TrimSpace(`
You are a strict grader for open response assessments. You receive a question
prompt, a student's answer and a rubric. For each rubric criterion you select
exactly one option by name. Respond with JSON only, in the form:
{"options_selected": {"<criterion name>": "<option name>"}, "feedback": "<short overall feedback>"}
Do not add any text outside the JSON object.`)
}

func buildGraderPrompt(input GradingInput) string {
	var builder strings.Builder

	if input.ItemPrompt != "" {
		builder.WriteString("Question:\n")
		builder.WriteString(input.ItemPrompt)
		builder.WriteString("\n\n")
	}

	builder.WriteString("Student answer:\n")
	builder.Write(input.Answer)
	builder.WriteString("\n\nRubric:\n")

	for _, criterion := range input.Criteria {
		builder.WriteString(fmt.Sprintf("- Criterion %q", criterion.Name))
		if criterion.Prompt != "" {
			builder.WriteString(": " + criterion.Prompt)
		}
		builder.WriteString("\n")
		for _, option := range criterion.Options {
			builder.WriteString(fmt.Sprintf("  - Option %q (%d points)", option.Name, option.Points))
			if option.Explanation != "" {
				builder.WriteString(": " + option.Explanation)
			}
			builder.WriteString("\n")
		}
	}

	return builder.String()
}

func parseGradingResult(content string) (GradingResult, error) {
	cleaned := strings.TrimSpace(content)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = strings.TrimSpace(cleaned)

	var result GradingResult
	if err := json.Unmarshal([]byte(cleaned), &result); err != nil {
		return GradingResult{}, fmt.Errorf("failed to parse grading response: %w", err)
	}
	if len(result.OptionsSelected) == 0 {
		return GradingResult{}, fmt.Errorf("grading response selected no options")
	}

	return result, nil
}
