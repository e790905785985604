package agent

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"cloud.google.com/go/civil"
	"github.com/invopop/jsonschema"
	openai "github.com/sashabaranov/go-openai"

	"hr-agent/internal/apperr"
)

// Response format modes for OpenAI-compatible endpoints. NIM and most local
// gateways accept json_object; json_schema is stricter where supported.
const (
	FormatJSONSchema = "json_schema"
	FormatJSONObject = "json_object"
	FormatText       = "text"
)

type OpenAIOptions struct {
	APIKey      string
	BaseURL     string
	Model       string
	Timeout     time.Duration
	Temperature float32
	MaxTokens   int
	Format      string
	Policy      Policy
	HTTPClient  *http.Client
}

// OpenAIReasoner calls any OpenAI-compatible chat completions endpoint.
type OpenAIReasoner struct {
	opts   OpenAIOptions
	client *openai.Client
}

func NewOpenAIReasoner(opts OpenAIOptions) *OpenAIReasoner {
	opts.APIKey = strings.TrimSpace(opts.APIKey)
	opts.BaseURL = strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = 1200
	}
	switch opts.Format {
	case FormatJSONSchema, FormatJSONObject, FormatText:
	default:
		opts.Format = FormatJSONObject
	}
	cfg := openai.DefaultConfig(opts.APIKey)
	if opts.BaseURL != "" {
		cfg.BaseURL = opts.BaseURL
	}
	if opts.HTTPClient != nil {
		cfg.HTTPClient = opts.HTTPClient
	}
	return &OpenAIReasoner{opts: opts, client: openai.NewClientWithConfig(cfg)}
}

func (o *OpenAIReasoner) ClassifyPlanActNotify(ctx context.Context, prompt string, today civil.Date) (Result, error) {
	if o.opts.APIKey == "" {
		return Result{}, apperr.New(apperr.CodeConfiguration, "API key is not defined in the environment").WithDetail("provider=openai")
	}
	if strings.TrimSpace(o.opts.Model) == "" {
		return Result{}, apperr.New(apperr.CodeConfiguration, "model is required").WithDetail("provider=openai")
	}
	system, err := SystemInstruction(o.opts.Policy, today)
	if err != nil {
		return Result{}, err
	}
	if o.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.opts.Timeout)
		defer cancel()
	}

	req := openai.ChatCompletionRequest{
		Model: o.opts.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: o.opts.Temperature,
		MaxTokens:   o.opts.MaxTokens,
	}
	switch o.opts.Format {
	case FormatJSONSchema:
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
				Name:   "agent_result",
				Schema: ResultJSONSchema(),
			},
		}
	case FormatJSONObject:
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject}
	}

	resp, err := o.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return Result{}, apperr.Wrap(apperr.CodeCollaborator, "chat completion", err)
	}
	if len(resp.Choices) == 0 {
		return Result{}, apperr.New(apperr.CodeCollaboratorEmpty, "empty chat choices")
	}
	return Decode(resp.Choices[0].Message.Content)
}

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
)

// ResultJSONSchema reflects the Result document into a JSON Schema.
func ResultJSONSchema() *jsonschema.Schema {
	schemaOnce.Do(func() {
		r := &jsonschema.Reflector{
			AllowAdditionalProperties: false,
			DoNotReference:            true,
			ExpandedStruct:            true,
		}
		schema = r.Reflect(&Result{})
		schema.Title = "Agent Result"
		schema.Description = "Intent, plan, action and response produced for one user message"
	})
	return schema
}
