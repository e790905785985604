package agent

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"cloud.google.com/go/civil"
	"google.golang.org/genai"

	"hr-agent/internal/apperr"
)

const defaultGeminiModel = "gemini-2.5-flash"

// GeminiReasoner calls the Gemini API with a response schema so the model
// answers with a Result document.
type GeminiReasoner struct {
	apiKey      string
	model       string
	baseURL     string
	timeout     time.Duration
	temperature float32
	policy      Policy
	httpClient  *http.Client

	mu     sync.Mutex
	client *genai.Client
}

type GeminiOptions struct {
	APIKey      string
	Model       string
	BaseURL     string
	Timeout     time.Duration
	Temperature float32
	Policy      Policy
	HTTPClient  *http.Client
}

func NewGeminiReasoner(opts GeminiOptions) *GeminiReasoner {
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = defaultGeminiModel
	}
	return &GeminiReasoner{
		apiKey:      strings.TrimSpace(opts.APIKey),
		model:       model,
		baseURL:     strings.TrimSpace(opts.BaseURL),
		timeout:     opts.Timeout,
		temperature: opts.Temperature,
		policy:      opts.Policy,
		httpClient:  opts.HTTPClient,
	}
}

func (g *GeminiReasoner) ClassifyPlanActNotify(ctx context.Context, prompt string, today civil.Date) (Result, error) {
	client, err := g.ensureClient(ctx)
	if err != nil {
		return Result{}, err
	}
	system, err := SystemInstruction(g.policy, today)
	if err != nil {
		return Result{}, err
	}
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	resp, err := client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(system, genai.RoleUser),
		Temperature:       genai.Ptr(g.temperature),
		ResponseMIMEType:  "application/json",
		ResponseSchema:    resultSchema(),
	})
	if err != nil {
		return Result{}, apperr.Wrap(apperr.CodeCollaborator, "gemini generate content", err)
	}
	return Decode(resp.Text())
}

func (g *GeminiReasoner) ensureClient(ctx context.Context) (*genai.Client, error) {
	if g.apiKey == "" {
		return nil, apperr.New(apperr.CodeConfiguration, "API_KEY is not defined in the environment").WithDetail("provider=gemini")
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.client != nil {
		return g.client, nil
	}
	cfg := &genai.ClientConfig{
		APIKey:     g.apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: g.httpClient,
	}
	if g.baseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: g.baseURL}
	}
	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeConfiguration, "create gemini client", err)
	}
	g.client = client
	return client, nil
}

func resultSchema() *genai.Schema {
	str := func() *genai.Schema { return &genai.Schema{Type: genai.TypeString} }
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"intent": str(),
			"plan": {
				Type:  genai.TypeArray,
				Items: str(),
			},
			"action":   str(),
			"response": str(),
			"leaveDetails": {
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"startDate": str(),
					"endDate":   str(),
					"leaveType": str(),
				},
			},
		},
		Required: []string{"intent", "plan", "action", "response"},
	}
}
