package agent

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"text/template"

	"cloud.google.com/go/civil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hr-agent/internal/apperr"
)

var today = civil.Date{Year: 2025, Month: 12, Day: 15}

const leaveBody = `{"intent":"Leave Request","plan":["Calculate working days","Check balance"],"action":"Validating leave request","response":"Your leave is drafted.","leaveDetails":{"startDate":"2025-12-16","endDate":"2025-12-18","leaveType":"Annual Leave"}}`

func TestDecode(t *testing.T) {
	res, err := Decode("```json\n" + leaveBody + "\n```")
	require.NoError(t, err)
	assert.Equal(t, "Leave Request", res.Intent)
	assert.Equal(t, []string{"Calculate working days", "Check balance"}, res.Plan)
	require.NotNil(t, res.LeaveDetails)
	assert.Equal(t, "2025-12-16", res.LeaveDetails.Proposal().StartDate)
}

func TestDecodeDropsEmptyLeaveDetails(t *testing.T) {
	res, err := Decode(`{"intent":"HR Policy Inquiry","plan":["Look up policy"],"action":"Reading handbook","response":"Here it is.","leaveDetails":{}}`)
	require.NoError(t, err)
	assert.Nil(t, res.LeaveDetails)
	assert.True(t, res.LeaveDetails.Proposal().IsEmpty())
}

func TestDecodeErrors(t *testing.T) {
	cases := []struct {
		name string
		body string
		code int
	}{
		{"empty", "  ", apperr.CodeCollaboratorEmpty},
		{"prose", "sorry, I cannot help", apperr.CodeCollaboratorMalformed},
		{"unterminated", `{"intent":"x"`, apperr.CodeCollaboratorMalformed},
		{"missing response", `{"intent":"x","plan":["a"],"action":"b"}`, apperr.CodeCollaboratorMalformed},
		{"blank plan step", `{"intent":"x","plan":[""],"action":"b","response":"c"}`, apperr.CodeCollaboratorMalformed},
		{"wrong type", `{"intent":"x","plan":"a","action":"b","response":"c"}`, apperr.CodeCollaboratorMalformed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Decode(tc.body)
			require.Error(t, err)
			assert.True(t, apperr.Is(err, tc.code), "got %v", err)
		})
	}
}

func TestSystemInstruction(t *testing.T) {
	sys, err := SystemInstruction(DefaultPolicy(), today)
	require.NoError(t, err)
	assert.Contains(t, sys, "TODAY IS: Monday, December 15, 2025.")
	assert.Contains(t, sys, "relative to 2025-12-15")
	assert.Contains(t, sys, "Sunday through Thursday")
	assert.Contains(t, sys, "Friday/Saturday")
	assert.Contains(t, sys, "15 days")
	assert.Contains(t, sys, "HR@linkdev.com")
	assert.Contains(t, sys, "tomorrow (2025-12-16)")
	assert.NotContains(t, sys, "Known public holidays")

	p := DefaultPolicy()
	p.Holidays = []civil.Date{{Year: 2026, Month: 1, Day: 7}}
	sys, err = SystemInstruction(p, today)
	require.NoError(t, err)
	assert.Contains(t, sys, "Known public holidays: 2026-01-07.")
}

func TestBrokenInstructionTemplateFailsTheCall(t *testing.T) {
	saved := systemInstructionTmpl
	systemInstructionTmpl = template.Must(template.New("system").Parse(`{{template "missing"}}`))
	t.Cleanup(func() { systemInstructionTmpl = saved })

	_, err := SystemInstruction(DefaultPolicy(), today)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.CodeConfiguration), "%v", err)

	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()
	r := NewOpenAIReasoner(OpenAIOptions{APIKey: "k", BaseURL: srv.URL, Model: "m"})
	_, err = r.ClassifyPlanActNotify(context.Background(), "hello", today)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.CodeConfiguration), "%v", err)
	assert.False(t, called, "no request is sent without a system instruction")
}

func TestResultJSONSchemaRequiresCoreFields(t *testing.T) {
	raw, err := json.Marshal(ResultJSONSchema())
	require.NoError(t, err)
	var doc struct {
		Required   []string                   `json:"required"`
		Properties map[string]json.RawMessage `json:"properties"`
	}
	require.NoError(t, json.Unmarshal(raw, &doc))
	assert.ElementsMatch(t, []string{"intent", "plan", "action", "response"}, doc.Required)
	assert.Contains(t, doc.Properties, "leaveDetails")
}

func TestMissingKeyIsConfigurationError(t *testing.T) {
	for _, provider := range []string{ProviderGemini, ProviderOpenAI} {
		r, err := New(Options{Provider: provider, Model: "m"})
		require.NoError(t, err)
		_, err = r.ClassifyPlanActNotify(context.Background(), "hi", today)
		assert.True(t, apperr.Is(err, apperr.CodeConfiguration), "%s: %v", provider, err)
	}
}

func TestNewUnknownProvider(t *testing.T) {
	_, err := New(Options{Provider: "carrier-pigeon"})
	require.Error(t, err)
}

func TestOpenAIReasonerRoundTrip(t *testing.T) {
	var gotReq struct {
		Model    string `json:"model"`
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
		ResponseFormat struct {
			Type string `json:"type"`
		} `json:"response_format"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/chat/completions"), r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &gotReq)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":     "cmpl-1",
			"object": "chat.completion",
			"model":  "test-model",
			"choices": []map[string]any{{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]any{"role": "assistant", "content": leaveBody},
			}},
		})
	}))
	defer srv.Close()

	r := NewOpenAIReasoner(OpenAIOptions{
		APIKey:  "test-key",
		BaseURL: srv.URL + "/v1",
		Model:   "test-model",
		Format:  FormatJSONSchema,
		Policy:  DefaultPolicy(),
	})
	res, err := r.ClassifyPlanActNotify(context.Background(), "I need leave Tuesday to Thursday", today)
	require.NoError(t, err)
	assert.Equal(t, "Leave Request", res.Intent)
	assert.Equal(t, "Annual Leave", res.LeaveDetails.LeaveType)

	assert.Equal(t, "test-model", gotReq.Model)
	require.Len(t, gotReq.Messages, 2)
	assert.Equal(t, "system", gotReq.Messages[0].Role)
	assert.Contains(t, gotReq.Messages[0].Content, "2025-12-15")
	assert.Equal(t, "I need leave Tuesday to Thursday", gotReq.Messages[1].Content)
	assert.Equal(t, FormatJSONSchema, gotReq.ResponseFormat.Type)
}

func TestOpenAIReasonerServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = io.WriteString(w, `{"error":{"message":"boom","type":"server_error"}}`)
	}))
	defer srv.Close()

	r := NewOpenAIReasoner(OpenAIOptions{APIKey: "k", BaseURL: srv.URL, Model: "m"})
	_, err := r.ClassifyPlanActNotify(context.Background(), "hello", today)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.CodeCollaborator), "%v", err)
}

func TestGeminiReasonerRoundTrip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "gemini-2.5-flash:generateContent")
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"candidates": []map[string]any{{
				"content": map[string]any{
					"role":  "model",
					"parts": []map[string]any{{"text": leaveBody}},
				},
				"finishReason": "STOP",
			}},
		})
	}))
	defer srv.Close()

	r := NewGeminiReasoner(GeminiOptions{APIKey: "k", BaseURL: srv.URL, Policy: DefaultPolicy()})
	res, err := r.ClassifyPlanActNotify(context.Background(), "leave please", today)
	require.NoError(t, err)
	assert.Equal(t, "Leave Request", res.Intent)
	require.NotNil(t, res.LeaveDetails)
	assert.Equal(t, "2025-12-18", res.LeaveDetails.EndDate)
}
