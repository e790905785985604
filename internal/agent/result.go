// Package agent talks to the reasoning collaborator: a single language-model
// call that classifies the user's intent, plans, simulates the actions and
// drafts the reply, returning all of it as one JSON document.
package agent

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"

	"cloud.google.com/go/civil"
	"github.com/go-playground/validator/v10"

	"hr-agent/internal/apperr"
	"hr-agent/internal/leave"
)

// Result is the structured answer of one collaborator call.
type Result struct {
	Intent       string        `json:"intent" validate:"required" jsonschema:"description=The identified intent"`
	Plan         []string      `json:"plan" validate:"required,dive,required" jsonschema:"description=Ordered steps required to handle the request"`
	Action       string        `json:"action" validate:"required" jsonschema:"description=Description of the simulated action taken"`
	Response     string        `json:"response" validate:"required" jsonschema:"description=The final user-facing message"`
	LeaveDetails *LeaveDetails `json:"leaveDetails,omitempty" jsonschema:"description=Extracted leave request details"`
}

type LeaveDetails struct {
	StartDate string `json:"startDate,omitempty" jsonschema:"description=Start date formatted YYYY-MM-DD"`
	EndDate   string `json:"endDate,omitempty" jsonschema:"description=End date formatted YYYY-MM-DD"`
	LeaveType string `json:"leaveType,omitempty" jsonschema:"description=Leave type such as Annual Leave or Sick Leave"`
}

func (d *LeaveDetails) Proposal() leave.Proposal {
	if d == nil {
		return leave.Proposal{}
	}
	return leave.Proposal{StartDate: d.StartDate, EndDate: d.EndDate, LeaveType: d.LeaveType}
}

// Reasoner is the capability the orchestrator depends on.
type Reasoner interface {
	ClassifyPlanActNotify(ctx context.Context, prompt string, today civil.Date) (Result, error)
}

// ReasonerFunc adapts a function to Reasoner.
type ReasonerFunc func(ctx context.Context, prompt string, today civil.Date) (Result, error)

func (f ReasonerFunc) ClassifyPlanActNotify(ctx context.Context, prompt string, today civil.Date) (Result, error) {
	return f(ctx, prompt, today)
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func resultValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// Decode parses a collaborator body into a Result. Prose or code fences
// around the JSON object are tolerated; an empty body, a body without an
// object, and an object missing required fields are collaborator errors.
func Decode(body string) (Result, error) {
	if strings.TrimSpace(body) == "" {
		return Result{}, apperr.New(apperr.CodeCollaboratorEmpty, "empty response from reasoning collaborator")
	}
	obj, err := extractJSONObject(body)
	if err != nil {
		return Result{}, apperr.Wrap(apperr.CodeCollaboratorMalformed, "response is not a JSON object", err)
	}
	var out Result
	if err := json.Unmarshal([]byte(obj), &out); err != nil {
		return Result{}, apperr.Wrap(apperr.CodeCollaboratorMalformed, "decode response", err)
	}
	out.Intent = strings.TrimSpace(out.Intent)
	out.Action = strings.TrimSpace(out.Action)
	out.Response = strings.TrimSpace(out.Response)
	if err := resultValidator().Struct(out); err != nil {
		return Result{}, apperr.Wrap(apperr.CodeCollaboratorMalformed, "response is missing required fields", err)
	}
	if out.LeaveDetails != nil && *out.LeaveDetails == (LeaveDetails{}) {
		out.LeaveDetails = nil
	}
	return out, nil
}

func extractJSONObject(s string) (string, error) {
	start := strings.Index(s, "{")
	if start < 0 {
		return "", errors.New("json object start not found")
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		ch := s[i]
		if inString {
			if escaped {
				escaped = false
				continue
			}
			if ch == '\\' {
				escaped = true
				continue
			}
			if ch == '"' {
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], nil
			}
		}
	}
	return "", errors.New("json object end not found")
}
