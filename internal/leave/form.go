// Package leave owns the leave-request form, the date reconciliation applied to
// every change of that form, and the submission of finished requests.
package leave

import (
	"strings"
	"time"

	"cloud.google.com/go/civil"

	"hr-agent/internal/apperr"
)

// Form is the leave request under review. Dates are calendar dates with no
// time component.
type Form struct {
	Name      string     `json:"name" validate:"required"`
	LeaveType string     `json:"leave_type" validate:"required"`
	StartDate civil.Date `json:"start_date"`
	EndDate   civil.Date `json:"end_date"`
	Reason    string     `json:"reason"`
}

// Proposal is a partial update extracted by the reasoning collaborator. Empty
// strings mean "not proposed".
type Proposal struct {
	StartDate string `json:"startDate,omitempty"`
	EndDate   string `json:"endDate,omitempty"`
	LeaveType string `json:"leaveType,omitempty"`
}

func (p Proposal) IsEmpty() bool {
	return strings.TrimSpace(p.StartDate) == "" &&
		strings.TrimSpace(p.EndDate) == "" &&
		strings.TrimSpace(p.LeaveType) == ""
}

// DefaultForm is the form a fresh conversation starts with: a one-night
// request beginning today.
func DefaultForm(name, leaveType, reason string, today civil.Date) Form {
	return Form{
		Name:      name,
		LeaveType: leaveType,
		StartDate: today,
		EndDate:   today.AddDays(1),
		Reason:    reason,
	}
}

// Normalize merges proposed into current and returns a form whose start date
// is not before today and whose end date is not before its start date.
//
// A proposed start in the past is moved to today. A start without an end
// becomes a single-day request, and an end before the start collapses onto
// the start. Unparsable dates count as absent, and anything not proposed is
// kept from current. Normalize never fails.
func Normalize(current Form, proposed Proposal, today civil.Date) Form {
	start, hasStart := ParseDate(proposed.StartDate)
	end, hasEnd := ParseDate(proposed.EndDate)

	if hasStart && start.Before(today) {
		start = today
	}
	switch {
	case hasStart && !hasEnd:
		end, hasEnd = start, true
	case hasStart && hasEnd && end.Before(start):
		end = start
	}

	out := current
	if hasStart {
		out.StartDate = start
	}
	if hasEnd {
		out.EndDate = end
	}
	if lt := strings.TrimSpace(proposed.LeaveType); lt != "" {
		out.LeaveType = lt
	}
	return clampToToday(out, today)
}

// Correction records which proposed dates Normalize had to move.
type Correction struct {
	StartClamped bool
	EndCollapsed bool
}

func (c Correction) Any() bool { return c.StartClamped || c.EndCollapsed }

// Corrections reports the adjustments Normalize applies to proposed itself,
// ignoring anything repaired on the retained form.
func Corrections(proposed Proposal, today civil.Date) Correction {
	start, hasStart := ParseDate(proposed.StartDate)
	end, hasEnd := ParseDate(proposed.EndDate)
	var c Correction
	if hasStart && start.Before(today) {
		c.StartClamped = true
		start = today
	}
	if hasStart && hasEnd && end.Before(start) {
		c.EndCollapsed = true
	}
	return c
}

// retained values are held to the same bounds as proposed ones
func clampToToday(f Form, today civil.Date) Form {
	if f.StartDate.Before(today) {
		f.StartDate = today
	}
	if f.EndDate.Before(f.StartDate) {
		f.EndDate = f.StartDate
	}
	return f
}

// Valid reports whether f already satisfies the date bounds for today.
func (f Form) Valid(today civil.Date) bool {
	return !f.StartDate.Before(today) && !f.EndDate.Before(f.StartDate)
}

// ParseDate reads a calendar date. Besides YYYY-MM-DD it accepts RFC 3339
// timestamps, taking the date as written without converting time zones.
func ParseDate(s string) (civil.Date, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return civil.Date{}, false
	}
	if d, err := civil.ParseDate(s); err == nil && d.IsValid() {
		return d, true
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return civil.DateOf(t), true
	}
	return civil.Date{}, false
}

// Field names a user-editable form field.
type Field string

const (
	FieldName      Field = "name"
	FieldLeaveType Field = "leave_type"
	FieldStartDate Field = "start_date"
	FieldEndDate   Field = "end_date"
	FieldReason    Field = "reason"
)

// ParseField accepts snake_case and camelCase spellings.
func ParseField(s string) (Field, bool) {
	key := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(s), "_", ""))
	switch key {
	case "name":
		return FieldName, true
	case "leavetype", "type":
		return FieldLeaveType, true
	case "startdate", "start":
		return FieldStartDate, true
	case "enddate", "end":
		return FieldEndDate, true
	case "reason":
		return FieldReason, true
	default:
		return "", false
	}
}

// ApplyEdit applies a direct user edit. Date edits go through Normalize
// together with the other bound so the form invariant still holds.
func ApplyEdit(current Form, field Field, value string, today civil.Date) (Form, error) {
	value = strings.TrimSpace(value)
	switch field {
	case FieldName:
		if value == "" {
			return current, apperr.New(apperr.CodeInvalidInput, "name cannot be empty")
		}
		current.Name = value
		return clampToToday(current, today), nil
	case FieldReason:
		current.Reason = value
		return clampToToday(current, today), nil
	case FieldLeaveType:
		if value == "" {
			return current, apperr.New(apperr.CodeInvalidInput, "leave type cannot be empty")
		}
		return Normalize(current, Proposal{LeaveType: value}, today), nil
	case FieldStartDate:
		if _, ok := ParseDate(value); !ok {
			return current, apperr.New(apperr.CodeInvalidInput, "start date must be YYYY-MM-DD").WithDetail(value)
		}
		return Normalize(current, Proposal{StartDate: value, EndDate: current.EndDate.String()}, today), nil
	case FieldEndDate:
		end, ok := ParseDate(value)
		if !ok {
			return current, apperr.New(apperr.CodeInvalidInput, "end date must be YYYY-MM-DD").WithDetail(value)
		}
		current.EndDate = end
		return clampToToday(current, today), nil
	default:
		return current, apperr.New(apperr.CodeInvalidInput, "unknown form field").WithDetail(string(field))
	}
}
