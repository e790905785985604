package leave

import (
	"math/rand"
	"testing"

	"cloud.google.com/go/civil"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hr-agent/internal/apperr"
)

var today = civil.Date{Year: 2025, Month: 12, Day: 15}

func day(s string) civil.Date {
	d, err := civil.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

func baseForm() Form {
	return Form{
		Name:      "Mohamed Mamdouh",
		LeaveType: "Annual Leave",
		StartDate: day("2025-12-15"),
		EndDate:   day("2025-12-16"),
		Reason:    "Personal time off",
	}
}

func TestNormalizeScenarios(t *testing.T) {
	tests := []struct {
		name      string
		current   Form
		proposed  Proposal
		wantStart string
		wantEnd   string
		wantType  string
	}{
		{
			name:      "past start clamps to today and end defaults to start",
			current:   Form{LeaveType: "Annual Leave", StartDate: day("2025-12-10"), EndDate: day("2025-12-10")},
			proposed:  Proposal{StartDate: "2025-12-10"},
			wantStart: "2025-12-15",
			wantEnd:   "2025-12-15",
			wantType:  "Annual Leave",
		},
		{
			name:      "inverted range collapses to a single day",
			current:   baseForm(),
			proposed:  Proposal{StartDate: "2025-12-20", EndDate: "2025-12-18"},
			wantStart: "2025-12-20",
			wantEnd:   "2025-12-20",
			wantType:  "Annual Leave",
		},
		{
			name:      "valid range is kept",
			current:   baseForm(),
			proposed:  Proposal{StartDate: "2025-12-21", EndDate: "2025-12-25", LeaveType: "Sick Leave"},
			wantStart: "2025-12-21",
			wantEnd:   "2025-12-25",
			wantType:  "Sick Leave",
		},
		{
			name:      "past start with later end keeps end",
			current:   baseForm(),
			proposed:  Proposal{StartDate: "2025-12-01", EndDate: "2025-12-18"},
			wantStart: "2025-12-15",
			wantEnd:   "2025-12-18",
			wantType:  "Annual Leave",
		},
		{
			name:      "past start and past end collapse onto today",
			current:   baseForm(),
			proposed:  Proposal{StartDate: "2025-12-01", EndDate: "2025-12-03"},
			wantStart: "2025-12-15",
			wantEnd:   "2025-12-15",
			wantType:  "Annual Leave",
		},
		{
			name:      "unparsable start is ignored",
			current:   baseForm(),
			proposed:  Proposal{StartDate: "next tuesday"},
			wantStart: "2025-12-15",
			wantEnd:   "2025-12-16",
			wantType:  "Annual Leave",
		},
		{
			name:      "end only is merged onto retained start",
			current:   baseForm(),
			proposed:  Proposal{EndDate: "2025-12-19"},
			wantStart: "2025-12-15",
			wantEnd:   "2025-12-19",
			wantType:  "Annual Leave",
		},
		{
			name:      "rfc3339 timestamps use the written date",
			current:   baseForm(),
			proposed:  Proposal{StartDate: "2025-12-22T23:30:00-05:00"},
			wantStart: "2025-12-22",
			wantEnd:   "2025-12-22",
			wantType:  "Annual Leave",
		},
		{
			name:      "leave type only",
			current:   baseForm(),
			proposed:  Proposal{LeaveType: "  Sick Leave "},
			wantStart: "2025-12-15",
			wantEnd:   "2025-12-16",
			wantType:  "Sick Leave",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Normalize(tt.current, tt.proposed, today)
			assert.Equal(t, tt.wantStart, got.StartDate.String())
			assert.Equal(t, tt.wantEnd, got.EndDate.String())
			assert.Equal(t, tt.wantType, got.LeaveType)
			assert.Equal(t, tt.current.Name, got.Name)
			assert.Equal(t, tt.current.Reason, got.Reason)
		})
	}
}

func TestNormalizeRepairsInvalidCurrent(t *testing.T) {
	current := Form{Name: "x", LeaveType: "Annual Leave", StartDate: day("2025-11-01"), EndDate: day("2025-10-01")}
	got := Normalize(current, Proposal{}, today)
	require.True(t, got.Valid(today))
	require.Equal(t, today, got.StartDate)
	require.Equal(t, today, got.EndDate)
}

func TestNormalizeProperties(t *testing.T) {
	rng := rand.New(rand.NewSource(20251215))
	for i := 0; i < 5000; i++ {
		ref := today.AddDays(rng.Intn(120) - 60)
		current := Form{
			Name:      "n",
			LeaveType: "Annual Leave",
			StartDate: ref.AddDays(rng.Intn(90) - 45),
			EndDate:   ref.AddDays(rng.Intn(90) - 45),
		}
		proposed := randomProposal(rng, ref)

		got := Normalize(current, proposed, ref)
		if got.StartDate.Before(ref) {
			t.Fatalf("start %s before today %s for %+v", got.StartDate, ref, proposed)
		}
		if got.EndDate.Before(got.StartDate) {
			t.Fatalf("end %s before start %s for %+v", got.EndDate, got.StartDate, proposed)
		}
		again := Normalize(got, Proposal{}, ref)
		if diff := cmp.Diff(got, again); diff != "" {
			t.Fatalf("normalize not idempotent (-first +second):\n%s", diff)
		}
		if diff := cmp.Diff(got, Normalize(current, proposed, ref)); diff != "" {
			t.Fatalf("normalize not deterministic:\n%s", diff)
		}
	}
}

func randomProposal(rng *rand.Rand, ref civil.Date) Proposal {
	pick := func() string {
		switch rng.Intn(5) {
		case 0:
			return ""
		case 1:
			return "not-a-date"
		default:
			return ref.AddDays(rng.Intn(60) - 30).String()
		}
	}
	p := Proposal{StartDate: pick(), EndDate: pick()}
	if rng.Intn(2) == 0 {
		p.LeaveType = "Sick Leave"
	}
	return p
}

func TestParseDate(t *testing.T) {
	d, ok := ParseDate(" 2025-12-20 ")
	require.True(t, ok)
	require.Equal(t, day("2025-12-20"), d)

	for _, bad := range []string{"", "2025-02-30", "20/12/2025", "tomorrow"} {
		_, ok := ParseDate(bad)
		require.False(t, ok, bad)
	}
}

func TestApplyEdit(t *testing.T) {
	f := baseForm()

	got, err := ApplyEdit(f, FieldStartDate, "2025-12-20", today)
	require.NoError(t, err)
	require.Equal(t, "2025-12-20", got.StartDate.String())
	require.Equal(t, "2025-12-20", got.EndDate.String(), "end before new start collapses")

	got, err = ApplyEdit(got, FieldEndDate, "2025-12-24", today)
	require.NoError(t, err)
	require.Equal(t, "2025-12-24", got.EndDate.String())

	got, err = ApplyEdit(got, FieldEndDate, "2025-12-01", today)
	require.NoError(t, err)
	require.Equal(t, got.StartDate, got.EndDate)

	got, err = ApplyEdit(got, FieldStartDate, "2025-01-01", today)
	require.NoError(t, err)
	require.Equal(t, today, got.StartDate)

	got, err = ApplyEdit(got, FieldReason, "Family event", today)
	require.NoError(t, err)
	require.Equal(t, "Family event", got.Reason)

	_, err = ApplyEdit(got, FieldStartDate, "soon", today)
	require.True(t, apperr.Is(err, apperr.CodeInvalidInput))

	_, err = ApplyEdit(got, FieldName, "  ", today)
	require.True(t, apperr.Is(err, apperr.CodeInvalidInput))

	_, err = ApplyEdit(got, Field("salary"), "1", today)
	require.True(t, apperr.Is(err, apperr.CodeInvalidInput))
}

func TestParseField(t *testing.T) {
	for in, want := range map[string]Field{
		"leaveType":  FieldLeaveType,
		"start_date": FieldStartDate,
		"EndDate":    FieldEndDate,
		"name":       FieldName,
		"reason":     FieldReason,
	} {
		got, ok := ParseField(in)
		require.True(t, ok, in)
		require.Equal(t, want, got)
	}
	_, ok := ParseField("manager")
	require.False(t, ok)
}

func TestDefaultForm(t *testing.T) {
	f := DefaultForm("Mohamed Mamdouh", "Annual Leave", "Personal time off", today)
	require.Equal(t, "2025-12-15", f.StartDate.String())
	require.Equal(t, "2025-12-16", f.EndDate.String())
	require.True(t, f.Valid(today))
}

func TestCorrections(t *testing.T) {
	assert.Equal(t, Correction{StartClamped: true},
		Corrections(Proposal{StartDate: "2025-12-10", EndDate: "2025-12-20"}, today))
	assert.Equal(t, Correction{StartClamped: true, EndCollapsed: true},
		Corrections(Proposal{StartDate: "2025-12-10", EndDate: "2025-12-12"}, today))
	assert.Equal(t, Correction{EndCollapsed: true},
		Corrections(Proposal{StartDate: "2025-12-20", EndDate: "2025-12-18"}, today))
	assert.False(t, Corrections(Proposal{StartDate: "garbage"}, today).Any())
	assert.False(t, Corrections(Proposal{}, today).Any())
}
