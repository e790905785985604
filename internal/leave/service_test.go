package leave

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hr-agent/internal/apperr"
	"hr-agent/internal/storage"
)

func TestWorkingDaysSkipsEgyptianWeekend(t *testing.T) {
	cal := EgyptCalendar()
	// 2025-12-15 is a Monday; 19th/20th are Friday/Saturday.
	assert.Equal(t, 1, cal.WorkingDays(day("2025-12-15"), day("2025-12-15")))
	assert.Equal(t, 5, cal.WorkingDays(day("2025-12-15"), day("2025-12-21")))
	assert.Equal(t, 0, cal.WorkingDays(day("2025-12-19"), day("2025-12-20")))
	assert.Equal(t, 0, cal.WorkingDays(day("2025-12-21"), day("2025-12-15")))
}

func TestWorkingDaysSkipsHolidays(t *testing.T) {
	cal := EgyptCalendar(day("2026-01-07"))
	// Sun 4th .. Thu 8th, Coptic Christmas on the 7th.
	assert.Equal(t, 4, cal.WorkingDays(day("2026-01-04"), day("2026-01-08")))
	assert.False(t, cal.IsWorkingDay(day("2026-01-07")))
}

func TestWeekendNamesRoundTrip(t *testing.T) {
	names := EgyptCalendar().WeekendNames()
	assert.Equal(t, []string{"Friday", "Saturday"}, names)
	parsed, err := ParseWeekdays(names)
	require.NoError(t, err)
	assert.Equal(t, EgyptCalendar().Weekend, parsed)
}

func TestParseWeekdays(t *testing.T) {
	got, err := ParseWeekdays([]string{"Friday", "sat", ""})
	require.NoError(t, err)
	require.Equal(t, []time.Weekday{time.Friday, time.Saturday}, got)

	_, err = ParseWeekdays([]string{"funday"})
	require.Error(t, err)
}

func TestParseDates(t *testing.T) {
	got, err := ParseDates([]string{"2026-01-07", " "})
	require.NoError(t, err)
	require.Equal(t, []string{"2026-01-07"}, []string{got[0].String()})

	_, err = ParseDates([]string{"07/01/2026"})
	require.Error(t, err)
}

func TestSubmitDeductsWorkingDays(t *testing.T) {
	svc := newTestService(t, 15)
	ctx := context.Background()

	f := baseForm()
	f.StartDate = day("2025-12-16")
	f.EndDate = day("2025-12-22") // Tue..Mon, Fri/Sat excluded

	req, err := svc.Submit(ctx, f)
	require.NoError(t, err)
	assert.Equal(t, 5, req.WorkingDays)
	assert.Equal(t, 15, req.BalanceBefore)
	assert.Equal(t, 10, req.BalanceAfter)
	assert.Equal(t, StatusPending, req.Status)
	assert.Equal(t, "HR@linkdev.com", req.NotifiedTo)
	assert.NotEmpty(t, req.ID)

	balance, err := svc.Balance(ctx)
	require.NoError(t, err)
	assert.Equal(t, 10, balance)

	pending, err := svc.Pending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, pending)

	got, err := svc.Get(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, req.Form, got.Form)
}

func TestSubmitRejectsOverdraw(t *testing.T) {
	svc := newTestService(t, 2)
	f := baseForm()
	f.StartDate = day("2025-12-15")
	f.EndDate = day("2025-12-17")

	_, err := svc.Submit(context.Background(), f)
	require.True(t, apperr.Is(err, apperr.CodeInsufficientBalance), err)
}

func TestSubmitValidatesForm(t *testing.T) {
	svc := newTestService(t, 15)
	ctx := context.Background()

	missingName := baseForm()
	missingName.Name = ""
	_, err := svc.Submit(ctx, missingName)
	require.True(t, apperr.Is(err, apperr.CodeInvalidInput))

	past := baseForm()
	past.StartDate = day("2025-12-01")
	_, err = svc.Submit(ctx, past)
	require.True(t, apperr.Is(err, apperr.CodeInvalidInput))

	weekendOnly := baseForm()
	weekendOnly.StartDate = day("2025-12-19")
	weekendOnly.EndDate = day("2025-12-20")
	_, err = svc.Submit(ctx, weekendOnly)
	require.True(t, apperr.Is(err, apperr.CodeInvalidInput))
}

func TestListNewestFirst(t *testing.T) {
	svc := newTestService(t, 15)
	ctx := context.Background()

	first := baseForm()
	first.StartDate, first.EndDate = day("2025-12-15"), day("2025-12-15")
	second := baseForm()
	second.StartDate, second.EndDate = day("2025-12-16"), day("2025-12-16")

	r1, err := svc.Submit(ctx, first)
	require.NoError(t, err)
	r2, err := svc.Submit(ctx, second)
	require.NoError(t, err)

	list, err := svc.List(ctx, 10)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, r2.ID, list[0].ID)
	assert.Equal(t, r1.ID, list[1].ID)
	assert.Equal(t, 13, r2.BalanceAfter)
}

func TestGetMissing(t *testing.T) {
	svc := newTestService(t, 15)
	_, err := svc.Get(context.Background(), "missing")
	require.True(t, apperr.Is(err, apperr.CodeNotFound))
}

func newTestService(t *testing.T, balance int) *Service {
	t.Helper()
	store, err := storage.NewBoltStore(filepath.Join(t.TempDir(), "agent.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return NewService(store, Options{
		Today:          today,
		Calendar:       EgyptCalendar(),
		InitialBalance: balance,
		NotifyEmail:    "HR@linkdev.com",
	})
}
