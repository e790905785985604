package leave

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"cloud.google.com/go/civil"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"hr-agent/internal/apperr"
	"hr-agent/internal/storage"
)

type Status string

const StatusPending Status = "pending"

// Request is a submitted leave request awaiting HR action.
type Request struct {
	ID            string    `json:"id"`
	Form          Form      `json:"form"`
	WorkingDays   int       `json:"working_days"`
	BalanceBefore int       `json:"balance_before"`
	BalanceAfter  int       `json:"balance_after"`
	Status        Status    `json:"status"`
	NotifiedTo    string    `json:"notified_to,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

type Options struct {
	Today          civil.Date
	Calendar       Calendar
	InitialBalance int
	NotifyEmail    string
	Now            func() time.Time
}

// Service submits finished forms and tracks the virtual leave balance.
type Service struct {
	store    storage.Store
	opts     Options
	validate *validator.Validate

	mu sync.Mutex
}

func NewService(store storage.Store, opts Options) *Service {
	if opts.InitialBalance < 0 {
		opts.InitialBalance = 0
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{
		store:    store,
		opts:     opts,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (s *Service) Today() civil.Date {
	return s.opts.Today
}

func (s *Service) Calendar() Calendar {
	return s.opts.Calendar
}

func (s *Service) InitialBalance() int {
	return s.opts.InitialBalance
}

func (s *Service) NotifyEmail() string {
	return s.opts.NotifyEmail
}

// Submit records f as a pending request and deducts its working days from the
// virtual balance. The notification is simulated by recording the mailbox.
func (s *Service) Submit(ctx context.Context, f Form) (Request, error) {
	if err := s.validate.Struct(f); err != nil {
		return Request{}, apperr.Wrap(apperr.CodeInvalidInput, "leave form is incomplete", err)
	}
	if !f.Valid(s.opts.Today) {
		return Request{}, apperr.New(apperr.CodeInvalidInput, "leave dates are out of range").
			WithDetail(f.StartDate.String() + ".." + f.EndDate.String())
	}
	days := s.opts.Calendar.WorkingDays(f.StartDate, f.EndDate)
	if days == 0 {
		return Request{}, apperr.New(apperr.CodeInvalidInput, "requested range has no working days")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	balance, err := s.balanceLocked(ctx)
	if err != nil {
		return Request{}, err
	}
	if days > balance {
		return Request{}, apperr.New(apperr.CodeInsufficientBalance, "insufficient leave balance").
			WithDetail(pluralDays(days) + " requested, " + pluralDays(balance) + " available")
	}

	id, err := uuid.NewV7()
	if err != nil {
		return Request{}, apperr.Wrap(apperr.CodeStorage, "allocate request id", err)
	}
	req := Request{
		ID:            id.String(),
		Form:          f,
		WorkingDays:   days,
		BalanceBefore: balance,
		BalanceAfter:  balance - days,
		Status:        StatusPending,
		NotifiedTo:    s.opts.NotifyEmail,
		CreatedAt:     s.opts.Now().UTC(),
	}
	raw, err := json.Marshal(req)
	if err != nil {
		return Request{}, apperr.Wrap(apperr.CodeStorage, "encode leave request", err)
	}
	if err := s.store.SaveLeaveRequest(ctx, req.ID, raw); err != nil {
		return Request{}, apperr.Wrap(apperr.CodeStorage, "save leave request", err)
	}
	return req, nil
}

func (s *Service) Get(ctx context.Context, id string) (Request, error) {
	raw, err := s.store.LoadLeaveRequest(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return Request{}, apperr.New(apperr.CodeNotFound, "leave request not found").WithDetail(id)
	}
	if err != nil {
		return Request{}, apperr.Wrap(apperr.CodeStorage, "load leave request", err)
	}
	return decodeRequest(raw)
}

// List returns requests newest first.
func (s *Service) List(ctx context.Context, limit int) ([]Request, error) {
	raws, err := s.store.ListLeaveRequests(ctx, limit)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeStorage, "list leave requests", err)
	}
	out := make([]Request, 0, len(raws))
	for _, raw := range raws {
		r, err := decodeRequest(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

func (s *Service) Pending(ctx context.Context) (int, error) {
	all, err := s.List(ctx, 0)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, r := range all {
		if r.Status == StatusPending {
			n++
		}
	}
	return n, nil
}

func (s *Service) Balance(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.balanceLocked(ctx)
}

func (s *Service) balanceLocked(ctx context.Context) (int, error) {
	all, err := s.List(ctx, 0)
	if err != nil {
		return 0, err
	}
	used := 0
	for _, r := range all {
		used += r.WorkingDays
	}
	if used > s.opts.InitialBalance {
		return 0, nil
	}
	return s.opts.InitialBalance - used, nil
}

func decodeRequest(raw []byte) (Request, error) {
	var r Request
	if err := json.Unmarshal(raw, &r); err != nil {
		return Request{}, apperr.Wrap(apperr.CodeStorageDecode, "decode leave request", err)
	}
	return r, nil
}

func pluralDays(n int) string {
	if n == 1 {
		return "1 day"
	}
	return fmt.Sprintf("%d days", n)
}
