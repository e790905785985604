// Package chat runs the conversation: it gates submissions on the current
// status, calls the reasoning collaborator, reveals its answer stage by stage,
// keeps the transcript and owns the leave form.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"cloud.google.com/go/civil"

	"hr-agent/internal/agent"
	"hr-agent/internal/apperr"
	"hr-agent/internal/events"
	"hr-agent/internal/leave"
	"hr-agent/internal/logger"
	"hr-agent/internal/message"
	"hr-agent/internal/metrics"
)

const (
	WelcomeMessage = "Hello, I'm your AI HR Assistant. How can I help you today? I can assist with policies, leave requests, or general inquiries."
	ApologyMessage = "I encountered a system error while processing your request. Please try again."

	source = "orchestrator"
)

// Journal persists appended turns.
type Journal interface {
	Record(ctx context.Context, transcriptID string, turn message.Turn) error
}

// LeaveSubmitter receives a reviewed form.
type LeaveSubmitter interface {
	Submit(ctx context.Context, f leave.Form) (leave.Request, error)
}

type Options struct {
	Reasoner     agent.Reasoner
	Today        civil.Date
	Form         leave.Form
	Cadence      Cadence
	Scheduler    Scheduler
	Bus          events.Bus
	Journal      Journal
	Leave        LeaveSubmitter
	Logger       *logger.Logger
	Metrics      *metrics.Metrics
	TranscriptID string
	Now          func() time.Time
}

// Snapshot is a consistent copy of the orchestrator state.
type Snapshot struct {
	TranscriptID string         `json:"transcript_id,omitempty"`
	Status       Status         `json:"status"`
	Display      Stage          `json:"display"`
	Transcript   []message.Turn `json:"transcript"`
	Form         leave.Form     `json:"form"`
	Today        civil.Date     `json:"today"`
}

type Orchestrator struct {
	reasoner  agent.Reasoner
	today     civil.Date
	cadence   Cadence
	scheduler Scheduler
	bus       events.Bus
	journal   Journal
	leave     LeaveSubmitter
	log       *logger.Logger
	metrics   *metrics.Metrics
	id        string
	now       func() time.Time

	mu         sync.Mutex
	status     Status
	display    Stage
	transcript []message.Turn
	form       leave.Form

	inflight sync.WaitGroup
}

// New seeds the transcript with the welcome turn. The form is repaired
// against today so the date bounds hold from the start.
func New(opts Options) (*Orchestrator, error) {
	if opts.Reasoner == nil {
		return nil, errors.New("chat: reasoner is required")
	}
	if !opts.Today.IsValid() {
		return nil, errors.New("chat: reference date is required")
	}
	if opts.Scheduler == nil {
		opts.Scheduler = TimerScheduler{}
	}
	if opts.Logger == nil {
		opts.Logger = logger.Nop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	o := &Orchestrator{
		reasoner:  opts.Reasoner,
		today:     opts.Today,
		cadence:   opts.Cadence,
		scheduler: opts.Scheduler,
		bus:       opts.Bus,
		journal:   opts.Journal,
		leave:     opts.Leave,
		log:       opts.Logger.Named("chat"),
		metrics:   opts.Metrics,
		id:        opts.TranscriptID,
		now:       opts.Now,
		status:    StatusIdle,
		form:      leave.Normalize(opts.Form, leave.Proposal{}, opts.Today),
	}
	welcome := message.NewTurn(message.RoleAssistant, WelcomeMessage, o.now())
	o.transcript = []message.Turn{welcome}
	o.record(context.Background(), welcome)
	return o, nil
}

func (o *Orchestrator) Today() civil.Date { return o.today }

func (o *Orchestrator) TranscriptID() string { return o.id }

func (o *Orchestrator) Cadence() Cadence { return o.cadence }

// Reply is the outcome of one accepted turn: the assistant turn it appended
// and the form as it stood when that turn completed.
type Reply struct {
	Turn message.Turn `json:"turn"`
	Form leave.Form   `json:"form"`
}

// Submit runs one turn for text and returns once the assistant turn is
// appended. If a turn is already in flight, or text is blank, the call is
// dropped and Submit returns false without touching any state. The turn
// runs to completion even if ctx is cancelled.
func (o *Orchestrator) Submit(ctx context.Context, text string) bool {
	_, ok := o.SubmitTurn(ctx, text)
	return ok
}

// SubmitTurn is Submit returning the turn's own reply, which stays correct
// when another turn starts before the caller reads the transcript.
func (o *Orchestrator) SubmitTurn(ctx context.Context, text string) (Reply, bool) {
	if !o.begin(ctx, text) {
		return Reply{}, false
	}
	return o.run(ctx, text), true
}

// Start is Submit without waiting for the turn to finish.
func (o *Orchestrator) Start(ctx context.Context, text string) bool {
	if !o.begin(ctx, text) {
		return false
	}
	go func() { _ = o.run(ctx, text) }()
	return true
}

// Wait blocks until every accepted turn has completed.
func (o *Orchestrator) Wait() {
	o.inflight.Wait()
}

func (o *Orchestrator) begin(ctx context.Context, text string) bool {
	if strings.TrimSpace(text) == "" {
		o.metrics.SubmissionDropped()
		return false
	}

	o.mu.Lock()
	if !o.status.CanSubmit() {
		status := o.status
		o.mu.Unlock()
		o.metrics.SubmissionDropped()
		o.log.Debugw("submission dropped", "status", status.String())
		return false
	}
	o.inflight.Add(1)
	turn := message.NewTurn(message.RoleUser, text, o.now())
	o.transcript = append(o.transcript, turn)
	o.status = StatusClassifying
	o.display = Stage{Status: StatusClassifying}
	stage := o.display.clone()
	o.mu.Unlock()

	o.record(ctx, turn)
	o.publish(ctx, events.EventStage, stage)
	return true
}

func (o *Orchestrator) run(parent context.Context, prompt string) (out Reply) {
	ctx := context.WithoutCancel(parent)
	reply := ApologyMessage
	var result *agent.Result
	action := message.ActionNone

	defer o.inflight.Done()
	defer func() {
		if r := recover(); r != nil {
			o.log.Errorw("turn panicked", "panic", fmt.Sprint(r))
			reply, result, action = ApologyMessage, nil, message.ActionNone
		}
		out = o.complete(ctx, reply, result, action)
	}()

	started := time.Now()
	res, err := o.reasoner.ClassifyPlanActNotify(ctx, prompt, o.today)
	o.metrics.CollaboratorCall(time.Since(started), err)
	if err != nil {
		o.log.Errorw("reasoning collaborator failed", "code", apperr.Code(err), "error", err)
		return
	}

	o.reveal(ctx, res)

	if p := res.LeaveDetails.Proposal(); !p.IsEmpty() {
		o.applyProposal(ctx, p)
	}
	action = actionFor(res.Intent)
	reply = res.Response
	result = &res
}

// reveal exposes the intent at once, then the plan, the action and the
// notification step, each after its cadence delay.
func (o *Orchestrator) reveal(ctx context.Context, res agent.Result) {
	o.setStage(ctx, func(s *Stage) { s.Intent = res.Intent })

	o.scheduler.Sleep(ctx, o.cadence.Plan)
	o.setStage(ctx, func(s *Stage) {
		s.Status = StatusPlanning
		s.Plan = append([]string(nil), res.Plan...)
	})

	o.scheduler.Sleep(ctx, o.cadence.Act)
	o.setStage(ctx, func(s *Stage) {
		s.Status = StatusActing
		s.Action = res.Action
	})

	o.scheduler.Sleep(ctx, o.cadence.Notify)
	o.setStage(ctx, func(s *Stage) { s.Status = StatusNotifying })

	o.scheduler.Sleep(ctx, o.cadence.Settle)
}

func (o *Orchestrator) setStage(ctx context.Context, mutate func(*Stage)) {
	o.mu.Lock()
	mutate(&o.display)
	o.status = o.display.Status
	stage := o.display.clone()
	o.mu.Unlock()
	o.publish(ctx, events.EventStage, stage)
}

func (o *Orchestrator) applyProposal(ctx context.Context, p leave.Proposal) {
	if c := leave.Corrections(p, o.today); c.Any() {
		if c.StartClamped {
			o.metrics.DateCorrected("start_clamped")
		}
		if c.EndCollapsed {
			o.metrics.DateCorrected("end_collapsed")
		}
		o.log.Infow("proposed leave dates corrected", "start", p.StartDate, "end", p.EndDate)
	}
	o.mu.Lock()
	o.form = leave.Normalize(o.form, p, o.today)
	form := o.form
	o.mu.Unlock()
	o.publish(ctx, events.EventFormChanged, form)
}

// complete appends the assistant turn and releases the gate.
func (o *Orchestrator) complete(ctx context.Context, reply string, result *agent.Result, action message.ActionTag) Reply {
	turn := message.NewTurn(message.RoleAssistant, reply, o.now())
	turn.Result = result
	turn.Action = action

	o.mu.Lock()
	o.transcript = append(o.transcript, turn)
	o.status = StatusComplete
	o.display.Status = StatusComplete
	stage := o.display.clone()
	form := o.form
	o.mu.Unlock()

	outcome := metrics.OutcomeAnswered
	if result == nil {
		outcome = metrics.OutcomeFallback
	}
	o.metrics.TurnCompleted(outcome)
	if action == message.ActionReviewForm {
		o.metrics.ReviewTagged()
	}

	o.record(ctx, turn)
	o.publish(ctx, events.EventStage, stage)
	return Reply{Turn: turn, Form: form}
}

// actionFor tags leave-related intents so the client can offer the form.
func actionFor(intent string) message.ActionTag {
	lower := strings.ToLower(intent)
	if strings.Contains(lower, "leave") || strings.Contains(lower, "request") {
		return message.ActionReviewForm
	}
	return message.ActionNone
}

func (o *Orchestrator) Status() Status {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.status
}

func (o *Orchestrator) Snapshot() Snapshot {
	o.mu.Lock()
	defer o.mu.Unlock()
	return Snapshot{
		TranscriptID: o.id,
		Status:       o.status,
		Display:      o.display.clone(),
		Transcript:   append([]message.Turn(nil), o.transcript...),
		Form:         o.form,
		Today:        o.today,
	}
}

// Review returns the leave form as it stands.
func (o *Orchestrator) Review() leave.Form {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.form
}

// EditForm applies a direct user edit to one form field.
func (o *Orchestrator) EditForm(ctx context.Context, field, value string) (leave.Form, error) {
	f, ok := leave.ParseField(field)
	if !ok {
		err := apperr.New(apperr.CodeInvalidInput, "unknown form field").WithDetail(field)
		o.metrics.FormEdited("unknown", err)
		return o.Review(), err
	}
	o.mu.Lock()
	next, err := leave.ApplyEdit(o.form, f, value, o.today)
	if err == nil {
		o.form = next
	}
	form := o.form
	o.mu.Unlock()

	o.metrics.FormEdited(string(f), err)
	if err != nil {
		return form, err
	}
	o.publish(ctx, events.EventFormChanged, form)
	return form, nil
}

// SubmitLeave hands the current form to the leave service.
func (o *Orchestrator) SubmitLeave(ctx context.Context) (leave.Request, error) {
	if o.leave == nil {
		return leave.Request{}, apperr.New(apperr.CodeConfiguration, "leave service is not configured")
	}
	req, err := o.leave.Submit(ctx, o.Review())
	o.metrics.LeaveSubmitted(err)
	if err != nil {
		o.log.Warnw("leave submission rejected", "code", apperr.Code(err), "error", err)
		return leave.Request{}, err
	}
	o.log.Infow("leave request submitted", "id", req.ID, "working_days", req.WorkingDays, "notified", req.NotifiedTo)
	o.publish(ctx, events.EventLeaveSubmitted, req)
	return req, nil
}

func (o *Orchestrator) record(ctx context.Context, turn message.Turn) {
	o.publish(ctx, events.EventTurn, turn)
	if o.journal == nil || o.id == "" {
		return
	}
	if err := o.journal.Record(ctx, o.id, turn); err != nil {
		o.log.Warnw("journal append failed", "transcript", o.id, "error", err)
	}
}

func (o *Orchestrator) publish(ctx context.Context, t events.EventType, payload any) {
	if o.bus == nil {
		return
	}
	if err := o.bus.Publish(ctx, events.New(t, source, payload)); err != nil {
		o.log.Debugw("event handler failed", "type", string(t), "error", err)
	}
}
