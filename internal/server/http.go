package server

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"hr-agent/internal/apperr"
	"hr-agent/internal/chat"
	"hr-agent/internal/events"
	"hr-agent/internal/leave"
	"hr-agent/internal/logger"
	"hr-agent/internal/metrics"
	"hr-agent/internal/session"
)

type Deps struct {
	Chat     *chat.Orchestrator
	Leave    *leave.Service
	Sessions *session.Manager
	Bus      events.Bus
	Metrics  *metrics.Metrics
	Logger   *logger.Logger
	Checks   []Check
}

type HTTPServer struct {
	deps   Deps
	log    *logger.Logger
	engine *gin.Engine
}

func New(d Deps) *HTTPServer {
	log := d.Logger
	if log == nil {
		log = logger.Nop()
	}
	s := &HTTPServer{deps: d, log: log.Named("http")}
	s.engine = s.routes()
	return s
}

func (s *HTTPServer) Handler() http.Handler {
	return s.engine
}

func (s *HTTPServer) routes() *gin.Engine {
	r := gin.New()
	r.Use(requestID(), recovery(s.log), accessLog(s.log, s.deps.Metrics))

	r.GET("/healthz", healthHandler())
	r.GET("/readyz", readyHandler(s.deps.Checks...))
	r.GET("/metrics", gin.WrapH(s.deps.Metrics.Handler()))

	v1 := r.Group("/v1")
	{
		v1.GET("/chat", s.handleChat)
		v1.POST("/chat/messages", s.handleSendMessage)
		v1.GET("/chat/events", s.handleEvents)

		v1.GET("/leave/form", s.handleReview)
		v1.PATCH("/leave/form", s.handleEditForm)
		v1.POST("/leave/requests", s.handleSubmitLeave)
		v1.GET("/leave/requests", s.handleListLeave)
		v1.GET("/leave/requests/:id", s.handleGetLeave)

		v1.GET("/transcripts", s.handleListTranscripts)
		v1.GET("/transcripts/:id", s.handleGetTranscript)

		v1.GET("/dashboard", s.handleDashboard)
	}
	return r
}

func (s *HTTPServer) handleChat(c *gin.Context) {
	c.JSON(http.StatusOK, s.deps.Chat.Snapshot())
}

type sendRequest struct {
	Text string `json:"text" binding:"required"`
	Wait *bool  `json:"wait,omitempty"`
}

// handleSendMessage waits for the turn unless wait=false, in which case the
// reveal is followed on /v1/chat/events.
func (s *HTTPServer) handleSendMessage(c *gin.Context) {
	var req sendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, apperr.Wrap(apperr.CodeInvalidInput, "request body must be {\"text\": \"...\"}", err))
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		s.fail(c, apperr.New(apperr.CodeInvalidInput, "text cannot be blank"))
		return
	}

	wait := req.Wait == nil || *req.Wait
	if !wait {
		if !s.deps.Chat.Start(c.Request.Context(), req.Text) {
			s.conflict(c)
			return
		}
		c.JSON(http.StatusAccepted, gin.H{"accepted": true, "status": chat.StatusClassifying})
		return
	}
	reply, ok := s.deps.Chat.SubmitTurn(c.Request.Context(), req.Text)
	if !ok {
		s.conflict(c)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"accepted": true,
		"status":   chat.StatusComplete,
		"reply":    reply.Turn,
		"form":     reply.Form,
	})
}

func (s *HTTPServer) conflict(c *gin.Context) {
	c.JSON(http.StatusConflict, gin.H{"accepted": false, "status": s.deps.Chat.Status()})
}

// liveBuffer bounds the per-client queue of live events.
const liveBuffer = 256

// handleEvents streams bus events as server-sent events until the client
// goes away. With since set, history from that instant is sent first and
// live events already covered by it are skipped. Slow clients miss live
// events rather than stalling the turn.
func (s *HTTPServer) handleEvents(c *gin.Context) {
	if s.deps.Bus == nil {
		s.fail(c, apperr.New(apperr.CodeConfiguration, "event stream is not configured"))
		return
	}
	var from time.Time
	replay := false
	if since := strings.TrimSpace(c.Query("since")); since != "" {
		var err error
		if from, err = time.Parse(time.RFC3339Nano, since); err != nil {
			s.fail(c, apperr.Wrap(apperr.CodeInvalidInput, "since must be RFC 3339", err))
			return
		}
		replay = true
	}

	live := make(chan events.Event, liveBuffer)
	id := s.deps.Bus.Subscribe(events.Any, func(_ context.Context, evt events.Event) error {
		select {
		case live <- evt:
			return nil
		default:
			return errors.New("sse client is lagging")
		}
	})
	defer s.deps.Bus.Unsubscribe(id)

	var backlog []events.Event
	replayed := map[string]struct{}{}
	if replay {
		_ = s.deps.Bus.Replay(c.Request.Context(), from, time.Now(), func(_ context.Context, evt events.Event) error {
			backlog = append(backlog, evt)
			replayed[evt.ID] = struct{}{}
			return nil
		})
	}

	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	ctx := c.Request.Context()
	c.Stream(func(_ io.Writer) bool {
		if len(backlog) > 0 {
			evt := backlog[0]
			backlog = backlog[1:]
			c.SSEvent(string(evt.Type), evt)
			return true
		}
		for {
			select {
			case evt := <-live:
				if _, dup := replayed[evt.ID]; dup {
					continue
				}
				c.SSEvent(string(evt.Type), evt)
				return true
			case <-ctx.Done():
				return false
			}
		}
	})
}

type reviewResponse struct {
	Form        leave.Form `json:"form"`
	WorkingDays int        `json:"working_days"`
	Balance     int        `json:"balance"`
	Valid       bool       `json:"valid"`
}

func (s *HTTPServer) review(ctx context.Context, f leave.Form) (reviewResponse, error) {
	resp := reviewResponse{Form: f, Valid: f.Valid(s.deps.Chat.Today())}
	if s.deps.Leave == nil {
		return resp, nil
	}
	resp.WorkingDays = s.deps.Leave.Calendar().WorkingDays(f.StartDate, f.EndDate)
	balance, err := s.deps.Leave.Balance(ctx)
	if err != nil {
		return resp, err
	}
	resp.Balance = balance
	return resp, nil
}

func (s *HTTPServer) handleReview(c *gin.Context) {
	resp, err := s.review(c.Request.Context(), s.deps.Chat.Review())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

var editOrder = []leave.Field{
	leave.FieldName,
	leave.FieldLeaveType,
	leave.FieldStartDate,
	leave.FieldEndDate,
	leave.FieldReason,
}

// handleEditForm accepts {"field": value, ...}. Fields are applied in form
// order so a new start is in place before a new end is checked against it.
func (s *HTTPServer) handleEditForm(c *gin.Context) {
	var body map[string]string
	if err := c.ShouldBindJSON(&body); err != nil {
		s.fail(c, apperr.Wrap(apperr.CodeInvalidInput, "request body must be a JSON object of strings", err))
		return
	}
	if len(body) == 0 {
		s.fail(c, apperr.New(apperr.CodeInvalidInput, "no fields to edit"))
		return
	}
	edits := map[leave.Field]string{}
	for key, value := range body {
		f, ok := leave.ParseField(key)
		if !ok {
			s.fail(c, apperr.New(apperr.CodeInvalidInput, "unknown form field").WithDetail(key))
			return
		}
		edits[f] = value
	}
	ctx := c.Request.Context()
	var form leave.Form
	for _, f := range editOrder {
		value, ok := edits[f]
		if !ok {
			continue
		}
		var err error
		if form, err = s.deps.Chat.EditForm(ctx, string(f), value); err != nil {
			s.fail(c, err)
			return
		}
	}
	resp, err := s.review(ctx, form)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *HTTPServer) handleSubmitLeave(c *gin.Context) {
	req, err := s.deps.Chat.SubmitLeave(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, req)
}

func (s *HTTPServer) handleListLeave(c *gin.Context) {
	items, err := s.deps.Leave.List(c.Request.Context(), queryLimit(c, 30))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"requests": items})
}

func (s *HTTPServer) handleGetLeave(c *gin.Context) {
	req, err := s.deps.Leave.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, req)
}

func (s *HTTPServer) handleListTranscripts(c *gin.Context) {
	items, err := s.deps.Sessions.List(c.Request.Context(), queryLimit(c, 20))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"transcripts": items})
}

func (s *HTTPServer) handleGetTranscript(c *gin.Context) {
	t, err := s.deps.Sessions.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

func (s *HTTPServer) handleDashboard(c *gin.Context) {
	ctx := c.Request.Context()
	balance, err := s.deps.Leave.Balance(ctx)
	if err != nil {
		s.fail(c, err)
		return
	}
	pending, err := s.deps.Leave.Pending(ctx)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"today":           s.deps.Chat.Today(),
		"status":          s.deps.Chat.Status(),
		"balance":         balance,
		"initial_balance": s.deps.Leave.InitialBalance(),
		"pending":         pending,
		"notify_email":    s.deps.Leave.NotifyEmail(),
		"weekend":         s.deps.Leave.Calendar().WeekendNames(),
		"reveal_ms":       s.deps.Chat.Cadence().Total().Milliseconds(),
	})
}

func queryLimit(c *gin.Context, def int) int {
	if v := strings.TrimSpace(c.Query("limit")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return def
}

func (s *HTTPServer) fail(c *gin.Context, err error) {
	_ = c.Error(err)
	status := statusFor(err)
	body := gin.H{"code": apperr.Code(err), "message": err.Error()}
	var appErr *apperr.AppError
	if errors.As(err, &appErr) {
		body["message"] = appErr.Message
		if appErr.Detail != "" {
			body["detail"] = appErr.Detail
		}
	}
	if status >= http.StatusInternalServerError {
		body["message"] = "internal error"
		delete(body, "detail")
	}
	c.AbortWithStatusJSON(status, gin.H{"error": body})
}

func statusFor(err error) int {
	switch code := apperr.Code(err); {
	case code == apperr.CodeInvalidInput:
		return http.StatusBadRequest
	case code == apperr.CodeNotFound:
		return http.StatusNotFound
	case code == apperr.CodeInsufficientBalance:
		return http.StatusUnprocessableEntity
	case code == apperr.CodeConfiguration:
		return http.StatusServiceUnavailable
	case apperr.Category(code) == apperr.CodeCollaborator:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
