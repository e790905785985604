package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"hr-agent/internal/apperr"
	"hr-agent/internal/message"
	"hr-agent/internal/storage"
)

// Transcript is the journaled copy of one conversation.
type Transcript struct {
	ID        string         `json:"id"`
	Turns     []message.Turn `json:"turns"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// Summary is a one-line description of a stored transcript.
type Summary struct {
	ID        string    `json:"id"`
	Turns     int       `json:"turns"`
	FirstUser string    `json:"first_user,omitempty"`
	LastReply string    `json:"last_reply,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Manager struct {
	store         storage.Store
	snippetRunes  int
	defaultListed int
}

func NewManager(store storage.Store) *Manager {
	return &Manager{
		store:         store,
		snippetRunes:  80,
		defaultListed: 20,
	}
}

// NewID returns a time-ordered transcript ID so bolt iteration order matches
// creation order.
func NewID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

func (m *Manager) Create(ctx context.Context) (Transcript, error) {
	now := time.Now().UTC()
	t := Transcript{ID: NewID(), CreatedAt: now, UpdatedAt: now}
	if err := m.save(ctx, t); err != nil {
		return Transcript{}, err
	}
	return t, nil
}

func (m *Manager) Get(ctx context.Context, id string) (Transcript, error) {
	return m.load(ctx, id)
}

// AppendTurn journals turn, creating the transcript on first use.
func (m *Manager) AppendTurn(ctx context.Context, id string, turn message.Turn) (Transcript, error) {
	t, err := m.load(ctx, id)
	if apperr.Is(err, apperr.CodeNotFound) {
		t = Transcript{ID: strings.TrimSpace(id), CreatedAt: time.Now().UTC()}
	} else if err != nil {
		return Transcript{}, err
	}
	t.Turns = append(t.Turns, turn)
	t.UpdatedAt = time.Now().UTC()
	if err := m.save(ctx, t); err != nil {
		return Transcript{}, err
	}
	return t, nil
}

// Record is AppendTurn for callers that only need the error.
func (m *Manager) Record(ctx context.Context, id string, turn message.Turn) error {
	_, err := m.AppendTurn(ctx, id, turn)
	return err
}

// List summarizes the most recent transcripts, newest first.
func (m *Manager) List(ctx context.Context, limit int) ([]Summary, error) {
	if limit <= 0 {
		limit = m.defaultListed
	}
	ids, err := m.store.ListTranscriptIDs(ctx, limit)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeStorage, "list transcripts", err)
	}
	out := make([]Summary, 0, len(ids))
	for _, id := range ids {
		t, err := m.load(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, m.summarize(t))
	}
	return out, nil
}

func (m *Manager) summarize(t Transcript) Summary {
	s := Summary{ID: t.ID, Turns: len(t.Turns), UpdatedAt: t.UpdatedAt}
	for _, turn := range t.Turns {
		if turn.Role == message.RoleUser && strings.TrimSpace(turn.Content) != "" {
			s.FirstUser = singleLine(turn.Content, m.snippetRunes)
			break
		}
	}
	for i := len(t.Turns) - 1; i >= 0; i-- {
		if t.Turns[i].Role == message.RoleAssistant && strings.TrimSpace(t.Turns[i].Content) != "" {
			s.LastReply = singleLine(t.Turns[i].Content, m.snippetRunes)
			break
		}
	}
	return s
}

func (m *Manager) load(ctx context.Context, id string) (Transcript, error) {
	raw, err := m.store.LoadTranscript(ctx, strings.TrimSpace(id))
	if errors.Is(err, storage.ErrNotFound) {
		return Transcript{}, apperr.Wrap(apperr.CodeNotFound, "transcript not found", err).WithDetail(id)
	}
	if err != nil {
		return Transcript{}, apperr.Wrap(apperr.CodeStorage, "load transcript", err)
	}
	var t Transcript
	if err := json.Unmarshal(raw, &t); err != nil {
		return Transcript{}, apperr.Wrap(apperr.CodeStorageDecode, "decode transcript", err)
	}
	return t, nil
}

func (m *Manager) save(ctx context.Context, t Transcript) error {
	raw, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("encode transcript: %w", err)
	}
	if err := m.store.SaveTranscript(ctx, t.ID, raw); err != nil {
		return apperr.Wrap(apperr.CodeStorage, "save transcript", err)
	}
	return nil
}

func clip(s string, max int) string {
	if max <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}

func singleLine(s string, max int) string {
	s = strings.TrimSpace(strings.ReplaceAll(s, "\n", " "))
	s = strings.TrimSpace(strings.ReplaceAll(s, "\t", " "))
	return clip(s, max)
}
