package chat

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"ragchat/internal/domain"
	"ragchat/internal/port"
)

// State is the session lifecycle phase.
type State int

const (
	StateAwaitingInput State = iota
	StateGenerating
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateAwaitingInput:
		return "awaiting_input"
	case StateGenerating:
		return "generating"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Turn is one user input and the assistant's response. Mutable only by
// appending deltas until marked complete.
type Turn struct {
	User      string
	Assistant string
	Complete  bool
}

// Retriever is the slice of the retrieval service a session needs.
type Retriever interface {
	Retrieve(ctx context.Context, query string, k int) (domain.RetrievalResult, error)
}

// Ingester accepts uploaded documents from the connection.
type Ingester interface {
	Ingest(ctx context.Context, name string, data []byte) (IngestOutcome, error)
}

// IngestOutcome mirrors the retrieval service's ingest result without
// importing it, keeping the orchestrator testable in isolation.
type IngestOutcome struct {
	DocID       string
	ChunksAdded int
}

// Sender delivers outbound events to the client. Implementations must be
// safe for use from the generation goroutine.
type Sender interface {
	Send(Event) error
}

// Config carries the orchestrator tunables.
type Config struct {
	SystemPrompt     string
	RAGTemplate      string
	RetrievalTimeout time.Duration
	RetrievalTopK    int
}

// Session owns one client connection's conversation: turn history, the
// current phase, and the in-flight generation if any. Never shared across
// connections; destroyed on disconnect.
type Session struct {
	ID string

	retriever Retriever
	ingester  Ingester
	model     port.ChatModel
	sender    Sender
	cfg       Config
	log       *logrus.Entry

	mu      sync.Mutex
	state   State
	history []domain.Message
	turns   []Turn
	cancel  context.CancelFunc // cancels the in-flight generation
	done    chan struct{}      // closed when the in-flight generation exits
}

func NewSession(retriever Retriever, ingester Ingester, model port.ChatModel, sender Sender, cfg Config, log *logrus.Logger) *Session {
	id := uuid.NewString()
	if cfg.RetrievalTopK <= 0 {
		cfg.RetrievalTopK = 5
	}
	if cfg.RetrievalTimeout <= 0 {
		cfg.RetrievalTimeout = 10 * time.Second
	}
	return &Session{
		ID:        id,
		retriever: retriever,
		ingester:  ingester,
		model:     model,
		sender:    sender,
		cfg:       cfg,
		log:       log.WithField("session", id),
	}
}

// State returns the current phase.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Turns returns a copy of the completed and in-flight turns.
func (s *Session) Turns() []Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Turn, len(s.turns))
	copy(out, s.turns)
	return out
}

// Open announces the session to the client.
func (s *Session) Open() {
	s.send(Event{Type: EventConnected, Message: "ragchat session established"})
}

// Close abandons any in-flight generation and marks the session closed.
// Idempotent; called on disconnect or transport error.
func (s *Session) Close() {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return
	}
	s.state = StateClosed
	cancel := s.cancel
	done := s.done
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
	s.log.Info("session closed")
}

// HandleMessage dispatches one inbound frame. Called serially by the
// connection's read loop; generation itself runs on its own goroutine so
// a busy session can still answer pings and reject overlapping turns.
func (s *Session) HandleMessage(ctx context.Context, raw []byte) {
	env, err := DecodeEnvelope(raw)
	if err != nil {
		s.sendError(ErrKindProtocol, "invalid JSON message")
		return
	}

	switch env.Type {
	case EventChat:
		s.handleChat(ctx, env)
	case EventIngest:
		s.handleIngest(ctx, env)
	case EventClear:
		s.handleClear()
	case EventPing:
		s.send(Event{Type: EventPong})
	default:
		s.sendError(ErrKindProtocol, fmt.Sprintf("unknown message type: %q", env.Type))
	}
}

func (s *Session) handleChat(ctx context.Context, env Envelope) {
	if strings.TrimSpace(env.Text) == "" {
		s.sendError(ErrKindProtocol, "chat text must be a non-empty string")
		return
	}

	useRAG := true
	if env.UseRAG != nil {
		useRAG = *env.UseRAG
	}

	s.mu.Lock()
	switch s.state {
	case StateClosed:
		s.mu.Unlock()
		return
	case StateGenerating:
		s.mu.Unlock()
		s.sendError(ErrKindBusy, domain.ErrSessionBusy.Error())
		return
	}

	genCtx, cancel := context.WithCancel(ctx)
	s.state = StateGenerating
	s.cancel = cancel
	s.done = make(chan struct{})
	s.turns = append(s.turns, Turn{User: env.Text})
	done := s.done
	s.mu.Unlock()

	go func() {
		defer close(done)
		defer cancel()
		s.runTurn(genCtx, env.Text, useRAG)
	}()
}

// runTurn executes one full generation: optional retrieval, prompt
// assembly, token streaming, and the state transition back to awaiting
// input.
func (s *Session) runTurn(ctx context.Context, text string, useRAG bool) {
	start := time.Now()

	prompt := text
	if useRAG {
		if ragContext := s.retrieveContext(ctx, text); ragContext != "" {
			prompt = s.renderTemplate(ragContext, text)
		}
	}

	s.mu.Lock()
	s.history = append(s.history, domain.Message{Role: domain.RoleUser, Content: prompt})
	messages := s.promptMessages()
	s.mu.Unlock()

	events, err := s.model.Stream(ctx, messages, nil)
	if err != nil {
		s.finishTurn(false, "")
		s.sendError(ErrKindProvider, err.Error())
		return
	}

	var full strings.Builder
	for ev := range events {
		if ev.Err != nil {
			s.finishTurn(false, "")
			s.sendError(ErrKindProvider, ev.Err.Error())
			return
		}
		full.WriteString(ev.Delta)
		s.send(Event{Type: EventDelta, Delta: ev.Delta})
	}

	if ctx.Err() != nil {
		// Disconnect mid-stream: the turn is abandoned, nothing to send.
		s.finishTurn(false, "")
		return
	}

	response := full.String()
	s.finishTurn(true, response)

	s.send(Event{
		Type:           EventComplete,
		ElapsedMS:      time.Since(start).Milliseconds(),
		ResponseLength: len(response),
	})
}

// retrieveContext runs bounded retrieval. Timeout or failure degrades the
// turn to generation without context; the turn never fails here.
func (s *Session) retrieveContext(ctx context.Context, query string) string {
	rctx, cancel := context.WithTimeout(ctx, s.cfg.RetrievalTimeout)
	defer cancel()

	result, err := s.retriever.Retrieve(rctx, query, s.cfg.RetrievalTopK)
	if err != nil {
		s.log.WithError(err).Warn("retrieval failed, continuing without context")
		return ""
	}
	if len(result.Passages) == 0 {
		return ""
	}

	notices := make([]PassageNotice, len(result.Passages))
	var sb strings.Builder
	for i, p := range result.Passages {
		notices[i] = PassageNotice{
			ChunkID: p.Chunk.ID,
			DocID:   p.Chunk.DocID,
			Score:   p.Score,
			Text:    p.Chunk.Text,
		}
		if i > 0 {
			sb.WriteString("\n\n---\n\n")
		}
		fmt.Fprintf(&sb, "[Passage %d] (source: %s, relevance: %.2f)\n%s",
			i+1, p.Chunk.DocID, p.Score, p.Chunk.Text)
	}

	s.send(Event{
		Type:     EventRAGContext,
		Results:  notices,
		Count:    len(notices),
		Degraded: result.Degraded,
	})

	return sb.String()
}

func (s *Session) renderTemplate(ragContext, query string) string {
	tmpl := s.cfg.RAGTemplate
	tmpl = strings.ReplaceAll(tmpl, "{context}", ragContext)
	return strings.ReplaceAll(tmpl, "{query}", query)
}

// promptMessages builds the provider message list. Caller holds s.mu.
func (s *Session) promptMessages() []domain.Message {
	messages := make([]domain.Message, 0, len(s.history)+1)
	if s.cfg.SystemPrompt != "" {
		messages = append(messages, domain.Message{Role: domain.RoleSystem, Content: s.cfg.SystemPrompt})
	}
	return append(messages, s.history...)
}

// finishTurn records the turn outcome and returns the session to awaiting
// input (unless it was closed while generating). An incomplete turn keeps
// its partial text out of history so a failed generation never pollutes
// later prompts.
func (s *Session) finishTurn(complete bool, response string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.turns) > 0 {
		turn := &s.turns[len(s.turns)-1]
		if complete {
			turn.Assistant = response
			turn.Complete = true
		}
	}

	if complete {
		s.history = append(s.history, domain.Message{Role: domain.RoleAssistant, Content: response})
	} else if len(s.history) > 0 {
		// Drop the user message of the failed turn.
		s.history = s.history[:len(s.history)-1]
		if len(s.turns) > 0 && !s.turns[len(s.turns)-1].Complete {
			s.turns = s.turns[:len(s.turns)-1]
		}
	}

	s.cancel = nil
	if s.state == StateGenerating {
		s.state = StateAwaitingInput
	}
}

func (s *Session) handleIngest(ctx context.Context, env Envelope) {
	if env.Filename == "" {
		s.sendError(ErrKindProtocol, "ingest requires a filename")
		return
	}

	data, err := base64.StdEncoding.DecodeString(env.Content)
	if err != nil {
		s.sendError(ErrKindProtocol, "ingest content must be base64")
		return
	}

	// Ingestion is independent of the chat lifecycle: no artificial
	// timeout, and a disconnect does not abort an in-flight write.
	outcome, err := s.ingester.Ingest(ctx, env.Filename, data)
	if err != nil {
		if errors.Is(err, domain.ErrUnsupportedFormat) {
			s.sendError(ErrKindFormat, err.Error())
		} else {
			s.sendError(ErrKindIngest, err.Error())
		}
		return
	}

	s.send(Event{
		Type:     EventIngestComplete,
		Filename: env.Filename,
		Chunks:   outcome.ChunksAdded,
	})
}

func (s *Session) handleClear() {
	s.mu.Lock()
	if s.state == StateGenerating {
		s.mu.Unlock()
		s.sendError(ErrKindBusy, "cannot clear while generating")
		return
	}
	s.history = nil
	s.turns = nil
	s.mu.Unlock()

	s.send(Event{Type: EventCleared})
}

func (s *Session) send(ev Event) {
	if err := s.sender.Send(ev); err != nil {
		s.log.WithError(err).Debug("failed to send event")
	}
}

func (s *Session) sendError(kind, message string) {
	s.send(Event{Type: EventError, Kind: kind, Message: message})
}
