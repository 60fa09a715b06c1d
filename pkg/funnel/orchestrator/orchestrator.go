// Package orchestrator turns one visitor utterance into one assistant reply by
// driving a tool-calling chat completion, and extracts at most one appointment.
package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"ai-secretary-funnel-be/internal/entity"
	"ai-secretary-funnel-be/internal/pkg/logger"
	"ai-secretary-funnel-be/internal/repository/specification"
	"ai-secretary-funnel-be/pkg/funnel/chatlog"
	"ai-secretary-funnel-be/pkg/llm"
	"ai-secretary-funnel-be/pkg/metrics"

	"github.com/google/uuid"
	"github.com/tmc/langchaingo/prompts"
)

const (
	module = "Orchestrator"

	// Placeholder is the reply when the model never produced text.
	Placeholder = "…"

	defaultMaxRounds    = 3
	defaultHistoryLimit = 20
)

var (
	ErrSessionNotFound     = errors.New("session not found")
	ErrProviderUnavailable = errors.New("completion service is not configured")
	ErrEmptyMessage        = errors.New("message is required")
)

// SessionFinder is the slice of the session repository the orchestrator reads.
type SessionFinder interface {
	FindOne(ctx context.Context, specs ...specification.Specification) (*entity.DemoSession, error)
}

// HistoryStore loads stored turns in conversation order.
type HistoryStore interface {
	FindBySession(ctx context.Context, sessionID uuid.UUID) ([]*entity.ChatMessage, error)
}

type Config struct {
	Model        string
	Temperature  float64
	MaxTokens    int
	MaxRounds    int
	HistoryLimit int
	// TokenBudget caps the history handed to the model. 0 disables trimming.
	TokenBudget int
}

type Request struct {
	SessionId  string
	ThreadId   string
	Message    string
	NowEpochMs int64
}

// Result is the public outcome. A failure carries only Error.
type Result struct {
	Success     bool
	Message     string
	Appointment *entity.Appointment
	Error       string

	Session *entity.DemoSession `json:"-"`
	Rounds  int                 `json:"-"`
	State   State               `json:"-"`
}

func (r Result) MarshalJSON() ([]byte, error) {
	if !r.Success {
		return json.Marshal(struct {
			Success bool   `json:"success"`
			Error   string `json:"error"`
		}{false, r.Error})
	}
	return json.Marshal(struct {
		Success     bool                `json:"success"`
		Message     string              `json:"message"`
		Appointment *entity.Appointment `json:"appointment"`
	}{true, r.Message, r.Appointment})
}

// State is where the tool-calling loop stands.
type State int

const (
	StateAwaitingModel State = iota
	StateExecutingTools
	StateDone
	StateExhausted
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateAwaitingModel:
		return "awaiting_model"
	case StateExecutingTools:
		return "executing_tools"
	case StateDone:
		return "done"
	case StateExhausted:
		return "exhausted"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

type Orchestrator struct {
	provider llm.LLMProvider
	sessions SessionFinder
	history  HistoryStore
	clock    *Clock
	prompt   prompts.PromptTemplate
	tokens   TokenCounter
	cfg      Config
	logger   logger.ILogger
	metrics  *metrics.Funnel
}

// NewOrchestrator accepts a nil provider: every request then fails as a
// configuration error instead of the process refusing to start.
func NewOrchestrator(
	provider llm.LLMProvider,
	sessions SessionFinder,
	history HistoryStore,
	clock *Clock,
	tokens TokenCounter,
	cfg Config,
	log logger.ILogger,
	m *metrics.Funnel,
) *Orchestrator {
	if cfg.MaxRounds <= 0 {
		cfg.MaxRounds = defaultMaxRounds
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = defaultHistoryLimit
	}
	if tokens == nil {
		tokens = EstimateTokens
	}
	return &Orchestrator{
		provider: provider,
		sessions: sessions,
		history:  history,
		clock:    clock,
		prompt:   newSystemPrompt(),
		tokens:   tokens,
		cfg:      cfg,
		logger:   log,
		metrics:  m,
	}
}

// Complete never returns an error; failures are reported in the Result.
func (o *Orchestrator) Complete(ctx context.Context, req Request) Result {
	result, err := o.complete(ctx, req)
	if err != nil {
		o.metrics.Completion(StateFailed.String(), result.Rounds)
		o.logger.Error(module, "Completion failed", map[string]interface{}{
			"session_id": req.SessionId,
			"thread_id":  req.ThreadId,
			"rounds":     result.Rounds,
			"error":      err.Error(),
		})
		return Result{Success: false, Error: publicError(err), Rounds: result.Rounds, State: StateFailed}
	}
	o.metrics.Completion(result.State.String(), result.Rounds)
	return result
}

func publicError(err error) string {
	switch {
	case errors.Is(err, ErrSessionNotFound), errors.Is(err, ErrEmptyMessage):
		return err.Error()
	case errors.Is(err, ErrProviderUnavailable):
		return "completion service unavailable"
	default:
		return "failed to generate a reply"
	}
}

func (o *Orchestrator) complete(ctx context.Context, req Request) (Result, error) {
	utterance := strings.TrimSpace(req.Message)
	if utterance == "" {
		return Result{}, ErrEmptyMessage
	}

	session, err := o.findSession(ctx, req.SessionId)
	if err != nil {
		return Result{}, err
	}
	if o.provider == nil {
		return Result{}, ErrProviderUnavailable
	}

	messages, err := o.buildMessages(ctx, session, req.ThreadId, utterance)
	if err != nil {
		return Result{}, err
	}

	run := &toolRun{clock: o.clock, now: o.clock.Reference(req.NowEpochMs)}
	reply, state, rounds, err := o.loop(ctx, messages, run)
	if err != nil {
		return Result{Rounds: rounds}, err
	}

	return Result{
		Success:     true,
		Message:     reply,
		Appointment: run.appointment,
		Session:     session,
		Rounds:      rounds,
		State:       state,
	}, nil
}

// findSession accepts either the row id or the client session identifier.
func (o *Orchestrator) findSession(ctx context.Context, id string) (*entity.DemoSession, error) {
	var spec specification.Specification = specification.BySessionID{SessionID: id}
	if rowID, err := uuid.Parse(id); err == nil {
		spec = specification.ByID{ID: rowID}
	}

	session, err := o.sessions.FindOne(ctx, spec)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSessionNotFound, err)
	}
	if session == nil {
		return nil, ErrSessionNotFound
	}
	return session, nil
}

func (o *Orchestrator) buildMessages(ctx context.Context, session *entity.DemoSession, threadID, utterance string) ([]llm.Message, error) {
	system, err := renderSystemPrompt(o.prompt, session.CustomPrompt)
	if err != nil {
		return nil, fmt.Errorf("render system prompt: %w", err)
	}

	stored, err := o.history.FindBySession(ctx, session.Id)
	if err != nil {
		// History is context, not a precondition.
		o.logger.Warn(module, "History unavailable, answering without it", map[string]interface{}{
			"session_id": session.Id.String(),
			"error":      err.Error(),
		})
		stored = nil
	}
	turns := o.boundHistory(chatlog.FilterThread(stored, threadID), utterance)

	messages := make([]llm.Message, 0, len(turns)+2)
	messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: system})
	for _, t := range turns {
		role := llm.RoleUser
		if t.SenderType == entity.SenderAssistant {
			role = llm.RoleAssistant
		}
		messages = append(messages, llm.Message{Role: role, Content: t.Content})
	}
	messages = append(messages, llm.Message{Role: llm.RoleUser, Content: utterance})
	return messages, nil
}

// boundHistory drops a trailing copy of the utterance (the send flow stores
// the user turn before completing), keeps the last HistoryLimit turns and
// then drops the oldest until the token budget fits.
func (o *Orchestrator) boundHistory(turns []*entity.ChatMessage, utterance string) []*entity.ChatMessage {
	if n := len(turns); n > 0 {
		last := turns[n-1]
		if last.SenderType == entity.SenderUser && strings.TrimSpace(last.Content) == utterance {
			turns = turns[:n-1]
		}
	}
	if len(turns) > o.cfg.HistoryLimit {
		turns = turns[len(turns)-o.cfg.HistoryLimit:]
	}
	if o.cfg.TokenBudget <= 0 {
		return turns
	}

	total := 0
	for _, t := range turns {
		total += o.tokens(t.Content)
	}
	for len(turns) > 0 && total > o.cfg.TokenBudget {
		total -= o.tokens(turns[0].Content)
		turns = turns[1:]
	}
	return turns
}

// loop drives AwaitingModel -> ExecutingTools -> AwaitingModel until the model
// answers with plain content (Done) or MaxRounds model calls were spent (Exhausted).
func (o *Orchestrator) loop(ctx context.Context, messages []llm.Message, run *toolRun) (string, State, int, error) {
	opts := []llm.Option{
		llm.WithTools(toolDeclarations...),
		llm.WithToolChoice("auto"),
		llm.WithTemperature(o.cfg.Temperature),
		llm.WithMaxTokens(o.cfg.MaxTokens),
	}
	if o.cfg.Model != "" {
		opts = append(opts, llm.WithModel(o.cfg.Model))
	}

	state := StateAwaitingModel
	rounds := 0
	reply := ""
	var pending []llm.ToolCall

	for state != StateDone && state != StateExhausted {
		switch state {
		case StateAwaitingModel:
			if rounds >= o.cfg.MaxRounds {
				state = StateExhausted
				continue
			}
			rounds++
			completion, err := o.provider.Complete(ctx, messages, opts...)
			if err != nil {
				return "", StateFailed, rounds, fmt.Errorf("round %d: %w", rounds, err)
			}
			if len(completion.ToolCalls) == 0 {
				reply = completion.Content
				state = StateDone
				continue
			}
			messages = append(messages, llm.Message{
				Role:      llm.RoleAssistant,
				Content:   completion.Content,
				ToolCalls: completion.ToolCalls,
			})
			pending = completion.ToolCalls
			state = StateExecutingTools

		case StateExecutingTools:
			for _, call := range pending {
				payload, err := run.execute(call)
				status := "ok"
				if err != nil {
					status = "error"
					o.logger.Warn(module, "Tool call returned an error to the model", map[string]interface{}{
						"tool":  call.Name,
						"error": err.Error(),
					})
				}
				o.metrics.ToolCall(call.Name, status)
				messages = append(messages, llm.Message{
					Role:       llm.RoleTool,
					Content:    payload,
					ToolCallID: call.ID,
					Name:       call.Name,
				})
			}
			pending = nil
			state = StateAwaitingModel
		}
	}

	if strings.TrimSpace(reply) == "" {
		reply = Placeholder
	}
	return reply, state, rounds, nil
}
