// Package chatlog keeps the ordered, append-only record of chat turns for one
// visitor. Turns are written through to storage once the session has a durable
// row; an in-memory mirror serves the live UI.
package chatlog

import (
	"context"
	"errors"
	"sync"
	"time"

	"ai-secretary-funnel-be/internal/entity"
	"ai-secretary-funnel-be/internal/pkg/logger"

	"github.com/google/uuid"
)

const module = "ChatLog"

var ErrInvalidSender = errors.New("sender must be user or assistant")

// Store is the durable side of the log. Append assigns MessageOrder.
type Store interface {
	Append(ctx context.Context, message *entity.ChatMessage) error
	FindBySession(ctx context.Context, sessionID uuid.UUID) ([]*entity.ChatMessage, error)
}

type Log struct {
	mu        sync.Mutex
	store     Store
	logger    logger.ILogger
	now       func() time.Time
	sessionID uuid.UUID
	messages  []*entity.ChatMessage
}

func New(store Store, log logger.ILogger) *Log {
	return &Log{
		store:  store,
		logger: log,
		now:    time.Now,
	}
}

// Bind attaches the log to a durable session row and loads its turns.
// Binding to the row already attached is a no-op.
func (l *Log) Bind(ctx context.Context, sessionID uuid.UUID) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if sessionID == uuid.Nil {
		return nil
	}
	if l.sessionID == sessionID {
		return nil
	}
	l.sessionID = sessionID
	l.messages = nil
	return l.loadLocked(ctx)
}

// Load replaces the mirror with every stored turn of the bound session.
func (l *Log) Load(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.loadLocked(ctx)
}

func (l *Log) loadLocked(ctx context.Context) error {
	if l.sessionID == uuid.Nil {
		return nil
	}
	stored, err := l.store.FindBySession(ctx, l.sessionID)
	if err != nil {
		l.logger.Error(module, "Failed to load conversation", map[string]interface{}{
			"session_id": l.sessionID.String(),
			"error":      err.Error(),
		})
		return err
	}
	l.messages = stored
	return nil
}

// Unbind drops the durable link and the mirror. Stored turns are untouched.
func (l *Log) Unbind() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.sessionID = uuid.Nil
	l.messages = nil
}

// Append writes one turn. Without a durable session it silently does nothing
// and returns (nil, nil). metadata always ends up carrying a threadId key.
func (l *Log) Append(ctx context.Context, sender, content string, metadata map[string]interface{}) (*entity.ChatMessage, error) {
	if sender != entity.SenderUser && sender != entity.SenderAssistant {
		return nil, ErrInvalidSender
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.sessionID == uuid.Nil {
		return nil, nil
	}

	md := make(map[string]interface{}, len(metadata)+1)
	for k, v := range metadata {
		md[k] = v
	}
	if _, ok := md[entity.MetadataThreadID]; !ok {
		md[entity.MetadataThreadID] = nil
	}

	msg := &entity.ChatMessage{
		SessionId:     l.sessionID,
		SenderType:    sender,
		Content:       content,
		Metadata:      md,
		TimestampSent: l.now(),
	}
	if err := l.store.Append(ctx, msg); err != nil {
		l.logger.Error(module, "Failed to append message", map[string]interface{}{
			"session_id": l.sessionID.String(),
			"sender":     sender,
			"error":      err.Error(),
		})
		return nil, err
	}

	l.messages = append(l.messages, msg)
	return msg, nil
}

// ResetInMemory clears the mirror only, so a fresh chat starts empty while
// stored history stays available for analytics.
func (l *Log) ResetInMemory() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = nil
}

func (l *Log) SessionID() (uuid.UUID, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.sessionID, l.sessionID != uuid.Nil
}

// Messages returns a copy of the mirror in conversation order.
func (l *Log) Messages() []*entity.ChatMessage {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]*entity.ChatMessage, len(l.messages))
	copy(out, l.messages)
	return out
}

// ThreadMessages returns mirrored turns tagged with threadID. An empty
// threadID returns everything.
func (l *Log) ThreadMessages(threadID string) []*entity.ChatMessage {
	return FilterThread(l.Messages(), threadID)
}

// FilterThread keeps messages whose threadId tag equals threadID exactly.
func FilterThread(messages []*entity.ChatMessage, threadID string) []*entity.ChatMessage {
	if threadID == "" {
		return messages
	}
	out := make([]*entity.ChatMessage, 0, len(messages))
	for _, m := range messages {
		if m.ThreadID() == threadID {
			out = append(out, m)
		}
	}
	return out
}
