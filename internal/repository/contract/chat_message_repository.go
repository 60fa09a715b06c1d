package contract

import (
	"context"

	"ai-secretary-funnel-be/internal/entity"
	"ai-secretary-funnel-be/internal/repository/specification"
)

type ChatMessageRepository interface {
	// Append assigns the next message_order for the session and inserts the row
	// in one transaction. MessageOrder on the argument is ignored and overwritten.
	Append(ctx context.Context, message *entity.ChatMessage) error
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.ChatMessage, error)
	Count(ctx context.Context, specs ...specification.Specification) (int64, error)
}
