package specification

import (
	"ai-secretary-funnel-be/internal/repository/scope"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ByDemoSessionID scopes chat messages to one durable session row.
type ByDemoSessionID struct {
	SessionID uuid.UUID
}

func (s ByDemoSessionID) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("session_id = ?", s.SessionID)
}

// InConversationOrder returns messages in message_order.
func InConversationOrder() Specification {
	return Scoped{Scope: scope.InConversationOrder}
}
