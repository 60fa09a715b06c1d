package unitofwork

import (
	"context"

	"ai-secretary-funnel-be/internal/repository/contract"
)

type UnitOfWork interface {
	Begin(ctx context.Context) error
	Commit() error
	Rollback() error

	DemoSessionRepository() contract.DemoSessionRepository
	ChatMessageRepository() contract.ChatMessageRepository
}
