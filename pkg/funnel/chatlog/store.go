package chatlog

import (
	"context"

	"ai-secretary-funnel-be/internal/entity"
	"ai-secretary-funnel-be/internal/repository/contract"
	"ai-secretary-funnel-be/internal/repository/specification"

	"github.com/google/uuid"
)

type repositoryStore struct {
	repo contract.ChatMessageRepository
}

// NewRepositoryStore adapts the chat message repository to Store.
func NewRepositoryStore(repo contract.ChatMessageRepository) Store {
	return &repositoryStore{repo: repo}
}

func (s *repositoryStore) Append(ctx context.Context, message *entity.ChatMessage) error {
	return s.repo.Append(ctx, message)
}

func (s *repositoryStore) FindBySession(ctx context.Context, sessionID uuid.UUID) ([]*entity.ChatMessage, error) {
	return s.repo.FindAll(ctx,
		specification.ByDemoSessionID{SessionID: sessionID},
		specification.InConversationOrder(),
	)
}
