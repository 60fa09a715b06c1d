package session

import (
	"context"

	"ai-secretary-funnel-be/internal/entity"
	"ai-secretary-funnel-be/internal/repository/contract"
	"ai-secretary-funnel-be/internal/repository/specification"

	"github.com/google/uuid"
)

type repositoryStore struct {
	repo contract.DemoSessionRepository
}

// NewRepositoryStore adapts the demo session repository to Store.
func NewRepositoryStore(repo contract.DemoSessionRepository) Store {
	return &repositoryStore{repo: repo}
}

func (s *repositoryStore) Update(ctx context.Context, session *entity.DemoSession) error {
	return s.repo.Update(ctx, session)
}

func (s *repositoryStore) Upsert(ctx context.Context, session *entity.DemoSession) error {
	return s.repo.Upsert(ctx, session)
}

func (s *repositoryStore) FindByFingerprintAndHandle(ctx context.Context, fingerprint, handle string, exclude []uuid.UUID) (*entity.DemoSession, error) {
	return s.repo.FindOne(ctx,
		specification.SessionIDPrefix{Prefix: fingerprint + "_"},
		specification.ByInstagramHandle{Handle: handle},
		specification.ExcludeIDs{IDs: exclude},
		specification.NewestFirst(),
	)
}
