package contract

import (
	"context"

	"ai-secretary-funnel-be/internal/entity"
	"ai-secretary-funnel-be/internal/repository/specification"
)

type DemoSessionRepository interface {
	Create(ctx context.Context, session *entity.DemoSession) error
	Update(ctx context.Context, session *entity.DemoSession) error
	// Upsert inserts or, when session_id already exists, overwrites the mutable columns.
	Upsert(ctx context.Context, session *entity.DemoSession) error
	FindOne(ctx context.Context, specs ...specification.Specification) (*entity.DemoSession, error)
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.DemoSession, error)
	Count(ctx context.Context, specs ...specification.Specification) (int64, error)

	CountByStep(ctx context.Context) ([]entity.StepCount, error)
	CountBySource(ctx context.Context) ([]entity.SourceCount, error)
}
