package implementation

import (
	"context"
	"fmt"

	"ai-secretary-funnel-be/internal/entity"
	"ai-secretary-funnel-be/internal/mapper"
	"ai-secretary-funnel-be/internal/model"
	"ai-secretary-funnel-be/internal/repository/contract"
	"ai-secretary-funnel-be/internal/repository/specification"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ChatMessageRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.SessionMapper
}

func NewChatMessageRepository(db *gorm.DB) contract.ChatMessageRepository {
	return &ChatMessageRepositoryImpl{
		db:     db,
		mapper: mapper.NewSessionMapper(),
	}
}

func (r *ChatMessageRepositoryImpl) applySpecifications(db *gorm.DB, specs ...specification.Specification) *gorm.DB {
	for _, spec := range specs {
		db = spec.Apply(db)
	}
	return db
}

func (r *ChatMessageRepositoryImpl) Append(ctx context.Context, message *entity.ChatMessage) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Row lock on the parent session serializes concurrent appends.
		var owner model.DemoSession
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Select("id").
			Where("id = ?", message.SessionId).
			Take(&owner).Error
		if err != nil {
			return fmt.Errorf("lock session %s: %w", message.SessionId, err)
		}

		var last int
		err = tx.Model(&model.ChatMessage{}).
			Where("session_id = ?", message.SessionId).
			Select("COALESCE(MAX(message_order), 0)").
			Scan(&last).Error
		if err != nil {
			return err
		}

		m := r.mapper.ChatMessageToModel(message)
		m.MessageOrder = last + 1
		if err := tx.Create(m).Error; err != nil {
			return err
		}
		*message = *r.mapper.ChatMessageToEntity(m)
		return nil
	})
}

func (r *ChatMessageRepositoryImpl) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.ChatMessage, error) {
	var models []*model.ChatMessage
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	return r.mapper.ChatMessagesToEntities(models), nil
}

func (r *ChatMessageRepositoryImpl) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	var count int64
	query := r.applySpecifications(r.db.WithContext(ctx).Model(&model.ChatMessage{}), specs...)
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
