package implementation

import (
	"context"
	"errors"

	"ai-secretary-funnel-be/internal/entity"
	"ai-secretary-funnel-be/internal/mapper"
	"ai-secretary-funnel-be/internal/model"
	"ai-secretary-funnel-be/internal/repository/contract"
	"ai-secretary-funnel-be/internal/repository/specification"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// upsertColumns are overwritten when a row with the same session_id exists.
// id, session_id and created_at are never touched.
var upsertColumns = []string{
	"instagram_handle", "full_name", "email", "phone", "specialty", "revenue",
	"current_step", "total_steps", "has_instagram_data", "profile_photo_url",
	"sample_posts", "ai_insights", "custom_prompt", "appointment",
	"utm_source", "utm_medium", "utm_campaign", "referrer", "user_agent",
	"updated_at",
}

type DemoSessionRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.SessionMapper
}

func NewDemoSessionRepository(db *gorm.DB) contract.DemoSessionRepository {
	return &DemoSessionRepositoryImpl{
		db:     db,
		mapper: mapper.NewSessionMapper(),
	}
}

func (r *DemoSessionRepositoryImpl) applySpecifications(db *gorm.DB, specs ...specification.Specification) *gorm.DB {
	for _, spec := range specs {
		db = spec.Apply(db)
	}
	return db
}

func (r *DemoSessionRepositoryImpl) Create(ctx context.Context, session *entity.DemoSession) error {
	m := r.mapper.DemoSessionToModel(session)
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return err
	}
	*session = *r.mapper.DemoSessionToEntity(m)
	return nil
}

func (r *DemoSessionRepositoryImpl) Update(ctx context.Context, session *entity.DemoSession) error {
	m := r.mapper.DemoSessionToModel(session)
	result := r.db.WithContext(ctx).Model(m).Select(upsertColumns).Updates(m)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return r.reload(ctx, session, specification.ByID{ID: session.Id})
}

func (r *DemoSessionRepositoryImpl) Upsert(ctx context.Context, session *entity.DemoSession) error {
	m := r.mapper.DemoSessionToModel(session)
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "session_id"}},
		DoUpdates: clause.AssignmentColumns(upsertColumns),
	}).Create(m).Error
	if err != nil {
		return err
	}
	// On conflict the generated id is discarded, so read the stored row back.
	return r.reload(ctx, session, specification.BySessionID{SessionID: session.SessionId})
}

func (r *DemoSessionRepositoryImpl) reload(ctx context.Context, session *entity.DemoSession, spec specification.Specification) error {
	stored, err := r.FindOne(ctx, spec)
	if err != nil {
		return err
	}
	if stored == nil {
		return gorm.ErrRecordNotFound
	}
	*session = *stored
	return nil
}

func (r *DemoSessionRepositoryImpl) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.DemoSession, error) {
	var m model.DemoSession
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	// Take keeps the caller's ordering; First would prepend ORDER BY id.
	if err := query.Take(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.mapper.DemoSessionToEntity(&m), nil
}

func (r *DemoSessionRepositoryImpl) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.DemoSession, error) {
	var models []*model.DemoSession
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	entities := make([]*entity.DemoSession, len(models))
	for i, m := range models {
		entities[i] = r.mapper.DemoSessionToEntity(m)
	}
	return entities, nil
}

func (r *DemoSessionRepositoryImpl) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	var count int64
	query := r.applySpecifications(r.db.WithContext(ctx).Model(&model.DemoSession{}), specs...)
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *DemoSessionRepositoryImpl) CountByStep(ctx context.Context) ([]entity.StepCount, error) {
	var rows []entity.StepCount
	err := r.db.WithContext(ctx).
		Model(&model.DemoSession{}).
		Select("current_step AS step, COUNT(*) AS total").
		Group("current_step").
		Order("current_step ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *DemoSessionRepositoryImpl) CountBySource(ctx context.Context) ([]entity.SourceCount, error) {
	var rows []entity.SourceCount
	err := r.db.WithContext(ctx).
		Model(&model.DemoSession{}).
		Select("COALESCE(utm_source, '') AS source, COUNT(*) AS total").
		Group("COALESCE(utm_source, '')").
		Order("total DESC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
