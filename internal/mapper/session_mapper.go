package mapper

import (
	"encoding/json"
	"time"

	"ai-secretary-funnel-be/internal/entity"
	"ai-secretary-funnel-be/internal/model"

	"gorm.io/datatypes"
)

type SessionMapper struct{}

func NewSessionMapper() *SessionMapper {
	return &SessionMapper{}
}

// Demo session mappers

func (m *SessionMapper) DemoSessionToEntity(s *model.DemoSession) *entity.DemoSession {
	if s == nil {
		return nil
	}

	var updatedAt *time.Time
	if !s.UpdatedAt.IsZero() {
		t := s.UpdatedAt
		updatedAt = &t
	}

	e := &entity.DemoSession{
		Id:               s.Id,
		SessionId:        s.SessionId,
		InstagramHandle:  s.InstagramHandle,
		FullName:         deref(s.FullName),
		Email:            deref(s.Email),
		Phone:            deref(s.Phone),
		Specialty:        deref(s.Specialty),
		Revenue:          deref(s.Revenue),
		CurrentStep:      s.CurrentStep,
		TotalSteps:       s.TotalSteps,
		HasInstagramData: s.HasInstagramData,
		ProfilePhotoUrl:  deref(s.ProfilePhotoUrl),
		CustomPrompt:     deref(s.CustomPrompt),
		UtmSource:        deref(s.UtmSource),
		UtmMedium:        deref(s.UtmMedium),
		UtmCampaign:      deref(s.UtmCampaign),
		Referrer:         deref(s.Referrer),
		UserAgent:        s.UserAgent,
		CreatedAt:        s.CreatedAt,
		UpdatedAt:        updatedAt,
	}

	unmarshalJSON(s.SamplePosts, &e.SamplePosts)
	if len(s.AiInsights) > 0 && string(s.AiInsights) != "null" {
		var insights entity.AiInsights
		if unmarshalJSON(s.AiInsights, &insights) {
			e.AiInsights = &insights
		}
	}
	if len(s.Appointment) > 0 && string(s.Appointment) != "null" {
		var appt entity.Appointment
		if unmarshalJSON(s.Appointment, &appt) {
			e.Appointment = &appt
		}
	}

	return e
}

func (m *SessionMapper) DemoSessionToModel(s *entity.DemoSession) *model.DemoSession {
	if s == nil {
		return nil
	}

	totalSteps := s.TotalSteps
	if totalSteps == 0 {
		totalSteps = entity.DemoTotalSteps
	}

	out := &model.DemoSession{
		Id:               s.Id,
		SessionId:        s.SessionId,
		InstagramHandle:  s.InstagramHandle,
		FullName:         ptr(s.FullName),
		Email:            ptr(s.Email),
		Phone:            ptr(s.Phone),
		Specialty:        ptr(s.Specialty),
		Revenue:          ptr(s.Revenue),
		CurrentStep:      s.CurrentStep,
		TotalSteps:       totalSteps,
		HasInstagramData: s.HasInstagramData,
		ProfilePhotoUrl:  ptr(s.ProfilePhotoUrl),
		CustomPrompt:     ptr(s.CustomPrompt),
		UtmSource:        ptr(s.UtmSource),
		UtmMedium:        ptr(s.UtmMedium),
		UtmCampaign:      ptr(s.UtmCampaign),
		Referrer:         ptr(s.Referrer),
		UserAgent:        s.UserAgent,
		CreatedAt:        s.CreatedAt,
	}
	if s.UpdatedAt != nil {
		out.UpdatedAt = *s.UpdatedAt
	}

	if len(s.SamplePosts) > 0 {
		out.SamplePosts = marshalJSON(s.SamplePosts)
	}
	if s.AiInsights != nil {
		out.AiInsights = marshalJSON(s.AiInsights)
	}
	if s.Appointment != nil {
		out.Appointment = marshalJSON(s.Appointment)
	}

	return out
}

// Chat message mappers

func (m *SessionMapper) ChatMessageToEntity(c *model.ChatMessage) *entity.ChatMessage {
	if c == nil {
		return nil
	}

	e := &entity.ChatMessage{
		Id:            c.Id,
		SessionId:     c.SessionId,
		MessageOrder:  c.MessageOrder,
		SenderType:    c.SenderType,
		Content:       c.Content,
		TimestampSent: c.TimestampSent,
	}
	unmarshalJSON(c.MessageMetadata, &e.Metadata)
	return e
}

func (m *SessionMapper) ChatMessageToModel(c *entity.ChatMessage) *model.ChatMessage {
	if c == nil {
		return nil
	}

	metadata := c.Metadata
	if metadata == nil {
		metadata = map[string]interface{}{entity.MetadataThreadID: nil}
	}

	return &model.ChatMessage{
		Id:              c.Id,
		SessionId:       c.SessionId,
		MessageOrder:    c.MessageOrder,
		SenderType:      c.SenderType,
		Content:         c.Content,
		MessageMetadata: marshalJSON(metadata),
		TimestampSent:   c.TimestampSent,
	}
}

func (m *SessionMapper) ChatMessagesToEntities(models []*model.ChatMessage) []*entity.ChatMessage {
	entities := make([]*entity.ChatMessage, len(models))
	for i, c := range models {
		entities[i] = m.ChatMessageToEntity(c)
	}
	return entities
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func ptr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func marshalJSON(v interface{}) datatypes.JSON {
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return datatypes.JSON(b)
}

func unmarshalJSON(raw datatypes.JSON, dst interface{}) bool {
	if len(raw) == 0 {
		return false
	}
	return json.Unmarshal(raw, dst) == nil
}
