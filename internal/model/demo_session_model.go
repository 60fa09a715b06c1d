package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type DemoSession struct {
	Id              uuid.UUID `gorm:"type:uuid;primaryKey"`
	SessionId       string    `gorm:"type:text;not null;uniqueIndex"`
	InstagramHandle string    `gorm:"type:text;not null;index"`

	FullName  *string `gorm:"type:text"`
	Email     *string `gorm:"type:text"`
	Phone     *string `gorm:"type:text"`
	Specialty *string `gorm:"type:text"`
	Revenue   *string `gorm:"type:text"`

	CurrentStep int `gorm:"not null;default:0;index"`
	TotalSteps  int `gorm:"not null;default:16"`

	HasInstagramData bool           `gorm:"not null;default:false"`
	ProfilePhotoUrl  *string        `gorm:"type:text"`
	SamplePosts      datatypes.JSON `gorm:"type:jsonb"`
	AiInsights       datatypes.JSON `gorm:"type:jsonb"`
	CustomPrompt     *string        `gorm:"type:text"`
	Appointment      datatypes.JSON `gorm:"type:jsonb"`

	UtmSource   *string `gorm:"type:text;index"`
	UtmMedium   *string `gorm:"type:text"`
	UtmCampaign *string `gorm:"type:text"`
	Referrer    *string `gorm:"type:text"`
	UserAgent   string  `gorm:"type:text"`

	CreatedAt time.Time `gorm:"autoCreateTime;index"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`

	// Only declares the chat_messages foreign key; never loaded.
	Messages []ChatMessage `gorm:"foreignKey:SessionId;references:Id;constraint:OnDelete:CASCADE"`
}

func (DemoSession) TableName() string {
	return "demo_sessions"
}

func (s *DemoSession) BeforeCreate(tx *gorm.DB) error {
	if s.Id == uuid.Nil {
		s.Id = uuid.New()
	}
	return nil
}
