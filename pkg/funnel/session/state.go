package session

import (
	"ai-secretary-funnel-be/internal/entity"
	"ai-secretary-funnel-be/pkg/funnel/fingerprint"

	"github.com/google/uuid"
)

type Profile struct {
	InstagramHandle string `json:"instagramHandle"`
	FullName        string `json:"fullName"`
	Email           string `json:"email"`
	Phone           string `json:"phone"`
	Specialty       string `json:"specialty"`
	Revenue         string `json:"revenue"`
}

// UserData is a partial profile update; nil fields are left alone.
type UserData struct {
	InstagramHandle *string `json:"instagramHandle,omitempty"`
	FullName        *string `json:"fullName,omitempty"`
	Email           *string `json:"email,omitempty"`
	Phone           *string `json:"phone,omitempty"`
	Specialty       *string `json:"specialty,omitempty"`
	Revenue         *string `json:"revenue,omitempty"`
}

// Enrichment is what the external profile lookup produced for the handle.
type Enrichment struct {
	HasInstagramData bool               `json:"hasInstagramData"`
	ProfilePhotoUrl  string             `json:"profilePhotoUrl"`
	SamplePosts      []string           `json:"samplePosts"`
	AiInsights       *entity.AiInsights `json:"aiInsights"`
	CustomPrompt     string             `json:"customPrompt"`
}

// State is an immutable copy of a visitor's session.
type State struct {
	SessionId          string                  `json:"sessionId"`
	DbSessionId        *uuid.UUID              `json:"dbSessionId"`
	CurrentStep        int                     `json:"currentStep"`
	TotalSteps         int                     `json:"totalSteps"`
	Profile            Profile                 `json:"profile"`
	InstagramConfirmed bool                    `json:"instagramConfirmed"`
	Enrichment         Enrichment              `json:"enrichment"`
	Appointment        *entity.Appointment     `json:"appointment"`
	Attribution        fingerprint.Attribution `json:"attribution"`
	ResumePromptOpen   bool                    `json:"resumePromptOpen"`
	ResumeCandidate    *entity.DemoSession     `json:"resumeCandidate,omitempty"`
}

// Persistable reports whether the gating conditions for a durable write hold.
func (s State) Persistable() bool {
	return s.InstagramConfirmed && s.Profile.InstagramHandle != "" && s.CurrentStep >= MinPersistStep
}

func (e Enrichment) clone() Enrichment {
	out := e
	out.SamplePosts = append([]string(nil), e.SamplePosts...)
	if e.AiInsights != nil {
		insights := *e.AiInsights
		insights.Procedures = append([]string(nil), e.AiInsights.Procedures...)
		insights.RapportHooks = append([]string(nil), e.AiInsights.RapportHooks...)
		out.AiInsights = &insights
	}
	return out
}
