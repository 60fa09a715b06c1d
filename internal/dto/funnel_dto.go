package dto

import (
	"time"

	"ai-secretary-funnel-be/internal/entity"
	"ai-secretary-funnel-be/pkg/funnel/fingerprint"
	"ai-secretary-funnel-be/pkg/funnel/session"

	"github.com/google/uuid"
)

type StartSessionRequest struct {
	ClientHints fingerprint.ClientHints `json:"clientHints"`
	LandingUrl  string                  `json:"landingUrl" validate:"max=2048"`
	Referrer    string                  `json:"referrer" validate:"max=2048"`
}

// SessionResponse is the visitor's state. VisitorId addresses every other
// funnel route and stays fixed while SessionId changes on new test or reset.
type SessionResponse struct {
	VisitorId       string                   `json:"visitorId"`
	State           session.State            `json:"state"`
	ResumeCandidate *ResumeCandidateResponse `json:"resumeCandidate"`
}

func NewSessionResponse(visitorID string, state session.State) *SessionResponse {
	candidate := NewResumeCandidateResponse(state.ResumeCandidate)
	state.ResumeCandidate = nil
	return &SessionResponse{VisitorId: visitorID, State: state, ResumeCandidate: candidate}
}

type UpdateUserDataRequest struct {
	InstagramHandle *string `json:"instagramHandle" validate:"omitempty,max=64"`
	FullName        *string `json:"fullName" validate:"omitempty,max=255"`
	Email           *string `json:"email" validate:"omitempty,max=255"`
	Phone           *string `json:"phone" validate:"omitempty,max=32"`
	Specialty       *string `json:"specialty" validate:"omitempty,max=255"`
	Revenue         *string `json:"revenue" validate:"omitempty,max=64"`
}

func (r UpdateUserDataRequest) ToUserData() session.UserData {
	return session.UserData{
		InstagramHandle: r.InstagramHandle,
		FullName:        r.FullName,
		Email:           r.Email,
		Phone:           r.Phone,
		Specialty:       r.Specialty,
		Revenue:         r.Revenue,
	}
}

type StepResponse struct {
	CurrentStep int `json:"currentStep"`
	TotalSteps  int `json:"totalSteps"`
}

type PersistResponse struct {
	Persisted   bool       `json:"persisted"`
	DbSessionId *uuid.UUID `json:"dbSessionId"`
}

// ResumeCandidateResponse is what the resume prompt shows.
type ResumeCandidateResponse struct {
	Id              uuid.UUID           `json:"id"`
	SessionId       string              `json:"sessionId"`
	InstagramHandle string              `json:"instagramHandle"`
	FullName        string              `json:"fullName"`
	CurrentStep     int                 `json:"currentStep"`
	TotalSteps      int                 `json:"totalSteps"`
	ProfilePhotoUrl string              `json:"profilePhotoUrl"`
	Appointment     *entity.Appointment `json:"appointment"`
	CreatedAt       time.Time           `json:"createdAt"`
}

func NewResumeCandidateResponse(s *entity.DemoSession) *ResumeCandidateResponse {
	if s == nil {
		return nil
	}
	return &ResumeCandidateResponse{
		Id:              s.Id,
		SessionId:       s.SessionId,
		InstagramHandle: s.InstagramHandle,
		FullName:        s.FullName,
		CurrentStep:     s.CurrentStep,
		TotalSteps:      s.TotalSteps,
		ProfilePhotoUrl: s.ProfilePhotoUrl,
		Appointment:     s.Appointment,
		CreatedAt:       s.CreatedAt,
	}
}
