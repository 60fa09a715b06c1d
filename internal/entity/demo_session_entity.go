package entity

import (
	"time"

	"github.com/google/uuid"
)

const DemoTotalSteps = 16

type DemoSession struct {
	Id        uuid.UUID
	SessionId string // Client-assigned: <fingerprint>_<unix-ms>

	InstagramHandle string
	FullName        string
	Email           string
	Phone           string
	Specialty       string
	Revenue         string

	CurrentStep int
	TotalSteps  int

	HasInstagramData bool
	ProfilePhotoUrl  string
	SamplePosts      []string
	AiInsights       *AiInsights
	CustomPrompt     string

	Appointment *Appointment

	UtmSource   string
	UtmMedium   string
	UtmCampaign string
	Referrer    string
	UserAgent   string

	CreatedAt time.Time
	UpdatedAt *time.Time
}

// AiInsights is produced by the enrichment webhook, never by this service.
type AiInsights struct {
	Name         string   `json:"name"`
	Location     string   `json:"location"`
	Procedures   []string `json:"procedures"`
	RapportHooks []string `json:"rapportHooks"`
}

type Appointment struct {
	DateISO     string `json:"dateISO"`
	DisplayDate string `json:"displayDate"`
	DisplayTime string `json:"displayTime"`
	PatientName string `json:"patientName,omitempty"`
	Procedure   string `json:"procedure,omitempty"`
}
