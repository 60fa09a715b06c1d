package dto

import "ai-secretary-funnel-be/internal/entity"

type StepReach struct {
	Step    int     `json:"step"`
	Reached int64   `json:"reached"`
	Rate    float64 `json:"rate"`
}

type FunnelAnalyticsResponse struct {
	TotalSessions int64              `json:"totalSessions"`
	ByStep        []entity.StepCount `json:"byStep"`
	Reach         []StepReach        `json:"reach"`
}

type AttributionAnalyticsResponse struct {
	TotalSessions int64                `json:"totalSessions"`
	BySource      []entity.SourceCount `json:"bySource"`
}

type AppointmentAnalyticsResponse struct {
	TotalSessions  int64   `json:"totalSessions"`
	Appointments   int64   `json:"appointments"`
	ConversionRate float64 `json:"conversionRate"`
}

type LogListRequest struct {
	Level  string `query:"level" validate:"omitempty,oneof=debug info warn error"`
	Limit  int    `query:"limit" validate:"gte=0,lte=500"`
	Offset int    `query:"offset" validate:"gte=0"`
}
