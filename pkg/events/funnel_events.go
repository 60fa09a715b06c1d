package events

import (
	"context"
	"time"

	"ai-secretary-funnel-be/internal/entity"
)

const (
	TypeSessionPersisted    = "SESSION_PERSISTED"
	TypeAppointmentCaptured = "APPOINTMENT_CAPTURED"
	TypeEnrichmentCompleted = "ENRICHMENT_COMPLETED"
)

// Publisher is implemented by the NATS publisher. A nil Publisher is valid in
// services and means events are dropped.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

func SessionPersisted(sessionID, dbSessionID, handle string, step int, created bool) Event {
	return BaseEvent{
		Type: TypeSessionPersisted,
		Data: map[string]interface{}{
			"session_id":       sessionID,
			"db_session_id":    dbSessionID,
			"instagram_handle": handle,
			"current_step":     step,
			"created":          created,
		},
		OccurredAt: time.Now(),
	}
}

func AppointmentCaptured(session *entity.DemoSession, appt *entity.Appointment) Event {
	data := map[string]interface{}{
		"date_iso":     appt.DateISO,
		"display_date": appt.DisplayDate,
		"display_time": appt.DisplayTime,
		"patient_name": appt.PatientName,
		"procedure":    appt.Procedure,
	}
	if session != nil {
		data["session_id"] = session.SessionId
		data["db_session_id"] = session.Id.String()
		data["instagram_handle"] = session.InstagramHandle
		data["full_name"] = session.FullName
		data["email"] = session.Email
		data["phone"] = session.Phone
		data["specialty"] = session.Specialty
		data["utm_source"] = session.UtmSource
		data["utm_campaign"] = session.UtmCampaign
	}
	return BaseEvent{Type: TypeAppointmentCaptured, Data: data, OccurredAt: time.Now()}
}

func EnrichmentCompleted(sessionID, handle string, found bool) Event {
	return BaseEvent{
		Type: TypeEnrichmentCompleted,
		Data: map[string]interface{}{
			"session_id":       sessionID,
			"instagram_handle": handle,
			"found":            found,
		},
		OccurredAt: time.Now(),
	}
}

// String reads a string field from a payload, "" when absent.
func String(payload map[string]interface{}, key string) string {
	v, _ := payload[key].(string)
	return v
}
