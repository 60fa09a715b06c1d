package service

import (
	"context"

	"ai-secretary-funnel-be/internal/pkg/logger"
	"ai-secretary-funnel-be/internal/pkg/mailer"
	"ai-secretary-funnel-be/pkg/events"
	pktNats "ai-secretary-funnel-be/pkg/nats"
)

const (
	notificationModule  = "NotificationService"
	notificationDurable = "lead-notification-worker"
)

// EventSubscriber is the NATS subscriber.
type EventSubscriber interface {
	Subscribe(ctx context.Context, eventType, durableName string, handler pktNats.EventHandler) error
}

// NotificationService mails sales whenever a demo visitor books an appointment.
type NotificationService struct {
	subscriber EventSubscriber
	mailer     mailer.IEmailService
	salesInbox string
	logger     logger.ILogger
}

func NewNotificationService(sub EventSubscriber, mail mailer.IEmailService, salesInbox string, log logger.ILogger) *NotificationService {
	return &NotificationService{
		subscriber: sub,
		mailer:     mail,
		salesInbox: salesInbox,
		logger:     log,
	}
}

// Start subscribes to captured appointments. Without a mailer or an inbox it
// does nothing.
func (s *NotificationService) Start(ctx context.Context) {
	if s.subscriber == nil || s.mailer == nil || s.salesInbox == "" {
		s.logger.Info(notificationModule, "Lead notification disabled", nil)
		return
	}
	if err := s.subscriber.Subscribe(ctx, events.TypeAppointmentCaptured, notificationDurable, s.handleEvent); err != nil {
		s.logger.Error(notificationModule, "Failed to start notification subscriber", map[string]interface{}{"error": err.Error()})
		return
	}
	s.logger.Info(notificationModule, "Lead notification started", map[string]interface{}{"inbox": s.salesInbox})
}

func (s *NotificationService) handleEvent(ctx context.Context, event events.Event) error {
	if event.EventType() != events.TypeAppointmentCaptured {
		return nil
	}

	lead := LeadFromPayload(event.Payload())
	if err := s.mailer.SendAppointmentLead(s.salesInbox, lead); err != nil {
		s.logger.Error(notificationModule, "Lead mail failed", map[string]interface{}{
			"instagram_handle": lead.InstagramHandle,
			"error":            err.Error(),
		})
		return err
	}

	s.logger.Info(notificationModule, "Lead mail sent", map[string]interface{}{
		"instagram_handle": lead.InstagramHandle,
		"date":             lead.DisplayDate,
	})
	return nil
}

func LeadFromPayload(p map[string]interface{}) mailer.Lead {
	return mailer.Lead{
		FullName:        events.String(p, "full_name"),
		InstagramHandle: events.String(p, "instagram_handle"),
		Email:           events.String(p, "email"),
		Phone:           events.String(p, "phone"),
		Specialty:       events.String(p, "specialty"),
		UtmSource:       events.String(p, "utm_source"),
		UtmCampaign:     events.String(p, "utm_campaign"),
		PatientName:     events.String(p, "patient_name"),
		Procedure:       events.String(p, "procedure"),
		DisplayDate:     events.String(p, "display_date"),
		DisplayTime:     events.String(p, "display_time"),
	}
}
