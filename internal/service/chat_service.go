package service

import (
	"context"
	"strings"

	"ai-secretary-funnel-be/internal/dto"
	"ai-secretary-funnel-be/internal/entity"
	"ai-secretary-funnel-be/internal/pkg/logger"
	"ai-secretary-funnel-be/pkg/events"
	"ai-secretary-funnel-be/pkg/funnel/orchestrator"
)

const chatModule = "ChatService"

// Completer is the completion orchestrator.
type Completer interface {
	Complete(ctx context.Context, req orchestrator.Request) orchestrator.Result
}

type IChatService interface {
	Complete(ctx context.Context, req *dto.CompleteRequest) orchestrator.Result
	Send(ctx context.Context, req *dto.SendRequest) (orchestrator.Result, error)
	Messages(ctx context.Context, visitorID, threadID string) ([]dto.ChatMessageResponse, error)
	ResetConversation(ctx context.Context, visitorID string) error
}

type chatService struct {
	funnel    IFunnelService
	completer Completer
	events    events.Publisher
	logger    logger.ILogger
}

func NewChatService(funnel IFunnelService, completer Completer, publisher events.Publisher, log logger.ILogger) IChatService {
	return &chatService{
		funnel:    funnel,
		completer: completer,
		events:    publisher,
		logger:    log,
	}
}

func (c *chatService) Complete(ctx context.Context, req *dto.CompleteRequest) orchestrator.Result {
	return c.completer.Complete(ctx, orchestrator.Request{
		SessionId:  req.SessionId,
		ThreadId:   req.ThreadId,
		Message:    req.Message,
		NowEpochMs: req.NowEpochMs,
	})
}

// Send runs one chat round for a live visitor: the user turn is stored, the
// orchestrator answers from stored history, and the reply is stored after it.
// A captured appointment lands on the visitor's session.
func (c *chatService) Send(ctx context.Context, req *dto.SendRequest) (orchestrator.Result, error) {
	mgr, err := c.funnel.Visitor(req.VisitorId)
	if err != nil {
		return orchestrator.Result{}, err
	}

	state := mgr.Snapshot()
	if state.DbSessionId == nil {
		mgr.Persist(ctx)
		state = mgr.Snapshot()
	}
	if state.DbSessionId == nil {
		return orchestrator.Result{Success: false, Error: orchestrator.ErrSessionNotFound.Error()}, nil
	}

	text := strings.TrimSpace(req.Message)
	metadata := threadMetadata(req.ThreadId)
	if _, err := mgr.Log().Append(ctx, entity.SenderUser, text, metadata); err != nil {
		c.logger.Warn(chatModule, "User turn not stored", map[string]interface{}{
			"visitor_id": req.VisitorId,
			"error":      err.Error(),
		})
	}

	result := c.completer.Complete(ctx, orchestrator.Request{
		SessionId:  state.DbSessionId.String(),
		ThreadId:   req.ThreadId,
		Message:    text,
		NowEpochMs: req.NowEpochMs,
	})
	if !result.Success {
		return result, nil
	}

	if _, err := mgr.Log().Append(ctx, entity.SenderAssistant, result.Message, metadata); err != nil {
		c.logger.Warn(chatModule, "Assistant turn not stored", map[string]interface{}{
			"visitor_id": req.VisitorId,
			"error":      err.Error(),
		})
	}

	if result.Appointment != nil {
		mgr.SetAppointment(result.Appointment)
		c.publishAppointment(ctx, result)
	}
	return result, nil
}

func (c *chatService) publishAppointment(ctx context.Context, result orchestrator.Result) {
	c.logger.Info(chatModule, "Appointment captured", map[string]interface{}{
		"date_iso": result.Appointment.DateISO,
	})
	if c.events == nil {
		return
	}
	if err := c.events.Publish(ctx, events.AppointmentCaptured(result.Session, result.Appointment)); err != nil {
		c.logger.Warn(chatModule, "Failed to publish appointment event", map[string]interface{}{"error": err.Error()})
	}
}

func (c *chatService) Messages(ctx context.Context, visitorID, threadID string) ([]dto.ChatMessageResponse, error) {
	mgr, err := c.funnel.Visitor(visitorID)
	if err != nil {
		return nil, err
	}
	return dto.NewChatMessageResponses(mgr.Log().ThreadMessages(threadID)), nil
}

func (c *chatService) ResetConversation(ctx context.Context, visitorID string) error {
	mgr, err := c.funnel.Visitor(visitorID)
	if err != nil {
		return err
	}
	mgr.Log().ResetInMemory()
	return nil
}

func threadMetadata(threadID string) map[string]interface{} {
	if threadID == "" {
		return nil
	}
	return map[string]interface{}{entity.MetadataThreadID: threadID}
}
