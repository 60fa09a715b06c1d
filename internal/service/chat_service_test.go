package service

import (
	"context"
	"testing"

	"ai-secretary-funnel-be/internal/dto"
	"ai-secretary-funnel-be/internal/entity"
	"ai-secretary-funnel-be/internal/pkg/logger"
	"ai-secretary-funnel-be/pkg/events"
	"ai-secretary-funnel-be/pkg/funnel/orchestrator"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChatService_SendBeforePersistable(t *testing.T) {
	f := newFunnelFixture(t, nil)
	id := startVisitor(t, f)
	completer := &scriptedCompleter{}
	chat := NewChatService(f.svc, completer, f.events, logger.NewNopLogger())

	result, err := chat.Send(context.Background(), &dto.SendRequest{VisitorId: id, Message: "oi"})
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, "session not found", result.Error)
	assert.Empty(t, completer.requests)
}

func TestChatService_SendUnknownVisitor(t *testing.T) {
	f := newFunnelFixture(t, nil)
	chat := NewChatService(f.svc, &scriptedCompleter{}, nil, logger.NewNopLogger())

	_, err := chat.Send(context.Background(), &dto.SendRequest{VisitorId: "missing", Message: "oi"})
	assert.ErrorIs(t, err, ErrVisitorNotFound)
}

func TestChatService_SendCapturesAppointment(t *testing.T) {
	f := newFunnelFixture(t, nil)
	id := startVisitor(t, f)
	reachPersistable(t, f, id)

	appt := &entity.Appointment{DateISO: "2025-06-20T14:00:00-03:00", DisplayDate: "sexta-feira, 20 de junho de 2025", DisplayTime: "14:00"}
	completer := &scriptedCompleter{result: orchestrator.Result{
		Success:     true,
		Message:     "Agendado para sexta às 14h!",
		Appointment: appt,
		Session:     &entity.DemoSession{SessionId: "s", InstagramHandle: "draana", FullName: "Ana Souza"},
	}}
	chat := NewChatService(f.svc, completer, f.events, logger.NewNopLogger())

	result, err := chat.Send(context.Background(), &dto.SendRequest{
		VisitorId:  id,
		ThreadId:   "t1",
		Message:    "  quero marcar sexta às 14h  ",
		NowEpochMs: 1749567600000,
	})
	require.NoError(t, err)
	assert.True(t, result.Success)

	mgr := f.manager(t, id)
	state := mgr.Snapshot()
	require.NotNil(t, state.DbSessionId)

	require.Len(t, completer.requests, 1)
	req := completer.requests[0]
	assert.Equal(t, state.DbSessionId.String(), req.SessionId)
	assert.Equal(t, "t1", req.ThreadId)
	assert.Equal(t, "quero marcar sexta às 14h", req.Message)
	assert.EqualValues(t, 1749567600000, req.NowEpochMs)

	stored, err := f.messages.FindBySession(context.Background(), *state.DbSessionId)
	require.NoError(t, err)
	require.Len(t, stored, 2)
	assert.Equal(t, entity.SenderUser, stored[0].SenderType)
	assert.Equal(t, entity.SenderAssistant, stored[1].SenderType)
	assert.Equal(t, "t1", stored[1].ThreadID())

	require.NotNil(t, state.Appointment)
	assert.Equal(t, appt.DateISO, state.Appointment.DateISO)

	captured := f.events.ofType(events.TypeAppointmentCaptured)
	require.Len(t, captured, 1)
	assert.Equal(t, "Ana Souza", events.String(captured[0].Payload(), "full_name"))
	assert.Equal(t, "14:00", events.String(captured[0].Payload(), "display_time"))
}

func TestChatService_FailedCompletionStoresOnlyUserTurn(t *testing.T) {
	f := newFunnelFixture(t, nil)
	id := startVisitor(t, f)
	reachPersistable(t, f, id)

	completer := &scriptedCompleter{result: orchestrator.Result{Success: false, Error: "failed to generate a reply"}}
	chat := NewChatService(f.svc, completer, f.events, logger.NewNopLogger())

	result, err := chat.Send(context.Background(), &dto.SendRequest{VisitorId: id, Message: "oi"})
	require.NoError(t, err)
	assert.False(t, result.Success)

	messages, err := chat.Messages(context.Background(), id, "")
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.Equal(t, entity.SenderUser, messages[0].SenderType)
	assert.Empty(t, f.events.ofType(events.TypeAppointmentCaptured))
}

func TestChatService_MessagesAndReset(t *testing.T) {
	f := newFunnelFixture(t, nil)
	id := startVisitor(t, f)
	reachPersistable(t, f, id)

	completer := &scriptedCompleter{result: orchestrator.Result{Success: true, Message: "Olá!"}}
	chat := NewChatService(f.svc, completer, nil, logger.NewNopLogger())
	ctx := context.Background()

	_, err := chat.Send(ctx, &dto.SendRequest{VisitorId: id, ThreadId: "a", Message: "oi"})
	require.NoError(t, err)
	_, err = chat.Send(ctx, &dto.SendRequest{VisitorId: id, ThreadId: "b", Message: "bom dia"})
	require.NoError(t, err)

	all, err := chat.Messages(ctx, id, "")
	require.NoError(t, err)
	require.Len(t, all, 4)
	for i, m := range all {
		assert.Equal(t, i+1, m.MessageOrder)
	}

	threadB, err := chat.Messages(ctx, id, "b")
	require.NoError(t, err)
	require.Len(t, threadB, 2)
	assert.Equal(t, "bom dia", threadB[0].Content)

	require.NoError(t, chat.ResetConversation(ctx, id))
	cleared, err := chat.Messages(ctx, id, "")
	require.NoError(t, err)
	assert.Empty(t, cleared)

	state := f.manager(t, id).Snapshot()
	stored, err := f.messages.FindBySession(ctx, *state.DbSessionId)
	require.NoError(t, err)
	assert.Len(t, stored, 4, "stored history survives a UI reset")

	assert.ErrorIs(t, chat.ResetConversation(ctx, "missing"), ErrVisitorNotFound)
}

func TestChatService_CompletePassesThrough(t *testing.T) {
	f := newFunnelFixture(t, nil)
	completer := &scriptedCompleter{result: orchestrator.Result{Success: true, Message: "ok"}}
	chat := NewChatService(f.svc, completer, nil, logger.NewNopLogger())

	result := chat.Complete(context.Background(), &dto.CompleteRequest{SessionId: "abc_1", ThreadId: "t", Message: "oi", NowEpochMs: 5})
	assert.Equal(t, "ok", result.Message)
	assert.Equal(t, orchestrator.Request{SessionId: "abc_1", ThreadId: "t", Message: "oi", NowEpochMs: 5}, completer.requests[0])
}
