package controller

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"ai-secretary-funnel-be/internal/dto"
	"ai-secretary-funnel-be/internal/pkg/logger"
	"ai-secretary-funnel-be/internal/pkg/serverutils"
	"ai-secretary-funnel-be/internal/repository/memory"
	"ai-secretary-funnel-be/internal/service"
	internalWS "ai-secretary-funnel-be/internal/websocket"
	"ai-secretary-funnel-be/pkg/funnel/orchestrator"
	"ai-secretary-funnel-be/pkg/funnel/session"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type envelope struct {
	Success bool            `json:"success"`
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func newApp(register ...func(r fiber.Router)) *fiber.App {
	app := fiber.New()
	app.Use(serverutils.ErrorHandlerMiddleware())
	api := app.Group("/api")
	for _, r := range register {
		r(api)
	}
	return app
}

func do(t *testing.T, app *fiber.App, method, path, body string, headers ...string) (int, envelope) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	var env envelope
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &env), string(raw))
	return resp.StatusCode, env
}

func newFunnelService(t *testing.T) service.IFunnelService {
	t.Helper()
	visitors := memory.NewVisitorRepository(time.Hour, nil)
	deps := session.Deps{Logger: logger.NewNopLogger()}
	cfg := session.Config{TotalSteps: 16, PersistDelay: time.Hour, LookupDelay: time.Hour}
	return service.NewFunnelService(visitors, cfg, deps, nil, nil, nil, logger.NewNopLogger())
}

func startSession(t *testing.T, app *fiber.App) string {
	t.Helper()
	status, env := do(t, app, http.MethodPost, "/api/funnel/v1/sessions",
		`{"clientHints":{"platform":"iPhone"},"landingUrl":"https://demo.example.com/?utm_source=instagram"}`,
		"User-Agent", "Mozilla/5.0")
	require.Equal(t, http.StatusOK, status)
	require.True(t, env.Success)

	var res dto.SessionResponse
	require.NoError(t, json.Unmarshal(env.Data, &res))
	require.NotEmpty(t, res.VisitorId)
	assert.Equal(t, "instagram", res.State.Attribution.UtmSource)
	assert.Equal(t, "Mozilla/5.0", res.State.Attribution.UserAgent)
	return res.VisitorId
}

func TestFunnelController_Lifecycle(t *testing.T) {
	app := newApp(NewFunnelController(newFunnelService(t)).RegisterRoutes)
	id := startSession(t, app)
	base := "/api/funnel/v1/sessions/" + id

	status, env := do(t, app, http.MethodPatch, base+"/user-data", `{"instagramHandle":"@DraAna","fullName":"Ana"}`)
	require.Equal(t, http.StatusOK, status)
	var res dto.SessionResponse
	require.NoError(t, json.Unmarshal(env.Data, &res))
	assert.Equal(t, "draana", res.State.Profile.InstagramHandle)

	status, env = do(t, app, http.MethodPost, base+"/advance", "")
	require.Equal(t, http.StatusOK, status)
	var step dto.StepResponse
	require.NoError(t, json.Unmarshal(env.Data, &step))
	assert.Equal(t, dto.StepResponse{CurrentStep: 1, TotalSteps: 16}, step)

	status, _ = do(t, app, http.MethodPost, base+"/retreat", "")
	assert.Equal(t, http.StatusOK, status)

	status, env = do(t, app, http.MethodPost, base+"/confirm", "")
	require.Equal(t, http.StatusOK, status)
	require.NoError(t, json.Unmarshal(env.Data, &res))
	assert.True(t, res.State.InstagramConfirmed)

	status, env = do(t, app, http.MethodPost, base+"/persist", "")
	require.Equal(t, http.StatusOK, status)
	var persisted dto.PersistResponse
	require.NoError(t, json.Unmarshal(env.Data, &persisted))
	assert.False(t, persisted.Persisted)

	status, env = do(t, app, http.MethodGet, base+"/resume-candidate", "")
	require.Equal(t, http.StatusOK, status)
	assert.Empty(t, env.Data, "no candidate pending")

	status, env = do(t, app, http.MethodPost, base+"/resume", "")
	assert.Equal(t, http.StatusConflict, status)
	assert.False(t, env.Success)

	status, env = do(t, app, http.MethodPost, base+"/start-new", "")
	require.Equal(t, http.StatusOK, status)
	require.NoError(t, json.Unmarshal(env.Data, &res))
	assert.Equal(t, id, res.VisitorId)
	assert.Equal(t, "draana", res.State.Profile.InstagramHandle)

	status, env = do(t, app, http.MethodPost, base+"/reset", "")
	require.Equal(t, http.StatusOK, status)
	require.NoError(t, json.Unmarshal(env.Data, &res))
	assert.Empty(t, res.State.Profile.InstagramHandle)

	status, _ = do(t, app, http.MethodGet, base, "")
	assert.Equal(t, http.StatusOK, status)
}

func TestFunnelController_Errors(t *testing.T) {
	app := newApp(NewFunnelController(newFunnelService(t)).RegisterRoutes)

	status, env := do(t, app, http.MethodGet, "/api/funnel/v1/sessions/unknown", "")
	assert.Equal(t, http.StatusNotFound, status)
	assert.False(t, env.Success)
	assert.Equal(t, http.StatusNotFound, env.Code)

	id := startSession(t, app)
	status, env = do(t, app, http.MethodPatch, "/api/funnel/v1/sessions/"+id+"/user-data",
		`{"instagramHandle":"`+strings.Repeat("a", 65)+`"}`)
	assert.Equal(t, http.StatusBadRequest, status)
	var fields map[string]string
	require.NoError(t, json.Unmarshal(env.Data, &fields))
	assert.Equal(t, "max=64", fields["InstagramHandle"])

	status, _ = do(t, app, http.MethodPatch, "/api/funnel/v1/sessions/"+id+"/user-data", `{"instagramHandle":`)
	assert.Equal(t, http.StatusBadRequest, status)
}

type stubChatService struct {
	result   orchestrator.Result
	err      error
	complete []*dto.CompleteRequest
}

func (s *stubChatService) Complete(_ context.Context, req *dto.CompleteRequest) orchestrator.Result {
	s.complete = append(s.complete, req)
	return s.result
}

func (s *stubChatService) Send(context.Context, *dto.SendRequest) (orchestrator.Result, error) {
	return s.result, s.err
}

func (s *stubChatService) Messages(_ context.Context, visitorID, threadID string) ([]dto.ChatMessageResponse, error) {
	if s.err != nil {
		return nil, s.err
	}
	return []dto.ChatMessageResponse{{MessageOrder: 1, SenderType: "user", Content: threadID}}, nil
}

func (s *stubChatService) ResetConversation(context.Context, string) error {
	return s.err
}

func TestChatController_CompleteSuccess(t *testing.T) {
	chat := &stubChatService{result: orchestrator.Result{Success: true, Message: "Olá!"}}
	app := newApp(NewChatController(chat).RegisterRoutes)

	status, env := do(t, app, http.MethodPost, "/api/chat/v1/complete",
		`{"sessionId":"abc_1","threadId":"t","message":"oi","nowEpochMs":1749567600000}`)
	require.Equal(t, http.StatusOK, status)
	assert.True(t, env.Success)
	assert.JSONEq(t, `{"success":true,"message":"Olá!","appointment":null}`, string(env.Data))
	require.Len(t, chat.complete, 1)
	assert.EqualValues(t, 1749567600000, chat.complete[0].NowEpochMs)
}

func TestChatController_FailedCompletionIs200(t *testing.T) {
	chat := &stubChatService{result: orchestrator.Result{Success: false, Error: "failed to generate a reply"}}
	app := newApp(NewChatController(chat).RegisterRoutes)

	status, env := do(t, app, http.MethodPost, "/api/chat/v1/send", `{"visitorId":"v","message":"oi"}`)
	require.Equal(t, http.StatusOK, status)
	assert.False(t, env.Success)
	assert.Equal(t, "failed to generate a reply", env.Message)
	assert.JSONEq(t, `{"success":false,"error":"failed to generate a reply"}`, string(env.Data))
}

func TestChatController_Validation(t *testing.T) {
	app := newApp(NewChatController(&stubChatService{}).RegisterRoutes)

	status, env := do(t, app, http.MethodPost, "/api/chat/v1/complete", `{"sessionId":"abc_1"}`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, env.Message, "Message")
}

func TestChatController_MessagesAndReset(t *testing.T) {
	app := newApp(NewChatController(&stubChatService{}).RegisterRoutes)

	status, env := do(t, app, http.MethodGet, "/api/chat/v1/sessions/v/messages?thread_id=t9", "")
	require.Equal(t, http.StatusOK, status)
	var messages []dto.ChatMessageResponse
	require.NoError(t, json.Unmarshal(env.Data, &messages))
	require.Len(t, messages, 1)
	assert.Equal(t, "t9", messages[0].Content)

	status, _ = do(t, app, http.MethodPost, "/api/chat/v1/sessions/v/reset", "")
	assert.Equal(t, http.StatusOK, status)

	missing := newApp(NewChatController(&stubChatService{err: service.ErrVisitorNotFound}).RegisterRoutes)
	status, _ = do(t, missing, http.MethodPost, "/api/chat/v1/sessions/v/reset", "")
	assert.Equal(t, http.StatusNotFound, status)
}

type stubAnalytics struct{}

func (stubAnalytics) Funnel(context.Context) (*dto.FunnelAnalyticsResponse, error) {
	return &dto.FunnelAnalyticsResponse{TotalSessions: 3}, nil
}

func (stubAnalytics) Attribution(context.Context) (*dto.AttributionAnalyticsResponse, error) {
	return &dto.AttributionAnalyticsResponse{TotalSessions: 3}, nil
}

func (stubAnalytics) Appointments(context.Context) (*dto.AppointmentAnalyticsResponse, error) {
	return &dto.AppointmentAnalyticsResponse{TotalSessions: 3, Appointments: 1}, nil
}

func token(t *testing.T, secret, role string) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  "admin-1",
		"role": role,
		"exp":  time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(secret))
	require.NoError(t, err)
	return "Bearer " + signed
}

func TestAnalyticsController_RequiresAdmin(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	app := newApp(NewAnalyticsController(stubAnalytics{}, service.NewLogService(logger.NewNopLogger())).RegisterRoutes)

	status, _ := do(t, app, http.MethodGet, "/api/admin/analytics/v1/funnel", "")
	assert.Equal(t, http.StatusUnauthorized, status)

	status, _ = do(t, app, http.MethodGet, "/api/admin/analytics/v1/funnel", "", "Authorization", token(t, "wrong", "admin"))
	assert.Equal(t, http.StatusUnauthorized, status)

	status, _ = do(t, app, http.MethodGet, "/api/admin/analytics/v1/funnel", "", "Authorization", token(t, "test-secret", "user"))
	assert.Equal(t, http.StatusForbidden, status)

	auth := token(t, "test-secret", "admin")
	for _, path := range []string{"funnel", "attribution", "appointments"} {
		status, env := do(t, app, http.MethodGet, "/api/admin/analytics/v1/"+path, "", "Authorization", auth)
		assert.Equal(t, http.StatusOK, status, path)
		assert.Contains(t, string(env.Data), `"totalSessions":3`, path)
	}

	status, env := do(t, app, http.MethodGet, "/api/admin/logs/v1?level=warn&limit=10", "", "Authorization", auth)
	assert.Equal(t, http.StatusOK, status)
	assert.True(t, env.Success)

	status, _ = do(t, app, http.MethodGet, "/api/admin/logs/v1?level=verbose", "", "Authorization", auth)
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = do(t, app, http.MethodGet, "/api/admin/logs/v1/nope", "", "Authorization", auth)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestWebsocketController_RejectsBeforeUpgrade(t *testing.T) {
	funnel := newFunnelService(t)
	hub := internalWS.NewHub(nil, "test", logger.NewNopLogger())

	app := fiber.New()
	app.Use(serverutils.ErrorHandlerMiddleware())
	NewWebsocketController(funnel, hub).RegisterRoutes(app)

	status, env := do(t, app, http.MethodGet, "/ws/funnel/unknown", "")
	assert.Equal(t, http.StatusUpgradeRequired, status)
	assert.False(t, env.Success)

	status, env = do(t, app, http.MethodGet, "/ws/funnel/unknown", "",
		"Connection", "Upgrade",
		"Upgrade", "websocket",
		"Sec-WebSocket-Version", "13",
		"Sec-WebSocket-Key", "dGhlIHNhbXBsZSBub25jZQ==")
	assert.Equal(t, http.StatusNotFound, status)
	assert.False(t, env.Success)
}
