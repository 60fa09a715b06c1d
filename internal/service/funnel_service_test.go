package service

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"ai-secretary-funnel-be/internal/dto"
	"ai-secretary-funnel-be/internal/entity"
	"ai-secretary-funnel-be/internal/pkg/serverutils"
	"ai-secretary-funnel-be/pkg/events"
	"ai-secretary-funnel-be/pkg/funnel/fingerprint"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startVisitor(t *testing.T, f *funnelFixture) string {
	t.Helper()
	resp, err := f.svc.Start(context.Background(), &dto.StartSessionRequest{
		ClientHints: fingerprint.ClientHints{AcceptLanguage: "pt-BR", Screen: "390x844"},
		LandingUrl:  "https://demo.example.com/?utm_source=instagram&utm_campaign=lancamento",
	}, "Mozilla/5.0 (iPhone)")
	require.NoError(t, err)
	f.manager(t, resp.VisitorId)
	return resp.VisitorId
}

// reachPersistable confirms a handle and walks to the first persistable step.
func reachPersistable(t *testing.T, f *funnelFixture, visitorID string) {
	t.Helper()
	ctx := context.Background()
	_, err := f.svc.UpdateUserData(ctx, visitorID, &dto.UpdateUserDataRequest{InstagramHandle: strPtr("@DraAna")})
	require.NoError(t, err)
	_, err = f.svc.ConfirmProfile(ctx, visitorID)
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		_, err = f.svc.AdvanceStep(ctx, visitorID)
		require.NoError(t, err)
	}
}

func TestFunnelService_Start(t *testing.T) {
	f := newFunnelFixture(t, nil)

	resp, err := f.svc.Start(context.Background(), &dto.StartSessionRequest{
		ClientHints: fingerprint.ClientHints{Platform: "iPhone"},
		LandingUrl:  "https://demo.example.com/?utm_source=instagram&utm_campaign=lancamento",
	}, "Mozilla/5.0 (iPhone)")
	require.NoError(t, err)
	f.manager(t, resp.VisitorId)

	_, err = uuid.Parse(resp.VisitorId)
	assert.NoError(t, err)
	assert.Equal(t, "instagram", resp.State.Attribution.UtmSource)
	assert.Equal(t, "lancamento", resp.State.Attribution.UtmCampaign)
	assert.Equal(t, "Mozilla/5.0 (iPhone)", resp.State.Attribution.UserAgent)
	assert.Equal(t, 16, resp.State.TotalSteps)
	assert.Zero(t, resp.State.CurrentStep)
	assert.NotEmpty(t, fingerprint.Prefix(resp.State.SessionId))
	assert.Nil(t, resp.ResumeCandidate)

	shown, err := f.svc.Show(context.Background(), resp.VisitorId)
	require.NoError(t, err)
	assert.Equal(t, resp.State.SessionId, shown.State.SessionId)
}

func TestFunnelService_UnknownVisitor(t *testing.T) {
	f := newFunnelFixture(t, nil)
	ctx := context.Background()

	_, err := f.svc.Show(ctx, "missing")
	assert.ErrorIs(t, err, ErrVisitorNotFound)
	assert.ErrorIs(t, err, serverutils.ErrNotFound)

	_, err = f.svc.AdvanceStep(ctx, "missing")
	assert.ErrorIs(t, err, ErrVisitorNotFound)
	_, err = f.svc.Persist(ctx, "missing")
	assert.ErrorIs(t, err, ErrVisitorNotFound)
}

func TestFunnelService_StepsClamp(t *testing.T) {
	f := newFunnelFixture(t, nil)
	id := startVisitor(t, f)
	ctx := context.Background()

	step, err := f.svc.RetreatStep(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 0, step.CurrentStep)

	for i := 0; i < 20; i++ {
		step, err = f.svc.AdvanceStep(ctx, id)
		require.NoError(t, err)
	}
	assert.Equal(t, 16, step.CurrentStep)
	assert.Equal(t, 16, step.TotalSteps)
}

func TestFunnelService_ConfirmQueuesEnrichment(t *testing.T) {
	f := newFunnelFixture(t, nil)
	id := startVisitor(t, f)
	ctx := context.Background()

	resp, err := f.svc.UpdateUserData(ctx, id, &dto.UpdateUserDataRequest{
		InstagramHandle: strPtr("@DraAna"),
		FullName:        strPtr(" Ana Souza "),
	})
	require.NoError(t, err)
	assert.Equal(t, "draana", resp.State.Profile.InstagramHandle)
	assert.Equal(t, "Ana Souza", resp.State.Profile.FullName)
	assert.Empty(t, f.jobs.payloads, "no job before the handle is confirmed")

	resp, err = f.svc.ConfirmProfile(ctx, id)
	require.NoError(t, err)
	assert.True(t, resp.State.InstagramConfirmed)

	require.Len(t, f.jobs.payloads, 1)
	var job dto.EnrichmentJob
	require.NoError(t, json.Unmarshal(f.jobs.payloads[0], &job))
	assert.Equal(t, dto.EnrichmentJob{VisitorId: id, InstagramHandle: "draana"}, job)

	// Same handle again: nothing new to look up.
	_, err = f.svc.UpdateUserData(ctx, id, &dto.UpdateUserDataRequest{InstagramHandle: strPtr("draana")})
	require.NoError(t, err)
	assert.Len(t, f.jobs.payloads, 1)

	_, err = f.svc.UpdateUserData(ctx, id, &dto.UpdateUserDataRequest{InstagramHandle: strPtr("clinicasorriso")})
	require.NoError(t, err)
	assert.Len(t, f.jobs.payloads, 2)

	assert.Greater(t, f.pusher.count(), 0)
	for _, p := range f.pusher.pushes {
		assert.Equal(t, id, p.visitorID)
		assert.Equal(t, PushState, p.kind)
	}
}

func TestFunnelService_Persist(t *testing.T) {
	f := newFunnelFixture(t, nil)
	id := startVisitor(t, f)
	ctx := context.Background()

	early, err := f.svc.Persist(ctx, id)
	require.NoError(t, err)
	assert.False(t, early.Persisted)
	assert.Nil(t, early.DbSessionId)

	reachPersistable(t, f, id)
	resp, err := f.svc.Persist(ctx, id)
	require.NoError(t, err)
	assert.True(t, resp.Persisted)
	require.NotNil(t, resp.DbSessionId)
	assert.Equal(t, 1, f.store.len())

	persisted := f.events.ofType(events.TypeSessionPersisted)
	require.Len(t, persisted, 1)
	assert.Equal(t, resp.DbSessionId.String(), events.String(persisted[0].Payload(), "db_session_id"))
	assert.Equal(t, true, persisted[0].Payload()["created"])

	again, err := f.svc.Persist(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, resp.DbSessionId, again.DbSessionId)
	assert.Equal(t, 1, f.store.len())
	assert.Equal(t, false, f.events.ofType(events.TypeSessionPersisted)[1].Payload()["created"])
}

func TestFunnelService_ResumeWithoutCandidate(t *testing.T) {
	f := newFunnelFixture(t, nil)
	id := startVisitor(t, f)

	_, err := f.svc.Resume(context.Background(), id)
	assert.ErrorIs(t, err, serverutils.ErrConflict)

	candidate, err := f.svc.ResumeCandidate(context.Background(), id)
	require.NoError(t, err)
	assert.Nil(t, candidate)
}

func TestFunnelService_Resume(t *testing.T) {
	earlier := &entity.DemoSession{
		Id:              uuid.New(),
		SessionId:       "0011223344556677_1700000000000",
		InstagramHandle: "draana",
		FullName:        "Ana Souza",
		CurrentStep:     9,
		TotalSteps:      16,
		Appointment:     &entity.Appointment{DateISO: "2025-06-20T14:00:00-03:00"},
	}
	f := newFunnelFixture(t, fixedFinder{candidate: earlier})
	id := startVisitor(t, f)
	ctx := context.Background()

	_, err := f.svc.UpdateUserData(ctx, id, &dto.UpdateUserDataRequest{InstagramHandle: strPtr("draana")})
	require.NoError(t, err)
	confirmed, err := f.svc.ConfirmProfile(ctx, id)
	require.NoError(t, err)
	assert.True(t, confirmed.State.ResumePromptOpen)
	require.NotNil(t, confirmed.ResumeCandidate)
	assert.Equal(t, earlier.Id, confirmed.ResumeCandidate.Id)
	assert.Nil(t, confirmed.State.ResumeCandidate)

	pending, err := f.svc.ResumeCandidate(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, pending)
	assert.Equal(t, 9, pending.CurrentStep)

	resumed, err := f.svc.Resume(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, earlier.SessionId, resumed.State.SessionId)
	assert.Equal(t, 9, resumed.State.CurrentStep)
	assert.False(t, resumed.State.ResumePromptOpen)
	require.NotNil(t, resumed.State.DbSessionId)
	assert.Equal(t, earlier.Id, *resumed.State.DbSessionId)
	require.NotNil(t, resumed.State.Appointment)

	fresh, err := f.svc.StartNewTest(ctx, id)
	require.NoError(t, err)
	assert.NotEqual(t, earlier.SessionId, fresh.State.SessionId)
	assert.Zero(t, fresh.State.CurrentStep)
	assert.Equal(t, "draana", fresh.State.Profile.InstagramHandle)
	assert.Nil(t, fresh.State.DbSessionId)
}

func TestFunnelService_ResetDemo(t *testing.T) {
	f := newFunnelFixture(t, nil)
	id := startVisitor(t, f)
	ctx := context.Background()
	reachPersistable(t, f, id)

	before, err := f.svc.Show(ctx, id)
	require.NoError(t, err)

	reset, err := f.svc.ResetDemo(ctx, id)
	require.NoError(t, err)
	assert.NotEqual(t, before.State.SessionId, reset.State.SessionId)
	assert.True(t, strings.HasPrefix(reset.State.SessionId, fingerprint.Prefix(before.State.SessionId)+"_"))
	assert.Empty(t, reset.State.Profile.InstagramHandle)
	assert.False(t, reset.State.InstagramConfirmed)
	assert.Zero(t, reset.State.CurrentStep)
	assert.Equal(t, "instagram", reset.State.Attribution.UtmSource)
	assert.Equal(t, id, reset.VisitorId)
}
