package service

import (
	"context"
	"path/filepath"
	"testing"

	"ai-secretary-funnel-be/internal/entity"
	"ai-secretary-funnel-be/internal/repository/implementation"
	"ai-secretary-funnel-be/internal/repository/unitofwork"
	"ai-secretary-funnel-be/pkg/database"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAnalyticsFixture(t *testing.T, rows ...*entity.DemoSession) IAnalyticsService {
	t.Helper()
	db, err := database.NewSQLiteDB(filepath.Join(t.TempDir(), "analytics.db"))
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(db))

	repo := implementation.NewDemoSessionRepository(db)
	for _, r := range rows {
		require.NoError(t, repo.Upsert(context.Background(), r))
	}
	return NewAnalyticsService(unitofwork.NewRepositoryFactory(db), 16)
}

func TestAnalyticsService_Funnel(t *testing.T) {
	svc := newAnalyticsFixture(t,
		&entity.DemoSession{SessionId: "a_1", InstagramHandle: "a", CurrentStep: 3},
		&entity.DemoSession{SessionId: "b_1", InstagramHandle: "b", CurrentStep: 3},
		&entity.DemoSession{SessionId: "c_1", InstagramHandle: "c", CurrentStep: 8},
		&entity.DemoSession{SessionId: "d_1", InstagramHandle: "d", CurrentStep: 16},
	)

	got, err := svc.Funnel(context.Background())
	require.NoError(t, err)

	assert.EqualValues(t, 4, got.TotalSessions)
	assert.Equal(t, []entity.StepCount{{Step: 3, Total: 2}, {Step: 8, Total: 1}, {Step: 16, Total: 1}}, got.ByStep)
	require.Len(t, got.Reach, 17)

	assert.EqualValues(t, 4, got.Reach[0].Reached)
	assert.InDelta(t, 1.0, got.Reach[0].Rate, 1e-9)
	assert.EqualValues(t, 4, got.Reach[3].Reached)
	assert.EqualValues(t, 2, got.Reach[4].Reached)
	assert.InDelta(t, 0.5, got.Reach[8].Rate, 1e-9)
	assert.EqualValues(t, 1, got.Reach[9].Reached)
	assert.EqualValues(t, 1, got.Reach[16].Reached)
	assert.InDelta(t, 0.25, got.Reach[16].Rate, 1e-9)

	for i := 1; i < len(got.Reach); i++ {
		assert.LessOrEqual(t, got.Reach[i].Reached, got.Reach[i-1].Reached)
	}
}

func TestAnalyticsService_Empty(t *testing.T) {
	svc := newAnalyticsFixture(t)

	funnel, err := svc.Funnel(context.Background())
	require.NoError(t, err)
	assert.Zero(t, funnel.TotalSessions)
	for _, r := range funnel.Reach {
		assert.Zero(t, r.Rate)
	}

	appts, err := svc.Appointments(context.Background())
	require.NoError(t, err)
	assert.Zero(t, appts.ConversionRate)
}

func TestAnalyticsService_AttributionAndAppointments(t *testing.T) {
	booked := &entity.Appointment{DateISO: "2025-06-20T14:00:00-03:00"}
	svc := newAnalyticsFixture(t,
		&entity.DemoSession{SessionId: "a_1", InstagramHandle: "a", UtmSource: "instagram", Appointment: booked},
		&entity.DemoSession{SessionId: "b_1", InstagramHandle: "b", UtmSource: "instagram"},
		&entity.DemoSession{SessionId: "c_1", InstagramHandle: "c", UtmSource: "google", Appointment: booked},
		&entity.DemoSession{SessionId: "d_1", InstagramHandle: "d"},
	)

	attribution, err := svc.Attribution(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 4, attribution.TotalSessions)
	require.NotEmpty(t, attribution.BySource)
	assert.Equal(t, entity.SourceCount{Source: "instagram", Total: 2}, attribution.BySource[0])

	appts, err := svc.Appointments(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 4, appts.TotalSessions)
	assert.EqualValues(t, 2, appts.Appointments)
	assert.InDelta(t, 0.5, appts.ConversionRate, 1e-9)
}
