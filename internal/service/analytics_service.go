package service

import (
	"context"

	"ai-secretary-funnel-be/internal/dto"
	"ai-secretary-funnel-be/internal/entity"
	"ai-secretary-funnel-be/internal/repository/specification"
	"ai-secretary-funnel-be/internal/repository/unitofwork"
)

type IAnalyticsService interface {
	Funnel(ctx context.Context) (*dto.FunnelAnalyticsResponse, error)
	Attribution(ctx context.Context) (*dto.AttributionAnalyticsResponse, error)
	Appointments(ctx context.Context) (*dto.AppointmentAnalyticsResponse, error)
}

type analyticsService struct {
	uowFactory unitofwork.RepositoryFactory
	totalSteps int
}

func NewAnalyticsService(uowFactory unitofwork.RepositoryFactory, totalSteps int) IAnalyticsService {
	if totalSteps <= 0 {
		totalSteps = entity.DemoTotalSteps
	}
	return &analyticsService{uowFactory: uowFactory, totalSteps: totalSteps}
}

// Funnel reports the current-step distribution and, for every step, how many
// sessions got at least that far.
func (s *analyticsService) Funnel(ctx context.Context) (*dto.FunnelAnalyticsResponse, error) {
	repo := s.uowFactory.NewUnitOfWork(ctx).DemoSessionRepository()

	byStep, err := repo.CountByStep(ctx)
	if err != nil {
		return nil, err
	}

	var total int64
	atStep := make(map[int]int64, len(byStep))
	for _, c := range byStep {
		total += c.Total
		step := c.Step
		if step > s.totalSteps {
			step = s.totalSteps
		}
		atStep[step] += c.Total
	}

	reach := make([]dto.StepReach, s.totalSteps+1)
	var reached int64
	for step := s.totalSteps; step >= 0; step-- {
		reached += atStep[step]
		reach[step] = dto.StepReach{Step: step, Reached: reached, Rate: ratio(reached, total)}
	}

	return &dto.FunnelAnalyticsResponse{TotalSessions: total, ByStep: byStep, Reach: reach}, nil
}

func (s *analyticsService) Attribution(ctx context.Context) (*dto.AttributionAnalyticsResponse, error) {
	repo := s.uowFactory.NewUnitOfWork(ctx).DemoSessionRepository()

	bySource, err := repo.CountBySource(ctx)
	if err != nil {
		return nil, err
	}
	var total int64
	for _, c := range bySource {
		total += c.Total
	}
	return &dto.AttributionAnalyticsResponse{TotalSessions: total, BySource: bySource}, nil
}

// Appointments counts both figures in one transaction so the rate is taken
// from a single snapshot.
func (s *analyticsService) Appointments(ctx context.Context) (*dto.AppointmentAnalyticsResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	if err := uow.Begin(ctx); err != nil {
		return nil, err
	}
	defer uow.Rollback()

	repo := uow.DemoSessionRepository()
	total, err := repo.Count(ctx)
	if err != nil {
		return nil, err
	}
	booked, err := repo.Count(ctx, specification.HasAppointment{})
	if err != nil {
		return nil, err
	}
	if err := uow.Commit(); err != nil {
		return nil, err
	}

	return &dto.AppointmentAnalyticsResponse{
		TotalSessions:  total,
		Appointments:   booked,
		ConversionRate: ratio(booked, total),
	}, nil
}

func ratio(n, total int64) float64 {
	if total == 0 {
		return 0
	}
	return float64(n) / float64(total)
}
