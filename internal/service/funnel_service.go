package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"ai-secretary-funnel-be/internal/dto"
	"ai-secretary-funnel-be/internal/pkg/logger"
	"ai-secretary-funnel-be/internal/pkg/serverutils"
	"ai-secretary-funnel-be/pkg/events"
	"ai-secretary-funnel-be/pkg/funnel/fingerprint"
	"ai-secretary-funnel-be/pkg/funnel/session"

	"github.com/google/uuid"
)

const (
	funnelModule = "FunnelService"

	// PushState is the websocket message type carrying a SessionResponse.
	PushState = "state"

	eventTimeout = 5 * time.Second
)

var ErrVisitorNotFound = fmt.Errorf("visitor session %w", serverutils.ErrNotFound)

// VisitorRegistry holds one live session manager per visitor.
type VisitorRegistry interface {
	Save(visitorID string, mgr *session.Manager)
	Get(visitorID string) (*session.Manager, bool)
	Delete(visitorID string)
}

// StatePusher delivers state to the visitor's open tabs.
type StatePusher interface {
	Push(visitorID, kind string, data interface{})
}

type IFunnelService interface {
	Start(ctx context.Context, req *dto.StartSessionRequest, userAgent string) (*dto.SessionResponse, error)
	Show(ctx context.Context, visitorID string) (*dto.SessionResponse, error)
	UpdateUserData(ctx context.Context, visitorID string, req *dto.UpdateUserDataRequest) (*dto.SessionResponse, error)
	ConfirmProfile(ctx context.Context, visitorID string) (*dto.SessionResponse, error)
	AdvanceStep(ctx context.Context, visitorID string) (*dto.StepResponse, error)
	RetreatStep(ctx context.Context, visitorID string) (*dto.StepResponse, error)
	Persist(ctx context.Context, visitorID string) (*dto.PersistResponse, error)
	ResumeCandidate(ctx context.Context, visitorID string) (*dto.ResumeCandidateResponse, error)
	Resume(ctx context.Context, visitorID string) (*dto.SessionResponse, error)
	StartNewTest(ctx context.Context, visitorID string) (*dto.SessionResponse, error)
	ResetDemo(ctx context.Context, visitorID string) (*dto.SessionResponse, error)
	Visitor(visitorID string) (*session.Manager, error)
}

type funnelService struct {
	visitors   VisitorRegistry
	cfg        session.Config
	deps       session.Deps
	pusher     StatePusher
	events     events.Publisher
	enrichment IPublisherService
	logger     logger.ILogger
	now        func() time.Time
}

// NewFunnelService takes the dependencies shared by every visitor. deps.Listener
// is replaced per visitor. pusher, publisher and enrichment may be nil.
func NewFunnelService(
	visitors VisitorRegistry,
	cfg session.Config,
	deps session.Deps,
	pusher StatePusher,
	publisher events.Publisher,
	enrichment IPublisherService,
	log logger.ILogger,
) IFunnelService {
	return &funnelService{
		visitors:   visitors,
		cfg:        cfg,
		deps:       deps,
		pusher:     pusher,
		events:     publisher,
		enrichment: enrichment,
		logger:     log,
		now:        time.Now,
	}
}

func (s *funnelService) Start(ctx context.Context, req *dto.StartSessionRequest, userAgent string) (*dto.SessionResponse, error) {
	hints := req.ClientHints
	if hints.UserAgent == "" {
		hints.UserAgent = userAgent
	}
	visit := fingerprint.Collect(hints, req.LandingUrl, req.Referrer, s.now())
	visitorID := uuid.NewString()

	deps := s.deps
	deps.Listener = &visitorListener{visitorID: visitorID, svc: s}
	mgr := session.NewManager(visit, s.cfg, deps)
	s.visitors.Save(visitorID, mgr)

	s.logger.Info(funnelModule, "Visitor session started", map[string]interface{}{
		"visitor_id": visitorID,
		"session_id": visit.SessionId,
		"utm_source": visit.Attribution.UtmSource,
	})
	return dto.NewSessionResponse(visitorID, mgr.Snapshot()), nil
}

func (s *funnelService) Visitor(visitorID string) (*session.Manager, error) {
	mgr, ok := s.visitors.Get(visitorID)
	if !ok {
		return nil, ErrVisitorNotFound
	}
	return mgr, nil
}

func (s *funnelService) Show(ctx context.Context, visitorID string) (*dto.SessionResponse, error) {
	mgr, err := s.Visitor(visitorID)
	if err != nil {
		return nil, err
	}
	return dto.NewSessionResponse(visitorID, mgr.Snapshot()), nil
}

func (s *funnelService) UpdateUserData(ctx context.Context, visitorID string, req *dto.UpdateUserDataRequest) (*dto.SessionResponse, error) {
	mgr, err := s.Visitor(visitorID)
	if err != nil {
		return nil, err
	}

	handleChanged := mgr.SetUserData(req.ToUserData())
	state := mgr.Snapshot()
	if handleChanged && state.InstagramConfirmed {
		s.requestEnrichment(ctx, visitorID, state.Profile.InstagramHandle)
	}
	return dto.NewSessionResponse(visitorID, state), nil
}

func (s *funnelService) ConfirmProfile(ctx context.Context, visitorID string) (*dto.SessionResponse, error) {
	mgr, err := s.Visitor(visitorID)
	if err != nil {
		return nil, err
	}

	mgr.ConfirmProfile(ctx)
	state := mgr.Snapshot()
	s.requestEnrichment(ctx, visitorID, state.Profile.InstagramHandle)
	return dto.NewSessionResponse(visitorID, state), nil
}

func (s *funnelService) AdvanceStep(ctx context.Context, visitorID string) (*dto.StepResponse, error) {
	mgr, err := s.Visitor(visitorID)
	if err != nil {
		return nil, err
	}
	step := mgr.AdvanceStep()
	return &dto.StepResponse{CurrentStep: step, TotalSteps: mgr.Snapshot().TotalSteps}, nil
}

func (s *funnelService) RetreatStep(ctx context.Context, visitorID string) (*dto.StepResponse, error) {
	mgr, err := s.Visitor(visitorID)
	if err != nil {
		return nil, err
	}
	step := mgr.RetreatStep()
	return &dto.StepResponse{CurrentStep: step, TotalSteps: mgr.Snapshot().TotalSteps}, nil
}

func (s *funnelService) Persist(ctx context.Context, visitorID string) (*dto.PersistResponse, error) {
	mgr, err := s.Visitor(visitorID)
	if err != nil {
		return nil, err
	}
	persisted := mgr.Persist(ctx)
	return &dto.PersistResponse{Persisted: persisted, DbSessionId: mgr.Snapshot().DbSessionId}, nil
}

func (s *funnelService) ResumeCandidate(ctx context.Context, visitorID string) (*dto.ResumeCandidateResponse, error) {
	mgr, err := s.Visitor(visitorID)
	if err != nil {
		return nil, err
	}
	return dto.NewResumeCandidateResponse(mgr.PendingCandidate()), nil
}

func (s *funnelService) Resume(ctx context.Context, visitorID string) (*dto.SessionResponse, error) {
	mgr, err := s.Visitor(visitorID)
	if err != nil {
		return nil, err
	}
	if err := mgr.ResumePending(ctx); err != nil {
		if errors.Is(err, session.ErrNoResumeCandidate) {
			return nil, fmt.Errorf("%w: %s", serverutils.ErrConflict, err.Error())
		}
		return nil, err
	}
	return dto.NewSessionResponse(visitorID, mgr.Snapshot()), nil
}

func (s *funnelService) StartNewTest(ctx context.Context, visitorID string) (*dto.SessionResponse, error) {
	mgr, err := s.Visitor(visitorID)
	if err != nil {
		return nil, err
	}
	mgr.StartNewTest()
	return dto.NewSessionResponse(visitorID, mgr.Snapshot()), nil
}

func (s *funnelService) ResetDemo(ctx context.Context, visitorID string) (*dto.SessionResponse, error) {
	mgr, err := s.Visitor(visitorID)
	if err != nil {
		return nil, err
	}
	mgr.ResetDemo()
	return dto.NewSessionResponse(visitorID, mgr.Snapshot()), nil
}

// requestEnrichment queues a profile lookup. A queue failure only costs the
// enrichment, so it is logged and dropped.
func (s *funnelService) requestEnrichment(ctx context.Context, visitorID, handle string) {
	if s.enrichment == nil || handle == "" {
		return
	}
	payload, err := json.Marshal(dto.EnrichmentJob{VisitorId: visitorID, InstagramHandle: handle})
	if err != nil {
		return
	}
	if err := s.enrichment.Publish(ctx, payload); err != nil {
		s.logger.Warn(funnelModule, "Failed to queue enrichment", map[string]interface{}{
			"visitor_id":       visitorID,
			"instagram_handle": handle,
			"error":            err.Error(),
		})
	}
}

// visitorListener forwards one visitor's state changes to its tabs and its
// durable writes to the event bus.
type visitorListener struct {
	visitorID string
	svc       *funnelService
}

func (l *visitorListener) StateChanged(state session.State) {
	if l.svc.pusher == nil {
		return
	}
	l.svc.pusher.Push(l.visitorID, PushState, dto.NewSessionResponse(l.visitorID, state))
}

func (l *visitorListener) Persisted(state session.State, created bool) {
	l.StateChanged(state)
	if l.svc.events == nil || state.DbSessionId == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), eventTimeout)
	defer cancel()
	event := events.SessionPersisted(state.SessionId, state.DbSessionId.String(), state.Profile.InstagramHandle, state.CurrentStep, created)
	if err := l.svc.events.Publish(ctx, event); err != nil {
		l.svc.logger.Warn(funnelModule, "Failed to publish persist event", map[string]interface{}{
			"session_id": state.SessionId,
			"error":      err.Error(),
		})
	}
}
