package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"ai-secretary-funnel-be/internal/entity"
	"ai-secretary-funnel-be/internal/pkg/logger"
	"ai-secretary-funnel-be/internal/repository/memory"
	"ai-secretary-funnel-be/pkg/events"
	"ai-secretary-funnel-be/pkg/funnel/orchestrator"
	"ai-secretary-funnel-be/pkg/funnel/session"

	"github.com/google/uuid"
)

type sessionStore struct {
	mu   sync.Mutex
	rows map[uuid.UUID]*entity.DemoSession
}

func newSessionStore() *sessionStore {
	return &sessionStore{rows: map[uuid.UUID]*entity.DemoSession{}}
}

func (s *sessionStore) Update(_ context.Context, row *entity.DemoSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rows[row.Id]; !ok {
		return errors.New("record not found")
	}
	cp := *row
	s.rows[row.Id] = &cp
	return nil
}

func (s *sessionStore) Upsert(_ context.Context, row *entity.DemoSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, existing := range s.rows {
		if existing.SessionId == row.SessionId {
			row.Id = id
			cp := *row
			s.rows[id] = &cp
			return nil
		}
	}
	row.Id = uuid.New()
	row.CreatedAt = time.Now()
	cp := *row
	s.rows[row.Id] = &cp
	return nil
}

func (s *sessionStore) FindByFingerprintAndHandle(context.Context, string, string, []uuid.UUID) (*entity.DemoSession, error) {
	return nil, nil
}

func (s *sessionStore) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rows)
}

type messageStore struct {
	mu   sync.Mutex
	rows map[uuid.UUID][]*entity.ChatMessage
}

func newMessageStore() *messageStore {
	return &messageStore{rows: map[uuid.UUID][]*entity.ChatMessage{}}
}

func (s *messageStore) Append(_ context.Context, m *entity.ChatMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m.Id = uuid.New()
	m.MessageOrder = len(s.rows[m.SessionId]) + 1
	cp := *m
	s.rows[m.SessionId] = append(s.rows[m.SessionId], &cp)
	return nil
}

func (s *messageStore) FindBySession(_ context.Context, id uuid.UUID) ([]*entity.ChatMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*entity.ChatMessage(nil), s.rows[id]...), nil
}

type fixedFinder struct {
	candidate *entity.DemoSession
}

func (f fixedFinder) Find(context.Context, string, string, uuid.UUID) (*entity.DemoSession, error) {
	if f.candidate == nil {
		return nil, nil
	}
	c := *f.candidate
	return &c, nil
}

type recordedPush struct {
	visitorID string
	kind      string
	data      interface{}
}

type pushRecorder struct {
	mu     sync.Mutex
	pushes []recordedPush
}

func (p *pushRecorder) Push(visitorID, kind string, data interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pushes = append(p.pushes, recordedPush{visitorID, kind, data})
}

func (p *pushRecorder) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.pushes)
}

type eventRecorder struct {
	mu     sync.Mutex
	events []events.Event
	err    error
}

func (e *eventRecorder) Publish(_ context.Context, event events.Event) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, event)
	return e.err
}

func (e *eventRecorder) ofType(t string) []events.Event {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []events.Event
	for _, ev := range e.events {
		if ev.EventType() == t {
			out = append(out, ev)
		}
	}
	return out
}

type jobRecorder struct {
	mu       sync.Mutex
	payloads [][]byte
}

func (j *jobRecorder) Publish(_ context.Context, payload []byte) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.payloads = append(j.payloads, payload)
	return nil
}

type scriptedCompleter struct {
	requests []orchestrator.Request
	result   orchestrator.Result
}

func (c *scriptedCompleter) Complete(_ context.Context, req orchestrator.Request) orchestrator.Result {
	c.requests = append(c.requests, req)
	return c.result
}

type funnelFixture struct {
	svc      IFunnelService
	visitors *memory.VisitorRepository
	store    *sessionStore
	messages *messageStore
	pusher   *pushRecorder
	events   *eventRecorder
	jobs     *jobRecorder
}

func newFunnelFixture(t *testing.T, finder session.CandidateFinder) *funnelFixture {
	t.Helper()
	f := &funnelFixture{
		visitors: memory.NewVisitorRepository(time.Hour, nil),
		store:    newSessionStore(),
		messages: newMessageStore(),
		pusher:   &pushRecorder{},
		events:   &eventRecorder{},
		jobs:     &jobRecorder{},
	}
	deps := session.Deps{
		Store:    f.store,
		Finder:   finder,
		LogStore: f.messages,
		Logger:   logger.NewNopLogger(),
	}
	// Long debounce keeps background persists out of the assertions.
	cfg := session.Config{TotalSteps: 16, PersistDelay: time.Hour, LookupDelay: time.Hour}
	f.svc = NewFunnelService(f.visitors, cfg, deps, f.pusher, f.events, f.jobs, logger.NewNopLogger())
	return f
}

func (f *funnelFixture) manager(t *testing.T, visitorID string) *session.Manager {
	t.Helper()
	mgr, err := f.svc.Visitor(visitorID)
	if err != nil {
		t.Fatalf("visitor %s: %v", visitorID, err)
	}
	t.Cleanup(mgr.Close)
	return mgr
}

func strPtr(s string) *string { return &s }
