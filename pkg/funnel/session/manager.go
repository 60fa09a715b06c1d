// Package session owns one visitor's wizard position and profile, and decides
// when and how that state reaches the durable store.
package session

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"ai-secretary-funnel-be/internal/entity"
	"ai-secretary-funnel-be/internal/pkg/logger"
	"ai-secretary-funnel-be/pkg/funnel/chatlog"
	"ai-secretary-funnel-be/pkg/funnel/fingerprint"
	"ai-secretary-funnel-be/pkg/metrics"

	"github.com/google/uuid"
)

const (
	module = "SessionManager"

	// MinPersistStep is the first wizard step at which a confirmed session is stored.
	MinPersistStep = 3

	maxSamplePosts    = 3
	maxProcedures     = 3
	maxRapportHooks   = 2
	persistLockTTL    = 10 * time.Second
	backgroundTimeout = 10 * time.Second
)

var ErrNoResumeCandidate = errors.New("no resume candidate pending")

type Store interface {
	Update(ctx context.Context, session *entity.DemoSession) error
	Upsert(ctx context.Context, session *entity.DemoSession) error
	// FindByFingerprintAndHandle returns the newest row minted from the same
	// device fingerprint for handle, skipping the excluded row ids.
	FindByFingerprintAndHandle(ctx context.Context, fingerprint, handle string, exclude []uuid.UUID) (*entity.DemoSession, error)
}

// CandidateFinder is the Resume Reconciler as seen from the manager.
type CandidateFinder interface {
	Find(ctx context.Context, handle, currentSessionID string, currentID uuid.UUID) (*entity.DemoSession, error)
}

// Locker is optional. When set, a persist cycle only runs while it holds the
// lock for its session identifier.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(), acquired bool, err error)
}

// Listener receives state after every change and after every durable write.
// Calls happen outside the manager's lock.
type Listener interface {
	StateChanged(state State)
	Persisted(state State, created bool)
}

type Config struct {
	TotalSteps   int
	PersistDelay time.Duration
	LookupDelay  time.Duration
}

// Deps are shared by every visitor's manager.
type Deps struct {
	Store    Store
	Finder   CandidateFinder
	LogStore chatlog.Store
	Locker   Locker
	Listener Listener
	Logger   logger.ILogger
	Metrics  *metrics.Funnel
}

type Manager struct {
	mu   sync.Mutex
	cfg  Config
	deps Deps
	now  func() time.Time

	fingerprint string
	state       State
	dbID        uuid.UUID
	pending     *entity.DemoSession
	// Rows this visitor walked away from; the reload lookup must not adopt them.
	detached []uuid.UUID
	lastMint int64

	log          *chatlog.Log
	persistTimer *Debouncer
	lookupTimer  *Debouncer
}

func NewManager(visit fingerprint.Visit, cfg Config, deps Deps) *Manager {
	if cfg.TotalSteps <= 0 {
		cfg.TotalSteps = entity.DemoTotalSteps
	}

	m := &Manager{
		cfg:          cfg,
		deps:         deps,
		now:          time.Now,
		fingerprint:  visit.Fingerprint,
		log:          chatlog.New(deps.LogStore, deps.Logger),
		persistTimer: NewDebouncer(cfg.PersistDelay),
		lookupTimer:  NewDebouncer(cfg.LookupDelay),
	}
	m.state = State{
		SessionId:  visit.SessionId,
		TotalSteps: cfg.TotalSteps,
		Attribution: fingerprint.Attribution{
			UtmSource:   Sanitize(visit.Attribution.UtmSource),
			UtmMedium:   Sanitize(visit.Attribution.UtmMedium),
			UtmCampaign: Sanitize(visit.Attribution.UtmCampaign),
			Referrer:    Sanitize(visit.Attribution.Referrer),
			UserAgent:   Sanitize(visit.Attribution.UserAgent),
		},
	}
	if m.state.SessionId == "" {
		m.state.SessionId = m.mintSessionIDLocked()
	}
	return m
}

// Log is the visitor's conversation log.
func (m *Manager) Log() *chatlog.Log {
	return m.log
}

func (m *Manager) Snapshot() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

func (m *Manager) snapshotLocked() State {
	s := m.state
	s.Enrichment = m.state.Enrichment.clone()
	if m.state.Appointment != nil {
		a := *m.state.Appointment
		s.Appointment = &a
	}
	if m.dbID != uuid.Nil {
		id := m.dbID
		s.DbSessionId = &id
	}
	if m.pending != nil {
		c := *m.pending
		s.ResumeCandidate = &c
	}
	return s
}

// SetUserData merges the non-nil fields after sanitising them and reports
// whether the handle changed. A changed, non-empty handle on a confirmed
// session schedules a debounced resume lookup.
func (m *Manager) SetUserData(data UserData) bool {
	m.mu.Lock()
	p := &m.state.Profile
	handleChanged := false
	if data.InstagramHandle != nil {
		h := NormalizeHandle(*data.InstagramHandle)
		handleChanged = h != p.InstagramHandle
		p.InstagramHandle = h
	}
	if data.FullName != nil {
		p.FullName = Sanitize(*data.FullName)
	}
	if data.Email != nil {
		p.Email = Sanitize(*data.Email)
	}
	if data.Phone != nil {
		p.Phone = Sanitize(*data.Phone)
	}
	if data.Specialty != nil {
		p.Specialty = Sanitize(*data.Specialty)
	}
	if data.Revenue != nil {
		p.Revenue = Sanitize(*data.Revenue)
	}
	lookup := handleChanged && p.InstagramHandle != "" && m.state.InstagramConfirmed
	m.mu.Unlock()

	if lookup {
		m.lookupTimer.Trigger(m.lookupInBackground)
	}
	m.changed()
	return handleChanged
}

func (m *Manager) AdvanceStep() int {
	return m.moveStep(1)
}

func (m *Manager) RetreatStep() int {
	return m.moveStep(-1)
}

func (m *Manager) moveStep(delta int) int {
	m.mu.Lock()
	step := clamp(m.state.CurrentStep+delta, 0, m.cfg.TotalSteps)
	m.state.CurrentStep = step
	m.mu.Unlock()

	m.changed()
	return step
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// ConfirmProfile marks the handle as confirmed and looks for an earlier
// session right away. A candidate opens the resume prompt and is returned.
func (m *Manager) ConfirmProfile(ctx context.Context) *entity.DemoSession {
	m.mu.Lock()
	m.state.InstagramConfirmed = true
	handle := m.state.Profile.InstagramHandle
	sessionID := m.state.SessionId
	dbID := m.dbID
	m.mu.Unlock()

	m.lookupTimer.Cancel()

	var candidate *entity.DemoSession
	if handle != "" && m.deps.Finder != nil {
		found, err := m.deps.Finder.Find(ctx, handle, sessionID, dbID)
		if err != nil {
			m.deps.Logger.Warn(module, "Resume lookup failed on confirm", map[string]interface{}{
				"session_id": sessionID,
				"error":      err.Error(),
			})
		}
		candidate = found
	}

	m.mu.Lock()
	if candidate != nil && m.state.SessionId == sessionID {
		m.pending = candidate
		m.state.ResumePromptOpen = true
	}
	m.mu.Unlock()

	m.changed()
	return candidate
}

func (m *Manager) lookupInBackground() {
	ctx, cancel := context.WithTimeout(context.Background(), backgroundTimeout)
	defer cancel()

	m.mu.Lock()
	handle := m.state.Profile.InstagramHandle
	sessionID := m.state.SessionId
	dbID := m.dbID
	m.mu.Unlock()

	if handle == "" || m.deps.Finder == nil {
		return
	}
	candidate, err := m.deps.Finder.Find(ctx, handle, sessionID, dbID)
	if err != nil {
		return
	}

	m.mu.Lock()
	stale := m.state.SessionId != sessionID || m.state.Profile.InstagramHandle != handle
	if !stale {
		m.pending = candidate
	}
	m.mu.Unlock()

	if !stale {
		m.notify()
	}
}

// PendingCandidate is the last resume candidate found, if any.
func (m *Manager) PendingCandidate() *entity.DemoSession {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pending == nil {
		return nil
	}
	c := *m.pending
	return &c
}

// ResumePending resumes the pending candidate.
func (m *Manager) ResumePending(ctx context.Context) error {
	candidate := m.PendingCandidate()
	if candidate == nil {
		return ErrNoResumeCandidate
	}
	m.ResumeSession(ctx, candidate)
	return nil
}

// ResumeSession replaces the whole state with the stored candidate and binds
// the conversation log to it.
func (m *Manager) ResumeSession(ctx context.Context, candidate *entity.DemoSession) {
	m.persistTimer.Cancel()
	m.lookupTimer.Cancel()

	m.mu.Lock()
	attribution := m.state.Attribution
	if c := Sanitize(candidate.UtmSource); c != "" {
		attribution.UtmSource = c
		attribution.UtmMedium = Sanitize(candidate.UtmMedium)
		attribution.UtmCampaign = Sanitize(candidate.UtmCampaign)
	}
	if r := Sanitize(candidate.Referrer); r != "" {
		attribution.Referrer = r
	}

	var appointment *entity.Appointment
	if candidate.Appointment != nil {
		a := *candidate.Appointment
		appointment = &a
	}

	m.dbID = candidate.Id
	m.pending = nil
	m.state = State{
		SessionId:   candidate.SessionId,
		CurrentStep: clamp(candidate.CurrentStep, 0, m.cfg.TotalSteps),
		TotalSteps:  m.cfg.TotalSteps,
		Profile: Profile{
			InstagramHandle: NormalizeHandle(candidate.InstagramHandle),
			FullName:        Sanitize(candidate.FullName),
			Email:           Sanitize(candidate.Email),
			Phone:           Sanitize(candidate.Phone),
			Specialty:       Sanitize(candidate.Specialty),
			Revenue:         Sanitize(candidate.Revenue),
		},
		InstagramConfirmed: true,
		Enrichment:         sanitizeEnrichment(enrichmentOf(candidate)),
		Appointment:        appointment,
		Attribution:        attribution,
		ResumePromptOpen:   false,
	}
	dbID := m.dbID
	m.mu.Unlock()

	if err := m.log.Bind(ctx, dbID); err != nil {
		m.deps.Logger.Warn(module, "Conversation not restored on resume", map[string]interface{}{
			"db_session_id": dbID.String(),
			"error":         err.Error(),
		})
	}
	m.deps.Logger.Info(module, "Session resumed", map[string]interface{}{
		"db_session_id": dbID.String(),
		"session_id":    candidate.SessionId,
		"current_step":  candidate.CurrentStep,
	})
	m.notify()
}

func enrichmentOf(s *entity.DemoSession) Enrichment {
	return Enrichment{
		HasInstagramData: s.HasInstagramData,
		ProfilePhotoUrl:  s.ProfilePhotoUrl,
		SamplePosts:      s.SamplePosts,
		AiInsights:       s.AiInsights,
		CustomPrompt:     s.CustomPrompt,
	}
}

func sanitizeEnrichment(e Enrichment) Enrichment {
	out := Enrichment{
		HasInstagramData: e.HasInstagramData,
		ProfilePhotoUrl:  Sanitize(e.ProfilePhotoUrl),
		SamplePosts:      sanitizeAll(e.SamplePosts, maxSamplePosts),
		CustomPrompt:     Sanitize(e.CustomPrompt),
	}
	if e.AiInsights != nil {
		out.AiInsights = &entity.AiInsights{
			Name:         Sanitize(e.AiInsights.Name),
			Location:     Sanitize(e.AiInsights.Location),
			Procedures:   sanitizeAll(e.AiInsights.Procedures, maxProcedures),
			RapportHooks: sanitizeAll(e.AiInsights.RapportHooks, maxRapportHooks),
		}
	}
	return out
}

// StartNewTest keeps the profile but walks away from the stored row: the old
// row is neither deleted nor written again, and a new identity is minted.
func (m *Manager) StartNewTest() {
	m.persistTimer.Cancel()
	m.lookupTimer.Cancel()

	m.mu.Lock()
	m.detachLocked()
	m.state.CurrentStep = 0
	m.state.SessionId = m.mintSessionIDLocked()
	m.mu.Unlock()

	m.log.Unbind()
	m.notify()
}

// ResetDemo is a hard reset: step, profile, enrichment, appointment and the
// in-memory conversation all go back to defaults.
func (m *Manager) ResetDemo() {
	m.persistTimer.Cancel()
	m.lookupTimer.Cancel()

	m.mu.Lock()
	m.detachLocked()
	m.state = State{
		SessionId:   m.mintSessionIDLocked(),
		TotalSteps:  m.cfg.TotalSteps,
		Attribution: m.state.Attribution,
	}
	m.mu.Unlock()

	m.log.Unbind()
	m.notify()
}

// mintSessionIDLocked never repeats an identifier, even within one millisecond.
func (m *Manager) mintSessionIDLocked() string {
	ms := m.now().UnixMilli()
	if current := fingerprint.Prefix(m.state.SessionId); current != "" {
		if last, err := strconv.ParseInt(m.state.SessionId[len(current)+1:], 10, 64); err == nil && last > m.lastMint {
			m.lastMint = last
		}
	}
	if ms <= m.lastMint {
		ms = m.lastMint + 1
	}
	m.lastMint = ms
	return fingerprint.NewSessionID(m.fingerprint, time.UnixMilli(ms))
}

func (m *Manager) detachLocked() {
	if m.pending != nil {
		m.detached = append(m.detached, m.pending.Id)
	}
	if m.dbID != uuid.Nil {
		m.detached = append(m.detached, m.dbID)
	}
	m.pending = nil
	m.dbID = uuid.Nil
	m.state.ResumePromptOpen = false
}

// ApplyEnrichment stores the profile lookup result, capped to 3 posts,
// 3 procedures and 2 rapport hooks.
func (m *Manager) ApplyEnrichment(e Enrichment) {
	m.mu.Lock()
	m.state.Enrichment = sanitizeEnrichment(e)
	m.mu.Unlock()
	m.changed()
}

// SetAppointment records the appointment captured in chat. Only ResetDemo clears it.
func (m *Manager) SetAppointment(a *entity.Appointment) {
	if a == nil {
		return
	}
	cp := *a
	m.mu.Lock()
	m.state.Appointment = &cp
	m.mu.Unlock()
	m.changed()
}

// Persist writes the session when the gating conditions hold and no resume
// prompt is open. Failures are logged and swallowed; the return value only
// reports whether a row was written.
func (m *Manager) Persist(ctx context.Context) bool {
	m.mu.Lock()
	if !m.state.Persistable() || m.state.ResumePromptOpen {
		m.mu.Unlock()
		m.deps.Metrics.Persist("skipped")
		return false
	}
	record := m.recordLocked()
	dbID := m.dbID
	sessionID := m.state.SessionId
	exclude := append([]uuid.UUID(nil), m.detached...)
	m.mu.Unlock()

	if m.deps.Locker != nil {
		release, acquired, err := m.deps.Locker.Acquire(ctx, sessionID, persistLockTTL)
		switch {
		case err != nil:
			m.deps.Logger.Warn(module, "Persist lock unavailable, writing without it", map[string]interface{}{
				"session_id": sessionID,
				"error":      err.Error(),
			})
		case !acquired:
			m.deps.Metrics.Persist("contended")
			m.schedulePersist()
			return false
		default:
			defer release()
		}
	}

	created, err := m.write(ctx, record, dbID, exclude)
	if err != nil {
		m.deps.Metrics.Persist("failed")
		m.deps.Logger.Error(module, "Failed to persist session", map[string]interface{}{
			"session_id": sessionID,
			"error":      err.Error(),
		})
		return false
	}

	m.mu.Lock()
	if m.state.SessionId != sessionID {
		// Identity changed while writing (resume, new test, reset).
		m.mu.Unlock()
		return false
	}
	bindNeeded := m.dbID != record.Id
	m.dbID = record.Id
	state := m.snapshotLocked()
	m.mu.Unlock()

	if bindNeeded {
		if err := m.log.Bind(ctx, record.Id); err != nil {
			m.deps.Logger.Warn(module, "Conversation not loaded after persist", map[string]interface{}{
				"db_session_id": record.Id.String(),
				"error":         err.Error(),
			})
		}
	}

	outcome := "updated"
	if created {
		outcome = "created"
	}
	m.deps.Metrics.Persist(outcome)
	m.deps.Logger.Debug(module, "Session persisted", map[string]interface{}{
		"session_id":    sessionID,
		"db_session_id": record.Id.String(),
		"current_step":  record.CurrentStep,
		"outcome":       outcome,
	})
	if m.deps.Listener != nil {
		m.deps.Listener.Persisted(state, created)
	}
	return true
}

// write updates the known row, else adopts a row left by an earlier page load
// of the same device and handle, else upserts on session_id.
func (m *Manager) write(ctx context.Context, record *entity.DemoSession, dbID uuid.UUID, exclude []uuid.UUID) (bool, error) {
	if dbID != uuid.Nil {
		record.Id = dbID
		return false, m.deps.Store.Update(ctx, record)
	}

	if m.fingerprint != "" {
		existing, err := m.deps.Store.FindByFingerprintAndHandle(ctx, m.fingerprint, record.InstagramHandle, exclude)
		if err != nil {
			m.deps.Logger.Warn(module, "Reload lookup failed, falling back to insert", map[string]interface{}{
				"session_id": record.SessionId,
				"error":      err.Error(),
			})
		} else if existing != nil {
			record.Id = existing.Id
			if err := m.deps.Store.Update(ctx, record); err == nil {
				return false, nil
			}
		}
	}

	record.Id = uuid.Nil
	if err := m.deps.Store.Upsert(ctx, record); err != nil {
		return false, err
	}
	return true, nil
}

func (m *Manager) recordLocked() *entity.DemoSession {
	s := m.state
	e := s.Enrichment.clone()
	var appointment *entity.Appointment
	if s.Appointment != nil {
		a := *s.Appointment
		appointment = &a
	}
	return &entity.DemoSession{
		SessionId:        s.SessionId,
		InstagramHandle:  s.Profile.InstagramHandle,
		FullName:         s.Profile.FullName,
		Email:            s.Profile.Email,
		Phone:            s.Profile.Phone,
		Specialty:        s.Profile.Specialty,
		Revenue:          s.Profile.Revenue,
		CurrentStep:      s.CurrentStep,
		TotalSteps:       s.TotalSteps,
		HasInstagramData: e.HasInstagramData,
		ProfilePhotoUrl:  e.ProfilePhotoUrl,
		SamplePosts:      e.SamplePosts,
		AiInsights:       e.AiInsights,
		CustomPrompt:     e.CustomPrompt,
		Appointment:      appointment,
		UtmSource:        s.Attribution.UtmSource,
		UtmMedium:        s.Attribution.UtmMedium,
		UtmCampaign:      s.Attribution.UtmCampaign,
		Referrer:         s.Attribution.Referrer,
		UserAgent:        s.Attribution.UserAgent,
	}
}

func (m *Manager) schedulePersist() {
	m.persistTimer.Trigger(func() {
		ctx, cancel := context.WithTimeout(context.Background(), backgroundTimeout)
		defer cancel()
		m.Persist(ctx)
	})
}

// changed re-arms the persist timer when gating holds and tells the listener.
func (m *Manager) changed() {
	m.mu.Lock()
	eligible := m.state.Persistable() && !m.state.ResumePromptOpen
	m.mu.Unlock()

	if eligible {
		m.schedulePersist()
	}
	m.notify()
}

func (m *Manager) notify() {
	if m.deps.Listener == nil {
		return
	}
	m.deps.Listener.StateChanged(m.Snapshot())
}

// Close cancels pending timers. The manager stays readable.
func (m *Manager) Close() {
	m.persistTimer.Cancel()
	m.lookupTimer.Cancel()
}
