package specification

import (
	"strings"

	"ai-secretary-funnel-be/internal/repository/scope"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// BySessionID matches the client generated identifier, not the row id.
type BySessionID struct {
	SessionID string
}

func (s BySessionID) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("session_id = ?", s.SessionID)
}

// SessionIDPrefix matches every session minted from the same fingerprint.
type SessionIDPrefix struct {
	Prefix string
}

func (s SessionIDPrefix) Apply(db *gorm.DB) *gorm.DB {
	escaped := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s.Prefix)
	return db.Where(`session_id LIKE ? ESCAPE '\'`, escaped+"%")
}

type ByInstagramHandle struct {
	Handle string
}

func (s ByInstagramHandle) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("instagram_handle = ?", s.Handle)
}

type CurrentStepGreaterThan struct {
	Step int
}

func (s CurrentStepGreaterThan) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("current_step > ?", s.Step)
}

// ExcludeSessionID drops the caller's own session. Empty means no-op.
type ExcludeSessionID struct {
	SessionID string
}

func (s ExcludeSessionID) Apply(db *gorm.DB) *gorm.DB {
	if s.SessionID == "" {
		return db
	}
	return db.Where("session_id <> ?", s.SessionID)
}

// ExcludeID drops a row id. uuid.Nil means no-op.
type ExcludeID struct {
	ID uuid.UUID
}

func (s ExcludeID) Apply(db *gorm.DB) *gorm.DB {
	if s.ID == uuid.Nil {
		return db
	}
	return db.Where("id <> ?", s.ID)
}

type HasAppointment struct{}

func (s HasAppointment) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("appointment IS NOT NULL")
}

// ExcludeIDs drops every listed row id.
type ExcludeIDs struct {
	IDs []uuid.UUID
}

func (s ExcludeIDs) Apply(db *gorm.DB) *gorm.DB {
	if len(s.IDs) == 0 {
		return db
	}
	return db.Where("id NOT IN ?", s.IDs)
}

// NewestFirst orders sessions by creation time, latest first.
func NewestFirst() Specification {
	return Scoped{Scope: scope.Newest}
}
