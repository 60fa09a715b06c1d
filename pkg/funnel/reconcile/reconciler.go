// Package reconcile finds a returning visitor's earlier, more advanced session
// so the visitor can choose to resume it.
package reconcile

import (
	"context"

	"ai-secretary-funnel-be/internal/entity"
	"ai-secretary-funnel-be/internal/pkg/logger"
	"ai-secretary-funnel-be/internal/repository/specification"

	"github.com/google/uuid"
)

const module = "Reconciler"

// Finder is the slice of the session repository the reconciler reads from.
type Finder interface {
	FindOne(ctx context.Context, specs ...specification.Specification) (*entity.DemoSession, error)
}

type Reconciler struct {
	store  Finder
	logger logger.ILogger
}

func NewReconciler(store Finder, log logger.ILogger) *Reconciler {
	return &Reconciler{
		store:  store,
		logger: log,
	}
}

// Find returns the newest stored session for handle that got past step 0,
// never the caller's own session (matched by session identifier or row id).
// handle must already be normalised. No match is (nil, nil).
func (r *Reconciler) Find(ctx context.Context, handle, currentSessionID string, currentID uuid.UUID) (*entity.DemoSession, error) {
	if handle == "" {
		return nil, nil
	}

	candidate, err := r.store.FindOne(ctx,
		specification.ByInstagramHandle{Handle: handle},
		specification.CurrentStepGreaterThan{Step: 0},
		specification.ExcludeSessionID{SessionID: currentSessionID},
		specification.ExcludeID{ID: currentID},
		specification.NewestFirst(),
		specification.Limit{N: 1},
	)
	if err != nil {
		r.logger.Warn(module, "Resume lookup failed", map[string]interface{}{
			"handle": handle,
			"error":  err.Error(),
		})
		return nil, err
	}
	if candidate == nil {
		return nil, nil
	}

	r.logger.Debug(module, "Resume candidate found", map[string]interface{}{
		"handle":       handle,
		"candidate_id": candidate.Id.String(),
		"current_step": candidate.CurrentStep,
	})
	return candidate, nil
}
