package memory

import (
	"time"

	"ai-secretary-funnel-be/pkg/funnel/session"
	"ai-secretary-funnel-be/pkg/metrics"

	"github.com/patrickmn/go-cache"
)

// VisitorRepository holds the live session manager of every visitor, keyed by
// the visitor id handed out when the session started. Entries slide: each Get
// renews the expiry. An evicted manager is closed so its timers stop.
type VisitorRepository struct {
	cache   *cache.Cache
	metrics *metrics.Funnel
}

func NewVisitorRepository(ttl time.Duration, m *metrics.Funnel) *VisitorRepository {
	if ttl <= 0 {
		ttl = 2 * time.Hour
	}
	cleanup := ttl / 4
	if cleanup < time.Second {
		cleanup = time.Second
	}

	c := cache.New(ttl, cleanup)
	r := &VisitorRepository{cache: c, metrics: m}
	c.OnEvicted(func(_ string, v interface{}) {
		if mgr, ok := v.(*session.Manager); ok {
			mgr.Close()
		}
		r.metrics.VisitorRemoved()
	})
	return r
}

func (r *VisitorRepository) Save(visitorID string, mgr *session.Manager) {
	if _, found := r.cache.Get(visitorID); !found {
		r.metrics.VisitorAdded()
	}
	r.cache.Set(visitorID, mgr, cache.DefaultExpiration)
}

func (r *VisitorRepository) Get(visitorID string) (*session.Manager, bool) {
	x, found := r.cache.Get(visitorID)
	if !found {
		return nil, false
	}
	mgr := x.(*session.Manager)
	r.cache.Set(visitorID, mgr, cache.DefaultExpiration)
	return mgr, true
}

func (r *VisitorRepository) Delete(visitorID string) {
	r.cache.Delete(visitorID)
}

func (r *VisitorRepository) Count() int {
	return r.cache.ItemCount()
}
