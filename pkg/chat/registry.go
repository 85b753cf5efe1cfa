package chat

import (
	"log"
	"time"

	"KBAssist/pkg/cache"
	"KBAssist/pkg/metrics"
	"KBAssist/pkg/services"
)

// Registry keeps live sessions in memory. A session expires after ttl
// without use; nothing is persisted.
type Registry struct {
	c    *cache.Cache
	ttl  time.Duration
	gw   services.Gateway
	opts SessionOptions
}

// NewRegistry builds sessions from gw and opts (ID is ignored). The cache
// is owned by the registry from here on.
func NewRegistry(c *cache.Cache, ttl time.Duration, gw services.Gateway, opts SessionOptions) *Registry {
	r := &Registry{c: c, ttl: ttl, gw: gw, opts: opts}
	c.OnEvict(func(key string, v any) {
		if s, ok := v.(*Session); ok {
			s.Close()
			log.Printf("[session] %s closed", key)
		}
		metrics.ActiveSessions.Set(float64(c.Len()))
	})
	return r
}

func (r *Registry) Create() *Session {
	opts := r.opts
	opts.ID = ""
	s := NewSession(r.gw, opts)
	r.c.Set(s.ID, s, r.ttl)
	metrics.ActiveSessions.Set(float64(r.c.Len()))
	log.Printf("[session] %s created", s.ID)
	return s
}

// Get returns a live session and extends its lifetime.
func (r *Registry) Get(id string) (*Session, bool) {
	v, ok := r.c.Refresh(id, r.ttl)
	if !ok {
		return nil, false
	}
	s, ok := v.(*Session)
	return s, ok
}

func (r *Registry) Delete(id string) {
	r.c.Delete(id)
}

func (r *Registry) Len() int { return r.c.Len() }
