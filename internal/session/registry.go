package session

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"github.com/rs/zerolog/log"
)

const evictLogoutTimeout = 10 * time.Second

// Registry keeps live controllers keyed by gateway session id. Sessions
// idle longer than the TTL are evicted and logged out.
type Registry struct {
	cache   *cache.Cache
	revoked *cache.Cache
}

// NewRegistry creates a registry with the given idle TTL
func NewRegistry(idleTTL time.Duration) *Registry {
	if idleTTL <= 0 {
		idleTTL = time.Hour
	}
	cleanup := idleTTL / 4
	if cleanup < time.Second {
		cleanup = time.Second
	}
	c := cache.New(idleTTL, cleanup)
	c.OnEvicted(func(id string, v interface{}) {
		ctrl, ok := v.(*Controller)
		if !ok || !ctrl.Active() {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), evictLogoutTimeout)
		defer cancel()
		if err := ctrl.Logout(ctx); err != nil {
			log.Warn().Err(err).Str("session_id", id).Msg("failed to logout evicted session")
			return
		}
		log.Info().Str("session_id", id).Msg("evicted idle session")
	})
	return &Registry{cache: c, revoked: cache.New(cache.NoExpiration, cleanup)}
}

// Open registers a controller and returns its new session id
func (r *Registry) Open(ctrl *Controller) string {
	id := uuid.New().String()
	r.cache.Set(id, ctrl, cache.DefaultExpiration)
	return id
}

// Adopt registers ctrl under an existing session id. If another controller
// already holds the id, or the id was revoked, ctrl is not registered and
// false is returned along with the holder (nil when revoked).
func (r *Registry) Adopt(id string, ctrl *Controller) (*Controller, bool) {
	if r.Revoked(id) {
		return nil, false
	}
	if err := r.cache.Add(id, ctrl, cache.DefaultExpiration); err != nil {
		if existing, ok := r.Get(id); ok {
			return existing, false
		}
		r.cache.Set(id, ctrl, cache.DefaultExpiration)
	}
	return ctrl, true
}

// Get returns the controller for id and extends its idle deadline
func (r *Registry) Get(id string) (*Controller, bool) {
	x, found := r.cache.Get(id)
	if !found {
		return nil, false
	}
	ctrl := x.(*Controller)
	r.cache.Set(id, ctrl, cache.DefaultExpiration)
	return ctrl, true
}

// Close removes the session and logs it out if still active
func (r *Registry) Close(id string) {
	r.cache.Delete(id)
}

// Revoke closes the session and refuses to adopt its id again until
// the given time, normally the expiry of the token carrying it.
func (r *Registry) Revoke(id string, until time.Time) {
	if ttl := time.Until(until); ttl > 0 {
		r.revoked.Set(id, struct{}{}, ttl)
	}
	r.Close(id)
}

// Revoked reports whether id was explicitly ended
func (r *Registry) Revoked(id string) bool {
	_, found := r.revoked.Get(id)
	return found
}

// Len returns the number of live sessions
func (r *Registry) Len() int {
	return r.cache.ItemCount()
}

// Shutdown logs out every live session
func (r *Registry) Shutdown() {
	for id := range r.cache.Items() {
		r.cache.Delete(id)
	}
}
