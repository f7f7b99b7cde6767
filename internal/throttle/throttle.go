// Package throttle enforces minimum spacing between outbound requests to
// geocoding services that publish usage policies.
package throttle

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Services with a centrally enforced rate limit. Any other service name is
// dispatched without throttling.
const (
	ServiceOSMNominatim      = "OSM_NOMINATIM"
	ServiceMapQuestNominatim = "MAPQUEST_NOMINATIM"
)

// Recognized reports whether dispatches to the named service are throttled.
func Recognized(service string) bool {
	switch strings.ToUpper(service) {
	case ServiceOSMNominatim, ServiceMapQuestNominatim:
		return true
	}
	return false
}

// Registry tracks the last dispatch time per service, shared by every session
// in the process. The zero value is not usable; call NewRegistry.
type Registry struct {
	mu   sync.Mutex
	last map[string]time.Time
	now  func() time.Time
}

// NewRegistry creates an empty throttle registry.
func NewRegistry() *Registry {
	return &Registry{
		last: make(map[string]time.Time),
		now:  time.Now,
	}
}

// shared is the process-wide registry used by all geocoding sessions.
var shared = NewRegistry()

// Shared returns the process-wide registry.
func Shared() *Registry { return shared }

// Acquire blocks until a dispatch to service is allowed, i.e. at least
// minInterval after the previous dispatch to the same service. It returns a
// release function that the caller must invoke once the dispatch has been
// issued; release records the dispatch timestamp and unlocks the slot.
//
// The slot stays locked between Acquire and release, so concurrent callers
// are strictly serialized and can never observe the same eligibility window.
// Unrecognized services get a no-op release and are never delayed.
func (r *Registry) Acquire(ctx context.Context, service string, minInterval time.Duration) (release func(), err error) {
	if !Recognized(service) || minInterval <= 0 {
		return func() {}, nil
	}
	service = strings.ToUpper(service)

	r.mu.Lock()
	if last, ok := r.last[service]; ok {
		eligible := last.Add(minInterval)
		if wait := eligible.Sub(r.now()); wait > 0 {
			zap.L().Debug("throttle: delaying dispatch",
				zap.String("service", service),
				zap.Duration("wait", wait),
			)
			if err := r.sleep(ctx, wait); err != nil {
				r.mu.Unlock()
				return nil, eris.Wrapf(err, "throttle: wait for %s", service)
			}
		}
	}

	released := false
	return func() {
		if released {
			return
		}
		released = true
		// The timestamp is sampled after the dispatch completes, so a slow
		// round trip widens the effective spacing rather than narrowing it.
		r.last[service] = r.now()
		r.mu.Unlock()
	}, nil
}

// Last returns the recorded time of the most recent dispatch to service.
func (r *Registry) Last(service string) (time.Time, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.last[strings.ToUpper(service)]
	return t, ok
}

// sleep waits for d or until ctx is cancelled. Called with r.mu held.
func (r *Registry) sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
