// Package media coordinates exclusive playback across independently mounted
// media widgets. It is a best-effort convenience layer: individual handle
// failures are swallowed so one misbehaving widget cannot block the rest.
package media

import (
	"sync"

	"github.com/folioterm/folioterm/pkg/logger"
)

// Playable is the handle a media widget registers with the registry. For the
// websocket terminal the implementation forwards these calls to the browser
// widget as protocol frames.
type Playable interface {
	// Pause stops playback.
	Pause() error
	// SetRate resets the playback rate (1.0 restores normal speed).
	SetRate(rate float64) error
	// NotifyStopped tells the widget it was paused by the manager rather
	// than by direct user action.
	NotifyStopped(reason string)
}

// Registry maps widget keys to their playable handles. Construct one per
// terminal session so independent sessions never pause each other's media.
type Registry struct {
	mu      sync.Mutex
	handles map[string]Playable
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{handles: make(map[string]Playable)}
}

// Register upserts a handle under key. Registering the same key again simply
// replaces the handle.
func (r *Registry) Register(key string, handle Playable) {
	if handle == nil {
		return
	}
	r.mu.Lock()
	r.handles[key] = handle
	r.mu.Unlock()
	logger.Debug(logger.AreaMedia, "media handle registered: %s", key)
}

// Unregister removes the handle for key. No-op if absent.
func (r *Registry) Unregister(key string) {
	r.mu.Lock()
	delete(r.handles, key)
	r.mu.Unlock()
	logger.Debug(logger.AreaMedia, "media handle unregistered: %s", key)
}

// PlayExclusive pauses every registered handle except the one for key and
// resets its playback rate. The handle for key itself is left untouched: the
// caller claims exclusivity first and then starts its own playback. Errors
// from individual handles are swallowed.
func (r *Registry) PlayExclusive(key string) {
	for otherKey, handle := range r.snapshot() {
		if otherKey == key {
			continue
		}
		r.quiesce(otherKey, handle)
	}
}

// StopAll pauses every registered handle, used when the screen is cleared.
func (r *Registry) StopAll() {
	for key, handle := range r.snapshot() {
		r.quiesce(key, handle)
	}
}

// Len reports how many handles are currently registered.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.handles)
}

// snapshot copies the handle table so handle calls run outside the lock. A
// handle's Pause may call back into Unregister without deadlocking.
func (r *Registry) snapshot() map[string]Playable {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := make(map[string]Playable, len(r.handles))
	for key, handle := range r.handles {
		copied[key] = handle
	}
	return copied
}

// quiesce pauses one handle, best effort.
func (r *Registry) quiesce(key string, handle Playable) {
	defer func() {
		if rec := recover(); rec != nil {
			logger.Warn(logger.AreaMedia, "media handle %s panicked during pause: %v", key, rec)
		}
	}()
	if err := handle.Pause(); err != nil {
		logger.Debug(logger.AreaMedia, "pause failed for %s: %v", key, err)
	}
	if err := handle.SetRate(1.0); err != nil {
		logger.Debug(logger.AreaMedia, "rate reset failed for %s: %v", key, err)
	}
	handle.NotifyStopped("paused by media manager")
}
