package hook

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrInterrupt signals that a Hook handler wants to stop further processing.
// Returned from a BeforeEventPublish hook it drops the event.
var ErrInterrupt = errors.New("hook interrupted")

// HookFn is a hook handler function.
// Returns (modified data, nil) to continue, or (data, ErrInterrupt) to stop.
type HookFn func(ctx context.Context, event string, data interface{}) (interface{}, error)

type hookEntry struct {
	priority int
	seq      int
	fn       HookFn
	name     string
}

// HookCenter manages event hook registrations.
type HookCenter struct {
	mu    sync.RWMutex
	seq   int
	hooks map[string][]*hookEntry
}

// NewHookCenter creates a new HookCenter.
func NewHookCenter() *HookCenter {
	return &HookCenter{hooks: make(map[string][]*hookEntry)}
}

// Register adds a HookFn for the given event with the given priority (lower runs first).
// Equal priorities run in registration order. name is used for Unregister.
func (hc *HookCenter) Register(event string, priority int, name string, fn HookFn) {
	hc.mu.Lock()
	defer hc.mu.Unlock()
	hc.seq++
	entries := append(hc.hooks[event], &hookEntry{priority: priority, seq: hc.seq, fn: fn, name: name})
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].priority != entries[j].priority {
			return entries[i].priority < entries[j].priority
		}
		return entries[i].seq < entries[j].seq
	})
	hc.hooks[event] = entries
}

func without(entries []*hookEntry, name string) []*hookEntry {
	n := 0
	for _, e := range entries {
		if e.name != name {
			entries[n] = e
			n++
		}
	}
	return entries[:n]
}

// Unregister removes all hooks with the given name for the given event.
func (hc *HookCenter) Unregister(event, name string) {
	hc.mu.Lock()
	defer hc.mu.Unlock()
	hc.hooks[event] = without(hc.hooks[event], name)
	if len(hc.hooks[event]) == 0 {
		delete(hc.hooks, event)
	}
}

// UnregisterAll removes all hooks registered with the given name across all events.
func (hc *HookCenter) UnregisterAll(name string) {
	hc.mu.Lock()
	defer hc.mu.Unlock()
	for event, entries := range hc.hooks {
		hc.hooks[event] = without(entries, name)
		if len(hc.hooks[event]) == 0 {
			delete(hc.hooks, event)
		}
	}
}

// Registered returns hook names per event, in execution order.
func (hc *HookCenter) Registered() map[string][]string {
	hc.mu.RLock()
	defer hc.mu.RUnlock()
	out := make(map[string][]string, len(hc.hooks))
	for event, entries := range hc.hooks {
		names := make([]string, len(entries))
		for i, e := range entries {
			names[i] = e.name
		}
		out[event] = names
	}
	return out
}

// Trigger executes all registered hooks for event in priority order.
// Data flows through each handler, allowing modification.
// If any handler returns ErrInterrupt, execution stops and ErrInterrupt is returned.
// Other handler errors and panics do not stop the chain; they are joined and returned.
func (hc *HookCenter) Trigger(ctx context.Context, event string, data interface{}) (interface{}, error) {
	hc.mu.RLock()
	entries := make([]*hookEntry, len(hc.hooks[event]))
	copy(entries, hc.hooks[event])
	hc.mu.RUnlock()

	var errs []error
	for _, e := range entries {
		out, err := call(ctx, e, event, data)
		if errors.Is(err, ErrInterrupt) {
			return out, err
		}
		if err != nil {
			errs = append(errs, err)
			continue
		}
		data = out
	}
	return data, errors.Join(errs...)
}

func call(ctx context.Context, e *hookEntry, event string, data interface{}) (out interface{}, err error) {
	defer func() {
		if r := recover(); r != nil {
			out, err = data, fmt.Errorf("hook %s/%s panicked: %v", event, e.name, r)
		}
	}()
	out, err = e.fn(ctx, event, data)
	if err != nil && !errors.Is(err, ErrInterrupt) {
		err = fmt.Errorf("hook %s/%s: %w", event, e.name, err)
	}
	return out, err
}

// ---- Hook event name constants ----

const (
	// BeforeEventPublish runs on every pursuit event before fan-out.
	BeforeEventPublish = "before_event_publish"
	OnStateChanged     = "on_state_changed"
	OnTargetDetected   = "on_target_detected"
	OnTargetLost       = "on_target_lost"
	OnTargetCaught     = "on_target_caught"
	OnRoomStarted      = "on_room_started"
	OnRoomStopped      = "on_room_stopped"
)
