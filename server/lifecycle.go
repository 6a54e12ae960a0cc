package server

import (
	"sync"
	"time"
)

// lifecycleSubscribers is the process-wide singleton of registered
// lifecycle-event callbacks (spec §9 design notes: "Global mutable state
// (Registry, lifecycle-event subscribers). Model as a process-wide
// singleton guarded by a mutex"). It is package-private; tests reach it
// only through OnLifecycleEvent, keeping it an injectable collaborator
// rather than a hardwired dependency of the engine.
var lifecycleSubscribers = struct {
	mu   sync.RWMutex
	subs map[int]func(LifecycleEvent)
	next int
}{subs: make(map[int]func(LifecycleEvent))}

// OnLifecycleEvent registers fn to receive every LifecycleEvent published
// by any server started with Start. It returns a function that cancels
// the subscription.
func OnLifecycleEvent(fn func(LifecycleEvent)) (cancel func()) {
	lifecycleSubscribers.mu.Lock()
	id := lifecycleSubscribers.next
	lifecycleSubscribers.next++
	lifecycleSubscribers.subs[id] = fn
	lifecycleSubscribers.mu.Unlock()

	return func() {
		lifecycleSubscribers.mu.Lock()
		delete(lifecycleSubscribers.subs, id)
		lifecycleSubscribers.mu.Unlock()
	}
}

// publishLifecycleEvent fans e out to every current subscriber. It never
// blocks the worker for long: subscribers are expected to be cheap
// (typically appending to a slice or incrementing a counter); a slow
// subscriber only delays other subscribers, never the publishing server's
// own mailbox processing, since this call happens outside the envelope
// dequeue loop's critical timing path.
func publishLifecycleEvent(kind EventKind, id, name string, reason StopReason) {
	lifecycleSubscribers.mu.RLock()
	defer lifecycleSubscribers.mu.RUnlock()
	evt := LifecycleEvent{Kind: kind, ID: id, Name: name, Reason: reason, At: time.Now()}
	for _, fn := range lifecycleSubscribers.subs {
		fn(evt)
	}
}
