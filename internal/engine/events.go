package engine

import (
	"time"

	"github.com/mkessler/bubble/internal/types"
)

// EventType identifies an engine event
type EventType string

const (
	EventItemSurfaced     EventType = "item_surfaced"
	EventItemDismissed    EventType = "item_dismissed"
	EventItemEngaged      EventType = "item_engaged"
	EventItemDeferred     EventType = "item_deferred"
	EventFocusModeChanged EventType = "focus_mode_changed"
	EventBudgetConsumed   EventType = "budget_consumed"
	EventBudgetExhausted  EventType = "budget_exhausted"
	EventItemsQueued      EventType = "items_queued"
)

// Event is a synchronous, in-process notification. Bubble is a copy of
// the affected item; scalar fields are set per event type.
type Event struct {
	Type      EventType           `json:"type"`
	Bubble    *types.Bubble       `json:"bubble,omitempty"`
	Mode      types.FocusModeName `json:"mode,omitempty"`
	Remaining int                 `json:"remaining,omitempty"` // daily budget, on budget events
	Queued    int                 `json:"queued,omitempty"`    // queued count, on items_queued
	Timestamp time.Time           `json:"timestamp"`
}

// Listener receives engine events. Listeners run synchronously in
// subscription order, after the engine has released its lock, so calling
// back into the engine from a listener is safe.
type Listener func(Event)

type listenerEntry struct {
	id int
	fn Listener
}

// Subscribe registers a listener and returns an unsubscribe function
func (e *Engine) Subscribe(fn Listener) func() {
	e.lmu.Lock()
	defer e.lmu.Unlock()

	e.nextListener++
	id := e.nextListener
	e.listeners = append(e.listeners, listenerEntry{id: id, fn: fn})

	return func() {
		e.lmu.Lock()
		defer e.lmu.Unlock()
		for i, l := range e.listeners {
			if l.id == id {
				e.listeners = append(e.listeners[:i], e.listeners[i+1:]...)
				return
			}
		}
	}
}

// emit delivers events to listeners. Must be called without e.mu held;
// state mutation always completes before emission.
func (e *Engine) emit(events []Event) {
	if len(events) == 0 {
		return
	}
	e.lmu.Lock()
	ls := make([]listenerEntry, len(e.listeners))
	copy(ls, e.listeners)
	e.lmu.Unlock()

	for _, ev := range events {
		for _, l := range ls {
			l.fn(ev)
		}
	}
}
