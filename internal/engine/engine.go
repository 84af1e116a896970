// Package engine orchestrates the proactive-surfacing pipeline:
// ingestion, scoring, budget and focus-mode gating, message generation,
// lifecycle management, and the event stream.
//
// The engine is single-owner: one mutex guards all state, every public
// operation is synchronous, and periodic concerns (budget resets,
// deferred resurfacing, stale pruning) are pull-based — the caller
// invokes ApplyResets/CheckDeferredItems/PruneStale on its own schedule.
// Domain operations never return errors; failures show up as nil/false
// returns or emitted events.
package engine

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mkessler/bubble/internal/budget"
	"github.com/mkessler/bubble/internal/feedback"
	"github.com/mkessler/bubble/internal/focus"
	"github.com/mkessler/bubble/internal/logging"
	"github.com/mkessler/bubble/internal/message"
	"github.com/mkessler/bubble/internal/scoring"
	"github.com/mkessler/bubble/internal/types"
)

// DefaultStaleAfter is how long untouched items are retained
const DefaultStaleAfter = 7 * 24 * time.Hour

// Options configures a new engine. Zero values mean defaults.
type Options struct {
	DailyBudget        int
	EmergencyThreshold int
	StaleAfter         time.Duration
	HourlyLimits       map[types.FocusModeName]int // overrides mode defaults
	State              *types.UserState            // initial state; nil starts fresh
	Now                func() time.Time            // injectable clock for tests
}

// Engine owns all bubbles for one user session
type Engine struct {
	mu           sync.Mutex
	now          func() time.Time
	budget       *budget.Manager
	state        *types.UserState
	ctx          types.UserContext
	bubbles      []*types.Bubble
	hourlyLimits map[types.FocusModeName]int
	staleAfter   time.Duration

	lmu          sync.Mutex
	listeners    []listenerEntry
	nextListener int
}

// New creates an engine. If Options.State carries a budget snapshot it is
// restored (with any overdue resets applied).
func New(opts Options) *Engine {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	state := opts.State.Clone()

	daily := opts.DailyBudget
	if daily == 0 {
		daily = state.Prefs.DailyBudget
	}
	mgr := budget.NewManager(daily, now)
	if opts.EmergencyThreshold > 0 {
		mgr.SetEmergencyThreshold(opts.EmergencyThreshold)
	}
	if state.Budget.Daily.Total > 0 {
		mgr.Restore(state.Budget)
	}
	state.Prefs.DailyBudget = mgr.Snapshot().Daily.Total
	if state.Prefs.FocusMode == "" {
		state.Prefs.FocusMode = types.ModeAvailable
	}

	staleAfter := opts.StaleAfter
	if staleAfter == 0 {
		staleAfter = DefaultStaleAfter
	}

	return &Engine{
		now:          now,
		budget:       mgr,
		state:        state,
		hourlyLimits: opts.HourlyLimits,
		staleAfter:   staleAfter,
	}
}

func (e *Engine) hourlyLimitFor(mode types.FocusModeName) int {
	if limit, ok := e.hourlyLimits[mode]; ok {
		return limit
	}
	return focus.ModeConfig(mode).HourlyLimit
}

func (e *Engine) findLocked(id string) *types.Bubble {
	for _, b := range e.bubbles {
		if b.ID == id {
			return b
		}
	}
	return nil
}

func cloneBubble(b *types.Bubble) *types.Bubble {
	c := *b
	if b.SurfacedAt != nil {
		t := *b.SurfacedAt
		c.SurfacedAt = &t
	}
	return &c
}

func (e *Engine) queuedCountLocked() int {
	n := 0
	for _, b := range e.bubbles {
		if b.State == types.StatePending && b.Score >= focus.ThresholdPassive {
			n++
		}
	}
	return n
}

// Ingest scores a candidate item, builds a bubble, and attempts to
// surface it immediately. Duplicates (same id already tracked) and items
// inside a defer window are rejected with a nil return.
func (e *Engine) Ingest(item types.CandidateItem) *types.Bubble {
	e.mu.Lock()
	now := e.now()

	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	if e.findLocked(item.ID) != nil || feedback.IsDeferred(e.state, item.ID, now) {
		e.mu.Unlock()
		return nil
	}

	bd := scoring.Score(&item, &e.ctx, e.state.History, e.state.Weight(item.Type), now)
	b := message.TransformToBubble(item, bd.Final, now)
	e.bubbles = append(e.bubbles, b)

	logging.Debug("engine", "ingested %s (%s) score=%d %q",
		b.ID, b.Category, b.Score, logging.Truncate(b.Message, 60))

	_, events := e.trySurfaceLocked(b, now)
	snap := cloneBubble(b)
	e.mu.Unlock()

	e.emit(events)
	return snap
}

// IngestBatch ingests items in order and returns the accepted bubbles
func (e *Engine) IngestBatch(items []types.CandidateItem) []*types.Bubble {
	var out []*types.Bubble
	for _, item := range items {
		if b := e.Ingest(item); b != nil {
			out = append(out, b)
		}
	}
	return out
}

// trySurfaceLocked runs the surfacing gate: passive threshold, focus
// mode, then budget. On success the bubble transitions to surfaced.
func (e *Engine) trySurfaceLocked(b *types.Bubble, now time.Time) (bool, []Event) {
	if b.Score < focus.ThresholdPassive {
		return false, nil
	}

	mode := e.state.Prefs.FocusMode
	dec := focus.ShouldSurface(b.Score, mode, e.budget.EmergencyThreshold())
	if !dec.Surface {
		if dec.Queue {
			return false, []Event{{
				Type:      EventItemsQueued,
				Bubble:    cloneBubble(b),
				Mode:      mode,
				Queued:    e.queuedCountLocked(),
				Timestamp: now,
			}}
		}
		return false, nil
	}

	auth := e.budget.Consume(b.Score, mode, e.hourlyLimitFor(mode))
	if !auth.Allowed {
		if auth.Reason == budget.ReasonDailyExhausted {
			return false, []Event{{
				Type:      EventBudgetExhausted,
				Bubble:    cloneBubble(b),
				Remaining: 0,
				Timestamp: now,
			}}
		}
		return false, nil
	}

	t := now
	b.State = types.StateSurfaced
	b.SurfacedAt = &t
	remaining := e.budget.Snapshot().Daily.Remaining
	return true, []Event{
		{Type: EventItemSurfaced, Bubble: cloneBubble(b), Timestamp: now},
		{Type: EventBudgetConsumed, Bubble: cloneBubble(b), Remaining: remaining, Timestamp: now},
	}
}

// act handles the shared dismiss/engage path
func (e *Engine) act(id string, action types.UserAction, tag types.FeedbackTag, state types.BubbleState, evType EventType) bool {
	e.mu.Lock()
	now := e.now()

	b := e.findLocked(id)
	if b == nil || (b.State != types.StateSurfaced && b.State != types.StatePending) {
		e.mu.Unlock()
		return false
	}

	var tta time.Duration
	if b.SurfacedAt != nil {
		tta = now.Sub(*b.SurfacedAt)
	}
	e.state = feedback.RecordAction(e.state, b, action, tag, tta, now)
	b.State = state

	events := []Event{{Type: evType, Bubble: cloneBubble(b), Timestamp: now}}
	e.mu.Unlock()

	e.emit(events)
	return true
}

// Dismiss marks a bubble dismissed. Unknown ids are a silent no-op.
func (e *Engine) Dismiss(id string, tag types.FeedbackTag) bool {
	return e.act(id, types.ActionDismissed, tag, types.StateDismissed, EventItemDismissed)
}

// Engage marks a bubble engaged. Without an explicit tag the implicit
// "engaged" feedback applies (+0.05 to the category weight).
func (e *Engine) Engage(id string, tag types.FeedbackTag) bool {
	if tag == "" {
		tag = types.FeedbackEngaged
	}
	return e.act(id, types.ActionEngaged, tag, types.StateEngaged, EventItemEngaged)
}

// Defer postpones a bubble until the time the option resolves to, and
// returns that time. Unknown ids return nil.
func (e *Engine) Defer(id, option string) *time.Time {
	e.mu.Lock()
	now := e.now()

	b := e.findLocked(id)
	if b == nil || (b.State != types.StateSurfaced && b.State != types.StatePending) {
		e.mu.Unlock()
		return nil
	}

	var tta time.Duration
	if b.SurfacedAt != nil {
		tta = now.Sub(*b.SurfacedAt)
	}
	e.state = feedback.RecordAction(e.state, b, types.ActionDeferred, "", tta, now)

	var until time.Time
	e.state, until = feedback.Defer(e.state, b.ID, option, now)
	b.State = types.StateDeferred

	events := []Event{{Type: EventItemDeferred, Bubble: cloneBubble(b), Timestamp: now}}
	e.mu.Unlock()

	e.emit(events)
	return &until
}

// SetFocusMode switches the interruption policy. Leaving dnd re-attempts
// surfacing for queued (pending) items, highest score first.
func (e *Engine) SetFocusMode(mode types.FocusModeName) {
	e.mu.Lock()
	now := e.now()

	prev := e.state.Prefs.FocusMode
	e.state.Prefs.FocusMode = mode
	events := []Event{{Type: EventFocusModeChanged, Mode: mode, Timestamp: now}}

	if prev == types.ModeDND && mode != types.ModeDND {
		events = append(events, e.resurfacePendingLocked(now)...)
	}
	e.mu.Unlock()

	e.emit(events)
}

// CycleFocusMode advances available -> focused -> dnd -> available and
// returns the new mode
func (e *Engine) CycleFocusMode() types.FocusModeName {
	e.mu.Lock()
	next := focus.Cycle(e.state.Prefs.FocusMode)
	e.mu.Unlock()
	e.SetFocusMode(next)
	return next
}

// resurfacePendingLocked retries the surfacing gate for pending bubbles
// in score order
func (e *Engine) resurfacePendingLocked(now time.Time) []Event {
	pending := make([]*types.Bubble, 0)
	for _, b := range e.bubbles {
		if b.State == types.StatePending {
			pending = append(pending, b)
		}
	}
	sort.SliceStable(pending, func(i, j int) bool { return pending[i].Score > pending[j].Score })

	var events []Event
	for _, b := range pending {
		_, evs := e.trySurfaceLocked(b, now)
		events = append(events, evs...)
	}
	return events
}

// SetDailyBudget changes the daily allowance (clamped) and returns the
// applied value
func (e *Engine) SetDailyBudget(n int) int {
	e.mu.Lock()
	defer e.mu.Unlock()

	total := e.budget.SetDailyTotal(n)
	e.state.Prefs.DailyBudget = total
	return total
}

// UpdateContext replaces the user context, rescores every live bubble,
// and re-sorts the collection by score descending (stable on ties)
func (e *Engine) UpdateContext(ctx types.UserContext) {
	e.mu.Lock()
	defer e.mu.Unlock()
	now := e.now()

	e.ctx = ctx
	for _, b := range e.bubbles {
		if b.State != types.StatePending && b.State != types.StateSurfaced {
			continue
		}
		bd := scoring.Score(&b.Item, &e.ctx, e.state.History, e.state.Weight(b.Category), now)
		b.Score = bd.Final
	}
	sort.SliceStable(e.bubbles, func(i, j int) bool { return e.bubbles[i].Score > e.bubbles[j].Score })
}

// CheckDeferredItems flips ready deferred bubbles back to pending,
// re-attempts surfacing, and prunes the deferred list. Returns the number
// of bubbles reconsidered.
func (e *Engine) CheckDeferredItems() int {
	e.mu.Lock()
	now := e.now()

	ready := feedback.ReadyDeferred(e.state, now)
	var events []Event
	n := 0
	for _, d := range ready {
		b := e.findLocked(d.ItemID)
		if b == nil || b.State != types.StateDeferred {
			continue
		}
		b.State = types.StatePending
		n++
		_, evs := e.trySurfaceLocked(b, now)
		events = append(events, evs...)
	}
	if len(ready) > 0 {
		e.state = feedback.CleanupDeferred(e.state, now)
	}
	e.mu.Unlock()

	e.emit(events)
	return n
}

// ApplyResets forwards to the budget manager. Call periodically.
func (e *Engine) ApplyResets() {
	e.budget.ApplyResets()
}

// PruneStale drops bubbles that aged out: pending ones never surfaced,
// and settled (dismissed/engaged) ones past retention. Returns the count
// removed.
func (e *Engine) PruneStale() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	now := e.now()

	kept := e.bubbles[:0]
	removed := 0
	for _, b := range e.bubbles {
		stale := now.Sub(b.CreatedAt) > e.staleAfter &&
			(b.State == types.StatePending || b.State == types.StateDismissed || b.State == types.StateEngaged)
		if stale {
			removed++
			continue
		}
		kept = append(kept, b)
	}
	e.bubbles = kept
	if removed > 0 {
		logging.Debug("engine", "pruned %d stale bubbles", removed)
	}
	return removed
}

// Items returns copies of all tracked bubbles in collection order
func (e *Engine) Items() []types.Bubble {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]types.Bubble, 0, len(e.bubbles))
	for _, b := range e.bubbles {
		out = append(out, *cloneBubble(b))
	}
	return out
}

// SurfacedItems returns copies of currently surfaced bubbles
func (e *Engine) SurfacedItems() []types.Bubble {
	e.mu.Lock()
	defer e.mu.Unlock()

	var out []types.Bubble
	for _, b := range e.bubbles {
		if b.State == types.StateSurfaced {
			out = append(out, *cloneBubble(b))
		}
	}
	return out
}

// QueuedItems returns pending bubbles held back by dnd: the ones that
// would have surfaced in a permissive mode
func (e *Engine) QueuedItems() []types.Bubble {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state.Prefs.FocusMode != types.ModeDND {
		return nil
	}
	var out []types.Bubble
	for _, b := range e.bubbles {
		if b.State == types.StatePending && b.Score >= focus.ThresholdPassive {
			out = append(out, *cloneBubble(b))
		}
	}
	return out
}

// BudgetStatus returns a snapshot of the interrupt budget
func (e *Engine) BudgetStatus() types.InterruptBudget {
	return e.budget.Snapshot()
}

// FocusMode returns the active interruption policy
func (e *Engine) FocusMode() types.FocusModeName {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.Prefs.FocusMode
}

// ConfidenceBreakdown recomputes the factor breakdown for a tracked
// bubble under the current context. Nil for unknown ids.
func (e *Engine) ConfidenceBreakdown(id string) *scoring.Breakdown {
	e.mu.Lock()
	defer e.mu.Unlock()

	b := e.findLocked(id)
	if b == nil {
		return nil
	}
	bd := scoring.Score(&b.Item, &e.ctx, e.state.History, e.state.Weight(b.Category), e.now())
	return &bd
}

// ItemVisualState returns the intensity a bubble renders at under the
// current mode, or nil for no visual representation or unknown ids
func (e *Engine) ItemVisualState(id string) *types.VisualState {
	e.mu.Lock()
	defer e.mu.Unlock()

	b := e.findLocked(id)
	if b == nil {
		return nil
	}
	return focus.EffectiveVisualState(b.Score, e.state.Prefs.FocusMode)
}

// ExportUserState returns a deep copy of the persistable state with a
// fresh budget snapshot folded in
func (e *Engine) ExportUserState() *types.UserState {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := e.state.Clone()
	out.Budget = e.budget.Snapshot()
	out.Prefs.DailyBudget = out.Budget.Daily.Total
	return out
}

// ImportUserState replaces engine state from a persisted snapshot,
// reconstructing focus mode and budget
func (e *Engine) ImportUserState(s *types.UserState) {
	if s == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	e.state = s.Clone()
	if e.state.Prefs.FocusMode == "" {
		e.state.Prefs.FocusMode = types.ModeAvailable
	}
	if e.state.Budget.Daily.Total > 0 {
		e.budget.Restore(e.state.Budget)
	} else if e.state.Prefs.DailyBudget > 0 {
		e.budget.SetDailyTotal(e.state.Prefs.DailyBudget)
	}
	e.state.Prefs.DailyBudget = e.budget.Snapshot().Daily.Total
}

// ClearItems drops every tracked bubble. User state is untouched.
func (e *Engine) ClearItems() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.bubbles = nil
}
