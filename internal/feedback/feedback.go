// Package feedback adapts to how the user treats bubbles: it records
// actions in a capped history, nudges per-category weights, and manages
// defer scheduling. All functions are copy-on-write over UserState.
package feedback

import (
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/mkessler/bubble/internal/types"
)

// weightDeltas maps feedback tags to weight adjustments
var weightDeltas = map[types.FeedbackTag]float64{
	types.FeedbackHelpful:      0.10,
	types.FeedbackEngaged:      0.05,
	types.FeedbackLessLikeThis: -0.15,
	types.FeedbackWrongTime:    -0.05,
	types.FeedbackNotRelevant:  -0.10,
}

// DefaultDeferDuration applies when a defer option isn't recognized
const DefaultDeferDuration = 24 * time.Hour

// RecordAction returns a new UserState with the action appended to
// history and the category weight adjusted per the feedback tag. An empty
// tag means no weight change; unknown tags are ignored the same way.
func RecordAction(state *types.UserState, bubble *types.Bubble, action types.UserAction, tag types.FeedbackTag, timeToAct time.Duration, now time.Time) *types.UserState {
	out := state.Clone()

	out.History = append(out.History, types.HistoryEntry{
		ID:        uuid.NewString(),
		Category:  bubble.Category,
		Score:     bubble.Score,
		Action:    action,
		TimeToAct: timeToAct.Seconds(),
		Source:    bubble.Item.Source,
		Timestamp: now,
	})
	if len(out.History) > types.MaxHistoryEntries {
		out.History = out.History[len(out.History)-types.MaxHistoryEntries:]
	}

	if delta, ok := weightDeltas[tag]; ok {
		out.CategoryWeights[bubble.Category] = adjustWeight(out.Weight(bubble.Category), delta)
	}
	return out
}

// adjustWeight applies a delta, clamps to the weight band, and rounds to
// two decimals so weights stay stable across export/import
func adjustWeight(w, delta float64) float64 {
	w += delta
	w = math.Max(types.MinCategoryWeight, math.Min(types.MaxCategoryWeight, w))
	return math.Round(w*100) / 100
}

// ResolveDeferUntil maps a symbolic defer option to a concrete time.
// Recognized: "tonight" (20:00 today, or tomorrow if past), "tomorrow"
// (09:00 next day), "monday" (09:00 next Monday, strictly in the future),
// or an RFC 3339 timestamp used verbatim. Anything else defers 24h.
func ResolveDeferUntil(option string, now time.Time) time.Time {
	switch option {
	case "tonight":
		t := time.Date(now.Year(), now.Month(), now.Day(), 20, 0, 0, 0, now.Location())
		if !t.After(now) {
			t = t.AddDate(0, 0, 1)
		}
		return t
	case "tomorrow":
		d := now.AddDate(0, 0, 1)
		return time.Date(d.Year(), d.Month(), d.Day(), 9, 0, 0, 0, now.Location())
	case "monday":
		days := (int(time.Monday) - int(now.Weekday()) + 7) % 7
		if days == 0 {
			days = 7 // today is Monday: jump to the next one
		}
		d := now.AddDate(0, 0, days)
		return time.Date(d.Year(), d.Month(), d.Day(), 9, 0, 0, 0, now.Location())
	}
	if t, err := time.Parse(time.RFC3339, option); err == nil {
		return t
	}
	return now.Add(DefaultDeferDuration)
}

// Defer returns a new UserState with the item recorded as deferred, and
// the resolved resurface time. Re-deferring an item replaces its entry.
func Defer(state *types.UserState, itemID, option string, now time.Time) (*types.UserState, time.Time) {
	until := ResolveDeferUntil(option, now)
	out := state.Clone()

	kept := out.Deferred[:0]
	for _, d := range out.Deferred {
		if d.ItemID != itemID {
			kept = append(kept, d)
		}
	}
	out.Deferred = append(kept, types.DeferredItem{
		ItemID:        itemID,
		DeferredAt:    now,
		DeferredUntil: until,
	})
	return out, until
}

// IsDeferred reports whether an item is still inside a defer window
func IsDeferred(state *types.UserState, itemID string, now time.Time) bool {
	for _, d := range state.Deferred {
		if d.ItemID == itemID && d.DeferredUntil.After(now) {
			return true
		}
	}
	return false
}

// ReadyDeferred returns deferred entries whose time has arrived
func ReadyDeferred(state *types.UserState, now time.Time) []types.DeferredItem {
	var ready []types.DeferredItem
	for _, d := range state.Deferred {
		if !d.DeferredUntil.After(now) {
			ready = append(ready, d)
		}
	}
	return ready
}

// CleanupDeferred returns a new UserState with already-passed entries
// removed. Call only after ready entries have been reprocessed; future
// entries are never touched.
func CleanupDeferred(state *types.UserState, now time.Time) *types.UserState {
	out := state.Clone()
	kept := out.Deferred[:0]
	for _, d := range out.Deferred {
		if d.DeferredUntil.After(now) {
			kept = append(kept, d)
		}
	}
	out.Deferred = kept
	return out
}
