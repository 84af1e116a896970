package feedback

import (
	"fmt"
	"testing"
	"time"

	"github.com/mkessler/bubble/internal/types"
)

var testNow = time.Date(2025, 1, 1, 15, 0, 0, 0, time.UTC) // a Wednesday

func testBubble(cat types.Category) *types.Bubble {
	return &types.Bubble{
		ID:       "b-1",
		Category: cat,
		Score:    75,
		Item:     types.CandidateItem{ID: "b-1", Type: cat, Source: "calendar"},
	}
}

// TestWeightDeltas tests the per-tag adjustments from a neutral weight
func TestWeightDeltas(t *testing.T) {
	tests := []struct {
		tag  types.FeedbackTag
		want float64
	}{
		{types.FeedbackHelpful, 1.10},
		{types.FeedbackEngaged, 1.05},
		{types.FeedbackLessLikeThis, 0.85},
		{types.FeedbackWrongTime, 0.95},
		{types.FeedbackNotRelevant, 0.90},
	}

	for _, tt := range tests {
		state := types.NewUserState()
		out := RecordAction(state, testBubble(types.CategoryDeadline), types.ActionDismissed, tt.tag, 0, testNow)
		if got := out.Weight(types.CategoryDeadline); got != tt.want {
			t.Errorf("%s: weight = %.2f, want %.2f", tt.tag, got, tt.want)
		}
	}
}

// TestWeightClamping tests the [0.3, 1.5] band under repeated feedback
func TestWeightClamping(t *testing.T) {
	state := types.NewUserState()
	for i := 0; i < 20; i++ {
		state = RecordAction(state, testBubble(types.CategoryPattern), types.ActionDismissed, types.FeedbackLessLikeThis, 0, testNow)
	}
	if got := state.Weight(types.CategoryPattern); got != types.MinCategoryWeight {
		t.Errorf("floor: weight = %.2f, want %.2f", got, types.MinCategoryWeight)
	}

	state = types.NewUserState()
	for i := 0; i < 20; i++ {
		state = RecordAction(state, testBubble(types.CategoryPattern), types.ActionEngaged, types.FeedbackHelpful, 0, testNow)
	}
	if got := state.Weight(types.CategoryPattern); got != types.MaxCategoryWeight {
		t.Errorf("ceiling: weight = %.2f, want %.2f", got, types.MaxCategoryWeight)
	}
}

// TestNoTagNoWeightChange tests that untagged actions only record history
func TestNoTagNoWeightChange(t *testing.T) {
	state := types.NewUserState()
	out := RecordAction(state, testBubble(types.CategoryReminder), types.ActionDismissed, "", 0, testNow)

	if got := out.Weight(types.CategoryReminder); got != 1.0 {
		t.Errorf("weight changed without tag: %.2f", got)
	}
	if len(out.History) != 1 {
		t.Errorf("history length = %d, want 1", len(out.History))
	}
}

// TestCopyOnWrite tests that the input state is never mutated
func TestCopyOnWrite(t *testing.T) {
	state := types.NewUserState()
	out := RecordAction(state, testBubble(types.CategoryDeadline), types.ActionEngaged, types.FeedbackHelpful, 0, testNow)

	if len(state.History) != 0 {
		t.Error("input state's history was mutated")
	}
	if w, ok := state.CategoryWeights[types.CategoryDeadline]; ok {
		t.Errorf("input state's weights were mutated: %.2f", w)
	}
	if out == state {
		t.Error("expected a new state value")
	}
}

// TestHistoryCap tests the 100-entry ring with oldest dropped first
func TestHistoryCap(t *testing.T) {
	state := types.NewUserState()
	for i := 0; i < 105; i++ {
		b := testBubble(types.CategoryReminder)
		b.Score = i // tag entries by score so we can check which survived
		state = RecordAction(state, b, types.ActionDismissed, "", 0, testNow)
	}

	if len(state.History) != types.MaxHistoryEntries {
		t.Fatalf("history length = %d, want %d", len(state.History), types.MaxHistoryEntries)
	}
	if state.History[0].Score != 5 {
		t.Errorf("oldest surviving entry score = %d, want 5", state.History[0].Score)
	}
	if state.History[99].Score != 104 {
		t.Errorf("newest entry score = %d, want 104", state.History[99].Score)
	}
}

// TestTimeToActRecorded tests that the action latency lands in history
func TestTimeToActRecorded(t *testing.T) {
	state := types.NewUserState()
	out := RecordAction(state, testBubble(types.CategoryDeadline), types.ActionEngaged, "", 90*time.Second, testNow)
	if got := out.History[0].TimeToAct; got != 90 {
		t.Errorf("time_to_act = %.0f, want 90", got)
	}
}

// TestResolveDeferUntil tests symbolic defer options
func TestResolveDeferUntil(t *testing.T) {
	tests := []struct {
		name   string
		option string
		now    time.Time
		want   time.Time
	}{
		{
			"tomorrow at 9am",
			"tomorrow",
			time.Date(2025, 1, 1, 15, 0, 0, 0, time.UTC),
			time.Date(2025, 1, 2, 9, 0, 0, 0, time.UTC),
		},
		{
			"tonight before 8pm",
			"tonight",
			time.Date(2025, 1, 1, 15, 0, 0, 0, time.UTC),
			time.Date(2025, 1, 1, 20, 0, 0, 0, time.UTC),
		},
		{
			"tonight after 8pm rolls over",
			"tonight",
			time.Date(2025, 1, 1, 21, 0, 0, 0, time.UTC),
			time.Date(2025, 1, 2, 20, 0, 0, 0, time.UTC),
		},
		{
			"monday from midweek",
			"monday",
			time.Date(2025, 1, 1, 15, 0, 0, 0, time.UTC), // Wednesday
			time.Date(2025, 1, 6, 9, 0, 0, 0, time.UTC),
		},
		{
			"monday on a monday jumps a week",
			"monday",
			time.Date(2025, 1, 6, 8, 0, 0, 0, time.UTC), // Monday morning
			time.Date(2025, 1, 13, 9, 0, 0, 0, time.UTC),
		},
		{
			"explicit timestamp verbatim",
			"2025-03-01T10:30:00Z",
			time.Date(2025, 1, 1, 15, 0, 0, 0, time.UTC),
			time.Date(2025, 3, 1, 10, 30, 0, 0, time.UTC),
		},
		{
			"unknown option defaults to 24h",
			"whenever",
			time.Date(2025, 1, 1, 15, 0, 0, 0, time.UTC),
			time.Date(2025, 1, 2, 15, 0, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		got := ResolveDeferUntil(tt.option, tt.now)
		if !got.Equal(tt.want) {
			t.Errorf("%s: got %v, want %v", tt.name, got, tt.want)
		}
	}
}

// TestDeferReplacesEntry tests that re-deferring an item keeps one entry
func TestDeferReplacesEntry(t *testing.T) {
	state := types.NewUserState()
	state, _ = Defer(state, "item-1", "tonight", testNow)
	state, until := Defer(state, "item-1", "tomorrow", testNow)

	if len(state.Deferred) != 1 {
		t.Fatalf("deferred entries = %d, want 1", len(state.Deferred))
	}
	if !state.Deferred[0].DeferredUntil.Equal(until) {
		t.Error("entry not replaced with latest defer time")
	}
}

// TestDeferredLifecycle tests IsDeferred, ReadyDeferred, and cleanup
func TestDeferredLifecycle(t *testing.T) {
	state := types.NewUserState()
	state, until := Defer(state, "item-1", "tonight", testNow)

	if !IsDeferred(state, "item-1", testNow) {
		t.Error("expected item deferred before its time")
	}
	if got := ReadyDeferred(state, testNow); len(got) != 0 {
		t.Errorf("ready before time: %d entries", len(got))
	}

	after := until.Add(time.Minute)
	if IsDeferred(state, "item-1", after) {
		t.Error("item still deferred after its time")
	}
	ready := ReadyDeferred(state, after)
	if len(ready) != 1 || ready[0].ItemID != "item-1" {
		t.Errorf("ready = %v, want item-1", ready)
	}

	// Cleanup removes only passed entries
	state, _ = Defer(state, "item-2", "monday", testNow)
	state = CleanupDeferred(state, after)
	if len(state.Deferred) != 1 || state.Deferred[0].ItemID != "item-2" {
		t.Errorf("cleanup kept %v, want only item-2", state.Deferred)
	}
}

// TestWeightRounding tests two-decimal rounding through repeated drift
func TestWeightRounding(t *testing.T) {
	state := types.NewUserState()
	for i := 0; i < 7; i++ {
		state = RecordAction(state, testBubble(types.CategoryCommitment), types.ActionEngaged, types.FeedbackEngaged, 0, testNow)
	}
	got := state.Weight(types.CategoryCommitment)
	want := 1.35 // 1.0 + 7 * 0.05, no float drift
	if fmt.Sprintf("%.2f", got) != fmt.Sprintf("%.2f", want) {
		t.Errorf("weight = %v, want %v", got, want)
	}
}
