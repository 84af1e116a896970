package engine

import (
	"testing"
	"time"

	"github.com/mkessler/bubble/internal/budget"
	"github.com/mkessler/bubble/internal/types"
)

var start = time.Date(2025, 1, 1, 15, 0, 0, 0, time.UTC)

// testEngine returns an engine with a controllable clock and generous
// hourly limits so daily-budget behavior can be tested in isolation
func testEngine(opts Options) (*Engine, func(time.Time)) {
	cur := start
	opts.Now = func() time.Time { return cur }
	if opts.HourlyLimits == nil {
		opts.HourlyLimits = map[types.FocusModeName]int{types.ModeAvailable: 100}
	}
	return New(opts), func(t time.Time) { cur = t }
}

func highPriorityItem(id string) types.CandidateItem {
	return types.CandidateItem{
		ID:       id,
		Type:     types.CategoryReminder,
		Content:  "check in with the team",
		Source:   "patterns",
		Priority: 95,
	}
}

func collectEvents(e *Engine) *[]Event {
	var events []Event
	e.Subscribe(func(ev Event) { events = append(events, ev) })
	return &events
}

// TestIngestSurfacesImmediately tests the happy path: a strong item under
// default settings surfaces right away and consumes one budget slot
func TestIngestSurfacesImmediately(t *testing.T) {
	e, _ := testEngine(Options{})
	events := collectEvents(e)

	b := e.Ingest(highPriorityItem("item-1"))
	if b == nil {
		t.Fatal("ingest returned nil")
	}
	if b.State != types.StateSurfaced {
		t.Fatalf("state = %s, want surfaced (score %d)", b.State, b.Score)
	}
	if b.SurfacedAt == nil {
		t.Error("surfaced bubble missing surfaced_at")
	}

	if got := e.BudgetStatus().Daily.Used; got != 1 {
		t.Errorf("daily used = %d, want 1", got)
	}
	if len(e.SurfacedItems()) != 1 {
		t.Errorf("surfaced items = %d, want 1", len(e.SurfacedItems()))
	}

	// item_surfaced then budget_consumed
	if len(*events) != 2 || (*events)[0].Type != EventItemSurfaced || (*events)[1].Type != EventBudgetConsumed {
		t.Errorf("unexpected events: %v", *events)
	}
	if (*events)[1].Remaining != 14 {
		t.Errorf("budget_consumed remaining = %d, want 14", (*events)[1].Remaining)
	}
}

// TestDuplicateIngestRejected tests dedup by source id
func TestDuplicateIngestRejected(t *testing.T) {
	e, _ := testEngine(Options{})

	if e.Ingest(highPriorityItem("item-1")) == nil {
		t.Fatal("first ingest rejected")
	}
	if e.Ingest(highPriorityItem("item-1")) != nil {
		t.Error("duplicate ingest accepted")
	}
	if got := len(e.Items()); got != 1 {
		t.Errorf("tracked items = %d, want 1", got)
	}
}

// TestLowScoreStaysPending tests the passive threshold gate
func TestLowScoreStaysPending(t *testing.T) {
	e, _ := testEngine(Options{})

	b := e.Ingest(types.CandidateItem{
		ID:       "weak",
		Type:     types.CategoryPattern,
		Content:  "minor observation",
		Priority: 5,
	})
	if b == nil {
		t.Fatal("ingest returned nil")
	}
	if b.State != types.StatePending {
		t.Errorf("state = %s, want pending (score %d)", b.State, b.Score)
	}
	if got := e.BudgetStatus().Daily.Used; got != 0 {
		t.Errorf("weak item consumed budget: used = %d", got)
	}
}

// TestDNDQueuesItems tests that dnd holds items rather than surfacing
func TestDNDQueuesItems(t *testing.T) {
	e, _ := testEngine(Options{})
	e.SetFocusMode(types.ModeDND)
	events := collectEvents(e)

	b := e.Ingest(types.CandidateItem{
		ID:       "queued-1",
		Type:     types.CategoryReminder,
		Content:  "something strong",
		Priority: 90,
	})
	if b == nil || b.State != types.StatePending {
		t.Fatalf("expected pending bubble, got %+v", b)
	}

	if got := len(e.SurfacedItems()); got != 0 {
		t.Errorf("surfaced items = %d, want 0", got)
	}
	queued := e.QueuedItems()
	if len(queued) != 1 || queued[0].ID != "queued-1" {
		t.Errorf("queued items = %v, want queued-1", queued)
	}

	found := false
	for _, ev := range *events {
		if ev.Type == EventItemsQueued {
			found = true
			if ev.Queued != 1 {
				t.Errorf("queued count = %d, want 1", ev.Queued)
			}
		}
		if ev.Type == EventItemSurfaced {
			t.Error("item_surfaced fired under dnd")
		}
	}
	if !found {
		t.Error("no items_queued event")
	}
}

// TestLeavingDNDResurfacesQueue tests that switching out of dnd retries
// queued items
func TestLeavingDNDResurfacesQueue(t *testing.T) {
	e, _ := testEngine(Options{})
	e.SetFocusMode(types.ModeDND)
	e.Ingest(highPriorityItem("held"))

	e.SetFocusMode(types.ModeAvailable)

	surfaced := e.SurfacedItems()
	if len(surfaced) != 1 || surfaced[0].ID != "held" {
		t.Errorf("expected held item surfaced after leaving dnd, got %v", surfaced)
	}
}

// TestBudgetExhaustionEvent tests spec behavior when the daily budget
// runs out: the item stays pending and budget_exhausted fires
func TestBudgetExhaustionEvent(t *testing.T) {
	e, _ := testEngine(Options{DailyBudget: 10})

	for i := 0; i < 10; i++ {
		b := e.Ingest(highPriorityItem(string(rune('a' + i))))
		if b == nil || b.State != types.StateSurfaced {
			t.Fatalf("item %d did not surface: %+v", i, b)
		}
	}

	events := collectEvents(e)
	b := e.Ingest(highPriorityItem("over-budget"))
	if b == nil || b.State != types.StatePending {
		t.Fatalf("expected pending after exhaustion, got %+v", b)
	}

	found := false
	for _, ev := range *events {
		if ev.Type == EventBudgetExhausted && ev.Bubble.ID == "over-budget" {
			found = true
		}
	}
	if !found {
		t.Errorf("no budget_exhausted event in %v", *events)
	}
	if got := e.BudgetStatus().Daily.Remaining; got != 0 {
		t.Errorf("remaining = %d, want 0", got)
	}
}

// TestDismissAdjustsWeight tests the dismissal feedback loop:
// less_like_this from neutral lands at exactly 0.85
func TestDismissAdjustsWeight(t *testing.T) {
	e, _ := testEngine(Options{})
	b := e.Ingest(highPriorityItem("item-1"))

	if !e.Dismiss(b.ID, types.FeedbackLessLikeThis) {
		t.Fatal("dismiss failed")
	}

	state := e.ExportUserState()
	if got := state.Weight(types.CategoryReminder); got != 0.85 {
		t.Errorf("weight = %.2f, want 0.85", got)
	}
	if len(state.History) != 1 || state.History[0].Action != types.ActionDismissed {
		t.Errorf("history = %v", state.History)
	}

	items := e.Items()
	if items[0].State != types.StateDismissed {
		t.Errorf("state = %s, want dismissed", items[0].State)
	}
}

// TestEngageImplicitFeedback tests the implicit +0.05 on engagement
func TestEngageImplicitFeedback(t *testing.T) {
	e, _ := testEngine(Options{})
	b := e.Ingest(highPriorityItem("item-1"))

	if !e.Engage(b.ID, "") {
		t.Fatal("engage failed")
	}
	if got := e.ExportUserState().Weight(types.CategoryReminder); got != 1.05 {
		t.Errorf("weight = %.2f, want 1.05", got)
	}
}

// TestUnknownIDNoOp tests silent no-ops for unknown item ids
func TestUnknownIDNoOp(t *testing.T) {
	e, _ := testEngine(Options{})
	events := collectEvents(e)

	if e.Dismiss("ghost", "") || e.Engage("ghost", "") {
		t.Error("action on unknown id reported success")
	}
	if e.Defer("ghost", "tomorrow") != nil {
		t.Error("defer on unknown id returned a time")
	}
	if len(*events) != 0 {
		t.Errorf("no-ops emitted events: %v", *events)
	}
}

// TestDeferLifecycle tests defer -> pending resurfacing exactly once
func TestDeferLifecycle(t *testing.T) {
	e, advance := testEngine(Options{})
	b := e.Ingest(highPriorityItem("item-1"))

	until := e.Defer(b.ID, "tomorrow")
	if until == nil {
		t.Fatal("defer returned nil")
	}
	want := time.Date(2025, 1, 2, 9, 0, 0, 0, time.UTC)
	if !until.Equal(want) {
		t.Errorf("deferred until %v, want %v", until, want)
	}

	// Before its time, the item never reappears
	advance(start.Add(3 * time.Hour))
	if n := e.CheckDeferredItems(); n != 0 {
		t.Errorf("reconsidered %d items early", n)
	}
	if len(e.SurfacedItems()) != 0 {
		t.Error("deferred item surfaced early")
	}

	// Ingesting the same id while deferred is rejected
	e.ClearItems()
	if e.Ingest(highPriorityItem("item-1")) != nil {
		t.Error("deferred item re-ingested")
	}

	// After its time it flips to pending and resurfaces; the deferred
	// list is pruned so the cycle happens exactly once
	e2, advance2 := testEngine(Options{})
	b2 := e2.Ingest(highPriorityItem("item-2"))
	e2.Defer(b2.ID, "tomorrow")

	advance2(time.Date(2025, 1, 2, 9, 30, 0, 0, time.UTC))
	if n := e2.CheckDeferredItems(); n != 1 {
		t.Fatalf("reconsidered %d items, want 1", n)
	}
	surfaced := e2.SurfacedItems()
	if len(surfaced) != 1 || surfaced[0].ID != "item-2" {
		t.Errorf("resurfaced = %v, want item-2", surfaced)
	}
	if len(e2.ExportUserState().Deferred) != 0 {
		t.Error("deferred entry not pruned after reprocessing")
	}
	if n := e2.CheckDeferredItems(); n != 0 {
		t.Errorf("second pass reconsidered %d items", n)
	}
}

// TestUpdateContextRescoresAndSorts tests context-driven rescoring and
// score-descending ordering
func TestUpdateContextRescoresAndSorts(t *testing.T) {
	e, _ := testEngine(Options{})

	e.Ingest(types.CandidateItem{
		ID: "plain", Type: types.CategoryReminder, Content: "a", Priority: 60,
	})
	e.Ingest(types.CandidateItem{
		ID: "contextual", Type: types.CategoryReminder, Content: "b", Priority: 40,
		Project: "atlas", Topics: []string{"planning"}, Entities: []string{"Dana"},
		RelatedTasks: []string{"report"},
	})

	before := e.Items()
	if before[0].ID != "plain" {
		t.Fatalf("expected plain first before context, got %s", before[0].ID)
	}

	e.UpdateContext(types.UserContext{
		ActiveProject:  "atlas",
		RecentTopics:   []string{"planning"},
		RecentEntities: []string{"Dana"},
		ActiveTask:     "report",
	})

	after := e.Items()
	if after[0].ID != "contextual" {
		t.Errorf("expected contextual first after match, got %s (score %d vs %d)",
			after[0].ID, after[0].Score, after[1].Score)
	}
	if after[0].Score <= before[1].Score {
		t.Errorf("matched item score did not increase: %d -> %d", before[1].Score, after[0].Score)
	}
}

// TestEmergencyBypassInFocused tests that an emergency-score item
// surfaces even in focused mode, with no budget debit
func TestEmergencyBypassInFocused(t *testing.T) {
	boosted := types.NewUserState()
	boosted.CategoryWeights[types.CategoryDeadline] = 1.2
	e, _ := testEngine(Options{State: boosted})
	e.SetFocusMode(types.ModeFocused)
	e.UpdateContext(types.UserContext{
		ActiveProject:  "travel",
		RecentTopics:   []string{"flights"},
		RecentEntities: []string{"SFO"},
		ActiveTask:     "pack",
	})

	deadline := start.Add(30 * time.Minute)
	b := e.Ingest(types.CandidateItem{
		ID:           "urgent",
		Type:         types.CategoryDeadline,
		Content:      "flight leaves soon",
		Priority:     100,
		Deadline:     &deadline,
		Project:      "travel",
		Topics:       []string{"flights"},
		Entities:     []string{"SFO"},
		RelatedTasks: []string{"pack"},
	})
	if b == nil {
		t.Fatal("ingest returned nil")
	}
	if b.Score < budget.DefaultEmergencyThreshold {
		t.Fatalf("setup: score %d below emergency threshold", b.Score)
	}
	if b.State != types.StateSurfaced {
		t.Errorf("emergency item state = %s, want surfaced", b.State)
	}
	if got := e.BudgetStatus().Daily.Used; got != 0 {
		t.Errorf("emergency debited budget: used = %d", got)
	}
}

// TestExportImportRoundTrip tests lossless state hand-off between engines
func TestExportImportRoundTrip(t *testing.T) {
	e, _ := testEngine(Options{})
	e.SetFocusMode(types.ModeFocused)
	e.SetDailyBudget(20)

	b := e.Ingest(types.CandidateItem{
		ID: "x", Type: types.CategoryCommitment, Content: "c", Priority: 80,
	})
	e.Engage(b.ID, types.FeedbackHelpful)

	exported := e.ExportUserState()

	e2, _ := testEngine(Options{State: exported})
	state := e2.ExportUserState()

	if state.Prefs.FocusMode != types.ModeFocused {
		t.Errorf("focus mode = %s, want focused", state.Prefs.FocusMode)
	}
	if state.Budget.Daily.Total != 20 {
		t.Errorf("daily total = %d, want 20", state.Budget.Daily.Total)
	}
	if state.Budget.Daily.Used != exported.Budget.Daily.Used {
		t.Errorf("used = %d, want %d", state.Budget.Daily.Used, exported.Budget.Daily.Used)
	}
	if got := state.Weight(types.CategoryCommitment); got != 1.10 {
		t.Errorf("weight = %.2f, want 1.10", got)
	}
	if len(state.History) != len(exported.History) {
		t.Errorf("history = %d entries, want %d", len(state.History), len(exported.History))
	}
}

// TestSetDailyBudgetClamps tests the [10,30] clamp through the engine
func TestSetDailyBudgetClamps(t *testing.T) {
	e, _ := testEngine(Options{})
	if got := e.SetDailyBudget(100); got != 30 {
		t.Errorf("SetDailyBudget(100) = %d, want 30", got)
	}
	if got := e.SetDailyBudget(1); got != 10 {
		t.Errorf("SetDailyBudget(1) = %d, want 10", got)
	}
}

// TestUnsubscribe tests that removed listeners stop receiving events
func TestUnsubscribe(t *testing.T) {
	e, _ := testEngine(Options{})

	calls := 0
	unsub := e.Subscribe(func(Event) { calls++ })
	e.Ingest(highPriorityItem("a"))
	if calls == 0 {
		t.Fatal("listener never called")
	}

	unsub()
	before := calls
	e.Ingest(highPriorityItem("b"))
	if calls != before {
		t.Error("listener called after unsubscribe")
	}
}

// TestListenerReentrancy tests calling back into the engine from a
// listener: mutation completes before emission, so this must not deadlock
func TestListenerReentrancy(t *testing.T) {
	e, _ := testEngine(Options{})

	var surfacedDuringEvent int
	e.Subscribe(func(ev Event) {
		if ev.Type == EventItemSurfaced {
			surfacedDuringEvent = len(e.SurfacedItems())
		}
	})

	e.Ingest(highPriorityItem("a"))
	if surfacedDuringEvent != 1 {
		t.Errorf("listener saw %d surfaced items, want 1", surfacedDuringEvent)
	}
}

// TestPruneStale tests the retention policy for aged-out items
func TestPruneStale(t *testing.T) {
	e, advance := testEngine(Options{StaleAfter: 48 * time.Hour})

	e.Ingest(types.CandidateItem{
		ID: "weak", Type: types.CategoryPattern, Content: "meh", Priority: 5,
	})
	strong := e.Ingest(highPriorityItem("strong"))
	if strong.State != types.StateSurfaced {
		t.Fatal("setup: strong item should surface")
	}

	advance(start.Add(72 * time.Hour))
	if n := e.PruneStale(); n != 1 {
		t.Errorf("pruned %d, want 1 (only the pending one)", n)
	}

	items := e.Items()
	if len(items) != 1 || items[0].ID != "strong" {
		t.Errorf("surviving items = %v, want strong", items)
	}
}

// TestConfidenceBreakdown tests the explainability accessor
func TestConfidenceBreakdown(t *testing.T) {
	e, _ := testEngine(Options{})
	b := e.Ingest(highPriorityItem("item-1"))

	bd := e.ConfidenceBreakdown(b.ID)
	if bd == nil {
		t.Fatal("breakdown nil for tracked item")
	}
	if bd.Final != b.Score {
		t.Errorf("breakdown final = %d, want %d", bd.Final, b.Score)
	}
	if e.ConfidenceBreakdown("ghost") != nil {
		t.Error("breakdown for unknown id")
	}
}

// TestItemVisualState tests intensity mapping through the engine
func TestItemVisualState(t *testing.T) {
	e, _ := testEngine(Options{})
	b := e.Ingest(highPriorityItem("item-1"))

	v := e.ItemVisualState(b.ID)
	if v == nil {
		t.Fatal("visual state nil for surfaced item")
	}
	if e.ItemVisualState("ghost") != nil {
		t.Error("visual state for unknown id")
	}
}

// TestClearItems tests that clearing drops bubbles but keeps user state
func TestClearItems(t *testing.T) {
	e, _ := testEngine(Options{})
	b := e.Ingest(highPriorityItem("item-1"))
	e.Engage(b.ID, "")

	e.ClearItems()
	if len(e.Items()) != 0 {
		t.Error("items remain after clear")
	}
	if len(e.ExportUserState().History) != 1 {
		t.Error("user state lost on clear")
	}
}

// TestIngestBatch tests batch ingestion skips rejects
func TestIngestBatch(t *testing.T) {
	e, _ := testEngine(Options{})
	out := e.IngestBatch([]types.CandidateItem{
		highPriorityItem("a"),
		highPriorityItem("a"), // duplicate
		highPriorityItem("b"),
	})
	if len(out) != 2 {
		t.Errorf("accepted %d items, want 2", len(out))
	}
}
