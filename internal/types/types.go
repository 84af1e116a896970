package types

import "time"

// Category classifies what kind of fact a candidate item carries
type Category string

const (
	CategoryDeadline   Category = "deadline"   // something is due
	CategoryCommitment Category = "commitment" // user promised something to someone
	CategoryReminder   Category = "reminder"   // user asked to be reminded
	CategoryConnection Category = "connection" // two things the user cares about relate
	CategoryPattern    Category = "pattern"    // recurring behavior worth noticing
)

// BubbleState is the lifecycle state of a surfaceable item.
// Valid transitions: pending -> surfaced -> {dismissed, engaged, deferred},
// and deferred -> pending when the defer window passes.
type BubbleState string

const (
	StatePending   BubbleState = "pending"
	StateSurfaced  BubbleState = "surfaced"
	StateDismissed BubbleState = "dismissed"
	StateEngaged   BubbleState = "engaged"
	StateDeferred  BubbleState = "deferred"
)

// FocusModeName identifies the user's interruption policy
type FocusModeName string

const (
	ModeAvailable FocusModeName = "available"
	ModeFocused   FocusModeName = "focused"
	ModeDND       FocusModeName = "dnd"
)

// VisualState is the visual intensity a bubble renders at.
// Ordered: silent < passive < ready < active < priority.
type VisualState string

const (
	VisualSilent   VisualState = "silent"
	VisualPassive  VisualState = "passive"
	VisualReady    VisualState = "ready"
	VisualActive   VisualState = "active"
	VisualPriority VisualState = "priority"
)

// UserAction is what the user did with a surfaced bubble
type UserAction string

const (
	ActionDismissed UserAction = "dismissed"
	ActionEngaged   UserAction = "engaged"
	ActionDeferred  UserAction = "deferred"
)

// FeedbackTag is optional qualitative feedback attached to an action
type FeedbackTag string

const (
	FeedbackHelpful      FeedbackTag = "helpful"
	FeedbackEngaged      FeedbackTag = "engaged" // implicit, recorded on engagement
	FeedbackLessLikeThis FeedbackTag = "less_like_this"
	FeedbackWrongTime    FeedbackTag = "wrong_time"
	FeedbackNotRelevant  FeedbackTag = "not_relevant"
)

// Category weight bounds. Weights multiply the raw confidence score and
// adapt from feedback, so they stay in a band that can suppress or
// amplify a category without zeroing it out.
const (
	MinCategoryWeight     = 0.3
	MaxCategoryWeight     = 1.5
	DefaultCategoryWeight = 1.0
)

// MaxHistoryEntries caps the feedback history ring
const MaxHistoryEntries = 100

// TimeWindow is an optional [start, end] interval an item is best shown in
type TimeWindow struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Contains reports whether t falls inside the window (inclusive)
func (w *TimeWindow) Contains(t time.Time) bool {
	if w == nil {
		return false
	}
	return !t.Before(w.Start) && !t.After(w.End)
}

// CandidateItem is a raw fact supplied by an external producer
// (temporal-intelligence backend, out of scope). The engine never
// mutates a candidate; everything derived lives on the Bubble.
type CandidateItem struct {
	ID            string      `json:"id"`
	Type          Category    `json:"type"`
	Content       string      `json:"content"`
	Source        string      `json:"source"` // which detector produced it
	Priority      int         `json:"priority"` // 0-100 base priority
	Deadline      *time.Time  `json:"deadline,omitempty"`
	Topics        []string    `json:"topics,omitempty"`
	Entities      []string    `json:"entities,omitempty"`
	RelatedTasks  []string    `json:"related_tasks,omitempty"`
	OptimalWindow *TimeWindow `json:"optimal_window,omitempty"`
	DetectedAt    *time.Time  `json:"detected_at,omitempty"`
	Project       string      `json:"project,omitempty"`
}

// Bubble wraps a candidate item with everything the engine derived for it:
// generated copy, confidence score, and lifecycle state. Bubbles are owned
// and mutated exclusively by the engine.
type Bubble struct {
	ID         string        `json:"id"`
	Item       CandidateItem `json:"item"`
	Message    string        `json:"message"`
	Subtext    string        `json:"subtext,omitempty"`
	Action     string        `json:"action,omitempty"` // primary action label
	Score      int           `json:"score"`            // 0-100 confidence
	Priority   int           `json:"priority"`         // copy of base priority
	Category   Category      `json:"category"`
	State      BubbleState   `json:"state"`
	CreatedAt  time.Time     `json:"created_at"`
	SurfacedAt *time.Time    `json:"surfaced_at,omitempty"`
}

// UserContext is what the user is doing right now, supplied by the caller.
// Updating it triggers rescoring of live bubbles.
type UserContext struct {
	ActiveProject  string   `json:"active_project,omitempty"`
	RecentTopics   []string `json:"recent_topics,omitempty"`
	RecentEntities []string `json:"recent_entities,omitempty"`
	ActiveTask     string   `json:"active_task,omitempty"`
}

// HistoryEntry records one past user action, for engagement scoring
type HistoryEntry struct {
	ID        string     `json:"id"`
	Category  Category   `json:"category"`
	Score     int        `json:"score"`
	Action    UserAction `json:"action"`
	TimeToAct float64    `json:"time_to_act_secs"` // seconds from surfacing to action
	Source    string     `json:"source,omitempty"`
	Timestamp time.Time  `json:"timestamp"`
}

// DailyBudget tracks the per-day interruption allowance
type DailyBudget struct {
	Total     int       `json:"total"`
	Used      int       `json:"used"`
	Remaining int       `json:"remaining"`
	LastReset time.Time `json:"last_reset"`
}

// HourlyWindow tracks interruptions inside a rolling 60-minute window
type HourlyWindow struct {
	Count       int       `json:"count"`
	WindowStart time.Time `json:"window_start"`
}

// InterruptBudget is a point-in-time snapshot of budget state,
// persisted as part of UserState
type InterruptBudget struct {
	Daily              DailyBudget  `json:"daily"`
	Hourly             HourlyWindow `json:"hourly"`
	EmergencyThreshold int          `json:"emergency_threshold"`
}

// InterruptPrefs are the user's interruption preferences
type InterruptPrefs struct {
	FocusMode   FocusModeName `json:"focus_mode"`
	DailyBudget int           `json:"daily_budget"`
	Sound       bool          `json:"sound"`
	Haptics     bool          `json:"haptics"`
}

// DeferredItem is a bubble the user pushed to a future time
type DeferredItem struct {
	ItemID        string    `json:"item_id"`
	DeferredAt    time.Time `json:"deferred_at"`
	DeferredUntil time.Time `json:"deferred_until"`
}

// UserState is the only entity that survives process restarts. It is
// exported/imported explicitly; the host application owns persistence.
type UserState struct {
	Prefs           InterruptPrefs       `json:"prefs"`
	CategoryWeights map[Category]float64 `json:"category_weights"`
	Budget          InterruptBudget      `json:"budget"`
	Deferred        []DeferredItem       `json:"deferred,omitempty"`
	History         []HistoryEntry       `json:"history,omitempty"`
}

// NewUserState returns a fresh state with default preferences
func NewUserState() *UserState {
	return &UserState{
		Prefs: InterruptPrefs{
			FocusMode:   ModeAvailable,
			DailyBudget: 15,
			Sound:       true,
			Haptics:     true,
		},
		CategoryWeights: make(map[Category]float64),
	}
}

// Weight returns the category weight, defaulting to 1.0 for
// categories the user has never given feedback on
func (s *UserState) Weight(cat Category) float64 {
	if s == nil || s.CategoryWeights == nil {
		return DefaultCategoryWeight
	}
	if w, ok := s.CategoryWeights[cat]; ok {
		return w
	}
	return DefaultCategoryWeight
}

// Clone returns a deep copy so adaptation can work copy-on-write
func (s *UserState) Clone() *UserState {
	if s == nil {
		return NewUserState()
	}
	out := *s
	out.CategoryWeights = make(map[Category]float64, len(s.CategoryWeights))
	for k, v := range s.CategoryWeights {
		out.CategoryWeights[k] = v
	}
	out.Deferred = append([]DeferredItem(nil), s.Deferred...)
	out.History = append([]HistoryEntry(nil), s.History...)
	return &out
}
