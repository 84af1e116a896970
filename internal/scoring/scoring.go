// Package scoring computes the 0-100 confidence score that decides whether
// an item is worth interrupting the user for. Pure functions of their
// inputs; missing optional fields fall back to documented defaults.
package scoring

import (
	"math"
	"strings"
	"time"

	"github.com/mkessler/bubble/internal/types"
)

// Factor weights. Priority dominates, the rest split the remainder.
const (
	weightPriority   = 0.35
	weightTimeSens   = 0.25
	weightContext    = 0.25
	weightEngagement = 0.15
)

// Time-sensitivity defaults
const (
	farDeadlineScore = 20 // deadline more than a week out
	inWindowScore    = 85 // inside the item's optimal window
	agedScoreCap     = 70 // max score from age decay
	noSignalScore    = 30 // nothing time-related to go on
)

// Breakdown exposes every factor that went into a score, for
// explainability surfaces ("why am I seeing this?")
type Breakdown struct {
	Priority             int     `json:"priority"`
	TimeSensitivity      int     `json:"time_sensitivity"`
	ContextRelevance     int     `json:"context_relevance"`
	HistoricalEngagement int     `json:"historical_engagement"`
	Raw                  float64 `json:"raw"`
	CategoryWeight       float64 `json:"category_weight"`
	Final                int     `json:"final"`
}

// Score computes the composite confidence for an item. categoryWeight is
// the caller-looked-up multiplier for the item's category (1.0 neutral).
func Score(item *types.CandidateItem, ctx *types.UserContext, history []types.HistoryEntry, categoryWeight float64, now time.Time) Breakdown {
	b := Breakdown{
		Priority:             clamp(item.Priority, 0, 100),
		TimeSensitivity:      timeSensitivity(item, now),
		ContextRelevance:     contextRelevance(item, ctx),
		HistoricalEngagement: historicalEngagement(item, history),
		CategoryWeight:       categoryWeight,
	}

	b.Raw = float64(b.Priority)*weightPriority +
		float64(b.TimeSensitivity)*weightTimeSens +
		float64(b.ContextRelevance)*weightContext +
		float64(b.HistoricalEngagement)*weightEngagement

	adjusted := b.Raw * categoryWeight
	b.Final = int(math.Round(math.Max(0, math.Min(100, adjusted))))
	return b
}

// timeSensitivity buckets by deadline proximity when a deadline exists,
// otherwise falls back to optimal-window and age signals
func timeSensitivity(item *types.CandidateItem, now time.Time) int {
	if item.Deadline != nil {
		hours := item.Deadline.Sub(now).Hours()
		switch {
		case hours < 2: // includes overdue
			return 100
		case hours < 24:
			return 80
		case hours < 72:
			return 60
		case hours < 168:
			return 40
		default:
			return farDeadlineScore
		}
	}

	if item.OptimalWindow.Contains(now) {
		return inWindowScore
	}

	// Aged items creep upward so they don't rot unseen forever
	if item.DetectedAt != nil {
		days := int(now.Sub(*item.DetectedAt).Hours() / 24)
		if days > 3 {
			return min(agedScoreCap, 40+5*days)
		}
	}

	return noSignalScore
}

// contextRelevance is additive and capped at 100: active project +40,
// topic overlap +30, entity overlap +20, related active task +10
func contextRelevance(item *types.CandidateItem, ctx *types.UserContext) int {
	if ctx == nil {
		return 0
	}
	score := 0

	if ctx.ActiveProject != "" && item.Project != "" &&
		strings.EqualFold(ctx.ActiveProject, item.Project) {
		score += 40
	}
	if overlaps(item.Topics, ctx.RecentTopics) {
		score += 30
	}
	if overlaps(item.Entities, ctx.RecentEntities) {
		score += 20
	}
	if ctx.ActiveTask != "" && containsFold(item.RelatedTasks, ctx.ActiveTask) {
		score += 10
	}

	return min(score, 100)
}

// historicalEngagement is the engaged ratio among history entries matching
// the item's category or source. No matching history reads as neutral 50.
func historicalEngagement(item *types.CandidateItem, history []types.HistoryEntry) int {
	total := 0
	engaged := 0
	for _, h := range history {
		if h.Category != item.Type && !(h.Source != "" && h.Source == item.Source) {
			continue
		}
		total++
		if h.Action == types.ActionEngaged {
			engaged++
		}
	}
	if total == 0 {
		return 50
	}
	return int(math.Round(float64(engaged) / float64(total) * 100))
}

func overlaps(a, b []string) bool {
	for _, x := range a {
		if containsFold(b, x) {
			return true
		}
	}
	return false
}

func containsFold(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
