// Package message turns raw candidate items into displayable copy using
// ordered per-category rule lists. The first matching rule wins; every
// list ends in a catch-all, so generation never fails.
package message

import (
	"fmt"
	"time"

	"github.com/mkessler/bubble/internal/types"
)

// Content is the displayable triple generated for an item
type Content struct {
	Message string `json:"message"`
	Subtext string `json:"subtext,omitempty"`
	Action  string `json:"action,omitempty"`
}

// rule pairs a predicate with a renderer. Rules are evaluated in order.
type rule struct {
	match  func(*types.CandidateItem, time.Time) bool
	render func(*types.CandidateItem, time.Time) Content
}

const maxCopyLen = 80

func short(s string) string {
	if len(s) <= maxCopyLen {
		return s
	}
	return s[:maxCopyLen] + "..."
}

func always(*types.CandidateItem, time.Time) bool { return true }

func hasEntities(it *types.CandidateItem, _ time.Time) bool { return len(it.Entities) > 0 }
func hasTopics(it *types.CandidateItem, _ time.Time) bool   { return len(it.Topics) > 0 }

// deadlineRules bucket by hours until the deadline, most urgent first
var deadlineRules = []rule{
	{
		// overdue
		match: func(it *types.CandidateItem, now time.Time) bool {
			return it.Deadline != nil && it.Deadline.Before(now)
		},
		render: func(it *types.CandidateItem, now time.Time) Content {
			return Content{
				Message: fmt.Sprintf("%q is overdue", short(it.Content)),
				Subtext: "Reschedule it or mark it complete",
				Action:  "Handle Now",
			}
		},
	},
	{
		// inside two hours: minute countdown
		match: func(it *types.CandidateItem, now time.Time) bool {
			return it.Deadline != nil && it.Deadline.Sub(now).Hours() < 2
		},
		render: func(it *types.CandidateItem, now time.Time) Content {
			mins := int(it.Deadline.Sub(now).Minutes())
			return Content{
				Message: fmt.Sprintf("%q is due in %d minutes", short(it.Content), mins),
				Action:  "Focus Now",
			}
		},
	},
	{
		// later today: hour countdown, project subtext
		match: func(it *types.CandidateItem, now time.Time) bool {
			return it.Deadline != nil && it.Deadline.Sub(now).Hours() < 24
		},
		render: func(it *types.CandidateItem, now time.Time) Content {
			hours := int(it.Deadline.Sub(now).Hours())
			c := Content{
				Message: fmt.Sprintf("%q is due in %d hours", short(it.Content), hours),
				Action:  "Review",
			}
			if it.Project != "" {
				c.Subtext = "Part of " + it.Project
			}
			return c
		},
	},
	{
		// within three days
		match: func(it *types.CandidateItem, now time.Time) bool {
			return it.Deadline != nil && it.Deadline.Sub(now).Hours() < 72
		},
		render: func(it *types.CandidateItem, now time.Time) Content {
			days := int(it.Deadline.Sub(now).Hours() / 24)
			if days < 1 {
				days = 1
			}
			return Content{
				Message: fmt.Sprintf("Heads up: %q is due in %d days", short(it.Content), days),
			}
		},
	},
	{
		match: always,
		render: func(it *types.CandidateItem, _ time.Time) Content {
			return Content{Message: fmt.Sprintf("%q is coming up", short(it.Content))}
		},
	},
}

var commitmentRules = []rule{
	{
		match: hasEntities,
		render: func(it *types.CandidateItem, _ time.Time) Content {
			return Content{
				Message: fmt.Sprintf("You told %s you'd follow through on this", it.Entities[0]),
				Subtext: short(it.Content),
				Action:  "Review Commitment",
			}
		},
	},
	{
		match: hasTopics,
		render: func(it *types.CandidateItem, _ time.Time) Content {
			return Content{
				Message: fmt.Sprintf("Your commitment around %s is still open", it.Topics[0]),
				Subtext: short(it.Content),
				Action:  "Review Commitment",
			}
		},
	},
	{
		match: always,
		render: func(it *types.CandidateItem, _ time.Time) Content {
			return Content{Message: "Don't forget: " + short(it.Content)}
		},
	},
}

var reminderRules = []rule{
	{
		match: hasTopics,
		render: func(it *types.CandidateItem, _ time.Time) Content {
			return Content{
				Message: fmt.Sprintf("Reminder about %s", it.Topics[0]),
				Subtext: short(it.Content),
				Action:  "Mark Done",
			}
		},
	},
	{
		match: always,
		render: func(it *types.CandidateItem, _ time.Time) Content {
			return Content{
				Message: "Reminder: " + short(it.Content),
				Action:  "Mark Done",
			}
		},
	},
}

var connectionRules = []rule{
	{
		match: hasEntities,
		render: func(it *types.CandidateItem, _ time.Time) Content {
			return Content{
				Message: fmt.Sprintf("%s ties into something you're working on", it.Entities[0]),
				Subtext: short(it.Content),
				Action:  "See Connection",
			}
		},
	},
	{
		match: hasTopics,
		render: func(it *types.CandidateItem, _ time.Time) Content {
			return Content{
				Message: fmt.Sprintf("Found a link to %s", it.Topics[0]),
				Subtext: short(it.Content),
				Action:  "See Connection",
			}
		},
	},
	{
		match: always,
		render: func(it *types.CandidateItem, _ time.Time) Content {
			return Content{Message: "New connection: " + short(it.Content)}
		},
	},
}

var patternRules = []rule{
	{
		match: hasTopics,
		render: func(it *types.CandidateItem, _ time.Time) Content {
			return Content{
				Message: fmt.Sprintf("Noticed a pattern around %s", it.Topics[0]),
				Subtext: short(it.Content),
				Action:  "View Pattern",
			}
		},
	},
	{
		match: always,
		render: func(it *types.CandidateItem, _ time.Time) Content {
			return Content{Message: "Pattern spotted: " + short(it.Content)}
		},
	},
}

var rulesByCategory = map[types.Category][]rule{
	types.CategoryDeadline:   deadlineRules,
	types.CategoryCommitment: commitmentRules,
	types.CategoryReminder:   reminderRules,
	types.CategoryConnection: connectionRules,
	types.CategoryPattern:    patternRules,
}

// Generate renders display copy for an item. Deterministic; unknown
// categories fall back to the raw content.
func Generate(item *types.CandidateItem, now time.Time) Content {
	rules, ok := rulesByCategory[item.Type]
	if !ok {
		return Content{Message: short(item.Content)}
	}
	for _, r := range rules {
		if r.match(item, now) {
			return r.render(item, now)
		}
	}
	// unreachable: every list ends in a catch-all
	return Content{Message: short(item.Content)}
}

// TransformToBubble builds a pending bubble from a candidate item and its
// computed score. The input item is copied, never mutated.
func TransformToBubble(item types.CandidateItem, score int, now time.Time) *types.Bubble {
	c := Generate(&item, now)
	return &types.Bubble{
		ID:        item.ID,
		Item:      item,
		Message:   c.Message,
		Subtext:   c.Subtext,
		Action:    c.Action,
		Score:     score,
		Priority:  item.Priority,
		Category:  item.Type,
		State:     types.StatePending,
		CreatedAt: now,
	}
}
