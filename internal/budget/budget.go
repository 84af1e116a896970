// Package budget meters interruptions against a daily allowance and a
// rolling hourly window. Resets are applied lazily on every check or
// consume call; there is no background timer in here.
package budget

import (
	"sync"
	"time"

	"github.com/mkessler/bubble/internal/logging"
	"github.com/mkessler/bubble/internal/types"
)

// Daily allowance bounds
const (
	MinDailyBudget     = 10
	MaxDailyBudget     = 30
	DefaultDailyBudget = 15
)

// DefaultEmergencyThreshold is the score at which an item bypasses
// budget checks entirely (except under dnd)
const DefaultEmergencyThreshold = 98

// Reason explains a denied authorization
type Reason string

const (
	ReasonDailyExhausted Reason = "daily_budget_exhausted"
	ReasonHourlyLimit    Reason = "hourly_limit_reached"
	ReasonDND            Reason = "dnd_mode"
)

// Authorization is the result of a budget check. Denials carry the first
// failing check's reason; they are inspected, never thrown.
type Authorization struct {
	Allowed   bool
	Reason    Reason
	Cost      int
	Emergency bool
}

// Manager tracks the interrupt budget for one user session
type Manager struct {
	mu                 sync.Mutex
	daily              types.DailyBudget
	hourly             types.HourlyWindow
	emergencyThreshold int
	now                func() time.Time
}

// NewManager creates a budget manager. dailyTotal is clamped to
// [MinDailyBudget, MaxDailyBudget]; 0 means the default. A nil clock
// uses time.Now.
func NewManager(dailyTotal int, now func() time.Time) *Manager {
	if now == nil {
		now = time.Now
	}
	total := clampDaily(dailyTotal)
	t := now()
	return &Manager{
		daily: types.DailyBudget{
			Total:     total,
			Remaining: total,
			LastReset: t,
		},
		hourly:             types.HourlyWindow{WindowStart: t},
		emergencyThreshold: DefaultEmergencyThreshold,
		now:                now,
	}
}

func clampDaily(n int) int {
	if n == 0 {
		return DefaultDailyBudget
	}
	if n < MinDailyBudget {
		return MinDailyBudget
	}
	if n > MaxDailyBudget {
		return MaxDailyBudget
	}
	return n
}

// SetDailyTotal changes the daily allowance, preserving today's usage.
// Returns the clamped value actually applied.
func (m *Manager) SetDailyTotal(n int) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	total := clampDaily(n)
	m.daily.Total = total
	m.daily.Remaining = max(0, total-m.daily.Used)
	return total
}

// SetEmergencyThreshold overrides the bypass score
func (m *Manager) SetEmergencyThreshold(score int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.emergencyThreshold = score
}

// EmergencyThreshold returns the current bypass score
func (m *Manager) EmergencyThreshold() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.emergencyThreshold
}

// ApplyResets applies any pending daily/hourly resets. Intended to be
// called periodically by the owner; also happens implicitly on every
// Check/Consume.
func (m *Manager) ApplyResets() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.applyResetsLocked()
}

func (m *Manager) applyResetsLocked() {
	t := m.now()

	y1, mo1, d1 := m.daily.LastReset.Date()
	y2, mo2, d2 := t.Date()
	if y1 != y2 || mo1 != mo2 || d1 != d2 {
		m.daily.Used = 0
		m.daily.Remaining = m.daily.Total
		m.daily.LastReset = t
	}

	if t.Sub(m.hourly.WindowStart) >= time.Hour {
		m.hourly.Count = 0
		m.hourly.WindowStart = t
	}
}

// Check authorizes an interruption without debiting. Order of checks:
// emergency bypass, dnd block, daily remaining, hourly limit.
func (m *Manager) Check(score int, mode types.FocusModeName, hourlyLimit int) Authorization {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.applyResetsLocked()
	return m.checkLocked(score, mode, hourlyLimit)
}

func (m *Manager) checkLocked(score int, mode types.FocusModeName, hourlyLimit int) Authorization {
	// Emergency bypass is disabled under dnd: all interruption is blocked
	if score >= m.emergencyThreshold {
		if mode == types.ModeDND {
			return Authorization{Reason: ReasonDND}
		}
		return Authorization{Allowed: true, Cost: 0, Emergency: true}
	}
	if mode == types.ModeDND {
		return Authorization{Reason: ReasonDND}
	}

	const cost = 1
	if m.daily.Remaining < cost {
		return Authorization{Reason: ReasonDailyExhausted}
	}
	if m.hourly.Count+cost > hourlyLimit {
		return Authorization{Reason: ReasonHourlyLimit}
	}
	return Authorization{Allowed: true, Cost: cost}
}

// Consume authorizes and, if allowed, debits the budget. A denied
// consumption still applies pending resets but performs no debit.
func (m *Manager) Consume(score int, mode types.FocusModeName, hourlyLimit int) Authorization {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.applyResetsLocked()

	auth := m.checkLocked(score, mode, hourlyLimit)
	if !auth.Allowed || auth.Cost == 0 {
		return auth
	}

	m.daily.Used += auth.Cost
	m.daily.Remaining = max(0, m.daily.Remaining-auth.Cost)
	m.hourly.Count += auth.Cost
	return auth
}

// Snapshot returns the current budget state for persistence
func (m *Manager) Snapshot() types.InterruptBudget {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.applyResetsLocked()
	return types.InterruptBudget{
		Daily:              m.daily,
		Hourly:             m.hourly,
		EmergencyThreshold: m.emergencyThreshold,
	}
}

// Restore replaces budget state from a persisted snapshot, then applies
// any resets that came due while the snapshot was on disk
func (m *Manager) Restore(b types.InterruptBudget) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.daily = b.Daily
	m.daily.Total = clampDaily(m.daily.Total)
	m.hourly = b.Hourly
	if b.EmergencyThreshold > 0 {
		m.emergencyThreshold = b.EmergencyThreshold
	}
	m.applyResetsLocked()
}

// LogStatus logs the current budget state
func (m *Manager) LogStatus() {
	s := m.Snapshot()
	logging.Info("budget", "Daily: %d/%d used (%d remaining) | Hourly: %d since %s",
		s.Daily.Used, s.Daily.Total, s.Daily.Remaining,
		s.Hourly.Count, s.Hourly.WindowStart.Format("15:04"))
}
