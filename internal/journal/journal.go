// Package journal appends an observability trail of surfacing decisions
// to state/journal.jsonl, one JSON object per line. Hosts feed it from
// the engine's event stream.
package journal

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// EntryType identifies what kind of journal entry this is
type EntryType string

const (
	EntrySurfaced EntryType = "surfaced" // a bubble reached the user
	EntryAction   EntryType = "action"   // user dismissed/engaged/deferred
	EntryQueued   EntryType = "queued"   // dnd held a bubble back
	EntryBudget   EntryType = "budget"   // budget consumed or exhausted
	EntryMode     EntryType = "mode"     // focus mode changed
)

// Entry is a single journal line
type Entry struct {
	Timestamp time.Time      `json:"ts"`
	Type      EntryType      `json:"type"`
	ItemID    string         `json:"item_id,omitempty"`
	Summary   string         `json:"summary,omitempty"`
	Score     int            `json:"score,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
}

// Journal writes entries to journal.jsonl under the state directory
type Journal struct {
	path string
	mu   sync.Mutex
}

// New creates a journal writer
func New(statePath string) *Journal {
	return &Journal{
		path: filepath.Join(statePath, "journal.jsonl"),
	}
}

// Log writes one entry
func (j *Journal) Log(entry Entry) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}

	f, err := os.OpenFile(j.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer f.Close()

	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	_, err = f.Write(append(data, '\n'))
	return err
}

// LogSurfaced records a bubble reaching the user
func (j *Journal) LogSurfaced(itemID, message string, score int) error {
	return j.Log(Entry{
		Type:    EntrySurfaced,
		ItemID:  itemID,
		Summary: message,
		Score:   score,
	})
}

// LogAction records what the user did with a bubble
func (j *Journal) LogAction(itemID, action string) error {
	return j.Log(Entry{
		Type:    EntryAction,
		ItemID:  itemID,
		Summary: action,
	})
}

// LogBudget records budget consumption or exhaustion
func (j *Journal) LogBudget(itemID string, remaining int, exhausted bool) error {
	return j.Log(Entry{
		Type:   EntryBudget,
		ItemID: itemID,
		Data:   map[string]any{"remaining": remaining, "exhausted": exhausted},
	})
}

// LogMode records a focus mode change
func (j *Journal) LogMode(mode string) error {
	return j.Log(Entry{
		Type:    EntryMode,
		Summary: mode,
	})
}

// LogQueued records a bubble held back by dnd
func (j *Journal) LogQueued(itemID string, queued int) error {
	return j.Log(Entry{
		Type:   EntryQueued,
		ItemID: itemID,
		Data:   map[string]any{"queued": queued},
	})
}
