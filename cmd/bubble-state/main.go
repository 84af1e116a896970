// Command bubble-state dumps the persisted user state for inspection.
package main

import (
	"fmt"
	"log"
	"os"

	"github.com/mkessler/bubble/internal/store"
	"github.com/mkessler/bubble/internal/types"
)

func main() {
	statePath := os.Getenv("STATE_PATH")
	if statePath == "" {
		statePath = "state"
	}

	st, err := store.Open(statePath)
	if err != nil {
		log.Fatalf("Failed to open state store: %v", err)
	}
	defer st.Close()

	state, err := st.LoadUserState()
	if err != nil {
		log.Fatalf("Failed to load user state: %v", err)
	}
	if state == nil {
		fmt.Println("No persisted state yet.")
		return
	}

	saved, _ := st.LastSaved()
	fmt.Printf("State db:    %s\n", st.Path())
	if !saved.IsZero() {
		fmt.Printf("Last saved:  %s\n", saved.Format("2006-01-02 15:04:05"))
	}
	fmt.Printf("Focus mode:  %s\n", state.Prefs.FocusMode)
	fmt.Printf("Budget:      %d/%d used, %d remaining (last reset %s)\n",
		state.Budget.Daily.Used, state.Budget.Daily.Total,
		state.Budget.Daily.Remaining, state.Budget.Daily.LastReset.Format("2006-01-02"))
	fmt.Printf("Hourly:      %d since %s\n",
		state.Budget.Hourly.Count, state.Budget.Hourly.WindowStart.Format("15:04"))

	if len(state.CategoryWeights) > 0 {
		fmt.Println("\nCategory weights:")
		for cat, w := range state.CategoryWeights {
			fmt.Printf("  %-12s %.2f\n", cat, w)
		}
	}

	if len(state.Deferred) > 0 {
		fmt.Println("\nDeferred items:")
		for _, d := range state.Deferred {
			fmt.Printf("  %s until %s\n", d.ItemID, d.DeferredUntil.Format("2006-01-02 15:04"))
		}
	}

	fmt.Printf("\nHistory: %d entries\n", len(state.History))
	engaged := 0
	for _, h := range state.History {
		if h.Action == types.ActionEngaged {
			engaged++
		}
	}
	if len(state.History) > 0 {
		fmt.Printf("Engagement rate: %.0f%%\n", float64(engaged)/float64(len(state.History))*100)
	}
}
