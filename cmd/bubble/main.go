package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/mkessler/bubble/internal/config"
	"github.com/mkessler/bubble/internal/engine"
	"github.com/mkessler/bubble/internal/journal"
	"github.com/mkessler/bubble/internal/store"
	"github.com/mkessler/bubble/internal/types"
)

func main() {
	log.Println("bubble - proactive surfacing engine")
	log.Println("===================================")

	// Load .env file (optional - won't error if missing)
	if err := godotenv.Load(); err != nil {
		log.Println("[config] No .env file found, using environment variables")
	} else {
		log.Println("[config] Loaded .env file")
	}

	statePath := os.Getenv("STATE_PATH")
	if statePath == "" {
		statePath = "state"
	}
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "bubble.yaml"
	}
	os.MkdirAll(statePath, 0755)

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	st, err := store.Open(statePath)
	if err != nil {
		log.Fatalf("Failed to open state store: %v", err)
	}
	defer st.Close()

	userState, err := st.LoadUserState()
	if err != nil {
		log.Printf("Warning: failed to load user state: %v", err)
	}
	if userState != nil {
		log.Printf("[main] Restored user state: mode=%s budget=%d/%d history=%d",
			userState.Prefs.FocusMode, userState.Budget.Daily.Used,
			userState.Budget.Daily.Total, len(userState.History))
	}

	eng := engine.New(engine.Options{
		DailyBudget:        cfg.DailyBudget,
		EmergencyThreshold: cfg.EmergencyThreshold,
		StaleAfter:         cfg.StaleAfter(),
		HourlyLimits:       cfg.ModeHourlyLimits(),
		State:              userState,
	})

	// Journal every engine event and persist state after each one
	jnl := journal.New(statePath)
	eng.Subscribe(func(ev engine.Event) {
		switch ev.Type {
		case engine.EventItemSurfaced:
			log.Printf("[main] Surfaced %s (score %d): %s", ev.Bubble.ID, ev.Bubble.Score, ev.Bubble.Message)
			jnl.LogSurfaced(ev.Bubble.ID, ev.Bubble.Message, ev.Bubble.Score)
		case engine.EventItemDismissed, engine.EventItemEngaged, engine.EventItemDeferred:
			jnl.LogAction(ev.Bubble.ID, string(ev.Type))
		case engine.EventBudgetConsumed:
			jnl.LogBudget(ev.Bubble.ID, ev.Remaining, false)
		case engine.EventBudgetExhausted:
			log.Printf("[main] Daily budget exhausted, %s stays pending", ev.Bubble.ID)
			jnl.LogBudget(ev.Bubble.ID, 0, true)
		case engine.EventItemsQueued:
			jnl.LogQueued(ev.Bubble.ID, ev.Queued)
		case engine.EventFocusModeChanged:
			jnl.LogMode(string(ev.Mode))
		}
		if err := st.SaveUserState(eng.ExportUserState()); err != nil {
			log.Printf("Warning: failed to save user state: %v", err)
		}
	})

	// Seed a few demo items so the pipeline is observable end to end
	now := time.Now()
	deadline := now.Add(90 * time.Minute)
	eng.IngestBatch([]types.CandidateItem{
		{
			ID:       "demo-deadline",
			Type:     types.CategoryDeadline,
			Content:  "Send the quarterly report",
			Source:   "calendar",
			Priority: 85,
			Deadline: &deadline,
			Project:  "ops",
		},
		{
			ID:       "demo-commitment",
			Type:     types.CategoryCommitment,
			Content:  "Review Dana's draft",
			Source:   "chat",
			Priority: 60,
			Entities: []string{"Dana"},
		},
		{
			ID:       "demo-pattern",
			Type:     types.CategoryPattern,
			Content:  "You tend to plan the week on Sunday evenings",
			Source:   "patterns",
			Priority: 35,
			Topics:   []string{"planning"},
		},
	})

	// Periodic concerns are pull-based: the engine never schedules itself
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	log.Printf("[main] Running. Surfaced: %d, budget: %+v",
		len(eng.SurfacedItems()), eng.BudgetStatus().Daily)

	for {
		select {
		case <-ticker.C:
			eng.ApplyResets()
			if n := eng.CheckDeferredItems(); n > 0 {
				log.Printf("[main] Reconsidered %d deferred items", n)
			}
			if n := eng.PruneStale(); n > 0 {
				log.Printf("[main] Pruned %d stale items", n)
			}
		case <-sigCh:
			log.Println("[main] Shutting down, saving state")
			if err := st.SaveUserState(eng.ExportUserState()); err != nil {
				log.Printf("Warning: failed to save user state: %v", err)
			}
			return
		}
	}
}
