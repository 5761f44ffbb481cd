package recommendation

import (
	"github.com/zoneguard/zoneguard-ai/internal/models"
)

// Package recommendation turns an anomaly event into prioritized mitigations.
//
// Rules are evaluated in order over the event snapshot. Conditional rules come
// first and carry high priority; the two standing rules always fire, so every
// plan has at least two actions.

// Action priorities.
const (
	PriorityHigh   = "high"
	PriorityMedium = "medium"
)

// Action is one recommended mitigation.
type Action struct {
	Action   string `json:"action"`
	Detail   string `json:"detail"`
	Priority string `json:"priority"`
}

// Plan is the planner output for one event.
type Plan struct {
	EventID            string   `json:"event_id"`
	RecommendedActions []Action `json:"recommended_actions"`
	ReasoningReference string   `json:"reasoning_reference"`
}

// ─── Rules ────────────────────────────────────────────────────────────────────

var rules = []struct {
	name   string
	check  func(s models.Snapshot) bool
	action Action
}{
	{
		name:  "driver_shortfall",
		check: func(s models.Snapshot) bool { return s.Drivers < s.Demand*0.9 },
		action: Action{
			Action:   "Rebalance drivers",
			Detail:   "Shift drivers from neighboring zones within next 30 minutes.",
			Priority: PriorityHigh,
		},
	},
	{
		name:  "inventory_shortfall",
		check: func(s models.Snapshot) bool { return s.Inventory < s.Demand*0.8 },
		action: Action{
			Action:   "Expedite inventory transfer",
			Detail:   "Move hot-selling inventory from closest micro-fulfillment center.",
			Priority: PriorityHigh,
		},
	},
	{
		name:  "surge_controls",
		check: func(models.Snapshot) bool { return true },
		action: Action{
			Action:   "Enable surge controls",
			Detail:   "Temporarily throttle low-priority orders and adjust promised ETA windows.",
			Priority: PriorityMedium,
		},
	},
	{
		name:  "stability_watch",
		check: func(models.Snapshot) bool { return true },
		action: Action{
			Action:   "Monitor zone stability",
			Detail:   "Track availability every 15 minutes for the next 2 hours.",
			Priority: PriorityMedium,
		},
	},
}

// Planner evaluates the mitigation rules. It is stateless.
type Planner struct{}

// NewPlanner creates a planner.
func NewPlanner() *Planner {
	return &Planner{}
}

// Plan returns the actions whose rules fire for event, in rule order.
func (p *Planner) Plan(event models.AnomalyEvent, explanation string) *Plan {
	eventID := event.EventID
	if eventID == "" {
		eventID = "unknown-event"
	}
	actions := make([]Action, 0, len(rules))
	for _, r := range rules {
		if r.check(event.Snapshot) {
			actions = append(actions, r.action)
		}
	}
	return &Plan{
		EventID:            eventID,
		RecommendedActions: actions,
		ReasoningReference: explanation,
	}
}
