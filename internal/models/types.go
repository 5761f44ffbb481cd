package models

// Package models defines core data types used throughout zoneguard-ai.
//
// These types are shared by the forecasting, anomaly, reasoning, recommendation,
// orchestration and replay packages, and by the persistence and HTTP layers.

import (
	"fmt"
	"sort"
	"time"
)

// Weather categories recorded with each observation.
const (
	WeatherClear = "clear"
	WeatherRain  = "rain"
	WeatherStorm = "storm"
	WeatherSnow  = "snow"
)

// Observation is one recorded operating sample for a delivery zone.
// Observations are immutable once recorded.
type Observation struct {
	ZoneID       string    `json:"zone_id"`
	Timestamp    time.Time `json:"timestamp"`
	Demand       float64   `json:"demand"`
	Drivers      float64   `json:"drivers"`
	Inventory    float64   `json:"inventory"`
	Weather      string    `json:"weather"`
	Availability float64   `json:"availability"`
}

// Snapshot is the raw metric payload attached to an anomaly event.
type Snapshot struct {
	Demand       float64 `json:"demand"`
	Drivers      float64 `json:"drivers"`
	Inventory    float64 `json:"inventory"`
	Availability float64 `json:"availability"`
	Weather      string  `json:"weather"`
}

// AnomalyEvent is a flagged operating window for one zone.
type AnomalyEvent struct {
	EventID   string    `json:"event_id"`
	Timestamp time.Time `json:"timestamp"`
	ZoneID    string    `json:"zone_id"`
	Score     float64   `json:"score"`
	Snapshot  Snapshot  `json:"snapshot"`
}

// EventID builds the identifier of an event raised for zone at ts.
func EventID(zone string, ts time.Time) string {
	return fmt.Sprintf("%s:%s", zone, ts.UTC().Format(time.RFC3339))
}

// Step trace statuses.
const (
	StepStatusOK      = "ok"
	StepStatusSkipped = "skipped"
)

// StepTrace records the execution of one orchestrated stage.
type StepTrace struct {
	Step      string                 `json:"step"`
	Status    string                 `json:"status"`
	LatencyMS float64                `json:"latency_ms"`
	Details   map[string]interface{} `json:"details"`
}

// ZoneHistory returns the observations of zone ordered by timestamp.
// The input slice is not modified.
func ZoneHistory(history []Observation, zone string) []Observation {
	out := make([]Observation, 0, len(history))
	for _, o := range history {
		if o.ZoneID == zone {
			out = append(out, o)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out
}

// Zones returns the distinct zone ids in history, sorted.
func Zones(history []Observation) []string {
	seen := make(map[string]struct{})
	for _, o := range history {
		seen[o.ZoneID] = struct{}{}
	}
	zones := make([]string, 0, len(seen))
	for z := range seen {
		zones = append(zones, z)
	}
	sort.Strings(zones)
	return zones
}
