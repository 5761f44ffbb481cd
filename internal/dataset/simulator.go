// Package dataset generates and loads operational observation datasets.
//
// The simulator produces hourly observations per zone with a daily demand
// cycle, a weekly cycle, random weather and occasional availability shocks.
// Output is fully determined by the seed and start time.
package dataset

import (
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/zoneguard/zoneguard-ai/internal/models"
)

// Default simulation sizes.
const (
	DefaultZones = 6
	DefaultHours = 24 * 30
	DefaultSeed  = 7

	shockProbability = 0.018
)

var (
	weatherStates = []string{models.WeatherClear, models.WeatherRain, models.WeatherStorm, models.WeatherSnow}
	weatherProbs  = []float64{0.68, 0.18, 0.08, 0.06}
)

// Config controls synthetic data generation.
type Config struct {
	Zones int
	Hours int
	Seed  int64
	// Start is the first timestamp. Zero means Hours before now, truncated
	// to the hour.
	Start time.Time
}

// WeatherMultiplier maps a weather category onto its availability factor.
func WeatherMultiplier(weather string) float64 {
	switch weather {
	case models.WeatherClear:
		return 1.0
	case models.WeatherRain:
		return 0.93
	case models.WeatherSnow:
		return 0.88
	default:
		return 0.80
	}
}

// Generate builds a synthetic dataset of cfg.Zones zones by cfg.Hours hourly
// observations, ordered by zone then timestamp.
func Generate(cfg Config) ([]models.Observation, error) {
	if cfg.Zones <= 0 || cfg.Hours <= 0 {
		return nil, fmt.Errorf("zones and hours must be positive, got %d and %d", cfg.Zones, cfg.Hours)
	}
	start := cfg.Start
	if start.IsZero() {
		start = time.Now().UTC().Truncate(time.Hour).Add(-time.Duration(cfg.Hours) * time.Hour)
	}

	rng := rand.New(rand.NewSource(cfg.Seed))
	out := make([]models.Observation, 0, cfg.Zones*cfg.Hours)
	for z := 1; z <= cfg.Zones; z++ {
		zone := fmt.Sprintf("zone_%02d", z)
		baseDemand := uniform(rng, 50, 120)
		baseDrivers := uniform(rng, 45, 110)
		baseInventory := uniform(rng, 60, 140)

		for i := 0; i < cfg.Hours; i++ {
			hourCycle := 1 + 0.35*math.Sin(2*math.Pi*float64(i%24)/24)
			dayCycle := 1 + 0.15*math.Cos(2*math.Pi*float64(i%(24*7))/(24*7))

			weather := pickWeather(rng)
			demand := math.Max(5, baseDemand*hourCycle*dayCycle+rng.NormFloat64()*6)
			drivers := math.Max(3, baseDrivers*(1+rng.NormFloat64()*0.08))
			inventory := math.Max(4, baseInventory*(1+rng.NormFloat64()*0.10))

			pressure := demand / math.Max(1, drivers)
			invFactor := math.Min(1.2, inventory/math.Max(1, demand))
			availability := clip(1.1-0.38*pressure+0.24*invFactor, 0.05, 1) * WeatherMultiplier(weather)
			availability = clip(availability+rng.NormFloat64()*0.03, 0, 1)

			if rng.Float64() < shockProbability {
				availability = clip(availability-uniform(rng, 0.2, 0.4), 0, 1)
			}

			out = append(out, models.Observation{
				ZoneID:       zone,
				Timestamp:    start.Add(time.Duration(i) * time.Hour),
				Demand:       round(demand, 3),
				Drivers:      round(drivers, 3),
				Inventory:    round(inventory, 3),
				Weather:      weather,
				Availability: round(availability, 4),
			})
		}
	}
	return out, nil
}

func pickWeather(rng *rand.Rand) string {
	r := rng.Float64()
	acc := 0.0
	for i, p := range weatherProbs {
		acc += p
		if r < acc {
			return weatherStates[i]
		}
	}
	return weatherStates[len(weatherStates)-1]
}

func uniform(rng *rand.Rand, lo, hi float64) float64 {
	return lo + rng.Float64()*(hi-lo)
}

func clip(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func round(v float64, places int) float64 {
	scale := math.Pow(10, float64(places))
	return math.Round(v*scale) / scale
}
