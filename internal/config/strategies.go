package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"quantbot-go/internal/trade"
)

// Adaptive groups the two fields the feedback loop owns. Segregated so the
// single-writer discipline is visible in the type.
type Adaptive struct {
	ScoreMin        float64 `yaml:"score_min"`
	MLConfidenceMin float64 `yaml:"ml_confidence_min"`
}

// Strategy is one strategy's configuration. Everything except Adaptive is
// edited externally; the feedback loop only rewrites Adaptive.ScoreMin.
type Strategy struct {
	Name       string            `yaml:"-"`
	Timeframes []trade.Timeframe `yaml:"timeframes"`
	Indicators []string          `yaml:"indicators"`
	TPPercent  float64           `yaml:"tp_percent"`
	SLPercent  float64           `yaml:"sl_percent"`
	Leverage   float64           `yaml:"leverage"`
	Adaptive   Adaptive          `yaml:"adaptive"`
}

// Params converts the strategy's exit settings to a trade parameter bundle.
func (s Strategy) Params() trade.Params {
	return trade.Params{TPPercent: s.TPPercent, SLPercent: s.SLPercent, Leverage: s.Leverage}
}

// LoadStrategies reads the strategy map keyed by name. Each entry's Name
// field is filled from its key. A missing file yields an empty map.
func LoadStrategies(path string) (map[string]Strategy, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return map[string]Strategy{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read strategies: %w", err)
	}
	strategies := make(map[string]Strategy)
	if err := yaml.Unmarshal(data, &strategies); err != nil {
		return nil, fmt.Errorf("decode strategies: %w", err)
	}
	for name, s := range strategies {
		s.Name = name
		if s.Leverage <= 0 {
			s.Leverage = 1
		}
		strategies[name] = s
	}
	return strategies, nil
}

// SaveStrategies persists the strategy map.
func SaveStrategies(path string, strategies map[string]Strategy) error {
	data, err := yaml.Marshal(strategies)
	if err != nil {
		return fmt.Errorf("marshal strategies: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write strategies: %w", err)
	}
	return nil
}

// GlobalPauseKey is the reserved admission-state key for the global pause
// switch. Setting it to false pauses all admission at startup; individual
// strategies use their own names.
const GlobalPauseKey = "__all__"

// LoadAdmissionState reads the per-strategy enabled map. A missing file
// yields an empty map; strategies absent from the map count as enabled.
func LoadAdmissionState(path string) (map[string]bool, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return map[string]bool{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read admission state: %w", err)
	}
	state := make(map[string]bool)
	if err := yaml.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("decode admission state: %w", err)
	}
	return state, nil
}

// SaveAdmissionState persists the per-strategy enabled map.
func SaveAdmissionState(path string, state map[string]bool) error {
	data, err := yaml.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal admission state: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write admission state: %w", err)
	}
	return nil
}
