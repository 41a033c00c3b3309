package config

import (
	"path/filepath"
	"testing"
)

func TestRegistryRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "strategies.yaml")
	if err := SaveStrategies(path, map[string]Strategy{
		"swing": {TPPercent: 2, SLPercent: 1, Leverage: 10, Adaptive: Adaptive{ScoreMin: 0.3}},
	}); err != nil {
		t.Fatalf("seed strategies: %v", err)
	}

	registry, err := NewRegistry(path)
	if err != nil {
		t.Fatalf("NewRegistry returned error: %v", err)
	}
	s, ok := registry.Get("swing")
	if !ok || s.Name != "swing" || s.Adaptive.ScoreMin != 0.3 {
		t.Fatalf("loaded strategy wrong: %+v", s)
	}

	if !registry.SetScoreMin("swing", 0.4) {
		t.Fatalf("SetScoreMin failed for known strategy")
	}
	if registry.SetScoreMin("ghost", 0.4) {
		t.Fatalf("SetScoreMin should fail for unknown strategy")
	}
	if err := registry.Save(); err != nil {
		t.Fatalf("Save returned error: %v", err)
	}

	reloaded, err := NewRegistry(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	s, _ = reloaded.Get("swing")
	if s.Adaptive.ScoreMin != 0.4 {
		t.Fatalf("threshold change not persisted: %v", s.Adaptive.ScoreMin)
	}
}

func TestRegistryAllReturnsCopy(t *testing.T) {
	registry := NewRegistryFromMap(map[string]Strategy{"swing": {TPPercent: 2}})
	all := registry.All()
	entry := all["swing"]
	entry.TPPercent = 99
	all["swing"] = entry

	s, _ := registry.Get("swing")
	if s.TPPercent != 2 {
		t.Fatalf("All must not expose internal state, got %v", s.TPPercent)
	}
}
