package config

import (
	"sort"
	"strings"
)

// Intensity presets pair a fleet-sized user pool and fast ramp with a
// per-level wall-clock duration. Request overrides beat the preset field by
// field; host always comes from the usual layers.
var intensityLevels = map[string]Override{
	"light":   {DurationSeconds: intPtr(300), UserCount: intPtr(1000), SpawnRate: floatPtr(500)},
	"normal":  {DurationSeconds: intPtr(600), UserCount: intPtr(1000), SpawnRate: floatPtr(500)},
	"medium":  {DurationSeconds: intPtr(1200), UserCount: intPtr(1000), SpawnRate: floatPtr(500)},
	"intense": {DurationSeconds: intPtr(1800), UserCount: intPtr(1000), SpawnRate: floatPtr(500)},
	"OOM":     {DurationSeconds: intPtr(36000), UserCount: intPtr(1000), SpawnRate: floatPtr(500)},
}

// IntensityLevel returns the preset override for a level name. Names are
// exact, including the all-caps OOM soak level.
func IntensityLevel(name string) (*Override, bool) {
	preset, ok := intensityLevels[name]
	if !ok {
		return nil, false
	}
	out := preset
	return &out, true
}

// IntensityLevelNames lists the levels sorted for error messages.
func IntensityLevelNames() string {
	names := make([]string, 0, len(intensityLevels))
	for name := range intensityLevels {
		names = append(names, name)
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}

func intPtr(v int) *int { return &v }

func floatPtr(v float64) *float64 { return &v }
