package config

import (
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// FeatureFlags holds process-wide toggles for optional behavior of the
// result engine. Flags are read once from the environment and may be
// flipped at runtime (tests, admin tooling).
type FeatureFlags struct {
	mu       sync.RWMutex
	features map[string]*Feature
}

// Feature represents a single feature flag.
type Feature struct {
	Name        string
	Description string
	Enabled     bool
}

// Predefined feature flag names.
const (
	// Re-rank the cohort right after every create/update commit.
	FeatureRerankOnWrite = "rerank_on_write"

	// Maintain the Redis cohort index and serve live positions from it.
	FeatureCohortIndex = "cohort_index"

	// Recompute the position against a fresh snapshot before publishing.
	FeatureRecomputeOnPublish = "recompute_on_publish"

	// Cache class statistics in Redis.
	FeatureStatsCache = "stats_cache"
)

// LoadFeatureFlags loads feature flags from environment variables.
func LoadFeatureFlags() *FeatureFlags {
	ff := &FeatureFlags{features: make(map[string]*Feature)}

	// Initialize all features with defaults
	ff.initializeDefaults()

	// Load overrides from environment
	ff.loadFromEnvironment()

	return ff
}

func (ff *FeatureFlags) initializeDefaults() {
	ff.features[FeatureRerankOnWrite] = &Feature{
		Name:        FeatureRerankOnWrite,
		Description: "Sweep cohort positions after each write",
		Enabled:     true,
	}

	ff.features[FeatureCohortIndex] = &Feature{
		Name:        FeatureCohortIndex,
		Description: "Redis sorted-set index of cohort averages",
		Enabled:     true,
	}

	ff.features[FeatureRecomputeOnPublish] = &Feature{
		Name:        FeatureRecomputeOnPublish,
		Description: "Recompute position before a result is frozen",
		Enabled:     true,
	}

	ff.features[FeatureStatsCache] = &Feature{
		Name:        FeatureStatsCache,
		Description: "Cache class statistics in Redis",
		Enabled:     true,
	}
}

// loadFromEnvironment loads feature flag overrides from env vars.
// Format: FEATURE_<NAME>=true|false
// Example: FEATURE_RERANK_ON_WRITE=false
func (ff *FeatureFlags) loadFromEnvironment() {
	for name, feature := range ff.features {
		if val := os.Getenv(featureNameToEnvKey(name)); val != "" {
			if b, err := strconv.ParseBool(val); err == nil {
				feature.Enabled = b
			}
		}
	}
}

// featureNameToEnvKey converts feature name to environment variable key.
// "rerank_on_write" -> "FEATURE_RERANK_ON_WRITE"
func featureNameToEnvKey(name string) string {
	key := strings.ToUpper(name)
	key = strings.ReplaceAll(key, ".", "_")
	return "FEATURE_" + key
}

// IsEnabled reports whether a feature is on. Unknown names are off.
func (ff *FeatureFlags) IsEnabled(featureName string) bool {
	ff.mu.RLock()
	defer ff.mu.RUnlock()

	feature, ok := ff.features[featureName]
	return ok && feature.Enabled
}

func (ff *FeatureFlags) set(featureName string, enabled bool) error {
	ff.mu.Lock()
	defer ff.mu.Unlock()

	feature, ok := ff.features[featureName]
	if !ok {
		return ErrFeatureNotFound
	}
	feature.Enabled = enabled
	return nil
}

// EnableFeature turns a feature on.
func (ff *FeatureFlags) EnableFeature(featureName string) error {
	return ff.set(featureName, true)
}

// DisableFeature turns a feature off.
func (ff *FeatureFlags) DisableFeature(featureName string) error {
	return ff.set(featureName, false)
}

// GetAllFeatures returns a copy of all feature configurations sorted by
// name.
func (ff *FeatureFlags) GetAllFeatures() []Feature {
	ff.mu.RLock()
	defer ff.mu.RUnlock()

	out := make([]Feature, 0, len(ff.features))
	for _, f := range ff.features {
		out = append(out, *f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// --- Convenience methods for common checks ---

// RerankOnWrite reports whether writes sweep their cohort immediately.
func (ff *FeatureFlags) RerankOnWrite() bool { return ff.IsEnabled(FeatureRerankOnWrite) }

// CohortIndex reports whether the Redis cohort index is maintained.
func (ff *FeatureFlags) CohortIndex() bool { return ff.IsEnabled(FeatureCohortIndex) }

// RecomputeOnPublish reports whether publish refreshes the position.
func (ff *FeatureFlags) RecomputeOnPublish() bool { return ff.IsEnabled(FeatureRecomputeOnPublish) }

// StatsCache reports whether class statistics are cached.
func (ff *FeatureFlags) StatsCache() bool { return ff.IsEnabled(FeatureStatsCache) }

// --- Errors ---

var (
	ErrFeatureNotFound = &FeatureFlagError{Message: "feature not found"}
)

// FeatureFlagError represents a feature flag error.
type FeatureFlagError struct {
	Message string
}

func (e *FeatureFlagError) Error() string {
	return e.Message
}
