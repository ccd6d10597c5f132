package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/school-results/internal/domain/grading"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("APP_ENV", "development")
	t.Setenv("ENV_FILE", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.True(t, cfg.IsDevelopment())
	assert.Equal(t, 8080, cfg.HTTP.Port)
	assert.Equal(t, time.Minute, cfg.Ranking.SweepInterval)
	assert.Equal(t, 5*time.Minute, cfg.Redis.StatsTTL)
	assert.Equal(t, []string{"A", "B", "C", "D", "E", "F"}, cfg.Grading.Table.Grades())
	assert.True(t, cfg.Features.RerankOnWrite())
	assert.True(t, cfg.Features.RecomputeOnPublish())
}

func TestLoad_EnvFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.env")
	require.NoError(t, os.WriteFile(path, []byte("HTTP_PORT=9191\nRANKING_SWEEP_INTERVAL=30s\n"), 0o600))

	t.Setenv("APP_ENV", "development")
	t.Setenv("ENV_FILE", path)
	// Registered so t restores the environment after godotenv sets them.
	t.Setenv("HTTP_PORT", "")
	t.Setenv("RANKING_SWEEP_INTERVAL", "")
	require.NoError(t, os.Unsetenv("HTTP_PORT"))
	require.NoError(t, os.Unsetenv("RANKING_SWEEP_INTERVAL"))

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 9191, cfg.HTTP.Port)
	assert.Equal(t, 30*time.Second, cfg.Ranking.SweepInterval)
}

func TestLoad_MissingEnvFile(t *testing.T) {
	t.Setenv("ENV_FILE", filepath.Join(t.TempDir(), "absent.env"))

	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_RedisDisabledTurnsOffIndex(t *testing.T) {
	t.Setenv("APP_ENV", "development")
	t.Setenv("ENV_FILE", "")
	t.Setenv("REDIS_DISABLED", "true")

	cfg, err := Load()
	require.NoError(t, err)
	assert.False(t, cfg.Features.CohortIndex())
	assert.False(t, cfg.Features.StatsCache())
}

func TestValidate_CollectsErrors(t *testing.T) {
	cfg := &Config{
		App:           AppConfig{Environment: EnvProduction},
		HTTP:          HTTPConfig{Port: 0},
		Ranking:       RankingConfig{SweepInterval: time.Millisecond},
		Database:      DatabaseConfig{ConnectAttempts: 1},
		Observability: ObservabilityConfig{LogLevel: "verbose"},
	}

	err := cfg.Validate()
	require.Error(t, err)
	for _, want := range []string{
		"DATABASE_URL",
		"HTTP_PORT",
		"RANKING_SWEEP_INTERVAL",
		"RANKING_SWEEP_BATCH",
		"LOG_LEVEL",
		"grade band table",
	} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestFeatureFlags_Environment(t *testing.T) {
	t.Setenv("FEATURE_RERANK_ON_WRITE", "false")
	t.Setenv("FEATURE_RECOMPUTE_ON_PUBLISH", "not-a-bool")

	ff := LoadFeatureFlags()
	assert.False(t, ff.RerankOnWrite())
	assert.True(t, ff.RecomputeOnPublish(), "unparsable values keep the default")
	assert.False(t, ff.IsEnabled("unknown"))

	require.NoError(t, ff.EnableFeature(FeatureRerankOnWrite))
	assert.True(t, ff.RerankOnWrite())
	assert.ErrorIs(t, ff.DisableFeature("unknown"), ErrFeatureNotFound)
	assert.Len(t, ff.GetAllFeatures(), 4)
}

func TestParseGradeBands(t *testing.T) {
	t.Run("valid table", func(t *testing.T) {
		table, err := ParseGradeBands([]byte(`
bands:
  - {min: 50, max: 100, grade: P, remark: Pass}
  - {min: 0, max: 49, grade: F, remark: Fail}
`))
		require.NoError(t, err)
		assert.Equal(t, grading.Classification{Grade: "P", Remark: "Pass"}, table.Classify(50))
		assert.Equal(t, "F", table.Classify(49.5).Grade)
	})

	t.Run("overlap rejected", func(t *testing.T) {
		_, err := ParseGradeBands([]byte(`
bands:
  - {min: 40, max: 100, grade: P}
  - {min: 0, max: 45, grade: F}
`))
		assert.Error(t, err)
	})

	t.Run("unknown key rejected", func(t *testing.T) {
		_, err := ParseGradeBands([]byte(`
bands:
  - {mn: 0, max: 100, grade: A}
`))
		assert.Error(t, err)
	})
}

func TestLoadGradeBands_EmptyPathUsesDefault(t *testing.T) {
	table, err := LoadGradeBands("")
	require.NoError(t, err)
	assert.Len(t, table.Bands(), 6)
}
