package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	chdir(t, t.TempDir())
	for _, key := range []string{"ACTIVITIES_CSV", "WEEKS_SCRAPED_COLUMN", "KAFKA_BROKERS", "API_MAX_ACTIVITIES", "SHUTDOWN_GRACE_PERIOD"} {
		t.Setenv(key, "")
	}

	cfg := Load()
	require.Equal(t, "data/activities.csv", cfg.ActivitiesPath)
	require.Equal(t, "2024 Weeks Scraped", cfg.WeeksScrapedColumn)
	require.Empty(t, cfg.KafkaBrokers)
	require.Equal(t, "ingestion_events", cfg.IngestionTopic)
	require.Equal(t, 500, cfg.MaxActivities)
	require.Equal(t, 10*time.Second, cfg.ShutdownGracePeriod)
}

func TestLoadReadsEnvironment(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("ACTIVITIES_CSV", "/srv/data/acts.csv")
	t.Setenv("KAFKA_BROKERS", " kafka-1:9092, ,kafka-2:9092 ")
	t.Setenv("API_MAX_ACTIVITIES", "not-a-number")
	t.Setenv("SHUTDOWN_GRACE_PERIOD", "3s")

	cfg := Load()
	require.Equal(t, "/srv/data/acts.csv", cfg.ActivitiesPath)
	require.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.KafkaBrokers)
	require.Equal(t, 500, cfg.MaxActivities)
	require.Equal(t, 3*time.Second, cfg.ShutdownGracePeriod)
}

func TestLoadHonoursDotEnvWithoutOverridingEnvironment(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"),
		[]byte("METADATA_CSV=/env/meta.csv\nINGESTION_TOPIC=from_dotenv\n"), 0o644))
	t.Setenv("INGESTION_TOPIC", "from_env")
	t.Setenv("METADATA_CSV", "")
	// t.Setenv restores the original value on cleanup; unset it so godotenv may fill it.
	require.NoError(t, os.Unsetenv("METADATA_CSV"))

	cfg := Load()
	require.Equal(t, "/env/meta.csv", cfg.MetadataPath)
	require.Equal(t, "from_env", cfg.IngestionTopic)
}

// chdir mirrors testing.T.Chdir (Go 1.24+) for older toolchains.
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(prev) })
}
