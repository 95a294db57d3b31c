package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnvDefaults(t *testing.T) {
	cfg := FromEnv()

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, 300, cfg.Server.RateLimitPerMinute)
	assert.Equal(t, DefaultCompliance(), cfg.Compliance)
}

func TestComplianceEnvOverrides(t *testing.T) {
	t.Setenv("CREDREADY_OVERRIDE_MAX_HOURS", "24")
	t.Setenv("CREDREADY_ADMIN_ALERT_THRESHOLD_DAYS", "3")
	t.Setenv("CREDREADY_RECOMPUTE_CONCURRENCY", "2")
	t.Setenv("CREDREADY_REMINDER_OFFSETS_DAYS", "14, 7, 0")

	cfg := FromEnv()

	assert.Equal(t, 24, cfg.Compliance.OverrideMaxHours)
	assert.Equal(t, 3, cfg.Compliance.AdminAlertThresholdDays)
	assert.Equal(t, 2, cfg.Compliance.RecomputeConcurrency)
	assert.Equal(t, []int{14, 7, 0}, cfg.Compliance.ReminderOffsetsDays)
}

func TestMalformedEnvFallsBackToDefaults(t *testing.T) {
	t.Setenv("CREDREADY_OVERRIDE_MAX_HOURS", "three days")
	t.Setenv("CREDREADY_REMINDER_OFFSETS_DAYS", "30,soon,0")

	cfg := FromEnv()

	require.Equal(t, DefaultCompliance().OverrideMaxHours, cfg.Compliance.OverrideMaxHours)
	assert.Equal(t, DefaultCompliance().ReminderOffsetsDays, cfg.Compliance.ReminderOffsetsDays)
}

func TestKafkaBrokerListParsing(t *testing.T) {
	t.Setenv("CREDREADY_KAFKA_BROKERS", "broker-1:9092, broker-2:9092,")

	cfg := FromEnv()

	assert.Equal(t, []string{"broker-1:9092", "broker-2:9092"}, cfg.Kafka.Brokers)
}
