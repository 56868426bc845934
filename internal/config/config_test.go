package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("SESSION_TTL", "")
	t.Setenv("CLASSIFIER_THRESHOLD", "")

	cfg := Load()

	assert.Equal(t, 10*time.Minute, cfg.Session.TTL)
	assert.Equal(t, 0.7, cfg.Classifier.Threshold)
	assert.Equal(t, 5*time.Minute, cfg.Escalation.Cooldown)
	assert.False(t, cfg.Escalation.StrictDedupe)
	assert.Equal(t, "SUPPORT_TICKETS", cfg.App.TicketStream)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("SESSION_TTL", "600")
	t.Setenv("HISTORY_TTL", "2h")
	t.Setenv("CLASSIFIER_THRESHOLD", "0.55")
	t.Setenv("ESCALATION_STRICT_DEDUPE", "true")
	t.Setenv("PUBLISH_WORKERS", "not-a-number")

	cfg := Load()

	assert.Equal(t, 10*time.Minute, cfg.Session.TTL)
	assert.Equal(t, 2*time.Hour, cfg.Session.HistoryTTL)
	assert.Equal(t, 0.55, cfg.Classifier.Threshold)
	assert.True(t, cfg.Escalation.StrictDedupe)
	assert.Equal(t, 4, cfg.Escalation.PublishWorkers)
}
