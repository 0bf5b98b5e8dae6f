package common

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInitLoggerConsoleOnly(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Logging.Output = []string{"stdout"}
	cfg.Logging.Level = "debug"

	logger := InitLogger(cfg)
	assert.NotNil(t, logger)
}

func TestGetLoggerAlwaysAvailable(t *testing.T) {
	assert.NotNil(t, GetLogger())
	assert.NotNil(t, GetLogger())
}
