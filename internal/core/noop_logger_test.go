package core

import "testing"

func TestNoopLoggerDiscards(_ *testing.T) {
	logger := noopLogger{}
	logger.Debug("debug", "key", "value")
	logger.Info("info", "key", "value")
	logger.Warn("warn", "key", "value")
	logger.Error("error", "key", "value")
}
