package output

import "log/slog"

// noop implements Driver for outputs that are not wired on this board.
type noop struct {
	name   string
	logger *slog.Logger
}

// newNoop creates a new no-op driver.
func newNoop(name string, logger *slog.Logger) *noop {
	return &noop{
		name:   name,
		logger: logger,
	}
}

// Write logs the request but performs no hardware access.
func (n *noop) Write(value uint32) error {
	n.logger.Debug("Output not available (no-op)",
		"output", n.name,
		"value", value)
	return nil
}
