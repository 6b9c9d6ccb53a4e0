package nutcache

import "log/slog"

// DefaultOptions returns the recommended options for a long-running process:
// pool diagnostics go to slog.Default() instead of being discarded.
func DefaultOptions() []Option {
	return []Option{
		WithLogger(slog.Default()),
	}
}
