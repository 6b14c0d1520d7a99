package logx

import "log/slog"

// ModuleLogger derives a named component logger.
func ModuleLogger(name string, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = slog.Default()
	}
	if name == "" {
		return logger
	}
	return logger.With(slog.String("module", name))
}
