// Package log builds slog loggers that mask sensitive values.
//
// SecureHandler wraps any slog.Handler. Attributes whose key names a
// secret (cookie, session, dailyCount, authorization, password...) are
// replaced by MaskValue, as are values that look like tokens, session IDs
// or sealed cookies, whatever their key.
//
//	logger := log.NewSecureLogger(os.Stderr, verbose)
//	slog.SetDefault(logger)
//	logger.Warn("lookup rejected", "client", ip, "dailyCount", cookie) // dailyCount is masked
package log
