// Package logger builds *slog.Logger instances with environment defaults,
// context-derived attributes and a shared vocabulary of attribute helpers.
//
//	log := logger.New(
//		logger.WithEnvironment("production", "solshare-worker"),
//		logger.WithContextExtractors(requestid.LoggerExtractor()),
//	)
//	log.InfoContext(ctx, "job applied",
//		logger.JobID(task.ID),
//		logger.Queue("ai-analysis"),
//		logger.Attempt(2),
//	)
//
// Error and Errors return an empty attribute for nil errors, so they can be
// passed unconditionally.
package logger
