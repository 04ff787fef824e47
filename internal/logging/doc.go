// Package logging provides structured logging for ragify.
//
// Logger wraps Zap with context-aware methods that append correlation
// fields (trace_id, span_id, request.id) taken from the context, a custom
// Trace level below Debug, and an encoder that redacts credential fields
// such as api_key or service_role_key before they reach the output.
//
// Usage:
//
//	logger, err := logging.NewLogger(logging.NewDefaultConfig())
//	if err != nil {
//	    return err
//	}
//	defer logger.Sync()
//
//	ctx = logging.WithRequestID(ctx, requestID)
//	logger.Info(ctx, "index rebuilt", zap.Int("chunks", n))
//
// Library packages take a plain *zap.Logger; pass logger.Underlying().
//
// Tests use NewTestLogger, which records entries in memory:
//
//	tl := logging.NewTestLogger()
//	svc := rag.NewService(..., tl.Underlying())
//	tl.AssertLogged(t, zapcore.InfoLevel, "index rebuilt")
package logging
