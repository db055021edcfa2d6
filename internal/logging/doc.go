// Package logging provides structured logging for the connectify client.
//
// # Overview
//
// The package wraps Zap with:
//   - A custom Trace level (-2, below Debug) for wire-level request dumps
//   - Console output on stderr (stdout is reserved for command output)
//   - Optional OpenTelemetry log bridge
//   - Automatic context fields (trace_id, user.id, request.id)
//   - Redaction of credentials (passwords, access/refresh tokens, bearer headers)
//   - Level-aware sampling (errors never sampled)
//
// # Usage
//
//	cfg := logging.NewDefaultConfig()
//	logger, err := logging.NewLogger(cfg, nil)
//	if err != nil {
//	    return err
//	}
//	defer logger.Sync()
//
//	ctx = logging.WithUserID(ctx, "42")
//	logger.Info(ctx, "feed page loaded", zap.Int("page", 2))
//
// # Testing
//
// TestLogger records entries in memory:
//
//	tl := logging.NewTestLogger()
//	tl.Info(ctx, "post created", zap.String("post.id", "7"))
//	tl.AssertLogged(t, zapcore.InfoLevel, "post created")
//	tl.AssertNoSecrets(t)
//
// Logger is safe for concurrent use.
package logging
