// Package logging provides structured logging for the prism runtime.
//
// This package wraps Go's log/slog to provide JSON-formatted logs with
// persistent context attributes. Per-task failures in the runtime (a panicking
// subscriber, a renderer that errors, a consumer that drops off the network)
// are recovered locally and only ever surface here, so every log line carries
// enough identity to find the failing component.
//
// # Thread Safety
//
// All types in this package are safe for concurrent use. Child loggers
// created via With* methods share the underlying writer.
//
// # Basic Usage
//
//	logger, err := logging.NewLogger("/var/log/prism", "INFO")
//	if err != nil {
//	    return err
//	}
//	defer logger.Close()
//
//	pipeLog := logger.WithComponent("pipeline")
//	pipeLog.WithRenderer("plasma").Warn("renderer declined", "error", err)
//
// Output:
//
//	{"time":"...","level":"WARN","msg":"renderer declined","component":"pipeline","renderer":"plasma","error":"..."}
//
// Use [NopLogger] in tests and wherever logging is disabled.
package logging
