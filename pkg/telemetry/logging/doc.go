// Package logging builds the process slog.Logger with credential and PII
// redaction.
//
// # Usage
//
//	logger, err := logging.New(logging.ConfigFrom(&cfg.Telemetry.Logging))
//	if err != nil {
//	    return err
//	}
//	slog.SetDefault(logger.Slog())
//
//	ctx = logging.WithRequestID(ctx, id)
//	slog.InfoContext(ctx, "calling model") // carries request_id
//
// # Redaction
//
// Redaction runs inside the slog handler, so it covers every call site:
//
//   - values of sensitive keys (authorization, api_key, token, ...) become
//     "[REDACTED]"
//   - "Bearer <token>" inside any string becomes "Bearer [REDACTED]"
//   - sk- style keys become "sk-[REDACTED]"
//   - with RedactPII, email local parts and custom patterns are masked too
//
// RedactHeaders and RedactFields prepare request headers and JSON bodies
// for the request dump.
//
// # Formats
//
// "json" and "text" map to the slog handlers of the same name. "auto" picks
// text when the output is a terminal and JSON otherwise.
package logging
