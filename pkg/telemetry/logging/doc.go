// Package logging builds the service's slog logger.
//
// Records are written as JSON or text. Fields stored in the context with
// WithRequestID, WithUser and WithRunID are added to every record logged
// through the *Context methods:
//
//	logger, _ := logging.New(logging.Config{Level: "info", Format: "json", RedactSecrets: true})
//	ctx = logging.WithRunID(ctx, runID)
//	logger.InfoContext(ctx, "sweep started") // includes run_id
//
// With RedactSecrets, passwords in database DSNs, bearer tokens and
// attributes with sensitive key names are masked.
package logging
