// Package logx provides structured logging for chirpd.
//
// It wraps zerolog behind a small Logger value so call sites don't depend
// on zerolog directly, and a Service that owns the output sinks (console,
// rotating file) and can swap them at runtime via Apply().
package logx
