// Package logx is tgrelay's structured logging layer.
//
// A thin value-type wrapper (logx.Logger) over zerolog:
//   - console output with short timestamps and file:line callers
//   - optional JSON file sink
//   - optional Telegram sink for warnings (min level + rate limit)
//
// Loggers derived from a Service follow Service.Apply, so the log level and
// sinks can change at runtime without re-plumbing components.
package logx
