// Package logx configures habitbot's structured logging.
//
// It wraps zerolog behind a small Logger value type so components can carry
// fixed fields (typically "comp") and keep logging across config reloads:
//   - Console output for humans (short timestamp + short caller)
//   - File output as JSON lines, rotated by size
//   - Optional Telegram sink for operators (min level + rate limit)
package logx
