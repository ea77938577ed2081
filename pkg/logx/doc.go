// Package logx configures noticebot's structured logging.
//
// This repo uses a small wrapper (logx.Logger) on top of zerolog to keep:
//   - Console output readable (short timestamp + short caller)
//   - File output JSON-structured
//   - An optional alert sink that forwards warnings/errors to an operator chat
//     (min-level + rate limiting)
package logx
