// Package logx configures timervault's structured logging.
//
// This repo uses a small wrapper (logx.Logger) on top of zerolog to keep:
//   - Console output readable (short timestamp + short caller)
//   - File output JSON-structured
//   - Log level/output swappable at runtime via Service.Apply (config hot reload)
package logx
