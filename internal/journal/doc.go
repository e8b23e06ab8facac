package journal

// Package journal provides a minimal persistence layer for task run
// history.
//
// It currently supports:
//   - Run record appends (one row per task execution)
//   - Optional SQLite backend with age-based retention
