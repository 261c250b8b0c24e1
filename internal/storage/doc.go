// Package storage persists users and habits.
//
// Drivers:
//   - "sqlite": single-file database (modernc.org/sqlite, pure Go)
//   - "postgres": PostgreSQL via lib/pq
//   - "file": a JSON snapshot rewritten atomically on each change
//
// The reminder scheduler consumes only ListAll and Save. Save writes back the
// time of day alone, so edits made during a pass survive it; user-facing writes
// go through CreateHabit/UpdateHabit, which validate first.
package storage
