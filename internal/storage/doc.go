// Package storage persists the last observed notice snapshot so a restart
// can tell which notices were already announced.
//
// Two drivers are available:
//   - "file": a single JSON document {"hash": ..., "notices": [...]},
//     replaced atomically (temp file + rename)
//   - "sqlite": one row in a SQLite database, upserted in a transaction
package storage
