// Package server implements the SensorRoom HTTP API and sensor storage.
//
// Owns:
//   - Sensor persistence (Store, SQLiteStore, MemoryStore), migrations and seeding
//   - The request pipeline: correlation ids, bearer gate, routing, handlers
//   - Structured request logging and Prometheus metrics
//
// Does not own:
//   - Wire types and validation rules (internal/shared)
//   - Configuration loading (internal/shared)
//
// Invariants:
//   - Sensor ids follow sensor-NNN and are never reused, even after delete
//   - Every response carries X-Correlation-ID; each request logs exactly one completion record
//   - Requests rejected by the gate never reach the Store
//   - Handler and gate errors map to status codes in writeError only
package server
