// Package remote defines the boundary the board engine consumes: the
// persistence/API service, the push-event union delivered by the real-time
// channel, and the board lifecycle gate.
//
// The package holds interfaces and plain typed structs only, abstracted from
// any concrete transport. The reference implementation lives in
// internal/server (SQLite + Redis pub/sub); tests use the scripted fake in
// internal/testutil.
package remote
