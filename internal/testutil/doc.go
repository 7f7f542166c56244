// Package testutil provides deterministic helpers for engine and harness
// tests: a fixed-sequence id generator, a resettable logical clock, and a
// scripted in-memory implementation of the remote service boundary with
// call recording and failure injection.
package testutil
