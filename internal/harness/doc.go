// Package harness executes YAML conformance scenarios against a real
// Coordinator wired to a scripted in-memory remote.
//
// A scenario seeds board state, runs a flow of operations (optionally
// injecting remote failures or inbound push events), asserts expected error
// codes per step, and finally snapshots the mirror as canonical JSON for
// golden-file comparison. Because the remote fake assigns deterministic
// server ids and seqs, two runs of the same scenario always produce
// byte-identical snapshots.
package harness
