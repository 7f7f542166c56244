// Package template loads board templates from CUE files.
//
// A template declares a board's shape and policy: its columns, the content
// length limit, per-user card and reaction quotas, and whether the board
// starts closed. Templates are configuration, not code; the CUE layer
// validates structure and the compiler here validates semantics (unique
// column ids, non-negative quotas).
//
// Loading supports two modes: fail-fast for interactive use and collect-all
// for validation tooling that wants to report every problem at once.
package template
