// Package card provides the core entity types for the retroloop board engine.
//
// This package contains type definitions and pure functions only. All other
// internal packages import card; card imports nothing internal. This ensures
// the entity layer remains foundational with no circular dependencies.
//
// Key design constraints:
//   - NO float types anywhere - reaction counts are int
//   - All JSON tags use snake_case
//   - Ordering uses logical sequence numbers (seq), never wall-clock timestamps
//   - LinkedFeedbackIDs is kept sorted so serialization is deterministic
package card
