package card

// Aggregate returns the displayed reaction total for a card: its own direct
// reactions plus the direct reactions of each child. For a card without
// children the aggregate equals the direct count.
//
// Aggregate is pure and is always a full recompute from the current children,
// never an incremental delta. Incremental +1/-1 adjustments drift under
// duplicated or reordered reconciliation events; a full recompute from
// authoritative per-card counts self-corrects.
func Aggregate(c Card, children []Card) int {
	total := c.DirectReactionCount
	for _, child := range children {
		total += child.DirectReactionCount
	}
	return total
}
