package board

import "github.com/roach88/retroloop/internal/card"

// LinkDenial identifies why a proposed link is illegal.
// DenialNone means the link is allowed.
type LinkDenial string

const (
	DenialNone             LinkDenial = ""
	DenialNotFound         LinkDenial = "NOT_FOUND"
	DenialWrongKind        LinkDenial = "WRONG_KIND"
	DenialCycle            LinkDenial = "WOULD_CREATE_CYCLE"
	DenialDepthExceeded    LinkDenial = "DEPTH_EXCEEDED"
	DenialChildHasParent   LinkDenial = "ALREADY_HAS_PARENT"
	DenialChildHasChildren LinkDenial = "CHILD_HAS_CHILDREN"
)

// HasParent reports whether the referenced card currently has a parent.
// Unknown ids report false.
func (r *Repository) HasParent(id string) bool {
	c, ok := r.cards[id]
	return ok && c.HasParent()
}

// hasChildren reports whether any card names id as its parent.
func (r *Repository) hasChildren(id string) bool {
	for _, c := range r.cards {
		if c.ParentCardID == id {
			return true
		}
	}
	return false
}

// WouldCreateCycle reports whether making childID a child of parentID would
// create a path from parentID back to childID.
//
// The walk follows the ancestor chain from parentID generically rather than
// assuming the current depth cap of 1, so the check stays correct if depth
// limits change. With depth <= 1 it only ever detects the self-link case.
func (r *Repository) WouldCreateCycle(parentID, childID string) bool {
	if parentID == childID {
		return true
	}
	visited := make(map[string]bool)
	current := parentID
	for current != "" && !visited[current] {
		if current == childID {
			return true
		}
		visited[current] = true
		c, ok := r.cards[current]
		if !ok {
			return false
		}
		current = c.ParentCardID
	}
	return false
}

// CheckParentChild decides whether parentID may become the parent of childID.
//
// Legal only when: both cards exist, both are feedback kind, the edge would
// not create a cycle, the child has no parent, the child has no children of
// its own, and the parent has no parent. The last three enforce depth <= 1
// from both ends of the proposed edge.
func (r *Repository) CheckParentChild(parentID, childID string) LinkDenial {
	parent, ok := r.cards[parentID]
	if !ok {
		return DenialNotFound
	}
	child, ok := r.cards[childID]
	if !ok {
		return DenialNotFound
	}
	if parent.Kind != card.KindFeedback || child.Kind != card.KindFeedback {
		return DenialWrongKind
	}
	if r.WouldCreateCycle(parentID, childID) {
		return DenialCycle
	}
	if child.HasParent() {
		return DenialChildHasParent
	}
	if r.hasChildren(childID) {
		return DenialChildHasChildren
	}
	if parent.HasParent() {
		return DenialDepthExceeded
	}
	return DenialNone
}

// CanLinkParentChild reports whether the proposed parent/child edge is legal.
func (r *Repository) CanLinkParentChild(parentID, childID string) bool {
	return r.CheckParentChild(parentID, childID) == DenialNone
}

// CanLinkActionFeedback reports whether the proposed action/feedback link is
// legal.
func (r *Repository) CanLinkActionFeedback(sourceID, targetID string) bool {
	return r.CheckActionFeedback(sourceID, targetID) == DenialNone
}

// CheckActionFeedback decides whether the action card sourceID may link to
// the feedback card targetID. This relation is not a tree edge, so it has no
// depth or cycle constraint.
func (r *Repository) CheckActionFeedback(sourceID, targetID string) LinkDenial {
	source, ok := r.cards[sourceID]
	if !ok {
		return DenialNotFound
	}
	target, ok := r.cards[targetID]
	if !ok {
		return DenialNotFound
	}
	if source.Kind != card.KindAction || target.Kind != card.KindFeedback {
		return DenialWrongKind
	}
	return DenialNone
}
