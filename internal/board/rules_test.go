package board

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/retroloop/internal/card"
)

func actionCard(id string) card.Card {
	return card.Card{
		ID:       id,
		BoardID:  "board-1",
		ColumnID: "actions",
		Content:  "do " + id,
		Kind:     card.KindAction,
	}
}

func TestRepository_HasParent(t *testing.T) {
	r := NewRepository()
	r.Upsert(feedbackCard("parent", 0))

	child := feedbackCard("child", 0)
	child.ParentCardID = "parent"
	r.Upsert(child)

	assert.True(t, r.HasParent("child"))
	assert.False(t, r.HasParent("parent"))
	assert.False(t, r.HasParent("unknown"))
}

func TestRepository_WouldCreateCycle_SelfLink(t *testing.T) {
	r := NewRepository()
	r.Upsert(feedbackCard("a", 0))

	assert.True(t, r.WouldCreateCycle("a", "a"))
}

func TestRepository_WouldCreateCycle_AncestorChain(t *testing.T) {
	// Build a deeper chain than the engine ever allows, to verify the walk
	// is generic: c -> b -> a, then linking a under c would close the loop.
	r := NewRepository()
	r.Upsert(feedbackCard("a", 0))

	b := feedbackCard("b", 0)
	b.ParentCardID = "a"
	r.Upsert(b)

	c := feedbackCard("c", 0)
	c.ParentCardID = "b"
	r.Upsert(c)

	assert.True(t, r.WouldCreateCycle("c", "a"))
	assert.True(t, r.WouldCreateCycle("b", "a"))
	assert.False(t, r.WouldCreateCycle("a", "d"))
}

func TestRepository_WouldCreateCycle_UnknownAncestor(t *testing.T) {
	r := NewRepository()
	orphan := feedbackCard("orphan", 0)
	orphan.ParentCardID = "vanished"
	r.Upsert(orphan)

	assert.False(t, r.WouldCreateCycle("orphan", "other"))
}

func TestRepository_CheckParentChild(t *testing.T) {
	r := NewRepository()
	r.Upsert(feedbackCard("parent", 0))
	r.Upsert(feedbackCard("child", 0))
	r.Upsert(feedbackCard("other", 0))
	r.Upsert(actionCard("task"))

	adopted := feedbackCard("adopted", 0)
	adopted.ParentCardID = "parent"
	r.Upsert(adopted)

	tests := []struct {
		name     string
		parentID string
		childID  string
		want     LinkDenial
	}{
		{"legal link", "parent", "child", DenialNone},
		{"missing parent", "ghost", "child", DenialNotFound},
		{"missing child", "parent", "ghost", DenialNotFound},
		{"action as parent", "task", "child", DenialWrongKind},
		{"action as child", "parent", "task", DenialWrongKind},
		{"self link", "child", "child", DenialCycle},
		{"child already has parent", "other", "adopted", DenialChildHasParent},
		{"child has children", "other", "parent", DenialChildHasChildren},
		{"parent already a child", "adopted", "child", DenialDepthExceeded},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, r.CheckParentChild(tt.parentID, tt.childID))
		})
	}
}

func TestRepository_CanLinkParentChild(t *testing.T) {
	r := NewRepository()
	r.Upsert(feedbackCard("a", 0))
	r.Upsert(feedbackCard("b", 0))

	assert.True(t, r.CanLinkParentChild("a", "b"))
	assert.False(t, r.CanLinkParentChild("a", "a"))
}

func TestRepository_CheckParentChild_ReverseLinkRejected(t *testing.T) {
	// Link B under A, then attempt to link A under B.
	r := NewRepository()
	r.Upsert(feedbackCard("a", 0))

	b := feedbackCard("b", 0)
	b.ParentCardID = "a"
	r.Upsert(b)

	denial := r.CheckParentChild("b", "a")
	assert.NotEqual(t, DenialNone, denial)
}

func TestRepository_CheckActionFeedback(t *testing.T) {
	r := NewRepository()
	r.Upsert(feedbackCard("fb", 0))
	r.Upsert(actionCard("task"))

	assert.Equal(t, DenialNone, r.CheckActionFeedback("task", "fb"))
	assert.Equal(t, DenialWrongKind, r.CheckActionFeedback("fb", "fb"))
	assert.Equal(t, DenialWrongKind, r.CheckActionFeedback("task", "task"))
	assert.Equal(t, DenialNotFound, r.CheckActionFeedback("ghost", "fb"))
	assert.Equal(t, DenialNotFound, r.CheckActionFeedback("task", "ghost"))
}
