package harness

import (
	"context"
	"errors"
	"fmt"

	"github.com/roach88/retroloop/internal/board"
	"github.com/roach88/retroloop/internal/card"
	"github.com/roach88/retroloop/internal/engine"
	"github.com/roach88/retroloop/internal/remote"
	"github.com/roach88/retroloop/internal/testutil"
)

// defaultBoardID is used when a scenario does not name a board.
const defaultBoardID = "board-1"

// provisionalIDBudget bounds how many optimistic creates one scenario may
// perform. The fixed generator panics past this, surfacing scenarios that
// create more cards than they declare.
const provisionalIDBudget = 64

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass indicates overall success: every step matched its expect clause.
	Pass bool `json:"pass"`

	// Errors contains per-step validation failures. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Snapshot is the canonical JSON of the final mirror state, used for
	// golden comparison.
	Snapshot []byte `json:"-"`

	// Calls is the remote call log, in order.
	Calls []string `json:"calls,omitempty"`
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(msg string) {
	r.Errors = append(r.Errors, msg)
	r.Pass = false
}

// Run executes a scenario against a fresh coordinator and scripted remote.
// A non-nil error means the scenario could not be executed at all; step
// mismatches are reported through the result instead.
func Run(scenario *Scenario) (*Result, error) {
	boardID := scenario.Board
	if boardID == "" {
		boardID = defaultBoardID
	}

	svc := testutil.NewFakeRemote(boardID)
	closed := false
	gate := remote.GateFunc(func() bool { return closed })

	ids := make([]string, provisionalIDBudget)
	for i := range ids {
		ids[i] = fmt.Sprintf("prov-%03d", i+1)
	}

	repo := board.NewRepository()
	for i, step := range scenario.Setup {
		switch {
		case step.SeedCard != nil:
			svc.Seed(step.SeedCard.toCard(boardID))
			seeded, ok := svc.ServerCard(step.SeedCard.ID)
			if !ok {
				return nil, fmt.Errorf("setup[%d]: seed card %s not installed", i, step.SeedCard.ID)
			}
			repo.Upsert(seeded)
		case step.CardQuota != nil:
			svc.SetCardQuota(*step.CardQuota)
		case step.ReactionQuota != nil:
			svc.SetReactionQuota(*step.ReactionQuota)
		case step.Closed != nil:
			closed = *step.Closed
		}
	}

	coord := engine.New(boardID, repo, svc, gate,
		engine.WithIDGenerator(testutil.NewFixedIDGenerator(ids...)))

	res := &Result{Pass: true}
	ctx := context.Background()

	for i, step := range scenario.Flow {
		if step.FailNext != nil {
			svc.FailNext(step.FailNext.Op, errors.New(step.FailNext.Message))
		}

		var err error
		if step.Push != nil {
			err = coord.ApplyEvent(ctx, step.Push.toEvent(boardID))
		} else {
			err = runOp(ctx, coord, step)
		}

		checkExpect(res, i, step, err)
	}

	snapshot, err := card.SnapshotCards(coord.Cards())
	if err != nil {
		return nil, fmt.Errorf("snapshot final state: %w", err)
	}
	res.Snapshot = snapshot
	res.Calls = svc.Calls()
	return res, nil
}

// runOp dispatches one engine operation.
func runOp(ctx context.Context, coord *engine.Coordinator, step FlowStep) error {
	args := step.Args
	switch step.Op {
	case "create":
		kind := args["kind"]
		if kind == "" {
			kind = string(card.KindFeedback)
		}
		_, err := coord.CreateCard(ctx, remote.CreateCardRequest{
			ColumnID:    args["column"],
			Content:     args["content"],
			Kind:        card.Kind(kind),
			IsAnonymous: args["anonymous"] == "true",
		})
		return err
	case "update":
		_, err := coord.UpdateContent(ctx, args["card"], args["content"])
		return err
	case "delete":
		return coord.DeleteCard(ctx, args["card"])
	case "move":
		return coord.MoveCard(ctx, args["card"], args["column"])
	case "link":
		return coord.Link(ctx, args["source"], linkRequest(args))
	case "unlink":
		return coord.Unlink(ctx, args["source"], linkRequest(args))
	case "react":
		return coord.React(ctx, args["card"])
	case "unreact":
		return coord.Unreact(ctx, args["card"])
	case "refetch":
		return coord.Refetch(ctx)
	default:
		return fmt.Errorf("unknown op %q", step.Op)
	}
}

func linkRequest(args map[string]string) remote.LinkRequest {
	linkType := card.LinkParentOf
	if args["type"] == string(card.LinkLinkedTo) {
		linkType = card.LinkLinkedTo
	}
	return remote.LinkRequest{TargetID: args["target"], LinkType: linkType}
}

// checkExpect validates one step's outcome against its expect clause.
func checkExpect(res *Result, i int, step FlowStep, err error) {
	if step.Expect == nil {
		if err != nil {
			res.AddError(fmt.Sprintf("flow[%d]: unexpected error: %v", i, err))
		}
		return
	}

	want := engine.ErrorCode(step.Expect.Error)
	if err == nil {
		res.AddError(fmt.Sprintf("flow[%d]: expected error %s, got success", i, want))
		return
	}
	if got := engine.CodeOf(err); got != want {
		res.AddError(fmt.Sprintf("flow[%d]: expected error %s, got %s (%v)", i, want, got, err))
	}
}
