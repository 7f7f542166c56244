package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/retroloop/internal/card"
	"github.com/roach88/retroloop/internal/remote"
)

// Scenario defines a conformance test scenario.
// Scenarios validate engine behavior by executing a flow of operations and
// comparing the final mirror state against a golden snapshot.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Board is the board id the coordinator operates on.
	// Defaults to "board-1".
	Board string `yaml:"board,omitempty"`

	// Setup seeds server and mirror state before the flow runs.
	Setup []SetupStep `yaml:"setup,omitempty"`

	// Flow contains the operations to execute, in order.
	Flow []FlowStep `yaml:"flow"`
}

// SetupStep establishes initial state. Exactly one field should be set.
type SetupStep struct {
	// SeedCard installs a card in both the remote's authoritative state and
	// the local mirror, as if it existed before the client connected.
	SeedCard *CardSpec `yaml:"seed_card,omitempty"`

	// CardQuota scripts the card-creation quota check result.
	CardQuota *bool `yaml:"card_quota,omitempty"`

	// ReactionQuota scripts the reaction quota check result.
	ReactionQuota *bool `yaml:"reaction_quota,omitempty"`

	// Closed sets the board's lifecycle gate.
	Closed *bool `yaml:"closed,omitempty"`
}

// CardSpec describes a card in scenario YAML.
type CardSpec struct {
	ID        string   `yaml:"id"`
	Column    string   `yaml:"column"`
	Content   string   `yaml:"content"`
	Kind      string   `yaml:"kind"`
	Anonymous bool     `yaml:"anonymous,omitempty"`
	Parent    string   `yaml:"parent,omitempty"`
	Linked    []string `yaml:"linked,omitempty"`
	Reactions int      `yaml:"reactions,omitempty"`
	Seq       int64    `yaml:"seq,omitempty"`
}

func (cs *CardSpec) toCard(boardID string) card.Card {
	c := card.Card{
		ID:                  cs.ID,
		BoardID:             boardID,
		ColumnID:            cs.Column,
		Content:             cs.Content,
		Kind:                card.Kind(cs.Kind),
		IsAnonymous:         cs.Anonymous,
		ParentCardID:        cs.Parent,
		DirectReactionCount: cs.Reactions,
		CreatedSeq:          cs.Seq,
	}
	for _, id := range cs.Linked {
		c.AddLinkedFeedback(id)
	}
	return c
}

// FlowStep is one step in the flow: either an engine operation (Op) or an
// inbound push event (Push).
type FlowStep struct {
	// Op names the engine operation: create, update, delete, move, link,
	// unlink, react, unreact, refetch.
	Op string `yaml:"op,omitempty"`

	// Args carries the operation's arguments. Keys depend on the op:
	// column, content, kind, anonymous, card, source, target, type.
	Args map[string]string `yaml:"args,omitempty"`

	// FailNext arms a one-shot remote failure before the step runs.
	FailNext *FailNext `yaml:"fail_next,omitempty"`

	// Push delivers an inbound event to the reconciliation layer instead of
	// running an operation.
	Push *PushEvent `yaml:"push,omitempty"`

	// Expect specifies the expected outcome. Nil means the step must
	// succeed.
	Expect *ExpectClause `yaml:"expect,omitempty"`
}

// FailNext scripts a one-shot remote failure.
// Op uses the fake remote's operation names (create, update, link, ...).
type FailNext struct {
	Op      string `yaml:"op"`
	Message string `yaml:"message"`
}

// PushEvent describes an inbound push event in scenario YAML.
type PushEvent struct {
	Kind     string    `yaml:"kind"`
	Seq      int64     `yaml:"seq,omitempty"`
	Board    string    `yaml:"board,omitempty"`
	CardID   string    `yaml:"card_id,omitempty"`
	Card     *CardSpec `yaml:"card,omitempty"`
	Source   string    `yaml:"source,omitempty"`
	Target   string    `yaml:"target,omitempty"`
	LinkType string    `yaml:"link_type,omitempty"`
}

func (p *PushEvent) toEvent(defaultBoard string) remote.Event {
	boardID := p.Board
	if boardID == "" {
		boardID = defaultBoard
	}
	ev := remote.Event{
		Kind:     remote.EventKind(p.Kind),
		BoardID:  boardID,
		Seq:      p.Seq,
		CardID:   p.CardID,
		SourceID: p.Source,
		TargetID: p.Target,
		LinkType: card.LinkType(p.LinkType),
	}
	if p.Card != nil {
		c := p.Card.toCard(boardID)
		ev.Card = &c
		if ev.CardID == "" {
			ev.CardID = c.ID
		}
	}
	return ev
}

// ExpectClause specifies an expected step outcome.
type ExpectClause struct {
	// Error is the expected engine error code (e.g. "QUOTA_EXCEEDED").
	Error string `yaml:"error"`
}

// knownOps is the set of flow operations the runner dispatches on.
var knownOps = map[string]bool{
	"create":  true,
	"update":  true,
	"delete":  true,
	"move":    true,
	"link":    true,
	"unlink":  true,
	"react":   true,
	"unreact": true,
	"refetch": true,
}

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed, contains
// unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Strict field validation catches typos like "expects:" vs "expect:".
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Flow) == 0 {
		return fmt.Errorf("flow list is required and must be non-empty")
	}

	for i, step := range s.Setup {
		set := 0
		if step.SeedCard != nil {
			set++
			if step.SeedCard.ID == "" {
				return fmt.Errorf("setup[%d].seed_card: id is required", i)
			}
			if !card.Kind(step.SeedCard.Kind).Valid() {
				return fmt.Errorf("setup[%d].seed_card: unknown kind %q", i, step.SeedCard.Kind)
			}
		}
		if step.CardQuota != nil {
			set++
		}
		if step.ReactionQuota != nil {
			set++
		}
		if step.Closed != nil {
			set++
		}
		if set != 1 {
			return fmt.Errorf("setup[%d]: exactly one of seed_card, card_quota, reaction_quota, closed is required", i)
		}
	}

	for i, step := range s.Flow {
		if step.Op == "" && step.Push == nil {
			return fmt.Errorf("flow[%d]: op or push is required", i)
		}
		if step.Op != "" && step.Push != nil {
			return fmt.Errorf("flow[%d]: op and push are mutually exclusive", i)
		}
		if step.Op != "" && !knownOps[step.Op] {
			return fmt.Errorf("flow[%d]: unknown op %q", i, step.Op)
		}
		if step.Push != nil && step.Push.Kind == "" {
			return fmt.Errorf("flow[%d].push: kind is required", i)
		}
		if step.FailNext != nil && step.FailNext.Op == "" {
			return fmt.Errorf("flow[%d].fail_next: op is required", i)
		}
		if step.Expect != nil && step.Expect.Error == "" {
			return fmt.Errorf("flow[%d].expect: error is required", i)
		}
	}

	return nil
}
