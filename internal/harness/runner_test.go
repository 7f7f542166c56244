package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func boolPtr(b bool) *bool { return &b }

func TestRun_PassingFlow(t *testing.T) {
	scenario := &Scenario{
		Name:        "inline",
		Description: "create then react",
		Flow: []FlowStep{
			{Op: "create", Args: map[string]string{"column": "c", "content": "hello"}},
			{Op: "react", Args: map[string]string{"card": "srv-1"}},
		},
	}

	res, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, res.Pass, "errors: %v", res.Errors)
	assert.Contains(t, res.Calls, "create")
	assert.Contains(t, res.Calls, "react")
	assert.Contains(t, string(res.Snapshot), `"direct_reaction_count":1`)
}

func TestRun_ExpectedErrorMatches(t *testing.T) {
	scenario := &Scenario{
		Name:        "inline",
		Description: "quota denial",
		Setup:       []SetupStep{{CardQuota: boolPtr(false)}},
		Flow: []FlowStep{
			{
				Op:     "create",
				Args:   map[string]string{"column": "c", "content": "x"},
				Expect: &ExpectClause{Error: "QUOTA_EXCEEDED"},
			},
		},
	}

	res, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, res.Pass, "errors: %v", res.Errors)
}

func TestRun_UnexpectedErrorFails(t *testing.T) {
	scenario := &Scenario{
		Name:        "inline",
		Description: "reacting to a missing card",
		Flow: []FlowStep{
			{Op: "react", Args: map[string]string{"card": "ghost"}},
		},
	}

	res, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, res.Pass)
	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0], "unexpected error")
}

func TestRun_WrongErrorCodeFails(t *testing.T) {
	scenario := &Scenario{
		Name:        "inline",
		Description: "wrong code reported",
		Flow: []FlowStep{
			{
				Op:     "react",
				Args:   map[string]string{"card": "ghost"},
				Expect: &ExpectClause{Error: "QUOTA_EXCEEDED"},
			},
		},
	}

	res, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, res.Pass)
	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0], "NOT_FOUND")
}

func TestRun_ExpectedSuccessButErrorExpectedClause(t *testing.T) {
	scenario := &Scenario{
		Name:        "inline",
		Description: "expecting an error that never happens",
		Flow: []FlowStep{
			{
				Op:     "create",
				Args:   map[string]string{"column": "c", "content": "fine"},
				Expect: &ExpectClause{Error: "VALIDATION"},
			},
		},
	}

	res, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, res.Pass)
	assert.Contains(t, res.Errors[0], "got success")
}

func TestRun_FailNextInjection(t *testing.T) {
	scenario := &Scenario{
		Name:        "inline",
		Description: "injected remote failure rolls back",
		Setup: []SetupStep{
			{SeedCard: &CardSpec{ID: "a", Column: "c", Content: "keep", Kind: "feedback"}},
		},
		Flow: []FlowStep{
			{
				Op:       "update",
				FailNext: &FailNext{Op: "update", Message: "boom"},
				Args:     map[string]string{"card": "a", "content": "lost"},
				Expect:   &ExpectClause{Error: "REMOTE_FAILURE"},
			},
		},
	}

	res, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, res.Pass, "errors: %v", res.Errors)
	assert.Contains(t, string(res.Snapshot), `"content":"keep"`)
}

func TestRun_SeededStateVisibleToFlow(t *testing.T) {
	scenario := &Scenario{
		Name:        "inline",
		Description: "seeds reach both server and mirror",
		Setup: []SetupStep{
			{SeedCard: &CardSpec{ID: "p", Column: "c", Content: "P", Kind: "feedback"}},
			{SeedCard: &CardSpec{ID: "q", Column: "c", Content: "Q", Kind: "feedback"}},
		},
		Flow: []FlowStep{
			{Op: "link", Args: map[string]string{"source": "p", "target": "q"}},
		},
	}

	res, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, res.Pass, "errors: %v", res.Errors)
	assert.Contains(t, string(res.Snapshot), `"parent_card_id":"p"`)
}
