package template

import "fmt"

// Column is one lane on a board.
type Column struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// BoardTemplate is a board's declared shape and policy.
// Quotas of zero mean unlimited; a zero MaxContentLength defers to the
// server default.
type BoardTemplate struct {
	// Key is the template's label in the CUE file, e.g. "retro" for
	// template: retro: {...}.
	Key string `json:"key"`

	Name                 string   `json:"name"`
	Columns              []Column `json:"columns"`
	MaxContentLength     int      `json:"max_content_length"`
	CardQuotaPerUser     int      `json:"card_quota"`
	ReactionQuotaPerUser int      `json:"reaction_quota"`
	Closed               bool     `json:"closed"`
}

// HasColumn reports whether the template declares the given column id.
func (t BoardTemplate) HasColumn(id string) bool {
	for _, col := range t.Columns {
		if col.ID == id {
			return true
		}
	}
	return false
}

// Validate checks semantic constraints the CUE layer cannot express.
func (t BoardTemplate) Validate() error {
	if t.Name == "" {
		return fmt.Errorf("template %s: name is required", t.Key)
	}
	if len(t.Columns) == 0 {
		return fmt.Errorf("template %s: at least one column is required", t.Key)
	}
	seen := make(map[string]bool, len(t.Columns))
	for _, col := range t.Columns {
		if col.ID == "" {
			return fmt.Errorf("template %s: column id is required", t.Key)
		}
		if seen[col.ID] {
			return fmt.Errorf("template %s: duplicate column id %q", t.Key, col.ID)
		}
		seen[col.ID] = true
	}
	if t.MaxContentLength < 0 || t.CardQuotaPerUser < 0 || t.ReactionQuotaPerUser < 0 {
		return fmt.Errorf("template %s: limits must be non-negative", t.Key)
	}
	return nil
}

// Default returns the built-in retrospective template used when no CUE
// templates are provided.
func Default() BoardTemplate {
	return BoardTemplate{
		Key:  "retro",
		Name: "Sprint Retrospective",
		Columns: []Column{
			{ID: "went-well", Title: "What went well"},
			{ID: "to-improve", Title: "What to improve"},
			{ID: "action-items", Title: "Action items"},
		},
		MaxContentLength:     1000,
		ReactionQuotaPerUser: 5,
	}
}
