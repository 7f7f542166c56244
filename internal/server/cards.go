package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/retroloop/internal/board"
	"github.com/roach88/retroloop/internal/card"
)

// loadBoardCards reads the full card set for a board, with derived reaction
// counts and link sets attached, ordered by (created_seq, id). Aggregated
// counts are re-derived through the same repository logic clients use, so
// server reads and client mirrors can never disagree on aggregation.
func (s *Server) loadBoardCards(ctx context.Context, boardID string) ([]card.Card, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT c.id, c.board_id, c.column_id, c.content, c.kind, c.is_anonymous,
		       c.author_hash, c.author_name, c.created_seq, c.parent_card_id,
		       (SELECT COUNT(*) FROM reactions r WHERE r.card_id = c.id)
		FROM cards c
		WHERE c.board_id = ?
		ORDER BY c.created_seq ASC, c.id ASC`, boardID)
	if err != nil {
		return nil, fmt.Errorf("load cards for board %s: %w", boardID, err)
	}
	defer rows.Close()

	byID := make(map[string]*card.Card)
	var order []string
	for rows.Next() {
		var c card.Card
		var parent sql.NullString
		if err := rows.Scan(&c.ID, &c.BoardID, &c.ColumnID, &c.Content, &c.Kind,
			&c.IsAnonymous, &c.AuthorHash, &c.AuthorName, &c.CreatedSeq,
			&parent, &c.DirectReactionCount); err != nil {
			return nil, fmt.Errorf("scan card: %w", err)
		}
		c.ParentCardID = parent.String
		byID[c.ID] = &c
		order = append(order, c.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load cards for board %s: %w", boardID, err)
	}

	if err := s.attachLinks(ctx, boardID, byID); err != nil {
		return nil, err
	}

	cards := make([]card.Card, 0, len(order))
	for _, id := range order {
		cards = append(cards, *byID[id])
	}

	repo := board.NewRepository()
	repo.ReplaceAll(cards)
	return repo.All(), nil
}

// attachLinks fills LinkedFeedbackIDs for the board's action cards.
// Rows come back sorted, matching the card model's sorted-set invariant.
func (s *Server) attachLinks(ctx context.Context, boardID string, byID map[string]*card.Card) error {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT l.action_card_id, l.feedback_card_id
		FROM card_links l
		JOIN cards c ON c.id = l.action_card_id
		WHERE c.board_id = ?
		ORDER BY l.action_card_id ASC, l.feedback_card_id ASC`, boardID)
	if err != nil {
		return fmt.Errorf("load links for board %s: %w", boardID, err)
	}
	defer rows.Close()

	for rows.Next() {
		var actionID, feedbackID string
		if err := rows.Scan(&actionID, &feedbackID); err != nil {
			return fmt.Errorf("scan link: %w", err)
		}
		if c, ok := byID[actionID]; ok {
			c.LinkedFeedbackIDs = append(c.LinkedFeedbackIDs, feedbackID)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("load links for board %s: %w", boardID, err)
	}
	return nil
}

// loadCard returns one card with derived counts and aggregation.
// Aggregation depends on the card's children, so this reads board-wide.
func (s *Server) loadCard(ctx context.Context, cardID string) (card.Card, error) {
	boardID, err := s.cardBoard(ctx, cardID)
	if err != nil {
		return card.Card{}, err
	}
	cards, err := s.loadBoardCards(ctx, boardID)
	if err != nil {
		return card.Card{}, err
	}
	for _, c := range cards {
		if c.ID == cardID {
			return c, nil
		}
	}
	return card.Card{}, fmt.Errorf("card %s: %w", cardID, ErrNotFound)
}

// cardBoard resolves a card id to its board.
func (s *Server) cardBoard(ctx context.Context, cardID string) (string, error) {
	var boardID string
	err := s.store.db.QueryRowContext(ctx,
		`SELECT board_id FROM cards WHERE id = ?`, cardID).Scan(&boardID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("card %s: %w", cardID, ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("resolve card %s: %w", cardID, err)
	}
	return boardID, nil
}

// childIDs returns the ids of cards whose parent is the given card.
func (s *Server) childIDs(ctx context.Context, cardID string) ([]string, error) {
	rows, err := s.store.db.QueryContext(ctx,
		`SELECT id FROM cards WHERE parent_card_id = ? ORDER BY created_seq ASC, id ASC`, cardID)
	if err != nil {
		return nil, fmt.Errorf("load children of %s: %w", cardID, err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan child id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load children of %s: %w", cardID, err)
	}
	return ids, nil
}
