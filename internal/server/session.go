package server

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/roach88/retroloop/internal/board"
	"github.com/roach88/retroloop/internal/card"
	"github.com/roach88/retroloop/internal/remote"
)

// Session is the per-actor view of the server. It implements remote.Service,
// so a client engine can be wired straight to it in-process or a transport
// can delegate to it.
type Session struct {
	srv  *Server
	name string
	hash string
}

var _ remote.Service = (*Session)(nil)

// ActorHash returns the session's stable actor digest.
func (s *Session) ActorHash() string { return s.hash }

// GetCards implements remote.Service.
func (s *Session) GetCards(ctx context.Context, boardID string) ([]card.Card, error) {
	if _, err := s.srv.boardConfig(ctx, boardID); err != nil {
		return nil, err
	}
	return s.srv.loadBoardCards(ctx, boardID)
}

// CreateCard implements remote.Service. The server assigns the id, author
// identity, and creation seq; quota and content limits are enforced here
// even when the client already checked them.
func (s *Session) CreateCard(ctx context.Context, boardID string, req remote.CreateCardRequest) (card.Card, error) {
	cfg, err := s.srv.boardConfig(ctx, boardID)
	if err != nil {
		return card.Card{}, err
	}
	if cfg.Closed {
		return card.Card{}, fmt.Errorf("board %s: %w", boardID, ErrBoardClosed)
	}
	if !req.Kind.Valid() {
		return card.Card{}, fmt.Errorf("%w: unknown kind %q", ErrInvalidCard, req.Kind)
	}
	content, err := validContent(req.Content, cfg.MaxContentLength)
	if err != nil {
		return card.Card{}, err
	}

	if req.Kind == card.KindFeedback && cfg.CardQuotaPerUser > 0 {
		n, err := s.feedbackCardCount(ctx, boardID)
		if err != nil {
			return card.Card{}, err
		}
		if n >= cfg.CardQuotaPerUser {
			return card.Card{}, fmt.Errorf("card quota for board %s: %w", boardID, ErrQuotaExceeded)
		}
	}

	tx, err := s.srv.store.db.BeginTx(ctx, nil)
	if err != nil {
		return card.Card{}, fmt.Errorf("create card: %w", err)
	}
	defer tx.Rollback()

	seq, err := s.srv.nextSeq(ctx, tx, boardID)
	if err != nil {
		return card.Card{}, err
	}

	id := uuid.Must(uuid.NewV7()).String()
	authorName := s.name
	if req.IsAnonymous {
		authorName = ""
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO cards (id, board_id, column_id, content, kind, is_anonymous,
		                   author_hash, author_name, created_seq)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, boardID, req.ColumnID, content, req.Kind, req.IsAnonymous,
		s.hash, authorName, seq)
	if err != nil {
		return card.Card{}, fmt.Errorf("insert card: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return card.Card{}, fmt.Errorf("create card: %w", err)
	}

	created, err := s.srv.loadCard(ctx, id)
	if err != nil {
		return card.Card{}, err
	}
	s.srv.publish(ctx, remote.Event{
		Kind:    remote.EventCardCreated,
		BoardID: boardID,
		Seq:     seq,
		CardID:  id,
		Card:    &created,
	})
	return created, nil
}

// UpdateCardContent implements remote.Service.
func (s *Session) UpdateCardContent(ctx context.Context, cardID, content string) (card.Card, error) {
	boardID, cfg, err := s.cardBoardConfig(ctx, cardID)
	if err != nil {
		return card.Card{}, err
	}
	if cfg.Closed {
		return card.Card{}, fmt.Errorf("board %s: %w", boardID, ErrBoardClosed)
	}
	content, err = validContent(content, cfg.MaxContentLength)
	if err != nil {
		return card.Card{}, err
	}

	tx, err := s.srv.store.db.BeginTx(ctx, nil)
	if err != nil {
		return card.Card{}, fmt.Errorf("update card: %w", err)
	}
	defer tx.Rollback()

	seq, err := s.srv.nextSeq(ctx, tx, boardID)
	if err != nil {
		return card.Card{}, err
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE cards SET content = ? WHERE id = ?`, content, cardID); err != nil {
		return card.Card{}, fmt.Errorf("update card %s: %w", cardID, err)
	}
	if err := tx.Commit(); err != nil {
		return card.Card{}, fmt.Errorf("update card: %w", err)
	}

	updated, err := s.srv.loadCard(ctx, cardID)
	if err != nil {
		return card.Card{}, err
	}
	s.srv.publish(ctx, remote.Event{
		Kind:    remote.EventCardUpdated,
		BoardID: boardID,
		Seq:     seq,
		CardID:  cardID,
		Card:    &updated,
	})
	return updated, nil
}

// DeleteCard implements remote.Service. Children of a deleted parent are
// unparented by the schema's ON DELETE SET NULL; each survivor is announced
// with its own update event so mirrors re-derive aggregation.
func (s *Session) DeleteCard(ctx context.Context, cardID string) error {
	boardID, cfg, err := s.cardBoardConfig(ctx, cardID)
	if err != nil {
		return err
	}
	if cfg.Closed {
		return fmt.Errorf("board %s: %w", boardID, ErrBoardClosed)
	}

	children, err := s.srv.childIDs(ctx, cardID)
	if err != nil {
		return err
	}

	tx, err := s.srv.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("delete card: %w", err)
	}
	defer tx.Rollback()

	seq, err := s.srv.nextSeq(ctx, tx, boardID)
	if err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM cards WHERE id = ?`, cardID)
	if err != nil {
		return fmt.Errorf("delete card %s: %w", cardID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete card %s: %w", cardID, err)
	}
	if n == 0 {
		return fmt.Errorf("card %s: %w", cardID, ErrNotFound)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("delete card: %w", err)
	}

	s.srv.publish(ctx, remote.Event{
		Kind:    remote.EventCardDeleted,
		BoardID: boardID,
		Seq:     seq,
		CardID:  cardID,
	})
	for _, childID := range children {
		child, err := s.srv.loadCard(ctx, childID)
		if err != nil {
			continue
		}
		childSeq, err := s.srv.nextSeq(ctx, s.srv.store.db, boardID)
		if err != nil {
			continue
		}
		s.srv.publish(ctx, remote.Event{
			Kind:    remote.EventCardUpdated,
			BoardID: boardID,
			Seq:     childSeq,
			CardID:  childID,
			Card:    &child,
		})
	}
	return nil
}

// MoveCard implements remote.Service.
func (s *Session) MoveCard(ctx context.Context, cardID, columnID string) error {
	boardID, cfg, err := s.cardBoardConfig(ctx, cardID)
	if err != nil {
		return err
	}
	if cfg.Closed {
		return fmt.Errorf("board %s: %w", boardID, ErrBoardClosed)
	}

	tx, err := s.srv.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("move card: %w", err)
	}
	defer tx.Rollback()

	seq, err := s.srv.nextSeq(ctx, tx, boardID)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE cards SET column_id = ? WHERE id = ?`, columnID, cardID); err != nil {
		return fmt.Errorf("move card %s: %w", cardID, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("move card: %w", err)
	}

	moved, err := s.srv.loadCard(ctx, cardID)
	if err != nil {
		return err
	}
	s.srv.publish(ctx, remote.Event{
		Kind:    remote.EventCardMoved,
		BoardID: boardID,
		Seq:     seq,
		CardID:  cardID,
		Card:    &moved,
	})
	return nil
}

// LinkCards implements remote.Service. Link invariants are re-checked against
// stored state through the same rules clients use locally.
func (s *Session) LinkCards(ctx context.Context, sourceID string, req remote.LinkRequest) error {
	boardID, cfg, err := s.cardBoardConfig(ctx, sourceID)
	if err != nil {
		return err
	}
	if cfg.Closed {
		return fmt.Errorf("board %s: %w", boardID, ErrBoardClosed)
	}

	repo, err := s.boardRepository(ctx, boardID)
	if err != nil {
		return err
	}

	switch req.LinkType {
	case card.LinkParentOf:
		if err := denialToError(repo.CheckParentChild(sourceID, req.TargetID)); err != nil {
			return err
		}
		if err := s.execLink(ctx, boardID, req.LinkType, sourceID, req.TargetID,
			`UPDATE cards SET parent_card_id = ? WHERE id = ?`, sourceID, req.TargetID); err != nil {
			return err
		}
	case card.LinkLinkedTo:
		if err := denialToError(repo.CheckActionFeedback(sourceID, req.TargetID)); err != nil {
			return err
		}
		if err := s.execLink(ctx, boardID, req.LinkType, sourceID, req.TargetID,
			`INSERT INTO card_links (action_card_id, feedback_card_id) VALUES (?, ?)
			 ON CONFLICT (action_card_id, feedback_card_id) DO NOTHING`,
			sourceID, req.TargetID); err != nil {
			return err
		}
	default:
		return fmt.Errorf("%w: unknown link type %q", ErrIllegalLink, req.LinkType)
	}
	return nil
}

// UnlinkCards implements remote.Service. Removing an absent edge is a no-op
// and publishes nothing, so retried unlinks are idempotent.
func (s *Session) UnlinkCards(ctx context.Context, sourceID string, req remote.LinkRequest) error {
	boardID, cfg, err := s.cardBoardConfig(ctx, sourceID)
	if err != nil {
		return err
	}
	if cfg.Closed {
		return fmt.Errorf("board %s: %w", boardID, ErrBoardClosed)
	}

	var query string
	switch req.LinkType {
	case card.LinkParentOf:
		query = `UPDATE cards SET parent_card_id = NULL WHERE id = ? AND parent_card_id = ?`
	case card.LinkLinkedTo:
		query = `DELETE FROM card_links WHERE feedback_card_id = ? AND action_card_id = ?`
	default:
		return fmt.Errorf("%w: unknown link type %q", ErrIllegalLink, req.LinkType)
	}

	tx, err := s.srv.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("unlink cards: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, query, req.TargetID, sourceID)
	if err != nil {
		return fmt.Errorf("unlink %s from %s: %w", req.TargetID, sourceID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("unlink cards: %w", err)
	}
	var seq int64
	if n > 0 {
		if seq, err = s.srv.nextSeq(ctx, tx, boardID); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("unlink cards: %w", err)
	}

	if n > 0 {
		s.srv.publish(ctx, remote.Event{
			Kind:     remote.EventCardsUnlinked,
			BoardID:  boardID,
			Seq:      seq,
			SourceID: sourceID,
			TargetID: req.TargetID,
			LinkType: req.LinkType,
		})
	}
	return nil
}

// AddReaction implements remote.Service. One reaction per actor per card;
// repeating the call is a no-op that publishes nothing.
func (s *Session) AddReaction(ctx context.Context, cardID string) error {
	boardID, cfg, err := s.cardBoardConfig(ctx, cardID)
	if err != nil {
		return err
	}
	if cfg.Closed {
		return fmt.Errorf("board %s: %w", boardID, ErrBoardClosed)
	}
	if cfg.ReactionQuotaPerUser > 0 {
		n, err := s.reactionCount(ctx, boardID)
		if err != nil {
			return err
		}
		if n >= cfg.ReactionQuotaPerUser {
			return fmt.Errorf("reaction quota for board %s: %w", boardID, ErrQuotaExceeded)
		}
	}

	tx, err := s.srv.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("add reaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO reactions (card_id, actor_hash) VALUES (?, ?)
		ON CONFLICT (card_id, actor_hash) DO NOTHING`, cardID, s.hash)
	if err != nil {
		return fmt.Errorf("add reaction to %s: %w", cardID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("add reaction: %w", err)
	}
	var seq int64
	if n > 0 {
		if seq, err = s.srv.nextSeq(ctx, tx, boardID); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("add reaction: %w", err)
	}

	if n > 0 {
		s.publishReactionEvent(ctx, remote.EventReactionAdded, boardID, cardID, seq)
	}
	return nil
}

// RemoveReaction implements remote.Service. Removing an absent reaction is a
// no-op.
func (s *Session) RemoveReaction(ctx context.Context, cardID string) error {
	boardID, cfg, err := s.cardBoardConfig(ctx, cardID)
	if err != nil {
		return err
	}
	if cfg.Closed {
		return fmt.Errorf("board %s: %w", boardID, ErrBoardClosed)
	}

	tx, err := s.srv.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("remove reaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`DELETE FROM reactions WHERE card_id = ? AND actor_hash = ?`, cardID, s.hash)
	if err != nil {
		return fmt.Errorf("remove reaction from %s: %w", cardID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("remove reaction: %w", err)
	}
	var seq int64
	if n > 0 {
		if seq, err = s.srv.nextSeq(ctx, tx, boardID); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("remove reaction: %w", err)
	}

	if n > 0 {
		s.publishReactionEvent(ctx, remote.EventReactionRemoved, boardID, cardID, seq)
	}
	return nil
}

// CheckCardQuota implements remote.Service.
func (s *Session) CheckCardQuota(ctx context.Context, boardID string) (remote.CardQuota, error) {
	cfg, err := s.srv.boardConfig(ctx, boardID)
	if err != nil {
		return remote.CardQuota{}, err
	}
	if cfg.CardQuotaPerUser <= 0 {
		return remote.CardQuota{CanCreate: true}, nil
	}
	n, err := s.feedbackCardCount(ctx, boardID)
	if err != nil {
		return remote.CardQuota{}, err
	}
	return remote.CardQuota{CanCreate: n < cfg.CardQuotaPerUser}, nil
}

// CheckReactionQuota implements remote.Service.
func (s *Session) CheckReactionQuota(ctx context.Context, boardID string) (remote.ReactionQuota, error) {
	cfg, err := s.srv.boardConfig(ctx, boardID)
	if err != nil {
		return remote.ReactionQuota{}, err
	}
	if cfg.ReactionQuotaPerUser <= 0 {
		return remote.ReactionQuota{CanReact: true}, nil
	}
	n, err := s.reactionCount(ctx, boardID)
	if err != nil {
		return remote.ReactionQuota{}, err
	}
	return remote.ReactionQuota{CanReact: n < cfg.ReactionQuotaPerUser}, nil
}

// cardBoardConfig resolves a card to its board and the board's policy.
func (s *Session) cardBoardConfig(ctx context.Context, cardID string) (string, BoardConfig, error) {
	boardID, err := s.srv.cardBoard(ctx, cardID)
	if err != nil {
		return "", BoardConfig{}, err
	}
	cfg, err := s.srv.boardConfig(ctx, boardID)
	if err != nil {
		return "", BoardConfig{}, err
	}
	return boardID, cfg, nil
}

// boardRepository loads the board into the shared in-memory repository so
// link rules run against stored state.
func (s *Session) boardRepository(ctx context.Context, boardID string) (*board.Repository, error) {
	cards, err := s.srv.loadBoardCards(ctx, boardID)
	if err != nil {
		return nil, err
	}
	repo := board.NewRepository()
	repo.ReplaceAll(cards)
	return repo, nil
}

// execLink applies a link mutation and publishes the linked event.
func (s *Session) execLink(ctx context.Context, boardID string, linkType card.LinkType,
	sourceID, targetID, query string, args ...any) error {
	tx, err := s.srv.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("link cards: %w", err)
	}
	defer tx.Rollback()

	seq, err := s.srv.nextSeq(ctx, tx, boardID)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("link %s to %s: %w", targetID, sourceID, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("link cards: %w", err)
	}

	s.srv.publish(ctx, remote.Event{
		Kind:     remote.EventCardsLinked,
		BoardID:  boardID,
		Seq:      seq,
		SourceID: sourceID,
		TargetID: targetID,
		LinkType: linkType,
	})
	return nil
}

func (s *Session) publishReactionEvent(ctx context.Context, kind remote.EventKind, boardID, cardID string, seq int64) {
	c, err := s.srv.loadCard(ctx, cardID)
	if err != nil {
		return
	}
	s.srv.publish(ctx, remote.Event{
		Kind:    kind,
		BoardID: boardID,
		Seq:     seq,
		CardID:  cardID,
		Card:    &c,
	})
}

func (s *Session) feedbackCardCount(ctx context.Context, boardID string) (int, error) {
	var n int
	err := s.srv.store.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM cards
		WHERE board_id = ? AND author_hash = ? AND kind = 'feedback'`,
		boardID, s.hash).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count cards for board %s: %w", boardID, err)
	}
	return n, nil
}

func (s *Session) reactionCount(ctx context.Context, boardID string) (int, error) {
	var n int
	err := s.srv.store.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM reactions r
		JOIN cards c ON c.id = r.card_id
		WHERE c.board_id = ? AND r.actor_hash = ?`,
		boardID, s.hash).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count reactions for board %s: %w", boardID, err)
	}
	return n, nil
}

func denialToError(denial board.LinkDenial) error {
	switch denial {
	case board.DenialNone:
		return nil
	case board.DenialNotFound:
		return fmt.Errorf("link endpoint: %w", ErrNotFound)
	default:
		return fmt.Errorf("%w: %s", ErrIllegalLink, denial)
	}
}

// validContent trims and validates card text against the board limit.
func validContent(content string, maxLen int) (string, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return "", fmt.Errorf("%w: content is empty", ErrInvalidCard)
	}
	if maxLen > 0 && utf8.RuneCountInString(content) > maxLen {
		return "", fmt.Errorf("%w: content exceeds %d characters", ErrInvalidCard, maxLen)
	}
	return content, nil
}
