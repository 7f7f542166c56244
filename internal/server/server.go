package server

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/roach88/retroloop/internal/remote"
)

// Sentinel errors for authoritative rejections. Callers match with errors.Is.
var (
	ErrBoardClosed   = errors.New("board is closed")
	ErrNotFound      = errors.New("not found")
	ErrQuotaExceeded = errors.New("quota exceeded")
	ErrIllegalLink   = errors.New("illegal link")
	ErrInvalidCard   = errors.New("invalid card")
)

// defaultMaxContentLength applies when a board config leaves the limit unset.
const defaultMaxContentLength = 1000

// BoardConfig is the stored per-board policy. Quotas of zero mean unlimited.
type BoardConfig struct {
	ID                   string
	Name                 string
	Closed               bool
	CardQuotaPerUser     int
	ReactionQuotaPerUser int
	MaxContentLength     int
}

// Server owns the authoritative board state.
type Server struct {
	store *Store
	bus   *EventBus
	log   *slog.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithEventBus enables Redis fan-out of board events.
func WithEventBus(bus *EventBus) Option {
	return func(s *Server) { s.bus = bus }
}

// WithLogger overrides the default slog logger.
func WithLogger(log *slog.Logger) Option {
	return func(s *Server) { s.log = log }
}

// New creates a Server over an open store. Without WithEventBus, mutations
// succeed but nothing is published.
func New(store *Store, opts ...Option) *Server {
	s := &Server{
		store: store,
		log:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateBoard registers a board and returns its id. A missing cfg.ID gets a
// generated UUIDv7; a missing content limit gets the default.
func (s *Server) CreateBoard(ctx context.Context, cfg BoardConfig) (string, error) {
	if cfg.ID == "" {
		cfg.ID = uuid.Must(uuid.NewV7()).String()
	}
	if cfg.MaxContentLength <= 0 {
		cfg.MaxContentLength = defaultMaxContentLength
	}

	_, err := s.store.db.ExecContext(ctx, `
		INSERT INTO boards (id, name, closed, card_quota, reaction_quota, max_content_length)
		VALUES (?, ?, ?, ?, ?, ?)`,
		cfg.ID, cfg.Name, cfg.Closed, cfg.CardQuotaPerUser, cfg.ReactionQuotaPerUser, cfg.MaxContentLength)
	if err != nil {
		return "", fmt.Errorf("create board: %w", err)
	}
	return cfg.ID, nil
}

// BoardConfig returns the stored policy for a board.
func (s *Server) BoardConfig(ctx context.Context, boardID string) (BoardConfig, error) {
	return s.boardConfig(ctx, boardID)
}

// SetBoardClosed flips the board's read-only state. Closing is a lifecycle
// transition owned here, not by clients; client engines only consume it.
func (s *Server) SetBoardClosed(ctx context.Context, boardID string, closed bool) error {
	res, err := s.store.db.ExecContext(ctx, `UPDATE boards SET closed = ? WHERE id = ?`, closed, boardID)
	if err != nil {
		return fmt.Errorf("set board closed: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("set board closed: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("board %s: %w", boardID, ErrNotFound)
	}
	return nil
}

// Session binds the server to one actor identity. The actor's hash is a
// stable opaque digest of the name; the raw name is only stored on
// non-anonymous cards.
func (s *Server) Session(actorName string) *Session {
	return &Session{
		srv:  s,
		name: actorName,
		hash: hashActor(actorName),
	}
}

func hashActor(name string) string {
	sum := sha256.Sum256([]byte(name))
	return hex.EncodeToString(sum[:8])
}

func (s *Server) boardConfig(ctx context.Context, boardID string) (BoardConfig, error) {
	cfg := BoardConfig{ID: boardID}
	err := s.store.db.QueryRowContext(ctx, `
		SELECT name, closed, card_quota, reaction_quota, max_content_length
		FROM boards WHERE id = ?`, boardID).
		Scan(&cfg.Name, &cfg.Closed, &cfg.CardQuotaPerUser, &cfg.ReactionQuotaPerUser, &cfg.MaxContentLength)
	if errors.Is(err, sql.ErrNoRows) {
		return BoardConfig{}, fmt.Errorf("board %s: %w", boardID, ErrNotFound)
	}
	if err != nil {
		return BoardConfig{}, fmt.Errorf("load board %s: %w", boardID, err)
	}
	return cfg, nil
}

// nextSeq bumps and returns the board's logical event sequence. It accepts
// either a transaction or the raw connection so post-commit events can be
// stamped too.
func (s *Server) nextSeq(ctx context.Context, q rowQuerier, boardID string) (int64, error) {
	var seq int64
	err := q.QueryRowContext(ctx, `UPDATE boards SET seq = seq + 1 WHERE id = ? RETURNING seq`, boardID).Scan(&seq)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("board %s: %w", boardID, ErrNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("next seq for board %s: %w", boardID, err)
	}
	return seq, nil
}

type rowQuerier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// publish fans an event out on the board channel. Best effort: failures are
// logged and never fail the mutation that produced the event.
func (s *Server) publish(ctx context.Context, ev remote.Event) {
	if s.bus == nil {
		return
	}
	if err := s.bus.Publish(ctx, ev); err != nil {
		s.log.Warn("event publish failed",
			"board_id", ev.BoardID,
			"kind", string(ev.Kind),
			"seq", ev.Seq,
			"error", err)
	}
}
