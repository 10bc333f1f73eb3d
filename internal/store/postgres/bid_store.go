package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/auctiond/internal/domain"
)

// BidStore implements domain.BidStore using PostgreSQL.
type BidStore struct {
	pool *pgxpool.Pool
}

// NewBidStore creates a new BidStore backed by the given connection pool.
func NewBidStore(pool *pgxpool.Pool) *BidStore {
	return &BidStore{pool: pool}
}

const bidSelectCols = `id, lot_id, team_id, amount::text, counter, placed_at, valid`

func scanBidRows(rows pgx.Rows) ([]domain.BidRecord, error) {
	var bids []domain.BidRecord
	for rows.Next() {
		var (
			b      domain.BidRecord
			amount string
		)
		if err := rows.Scan(&b.ID, &b.LotID, &b.TeamID, &amount, &b.Counter, &b.PlacedAt, &b.Valid); err != nil {
			return nil, err
		}
		var err error
		if b.Amount, err = numeric(amount); err != nil {
			return nil, err
		}
		bids = append(bids, b)
	}
	return bids, rows.Err()
}

// Insert records a bid. Bids are immutable apart from the valid flag, which
// is refreshed when the same bid is written again after an invalidation.
func (s *BidStore) Insert(ctx context.Context, sessionID string, bid domain.BidRecord) error {
	const query = `
		INSERT INTO bids (id, session_id, lot_id, team_id, amount, counter, valid, placed_at)
		VALUES ($1, $2, $3, $4, $5::numeric, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET valid = EXCLUDED.valid`
	if _, err := s.pool.Exec(ctx, query,
		bid.ID, sessionID, bid.LotID, bid.TeamID, bid.Amount.String(), bid.Counter, bid.Valid, bid.PlacedAt,
	); err != nil {
		return fmt.Errorf("postgres: insert bid %s: %w", bid.ID, err)
	}
	return nil
}

// InvalidateLot marks every bid on a lot invalid, e.g. when the auction is
// completed with the lot still open.
func (s *BidStore) InvalidateLot(ctx context.Context, sessionID, lotID string) error {
	const query = `UPDATE bids SET valid = FALSE WHERE session_id = $1 AND lot_id = $2`
	if _, err := s.pool.Exec(ctx, query, sessionID, lotID); err != nil {
		return fmt.Errorf("postgres: invalidate bids for lot %s: %w", lotID, err)
	}
	return nil
}

// ListBySession returns every bid of a session, oldest first.
func (s *BidStore) ListBySession(ctx context.Context, sessionID string) ([]domain.BidRecord, error) {
	query := `SELECT ` + bidSelectCols + ` FROM bids
		WHERE session_id = $1 ORDER BY placed_at ASC, counter ASC`
	rows, err := s.pool.Query(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list bids for session %s: %w", sessionID, err)
	}
	defer rows.Close()

	bids, err := scanBidRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan bids for session %s: %w", sessionID, err)
	}
	return bids, nil
}
