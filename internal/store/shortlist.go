package store

import (
	"context"
	"database/sql"
	"errors"
)

// ShortlistRepository reads promotions into contest levels. Rows are written
// by contest administration tooling outside this service.
type ShortlistRepository struct {
	db *sql.DB
}

func NewShortlistRepository(db *sql.DB) *ShortlistRepository {
	return &ShortlistRepository{db: db}
}

// IsAllowed reports whether userID holds an allowed shortlist entry for the
// given contest level.
func (r *ShortlistRepository) IsAllowed(ctx context.Context, contestID, level, userID int) (bool, error) {
	const query = `
		SELECT is_allowed
		FROM shortlisted_participants
		WHERE contest_id = $1 AND level = $2 AND user_id = $3 AND is_allowed = TRUE
		LIMIT 1`
	var allowed bool
	err := r.db.QueryRowContext(ctx, query, contestID, level, userID).Scan(&allowed)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return allowed, nil
}
