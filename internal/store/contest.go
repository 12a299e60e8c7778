package store

import (
	"context"
	"database/sql"
	"errors"
)

// ContestRepository reads contest and round scheduling state.
type ContestRepository struct {
	db *sql.DB
}

func NewContestRepository(db *sql.DB) *ContestRepository {
	return &ContestRepository{db: db}
}

// LiveContestID returns the ID of a contest with status live.
// Returns ErrNotFound when none is live.
func (r *ContestRepository) LiveContestID(ctx context.Context) (int, error) {
	const query = `
		SELECT contest_id
		FROM contests
		WHERE status = 'live'
		ORDER BY contest_id ASC
		LIMIT 1`
	var id int
	if err := r.db.QueryRowContext(ctx, query).Scan(&id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrNotFound
		}
		return 0, err
	}
	return id, nil
}

// LowestActiveRound returns the smallest active round number of a contest.
// Returns ErrNotFound when the contest has no active round.
func (r *ContestRepository) LowestActiveRound(ctx context.Context, contestID int) (int, error) {
	const query = `
		SELECT round_number
		FROM rounds
		WHERE contest_id = $1 AND status = 'active'
		ORDER BY round_number ASC
		LIMIT 1`
	var level int
	if err := r.db.QueryRowContext(ctx, query, contestID).Scan(&level); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrNotFound
		}
		return 0, err
	}
	return level, nil
}
