package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"github.com/debugmarathon/apiserver/types"
)

// Initial values of a freshly created proctoring record.
const initialRiskLevel = "low"

// ProctoringRepository handles the per-participant proctoring rows the login
// flow reads and seeds.
type ProctoringRepository struct {
	db *sql.DB
}

func NewProctoringRepository(db *sql.DB) *ProctoringRepository {
	return &ProctoringRepository{db: db}
}

// IsDisqualified reports whether any proctoring row for the participant is
// flagged as disqualified, across all contests.
func (r *ProctoringRepository) IsDisqualified(ctx context.Context, participantID string) (bool, error) {
	const query = `
		SELECT EXISTS (
			SELECT 1
			FROM participant_proctoring
			WHERE participant_id = $1 AND is_disqualified = TRUE
		)`
	var disqualified bool
	if err := r.db.QueryRowContext(ctx, query, participantID).Scan(&disqualified); err != nil {
		return false, err
	}
	return disqualified, nil
}

// EnsureRecord creates the zeroed proctoring record for (participant,
// contest) when none exists. created is false when one was already present.
func (r *ProctoringRepository) EnsureRecord(ctx context.Context, participantID string, userID, contestID int) (types.ProctoringRecord, bool, error) {
	record := types.ProctoringRecord{
		ID:            uuid.NewString(),
		ParticipantID: participantID,
		UserID:        userID,
		ContestID:     contestID,
		RiskLevel:     initialRiskLevel,
	}

	const insert = `
		INSERT INTO participant_proctoring
			(id, participant_id, user_id, contest_id, total_violations, violation_score, risk_level, is_disqualified, created_at)
		VALUES ($1, $2, $3, $4, 0, 0, $5, FALSE, NOW())
		ON CONFLICT (participant_id, contest_id) DO NOTHING
		RETURNING created_at`
	err := r.db.QueryRowContext(ctx, insert,
		record.ID,
		record.ParticipantID,
		record.UserID,
		record.ContestID,
		record.RiskLevel,
	).Scan(&record.CreatedAt)
	if err == nil {
		return record, true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return types.ProctoringRecord{}, false, err
	}

	existing, err := r.Get(ctx, participantID, contestID)
	if err != nil {
		return types.ProctoringRecord{}, false, err
	}
	return existing, false, nil
}

// Get returns the proctoring record for (participant, contest).
func (r *ProctoringRepository) Get(ctx context.Context, participantID string, contestID int) (types.ProctoringRecord, error) {
	const query = `
		SELECT id, participant_id, user_id, contest_id, total_violations, violation_score,
			risk_level, is_disqualified, created_at
		FROM participant_proctoring
		WHERE participant_id = $1 AND contest_id = $2`
	var record types.ProctoringRecord
	err := r.db.QueryRowContext(ctx, query, participantID, contestID).Scan(
		&record.ID,
		&record.ParticipantID,
		&record.UserID,
		&record.ContestID,
		&record.TotalViolations,
		&record.ViolationScore,
		&record.RiskLevel,
		&record.IsDisqualified,
		&record.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.ProctoringRecord{}, ErrNotFound
		}
		return types.ProctoringRecord{}, err
	}
	return record, nil
}
