package types

import "time"

// Contest and round status values.
const (
	ContestStatusLive = "live"
	RoundStatusActive = "active"
)

// DefaultContestID is used when no contest is currently live.
const DefaultContestID = 1

// Contest is a coding contest made of consecutive rounds (levels).
type Contest struct {
	ID     int    `json:"contest_id" db:"contest_id"`
	Name   string `json:"contest_name" db:"contest_name"`
	Status string `json:"status" db:"status"`
}

// Round is a single level of a contest.
type Round struct {
	ContestID int    `json:"contest_id" db:"contest_id"`
	Number    int    `json:"round_number" db:"round_number"`
	Status    string `json:"status" db:"status"`
}

// ActiveRound identifies the contest and level participants are currently
// admitted into.
type ActiveRound struct {
	ContestID int `json:"contest_id"`
	Level     int `json:"level"`
}

// ShortlistEntry records whether a participant was promoted into a level.
type ShortlistEntry struct {
	ContestID int  `json:"contest_id" db:"contest_id"`
	Level     int  `json:"level" db:"level"`
	UserID    int  `json:"user_id" db:"user_id"`
	IsAllowed bool `json:"is_allowed" db:"is_allowed"`
}

// ProctoringRecord holds the per-participant, per-contest violation state.
// Only the disqualification flag is read by the login flow; the record is
// created zeroed on first successful login.
type ProctoringRecord struct {
	// ID is a random UUID.
	ID string `json:"id" db:"id"`

	// ParticipantID is the participant's username.
	ParticipantID string `json:"participant_id" db:"participant_id"`

	UserID          int       `json:"user_id" db:"user_id"`
	ContestID       int       `json:"contest_id" db:"contest_id"`
	TotalViolations int       `json:"total_violations" db:"total_violations"`
	ViolationScore  int       `json:"violation_score" db:"violation_score"`
	RiskLevel       string    `json:"risk_level" db:"risk_level"`
	IsDisqualified  bool      `json:"is_disqualified" db:"is_disqualified"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
}
