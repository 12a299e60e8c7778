package types

import "time"

// Role values stored in users.role.
const (
	RoleParticipant = "participant"
	RoleLeader      = "leader"
	RoleAdmin       = "admin"
)

// Participant status values stored in users.status.
const (
	StatusActive       = "active"
	StatusHeld         = "held"
	StatusDisqualified = "disqualified"
)

// Approval values stored in users.admin_status for leaders and admins.
const (
	AdminStatusPending  = "PENDING"
	AdminStatusApproved = "APPROVED"
	AdminStatusRejected = "REJECTED"
)

// User represents an account on the contest platform.
// Participants, leaders and admins share one table; the username is unique
// across all roles.
type User struct {
	// ID is the unique numeric identifier of the user.
	ID int `json:"user_id" db:"user_id"`

	// Username is the login handle. For participants it doubles as the
	// public participant ID (e.g. "SHCCSGF001").
	Username string `json:"username" db:"username"`

	// FullName is the user's display name.
	FullName string `json:"full_name" db:"full_name"`

	// Email is the user's email address. Participants may not have one.
	Email string `json:"email,omitempty" db:"email"`

	// Role is one of participant, leader or admin.
	Role string `json:"role" db:"role"`

	// Status is the participant contest status: active, held or disqualified.
	Status string `json:"status,omitempty" db:"status"`

	// PasswordHash stores the hashed password in one of the supported
	// encodings. Participants have none. Never exposed in API responses.
	PasswordHash string `json:"-" db:"password_hash"`

	// AdminStatus is the approval state of leader and admin accounts.
	AdminStatus string `json:"admin_status,omitempty" db:"admin_status"`

	// ApprovedBy is the user ID of the admin who approved or rejected
	// this account.
	ApprovedBy *int `json:"approved_by,omitempty" db:"approved_by"`

	// ApprovalAt is when the approval decision was recorded.
	ApprovalAt *time.Time `json:"approval_at,omitempty" db:"approval_at"`

	// CreatedAt is the timestamp when the account was created.
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Identity is the caller reconstructed from a verified session token and
// the live user row.
type Identity struct {
	UserID      int    `json:"participant_id"`
	Username    string `json:"username"`
	FullName    string `json:"full_name"`
	Role        string `json:"role"`
	Status      string `json:"status"`
	AdminStatus string `json:"admin_status"`
}

// IdentityFromUser builds an Identity from a user row, filling the legacy
// defaults for columns that are empty for the user's role.
func IdentityFromUser(user User) Identity {
	status := user.Status
	if status == "" {
		status = StatusActive
	}
	adminStatus := user.AdminStatus
	if adminStatus == "" {
		adminStatus = AdminStatusApproved
	}
	return Identity{
		UserID:      user.ID,
		Username:    user.Username,
		FullName:    user.FullName,
		Role:        user.Role,
		Status:      status,
		AdminStatus: adminStatus,
	}
}
