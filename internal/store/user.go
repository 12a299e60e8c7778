package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/debugmarathon/apiserver/types"
)

const userColumns = `user_id, username, full_name, email, role, status, password_hash,
		admin_status, approved_by, approval_at, created_at`

// UserRepository handles persistence for users.
type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (types.User, error) {
	var (
		user         types.User
		fullName     sql.NullString
		email        sql.NullString
		status       sql.NullString
		passwordHash sql.NullString
		adminStatus  sql.NullString
		approvedBy   sql.NullInt64
		approvalAt   sql.NullTime
	)
	err := row.Scan(
		&user.ID,
		&user.Username,
		&fullName,
		&email,
		&user.Role,
		&status,
		&passwordHash,
		&adminStatus,
		&approvedBy,
		&approvalAt,
		&user.CreatedAt,
	)
	if err != nil {
		return types.User{}, err
	}

	user.FullName = fullName.String
	user.Email = email.String
	user.Status = status.String
	user.PasswordHash = passwordHash.String
	user.AdminStatus = adminStatus.String
	if approvedBy.Valid {
		id := int(approvedBy.Int64)
		user.ApprovedBy = &id
	}
	if approvalAt.Valid {
		at := approvalAt.Time
		user.ApprovalAt = &at
	}
	return user, nil
}

func (r *UserRepository) getOne(ctx context.Context, query string, args ...any) (types.User, error) {
	user, err := scanUser(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.User{}, ErrNotFound
		}
		return types.User{}, err
	}
	return user, nil
}

func (r *UserRepository) GetByID(ctx context.Context, id int) (types.User, error) {
	query := `SELECT ` + userColumns + `
		FROM users
		WHERE user_id = $1`
	return r.getOne(ctx, query, id)
}

func (r *UserRepository) GetByUsername(ctx context.Context, username string) (types.User, error) {
	query := `SELECT ` + userColumns + `
		FROM users
		WHERE username = $1`
	return r.getOne(ctx, query, username)
}

// GetByIDAndRole looks a user up by numeric ID, restricted to one role.
func (r *UserRepository) GetByIDAndRole(ctx context.Context, id int, role string) (types.User, error) {
	query := `SELECT ` + userColumns + `
		FROM users
		WHERE user_id = $1 AND role = $2`
	return r.getOne(ctx, query, id, role)
}

// GetByUsernameAndRole looks a user up by username, restricted to one role.
func (r *UserRepository) GetByUsernameAndRole(ctx context.Context, username, role string) (types.User, error) {
	query := `SELECT ` + userColumns + `
		FROM users
		WHERE username = $1 AND role = $2`
	return r.getOne(ctx, query, username, role)
}

// Create inserts a user and returns it with the generated ID and creation
// time. A taken username yields ErrConflict.
func (r *UserRepository) Create(ctx context.Context, user types.User) (types.User, error) {
	const query = `
		INSERT INTO users (username, email, password_hash, full_name, role, status, admin_status, created_at)
		VALUES ($1, NULLIF($2, ''), NULLIF($3, ''), $4, $5, NULLIF($6, ''), NULLIF($7, ''), NOW())
		RETURNING user_id, created_at`
	err := r.db.QueryRowContext(
		ctx,
		query,
		user.Username,
		user.Email,
		user.PasswordHash,
		user.FullName,
		user.Role,
		user.Status,
		user.AdminStatus,
	).Scan(&user.ID, &user.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return types.User{}, ErrConflict
		}
		return types.User{}, err
	}
	return user, nil
}

// ListPendingAdmins returns admin accounts awaiting approval, oldest first.
func (r *UserRepository) ListPendingAdmins(ctx context.Context) ([]types.User, error) {
	query := `SELECT ` + userColumns + `
		FROM users
		WHERE role = 'admin' AND admin_status = 'PENDING'
		ORDER BY created_at ASC, user_id ASC`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]types.User, 0)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan pending admin: %w", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}

// UpdateAdminStatus records an approval decision on an admin account.
// Returns ErrNotFound when userID is not an admin.
func (r *UserRepository) UpdateAdminStatus(ctx context.Context, userID int, status string, approvedBy int) error {
	const query = `
		UPDATE users
		SET admin_status = $1,
			approved_by = $2,
			approval_at = NOW()
		WHERE user_id = $3 AND role = 'admin'`
	result, err := r.db.ExecContext(ctx, query, status, approvedBy, userID)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
