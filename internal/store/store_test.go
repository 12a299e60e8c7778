package store_test

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/debugmarathon/apiserver/internal/store"
	"github.com/debugmarathon/apiserver/types"
)

var userCols = []string{
	"user_id", "username", "full_name", "email", "role", "status", "password_hash",
	"admin_status", "approved_by", "approval_at", "created_at",
}

func newMock(t *testing.T) (sqlmock.Sqlmock, func() *store.UserRepository) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		_ = db.Close()
	})
	return mock, func() *store.UserRepository { return store.NewUserRepository(db) }
}

func TestUserRepository_GetByUsernameAndRole(t *testing.T) {
	mock, repo := newMock(t)
	created := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE username = $1 AND role = $2")).
		WithArgs("alice", types.RoleLeader).
		WillReturnRows(sqlmock.NewRows(userCols).AddRow(
			12, "alice", "Alice A", nil, "leader", nil, "pbkdf2:sha256:1000$salt$00",
			"APPROVED", nil, nil, created,
		))

	user, err := repo().GetByUsernameAndRole(context.Background(), "alice", types.RoleLeader)
	require.NoError(t, err)
	assert.Equal(t, 12, user.ID)
	assert.Equal(t, "Alice A", user.FullName)
	assert.Empty(t, user.Email)
	assert.Empty(t, user.Status)
	assert.Equal(t, types.AdminStatusApproved, user.AdminStatus)
	assert.Nil(t, user.ApprovedBy)
	assert.Nil(t, user.ApprovalAt)
	assert.Equal(t, created, user.CreatedAt)
}

func TestUserRepository_GetByIDAndRole_NullableColumns(t *testing.T) {
	mock, repo := newMock(t)
	approvedAt := time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE user_id = $1 AND role = $2")).
		WithArgs(5, types.RoleAdmin).
		WillReturnRows(sqlmock.NewRows(userCols).AddRow(
			5, "root", "Root", "root@example.com", "admin", nil, "hash",
			"APPROVED", int64(1), approvedAt, approvedAt,
		))

	user, err := repo().GetByIDAndRole(context.Background(), 5, types.RoleAdmin)
	require.NoError(t, err)
	require.NotNil(t, user.ApprovedBy)
	assert.Equal(t, 1, *user.ApprovedBy)
	require.NotNil(t, user.ApprovalAt)
	assert.Equal(t, approvedAt, *user.ApprovalAt)
	assert.Equal(t, "root@example.com", user.Email)
}

func TestUserRepository_NotFound(t *testing.T) {
	mock, repo := newMock(t)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE username = $1")).
		WithArgs("ghost").
		WillReturnRows(sqlmock.NewRows(userCols))

	_, err := repo().GetByUsername(context.Background(), "ghost")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestUserRepository_GetByID_DriverError(t *testing.T) {
	mock, repo := newMock(t)
	boom := errors.New("connection reset")

	mock.ExpectQuery(regexp.QuoteMeta("WHERE user_id = $1")).
		WithArgs(9).
		WillReturnError(boom)

	_, err := repo().GetByID(context.Background(), 9)
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, store.ErrNotFound)
}

func TestUserRepository_Create(t *testing.T) {
	mock, repo := newMock(t)
	created := time.Date(2024, 2, 2, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO users")).
		WithArgs("newadmin", "new@example.com", "pbkdf2:hash", "New Admin", "admin", "", "PENDING").
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "created_at"}).AddRow(42, created))

	user, err := repo().Create(context.Background(), types.User{
		Username:     "newadmin",
		Email:        "new@example.com",
		PasswordHash: "pbkdf2:hash",
		FullName:     "New Admin",
		Role:         types.RoleAdmin,
		AdminStatus:  types.AdminStatusPending,
	})
	require.NoError(t, err)
	assert.Equal(t, 42, user.ID)
	assert.Equal(t, created, user.CreatedAt)
	assert.Equal(t, types.AdminStatusPending, user.AdminStatus)
}

func TestUserRepository_CreateDuplicate(t *testing.T) {
	mock, repo := newMock(t)

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO users")).
		WillReturnError(&pq.Error{Code: "23505", Message: "duplicate key value violates unique constraint"})

	_, err := repo().Create(context.Background(), types.User{Username: "taken", Role: types.RoleAdmin})
	assert.ErrorIs(t, err, store.ErrConflict)
}

func TestUserRepository_ListPendingAdmins(t *testing.T) {
	mock, repo := newMock(t)
	now := time.Now().UTC()

	mock.ExpectQuery(regexp.QuoteMeta("WHERE role = 'admin' AND admin_status = 'PENDING'")).
		WillReturnRows(sqlmock.NewRows(userCols).
			AddRow(3, "p1", "P One", "p1@example.com", "admin", nil, "h", "PENDING", nil, nil, now).
			AddRow(4, "p2", nil, "p2@example.com", "admin", nil, "h", "PENDING", nil, nil, now))

	users, err := repo().ListPendingAdmins(context.Background())
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "p1", users[0].Username)
	assert.Equal(t, "", users[1].FullName)
}

func TestUserRepository_ListPendingAdmins_Empty(t *testing.T) {
	mock, repo := newMock(t)

	mock.ExpectQuery(regexp.QuoteMeta("admin_status = 'PENDING'")).
		WillReturnRows(sqlmock.NewRows(userCols))

	users, err := repo().ListPendingAdmins(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, users)
	assert.Empty(t, users)
}

func TestUserRepository_UpdateAdminStatus(t *testing.T) {
	mock, repo := newMock(t)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE users")).
		WithArgs(types.AdminStatusApproved, 1, 7).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE users")).
		WithArgs(types.AdminStatusRejected, 1, 99).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo().UpdateAdminStatus(context.Background(), 7, types.AdminStatusApproved, 1))
	err := repo().UpdateAdminStatus(context.Background(), 99, types.AdminStatusRejected, 1)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestContestRepository(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := store.NewContestRepository(db)
	ctx := context.Background()

	mock.ExpectQuery(regexp.QuoteMeta("FROM contests")).
		WillReturnRows(sqlmock.NewRows([]string{"contest_id"}).AddRow(3))
	id, err := repo.LiveContestID(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, id)

	mock.ExpectQuery(regexp.QuoteMeta("FROM contests")).
		WillReturnRows(sqlmock.NewRows([]string{"contest_id"}))
	_, err = repo.LiveContestID(ctx)
	assert.ErrorIs(t, err, store.ErrNotFound)

	mock.ExpectQuery(regexp.QuoteMeta("FROM rounds")).
		WithArgs(3).
		WillReturnRows(sqlmock.NewRows([]string{"round_number"}).AddRow(2))
	level, err := repo.LowestActiveRound(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, 2, level)

	mock.ExpectQuery(regexp.QuoteMeta("FROM rounds")).
		WithArgs(4).
		WillReturnRows(sqlmock.NewRows([]string{"round_number"}))
	_, err = repo.LowestActiveRound(ctx, 4)
	assert.ErrorIs(t, err, store.ErrNotFound)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestShortlistRepository_IsAllowed(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := store.NewShortlistRepository(db)
	ctx := context.Background()

	mock.ExpectQuery(regexp.QuoteMeta("FROM shortlisted_participants")).
		WithArgs(1, 2, 77).
		WillReturnRows(sqlmock.NewRows([]string{"is_allowed"}).AddRow(true))
	allowed, err := repo.IsAllowed(ctx, 1, 2, 77)
	require.NoError(t, err)
	assert.True(t, allowed)

	mock.ExpectQuery(regexp.QuoteMeta("FROM shortlisted_participants")).
		WithArgs(1, 3, 77).
		WillReturnRows(sqlmock.NewRows([]string{"is_allowed"}))
	allowed, err = repo.IsAllowed(ctx, 1, 3, 77)
	require.NoError(t, err)
	assert.False(t, allowed)

	mock.ExpectQuery(regexp.QuoteMeta("FROM shortlisted_participants")).
		WillReturnError(errors.New("timeout"))
	_, err = repo.IsAllowed(ctx, 1, 4, 77)
	assert.Error(t, err)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProctoringRepository_IsDisqualified(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := store.NewProctoringRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM participant_proctoring")).
		WithArgs("SHCCSGF001").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	disqualified, err := repo.IsDisqualified(context.Background(), "SHCCSGF001")
	require.NoError(t, err)
	assert.True(t, disqualified)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProctoringRepository_EnsureRecord(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := store.NewProctoringRepository(db)
	ctx := context.Background()
	now := time.Now().UTC()

	t.Run("creates", func(t *testing.T) {
		mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO participant_proctoring")).
			WithArgs(sqlmock.AnyArg(), "SHCCSGF001", 77, 1, "low").
			WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(now))

		record, created, err := repo.EnsureRecord(ctx, "SHCCSGF001", 77, 1)
		require.NoError(t, err)
		assert.True(t, created)
		_, err = uuid.Parse(record.ID)
		assert.NoError(t, err)
		assert.Equal(t, "low", record.RiskLevel)
		assert.Zero(t, record.TotalViolations)
		assert.False(t, record.IsDisqualified)
	})

	t.Run("keeps existing", func(t *testing.T) {
		existingID := uuid.NewString()
		mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO participant_proctoring")).
			WillReturnRows(sqlmock.NewRows([]string{"created_at"}))
		mock.ExpectQuery(regexp.QuoteMeta("WHERE participant_id = $1 AND contest_id = $2")).
			WithArgs("SHCCSGF001", 1).
			WillReturnRows(sqlmock.NewRows([]string{
				"id", "participant_id", "user_id", "contest_id", "total_violations", "violation_score",
				"risk_level", "is_disqualified", "created_at",
			}).AddRow(existingID, "SHCCSGF001", 77, 1, 2, 15, "medium", false, now))

		record, created, err := repo.EnsureRecord(ctx, "SHCCSGF001", 77, 1)
		require.NoError(t, err)
		assert.False(t, created)
		assert.Equal(t, existingID, record.ID)
		assert.Equal(t, 2, record.TotalViolations)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}
