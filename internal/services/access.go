package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/debugmarathon/apiserver/internal/auth"
	"github.com/debugmarathon/apiserver/internal/events"
	"github.com/debugmarathon/apiserver/internal/logging"
	"github.com/debugmarathon/apiserver/internal/metrics"
	"github.com/debugmarathon/apiserver/internal/store"
	"github.com/debugmarathon/apiserver/types"
)

// Background task names.
const (
	taskProctoringInit = "proctoring_init"
	taskJoinEvent      = "join_event"
)

// Admin approval actions.
const (
	ActionApprove = "APPROVE"
	ActionReject  = "REJECT"
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	GetByID(ctx context.Context, id int) (types.User, error)
	GetByUsername(ctx context.Context, username string) (types.User, error)
	GetByIDAndRole(ctx context.Context, id int, role string) (types.User, error)
	GetByUsernameAndRole(ctx context.Context, username, role string) (types.User, error)
	Create(ctx context.Context, user types.User) (types.User, error)
	ListPendingAdmins(ctx context.Context) ([]types.User, error)
	UpdateAdminStatus(ctx context.Context, userID int, status string, approvedBy int) error
}

// ContestRepository reads the live contest and its active round.
type ContestRepository interface {
	LiveContestID(ctx context.Context) (int, error)
	LowestActiveRound(ctx context.Context, contestID int) (int, error)
}

// ShortlistRepository reads level promotions.
type ShortlistRepository interface {
	IsAllowed(ctx context.Context, contestID, level, userID int) (bool, error)
}

// ProctoringRepository reads and seeds proctoring records.
type ProctoringRepository interface {
	IsDisqualified(ctx context.Context, participantID string) (bool, error)
	EnsureRecord(ctx context.Context, participantID string, userID, contestID int) (types.ProctoringRecord, bool, error)
}

// EventPublisher announces platform events.
type EventPublisher interface {
	ParticipantJoined(ctx context.Context, evt events.ParticipantJoined) error
}

// TaskRunner runs work after the response has been produced.
type TaskRunner interface {
	Submit(name string, run func(ctx context.Context) error) bool
}

// AccessGateDeps holds the collaborators of an AccessGate.
type AccessGateDeps struct {
	Users      UserRepository
	Contests   ContestRepository
	Shortlist  ShortlistRepository
	Proctoring ProctoringRepository
	Events     EventPublisher
	Tasks      TaskRunner

	Passwords *auth.PasswordVerifier
	Limiter   *auth.RateLimiter
	Tokens    *auth.TokenService
	Logger    *slog.Logger
}

// AccessGate implements the login, registration and approval flows.
type AccessGate struct {
	users      UserRepository
	contests   ContestRepository
	shortlist  ShortlistRepository
	proctoring ProctoringRepository
	events     EventPublisher
	tasks      TaskRunner

	passwords *auth.PasswordVerifier
	limiter   *auth.RateLimiter
	tokens    *auth.TokenService
	logger    *slog.Logger
}

func NewAccessGate(deps AccessGateDeps) *AccessGate {
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &AccessGate{
		users:      deps.Users,
		contests:   deps.Contests,
		shortlist:  deps.Shortlist,
		proctoring: deps.Proctoring,
		events:     deps.Events,
		tasks:      deps.Tasks,
		passwords:  deps.Passwords,
		limiter:    deps.Limiter,
		tokens:     deps.Tokens,
		logger:     logger.With("component", "access"),
	}
}

// ParticipantProfile is the participant view returned on login.
type ParticipantProfile struct {
	ID            int    `json:"id"`
	ParticipantID string `json:"participant_id"`
	Name          string `json:"name"`
	Status        string `json:"status"`
}

// ParticipantLoginResult is returned by a successful participant login.
type ParticipantLoginResult struct {
	Participant ParticipantProfile
	Token       string
	ContestID   int
	Level       int
}

// StaffProfile is the leader/admin view returned on login.
type StaffProfile struct {
	Username string `json:"username"`
	Name     string `json:"name"`
}

// StaffLoginResult is returned by a successful leader or admin login.
type StaffLoginResult struct {
	Role  string
	Token string
	User  StaffProfile
}

// AdminRegistration is a request to create a pending admin account.
type AdminRegistration struct {
	Username string
	Password string
	FullName string
	Email    string
}

// ParticipantLogin admits a participant by numeric ID or username. No
// password is involved; access is gated on status, proctoring state and the
// active contest level.
func (g *AccessGate) ParticipantLogin(ctx context.Context, participantID string) (ParticipantLoginResult, error) {
	res, err := g.participantLogin(ctx, strings.TrimSpace(participantID))
	metrics.RecordLogin(types.RoleParticipant, loginOutcome(err))
	return res, err
}

func (g *AccessGate) participantLogin(ctx context.Context, pid string) (ParticipantLoginResult, error) {
	if err := validateParticipantID(pid); err != nil {
		return ParticipantLoginResult{}, err
	}

	key := types.RoleParticipant + ":" + pid
	if err := g.checkRate(key); err != nil {
		return ParticipantLoginResult{}, err
	}

	user, err := g.lookupParticipant(ctx, pid)
	if err != nil {
		return ParticipantLoginResult{}, err
	}

	if user.Status == types.StatusDisqualified {
		return ParticipantLoginResult{}, auth.ErrForbidden("You have been disqualified for violations.")
	}

	disqualified, err := g.proctoring.IsDisqualified(ctx, user.Username)
	if err != nil {
		return ParticipantLoginResult{}, auth.Internal("check proctoring status", err)
	}
	if disqualified {
		return ParticipantLoginResult{}, auth.ErrForbidden("You have been permanently disqualified for proctoring violations.")
	}

	if user.Status == types.StatusHeld {
		return ParticipantLoginResult{}, auth.ErrForbidden("Your status is currently on hold. You have not qualified for the next level.")
	}

	round := g.activeRound(ctx)
	if round.Level > 1 {
		allowed, err := g.shortlist.IsAllowed(ctx, round.ContestID, round.Level, user.ID)
		if err != nil {
			return ParticipantLoginResult{}, auth.Internal("check shortlist", err)
		}
		if !allowed {
			return ParticipantLoginResult{}, auth.ErrForbidden(
				fmt.Sprintf("You have not been selected for Level %d. Access Denied.", round.Level))
		}
	}

	token, err := g.tokens.Issue(user.Username, types.RoleParticipant)
	if err != nil {
		return ParticipantLoginResult{}, err
	}
	g.limiter.Reset(key)

	g.afterParticipantLogin(user, round.ContestID)

	return ParticipantLoginResult{
		Participant: ParticipantProfile{
			ID:            user.ID,
			ParticipantID: user.Username,
			Name:          user.FullName,
			Status:        types.IdentityFromUser(user).Status,
		},
		Token:     token,
		ContestID: round.ContestID,
		Level:     round.Level,
	}, nil
}

func (g *AccessGate) lookupParticipant(ctx context.Context, pid string) (types.User, error) {
	var (
		user types.User
		err  error
	)
	if isNumericID(pid) {
		id, convErr := strconv.Atoi(pid)
		if convErr != nil {
			return types.User{}, auth.ErrNotFound("Participant not found")
		}
		user, err = g.users.GetByIDAndRole(ctx, id, types.RoleParticipant)
	} else {
		user, err = g.users.GetByUsernameAndRole(ctx, pid, types.RoleParticipant)
	}
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.User{}, auth.ErrNotFound("Participant not found")
		}
		return types.User{}, auth.Internal("lookup participant", err)
	}
	return user, nil
}

// activeRound resolves the live contest and its lowest active round. Lookup
// failures fall back to contest 1, level 1.
func (g *AccessGate) activeRound(ctx context.Context) types.ActiveRound {
	round := types.ActiveRound{ContestID: types.DefaultContestID, Level: 1}

	contestID, err := g.contests.LiveContestID(ctx)
	switch {
	case err == nil:
		round.ContestID = contestID
	case !errors.Is(err, store.ErrNotFound):
		logging.LogError(ctx, g.logger, "live contest lookup failed, using default", err)
	}

	level, err := g.contests.LowestActiveRound(ctx, round.ContestID)
	switch {
	case err == nil:
		round.Level = level
	case !errors.Is(err, store.ErrNotFound):
		logging.LogError(ctx, g.logger, "active round lookup failed, using default", err)
	}

	return round
}

// afterParticipantLogin schedules the best-effort side effects of a login.
func (g *AccessGate) afterParticipantLogin(user types.User, contestID int) {
	if g.tasks == nil {
		return
	}

	g.tasks.Submit(taskProctoringInit, func(ctx context.Context) error {
		_, _, err := g.proctoring.EnsureRecord(ctx, user.Username, user.ID, contestID)
		return err
	})

	if g.events != nil {
		evt := events.ParticipantJoined{
			ParticipantID: user.Username,
			Name:          user.FullName,
			ContestID:     contestID,
		}
		g.tasks.Submit(taskJoinEvent, func(ctx context.Context) error {
			return g.events.ParticipantJoined(ctx, evt)
		})
	}
}

// StaffLogin authenticates a leader or admin by username and password.
func (g *AccessGate) StaffLogin(ctx context.Context, role, username, password string) (StaffLoginResult, error) {
	res, err := g.staffLogin(ctx, role, strings.TrimSpace(username), password)
	metrics.RecordLogin(role, loginOutcome(err))
	return res, err
}

func (g *AccessGate) staffLogin(ctx context.Context, role, username, password string) (StaffLoginResult, error) {
	if role != types.RoleLeader && role != types.RoleAdmin {
		return StaffLoginResult{}, auth.ErrValidation("Invalid role")
	}
	if username == "" || password == "" {
		return StaffLoginResult{}, auth.ErrValidation("Username and Password are required")
	}

	key := role + ":" + username
	if err := g.checkRate(key); err != nil {
		return StaffLoginResult{}, err
	}

	user, err := g.users.GetByUsernameAndRole(ctx, username, role)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			return StaffLoginResult{}, auth.Internal("lookup "+role, err)
		}
		g.passwords.VerifyDummy(password)
		return StaffLoginResult{}, auth.ErrUnauthorized("Invalid credentials")
	}

	if !g.passwords.Verify(password, user.PasswordHash) {
		return StaffLoginResult{}, auth.ErrUnauthorized("Invalid credentials")
	}

	if err := checkStaffStatus(role, user.AdminStatus); err != nil {
		return StaffLoginResult{}, err
	}

	token, err := g.tokens.Issue(user.Username, role)
	if err != nil {
		return StaffLoginResult{}, err
	}
	g.limiter.Reset(key)

	g.logger.InfoContext(ctx, "staff login", "role", role, "username", user.Username)

	return StaffLoginResult{
		Role:  role,
		Token: token,
		User: StaffProfile{
			Username: user.Username,
			Name:     user.FullName,
		},
	}, nil
}

func checkStaffStatus(role, status string) error {
	if role == types.RoleLeader {
		if status != types.AdminStatusApproved {
			return auth.ErrForbidden("Your leader account is not approved.")
		}
		return nil
	}

	switch status {
	case types.AdminStatusApproved:
		return nil
	case types.AdminStatusRejected:
		return auth.ErrForbidden("Your admin request has been rejected.")
	default:
		return auth.ErrForbidden("Your admin request is pending approval.")
	}
}

// RegisterAdmin creates an admin account awaiting approval.
func (g *AccessGate) RegisterAdmin(ctx context.Context, req AdminRegistration) (types.User, error) {
	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(req.Email)
	req.FullName = strings.TrimSpace(req.FullName)

	if req.Username == "" || req.Password == "" || req.Email == "" {
		return types.User{}, auth.ErrValidation("Username, password and email are required")
	}
	if err := validateUsername(req.Username); err != nil {
		return types.User{}, err
	}
	if err := validateEmail(req.Email); err != nil {
		return types.User{}, err
	}
	if err := validatePassword(req.Password); err != nil {
		return types.User{}, err
	}
	if req.FullName == "" {
		req.FullName = req.Username
	}

	if _, err := g.users.GetByUsername(ctx, req.Username); err == nil {
		return types.User{}, auth.ErrConflict("Username already exists")
	} else if !errors.Is(err, store.ErrNotFound) {
		return types.User{}, auth.Internal("check username", err)
	}

	hashed, err := g.passwords.Hash(req.Password, auth.SchemePBKDF2)
	if err != nil {
		return types.User{}, auth.Internal("hash password", err)
	}

	user, err := g.users.Create(ctx, types.User{
		Username:     req.Username,
		Email:        req.Email,
		FullName:     req.FullName,
		Role:         types.RoleAdmin,
		PasswordHash: hashed,
		AdminStatus:  types.AdminStatusPending,
	})
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			return types.User{}, auth.ErrConflict("Username already exists")
		}
		return types.User{}, auth.Internal("create admin", err)
	}

	g.logger.InfoContext(ctx, "admin registration submitted", "username", user.Username, "user_id", user.ID)
	return user, nil
}

// ListPendingAdmins returns admin accounts awaiting a decision.
func (g *AccessGate) ListPendingAdmins(ctx context.Context) ([]types.User, error) {
	users, err := g.users.ListPendingAdmins(ctx)
	if err != nil {
		return nil, auth.Internal("list pending admins", err)
	}
	return users, nil
}

// ApproveAdmin records an approval decision by approver on the admin
// account targetID and returns the new status.
func (g *AccessGate) ApproveAdmin(ctx context.Context, approver types.Identity, targetID int, action string) (string, error) {
	var status string
	switch action {
	case ActionApprove:
		status = types.AdminStatusApproved
	case ActionReject:
		status = types.AdminStatusRejected
	default:
		return "", auth.ErrValidation("Invalid request")
	}
	if targetID <= 0 {
		return "", auth.ErrValidation("Invalid request")
	}
	if err := RequireRole(approver, types.RoleAdmin); err != nil {
		return "", err
	}

	if err := g.users.UpdateAdminStatus(ctx, targetID, status, approver.UserID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", auth.ErrNotFound("Admin account not found")
		}
		return "", auth.Internal("update admin status", err)
	}

	metrics.RecordAdminDecision(status)
	g.logger.InfoContext(ctx, "admin decision recorded",
		"approver", approver.Username,
		"target_id", targetID,
		"status", status,
	)
	return status, nil
}

// Logout is stateless: tokens stay valid until they expire. The caller is
// logged when the bearer token verifies.
func (g *AccessGate) Logout(ctx context.Context, authorization string) {
	raw, err := BearerToken(authorization)
	if err != nil {
		return
	}
	claims, err := g.tokens.Verify(raw)
	if err != nil {
		return
	}
	g.logger.InfoContext(ctx, "logout", "subject", claims.Subject, "role", claims.Role)
}

func (g *AccessGate) checkRate(key string) error {
	if g.limiter.Allowed(key) {
		return nil
	}
	retryAfter := g.limiter.RemainingSeconds(key)
	if retryAfter < 1 {
		retryAfter = 1
	}
	return auth.ErrRateLimited(retryAfter)
}

func loginOutcome(err error) string {
	if err == nil {
		return metrics.OutcomeSuccess
	}
	switch auth.Code(err) {
	case auth.CodeValidation:
		return metrics.OutcomeInvalid
	case auth.CodeRateLimited:
		return metrics.OutcomeRateLimited
	case auth.CodeUnauthorized:
		return metrics.OutcomeUnauthorized
	case auth.CodeForbidden:
		return metrics.OutcomeForbidden
	case auth.CodeNotFound:
		return metrics.OutcomeNotFound
	default:
		return metrics.OutcomeError
	}
}
