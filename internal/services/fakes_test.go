package services_test

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/debugmarathon/apiserver/internal/events"
	"github.com/debugmarathon/apiserver/internal/store"
	"github.com/debugmarathon/apiserver/types"
)

type fakeUsers struct {
	mu     sync.Mutex
	nextID int
	byID   map[int]types.User
	err    error
}

func newFakeUsers(users ...types.User) *fakeUsers {
	f := &fakeUsers{nextID: 1000, byID: make(map[int]types.User)}
	for _, u := range users {
		f.byID[u.ID] = u
	}
	return f
}

func (f *fakeUsers) find(match func(types.User) bool) (types.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return types.User{}, f.err
	}
	for _, u := range f.byID {
		if match(u) {
			return u, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (f *fakeUsers) GetByID(_ context.Context, id int) (types.User, error) {
	return f.find(func(u types.User) bool { return u.ID == id })
}

func (f *fakeUsers) GetByUsername(_ context.Context, username string) (types.User, error) {
	return f.find(func(u types.User) bool { return u.Username == username })
}

func (f *fakeUsers) GetByIDAndRole(_ context.Context, id int, role string) (types.User, error) {
	return f.find(func(u types.User) bool { return u.ID == id && u.Role == role })
}

func (f *fakeUsers) GetByUsernameAndRole(_ context.Context, username, role string) (types.User, error) {
	return f.find(func(u types.User) bool { return u.Username == username && u.Role == role })
}

func (f *fakeUsers) Create(_ context.Context, user types.User) (types.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return types.User{}, f.err
	}
	for _, u := range f.byID {
		if u.Username == user.Username {
			return types.User{}, store.ErrConflict
		}
	}
	f.nextID++
	user.ID = f.nextID
	user.CreatedAt = time.Now()
	f.byID[user.ID] = user
	return user, nil
}

func (f *fakeUsers) ListPendingAdmins(_ context.Context) ([]types.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	out := make([]types.User, 0)
	for _, u := range f.byID {
		if u.Role == types.RoleAdmin && u.AdminStatus == types.AdminStatusPending {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeUsers) UpdateAdminStatus(_ context.Context, userID int, status string, approvedBy int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	u, ok := f.byID[userID]
	if !ok || u.Role != types.RoleAdmin {
		return store.ErrNotFound
	}
	now := time.Now()
	u.AdminStatus = status
	u.ApprovedBy = &approvedBy
	u.ApprovalAt = &now
	f.byID[userID] = u
	return nil
}

func (f *fakeUsers) get(id int) types.User {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.byID[id]
}

func (f *fakeUsers) put(u types.User) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byID[u.ID] = u
}

func (f *fakeUsers) delete(id int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.byID, id)
}

type fakeContests struct {
	liveID   int
	level    int
	liveErr  error
	roundErr error
}

func (f *fakeContests) LiveContestID(context.Context) (int, error) {
	if f.liveErr != nil {
		return 0, f.liveErr
	}
	if f.liveID == 0 {
		return 0, store.ErrNotFound
	}
	return f.liveID, nil
}

func (f *fakeContests) LowestActiveRound(context.Context, int) (int, error) {
	if f.roundErr != nil {
		return 0, f.roundErr
	}
	if f.level == 0 {
		return 0, store.ErrNotFound
	}
	return f.level, nil
}

type shortlistKey struct{ contest, level, user int }

type fakeShortlist struct {
	allowed map[shortlistKey]bool
	err     error
	calls   int
}

func (f *fakeShortlist) IsAllowed(_ context.Context, contestID, level, userID int) (bool, error) {
	f.calls++
	if f.err != nil {
		return false, f.err
	}
	return f.allowed[shortlistKey{contestID, level, userID}], nil
}

type ensureCall struct {
	participantID string
	userID        int
	contestID     int
}

type fakeProctoring struct {
	mu           sync.Mutex
	disqualified map[string]bool
	checkErr     error
	ensureErr    error
	ensured      []ensureCall
}

func (f *fakeProctoring) IsDisqualified(_ context.Context, participantID string) (bool, error) {
	if f.checkErr != nil {
		return false, f.checkErr
	}
	return f.disqualified[participantID], nil
}

func (f *fakeProctoring) EnsureRecord(_ context.Context, participantID string, userID, contestID int) (types.ProctoringRecord, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ensured = append(f.ensured, ensureCall{participantID, userID, contestID})
	if f.ensureErr != nil {
		return types.ProctoringRecord{}, false, f.ensureErr
	}
	return types.ProctoringRecord{ParticipantID: participantID, UserID: userID, ContestID: contestID, RiskLevel: "low"}, true, nil
}

type fakeEvents struct {
	mu     sync.Mutex
	joined []events.ParticipantJoined
	err    error
}

func (f *fakeEvents) ParticipantJoined(_ context.Context, evt events.ParticipantJoined) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.joined = append(f.joined, evt)
	return f.err
}

// syncRunner runs submitted tasks inline and remembers their outcome.
type syncRunner struct {
	names  []string
	errors []error
}

func (r *syncRunner) Submit(name string, run func(ctx context.Context) error) bool {
	r.names = append(r.names, name)
	r.errors = append(r.errors, run(context.Background()))
	return true
}
