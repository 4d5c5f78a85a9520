package application

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/example/festival-programs/internal/festival"
	"github.com/example/festival-programs/internal/persistence"
)

var testNow = time.Date(2024, time.January, 2, 15, 4, 5, 0, time.UTC)

func fixedNow() time.Time { return testNow }

type userRepoStub struct {
	mu     sync.Mutex
	users  map[int64]festival.User
	nextID int64
	saves  int

	saveErr error
}

func newUserRepoStub(users ...festival.User) *userRepoStub {
	r := &userRepoStub{users: make(map[int64]festival.User), nextID: 100}
	for _, u := range users {
		r.users[u.ID] = u
	}
	return r
}

func (r *userRepoStub) GetUser(ctx context.Context, id int64) (festival.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return festival.User{}, persistence.ErrNotFound
	}
	return u, nil
}

func (r *userRepoStub) GetUserByUsername(ctx context.Context, username string) (festival.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Username == username {
			return u, nil
		}
	}
	return festival.User{}, persistence.ErrNotFound
}

func (r *userRepoStub) SaveUser(ctx context.Context, user festival.User) (festival.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.saveErr != nil {
		return festival.User{}, r.saveErr
	}
	if user.ID == 0 {
		r.nextID++
		user.ID = r.nextID
	}
	r.users[user.ID] = user
	r.saves++
	return user, nil
}

func (r *userRepoStub) UsernameExists(ctx context.Context, username string, excludeID int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if strings.EqualFold(u.Username, username) && u.ID != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (r *userRepoStub) DeleteUser(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[id]; !ok {
		return persistence.ErrNotFound
	}
	delete(r.users, id)
	return nil
}

func (r *userRepoStub) ListUsers(ctx context.Context) ([]festival.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]festival.User, 0, len(r.users))
	for _, u := range r.users {
		out = append(out, u)
	}
	return out, nil
}

func (r *userRepoStub) get(id int64) festival.User {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.users[id]
}

type programRepoStub struct {
	mu       sync.Mutex
	programs map[int64]festival.ProgramSnapshot
	nextID   int64
}

func newProgramRepoStub() *programRepoStub {
	return &programRepoStub{programs: make(map[int64]festival.ProgramSnapshot)}
}

func (r *programRepoStub) GetProgram(ctx context.Context, id int64) (*festival.Program, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	snap, ok := r.programs[id]
	if !ok {
		return nil, persistence.ErrNotFound
	}
	return festival.RehydrateProgram(snap), nil
}

func (r *programRepoStub) SaveProgram(ctx context.Context, program *festival.Program) (*festival.Program, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	snap := program.Snapshot()
	if snap.ID == 0 {
		r.nextID++
		snap.ID = r.nextID
	}
	r.programs[snap.ID] = snap
	return festival.RehydrateProgram(snap), nil
}

func (r *programRepoStub) DeleteProgram(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.programs[id]; !ok {
		return persistence.ErrNotFound
	}
	delete(r.programs, id)
	return nil
}

func (r *programRepoStub) ProgramNameExists(ctx context.Context, name string, excludeID int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, snap := range r.programs {
		if id != excludeID && strings.EqualFold(snap.Name, name) {
			return true, nil
		}
	}
	return false, nil
}

func (r *programRepoStub) SearchPrograms(ctx context.Context, filter ProgramFilter) ([]*festival.Program, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*festival.Program
	for _, snap := range r.programs {
		if filter.NameContains != "" && !strings.Contains(strings.ToLower(snap.Name), strings.ToLower(filter.NameContains)) {
			continue
		}
		if filter.State != "" && snap.State != filter.State {
			continue
		}
		out = append(out, festival.RehydrateProgram(snap))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out, nil
}

// put stores a program directly, bypassing guards, and returns its id.
func (r *programRepoStub) put(snap festival.ProgramSnapshot) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	if snap.ID == 0 {
		r.nextID++
		snap.ID = r.nextID
	}
	if snap.Name == "" {
		snap.Name = fmt.Sprintf("Program %d", snap.ID)
	}
	r.programs[snap.ID] = snap
	return snap.ID
}

type screeningRepoStub struct {
	mu         sync.Mutex
	screenings map[int64]festival.ScreeningSnapshot
	nextID     int64
	deleted    []int64
}

func newScreeningRepoStub() *screeningRepoStub {
	return &screeningRepoStub{screenings: make(map[int64]festival.ScreeningSnapshot)}
}

func (r *screeningRepoStub) GetScreening(ctx context.Context, id int64) (*festival.Screening, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	snap, ok := r.screenings[id]
	if !ok {
		return nil, persistence.ErrNotFound
	}
	return festival.RehydrateScreening(snap), nil
}

func (r *screeningRepoStub) SaveScreening(ctx context.Context, screening *festival.Screening) (*festival.Screening, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	snap := screening.Snapshot()
	if snap.ID == 0 {
		r.nextID++
		snap.ID = r.nextID
	}
	r.screenings[snap.ID] = snap
	return festival.RehydrateScreening(snap), nil
}

func (r *screeningRepoStub) DeleteScreening(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.screenings[id]; !ok {
		return persistence.ErrNotFound
	}
	delete(r.screenings, id)
	r.deleted = append(r.deleted, id)
	return nil
}

func (r *screeningRepoStub) ListScreenings(ctx context.Context, filter ScreeningFilter) ([]*festival.Screening, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*festival.Screening
	for _, snap := range r.screenings {
		switch {
		case filter.ProgramID != 0 && snap.ProgramID != filter.ProgramID,
			filter.SubmitterID != 0 && snap.SubmitterID != filter.SubmitterID,
			filter.HandlerID != 0 && snap.HandlerID != filter.HandlerID,
			filter.State != "" && snap.State != filter.State:
			continue
		}
		out = append(out, festival.RehydrateScreening(snap))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out, nil
}

func (r *screeningRepoStub) HasSubmissions(ctx context.Context, programID, userID int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, snap := range r.screenings {
		if snap.ProgramID == programID && snap.SubmitterID == userID {
			return true, nil
		}
	}
	return false, nil
}

func (r *screeningRepoStub) put(snap festival.ScreeningSnapshot) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	if snap.ID == 0 {
		r.nextID++
		snap.ID = r.nextID
	}
	r.screenings[snap.ID] = snap
	return snap.ID
}

func (r *screeningRepoStub) get(id int64) festival.ScreeningSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.screenings[id]
}

type auditRepoStub struct {
	mu      sync.Mutex
	entries []AuditEntry
	err     error
}

func (r *auditRepoStub) AppendAudit(ctx context.Context, entry AuditEntry) (AuditEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return AuditEntry{}, r.err
	}
	entry.ID = int64(len(r.entries) + 1)
	r.entries = append(r.entries, entry)
	return entry, nil
}

func (r *auditRepoStub) ListAudit(ctx context.Context, limit int) ([]AuditEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]AuditEntry, 0, len(r.entries))
	for i := len(r.entries) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, r.entries[i])
	}
	return out, nil
}

func (r *auditRepoStub) actions() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.entries))
	for i, e := range r.entries {
		out[i] = e.Action
	}
	return out
}

func (r *auditRepoStub) has(action string) bool {
	for _, a := range r.actions() {
		if a == action {
			return true
		}
	}
	return false
}

// plainHasher stores passwords with a visible prefix so tests stay fast.
type plainHasher struct{}

func (plainHasher) Hash(raw string) (string, error) { return "plain:" + raw, nil }
func (plainHasher) Matches(raw, hash string) bool  { return hash == "plain:"+raw }

type tokenIssuerStub struct {
	mu          sync.Mutex
	seq         int
	claims      map[string]TokenClaims
	revoked     map[string]bool
	expired     map[string]bool
	revokedErr  error
	invalidated []string
}

func newTokenIssuerStub() *tokenIssuerStub {
	return &tokenIssuerStub{
		claims:  make(map[string]TokenClaims),
		revoked: make(map[string]bool),
		expired: make(map[string]bool),
	}
}

func (t *tokenIssuerStub) Issue(ctx context.Context, user festival.User) (IssuedToken, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.seq++
	id := fmt.Sprintf("jti-%d", t.seq)
	token := fmt.Sprintf("token-%d", t.seq)
	t.claims[token] = TokenClaims{UserID: user.ID, Username: user.Username, TokenID: id, ExpiresAt: testNow.Add(time.Hour)}
	return IssuedToken{Token: token, ID: id, ExpiresAt: testNow.Add(time.Hour)}, nil
}

func (t *tokenIssuerStub) Parse(ctx context.Context, token string) (TokenClaims, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.expired[token] {
		return TokenClaims{}, ErrSessionExpired
	}
	claims, ok := t.claims[token]
	if !ok {
		return TokenClaims{}, ErrInvalidCredentials
	}
	return claims, nil
}

func (t *tokenIssuerStub) Invalidate(ctx context.Context, token string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.revoked[token] = true
	t.invalidated = append(t.invalidated, token)
	return nil
}

func (t *tokenIssuerStub) IsInvalidated(ctx context.Context, token string) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.revokedErr != nil {
		return false, t.revokedErr
	}
	return t.revoked[token], nil
}

func activeUser(id int64, username string, role festival.Role) festival.User {
	return festival.User{
		ID:           id,
		Username:     username,
		FullName:     "Test " + username,
		PasswordHash: "plain:Str0ng!Passw0rd",
		Role:         role,
		Active:       true,
		CreatedAt:    testNow,
		UpdatedAt:    testNow,
	}
}

func principalOf(u festival.User) Principal {
	return Principal{UserID: u.ID, Role: u.Role}
}
