package testfixtures

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/example/festival-programs/internal/festival"
	"github.com/example/festival-programs/internal/persistence"
)

var (
	userCounter      uint64
	programCounter   uint64
	screeningCounter uint64
)

var referenceTime = time.Date(2024, time.January, 2, 15, 4, 5, 0, time.UTC)

// ReferenceTime returns the canonical baseline timestamp used by fixtures.
func ReferenceTime() time.Time {
	return referenceTime
}

// ----------------------------- User fixtures -----------------------------

// UserFixture represents a deterministic account that can be materialised
// for domain or persistence tests. ID stays zero unless overridden so the
// persistence form can be inserted directly.
type UserFixture struct {
	ID             int64
	Username       string
	FullName       string
	PasswordHash   string
	Role           festival.Role
	Active         bool
	FailedAttempts int
	CurrentTokenID string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// UserOption configures the generated user fixture.
type UserOption func(*UserFixture)

// NewUserFixture returns a deterministic active user fixture with optional overrides.
func NewUserFixture(opts ...UserOption) UserFixture {
	idx := atomic.AddUint64(&userCounter, 1)
	created := referenceTime.Add(time.Duration(idx) * time.Minute)
	fixture := UserFixture{
		Username:     fmt.Sprintf("user_%03d", idx),
		FullName:     fmt.Sprintf("User %03d", idx),
		PasswordHash: fmt.Sprintf("hash-%03d", idx),
		Role:         festival.RoleUser,
		Active:       true,
		CreatedAt:    created,
		UpdatedAt:    created,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithUserID overrides the user ID.
func WithUserID(id int64) UserOption {
	return func(f *UserFixture) {
		f.ID = id
	}
}

// WithUsername overrides the generated username.
func WithUsername(username string) UserOption {
	return func(f *UserFixture) {
		f.Username = username
	}
}

// WithUserPasswordHash overrides the generated password hash.
func WithUserPasswordHash(hash string) UserOption {
	return func(f *UserFixture) {
		f.PasswordHash = hash
	}
}

// WithUserRole sets the role on the generated fixture.
func WithUserRole(role festival.Role) UserOption {
	return func(f *UserFixture) {
		f.Role = role
	}
}

// WithUserInactive marks the account as not yet activated.
func WithUserInactive() UserOption {
	return func(f *UserFixture) {
		f.Active = false
	}
}

// WithUserFailedAttempts sets the failed login counter.
func WithUserFailedAttempts(n int) UserOption {
	return func(f *UserFixture) {
		f.FailedAttempts = n
	}
}

// WithUserTimestamps sets both created and updated timestamps on the fixture.
func WithUserTimestamps(created, updated time.Time) UserOption {
	return func(f *UserFixture) {
		f.CreatedAt = created
		f.UpdatedAt = updated
	}
}

// Domain converts the fixture into the domain account.
func (f UserFixture) Domain() festival.User {
	return festival.User{
		ID:             f.ID,
		Username:       f.Username,
		PasswordHash:   f.PasswordHash,
		FullName:       f.FullName,
		Role:           f.Role,
		Active:         f.Active,
		FailedAttempts: f.FailedAttempts,
		CurrentTokenID: f.CurrentTokenID,
		CreatedAt:      f.CreatedAt,
		UpdatedAt:      f.UpdatedAt,
	}
}

// Persistence converts the fixture into its stored form.
func (f UserFixture) Persistence() persistence.User {
	return persistence.User{
		ID:             f.ID,
		Username:       f.Username,
		FullName:       f.FullName,
		PasswordHash:   f.PasswordHash,
		Role:           f.Role.String(),
		Active:         f.Active,
		FailedAttempts: f.FailedAttempts,
		CurrentTokenID: f.CurrentTokenID,
		CreatedAt:      f.CreatedAt,
		UpdatedAt:      f.UpdatedAt,
	}
}

// ---------------------------- Program fixtures ----------------------------

// ProgramFixture describes a program with its role sets.
type ProgramFixture struct {
	ID          int64
	Name        string
	Description string
	StartDate   time.Time
	EndDate     time.Time
	State       festival.ProgramState
	CreatorID   int64
	Programmers []int64
	Staff       []int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ProgramOption configures the generated program fixture.
type ProgramOption func(*ProgramFixture)

// NewProgramFixture returns a program in CREATED owned by creatorID, which is
// also its only programmer. The festival week starts a month after the
// reference time.
func NewProgramFixture(creatorID int64, opts ...ProgramOption) ProgramFixture {
	idx := atomic.AddUint64(&programCounter, 1)
	start := referenceTime.AddDate(0, 1, int(idx))
	fixture := ProgramFixture{
		Name:        fmt.Sprintf("Program %03d", idx),
		Description: fmt.Sprintf("Festival program %03d", idx),
		StartDate:   start,
		EndDate:     start.AddDate(0, 0, 7),
		State:       festival.ProgramCreated,
		CreatorID:   creatorID,
		Programmers: []int64{creatorID},
		CreatedAt:   referenceTime,
		UpdatedAt:   referenceTime,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithProgramID overrides the program ID.
func WithProgramID(id int64) ProgramOption {
	return func(f *ProgramFixture) {
		f.ID = id
	}
}

// WithProgramName overrides the generated name.
func WithProgramName(name string) ProgramOption {
	return func(f *ProgramFixture) {
		f.Name = name
	}
}

// WithProgramState sets the lifecycle state.
func WithProgramState(state festival.ProgramState) ProgramOption {
	return func(f *ProgramFixture) {
		f.State = state
	}
}

// WithProgramDates overrides the festival window.
func WithProgramDates(start, end time.Time) ProgramOption {
	return func(f *ProgramFixture) {
		f.StartDate = start
		f.EndDate = end
	}
}

// WithProgrammers adds programmers next to the creator.
func WithProgrammers(ids ...int64) ProgramOption {
	return func(f *ProgramFixture) {
		f.Programmers = append(f.Programmers, ids...)
	}
}

// WithStaff sets the staff members.
func WithStaff(ids ...int64) ProgramOption {
	return func(f *ProgramFixture) {
		f.Staff = append([]int64(nil), ids...)
	}
}

// Domain rehydrates the fixture as a domain aggregate.
func (f ProgramFixture) Domain() *festival.Program {
	return festival.RehydrateProgram(festival.ProgramSnapshot{
		ID:          f.ID,
		Name:        f.Name,
		Description: f.Description,
		StartDate:   f.StartDate,
		EndDate:     f.EndDate,
		State:       f.State,
		CreatorID:   f.CreatorID,
		Programmers: append([]int64(nil), f.Programmers...),
		Staff:       append([]int64(nil), f.Staff...),
		CreatedAt:   f.CreatedAt,
		UpdatedAt:   f.UpdatedAt,
	})
}

// Persistence converts the fixture into its stored form.
func (f ProgramFixture) Persistence() persistence.Program {
	return persistence.Program{
		ID:          f.ID,
		Name:        f.Name,
		Description: f.Description,
		StartDate:   f.StartDate,
		EndDate:     f.EndDate,
		State:       string(f.State),
		CreatorID:   f.CreatorID,
		Programmers: append([]int64(nil), f.Programmers...),
		Staff:       append([]int64(nil), f.Staff...),
		CreatedAt:   f.CreatedAt,
		UpdatedAt:   f.UpdatedAt,
	}
}

// --------------------------- Screening fixtures ---------------------------

// ScreeningFixture describes a submission.
type ScreeningFixture struct {
	ID          int64
	ProgramID   int64
	SubmitterID int64
	HandlerID   int64
	Title       string
	Genre       string
	Description string
	State       festival.ScreeningState
	Score       *int
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ScreeningOption configures the generated screening fixture.
type ScreeningOption func(*ScreeningFixture)

// NewScreeningFixture returns a titled draft in CREATED.
func NewScreeningFixture(programID, submitterID int64, opts ...ScreeningOption) ScreeningFixture {
	idx := atomic.AddUint64(&screeningCounter, 1)
	fixture := ScreeningFixture{
		ProgramID:   programID,
		SubmitterID: submitterID,
		Title:       fmt.Sprintf("Film %03d", idx),
		Genre:       "Drama",
		Description: fmt.Sprintf("Synopsis %03d", idx),
		State:       festival.ScreeningCreated,
		CreatedAt:   referenceTime,
		UpdatedAt:   referenceTime,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithScreeningID overrides the screening ID.
func WithScreeningID(id int64) ScreeningOption {
	return func(f *ScreeningFixture) {
		f.ID = id
	}
}

// WithScreeningState sets the lifecycle state.
func WithScreeningState(state festival.ScreeningState) ScreeningOption {
	return func(f *ScreeningFixture) {
		f.State = state
	}
}

// WithHandler assigns a staff handler.
func WithHandler(id int64) ScreeningOption {
	return func(f *ScreeningFixture) {
		f.HandlerID = id
	}
}

// WithScore records a review score.
func WithScore(score int) ScreeningOption {
	return func(f *ScreeningFixture) {
		f.Score = &score
	}
}

// Domain rehydrates the fixture as a domain aggregate.
func (f ScreeningFixture) Domain() *festival.Screening {
	return festival.RehydrateScreening(festival.ScreeningSnapshot{
		ID:          f.ID,
		ProgramID:   f.ProgramID,
		SubmitterID: f.SubmitterID,
		HandlerID:   f.HandlerID,
		Title:       f.Title,
		Genre:       f.Genre,
		Description: f.Description,
		State:       f.State,
		Score:       cloneInt(f.Score),
		CreatedAt:   f.CreatedAt,
		UpdatedAt:   f.UpdatedAt,
	})
}

// Persistence converts the fixture into its stored form.
func (f ScreeningFixture) Persistence() persistence.Screening {
	var handler *int64
	if f.HandlerID != 0 {
		id := f.HandlerID
		handler = &id
	}
	return persistence.Screening{
		ID:          f.ID,
		ProgramID:   f.ProgramID,
		SubmitterID: f.SubmitterID,
		HandlerID:   handler,
		Title:       f.Title,
		Genre:       f.Genre,
		Description: f.Description,
		State:       string(f.State),
		Score:       cloneInt(f.Score),
		CreatedAt:   f.CreatedAt,
		UpdatedAt:   f.UpdatedAt,
	}
}

func cloneInt(value *int) *int {
	if value == nil {
		return nil
	}
	clone := *value
	return &clone
}
