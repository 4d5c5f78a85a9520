package application

import (
	"time"

	"github.com/example/festival-programs/internal/festival"
)

// Principal represents the authenticated user invoking a service method.
// The zero value is an anonymous caller.
type Principal struct {
	UserID int64
	Role   festival.Role
}

// Authenticated reports whether the principal carries a verified user.
func (p Principal) Authenticated() bool { return p.UserID > 0 }

func (p Principal) IsAdmin() bool { return p.Authenticated() && p.Role.IsAdmin() }

// Page is one slice of a paged listing.
type Page[T any] struct {
	Items  []T
	Total  int
	Offset int
	Limit  int
}

const (
	defaultPageLimit = 50
	maxPageLimit     = 200
)

// clampPage normalises offset and limit to 0.. and 1..maxPageLimit.
func clampPage(offset, limit int) (int, int) {
	if offset < 0 {
		offset = 0
	}
	switch {
	case limit <= 0:
		limit = defaultPageLimit
	case limit > maxPageLimit:
		limit = maxPageLimit
	}
	return offset, limit
}

func paginate[T any](items []T, offset, limit int) Page[T] {
	offset, limit = clampPage(offset, limit)
	page := Page[T]{Total: len(items), Offset: offset, Limit: limit}
	if offset >= len(items) {
		page.Items = []T{}
		return page
	}
	end := offset + limit
	if end > len(items) {
		end = len(items)
	}
	page.Items = items[offset:end]
	return page
}

// ProgramInput captures caller provided program fields.
type ProgramInput struct {
	Name        string
	Description string
	StartDate   time.Time
	EndDate     time.Time
}

func (in ProgramInput) info() festival.ProgramInfo {
	return festival.ProgramInfo{
		Name:        in.Name,
		Description: in.Description,
		StartDate:   in.StartDate,
		EndDate:     in.EndDate,
	}
}

// CreateProgramParams wraps the data required to create a program.
type CreateProgramParams struct {
	Principal Principal
	Input     ProgramInput
}

// UpdateProgramParams wraps the data required to update a program.
type UpdateProgramParams struct {
	Principal Principal
	ProgramID int64
	Input     ProgramInput
}

// ChangeProgramStateParams requests a phase change.
type ChangeProgramStateParams struct {
	Principal Principal
	ProgramID int64
	State     festival.ProgramState
}

// MembershipParams names a program member to add or remove.
type MembershipParams struct {
	Principal Principal
	ProgramID int64
	UserID    int64
}

// SearchProgramsParams filters a program listing. Zero values disable a filter.
type SearchProgramsParams struct {
	Principal   Principal
	Name        string
	State       festival.ProgramState
	StartsAfter *time.Time
	EndsBefore  *time.Time
	Offset      int
	Limit       int
}

// ProgramFilter narrows queries issued to the program repository.
type ProgramFilter struct {
	NameContains string
	State        festival.ProgramState
	StartsAfter  *time.Time
	EndsBefore   *time.Time
}

// ScreeningInput captures the submitter editable screening fields.
type ScreeningInput struct {
	Title       string
	Genre       string
	Description string
}

func (in ScreeningInput) draft() festival.ScreeningDraft {
	return festival.ScreeningDraft{Title: in.Title, Genre: in.Genre, Description: in.Description}
}

// CreateScreeningParams wraps the data required to create a screening draft.
type CreateScreeningParams struct {
	Principal Principal
	ProgramID int64
	Input     ScreeningInput
}

// UpdateScreeningParams wraps the data required to edit a draft.
type UpdateScreeningParams struct {
	Principal   Principal
	ScreeningID int64
	Input       ScreeningInput
}

// ScreeningActionParams identifies a screening acted on without extra data.
type ScreeningActionParams struct {
	Principal   Principal
	ScreeningID int64
}

// AssignHandlerParams names the staff member who will review a screening.
type AssignHandlerParams struct {
	Principal   Principal
	ScreeningID int64
	HandlerID   int64
}

// ReviewScreeningParams carries the handler's verdict.
type ReviewScreeningParams struct {
	Principal   Principal
	ScreeningID int64
	Score       int
	Comments    string
}

// RejectScreeningParams carries the rejection reason.
type RejectScreeningParams struct {
	Principal   Principal
	ScreeningID int64
	Reason      string
}

// ScheduleScreeningParams places a screening in the timetable.
type ScheduleScreeningParams struct {
	Principal   Principal
	ScreeningID int64
	Date        time.Time
	Room        string
}

// ScreeningSort selects the order of screening searches.
type ScreeningSort string

const (
	// ScreeningSortGenre orders by genre, then title.
	ScreeningSortGenre ScreeningSort = "genre"
	// ScreeningSortTimetable orders by scheduled date, then room, then title.
	ScreeningSortTimetable ScreeningSort = "timetable"
)

// SearchScreeningsParams filters screenings of one program. Title and Genre
// hold space separated words that must all match.
type SearchScreeningsParams struct {
	Principal     Principal
	ProgramID     int64
	Title         string
	Genre         string
	State         festival.ScreeningState
	ScheduledFrom *time.Time
	ScheduledTo   *time.Time
	Sort          ScreeningSort
	Offset        int
	Limit         int
}

// ListScreeningsParams pages through the caller's own or assigned screenings.
type ListScreeningsParams struct {
	Principal Principal
	Offset    int
	Limit     int
}

// ScreeningFilter narrows queries issued to the screening repository. A zero
// Limit returns every match.
type ScreeningFilter struct {
	ProgramID   int64
	SubmitterID int64
	HandlerID   int64
	State       festival.ScreeningState
	Offset      int
	Limit       int
}

// RegisterParams captures a self-registration request.
type RegisterParams struct {
	Username string
	Password string
	FullName string
}

// CreateUserParams wraps the data required for an administrator to create a user.
type CreateUserParams struct {
	Principal Principal
	Username  string
	Password  string
	FullName  string
	Role      festival.Role
}

// UpdateUserParams wraps the data required to update a user's profile.
type UpdateUserParams struct {
	Principal Principal
	UserID    int64
	Username  string
	FullName  string
}

// ChangePasswordParams wraps a password change request.
type ChangePasswordParams struct {
	Principal   Principal
	UserID      int64
	OldPassword string
	NewPassword string
}

// UserActionParams identifies a user acted on by an administrator or by themselves.
type UserActionParams struct {
	Principal Principal
	UserID    int64
}

// AuthenticateParams captures the data required to authenticate a user.
type AuthenticateParams struct {
	Username string
	Password string
}

// AuthenticateResult captures the outcome of a successful authentication attempt.
type AuthenticateResult struct {
	User      festival.User
	Token     string
	ExpiresAt time.Time
}

// IssuedToken is a freshly signed session token.
type IssuedToken struct {
	Token     string
	ID        string
	ExpiresAt time.Time
}

// TokenClaims are the verified contents of a session token.
type TokenClaims struct {
	UserID    int64
	Username  string
	TokenID   string
	ExpiresAt time.Time
}

// AuditEntry is one line of the append-only audit log.
type AuditEntry struct {
	ID        int64
	ActorID   int64
	Action    string
	Target    string
	CreatedAt time.Time
}

// Audit actions.
const (
	AuditProgramCreated      = "PROGRAM_CREATED"
	AuditProgramUpdated      = "PROGRAM_UPDATED"
	AuditProgramStateChanged = "PROGRAM_STATE_CHANGED"
	AuditProgramDeleted      = "PROGRAM_DELETED"
	AuditMemberAdded         = "PROGRAM_MEMBER_ADDED"
	AuditMemberRemoved       = "PROGRAM_MEMBER_REMOVED"
	AuditScreeningCreated    = "SCREENING_CREATED"
	AuditScreeningUpdated    = "SCREENING_UPDATED"
	AuditScreeningSubmitted  = "SCREENING_SUBMITTED"
	AuditHandlerAssigned     = "SCREENING_HANDLER_ASSIGNED"
	AuditScreeningReviewed   = "SCREENING_REVIEWED"
	AuditScreeningApproved   = "SCREENING_APPROVED"
	AuditScreeningRejected   = "SCREENING_REJECTED"
	AuditScreeningAutoReject = "SCREENING_AUTO_REJECTED"
	AuditScreeningFinalized  = "SCREENING_FINAL_SUBMITTED"
	AuditScreeningScheduled  = "SCREENING_SCHEDULED"
	AuditScreeningWithdrawn  = "SCREENING_WITHDRAWN"
	AuditUserRegistered      = "USER_REGISTERED"
	AuditUserCreated         = "USER_CREATED"
	AuditUserUpdated         = "USER_UPDATED"
	AuditPasswordChanged     = "USER_PASSWORD_CHANGED"
	AuditUserDeleted         = "USER_DELETED"
	AuditUserActivated       = "USER_ACTIVATED"
	AuditUserDeactivated     = "USER_DEACTIVATED"
	AuditUserUnlocked        = "USER_UNLOCKED"
	AuditUserLocked          = "USER_LOCKED"
	AuditLogin               = "USER_LOGIN"
	AuditLogout              = "USER_LOGOUT"
	AuditIdentityMismatch    = "IDENTITY_MISMATCH"
)
