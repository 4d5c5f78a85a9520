package persistence

import (
	"context"
	"time"
)

// UserRepository exposes CRUD operations for accounts.
type UserRepository interface {
	CreateUser(ctx context.Context, user User) (User, error)
	UpdateUser(ctx context.Context, user User) (User, error)
	GetUser(ctx context.Context, id int64) (User, error)
	GetUserByUsername(ctx context.Context, username string) (User, error)
	UsernameExists(ctx context.Context, username string, excludeID int64) (bool, error)
	ListUsers(ctx context.Context) ([]User, error)
	DeleteUser(ctx context.Context, id int64) error
}

// ProgramFilter narrows program queries. Zero values are ignored.
type ProgramFilter struct {
	NameContains string
	State        string
	StartsAfter  *time.Time
	EndsBefore   *time.Time
}

// ProgramRepository stores programs together with their programmer and staff sets.
type ProgramRepository interface {
	CreateProgram(ctx context.Context, program Program) (Program, error)
	UpdateProgram(ctx context.Context, program Program) (Program, error)
	GetProgram(ctx context.Context, id int64) (Program, error)
	ProgramNameExists(ctx context.Context, name string, excludeID int64) (bool, error)
	ListPrograms(ctx context.Context, filter ProgramFilter) ([]Program, error)
	DeleteProgram(ctx context.Context, id int64) error
}

// ScreeningFilter narrows screening queries. Zero values are ignored; a
// positive Limit enables paging in the database.
type ScreeningFilter struct {
	ProgramID   int64
	SubmitterID int64
	HandlerID   int64
	State       string
	Offset      int
	Limit       int
}

// ScreeningRepository stores submissions.
type ScreeningRepository interface {
	CreateScreening(ctx context.Context, screening Screening) (Screening, error)
	UpdateScreening(ctx context.Context, screening Screening) (Screening, error)
	GetScreening(ctx context.Context, id int64) (Screening, error)
	ListScreenings(ctx context.Context, filter ScreeningFilter) ([]Screening, error)
	HasSubmissions(ctx context.Context, programID, userID int64) (bool, error)
	DeleteScreening(ctx context.Context, id int64) error
}

// RevokedTokenRepository stores the token blacklist.
type RevokedTokenRepository interface {
	RevokeToken(ctx context.Context, token RevokedToken) error
	IsTokenRevoked(ctx context.Context, tokenHash string, reference time.Time) (bool, error)
	DeleteExpiredTokens(ctx context.Context, reference time.Time) (int64, error)
}

// AuditRepository appends to and reads the audit log.
type AuditRepository interface {
	AppendAudit(ctx context.Context, record AuditRecord) (AuditRecord, error)
	ListAudit(ctx context.Context, limit int) ([]AuditRecord, error)
}
