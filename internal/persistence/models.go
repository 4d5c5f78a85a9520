package persistence

import "time"

// User is the stored form of an account. Role holds the textual role name.
type User struct {
	ID             int64
	Username       string
	FullName       string
	PasswordHash   string
	Role           string
	Active         bool
	FailedAttempts int
	CurrentTokenID string
	LastLoginAt    *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Program is the stored form of a festival program including its role set.
type Program struct {
	ID          int64
	Name        string
	Description string
	StartDate   time.Time
	EndDate     time.Time
	State       string
	CreatorID   int64
	Programmers []int64
	Staff       []int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Screening is the stored form of a submission.
type Screening struct {
	ID              int64
	ProgramID       int64
	SubmitterID     int64
	HandlerID       *int64
	Title           string
	Genre           string
	Description     string
	Room            string
	ScheduledAt     *time.Time
	State           string
	Score           *int
	Comments        string
	RejectionReason string
	CreatedAt       time.Time
	SubmittedAt     *time.Time
	ReviewedAt      *time.Time
	FinalizedAt     *time.Time
	UpdatedAt       time.Time
}

// RevokedToken records a blacklisted session token. Only a digest of the
// token is stored.
type RevokedToken struct {
	TokenHash string
	ExpiresAt time.Time
	RevokedAt time.Time
}

// AuditRecord is one row of the append-only audit log.
type AuditRecord struct {
	ID        int64
	ActorID   int64
	Action    string
	Target    string
	CreatedAt time.Time
}
