package festival

import (
	"regexp"
	"strings"
	"time"
)

// LockThreshold is the number of consecutive failed logins after which an
// account is locked for authentication.
const LockThreshold = 3

var usernamePattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]{4,19}$`)

// ValidateUsername checks the username format: a letter followed by 4 to 19
// letters, digits or underscores.
func ValidateUsername(username string) error {
	if strings.TrimSpace(username) == "" {
		return invalid("username", "username is required")
	}
	if !usernamePattern.MatchString(username) {
		return invalid("username", "username must start with a letter and be 5-20 letters, digits or underscores")
	}
	return nil
}

// User is an account. Fields are exported because users carry no state machine;
// the lifecycle rules live in the methods below and in the application layer.
type User struct {
	ID             int64
	Username       string
	PasswordHash   string
	FullName       string
	Role           Role
	Active         bool
	FailedAttempts int
	CurrentTokenID string
	LastLoginAt    time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Locked reports whether authentication is blocked by failed attempts.
// Locked is independent of Active.
func (u User) Locked() bool { return u.FailedAttempts >= LockThreshold }

func (u User) IsAdmin() bool { return u.Role.IsAdmin() }

// RegisterFailure counts a failed login.
func (u *User) RegisterFailure(now time.Time) {
	u.FailedAttempts++
	u.UpdatedAt = now
}

// RegisterLogin resets the failure counter and records the issued token id.
func (u *User) RegisterLogin(tokenID string, now time.Time) {
	u.FailedAttempts = 0
	u.CurrentTokenID = tokenID
	u.LastLoginAt = now
	u.UpdatedAt = now
}

// ClearSession drops the current token id, forcing a new login.
func (u *User) ClearSession(now time.Time) {
	u.CurrentTokenID = ""
	u.UpdatedAt = now
}

// Rename changes the username and, when it actually changes, invalidates
// the current session. It reports whether the name changed.
func (u *User) Rename(username string, now time.Time) (bool, error) {
	if err := ValidateUsername(username); err != nil {
		return false, err
	}
	if username == u.Username {
		return false, nil
	}
	u.Username = username
	u.ClearSession(now)
	return true, nil
}

func (u *User) Deactivate(now time.Time) {
	u.Active = false
	u.UpdatedAt = now
}

func (u *User) Activate(now time.Time) {
	u.Active = true
	u.UpdatedAt = now
}

// Unlock resets the failure counter.
func (u *User) Unlock(now time.Time) {
	u.FailedAttempts = 0
	u.UpdatedAt = now
}
