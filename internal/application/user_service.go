package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/example/festival-programs/internal/festival"
	"github.com/example/festival-programs/internal/persistence"
)

// UserRepository captures the persistence operations needed by the user services.
type UserRepository interface {
	GetUser(ctx context.Context, id int64) (festival.User, error)
	GetUserByUsername(ctx context.Context, username string) (festival.User, error)
	// SaveUser inserts when ID is zero and updates otherwise.
	SaveUser(ctx context.Context, user festival.User) (festival.User, error)
	UsernameExists(ctx context.Context, username string, excludeID int64) (bool, error)
	DeleteUser(ctx context.Context, id int64) error
	ListUsers(ctx context.Context) ([]festival.User, error)
}

// UserService manages accounts: registration, profile changes, passwords and
// the administrative activation switches.
type UserService struct {
	users     UserRepository
	hasher    PasswordHasher
	integrity *SessionIntegrity
	audit     *AuditService
	policy    festival.PasswordPolicy
	now       func() time.Time
	logger    *slog.Logger
}

// NewUserService wires dependencies for the user service.
func NewUserService(users UserRepository, hasher PasswordHasher, integrity *SessionIntegrity, audit *AuditService, now func() time.Time) *UserService {
	return NewUserServiceWithLogger(users, hasher, integrity, audit, now, nil)
}

// NewUserServiceWithLogger wires dependencies for the user service with a specified logger.
func NewUserServiceWithLogger(users UserRepository, hasher PasswordHasher, integrity *SessionIntegrity, audit *AuditService, now func() time.Time, logger *slog.Logger) *UserService {
	if hasher == nil {
		hasher = NewArgon2Hasher()
	}
	if now == nil {
		now = time.Now
	}
	if integrity == nil {
		integrity = NewSessionIntegrityWithLogger(users, audit, now, logger)
	}
	return &UserService{
		users:     users,
		hasher:    hasher,
		integrity: integrity,
		audit:     audit,
		policy:    festival.DefaultPasswordPolicy(),
		now:       now,
		logger:    defaultLogger(logger),
	}
}

func (s *UserService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "UserService", operation, attrs...)
}

// Register creates an inactive account with the basic user role. An
// administrator activates it later.
func (s *UserService) Register(ctx context.Context, params RegisterParams) (user festival.User, err error) {
	if s == nil {
		err = fmt.Errorf("UserService is nil")
		return
	}
	logger := s.loggerWith(ctx, "Register", "username", strings.TrimSpace(params.Username))
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to register user", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("user_id", user.ID).InfoContext(ctx, "user registered")
	}()

	user, err = s.createAccount(ctx, params.Username, params.Password, params.FullName, festival.RoleUser, false)
	if err != nil {
		return
	}
	s.audit.Record(ctx, user.ID, AuditUserRegistered, userTarget(user.ID))
	return
}

// CreateUser creates an active account with any role. Administrators only.
func (s *UserService) CreateUser(ctx context.Context, params CreateUserParams) (user festival.User, err error) {
	if s == nil {
		err = fmt.Errorf("UserService is nil")
		return
	}
	logger := s.loggerWith(ctx, "CreateUser",
		"principal_id", params.Principal.UserID,
		"username", strings.TrimSpace(params.Username),
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to create user", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("user_id", user.ID).InfoContext(ctx, "user created")
	}()

	if !params.Principal.IsAdmin() {
		err = ErrUnauthorized
		return
	}
	user, err = s.createAccount(ctx, params.Username, params.Password, params.FullName, params.Role, true)
	if err != nil {
		return
	}
	s.audit.Record(ctx, params.Principal.UserID, AuditUserCreated, userTarget(user.ID))
	return
}

// SeedAdmin creates the bootstrap administrator unless the username is taken.
// It reports whether an account was created.
func (s *UserService) SeedAdmin(ctx context.Context, username, password string) (created bool, err error) {
	if s == nil {
		err = fmt.Errorf("UserService is nil")
		return
	}
	if s.users == nil {
		err = fmt.Errorf("user repository not configured")
		return
	}
	logger := s.loggerWith(ctx, "SeedAdmin", "username", username)

	exists, err := s.users.UsernameExists(ctx, strings.TrimSpace(username), 0)
	if err != nil {
		logger.ErrorContext(ctx, "failed to check admin account", "error", err)
		return false, err
	}
	if exists {
		logger.DebugContext(ctx, "admin account already present")
		return false, nil
	}

	user, err := s.createAccount(ctx, username, password, "Administrator", festival.RoleAdmin, true)
	if err != nil {
		logger.ErrorContext(ctx, "failed to seed admin account", "error", err, "error_kind", ErrorKind(err))
		return false, err
	}
	logger.With("user_id", user.ID).InfoContext(ctx, "admin account seeded")
	return true, nil
}

func (s *UserService) createAccount(ctx context.Context, username, password, fullName string, role festival.Role, active bool) (festival.User, error) {
	if s.users == nil {
		return festival.User{}, fmt.Errorf("user repository not configured")
	}

	username = strings.TrimSpace(username)
	fullName = strings.TrimSpace(fullName)

	vErr := &ValidationError{}
	if err := festival.ValidateUsername(username); err != nil {
		vErr.add("username", fieldMessage(err))
	}
	if fullName == "" {
		vErr.add("full_name", "full name is required")
	}
	if !role.Valid() {
		vErr.add("role", "role is invalid")
	}
	vErr.merge(s.checkPassword(password, username, fullName))
	if vErr.HasErrors() {
		return festival.User{}, vErr
	}

	exists, err := s.users.UsernameExists(ctx, username, 0)
	if err != nil {
		return festival.User{}, mapUserRepoError(err)
	}
	if exists {
		return festival.User{}, ErrAlreadyExists
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return festival.User{}, fmt.Errorf("hash password: %w", err)
	}

	now := s.now()
	user := festival.User{
		Username:     username,
		PasswordHash: hash,
		FullName:     fullName,
		Role:         role,
		Active:       active,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	saved, err := s.users.SaveUser(ctx, user)
	if err != nil {
		return festival.User{}, mapUserRepoError(err)
	}
	return saved, nil
}

func (s *UserService) checkPassword(password, username, fullName string) *ValidationError {
	vErr := &ValidationError{}
	violations := s.policy.Check(password, username, fullName)
	if len(violations) == 0 {
		return vErr
	}
	codes := make([]string, 0, len(violations))
	for code := range violations {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	messages := make([]string, len(codes))
	for i, code := range codes {
		messages[i] = violations[code]
	}
	vErr.add("password", strings.Join(messages, "; "))
	return vErr
}

// GetUser returns an account to itself or to an administrator.
func (s *UserService) GetUser(ctx context.Context, principal Principal, userID int64) (festival.User, error) {
	if s == nil {
		return festival.User{}, fmt.Errorf("UserService is nil")
	}
	if s.users == nil {
		return festival.User{}, fmt.Errorf("user repository not configured")
	}
	if principal.UserID != userID && !principal.IsAdmin() {
		return festival.User{}, ErrUnauthorized
	}
	user, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return festival.User{}, mapUserRepoError(err)
	}
	return user, nil
}

// ListUsers returns all users ordered by username. Administrators only.
func (s *UserService) ListUsers(ctx context.Context, principal Principal) ([]festival.User, error) {
	if s == nil {
		return nil, fmt.Errorf("UserService is nil")
	}
	if !principal.IsAdmin() {
		return nil, ErrUnauthorized
	}
	if s.users == nil {
		return nil, nil
	}

	users, err := s.users.ListUsers(ctx)
	if err != nil {
		return nil, mapUserRepoError(err)
	}

	out := make([]festival.User, len(users))
	copy(out, users)
	sort.Slice(out, func(i, j int) bool {
		if strings.EqualFold(out[i].Username, out[j].Username) {
			return out[i].ID < out[j].ID
		}
		return strings.ToLower(out[i].Username) < strings.ToLower(out[j].Username)
	})
	return out, nil
}

// UpdateUser changes the full name and username. A changed username ends the
// user's current session.
func (s *UserService) UpdateUser(ctx context.Context, params UpdateUserParams) (user festival.User, err error) {
	if s == nil {
		err = fmt.Errorf("UserService is nil")
		return
	}
	logger := s.loggerWith(ctx, "UpdateUser",
		"principal_id", params.Principal.UserID,
		"user_id", params.UserID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to update user", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "user updated")
	}()

	if _, err = s.integrity.ResolveActor(ctx, params.UserID, params.Principal.UserID); err != nil {
		return
	}

	user, err = s.users.GetUser(ctx, params.UserID)
	if err != nil {
		err = mapUserRepoError(err)
		return
	}

	now := s.now()
	vErr := &ValidationError{}
	fullName := strings.TrimSpace(params.FullName)
	if fullName == "" {
		vErr.add("full_name", "full name is required")
	}
	username := strings.TrimSpace(params.Username)
	if username == "" {
		username = user.Username
	}
	renamed, renameErr := user.Rename(username, now)
	if renameErr != nil {
		vErr.add("username", fieldMessage(renameErr))
	}
	if vErr.HasErrors() {
		err = vErr
		return
	}

	if renamed {
		var exists bool
		exists, err = s.users.UsernameExists(ctx, username, user.ID)
		if err != nil {
			err = mapUserRepoError(err)
			return
		}
		if exists {
			err = ErrAlreadyExists
			return
		}
		s.integrity.OnUsernameChanged(ctx, user)
	}
	user.FullName = fullName
	user.UpdatedAt = now

	user, err = s.users.SaveUser(ctx, user)
	if err != nil {
		err = mapUserRepoError(err)
		return
	}
	s.audit.Record(ctx, params.Principal.UserID, AuditUserUpdated, userTarget(user.ID))
	return
}

// ChangePassword replaces the password after verifying the old one. The
// current session ends.
func (s *UserService) ChangePassword(ctx context.Context, params ChangePasswordParams) (err error) {
	if s == nil {
		return fmt.Errorf("UserService is nil")
	}
	logger := s.loggerWith(ctx, "ChangePassword",
		"principal_id", params.Principal.UserID,
		"user_id", params.UserID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to change password", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "password changed")
	}()

	var actor festival.User
	actor, err = s.integrity.ResolveActor(ctx, params.UserID, params.Principal.UserID)
	if err != nil {
		return
	}

	user := actor
	if actor.ID != params.UserID {
		user, err = s.users.GetUser(ctx, params.UserID)
		if err != nil {
			return mapUserRepoError(err)
		}
	}

	if !s.hasher.Matches(params.OldPassword, user.PasswordHash) {
		vErr := &ValidationError{}
		vErr.add("old_password", "current password is incorrect")
		return vErr
	}
	if vErr := s.checkPassword(params.NewPassword, user.Username, user.FullName); vErr.HasErrors() {
		return vErr
	}

	hash, err := s.hasher.Hash(params.NewPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	user.PasswordHash = hash
	user.ClearSession(s.now())
	if _, err = s.users.SaveUser(ctx, user); err != nil {
		return mapUserRepoError(err)
	}
	s.audit.Record(ctx, params.Principal.UserID, AuditPasswordChanged, userTarget(user.ID))
	return nil
}

// DeleteUser removes an account. Users may delete themselves; administrators
// may delete anyone.
func (s *UserService) DeleteUser(ctx context.Context, params UserActionParams) (err error) {
	if s == nil {
		return fmt.Errorf("UserService is nil")
	}
	logger := s.loggerWith(ctx, "DeleteUser",
		"principal_id", params.Principal.UserID,
		"user_id", params.UserID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to delete user", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "user deleted")
	}()

	if _, err = s.integrity.ResolveActor(ctx, params.UserID, params.Principal.UserID); err != nil {
		return
	}
	if err = s.users.DeleteUser(ctx, params.UserID); err != nil {
		return mapUserRepoError(err)
	}
	s.audit.Record(ctx, params.Principal.UserID, AuditUserDeleted, userTarget(params.UserID))
	return nil
}

// ActivateUser enables an account. Administrators only.
func (s *UserService) ActivateUser(ctx context.Context, params UserActionParams) (festival.User, error) {
	return s.adminUpdate(ctx, "ActivateUser", params, AuditUserActivated, func(u *festival.User, now time.Time) {
		u.Activate(now)
	})
}

// DeactivateUser disables an account and ends its session. Administrators only.
func (s *UserService) DeactivateUser(ctx context.Context, params UserActionParams) (festival.User, error) {
	return s.adminUpdate(ctx, "DeactivateUser", params, AuditUserDeactivated, func(u *festival.User, now time.Time) {
		u.Deactivate(now)
		u.ClearSession(now)
	})
}

// UnlockUser resets the failed login counter. Administrators only.
func (s *UserService) UnlockUser(ctx context.Context, params UserActionParams) (festival.User, error) {
	return s.adminUpdate(ctx, "UnlockUser", params, AuditUserUnlocked, func(u *festival.User, now time.Time) {
		u.Unlock(now)
	})
}

func (s *UserService) adminUpdate(ctx context.Context, operation string, params UserActionParams, action string, apply func(*festival.User, time.Time)) (user festival.User, err error) {
	if s == nil {
		err = fmt.Errorf("UserService is nil")
		return
	}
	logger := s.loggerWith(ctx, operation,
		"principal_id", params.Principal.UserID,
		"user_id", params.UserID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "admin user update failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "admin user update applied", "active", user.Active, "locked", user.Locked())
	}()

	if !params.Principal.IsAdmin() {
		err = ErrUnauthorized
		return
	}
	if s.users == nil {
		err = fmt.Errorf("user repository not configured")
		return
	}

	user, err = s.users.GetUser(ctx, params.UserID)
	if err != nil {
		err = mapUserRepoError(err)
		return
	}
	apply(&user, s.now())
	user, err = s.users.SaveUser(ctx, user)
	if err != nil {
		err = mapUserRepoError(err)
		return
	}
	s.audit.Record(ctx, params.Principal.UserID, action, userTarget(user.ID))
	return
}

// fieldMessage extracts the human readable part of a domain field error.
func fieldMessage(err error) string {
	var fErr *festival.FieldError
	if errors.As(err, &fErr) {
		return fErr.Message
	}
	return err.Error()
}

func mapUserRepoError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, persistence.ErrNotFound) {
		return ErrNotFound
	}
	if errors.Is(err, persistence.ErrDuplicate) {
		return ErrAlreadyExists
	}
	if errors.Is(err, persistence.ErrForeignKeyViolation) {
		return &festival.StateError{
			Subject:   "user",
			Operation: "delete",
			State:     "referenced",
			Reason:    "user still owns programs or screenings",
		}
	}
	return err
}
