package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/example/festival-programs/internal/festival"
)

// TokenIssuer signs and verifies session tokens and owns their revocation list.
// Parse returns ErrSessionExpired for expired tokens and ErrInvalidCredentials
// for anything it cannot verify.
type TokenIssuer interface {
	Issue(ctx context.Context, user festival.User) (IssuedToken, error)
	Parse(ctx context.Context, token string) (TokenClaims, error)
	Invalidate(ctx context.Context, token string) error
	IsInvalidated(ctx context.Context, token string) (bool, error)
}

// AuthService coordinates login, token validation and logout.
type AuthService struct {
	users     UserRepository
	hasher    PasswordHasher
	tokens    TokenIssuer
	integrity *SessionIntegrity
	audit     *AuditService
	now       func() time.Time
	logger    *slog.Logger
}

// NewAuthService constructs an AuthService with the provided dependencies.
func NewAuthService(users UserRepository, hasher PasswordHasher, tokens TokenIssuer, integrity *SessionIntegrity, audit *AuditService, now func() time.Time) *AuthService {
	return NewAuthServiceWithLogger(users, hasher, tokens, integrity, audit, now, nil)
}

// NewAuthServiceWithLogger constructs an AuthService with a specified logger.
func NewAuthServiceWithLogger(users UserRepository, hasher PasswordHasher, tokens TokenIssuer, integrity *SessionIntegrity, audit *AuditService, now func() time.Time, logger *slog.Logger) *AuthService {
	if hasher == nil {
		hasher = NewArgon2Hasher()
	}
	if now == nil {
		now = time.Now
	}
	if integrity == nil {
		integrity = NewSessionIntegrityWithLogger(users, audit, now, logger)
	}
	return &AuthService{
		users:     users,
		hasher:    hasher,
		tokens:    tokens,
		integrity: integrity,
		audit:     audit,
		now:       now,
		logger:    defaultLogger(logger),
	}
}

func (s *AuthService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "AuthService", operation, attrs...)
}

// Authenticate validates credentials and issues a new session token. The new
// token replaces any earlier session of the same user.
func (s *AuthService) Authenticate(ctx context.Context, params AuthenticateParams) (result AuthenticateResult, err error) {
	if s == nil {
		err = fmt.Errorf("AuthService is nil")
		return
	}
	if s.users == nil || s.tokens == nil {
		err = fmt.Errorf("auth service not configured")
		return
	}

	username := strings.TrimSpace(params.Username)
	logger := s.loggerWith(ctx, "Authenticate", "username", username)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "authentication failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("user_id", result.User.ID).InfoContext(ctx, "authentication succeeded")
	}()

	if username == "" || params.Password == "" {
		err = ErrInvalidCredentials
		return
	}

	var user festival.User
	user, err = s.users.GetUserByUsername(ctx, username)
	if err != nil {
		err = mapUserRepoError(err)
		if errors.Is(err, ErrNotFound) {
			err = ErrInvalidCredentials
		}
		return
	}

	if !user.Active {
		err = ErrAccountDisabled
		return
	}
	if user.Locked() {
		err = ErrAccountLocked
		return
	}

	if !s.hasher.Matches(params.Password, user.PasswordHash) {
		if _, failErr := s.integrity.OnAuthenticationFailure(ctx, user); failErr != nil {
			logger.ErrorContext(ctx, "failed to record authentication failure", "error", failErr)
		}
		err = ErrInvalidCredentials
		return
	}

	if IsLegacyPasswordHash(user.PasswordHash) {
		if upgraded, hashErr := s.hasher.Hash(params.Password); hashErr == nil {
			user.PasswordHash = upgraded
			logger.InfoContext(ctx, "legacy password hash upgraded")
		}
	}

	var issued IssuedToken
	issued, err = s.tokens.Issue(ctx, user)
	if err != nil {
		return
	}

	user.RegisterLogin(issued.ID, s.now())
	user, err = s.users.SaveUser(ctx, user)
	if err != nil {
		err = mapUserRepoError(err)
		return
	}

	s.audit.Record(ctx, user.ID, AuditLogin, userTarget(user.ID))
	result = AuthenticateResult{User: user, Token: issued.Token, ExpiresAt: issued.ExpiresAt}
	return
}

// ValidateToken verifies a session token and returns its principal. Checks run
// in order: revocation list, signature and expiry, account active, and finally
// that the token is the user's current session.
func (s *AuthService) ValidateToken(ctx context.Context, token string) (principal Principal, err error) {
	if s == nil {
		err = fmt.Errorf("AuthService is nil")
		return
	}
	if s.users == nil || s.tokens == nil {
		err = fmt.Errorf("auth service not configured")
		return
	}

	trimmed := strings.TrimSpace(token)
	logger := s.loggerWith(ctx, "ValidateToken", "token_provided", trimmed != "")
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "token validation failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("principal_id", principal.UserID).DebugContext(ctx, "token validated")
	}()

	if trimmed == "" {
		err = ErrInvalidCredentials
		return
	}

	var revoked bool
	revoked, err = s.tokens.IsInvalidated(ctx, trimmed)
	if err != nil {
		return
	}
	if revoked {
		err = ErrSessionRevoked
		return
	}

	var claims TokenClaims
	claims, err = s.tokens.Parse(ctx, trimmed)
	if err != nil {
		return
	}

	var user festival.User
	user, err = s.users.GetUser(ctx, claims.UserID)
	if err != nil {
		err = mapUserRepoError(err)
		if errors.Is(err, ErrNotFound) {
			err = ErrInvalidCredentials
		}
		return
	}
	if !user.Active {
		err = ErrAccountDisabled
		return
	}
	if user.CurrentTokenID == "" || user.CurrentTokenID != claims.TokenID {
		err = ErrSessionRevoked
		return
	}

	principal = Principal{UserID: user.ID, Role: user.Role}
	return
}

// Logout blacklists the token and clears the user's current session.
func (s *AuthService) Logout(ctx context.Context, token string) (err error) {
	if s == nil {
		return fmt.Errorf("AuthService is nil")
	}
	if s.users == nil || s.tokens == nil {
		return fmt.Errorf("auth service not configured")
	}

	trimmed := strings.TrimSpace(token)
	logger := s.loggerWith(ctx, "Logout", "token_provided", trimmed != "")
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "logout failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "session revoked")
	}()

	if trimmed == "" {
		return ErrInvalidCredentials
	}

	claims, err := s.tokens.Parse(ctx, trimmed)
	if err != nil {
		return err
	}
	if err = s.tokens.Invalidate(ctx, trimmed); err != nil {
		return err
	}

	user, getErr := s.users.GetUser(ctx, claims.UserID)
	if getErr != nil {
		if errors.Is(mapUserRepoError(getErr), ErrNotFound) {
			return nil
		}
		return getErr
	}
	if user.CurrentTokenID == claims.TokenID {
		user.ClearSession(s.now())
		if _, err = s.users.SaveUser(ctx, user); err != nil {
			return mapUserRepoError(err)
		}
	}
	s.audit.Record(ctx, user.ID, AuditLogout, userTarget(user.ID))
	return nil
}
