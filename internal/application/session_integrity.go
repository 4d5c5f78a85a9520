package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/example/festival-programs/internal/festival"
)

// SessionIntegrity reconciles the user a request claims to act for with the
// user its token was issued to, and keeps session state consistent when an
// account changes.
type SessionIntegrity struct {
	users  UserRepository
	audit  *AuditService
	tx     Transactor
	now    func() time.Time
	logger *slog.Logger
}

// NewSessionIntegrity constructs a SessionIntegrity with the provided dependencies.
func NewSessionIntegrity(users UserRepository, audit *AuditService, now func() time.Time) *SessionIntegrity {
	return NewSessionIntegrityWithLogger(users, audit, now, nil)
}

// NewSessionIntegrityWithLogger constructs a SessionIntegrity with a specified logger.
func NewSessionIntegrityWithLogger(users UserRepository, audit *AuditService, now func() time.Time, logger *slog.Logger) *SessionIntegrity {
	if now == nil {
		now = time.Now
	}
	return &SessionIntegrity{users: users, audit: audit, tx: directTransactor{}, now: now, logger: defaultLogger(logger)}
}

// WithTransactor makes the double deactivation of an identity mismatch a
// single unit of work.
func (s *SessionIntegrity) WithTransactor(tx Transactor) *SessionIntegrity {
	s.tx = defaultTransactor(tx)
	return s
}

func (s *SessionIntegrity) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "SessionIntegrity", operation, attrs...)
}

// ResolveActor returns the verified user when it may act for claimedID.
//
// Matching ids resolve to that user. An administrator may act for anyone. Any
// other mismatch deactivates both accounts, records IDENTITY_MISMATCH and
// returns an *IdentityMismatchError. Both users are loaded first and
// deactivated in one unit of work, committed before the error is returned.
func (s *SessionIntegrity) ResolveActor(ctx context.Context, claimedID, verifiedID int64) (actor festival.User, err error) {
	if s == nil {
		err = fmt.Errorf("SessionIntegrity is nil")
		return
	}
	if s.users == nil {
		err = fmt.Errorf("user repository not configured")
		return
	}
	if verifiedID <= 0 {
		err = ErrUnauthorized
		return
	}

	actor, err = s.users.GetUser(ctx, verifiedID)
	if err != nil {
		err = mapUserRepoError(err)
		if errors.Is(err, ErrNotFound) {
			err = ErrUnauthorized
		}
		return
	}
	if claimedID == verifiedID || actor.IsAdmin() {
		return actor, nil
	}

	logger := s.loggerWith(ctx, "ResolveActor", "claimed_id", claimedID, "verified_id", verifiedID)
	now := s.now()

	claimed, getErr := s.users.GetUser(ctx, claimedID)
	claimedExists := getErr == nil
	if getErr != nil {
		if mapped := mapUserRepoError(getErr); !errors.Is(mapped, ErrNotFound) {
			return festival.User{}, mapped
		}
	}

	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		actor.Deactivate(now)
		actor.ClearSession(now)
		if _, saveErr := s.users.SaveUser(ctx, actor); saveErr != nil {
			logger.ErrorContext(ctx, "failed to deactivate verified user", "error", saveErr)
			return saveErr
		}
		if !claimedExists {
			return nil
		}
		claimed.Deactivate(now)
		claimed.ClearSession(now)
		if _, saveErr := s.users.SaveUser(ctx, claimed); saveErr != nil {
			logger.ErrorContext(ctx, "failed to deactivate claimed user", "error", saveErr)
			return saveErr
		}
		return nil
	})
	if err != nil {
		return festival.User{}, err
	}

	s.audit.Record(ctx, verifiedID, AuditIdentityMismatch, fmt.Sprintf("claimed:%d verified:%d", claimedID, verifiedID))
	logger.WarnContext(ctx, "identity mismatch, both accounts deactivated")
	return festival.User{}, &IdentityMismatchError{ClaimedID: claimedID, VerifiedID: verifiedID}
}

// OnUsernameChanged runs after festival.User.Rename reported a change. The
// rename already dropped the live session, so the next request must log in
// under the new name.
func (s *SessionIntegrity) OnUsernameChanged(ctx context.Context, user festival.User) {
	if s == nil {
		return
	}
	s.loggerWith(ctx, "OnUsernameChanged", "user_id", user.ID).
		InfoContext(ctx, "username changed, session cleared", "username", user.Username)
}

// OnAuthenticationFailure counts a failed login and persists it. Reaching
// festival.LockThreshold locks the account.
func (s *SessionIntegrity) OnAuthenticationFailure(ctx context.Context, user festival.User) (festival.User, error) {
	if s == nil || s.users == nil {
		return user, fmt.Errorf("user repository not configured")
	}
	wasLocked := user.Locked()
	user.RegisterFailure(s.now())
	saved, err := s.users.SaveUser(ctx, user)
	if err != nil {
		return user, mapUserRepoError(err)
	}
	if !wasLocked && saved.Locked() {
		s.loggerWith(ctx, "OnAuthenticationFailure", "user_id", saved.ID).
			WarnContext(ctx, "account locked after repeated failures", "failed_attempts", saved.FailedAttempts)
		s.audit.Record(ctx, saved.ID, AuditUserLocked, userTarget(saved.ID))
	}
	return saved, nil
}
