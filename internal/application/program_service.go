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

// ProgramRepository captures the persistence operations needed by the program service.
type ProgramRepository interface {
	GetProgram(ctx context.Context, id int64) (*festival.Program, error)
	// SaveProgram inserts when the program ID is zero and updates otherwise,
	// returning the stored aggregate.
	SaveProgram(ctx context.Context, program *festival.Program) (*festival.Program, error)
	DeleteProgram(ctx context.Context, id int64) error
	ProgramNameExists(ctx context.Context, name string, excludeID int64) (bool, error)
	SearchPrograms(ctx context.Context, filter ProgramFilter) ([]*festival.Program, error)
}

// ProgramService orchestrates validation, authorization, and persistence for programs.
type ProgramService struct {
	programs   ProgramRepository
	screenings ScreeningRepository
	users      UserRepository
	audit      *AuditService
	tx         Transactor
	now        func() time.Time
	logger     *slog.Logger
}

// NewProgramService constructs a program service with the provided dependencies.
func NewProgramService(programs ProgramRepository, screenings ScreeningRepository, users UserRepository, audit *AuditService, now func() time.Time) *ProgramService {
	return NewProgramServiceWithLogger(programs, screenings, users, audit, now, nil)
}

// NewProgramServiceWithLogger constructs a program service with a specified logger.
func NewProgramServiceWithLogger(programs ProgramRepository, screenings ScreeningRepository, users UserRepository, audit *AuditService, now func() time.Time, logger *slog.Logger) *ProgramService {
	if now == nil {
		now = time.Now
	}
	return &ProgramService{
		programs:   programs,
		screenings: screenings,
		users:      users,
		audit:      audit,
		tx:         directTransactor{},
		now:        now,
		logger:     defaultLogger(logger),
	}
}

// WithTransactor makes state changes that touch screenings run as one unit
// of work.
func (s *ProgramService) WithTransactor(tx Transactor) *ProgramService {
	s.tx = defaultTransactor(tx)
	return s
}

func (s *ProgramService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "ProgramService", operation, attrs...)
}

// CreateProgram creates a program in CREATED with the caller as creator and programmer.
func (s *ProgramService) CreateProgram(ctx context.Context, params CreateProgramParams) (program *festival.Program, err error) {
	if s == nil {
		err = fmt.Errorf("ProgramService is nil")
		return
	}
	if s.programs == nil {
		err = fmt.Errorf("program repository not configured")
		return
	}

	logger := s.loggerWith(ctx, "CreateProgram", "principal_id", params.Principal.UserID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to create program", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("program_id", program.ID()).InfoContext(ctx, "program created")
	}()

	if !params.Principal.Authenticated() {
		err = ErrUnauthorized
		return
	}

	program, err = festival.NewProgram(params.Input.info(), params.Principal.UserID, s.now())
	if err != nil {
		return
	}
	if err = s.ensureUniqueName(ctx, program.Name(), 0); err != nil {
		return
	}

	program, err = s.programs.SaveProgram(ctx, program)
	if err != nil {
		err = mapProgramRepoError(err)
		return
	}
	s.audit.Record(ctx, params.Principal.UserID, AuditProgramCreated, programTarget(program.ID()))
	return
}

// UpdateProgram replaces the descriptive fields. Programmers only, not once announced.
func (s *ProgramService) UpdateProgram(ctx context.Context, params UpdateProgramParams) (program *festival.Program, err error) {
	if s == nil {
		err = fmt.Errorf("ProgramService is nil")
		return
	}

	logger := s.loggerWith(ctx, "UpdateProgram",
		"principal_id", params.Principal.UserID,
		"program_id", params.ProgramID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to update program", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "program updated")
	}()

	program, err = s.load(ctx, params.ProgramID)
	if err != nil {
		return
	}
	if err = RequireProgrammer(params.Principal, program); err != nil {
		return
	}
	if err = program.UpdateInfo(params.Input.info(), s.now()); err != nil {
		return
	}
	if err = s.ensureUniqueName(ctx, program.Name(), program.ID()); err != nil {
		return
	}

	program, err = s.programs.SaveProgram(ctx, program)
	if err != nil {
		err = mapProgramRepoError(err)
		return
	}
	s.audit.Record(ctx, params.Principal.UserID, AuditProgramUpdated, programTarget(program.ID()))
	return
}

// ChangeState advances the program one phase. Entering DECISION rejects every
// screening that was approved but never finally submitted.
func (s *ProgramService) ChangeState(ctx context.Context, params ChangeProgramStateParams) (program *festival.Program, err error) {
	if s == nil {
		err = fmt.Errorf("ProgramService is nil")
		return
	}

	logger := s.loggerWith(ctx, "ChangeState",
		"principal_id", params.Principal.UserID,
		"program_id", params.ProgramID,
		"requested_state", params.State,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to change program state", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "program state changed")
	}()

	program, err = s.load(ctx, params.ProgramID)
	if err != nil {
		return
	}
	if err = RequireProgrammer(params.Principal, program); err != nil {
		return
	}
	from := program.State()
	if err = program.ChangeState(params.State, s.now()); err != nil {
		return
	}

	var rejected []*festival.Screening
	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		if program.State() == festival.ProgramDecision {
			var rejectErr error
			if rejected, rejectErr = s.rejectUnfinalized(ctx, program.ID()); rejectErr != nil {
				return rejectErr
			}
		}
		saved, saveErr := s.programs.SaveProgram(ctx, program)
		if saveErr != nil {
			return mapProgramRepoError(saveErr)
		}
		program = saved
		return nil
	})
	if err != nil {
		program = nil
		return
	}

	s.audit.Record(ctx, params.Principal.UserID, AuditProgramStateChanged,
		fmt.Sprintf("%s %s->%s", programTarget(program.ID()), from, program.State()))
	for _, screening := range rejected {
		s.audit.Record(ctx, params.Principal.UserID, AuditScreeningAutoReject, screeningTarget(screening.ID()))
	}
	if len(rejected) > 0 {
		logger.InfoContext(ctx, "approved screenings auto-rejected", "count", len(rejected))
	}
	return
}

// rejectUnfinalized rejects and saves every APPROVED screening of the program.
// It runs before the program itself is saved in DECISION.
func (s *ProgramService) rejectUnfinalized(ctx context.Context, programID int64) ([]*festival.Screening, error) {
	if s.screenings == nil {
		return nil, nil
	}
	approved, err := s.screenings.ListScreenings(ctx, ScreeningFilter{ProgramID: programID, State: festival.ScreeningApproved})
	if err != nil {
		return nil, mapScreeningRepoError(err)
	}
	now := s.now()
	for _, screening := range approved {
		if err := screening.Reject(festival.AutoRejectReason, now); err != nil {
			return nil, err
		}
		if _, err := s.screenings.SaveScreening(ctx, screening); err != nil {
			return nil, mapScreeningRepoError(err)
		}
	}
	return approved, nil
}

// AddProgrammer enrolls an active user as programmer.
func (s *ProgramService) AddProgrammer(ctx context.Context, params MembershipParams) (*festival.Program, error) {
	return s.changeMembership(ctx, "AddProgrammer", params, true, AuditMemberAdded, (*festival.Program).AddProgrammer)
}

// RemoveProgrammer removes a programmer other than the creator.
func (s *ProgramService) RemoveProgrammer(ctx context.Context, params MembershipParams) (*festival.Program, error) {
	return s.changeMembership(ctx, "RemoveProgrammer", params, false, AuditMemberRemoved, (*festival.Program).RemoveProgrammer)
}

// AddStaff enrolls an active user as staff while the program is in CREATED.
func (s *ProgramService) AddStaff(ctx context.Context, params MembershipParams) (*festival.Program, error) {
	return s.changeMembership(ctx, "AddStaff", params, true, AuditMemberAdded, (*festival.Program).AddStaff)
}

// RemoveStaff removes a staff member while the program is in CREATED.
func (s *ProgramService) RemoveStaff(ctx context.Context, params MembershipParams) (*festival.Program, error) {
	return s.changeMembership(ctx, "RemoveStaff", params, false, AuditMemberRemoved, (*festival.Program).RemoveStaff)
}

func (s *ProgramService) changeMembership(
	ctx context.Context,
	operation string,
	params MembershipParams,
	requireActiveTarget bool,
	action string,
	apply func(*festival.Program, int64, time.Time) error,
) (program *festival.Program, err error) {
	if s == nil {
		err = fmt.Errorf("ProgramService is nil")
		return
	}

	logger := s.loggerWith(ctx, operation,
		"principal_id", params.Principal.UserID,
		"program_id", params.ProgramID,
		"member_id", params.UserID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to change program membership", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "program membership changed")
	}()

	program, err = s.load(ctx, params.ProgramID)
	if err != nil {
		return
	}
	if err = RequireProgrammer(params.Principal, program); err != nil {
		return
	}
	if requireActiveTarget {
		if err = s.requireActiveUser(ctx, params.UserID); err != nil {
			return
		}
	}
	if err = apply(program, params.UserID, s.now()); err != nil {
		return
	}

	program, err = s.programs.SaveProgram(ctx, program)
	if err != nil {
		err = mapProgramRepoError(err)
		return
	}
	s.audit.Record(ctx, params.Principal.UserID, action,
		fmt.Sprintf("%s %s %s", programTarget(program.ID()), strings.TrimPrefix(strings.TrimPrefix(operation, "Add"), "Remove"), userTarget(params.UserID)))
	return
}

func (s *ProgramService) requireActiveUser(ctx context.Context, userID int64) error {
	if s.users == nil {
		return fmt.Errorf("user repository not configured")
	}
	user, err := s.users.GetUser(ctx, userID)
	if err != nil {
		err = mapUserRepoError(err)
		if errors.Is(err, ErrNotFound) {
			vErr := &ValidationError{}
			vErr.add("user_id", "user does not exist")
			return vErr
		}
		return err
	}
	if !user.Active {
		vErr := &ValidationError{}
		vErr.add("user_id", "user is not active")
		return vErr
	}
	return nil
}

// DeleteProgram removes a program that has not left CREATED. Programmers only.
func (s *ProgramService) DeleteProgram(ctx context.Context, principal Principal, programID int64) (err error) {
	if s == nil {
		return fmt.Errorf("ProgramService is nil")
	}

	logger := s.loggerWith(ctx, "DeleteProgram",
		"principal_id", principal.UserID,
		"program_id", programID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to delete program", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "program deleted")
	}()

	program, err := s.load(ctx, programID)
	if err != nil {
		return err
	}
	if err = RequireProgrammer(principal, program); err != nil {
		return err
	}
	if program.State() != festival.ProgramCreated {
		return &festival.StateError{Subject: "program", Operation: "delete", State: string(program.State()), Reason: "only CREATED programs can be deleted"}
	}
	if err = s.programs.DeleteProgram(ctx, programID); err != nil {
		return mapProgramRepoError(err)
	}
	s.audit.Record(ctx, principal.UserID, AuditProgramDeleted, programTarget(programID))
	return nil
}

// GetProgram returns the program when the caller may see it; hidden programs
// are reported as ErrNotFound.
func (s *ProgramService) GetProgram(ctx context.Context, principal Principal, programID int64) (*festival.Program, error) {
	if s == nil {
		return nil, fmt.Errorf("ProgramService is nil")
	}
	program, err := s.load(ctx, programID)
	if err != nil {
		return nil, err
	}
	visible, err := s.canView(ctx, principal, program)
	if err != nil {
		return nil, err
	}
	if !visible {
		return nil, ErrNotFound
	}
	return program, nil
}

// SearchPrograms lists visible programs ordered by start date, then name.
func (s *ProgramService) SearchPrograms(ctx context.Context, params SearchProgramsParams) (page Page[*festival.Program], err error) {
	if s == nil {
		err = fmt.Errorf("ProgramService is nil")
		return
	}
	if s.programs == nil {
		return paginate[*festival.Program](nil, params.Offset, params.Limit), nil
	}

	logger := s.loggerWith(ctx, "SearchPrograms", "principal_id", params.Principal.UserID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to search programs", "error", err, "error_kind", ErrorKind(err))
		}
	}()

	if params.State != "" && !params.State.Valid() {
		vErr := &ValidationError{}
		vErr.add("state", "state is invalid")
		err = vErr
		return
	}
	if params.StartsAfter != nil && params.EndsBefore != nil && params.EndsBefore.Before(*params.StartsAfter) {
		vErr := &ValidationError{}
		vErr.add("ends_before", "range end must not precede range start")
		err = vErr
		return
	}

	var candidates []*festival.Program
	candidates, err = s.programs.SearchPrograms(ctx, ProgramFilter{
		NameContains: strings.TrimSpace(params.Name),
		State:        params.State,
		StartsAfter:  params.StartsAfter,
		EndsBefore:   params.EndsBefore,
	})
	if err != nil {
		err = mapProgramRepoError(err)
		return
	}

	visible := make([]*festival.Program, 0, len(candidates))
	for _, program := range candidates {
		var ok bool
		ok, err = s.canView(ctx, params.Principal, program)
		if err != nil {
			return
		}
		if ok {
			visible = append(visible, program)
		}
	}

	sort.SliceStable(visible, func(i, j int) bool {
		a, b := visible[i], visible[j]
		if !a.StartDate().Equal(b.StartDate()) {
			return a.StartDate().Before(b.StartDate())
		}
		if a.Name() != b.Name() {
			return a.Name() < b.Name()
		}
		return a.ID() < b.ID()
	})

	page = paginate(visible, params.Offset, params.Limit)
	return
}

// canView applies the program visibility rules: anonymous callers see
// announced programs, signed in callers see everything past CREATED, and
// members, submitters and administrators see all.
func (s *ProgramService) canView(ctx context.Context, principal Principal, program *festival.Program) (bool, error) {
	switch {
	case program.State() == festival.ProgramAnnounced:
		return true, nil
	case !principal.Authenticated():
		return false, nil
	case principal.IsAdmin():
		return true, nil
	case program.State() != festival.ProgramCreated:
		return true, nil
	case program.IsProgrammer(principal.UserID), program.IsStaff(principal.UserID):
		return true, nil
	}
	if s.screenings == nil {
		return false, nil
	}
	has, err := s.screenings.HasSubmissions(ctx, program.ID(), principal.UserID)
	if err != nil {
		return false, mapScreeningRepoError(err)
	}
	return has, nil
}

func (s *ProgramService) load(ctx context.Context, programID int64) (*festival.Program, error) {
	if s.programs == nil {
		return nil, fmt.Errorf("program repository not configured")
	}
	program, err := s.programs.GetProgram(ctx, programID)
	if err != nil {
		return nil, mapProgramRepoError(err)
	}
	return program, nil
}

func (s *ProgramService) ensureUniqueName(ctx context.Context, name string, excludeID int64) error {
	exists, err := s.programs.ProgramNameExists(ctx, name, excludeID)
	if err != nil {
		return mapProgramRepoError(err)
	}
	if exists {
		return fmt.Errorf("%w: program name %q is already in use", ErrAlreadyExists, name)
	}
	return nil
}

func mapProgramRepoError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, persistence.ErrNotFound) {
		return ErrNotFound
	}
	if errors.Is(err, persistence.ErrDuplicate) {
		return ErrAlreadyExists
	}
	return err
}
