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

// ScreeningRepository captures the persistence operations needed by the screening service.
type ScreeningRepository interface {
	GetScreening(ctx context.Context, id int64) (*festival.Screening, error)
	// SaveScreening inserts when the screening ID is zero and updates otherwise.
	SaveScreening(ctx context.Context, screening *festival.Screening) (*festival.Screening, error)
	DeleteScreening(ctx context.Context, id int64) error
	ListScreenings(ctx context.Context, filter ScreeningFilter) ([]*festival.Screening, error)
	// HasSubmissions reports whether userID owns any screening in the program.
	HasSubmissions(ctx context.Context, programID, userID int64) (bool, error)
}

// ScreeningService drives screenings through review and scheduling. Every
// mutation loads the screening and its program, checks the actor and both
// states, applies the transition and saves.
type ScreeningService struct {
	screenings ScreeningRepository
	programs   ProgramRepository
	audit      *AuditService
	now        func() time.Time
	logger     *slog.Logger
}

// NewScreeningService constructs a screening service with the provided dependencies.
func NewScreeningService(screenings ScreeningRepository, programs ProgramRepository, audit *AuditService, now func() time.Time) *ScreeningService {
	return NewScreeningServiceWithLogger(screenings, programs, audit, now, nil)
}

// NewScreeningServiceWithLogger constructs a screening service with a specified logger.
func NewScreeningServiceWithLogger(screenings ScreeningRepository, programs ProgramRepository, audit *AuditService, now func() time.Time, logger *slog.Logger) *ScreeningService {
	if now == nil {
		now = time.Now
	}
	return &ScreeningService{
		screenings: screenings,
		programs:   programs,
		audit:      audit,
		now:        now,
		logger:     defaultLogger(logger),
	}
}

func (s *ScreeningService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "ScreeningService", operation, attrs...)
}

// CreateScreening opens a draft in a program the caller does not program.
func (s *ScreeningService) CreateScreening(ctx context.Context, params CreateScreeningParams) (screening *festival.Screening, err error) {
	if s == nil {
		err = fmt.Errorf("ScreeningService is nil")
		return
	}
	if s.screenings == nil || s.programs == nil {
		err = fmt.Errorf("screening service not configured")
		return
	}

	logger := s.loggerWith(ctx, "CreateScreening",
		"principal_id", params.Principal.UserID,
		"program_id", params.ProgramID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to create screening", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("screening_id", screening.ID()).InfoContext(ctx, "screening created")
	}()

	if !params.Principal.Authenticated() {
		err = ErrUnauthorized
		return
	}

	var program *festival.Program
	program, err = s.loadProgram(ctx, params.ProgramID)
	if err != nil {
		return
	}
	if err = RequireNotProgrammer(params.Principal, program); err != nil {
		return
	}
	if program.State().Terminal() {
		err = &festival.StateError{Subject: "program", Operation: "createScreening", State: string(program.State()), Reason: "program is announced"}
		return
	}

	screening, err = festival.NewScreening(program.ID(), params.Principal.UserID, params.Input.draft(), s.now())
	if err != nil {
		return
	}
	screening, err = s.screenings.SaveScreening(ctx, screening)
	if err != nil {
		err = mapScreeningRepoError(err)
		return
	}
	s.audit.Record(ctx, params.Principal.UserID, AuditScreeningCreated, screeningTarget(screening.ID()))
	return
}

// UpdateScreening edits a draft. Owner only, CREATED only.
func (s *ScreeningService) UpdateScreening(ctx context.Context, params UpdateScreeningParams) (*festival.Screening, error) {
	return s.mutate(ctx, "UpdateScreening", params.Principal, params.ScreeningID, AuditScreeningUpdated,
		func(_ *festival.Program, screening *festival.Screening, now time.Time) error {
			if err := RequireOwner(params.Principal, screening); err != nil {
				return err
			}
			return screening.UpdateDraft(params.Input.draft(), now)
		})
}

// SubmitScreening hands a complete draft in while the program accepts submissions.
func (s *ScreeningService) SubmitScreening(ctx context.Context, params ScreeningActionParams) (*festival.Screening, error) {
	return s.mutate(ctx, "SubmitScreening", params.Principal, params.ScreeningID, AuditScreeningSubmitted,
		func(program *festival.Program, screening *festival.Screening, now time.Time) error {
			if err := RequireOwner(params.Principal, screening); err != nil {
				return err
			}
			if err := RequireNotProgrammer(params.Principal, program); err != nil {
				return err
			}
			if err := RequirePhases(program, festival.ProgramSubmission, screening, festival.ScreeningCreated); err != nil {
				return err
			}
			return screening.Submit(now)
		})
}

// AssignHandler names the staff member who reviews a submitted screening.
func (s *ScreeningService) AssignHandler(ctx context.Context, params AssignHandlerParams) (*festival.Screening, error) {
	return s.mutate(ctx, "AssignHandler", params.Principal, params.ScreeningID, AuditHandlerAssigned,
		func(program *festival.Program, screening *festival.Screening, now time.Time) error {
			if err := RequireProgrammer(params.Principal, program); err != nil {
				return err
			}
			if err := RequirePhases(program, festival.ProgramAssignment, screening, festival.ScreeningSubmitted); err != nil {
				return err
			}
			vErr := &ValidationError{}
			switch {
			case params.HandlerID == screening.SubmitterID():
				vErr.add("handler_id", "the submitter cannot review their own screening")
			case !program.IsStaff(params.HandlerID):
				vErr.add("handler_id", "handler must be staff of the program")
			}
			if vErr.HasErrors() {
				return vErr
			}
			return screening.AssignHandler(params.HandlerID, now)
		})
}

// ReviewScreening records the assigned handler's score and comments.
func (s *ScreeningService) ReviewScreening(ctx context.Context, params ReviewScreeningParams) (*festival.Screening, error) {
	return s.mutate(ctx, "ReviewScreening", params.Principal, params.ScreeningID, AuditScreeningReviewed,
		func(program *festival.Program, screening *festival.Screening, now time.Time) error {
			if err := RequireStaffHandler(params.Principal, program, screening); err != nil {
				return err
			}
			if err := RequirePhases(program, festival.ProgramReview, screening, festival.ScreeningSubmitted); err != nil {
				return err
			}
			return screening.Review(params.Score, params.Comments, now)
		})
}

// ApproveScreening lets the submitter accept a reviewed screening for scheduling.
func (s *ScreeningService) ApproveScreening(ctx context.Context, params ScreeningActionParams) (*festival.Screening, error) {
	return s.mutate(ctx, "ApproveScreening", params.Principal, params.ScreeningID, AuditScreeningApproved,
		func(program *festival.Program, screening *festival.Screening, now time.Time) error {
			if err := RequireOwner(params.Principal, screening); err != nil {
				return err
			}
			if err := RequirePhases(program, festival.ProgramScheduling, screening, festival.ScreeningReviewed); err != nil {
				return err
			}
			return screening.Approve(now)
		})
}

// RejectScreening closes a reviewed or approved screening with a reason.
func (s *ScreeningService) RejectScreening(ctx context.Context, params RejectScreeningParams) (*festival.Screening, error) {
	return s.mutate(ctx, "RejectScreening", params.Principal, params.ScreeningID, AuditScreeningRejected,
		func(program *festival.Program, screening *festival.Screening, now time.Time) error {
			if err := RequireProgrammer(params.Principal, program); err != nil {
				return err
			}
			if err := RequirePhase(program, festival.ProgramScheduling, festival.ProgramDecision); err != nil {
				return err
			}
			if err := RequireScreeningState(screening, festival.ScreeningReviewed, festival.ScreeningApproved); err != nil {
				return err
			}
			return screening.Reject(params.Reason, now)
		})
}

// FinalSubmitScreening confirms an approved screening during final publication.
func (s *ScreeningService) FinalSubmitScreening(ctx context.Context, params ScreeningActionParams) (*festival.Screening, error) {
	return s.mutate(ctx, "FinalSubmitScreening", params.Principal, params.ScreeningID, AuditScreeningFinalized,
		func(program *festival.Program, screening *festival.Screening, now time.Time) error {
			if err := RequireOwner(params.Principal, screening); err != nil {
				return err
			}
			if err := RequirePhases(program, festival.ProgramFinalPublication, screening, festival.ScreeningApproved); err != nil {
				return err
			}
			return screening.FinalSubmit(now)
		})
}

// ScheduleScreening places a screening in a room on a date during DECISION.
func (s *ScreeningService) ScheduleScreening(ctx context.Context, params ScheduleScreeningParams) (*festival.Screening, error) {
	return s.mutate(ctx, "ScheduleScreening", params.Principal, params.ScreeningID, AuditScreeningScheduled,
		func(program *festival.Program, screening *festival.Screening, now time.Time) error {
			if err := RequireProgrammer(params.Principal, program); err != nil {
				return err
			}
			if err := RequirePhases(program, festival.ProgramDecision, screening, festival.ScreeningApproved, festival.ScreeningFinalSubmitted); err != nil {
				return err
			}
			return screening.Schedule(params.Date, params.Room, now)
		})
}

// WithdrawScreening deletes a screening that has not been reviewed yet. The
// submitter and the program creator may withdraw.
func (s *ScreeningService) WithdrawScreening(ctx context.Context, params ScreeningActionParams) (err error) {
	if s == nil {
		return fmt.Errorf("ScreeningService is nil")
	}

	logger := s.loggerWith(ctx, "WithdrawScreening",
		"principal_id", params.Principal.UserID,
		"screening_id", params.ScreeningID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to withdraw screening", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "screening withdrawn")
	}()

	program, screening, err := s.load(ctx, params.ScreeningID)
	if err != nil {
		return err
	}
	if !screening.IsOwner(params.Principal.UserID) && !program.IsCreator(params.Principal.UserID) {
		return unauthorized("only the submitter or the program creator may withdraw")
	}
	if err = screening.Withdraw(); err != nil {
		return err
	}
	if err = s.screenings.DeleteScreening(ctx, screening.ID()); err != nil {
		return mapScreeningRepoError(err)
	}
	s.audit.Record(ctx, params.Principal.UserID, AuditScreeningWithdrawn, screeningTarget(screening.ID()))
	return nil
}

func (s *ScreeningService) mutate(
	ctx context.Context,
	operation string,
	principal Principal,
	screeningID int64,
	action string,
	apply func(*festival.Program, *festival.Screening, time.Time) error,
) (screening *festival.Screening, err error) {
	if s == nil {
		err = fmt.Errorf("ScreeningService is nil")
		return
	}

	logger := s.loggerWith(ctx, operation,
		"principal_id", principal.UserID,
		"screening_id", screeningID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "screening operation failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("state", screening.State()).InfoContext(ctx, "screening operation applied")
	}()

	var program *festival.Program
	program, screening, err = s.load(ctx, screeningID)
	if err != nil {
		return
	}
	if err = apply(program, screening, s.now()); err != nil {
		return
	}
	screening, err = s.screenings.SaveScreening(ctx, screening)
	if err != nil {
		err = mapScreeningRepoError(err)
		return
	}
	s.audit.Record(ctx, principal.UserID, action, screeningTarget(screening.ID()))
	return
}

// GetScreening returns a screening the caller may see; hidden ones are ErrNotFound.
func (s *ScreeningService) GetScreening(ctx context.Context, principal Principal, screeningID int64) (*festival.Screening, error) {
	if s == nil {
		return nil, fmt.Errorf("ScreeningService is nil")
	}
	program, screening, err := s.load(ctx, screeningID)
	if err != nil {
		return nil, err
	}
	if !canViewScreening(principal, program, screening) {
		return nil, ErrNotFound
	}
	return screening, nil
}

// SearchScreenings filters the visible screenings of one program.
func (s *ScreeningService) SearchScreenings(ctx context.Context, params SearchScreeningsParams) (page Page[*festival.Screening], err error) {
	if s == nil {
		err = fmt.Errorf("ScreeningService is nil")
		return
	}

	logger := s.loggerWith(ctx, "SearchScreenings",
		"principal_id", params.Principal.UserID,
		"program_id", params.ProgramID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to search screenings", "error", err, "error_kind", ErrorKind(err))
		}
	}()

	vErr := &ValidationError{}
	if params.ProgramID <= 0 {
		vErr.add("program_id", "program is required")
	}
	if params.State != "" && !params.State.Valid() {
		vErr.add("state", "state is invalid")
	}
	switch params.Sort {
	case "", ScreeningSortGenre, ScreeningSortTimetable:
	default:
		vErr.add("sort", "sort must be genre or timetable")
	}
	if vErr.HasErrors() {
		err = vErr
		return
	}

	var program *festival.Program
	program, err = s.loadProgram(ctx, params.ProgramID)
	if err != nil {
		return
	}

	var candidates []*festival.Screening
	candidates, err = s.screenings.ListScreenings(ctx, ScreeningFilter{ProgramID: program.ID(), State: params.State})
	if err != nil {
		err = mapScreeningRepoError(err)
		return
	}

	titleWords := strings.Fields(strings.ToLower(params.Title))
	genreWords := strings.Fields(strings.ToLower(params.Genre))
	matches := make([]*festival.Screening, 0, len(candidates))
	for _, screening := range candidates {
		if !canViewScreening(params.Principal, program, screening) {
			continue
		}
		if !containsAll(screening.Title(), titleWords) || !containsAll(screening.Genre(), genreWords) {
			continue
		}
		if !withinRange(screening.ScheduledAt(), params.ScheduledFrom, params.ScheduledTo) {
			continue
		}
		matches = append(matches, screening)
	}

	sortScreenings(matches, params.Sort)
	page = paginate(matches, params.Offset, params.Limit)
	return
}

// ListMine pages through the caller's own screenings, newest first.
func (s *ScreeningService) ListMine(ctx context.Context, params ListScreeningsParams) (Page[*festival.Screening], error) {
	return s.listFor(ctx, "ListMine", params, ScreeningFilter{SubmitterID: params.Principal.UserID})
}

// ListAssigned pages through the screenings the caller handles, newest first.
func (s *ScreeningService) ListAssigned(ctx context.Context, params ListScreeningsParams) (Page[*festival.Screening], error) {
	return s.listFor(ctx, "ListAssigned", params, ScreeningFilter{HandlerID: params.Principal.UserID})
}

func (s *ScreeningService) listFor(ctx context.Context, operation string, params ListScreeningsParams, filter ScreeningFilter) (page Page[*festival.Screening], err error) {
	if s == nil {
		err = fmt.Errorf("ScreeningService is nil")
		return
	}
	if !params.Principal.Authenticated() {
		err = ErrUnauthorized
		return
	}
	if s.screenings == nil {
		return paginate[*festival.Screening](nil, params.Offset, params.Limit), nil
	}

	var items []*festival.Screening
	items, err = s.screenings.ListScreenings(ctx, filter)
	if err != nil {
		err = mapScreeningRepoError(err)
		s.loggerWith(ctx, operation, "principal_id", params.Principal.UserID).
			ErrorContext(ctx, "failed to list screenings", "error", err, "error_kind", ErrorKind(err))
		return
	}
	sort.SliceStable(items, func(i, j int) bool {
		if !items[i].CreatedAt().Equal(items[j].CreatedAt()) {
			return items[i].CreatedAt().After(items[j].CreatedAt())
		}
		return items[i].ID() > items[j].ID()
	})
	page = paginate(items, params.Offset, params.Limit)
	return
}

// canViewScreening: administrators, programmers of the program, the owner and
// the assigned handler see everything; anyone sees scheduled screenings of
// announced programs.
func canViewScreening(principal Principal, program *festival.Program, screening *festival.Screening) bool {
	switch {
	case program.State() == festival.ProgramAnnounced && screening.State() == festival.ScreeningScheduled:
		return true
	case !principal.Authenticated():
		return false
	case principal.IsAdmin(),
		program.IsProgrammer(principal.UserID),
		screening.IsOwner(principal.UserID),
		screening.IsAssignedTo(principal.UserID) && program.IsStaff(principal.UserID):
		return true
	}
	return false
}

func containsAll(value string, words []string) bool {
	lowered := strings.ToLower(value)
	for _, word := range words {
		if !strings.Contains(lowered, word) {
			return false
		}
	}
	return true
}

func withinRange(at time.Time, from, to *time.Time) bool {
	if from == nil && to == nil {
		return true
	}
	if at.IsZero() {
		return false
	}
	if from != nil && at.Before(*from) {
		return false
	}
	if to != nil && at.After(*to) {
		return false
	}
	return true
}

func sortScreenings(items []*festival.Screening, order ScreeningSort) {
	byTitle := func(a, b *festival.Screening) bool {
		if a.Title() != b.Title() {
			return a.Title() < b.Title()
		}
		return a.ID() < b.ID()
	}
	switch order {
	case ScreeningSortTimetable:
		sort.SliceStable(items, func(i, j int) bool {
			a, b := items[i], items[j]
			switch {
			case a.ScheduledAt().IsZero() != b.ScheduledAt().IsZero():
				return !a.ScheduledAt().IsZero()
			case !a.ScheduledAt().Equal(b.ScheduledAt()):
				return a.ScheduledAt().Before(b.ScheduledAt())
			case a.Room() != b.Room():
				return a.Room() < b.Room()
			}
			return byTitle(a, b)
		})
	default:
		sort.SliceStable(items, func(i, j int) bool {
			a, b := items[i], items[j]
			if !strings.EqualFold(a.Genre(), b.Genre()) {
				return strings.ToLower(a.Genre()) < strings.ToLower(b.Genre())
			}
			return byTitle(a, b)
		})
	}
}

func (s *ScreeningService) load(ctx context.Context, screeningID int64) (*festival.Program, *festival.Screening, error) {
	if s.screenings == nil || s.programs == nil {
		return nil, nil, fmt.Errorf("screening service not configured")
	}
	screening, err := s.screenings.GetScreening(ctx, screeningID)
	if err != nil {
		return nil, nil, mapScreeningRepoError(err)
	}
	program, err := s.loadProgram(ctx, screening.ProgramID())
	if err != nil {
		return nil, nil, err
	}
	return program, screening, nil
}

func (s *ScreeningService) loadProgram(ctx context.Context, programID int64) (*festival.Program, error) {
	program, err := s.programs.GetProgram(ctx, programID)
	if err != nil {
		return nil, mapProgramRepoError(err)
	}
	return program, nil
}

func mapScreeningRepoError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, persistence.ErrNotFound) {
		return ErrNotFound
	}
	if errors.Is(err, persistence.ErrConstraintViolation) {
		vErr := &ValidationError{}
		vErr.add("program_id", "program does not exist")
		return vErr
	}
	return err
}
