package main

import (
	"context"
	"fmt"
	"time"

	"github.com/example/festival-programs/internal/application"
	"github.com/example/festival-programs/internal/festival"
	"github.com/example/festival-programs/internal/persistence"
)

type userStore struct {
	repo persistence.UserRepository
}

func newUserStore(repo persistence.UserRepository) *userStore {
	return &userStore{repo: repo}
}

func (s *userStore) GetUser(ctx context.Context, id int64) (festival.User, error) {
	stored, err := s.repo.GetUser(ctx, id)
	if err != nil {
		return festival.User{}, err
	}
	return toDomainUser(stored)
}

func (s *userStore) GetUserByUsername(ctx context.Context, username string) (festival.User, error) {
	stored, err := s.repo.GetUserByUsername(ctx, username)
	if err != nil {
		return festival.User{}, err
	}
	return toDomainUser(stored)
}

func (s *userStore) SaveUser(ctx context.Context, user festival.User) (festival.User, error) {
	var (
		stored persistence.User
		err    error
	)
	if user.ID == 0 {
		stored, err = s.repo.CreateUser(ctx, toPersistenceUser(user))
	} else {
		stored, err = s.repo.UpdateUser(ctx, toPersistenceUser(user))
	}
	if err != nil {
		return festival.User{}, err
	}
	return toDomainUser(stored)
}

func (s *userStore) UsernameExists(ctx context.Context, username string, excludeID int64) (bool, error) {
	return s.repo.UsernameExists(ctx, username, excludeID)
}

func (s *userStore) DeleteUser(ctx context.Context, id int64) error {
	return s.repo.DeleteUser(ctx, id)
}

func (s *userStore) ListUsers(ctx context.Context) ([]festival.User, error) {
	models, err := s.repo.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	users := make([]festival.User, 0, len(models))
	for _, model := range models {
		user, err := toDomainUser(model)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, nil
}

type programStore struct {
	repo persistence.ProgramRepository
}

func newProgramStore(repo persistence.ProgramRepository) *programStore {
	return &programStore{repo: repo}
}

func (s *programStore) GetProgram(ctx context.Context, id int64) (*festival.Program, error) {
	stored, err := s.repo.GetProgram(ctx, id)
	if err != nil {
		return nil, err
	}
	return toDomainProgram(stored), nil
}

func (s *programStore) SaveProgram(ctx context.Context, program *festival.Program) (*festival.Program, error) {
	if program == nil {
		return nil, fmt.Errorf("save program: nil program")
	}
	var (
		stored persistence.Program
		err    error
	)
	if program.ID() == 0 {
		stored, err = s.repo.CreateProgram(ctx, toPersistenceProgram(program))
	} else {
		stored, err = s.repo.UpdateProgram(ctx, toPersistenceProgram(program))
	}
	if err != nil {
		return nil, err
	}
	return toDomainProgram(stored), nil
}

func (s *programStore) DeleteProgram(ctx context.Context, id int64) error {
	return s.repo.DeleteProgram(ctx, id)
}

func (s *programStore) ProgramNameExists(ctx context.Context, name string, excludeID int64) (bool, error) {
	return s.repo.ProgramNameExists(ctx, name, excludeID)
}

func (s *programStore) SearchPrograms(ctx context.Context, filter application.ProgramFilter) ([]*festival.Program, error) {
	models, err := s.repo.ListPrograms(ctx, persistence.ProgramFilter{
		NameContains: filter.NameContains,
		State:        string(filter.State),
		StartsAfter:  filter.StartsAfter,
		EndsBefore:   filter.EndsBefore,
	})
	if err != nil {
		return nil, err
	}
	programs := make([]*festival.Program, 0, len(models))
	for _, model := range models {
		programs = append(programs, toDomainProgram(model))
	}
	return programs, nil
}

type screeningStore struct {
	repo persistence.ScreeningRepository
}

func newScreeningStore(repo persistence.ScreeningRepository) *screeningStore {
	return &screeningStore{repo: repo}
}

func (s *screeningStore) GetScreening(ctx context.Context, id int64) (*festival.Screening, error) {
	stored, err := s.repo.GetScreening(ctx, id)
	if err != nil {
		return nil, err
	}
	return toDomainScreening(stored), nil
}

func (s *screeningStore) SaveScreening(ctx context.Context, screening *festival.Screening) (*festival.Screening, error) {
	if screening == nil {
		return nil, fmt.Errorf("save screening: nil screening")
	}
	var (
		stored persistence.Screening
		err    error
	)
	if screening.ID() == 0 {
		stored, err = s.repo.CreateScreening(ctx, toPersistenceScreening(screening))
	} else {
		stored, err = s.repo.UpdateScreening(ctx, toPersistenceScreening(screening))
	}
	if err != nil {
		return nil, err
	}
	return toDomainScreening(stored), nil
}

func (s *screeningStore) DeleteScreening(ctx context.Context, id int64) error {
	return s.repo.DeleteScreening(ctx, id)
}

func (s *screeningStore) ListScreenings(ctx context.Context, filter application.ScreeningFilter) ([]*festival.Screening, error) {
	models, err := s.repo.ListScreenings(ctx, persistence.ScreeningFilter{
		ProgramID:   filter.ProgramID,
		SubmitterID: filter.SubmitterID,
		HandlerID:   filter.HandlerID,
		State:       string(filter.State),
		Offset:      filter.Offset,
		Limit:       filter.Limit,
	})
	if err != nil {
		return nil, err
	}
	screenings := make([]*festival.Screening, 0, len(models))
	for _, model := range models {
		screenings = append(screenings, toDomainScreening(model))
	}
	return screenings, nil
}

func (s *screeningStore) HasSubmissions(ctx context.Context, programID, userID int64) (bool, error) {
	return s.repo.HasSubmissions(ctx, programID, userID)
}

type auditStore struct {
	repo persistence.AuditRepository
}

func newAuditStore(repo persistence.AuditRepository) *auditStore {
	return &auditStore{repo: repo}
}

func (s *auditStore) AppendAudit(ctx context.Context, entry application.AuditEntry) (application.AuditEntry, error) {
	stored, err := s.repo.AppendAudit(ctx, persistence.AuditRecord{
		ActorID:   entry.ActorID,
		Action:    entry.Action,
		Target:    entry.Target,
		CreatedAt: entry.CreatedAt,
	})
	if err != nil {
		return application.AuditEntry{}, err
	}
	return toAuditEntry(stored), nil
}

func (s *auditStore) ListAudit(ctx context.Context, limit int) ([]application.AuditEntry, error) {
	records, err := s.repo.ListAudit(ctx, limit)
	if err != nil {
		return nil, err
	}
	entries := make([]application.AuditEntry, 0, len(records))
	for _, record := range records {
		entries = append(entries, toAuditEntry(record))
	}
	return entries, nil
}

func toDomainUser(model persistence.User) (festival.User, error) {
	role, err := festival.ParseRole(model.Role)
	if err != nil {
		return festival.User{}, fmt.Errorf("user %d: %w", model.ID, err)
	}
	return festival.User{
		ID:             model.ID,
		Username:       model.Username,
		PasswordHash:   model.PasswordHash,
		FullName:       model.FullName,
		Role:           role,
		Active:         model.Active,
		FailedAttempts: model.FailedAttempts,
		CurrentTokenID: model.CurrentTokenID,
		LastLoginAt:    valueOrZero(model.LastLoginAt),
		CreatedAt:      model.CreatedAt,
		UpdatedAt:      model.UpdatedAt,
	}, nil
}

func toPersistenceUser(user festival.User) persistence.User {
	return persistence.User{
		ID:             user.ID,
		Username:       user.Username,
		FullName:       user.FullName,
		PasswordHash:   user.PasswordHash,
		Role:           user.Role.String(),
		Active:         user.Active,
		FailedAttempts: user.FailedAttempts,
		CurrentTokenID: user.CurrentTokenID,
		LastLoginAt:    pointerOrNil(user.LastLoginAt),
		CreatedAt:      user.CreatedAt,
		UpdatedAt:      user.UpdatedAt,
	}
}

func toDomainProgram(model persistence.Program) *festival.Program {
	return festival.RehydrateProgram(festival.ProgramSnapshot{
		ID:          model.ID,
		Name:        model.Name,
		Description: model.Description,
		StartDate:   model.StartDate,
		EndDate:     model.EndDate,
		State:       festival.ProgramState(model.State),
		CreatorID:   model.CreatorID,
		Programmers: model.Programmers,
		Staff:       model.Staff,
		CreatedAt:   model.CreatedAt,
		UpdatedAt:   model.UpdatedAt,
	})
}

func toPersistenceProgram(program *festival.Program) persistence.Program {
	snap := program.Snapshot()
	return persistence.Program{
		ID:          snap.ID,
		Name:        snap.Name,
		Description: snap.Description,
		StartDate:   snap.StartDate,
		EndDate:     snap.EndDate,
		State:       string(snap.State),
		CreatorID:   snap.CreatorID,
		Programmers: snap.Programmers,
		Staff:       snap.Staff,
		CreatedAt:   snap.CreatedAt,
		UpdatedAt:   snap.UpdatedAt,
	}
}

func toDomainScreening(model persistence.Screening) *festival.Screening {
	var handlerID int64
	if model.HandlerID != nil {
		handlerID = *model.HandlerID
	}
	return festival.RehydrateScreening(festival.ScreeningSnapshot{
		ID:              model.ID,
		ProgramID:       model.ProgramID,
		SubmitterID:     model.SubmitterID,
		HandlerID:       handlerID,
		Title:           model.Title,
		Genre:           model.Genre,
		Description:     model.Description,
		Room:            model.Room,
		ScheduledAt:     valueOrZero(model.ScheduledAt),
		State:           festival.ScreeningState(model.State),
		Score:           model.Score,
		Comments:        model.Comments,
		RejectionReason: model.RejectionReason,
		CreatedAt:       model.CreatedAt,
		SubmittedAt:     valueOrZero(model.SubmittedAt),
		ReviewedAt:      valueOrZero(model.ReviewedAt),
		FinalizedAt:     valueOrZero(model.FinalizedAt),
		UpdatedAt:       model.UpdatedAt,
	})
}

func toPersistenceScreening(screening *festival.Screening) persistence.Screening {
	snap := screening.Snapshot()
	var handlerID *int64
	if snap.HandlerID != 0 {
		id := snap.HandlerID
		handlerID = &id
	}
	return persistence.Screening{
		ID:              snap.ID,
		ProgramID:       snap.ProgramID,
		SubmitterID:     snap.SubmitterID,
		HandlerID:       handlerID,
		Title:           snap.Title,
		Genre:           snap.Genre,
		Description:     snap.Description,
		Room:            snap.Room,
		ScheduledAt:     pointerOrNil(snap.ScheduledAt),
		State:           string(snap.State),
		Score:           snap.Score,
		Comments:        snap.Comments,
		RejectionReason: snap.RejectionReason,
		CreatedAt:       snap.CreatedAt,
		SubmittedAt:     pointerOrNil(snap.SubmittedAt),
		ReviewedAt:      pointerOrNil(snap.ReviewedAt),
		FinalizedAt:     pointerOrNil(snap.FinalizedAt),
		UpdatedAt:       snap.UpdatedAt,
	}
}

func toAuditEntry(record persistence.AuditRecord) application.AuditEntry {
	return application.AuditEntry{
		ID:        record.ID,
		ActorID:   record.ActorID,
		Action:    record.Action,
		Target:    record.Target,
		CreatedAt: record.CreatedAt,
	}
}

func valueOrZero(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}

func pointerOrNil(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	v := t
	return &v
}
