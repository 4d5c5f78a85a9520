package sqlite

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/example/festival-programs/internal/persistence"
	"github.com/example/festival-programs/internal/persistence/sqlite/migration"
)

var testTime = time.Date(2024, time.January, 2, 15, 4, 5, 0, time.UTC)

func newTestStorage(t *testing.T) *Storage {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "festival.db")
	storage, err := OpenWithConfig(migration.TempFileTestSQLiteConfig(dsn), nil)
	if err != nil {
		t.Fatalf("failed to open storage: %v", err)
	}
	t.Cleanup(func() {
		_ = storage.Close()
	})

	if err := storage.Migrate(context.Background()); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return storage
}

func mustCreateUser(t *testing.T, storage *Storage, username, role string) persistence.User {
	t.Helper()
	user, err := storage.Users.CreateUser(context.Background(), persistence.User{
		Username:     username,
		FullName:     username,
		PasswordHash: "hash",
		Role:         role,
		Active:       true,
		CreatedAt:    testTime,
		UpdatedAt:    testTime,
	})
	if err != nil {
		t.Fatalf("CreateUser(%s) failed: %v", username, err)
	}
	return user
}

func mustCreateProgram(t *testing.T, storage *Storage, name string, creator int64, staff ...int64) persistence.Program {
	t.Helper()
	program, err := storage.Programs.CreateProgram(context.Background(), persistence.Program{
		Name:        name,
		Description: "desc",
		StartDate:   testTime.AddDate(0, 1, 0),
		EndDate:     testTime.AddDate(0, 1, 7),
		State:       "CREATED",
		CreatorID:   creator,
		Programmers: []int64{creator},
		Staff:       staff,
		CreatedAt:   testTime,
		UpdatedAt:   testTime,
	})
	if err != nil {
		t.Fatalf("CreateProgram(%s) failed: %v", name, err)
	}
	return program
}

func TestStorage_MigrateIsIdempotent(t *testing.T) {
	t.Parallel()

	storage := newTestStorage(t)
	if err := storage.Migrate(context.Background()); err != nil {
		t.Fatalf("second Migrate failed: %v", err)
	}
	if err := storage.Ping(context.Background()); err != nil {
		t.Fatalf("Ping failed: %v", err)
	}

	var closed *Storage
	if err := closed.Migrate(context.Background()); err == nil {
		t.Fatalf("expected error migrating nil storage")
	}
}

func TestProgramRepository(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	storage := newTestStorage(t)
	creator := mustCreateUser(t, storage, "creator", "programmer")
	staff := mustCreateUser(t, storage, "staffer", "staff")
	other := mustCreateUser(t, storage, "other", "programmer")

	program := mustCreateProgram(t, storage, "Spring Festival", creator.ID, staff.ID)
	if program.ID == 0 {
		t.Fatalf("expected assigned id")
	}

	fetched, err := storage.Programs.GetProgram(ctx, program.ID)
	if err != nil {
		t.Fatalf("GetProgram failed: %v", err)
	}
	if len(fetched.Programmers) != 1 || fetched.Programmers[0] != creator.ID || len(fetched.Staff) != 1 || fetched.Staff[0] != staff.ID {
		t.Fatalf("unexpected role sets: %+v", fetched)
	}
	if !fetched.StartDate.Equal(program.StartDate) {
		t.Fatalf("start date round trip: got %v want %v", fetched.StartDate, program.StartDate)
	}

	exists, err := storage.Programs.ProgramNameExists(ctx, "spring festival", 0)
	if err != nil || !exists {
		t.Fatalf("expected case-insensitive name match, exists=%v err=%v", exists, err)
	}
	exists, err = storage.Programs.ProgramNameExists(ctx, "Spring Festival", program.ID)
	if err != nil || exists {
		t.Fatalf("expected own name to be excluded, exists=%v err=%v", exists, err)
	}

	fetched.State = "SUBMISSION"
	fetched.Programmers = []int64{creator.ID, other.ID}
	fetched.Staff = nil
	fetched.UpdatedAt = testTime.Add(time.Hour)
	updated, err := storage.Programs.UpdateProgram(ctx, fetched)
	if err != nil {
		t.Fatalf("UpdateProgram failed: %v", err)
	}
	if updated.State != "SUBMISSION" || len(updated.Programmers) != 2 || len(updated.Staff) != 0 {
		t.Fatalf("unexpected updated program: %+v", updated)
	}

	_, err = storage.Programs.CreateProgram(ctx, persistence.Program{
		Name: "SPRING FESTIVAL", State: "CREATED", CreatorID: creator.ID,
		StartDate: testTime, EndDate: testTime, CreatedAt: testTime, UpdatedAt: testTime,
	})
	if !errors.Is(err, persistence.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}

	if _, err := storage.Programs.GetProgram(ctx, 999); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := storage.Programs.UpdateProgram(ctx, persistence.Program{ID: 999, State: "CREATED"}); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on update, got %v", err)
	}
}

func TestProgramRepository_ListPrograms(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	storage := newTestStorage(t)
	creator := mustCreateUser(t, storage, "creator", "programmer")

	late := mustCreateProgram(t, storage, "Winter Shorts", creator.ID)
	late.StartDate = testTime.AddDate(0, 6, 0)
	late.EndDate = testTime.AddDate(0, 6, 3)
	late.State = "REVIEW"
	if _, err := storage.Programs.UpdateProgram(ctx, late); err != nil {
		t.Fatalf("UpdateProgram failed: %v", err)
	}
	mustCreateProgram(t, storage, "Summer Docs", creator.ID)
	mustCreateProgram(t, storage, "100%_Animation", creator.ID)

	cases := []struct {
		name   string
		filter persistence.ProgramFilter
		want   []string
	}{
		{name: "all ordered by start then name", want: []string{"100%_Animation", "Summer Docs", "Winter Shorts"}},
		{name: "name contains", filter: persistence.ProgramFilter{NameContains: "shorts"}, want: []string{"Winter Shorts"}},
		{name: "like wildcards are literal", filter: persistence.ProgramFilter{NameContains: "%_"}, want: []string{"100%_Animation"}},
		{name: "state", filter: persistence.ProgramFilter{State: "REVIEW"}, want: []string{"Winter Shorts"}},
		{name: "ends before", filter: persistence.ProgramFilter{EndsBefore: timePtr(testTime.AddDate(0, 2, 0))}, want: []string{"100%_Animation", "Summer Docs"}},
		{name: "starts after", filter: persistence.ProgramFilter{StartsAfter: timePtr(testTime.AddDate(0, 3, 0))}, want: []string{"Winter Shorts"}},
		{name: "no match", filter: persistence.ProgramFilter{State: "ANNOUNCED"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			programs, err := storage.Programs.ListPrograms(ctx, tc.filter)
			if err != nil {
				t.Fatalf("ListPrograms failed: %v", err)
			}
			if len(programs) != len(tc.want) {
				t.Fatalf("expected %d programs, got %d", len(tc.want), len(programs))
			}
			for i, name := range tc.want {
				if programs[i].Name != name {
					t.Fatalf("position %d: expected %q, got %q", i, name, programs[i].Name)
				}
				if len(programs[i].Programmers) != 1 {
					t.Fatalf("expected members to be loaded for %q", name)
				}
			}
		})
	}
}

func TestProgramRepository_MembersOfFiltersByProgram(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	storage := newTestStorage(t)
	creator := mustCreateUser(t, storage, "creator", "programmer")
	staff := mustCreateUser(t, storage, "staffer", "staff")

	wanted := mustCreateProgram(t, storage, "Night Films", creator.ID, staff.ID)
	skipped := mustCreateProgram(t, storage, "Day Films", creator.ID)

	members, err := storage.Programs.membersOf(ctx, []int64{wanted.ID})
	if err != nil {
		t.Fatalf("membersOf failed: %v", err)
	}
	if _, ok := members[skipped.ID]; ok || len(members) != 1 {
		t.Fatalf("expected members of program %d only, got %v", wanted.ID, members)
	}
	if len(members[wanted.ID]) != 2 {
		t.Fatalf("expected programmer and staff rows, got %v", members[wanted.ID])
	}

	ids := make([]int64, 0, 2*memberBatchSize+2)
	for i := int64(1); i <= 2*memberBatchSize; i++ {
		ids = append(ids, 10000+i)
	}
	ids = append(ids, wanted.ID, skipped.ID)
	members, err = storage.Programs.membersOf(ctx, ids)
	if err != nil {
		t.Fatalf("membersOf across batches failed: %v", err)
	}
	if len(members) != 2 || len(members[wanted.ID]) != 2 || len(members[skipped.ID]) != 1 {
		t.Fatalf("unexpected members across batches: %v", members)
	}

	listed, err := storage.Programs.ListPrograms(ctx, persistence.ProgramFilter{NameContains: "night"})
	if err != nil {
		t.Fatalf("ListPrograms failed: %v", err)
	}
	if len(listed) != 1 || len(listed[0].Staff) != 1 || listed[0].Staff[0] != staff.ID {
		t.Fatalf("unexpected filtered listing: %+v", listed)
	}
}

func TestStorage_WithinTransaction(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	storage := newTestStorage(t)
	creator := mustCreateUser(t, storage, "creator", "programmer")
	program := mustCreateProgram(t, storage, "Atomic Shorts", creator.ID)

	t.Run("error rolls back every write", func(t *testing.T) {
		boom := errors.New("screening save failed")
		err := storage.WithinTransaction(ctx, func(ctx context.Context) error {
			updated := program
			updated.State = "DECISION"
			if _, err := storage.Programs.UpdateProgram(ctx, updated); err != nil {
				return err
			}
			if _, err := storage.Audit.AppendAudit(ctx, persistence.AuditRecord{ActorID: creator.ID, Action: "PROGRAM_STATE_CHANGED", Target: "program:1", CreatedAt: testTime}); err != nil {
				return err
			}
			return boom
		})
		if !errors.Is(err, boom) {
			t.Fatalf("expected the callback error, got %v", err)
		}
		fetched, err := storage.Programs.GetProgram(ctx, program.ID)
		if err != nil {
			t.Fatalf("GetProgram failed: %v", err)
		}
		if fetched.State != "CREATED" || len(fetched.Programmers) != 1 {
			t.Fatalf("expected rolled back program, got %+v", fetched)
		}
		records, err := storage.Audit.ListAudit(ctx, 10)
		if err != nil {
			t.Fatalf("ListAudit failed: %v", err)
		}
		if len(records) != 0 {
			t.Fatalf("expected no audit rows after rollback, got %d", len(records))
		}
	})

	t.Run("success commits and reads see the transaction", func(t *testing.T) {
		err := storage.WithinTransaction(ctx, func(ctx context.Context) error {
			updated := program
			updated.State = "SUBMISSION"
			if _, err := storage.Programs.UpdateProgram(ctx, updated); err != nil {
				return err
			}
			inside, err := storage.Programs.GetProgram(ctx, program.ID)
			if err != nil {
				return err
			}
			if inside.State != "SUBMISSION" {
				return fmt.Errorf("read inside transaction saw %s", inside.State)
			}
			return nil
		})
		if err != nil {
			t.Fatalf("WithinTransaction failed: %v", err)
		}
		fetched, err := storage.Programs.GetProgram(ctx, program.ID)
		if err != nil || fetched.State != "SUBMISSION" {
			t.Fatalf("expected committed SUBMISSION, got %+v %v", fetched, err)
		}
	})
}

func TestScreeningRepository(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	storage := newTestStorage(t)
	creator := mustCreateUser(t, storage, "creator", "programmer")
	submitter := mustCreateUser(t, storage, "submitter", "submitter")
	staff := mustCreateUser(t, storage, "staffer", "staff")
	program := mustCreateProgram(t, storage, "Spring Festival", creator.ID, staff.ID)

	created, err := storage.Screenings.CreateScreening(ctx, persistence.Screening{
		ProgramID:   program.ID,
		SubmitterID: submitter.ID,
		Title:       "Night Train",
		Genre:       "Drama",
		State:       "CREATED",
		CreatedAt:   testTime,
		UpdatedAt:   testTime,
	})
	if err != nil {
		t.Fatalf("CreateScreening failed: %v", err)
	}
	if created.HandlerID != nil || created.Score != nil || created.SubmittedAt != nil {
		t.Fatalf("expected nullable columns to be empty: %+v", created)
	}

	score := 8
	scheduled := testTime.AddDate(0, 1, 2)
	created.HandlerID = &staff.ID
	created.Score = &score
	created.State = "SCHEDULED"
	created.Room = "Hall A"
	created.ScheduledAt = &scheduled
	created.SubmittedAt = timePtr(testTime.Add(time.Hour))
	created.UpdatedAt = testTime.Add(2 * time.Hour)
	updated, err := storage.Screenings.UpdateScreening(ctx, created)
	if err != nil {
		t.Fatalf("UpdateScreening failed: %v", err)
	}
	if updated.HandlerID == nil || *updated.HandlerID != staff.ID || updated.Score == nil || *updated.Score != 8 {
		t.Fatalf("unexpected updated screening: %+v", updated)
	}
	if updated.ScheduledAt == nil || !updated.ScheduledAt.Equal(scheduled) {
		t.Fatalf("scheduled_at round trip: %v", updated.ScheduledAt)
	}

	bad := 11
	created.Score = &bad
	if _, err := storage.Screenings.UpdateScreening(ctx, created); !errors.Is(err, persistence.ErrConstraintViolation) {
		t.Fatalf("expected ErrConstraintViolation for score, got %v", err)
	}

	_, err = storage.Screenings.CreateScreening(ctx, persistence.Screening{
		ProgramID: 999, SubmitterID: submitter.ID, State: "CREATED", CreatedAt: testTime, UpdatedAt: testTime,
	})
	if !errors.Is(err, persistence.ErrConstraintViolation) {
		t.Fatalf("expected ErrConstraintViolation for missing program, got %v", err)
	}

	has, err := storage.Screenings.HasSubmissions(ctx, program.ID, submitter.ID)
	if err != nil || !has {
		t.Fatalf("expected submissions, has=%v err=%v", has, err)
	}
	has, err = storage.Screenings.HasSubmissions(ctx, program.ID, staff.ID)
	if err != nil || has {
		t.Fatalf("expected no submissions for staff, has=%v err=%v", has, err)
	}

	// Removing the handler account clears the assignment.
	if err := storage.Users.DeleteUser(ctx, staff.ID); err != nil {
		t.Fatalf("DeleteUser(staff) failed: %v", err)
	}
	reloaded, err := storage.Screenings.GetScreening(ctx, created.ID)
	if err != nil {
		t.Fatalf("GetScreening failed: %v", err)
	}
	if reloaded.HandlerID != nil {
		t.Fatalf("expected handler to be cleared, got %v", *reloaded.HandlerID)
	}

	if err := storage.Programs.DeleteProgram(ctx, program.ID); err != nil {
		t.Fatalf("DeleteProgram failed: %v", err)
	}
	if _, err := storage.Screenings.GetScreening(ctx, created.ID); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("expected screenings to cascade, got %v", err)
	}
}

func TestScreeningRepository_ListScreenings(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	storage := newTestStorage(t)
	creator := mustCreateUser(t, storage, "creator", "programmer")
	alice := mustCreateUser(t, storage, "alice", "submitter")
	bob := mustCreateUser(t, storage, "bob", "submitter")
	program := mustCreateProgram(t, storage, "Spring Festival", creator.ID)
	other := mustCreateProgram(t, storage, "Autumn Festival", creator.ID)

	for i, submitter := range []int64{alice.ID, bob.ID, alice.ID, alice.ID} {
		programID := program.ID
		if i == 3 {
			programID = other.ID
		}
		state := "CREATED"
		if i%2 == 1 {
			state = "SUBMITTED"
		}
		if _, err := storage.Screenings.CreateScreening(ctx, persistence.Screening{
			ProgramID: programID, SubmitterID: submitter, State: state, CreatedAt: testTime, UpdatedAt: testTime,
		}); err != nil {
			t.Fatalf("CreateScreening %d failed: %v", i, err)
		}
	}

	cases := []struct {
		name   string
		filter persistence.ScreeningFilter
		want   int
	}{
		{name: "all", want: 4},
		{name: "by program", filter: persistence.ScreeningFilter{ProgramID: program.ID}, want: 3},
		{name: "by submitter", filter: persistence.ScreeningFilter{ProgramID: program.ID, SubmitterID: alice.ID}, want: 2},
		{name: "by state", filter: persistence.ScreeningFilter{State: "SUBMITTED"}, want: 2},
		{name: "paged", filter: persistence.ScreeningFilter{ProgramID: program.ID, Limit: 2, Offset: 2}, want: 1},
		{name: "by handler", filter: persistence.ScreeningFilter{HandlerID: creator.ID}, want: 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			screenings, err := storage.Screenings.ListScreenings(ctx, tc.filter)
			if err != nil {
				t.Fatalf("ListScreenings failed: %v", err)
			}
			if len(screenings) != tc.want {
				t.Fatalf("expected %d screenings, got %d", tc.want, len(screenings))
			}
		})
	}
}

func TestRevokedTokenRepository(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	storage := newTestStorage(t)
	repo := storage.RevokedTokens

	if err := repo.RevokeToken(ctx, persistence.RevokedToken{}); !errors.Is(err, persistence.ErrConstraintViolation) {
		t.Fatalf("expected ErrConstraintViolation, got %v", err)
	}
	for _, token := range []persistence.RevokedToken{
		{TokenHash: "live", ExpiresAt: testTime.Add(time.Hour), RevokedAt: testTime},
		{TokenHash: "stale", ExpiresAt: testTime.Add(-time.Minute), RevokedAt: testTime},
		{TokenHash: "live", ExpiresAt: testTime.Add(2 * time.Hour), RevokedAt: testTime},
	} {
		if err := repo.RevokeToken(ctx, token); err != nil {
			t.Fatalf("RevokeToken(%s) failed: %v", token.TokenHash, err)
		}
	}

	revoked, err := repo.IsTokenRevoked(ctx, "live", testTime.Add(90*time.Minute))
	if err != nil || !revoked {
		t.Fatalf("expected live token revoked with extended expiry, revoked=%v err=%v", revoked, err)
	}
	revoked, err = repo.IsTokenRevoked(ctx, "stale", testTime)
	if err != nil || revoked {
		t.Fatalf("expected expired entry to be ignored, revoked=%v err=%v", revoked, err)
	}

	removed, err := repo.DeleteExpiredTokens(ctx, testTime)
	if err != nil || removed != 1 {
		t.Fatalf("expected one purged entry, removed=%d err=%v", removed, err)
	}
}

func TestAuditRepository(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	storage := newTestStorage(t)

	if _, err := storage.Audit.AppendAudit(ctx, persistence.AuditRecord{}); !errors.Is(err, persistence.ErrConstraintViolation) {
		t.Fatalf("expected ErrConstraintViolation, got %v", err)
	}
	for i, action := range []string{"LOGIN", "PROGRAM_CREATED", "LOGOUT"} {
		record, err := storage.Audit.AppendAudit(ctx, persistence.AuditRecord{
			ActorID: 1, Action: action, Target: "user:1", CreatedAt: testTime.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatalf("AppendAudit failed: %v", err)
		}
		if record.ID != int64(i+1) {
			t.Fatalf("expected id %d, got %d", i+1, record.ID)
		}
	}

	records, err := storage.Audit.ListAudit(ctx, 2)
	if err != nil {
		t.Fatalf("ListAudit failed: %v", err)
	}
	if len(records) != 2 || records[0].Action != "LOGOUT" || records[1].Action != "PROGRAM_CREATED" {
		t.Fatalf("expected newest first, got %+v", records)
	}
	all, err := storage.Audit.ListAudit(ctx, 0)
	if err != nil || len(all) != 3 {
		t.Fatalf("expected all records, got %d err=%v", len(all), err)
	}
}

func TestErrorMapper(t *testing.T) {
	t.Parallel()

	mapper := NewErrorMapper()
	cases := []struct {
		msg  string
		want error
	}{
		{"UNIQUE constraint failed: users.username", persistence.ErrDuplicate},
		{"FOREIGN KEY constraint failed", persistence.ErrConstraintViolation},
		{"CHECK constraint failed: score", persistence.ErrConstraintViolation},
		{"database is locked (5) (SQLITE_BUSY)", errDatabaseBusy},
	}
	for _, tc := range cases {
		if got := mapper.MapError(errors.New(tc.msg)); !errors.Is(got, tc.want) {
			t.Fatalf("MapError(%q) = %v, want %v", tc.msg, got, tc.want)
		}
	}
	if mapper.MapError(nil) != nil {
		t.Fatalf("expected nil for nil error")
	}
}

func TestRetryHelper(t *testing.T) {
	t.Parallel()

	helper := NewRetryHelper(RetryConfig{MaxRetries: 2, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, BackoffFactor: 1})
	calls := 0
	err := helper.WithRetry(context.Background(), func() error {
		calls++
		if calls < 3 {
			return errDatabaseBusy
		}
		return nil
	})
	if err != nil || calls != 3 {
		t.Fatalf("expected success on third attempt, calls=%d err=%v", calls, err)
	}

	calls = 0
	err = helper.WithRetry(context.Background(), func() error {
		calls++
		return persistence.ErrDuplicate
	})
	if !errors.Is(err, persistence.ErrDuplicate) || calls != 1 {
		t.Fatalf("expected no retry for permanent errors, calls=%d err=%v", calls, err)
	}
}

func timePtr(t time.Time) *time.Time { return &t }
