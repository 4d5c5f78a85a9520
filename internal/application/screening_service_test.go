package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/example/festival-programs/internal/festival"
)

type screeningHarness struct {
	programs   *programRepoStub
	screenings *screeningRepoStub
	audit      *auditRepoStub
	svc        *ScreeningService
}

const (
	creatorID   int64 = 1
	staffID     int64 = 2
	otherStaff  int64 = 3
	submitterID int64 = 4
	strangerID  int64 = 5
)

func newScreeningHarness() *screeningHarness {
	h := &screeningHarness{
		programs:   newProgramRepoStub(),
		screenings: newScreeningRepoStub(),
		audit:      &auditRepoStub{},
	}
	h.svc = NewScreeningService(h.screenings, h.programs, NewAuditService(h.audit, fixedNow), fixedNow)
	return h
}

func (h *screeningHarness) program(state festival.ProgramState) int64 {
	return h.programs.put(festival.ProgramSnapshot{
		CreatorID:   creatorID,
		State:       state,
		Programmers: []int64{creatorID},
		Staff:       []int64{staffID, otherStaff},
	})
}

func (h *screeningHarness) setProgramState(id int64, state festival.ProgramState) {
	h.programs.mu.Lock()
	defer h.programs.mu.Unlock()
	snap := h.programs.programs[id]
	snap.State = state
	h.programs.programs[id] = snap
}

func as(id int64) Principal {
	return Principal{UserID: id, Role: festival.RoleUser}
}

func TestScreeningService_FullPipeline(t *testing.T) {
	t.Parallel()

	h := newScreeningHarness()
	ctx := context.Background()
	programID := h.program(festival.ProgramSubmission)

	screening, err := h.svc.CreateScreening(ctx, CreateScreeningParams{
		Principal: as(submitterID),
		ProgramID: programID,
		Input:     ScreeningInput{Title: "Night Train", Genre: "Drama"},
	})
	if err != nil {
		t.Fatalf("CreateScreening returned error: %v", err)
	}
	id := screening.ID()

	steps := []struct {
		name  string
		phase festival.ProgramState
		run   func() (*festival.Screening, error)
		want  festival.ScreeningState
	}{
		{"submit", festival.ProgramSubmission, func() (*festival.Screening, error) {
			return h.svc.SubmitScreening(ctx, ScreeningActionParams{Principal: as(submitterID), ScreeningID: id})
		}, festival.ScreeningSubmitted},
		{"assign", festival.ProgramAssignment, func() (*festival.Screening, error) {
			return h.svc.AssignHandler(ctx, AssignHandlerParams{Principal: as(creatorID), ScreeningID: id, HandlerID: staffID})
		}, festival.ScreeningSubmitted},
		{"review", festival.ProgramReview, func() (*festival.Screening, error) {
			return h.svc.ReviewScreening(ctx, ReviewScreeningParams{Principal: as(staffID), ScreeningID: id, Score: 8, Comments: "tight"})
		}, festival.ScreeningReviewed},
		{"approve", festival.ProgramScheduling, func() (*festival.Screening, error) {
			return h.svc.ApproveScreening(ctx, ScreeningActionParams{Principal: as(submitterID), ScreeningID: id})
		}, festival.ScreeningApproved},
		{"final submit", festival.ProgramFinalPublication, func() (*festival.Screening, error) {
			return h.svc.FinalSubmitScreening(ctx, ScreeningActionParams{Principal: as(submitterID), ScreeningID: id})
		}, festival.ScreeningFinalSubmitted},
		{"schedule", festival.ProgramDecision, func() (*festival.Screening, error) {
			return h.svc.ScheduleScreening(ctx, ScheduleScreeningParams{Principal: as(creatorID), ScreeningID: id, Date: testNow.Add(240 * time.Hour), Room: "Hall 1"})
		}, festival.ScreeningScheduled},
	}

	for _, step := range steps {
		h.setProgramState(programID, step.phase)
		got, err := step.run()
		if err != nil {
			t.Fatalf("%s returned error: %v", step.name, err)
		}
		if got.State() != step.want {
			t.Fatalf("after %s expected %s, got %s", step.name, step.want, got.State())
		}
	}

	h.setProgramState(programID, festival.ProgramAnnounced)
	if _, err := h.svc.GetScreening(ctx, Principal{}, id); err != nil {
		t.Fatalf("expected scheduled screening of announced program to be public, got %v", err)
	}
	if len(h.audit.actions()) != 7 {
		t.Fatalf("expected 7 audit entries, got %v", h.audit.actions())
	}
}

func TestScreeningService_PhaseMismatchNamesSide(t *testing.T) {
	t.Parallel()

	h := newScreeningHarness()
	ctx := context.Background()

	t.Run("program side", func(t *testing.T) {
		t.Parallel()
		programID := h.program(festival.ProgramAssignment)
		id := h.screenings.put(festival.ScreeningSnapshot{ProgramID: programID, SubmitterID: submitterID, Title: "A", State: festival.ScreeningCreated})

		_, err := h.svc.SubmitScreening(ctx, ScreeningActionParams{Principal: as(submitterID), ScreeningID: id})
		var pErr *festival.PhaseMismatchError
		if !errors.As(err, &pErr) || pErr.Subject != "program" {
			t.Fatalf("expected program phase mismatch, got %v", err)
		}
		if !errors.Is(err, festival.ErrState) {
			t.Fatalf("expected ErrState, got %v", err)
		}
	})

	t.Run("screening side", func(t *testing.T) {
		t.Parallel()
		programID := h.program(festival.ProgramReview)
		id := h.screenings.put(festival.ScreeningSnapshot{ProgramID: programID, SubmitterID: submitterID, HandlerID: staffID, Title: "A", State: festival.ScreeningReviewed})

		_, err := h.svc.ReviewScreening(ctx, ReviewScreeningParams{Principal: as(staffID), ScreeningID: id, Score: 5})
		var pErr *festival.PhaseMismatchError
		if !errors.As(err, &pErr) || pErr.Subject != "screening" {
			t.Fatalf("expected screening phase mismatch, got %v", err)
		}
	})
}

func TestScreeningService_ActorRules(t *testing.T) {
	t.Parallel()

	h := newScreeningHarness()
	ctx := context.Background()

	t.Run("programmers cannot submit to their program", func(t *testing.T) {
		t.Parallel()
		programID := h.program(festival.ProgramSubmission)
		_, err := h.svc.CreateScreening(ctx, CreateScreeningParams{Principal: as(creatorID), ProgramID: programID, Input: ScreeningInput{Title: "Mine"}})
		if !errors.Is(err, ErrUnauthorized) {
			t.Fatalf("expected ErrUnauthorized, got %v", err)
		}
	})

	t.Run("announced programs take no drafts", func(t *testing.T) {
		t.Parallel()
		programID := h.program(festival.ProgramAnnounced)
		_, err := h.svc.CreateScreening(ctx, CreateScreeningParams{Principal: as(submitterID), ProgramID: programID, Input: ScreeningInput{Title: "Late"}})
		if !errors.Is(err, festival.ErrState) {
			t.Fatalf("expected ErrState, got %v", err)
		}
	})

	t.Run("only the assigned staff handler reviews", func(t *testing.T) {
		t.Parallel()
		programID := h.program(festival.ProgramReview)
		id := h.screenings.put(festival.ScreeningSnapshot{ProgramID: programID, SubmitterID: submitterID, HandlerID: staffID, Title: "A", State: festival.ScreeningSubmitted})

		for _, actor := range []int64{otherStaff, creatorID, submitterID} {
			_, err := h.svc.ReviewScreening(ctx, ReviewScreeningParams{Principal: as(actor), ScreeningID: id, Score: 5})
			if !errors.Is(err, ErrUnauthorized) {
				t.Fatalf("actor %d: expected ErrUnauthorized, got %v", actor, err)
			}
		}
		if _, err := h.svc.ReviewScreening(ctx, ReviewScreeningParams{Principal: as(staffID), ScreeningID: id, Score: 11}); !errors.Is(err, festival.ErrValidation) {
			t.Fatalf("expected ErrValidation for score 11, got %v", err)
		}
		if got := h.screenings.get(id); got.State != festival.ScreeningSubmitted {
			t.Fatalf("failed review mutated state to %s", got.State)
		}
	})

	t.Run("handler must be staff and not the submitter", func(t *testing.T) {
		t.Parallel()
		programID := h.program(festival.ProgramAssignment)
		id := h.screenings.put(festival.ScreeningSnapshot{ProgramID: programID, SubmitterID: submitterID, Title: "A", State: festival.ScreeningSubmitted})

		for _, handler := range []int64{strangerID, submitterID} {
			_, err := h.svc.AssignHandler(ctx, AssignHandlerParams{Principal: as(creatorID), ScreeningID: id, HandlerID: handler})
			var vErr *ValidationError
			if !errors.As(err, &vErr) {
				t.Fatalf("handler %d: expected ValidationError, got %v", handler, err)
			}
		}
		if _, err := h.svc.AssignHandler(ctx, AssignHandlerParams{Principal: as(creatorID), ScreeningID: id, HandlerID: staffID}); err != nil {
			t.Fatalf("AssignHandler returned error: %v", err)
		}
		_, err := h.svc.AssignHandler(ctx, AssignHandlerParams{Principal: as(creatorID), ScreeningID: id, HandlerID: otherStaff})
		if !errors.Is(err, festival.ErrState) {
			t.Fatalf("expected ErrState on reassignment, got %v", err)
		}
	})

	t.Run("reject needs programmer and reason", func(t *testing.T) {
		t.Parallel()
		programID := h.program(festival.ProgramDecision)
		id := h.screenings.put(festival.ScreeningSnapshot{ProgramID: programID, SubmitterID: submitterID, Title: "A", State: festival.ScreeningApproved})

		if _, err := h.svc.RejectScreening(ctx, RejectScreeningParams{Principal: as(staffID), ScreeningID: id, Reason: "no"}); !errors.Is(err, ErrUnauthorized) {
			t.Fatalf("expected ErrUnauthorized, got %v", err)
		}
		if _, err := h.svc.RejectScreening(ctx, RejectScreeningParams{Principal: as(creatorID), ScreeningID: id}); !errors.Is(err, festival.ErrValidation) {
			t.Fatalf("expected ErrValidation, got %v", err)
		}
		got, err := h.svc.RejectScreening(ctx, RejectScreeningParams{Principal: as(creatorID), ScreeningID: id, Reason: "runtime"})
		if err != nil {
			t.Fatalf("RejectScreening returned error: %v", err)
		}
		if got.State() != festival.ScreeningRejected {
			t.Fatalf("expected REJECTED, got %s", got.State())
		}
	})
}

func TestScreeningService_Withdraw(t *testing.T) {
	t.Parallel()

	h := newScreeningHarness()
	ctx := context.Background()
	programID := h.program(festival.ProgramSubmission)

	byOwner := h.screenings.put(festival.ScreeningSnapshot{ProgramID: programID, SubmitterID: submitterID, State: festival.ScreeningSubmitted})
	byCreator := h.screenings.put(festival.ScreeningSnapshot{ProgramID: programID, SubmitterID: submitterID, State: festival.ScreeningCreated})
	reviewed := h.screenings.put(festival.ScreeningSnapshot{ProgramID: programID, SubmitterID: submitterID, State: festival.ScreeningReviewed})

	if err := h.svc.WithdrawScreening(ctx, ScreeningActionParams{Principal: as(strangerID), ScreeningID: byOwner}); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if err := h.svc.WithdrawScreening(ctx, ScreeningActionParams{Principal: as(submitterID), ScreeningID: byOwner}); err != nil {
		t.Fatalf("owner withdraw returned error: %v", err)
	}
	if err := h.svc.WithdrawScreening(ctx, ScreeningActionParams{Principal: as(creatorID), ScreeningID: byCreator}); err != nil {
		t.Fatalf("creator withdraw returned error: %v", err)
	}
	if err := h.svc.WithdrawScreening(ctx, ScreeningActionParams{Principal: as(submitterID), ScreeningID: reviewed}); !errors.Is(err, festival.ErrState) {
		t.Fatalf("expected ErrState, got %v", err)
	}
	if len(h.screenings.deleted) != 2 {
		t.Fatalf("expected 2 deletions, got %v", h.screenings.deleted)
	}
}

func TestScreeningService_Search(t *testing.T) {
	t.Parallel()

	h := newScreeningHarness()
	ctx := context.Background()
	programID := h.program(festival.ProgramAnnounced)

	h.screenings.put(festival.ScreeningSnapshot{ProgramID: programID, SubmitterID: submitterID, Title: "The Long Night", Genre: "Drama", Room: "B", ScheduledAt: testNow.Add(2 * time.Hour), State: festival.ScreeningScheduled})
	h.screenings.put(festival.ScreeningSnapshot{ProgramID: programID, SubmitterID: submitterID, Title: "Night Shift", Genre: "Comedy", Room: "A", ScheduledAt: testNow.Add(time.Hour), State: festival.ScreeningScheduled})
	h.screenings.put(festival.ScreeningSnapshot{ProgramID: programID, SubmitterID: submitterID, Title: "Long Night Out", Genre: "Drama", State: festival.ScreeningRejected})

	t.Run("anonymous sees scheduled only, timetable order", func(t *testing.T) {
		t.Parallel()
		page, err := h.svc.SearchScreenings(ctx, SearchScreeningsParams{ProgramID: programID, Title: "night", Sort: ScreeningSortTimetable})
		if err != nil {
			t.Fatalf("SearchScreenings returned error: %v", err)
		}
		if page.Total != 2 || page.Items[0].Title() != "Night Shift" {
			t.Fatalf("unexpected result total=%d first=%q", page.Total, page.Items[0].Title())
		}
	})

	t.Run("all words must match", func(t *testing.T) {
		t.Parallel()
		page, err := h.svc.SearchScreenings(ctx, SearchScreeningsParams{Principal: as(submitterID), ProgramID: programID, Title: "long NIGHT", Genre: "drama"})
		if err != nil {
			t.Fatalf("SearchScreenings returned error: %v", err)
		}
		if page.Total != 2 {
			t.Fatalf("expected owner to see 2 matches, got %d", page.Total)
		}
		if page.Items[0].Title() != "Long Night Out" {
			t.Fatalf("expected genre/title order, got %q first", page.Items[0].Title())
		}
	})

	t.Run("validates parameters", func(t *testing.T) {
		t.Parallel()
		_, err := h.svc.SearchScreenings(ctx, SearchScreeningsParams{Sort: "random"})
		var vErr *ValidationError
		if !errors.As(err, &vErr) || vErr.FieldErrors["program_id"] == "" || vErr.FieldErrors["sort"] == "" {
			t.Fatalf("expected program_id and sort errors, got %v", err)
		}
	})

	t.Run("list mine and assigned", func(t *testing.T) {
		t.Parallel()
		mine, err := h.svc.ListMine(ctx, ListScreeningsParams{Principal: as(submitterID), Limit: 2})
		if err != nil {
			t.Fatalf("ListMine returned error: %v", err)
		}
		if mine.Total != 3 || len(mine.Items) != 2 {
			t.Fatalf("unexpected page total=%d items=%d", mine.Total, len(mine.Items))
		}
		assigned, err := h.svc.ListAssigned(ctx, ListScreeningsParams{Principal: as(staffID)})
		if err != nil {
			t.Fatalf("ListAssigned returned error: %v", err)
		}
		if assigned.Total != 0 {
			t.Fatalf("expected no assigned screenings, got %d", assigned.Total)
		}
		if _, err := h.svc.ListMine(ctx, ListScreeningsParams{}); !errors.Is(err, ErrUnauthorized) {
			t.Fatalf("expected ErrUnauthorized, got %v", err)
		}
	})
}
