package application

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/example/festival-programs/internal/festival"
)

func TestDefaultLogger(t *testing.T) {
	t.Parallel()

	custom := slog.New(slog.NewTextHandler(io.Discard, nil))
	if got := defaultLogger(custom); got != custom {
		t.Fatalf("expected custom logger to be returned")
	}

	if got := defaultLogger(nil); got != slog.Default() {
		t.Fatalf("expected default logger when none provided")
	}
}

func TestErrorKind(t *testing.T) {
	t.Parallel()

	cases := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{ErrUnauthorized, "unauthorized"},
		{fmt.Errorf("wrapped: %w", ErrNotFound), "not_found"},
		{&IdentityMismatchError{ClaimedID: 1, VerifiedID: 2}, "identity_mismatch"},
		{ErrAccountLocked, "account_locked"},
		{&festival.MembershipError{Kind: festival.ErrAlreadyMember}, "already_member"},
		{&festival.MembershipError{Kind: festival.ErrConflict}, "conflict"},
		{&festival.MembershipError{Kind: festival.ErrInvariant}, "invariant"},
		{&festival.TransitionError{Subject: "program"}, "forbidden_transition"},
		{&festival.PhaseMismatchError{Subject: "program"}, "state"},
		{&festival.FieldError{Field: "score"}, "validation"},
		{&ValidationError{FieldErrors: map[string]string{"a": "b"}}, "validation"},
		{errors.New("boom"), "unexpected"},
	}
	for _, tc := range cases {
		if got := ErrorKind(tc.err); got != tc.want {
			t.Fatalf("ErrorKind(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}
}

func TestGuards(t *testing.T) {
	t.Parallel()

	program := festival.RehydrateProgram(festival.ProgramSnapshot{ID: 1, CreatorID: 1, State: festival.ProgramReview, Staff: []int64{2}})
	screening := festival.RehydrateScreening(festival.ScreeningSnapshot{ID: 1, ProgramID: 1, SubmitterID: 3, HandlerID: 2, State: festival.ScreeningSubmitted})

	if err := RequireOwner(Principal{UserID: 3}, screening); err != nil {
		t.Fatalf("owner rejected: %v", err)
	}
	if err := RequireOwner(Principal{UserID: 2}, screening); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if err := RequireProgrammer(Principal{UserID: 1}, program); err != nil {
		t.Fatalf("programmer rejected: %v", err)
	}
	if err := RequireStaffHandler(Principal{UserID: 2}, program, screening); err != nil {
		t.Fatalf("handler rejected: %v", err)
	}
	if err := RequireNotProgrammer(Principal{UserID: 1}, program); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}

	err := RequirePhases(program, festival.ProgramReview, screening, festival.ScreeningReviewed)
	var pErr *festival.PhaseMismatchError
	if !errors.As(err, &pErr) || pErr.Subject != "screening" || pErr.Actual != string(festival.ScreeningSubmitted) {
		t.Fatalf("expected screening mismatch, got %v", err)
	}
	if err := RequirePhase(program, festival.ProgramScheduling, festival.ProgramReview); err != nil {
		t.Fatalf("expected any-of phase match, got %v", err)
	}
}

func TestAuditService(t *testing.T) {
	t.Parallel()

	repo := &auditRepoStub{}
	svc := NewAuditService(repo, fixedNow)
	ctx := t.Context()

	for i := 0; i < 3; i++ {
		svc.Record(ctx, 1, AuditLogin, userTarget(1))
	}
	repo.err = errors.New("disk full")
	svc.Record(ctx, 1, AuditLogout, userTarget(1))
	repo.err = nil

	if _, err := svc.ListRecent(ctx, Principal{UserID: 1, Role: festival.RoleUser}, 10); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	entries, err := svc.ListRecent(ctx, Principal{UserID: 1, Role: festival.RoleAdmin}, 2)
	if err != nil {
		t.Fatalf("ListRecent returned error: %v", err)
	}
	if len(entries) != 2 || entries[0].ID != 3 {
		t.Fatalf("expected newest first, got %+v", entries)
	}

	var nilSvc *AuditService
	nilSvc.Record(ctx, 1, AuditLogin, "")
}
