package application

import (
	"github.com/example/festival-programs/internal/festival"
)

// The Require* predicates run before any mutation. They never touch storage.

// RequireOwner passes when the actor submitted the screening.
func RequireOwner(actor Principal, screening *festival.Screening) error {
	if screening == nil || !screening.IsOwner(actor.UserID) {
		return unauthorized("only the submitter may do this")
	}
	return nil
}

// RequireProgrammer passes when the actor is a programmer of the program.
func RequireProgrammer(actor Principal, program *festival.Program) error {
	if program == nil || !program.IsProgrammer(actor.UserID) {
		return unauthorized("only a programmer of the program may do this")
	}
	return nil
}

// RequireStaffHandler passes when the actor is staff of the program and the
// handler assigned to the screening.
func RequireStaffHandler(actor Principal, program *festival.Program, screening *festival.Screening) error {
	if program == nil || !program.IsStaff(actor.UserID) {
		return unauthorized("only staff of the program may do this")
	}
	if screening == nil || !screening.IsAssignedTo(actor.UserID) {
		return unauthorized("only the assigned handler may do this")
	}
	return nil
}

// RequireNotProgrammer rejects programmers acting as submitters in their own program.
func RequireNotProgrammer(actor Principal, program *festival.Program) error {
	if program != nil && program.IsProgrammer(actor.UserID) {
		return unauthorized("programmers cannot submit to their own program")
	}
	return nil
}

// RequirePhase passes when the program is in one of phases.
func RequirePhase(program *festival.Program, phases ...festival.ProgramState) error {
	for _, phase := range phases {
		if program.State() == phase {
			return nil
		}
	}
	expected := make([]string, len(phases))
	for i, phase := range phases {
		expected[i] = string(phase)
	}
	return &festival.PhaseMismatchError{Subject: "program", Actual: string(program.State()), Expected: expected}
}

// RequireScreeningState passes when the screening is in one of states.
func RequireScreeningState(screening *festival.Screening, states ...festival.ScreeningState) error {
	for _, state := range states {
		if screening.State() == state {
			return nil
		}
	}
	expected := make([]string, len(states))
	for i, state := range states {
		expected[i] = string(state)
	}
	return &festival.PhaseMismatchError{Subject: "screening", Actual: string(screening.State()), Expected: expected}
}

// RequirePhases checks the program phase first and then the screening state,
// so the returned error names the side that did not match.
func RequirePhases(program *festival.Program, phase festival.ProgramState, screening *festival.Screening, states ...festival.ScreeningState) error {
	if err := RequirePhase(program, phase); err != nil {
		return err
	}
	return RequireScreeningState(screening, states...)
}
