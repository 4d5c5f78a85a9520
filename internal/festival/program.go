package festival

import (
	"strings"
	"time"
)

// ProgramState is a phase of the festival calendar.
type ProgramState string

const (
	ProgramCreated          ProgramState = "CREATED"
	ProgramSubmission       ProgramState = "SUBMISSION"
	ProgramAssignment       ProgramState = "ASSIGNMENT"
	ProgramReview           ProgramState = "REVIEW"
	ProgramScheduling       ProgramState = "SCHEDULING"
	ProgramFinalPublication ProgramState = "FINAL_PUBLICATION"
	ProgramDecision         ProgramState = "DECISION"
	ProgramAnnounced        ProgramState = "ANNOUNCED"
)

var programPipeline = []ProgramState{
	ProgramCreated,
	ProgramSubmission,
	ProgramAssignment,
	ProgramReview,
	ProgramScheduling,
	ProgramFinalPublication,
	ProgramDecision,
	ProgramAnnounced,
}

// ProgramStates returns the phases in calendar order.
func ProgramStates() []ProgramState {
	out := make([]ProgramState, len(programPipeline))
	copy(out, programPipeline)
	return out
}

// ParseProgramState validates a textual state.
func ParseProgramState(value string) (ProgramState, error) {
	state := ProgramState(strings.ToUpper(strings.TrimSpace(value)))
	if !state.Valid() {
		return "", invalid("state", "unknown program state "+value)
	}
	return state, nil
}

func (s ProgramState) Valid() bool {
	for _, candidate := range programPipeline {
		if candidate == s {
			return true
		}
	}
	return false
}

// Next returns the unique successor. The terminal phase has none.
func (s ProgramState) Next() (ProgramState, bool) {
	for i, candidate := range programPipeline {
		if candidate == s && i+1 < len(programPipeline) {
			return programPipeline[i+1], true
		}
	}
	return "", false
}

func (s ProgramState) Terminal() bool { return s == ProgramAnnounced }

// TransitionProgram returns requested when it is the successor of current.
func TransitionProgram(current, requested ProgramState) (ProgramState, error) {
	next, ok := current.Next()
	if !ok || next != requested {
		return current, &TransitionError{Subject: "program", From: string(current), To: string(requested)}
	}
	return next, nil
}

// ProgramInfo carries the editable descriptive fields of a program.
type ProgramInfo struct {
	Name        string
	Description string
	StartDate   time.Time
	EndDate     time.Time
}

func (in ProgramInfo) normalize() ProgramInfo {
	return ProgramInfo{
		Name:        strings.TrimSpace(in.Name),
		Description: strings.TrimSpace(in.Description),
		StartDate:   in.StartDate,
		EndDate:     in.EndDate,
	}
}

// Validate reports the first problem with the info, if any.
func (in ProgramInfo) Validate() error {
	n := in.normalize()
	switch {
	case n.Name == "":
		return invalid("name", "name is required")
	case n.Description == "":
		return invalid("description", "description is required")
	case n.StartDate.IsZero():
		return invalid("start_date", "start date is required")
	case n.EndDate.IsZero():
		return invalid("end_date", "end date is required")
	case n.EndDate.Before(n.StartDate):
		return invalid("end_date", "end date must not be before start date")
	}
	return nil
}

// Program is a festival run. All mutation goes through its methods.
type Program struct {
	id        int64
	info      ProgramInfo
	state     ProgramState
	roles     RoleSet
	createdAt time.Time
	updatedAt time.Time
}

// ProgramSnapshot is the flat storage form of a Program.
type ProgramSnapshot struct {
	ID          int64
	Name        string
	Description string
	StartDate   time.Time
	EndDate     time.Time
	State       ProgramState
	CreatorID   int64
	Programmers []int64
	Staff       []int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// NewProgram creates a program in CREATED with the creator enrolled as programmer.
func NewProgram(info ProgramInfo, creatorID int64, now time.Time) (*Program, error) {
	if creatorID <= 0 {
		return nil, invalid("creator_id", "creator is required")
	}
	if err := info.Validate(); err != nil {
		return nil, err
	}
	return &Program{
		info:      info.normalize(),
		state:     ProgramCreated,
		roles:     NewRoleSet(creatorID),
		createdAt: now,
		updatedAt: now,
	}, nil
}

// RehydrateProgram rebuilds a program from storage without running guards.
func RehydrateProgram(s ProgramSnapshot) *Program {
	return &Program{
		id: s.ID,
		info: ProgramInfo{
			Name:        s.Name,
			Description: s.Description,
			StartDate:   s.StartDate,
			EndDate:     s.EndDate,
		},
		state:     s.State,
		roles:     RehydrateRoleSet(s.CreatorID, s.Programmers, s.Staff),
		createdAt: s.CreatedAt,
		updatedAt: s.UpdatedAt,
	}
}

// Snapshot returns a copy of the program suitable for storage.
func (p *Program) Snapshot() ProgramSnapshot {
	return ProgramSnapshot{
		ID:          p.id,
		Name:        p.info.Name,
		Description: p.info.Description,
		StartDate:   p.info.StartDate,
		EndDate:     p.info.EndDate,
		State:       p.state,
		CreatorID:   p.roles.Creator(),
		Programmers: p.roles.Programmers(),
		Staff:       p.roles.Staff(),
		CreatedAt:   p.createdAt,
		UpdatedAt:   p.updatedAt,
	}
}

// Clone returns an independent copy.
func (p *Program) Clone() *Program {
	cp := *p
	cp.roles = p.roles.clone()
	return &cp
}

func (p *Program) ID() int64 { return p.id }
func (p *Program) Name() string { return p.info.Name }
func (p *Program) Description() string { return p.info.Description }
func (p *Program) StartDate() time.Time { return p.info.StartDate }
func (p *Program) EndDate() time.Time { return p.info.EndDate }
func (p *Program) State() ProgramState { return p.state }
func (p *Program) CreatorID() int64 { return p.roles.Creator() }
func (p *Program) Roles() RoleSet { return p.roles.clone() }
func (p *Program) CreatedAt() time.Time { return p.createdAt }
func (p *Program) UpdatedAt() time.Time { return p.updatedAt }
func (p *Program) IsProgrammer(id int64) bool { return p.roles.IsProgrammer(id) }
func (p *Program) IsStaff(id int64) bool { return p.roles.IsStaff(id) }

// IsCreator reports whether the user created the program.
func (p *Program) IsCreator(id int64) bool { return id > 0 && p.roles.Creator() == id }

func (p *Program) requireUnlocked(operation string) error {
	if p.state.Terminal() {
		return &StateError{Subject: "program", Operation: operation, State: string(p.state), Reason: "program is announced"}
	}
	return nil
}

func (p *Program) requireStaffOpen(operation string) error {
	if p.state != ProgramCreated {
		return &StateError{Subject: "program", Operation: operation, State: string(p.state), Reason: "staff is frozen after CREATED"}
	}
	return nil
}

// UpdateInfo replaces the descriptive fields.
func (p *Program) UpdateInfo(info ProgramInfo, now time.Time) error {
	if err := p.requireUnlocked("update"); err != nil {
		return err
	}
	if err := info.Validate(); err != nil {
		return err
	}
	p.info = info.normalize()
	p.updatedAt = now
	return nil
}

// ChangeState advances the program to requested.
func (p *Program) ChangeState(requested ProgramState, now time.Time) error {
	next, err := TransitionProgram(p.state, requested)
	if err != nil {
		return err
	}
	p.state = next
	p.updatedAt = now
	return nil
}

func (p *Program) AddProgrammer(userID int64, now time.Time) error {
	if err := p.requireUnlocked("addProgrammer"); err != nil {
		return err
	}
	if err := p.roles.addProgrammer(userID); err != nil {
		return err
	}
	p.updatedAt = now
	return nil
}

func (p *Program) RemoveProgrammer(userID int64, now time.Time) error {
	if err := p.requireUnlocked("removeProgrammer"); err != nil {
		return err
	}
	if err := p.roles.removeProgrammer(userID); err != nil {
		return err
	}
	p.updatedAt = now
	return nil
}

func (p *Program) AddStaff(userID int64, now time.Time) error {
	if err := p.requireStaffOpen("addStaff"); err != nil {
		return err
	}
	if err := p.roles.addStaff(userID); err != nil {
		return err
	}
	p.updatedAt = now
	return nil
}

func (p *Program) RemoveStaff(userID int64, now time.Time) error {
	if err := p.requireStaffOpen("removeStaff"); err != nil {
		return err
	}
	if err := p.roles.removeStaff(userID); err != nil {
		return err
	}
	p.updatedAt = now
	return nil
}
