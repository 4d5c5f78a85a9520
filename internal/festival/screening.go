package festival

import (
	"strings"
	"time"
)

// ScreeningState is a step of a submission's review pipeline.
type ScreeningState string

const (
	ScreeningCreated        ScreeningState = "CREATED"
	ScreeningSubmitted      ScreeningState = "SUBMITTED"
	ScreeningReviewed       ScreeningState = "REVIEWED"
	ScreeningApproved       ScreeningState = "APPROVED"
	ScreeningFinalSubmitted ScreeningState = "FINAL_SUBMITTED"
	ScreeningScheduled      ScreeningState = "SCHEDULED"
	ScreeningRejected       ScreeningState = "REJECTED"
)

// MinScore and MaxScore bound a review score, inclusive.
const (
	MinScore = 0
	MaxScore = 10
)

// AutoRejectReason is recorded on approved screenings that missed final submission.
const AutoRejectReason = "Auto-rejected: approved but not finally submitted"

var screeningTransitions = map[ScreeningState][]ScreeningState{
	ScreeningCreated:        {ScreeningSubmitted},
	ScreeningSubmitted:      {ScreeningReviewed},
	ScreeningReviewed:       {ScreeningApproved, ScreeningRejected},
	ScreeningApproved:       {ScreeningFinalSubmitted, ScreeningScheduled, ScreeningRejected},
	ScreeningFinalSubmitted: {ScreeningScheduled},
	ScreeningScheduled:      nil,
	ScreeningRejected:       nil,
}

// ParseScreeningState validates a textual state.
func ParseScreeningState(value string) (ScreeningState, error) {
	state := ScreeningState(strings.ToUpper(strings.TrimSpace(value)))
	if !state.Valid() {
		return "", invalid("state", "unknown screening state "+value)
	}
	return state, nil
}

func (s ScreeningState) Valid() bool {
	_, ok := screeningTransitions[s]
	return ok
}

func (s ScreeningState) Terminal() bool {
	return s.Valid() && len(screeningTransitions[s]) == 0
}

// CanTransition reports whether requested is a direct successor of s.
func (s ScreeningState) CanTransition(requested ScreeningState) bool {
	for _, next := range screeningTransitions[s] {
		if next == requested {
			return true
		}
	}
	return false
}

// TransitionScreening returns requested when the graph allows it.
func TransitionScreening(current, requested ScreeningState) (ScreeningState, error) {
	if !current.CanTransition(requested) {
		return current, &TransitionError{Subject: "screening", From: string(current), To: string(requested)}
	}
	return requested, nil
}

// ScreeningDraft carries the submitter editable fields.
type ScreeningDraft struct {
	Title       string
	Genre       string
	Description string
}

func (d ScreeningDraft) normalize() ScreeningDraft {
	return ScreeningDraft{
		Title:       strings.TrimSpace(d.Title),
		Genre:       strings.TrimSpace(d.Genre),
		Description: strings.TrimSpace(d.Description),
	}
}

// Screening is a content submission inside a program.
type Screening struct {
	id          int64
	programID   int64
	submitterID int64
	handlerID   int64
	draft       ScreeningDraft
	room        string
	scheduledAt time.Time
	state       ScreeningState
	score       *int
	comments    string
	rejection   string
	createdAt   time.Time
	submittedAt time.Time
	reviewedAt  time.Time
	finalizedAt time.Time
	updatedAt   time.Time
}

// ScreeningSnapshot is the flat storage form of a Screening. Zero times mean unset.
type ScreeningSnapshot struct {
	ID              int64
	ProgramID       int64
	SubmitterID     int64
	HandlerID       int64
	Title           string
	Genre           string
	Description     string
	Room            string
	ScheduledAt     time.Time
	State           ScreeningState
	Score           *int
	Comments        string
	RejectionReason string
	CreatedAt       time.Time
	SubmittedAt     time.Time
	ReviewedAt      time.Time
	FinalizedAt     time.Time
	UpdatedAt       time.Time
}

// NewScreening creates a draft in CREATED. The title may still be empty.
func NewScreening(programID, submitterID int64, draft ScreeningDraft, now time.Time) (*Screening, error) {
	if programID <= 0 {
		return nil, invalid("program_id", "program is required")
	}
	if submitterID <= 0 {
		return nil, invalid("submitter_id", "submitter is required")
	}
	return &Screening{
		programID:   programID,
		submitterID: submitterID,
		draft:       draft.normalize(),
		state:       ScreeningCreated,
		createdAt:   now,
		updatedAt:   now,
	}, nil
}

// RehydrateScreening rebuilds a screening from storage without running guards.
func RehydrateScreening(s ScreeningSnapshot) *Screening {
	out := &Screening{
		id:          s.ID,
		programID:   s.ProgramID,
		submitterID: s.SubmitterID,
		handlerID:   s.HandlerID,
		draft:       ScreeningDraft{Title: s.Title, Genre: s.Genre, Description: s.Description},
		room:        s.Room,
		scheduledAt: s.ScheduledAt,
		state:       s.State,
		comments:    s.Comments,
		rejection:   s.RejectionReason,
		createdAt:   s.CreatedAt,
		submittedAt: s.SubmittedAt,
		reviewedAt:  s.ReviewedAt,
		finalizedAt: s.FinalizedAt,
		updatedAt:   s.UpdatedAt,
	}
	if s.Score != nil {
		score := *s.Score
		out.score = &score
	}
	return out
}

// Snapshot returns a copy of the screening suitable for storage.
func (s *Screening) Snapshot() ScreeningSnapshot {
	out := ScreeningSnapshot{
		ID:              s.id,
		ProgramID:       s.programID,
		SubmitterID:     s.submitterID,
		HandlerID:       s.handlerID,
		Title:           s.draft.Title,
		Genre:           s.draft.Genre,
		Description:     s.draft.Description,
		Room:            s.room,
		ScheduledAt:     s.scheduledAt,
		State:           s.state,
		Comments:        s.comments,
		RejectionReason: s.rejection,
		CreatedAt:       s.createdAt,
		SubmittedAt:     s.submittedAt,
		ReviewedAt:      s.reviewedAt,
		FinalizedAt:     s.finalizedAt,
		UpdatedAt:       s.updatedAt,
	}
	if s.score != nil {
		score := *s.score
		out.Score = &score
	}
	return out
}

// Clone returns an independent copy.
func (s *Screening) Clone() *Screening {
	return RehydrateScreening(s.Snapshot())
}

func (s *Screening) ID() int64 { return s.id }
func (s *Screening) ProgramID() int64 { return s.programID }
func (s *Screening) SubmitterID() int64 { return s.submitterID }
func (s *Screening) HandlerID() int64 { return s.handlerID }
func (s *Screening) Title() string { return s.draft.Title }
func (s *Screening) Genre() string { return s.draft.Genre }
func (s *Screening) Description() string { return s.draft.Description }
func (s *Screening) Room() string { return s.room }
func (s *Screening) ScheduledAt() time.Time { return s.scheduledAt }
func (s *Screening) State() ScreeningState { return s.state }
func (s *Screening) Comments() string { return s.comments }
func (s *Screening) RejectionReason() string { return s.rejection }
func (s *Screening) CreatedAt() time.Time { return s.createdAt }
func (s *Screening) SubmittedAt() time.Time { return s.submittedAt }
func (s *Screening) ReviewedAt() time.Time { return s.reviewedAt }
func (s *Screening) FinalizedAt() time.Time { return s.finalizedAt }
func (s *Screening) UpdatedAt() time.Time { return s.updatedAt }

// Score returns the review score and whether one was recorded.
func (s *Screening) Score() (int, bool) {
	if s.score == nil {
		return 0, false
	}
	return *s.score, true
}

func (s *Screening) IsOwner(userID int64) bool { return userID > 0 && s.submitterID == userID }

func (s *Screening) IsAssignedTo(userID int64) bool { return userID > 0 && s.handlerID == userID }

func (s *Screening) stateError(operation, reason string) error {
	return &StateError{Subject: "screening", Operation: operation, State: string(s.state), Reason: reason}
}

// UpdateDraft edits the descriptive fields while still in CREATED.
func (s *Screening) UpdateDraft(draft ScreeningDraft, now time.Time) error {
	if s.state != ScreeningCreated {
		return s.stateError("update", "only CREATED screenings can be edited")
	}
	s.draft = draft.normalize()
	s.updatedAt = now
	return nil
}

// Submit moves a complete draft to SUBMITTED.
func (s *Screening) Submit(now time.Time) error {
	next, err := TransitionScreening(s.state, ScreeningSubmitted)
	if err != nil {
		return err
	}
	if s.draft.Title == "" {
		return invalid("title", "title is required for submission")
	}
	s.state = next
	s.submittedAt = now
	s.updatedAt = now
	return nil
}

// AssignHandler records the staff member responsible for the review.
func (s *Screening) AssignHandler(handlerID int64, now time.Time) error {
	if s.state != ScreeningSubmitted {
		return s.stateError("assignHandler", "handler assignment requires SUBMITTED")
	}
	if handlerID <= 0 {
		return invalid("handler_id", "handler is required")
	}
	if s.handlerID != 0 {
		return s.stateError("assignHandler", "a handler is already assigned")
	}
	s.handlerID = handlerID
	s.updatedAt = now
	return nil
}

// Review records the handler's verdict and moves to REVIEWED.
func (s *Screening) Review(score int, comments string, now time.Time) error {
	next, err := TransitionScreening(s.state, ScreeningReviewed)
	if err != nil {
		return err
	}
	if s.handlerID == 0 {
		return s.stateError("review", "no handler assigned")
	}
	if score < MinScore || score > MaxScore {
		return invalid("score", "score must be between 0 and 10")
	}
	s.score = &score
	s.comments = strings.TrimSpace(comments)
	s.state = next
	s.reviewedAt = now
	s.updatedAt = now
	return nil
}

// Approve accepts a reviewed screening.
func (s *Screening) Approve(now time.Time) error {
	if s.state != ScreeningReviewed {
		return &TransitionError{Subject: "screening", From: string(s.state), To: string(ScreeningApproved)}
	}
	s.state = ScreeningApproved
	s.updatedAt = now
	return nil
}

// Reject closes the screening with a reason. Allowed from REVIEWED and, in the
// late decision window, from APPROVED.
func (s *Screening) Reject(reason string, now time.Time) error {
	next, err := TransitionScreening(s.state, ScreeningRejected)
	if err != nil {
		return err
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return invalid("reason", "rejection reason is required")
	}
	s.rejection = reason
	s.state = next
	s.updatedAt = now
	return nil
}

// FinalSubmit confirms an approved screening for publication.
func (s *Screening) FinalSubmit(now time.Time) error {
	if s.state != ScreeningApproved {
		return &TransitionError{Subject: "screening", From: string(s.state), To: string(ScreeningFinalSubmitted)}
	}
	s.state = ScreeningFinalSubmitted
	s.finalizedAt = now
	s.updatedAt = now
	return nil
}

// Schedule places the screening in a room on a date. Terminal.
func (s *Screening) Schedule(date time.Time, room string, now time.Time) error {
	next, err := TransitionScreening(s.state, ScreeningScheduled)
	if err != nil {
		return err
	}
	room = strings.TrimSpace(room)
	if date.IsZero() {
		return invalid("date", "date is required")
	}
	if room == "" {
		return invalid("room", "room is required")
	}
	s.scheduledAt = date
	s.room = room
	s.state = next
	s.updatedAt = now
	return nil
}

// Withdraw checks that the submitter may still pull the screening. The caller
// removes the record.
func (s *Screening) Withdraw() error {
	if s.state != ScreeningCreated && s.state != ScreeningSubmitted {
		return s.stateError("withdraw", "only CREATED or SUBMITTED screenings can be withdrawn")
	}
	return nil
}
