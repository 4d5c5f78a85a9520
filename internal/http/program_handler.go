package http

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/example/festival-programs/internal/application"
	"github.com/example/festival-programs/internal/festival"
)

type programService interface {
	CreateProgram(ctx context.Context, params application.CreateProgramParams) (*festival.Program, error)
	UpdateProgram(ctx context.Context, params application.UpdateProgramParams) (*festival.Program, error)
	ChangeState(ctx context.Context, params application.ChangeProgramStateParams) (*festival.Program, error)
	AddProgrammer(ctx context.Context, params application.MembershipParams) (*festival.Program, error)
	RemoveProgrammer(ctx context.Context, params application.MembershipParams) (*festival.Program, error)
	AddStaff(ctx context.Context, params application.MembershipParams) (*festival.Program, error)
	RemoveStaff(ctx context.Context, params application.MembershipParams) (*festival.Program, error)
	DeleteProgram(ctx context.Context, principal application.Principal, programID int64) error
	GetProgram(ctx context.Context, principal application.Principal, programID int64) (*festival.Program, error)
	SearchPrograms(ctx context.Context, params application.SearchProgramsParams) (application.Page[*festival.Program], error)
}

type ProgramHandler struct {
	service   programService
	responder responder
	logger    *slog.Logger
}

func NewProgramHandler(service programService, logger *slog.Logger) *ProgramHandler {
	base := defaultLogger(logger)
	return &ProgramHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *ProgramHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "ProgramHandler", operation, attrs...)
}

func (h *ProgramHandler) ready(w http.ResponseWriter) bool {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return false
	}
	return true
}

func (h *ProgramHandler) List(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	logger := h.log(r.Context(), "List", "principal_id", principal.UserID)

	params, err := programSearchParams(r, principal)
	if err != nil {
		logger.ErrorContext(r.Context(), "invalid program query", "error", err, "error_kind", "bad_request")
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidQuery)
		return
	}

	page, err := h.service.SearchPrograms(r.Context(), params)
	if err != nil {
		logger.ErrorContext(r.Context(), "program search failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("result_count", len(page.Items), "total", page.Total).InfoContext(r.Context(), "programs listed")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, listProgramsResponse{
		Programs: toProgramDTOs(page.Items),
		Page:     pageDTO{Total: page.Total, Offset: page.Offset, Limit: page.Limit},
	})
}

func programSearchParams(r *http.Request, principal application.Principal) (application.SearchProgramsParams, error) {
	q := r.URL.Query()
	params := application.SearchProgramsParams{
		Principal: principal,
		Name:      strings.TrimSpace(q.Get("name")),
	}
	if raw := strings.TrimSpace(q.Get("state")); raw != "" {
		state, err := festival.ParseProgramState(raw)
		if err != nil {
			return params, err
		}
		params.State = state
	}
	var err error
	if params.StartsAfter, err = queryTime(q, "starts_after"); err != nil {
		return params, err
	}
	if params.EndsBefore, err = queryTime(q, "ends_before"); err != nil {
		return params, err
	}
	if params.Offset, params.Limit, err = pageQuery(q); err != nil {
		return params, err
	}
	return params, nil
}

func (h *ProgramHandler) Get(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}

	programID, ok := pathID(r, "programID")
	if !ok {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidProgramID)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	program, err := h.service.GetProgram(r.Context(), principal, programID)
	if err != nil {
		h.log(r.Context(), "Get", "program_id", programID).ErrorContext(r.Context(), "program lookup failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, programResponse{Program: toProgramDTO(program)})
}

func (h *ProgramHandler) Create(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	var req programRequest
	if err := decodeJSON(r, &req); err != nil {
		h.log(r.Context(), "Create", "principal_id", principal.UserID, "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode program request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	logger := h.log(r.Context(), "Create", "principal_id", principal.UserID)
	input, err := req.toInput()
	if err != nil {
		logger.ErrorContext(r.Context(), "invalid program dates", "error", err, "error_kind", "bad_request")
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	program, err := h.service.CreateProgram(r.Context(), application.CreateProgramParams{Principal: principal, Input: input})
	if err != nil {
		logger.ErrorContext(r.Context(), "program creation failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("program_id", program.ID()).InfoContext(r.Context(), "program created")
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, programResponse{Program: toProgramDTO(program)})
}

func (h *ProgramHandler) Update(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}

	programID, ok := pathID(r, "programID")
	if !ok {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidProgramID)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	logger := h.log(r.Context(), "Update", "principal_id", principal.UserID, "program_id", programID)

	var req programRequest
	if err := decodeJSON(r, &req); err != nil {
		logger.ErrorContext(r.Context(), "failed to decode program update", "error", err, "error_kind", "bad_request")
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}
	input, err := req.toInput()
	if err != nil {
		logger.ErrorContext(r.Context(), "invalid program dates", "error", err, "error_kind", "bad_request")
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	program, err := h.service.UpdateProgram(r.Context(), application.UpdateProgramParams{
		Principal: principal,
		ProgramID: programID,
		Input:     input,
	})
	if err != nil {
		logger.ErrorContext(r.Context(), "program update failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "program updated")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, programResponse{Program: toProgramDTO(program)})
}

func (h *ProgramHandler) ChangeState(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}

	programID, ok := pathID(r, "programID")
	if !ok {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidProgramID)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	logger := h.log(r.Context(), "ChangeState", "principal_id", principal.UserID, "program_id", programID)

	var req changeStateRequest
	if err := decodeJSON(r, &req); err != nil {
		logger.ErrorContext(r.Context(), "failed to decode state change", "error", err, "error_kind", "bad_request")
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}
	state, err := festival.ParseProgramState(req.State)
	if err != nil {
		logger.ErrorContext(r.Context(), "unknown program state", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	program, err := h.service.ChangeState(r.Context(), application.ChangeProgramStateParams{
		Principal: principal,
		ProgramID: programID,
		State:     state,
	})
	if err != nil {
		logger.ErrorContext(r.Context(), "program state change failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("state", program.State()).InfoContext(r.Context(), "program state changed")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, programResponse{Program: toProgramDTO(program)})
}

func (h *ProgramHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}

	programID, ok := pathID(r, "programID")
	if !ok {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidProgramID)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	logger := h.log(r.Context(), "Delete", "principal_id", principal.UserID, "program_id", programID)
	if err := h.service.DeleteProgram(r.Context(), principal, programID); err != nil {
		logger.ErrorContext(r.Context(), "program delete failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "program deleted")
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

func (h *ProgramHandler) AddProgrammer(w http.ResponseWriter, r *http.Request) {
	h.membership(w, r, "AddProgrammer", func(ctx context.Context, p application.MembershipParams) (*festival.Program, error) {
		return h.service.AddProgrammer(ctx, p)
	})
}

func (h *ProgramHandler) RemoveProgrammer(w http.ResponseWriter, r *http.Request) {
	h.membership(w, r, "RemoveProgrammer", func(ctx context.Context, p application.MembershipParams) (*festival.Program, error) {
		return h.service.RemoveProgrammer(ctx, p)
	})
}

func (h *ProgramHandler) AddStaff(w http.ResponseWriter, r *http.Request) {
	h.membership(w, r, "AddStaff", func(ctx context.Context, p application.MembershipParams) (*festival.Program, error) {
		return h.service.AddStaff(ctx, p)
	})
}

func (h *ProgramHandler) RemoveStaff(w http.ResponseWriter, r *http.Request) {
	h.membership(w, r, "RemoveStaff", func(ctx context.Context, p application.MembershipParams) (*festival.Program, error) {
		return h.service.RemoveStaff(ctx, p)
	})
}

func (h *ProgramHandler) membership(w http.ResponseWriter, r *http.Request, operation string, apply func(context.Context, application.MembershipParams) (*festival.Program, error)) {
	if !h.ready(w) {
		return
	}

	programID, ok := pathID(r, "programID")
	if !ok {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidProgramID)
		return
	}
	userID, ok := pathID(r, "userID")
	if !ok {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidUserID)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	logger := h.log(r.Context(), operation, "principal_id", principal.UserID, "program_id", programID, "user_id", userID)
	program, err := apply(r.Context(), application.MembershipParams{
		Principal: principal,
		ProgramID: programID,
		UserID:    userID,
	})
	if err != nil {
		logger.ErrorContext(r.Context(), "membership change failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "membership changed")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, programResponse{Program: toProgramDTO(program)})
}

type programRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	StartDate   string `json:"start_date"`
	EndDate     string `json:"end_date"`
}

// toInput parses the dates. Missing dates stay zero and are rejected by
// the domain validation.
func (r programRequest) toInput() (application.ProgramInput, error) {
	in := application.ProgramInput{Name: r.Name, Description: r.Description}
	var err error
	if strings.TrimSpace(r.StartDate) != "" {
		if in.StartDate, err = parseTime(r.StartDate); err != nil {
			return in, err
		}
	}
	if strings.TrimSpace(r.EndDate) != "" {
		if in.EndDate, err = parseTime(r.EndDate); err != nil {
			return in, err
		}
	}
	return in, nil
}

type changeStateRequest struct {
	State string `json:"state"`
}

type programResponse struct {
	Program programDTO `json:"program"`
}

type listProgramsResponse struct {
	Programs []programDTO `json:"programs"`
	Page     pageDTO      `json:"page"`
}

type programDTO struct {
	ID          int64   `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	StartDate   string  `json:"start_date"`
	EndDate     string  `json:"end_date"`
	State       string  `json:"state"`
	CreatorID   int64   `json:"creator_id"`
	Programmers []int64 `json:"programmers"`
	Staff       []int64 `json:"staff"`
	CreatedAt   string  `json:"created_at"`
	UpdatedAt   string  `json:"updated_at"`
}

func toProgramDTO(program *festival.Program) programDTO {
	if program == nil {
		return programDTO{}
	}
	s := program.Snapshot()
	dto := programDTO{
		ID:          s.ID,
		Name:        s.Name,
		Description: s.Description,
		StartDate:   s.StartDate.UTC().Format(dateLayout),
		EndDate:     s.EndDate.UTC().Format(dateLayout),
		State:       string(s.State),
		CreatorID:   s.CreatorID,
		Programmers: s.Programmers,
		Staff:       s.Staff,
		CreatedAt:   formatTime(s.CreatedAt),
		UpdatedAt:   formatTime(s.UpdatedAt),
	}
	if dto.Programmers == nil {
		dto.Programmers = []int64{}
	}
	if dto.Staff == nil {
		dto.Staff = []int64{}
	}
	return dto
}

func toProgramDTOs(programs []*festival.Program) []programDTO {
	out := make([]programDTO, 0, len(programs))
	for _, program := range programs {
		out = append(out, toProgramDTO(program))
	}
	return out
}
