package http

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/example/festival-programs/internal/application"
	"github.com/example/festival-programs/internal/festival"
)

type screeningService interface {
	CreateScreening(ctx context.Context, params application.CreateScreeningParams) (*festival.Screening, error)
	UpdateScreening(ctx context.Context, params application.UpdateScreeningParams) (*festival.Screening, error)
	SubmitScreening(ctx context.Context, params application.ScreeningActionParams) (*festival.Screening, error)
	AssignHandler(ctx context.Context, params application.AssignHandlerParams) (*festival.Screening, error)
	ReviewScreening(ctx context.Context, params application.ReviewScreeningParams) (*festival.Screening, error)
	ApproveScreening(ctx context.Context, params application.ScreeningActionParams) (*festival.Screening, error)
	RejectScreening(ctx context.Context, params application.RejectScreeningParams) (*festival.Screening, error)
	FinalSubmitScreening(ctx context.Context, params application.ScreeningActionParams) (*festival.Screening, error)
	ScheduleScreening(ctx context.Context, params application.ScheduleScreeningParams) (*festival.Screening, error)
	WithdrawScreening(ctx context.Context, params application.ScreeningActionParams) error
	GetScreening(ctx context.Context, principal application.Principal, screeningID int64) (*festival.Screening, error)
	SearchScreenings(ctx context.Context, params application.SearchScreeningsParams) (application.Page[*festival.Screening], error)
	ListMine(ctx context.Context, params application.ListScreeningsParams) (application.Page[*festival.Screening], error)
	ListAssigned(ctx context.Context, params application.ListScreeningsParams) (application.Page[*festival.Screening], error)
}

type ScreeningHandler struct {
	service   screeningService
	responder responder
	logger    *slog.Logger
}

func NewScreeningHandler(service screeningService, logger *slog.Logger) *ScreeningHandler {
	base := defaultLogger(logger)
	return &ScreeningHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *ScreeningHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "ScreeningHandler", operation, attrs...)
}

func (h *ScreeningHandler) ready(w http.ResponseWriter) bool {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return false
	}
	return true
}

// Search handles GET /programs/{programID}/screenings.
func (h *ScreeningHandler) Search(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}

	programID, ok := pathID(r, "programID")
	if !ok {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidProgramID)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	logger := h.log(r.Context(), "Search", "principal_id", principal.UserID, "program_id", programID)

	params, err := screeningSearchParams(r, principal, programID)
	if err != nil {
		logger.ErrorContext(r.Context(), "invalid screening query", "error", err, "error_kind", "bad_request")
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidQuery)
		return
	}

	page, err := h.service.SearchScreenings(r.Context(), params)
	if err != nil {
		logger.ErrorContext(r.Context(), "screening search failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("result_count", len(page.Items), "total", page.Total).InfoContext(r.Context(), "screenings listed")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, toListScreeningsResponse(page))
}

func screeningSearchParams(r *http.Request, principal application.Principal, programID int64) (application.SearchScreeningsParams, error) {
	q := r.URL.Query()
	params := application.SearchScreeningsParams{
		Principal: principal,
		ProgramID: programID,
		Title:     strings.TrimSpace(q.Get("title")),
		Genre:     strings.TrimSpace(q.Get("genre")),
		Sort:      application.ScreeningSort(strings.TrimSpace(q.Get("sort"))),
	}
	if raw := strings.TrimSpace(q.Get("state")); raw != "" {
		state, err := festival.ParseScreeningState(raw)
		if err != nil {
			return params, err
		}
		params.State = state
	}
	var err error
	if params.ScheduledFrom, err = queryTime(q, "scheduled_from"); err != nil {
		return params, err
	}
	if params.ScheduledTo, err = queryTime(q, "scheduled_to"); err != nil {
		return params, err
	}
	if params.Offset, params.Limit, err = pageQuery(q); err != nil {
		return params, err
	}
	return params, nil
}

// ListMine handles GET /me/screenings.
func (h *ScreeningHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	h.listFor(w, r, "ListMine", func(ctx context.Context, p application.ListScreeningsParams) (application.Page[*festival.Screening], error) {
		return h.service.ListMine(ctx, p)
	})
}

// ListAssigned handles GET /me/assignments.
func (h *ScreeningHandler) ListAssigned(w http.ResponseWriter, r *http.Request) {
	h.listFor(w, r, "ListAssigned", func(ctx context.Context, p application.ListScreeningsParams) (application.Page[*festival.Screening], error) {
		return h.service.ListAssigned(ctx, p)
	})
}

func (h *ScreeningHandler) listFor(w http.ResponseWriter, r *http.Request, operation string, list func(context.Context, application.ListScreeningsParams) (application.Page[*festival.Screening], error)) {
	if !h.ready(w) {
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	logger := h.log(r.Context(), operation, "principal_id", principal.UserID)

	offset, limit, err := pageQuery(r.URL.Query())
	if err != nil {
		logger.ErrorContext(r.Context(), "invalid paging query", "error", err, "error_kind", "bad_request")
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidQuery)
		return
	}

	page, err := list(r.Context(), application.ListScreeningsParams{Principal: principal, Offset: offset, Limit: limit})
	if err != nil {
		logger.ErrorContext(r.Context(), "screening list failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, toListScreeningsResponse(page))
}

// Create handles POST /programs/{programID}/screenings.
func (h *ScreeningHandler) Create(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}

	programID, ok := pathID(r, "programID")
	if !ok {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidProgramID)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	logger := h.log(r.Context(), "Create", "principal_id", principal.UserID, "program_id", programID)

	var req screeningRequest
	if err := decodeJSON(r, &req); err != nil {
		logger.ErrorContext(r.Context(), "failed to decode screening request", "error", err, "error_kind", "bad_request")
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	screening, err := h.service.CreateScreening(r.Context(), application.CreateScreeningParams{
		Principal: principal,
		ProgramID: programID,
		Input:     req.toInput(),
	})
	if err != nil {
		logger.ErrorContext(r.Context(), "screening creation failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("screening_id", screening.ID()).InfoContext(r.Context(), "screening created")
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, screeningResponse{Screening: toScreeningDTO(screening)})
}

func (h *ScreeningHandler) Get(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}

	screeningID, ok := pathID(r, "screeningID")
	if !ok {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidScreenID)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	screening, err := h.service.GetScreening(r.Context(), principal, screeningID)
	if err != nil {
		h.log(r.Context(), "Get", "screening_id", screeningID).ErrorContext(r.Context(), "screening lookup failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, screeningResponse{Screening: toScreeningDTO(screening)})
}

func (h *ScreeningHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req screeningRequest
	h.act(w, r, "Update", &req, func(ctx context.Context, p application.Principal, id int64) (*festival.Screening, error) {
		return h.service.UpdateScreening(ctx, application.UpdateScreeningParams{Principal: p, ScreeningID: id, Input: req.toInput()})
	})
}

func (h *ScreeningHandler) Submit(w http.ResponseWriter, r *http.Request) {
	h.act(w, r, "Submit", nil, func(ctx context.Context, p application.Principal, id int64) (*festival.Screening, error) {
		return h.service.SubmitScreening(ctx, application.ScreeningActionParams{Principal: p, ScreeningID: id})
	})
}

func (h *ScreeningHandler) AssignHandler(w http.ResponseWriter, r *http.Request) {
	var req assignHandlerRequest
	h.act(w, r, "AssignHandler", &req, func(ctx context.Context, p application.Principal, id int64) (*festival.Screening, error) {
		return h.service.AssignHandler(ctx, application.AssignHandlerParams{Principal: p, ScreeningID: id, HandlerID: req.HandlerID})
	})
}

func (h *ScreeningHandler) Review(w http.ResponseWriter, r *http.Request) {
	var req reviewRequest
	h.act(w, r, "Review", &req, func(ctx context.Context, p application.Principal, id int64) (*festival.Screening, error) {
		return h.service.ReviewScreening(ctx, application.ReviewScreeningParams{Principal: p, ScreeningID: id, Score: req.Score, Comments: req.Comments})
	})
}

func (h *ScreeningHandler) Approve(w http.ResponseWriter, r *http.Request) {
	h.act(w, r, "Approve", nil, func(ctx context.Context, p application.Principal, id int64) (*festival.Screening, error) {
		return h.service.ApproveScreening(ctx, application.ScreeningActionParams{Principal: p, ScreeningID: id})
	})
}

func (h *ScreeningHandler) Reject(w http.ResponseWriter, r *http.Request) {
	var req rejectRequest
	h.act(w, r, "Reject", &req, func(ctx context.Context, p application.Principal, id int64) (*festival.Screening, error) {
		return h.service.RejectScreening(ctx, application.RejectScreeningParams{Principal: p, ScreeningID: id, Reason: req.Reason})
	})
}

func (h *ScreeningHandler) FinalSubmit(w http.ResponseWriter, r *http.Request) {
	h.act(w, r, "FinalSubmit", nil, func(ctx context.Context, p application.Principal, id int64) (*festival.Screening, error) {
		return h.service.FinalSubmitScreening(ctx, application.ScreeningActionParams{Principal: p, ScreeningID: id})
	})
}

func (h *ScreeningHandler) Schedule(w http.ResponseWriter, r *http.Request) {
	var req scheduleRequest
	h.act(w, r, "Schedule", &req, func(ctx context.Context, p application.Principal, id int64) (*festival.Screening, error) {
		return h.service.ScheduleScreening(ctx, application.ScheduleScreeningParams{Principal: p, ScreeningID: id, Date: req.at, Room: req.Room})
	})
}

// Withdraw handles DELETE /screenings/{screeningID}.
func (h *ScreeningHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}

	screeningID, ok := pathID(r, "screeningID")
	if !ok {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidScreenID)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	logger := h.log(r.Context(), "Withdraw", "principal_id", principal.UserID, "screening_id", screeningID)
	if err := h.service.WithdrawScreening(r.Context(), application.ScreeningActionParams{Principal: principal, ScreeningID: screeningID}); err != nil {
		logger.ErrorContext(r.Context(), "screening withdrawal failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "screening withdrawn")
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

// bodyParser is implemented by requests that need a post-decode step.
type bodyParser interface {
	parse() error
}

// act runs one workflow operation on the screening named in the path. body
// may be nil for operations without a payload.
func (h *ScreeningHandler) act(w http.ResponseWriter, r *http.Request, operation string, body any, apply func(context.Context, application.Principal, int64) (*festival.Screening, error)) {
	if !h.ready(w) {
		return
	}

	screeningID, ok := pathID(r, "screeningID")
	if !ok {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidScreenID)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	logger := h.log(r.Context(), operation, "principal_id", principal.UserID, "screening_id", screeningID)

	if body != nil {
		if err := decodeJSON(r, body); err != nil {
			logger.ErrorContext(r.Context(), "failed to decode screening payload", "error", err, "error_kind", "bad_request")
			h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
			return
		}
		if p, ok := body.(bodyParser); ok {
			if err := p.parse(); err != nil {
				logger.ErrorContext(r.Context(), "invalid screening payload", "error", err, "error_kind", "bad_request")
				h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
				return
			}
		}
	}

	screening, err := apply(r.Context(), principal, screeningID)
	if err != nil {
		logger.ErrorContext(r.Context(), "screening operation failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("state", screening.State()).InfoContext(r.Context(), "screening operation applied")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, screeningResponse{Screening: toScreeningDTO(screening)})
}

type screeningRequest struct {
	Title       string `json:"title"`
	Genre       string `json:"genre"`
	Description string `json:"description"`
}

func (r screeningRequest) toInput() application.ScreeningInput {
	return application.ScreeningInput{Title: r.Title, Genre: r.Genre, Description: r.Description}
}

type assignHandlerRequest struct {
	HandlerID int64 `json:"handler_id"`
}

type reviewRequest struct {
	Score    int    `json:"score"`
	Comments string `json:"comments"`
}

type rejectRequest struct {
	Reason string `json:"reason"`
}

type scheduleRequest struct {
	Date string `json:"date"`
	Room string `json:"room"`

	at time.Time
}

func (r *scheduleRequest) parse() error {
	if strings.TrimSpace(r.Date) == "" {
		return nil
	}
	at, err := parseTime(r.Date)
	if err != nil {
		return err
	}
	r.at = at
	return nil
}

type screeningResponse struct {
	Screening screeningDTO `json:"screening"`
}

type listScreeningsResponse struct {
	Screenings []screeningDTO `json:"screenings"`
	Page       pageDTO        `json:"page"`
}

type screeningDTO struct {
	ID              int64  `json:"id"`
	ProgramID       int64  `json:"program_id"`
	SubmitterID     int64  `json:"submitter_id"`
	HandlerID       int64  `json:"handler_id,omitempty"`
	Title           string `json:"title"`
	Genre           string `json:"genre"`
	Description     string `json:"description"`
	State           string `json:"state"`
	Score           *int   `json:"score,omitempty"`
	Comments        string `json:"comments,omitempty"`
	RejectionReason string `json:"rejection_reason,omitempty"`
	Room            string `json:"room,omitempty"`
	ScheduledAt     string `json:"scheduled_at,omitempty"`
	SubmittedAt     string `json:"submitted_at,omitempty"`
	ReviewedAt      string `json:"reviewed_at,omitempty"`
	FinalizedAt     string `json:"finalized_at,omitempty"`
	CreatedAt       string `json:"created_at"`
	UpdatedAt       string `json:"updated_at"`
}

func toScreeningDTO(screening *festival.Screening) screeningDTO {
	if screening == nil {
		return screeningDTO{}
	}
	s := screening.Snapshot()
	return screeningDTO{
		ID:              s.ID,
		ProgramID:       s.ProgramID,
		SubmitterID:     s.SubmitterID,
		HandlerID:       s.HandlerID,
		Title:           s.Title,
		Genre:           s.Genre,
		Description:     s.Description,
		State:           string(s.State),
		Score:           s.Score,
		Comments:        s.Comments,
		RejectionReason: s.RejectionReason,
		Room:            s.Room,
		ScheduledAt:     formatTime(s.ScheduledAt),
		SubmittedAt:     formatTime(s.SubmittedAt),
		ReviewedAt:      formatTime(s.ReviewedAt),
		FinalizedAt:     formatTime(s.FinalizedAt),
		CreatedAt:       formatTime(s.CreatedAt),
		UpdatedAt:       formatTime(s.UpdatedAt),
	}
}

func toListScreeningsResponse(page application.Page[*festival.Screening]) listScreeningsResponse {
	out := make([]screeningDTO, 0, len(page.Items))
	for _, screening := range page.Items {
		out = append(out, toScreeningDTO(screening))
	}
	return listScreeningsResponse{
		Screenings: out,
		Page:       pageDTO{Total: page.Total, Offset: page.Offset, Limit: page.Limit},
	}
}
