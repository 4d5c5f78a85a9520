package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/example/festival-programs/internal/application"
)

type auditService interface {
	ListRecent(ctx context.Context, principal application.Principal, limit int) ([]application.AuditEntry, error)
}

// AuditHandler exposes the audit log to administrators.
type AuditHandler struct {
	service   auditService
	responder responder
	logger    *slog.Logger
}

func NewAuditHandler(service auditService, logger *slog.Logger) *AuditHandler {
	base := defaultLogger(logger)
	return &AuditHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *AuditHandler) List(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	logger := handlerLogger(r.Context(), h.logger, "AuditHandler", "List", "principal_id", principal.UserID)

	limit, err := queryInt(r.URL.Query(), "limit")
	if err != nil || limit < 0 {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidQuery)
		return
	}

	entries, err := h.service.ListRecent(r.Context(), principal, limit)
	if err != nil {
		logger.ErrorContext(r.Context(), "audit list failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	out := make([]auditDTO, 0, len(entries))
	for _, entry := range entries {
		out = append(out, auditDTO{
			ID:        entry.ID,
			ActorID:   entry.ActorID,
			Action:    entry.Action,
			Target:    entry.Target,
			CreatedAt: formatTime(entry.CreatedAt),
		})
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, listAuditResponse{Entries: out})
}

type auditDTO struct {
	ID        int64  `json:"id"`
	ActorID   int64  `json:"actor_id"`
	Action    string `json:"action"`
	Target    string `json:"target"`
	CreatedAt string `json:"created_at"`
}

type listAuditResponse struct {
	Entries []auditDTO `json:"entries"`
}
