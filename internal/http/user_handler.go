package http

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/example/festival-programs/internal/application"
	"github.com/example/festival-programs/internal/festival"
)

type userService interface {
	CreateUser(ctx context.Context, params application.CreateUserParams) (festival.User, error)
	GetUser(ctx context.Context, principal application.Principal, userID int64) (festival.User, error)
	ListUsers(ctx context.Context, principal application.Principal) ([]festival.User, error)
	UpdateUser(ctx context.Context, params application.UpdateUserParams) (festival.User, error)
	ChangePassword(ctx context.Context, params application.ChangePasswordParams) error
	DeleteUser(ctx context.Context, params application.UserActionParams) error
	ActivateUser(ctx context.Context, params application.UserActionParams) (festival.User, error)
	DeactivateUser(ctx context.Context, params application.UserActionParams) (festival.User, error)
	UnlockUser(ctx context.Context, params application.UserActionParams) (festival.User, error)
}

type UserHandler struct {
	service   userService
	responder responder
	logger    *slog.Logger
}

func NewUserHandler(service userService, logger *slog.Logger) *UserHandler {
	base := defaultLogger(logger)
	return &UserHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *UserHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "UserHandler", operation, attrs...)
}

func (h *UserHandler) ready(w http.ResponseWriter) bool {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return false
	}
	return true
}

func (h *UserHandler) Create(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	var req createUserRequest
	if err := decodeJSON(r, &req); err != nil {
		h.log(r.Context(), "Create", "principal_id", principal.UserID, "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode user request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	logger := h.log(r.Context(), "Create", "principal_id", principal.UserID)

	role, err := festival.ParseRole(req.Role)
	if err != nil {
		logger.ErrorContext(r.Context(), "user creation rejected", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	user, err := h.service.CreateUser(r.Context(), application.CreateUserParams{
		Principal: principal,
		Username:  req.Username,
		Password:  req.Password,
		FullName:  req.FullName,
		Role:      role,
	})
	if err != nil {
		logger.ErrorContext(r.Context(), "user creation failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("user_id", user.ID).InfoContext(r.Context(), "user created")
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, userResponse{User: toUserDTO(user)})
}

func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}

	userID, ok := pathID(r, "userID")
	if !ok {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidUserID)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	user, err := h.service.GetUser(r.Context(), principal, userID)
	if err != nil {
		h.log(r.Context(), "Get", "user_id", userID).ErrorContext(r.Context(), "user lookup failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, userResponse{User: toUserDTO(user)})
}

func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	logger := h.log(r.Context(), "List", "principal_id", principal.UserID)
	users, err := h.service.ListUsers(r.Context(), principal)
	if err != nil {
		logger.ErrorContext(r.Context(), "user list failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("result_count", len(users)).InfoContext(r.Context(), "users listed")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, listUsersResponse{Users: toUserDTOs(users)})
}

func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}

	userID, ok := pathID(r, "userID")
	if !ok {
		h.log(r.Context(), "Update", "error_kind", "bad_request").ErrorContext(r.Context(), "missing user id for update")
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidUserID)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	var req updateUserRequest
	if err := decodeJSON(r, &req); err != nil {
		h.log(r.Context(), "Update", "principal_id", principal.UserID, "user_id", userID, "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode user update", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	logger := h.log(r.Context(), "Update", "principal_id", principal.UserID, "user_id", userID)

	user, err := h.service.UpdateUser(r.Context(), application.UpdateUserParams{
		Principal: principal,
		UserID:    userID,
		Username:  strings.TrimSpace(req.Username),
		FullName:  strings.TrimSpace(req.FullName),
	})
	if err != nil {
		logger.ErrorContext(r.Context(), "user update failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "user updated")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, userResponse{User: toUserDTO(user)})
}

func (h *UserHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}

	userID, ok := pathID(r, "userID")
	if !ok {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidUserID)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	var req changePasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		h.log(r.Context(), "ChangePassword", "user_id", userID, "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode password change", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	logger := h.log(r.Context(), "ChangePassword", "principal_id", principal.UserID, "user_id", userID)
	err := h.service.ChangePassword(r.Context(), application.ChangePasswordParams{
		Principal:   principal,
		UserID:      userID,
		OldPassword: req.OldPassword,
		NewPassword: req.NewPassword,
	})
	if err != nil {
		logger.ErrorContext(r.Context(), "password change failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "password changed")
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}

	userID, ok := pathID(r, "userID")
	if !ok {
		h.log(r.Context(), "Delete", "error_kind", "bad_request").ErrorContext(r.Context(), "missing user id for delete")
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidUserID)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	logger := h.log(r.Context(), "Delete", "principal_id", principal.UserID, "user_id", userID)
	if err := h.service.DeleteUser(r.Context(), application.UserActionParams{Principal: principal, UserID: userID}); err != nil {
		logger.ErrorContext(r.Context(), "user delete failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "user deleted")
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

func (h *UserHandler) Activate(w http.ResponseWriter, r *http.Request) {
	h.adminAction(w, r, "Activate", func(ctx context.Context, params application.UserActionParams) (festival.User, error) {
		return h.service.ActivateUser(ctx, params)
	})
}

func (h *UserHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	h.adminAction(w, r, "Deactivate", func(ctx context.Context, params application.UserActionParams) (festival.User, error) {
		return h.service.DeactivateUser(ctx, params)
	})
}

func (h *UserHandler) Unlock(w http.ResponseWriter, r *http.Request) {
	h.adminAction(w, r, "Unlock", func(ctx context.Context, params application.UserActionParams) (festival.User, error) {
		return h.service.UnlockUser(ctx, params)
	})
}

func (h *UserHandler) adminAction(w http.ResponseWriter, r *http.Request, operation string, action func(context.Context, application.UserActionParams) (festival.User, error)) {
	if !h.ready(w) {
		return
	}

	userID, ok := pathID(r, "userID")
	if !ok {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidUserID)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	logger := h.log(r.Context(), operation, "principal_id", principal.UserID, "user_id", userID)
	user, err := action(r.Context(), application.UserActionParams{Principal: principal, UserID: userID})
	if err != nil {
		logger.ErrorContext(r.Context(), "user action failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "user action applied", "active", user.Active, "locked", user.Locked())
	h.responder.writeJSON(r.Context(), w, http.StatusOK, userResponse{User: toUserDTO(user)})
}

type createUserRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	FullName string `json:"full_name"`
	Role     string `json:"role"`
}

type updateUserRequest struct {
	Username string `json:"username"`
	FullName string `json:"full_name"`
}

type changePasswordRequest struct {
	OldPassword string `json:"old_password"`
	NewPassword string `json:"new_password"`
}

type userResponse struct {
	User userDTO `json:"user"`
}

type listUsersResponse struct {
	Users []userDTO `json:"users"`
}

type userDTO struct {
	ID          int64  `json:"id"`
	Username    string `json:"username"`
	FullName    string `json:"full_name"`
	Role        string `json:"role"`
	Active      bool   `json:"active"`
	Locked      bool   `json:"locked"`
	LastLoginAt string `json:"last_login_at,omitempty"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}

func toUserDTO(user festival.User) userDTO {
	return userDTO{
		ID:          user.ID,
		Username:    user.Username,
		FullName:    user.FullName,
		Role:        user.Role.String(),
		Active:      user.Active,
		Locked:      user.Locked(),
		LastLoginAt: formatTime(user.LastLoginAt),
		CreatedAt:   formatTime(user.CreatedAt),
		UpdatedAt:   formatTime(user.UpdatedAt),
	}
}

func toUserDTOs(users []festival.User) []userDTO {
	out := make([]userDTO, 0, len(users))
	for _, user := range users {
		out = append(out, toUserDTO(user))
	}
	return out
}
