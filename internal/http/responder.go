package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/example/festival-programs/internal/application"
	"github.com/example/festival-programs/internal/festival"
)

var (
	errBadRequestBody   = errors.New("無効なリクエスト形式です。")
	errInvalidUserID    = errors.New("無効なユーザー ID です。")
	errInvalidProgramID = errors.New("無効なプログラム ID です。")
	errInvalidScreenID  = errors.New("無効な上映 ID です。")
	errInvalidQuery     = errors.New("検索条件が正しくありません。")
	errMissingToken     = errors.New("認証トークンを指定してください")
)

type responder struct {
	logger *slog.Logger
}

func newResponder(logger *slog.Logger) responder {
	if logger == nil {
		logger = slog.Default()
	}
	return responder{logger: logger}
}

func (r responder) writeJSON(ctx context.Context, w http.ResponseWriter, status int, payload any) {
	if w == nil {
		return
	}

	if status == http.StatusNoContent || payload == nil {
		w.WriteHeader(status)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		r.loggerFor(ctx).ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

func (r responder) writeError(ctx context.Context, w http.ResponseWriter, status int, err error) {
	message := localizedStatusMessage(status)
	if err != nil {
		if msg := strings.TrimSpace(err.Error()); msg != "" {
			message = msg
		}
		r.loggerFor(ctx).ErrorContext(ctx, "request failed", "status", status, "error", err)
	}

	r.writeJSON(ctx, w, status, errorResponse{Message: message})
}

// handleServiceError derives the status from application.ErrorKind so the
// log label and the response always agree.
func (r responder) handleServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		r.writeError(ctx, w, http.StatusInternalServerError, errors.New("unknown error"))
		return
	}

	kind := application.ErrorKind(err)
	status := statusForKind(kind)
	resp := errorResponse{
		ErrorCode: strings.ToUpper(kind),
		Message:   kindMessage(kind, status),
	}
	if kind == "validation" {
		resp.Errors = validationDetails(err)
	}
	if status == http.StatusInternalServerError {
		resp.ErrorCode = ""
		r.loggerFor(ctx).ErrorContext(ctx, "unexpected service error", "error", err)
	}
	r.writeJSON(ctx, w, status, resp)
}

func (r responder) loggerFor(ctx context.Context) *slog.Logger {
	if logger := LoggerFromContext(ctx); logger != nil {
		return logger
	}
	return r.logger
}

func statusForKind(kind string) int {
	switch kind {
	case "validation":
		return http.StatusUnprocessableEntity
	case "invalid_credentials", "session_expired", "session_revoked":
		return http.StatusUnauthorized
	case "unauthorized", "account_disabled", "account_locked", "identity_mismatch":
		return http.StatusForbidden
	case "not_found":
		return http.StatusNotFound
	case "already_exists", "conflict", "already_member", "not_member", "invariant", "forbidden_transition", "state":
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func kindMessage(kind string, status int) string {
	switch kind {
	case "invalid_credentials":
		return "ユーザー名またはパスワードが正しくありません。"
	case "session_expired":
		return "セッションの有効期限が切れています。再度ログインしてください。"
	case "session_revoked":
		return "セッションが無効です。再度ログインしてください。"
	case "account_disabled":
		return "このアカウントは無効化されています。"
	case "account_locked":
		return "ログイン失敗が続いたためアカウントがロックされています。"
	case "identity_mismatch":
		return "要求されたユーザーと認証情報が一致しません。両方のアカウントを無効化しました。"
	case "already_exists":
		return "同じ名前のリソースが既に存在します。"
	case "already_member":
		return "指定されたユーザーは既にメンバーです。"
	case "not_member":
		return "指定されたユーザーはメンバーではありません。"
	case "forbidden_transition":
		return "その状態には遷移できません。"
	case "state":
		return "現在の状態ではこの操作を実行できません。"
	case "invariant":
		return "この操作はプログラムの整合性を損なうため実行できません。"
	}
	return localizedStatusMessage(status)
}

func localizedStatusMessage(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "リクエスト内容が正しくありません。"
	case http.StatusUnauthorized:
		return "認証が必要です。"
	case http.StatusForbidden:
		return "この操作を実行する権限がありません。"
	case http.StatusNotFound:
		return "指定されたリソースが見つかりません。"
	case http.StatusConflict:
		return "要求はリソースの現在の状態と競合しています。"
	case http.StatusUnprocessableEntity:
		return "入力内容に誤りがあります。"
	default:
		return "サーバー内部でエラーが発生しました。"
	}
}

func validationDetails(err error) map[string]string {
	var vErr *application.ValidationError
	if errors.As(err, &vErr) && vErr.HasErrors() {
		translated := make(map[string]string, len(vErr.FieldErrors))
		for field, msg := range vErr.FieldErrors {
			translated[field] = translateValidationMessage(msg)
		}
		return translated
	}
	var fErr *festival.FieldError
	if errors.As(err, &fErr) {
		return map[string]string{fErr.Field: translateValidationMessage(fErr.Message)}
	}
	return nil
}

func translateValidationMessage(message string) string {
	switch message {
	case "name is required":
		return "名前は必須です。"
	case "description is required":
		return "説明は必須です。"
	case "title is required":
		return "タイトルは必須です。"
	case "full name is required":
		return "氏名は必須です。"
	case "current password is incorrect":
		return "現在のパスワードが正しくありません。"
	case "role is invalid":
		return "ロールが不正です。"
	case "state is invalid":
		return "状態が不正です。"
	case "user does not exist":
		return "指定されたユーザーは存在しません。"
	case "user is not active":
		return "指定されたユーザーは有効化されていません。"
	case "program does not exist":
		return "指定されたプログラムは存在しません。"
	case "handler must be staff of the program":
		return "担当者はプログラムのスタッフである必要があります。"
	case "the submitter cannot review their own screening":
		return "提出者は自分の上映を審査できません。"
	case "sort must be genre or timetable":
		return "並び順は genre または timetable を指定してください。"
	case "range end must not precede range start":
		return "期間の終了は開始より前にできません。"
	default:
		return message
	}
}

type errorResponse struct {
	ErrorCode string            `json:"error_code,omitempty"`
	Message   string            `json:"message"`
	Errors    map[string]string `json:"errors,omitempty"`
}

// decodeJSON rejects unknown fields and trailing data.
func decodeJSON(r *http.Request, dst any) error {
	if r.Body == nil {
		return errBadRequestBody
	}
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return err
	}
	if dec.More() {
		return errBadRequestBody
	}
	return nil
}
