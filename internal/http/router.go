package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// HealthChecker reports whether backing storage is reachable.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

type RouterConfig struct {
	Auth       *AuthHandler
	Users      *UserHandler
	Programs   *ProgramHandler
	Screenings *ScreeningHandler
	Audit      *AuditHandler
	Tokens     TokenValidator
	Health     HealthChecker
	Logger     *slog.Logger
	Middleware []func(http.Handler) http.Handler
}

func NewRouter(cfg RouterConfig) http.Handler {
	logger := defaultLogger(cfg.Logger)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(logger))
	r.Use(middleware.Recoverer)
	for _, mw := range cfg.Middleware {
		if mw != nil {
			r.Use(mw)
		}
	}

	r.Get("/healthz", healthHandler(cfg.Health, logger))

	if cfg.Auth != nil {
		r.Post("/sessions", cfg.Auth.CreateSession)
		r.Post("/registrations", cfg.Auth.Register)
	}

	if cfg.Tokens == nil {
		return r
	}

	authed := RequireToken(cfg.Tokens, logger)
	public := OptionalToken(cfg.Tokens, logger)

	r.Group(func(pr chi.Router) {
		pr.Use(authed)

		if cfg.Auth != nil {
			pr.Delete("/sessions/current", cfg.Auth.DeleteCurrentSession)
		}

		if h := cfg.Users; h != nil {
			pr.Route("/users", func(ur chi.Router) {
				ur.Get("/", h.List)
				ur.Post("/", h.Create)
				ur.Route("/{userID}", func(ur chi.Router) {
					ur.Get("/", h.Get)
					ur.Put("/", h.Update)
					ur.Delete("/", h.Delete)
					ur.Put("/password", h.ChangePassword)
					ur.Post("/activate", h.Activate)
					ur.Post("/deactivate", h.Deactivate)
					ur.Post("/unlock", h.Unlock)
				})
			})
		}

		if h := cfg.Screenings; h != nil {
			pr.Get("/me/screenings", h.ListMine)
			pr.Get("/me/assignments", h.ListAssigned)
		}

		if cfg.Audit != nil {
			pr.Get("/audit", cfg.Audit.List)
		}
	})

	// Announced programs and scheduled screenings are readable without a
	// session; every write needs one.
	r.Route("/programs", func(gr chi.Router) {
		if h := cfg.Programs; h != nil {
			gr.With(public).Get("/", h.List)
			gr.With(public).Get("/{programID}", h.Get)
			gr.With(authed).Post("/", h.Create)
			gr.With(authed).Put("/{programID}", h.Update)
			gr.With(authed).Delete("/{programID}", h.Delete)
			gr.With(authed).Post("/{programID}/state", h.ChangeState)
			gr.With(authed).Put("/{programID}/programmers/{userID}", h.AddProgrammer)
			gr.With(authed).Delete("/{programID}/programmers/{userID}", h.RemoveProgrammer)
			gr.With(authed).Put("/{programID}/staff/{userID}", h.AddStaff)
			gr.With(authed).Delete("/{programID}/staff/{userID}", h.RemoveStaff)
		}
		if h := cfg.Screenings; h != nil {
			gr.With(public).Get("/{programID}/screenings", h.Search)
			gr.With(authed).Post("/{programID}/screenings", h.Create)
		}
	})

	if h := cfg.Screenings; h != nil {
		r.Route("/screenings/{screeningID}", func(sr chi.Router) {
			sr.With(public).Get("/", h.Get)
			sr.Group(func(sr chi.Router) {
				sr.Use(authed)
				sr.Put("/", h.Update)
				sr.Delete("/", h.Withdraw)
				sr.Post("/submit", h.Submit)
				sr.Put("/handler", h.AssignHandler)
				sr.Post("/review", h.Review)
				sr.Post("/approve", h.Approve)
				sr.Post("/reject", h.Reject)
				sr.Post("/final-submit", h.FinalSubmit)
				sr.Post("/schedule", h.Schedule)
			})
		})
	}

	return r
}

func healthHandler(checker HealthChecker, logger *slog.Logger) http.HandlerFunc {
	responder := newResponder(logger)
	return func(w http.ResponseWriter, r *http.Request) {
		if checker != nil {
			if err := checker.Ping(r.Context()); err != nil {
				responder.loggerFor(r.Context()).ErrorContext(r.Context(), "health check failed", "error", err)
				responder.writeJSON(r.Context(), w, http.StatusServiceUnavailable, errorResponse{Message: "ストレージに接続できません。"})
				return
			}
		}
		responder.writeJSON(r.Context(), w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
