package testfixtures

import (
	"log/slog"
	"time"

	"github.com/example/festival-programs/internal/application"
)

// ServiceFactory assists tests with constructing application services using
// deterministic clocks and cheap password hashing.
type ServiceFactory struct {
	Clock  *Clock
	Hasher application.PasswordHasher
	Logger *slog.Logger
}

// ServiceFactoryOption configures a ServiceFactory instance.
type ServiceFactoryOption func(*ServiceFactory)

// NewServiceFactory constructs a ServiceFactory with defaults.
func NewServiceFactory(opts ...ServiceFactoryOption) *ServiceFactory {
	factory := &ServiceFactory{
		Clock:  NewClock(time.Time{}),
		Hasher: FastHasher(),
	}
	for _, opt := range opts {
		opt(factory)
	}
	if factory.Clock == nil {
		factory.Clock = NewClock(time.Time{})
	}
	if factory.Hasher == nil {
		factory.Hasher = FastHasher()
	}
	return factory
}

// WithClock overrides the clock used by the factory.
func WithClock(clock *Clock) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.Clock = clock
	}
}

// WithHasher overrides the password hasher used by the factory.
func WithHasher(hasher application.PasswordHasher) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.Hasher = hasher
	}
}

// WithLogger sets the logger handed to every service.
func WithLogger(logger *slog.Logger) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.Logger = logger
	}
}

// FastHasher returns an argon2id hasher with parameters small enough for tests.
func FastHasher() *application.Argon2Hasher {
	return &application.Argon2Hasher{Params: application.Argon2idParams{
		Memory:      1024,
		Iterations:  1,
		Parallelism: 1,
		SaltLength:  8,
		KeyLength:   16,
	}}
}

// ServiceDeps captures the repositories shared by the application services.
type ServiceDeps struct {
	Users      application.UserRepository
	Programs   application.ProgramRepository
	Screenings application.ScreeningRepository
	Audit      application.AuditRepository
	Tokens     application.TokenIssuer
	Tx         application.Transactor
}

// Services is the full set of application services wired over one set of
// repositories.
type Services struct {
	Audit      *application.AuditService
	Integrity  *application.SessionIntegrity
	Users      *application.UserService
	Auth       *application.AuthService
	Programs   *application.ProgramService
	Screenings *application.ScreeningService
}

// NewServices builds every application service using the factory clock,
// hasher and logger. Auth is nil when deps.Tokens is nil.
func (f *ServiceFactory) NewServices(deps ServiceDeps) Services {
	now := f.Clock.NowFunc()
	audit := application.NewAuditServiceWithLogger(deps.Audit, now, f.Logger)
	integrity := application.NewSessionIntegrityWithLogger(deps.Users, audit, now, f.Logger).WithTransactor(deps.Tx)

	services := Services{
		Audit:      audit,
		Integrity:  integrity,
		Users:      application.NewUserServiceWithLogger(deps.Users, f.Hasher, integrity, audit, now, f.Logger),
		Programs:   application.NewProgramServiceWithLogger(deps.Programs, deps.Screenings, deps.Users, audit, now, f.Logger).WithTransactor(deps.Tx),
		Screenings: application.NewScreeningServiceWithLogger(deps.Screenings, deps.Programs, audit, now, f.Logger),
	}
	if deps.Tokens != nil {
		services.Auth = application.NewAuthServiceWithLogger(deps.Users, f.Hasher, deps.Tokens, integrity, audit, now, f.Logger)
	}
	return services
}
