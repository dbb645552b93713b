package service

import (
	"context"
	"log/slog"
	"sync"

	"usersapi/internal/audit"
	"usersapi/internal/auth/models"
	"usersapi/internal/platform/metrics"
	"usersapi/pkg/secrets"
)

type Service struct {
	users   UserStore
	hasher  PasswordHasher
	audit   AuditRecorder
	logger  *slog.Logger
	metrics *metrics.Metrics

	// dummyHash is compared against on unknown emails so login timing
	// does not reveal which addresses exist.
	dummyHash func() string
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithPasswordHasher replaces the bcrypt hasher, mainly for tests.
func WithPasswordHasher(h PasswordHasher) Option {
	return func(s *Service) {
		s.hasher = h
	}
}

func WithAuditRecorder(r AuditRecorder) Option {
	return func(s *Service) {
		s.audit = r
	}
}

func New(users UserStore, opts ...Option) *Service {
	svc := &Service{
		users:  users,
		hasher: bcryptHasher{},
	}
	for _, opt := range opts {
		opt(svc)
	}
	if svc.logger == nil {
		svc.logger = slog.Default()
	}
	if svc.audit == nil {
		svc.audit = audit.NewChannel()
	}
	svc.dummyHash = sync.OnceValue(func() string {
		h, _ := svc.hasher.Hash("timing-equalizer-password")
		return h
	})
	return svc
}

type bcryptHasher struct{}

func (bcryptHasher) Hash(password string) (string, error) { return secrets.Hash(password) }

func (bcryptHasher) Verify(password, hash string) error { return secrets.Verify(password, hash) }

// record is called only after the store has committed.
func (s *Service) record(ctx context.Context, actorEmail string, op audit.Operation, detail string) {
	s.audit.Record(ctx, actorEmail, op, detail)
}

func toResponses(users []*models.User) []models.UserResponse {
	out := make([]models.UserResponse, 0, len(users))
	for _, u := range users {
		out = append(out, models.NewUserResponse(u))
	}
	return out
}
