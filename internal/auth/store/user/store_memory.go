package user

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"usersapi/internal/auth/models"
	id "usersapi/pkg/domain"
	"usersapi/pkg/platform/sentinel"
)

// Error contract shared by both stores:
// - Create reports a taken email as DuplicateKey, never as Failed
// - lookups and Delete return ErrNotFound for a missing user
// - Update returns ErrConflict when the new email belongs to someone else

// InMemoryUserStore keeps users in process. Stored values are copies, so
// callers cannot mutate them without going through Update.
type InMemoryUserStore struct {
	mu      sync.RWMutex
	users   map[id.UserID]*models.User
	byEmail map[string]id.UserID
}

// NewInMemoryUserStore constructs an empty store.
func NewInMemoryUserStore() *InMemoryUserStore {
	return &InMemoryUserStore{
		users:   make(map[id.UserID]*models.User),
		byEmail: make(map[string]id.UserID),
	}
}

func (s *InMemoryUserStore) Create(_ context.Context, user *models.User) models.CreateResult {
	if user == nil {
		return models.CreateResult{Outcome: models.Failed, Err: fmt.Errorf("user is required")}
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.byEmail[user.Email]; taken {
		return models.CreateResult{Outcome: models.DuplicateKey}
	}
	if _, taken := s.users[user.ID]; taken {
		return models.CreateResult{Outcome: models.DuplicateKey}
	}
	stored := *user
	s.users[user.ID] = &stored
	s.byEmail[user.Email] = user.ID
	return models.CreateResult{Outcome: models.Created}
}

func (s *InMemoryUserStore) FindByID(_ context.Context, userID id.UserID) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if user, ok := s.users[userID]; ok {
		out := *user
		return &out, nil
	}
	return nil, fmt.Errorf("user not found: %w", sentinel.ErrNotFound)
}

func (s *InMemoryUserStore) FindByEmail(_ context.Context, email string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if userID, ok := s.byEmail[email]; ok {
		out := *s.users[userID]
		return &out, nil
	}
	return nil, fmt.Errorf("user not found: %w", sentinel.ErrNotFound)
}

func (s *InMemoryUserStore) Update(_ context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.users[user.ID]
	if !ok {
		return fmt.Errorf("user not found: %w", sentinel.ErrNotFound)
	}
	if owner, taken := s.byEmail[user.Email]; taken && owner != user.ID {
		return fmt.Errorf("email already in use: %w", sentinel.ErrConflict)
	}
	delete(s.byEmail, current.Email)
	stored := *user
	s.users[user.ID] = &stored
	s.byEmail[user.Email] = user.ID
	return nil
}

func (s *InMemoryUserStore) Delete(_ context.Context, userID id.UserID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[userID]
	if !ok {
		return fmt.Errorf("user not found: %w", sentinel.ErrNotFound)
	}
	delete(s.byEmail, user.Email)
	delete(s.users, userID)
	return nil
}

// ListAll returns every user ordered by creation time.
func (s *InMemoryUserStore) ListAll(_ context.Context) ([]*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.User, 0, len(s.users))
	for _, u := range s.users {
		c := *u
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].Email < out[j].Email
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}
