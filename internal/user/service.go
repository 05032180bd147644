package user

import (
	"errors"
	"log/slog"
	"time"

	"github.com/derheim/helpdesk/internal"
	"github.com/derheim/helpdesk/internal/auth"
)

// PasswordHasher hashes plaintext passwords before they reach the repository.
type PasswordHasher interface {
	HashPassword(password string) (string, error)
}

// Repository interface defines the data access methods for accounts
type Repository interface {
	Create(user *User) error
	GetByID(id int64) (*User, error)
	GetAll() ([]*User, error)
	GetAgents() ([]*Agent, error)
	Update(user *User) error
	Delete(id int64) error
}

// Service handles account management business logic
type Service struct {
	repo   Repository
	hasher PasswordHasher
	logger *slog.Logger
}

// NewService creates a new user service
func NewService(repo Repository, hasher PasswordHasher, logger *slog.Logger) *Service {
	return &Service{
		repo:   repo,
		hasher: hasher,
		logger: logger,
	}
}

// ListUsers returns every account. Admin only.
func (s *Service) ListUsers(actor *auth.SessionUser) ([]*User, error) {
	if !actor.IsAdmin() {
		s.logger.Warn("list users denied: admin role required", "actor_id", actor.ID, "role", actor.Role)
		return nil, internal.ErrUnauthorizedAccess
	}

	users, err := s.repo.GetAll()
	if err != nil {
		s.logger.Error("failed to list users", "error", err)
		return nil, err
	}
	return users, nil
}

// ListAgents returns the accounts a ticket can be assigned to. Staff only.
func (s *Service) ListAgents(actor *auth.SessionUser) ([]*Agent, error) {
	if !actor.IsStaff() {
		s.logger.Warn("list agents denied: staff role required", "actor_id", actor.ID, "role", actor.Role)
		return nil, internal.ErrUnauthorizedAccess
	}

	agents, err := s.repo.GetAgents()
	if err != nil {
		s.logger.Error("failed to list agents", "error", err)
		return nil, err
	}
	return agents, nil
}

// CreateUser creates an account. Admin only. Duplicate email surfaces as a
// conflict, not an internal error.
func (s *Service) CreateUser(actor *auth.SessionUser, dto CreateUserDTO) (*User, error) {
	if !actor.IsAdmin() {
		s.logger.Warn("create user denied: admin role required", "actor_id", actor.ID, "role", actor.Role)
		return nil, internal.ErrUnauthorizedAccess
	}

	if err := dto.Validate(); err != nil {
		s.logger.Error("user validation failed", "error", err, "actor_id", actor.ID)
		return nil, internal.NewValidationError(err.Error(), internal.ErrCodeValidationFailed)
	}

	hash, err := s.hasher.HashPassword(dto.Password)
	if err != nil {
		s.logger.Error("failed to hash password", "error", err)
		return nil, err
	}

	now := time.Now()
	u := &User{
		Email:        dto.Email,
		FullName:     dto.FullName,
		Role:         dto.Role,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.repo.Create(u); err != nil {
		if errors.Is(err, internal.ErrEmailTaken) {
			s.logger.Warn("create user rejected: email already registered", "email", dto.Email)
			return nil, internal.ErrEmailTaken
		}
		s.logger.Error("failed to create user", "error", err, "email", dto.Email)
		return nil, err
	}

	s.logger.Info("user created", "user_id", u.ID, "role", u.Role, "actor_id", actor.ID)
	return u, nil
}

// UpdateUser applies the provided fields to an account. Admin only.
func (s *Service) UpdateUser(actor *auth.SessionUser, id int64, dto UpdateUserDTO) (*User, error) {
	if !actor.IsAdmin() {
		s.logger.Warn("update user denied: admin role required", "actor_id", actor.ID, "role", actor.Role)
		return nil, internal.ErrUnauthorizedAccess
	}

	if err := dto.Validate(); err != nil {
		s.logger.Error("user validation failed", "error", err, "user_id", id)
		return nil, internal.NewValidationError(err.Error(), internal.ErrCodeValidationFailed)
	}

	u, err := s.repo.GetByID(id)
	if err != nil {
		s.logger.Error("user not found for update", "error", err, "user_id", id)
		return nil, internal.ErrUserNotFound
	}

	if dto.Email != nil {
		u.Email = *dto.Email
	}
	if dto.FullName != nil {
		u.FullName = *dto.FullName
	}
	if dto.Role != nil {
		u.Role = *dto.Role
	}
	if dto.Password != nil {
		hash, err := s.hasher.HashPassword(*dto.Password)
		if err != nil {
			s.logger.Error("failed to hash password", "error", err)
			return nil, err
		}
		u.PasswordHash = hash
	}
	u.UpdatedAt = time.Now()

	if err := s.repo.Update(u); err != nil {
		if errors.Is(err, internal.ErrEmailTaken) {
			s.logger.Warn("update user rejected: email already registered", "user_id", id)
			return nil, internal.ErrEmailTaken
		}
		s.logger.Error("failed to update user", "error", err, "user_id", id)
		return nil, err
	}

	s.logger.Info("user updated", "user_id", u.ID, "actor_id", actor.ID)
	return u, nil
}

// DeleteUser removes an account. Admin only, and an admin may never delete
// their own account.
func (s *Service) DeleteUser(actor *auth.SessionUser, id int64) error {
	if !actor.IsAdmin() {
		s.logger.Warn("delete user denied: admin role required", "actor_id", actor.ID, "role", actor.Role)
		return internal.ErrUnauthorizedAccess
	}

	if actor.ID == id {
		s.logger.Warn("delete user rejected: cannot delete own account", "actor_id", actor.ID)
		return internal.ErrSelfDelete
	}

	if _, err := s.repo.GetByID(id); err != nil {
		s.logger.Error("user not found for delete", "error", err, "user_id", id)
		return internal.ErrUserNotFound
	}

	if err := s.repo.Delete(id); err != nil {
		s.logger.Error("failed to delete user", "error", err, "user_id", id)
		return err
	}

	s.logger.Info("user deleted", "user_id", id, "actor_id", actor.ID)
	return nil
}
