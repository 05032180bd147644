package user

import (
	"errors"
	"strings"

	"github.com/derheim/helpdesk/internal/auth"
)

// CreateUserDTO represents the request payload for creating an account.
type CreateUserDTO struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
	FullName string `json:"full_name" validate:"required"`
	Role     string `json:"role" validate:"required,oneof=employee agent admin"`
}

// Validate validates the CreateUserDTO
func (dto CreateUserDTO) Validate() error {
	if strings.TrimSpace(dto.Email) == "" {
		return errors.New("email is required")
	}
	if !strings.Contains(dto.Email, "@") {
		return errors.New("email is invalid")
	}
	if len(dto.Password) < 6 {
		return errors.New("password must be at least 6 characters")
	}
	if strings.TrimSpace(dto.FullName) == "" {
		return errors.New("full name is required")
	}
	if !auth.IsValidRole(dto.Role) {
		return errors.New("role must be one of employee, agent, admin")
	}
	return nil
}

// UpdateUserDTO represents the request payload for updating an account.
// All fields are optional; omitted fields keep their current value.
type UpdateUserDTO struct {
	Email    *string `json:"email,omitempty"`
	Password *string `json:"password,omitempty"`
	FullName *string `json:"full_name,omitempty"`
	Role     *string `json:"role,omitempty"`
}

// Validate validates the UpdateUserDTO
func (dto UpdateUserDTO) Validate() error {
	if dto.Email != nil {
		if strings.TrimSpace(*dto.Email) == "" {
			return errors.New("email cannot be empty")
		}
		if !strings.Contains(*dto.Email, "@") {
			return errors.New("email is invalid")
		}
	}
	if dto.Password != nil && len(*dto.Password) < 6 {
		return errors.New("password must be at least 6 characters")
	}
	if dto.FullName != nil && strings.TrimSpace(*dto.FullName) == "" {
		return errors.New("full name cannot be empty")
	}
	if dto.Role != nil && !auth.IsValidRole(*dto.Role) {
		return errors.New("role must be one of employee, agent, admin")
	}
	return nil
}
