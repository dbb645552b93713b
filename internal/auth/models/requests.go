package models

import (
	"strings"

	s "usersapi/pkg/string"
	"usersapi/pkg/validation"
)

// RegisterRequest is the body of POST /api/auth/register.
type RegisterRequest struct {
	Email     string `json:"email" validate:"required,email,max=255"`
	Password  string `json:"password" validate:"required,notblank,min=8,max=72"`
	FirstName string `json:"first_name" validate:"max=100"`
	LastName  string `json:"last_name" validate:"max=100"`
}

func (r *RegisterRequest) Sanitize() {
	s.TrimStrings(&r.FirstName, &r.LastName)
}

func (r *RegisterRequest) Normalize() {
	r.Email = NormalizeEmail(r.Email)
}

func (r *RegisterRequest) Validate() error {
	return validation.Validate(r)
}

// LoginRequest is the body of POST /api/auth/login.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,notblank,max=72"`
}

func (r *LoginRequest) Normalize() {
	r.Email = NormalizeEmail(r.Email)
}

func (r *LoginRequest) Validate() error {
	return validation.Validate(r)
}

// UpdateUserRequest is the body of PUT /api/users/{id}. Omitted fields are unchanged.
type UpdateUserRequest struct {
	Email     *string `json:"email,omitempty" validate:"omitempty,email,max=255"`
	FirstName *string `json:"first_name,omitempty" validate:"omitempty,max=100"`
	LastName  *string `json:"last_name,omitempty" validate:"omitempty,max=100"`
}

func (r *UpdateUserRequest) Sanitize() {
	r.FirstName = s.TrimSpacePtr(r.FirstName)
	r.LastName = s.TrimSpacePtr(r.LastName)
}

func (r *UpdateUserRequest) Normalize() {
	if r.Email != nil {
		v := NormalizeEmail(*r.Email)
		r.Email = &v
	}
}

func (r *UpdateUserRequest) Validate() error {
	return validation.Validate(r)
}

// Changes converts the request into store-level changes.
func (r *UpdateUserRequest) Changes() UserChanges {
	return UserChanges{Email: r.Email, FirstName: r.FirstName, LastName: r.LastName}
}

// NormalizeEmail lowercases and trims an address. Emails are unique case-insensitively.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
