package models

import "time"

// UserResponse is the public JSON view of a user.
type UserResponse struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	FirstName string    `json:"first_name,omitempty"`
	LastName  string    `json:"last_name,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func NewUserResponse(u *User) UserResponse {
	return UserResponse{
		ID:        u.ID.String(),
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

// AuthResult is returned by register, login and refresh. The tokens travel
// in cookies only.
type AuthResult struct {
	User UserResponse `json:"user"`
}

// ListUsersResult is returned by GET /api/users.
type ListUsersResult struct {
	Users []UserResponse `json:"users"`
	Total int            `json:"total"`
}
