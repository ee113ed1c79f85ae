package users

import (
	"time"

	"github.com/arunika-edu/arunika-edu/internal/shared"
)

// User is a platform account. The password hash stays server-side; it is
// never serialized into API responses.
type User struct {
	ID           int64       `json:"id"`
	Email        string      `json:"email"`
	Name         string      `json:"name"`
	Role         shared.Role `json:"role"`
	PasswordHash string      `json:"-"`
	Active       bool        `json:"active"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
}
