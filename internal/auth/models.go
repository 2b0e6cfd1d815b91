package auth

import (
	"strings"
	"time"

	"github.com/asaskevich/govalidator"
	"github.com/google/uuid"

	dErrors "careflow/pkg/domain-errors"
)

// User is a credential holder. Only the bcrypt hash of the password is ever
// stored.
type User struct {
	ID           uuid.UUID
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

// LoginRequest is the token issuance input.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Normalize trims and lowercases the email so lookups are stable.
func (r *LoginRequest) Normalize() {
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
}

func (r LoginRequest) Validate() error {
	if !govalidator.IsEmail(r.Email) {
		return dErrors.New(dErrors.CodeValidation, "email: must be a valid email address")
	}
	if r.Password == "" {
		return dErrors.New(dErrors.CodeValidation, "password: is required")
	}
	return nil
}

// LoginResult carries the issued bearer token.
type LoginResult struct {
	Token     string `json:"token"`
	ExpiresIn int64  `json:"expiresIn"`
}
