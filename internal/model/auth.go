package model

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type Role string

const (
	RolePatient Role = "patient"
	RoleDoctor  Role = "doctor"
)

func (r Role) Valid() bool {
	return r == RolePatient || r == RoleDoctor
}

// Identity is the authenticated caller of a request. Services receive it
// explicitly instead of reading ambient session state.
type Identity struct {
	ID        uuid.UUID `json:"id"`
	Role      Role      `json:"role"`
	Email     string    `json:"email"`
	TokenID   string    `json:"-"`
	ExpiresAt time.Time `json:"-"`
}

func (i Identity) IsPatient() bool { return i.Role == RolePatient && i.ID != uuid.Nil }
func (i Identity) IsDoctor() bool  { return i.Role == RoleDoctor && i.ID != uuid.Nil }

// AuthRequest types
type LoginRequest struct {
	Role     Role   `json:"role" binding:"required,oneof=patient doctor"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type RegisterRequest struct {
	FirstName string `json:"first_name" binding:"required,max=100" validate:"required,max=100"`
	LastName  string `json:"last_name" binding:"required,max=100" validate:"required,max=100"`
	Email     string `json:"email" binding:"required,email,max=254" validate:"required,email,max=254"`
	Password  string `json:"password" binding:"required,min=8,max=72" validate:"required,min=8,max=72"`
	BirthDate string `json:"birth_date" binding:"required,datetime=2006-01-02" validate:"required,datetime=2006-01-02"`
}

// AuthResponse types
type TokenResponse struct {
	AccessToken string   `json:"access_token"`
	ExpiresIn   int64    `json:"expires_in"`
	Identity    Identity `json:"identity"`
}

// TokenClaims represents JWT claims
type TokenClaims struct {
	jwt.RegisteredClaims
	Role  Role   `json:"role"`
	Email string `json:"email"`
}
