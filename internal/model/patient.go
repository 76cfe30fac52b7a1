package model

import (
	"time"
)

type Patient struct {
	Base
	FirstName    string    `db:"first_name" json:"first_name"`
	LastName     string    `db:"last_name" json:"last_name"`
	Email        string    `db:"email" json:"email"`
	PasswordHash string    `db:"password_hash" json:"-"`
	BirthDate    time.Time `db:"birth_date" json:"birth_date"`
}

func (p *Patient) FullName() string {
	return p.FirstName + " " + p.LastName
}

type UpdatePatientRequest struct {
	FirstName *string `json:"first_name" binding:"omitempty,max=100"`
	LastName  *string `json:"last_name" binding:"omitempty,max=100"`
	Email     *string `json:"email" binding:"omitempty,email,max=254"`
	BirthDate *string `json:"birth_date" binding:"omitempty,datetime=2006-01-02"`
}
