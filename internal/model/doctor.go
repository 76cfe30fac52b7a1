package model

type Specialty string

const (
	SpecialtyCardiology    Specialty = "cardiology"
	SpecialtyDermatology   Specialty = "dermatology"
	SpecialtyPediatrics    Specialty = "pediatrics"
	SpecialtyGynecology    Specialty = "gynecology"
	SpecialtyOphthalmology Specialty = "ophthalmology"
	SpecialtyOrthopedics   Specialty = "orthopedics"
)

var Specialties = []Specialty{
	SpecialtyCardiology,
	SpecialtyDermatology,
	SpecialtyPediatrics,
	SpecialtyGynecology,
	SpecialtyOphthalmology,
	SpecialtyOrthopedics,
}

func (s Specialty) Valid() bool {
	for _, known := range Specialties {
		if s == known {
			return true
		}
	}
	return false
}

type Doctor struct {
	Base
	FirstName    string    `db:"first_name" json:"first_name"`
	LastName     string    `db:"last_name" json:"last_name"`
	Email        string    `db:"email" json:"email"`
	PasswordHash string    `db:"password_hash" json:"-"`
	Specialty    Specialty `db:"specialty" json:"specialty"`
}

func (d *Doctor) DisplayName() string {
	return "Dr " + d.FirstName + " " + d.LastName
}

type CreateDoctorRequest struct {
	FirstName string    `json:"first_name" validate:"required,max=100"`
	LastName  string    `json:"last_name" validate:"required,max=100"`
	Email     string    `json:"email" validate:"required,email,max=254"`
	Password  string    `json:"password" validate:"required,min=8,max=72"`
	Specialty Specialty `json:"specialty" validate:"required,oneof=cardiology dermatology pediatrics gynecology ophthalmology orthopedics"`
}
