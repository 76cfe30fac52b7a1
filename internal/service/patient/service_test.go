package patient

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository/memory"
	apperrors "github.com/jwalitptl/clinic-api/pkg/errors"
)

func strPtr(s string) *string { return &s }

func TestUpdateProfile(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	svc := NewService(store.Patients())

	ada := &model.Patient{FirstName: "Ada", LastName: "Byron", Email: "ada@clinic.test", BirthDate: time.Date(1990, 12, 10, 0, 0, 0, 0, time.UTC)}
	require.NoError(t, store.Patients().Create(ctx, ada))
	alan := &model.Patient{FirstName: "Alan", LastName: "Turing", Email: "alan@clinic.test"}
	require.NoError(t, store.Patients().Create(ctx, alan))
	identity := model.Identity{ID: ada.ID, Role: model.RolePatient}

	updated, err := svc.UpdateProfile(ctx, identity, model.UpdatePatientRequest{
		LastName:  strPtr("Lovelace"),
		BirthDate: strPtr("1985-12-10"),
	})
	require.NoError(t, err)
	assert.Equal(t, "Ada", updated.FirstName)
	assert.Equal(t, "Lovelace", updated.LastName)
	assert.Equal(t, 1985, updated.BirthDate.Year())

	profile, err := svc.GetProfile(ctx, identity)
	require.NoError(t, err)
	assert.Equal(t, "Lovelace", profile.LastName)

	_, err = svc.UpdateProfile(ctx, identity, model.UpdatePatientRequest{Email: strPtr("alan@clinic.test")})
	assert.True(t, apperrors.Is(err, apperrors.ErrValidation))

	_, err = svc.UpdateProfile(ctx, identity, model.UpdatePatientRequest{FirstName: strPtr("  ")})
	assert.True(t, apperrors.Is(err, apperrors.ErrValidation))

	_, err = svc.GetProfile(ctx, model.Identity{ID: ada.ID, Role: model.RoleDoctor})
	assert.True(t, apperrors.Is(err, apperrors.ErrUnauthorized))
}
