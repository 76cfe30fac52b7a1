package handler

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-api/internal/middleware"
	"github.com/jwalitptl/clinic-api/internal/model"
	apperrors "github.com/jwalitptl/clinic-api/pkg/errors"
	"github.com/jwalitptl/clinic-api/pkg/httputil"
)

var errNoIdentity = errors.New("no authenticated identity")

// Identity returns the caller's identity or writes a 401 and reports false.
func Identity(c *gin.Context) (model.Identity, bool) {
	identity, ok := middleware.IdentityFrom(c)
	if !ok {
		httputil.RespondWithError(c, apperrors.Unauthorized(errNoIdentity))
		return model.Identity{}, false
	}
	return identity, true
}

// UUIDParam parses a path parameter or writes a 400 and reports false.
func UUIDParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		httputil.RespondWithError(c, apperrors.BadRequest("invalid "+name, err))
		return uuid.Nil, false
	}
	return id, true
}
