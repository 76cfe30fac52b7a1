package record

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-api/internal/handler"
	"github.com/jwalitptl/clinic-api/internal/middleware"
	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/service/medical"
	"github.com/jwalitptl/clinic-api/pkg/httputil"
)

type Handler struct {
	svc *medical.Service
}

func NewHandler(svc *medical.Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup, authenticate gin.HandlerFunc) {
	r.GET("/records/me", authenticate, middleware.RequireRole(model.RolePatient), h.OwnRecord)

	record := r.Group("/patients/:id/record", authenticate, middleware.RequireRole(model.RoleDoctor))
	{
		record.GET("", h.PatientRecord)
		record.POST("/observations", h.AddObservation)
		record.POST("/prescriptions", h.AddPrescription)
	}
}

func (h *Handler) OwnRecord(c *gin.Context) {
	identity, ok := handler.Identity(c)
	if !ok {
		return
	}
	h.respondRecord(c, identity, identity.ID)
}

func (h *Handler) PatientRecord(c *gin.Context) {
	identity, ok := handler.Identity(c)
	if !ok {
		return
	}
	patientID, ok := handler.UUIDParam(c, "id")
	if !ok {
		return
	}
	h.respondRecord(c, identity, patientID)
}

func (h *Handler) respondRecord(c *gin.Context, identity model.Identity, patientID uuid.UUID) {
	view, err := h.svc.ListRecord(c.Request.Context(), identity, patientID)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, view)
}

func (h *Handler) AddObservation(c *gin.Context) {
	h.addEntry(c, h.svc.AddObservation)
}

func (h *Handler) AddPrescription(c *gin.Context) {
	h.addEntry(c, h.svc.AddPrescription)
}

type addFunc func(ctx context.Context, identity model.Identity, patientID uuid.UUID, text string) (*model.RecordEntryView, error)

func (h *Handler) addEntry(c *gin.Context, add addFunc) {
	identity, ok := handler.Identity(c)
	if !ok {
		return
	}
	patientID, ok := handler.UUIDParam(c, "id")
	if !ok {
		return
	}

	var req model.AddEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithBindError(c, err)
		return
	}

	entry, err := add(c.Request.Context(), identity, patientID, req.Text)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, http.StatusCreated, entry)
}
