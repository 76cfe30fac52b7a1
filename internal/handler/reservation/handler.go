package reservation

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/clinic-api/internal/handler"
	"github.com/jwalitptl/clinic-api/internal/middleware"
	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/service/booking"
	apperrors "github.com/jwalitptl/clinic-api/pkg/errors"
	"github.com/jwalitptl/clinic-api/pkg/httputil"
)

type Handler struct {
	svc *booking.Service
}

func NewHandler(svc *booking.Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup, authenticate gin.HandlerFunc) {
	reservations := r.Group("/reservations", authenticate, middleware.RequireRole(model.RolePatient))
	{
		reservations.POST("", h.Book)
		reservations.GET("", h.List)
		reservations.POST("/:id/pay", h.MarkPaid)
	}
}

func (h *Handler) Book(c *gin.Context) {
	identity, ok := handler.Identity(c)
	if !ok {
		return
	}

	var req model.BookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithBindError(c, err)
		return
	}

	res, err := h.svc.Book(c.Request.Context(), identity, req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, http.StatusCreated, res)
}

func (h *Handler) List(c *gin.Context) {
	identity, ok := handler.Identity(c)
	if !ok {
		return
	}

	var filters model.ReservationFilters
	if raw := c.Query("unpaid"); raw != "" {
		unpaid, err := strconv.ParseBool(raw)
		if err != nil {
			httputil.RespondWithError(c, apperrors.Validation("unpaid must be a boolean", err))
			return
		}
		filters.UnpaidOnly = unpaid
	}

	reservations, err := h.svc.ListReservations(c.Request.Context(), identity, filters)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, http.StatusOK, reservations)
}

func (h *Handler) MarkPaid(c *gin.Context) {
	identity, ok := handler.Identity(c)
	if !ok {
		return
	}
	id, ok := handler.UUIDParam(c, "id")
	if !ok {
		return
	}

	res, err := h.svc.MarkPaid(c.Request.Context(), identity, id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, http.StatusOK, res)
}
