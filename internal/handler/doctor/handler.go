package doctor

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/clinic-api/internal/handler"
	"github.com/jwalitptl/clinic-api/internal/middleware"
	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/service/availability"
	"github.com/jwalitptl/clinic-api/internal/service/doctor"
	"github.com/jwalitptl/clinic-api/internal/service/planning"
	apperrors "github.com/jwalitptl/clinic-api/pkg/errors"
	"github.com/jwalitptl/clinic-api/pkg/httputil"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type Handler struct {
	doctors      *doctor.Service
	availability *availability.Service
	planning     *planning.Service
	location     *time.Location
	directoryTTL time.Duration
	now          func() time.Time
}

func NewHandler(
	doctors *doctor.Service,
	availability *availability.Service,
	planning *planning.Service,
	location *time.Location,
	directoryTTL time.Duration,
) *Handler {
	return &Handler{
		doctors:      doctors,
		availability: availability,
		planning:     planning,
		location:     location,
		directoryTTL: directoryTTL,
		now:          time.Now,
	}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup, authenticate gin.HandlerFunc) {
	doctors := r.Group("/doctors")
	{
		doctors.GET("", middleware.PublicCache(h.directoryTTL), h.List)
		doctors.GET("/:id/availability", h.Availability)
	}

	me := doctors.Group("/me", authenticate, middleware.RequireRole(model.RoleDoctor))
	{
		me.GET("", h.Profile)
		me.GET("/planning", h.Planning)
		me.GET("/planning.xlsx", h.PlanningExport)
	}
}

func (h *Handler) List(c *gin.Context) {
	doctors, err := h.doctors.List(c.Request.Context())
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, http.StatusOK, doctors)
}

func (h *Handler) Availability(c *gin.Context) {
	doctorID, ok := handler.UUIDParam(c, "id")
	if !ok {
		return
	}

	date := c.Query("date")
	if date == "" {
		httputil.RespondWithError(c, apperrors.Validation("date query parameter is required", nil))
		return
	}

	avail, err := h.availability.ListAvailability(c.Request.Context(), doctorID, date)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, http.StatusOK, avail)
}

func (h *Handler) Profile(c *gin.Context) {
	identity, ok := handler.Identity(c)
	if !ok {
		return
	}

	d, err := h.doctors.Profile(c.Request.Context(), identity)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, http.StatusOK, d)
}

func (h *Handler) Planning(c *gin.Context) {
	week, ok := h.weekOf(c)
	if !ok {
		return
	}
	identity, ok := handler.Identity(c)
	if !ok {
		return
	}

	p, err := h.planning.WeeklyPlanning(c.Request.Context(), identity, week)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, http.StatusOK, p)
}

func (h *Handler) PlanningExport(c *gin.Context) {
	week, ok := h.weekOf(c)
	if !ok {
		return
	}
	identity, ok := handler.Identity(c)
	if !ok {
		return
	}

	p, err := h.planning.WeeklyPlanning(c.Request.Context(), identity, week)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	var buf bytes.Buffer
	if err := planning.ExportXLSX(p, &buf); err != nil {
		httputil.RespondWithError(c, apperrors.Internal(err))
		return
	}

	filename := fmt.Sprintf("planning-%s.xlsx", p.WeekStart)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}

// weekOf reads the optional ?date= selecting the week; default is this week.
func (h *Handler) weekOf(c *gin.Context) (time.Time, bool) {
	date := c.Query("date")
	if date == "" {
		return h.now(), true
	}
	t, err := time.ParseInLocation(model.DateLayout, date, h.location)
	if err != nil {
		httputil.RespondWithError(c, apperrors.Validation("date must be YYYY-MM-DD", err))
		return time.Time{}, false
	}
	return t, true
}
