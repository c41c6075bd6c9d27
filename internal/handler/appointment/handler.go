package appointment

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jwalitptl/healthoffice-api/internal/clock"
	"github.com/jwalitptl/healthoffice-api/internal/middleware"
	"github.com/jwalitptl/healthoffice-api/internal/model"
	apperrors "github.com/jwalitptl/healthoffice-api/pkg/errors"
	"github.com/jwalitptl/healthoffice-api/pkg/httputil"
)

// Service is the lifecycle engine as seen by the HTTP layer.
type Service interface {
	Book(ctx context.Context, req model.BookAppointmentRequest, actor model.Actor) (*model.Appointment, error)
	Get(ctx context.Context, id uuid.UUID, actor model.Actor) (*model.AppointmentView, error)
	History(ctx context.Context, id uuid.UUID, actor model.Actor) ([]*model.AppointmentStatusHistory, error)
	ReplayStatus(ctx context.Context, id uuid.UUID, actor model.Actor) (model.AppointmentStatus, error)
	List(ctx context.Context, filters model.AppointmentFilters, actor model.Actor) ([]*model.Appointment, error)
	Transition(ctx context.Context, id uuid.UUID, to model.AppointmentStatus, actor model.Actor, reason string) (*model.Appointment, error)
	Revert(ctx context.Context, id uuid.UUID, domain model.HistoryDomain, actor model.Actor, reason string) (*model.Appointment, error)
	AdvanceStage(ctx context.Context, id uuid.UUID, stage model.Stage, actor model.Actor) (*model.Appointment, error)
	DoctorDecision(ctx context.Context, id uuid.UUID, decision model.DoctorDecision, actor model.Actor, note string) (*model.Appointment, error)
	AssignDoctor(ctx context.Context, id uuid.UUID, doctorID *uuid.UUID, actor model.Actor) (*model.Appointment, error)
}

type Handler struct {
	service Service
	clock   clock.Clock
}

func NewHandler(service Service, clk clock.Clock) *Handler {
	return &Handler{service: service, clock: clk}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	appointments := r.Group("/appointments")
	{
		appointments.POST("", h.BookAppointment)
		appointments.GET("", h.ListAppointments)
		appointments.GET("/:id", h.GetAppointment)
		appointments.GET("/:id/history", h.GetHistory)
		appointments.GET("/:id/history/status", h.ReplayStatus)
		appointments.POST("/:id/transitions", h.Transition)
		appointments.POST("/:id/reversions", h.Revert)
		appointments.POST("/:id/stage", h.AdvanceStage)
		appointments.POST("/:id/decision", h.DoctorDecision)
		appointments.PUT("/:id/doctor", h.AssignDoctor)
	}
}

func (h *Handler) BookAppointment(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}

	var req model.BookAppointmentRequest
	if !bind(c, &req) {
		return
	}

	apt, err := h.service.Book(c.Request.Context(), req, actor)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusCreated, apt)
}

func (h *Handler) GetAppointment(c *gin.Context) {
	actor, id, ok := actorAndID(c)
	if !ok {
		return
	}

	view, err := h.service.Get(c.Request.Context(), id, actor)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, view)
}

func (h *Handler) GetHistory(c *gin.Context) {
	actor, id, ok := actorAndID(c)
	if !ok {
		return
	}

	entries, err := h.service.History(c.Request.Context(), id, actor)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, entries)
}

func (h *Handler) ReplayStatus(c *gin.Context) {
	actor, id, ok := actorAndID(c)
	if !ok {
		return
	}

	status, err := h.service.ReplayStatus(c.Request.Context(), id, actor)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, gin.H{"status": status})
}

func (h *Handler) ListAppointments(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}

	var filters model.AppointmentFilters
	if v := c.Query("service_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			httputil.RespondWithError(c, apperrors.BadRequest("invalid service_id", err))
			return
		}
		filters.ServiceID = id
	}
	if v := c.Query("patient_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			httputil.RespondWithError(c, apperrors.BadRequest("invalid patient_id", err))
			return
		}
		filters.PatientID = id
	}
	if v := c.Query("status"); v != "" {
		status, err := model.ParseAppointmentStatus(v)
		if err != nil {
			httputil.RespondWithError(c, apperrors.BadRequest("invalid status", err))
			return
		}
		filters.Status = status
	}
	if v := c.Query("date"); v != "" {
		date, err := clock.ParseDate(v, h.clock.Location())
		if err != nil {
			httputil.RespondWithError(c, apperrors.BadRequest("invalid date", err))
			return
		}
		filters.Date = date
	}

	apts, err := h.service.List(c.Request.Context(), filters, actor)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, apts)
}

func (h *Handler) Transition(c *gin.Context) {
	actor, id, ok := actorAndID(c)
	if !ok {
		return
	}

	var req model.TransitionRequest
	if !bind(c, &req) {
		return
	}

	apt, err := h.service.Transition(c.Request.Context(), id, req.Status, actor, req.Reason)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, apt)
}

func (h *Handler) Revert(c *gin.Context) {
	actor, id, ok := actorAndID(c)
	if !ok {
		return
	}

	var req model.ReversionRequest
	if !bind(c, &req) {
		return
	}

	apt, err := h.service.Revert(c.Request.Context(), id, req.Domain, actor, req.Reason)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, apt)
}

func (h *Handler) AdvanceStage(c *gin.Context) {
	actor, id, ok := actorAndID(c)
	if !ok {
		return
	}

	var req model.StageRequest
	if !bind(c, &req) {
		return
	}

	apt, err := h.service.AdvanceStage(c.Request.Context(), id, req.Stage, actor)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, apt)
}

func (h *Handler) DoctorDecision(c *gin.Context) {
	actor, id, ok := actorAndID(c)
	if !ok {
		return
	}

	var req model.DecisionRequest
	if !bind(c, &req) {
		return
	}

	apt, err := h.service.DoctorDecision(c.Request.Context(), id, req.Decision, actor, req.Note)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, apt)
}

func (h *Handler) AssignDoctor(c *gin.Context) {
	actor, id, ok := actorAndID(c)
	if !ok {
		return
	}

	var req model.AssignDoctorRequest
	if !bind(c, &req) {
		return
	}

	apt, err := h.service.AssignDoctor(c.Request.Context(), id, req.DoctorID, actor)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, apt)
}

func requireActor(c *gin.Context) (model.Actor, bool) {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		httputil.RespondWithError(c, apperrors.Unauthorized(nil))
	}
	return actor, ok
}

func actorAndID(c *gin.Context) (model.Actor, uuid.UUID, bool) {
	actor, ok := requireActor(c)
	if !ok {
		return model.Actor{}, uuid.Nil, false
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, apperrors.BadRequest("invalid appointment ID", err))
		return model.Actor{}, uuid.Nil, false
	}
	return actor, id, true
}

// bind decodes the JSON body into req and answers 400 on failure.
func bind(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		appErr := httputil.AsAppError(err)
		if appErr.Code == apperrors.ErrInternal {
			appErr = apperrors.BadRequest("invalid request body", err)
		}
		httputil.RespondWithError(c, appErr)
		return false
	}
	return true
}
