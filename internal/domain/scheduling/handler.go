package scheduling

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/nareshshah139/Clinic-Management-System-sub003/internal/platform/auth"
	"github.com/nareshshah139/Clinic-Management-System-sub003/internal/platform/timeslot"
	"github.com/nareshshah139/Clinic-Management-System-sub003/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	// Read endpoints: any clinic role
	readGroup := api.Group("", auth.RequireRole(auth.RoleDoctor, auth.RoleNurse, auth.RoleReceptionist))
	readGroup.GET("/slots", h.GenerateSlots)
	readGroup.GET("/slots/validate", h.ValidateSlot)
	readGroup.GET("/availability", h.CheckAvailability)
	readGroup.GET("/doctors/:id/slots", h.DoctorDaySlots)
	readGroup.GET("/rooms/:id/slots", h.RoomDaySlots)
	readGroup.GET("/suggestions", h.Suggestions)
	readGroup.GET("/appointments", h.ListAppointments)
	readGroup.GET("/appointments/:id", h.GetAppointment)
	readGroup.GET("/appointments/:id/reschedule-check", h.RescheduleCheck)

	// Booking endpoints: front desk and doctors
	bookGroup := api.Group("", auth.RequireRole(auth.RoleDoctor, auth.RoleReceptionist))
	bookGroup.POST("/appointments", h.BookAppointment)
	bookGroup.POST("/appointments/:id/reschedule", h.RescheduleAppointment)
	bookGroup.POST("/appointments/:id/cancel", h.CancelAppointment)

	// Lifecycle endpoints: nurses also check patients in
	statusGroup := api.Group("", auth.RequireRole(auth.RoleDoctor, auth.RoleNurse, auth.RoleReceptionist))
	statusGroup.PATCH("/appointments/:id/status", h.UpdateStatus)
}

// -- Error mapping --

type conflictResponse struct {
	Message     string               `json:"message"`
	Slot        string               `json:"slot,omitempty"`
	Conflicts   []SchedulingConflict `json:"conflicts"`
	Suggestions []string             `json:"suggestions"`
}

type deniedResponse struct {
	Message       string `json:"message"`
	CanReschedule bool   `json:"can_reschedule"`
	Reason        string `json:"reason"`
}

func respondError(c echo.Context, err error) error {
	var conflict *ConflictError
	if errors.As(err, &conflict) {
		resp := conflictResponse{
			Message:     conflict.Message,
			Slot:        conflict.Slot,
			Conflicts:   conflict.Conflicts,
			Suggestions: conflict.Suggestions,
		}
		if resp.Conflicts == nil {
			resp.Conflicts = []SchedulingConflict{}
		}
		if resp.Suggestions == nil {
			resp.Suggestions = []string{}
		}
		return c.JSON(http.StatusConflict, resp)
	}
	var denied *RescheduleDeniedError
	if errors.As(err, &denied) {
		return c.JSON(http.StatusUnprocessableEntity, deniedResponse{
			Message:       denied.Decision.Reason,
			CanReschedule: false,
			Reason:        denied.Decision.Reason,
		})
	}

	switch {
	case errors.Is(err, ErrAppointmentNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrValidation), errors.Is(err, timeslot.ErrInvalidSlot),
		errors.Is(err, ErrSlotNotOrdered), errors.Is(err, ErrOutsideClinicHours):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrInvalidTransition):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, ErrSlotTaken):
		return c.JSON(http.StatusConflict, conflictResponse{
			Message:     err.Error(),
			Conflicts:   []SchedulingConflict{},
			Suggestions: []string{},
		})
	}
	return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
}

func parseID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}

func queryUUID(c echo.Context, name string) (*uuid.UUID, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "invalid "+name)
	}
	return &id, nil
}

func queryInt(c echo.Context, name string, def int) (int, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid "+name)
	}
	return n, nil
}

// -- Slot Handlers --

func (h *Handler) GenerateSlots(c echo.Context) error {
	start, err := queryInt(c, "start_hour", timeslot.DefaultStartHour)
	if err != nil {
		return err
	}
	end, err := queryInt(c, "end_hour", timeslot.DefaultEndHour)
	if err != nil {
		return err
	}
	step, err := queryInt(c, "step", timeslot.DefaultStepMinutes)
	if err != nil {
		return err
	}
	slots := timeslot.Generate(start, end, step)
	if slots == nil {
		slots = []string{}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"start_hour": start,
		"end_hour":   end,
		"step":       step,
		"slots":      slots,
	})
}

type slotValidation struct {
	Slot            string `json:"slot"`
	Valid           bool   `json:"valid"`
	Ordered         bool   `json:"ordered"`
	DurationMinutes int    `json:"duration_minutes"`
}

func (h *Handler) ValidateSlot(c echo.Context) error {
	raw := c.QueryParam("slot")
	if raw == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "slot is required")
	}
	resp := slotValidation{Slot: raw}
	if ts, err := timeslot.Parse(raw); err == nil {
		resp.Valid = true
		resp.Ordered = ts.Ordered()
		resp.DurationMinutes = ts.Duration()
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *Handler) CheckAvailability(c echo.Context) error {
	doctorID, err := queryUUID(c, "doctor_id")
	if err != nil {
		return err
	}
	if doctorID == nil {
		return echo.NewHTTPError(http.StatusBadRequest, "doctor_id is required")
	}
	roomID, err := queryUUID(c, "room_id")
	if err != nil {
		return err
	}
	exclude, err := queryUUID(c, "exclude_id")
	if err != nil {
		return err
	}
	q := AvailabilityQuery{
		DoctorID: *doctorID,
		RoomID:   roomID,
		Date:     c.QueryParam("date"),
		Slot:     c.QueryParam("slot"),
	}
	if exclude != nil {
		q.ExcludeID = *exclude
	}
	res, err := h.svc.CheckAvailability(c.Request().Context(), q)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

func (h *Handler) DoctorDaySlots(c echo.Context) error {
	return h.daySlots(c, ResourceDoctor)
}

func (h *Handler) RoomDaySlots(c echo.Context) error {
	return h.daySlots(c, ResourceRoom)
}

func (h *Handler) daySlots(c echo.Context, kind ResourceKind) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	date := c.QueryParam("date")
	board, err := h.svc.DaySlots(c.Request().Context(), kind, id, date)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		string(kind) + "_id": id,
		"date":               date,
		"slots":              board,
	})
}

func (h *Handler) Suggestions(c echo.Context) error {
	kind := ResourceDoctor
	id, err := queryUUID(c, "doctor_id")
	if err != nil {
		return err
	}
	if id == nil {
		kind = ResourceRoom
		if id, err = queryUUID(c, "room_id"); err != nil {
			return err
		}
	}
	if id == nil {
		return echo.NewHTTPError(http.StatusBadRequest, "doctor_id or room_id is required")
	}
	max, err := queryInt(c, "max", 0)
	if err != nil {
		return err
	}
	slot := c.QueryParam("slot")
	suggestions, err := h.svc.SuggestSlots(c.Request().Context(), kind, *id, c.QueryParam("date"), slot, max)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"slot":        slot,
		"suggestions": suggestions,
	})
}

// -- Appointment Handlers --

type bookRequest struct {
	PatientID   uuid.UUID  `json:"patient_id"`
	PatientName string     `json:"patient_name"`
	DoctorID    uuid.UUID  `json:"doctor_id"`
	RoomID      *uuid.UUID `json:"room_id"`
	Date        string     `json:"date"`
	Slot        string     `json:"slot"`
	Status      string     `json:"status"`
	Reason      *string    `json:"reason"`
	Notes       *string    `json:"notes"`
}

func (h *Handler) BookAppointment(c echo.Context) error {
	var req bookRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.DoctorID == uuid.Nil {
		return echo.NewHTTPError(http.StatusBadRequest, "doctor_id is required")
	}
	a := &Appointment{
		PatientID:   req.PatientID,
		PatientName: req.PatientName,
		DoctorID:    req.DoctorID,
		RoomID:      req.RoomID,
		Date:        req.Date,
		Slot:        req.Slot,
		Reason:      req.Reason,
		Notes:       req.Notes,
	}
	if req.Status != "" {
		st, err := ParseStatus(req.Status)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		a.Status = st
	}
	if err := h.svc.BookAppointment(c.Request().Context(), a); err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, a)
}

func (h *Handler) GetAppointment(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	a, err := h.svc.GetAppointment(c.Request().Context(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) ListAppointments(c echo.Context) error {
	pg := pagination.FromContext(c)
	params := make(map[string]string)
	for query, key := range map[string]string{
		"doctor_id":  "doctor",
		"room_id":    "room",
		"patient_id": "patient",
		"date":       "date",
		"status":     "status",
	} {
		if v := c.QueryParam(query); v != "" {
			params[key] = v
		}
	}
	items, total, err := h.svc.ListAppointments(c.Request().Context(), params, pg.Limit, pg.Offset)
	if err != nil {
		return respondError(c, err)
	}
	if items == nil {
		items = []*Appointment{}
	}
	return c.JSON(http.StatusOK, pagination.NewPage(c, items, total, pg))
}

type rescheduleRequest struct {
	Date string `json:"date"`
	Slot string `json:"slot"`
}

func (h *Handler) RescheduleAppointment(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var req rescheduleRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Slot == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "slot is required")
	}
	a, err := h.svc.RescheduleAppointment(c.Request().Context(), id, req.Date, req.Slot)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) RescheduleCheck(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	decision, err := h.svc.RescheduleCheck(c.Request().Context(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, decision)
}

type statusRequest struct {
	Status string  `json:"status"`
	Reason *string `json:"reason"`
}

func (h *Handler) UpdateStatus(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var req statusRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	st, err := ParseStatus(req.Status)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	a, err := h.svc.UpdateStatus(c.Request().Context(), id, st, req.Reason)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, a)
}

type cancelRequest struct {
	Reason *string `json:"reason"`
}

func (h *Handler) CancelAppointment(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var req cancelRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	a, err := h.svc.CancelAppointment(c.Request().Context(), id, req.Reason)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, a)
}
