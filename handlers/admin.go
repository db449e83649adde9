package handlers

import (
	"net/http"

	"rentalspot/models"
	"rentalspot/services/booking"
	"rentalspot/services/catalog"
	"rentalspot/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// AdminHandler encapsulates property maintenance and booking overrides.
type AdminHandler struct {
	Catalog  catalog.CatalogService
	Bookings booking.BookingService
}

func NewAdminHandler(cs catalog.CatalogService, bs booking.BookingService) *AdminHandler {
	return &AdminHandler{Catalog: cs, Bookings: bs}
}

// UpsertProperty handles PUT /api/admin/properties/:id.
func (ah *AdminHandler) UpsertProperty(c *gin.Context) {
	var p models.Property
	if err := c.ShouldBindJSON(&p); err != nil {
		utils.JSONError(c, http.StatusBadRequest, "invalid input", err.Error())
		return
	}
	p.ID = c.Param("id")
	saved, err := ah.Catalog.UpsertProperty(c.Request.Context(), &p)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, saved)
}

// PublishCalendarRequest is the body of a month upload.
type PublishCalendarRequest struct {
	Days map[string]models.DayEntry `json:"days" binding:"required"`
}

// PublishCalendar handles PUT /api/admin/calendars/:propertyId/:yearMonth.
func (ah *AdminHandler) PublishCalendar(c *gin.Context) {
	var req PublishCalendarRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.JSONError(c, http.StatusBadRequest, "invalid input", err.Error())
		return
	}
	cal, err := ah.Catalog.PublishCalendar(c.Request.Context(), c.Param("propertyId"), c.Param("yearMonth"), req.Days)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	getLogger(c).Info("calendar published by admin", zap.String("calendar", cal.ID), zap.String("admin", c.GetString("adminID")))
	c.JSON(http.StatusOK, cal)
}

// GetCalendar handles GET /api/admin/calendars/:propertyId/:yearMonth.
func (ah *AdminHandler) GetCalendar(c *gin.Context) {
	cal, err := ah.Catalog.GetCalendar(c.Request.Context(), c.Param("propertyId"), c.Param("yearMonth"))
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, cal)
}

// CancelBooking handles POST /api/admin/bookings/:id/cancel.
func (ah *AdminHandler) CancelBooking(c *gin.Context) {
	var req struct {
		Reason string `json:"reason"`
	}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.JSONError(c, http.StatusBadRequest, "invalid input", err.Error())
			return
		}
	}
	b, err := ah.Bookings.CancelBooking(c.Request.Context(), c.Param("id"), req.Reason)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, b)
}

// ReleaseAvailability handles POST /api/admin/availability/release.
func (ah *AdminHandler) ReleaseAvailability(c *gin.Context) {
	var req booking.ReleaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.JSONError(c, http.StatusBadRequest, "invalid input", err.Error())
		return
	}
	result, err := ah.Bookings.ReleaseAvailability(c.Request.Context(), req)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// ListBookings handles GET /api/admin/properties/:id/bookings.
func (ah *AdminHandler) ListBookings(c *gin.Context) {
	bookings, err := ah.Bookings.ListBookings(c.Request.Context(), c.Param("id"))
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	if bookings == nil {
		bookings = []models.Booking{}
	}
	c.JSON(http.StatusOK, bookings)
}
