package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/md-rashed-zaman/homelube/services/appointment-service/internal/lifecycle"
	"github.com/md-rashed-zaman/homelube/services/appointment-service/internal/model"
)

const appointmentNotFound = "Appointment not found"

type AppointmentHandler struct {
	svc    *lifecycle.Service
	logger *slog.Logger
}

func NewAppointmentHandler(svc *lifecycle.Service, logger *slog.Logger) *AppointmentHandler {
	return &AppointmentHandler{svc: svc, logger: logger}
}

type createAppointmentRequest struct {
	VehicleInfo          model.VehicleInfo `json:"vehicleInfo"`
	ServiceAddress       model.Address     `json:"serviceAddress"`
	PreferredDate        string            `json:"preferredDate"`
	PreferredTime        string            `json:"preferredTime"`
	Urgency              string            `json:"urgency"`
	CustomerEmail        string            `json:"customerEmail"`
	CustomerPhone        string            `json:"customerPhone"`
	ServiceProviderEmail string            `json:"serviceProviderEmail"`
}

type deliveryResponse struct {
	Email bool `json:"email"`
	SMS   bool `json:"sms"`
}

type createAppointmentResponse struct {
	Success    bool             `json:"success"`
	TrackingID string           `json:"trackingId"`
	Message    string           `json:"message"`
	Delivery   deliveryResponse `json:"delivery"`
}

type calendarResponseRequest struct {
	Status string `json:"status"`
}

type appointmentSummary struct {
	Date           time.Time            `json:"date"`
	Vehicle        string               `json:"vehicle"`
	Address        model.Address        `json:"address"`
	CalendarStatus model.CalendarStatus `json:"calendarStatus"`
	Acknowledged   bool                 `json:"acknowledged"`
}

type summaryResponse struct {
	Success     bool               `json:"success"`
	Message     string             `json:"message"`
	Appointment appointmentSummary `json:"appointment"`
}

type calendarInviteView struct {
	Sent        bool                 `json:"sent"`
	Status      model.CalendarStatus `json:"status"`
	RespondedAt *time.Time           `json:"respondedAt"`
}

type appointmentView struct {
	Date    time.Time     `json:"date"`
	Vehicle string        `json:"vehicle"`
	Address model.Address `json:"address"`
}

type statusResponse struct {
	TrackingID     string             `json:"trackingId"`
	Status         model.Status       `json:"status"`
	EmailSent      bool               `json:"emailSent"`
	Acknowledged   bool               `json:"acknowledged"`
	AcknowledgedAt *time.Time         `json:"acknowledgedAt"`
	CalendarInvite calendarInviteView `json:"calendarInvite"`
	Appointment    appointmentView    `json:"appointment"`
}

func (h *AppointmentHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createAppointmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	booking, err := h.svc.CreateAppointment(r.Context(), lifecycle.BookingRequest{
		VehicleInfo:          req.VehicleInfo,
		ServiceAddress:       req.ServiceAddress,
		PreferredDate:        req.PreferredDate,
		PreferredTime:        req.PreferredTime,
		Urgency:              req.Urgency,
		CustomerEmail:        req.CustomerEmail,
		CustomerPhone:        req.CustomerPhone,
		ServiceProviderEmail: req.ServiceProviderEmail,
	})
	if err != nil {
		fail(w, r, h.logger, err, appointmentNotFound, "Error scheduling appointment")
		return
	}

	writeJSON(w, http.StatusCreated, createAppointmentResponse{
		Success:    true,
		TrackingID: booking.Appointment.TrackingID,
		Message:    "Appointment scheduled successfully",
		Delivery:   deliveryResponse{Email: booking.Delivery.Email, SMS: booking.Delivery.SMS},
	})
}

func (h *AppointmentHandler) CalendarResponse(w http.ResponseWriter, r *http.Request) {
	var req calendarResponseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	summary, err := h.svc.RecordCalendarResponse(r.Context(), chi.URLParam(r, "trackingID"), req.Status)
	if err != nil {
		fail(w, r, h.logger, err, appointmentNotFound, "Failed to record calendar response")
		return
	}
	writeJSON(w, http.StatusOK, summaryResponse{
		Success:     true,
		Message:     "Calendar response recorded successfully",
		Appointment: toSummary(summary),
	})
}

func (h *AppointmentHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	summary, err := h.svc.ConfirmByLink(r.Context(), chi.URLParam(r, "trackingID"))
	if err != nil {
		fail(w, r, h.logger, err, appointmentNotFound, "Failed to confirm appointment")
		return
	}
	writeJSON(w, http.StatusOK, summaryResponse{
		Success:     true,
		Message:     "Appointment confirmed successfully",
		Appointment: toSummary(summary),
	})
}

func (h *AppointmentHandler) Status(w http.ResponseWriter, r *http.Request) {
	view, err := h.svc.GetStatus(r.Context(), chi.URLParam(r, "trackingID"))
	if err != nil {
		fail(w, r, h.logger, err, appointmentNotFound, "Failed to check appointment status")
		return
	}
	n := view.Notifications
	writeJSON(w, http.StatusOK, statusResponse{
		TrackingID:     view.TrackingID,
		Status:         view.Status,
		EmailSent:      n.EmailSent,
		Acknowledged:   n.Acknowledged,
		AcknowledgedAt: n.AcknowledgedAt,
		CalendarInvite: calendarInviteView{
			Sent:        n.CalendarInvite.Sent,
			Status:      n.CalendarInvite.Status,
			RespondedAt: n.CalendarInvite.RespondedAt,
		},
		Appointment: appointmentView{Date: view.Date, Vehicle: view.Vehicle, Address: view.Address},
	})
}

func (h *AppointmentHandler) SendConfirmation(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.ResendConfirmationRequest(r.Context(), chi.URLParam(r, "trackingID")); err != nil {
		fail(w, r, h.logger, err, appointmentNotFound, "Failed to send confirmation request")
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Success: true, Message: "Confirmation request sent successfully"})
}

func (h *AppointmentHandler) VerifyEmailConfig(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.VerifyEmailConfig(r.Context()); err != nil {
		fail(w, r, h.logger, err, appointmentNotFound, "Email configuration is invalid")
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Success: true, Message: "Email configuration is valid"})
}

func toSummary(s lifecycle.Summary) appointmentSummary {
	return appointmentSummary{
		Date:           s.Date,
		Vehicle:        s.Vehicle,
		Address:        s.Address,
		CalendarStatus: s.CalendarStatus,
		Acknowledged:   s.Acknowledged,
	}
}
