package handlers

import (
	"encoding/json"
	"log/slog"
	"mime"
	"net/http"
	"strings"

	"github.com/md-rashed-zaman/homelube/services/appointment-service/internal/lifecycle"
)

type SmsHandler struct {
	svc    *lifecycle.Service
	logger *slog.Logger
}

func NewSmsHandler(svc *lifecycle.Service, logger *slog.Logger) *SmsHandler {
	return &SmsHandler{svc: svc, logger: logger}
}

// inboundSmsRequest accepts both the Vonage field names and generic ones.
type inboundSmsRequest struct {
	Msisdn    string `json:"msisdn"`
	From      string `json:"from"`
	Text      string `json:"text"`
	MessageID string `json:"messageId"`
}

type testSmsRequest struct {
	PhoneNumber string `json:"phoneNumber"`
	Message     string `json:"message"`
}

type testSmsResponse struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	Provider  string `json:"provider"`
	MessageID string `json:"messageId,omitempty"`
}

func (h *SmsHandler) Webhook(w http.ResponseWriter, r *http.Request) {
	req, err := decodeInboundSms(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid webhook body")
		return
	}

	from := req.Msisdn
	if strings.TrimSpace(from) == "" {
		from = req.From
	}
	outcome, err := h.svc.ProcessInboundSms(r.Context(), lifecycle.InboundSms{
		From:      from,
		Text:      req.Text,
		MessageID: req.MessageID,
	})
	if err != nil {
		fail(w, r, h.logger, err, "No pending appointment found", "Error processing SMS response")
		return
	}

	switch outcome {
	case lifecycle.OutcomeConfirmed:
		writeJSON(w, http.StatusOK, messageResponse{Success: true, Message: "Appointment confirmed"})
	case lifecycle.OutcomeDeclined:
		writeJSON(w, http.StatusOK, messageResponse{Success: true, Message: "Appointment cancelled"})
	case lifecycle.OutcomeDuplicate:
		writeJSON(w, http.StatusOK, messageResponse{Success: true, Message: "Duplicate message ignored"})
	default:
		writeError(w, http.StatusBadRequest, "Invalid response")
	}
}

func decodeInboundSms(r *http.Request) (inboundSmsRequest, error) {
	var req inboundSmsRequest
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		err := json.NewDecoder(r.Body).Decode(&req)
		return req, err
	}
	if err := r.ParseForm(); err != nil {
		return req, err
	}
	req.Msisdn = r.Form.Get("msisdn")
	req.From = r.Form.Get("from")
	req.Text = r.Form.Get("text")
	req.MessageID = r.Form.Get("messageId")
	return req, nil
}

func (h *SmsHandler) Test(w http.ResponseWriter, r *http.Request) {
	var req testSmsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if strings.TrimSpace(req.PhoneNumber) == "" || strings.TrimSpace(req.Message) == "" {
		writeError(w, http.StatusBadRequest, "Phone number and message are required")
		return
	}

	receipt, err := h.svc.SendTestSms(r.Context(), req.PhoneNumber, req.Message)
	if err != nil {
		fail(w, r, h.logger, err, "Not found", "Failed to send test SMS")
		return
	}
	writeJSON(w, http.StatusOK, testSmsResponse{
		Success:   true,
		Message:   "Test SMS sent successfully",
		Provider:  receipt.Provider,
		MessageID: receipt.MessageID,
	})
}
