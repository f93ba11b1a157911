package api

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"bookline/internal/domain"
	"bookline/internal/models"
	"bookline/internal/whatsapp"
)

const maxWebhookBody = 1 << 20

// handleWebhookVerify answers the Cloud API subscription handshake: echo the
// challenge when the verify token matches, 403 otherwise.
func (s *HTTPServer) handleWebhookVerify(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Get("hub.mode") == "subscribe" && q.Get("hub.verify_token") == s.cfg.WhatsApp.VerifyToken {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(q.Get("hub.challenge")))
		return
	}
	writeError(w, http.StatusForbidden, codeUnauthorized, "verification failed")
}

func (s *HTTPServer) handleWebhookPost(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, codeValidation, "unreadable body")
		return
	}

	if !whatsapp.VerifySignature(body, r.Header.Get("X-Hub-Signature-256"), s.cfg.WhatsApp.AppSecret) {
		writeError(w, http.StatusUnauthorized, codeUnauthorized, "invalid signature")
		return
	}

	var payload whatsapp.WebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, codeValidation, "invalid payload")
		return
	}

	s.deps.Dispatcher.Dispatch(r.Context(), &payload)
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *HTTPServer) handleListServices(w http.ResponseWriter, r *http.Request) {
	org, err := s.deps.DB.GetOrganizationBySlug(r.Context(), r.PathValue("slug"))
	if err != nil {
		writeStorageError(w, err)
		return
	}

	services, err := s.deps.DB.ListActiveServices(r.Context(), org.ID)
	if err != nil {
		writeStorageError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"services": services})
}

func (s *HTTPServer) handleAvailability(w http.ResponseWriter, r *http.Request) {
	org, err := s.deps.DB.GetOrganizationBySlug(r.Context(), r.PathValue("slug"))
	if err != nil {
		writeStorageError(w, err)
		return
	}

	date := strings.TrimSpace(r.URL.Query().Get("date"))
	if date == "" {
		writeError(w, http.StatusBadRequest, codeValidation, "date is required")
		return
	}
	if _, err := time.Parse(models.DateLayout, date); err != nil {
		writeError(w, http.StatusBadRequest, codeValidation, "invalid date; expected YYYY-MM-DD")
		return
	}

	slots := s.deps.Availability.ListAvailableSlots(r.Context(), r.PathValue("serviceID"), date, org.ID)
	writeJSON(w, http.StatusOK, map[string]any{"date": date, "slots": slots})
}

type createAppointmentRequest struct {
	ServiceID     string `json:"service_id"`
	StartTime     string `json:"start_time"`
	CustomerName  string `json:"customer_name"`
	CustomerPhone string `json:"customer_phone"`
	CustomerEmail string `json:"customer_email"`
}

type createAppointmentResponse struct {
	Appointment     *models.Appointment `json:"appointment"`
	ManagementToken string              `json:"management_token"`
}

func (s *HTTPServer) handleCreateAppointment(w http.ResponseWriter, r *http.Request) {
	org, err := s.deps.DB.GetOrganizationBySlug(r.Context(), r.PathValue("slug"))
	if err != nil {
		writeStorageError(w, err)
		return
	}

	var req createAppointmentRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeValidation, "invalid JSON body")
		return
	}
	if req.ServiceID == "" || req.CustomerPhone == "" {
		writeError(w, http.StatusBadRequest, codeValidation, "service_id and customer_phone are required")
		return
	}
	start, err := time.Parse(time.RFC3339, req.StartTime)
	if err != nil {
		writeError(w, http.StatusBadRequest, codeValidation, "start_time must be RFC 3339")
		return
	}

	appt, err := s.deps.Booking.CreateAppointment(r.Context(), domain.CreateAppointmentInput{
		OrganizationID: org.ID,
		ServiceID:      req.ServiceID,
		StartTime:      start,
		CustomerName:   req.CustomerName,
		CustomerPhone:  req.CustomerPhone,
		CustomerEmail:  req.CustomerEmail,
	})
	if err != nil {
		writeStorageError(w, err)
		return
	}

	// The management token is returned exactly once, at creation.
	writeJSON(w, http.StatusCreated, createAppointmentResponse{
		Appointment:     appt,
		ManagementToken: appt.ManagementToken,
	})
}

func (s *HTTPServer) handleGetAppointment(w http.ResponseWriter, r *http.Request) {
	appt, err := s.deps.Booking.GetByToken(r.Context(), r.PathValue("token"))
	if err != nil {
		writeStorageError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"appointment": appt})
}

func (s *HTTPServer) handleCancelAppointment(w http.ResponseWriter, r *http.Request) {
	appt, err := s.deps.Booking.CancelByToken(r.Context(), r.PathValue("token"))
	if err != nil {
		writeStorageError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"appointment": appt})
}

func (s *HTTPServer) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.DB.Ping(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, codeInternal, "database unreachable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
